package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strconv"
	"time"

	"github.com/solarchallenge/draw-server/models"
	"github.com/solarchallenge/draw-server/storage"
)

// ReportService renders the draw sheet of an event as CSV and publishes it
// to object storage. When no uploader is configured export is unavailable.
type ReportService interface {
	ExportDrawSheet(ctx context.Context, eventID int) (*storage.UploadResult, error)
}

type reportService struct {
	drawService DrawService
	uploader    storage.FileUploader
}

func NewReportService(drawService DrawService, uploader storage.FileUploader) ReportService {
	return &reportService{
		drawService: drawService,
		uploader:    uploader,
	}
}

func (s *reportService) ExportDrawSheet(ctx context.Context, eventID int) (*storage.UploadResult, error) {
	if s.uploader == nil {
		return nil, ErrReportUploadUnavailable
	}

	event, err := s.drawService.FullDraw(ctx, eventID)
	if err != nil {
		return nil, err
	}
	standings, err := s.drawService.Standings(ctx, eventID)
	if err != nil {
		return nil, err
	}

	sheet, err := renderDrawSheet(event, standings)
	if err != nil {
		return nil, err
	}

	key := fmt.Sprintf("draws/event_%d_%s.csv", eventID, time.Now().UTC().Format("20060102T150405"))
	result, err := s.uploader.Upload(ctx, key, "text/csv", bytes.NewReader(sheet))
	if err != nil {
		return nil, fmt.Errorf("failed to upload draw sheet for event %d: %w", eventID, err)
	}
	return result, nil
}

func renderDrawSheet(event *models.Event, standings []models.Standing) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	records := [][]string{
		{"event", strconv.Itoa(event.ID), event.Name, event.Date.Format("2006-01-02"), string(event.Phase)},
		{},
		{"section", "standings"},
		{"rank", "car_id", "car_name", "points"},
	}
	for _, st := range standings {
		name := ""
		for _, car := range event.Cars {
			if car.CarID == st.CarID {
				name = car.Name
				break
			}
		}
		records = append(records, []string{
			strconv.Itoa(st.Rank), strconv.Itoa(st.CarID), name, strconv.Itoa(st.Points),
		})
	}

	records = append(records, []string{}, []string{"section", "round_robin"},
		[]string{"race", "round", "car_lane_1", "car_lane_2", "car_lane_1_points", "car_lane_2_points"})
	for _, race := range event.Races {
		records = append(records, []string{
			strconv.Itoa(race.Race), strconv.Itoa(race.Round),
			optInt(race.Lane1), optInt(race.Lane2),
			optInt(race.Lane1Points), optInt(race.Lane2Points),
		})
	}

	if len(event.Bracket) > 0 {
		records = append(records, []string{}, []string{"section", "knockout"},
			[]string{"race", "bracket", "round", "seed_a", "seed_b", "state", "winner"})
		for _, m := range event.Bracket {
			records = append(records, []string{
				strconv.Itoa(m.RaceNumber), string(m.Side), strconv.Itoa(m.Round),
				seedLabel(m.SeedA), seedLabel(m.SeedB),
				string(m.State), optInt(m.Winner),
			})
		}
	}

	if err := w.WriteAll(records); err != nil {
		return nil, fmt.Errorf("failed to render draw sheet: %w", err)
	}
	return buf.Bytes(), nil
}

func optInt(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}

func seedLabel(s models.Seed) string {
	switch {
	case s.Bye:
		return "bye"
	case s.Known:
		return strconv.Itoa(s.CarID)
	default:
		return "tbd"
	}
}
