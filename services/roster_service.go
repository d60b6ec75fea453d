package services

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/solarchallenge/draw-server/models"
	"github.com/solarchallenge/draw-server/repositories"
)

// rosterColumns are the required CSV header columns, in any order.
// seed_points is optional.
var rosterColumns = []string{
	"car_id", "school_id", "car_name",
	"scrutineered", "present_round_robin", "present_knockout",
}

type RosterLoadOptions struct {
	// AllowUnknownSchools skips the school existence check, for offline use
	// where no database is available.
	AllowUnknownSchools bool
}

type RosterService interface {
	LoadRoster(ctx context.Context, eventID int, r io.Reader, opts RosterLoadOptions) ([]*models.Car, error)
}

type rosterService struct {
	drawService DrawService
	schoolRepo  repositories.SchoolRepository
}

func NewRosterService(drawService DrawService, schoolRepo repositories.SchoolRepository) RosterService {
	return &rosterService{
		drawService: drawService,
		schoolRepo:  schoolRepo,
	}
}

// ParseRoster reads a roster CSV into validated rows. The header names the
// columns; duplicate car numbers within the file are rejected.
func ParseRoster(r io.Reader) ([]models.RosterRow, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrRosterEmpty
		}
		return nil, fmt.Errorf("failed to read roster header: %w", err)
	}

	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, required := range rosterColumns {
		if _, ok := col[required]; !ok {
			return nil, fmt.Errorf("column %q: %w", required, ErrRosterMissingColumns)
		}
	}
	seedPointsCol, hasSeedPoints := col["seed_points"]

	var rows []models.RosterRow
	seen := make(map[int]bool)
	for line := 2; ; line++ {
		record, err := reader.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("roster line %d: %w", line, err)
		}

		carID, err := strconv.Atoi(strings.TrimSpace(record[col["car_id"]]))
		if err != nil || carID <= 0 {
			return nil, fmt.Errorf("roster line %d: bad car_id %q: %w", line, record[col["car_id"]], ErrRosterInvalidRow)
		}
		if seen[carID] {
			return nil, fmt.Errorf("roster line %d: car %d: %w", line, carID, ErrRosterDuplicateCar)
		}
		seen[carID] = true

		schoolID, err := strconv.Atoi(strings.TrimSpace(record[col["school_id"]]))
		if err != nil || schoolID <= 0 {
			return nil, fmt.Errorf("roster line %d: bad school_id %q: %w", line, record[col["school_id"]], ErrRosterInvalidRow)
		}

		row := models.RosterRow{
			CarID:    carID,
			SchoolID: schoolID,
			CarName:  strings.TrimSpace(record[col["car_name"]]),
		}
		for _, flag := range []struct {
			name string
			dst  *bool
		}{
			{"scrutineered", &row.Scrutineered},
			{"present_round_robin", &row.PresentRoundRobin},
			{"present_knockout", &row.PresentKnockout},
		} {
			v, err := strconv.ParseBool(strings.TrimSpace(record[col[flag.name]]))
			if err != nil {
				return nil, fmt.Errorf("roster line %d: bad %s %q: %w", line, flag.name, record[col[flag.name]], ErrRosterInvalidRow)
			}
			*flag.dst = v
		}
		if hasSeedPoints && seedPointsCol < len(record) {
			raw := strings.TrimSpace(record[seedPointsCol])
			if raw != "" {
				points, err := strconv.Atoi(raw)
				if err != nil || points < 0 {
					return nil, fmt.Errorf("roster line %d: bad seed_points %q: %w", line, raw, ErrRosterInvalidRow)
				}
				row.SeedPoints = &points
			}
		}
		rows = append(rows, row)
	}
	if len(rows) == 0 {
		return nil, ErrRosterEmpty
	}
	return rows, nil
}

// LoadRoster parses, validates against known schools and persists a roster
// for an event.
func (s *rosterService) LoadRoster(ctx context.Context, eventID int, r io.Reader, opts RosterLoadOptions) ([]*models.Car, error) {
	rows, err := ParseRoster(r)
	if err != nil {
		return nil, err
	}

	if !opts.AllowUnknownSchools {
		checked := make(map[int]bool)
		for _, row := range rows {
			if checked[row.SchoolID] {
				continue
			}
			if _, err := s.schoolRepo.GetByID(ctx, row.SchoolID); err != nil {
				if errors.Is(err, repositories.ErrSchoolNotFound) {
					return nil, fmt.Errorf("school %d: %w", row.SchoolID, ErrRosterUnknownSchool)
				}
				return nil, fmt.Errorf("failed to check school %d: %w", row.SchoolID, err)
			}
			checked[row.SchoolID] = true
		}
	}

	return s.drawService.RegisterCars(ctx, eventID, rows)
}
