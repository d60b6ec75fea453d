package handlers

import (
	"net/http"

	"github.com/solarchallenge/draw-server/draw"
	"github.com/solarchallenge/draw-server/services"
)

type DrawHandler struct {
	drawService   services.DrawService
	reportService services.ReportService
}

func NewDrawHandler(drawService services.DrawService, reportService services.ReportService) *DrawHandler {
	return &DrawHandler{
		drawService:   drawService,
		reportService: reportService,
	}
}

// GenerateSchedule builds the round-robin schedule and moves the event into
// the qualification phase.
func (h *DrawHandler) GenerateSchedule(w http.ResponseWriter, r *http.Request) {
	eventID, err := eventIDParam(r)
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	races, err := h.drawService.GenerateSchedule(r.Context(), eventID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusCreated, jsonResponse{"races": races}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *DrawHandler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	eventID, err := eventIDParam(r)
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	races, err := h.drawService.Schedule(r.Context(), eventID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"races": races}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// RecordResult accepts the tagged result payload for either a round-robin
// race or a knockout race.
func (h *DrawHandler) RecordResult(w http.ResponseWriter, r *http.Request) {
	eventID, err := eventIDParam(r)
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input draw.Result
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	if err := h.drawService.RecordResult(r.Context(), eventID, input); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"recorded": input.Kind}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *DrawHandler) GetStandings(w http.ResponseWriter, r *http.Request) {
	eventID, err := eventIDParam(r)
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	standings, err := h.drawService.Standings(r.Context(), eventID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"standings": standings}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *DrawHandler) FreezeStandings(w http.ResponseWriter, r *http.Request) {
	eventID, err := eventIDParam(r)
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	standings, err := h.drawService.FreezeStandings(r.Context(), eventID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"standings": standings}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *DrawHandler) BuildBracket(w http.ResponseWriter, r *http.Request) {
	eventID, err := eventIDParam(r)
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	matches, err := h.drawService.BuildBracket(r.Context(), eventID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusCreated, jsonResponse{"bracket": matches}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *DrawHandler) GetBracket(w http.ResponseWriter, r *http.Request) {
	eventID, err := eventIDParam(r)
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	matches, err := h.drawService.BracketView(r.Context(), eventID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	playOrder, err := h.drawService.PlayOrder(r.Context(), eventID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{
		"bracket":    matches,
		"play_order": playOrder,
	}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// GetUpcoming lists the knockout races ready to be run, in play order.
func (h *DrawHandler) GetUpcoming(w http.ResponseWriter, r *http.Request) {
	eventID, err := eventIDParam(r)
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	matches, err := h.drawService.ScheduledKnockoutRaces(r.Context(), eventID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"races": matches}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *DrawHandler) GetPodium(w http.ResponseWriter, r *http.Request) {
	eventID, err := eventIDParam(r)
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	podium, err := h.drawService.Podium(r.Context(), eventID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"podium": podium}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// ExportReport renders the draw sheet and uploads it to object storage.
func (h *DrawHandler) ExportReport(w http.ResponseWriter, r *http.Request) {
	eventID, err := eventIDParam(r)
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	result, err := h.reportService.ExportDrawSheet(r.Context(), eventID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusCreated, jsonResponse{"report": result}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
