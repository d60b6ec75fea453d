package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/solarchallenge/draw-server/models"
	"github.com/solarchallenge/draw-server/services"
)

type EventHandler struct {
	drawService   services.DrawService
	rosterService services.RosterService
}

func NewEventHandler(drawService services.DrawService, rosterService services.RosterService) *EventHandler {
	return &EventHandler{
		drawService:   drawService,
		rosterService: rosterService,
	}
}

func eventIDParam(r *http.Request) (int, error) {
	raw := chi.URLParam(r, "eventID")
	id, err := strconv.Atoi(raw)
	if err != nil || id <= 0 {
		return 0, errors.New("invalid event id")
	}
	return id, nil
}

type createEventInput struct {
	Name string `json:"event_name"`
	Date string `json:"event_date"`
}

func (h *EventHandler) Create(w http.ResponseWriter, r *http.Request) {
	var input createEventInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	date, err := time.Parse("2006-01-02", input.Date)
	if err != nil {
		badRequestResponse(w, r, errors.New("event_date must be formatted as YYYY-MM-DD"))
		return
	}

	event, err := h.drawService.CreateEvent(r.Context(), input.Name, date)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusCreated, jsonResponse{"event": event}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *EventHandler) List(w http.ResponseWriter, r *http.Request) {
	events, err := h.drawService.ListEvents(r.Context())
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"events": events}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *EventHandler) Get(w http.ResponseWriter, r *http.Request) {
	eventID, err := eventIDParam(r)
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	event, err := h.drawService.GetEvent(r.Context(), eventID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"event": event}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// Delete removes an event together with its cars, races and bracket.
func (h *EventHandler) Delete(w http.ResponseWriter, r *http.Request) {
	eventID, err := eventIDParam(r)
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if err := h.drawService.DeleteEvent(r.Context(), eventID); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"deleted": eventID}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// FullDraw returns the event with its cars, schedule and bracket in one
// payload.
func (h *EventHandler) FullDraw(w http.ResponseWriter, r *http.Request) {
	eventID, err := eventIDParam(r)
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	event, err := h.drawService.FullDraw(r.Context(), eventID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"event": event}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// UploadRoster ingests a CSV roster for an event. The body is the raw CSV.
func (h *EventHandler) UploadRoster(w http.ResponseWriter, r *http.Request) {
	eventID, err := eventIDParam(r)
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	cars, err := h.rosterService.LoadRoster(r.Context(), eventID, r.Body, services.RosterLoadOptions{})
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusCreated, jsonResponse{"cars": cars}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// RegisterCar admits a single car outside of a roster upload.
func (h *EventHandler) RegisterCar(w http.ResponseWriter, r *http.Request) {
	eventID, err := eventIDParam(r)
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input models.RosterRow
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	car, err := h.drawService.RegisterCar(r.Context(), eventID, input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusCreated, jsonResponse{"car": car}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *EventHandler) ListCars(w http.ResponseWriter, r *http.Request) {
	eventID, err := eventIDParam(r)
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	cars, err := h.drawService.Cars(r.Context(), eventID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"cars": cars}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

type eligibilityInput struct {
	Scrutineered      bool `json:"car_scruitineered"`
	PresentRoundRobin bool `json:"present_round_robin"`
	PresentKnockout   bool `json:"present_knockout"`
}

func (h *EventHandler) UpdateEligibility(w http.ResponseWriter, r *http.Request) {
	eventID, err := eventIDParam(r)
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	carID, err := strconv.Atoi(chi.URLParam(r, "carID"))
	if err != nil || carID <= 0 {
		badRequestResponse(w, r, errors.New("invalid car id"))
		return
	}

	var input eligibilityInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	if err := h.drawService.UpdateEligibility(r.Context(), eventID, carID,
		input.Scrutineered, input.PresentRoundRobin, input.PresentKnockout); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"updated": carID}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *EventHandler) WithdrawCar(w http.ResponseWriter, r *http.Request) {
	eventID, err := eventIDParam(r)
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	carID, err := strconv.Atoi(chi.URLParam(r, "carID"))
	if err != nil || carID <= 0 {
		badRequestResponse(w, r, errors.New("invalid car id"))
		return
	}

	if err := h.drawService.WithdrawCar(r.Context(), eventID, carID); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"withdrawn": carID}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
