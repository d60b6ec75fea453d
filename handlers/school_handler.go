package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/solarchallenge/draw-server/services"
)

type SchoolHandler struct {
	schoolService services.SchoolService
}

func NewSchoolHandler(schoolService services.SchoolService) *SchoolHandler {
	return &SchoolHandler{schoolService: schoolService}
}

func schoolIDParam(r *http.Request) (int, error) {
	id, err := strconv.Atoi(chi.URLParam(r, "schoolID"))
	if err != nil || id <= 0 {
		return 0, errors.New("invalid school id")
	}
	return id, nil
}

type schoolInput struct {
	Name string `json:"school_name"`
}

func (h *SchoolHandler) Create(w http.ResponseWriter, r *http.Request) {
	var input schoolInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	school, err := h.schoolService.CreateSchool(r.Context(), input.Name)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusCreated, jsonResponse{"school": school}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *SchoolHandler) List(w http.ResponseWriter, r *http.Request) {
	schools, err := h.schoolService.ListSchools(r.Context())
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"schools": schools}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *SchoolHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := schoolIDParam(r)
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	school, err := h.schoolService.GetSchool(r.Context(), id)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"school": school}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *SchoolHandler) Rename(w http.ResponseWriter, r *http.Request) {
	id, err := schoolIDParam(r)
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	var input schoolInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	school, err := h.schoolService.RenameSchool(r.Context(), id, input.Name)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"school": school}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *SchoolHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := schoolIDParam(r)
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if err := h.schoolService.DeleteSchool(r.Context(), id); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"deleted": id}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
