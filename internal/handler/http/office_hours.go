package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/officehours"
	"github.com/cmlabs-hris/attendance-engine/internal/handler/http/response"
	"github.com/go-chi/chi/v5"
)

type OfficeHoursHandler interface {
	List(w http.ResponseWriter, r *http.Request)
	Upsert(w http.ResponseWriter, r *http.Request)
	Delete(w http.ResponseWriter, r *http.Request)
	Reload(w http.ResponseWriter, r *http.Request)
}

type officeHoursHandlerImpl struct {
	officeHoursService officehours.OfficeHoursService
}

func NewOfficeHoursHandler(officeHoursService officehours.OfficeHoursService) OfficeHoursHandler {
	return &officeHoursHandlerImpl{
		officeHoursService: officeHoursService,
	}
}

// List implements OfficeHoursHandler.
func (h *officeHoursHandlerImpl) List(w http.ResponseWriter, r *http.Request) {
	result, err := h.officeHoursService.List(r.Context())
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, result)
}

// Upsert implements OfficeHoursHandler.
func (h *officeHoursHandlerImpl) Upsert(w http.ResponseWriter, r *http.Request) {
	var req officehours.UpsertRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Error("Failed to decode office hours request", "error", err)
		response.BadRequest(w, "Invalid request format", nil)
		return
	}

	result, err := h.officeHoursService.Upsert(r.Context(), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMessage(w, "Office hours saved", result)
}

// Delete implements OfficeHoursHandler.
func (h *officeHoursHandlerImpl) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		response.BadRequest(w, "Rule ID is required", nil)
		return
	}

	result, err := h.officeHoursService.Delete(r.Context(), id)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMessage(w, "Office hours rule deleted", result)
}

// Reload implements OfficeHoursHandler.
func (h *officeHoursHandlerImpl) Reload(w http.ResponseWriter, r *http.Request) {
	if err := h.officeHoursService.Reload(r.Context()); err != nil {
		response.HandleError(w, err)
		return
	}

	result, err := h.officeHoursService.List(r.Context())
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMessage(w, "Office hours reloaded", result)
}
