package analysis

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"rewards-engine/internal/common"
)

// Handler serves the admin analysis endpoints.
type Handler struct {
	service *Service
}

// NewHandler creates the analysis HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// TriggerRun handles POST /v1/analysis/run. Runs the full daily analysis
// immediately, outside the cron schedule.
func (h *Handler) TriggerRun(w http.ResponseWriter, r *http.Request) {
	run, err := h.service.Run(r.Context())
	if err != nil {
		log.WithError(err).Error("Manual analysis run failed")
		common.WriteError(w, http.StatusInternalServerError, errors.New("analysis run failed"))
		return
	}
	common.WriteJSON(w, http.StatusOK, run)
}

// GetSummary handles GET /v1/analysis/summary. Recomputes the category
// results from the live ledger without committing anything.
func (h *Handler) GetSummary(w http.ResponseWriter, r *http.Request) {
	results, err := h.service.Summary(r.Context())
	if err != nil {
		log.WithError(err).Error("Analysis summary failed")
		common.WriteError(w, http.StatusInternalServerError, errors.New("analysis summary failed"))
		return
	}
	common.WriteJSON(w, http.StatusOK, map[string]any{"results": results})
}

// GetRun handles GET /v1/analysis/runs/{runID}.
func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "runID"))
	if err != nil {
		common.WriteError(w, http.StatusBadRequest, errors.New("malformed run id"))
		return
	}

	run, err := h.service.store.GetRun(r.Context(), id)
	switch {
	case err == nil:
		common.WriteJSON(w, http.StatusOK, run)
	case errors.Is(err, common.ErrRunNotFound):
		common.WriteError(w, http.StatusNotFound, err)
	default:
		log.WithError(err).Error("Run lookup failed")
		common.WriteError(w, http.StatusInternalServerError, errors.New("storage failure, retry later"))
	}
}

// Redeliver handles POST /v1/analysis/runs/{runID}/redeliver. Re-sends a
// committed run's stored results to the reward collaborator.
func (h *Handler) Redeliver(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "runID"))
	if err != nil {
		common.WriteError(w, http.StatusBadRequest, errors.New("malformed run id"))
		return
	}

	run, err := h.service.Redeliver(r.Context(), id)
	switch {
	case err == nil:
		common.WriteJSON(w, http.StatusOK, run)
	case errors.Is(err, common.ErrRunNotFound):
		common.WriteError(w, http.StatusNotFound, err)
	default:
		log.WithError(err).Error("Run redelivery failed")
		common.WriteError(w, http.StatusBadGateway, errors.New("redelivery failed"))
	}
}
