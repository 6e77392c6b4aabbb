package ledger

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	log "github.com/sirupsen/logrus"

	"rewards-engine/internal/common"
)

// Handler serves the ledger endpoints. Handlers parse and validate,
// delegate to the service, and map sentinel errors to status codes;
// limit rejections come back as 200 with a tagged outcome.
type Handler struct {
	service *Service
}

// NewHandler creates the ledger HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type interactionRequest struct {
	UserID              string   `json:"user_id"`
	Category            string   `json:"category"`
	QualityScore        *int     `json:"quality_score,omitempty"`
	OriginalityDistance *float64 `json:"originality_distance,omitempty"`
}

// ProcessInteraction handles POST /v1/interactions.
func (h *Handler) ProcessInteraction(w http.ResponseWriter, r *http.Request) {
	var req interactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.WriteError(w, http.StatusBadRequest, errors.New("malformed JSON body"))
		return
	}

	cat, err := ParseCategory(req.Category)
	if err != nil {
		common.WriteError(w, http.StatusBadRequest, err)
		return
	}

	var post *PostContent
	if cat == CategoryPosts {
		post = &PostContent{}
		if req.QualityScore != nil {
			post.QualityScore = *req.QualityScore
		}
		if req.OriginalityDistance != nil {
			post.OriginalityDistance = *req.OriginalityDistance
		}
	}

	result, err := h.service.Award(r.Context(), req.UserID, cat, post)
	switch {
	case err == nil:
		common.WriteJSON(w, http.StatusOK, result)
	case isValidation(err):
		common.WriteError(w, http.StatusBadRequest, err)
	default:
		log.WithError(err).Error("Interaction processing failed")
		common.WriteError(w, http.StatusInternalServerError, errors.New("storage failure, retry later"))
	}
}

type oneTimeRequest struct {
	UserID string `json:"user_id"`
	Event  string `json:"event"`
}

// ClaimOneTime handles POST /v1/interactions/onetime.
func (h *Handler) ClaimOneTime(w http.ResponseWriter, r *http.Request) {
	var req oneTimeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.WriteError(w, http.StatusBadRequest, errors.New("malformed JSON body"))
		return
	}

	event, err := ParseOneTimeEvent(req.Event)
	if err != nil {
		common.WriteError(w, http.StatusBadRequest, err)
		return
	}

	claimed, points, err := h.service.AwardOneTime(r.Context(), req.UserID, event)
	switch {
	case err == nil:
		common.WriteJSON(w, http.StatusOK, map[string]any{
			"claimed":        claimed,
			"points_awarded": points,
		})
	case isValidation(err):
		common.WriteError(w, http.StatusBadRequest, err)
	default:
		log.WithError(err).Error("One-time claim failed")
		common.WriteError(w, http.StatusInternalServerError, errors.New("storage failure, retry later"))
	}
}

type deductRequest struct {
	UserID   string  `json:"user_id"`
	Category string  `json:"category"`
	Points   float64 `json:"points"`
}

// DeductPoints handles DELETE /v1/points, used when awarded content is
// deleted upstream.
func (h *Handler) DeductPoints(w http.ResponseWriter, r *http.Request) {
	var req deductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.WriteError(w, http.StatusBadRequest, errors.New("malformed JSON body"))
		return
	}

	cat, err := ParseCategory(req.Category)
	if err != nil {
		common.WriteError(w, http.StatusBadRequest, err)
		return
	}

	err = h.service.Deduct(r.Context(), req.UserID, cat, req.Points)
	switch {
	case err == nil:
		common.WriteJSON(w, http.StatusOK, map[string]bool{"ok": true})
	case isValidation(err):
		common.WriteError(w, http.StatusBadRequest, err)
	default:
		log.WithError(err).Error("Deduction failed")
		common.WriteError(w, http.StatusInternalServerError, errors.New("storage failure, retry later"))
	}
}

// GetFinalScore handles GET /v1/scores/{userID}.
func (h *Handler) GetFinalScore(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	score, err := h.service.FinalScore(r.Context(), userID)
	switch {
	case err == nil:
		common.WriteJSON(w, http.StatusOK, map[string]any{
			"user_id":     userID,
			"final_score": score,
		})
	case isValidation(err):
		common.WriteError(w, http.StatusBadRequest, err)
	default:
		log.WithError(err).Error("Score lookup failed")
		common.WriteError(w, http.StatusInternalServerError, errors.New("storage failure, retry later"))
	}
}

func isValidation(err error) bool {
	return errors.Is(err, common.ErrInvalidUserID) ||
		errors.Is(err, common.ErrUnknownCategory) ||
		errors.Is(err, common.ErrInvalidQualityScore) ||
		errors.Is(err, common.ErrInvalidOriginality) ||
		errors.Is(err, common.ErrInvalidPoints) ||
		errors.Is(err, common.ErrUnknownOneTimeEvent)
}
