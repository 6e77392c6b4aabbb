package ledger

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(store Store) *chi.Mux {
	h := NewHandler(newTestService(store))

	r := chi.NewRouter()
	r.Post("/v1/interactions", h.ProcessInteraction)
	r.Post("/v1/interactions/onetime", h.ClaimOneTime)
	r.Delete("/v1/points", h.DeductPoints)
	r.Get("/v1/scores/{userID}", h.GetFinalScore)
	return r
}

func postJSON(t *testing.T, r http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestProcessInteraction_AwardsPoints(t *testing.T) {
	r := newTestRouter(newFakeStore())

	rec := postJSON(t, r, "/v1/interactions", map[string]any{
		"user_id":  "u1",
		"category": "likes",
	})

	require.Equal(t, http.StatusOK, rec.Code)

	var result AwardResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, OutcomeAwarded, result.Outcome)
	assert.InDelta(t, 0.1, result.Points, 1e-12)
}

func TestProcessInteraction_RateLimitIsStillHTTP200(t *testing.T) {
	// Limit rejections are outcomes, not transport errors.
	r := newTestRouter(newFakeStore())

	for i := 0; i < 5; i++ {
		rec := postJSON(t, r, "/v1/interactions", map[string]any{"user_id": "u1", "category": "likes"})
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec := postJSON(t, r, "/v1/interactions", map[string]any{"user_id": "u1", "category": "likes"})
	require.Equal(t, http.StatusOK, rec.Code)

	var result AwardResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, OutcomeRateLimited, result.Outcome)
}

func TestProcessInteraction_ValidationIs400(t *testing.T) {
	r := newTestRouter(newFakeStore())

	tests := []struct {
		name string
		body map[string]any
	}{
		{"unknown category", map[string]any{"user_id": "u1", "category": "karma"}},
		{"empty user", map[string]any{"user_id": "", "category": "likes"}},
		{"post without content", map[string]any{"user_id": "u1", "category": "posts", "quality_score": 99}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postJSON(t, r, "/v1/interactions", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestProcessInteraction_MalformedJSON(t *testing.T) {
	r := newTestRouter(newFakeStore())

	req := httptest.NewRequest(http.MethodPost, "/v1/interactions", bytes.NewReader([]byte("{nope")))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestClaimOneTime_SecondClaimReportsFalse(t *testing.T) {
	r := newTestRouter(newFakeStore())
	body := map[string]any{"user_id": "u1", "event": "registration"}

	rec := postJSON(t, r, "/v1/interactions/onetime", body)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Claimed bool    `json:"claimed"`
		Points  float64 `json:"points_awarded"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Claimed)
	assert.Equal(t, 10.0, resp.Points)

	rec = postJSON(t, r, "/v1/interactions/onetime", body)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Claimed)
	assert.Zero(t, resp.Points)
}

func TestGetFinalScore(t *testing.T) {
	store := newFakeStore()
	store.points = map[Category]float64{CategoryReferrals: 10, CategoryLikes: 1}
	r := newTestRouter(store)

	req := httptest.NewRequest(http.MethodGet, "/v1/scores/u1", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		UserID string  `json:"user_id"`
		Score  float64 `json:"final_score"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "u1", resp.UserID)
	assert.InDelta(t, 10.0, resp.Score, 1e-9)
}
