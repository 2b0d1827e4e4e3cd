package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/rodrick-mpofu/teachback-ai/internal/engine"
	"github.com/rodrick-mpofu/teachback-ai/internal/spacedrep"
)

// ReviewHandler serves an owner's SM-2 review items.
type ReviewHandler struct {
	eng *engine.Engine
}

func NewReviewHandler(eng *engine.Engine) *ReviewHandler {
	return &ReviewHandler{eng: eng}
}

// Due handles GET /learners/{owner}/reviews/due. as_of accepts RFC 3339 or
// YYYY-MM-DD and defaults to now.
func (h *ReviewHandler) Due(w http.ResponseWriter, r *http.Request) {
	var asOf time.Time
	if raw := r.URL.Query().Get("as_of"); raw != "" {
		t, err := parseAsOf(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "as_of must be RFC 3339 or YYYY-MM-DD")
			return
		}
		asOf = t
	}
	writeJSON(w, http.StatusOK, h.eng.DueItems(r.Context(), chi.URLParam(r, "owner"), asOf))
}

// Record handles POST /learners/{owner}/reviews
func (h *ReviewHandler) Record(w http.ResponseWriter, r *http.Request) {
	var req RecordReviewRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Quality == nil {
		writeError(w, http.StatusBadRequest, "quality is required")
		return
	}

	item, err := h.eng.RecordReview(r.Context(), chi.URLParam(r, "owner"), req.Topic, *req.Quality)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

// Schedule handles GET /learners/{owner}/reviews/schedule?days=7
func (h *ReviewHandler) Schedule(w http.ResponseWriter, r *http.Request) {
	days, err := intParam(r, "days", spacedrep.DefaultScheduleDays)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, h.eng.ReviewSchedule(r.Context(), chi.URLParam(r, "owner"), days))
}

// Stats handles GET /learners/{owner}/reviews/stats
func (h *ReviewHandler) Stats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.eng.ReviewStats(r.Context(), chi.URLParam(r, "owner")))
}

// Suggest handles GET /learners/{owner}/reviews/suggest?limit=10
func (h *ReviewHandler) Suggest(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r, "limit", spacedrep.DefaultSuggestMax)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, h.eng.SuggestReviews(r.Context(), chi.URLParam(r, "owner"), limit))
}

func parseAsOf(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return time.Time{}, err
	}
	// A bare date covers the whole day.
	return t.Add(24*time.Hour - time.Nanosecond).UTC(), nil
}
