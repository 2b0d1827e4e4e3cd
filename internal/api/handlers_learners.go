package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/rodrick-mpofu/teachback-ai/internal/engine"
)

const defaultSessionLimit = 20

// LearnerHandler serves an owner's persisted history.
type LearnerHandler struct {
	eng *engine.Engine
}

func NewLearnerHandler(eng *engine.Engine) *LearnerHandler {
	return &LearnerHandler{eng: eng}
}

// ListSessions handles GET /learners/{owner}/sessions?limit=20
func (h *LearnerHandler) ListSessions(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r, "limit", defaultSessionLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	recs, err := h.eng.ListSessions(r.Context(), chi.URLParam(r, "owner"), limit)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionRecords(recs))
}

// Stats handles GET /learners/{owner}/stats
func (h *LearnerHandler) Stats(w http.ResponseWriter, r *http.Request) {
	owner := chi.URLParam(r, "owner")
	st, err := h.eng.UserStats(r.Context(), owner)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, UserStatsResponse{
		Owner:             owner,
		TotalSessions:     st.TotalSessions,
		CompletedSessions: st.CompletedSessions,
		TotalTurns:        st.TotalTurns,
		AvgConfidence:     st.AvgConfidence,
		AvgClarity:        st.AvgClarity,
		UniqueTopics:      st.UniqueTopics,
	})
}

// Graph handles GET /learners/{owner}/graph
func (h *LearnerHandler) Graph(w http.ResponseWriter, r *http.Request) {
	owner := chi.URLParam(r, "owner")
	nodes, edges, err := h.eng.KnowledgeGraph(r.Context(), owner)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, graphResponse(owner, nodes, edges))
}
