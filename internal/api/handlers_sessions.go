package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/rodrick-mpofu/teachback-ai/internal/analytics"
	"github.com/rodrick-mpofu/teachback-ai/internal/engine"
)

// maxPollWait bounds ?wait= on analytics polls.
const maxPollWait = 30 * time.Second

// SessionHandler handles session and turn requests.
type SessionHandler struct {
	eng          *engine.Engine
	defaultOwner string
}

func NewSessionHandler(eng *engine.Engine, defaultOwner string) *SessionHandler {
	return &SessionHandler{eng: eng, defaultOwner: defaultOwner}
}

// Create handles POST /sessions
func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateSessionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	owner := strings.TrimSpace(req.Owner)
	if owner == "" {
		owner = h.defaultOwner
	}

	created, err := h.eng.CreateSession(r.Context(), owner, req.Topic, req.Mode)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, CreateSessionResponse{
		SessionID: created.SessionID,
		Mode:      created.Mode.String(),
		Welcome:   created.Welcome,
	})
}

// SubmitTurn handles POST /sessions/{id}/turns
func (h *SessionHandler) SubmitTurn(w http.ResponseWriter, r *http.Request) {
	var req SubmitTurnRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	out, err := h.eng.SubmitTurn(r.Context(), chi.URLParam(r, "id"), req.Explanation)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, turnResponse(out))
}

// Summary handles GET /sessions/{id}
func (h *SessionHandler) Summary(w http.ResponseWriter, r *http.Request) {
	sum, err := h.eng.Summary(chi.URLParam(r, "id"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

// Complete handles POST /sessions/{id}/complete
func (h *SessionHandler) Complete(w http.ResponseWriter, r *http.Request) {
	res, err := h.eng.CompleteSession(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Teardown handles DELETE /sessions/{id}
func (h *SessionHandler) Teardown(w http.ResponseWriter, r *http.Request) {
	if err := h.eng.Teardown(chi.URLParam(r, "id")); err != nil {
		writeEngineError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// LatestAnalytics handles GET /sessions/{id}/analytics
func (h *SessionHandler) LatestAnalytics(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	snap, err := h.eng.LatestAnalytics(r.Context(), id)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	if snap == nil {
		writeError(w, http.StatusNotFound, "no analytics for session "+id)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// PollAnalytics handles GET /analytics/{handle}. ?wait=2s blocks until the
// job resolves or the wait runs out.
func (h *SessionHandler) PollAnalytics(w http.ResponseWriter, r *http.Request) {
	handle := analytics.Handle(chi.URLParam(r, "handle"))

	var wait time.Duration
	if raw := r.URL.Query().Get("wait"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d < 0 {
			writeError(w, http.StatusBadRequest, "wait must be a duration such as 2s")
			return
		}
		wait = min(d, maxPollWait)
	}

	var (
		res analytics.PollResult
		err error
	)
	if wait > 0 {
		ctx, cancel := context.WithTimeout(r.Context(), wait)
		res, err = h.eng.WaitAnalytics(ctx, handle)
		cancel()
		if errors.Is(err, context.DeadlineExceeded) {
			err = nil
		}
	} else {
		res, err = h.eng.PollAnalytics(handle)
	}
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pollResponse(handle, res))
}
