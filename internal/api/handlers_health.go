package api

import (
	"net/http"

	"github.com/rodrick-mpofu/teachback-ai/internal/engine"
)

type HealthHandler struct {
	eng *engine.Engine
}

func NewHealthHandler(eng *engine.Engine) *HealthHandler {
	return &HealthHandler{eng: eng}
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:         "ok",
		AnalyticsEvery: h.eng.Config().AnalyticsCadence,
	})
}
