package handlers

import "net/http"

type HealthHandler struct {
	pipeline QAPipeline
}

func NewHealthHandler(pipeline QAPipeline) *HealthHandler {
	return &HealthHandler{pipeline: pipeline}
}

func (h *HealthHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "sessions": h.pipeline.SessionCount()})
}
