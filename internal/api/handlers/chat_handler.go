package handlers

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	middleware "github.com/markdave123-py/docchat/internal/api/middlewares"
	"github.com/markdave123-py/docchat/internal/models"
)

const invalidRequestPrefix = "❌ Invalid request: "

type ChatHandler struct {
	pipeline QAPipeline
	logger   *zap.Logger
}

func NewChatHandler(pipeline QAPipeline, logger *zap.Logger) *ChatHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChatHandler{pipeline: pipeline, logger: logger}
}

type queryResponse struct {
	Answer string `json:"answer"`
}

// QueryDocument always answers with {"answer": ...}. Pipeline failures are carried in the
// answer text with HTTP 200.
func (h *ChatHandler) QueryDocument(w http.ResponseWriter, r *http.Request) {
	var req models.QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, queryResponse{Answer: invalidRequestPrefix + err.Error()})
		return
	}
	if req.UserEmail == "" {
		req.UserEmail = middleware.CallerEmail(r.Context())
	}

	res := h.pipeline.HandleQuery(r.Context(), req)
	if res.Status == models.StatusError {
		h.logger.Debug("query answered with error", zap.String("session_id", req.SessionID))
	}
	writeJSON(w, http.StatusOK, queryResponse{Answer: res.Answer})
}
