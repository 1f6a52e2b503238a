package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/markdave123-py/docchat/internal/models"
)

// QAPipeline is the slice of the QA service the handlers call.
type QAPipeline interface {
	HandleUpload(ctx context.Context, up models.Upload) (models.UploadResult, error)
	HandleQuery(ctx context.Context, req models.QueryRequest) models.QueryResult
	SessionCount() int
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
