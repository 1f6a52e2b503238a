package handlers

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/markdave123-py/docchat/internal/models"
)

const multipartMemory = 32 << 20

type DocumentHandler struct {
	pipeline       QAPipeline
	maxUploadBytes int64
	logger         *zap.Logger
}

func NewDocumentHandler(pipeline QAPipeline, maxUploadMB int, logger *zap.Logger) *DocumentHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DocumentHandler{pipeline: pipeline, maxUploadBytes: int64(maxUploadMB) << 20, logger: logger}
}

type uploadResponse struct {
	Status    string `json:"status"`
	SessionID string `json:"session_id,omitempty"`
	Message   string `json:"message,omitempty"`
}

// UploadDocument accepts a multipart "file" field, or the raw document as the body.
func (h *DocumentHandler) UploadDocument(w http.ResponseWriter, r *http.Request) {
	if h.maxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	}

	up, err := h.readUpload(r)
	if err != nil {
		status := http.StatusBadRequest
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		writeJSON(w, status, uploadResponse{Status: "error", Message: err.Error()})
		return
	}

	res, err := h.pipeline.HandleUpload(r.Context(), up)
	if err != nil {
		writeJSON(w, http.StatusOK, uploadResponse{Status: "error", Message: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, uploadResponse{Status: "success", SessionID: res.SessionID})
}

func (h *DocumentHandler) readUpload(r *http.Request) (models.Upload, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	if mediaType == "multipart/form-data" {
		if err := r.ParseMultipartForm(multipartMemory); err != nil {
			return models.Upload{}, fmt.Errorf("invalid multipart body: %w", err)
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			return models.Upload{}, fmt.Errorf("missing file field: %w", err)
		}
		defer file.Close()

		data, err := io.ReadAll(file)
		if err != nil {
			return models.Upload{}, err
		}
		return models.Upload{
			Data:        data,
			FileName:    cleanFileName(header.Filename),
			ContentType: header.Header.Get("Content-Type"),
		}, nil
	}

	data, err := io.ReadAll(r.Body)
	if err != nil {
		return models.Upload{}, err
	}
	if len(data) == 0 {
		return models.Upload{}, errors.New("empty upload")
	}
	return models.Upload{
		Data:        data,
		FileName:    cleanFileName(r.URL.Query().Get("filename")),
		ContentType: r.Header.Get("Content-Type"),
	}, nil
}

func cleanFileName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	return filepath.Base(strings.ReplaceAll(name, "\\", "/"))
}
