package services

import (
	"bytes"
	"context"
	"path"
	"strings"

	"github.com/markdave123-py/docchat/internal/core"
)

// DocumentService archives uploaded originals in object storage.
type DocumentService struct {
	storage core.ObjectClient
	bucket  string
}

var _ core.DocumentArchive = (*DocumentService)(nil)

func NewDocumentService(storage core.ObjectClient, bucket string) *DocumentService {
	return &DocumentService{storage: storage, bucket: bucket}
}

func (s *DocumentService) Archive(ctx context.Context, sessionID, fileName, contentType string, data []byte) (string, error) {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return s.storage.UploadFile(ctx, s.bucket, objectKey(sessionID, fileName), bytes.NewReader(data), contentType)
}

// objectKey creates a consistent S3 key layout.
func objectKey(sessionID, filename string) string {
	filename = path.Base(strings.ReplaceAll(strings.TrimSpace(filename), "\\", "/"))
	filename = strings.ReplaceAll(filename, " ", "_")
	if filename == "" || filename == "." || filename == "/" || filename == ".." {
		filename = "document"
	}
	return path.Join("uploads", sessionID, filename)
}
