package core

import (
	"context"
	"io"

	"github.com/markdave123-py/docchat/internal/models"
)

// AuditLogger accepts query records without blocking the caller. Delivery is best-effort.
type AuditLogger interface {
	Record(rec models.QueryRecord)
}

// AuditSink is one destination for query records (webhook, database).
type AuditSink interface {
	Name() string
	Deliver(ctx context.Context, rec models.QueryRecord) error
}

// ObjectClient defines interactions with S3 or any object storage.
type ObjectClient interface {
	UploadFile(ctx context.Context, bucket, key string, data io.Reader, contentType string) (url string, err error)
}

// DocumentArchive keeps a copy of uploaded originals.
type DocumentArchive interface {
	Archive(ctx context.Context, sessionID, fileName, contentType string, data []byte) (url string, err error)
}
