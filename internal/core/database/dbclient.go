package db

import (
	"context"

	"github.com/markdave123-py/docchat/internal/models"
)

// DbClient is the persistence surface for query audit records.
type DbClient interface {
	InsertQueryRecord(ctx context.Context, rec models.QueryRecord) error
	Close() error
}
