package dashboard

import (
	"context"

	"github.com/linnemanlabs/alertdash/internal/alert"
)

// Source supplies the dataset the dashboard summarizes.
type Source interface {
	// Records returns every record in insertion order. Callers own the slice.
	Records(ctx context.Context) ([]alert.Record, error)
}

// Store is a writable Source.
type Store interface {
	Source
	Get(ctx context.Context, id string) (*alert.Record, bool, error)
	Put(ctx context.Context, r *alert.Record) error
	// PutBatch stores records atomically: on error none of them are stored.
	PutBatch(ctx context.Context, records []alert.Record) error
	Count(ctx context.Context) (int, error)
}
