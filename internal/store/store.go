// Package store persists recorded anomalies and the set of subjects that
// have ever been tracked.
package store

import (
	"context"
	"errors"
	"time"

	"safety-tracker/internal/models"
)

var ErrNotFound = errors.New("anomaly record not found")

type AnomalyStore interface {
	// Touch registers the subject as seen. It is idempotent.
	Touch(ctx context.Context, subjectID string) error
	Seen(ctx context.Context, subjectID string) (bool, error)
	// Record stores rec and returns its id. The subject is touched as well.
	Record(ctx context.Context, rec models.AnomalyRecord) (int64, error)
	// CountSince counts the subject's records with Timestamp >= since.
	CountSince(ctx context.Context, subjectID string, since time.Time) (int, error)
	// ListUnresolved returns unresolved records, newest first.
	ListUnresolved(ctx context.Context) ([]models.AnomalyRecord, error)
	Resolve(ctx context.Context, id int64, notes string) error
	// DeleteForSubject removes every record of the subject and reports how
	// many were deleted. The subject stays registered.
	DeleteForSubject(ctx context.Context, subjectID string) (int64, error)
	Close() error
}
