// Package cache keeps the per-subject sliding windows of recent location
// samples together with the session markers that gate ingestion.
package cache

import (
	"context"

	"safety-tracker/internal/models"
)

// DefaultWindowSize is the number of samples retained per subject.
const DefaultWindowSize = 30

// WindowStore is the ephemeral per-subject state. Implementations must make
// Append atomic per subject: concurrent appends never lose or duplicate an
// entry and never expose a window larger than the configured size.
type WindowStore interface {
	// Start creates the session marker and an empty window.
	Start(ctx context.Context, subjectID string) error
	// Append adds sample, trims to the newest entries and returns the
	// resulting window. Order of the returned slice is insertion order.
	Append(ctx context.Context, subjectID string, sample models.LocationSample) ([]models.LocationSample, error)
	Snapshot(ctx context.Context, subjectID string) ([]models.LocationSample, error)
	// Reset removes both the window and the session marker.
	Reset(ctx context.Context, subjectID string) error
	HasActiveSession(ctx context.Context, subjectID string) (bool, error)
	Close() error
}
