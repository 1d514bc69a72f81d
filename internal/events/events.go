// Package events defines the telemetry observer the registry notifies after
// successful mutations. Publishing is strictly best-effort: a publisher
// failure must never affect the outcome of the mutation that triggered it.
package events

import (
	"context"
	"time"
)

// MappingCreated describes a newly persisted mapping row. Keys are carried as
// strings so one publisher serves every entity kind.
type MappingCreated struct {
	EventID    string    `json:"eventId"`
	Kind       string    `json:"kind"`
	DPSID      string    `json:"dpsId"`
	NomisID    string    `json:"nomisId"`
	SubjectRef string    `json:"subjectRef,omitempty"`
	Label      string    `json:"label,omitempty"`
	Provenance string    `json:"provenance"`
	OccurredAt time.Time `json:"occurredAt"`
}

// SubjectMerged describes a completed subject-reference merge.
type SubjectMerged struct {
	EventID      string    `json:"eventId"`
	Kind         string    `json:"kind"`
	OldSubject   string    `json:"oldSubject,omitempty"`
	NewSubject   string    `json:"newSubject"`
	GroupKey     int64     `json:"groupKey,omitempty"`
	UpdatedCount int       `json:"updatedCount"`
	OccurredAt   time.Time `json:"occurredAt"`
}

// Publisher receives registry telemetry. Implementations must not block the
// caller beyond a local enqueue and must swallow their own failures.
type Publisher interface {
	MappingCreated(ctx context.Context, event MappingCreated)
	SubjectMerged(ctx context.Context, event SubjectMerged)
}

// Noop discards all events. Used when no broker is configured and in tests
// that do not assert on telemetry.
type Noop struct{}

func (Noop) MappingCreated(context.Context, MappingCreated) {}
func (Noop) SubjectMerged(context.Context, SubjectMerged)   {}
