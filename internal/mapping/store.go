package mapping

import (
	"context"
)

// Store is the narrow persistence port for one entity kind's mapping table.
// Implementations must enforce uniqueness of both keys themselves (a unique
// constraint, not a pre-check): Insert reports a collision by returning
// sentinel.ErrDuplicateDPSKey or sentinel.ErrDuplicateNomisKey, and that
// report is the single source of truth for conflict detection under
// concurrent creators.
//
// Lookups return sentinel.ErrNotFound when no row matches. Deletes are
// idempotent: deleting an absent key is not an error.
type Store[D comparable, N comparable] interface {
	GetByDPSID(ctx context.Context, id D) (Record[D, N], error)
	GetByNomisID(ctx context.Context, id N) (Record[D, N], error)

	Insert(ctx context.Context, rec Record[D, N]) error

	DeleteByDPSID(ctx context.Context, id D) error
	DeleteByNomisID(ctx context.Context, id N) error
	// DeleteAll removes every row, or only MIGRATED rows when onlyMigrated
	// is set.
	DeleteAll(ctx context.Context, onlyMigrated bool) error

	// CountByLabel and ScanByLabel filter on (label, provenance). Scan order
	// is label descending, then creation time, so repeated reads of a
	// completed batch are deterministic.
	CountByLabel(ctx context.Context, label string, prov Provenance) (int64, error)
	ScanByLabel(ctx context.Context, label string, prov Provenance, page PageRequest) ([]Record[D, N], error)

	// LatestByCreated returns the most recently created row with the given
	// provenance, or sentinel.ErrNotFound when none exists.
	LatestByCreated(ctx context.Context, prov Provenance) (Record[D, N], error)

	// ScanBySubject returns every row referencing the subject, in the
	// kind-specific natural order. Kinds without a subject reference return
	// sentinel.ErrUnsupported.
	ScanBySubject(ctx context.Context, subjectRef string) ([]Record[D, N], error)

	// ReassignSubject rewrites subjectRef on every row referencing oldRef and
	// returns the rewritten rows. Zero matches is success with an empty slice.
	ReassignSubject(ctx context.Context, oldRef, newRef string) ([]Record[D, N], error)
	// ReassignSubjectByGroup rewrites subjectRef on every row belonging to
	// the physical group (e.g. a booking id) for kinds that define one;
	// others return sentinel.ErrUnsupported.
	ReassignSubjectByGroup(ctx context.Context, groupKey int64, newRef string) ([]Record[D, N], error)
}
