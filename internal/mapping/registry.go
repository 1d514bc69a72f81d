package mapping

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ministryofjustice/hmpps-nomis-mapping-service-sub003/internal/events"
	"github.com/ministryofjustice/hmpps-nomis-mapping-service-sub003/internal/mapping/metrics"
	pkgerrors "github.com/ministryofjustice/hmpps-nomis-mapping-service-sub003/pkg/errors"
	"github.com/ministryofjustice/hmpps-nomis-mapping-service-sub003/pkg/platform/sentinel"
)

// CreateOutcome distinguishes a first-time create from an idempotent
// re-submission. Both are success; callers translate both to 201.
type CreateOutcome int

const (
	OutcomeCreated CreateOutcome = iota
	OutcomeAlreadyMapped
)

// Registry orchestrates create/read/delete for one entity kind's mapping
// table. There is no in-process locking: "at most one mapping per key" rests
// entirely on the store's uniqueness enforcement, and a reported collision is
// re-fetched and classified rather than pre-checked.
type Registry[D comparable, N comparable] struct {
	kind      string
	store     Store[D, N]
	logger    *slog.Logger
	metrics   *metrics.Metrics
	publisher events.Publisher
	now       func() time.Time
}

type RegistryOption[D comparable, N comparable] func(*Registry[D, N])

// WithClock overrides the server-assigned creation timestamp source. Used by
// tests and batch replays; callers never supply timestamps on the record.
func WithClock[D comparable, N comparable](now func() time.Time) RegistryOption[D, N] {
	return func(r *Registry[D, N]) { r.now = now }
}

// WithPublisher attaches a telemetry publisher notified after successful
// mutations.
func WithPublisher[D comparable, N comparable](p events.Publisher) RegistryOption[D, N] {
	return func(r *Registry[D, N]) { r.publisher = p }
}

func NewRegistry[D comparable, N comparable](
	kind string,
	store Store[D, N],
	logger *slog.Logger,
	m *metrics.Metrics,
	opts ...RegistryOption[D, N],
) *Registry[D, N] {
	r := &Registry[D, N]{
		kind:      kind,
		store:     store,
		logger:    logger,
		metrics:   m,
		publisher: events.Noop{},
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Kind returns the entity kind this registry serves.
func (r *Registry[D, N]) Kind() string { return r.kind }

// Create persists the mapping exactly once. A collision reported by the
// store is re-fetched by whichever key collided and classified: an identical
// re-submission returns OutcomeAlreadyMapped with no mutation, a genuine
// duplicate fails with ConflictError carrying both rows. Insert-then-classify
// keeps concurrent creators honest; a check-then-insert would let two racers
// both believe they won.
func (r *Registry[D, N]) Create(ctx context.Context, rec Record[D, N]) (CreateOutcome, error) {
	start := time.Now()
	if len(rec.Label) > MaxLabelLen {
		return 0, pkgerrors.New(pkgerrors.CodeBadRequest,
			fmt.Sprintf("label must be at most %d characters", MaxLabelLen))
	}
	if !rec.Provenance.Valid() {
		return 0, pkgerrors.New(pkgerrors.CodeBadRequest,
			fmt.Sprintf("unknown provenance %q", rec.Provenance))
	}
	rec.CreatedAt = r.now()

	err := r.store.Insert(ctx, rec)
	switch {
	case err == nil:
		if r.metrics != nil {
			r.metrics.MappingsCreated.WithLabelValues(r.kind, string(rec.Provenance)).Inc()
			r.metrics.ObserveCreate(r.kind, start)
		}
		r.logger.InfoContext(ctx, "mapping created",
			"kind", r.kind,
			"dps_id", keyString(rec.DPSID),
			"nomis_id", keyString(rec.NomisID),
			"provenance", rec.Provenance,
		)
		r.publisher.MappingCreated(ctx, events.MappingCreated{
			Kind:       r.kind,
			DPSID:      keyString(rec.DPSID),
			NomisID:    keyString(rec.NomisID),
			SubjectRef: rec.SubjectRef,
			Label:      rec.Label,
			Provenance: string(rec.Provenance),
			OccurredAt: rec.CreatedAt,
		})
		return OutcomeCreated, nil

	case errors.Is(err, sentinel.ErrDuplicateNomisKey):
		existing, ferr := r.store.GetByNomisID(ctx, rec.NomisID)
		if ferr != nil {
			// The colliding row vanished between insert and fetch. The spec
			// for this engine is no internal retries; surface it.
			return 0, fmt.Errorf("refetch colliding %s mapping: %w", r.kind, ferr)
		}
		return r.classify(ctx, rec, existing)

	case errors.Is(err, sentinel.ErrDuplicateDPSKey):
		existing, ferr := r.store.GetByDPSID(ctx, rec.DPSID)
		if ferr != nil {
			return 0, fmt.Errorf("refetch colliding %s mapping: %w", r.kind, ferr)
		}
		return r.classify(ctx, rec, existing)

	default:
		return 0, fmt.Errorf("insert %s mapping: %w", r.kind, err)
	}
}

func (r *Registry[D, N]) classify(ctx context.Context, proposed, existing Record[D, N]) (CreateOutcome, error) {
	if Classify(proposed, existing) == ClassBenign {
		if r.metrics != nil {
			r.metrics.DuplicatesIgnored.WithLabelValues(r.kind).Inc()
		}
		r.logger.InfoContext(ctx, "mapping already exists, ignoring duplicate",
			"kind", r.kind,
			"dps_id", keyString(proposed.DPSID),
			"nomis_id", keyString(proposed.NomisID),
		)
		return OutcomeAlreadyMapped, nil
	}
	if r.metrics != nil {
		r.metrics.Conflicts.WithLabelValues(r.kind).Inc()
	}
	r.logger.WarnContext(ctx, "mapping conflict",
		"kind", r.kind,
		"existing_dps_id", keyString(existing.DPSID),
		"existing_nomis_id", keyString(existing.NomisID),
		"duplicate_dps_id", keyString(proposed.DPSID),
		"duplicate_nomis_id", keyString(proposed.NomisID),
	)
	return 0, &ConflictError[D, N]{Kind: r.kind, Existing: existing, Duplicate: proposed}
}

// CreateBatch applies Create per record and stops at the first conflict or
// store failure. Re-running a batch over already-created rows is a no-op.
// Kinds whose migration endpoint tolerates pre-existing rows implement that
// as DeleteAll(onlyMigrated)+CreateBatch at the caller layer; the registry
// has no special batch semantics.
func (r *Registry[D, N]) CreateBatch(ctx context.Context, recs []Record[D, N]) (int, error) {
	created := 0
	for _, rec := range recs {
		outcome, err := r.Create(ctx, rec)
		if err != nil {
			return created, err
		}
		if outcome == OutcomeCreated {
			created++
		}
	}
	return created, nil
}

func (r *Registry[D, N]) GetByDPSID(ctx context.Context, id D) (Record[D, N], error) {
	rec, err := r.store.GetByDPSID(ctx, id)
	if errors.Is(err, sentinel.ErrNotFound) {
		return rec, &NotFoundError{Kind: r.kind, Key: "dps id " + keyString(id)}
	}
	return rec, err
}

func (r *Registry[D, N]) GetByNomisID(ctx context.Context, id N) (Record[D, N], error) {
	rec, err := r.store.GetByNomisID(ctx, id)
	if errors.Is(err, sentinel.ErrNotFound) {
		return rec, &NotFoundError{Kind: r.kind, Key: "nomis id " + keyString(id)}
	}
	return rec, err
}

// DeleteByDPSID always succeeds when the row is absent; repeating a delete
// is a normal mode of operation for interrupted callers.
func (r *Registry[D, N]) DeleteByDPSID(ctx context.Context, id D) error {
	if err := r.store.DeleteByDPSID(ctx, id); err != nil {
		return fmt.Errorf("delete %s mapping: %w", r.kind, err)
	}
	if r.metrics != nil {
		r.metrics.MappingsDeleted.WithLabelValues(r.kind).Inc()
	}
	return nil
}

func (r *Registry[D, N]) DeleteByNomisID(ctx context.Context, id N) error {
	if err := r.store.DeleteByNomisID(ctx, id); err != nil {
		return fmt.Errorf("delete %s mapping: %w", r.kind, err)
	}
	if r.metrics != nil {
		r.metrics.MappingsDeleted.WithLabelValues(r.kind).Inc()
	}
	return nil
}

func (r *Registry[D, N]) DeleteAll(ctx context.Context, onlyMigrated bool) error {
	if err := r.store.DeleteAll(ctx, onlyMigrated); err != nil {
		return fmt.Errorf("delete all %s mappings: %w", r.kind, err)
	}
	r.logger.InfoContext(ctx, "mappings bulk deleted",
		"kind", r.kind,
		"only_migrated", onlyMigrated,
	)
	return nil
}

func keyString(v any) string {
	return fmt.Sprintf("%v", v)
}
