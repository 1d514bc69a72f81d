package mapping

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ministryofjustice/hmpps-nomis-mapping-service-sub003/internal/events"
	"github.com/ministryofjustice/hmpps-nomis-mapping-service-sub003/internal/mapping/metrics"
)

// MergeCoordinator propagates a prisoner-record merge across every mapping
// row referencing the old identity. Rewrites are single-pass and bulk; a
// secondary-key collision between a moved row and a row already held by the
// new subject is not detected here (the keys themselves never change, only
// the subject reference).
type MergeCoordinator[D comparable, N comparable] struct {
	kind      string
	store     Store[D, N]
	logger    *slog.Logger
	metrics   *metrics.Metrics
	publisher events.Publisher
}

func NewMergeCoordinator[D comparable, N comparable](
	kind string,
	store Store[D, N],
	logger *slog.Logger,
	m *metrics.Metrics,
	publisher events.Publisher,
) *MergeCoordinator[D, N] {
	if publisher == nil {
		publisher = events.Noop{}
	}
	return &MergeCoordinator[D, N]{kind: kind, store: store, logger: logger, metrics: m, publisher: publisher}
}

// MergeBySubject rewrites every row referencing oldRef to reference newRef
// and returns how many rows moved. Zero is success: merges arrive for
// prisoners with no rows of this kind all the time.
func (c *MergeCoordinator[D, N]) MergeBySubject(ctx context.Context, oldRef, newRef string) (int, error) {
	updated, err := c.store.ReassignSubject(ctx, oldRef, newRef)
	if err != nil {
		return 0, fmt.Errorf("merge %s mappings from %s to %s: %w", c.kind, oldRef, newRef, err)
	}
	c.finish(ctx, events.SubjectMerged{
		Kind:         c.kind,
		OldSubject:   oldRef,
		NewSubject:   newRef,
		UpdatedCount: len(updated),
	})
	return len(updated), nil
}

// MergeByGroup rewrites the subject on every row in one physical group (e.g.
// a booking that moved wholesale to another prisoner record) and returns the
// rewritten rows so the caller can report exactly what changed.
func (c *MergeCoordinator[D, N]) MergeByGroup(ctx context.Context, groupKey int64, newRef string) ([]Record[D, N], error) {
	updated, err := c.store.ReassignSubjectByGroup(ctx, groupKey, newRef)
	if err != nil {
		return nil, fmt.Errorf("merge %s mappings for group %d to %s: %w", c.kind, groupKey, newRef, err)
	}
	c.finish(ctx, events.SubjectMerged{
		Kind:         c.kind,
		GroupKey:     groupKey,
		NewSubject:   newRef,
		UpdatedCount: len(updated),
	})
	return updated, nil
}

func (c *MergeCoordinator[D, N]) finish(ctx context.Context, event events.SubjectMerged) {
	if c.metrics != nil {
		c.metrics.SubjectsMerged.WithLabelValues(c.kind).Inc()
	}
	c.logger.InfoContext(ctx, "subject merge applied",
		"kind", c.kind,
		"old_subject", event.OldSubject,
		"new_subject", event.NewSubject,
		"group_key", event.GroupKey,
		"updated", event.UpdatedCount,
	)
	c.publisher.SubjectMerged(ctx, event)
}
