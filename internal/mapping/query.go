package mapping

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ministryofjustice/hmpps-nomis-mapping-service-sub003/internal/mapping/metrics"
	"github.com/ministryofjustice/hmpps-nomis-mapping-service-sub003/pkg/platform/sentinel"
)

// MigrationQuery answers migration-batch questions for one entity kind.
// Batches are write-once and queried after completion, so the page total and
// page content are computed as two independent reads rather than inside one
// read transaction; a row landing between the two reads can skew the total
// until the batch settles, which is accepted.
type MigrationQuery[D comparable, N comparable] struct {
	kind    string
	store   Store[D, N]
	metrics *metrics.Metrics
	// avgRowsPerSubject tunes the approximate grouped count for high-volume
	// kinds. Zero disables the approximation (grouping falls back to exact
	// counting by the caller).
	avgRowsPerSubject int64
}

func NewMigrationQuery[D comparable, N comparable](
	kind string,
	store Store[D, N],
	m *metrics.Metrics,
	avgRowsPerSubject int64,
) *MigrationQuery[D, N] {
	return &MigrationQuery[D, N]{kind: kind, store: store, metrics: m, avgRowsPerSubject: avgRowsPerSubject}
}

// ListPage fetches one page of a migration batch plus the batch total. The
// count and the scan are independent reads and run concurrently; this is the
// one place concurrency buys latency rather than correctness.
func (q *MigrationQuery[D, N]) ListPage(ctx context.Context, label string, page PageRequest) (Page[D, N], error) {
	start := time.Now()
	var (
		total   int64
		content []Record[D, N]
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		total, err = q.store.CountByLabel(gctx, label, ProvenanceMigrated)
		return err
	})
	g.Go(func() error {
		var err error
		content, err = q.store.ScanByLabel(gctx, label, ProvenanceMigrated, page)
		return err
	})
	if err := g.Wait(); err != nil {
		return Page[D, N]{}, err
	}
	if q.metrics != nil {
		q.metrics.ObserveListPage(q.kind, start)
	}
	return Page[D, N]{
		Content:       content,
		Number:        page.Page,
		Size:          page.Size,
		TotalElements: total,
		TotalPages:    totalPages(total, page.Size),
	}, nil
}

// LatestMigrated returns the most recently created MIGRATED row, or a typed
// not-found when this kind has never been migrated.
func (q *MigrationQuery[D, N]) LatestMigrated(ctx context.Context) (Record[D, N], error) {
	rec, err := q.store.LatestByCreated(ctx, ProvenanceMigrated)
	if errors.Is(err, sentinel.ErrNotFound) {
		return rec, &NotFoundError{Kind: q.kind, Key: "latest migrated mapping"}
	}
	return rec, err
}

// CountByLabel is the exact batch size.
func (q *MigrationQuery[D, N]) CountByLabel(ctx context.Context, label string) (int64, error) {
	return q.store.CountByLabel(ctx, label, ProvenanceMigrated)
}

// CountGroupedBySubject estimates how many distinct subjects a batch covers
// as totalRows / avgRowsPerSubject. Exact grouping is prohibitively slow for
// the high-volume kinds this is used on, and batch reporting tolerates the
// error; kinds without a configured average get the exact row count.
func (q *MigrationQuery[D, N]) CountGroupedBySubject(ctx context.Context, label string) (int64, error) {
	total, err := q.store.CountByLabel(ctx, label, ProvenanceMigrated)
	if err != nil {
		return 0, err
	}
	if q.avgRowsPerSubject <= 1 {
		return total, nil
	}
	return total / q.avgRowsPerSubject, nil
}

func totalPages(total int64, size int) int {
	if size <= 0 {
		if total > 0 {
			return 1
		}
		return 0
	}
	pages := total / int64(size)
	if total%int64(size) != 0 {
		pages++
	}
	return int(pages)
}
