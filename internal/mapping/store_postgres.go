package mapping

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ministryofjustice/hmpps-nomis-mapping-service-sub003/pkg/platform/sentinel"
)

// TableSpec describes one entity kind's mapping table to the generic
// PostgreSQL store: where each key lives, how to bind and scan rows, and
// which unique constraints guard the two keys. The constraint names are load
// bearing: a 23505 violation is the only collision signal, and its
// constraint name decides whether the DPS or the NOMIS key collided.
type TableSpec[D comparable, N comparable] struct {
	Table   string
	Columns []string // select/insert list; InsertArgs and ScanRow follow this order

	DPSWhere   string // e.g. "dps_id = $1"
	NomisWhere string // e.g. "nomis_booking_id = $1 AND nomis_sequence = $2"
	DPSArgs    func(D) []any
	NomisArgs  func(N) []any
	InsertArgs func(Record[D, N]) []any
	ScanRow    func(rows pgx.Rows) (Record[D, N], error)

	DPSConstraint   string
	NomisConstraint string

	SubjectColumn string // empty when the kind has no subject reference
	SubjectOrder  string // ORDER BY fragment for subject scans
	GroupColumn   string // empty when the kind has no physical grouping
}

// PostgresStore is the production adapter: uniqueness is enforced by the
// table's constraints, never pre-checked here.
type PostgresStore[D comparable, N comparable] struct {
	pool *pgxpool.Pool
	spec TableSpec[D, N]
	cols string
}

func NewPostgresStore[D comparable, N comparable](pool *pgxpool.Pool, spec TableSpec[D, N]) *PostgresStore[D, N] {
	return &PostgresStore[D, N]{
		pool: pool,
		spec: spec,
		cols: strings.Join(spec.Columns, ", "),
	}
}

func (s *PostgresStore[D, N]) GetByDPSID(ctx context.Context, id D) (Record[D, N], error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s", s.cols, s.spec.Table, s.spec.DPSWhere)
	return s.queryOne(ctx, query, s.spec.DPSArgs(id)...)
}

func (s *PostgresStore[D, N]) GetByNomisID(ctx context.Context, id N) (Record[D, N], error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s", s.cols, s.spec.Table, s.spec.NomisWhere)
	return s.queryOne(ctx, query, s.spec.NomisArgs(id)...)
}

func (s *PostgresStore[D, N]) Insert(ctx context.Context, rec Record[D, N]) error {
	placeholders := make([]string, len(s.spec.Columns))
	for i := range placeholders {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		s.spec.Table, s.cols, strings.Join(placeholders, ", "))

	_, err := s.pool.Exec(ctx, query, s.spec.InsertArgs(rec)...)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			switch pgErr.ConstraintName {
			case s.spec.DPSConstraint:
				return sentinel.ErrDuplicateDPSKey
			default:
				// The NOMIS constraint, or an unnamed composite index; the
				// legacy key is the usual collision.
				return sentinel.ErrDuplicateNomisKey
			}
		}
		return fmt.Errorf("insert into %s: %w", s.spec.Table, err)
	}
	return nil
}

func (s *PostgresStore[D, N]) DeleteByDPSID(ctx context.Context, id D) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE %s", s.spec.Table, s.spec.DPSWhere)
	_, err := s.pool.Exec(ctx, query, s.spec.DPSArgs(id)...)
	if err != nil {
		return fmt.Errorf("delete from %s: %w", s.spec.Table, err)
	}
	return nil
}

func (s *PostgresStore[D, N]) DeleteByNomisID(ctx context.Context, id N) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE %s", s.spec.Table, s.spec.NomisWhere)
	_, err := s.pool.Exec(ctx, query, s.spec.NomisArgs(id)...)
	if err != nil {
		return fmt.Errorf("delete from %s: %w", s.spec.Table, err)
	}
	return nil
}

func (s *PostgresStore[D, N]) DeleteAll(ctx context.Context, onlyMigrated bool) error {
	query := fmt.Sprintf("DELETE FROM %s", s.spec.Table)
	args := []any{}
	if onlyMigrated {
		query += " WHERE provenance = $1"
		args = append(args, string(ProvenanceMigrated))
	}
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("delete all from %s: %w", s.spec.Table, err)
	}
	return nil
}

func (s *PostgresStore[D, N]) CountByLabel(ctx context.Context, label string, prov Provenance) (int64, error) {
	query := fmt.Sprintf("SELECT count(*) FROM %s WHERE label = $1 AND provenance = $2", s.spec.Table)
	var n int64
	if err := s.pool.QueryRow(ctx, query, label, string(prov)).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s by label: %w", s.spec.Table, err)
	}
	return n, nil
}

func (s *PostgresStore[D, N]) ScanByLabel(ctx context.Context, label string, prov Provenance, page PageRequest) ([]Record[D, N], error) {
	query := fmt.Sprintf(
		"SELECT %s FROM %s WHERE label = $1 AND provenance = $2 ORDER BY label DESC, created_at, %s LIMIT $3 OFFSET $4",
		s.cols, s.spec.Table, s.spec.Columns[0])
	size := page.Size
	if size <= 0 {
		size = 20
	}
	return s.queryMany(ctx, query, label, string(prov), size, page.offset())
}

func (s *PostgresStore[D, N]) LatestByCreated(ctx context.Context, prov Provenance) (Record[D, N], error) {
	// Tiebreak on the primary key so rows sharing a created_at tick resolve
	// deterministically across repeated calls.
	query := fmt.Sprintf(
		"SELECT %s FROM %s WHERE provenance = $1 ORDER BY created_at DESC, %s DESC LIMIT 1",
		s.cols, s.spec.Table, s.spec.Columns[0])
	return s.queryOne(ctx, query, string(prov))
}

func (s *PostgresStore[D, N]) ScanBySubject(ctx context.Context, subjectRef string) ([]Record[D, N], error) {
	if s.spec.SubjectColumn == "" {
		return nil, sentinel.ErrUnsupported
	}
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s = $1 ORDER BY %s",
		s.cols, s.spec.Table, s.spec.SubjectColumn, s.spec.SubjectOrder)
	return s.queryMany(ctx, query, subjectRef)
}

func (s *PostgresStore[D, N]) ReassignSubject(ctx context.Context, oldRef, newRef string) ([]Record[D, N], error) {
	if s.spec.SubjectColumn == "" {
		return nil, sentinel.ErrUnsupported
	}
	query := fmt.Sprintf("UPDATE %s SET %s = $1 WHERE %s = $2 RETURNING %s",
		s.spec.Table, s.spec.SubjectColumn, s.spec.SubjectColumn, s.cols)
	return s.queryMany(ctx, query, newRef, oldRef)
}

func (s *PostgresStore[D, N]) ReassignSubjectByGroup(ctx context.Context, groupKey int64, newRef string) ([]Record[D, N], error) {
	if s.spec.SubjectColumn == "" || s.spec.GroupColumn == "" {
		return nil, sentinel.ErrUnsupported
	}
	query := fmt.Sprintf("UPDATE %s SET %s = $1 WHERE %s = $2 RETURNING %s",
		s.spec.Table, s.spec.SubjectColumn, s.spec.GroupColumn, s.cols)
	return s.queryMany(ctx, query, newRef, groupKey)
}

func (s *PostgresStore[D, N]) queryOne(ctx context.Context, query string, args ...any) (Record[D, N], error) {
	var zero Record[D, N]
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return zero, fmt.Errorf("query %s: %w", s.spec.Table, err)
	}
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return zero, fmt.Errorf("query %s: %w", s.spec.Table, err)
		}
		return zero, sentinel.ErrNotFound
	}
	return s.spec.ScanRow(rows)
}

func (s *PostgresStore[D, N]) queryMany(ctx context.Context, query string, args ...any) ([]Record[D, N], error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", s.spec.Table, err)
	}
	defer rows.Close()
	out := []Record[D, N]{}
	for rows.Next() {
		rec, err := s.spec.ScanRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan %s row: %w", s.spec.Table, err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s rows: %w", s.spec.Table, err)
	}
	return out, nil
}
