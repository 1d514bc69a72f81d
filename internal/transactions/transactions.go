// Package transactions wires the mapping engine for financial transaction
// mappings. This is the highest-volume kind: lookups go through a Redis
// read-through cache when one is configured, and per-prisoner batch counts
// use the approximate total/average formula rather than exact grouping.
package transactions

import (
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ministryofjustice/hmpps-nomis-mapping-service-sub003/internal/mapping"
)

const Kind = "transactions"

type Record = mapping.Record[string, int64]

func memoryConfig() mapping.MemoryConfig[string, int64] {
	return mapping.MemoryConfig[string, int64]{
		Subjects: true,
		SubjectOrder: func(a, b Record) int {
			switch {
			case a.NomisID < b.NomisID:
				return -1
			case a.NomisID > b.NomisID:
				return 1
			}
			return 0
		},
	}
}

func NewMemoryStore() *mapping.MemoryStore[string, int64] {
	return mapping.NewMemoryStore(memoryConfig())
}

func NewPostgresStore(pool *pgxpool.Pool) *mapping.PostgresStore[string, int64] {
	return mapping.NewPostgresStore(pool, TableSpec())
}

// NewCachedStore layers the lookup cache over any transaction store.
func NewCachedStore(store mapping.Store[string, int64], kv mapping.KV, ttl time.Duration, logger *slog.Logger) *mapping.CachedStore[string, int64] {
	return mapping.NewCachedStore(Kind, store, kv, ttl, logger)
}

func TableSpec() mapping.TableSpec[string, int64] {
	return mapping.TableSpec[string, int64]{
		Table:           "transaction_mappings",
		Columns:         []string{"dps_transaction_id", "nomis_transaction_id", "offender_no", "label", "provenance", "created_at"},
		DPSWhere:        "dps_transaction_id = $1",
		NomisWhere:      "nomis_transaction_id = $1",
		DPSArgs:         func(id string) []any { return []any{id} },
		NomisArgs:       func(id int64) []any { return []any{id} },
		DPSConstraint:   "transaction_mappings_pkey",
		NomisConstraint: "transaction_mappings_nomis_transaction_id_key",
		SubjectColumn:   "offender_no",
		SubjectOrder:    "nomis_transaction_id",
		InsertArgs: func(rec Record) []any {
			return []any{rec.DPSID, rec.NomisID, rec.SubjectRef, rec.Label, string(rec.Provenance), rec.CreatedAt}
		},
		ScanRow: func(rows pgx.Rows) (Record, error) {
			var (
				rec  Record
				prov string
			)
			if err := rows.Scan(&rec.DPSID, &rec.NomisID, &rec.SubjectRef, &rec.Label, &prov, &rec.CreatedAt); err != nil {
				return rec, err
			}
			rec.Provenance = mapping.Provenance(prov)
			return rec, nil
		},
	}
}
