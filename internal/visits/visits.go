// Package visits wires the generic mapping engine for visit mappings:
// a DPS visit id (string) against a NOMIS visit id (bigint). Visits carry no
// prisoner reference, so subject scans and merges are unsupported.
package visits

import (
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ministryofjustice/hmpps-nomis-mapping-service-sub003/internal/mapping"
)

const Kind = "visits"

type Record = mapping.Record[string, int64]

func NewMemoryStore() *mapping.MemoryStore[string, int64] {
	return mapping.NewMemoryStore(mapping.MemoryConfig[string, int64]{})
}

func NewPostgresStore(pool *pgxpool.Pool) *mapping.PostgresStore[string, int64] {
	return mapping.NewPostgresStore(pool, TableSpec())
}

func TableSpec() mapping.TableSpec[string, int64] {
	return mapping.TableSpec[string, int64]{
		Table:           "visit_mappings",
		Columns:         []string{"dps_visit_id", "nomis_visit_id", "label", "provenance", "created_at"},
		DPSWhere:        "dps_visit_id = $1",
		NomisWhere:      "nomis_visit_id = $1",
		DPSArgs:         func(id string) []any { return []any{id} },
		NomisArgs:       func(id int64) []any { return []any{id} },
		DPSConstraint:   "visit_mappings_pkey",
		NomisConstraint: "visit_mappings_nomis_visit_id_key",
		InsertArgs: func(rec Record) []any {
			return []any{rec.DPSID, rec.NomisID, rec.Label, string(rec.Provenance), rec.CreatedAt}
		},
		ScanRow: func(rows pgx.Rows) (Record, error) {
			var (
				rec  Record
				prov string
			)
			if err := rows.Scan(&rec.DPSID, &rec.NomisID, &rec.Label, &prov, &rec.CreatedAt); err != nil {
				return rec, err
			}
			rec.Provenance = mapping.Provenance(prov)
			return rec, nil
		},
	}
}
