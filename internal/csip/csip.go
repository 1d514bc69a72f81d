// Package csip wires the mapping engine for CSIP report mappings: a DPS
// report id (UUID) against a NOMIS CSIP id (bigint), with the prisoner
// number carried for merge propagation.
package csip

import (
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ministryofjustice/hmpps-nomis-mapping-service-sub003/internal/mapping"
)

const Kind = "csip"

type Record = mapping.Record[uuid.UUID, int64]

func NewMemoryStore() *mapping.MemoryStore[uuid.UUID, int64] {
	return mapping.NewMemoryStore(mapping.MemoryConfig[uuid.UUID, int64]{
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
	})
}

func NewPostgresStore(pool *pgxpool.Pool) *mapping.PostgresStore[uuid.UUID, int64] {
	return mapping.NewPostgresStore(pool, TableSpec())
}

func TableSpec() mapping.TableSpec[uuid.UUID, int64] {
	return mapping.TableSpec[uuid.UUID, int64]{
		Table:           "csip_mappings",
		Columns:         []string{"dps_report_id", "nomis_csip_id", "offender_no", "label", "provenance", "created_at"},
		DPSWhere:        "dps_report_id = $1",
		NomisWhere:      "nomis_csip_id = $1",
		DPSArgs:         func(id uuid.UUID) []any { return []any{id} },
		NomisArgs:       func(id int64) []any { return []any{id} },
		DPSConstraint:   "csip_mappings_pkey",
		NomisConstraint: "csip_mappings_nomis_csip_id_key",
		SubjectColumn:   "offender_no",
		SubjectOrder:    "nomis_csip_id",
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
