// Package sentencing wires the mapping engine for sentence mappings. The
// NOMIS side is keyed by booking id plus sentence sequence, and rows carry
// the offender number so prisoner merges can be propagated either per
// offender or per booking.
package sentencing

import (
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ministryofjustice/hmpps-nomis-mapping-service-sub003/internal/mapping"
)

const Kind = "sentencing"

// NomisKey identifies a sentence on the NOMIS side.
type NomisKey struct {
	BookingID int64 `json:"nomisBookingId"`
	Sequence  int   `json:"nomisSequence"`
}

func (k NomisKey) String() string {
	return fmt.Sprintf("booking %d sequence %d", k.BookingID, k.Sequence)
}

type Record = mapping.Record[string, NomisKey]

func NewMemoryStore() *mapping.MemoryStore[string, NomisKey] {
	return mapping.NewMemoryStore(mapping.MemoryConfig[string, NomisKey]{
		Subjects: true,
		SubjectOrder: func(a, b Record) int {
			if a.NomisID.BookingID != b.NomisID.BookingID {
				if a.NomisID.BookingID < b.NomisID.BookingID {
					return -1
				}
				return 1
			}
			return a.NomisID.Sequence - b.NomisID.Sequence
		},
		GroupKey: func(rec Record) int64 { return rec.NomisID.BookingID },
	})
}

func NewPostgresStore(pool *pgxpool.Pool) *mapping.PostgresStore[string, NomisKey] {
	return mapping.NewPostgresStore(pool, TableSpec())
}

func TableSpec() mapping.TableSpec[string, NomisKey] {
	return mapping.TableSpec[string, NomisKey]{
		Table: "sentence_mappings",
		Columns: []string{
			"dps_sentence_id", "nomis_booking_id", "nomis_sequence",
			"offender_no", "label", "provenance", "created_at",
		},
		DPSWhere:        "dps_sentence_id = $1",
		NomisWhere:      "nomis_booking_id = $1 AND nomis_sequence = $2",
		DPSArgs:         func(id string) []any { return []any{id} },
		NomisArgs:       func(k NomisKey) []any { return []any{k.BookingID, k.Sequence} },
		DPSConstraint:   "sentence_mappings_pkey",
		NomisConstraint: "sentence_mappings_nomis_key",
		SubjectColumn:   "offender_no",
		SubjectOrder:    "nomis_booking_id, nomis_sequence",
		GroupColumn:     "nomis_booking_id",
		InsertArgs: func(rec Record) []any {
			return []any{
				rec.DPSID, rec.NomisID.BookingID, rec.NomisID.Sequence,
				rec.SubjectRef, rec.Label, string(rec.Provenance), rec.CreatedAt,
			}
		},
		ScanRow: func(rows pgx.Rows) (Record, error) {
			var (
				rec  Record
				prov string
			)
			err := rows.Scan(
				&rec.DPSID, &rec.NomisID.BookingID, &rec.NomisID.Sequence,
				&rec.SubjectRef, &rec.Label, &prov, &rec.CreatedAt,
			)
			if err != nil {
				return rec, err
			}
			rec.Provenance = mapping.Provenance(prov)
			return rec, nil
		},
	}
}
