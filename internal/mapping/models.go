// Package mapping implements the generic NOMIS↔DPS mapping registry engine.
// Each entity kind (visits, CSIP reports, sentences, transactions, ...)
// instantiates the same engine with its own key types and table layout
// instead of re-implementing create/lookup/migration/merge logic per kind.
package mapping

import (
	"time"
)

// Provenance records which system originated a mapping row.
type Provenance string

const (
	ProvenanceMigrated     Provenance = "MIGRATED"
	ProvenanceNomisCreated Provenance = "NOMIS_CREATED"
	ProvenanceDPSCreated   Provenance = "DPS_CREATED"
)

// Valid reports whether p is one of the known provenance values.
func (p Provenance) Valid() bool {
	switch p {
	case ProvenanceMigrated, ProvenanceNomisCreated, ProvenanceDPSCreated:
		return true
	}
	return false
}

// MaxLabelLen bounds the migration label column.
const MaxLabelLen = 20

// Record is one mapping row: a DPS identifier, the NOMIS identifier it
// replaces, and provenance. D is the DPS key type, N the NOMIS key type;
// N may be a composite struct for kinds keyed by e.g. booking id + sequence.
type Record[D comparable, N comparable] struct {
	DPSID      D
	NomisID    N
	SubjectRef string // prisoner number for kinds that track one, else empty
	Label      string // migration batch label, empty outside migrations
	Provenance Provenance
	CreatedAt  time.Time
}

// SameKeys reports whether two records describe the same logical mapping,
// i.e. every component of both keys is equal. Non-key payload is ignored.
func (r Record[D, N]) SameKeys(other Record[D, N]) bool {
	return r.DPSID == other.DPSID && r.NomisID == other.NomisID
}

// PageRequest selects one page of a migration batch listing. Page is
// zero-based.
type PageRequest struct {
	Page int
	Size int
}

func (p PageRequest) offset() int {
	if p.Page < 1 {
		return 0
	}
	return p.Page * p.Size
}

// Page composes the content of one page with the independently computed
// total. The two reads are not transactional, so the total can lag the
// content while a batch is still being written.
type Page[D comparable, N comparable] struct {
	Content       []Record[D, N]
	Number        int
	Size          int
	TotalElements int64
	TotalPages    int
}
