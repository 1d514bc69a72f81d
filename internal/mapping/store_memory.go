package mapping

import (
	"context"
	"sort"
	"sync"

	"github.com/ministryofjustice/hmpps-nomis-mapping-service-sub003/pkg/platform/sentinel"
)

// MemoryConfig carries the per-kind behaviour the generic in-memory store
// cannot derive from the key types alone.
type MemoryConfig[D comparable, N comparable] struct {
	// Subjects enables subject-reference scans and merges for this kind.
	Subjects bool
	// SubjectOrder is the kind's natural ordering for ScanBySubject (e.g.
	// booking id then sequence). Falls back to insertion order when nil.
	SubjectOrder func(a, b Record[D, N]) int
	// GroupKey extracts the physical group key (e.g. booking id) from a row.
	// Nil when the kind has no physical grouping.
	GroupKey func(Record[D, N]) int64
}

type memoryEntry[D comparable, N comparable] struct {
	rec Record[D, N]
	seq uint64 // insertion order, tie-break for deterministic scans
}

// MemoryStore keeps mapping rows in maps keyed by both identifiers. It is
// used by unit tests and local runs; the maps-plus-RWMutex shape keeps it
// obviously correct rather than fast.
type MemoryStore[D comparable, N comparable] struct {
	mu      sync.RWMutex
	cfg     MemoryConfig[D, N]
	byDPS   map[D]*memoryEntry[D, N]
	byNomis map[N]*memoryEntry[D, N]
	nextSeq uint64
}

func NewMemoryStore[D comparable, N comparable](cfg MemoryConfig[D, N]) *MemoryStore[D, N] {
	return &MemoryStore[D, N]{
		cfg:     cfg,
		byDPS:   make(map[D]*memoryEntry[D, N]),
		byNomis: make(map[N]*memoryEntry[D, N]),
	}
}

func (s *MemoryStore[D, N]) GetByDPSID(_ context.Context, id D) (Record[D, N], error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if e, ok := s.byDPS[id]; ok {
		return e.rec, nil
	}
	var zero Record[D, N]
	return zero, sentinel.ErrNotFound
}

func (s *MemoryStore[D, N]) GetByNomisID(_ context.Context, id N) (Record[D, N], error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if e, ok := s.byNomis[id]; ok {
		return e.rec, nil
	}
	var zero Record[D, N]
	return zero, sentinel.ErrNotFound
}

func (s *MemoryStore[D, N]) Insert(_ context.Context, rec Record[D, N]) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.byNomis[rec.NomisID]; taken {
		return sentinel.ErrDuplicateNomisKey
	}
	if _, taken := s.byDPS[rec.DPSID]; taken {
		return sentinel.ErrDuplicateDPSKey
	}
	e := &memoryEntry[D, N]{rec: rec, seq: s.nextSeq}
	s.nextSeq++
	s.byDPS[rec.DPSID] = e
	s.byNomis[rec.NomisID] = e
	return nil
}

func (s *MemoryStore[D, N]) DeleteByDPSID(_ context.Context, id D) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.byDPS[id]; ok {
		delete(s.byDPS, id)
		delete(s.byNomis, e.rec.NomisID)
	}
	return nil
}

func (s *MemoryStore[D, N]) DeleteByNomisID(_ context.Context, id N) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.byNomis[id]; ok {
		delete(s.byNomis, id)
		delete(s.byDPS, e.rec.DPSID)
	}
	return nil
}

func (s *MemoryStore[D, N]) DeleteAll(_ context.Context, onlyMigrated bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, e := range s.byDPS {
		if onlyMigrated && e.rec.Provenance != ProvenanceMigrated {
			continue
		}
		delete(s.byDPS, id)
		delete(s.byNomis, e.rec.NomisID)
	}
	return nil
}

func (s *MemoryStore[D, N]) CountByLabel(_ context.Context, label string, prov Provenance) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var n int64
	for _, e := range s.byDPS {
		if e.rec.Label == label && e.rec.Provenance == prov {
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore[D, N]) ScanByLabel(_ context.Context, label string, prov Provenance, page PageRequest) ([]Record[D, N], error) {
	// Copy matching rows while the lock is held: entries are mutated in place
	// by the reassign operations, so sorting must only ever see copies.
	s.mu.RLock()
	matches := make([]memoryEntry[D, N], 0)
	for _, e := range s.byDPS {
		if e.rec.Label == label && e.rec.Provenance == prov {
			matches = append(matches, *e)
		}
	}
	s.mu.RUnlock()

	sort.Slice(matches, func(i, j int) bool {
		a, b := matches[i], matches[j]
		if a.rec.Label != b.rec.Label {
			return a.rec.Label > b.rec.Label
		}
		if !a.rec.CreatedAt.Equal(b.rec.CreatedAt) {
			return a.rec.CreatedAt.Before(b.rec.CreatedAt)
		}
		return a.seq < b.seq
	})

	start := page.offset()
	if start >= len(matches) {
		return []Record[D, N]{}, nil
	}
	end := start + page.Size
	if page.Size <= 0 || end > len(matches) {
		end = len(matches)
	}
	out := make([]Record[D, N], 0, end-start)
	for _, e := range matches[start:end] {
		out = append(out, e.rec)
	}
	return out, nil
}

func (s *MemoryStore[D, N]) LatestByCreated(_ context.Context, prov Provenance) (Record[D, N], error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var latest *memoryEntry[D, N]
	for _, e := range s.byDPS {
		if e.rec.Provenance != prov {
			continue
		}
		if latest == nil ||
			e.rec.CreatedAt.After(latest.rec.CreatedAt) ||
			(e.rec.CreatedAt.Equal(latest.rec.CreatedAt) && e.seq > latest.seq) {
			latest = e
		}
	}
	if latest == nil {
		var zero Record[D, N]
		return zero, sentinel.ErrNotFound
	}
	return latest.rec, nil
}

func (s *MemoryStore[D, N]) ScanBySubject(_ context.Context, subjectRef string) ([]Record[D, N], error) {
	if !s.cfg.Subjects {
		return nil, sentinel.ErrUnsupported
	}
	s.mu.RLock()
	matches := make([]memoryEntry[D, N], 0)
	for _, e := range s.byDPS {
		if e.rec.SubjectRef == subjectRef {
			matches = append(matches, *e)
		}
	}
	s.mu.RUnlock()
	return s.ordered(matches), nil
}

func (s *MemoryStore[D, N]) ReassignSubject(_ context.Context, oldRef, newRef string) ([]Record[D, N], error) {
	if !s.cfg.Subjects {
		return nil, sentinel.ErrUnsupported
	}
	return s.reassign(func(rec Record[D, N]) bool { return rec.SubjectRef == oldRef }, newRef), nil
}

func (s *MemoryStore[D, N]) ReassignSubjectByGroup(_ context.Context, groupKey int64, newRef string) ([]Record[D, N], error) {
	if !s.cfg.Subjects || s.cfg.GroupKey == nil {
		return nil, sentinel.ErrUnsupported
	}
	return s.reassign(func(rec Record[D, N]) bool { return s.cfg.GroupKey(rec) == groupKey }, newRef), nil
}

func (s *MemoryStore[D, N]) reassign(match func(Record[D, N]) bool, newRef string) []Record[D, N] {
	s.mu.Lock()
	updated := make([]memoryEntry[D, N], 0)
	for _, e := range s.byDPS {
		if match(e.rec) {
			e.rec.SubjectRef = newRef
			updated = append(updated, *e)
		}
	}
	s.mu.Unlock()
	return s.ordered(updated)
}

func (s *MemoryStore[D, N]) ordered(entries []memoryEntry[D, N]) []Record[D, N] {
	sort.Slice(entries, func(i, j int) bool {
		if s.cfg.SubjectOrder != nil {
			if c := s.cfg.SubjectOrder(entries[i].rec, entries[j].rec); c != 0 {
				return c < 0
			}
		}
		return entries[i].seq < entries[j].seq
	})
	out := make([]Record[D, N], 0, len(entries))
	for _, e := range entries {
		out = append(out, e.rec)
	}
	return out
}
