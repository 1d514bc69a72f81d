package mapping

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/ministryofjustice/hmpps-nomis-mapping-service-sub003/pkg/platform/sentinel"
)

type MemoryStoreSuite struct {
	suite.Suite
	store *MemoryStore[string, int64]
}

func (s *MemoryStoreSuite) SetupTest() {
	s.store = NewMemoryStore(MemoryConfig[string, int64]{
		Subjects: true,
		GroupKey: func(rec Record[string, int64]) int64 { return rec.NomisID / 100 },
	})
}

func TestMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(MemoryStoreSuite))
}

func (s *MemoryStoreSuite) record(dps string, nomis int64) Record[string, int64] {
	return Record[string, int64]{
		DPSID:      dps,
		NomisID:    nomis,
		Provenance: ProvenanceMigrated,
		CreatedAt:  time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func (s *MemoryStoreSuite) TestLookup() {
	ctx := context.Background()

	s.Run("returns stored record by either key", func() {
		rec := s.record("dps-1", 100)
		s.Require().NoError(s.store.Insert(ctx, rec))

		byDPS, err := s.store.GetByDPSID(ctx, "dps-1")
		s.Require().NoError(err)
		s.Equal(rec, byDPS)

		byNomis, err := s.store.GetByNomisID(ctx, 100)
		s.Require().NoError(err)
		s.Equal(rec, byNomis)
	})

	s.Run("returns ErrNotFound for unknown keys", func() {
		_, err := s.store.GetByDPSID(ctx, "missing")
		s.Require().ErrorIs(err, sentinel.ErrNotFound)

		_, err = s.store.GetByNomisID(ctx, 999)
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *MemoryStoreSuite) TestUniqueness() {
	ctx := context.Background()
	s.Require().NoError(s.store.Insert(ctx, s.record("dps-1", 100)))

	s.Run("reports which key collided", func() {
		err := s.store.Insert(ctx, s.record("dps-2", 100))
		s.Require().ErrorIs(err, sentinel.ErrDuplicateNomisKey)

		err = s.store.Insert(ctx, s.record("dps-1", 200))
		s.Require().ErrorIs(err, sentinel.ErrDuplicateDPSKey)
	})

	s.Run("rejected insert leaves no partial index entries", func() {
		_ = s.store.Insert(ctx, s.record("dps-2", 100))
		_, err := s.store.GetByDPSID(ctx, "dps-2")
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *MemoryStoreSuite) TestDelete() {
	ctx := context.Background()

	s.Run("delete by one key removes both index entries", func() {
		s.Require().NoError(s.store.Insert(ctx, s.record("dps-1", 100)))
		s.Require().NoError(s.store.DeleteByDPSID(ctx, "dps-1"))

		_, err := s.store.GetByNomisID(ctx, 100)
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("deleting an absent row is not an error", func() {
		s.Require().NoError(s.store.DeleteByDPSID(ctx, "never-there"))
		s.Require().NoError(s.store.DeleteByNomisID(ctx, 12345))
	})

	s.Run("DeleteAll onlyMigrated keeps synchronised rows", func() {
		migrated := s.record("dps-m", 300)
		synced := s.record("dps-s", 400)
		synced.Provenance = ProvenanceDPSCreated
		s.Require().NoError(s.store.Insert(ctx, migrated))
		s.Require().NoError(s.store.Insert(ctx, synced))

		s.Require().NoError(s.store.DeleteAll(ctx, true))

		_, err := s.store.GetByDPSID(ctx, "dps-m")
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
		_, err = s.store.GetByDPSID(ctx, "dps-s")
		s.Require().NoError(err)
	})
}

func (s *MemoryStoreSuite) TestLabelScans() {
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := int64(0); i < 5; i++ {
		rec := s.record(string(rune('a'+i)), 100+i)
		rec.Label = "2024-03-01"
		rec.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		s.Require().NoError(s.store.Insert(ctx, rec))
	}
	other := s.record("other", 900)
	other.Label = "2024-02-01"
	s.Require().NoError(s.store.Insert(ctx, other))

	s.Run("count matches only the requested label", func() {
		n, err := s.store.CountByLabel(ctx, "2024-03-01", ProvenanceMigrated)
		s.Require().NoError(err)
		s.Equal(int64(5), n)
	})

	s.Run("scan pages in creation order", func() {
		page, err := s.store.ScanByLabel(ctx, "2024-03-01", ProvenanceMigrated, PageRequest{Page: 1, Size: 2})
		s.Require().NoError(err)
		s.Require().Len(page, 2)
		s.Equal(int64(102), page[0].NomisID)
		s.Equal(int64(103), page[1].NomisID)
	})

	s.Run("page past the end is empty, not an error", func() {
		page, err := s.store.ScanByLabel(ctx, "2024-03-01", ProvenanceMigrated, PageRequest{Page: 10, Size: 2})
		s.Require().NoError(err)
		s.Empty(page)
	})

	s.Run("latest by created picks the newest migrated row", func() {
		rec, err := s.store.LatestByCreated(ctx, ProvenanceMigrated)
		s.Require().NoError(err)
		s.Equal(int64(104), rec.NomisID)
	})
}

func (s *MemoryStoreSuite) TestSubjects() {
	ctx := context.Background()
	for i, subj := range []string{"A0001AA", "A0001AA", "B0002BB"} {
		rec := s.record(string(rune('x'+i)), int64(500+i))
		rec.SubjectRef = subj
		s.Require().NoError(s.store.Insert(ctx, rec))
	}

	s.Run("scan by subject returns only matching rows", func() {
		recs, err := s.store.ScanBySubject(ctx, "A0001AA")
		s.Require().NoError(err)
		s.Len(recs, 2)
	})

	s.Run("reassign moves every matching row and reports them", func() {
		moved, err := s.store.ReassignSubject(ctx, "A0001AA", "C0003CC")
		s.Require().NoError(err)
		s.Len(moved, 2)

		remaining, err := s.store.ScanBySubject(ctx, "A0001AA")
		s.Require().NoError(err)
		s.Empty(remaining)

		again, err := s.store.ReassignSubject(ctx, "A0001AA", "C0003CC")
		s.Require().NoError(err)
		s.Empty(again)
	})

	s.Run("reassign by group only touches the group", func() {
		moved, err := s.store.ReassignSubjectByGroup(ctx, 5, "D0004DD")
		s.Require().NoError(err)
		s.Len(moved, 3)
		for _, rec := range moved {
			s.Equal("D0004DD", rec.SubjectRef)
		}
	})

	s.Run("subject operations are unsupported when not configured", func() {
		plain := NewMemoryStore(MemoryConfig[string, int64]{})
		_, err := plain.ScanBySubject(ctx, "A0001AA")
		s.Require().ErrorIs(err, sentinel.ErrUnsupported)
	})
}

// TestMemoryStoreConcurrentScanAndReassign runs label scans against subject
// reassigns on a shared store. Scans must only ever see copies of the rows,
// so this passes under the race detector even while reassign rewrites
// subject references in place.
func TestMemoryStoreConcurrentScanAndReassign(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(MemoryConfig[string, int64]{Subjects: true})
	for i := int64(0); i < 50; i++ {
		require.NoError(t, store.Insert(ctx, Record[string, int64]{
			DPSID:      fmt.Sprintf("dps-%d", i),
			NomisID:    i,
			SubjectRef: "A0001AA",
			Label:      "2024-03-01",
			Provenance: ProvenanceMigrated,
			CreatedAt:  time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		}))
	}

	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			if _, err := store.ScanByLabel(ctx, "2024-03-01", ProvenanceMigrated, PageRequest{Page: 0, Size: 50}); err != nil {
				t.Errorf("concurrent scan by label failed: %v", err)
				return
			}
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			if _, err := store.ScanBySubject(ctx, "A0001AA"); err != nil {
				t.Errorf("concurrent scan by subject failed: %v", err)
				return
			}
		}
	}()
	go func() {
		defer wg.Done()
		refs := []string{"A0001AA", "B0002BB"}
		for i := 0; i < 200; i++ {
			if _, err := store.ReassignSubject(ctx, refs[i%2], refs[(i+1)%2]); err != nil {
				t.Errorf("concurrent reassign failed: %v", err)
				return
			}
		}
	}()
	wg.Wait()
}
