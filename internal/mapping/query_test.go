package mapping

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/ministryofjustice/hmpps-nomis-mapping-service-sub003/pkg/platform/sentinel"
)

type MigrationQuerySuite struct {
	suite.Suite
	store *MemoryStore[string, int64]
	query *MigrationQuery[string, int64]
}

func (s *MigrationQuerySuite) SetupTest() {
	s.store = NewMemoryStore(MemoryConfig[string, int64]{Subjects: true})
	s.query = NewMigrationQuery("visits", s.store, nil, 0)
}

func TestMigrationQuerySuite(t *testing.T) {
	suite.Run(t, new(MigrationQuerySuite))
}

func (s *MigrationQuerySuite) seedBatch(label string, n int) {
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		s.Require().NoError(s.store.Insert(context.Background(), Record[string, int64]{
			DPSID:      fmt.Sprintf("%s-dps-%d", label, i),
			NomisID:    int64(len(label)*1000 + i),
			Label:      label,
			Provenance: ProvenanceMigrated,
			CreatedAt:  base.Add(time.Duration(i) * time.Second),
		}))
	}
}

func (s *MigrationQuerySuite) TestListPage() {
	ctx := context.Background()
	s.seedBatch("2024-03-01", 7)

	s.Run("returns content and totals together", func() {
		page, err := s.query.ListPage(ctx, "2024-03-01", PageRequest{Page: 0, Size: 3})
		s.Require().NoError(err)
		s.Len(page.Content, 3)
		s.Equal(int64(7), page.TotalElements)
		s.Equal(3, page.TotalPages)
		s.Equal(0, page.Number)
	})

	s.Run("last page is partial", func() {
		page, err := s.query.ListPage(ctx, "2024-03-01", PageRequest{Page: 2, Size: 3})
		s.Require().NoError(err)
		s.Len(page.Content, 1)
	})

	s.Run("unknown label yields an empty page, not an error", func() {
		page, err := s.query.ListPage(ctx, "2099-01-01", PageRequest{Page: 0, Size: 3})
		s.Require().NoError(err)
		s.Empty(page.Content)
		s.Zero(page.TotalElements)
		s.Zero(page.TotalPages)
	})

	s.Run("pages are stable and non-overlapping", func() {
		seen := make(map[string]bool)
		for p := 0; p < 3; p++ {
			page, err := s.query.ListPage(ctx, "2024-03-01", PageRequest{Page: p, Size: 3})
			s.Require().NoError(err)
			for _, rec := range page.Content {
				s.False(seen[rec.DPSID], "record %s returned twice", rec.DPSID)
				seen[rec.DPSID] = true
			}
		}
		s.Len(seen, 7)
	})
}

func (s *MigrationQuerySuite) TestListPageExcludesOtherProvenance() {
	ctx := context.Background()
	s.seedBatch("2024-03-01", 2)
	s.Require().NoError(s.store.Insert(ctx, Record[string, int64]{
		DPSID:      "synced",
		NomisID:    42,
		Label:      "2024-03-01",
		Provenance: ProvenanceDPSCreated,
	}))

	page, err := s.query.ListPage(ctx, "2024-03-01", PageRequest{Page: 0, Size: 10})
	s.Require().NoError(err)
	s.Len(page.Content, 2)
	s.Equal(int64(2), page.TotalElements)
}

func (s *MigrationQuerySuite) TestLatestMigrated() {
	ctx := context.Background()

	s.Run("typed not-found when nothing was migrated", func() {
		_, err := s.query.LatestMigrated(ctx)
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("returns the newest migrated row", func() {
		s.seedBatch("2024-03-01", 3)
		rec, err := s.query.LatestMigrated(ctx)
		s.Require().NoError(err)
		s.Equal("2024-03-01-dps-2", rec.DPSID)
	})
}

func (s *MigrationQuerySuite) TestGroupedCount() {
	ctx := context.Background()
	s.seedBatch("2024-03-01", 150)

	s.Run("exact when no average is configured", func() {
		n, err := s.query.CountGroupedBySubject(ctx, "2024-03-01")
		s.Require().NoError(err)
		s.Equal(int64(150), n)
	})

	s.Run("approximate when an average is configured", func() {
		approx := NewMigrationQuery("transactions", s.store, nil, 75)
		n, err := approx.CountGroupedBySubject(ctx, "2024-03-01")
		s.Require().NoError(err)
		s.Equal(int64(2), n)
	})
}

func TestTotalPages(t *testing.T) {
	cases := []struct {
		total int64
		size  int
		want  int
	}{
		{0, 10, 0},
		{1, 10, 1},
		{10, 10, 1},
		{11, 10, 2},
		{5, 0, 1},
		{0, 0, 0},
	}
	for _, tc := range cases {
		if got := totalPages(tc.total, tc.size); got != tc.want {
			t.Errorf("totalPages(%d, %d) = %d, want %d", tc.total, tc.size, got, tc.want)
		}
	}
}
