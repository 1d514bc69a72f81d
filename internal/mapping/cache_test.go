package mapping

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/ministryofjustice/hmpps-nomis-mapping-service-sub003/pkg/platform/sentinel"
)

type fakeKV struct {
	data map[string]string
	gets int
	sets int
}

func newFakeKV() *fakeKV {
	return &fakeKV{data: make(map[string]string)}
}

func (f *fakeKV) Get(_ context.Context, key string) (string, error) {
	f.gets++
	if v, ok := f.data[key]; ok {
		return v, nil
	}
	return "", sentinel.ErrNotFound
}

func (f *fakeKV) Set(_ context.Context, key, value string, _ time.Duration) error {
	f.sets++
	f.data[key] = value
	return nil
}

func (f *fakeKV) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(f.data, key)
	}
	return nil
}

func (f *fakeKV) DelPattern(_ context.Context, pattern string) error {
	prefix := strings.TrimSuffix(pattern, "*")
	for key := range f.data {
		if strings.HasPrefix(key, prefix) {
			delete(f.data, key)
		}
	}
	return nil
}

type CachedStoreSuite struct {
	suite.Suite
	backing *MemoryStore[string, int64]
	kv      *fakeKV
	cached  *CachedStore[string, int64]
}

func (s *CachedStoreSuite) SetupTest() {
	s.backing = NewMemoryStore(MemoryConfig[string, int64]{Subjects: true})
	s.kv = newFakeKV()
	s.cached = NewCachedStore("transactions", s.backing, s.kv, time.Minute, discardLogger())
}

func TestCachedStoreSuite(t *testing.T) {
	suite.Run(t, new(CachedStoreSuite))
}

func (s *CachedStoreSuite) seed(dps string, nomis int64) {
	s.Require().NoError(s.backing.Insert(context.Background(), Record[string, int64]{
		DPSID:      dps,
		NomisID:    nomis,
		SubjectRef: "A0001AA",
		Provenance: ProvenanceMigrated,
	}))
}

func (s *CachedStoreSuite) TestReadThrough() {
	ctx := context.Background()
	s.seed("dps-1", 100)

	s.Run("first read fills both cache keys", func() {
		rec, err := s.cached.GetByDPSID(ctx, "dps-1")
		s.Require().NoError(err)
		s.Equal(int64(100), rec.NomisID)
		s.Equal(2, s.kv.sets)
	})

	s.Run("second read by the other key is served from cache", func() {
		sets := s.kv.sets
		rec, err := s.cached.GetByNomisID(ctx, 100)
		s.Require().NoError(err)
		s.Equal("dps-1", rec.DPSID)
		s.Equal(sets, s.kv.sets)
	})

	s.Run("misses pass through to the backing store", func() {
		_, err := s.cached.GetByDPSID(ctx, "missing")
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *CachedStoreSuite) TestInvalidation() {
	ctx := context.Background()
	s.seed("dps-1", 100)

	s.Run("delete by dps id flushes the nomis-side entry", func() {
		_, err := s.cached.GetByDPSID(ctx, "dps-1")
		s.Require().NoError(err)

		s.Require().NoError(s.cached.DeleteByDPSID(ctx, "dps-1"))

		_, err = s.cached.GetByNomisID(ctx, 100)
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("bulk delete flushes the whole kind", func() {
		s.seed("dps-2", 200)
		_, err := s.cached.GetByDPSID(ctx, "dps-2")
		s.Require().NoError(err)

		s.Require().NoError(s.cached.DeleteAll(ctx, false))
		s.Empty(s.kv.data)
	})
}

func (s *CachedStoreSuite) TestReassignInvalidation() {
	ctx := context.Background()
	s.seed("dps-1", 100)

	_, err := s.cached.GetByDPSID(ctx, "dps-1")
	s.Require().NoError(err)

	_, err = s.cached.ReassignSubject(ctx, "A0001AA", "B0002BB")
	s.Require().NoError(err)

	rec, err := s.cached.GetByDPSID(ctx, "dps-1")
	s.Require().NoError(err)
	s.Equal("B0002BB", rec.SubjectRef)
}

func (s *CachedStoreSuite) TestCorruptEntryFallsBack() {
	ctx := context.Background()
	s.seed("dps-1", 100)
	s.kv.data["mapping:transactions:dps:dps-1"] = "{not json"

	rec, err := s.cached.GetByDPSID(ctx, "dps-1")
	s.Require().NoError(err)
	s.Equal(int64(100), rec.NomisID)
}
