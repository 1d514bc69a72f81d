package visits

import (
	"io"
	"log/slog"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"

	"github.com/ministryofjustice/hmpps-nomis-mapping-service-sub003/internal/mapping"
	"github.com/ministryofjustice/hmpps-nomis-mapping-service-sub003/pkg/testutil"
)

func noAuth(next http.Handler) http.Handler { return next }

type HandlerSuite struct {
	suite.Suite
	router chi.Router
}

func (s *HandlerSuite) SetupTest() {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := NewMemoryStore()
	handler := NewHandler(logger,
		mapping.NewRegistry(Kind, store, logger, nil),
		mapping.NewMigrationQuery(Kind, store, nil, 0),
	)
	s.router = chi.NewRouter()
	handler.Register(s.router, noAuth, noAuth)
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) create(dto MappingDTO) int {
	req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/mapping/visits/", dto)
	return testutil.DoRequest(s.router, req).Code
}

func (s *HandlerSuite) TestCreateAndFetch() {
	dto := MappingDTO{DPSVisitID: "dps-1", NomisVisitID: 100, Provenance: "MIGRATED", Label: "2024-03-01"}

	s.Run("create returns 201", func() {
		s.Equal(http.StatusCreated, s.create(dto))
	})

	s.Run("resubmitting the same mapping also returns 201", func() {
		s.Equal(http.StatusCreated, s.create(dto))
	})

	s.Run("fetch by nomis id", func() {
		req := testutil.NewRequest(s.T(), http.MethodGet, "/mapping/visits/nomis-id/100")
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatus(s.T(), rr, http.StatusOK)

		got := testutil.UnmarshalResponse[MappingDTO](s.T(), rr)
		s.Equal("dps-1", got.DPSVisitID)
		s.Equal("MIGRATED", got.Provenance)
		s.False(got.CreatedAt.IsZero())
	})

	s.Run("fetch by dps id", func() {
		req := testutil.NewRequest(s.T(), http.MethodGet, "/mapping/visits/dps-id/dps-1")
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatus(s.T(), rr, http.StatusOK)
	})
}

func (s *HandlerSuite) TestConflict() {
	s.Require().Equal(http.StatusCreated, s.create(MappingDTO{
		DPSVisitID: "dps-1", NomisVisitID: 100, Provenance: "MIGRATED",
	}))

	req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/mapping/visits/", MappingDTO{
		DPSVisitID: "dps-2", NomisVisitID: 100, Provenance: "MIGRATED",
	})
	rr := testutil.DoRequest(s.router, req)
	testutil.AssertStatus(s.T(), rr, http.StatusConflict)

	body := testutil.UnmarshalResponse[struct {
		Error    string `json:"error"`
		MoreInfo struct {
			Existing  MappingDTO `json:"existing"`
			Duplicate MappingDTO `json:"duplicate"`
		} `json:"moreInfo"`
	}](s.T(), rr)
	s.Equal("conflict", body.Error)
	s.Equal("dps-1", body.MoreInfo.Existing.DPSVisitID)
	s.Equal("dps-2", body.MoreInfo.Duplicate.DPSVisitID)
}

func (s *HandlerSuite) TestValidation() {
	s.Run("malformed body is a 400", func() {
		req := testutil.NewRequest(s.T(), http.MethodPost, "/mapping/visits/")
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatus(s.T(), rr, http.StatusBadRequest)
	})

	s.Run("missing identifiers are a 400", func() {
		s.Equal(http.StatusBadRequest, s.create(MappingDTO{DPSVisitID: "dps-1", Provenance: "MIGRATED"}))
	})

	s.Run("unknown provenance is a 400", func() {
		s.Equal(http.StatusBadRequest, s.create(MappingDTO{
			DPSVisitID: "dps-1", NomisVisitID: 100, Provenance: "GUESSED",
		}))
	})

	s.Run("non-numeric nomis id in the path is a 400", func() {
		req := testutil.NewRequest(s.T(), http.MethodGet, "/mapping/visits/nomis-id/abc")
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatus(s.T(), rr, http.StatusBadRequest)
	})
}

func (s *HandlerSuite) TestNotFound() {
	req := testutil.NewRequest(s.T(), http.MethodGet, "/mapping/visits/nomis-id/404")
	rr := testutil.DoRequest(s.router, req)
	testutil.AssertStatus(s.T(), rr, http.StatusNotFound)
	testutil.AssertJSONContains(s.T(), rr, "error", "not_found")
}

func (s *HandlerSuite) TestDelete() {
	s.Require().Equal(http.StatusCreated, s.create(MappingDTO{
		DPSVisitID: "dps-1", NomisVisitID: 100, Provenance: "MIGRATED",
	}))

	s.Run("delete returns 204", func() {
		req := testutil.NewRequest(s.T(), http.MethodDelete, "/mapping/visits/nomis-id/100")
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatus(s.T(), rr, http.StatusNoContent)
	})

	s.Run("repeat delete still returns 204", func() {
		req := testutil.NewRequest(s.T(), http.MethodDelete, "/mapping/visits/nomis-id/100")
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatus(s.T(), rr, http.StatusNoContent)
	})
}

func (s *HandlerSuite) TestMigrationListing() {
	dtos := make([]MappingDTO, 0, 5)
	for i := 0; i < 5; i++ {
		dtos = append(dtos, MappingDTO{
			DPSVisitID:   "dps-" + string(rune('a'+i)),
			NomisVisitID: int64(100 + i),
			Label:        "2024-03-01",
			Provenance:   "MIGRATED",
		})
	}
	req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/mapping/visits/batch", dtos)
	rr := testutil.DoRequest(s.router, req)
	testutil.AssertStatus(s.T(), rr, http.StatusCreated)

	s.Run("lists a page with totals", func() {
		req := testutil.NewRequest(s.T(), http.MethodGet, "/mapping/visits/migration-id/2024-03-01?page=0&size=2")
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatus(s.T(), rr, http.StatusOK)

		page := testutil.UnmarshalResponse[PageDTO](s.T(), rr)
		s.Len(page.Content, 2)
		s.Equal(int64(5), page.TotalElements)
		s.Equal(3, page.TotalPages)
	})

	s.Run("latest migrated mapping", func() {
		req := testutil.NewRequest(s.T(), http.MethodGet, "/mapping/visits/migrated/latest")
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatus(s.T(), rr, http.StatusOK)
	})

	s.Run("deleteAll onlyMigrated clears the batch", func() {
		req := testutil.NewRequest(s.T(), http.MethodDelete, "/mapping/visits/?onlyMigrated=true")
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatus(s.T(), rr, http.StatusNoContent)

		req = testutil.NewRequest(s.T(), http.MethodGet, "/mapping/visits/migration-id/2024-03-01")
		rr = testutil.DoRequest(s.router, req)
		page := testutil.UnmarshalResponse[PageDTO](s.T(), rr)
		s.Zero(page.TotalElements)
	})
}
