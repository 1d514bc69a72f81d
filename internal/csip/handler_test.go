package csip

import (
	"io"
	"log/slog"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
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
		mapping.NewMergeCoordinator(Kind, store, logger, nil, nil),
	)
	s.router = chi.NewRouter()
	handler.Register(s.router, noAuth, noAuth)
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) TestCreateAndFetch() {
	reportID := uuid.NewString()
	dto := MappingDTO{DPSReportID: reportID, NomisCSIPID: 100, OffenderNo: "A0001AA", Provenance: "MIGRATED"}

	req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/mapping/csip/", dto)
	rr := testutil.DoRequest(s.router, req)
	testutil.AssertStatus(s.T(), rr, http.StatusCreated)

	s.Run("fetch by report uuid", func() {
		req := testutil.NewRequest(s.T(), http.MethodGet, "/mapping/csip/dps-report-id/"+reportID)
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatus(s.T(), rr, http.StatusOK)

		got := testutil.UnmarshalResponse[MappingDTO](s.T(), rr)
		s.Equal(reportID, got.DPSReportID)
		s.Equal(int64(100), got.NomisCSIPID)
	})

	s.Run("malformed uuid is a 400", func() {
		req := testutil.NewRequest(s.T(), http.MethodGet, "/mapping/csip/dps-report-id/not-a-uuid")
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatus(s.T(), rr, http.StatusBadRequest)
	})

	s.Run("conflicting report id for the same csip is a 409", func() {
		other := dto
		other.DPSReportID = uuid.NewString()
		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/mapping/csip/", other)
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatus(s.T(), rr, http.StatusConflict)
	})
}

func (s *HandlerSuite) TestMergeOffender() {
	for i := 0; i < 2; i++ {
		dto := MappingDTO{
			DPSReportID: uuid.NewString(), NomisCSIPID: int64(100 + i),
			OffenderNo: "A0001AA", Provenance: "NOMIS_CREATED",
		}
		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/mapping/csip/", dto)
		s.Require().Equal(http.StatusCreated, testutil.DoRequest(s.router, req).Code)
	}

	req := testutil.NewRequest(s.T(), http.MethodPut, "/mapping/csip/merge/from/A0001AA/to/B0002BB")
	rr := testutil.DoRequest(s.router, req)
	testutil.AssertStatus(s.T(), rr, http.StatusOK)

	got := testutil.UnmarshalResponse[MergeResultDTO](s.T(), rr)
	s.Equal(2, got.UpdatedCount)
}
