package csip

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/ministryofjustice/hmpps-nomis-mapping-service-sub003/internal/mapping"
	"github.com/ministryofjustice/hmpps-nomis-mapping-service-sub003/internal/transport/shared"
	pkgerrors "github.com/ministryofjustice/hmpps-nomis-mapping-service-sub003/pkg/errors"
)

type MappingDTO struct {
	DPSReportID string    `json:"dpsReportId"`
	NomisCSIPID int64     `json:"nomisCsipId"`
	OffenderNo  string    `json:"offenderNo,omitempty"`
	Label       string    `json:"label,omitempty"`
	Provenance  string    `json:"provenance"`
	CreatedAt   time.Time `json:"createdAt,omitzero"`
}

type MergeResultDTO struct {
	UpdatedCount int `json:"updatedCount"`
}

type Handler struct {
	logger   *slog.Logger
	registry *mapping.Registry[uuid.UUID, int64]
	query    *mapping.MigrationQuery[uuid.UUID, int64]
	merger   *mapping.MergeCoordinator[uuid.UUID, int64]
}

func NewHandler(
	logger *slog.Logger,
	registry *mapping.Registry[uuid.UUID, int64],
	query *mapping.MigrationQuery[uuid.UUID, int64],
	merger *mapping.MergeCoordinator[uuid.UUID, int64],
) *Handler {
	return &Handler{logger: logger, registry: registry, query: query, merger: merger}
}

func (h *Handler) Register(r chi.Router, readAuth, writeAuth func(http.Handler) http.Handler) {
	r.Route("/mapping/csip", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(readAuth)
			r.Get("/dps-report-id/{dpsReportId}", h.getByDPSID)
			r.Get("/nomis-csip-id/{nomisCsipId}", h.getByNomisID)
			r.Get("/migrated/latest", h.latestMigrated)
		})
		r.Group(func(r chi.Router) {
			r.Use(writeAuth)
			r.Post("/", h.create)
			r.Delete("/dps-report-id/{dpsReportId}", h.deleteByDPSID)
			r.Delete("/", h.deleteAll)
			r.Put("/merge/from/{oldOffenderNo}/to/{newOffenderNo}", h.mergeOffender)
		})
	})
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var dto MappingDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		shared.WriteError(w, pkgerrors.New(pkgerrors.CodeBadRequest, "invalid request body"))
		return
	}
	reportID, err := uuid.Parse(dto.DPSReportID)
	if err != nil {
		shared.WriteError(w, pkgerrors.New(pkgerrors.CodeBadRequest, "dpsReportId must be a UUID"))
		return
	}
	rec := Record{
		DPSID:      reportID,
		NomisID:    dto.NomisCSIPID,
		SubjectRef: dto.OffenderNo,
		Label:      dto.Label,
		Provenance: mapping.Provenance(dto.Provenance),
	}
	if _, err := h.registry.Create(r.Context(), rec); err != nil {
		var conflict *mapping.ConflictError[uuid.UUID, int64]
		if errors.As(err, &conflict) {
			shared.WriteConflict(w,
				"csip mapping already exists with different identifiers",
				toDTO(conflict.Existing), toDTO(conflict.Duplicate))
			return
		}
		h.logger.ErrorContext(r.Context(), "failed to create csip mapping", "error", err)
		shared.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

func (h *Handler) getByDPSID(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "dpsReportId"))
	if err != nil {
		shared.WriteError(w, pkgerrors.New(pkgerrors.CodeBadRequest, "dpsReportId must be a UUID"))
		return
	}
	rec, err := h.registry.GetByDPSID(r.Context(), id)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, toDTO(rec))
}

func (h *Handler) getByNomisID(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "nomisCsipId"), 10, 64)
	if err != nil {
		shared.WriteError(w, pkgerrors.New(pkgerrors.CodeBadRequest, "nomisCsipId must be numeric"))
		return
	}
	rec, err := h.registry.GetByNomisID(r.Context(), id)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, toDTO(rec))
}

func (h *Handler) latestMigrated(w http.ResponseWriter, r *http.Request) {
	rec, err := h.query.LatestMigrated(r.Context())
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, toDTO(rec))
}

func (h *Handler) deleteByDPSID(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "dpsReportId"))
	if err != nil {
		shared.WriteError(w, pkgerrors.New(pkgerrors.CodeBadRequest, "dpsReportId must be a UUID"))
		return
	}
	if err := h.registry.DeleteByDPSID(r.Context(), id); err != nil {
		shared.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) deleteAll(w http.ResponseWriter, r *http.Request) {
	onlyMigrated := r.URL.Query().Get("onlyMigrated") == "true"
	if err := h.registry.DeleteAll(r.Context(), onlyMigrated); err != nil {
		shared.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) mergeOffender(w http.ResponseWriter, r *http.Request) {
	count, err := h.merger.MergeBySubject(r.Context(),
		chi.URLParam(r, "oldOffenderNo"), chi.URLParam(r, "newOffenderNo"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, MergeResultDTO{UpdatedCount: count})
}

func toDTO(rec Record) MappingDTO {
	return MappingDTO{
		DPSReportID: rec.DPSID.String(),
		NomisCSIPID: rec.NomisID,
		OffenderNo:  rec.SubjectRef,
		Label:       rec.Label,
		Provenance:  string(rec.Provenance),
		CreatedAt:   rec.CreatedAt,
	}
}
