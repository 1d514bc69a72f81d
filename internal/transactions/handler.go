package transactions

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ministryofjustice/hmpps-nomis-mapping-service-sub003/internal/mapping"
	"github.com/ministryofjustice/hmpps-nomis-mapping-service-sub003/internal/transport/shared"
	pkgerrors "github.com/ministryofjustice/hmpps-nomis-mapping-service-sub003/pkg/errors"
)

type MappingDTO struct {
	DPSTransactionID   string    `json:"dpsTransactionId"`
	NomisTransactionID int64     `json:"nomisTransactionId"`
	OffenderNo         string    `json:"offenderNo,omitempty"`
	Label              string    `json:"label,omitempty"`
	Provenance         string    `json:"provenance"`
	CreatedAt          time.Time `json:"createdAt,omitzero"`
}

type PageDTO struct {
	Content       []MappingDTO `json:"content"`
	Number        int          `json:"number"`
	Size          int          `json:"size"`
	TotalElements int64        `json:"totalElements"`
	TotalPages    int          `json:"totalPages"`
}

// CountDTO reports batch sizes; the prisoner count is the documented
// approximation for this kind.
type CountDTO struct {
	Label         string `json:"label"`
	MappingCount  int64  `json:"mappingCount"`
	PrisonerCount int64  `json:"prisonerCount"`
}

type Handler struct {
	logger   *slog.Logger
	registry *mapping.Registry[string, int64]
	query    *mapping.MigrationQuery[string, int64]
}

func NewHandler(logger *slog.Logger, registry *mapping.Registry[string, int64], query *mapping.MigrationQuery[string, int64]) *Handler {
	return &Handler{logger: logger, registry: registry, query: query}
}

func (h *Handler) Register(r chi.Router, readAuth, writeAuth func(http.Handler) http.Handler) {
	r.Route("/mapping/transactions", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(readAuth)
			r.Get("/dps-id/{dpsId}", h.getByDPSID)
			r.Get("/nomis-id/{nomisId}", h.getByNomisID)
			r.Get("/migration-id/{label}", h.listMigration)
			r.Get("/migration-id/{label}/count", h.countMigration)
		})
		r.Group(func(r chi.Router) {
			r.Use(writeAuth)
			r.Post("/", h.create)
			r.Post("/batch", h.createBatch)
			r.Delete("/", h.deleteAll)
		})
	})
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var dto MappingDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		shared.WriteError(w, pkgerrors.New(pkgerrors.CodeBadRequest, "invalid request body"))
		return
	}
	if _, err := h.registry.Create(r.Context(), toRecord(dto)); err != nil {
		h.writeCreateError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

func (h *Handler) createBatch(w http.ResponseWriter, r *http.Request) {
	var dtos []MappingDTO
	if err := json.NewDecoder(r.Body).Decode(&dtos); err != nil {
		shared.WriteError(w, pkgerrors.New(pkgerrors.CodeBadRequest, "invalid request body"))
		return
	}
	recs := make([]Record, 0, len(dtos))
	for _, dto := range dtos {
		recs = append(recs, toRecord(dto))
	}
	if _, err := h.registry.CreateBatch(r.Context(), recs); err != nil {
		h.writeCreateError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

func (h *Handler) getByDPSID(w http.ResponseWriter, r *http.Request) {
	rec, err := h.registry.GetByDPSID(r.Context(), chi.URLParam(r, "dpsId"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, toDTO(rec))
}

func (h *Handler) getByNomisID(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "nomisId"), 10, 64)
	if err != nil {
		shared.WriteError(w, pkgerrors.New(pkgerrors.CodeBadRequest, "nomisId must be numeric"))
		return
	}
	rec, err := h.registry.GetByNomisID(r.Context(), id)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, toDTO(rec))
}

func (h *Handler) listMigration(w http.ResponseWriter, r *http.Request) {
	page, size := shared.ParsePage(r)
	result, err := h.query.ListPage(r.Context(), chi.URLParam(r, "label"), mapping.PageRequest{Page: page, Size: size})
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	dto := PageDTO{
		Content:       make([]MappingDTO, 0, len(result.Content)),
		Number:        result.Number,
		Size:          result.Size,
		TotalElements: result.TotalElements,
		TotalPages:    result.TotalPages,
	}
	for _, rec := range result.Content {
		dto.Content = append(dto.Content, toDTO(rec))
	}
	shared.WriteJSON(w, http.StatusOK, dto)
}

func (h *Handler) countMigration(w http.ResponseWriter, r *http.Request) {
	label := chi.URLParam(r, "label")
	total, err := h.query.CountByLabel(r.Context(), label)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	prisoners, err := h.query.CountGroupedBySubject(r.Context(), label)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, CountDTO{Label: label, MappingCount: total, PrisonerCount: prisoners})
}

func (h *Handler) deleteAll(w http.ResponseWriter, r *http.Request) {
	onlyMigrated := r.URL.Query().Get("onlyMigrated") == "true"
	if err := h.registry.DeleteAll(r.Context(), onlyMigrated); err != nil {
		shared.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) writeCreateError(w http.ResponseWriter, r *http.Request, err error) {
	var conflict *mapping.ConflictError[string, int64]
	if errors.As(err, &conflict) {
		shared.WriteConflict(w,
			"transaction mapping already exists with different identifiers",
			toDTO(conflict.Existing), toDTO(conflict.Duplicate))
		return
	}
	h.logger.ErrorContext(r.Context(), "failed to create transaction mapping", "error", err)
	shared.WriteError(w, err)
}

func toRecord(dto MappingDTO) Record {
	return Record{
		DPSID:      dto.DPSTransactionID,
		NomisID:    dto.NomisTransactionID,
		SubjectRef: dto.OffenderNo,
		Label:      dto.Label,
		Provenance: mapping.Provenance(dto.Provenance),
	}
}

func toDTO(rec Record) MappingDTO {
	return MappingDTO{
		DPSTransactionID:   rec.DPSID,
		NomisTransactionID: rec.NomisID,
		OffenderNo:         rec.SubjectRef,
		Label:              rec.Label,
		Provenance:         string(rec.Provenance),
		CreatedAt:          rec.CreatedAt,
	}
}
