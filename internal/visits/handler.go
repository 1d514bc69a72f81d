package visits

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

// MappingDTO is the wire representation of one visit mapping.
type MappingDTO struct {
	DPSVisitID   string    `json:"dpsVisitId"`
	NomisVisitID int64     `json:"nomisVisitId"`
	Label        string    `json:"label,omitempty"`
	Provenance   string    `json:"provenance"`
	CreatedAt    time.Time `json:"createdAt,omitzero"`
}

// PageDTO is one page of a migration batch listing.
type PageDTO struct {
	Content       []MappingDTO `json:"content"`
	Number        int          `json:"number"`
	Size          int          `json:"size"`
	TotalElements int64        `json:"totalElements"`
	TotalPages    int          `json:"totalPages"`
}

// Handler exposes visit mapping endpoints. It delegates to the generic
// registry and migration query; only wire translation lives here.
type Handler struct {
	logger   *slog.Logger
	registry *mapping.Registry[string, int64]
	query    *mapping.MigrationQuery[string, int64]
}

func NewHandler(logger *slog.Logger, registry *mapping.Registry[string, int64], query *mapping.MigrationQuery[string, int64]) *Handler {
	return &Handler{logger: logger, registry: registry, query: query}
}

// Register mounts the visit routes. Reads require the read role, mutations
// the read-write role.
func (h *Handler) Register(r chi.Router, readAuth, writeAuth func(http.Handler) http.Handler) {
	r.Route("/mapping/visits", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(readAuth)
			r.Get("/nomis-id/{nomisId}", h.getByNomisID)
			r.Get("/dps-id/{dpsId}", h.getByDPSID)
			r.Get("/migration-id/{label}", h.listMigration)
			r.Get("/migrated/latest", h.latestMigrated)
		})
		r.Group(func(r chi.Router) {
			r.Use(writeAuth)
			r.Post("/", h.create)
			r.Post("/batch", h.createBatch)
			r.Delete("/nomis-id/{nomisId}", h.deleteByNomisID)
			r.Delete("/dps-id/{dpsId}", h.deleteByDPSID)
			r.Delete("/", h.deleteAll)
		})
	})
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	dto, ok := h.decode(w, r)
	if !ok {
		return
	}
	_, err := h.registry.Create(r.Context(), toRecord(dto))
	if err != nil {
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

func (h *Handler) getByNomisID(w http.ResponseWriter, r *http.Request) {
	id, ok := h.nomisID(w, r)
	if !ok {
		return
	}
	rec, err := h.registry.GetByNomisID(r.Context(), id)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, toDTO(rec))
}

func (h *Handler) getByDPSID(w http.ResponseWriter, r *http.Request) {
	rec, err := h.registry.GetByDPSID(r.Context(), chi.URLParam(r, "dpsId"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, toDTO(rec))
}

func (h *Handler) deleteByNomisID(w http.ResponseWriter, r *http.Request) {
	id, ok := h.nomisID(w, r)
	if !ok {
		return
	}
	if err := h.registry.DeleteByNomisID(r.Context(), id); err != nil {
		shared.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) deleteByDPSID(w http.ResponseWriter, r *http.Request) {
	if err := h.registry.DeleteByDPSID(r.Context(), chi.URLParam(r, "dpsId")); err != nil {
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

func (h *Handler) latestMigrated(w http.ResponseWriter, r *http.Request) {
	rec, err := h.query.LatestMigrated(r.Context())
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, toDTO(rec))
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request) (MappingDTO, bool) {
	var dto MappingDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		shared.WriteError(w, pkgerrors.New(pkgerrors.CodeBadRequest, "invalid request body"))
		return dto, false
	}
	if dto.DPSVisitID == "" || dto.NomisVisitID == 0 {
		shared.WriteError(w, pkgerrors.New(pkgerrors.CodeBadRequest, "dpsVisitId and nomisVisitId are required"))
		return dto, false
	}
	return dto, true
}

func (h *Handler) nomisID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "nomisId"), 10, 64)
	if err != nil {
		shared.WriteError(w, pkgerrors.New(pkgerrors.CodeBadRequest, "nomisId must be numeric"))
		return 0, false
	}
	return id, true
}

func (h *Handler) writeCreateError(w http.ResponseWriter, r *http.Request, err error) {
	var conflict *mapping.ConflictError[string, int64]
	if errors.As(err, &conflict) {
		shared.WriteConflict(w,
			"visit mapping already exists with different identifiers",
			toDTO(conflict.Existing), toDTO(conflict.Duplicate))
		return
	}
	h.logger.ErrorContext(r.Context(), "failed to create visit mapping", "error", err)
	shared.WriteError(w, err)
}

func toRecord(dto MappingDTO) Record {
	return Record{
		DPSID:      dto.DPSVisitID,
		NomisID:    dto.NomisVisitID,
		Label:      dto.Label,
		Provenance: mapping.Provenance(dto.Provenance),
	}
}

func toDTO(rec Record) MappingDTO {
	return MappingDTO{
		DPSVisitID:   rec.DPSID,
		NomisVisitID: rec.NomisID,
		Label:        rec.Label,
		Provenance:   string(rec.Provenance),
		CreatedAt:    rec.CreatedAt,
	}
}
