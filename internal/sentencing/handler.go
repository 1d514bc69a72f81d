package sentencing

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
	DPSSentenceID  string    `json:"dpsSentenceId"`
	NomisBookingID int64     `json:"nomisBookingId"`
	NomisSequence  int       `json:"nomisSequence"`
	OffenderNo     string    `json:"offenderNo,omitempty"`
	Label          string    `json:"label,omitempty"`
	Provenance     string    `json:"provenance"`
	CreatedAt      time.Time `json:"createdAt,omitzero"`
}

type PageDTO struct {
	Content       []MappingDTO `json:"content"`
	Number        int          `json:"number"`
	Size          int          `json:"size"`
	TotalElements int64        `json:"totalElements"`
	TotalPages    int          `json:"totalPages"`
}

// MergeResultDTO reports a completed merge: how many rows moved and, for
// booking merges, exactly which ones.
type MergeResultDTO struct {
	UpdatedCount int          `json:"updatedCount"`
	Mappings     []MappingDTO `json:"mappings,omitempty"`
}

type Handler struct {
	logger   *slog.Logger
	registry *mapping.Registry[string, NomisKey]
	query    *mapping.MigrationQuery[string, NomisKey]
	merger   *mapping.MergeCoordinator[string, NomisKey]
	store    mapping.Store[string, NomisKey]
}

func NewHandler(
	logger *slog.Logger,
	registry *mapping.Registry[string, NomisKey],
	query *mapping.MigrationQuery[string, NomisKey],
	merger *mapping.MergeCoordinator[string, NomisKey],
	store mapping.Store[string, NomisKey],
) *Handler {
	return &Handler{logger: logger, registry: registry, query: query, merger: merger, store: store}
}

func (h *Handler) Register(r chi.Router, readAuth, writeAuth func(http.Handler) http.Handler) {
	r.Route("/mapping/sentencing", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(readAuth)
			r.Get("/dps-id/{dpsId}", h.getByDPSID)
			r.Get("/nomis-booking-id/{bookingId}/nomis-sequence/{seq}", h.getByNomisKey)
			r.Get("/offender/{offenderNo}", h.listBySubject)
			r.Get("/migration-id/{label}", h.listMigration)
			r.Get("/migrated/latest", h.latestMigrated)
		})
		r.Group(func(r chi.Router) {
			r.Use(writeAuth)
			r.Post("/", h.create)
			r.Delete("/dps-id/{dpsId}", h.deleteByDPSID)
			r.Delete("/nomis-booking-id/{bookingId}/nomis-sequence/{seq}", h.deleteByNomisKey)
			r.Delete("/", h.deleteAll)
			r.Put("/merge/from/{oldOffenderNo}/to/{newOffenderNo}", h.mergeOffender)
			r.Put("/merge/booking-id/{bookingId}/to/{offenderNo}", h.mergeBooking)
		})
	})
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var dto MappingDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		shared.WriteError(w, pkgerrors.New(pkgerrors.CodeBadRequest, "invalid request body"))
		return
	}
	if dto.DPSSentenceID == "" || dto.NomisBookingID == 0 {
		shared.WriteError(w, pkgerrors.New(pkgerrors.CodeBadRequest, "dpsSentenceId and nomisBookingId are required"))
		return
	}
	_, err := h.registry.Create(r.Context(), toRecord(dto))
	if err != nil {
		var conflict *mapping.ConflictError[string, NomisKey]
		if errors.As(err, &conflict) {
			shared.WriteConflict(w,
				"sentence mapping already exists with different identifiers",
				toDTO(conflict.Existing), toDTO(conflict.Duplicate))
			return
		}
		h.logger.ErrorContext(r.Context(), "failed to create sentence mapping", "error", err)
		shared.WriteError(w, err)
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

func (h *Handler) getByNomisKey(w http.ResponseWriter, r *http.Request) {
	key, ok := h.nomisKey(w, r)
	if !ok {
		return
	}
	rec, err := h.registry.GetByNomisID(r.Context(), key)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, toDTO(rec))
}

func (h *Handler) listBySubject(w http.ResponseWriter, r *http.Request) {
	recs, err := h.store.ScanBySubject(r.Context(), chi.URLParam(r, "offenderNo"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, toDTOs(recs))
}

func (h *Handler) deleteByDPSID(w http.ResponseWriter, r *http.Request) {
	if err := h.registry.DeleteByDPSID(r.Context(), chi.URLParam(r, "dpsId")); err != nil {
		shared.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) deleteByNomisKey(w http.ResponseWriter, r *http.Request) {
	key, ok := h.nomisKey(w, r)
	if !ok {
		return
	}
	if err := h.registry.DeleteByNomisID(r.Context(), key); err != nil {
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
	shared.WriteJSON(w, http.StatusOK, PageDTO{
		Content:       toDTOs(result.Content),
		Number:        result.Number,
		Size:          result.Size,
		TotalElements: result.TotalElements,
		TotalPages:    result.TotalPages,
	})
}

func (h *Handler) latestMigrated(w http.ResponseWriter, r *http.Request) {
	rec, err := h.query.LatestMigrated(r.Context())
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, toDTO(rec))
}

// mergeOffender propagates a prisoner record merge: every sentence mapping
// for the old offender number moves to the new one. Zero updates is still a
// 200; merges routinely arrive for prisoners with no sentences.
func (h *Handler) mergeOffender(w http.ResponseWriter, r *http.Request) {
	oldNo := chi.URLParam(r, "oldOffenderNo")
	newNo := chi.URLParam(r, "newOffenderNo")
	count, err := h.merger.MergeBySubject(r.Context(), oldNo, newNo)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, MergeResultDTO{UpdatedCount: count})
}

func (h *Handler) mergeBooking(w http.ResponseWriter, r *http.Request) {
	bookingID, err := strconv.ParseInt(chi.URLParam(r, "bookingId"), 10, 64)
	if err != nil {
		shared.WriteError(w, pkgerrors.New(pkgerrors.CodeBadRequest, "bookingId must be numeric"))
		return
	}
	updated, err := h.merger.MergeByGroup(r.Context(), bookingID, chi.URLParam(r, "offenderNo"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, MergeResultDTO{UpdatedCount: len(updated), Mappings: toDTOs(updated)})
}

func (h *Handler) nomisKey(w http.ResponseWriter, r *http.Request) (NomisKey, bool) {
	bookingID, err := strconv.ParseInt(chi.URLParam(r, "bookingId"), 10, 64)
	if err != nil {
		shared.WriteError(w, pkgerrors.New(pkgerrors.CodeBadRequest, "bookingId must be numeric"))
		return NomisKey{}, false
	}
	seq, err := strconv.Atoi(chi.URLParam(r, "seq"))
	if err != nil {
		shared.WriteError(w, pkgerrors.New(pkgerrors.CodeBadRequest, "sequence must be numeric"))
		return NomisKey{}, false
	}
	return NomisKey{BookingID: bookingID, Sequence: seq}, true
}

func toRecord(dto MappingDTO) Record {
	return Record{
		DPSID:      dto.DPSSentenceID,
		NomisID:    NomisKey{BookingID: dto.NomisBookingID, Sequence: dto.NomisSequence},
		SubjectRef: dto.OffenderNo,
		Label:      dto.Label,
		Provenance: mapping.Provenance(dto.Provenance),
	}
}

func toDTO(rec Record) MappingDTO {
	return MappingDTO{
		DPSSentenceID:  rec.DPSID,
		NomisBookingID: rec.NomisID.BookingID,
		NomisSequence:  rec.NomisID.Sequence,
		OffenderNo:     rec.SubjectRef,
		Label:          rec.Label,
		Provenance:     string(rec.Provenance),
		CreatedAt:      rec.CreatedAt,
	}
}

func toDTOs(recs []Record) []MappingDTO {
	out := make([]MappingDTO, 0, len(recs))
	for _, rec := range recs {
		out = append(out, toDTO(rec))
	}
	return out
}
