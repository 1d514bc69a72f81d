// Package shared centralizes JSON envelope writing for every kind's handler
// so transport translation stays consistent: not-found → 404, conflict →
// 409 with both records, idempotent create → 201, delete → 204.
package shared

import (
	"encoding/json"
	"errors"
	"net/http"

	pkgerrors "github.com/ministryofjustice/hmpps-nomis-mapping-service-sub003/pkg/errors"
	"github.com/ministryofjustice/hmpps-nomis-mapping-service-sub003/pkg/platform/sentinel"
)

// ErrorResponse is the JSON error envelope.
type ErrorResponse struct {
	Status      int    `json:"status"`
	Error       string `json:"error"`
	UserMessage string `json:"userMessage,omitempty"`
	MoreInfo    any    `json:"moreInfo,omitempty"`
}

// DuplicateDetail carries both sides of a mapping conflict in the 409 body.
type DuplicateDetail[T any] struct {
	Existing  T `json:"existing"`
	Duplicate T `json:"duplicate"`
}

// WriteJSON writes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError translates service errors into the JSON envelope. Conflicts are
// handled by the kind handlers themselves because the 409 body carries
// kind-specific record representations.
func WriteError(w http.ResponseWriter, err error) {
	var apiErr *pkgerrors.APIError
	if errors.As(err, &apiErr) {
		status := pkgerrors.ToHTTPStatus(apiErr.Code)
		WriteJSON(w, status, ErrorResponse{Status: status, Error: string(apiErr.Code), UserMessage: apiErr.Message})
		return
	}
	if errors.Is(err, sentinel.ErrNotFound) {
		WriteJSON(w, http.StatusNotFound, ErrorResponse{
			Status:      http.StatusNotFound,
			Error:       string(pkgerrors.CodeNotFound),
			UserMessage: err.Error(),
		})
		return
	}
	WriteJSON(w, http.StatusInternalServerError, ErrorResponse{
		Status: http.StatusInternalServerError,
		Error:  string(pkgerrors.CodeInternal),
	})
}

// WriteConflict writes the 409 envelope with both records attached.
func WriteConflict[T any](w http.ResponseWriter, userMessage string, existing, duplicate T) {
	WriteJSON(w, http.StatusConflict, ErrorResponse{
		Status:      http.StatusConflict,
		Error:       string(pkgerrors.CodeConflict),
		UserMessage: userMessage,
		MoreInfo:    DuplicateDetail[T]{Existing: existing, Duplicate: duplicate},
	})
}

// ParsePage reads page/size query parameters with defaults.
func ParsePage(r *http.Request) (page, size int) {
	page = atoiOr(r.URL.Query().Get("page"), 0)
	size = atoiOr(r.URL.Query().Get("size"), 20)
	if page < 0 {
		page = 0
	}
	if size <= 0 || size > 1000 {
		size = 20
	}
	return page, size
}

func atoiOr(s string, fallback int) int {
	if s == "" {
		return fallback
	}
	n := 0
	for _, c := range s {
		if c < '0' || c > '9' {
			return fallback
		}
		n = n*10 + int(c-'0')
	}
	return n
}
