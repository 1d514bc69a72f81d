package mapping

import (
	"fmt"

	"github.com/ministryofjustice/hmpps-nomis-mapping-service-sub003/pkg/platform/sentinel"
)

// NotFoundError reports a missing mapping with enough context to build a
// user-facing message. It unwraps to sentinel.ErrNotFound so callers can use
// errors.Is without caring about the concrete type.
type NotFoundError struct {
	Kind string
	Key  string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s mapping not found for %s", e.Kind, e.Key)
}

func (e *NotFoundError) Unwrap() error { return sentinel.ErrNotFound }

// ConflictError reports a genuine duplicate: two different logical mappings
// competing for the same key. Both sides are carried for diagnostic
// reporting; the existing row is left untouched.
type ConflictError[D comparable, N comparable] struct {
	Kind      string
	Existing  Record[D, N]
	Duplicate Record[D, N]
}

func (e *ConflictError[D, N]) Error() string {
	return fmt.Sprintf(
		"conflicting %s mapping: existing dps=%v nomis=%v, duplicate dps=%v nomis=%v",
		e.Kind, e.Existing.DPSID, e.Existing.NomisID, e.Duplicate.DPSID, e.Duplicate.NomisID,
	)
}
