package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores and infrastructure layers return
// these (optionally wrapped) so services can translate them into domain errors.
//
// These represent factual states about resources, not validation failures:
// - ErrNotFound: record does not exist in store
// - ErrDuplicateDPSKey: the DPS identifier is already mapped
// - ErrDuplicateNomisKey: the NOMIS identifier is already mapped
// - ErrUnsupported: the entity kind does not support the requested operation
// - ErrUnavailable: storage or transport temporarily unavailable
//
// For validation errors (bad input, missing fields), use pkg/errors directly.
var (
	ErrNotFound          = errors.New("not found")
	ErrDuplicateDPSKey   = errors.New("dps key already mapped")
	ErrDuplicateNomisKey = errors.New("nomis key already mapped")
	ErrUnsupported       = errors.New("unsupported operation")
	ErrUnavailable       = errors.New("unavailable")
)
