package mapping

// Classification is the verdict on a creation attempt that collided with an
// existing row.
type Classification int

const (
	// ClassBenign: the identical logical mapping was submitted again, e.g. a
	// retried request. Safe to ignore.
	ClassBenign Classification = iota
	// ClassConflict: two different logical mappings are fighting over a
	// shared key. Must surface to the caller with both sides.
	ClassConflict
)

// Classify compares a proposed record against the structurally colliding row
// found via either key. Only the two keys matter: a mismatch in any key
// component is a conflict, and differences in non-key payload alone never
// are (the keys could not both collide exactly without the rows being the
// same logical mapping).
func Classify[D comparable, N comparable](proposed, existing Record[D, N]) Classification {
	if proposed.SameKeys(existing) {
		return ClassBenign
	}
	return ClassConflict
}
