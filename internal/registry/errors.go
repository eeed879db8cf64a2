package registry

import (
	"errors"
	"fmt"
	"strings"

	"github.com/albapepper/scoracle-fusion/internal/source"
)

var (
	// ErrSourceIDTaken: the identity that would receive the id already holds
	// a different id from the same source.
	ErrSourceIDTaken = errors.New("source id already held")
	// ErrMergeConflict: the two ids already belong to two distinct identities
	// that cannot be absorbed automatically.
	ErrMergeConflict = errors.New("merge conflict")
)

// ConflictError describes a rejected Upsert. Kind is one of the sentinel
// errors above.
type ConflictError struct {
	Kind      error
	Claim     Claim
	PlayerIDs []int64
	// Held is the id that blocked the claim, for ErrSourceIDTaken.
	Held source.Ref
}

func (e *ConflictError) Error() string {
	ids := make([]string, len(e.PlayerIDs))
	for i, id := range e.PlayerIDs {
		ids[i] = fmt.Sprint(id)
	}
	msg := fmt.Sprintf("%s <-> %s (%s): %v on player %s",
		e.Claim.A, e.Claim.B, e.Claim.Method, e.Kind, strings.Join(ids, ","))
	if !e.Held.IsZero() {
		msg += fmt.Sprintf(" (holds %s)", e.Held)
	}
	return msg
}

func (e *ConflictError) Unwrap() error { return e.Kind }

// Reason is the short code stored on review candidates.
func (e *ConflictError) Reason() string {
	if errors.Is(e.Kind, ErrMergeConflict) {
		return "merge_conflict"
	}
	return "source_id_taken"
}
