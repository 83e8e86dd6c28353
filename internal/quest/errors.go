package quest

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound        = errors.New("quest not found")
	ErrConflict        = errors.New("quest changed since last read")
	ErrBusy            = errors.New("quest is being updated, try again")
	ErrUnauthorized    = errors.New("only the quest creator or a manager can do this")
	ErrInvalidPeople   = errors.New("people must be 1 or greater")
	ErrInvalidCapacity = errors.New("quest capacity must be 1 or greater")
	ErrNoParticipants  = errors.New("quest has no active participants")

	// Conflict specializations. Callers match the family with
	// errors.Is(err, ErrConflict) and the specific case directly.
	ErrQuestClosed        = fmt.Errorf("%w: quest is closed for acceptance", ErrConflict)
	ErrDuplicateActive    = fmt.Errorf("%w: user already holds an active acceptance", ErrConflict)
	ErrNoActiveAcceptance = fmt.Errorf("%w: no active acceptance for this user", ErrConflict)
	ErrAlreadyArchived    = fmt.Errorf("%w: quest is already archived", ErrConflict)
)

// CapacityError is the conflict raised when an accept asks for more
// people than remain at commit time. It carries the fresh remaining
// count so the caller can message "only N slots remain".
type CapacityError struct {
	Requested int
	Remaining int
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("requested %d people but only %d slots remain", e.Requested, e.Remaining)
}

func (e *CapacityError) Unwrap() error { return ErrConflict }
