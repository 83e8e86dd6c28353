package quest

import (
	"time"

	"github.com/star-discord/legion-kanri-bot/internal/model"
)

// Lifecycle transitions. Each function validates against the record it
// is given and mutates it in place, so that running one inside the
// store's conditional update makes the validation and the write observe
// the same snapshot. Capacity-coupled changes (accept crossing the
// capacity line closes the quest) happen in the same call, never as a
// second write.

// applyAccept appends an active acceptance. It reports whether this
// acceptance filled the quest, which also closes it in the same commit.
func applyAccept(q *model.Quest, acc model.Acceptance) (wasFull bool, err error) {
	if acc.People < 1 {
		return false, ErrInvalidPeople
	}
	if q.IsClosed || q.IsArchived {
		return false, ErrQuestClosed
	}
	if _, ok := q.ActiveAcceptanceBy(acc.UserID); ok {
		return false, ErrDuplicateActive
	}

	slots := RemainingSlots(*q)
	if acc.People > slots.Remaining {
		return false, &CapacityError{Requested: acc.People, Remaining: slots.Remaining}
	}

	q.Accepted = append(q.Accepted, acc)
	if slots.Committed+acc.People >= q.People {
		q.IsClosed = true
		wasFull = true
	}
	return wasFull, nil
}

// applyCancel flips the user's active acceptance to cancelled.
// With reopen set, a closed (not archived) quest reopens when the
// cancellation frees headroom.
func applyCancel(q *model.Quest, userID string, reopen bool) (model.Acceptance, error) {
	return terminate(q, userID, model.AcceptanceCancelled, reopen)
}

// applyFail flips the user's active acceptance to failed. Failure never
// reopens a quest; re-posting after a failed run is an organizer call.
func applyFail(q *model.Quest, userID string) (model.Acceptance, error) {
	return terminate(q, userID, model.AcceptanceFailed, false)
}

func terminate(q *model.Quest, userID string, status model.AcceptanceStatus, reopen bool) (model.Acceptance, error) {
	for i := range q.Accepted {
		a := &q.Accepted[i]
		if a.UserID != userID || !a.IsActive() {
			continue
		}
		a.Status = status

		if reopen && q.IsClosed && !q.IsArchived {
			if s := RemainingSlots(*q); s.Committed < q.People {
				q.IsClosed = false
			}
		}
		return *a, nil
	}
	return model.Acceptance{}, ErrNoActiveAcceptance
}

// applyArchive closes and archives the quest, recording completion time.
// Archiving is one-directional in this service; restoring an archived
// quest is an administrative operation outside this core.
func applyArchive(q *model.Quest, now time.Time) error {
	if q.IsArchived {
		return ErrAlreadyArchived
	}
	q.IsArchived = true
	q.IsClosed = true
	q.CompletedAt = &now
	return nil
}
