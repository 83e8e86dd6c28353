package quest

import "github.com/star-discord/legion-kanri-bot/internal/model"

// Slots is the capacity arithmetic over a quest's acceptance list.
type Slots struct {
	// Remaining slots available for new acceptances. Zero for a
	// closed or archived quest regardless of arithmetic headroom.
	Remaining int `json:"remaining"`

	// Committed is the sum of People over active acceptances.
	Committed int `json:"committed"`

	// Active lists the acceptances that count toward capacity,
	// in acceptance order.
	Active []model.Acceptance `json:"active,omitempty"`
}

// RemainingSlots computes the slot arithmetic for a quest snapshot.
// It only reads its argument and is safe to call concurrently.
func RemainingSlots(q model.Quest) Slots {
	var s Slots
	for _, a := range q.Accepted {
		if !a.IsActive() {
			continue
		}
		s.Active = append(s.Active, a)
		s.Committed += a.People
	}

	// Closing is authoritative over arithmetic headroom.
	if q.IsClosed || q.IsArchived {
		return s
	}
	if r := q.People - s.Committed; r > 0 {
		s.Remaining = r
	}
	return s
}
