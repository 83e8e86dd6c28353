package model

import "time"

// AcceptanceStatus tracks the terminal state of an acceptance.
// The zero value means the acceptance is still active and counts
// toward the quest's capacity.
type AcceptanceStatus string

const (
	AcceptanceActive    AcceptanceStatus = ""
	AcceptanceCancelled AcceptanceStatus = "cancelled"
	AcceptanceFailed    AcceptanceStatus = "failed"
)

// Acceptance is a user's claim on some number of a quest's slots.
// Acceptances are never deleted; cancellation and failure are status
// flips so the history stays available for notifications and audit.
type Acceptance struct {
	UserID      string           `json:"userId"`
	UserTag     string           `json:"userTag,omitempty"`
	ChannelName string           `json:"channelName,omitempty"`
	People      int              `json:"people"`
	Comment     string           `json:"comment,omitempty"`
	Status      AcceptanceStatus `json:"status,omitempty"`
	AcceptedAt  time.Time        `json:"acceptedAt"`
}

// IsActive reports whether the acceptance still counts toward capacity.
func (a Acceptance) IsActive() bool {
	return a.Status == AcceptanceActive
}

// QuestStatus is the derived lifecycle state of a quest.
type QuestStatus string

const (
	QuestOpen     QuestStatus = "open"
	QuestClosed   QuestStatus = "closed"
	QuestArchived QuestStatus = "archived"
)

// Quest is a postable unit of work with a participant capacity.
type Quest struct {
	ID      string `json:"id"`
	GuildID string `json:"guildId"`
	Title   string `json:"title"`

	// People is the participant capacity, always >= 1.
	People int `json:"people"`

	IsClosed    bool       `json:"isClosed"`
	IsArchived  bool       `json:"isArchived"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`

	// Accepted is append-only; entries flip status instead of being removed.
	Accepted []Acceptance `json:"accepted,omitempty"`

	CreatedBy    string    `json:"createdBy"`
	LastEditedBy string    `json:"lastEditedBy,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Status derives the lifecycle state from the persisted flags.
// Archived implies closed, so it is checked first.
func (q Quest) Status() QuestStatus {
	switch {
	case q.IsArchived:
		return QuestArchived
	case q.IsClosed:
		return QuestClosed
	default:
		return QuestOpen
	}
}

// ActiveAcceptanceBy returns the user's active acceptance, if any.
// A user holds at most one at a time.
func (q Quest) ActiveAcceptanceBy(userID string) (Acceptance, bool) {
	for _, a := range q.Accepted {
		if a.UserID == userID && a.IsActive() {
			return a, true
		}
	}
	return Acceptance{}, false
}

// Clone returns a copy that shares no mutable state with the receiver.
// Stores hand out clones so callers can never mutate committed records.
func (q Quest) Clone() Quest {
	out := q
	if q.Accepted != nil {
		out.Accepted = make([]Acceptance, len(q.Accepted))
		copy(out.Accepted, q.Accepted)
	}
	if q.CompletedAt != nil {
		t := *q.CompletedAt
		out.CompletedAt = &t
	}
	return out
}
