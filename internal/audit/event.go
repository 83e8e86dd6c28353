package audit

import "time"

type Action string

const (
	ActionQuestCreated        Action = "quest_created"
	ActionQuestAccepted       Action = "quest_accepted"
	ActionAcceptanceCancelled Action = "acceptance_cancelled"
	ActionAcceptanceFailed    Action = "acceptance_failed"
	ActionQuestArchived       Action = "quest_archived"
	ActionBroadcastSent       Action = "broadcast_sent"
)

// Entry is the structured record of one committed mutation.
type Entry struct {
	ID        string            `json:"id"`
	GuildID   string            `json:"guildId"`
	QuestID   string            `json:"questId"`
	ActorID   string            `json:"actorId"`
	ActorTag  string            `json:"actorTag,omitempty"`
	Action    Action            `json:"action"`
	Timestamp time.Time         `json:"timestamp"`
	Details   map[string]string `json:"details,omitempty"`
}

// Logger records committed mutations. Recording is fire-and-forget
// from the mutation's perspective.
type Logger interface {
	Record(e Entry)
}
