package quest

import (
	"context"
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/star-discord/legion-kanri-bot/internal/audit"
	"github.com/star-discord/legion-kanri-bot/internal/model"
	"github.com/star-discord/legion-kanri-bot/internal/notify"
	"github.com/star-discord/legion-kanri-bot/internal/permission"
)

// Policy holds the configurable lifecycle decisions.
type Policy struct {
	// ReopenOnCancel reopens a closed, unarchived quest when a
	// cancellation frees headroom.
	ReopenOnCancel bool

	// MenuLimit caps the acceptance list handed to selection menus.
	MenuLimit int
}

// Service coordinates every write path: fetch current state for
// context, then commit through the store's conditional update with a
// predicate re-derived from the freshest record. Conflicts surface to
// the caller as typed errors instead of being retried blindly, since a
// blind retry could exceed what the user actually asked for.
type Service struct {
	store  Store
	perms  permission.Resolver
	notify notify.Dispatcher
	audit  audit.Logger
	policy Policy
	logger *log.Logger
}

func NewService(store Store, perms permission.Resolver, dispatcher notify.Dispatcher, auditLog audit.Logger, policy Policy, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.Default()
	}
	if policy.MenuLimit <= 0 {
		policy.MenuLimit = 25
	}
	if dispatcher == nil {
		dispatcher = notify.NewLogDispatcher(logger)
	}
	return &Service{
		store:  store,
		perms:  perms,
		notify: dispatcher,
		audit:  auditLog,
		policy: policy,
		logger: logger,
	}
}

// CreateRequest posts a new quest.
type CreateRequest struct {
	GuildID string
	Actor   model.Actor
	Title   string
	People  int
}

func (s *Service) Create(ctx context.Context, req CreateRequest) (model.Quest, error) {
	if req.People < 1 {
		return model.Quest{}, ErrInvalidCapacity
	}

	q, err := s.store.Create(ctx, model.Quest{
		GuildID:   req.GuildID,
		Title:     req.Title,
		People:    req.People,
		CreatedBy: req.Actor.ID,
	})
	if err != nil {
		return model.Quest{}, err
	}

	s.record(q, req.Actor, audit.ActionQuestCreated, map[string]string{
		"title":  q.Title,
		"people": strconv.Itoa(q.People),
	})
	return q, nil
}

// Preview returns the current snapshot with its slot arithmetic, for
// display before a mutation (e.g. "remaining: N" in an accept form).
// The read is advisory; commit-time validation always re-derives from
// the freshest record.
func (s *Service) Preview(ctx context.Context, guildID, questID string) (model.Quest, Slots, error) {
	q, err := s.store.Get(ctx, guildID, questID)
	if err != nil {
		return model.Quest{}, Slots{}, err
	}
	return q, RemainingSlots(q), nil
}

func (s *Service) List(ctx context.Context, guildID string, filter ListFilter) ([]model.Quest, error) {
	return s.store.List(ctx, guildID, filter)
}

// AcceptRequest is the intent "accept N slots as this actor".
type AcceptRequest struct {
	GuildID     string
	QuestID     string
	Actor       model.Actor
	People      int
	Comment     string
	ChannelName string
}

// AcceptResult reports the committed acceptance. WasFull marks the
// acceptance that filled the quest and auto-closed it.
type AcceptResult struct {
	Quest      model.Quest
	Acceptance model.Acceptance
	WasFull    bool
}

func (s *Service) Accept(ctx context.Context, req AcceptRequest) (AcceptResult, error) {
	if req.People < 1 {
		return AcceptResult{}, ErrInvalidPeople
	}

	acc := model.Acceptance{
		UserID:      req.Actor.ID,
		UserTag:     req.Actor.Tag,
		ChannelName: req.ChannelName,
		People:      req.People,
		Comment:     req.Comment,
		AcceptedAt:  time.Now(),
	}

	var wasFull bool
	updated, err := s.store.ConditionalUpdate(ctx, req.GuildID, req.QuestID,
		func(q model.Quest) error {
			// Eligibility against the freshest record; the decision
			// shown to the user may be seconds stale by now.
			if q.IsClosed || q.IsArchived {
				return ErrQuestClosed
			}
			if _, ok := q.ActiveAcceptanceBy(req.Actor.ID); ok {
				return ErrDuplicateActive
			}
			if slots := RemainingSlots(q); req.People > slots.Remaining {
				return &CapacityError{Requested: req.People, Remaining: slots.Remaining}
			}
			return nil
		},
		func(q *model.Quest) error {
			full, err := applyAccept(q, acc)
			if err != nil {
				return err
			}
			wasFull = full
			q.LastEditedBy = req.Actor.ID
			return nil
		})
	if err != nil {
		return AcceptResult{}, err
	}

	s.record(updated, req.Actor, audit.ActionQuestAccepted, map[string]string{
		"people": strconv.Itoa(req.People),
		"full":   strconv.FormatBool(wasFull),
	})
	s.announceAccepted(updated, acc, wasFull)

	return AcceptResult{Quest: updated, Acceptance: acc, WasFull: wasFull}, nil
}

// Cancel flips the target user's active acceptance to cancelled.
// Cancelling for someone else requires edit permission on the quest.
func (s *Service) Cancel(ctx context.Context, guildID, questID string, actor model.Actor, targetUserID string) (model.Quest, error) {
	return s.terminateAcceptance(ctx, guildID, questID, actor, targetUserID, model.AcceptanceCancelled)
}

// Fail flips the target user's active acceptance to failed. The user
// may accept the quest again afterwards.
func (s *Service) Fail(ctx context.Context, guildID, questID string, actor model.Actor, targetUserID string) (model.Quest, error) {
	return s.terminateAcceptance(ctx, guildID, questID, actor, targetUserID, model.AcceptanceFailed)
}

func (s *Service) terminateAcceptance(ctx context.Context, guildID, questID string, actor model.Actor, targetUserID string, status model.AcceptanceStatus) (model.Quest, error) {
	if targetUserID == "" {
		targetUserID = actor.ID
	}
	if targetUserID != actor.ID {
		q, err := s.store.Get(ctx, guildID, questID)
		if err != nil {
			return model.Quest{}, err
		}
		if s.perms == nil || !s.perms.CanEditQuest(actor, q) {
			return model.Quest{}, ErrUnauthorized
		}
	}

	updated, err := s.store.ConditionalUpdate(ctx, guildID, questID,
		func(q model.Quest) error {
			if _, ok := q.ActiveAcceptanceBy(targetUserID); !ok {
				return ErrNoActiveAcceptance
			}
			return nil
		},
		func(q *model.Quest) error {
			var err error
			if status == model.AcceptanceFailed {
				_, err = applyFail(q, targetUserID)
			} else {
				_, err = applyCancel(q, targetUserID, s.policy.ReopenOnCancel)
			}
			if err != nil {
				return err
			}
			q.LastEditedBy = actor.ID
			return nil
		})
	if err != nil {
		return model.Quest{}, err
	}

	action := audit.ActionAcceptanceCancelled
	if status == model.AcceptanceFailed {
		action = audit.ActionAcceptanceFailed
	}
	s.record(updated, actor, action, map[string]string{"user": targetUserID})
	return updated, nil
}

// Archive closes and archives the quest. The permission check happens
// before the mutation; the lifecycle itself knows nothing about roles.
func (s *Service) Archive(ctx context.Context, guildID, questID string, actor model.Actor) (model.Quest, error) {
	q, err := s.store.Get(ctx, guildID, questID)
	if err != nil {
		return model.Quest{}, err
	}
	if q.IsArchived {
		return model.Quest{}, ErrAlreadyArchived
	}
	if s.perms == nil || !s.perms.CanEditQuest(actor, q) {
		return model.Quest{}, ErrUnauthorized
	}

	now := time.Now()
	updated, err := s.store.ConditionalUpdate(ctx, guildID, questID,
		func(fresh model.Quest) error {
			if fresh.IsArchived {
				return ErrAlreadyArchived
			}
			return nil
		},
		func(fresh *model.Quest) error {
			if err := applyArchive(fresh, now); err != nil {
				return err
			}
			fresh.LastEditedBy = actor.ID
			return nil
		})
	if err != nil {
		return model.Quest{}, err
	}

	s.record(updated, actor, audit.ActionQuestArchived, map[string]string{"title": updated.Title})
	return updated, nil
}

// AcceptanceSummary is one row in the caller's cancel/fail menu.
type AcceptanceSummary struct {
	QuestID    string `json:"questId"`
	QuestTitle string `json:"questTitle"`
	People     int    `json:"people"`
}

// MyAcceptances lists the caller's active acceptances, capped at the
// configured menu limit.
func (s *Service) MyAcceptances(ctx context.Context, guildID, userID string) ([]AcceptanceSummary, error) {
	quests, err := s.store.ListActiveByUser(ctx, guildID, userID)
	if err != nil {
		return nil, err
	}

	out := make([]AcceptanceSummary, 0, len(quests))
	for _, q := range quests {
		acc, ok := q.ActiveAcceptanceBy(userID)
		if !ok {
			continue
		}
		out = append(out, AcceptanceSummary{QuestID: q.ID, QuestTitle: q.Title, People: acc.People})
		if len(out) >= s.policy.MenuLimit {
			break
		}
	}
	return out, nil
}

// Broadcast sends a message to every unique active participant of the
// quest. Deliveries run in parallel and each failure is reported per
// recipient; none of them affect quest state.
func (s *Service) Broadcast(ctx context.Context, guildID, questID string, actor model.Actor, body string) ([]notify.Delivery, error) {
	q, err := s.store.Get(ctx, guildID, questID)
	if err != nil {
		return nil, err
	}

	seen := map[string]bool{}
	var recipients []string
	for _, a := range q.Accepted {
		if !a.IsActive() || seen[a.UserID] {
			continue
		}
		seen[a.UserID] = true
		recipients = append(recipients, a.UserID)
	}
	if len(recipients) == 0 {
		return nil, ErrNoParticipants
	}

	msg := notify.Message{
		QuestTitle: q.Title,
		Body:       body,
		FromTag:    actor.Tag,
		GuildID:    guildID,
	}

	results := make([]notify.Delivery, len(recipients))
	var wg sync.WaitGroup
	for i, userID := range recipients {
		wg.Add(1)
		go func(i int, userID string) {
			defer wg.Done()
			err := s.notify.SendDirect(ctx, userID, msg)
			if err != nil {
				s.logger.Printf("broadcast: dm failed quest=%s user=%s: %v", questID, userID, err)
			}
			results[i] = notify.Delivery{UserID: userID, Err: err, OK: err == nil}
		}(i, userID)
	}
	wg.Wait()

	ok := 0
	for _, d := range results {
		if d.OK {
			ok++
		}
	}
	s.record(q, actor, audit.ActionBroadcastSent, map[string]string{
		"recipients": strconv.Itoa(len(recipients)),
		"delivered":  strconv.Itoa(ok),
	})
	return results, nil
}

// record writes the audit entry for a committed mutation. Best-effort:
// the mutation already succeeded.
func (s *Service) record(q model.Quest, actor model.Actor, action audit.Action, details map[string]string) {
	if s.audit == nil {
		return
	}
	s.audit.Record(audit.Entry{
		GuildID:  q.GuildID,
		QuestID:  q.ID,
		ActorID:  actor.ID,
		ActorTag: actor.Tag,
		Action:   action,
		Details:  details,
	})
}

// announceAccepted fires the acceptance notification off the mutation
// path. Failure is logged, never returned.
func (s *Service) announceAccepted(q model.Quest, acc model.Acceptance, wasFull bool) {
	if s.notify == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.notify.QuestAccepted(ctx, q, acc, wasFull); err != nil {
			s.logger.Printf("notify: acceptance announce failed quest=%s: %v", q.ID, err)
		}
	}()
}
