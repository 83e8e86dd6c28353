package quest

import (
	"context"
	"errors"
	"io"
	"log"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/star-discord/legion-kanri-bot/internal/audit"
	"github.com/star-discord/legion-kanri-bot/internal/model"
	"github.com/star-discord/legion-kanri-bot/internal/notify"
	"github.com/star-discord/legion-kanri-bot/internal/permission"
)

// fakeDispatcher records deliveries and fails the users listed in
// failFor, so broadcast tests can check per-recipient outcomes.
type fakeDispatcher struct {
	mu       sync.Mutex
	direct   []string
	failFor  map[string]bool
	accepted int
}

func (f *fakeDispatcher) QuestAccepted(ctx context.Context, q model.Quest, acc model.Acceptance, wasFull bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.accepted++
	return nil
}

func (f *fakeDispatcher) SendDirect(ctx context.Context, userID string, msg notify.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.direct = append(f.direct, userID)
	if f.failFor[userID] {
		return errors.New("dm closed")
	}
	return nil
}

func (f *fakeDispatcher) sentTo() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.direct...)
}

type serviceFixture struct {
	svc      *Service
	store    *MemoryRepo
	dispatch *fakeDispatcher
	audit    *audit.MemoryLog
}

func newServiceFixture(t *testing.T, policy Policy) *serviceFixture {
	t.Helper()
	store := NewMemoryRepo()
	dispatch := &fakeDispatcher{failFor: map[string]bool{}}
	auditLog := audit.NewMemoryLog(100, log.New(io.Discard, "", 0))
	perms := permission.NewRoleResolver([]string{"quest-manager"})
	svc := NewService(store, perms, dispatch, auditLog, policy, log.New(io.Discard, "", 0))
	return &serviceFixture{svc: svc, store: store, dispatch: dispatch, audit: auditLog}
}

func actor(id string, roles ...string) model.Actor {
	return model.Actor{ID: id, Tag: id + "#0001", Roles: roles}
}

func (f *serviceFixture) createQuest(t *testing.T, people int) model.Quest {
	t.Helper()
	q, err := f.svc.Create(context.Background(), CreateRequest{
		GuildID: "g1",
		Actor:   actor("organizer"),
		Title:   "Hunt the basilisk",
		People:  people,
	})
	require.NoError(t, err)
	return q
}

func TestService_CreateValidatesAndAudits(t *testing.T) {
	f := newServiceFixture(t, Policy{})
	ctx := context.Background()

	_, err := f.svc.Create(ctx, CreateRequest{GuildID: "g1", Actor: actor("a"), Title: "x", People: 0})
	assert.ErrorIs(t, err, ErrInvalidCapacity)

	q := f.createQuest(t, 3)
	assert.Equal(t, "organizer", q.CreatedBy)
	assert.Equal(t, 1, f.audit.Stats()[audit.ActionQuestCreated])
}

func TestService_AcceptReportsWasFull(t *testing.T) {
	f := newServiceFixture(t, Policy{})
	ctx := context.Background()
	q := f.createQuest(t, 3)

	res, err := f.svc.Accept(ctx, AcceptRequest{GuildID: "g1", QuestID: q.ID, Actor: actor("u1"), People: 2})
	require.NoError(t, err)
	assert.False(t, res.WasFull)
	assert.Equal(t, "u1#0001", res.Acceptance.UserTag)

	res, err = f.svc.Accept(ctx, AcceptRequest{GuildID: "g1", QuestID: q.ID, Actor: actor("u2"), People: 1})
	require.NoError(t, err)
	assert.True(t, res.WasFull)
	assert.True(t, res.Quest.IsClosed)
	assert.Equal(t, "u2", res.Quest.LastEditedBy)

	_, err = f.svc.Accept(ctx, AcceptRequest{GuildID: "g1", QuestID: q.ID, Actor: actor("u3"), People: 1})
	assert.ErrorIs(t, err, ErrQuestClosed)
}

func TestService_AcceptConflicts(t *testing.T) {
	f := newServiceFixture(t, Policy{})
	ctx := context.Background()
	q := f.createQuest(t, 3)

	_, err := f.svc.Accept(ctx, AcceptRequest{GuildID: "g1", QuestID: q.ID, Actor: actor("u1"), People: 0})
	assert.ErrorIs(t, err, ErrInvalidPeople)

	_, err = f.svc.Accept(ctx, AcceptRequest{GuildID: "g1", QuestID: q.ID, Actor: actor("u1"), People: 2})
	require.NoError(t, err)

	_, err = f.svc.Accept(ctx, AcceptRequest{GuildID: "g1", QuestID: q.ID, Actor: actor("u1"), People: 1})
	assert.ErrorIs(t, err, ErrDuplicateActive)

	var capErr *CapacityError
	_, err = f.svc.Accept(ctx, AcceptRequest{GuildID: "g1", QuestID: q.ID, Actor: actor("u2"), People: 2})
	require.ErrorAs(t, err, &capErr)
	assert.Equal(t, 1, capErr.Remaining)

	_, err = f.svc.Accept(ctx, AcceptRequest{GuildID: "g1", QuestID: "nope", Actor: actor("u2"), People: 1})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestService_CancelThenReaccept(t *testing.T) {
	f := newServiceFixture(t, Policy{})
	ctx := context.Background()
	q := f.createQuest(t, 3)

	_, err := f.svc.Accept(ctx, AcceptRequest{GuildID: "g1", QuestID: q.ID, Actor: actor("u1"), People: 2})
	require.NoError(t, err)

	updated, err := f.svc.Cancel(ctx, "g1", q.ID, actor("u1"), "")
	require.NoError(t, err)
	slots := RemainingSlots(updated)
	assert.Equal(t, 0, slots.Committed)
	assert.Len(t, updated.Accepted, 1, "cancellation keeps the history row")

	_, err = f.svc.Accept(ctx, AcceptRequest{GuildID: "g1", QuestID: q.ID, Actor: actor("u1"), People: 1})
	assert.NoError(t, err)

	assert.Equal(t, 1, f.audit.Stats()[audit.ActionAcceptanceCancelled])
}

func TestService_FailThenReaccept(t *testing.T) {
	f := newServiceFixture(t, Policy{})
	ctx := context.Background()
	q := f.createQuest(t, 2)

	_, err := f.svc.Accept(ctx, AcceptRequest{GuildID: "g1", QuestID: q.ID, Actor: actor("u1"), People: 1})
	require.NoError(t, err)

	updated, err := f.svc.Fail(ctx, "g1", q.ID, actor("u1"), "")
	require.NoError(t, err)
	assert.Equal(t, model.AcceptanceFailed, updated.Accepted[0].Status)

	_, err = f.svc.Accept(ctx, AcceptRequest{GuildID: "g1", QuestID: q.ID, Actor: actor("u1"), People: 1})
	assert.NoError(t, err)

	assert.Equal(t, 1, f.audit.Stats()[audit.ActionAcceptanceFailed])
}

func TestService_CancelForOtherRequiresPermission(t *testing.T) {
	f := newServiceFixture(t, Policy{})
	ctx := context.Background()
	q := f.createQuest(t, 3)

	_, err := f.svc.Accept(ctx, AcceptRequest{GuildID: "g1", QuestID: q.ID, Actor: actor("u1"), People: 1})
	require.NoError(t, err)

	_, err = f.svc.Cancel(ctx, "g1", q.ID, actor("stranger"), "u1")
	assert.ErrorIs(t, err, ErrUnauthorized)

	// The quest creator may cancel on behalf of a participant.
	updated, err := f.svc.Cancel(ctx, "g1", q.ID, actor("organizer"), "u1")
	require.NoError(t, err)
	assert.Equal(t, model.AcceptanceCancelled, updated.Accepted[0].Status)
	assert.Equal(t, "organizer", updated.LastEditedBy)

	// So may a holder of a configured manager role.
	_, err = f.svc.Accept(ctx, AcceptRequest{GuildID: "g1", QuestID: q.ID, Actor: actor("u2"), People: 1})
	require.NoError(t, err)
	_, err = f.svc.Fail(ctx, "g1", q.ID, actor("mgr", "quest-manager"), "u2")
	assert.NoError(t, err)
}

func TestService_CancelWithoutAcceptance(t *testing.T) {
	f := newServiceFixture(t, Policy{})
	q := f.createQuest(t, 3)

	_, err := f.svc.Cancel(context.Background(), "g1", q.ID, actor("ghost"), "")
	assert.ErrorIs(t, err, ErrNoActiveAcceptance)
}

func TestService_ReopenOnCancelPolicy(t *testing.T) {
	cases := []struct {
		name       string
		policy     Policy
		wantStatus model.QuestStatus
	}{
		{"default keeps the quest closed", Policy{}, model.QuestClosed},
		{"reopen flag reopens freed quests", Policy{ReopenOnCancel: true}, model.QuestOpen},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newServiceFixture(t, tc.policy)
			ctx := context.Background()
			q := f.createQuest(t, 2)

			res, err := f.svc.Accept(ctx, AcceptRequest{GuildID: "g1", QuestID: q.ID, Actor: actor("u1"), People: 2})
			require.NoError(t, err)
			require.True(t, res.WasFull)

			updated, err := f.svc.Cancel(ctx, "g1", q.ID, actor("u1"), "")
			require.NoError(t, err)
			assert.Equal(t, tc.wantStatus, updated.Status())
		})
	}
}

func TestService_Archive(t *testing.T) {
	f := newServiceFixture(t, Policy{})
	ctx := context.Background()
	q := f.createQuest(t, 3)

	_, err := f.svc.Archive(ctx, "g1", q.ID, actor("stranger"))
	assert.ErrorIs(t, err, ErrUnauthorized)

	updated, err := f.svc.Archive(ctx, "g1", q.ID, actor("organizer"))
	require.NoError(t, err)
	assert.Equal(t, model.QuestArchived, updated.Status())
	assert.NotNil(t, updated.CompletedAt)

	_, err = f.svc.Archive(ctx, "g1", q.ID, actor("organizer"))
	assert.ErrorIs(t, err, ErrAlreadyArchived)

	// Archived quests refuse new acceptances.
	_, err = f.svc.Accept(ctx, AcceptRequest{GuildID: "g1", QuestID: q.ID, Actor: actor("u1"), People: 1})
	assert.ErrorIs(t, err, ErrQuestClosed)

	assert.Equal(t, 1, f.audit.Stats()[audit.ActionQuestArchived])
}

func TestService_ArchiveByManagerRole(t *testing.T) {
	f := newServiceFixture(t, Policy{})
	q := f.createQuest(t, 3)

	_, err := f.svc.Archive(context.Background(), "g1", q.ID, actor("mgr", "quest-manager"))
	assert.NoError(t, err)
}

func TestService_MyAcceptancesCappedAtMenuLimit(t *testing.T) {
	f := newServiceFixture(t, Policy{MenuLimit: 3})
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		q := f.createQuest(t, 2)
		_, err := f.svc.Accept(ctx, AcceptRequest{GuildID: "g1", QuestID: q.ID, Actor: actor("alice"), People: 1})
		require.NoError(t, err)
	}

	items, err := f.svc.MyAcceptances(ctx, "g1", "alice")
	require.NoError(t, err)
	assert.Len(t, items, 3)
	for _, it := range items {
		assert.Equal(t, "Hunt the basilisk", it.QuestTitle)
		assert.Equal(t, 1, it.People)
	}
}

func TestService_BroadcastDedupesAndReportsFailures(t *testing.T) {
	f := newServiceFixture(t, Policy{})
	ctx := context.Background()
	q := f.createQuest(t, 6)

	_, err := f.svc.Accept(ctx, AcceptRequest{GuildID: "g1", QuestID: q.ID, Actor: actor("u1"), People: 2})
	require.NoError(t, err)
	_, err = f.svc.Accept(ctx, AcceptRequest{GuildID: "g1", QuestID: q.ID, Actor: actor("u2"), People: 1})
	require.NoError(t, err)
	_, err = f.svc.Accept(ctx, AcceptRequest{GuildID: "g1", QuestID: q.ID, Actor: actor("u3"), People: 1})
	require.NoError(t, err)

	// A cancelled participant no longer receives broadcasts.
	_, err = f.svc.Cancel(ctx, "g1", q.ID, actor("u3"), "")
	require.NoError(t, err)

	f.dispatch.failFor["u2"] = true

	results, err := f.svc.Broadcast(ctx, "g1", q.ID, actor("organizer"), "rally at dawn")
	require.NoError(t, err)
	require.Len(t, results, 2)

	byUser := map[string]notify.Delivery{}
	for _, d := range results {
		byUser[d.UserID] = d
	}
	assert.True(t, byUser["u1"].OK)
	assert.False(t, byUser["u2"].OK)
	assert.Error(t, byUser["u2"].Err)
	assert.NotContains(t, f.dispatch.sentTo(), "u3")

	assert.Equal(t, 1, f.audit.Stats()[audit.ActionBroadcastSent])
}

func TestService_BroadcastNoParticipants(t *testing.T) {
	f := newServiceFixture(t, Policy{})
	q := f.createQuest(t, 3)

	_, err := f.svc.Broadcast(context.Background(), "g1", q.ID, actor("organizer"), "anyone?")
	assert.ErrorIs(t, err, ErrNoParticipants)
	assert.Empty(t, f.dispatch.sentTo())
}

func TestService_PreviewReturnsSlots(t *testing.T) {
	f := newServiceFixture(t, Policy{})
	ctx := context.Background()
	q := f.createQuest(t, 4)

	_, err := f.svc.Accept(ctx, AcceptRequest{GuildID: "g1", QuestID: q.ID, Actor: actor("u1"), People: 3})
	require.NoError(t, err)

	got, slots, err := f.svc.Preview(ctx, "g1", q.ID)
	require.NoError(t, err)
	assert.Equal(t, q.ID, got.ID)
	assert.Equal(t, 1, slots.Remaining)
	assert.Equal(t, 3, slots.Committed)

	_, _, err = f.svc.Preview(ctx, "g1", "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}
