package client

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	chatmodel "PRelay/module/chat/model"
)

type fakeAPI struct {
	mu        sync.Mutex
	convs     []chatmodel.Conversation
	msgs      map[string][]chatmodel.Message
	marked    []string
	markedCh  chan string
	listErr   error         // when set, ListMessages fails
	listStall chan struct{} // when set, ListMessages blocks until closed
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		msgs:     make(map[string][]chatmodel.Message),
		markedCh: make(chan string, 8),
	}
}

func (f *fakeAPI) ListConversations(context.Context) ([]chatmodel.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]chatmodel.Conversation(nil), f.convs...), nil
}

func (f *fakeAPI) ListMessages(_ context.Context, convID string, _, _ int64) ([]chatmodel.Message, int64, error) {
	f.mu.Lock()
	stall := f.listStall
	fail := f.listErr
	out := append([]chatmodel.Message(nil), f.msgs[convID]...)
	f.mu.Unlock()
	if stall != nil {
		<-stall
	}
	if fail != nil {
		return nil, 0, fail
	}
	return out, int64(len(out)), nil
}

func (f *fakeAPI) MarkRead(_ context.Context, convID string) error {
	f.mu.Lock()
	f.marked = append(f.marked, convID)
	f.mu.Unlock()
	f.markedCh <- convID
	return nil
}

func conv(id string, last time.Time) chatmodel.Conversation {
	c := chatmodel.Conversation{ID: id, Participants: []string{"me", "peer"}, CreatedAt: last}
	if !last.IsZero() {
		c.LastMessage = &chatmodel.LastMessage{MessageID: id + "-last", CreatedAt: last}
	}
	return c
}

func msg(id, convID, sender string, at time.Time) chatmodel.Message {
	return chatmodel.Message{ID: id, ConversationID: convID, SenderID: sender, Type: "text", Content: id, CreatedAt: at}
}

func waitMark(t *testing.T, api *fakeAPI, convID string) {
	t.Helper()
	select {
	case got := <-api.markedCh:
		if got != convID {
			t.Fatalf("marked %s, want %s", got, convID)
		}
	case <-time.After(time.Second):
		t.Fatalf("no mark-read for %s", convID)
	}
}

func TestLoadConversationsSortsByActivity(t *testing.T) {
	api := newFakeAPI()
	now := time.Now()
	api.convs = []chatmodel.Conversation{
		conv("old", now.Add(-2*time.Hour)),
		conv("new", now),
		conv("mid", now.Add(-time.Hour)),
	}
	s := NewStore("me", api)
	if err := s.LoadConversations(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}
	got := s.Conversations()
	if got[0].ID != "new" || got[1].ID != "mid" || got[2].ID != "old" {
		t.Fatalf("order = %s %s %s", got[0].ID, got[1].ID, got[2].ID)
	}
}

func TestActivateLifecycle(t *testing.T) {
	api := newFakeAPI()
	now := time.Now()
	api.convs = []chatmodel.Conversation{conv("c1", now)}
	api.msgs["c1"] = []chatmodel.Message{
		msg("m1", "c1", "peer", now.Add(-time.Minute)),
		msg("m2", "c1", "peer", now),
	}
	s := NewStore("me", api)
	_ = s.LoadConversations(context.Background())

	if s.PhaseOf("c1") != PhaseInactive {
		t.Fatalf("fresh conversation must be inactive")
	}
	if err := s.Activate(context.Background(), "c1"); err != nil {
		t.Fatalf("activate: %v", err)
	}
	if s.PhaseOf("c1") != PhaseReady {
		t.Fatalf("activated conversation must be ready")
	}
	if got := s.Messages("c1"); len(got) != 2 || got[0].ID != "m1" {
		t.Fatalf("history = %v", got)
	}
	if s.Unread("c1") != 0 {
		t.Fatalf("activation must clear unread")
	}
	waitMark(t, api, "c1")

	s.Deactivate("c1")
	if s.PhaseOf("c1") != PhaseInactive || s.ActiveConversation() != "" {
		t.Fatalf("deactivate must reset the view state")
	}
	if got := s.Messages("c1"); len(got) != 2 {
		t.Fatalf("deactivate must keep loaded history, got %d", len(got))
	}
}

func TestActivateReentrancyGuard(t *testing.T) {
	api := newFakeAPI()
	api.convs = []chatmodel.Conversation{conv("c1", time.Now())}
	stall := make(chan struct{})
	api.listStall = stall

	s := NewStore("me", api)
	_ = s.LoadConversations(context.Background())

	firstDone := make(chan error, 1)
	go func() { firstDone <- s.Activate(context.Background(), "c1") }()

	// wait until the first activation is committed to loading
	deadline := time.Now().Add(time.Second)
	for s.PhaseOf("c1") != PhaseLoading {
		if time.Now().After(deadline) {
			t.Fatalf("first activation never reached loading")
		}
		time.Sleep(time.Millisecond)
	}

	if err := s.Activate(context.Background(), "c1"); err != ErrLoading {
		t.Fatalf("second activate = %v, want ErrLoading", err)
	}

	close(stall)
	if err := <-firstDone; err != nil {
		t.Fatalf("first activate: %v", err)
	}
	if s.PhaseOf("c1") != PhaseReady {
		t.Fatalf("first activation should have completed")
	}
}

func TestActivateFailureResetsActiveView(t *testing.T) {
	api := newFakeAPI()
	now := time.Now()
	api.convs = []chatmodel.Conversation{conv("c1", now)}
	api.listErr = errors.New("history unavailable")

	s := NewStore("me", api)
	_ = s.LoadConversations(context.Background())
	if err := s.Activate(context.Background(), "c1"); err == nil {
		t.Fatalf("failed fetch must surface an error")
	}
	if s.PhaseOf("c1") != PhaseInactive {
		t.Fatalf("failed activation must roll back to inactive")
	}
	if s.ActiveConversation() != "" {
		t.Fatalf("failed activation must not leave the conversation active")
	}

	// the never-loaded conversation behaves like any closed one
	s.ApplyMessageCreated(msg("m1", "c1", "peer", now))
	if s.Unread("c1") != 1 {
		t.Fatalf("unread = %d, want 1", s.Unread("c1"))
	}
	select {
	case got := <-api.markedCh:
		t.Fatalf("no read ack may fire for a closed conversation, got %s", got)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestApplyMessageCreatedDedupeAndResort(t *testing.T) {
	api := newFakeAPI()
	now := time.Now()
	api.convs = []chatmodel.Conversation{
		conv("c1", now),
		conv("c2", now.Add(-time.Hour)),
	}
	s := NewStore("me", api)
	_ = s.LoadConversations(context.Background())

	m := msg("m1", "c2", "peer", now.Add(time.Minute))
	s.ApplyMessageCreated(m)
	s.ApplyMessageCreated(m) // duplicate push, e.g. fetch raced the frame

	if got := s.Messages("c2"); len(got) != 1 {
		t.Fatalf("duplicate must be dropped, have %d messages", len(got))
	}
	if got := s.Conversations(); got[0].ID != "c2" {
		t.Fatalf("conversation with newest message must bubble up, top = %s", got[0].ID)
	}
	if s.Unread("c2") != 1 {
		t.Fatalf("unread = %d, want 1 (duplicate must not double count)", s.Unread("c2"))
	}
}

func TestUnreadCountingRules(t *testing.T) {
	api := newFakeAPI()
	now := time.Now()
	api.convs = []chatmodel.Conversation{conv("c1", now), conv("c2", now)}
	s := NewStore("me", api)
	_ = s.LoadConversations(context.Background())
	if err := s.Activate(context.Background(), "c1"); err != nil {
		t.Fatalf("activate: %v", err)
	}
	waitMark(t, api, "c1")

	// own message never counts
	s.ApplyMessageCreated(msg("m1", "c2", "me", now))
	if s.Unread("c2") != 0 {
		t.Fatalf("own message counted as unread")
	}

	// peer message in the open conversation stays read and acks upstream
	s.ApplyMessageCreated(msg("m2", "c1", "peer", now))
	if s.Unread("c1") != 0 {
		t.Fatalf("active conversation accumulated unread")
	}
	waitMark(t, api, "c1")

	// peer message elsewhere counts
	s.ApplyMessageCreated(msg("m3", "c2", "peer", now))
	if s.Unread("c2") != 1 {
		t.Fatalf("unread = %d, want 1", s.Unread("c2"))
	}
}

func TestApplyMessageForUnknownConversationIsNoop(t *testing.T) {
	api := newFakeAPI()
	s := NewStore("me", api)
	s.ApplyMessageCreated(msg("m1", "ghost", "peer", time.Now()))
	if got := s.Messages("ghost"); len(got) != 0 {
		t.Fatalf("unknown conversation must be ignored")
	}
}

func TestApplyEditAndDelete(t *testing.T) {
	api := newFakeAPI()
	now := time.Now()
	api.convs = []chatmodel.Conversation{conv("c1", now)}
	s := NewStore("me", api)
	_ = s.LoadConversations(context.Background())

	s.ApplyMessageCreated(msg("m1", "c1", "peer", now))
	s.ApplyMessageCreated(msg("m2", "c1", "peer", now.Add(time.Second)))

	edited := msg("m1", "c1", "peer", now)
	edited.Content = "changed"
	s.ApplyMessageEdited(edited)
	if got := s.Messages("c1"); got[0].Content != "changed" || !got[0].IsEdited {
		t.Fatalf("edit not applied: %+v", got[0])
	}

	s.ApplyMessageDeleted("c1", "m2")
	if got := s.Messages("c1"); len(got) != 1 || got[0].ID != "m1" {
		t.Fatalf("delete not applied: %v", got)
	}
}

func TestApplyReadReceiptIdempotent(t *testing.T) {
	api := newFakeAPI()
	now := time.Now()
	api.convs = []chatmodel.Conversation{conv("c1", now)}
	s := NewStore("me", api)
	_ = s.LoadConversations(context.Background())
	s.ApplyMessageCreated(msg("m1", "c1", "me", now))

	s.ApplyReadReceipt("c1", "peer")
	s.ApplyReadReceipt("c1", "peer")

	got := s.Messages("c1")
	if len(got[0].ReadBy) != 1 || got[0].ReadBy[0].UserID != "peer" {
		t.Fatalf("reader must appear exactly once, got %v", got[0].ReadBy)
	}
}

func TestTypingViewAndDeactivateClears(t *testing.T) {
	api := newFakeAPI()
	now := time.Now()
	api.convs = []chatmodel.Conversation{conv("c1", now)}
	s := NewStore("me", api)
	_ = s.LoadConversations(context.Background())
	if err := s.Activate(context.Background(), "c1"); err != nil {
		t.Fatalf("activate: %v", err)
	}
	waitMark(t, api, "c1")

	s.ApplyTypingChanged("c1", "peer", "peer", true)
	s.ApplyTypingChanged("c1", "me", "me", true) // own typing never renders
	if got := s.TypingUsers("c1"); len(got) != 1 || got[0] != "peer" {
		t.Fatalf("typing view = %v", got)
	}

	// an arriving message from the typist clears their indicator
	s.ApplyMessageCreated(msg("m1", "c1", "peer", now))
	if got := s.TypingUsers("c1"); len(got) != 0 {
		t.Fatalf("message should clear the sender's typing mark, got %v", got)
	}

	s.ApplyTypingChanged("c1", "peer", "peer", true)
	s.Deactivate("c1")
	if got := s.TypingUsers("c1"); len(got) != 0 {
		t.Fatalf("deactivate must drop typing marks, got %v", got)
	}
}

func TestPresenceView(t *testing.T) {
	s := NewStore("me", newFakeAPI())
	s.ApplyPresenceSnapshot([]string{"a", "b"})
	if !s.IsOnline("a") || !s.IsOnline("b") || s.IsOnline("c") {
		t.Fatalf("snapshot not applied")
	}
	s.ApplyUserOnline("c")
	s.ApplyUserOffline("a")
	if s.IsOnline("a") || !s.IsOnline("c") {
		t.Fatalf("incremental presence not applied")
	}
	s.ApplyStatusChanged("b", "busy")
	if s.StatusOf("b") != "busy" {
		t.Fatalf("status not applied")
	}
}

func TestConversationCreatedAndMemberRemoved(t *testing.T) {
	api := newFakeAPI()
	now := time.Now()
	api.convs = []chatmodel.Conversation{conv("c1", now)}
	s := NewStore("me", api)
	_ = s.LoadConversations(context.Background())

	fresh := conv("c2", now.Add(time.Minute))
	s.ApplyConversationCreated(fresh)
	s.ApplyConversationCreated(fresh) // duplicate push
	got := s.Conversations()
	if len(got) != 2 || got[0].ID != "c2" {
		t.Fatalf("new conversation must land once at the top, got %v", got)
	}

	if err := s.Activate(context.Background(), "c2"); err != nil {
		t.Fatalf("activate: %v", err)
	}
	waitMark(t, api, "c2")
	s.ApplyMessageCreated(msg("m1", "c2", "peer", now))

	s.ApplyMemberRemoved("c2")
	if len(s.Conversations()) != 1 {
		t.Fatalf("removed conversation must disappear")
	}
	if s.ActiveConversation() != "" || s.PhaseOf("c2") != PhaseInactive {
		t.Fatalf("removal must reset the active view")
	}
	if len(s.Messages("c2")) != 0 || s.Unread("c2") != 0 {
		t.Fatalf("removal must drop cached state")
	}
}
