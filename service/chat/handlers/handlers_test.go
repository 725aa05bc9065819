package handlers

import (
	"context"
	"testing"
	"time"

	chatmodel "PRelay/module/chat/model"
	chat "PRelay/service/chat"
)

type fakeStore struct {
	participants map[string][]string
	readHits     map[string]int
	statuses     map[string]chatmodel.Status
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		participants: make(map[string][]string),
		readHits:     make(map[string]int),
		statuses:     make(map[string]chatmodel.Status),
	}
}

func (f *fakeStore) Participants(_ context.Context, convID string) ([]string, error) {
	return f.participants[convID], nil
}

func (f *fakeStore) MarkRead(_ context.Context, convID, readerID string) (int64, error) {
	key := convID + "/" + readerID
	f.readHits[key]++
	if f.readHits[key] > 1 {
		return 0, nil
	}
	return 3, nil
}

func (f *fakeStore) SetUserStatus(_ context.Context, userID string, status chatmodel.Status) error {
	f.statuses[userID] = status
	return nil
}

type rig struct {
	srv   *chat.Server
	store *fakeStore
	ctx   *chat.Context
}

func newRig(t *testing.T, cfg chat.Config) *rig {
	t.Helper()
	fs := newFakeStore()
	srv := chat.NewServer(cfg, fs)
	t.Cleanup(srv.Close)
	if err := RegisterAll(srv); err != nil {
		t.Fatalf("register handlers: %v", err)
	}
	return &rig{srv: srv, store: fs, ctx: &chat.Context{S: srv}}
}

func (r *rig) connect(t *testing.T, connID, userID string) *chat.Client {
	t.Helper()
	c := chat.NewClient(connID, userID, userID, nil, 8)
	r.srv.HandleConnect(c)
	drain(c)
	return c
}

func (r *rig) dispatch(t *testing.T, c *chat.Client, kind chat.EventKind, data map[string]any) error {
	t.Helper()
	return r.srv.Disp().Dispatch(r.ctx, c, &chat.Frame{Kind: kind, Data: data})
}

func drain(c *chat.Client) {
	for {
		select {
		case <-c.Send:
		case <-time.After(50 * time.Millisecond):
			return
		}
	}
}

func recvFrame(t *testing.T, c *chat.Client) *chat.Frame {
	t.Helper()
	select {
	case raw := <-c.Send:
		f, err := chat.ParseFrameJSON(raw)
		if err != nil {
			t.Fatalf("unparseable frame: %v", err)
		}
		return f
	case <-time.After(time.Second):
		t.Fatalf("no frame within deadline")
		return nil
	}
}

func expectNoFrame(t *testing.T, c *chat.Client) {
	t.Helper()
	select {
	case raw := <-c.Send:
		t.Fatalf("unexpected frame: %s", raw)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestRegisterAllCoversEveryInboundKind(t *testing.T) {
	rigged := newRig(t, chat.Config{})
	for _, k := range chat.InboundKinds() {
		if !rigged.srv.Disp().HasHandler(k) {
			t.Fatalf("kind %s has no handler", k)
		}
	}
}

func TestJoinEnforcesMembership(t *testing.T) {
	r := newRig(t, chat.Config{})
	r.store.participants["conv1"] = []string{"alice", "bob"}

	alice := r.connect(t, "a1", "alice")
	mallory := r.connect(t, "m1", "mallory")

	if err := r.dispatch(t, alice, chat.KindJoinRoom, map[string]any{"conversationId": "conv1"}); err != nil {
		t.Fatalf("member join: %v", err)
	}
	if !r.srv.Rooms().InRoom("conv1", alice) {
		t.Fatalf("member must be in the room")
	}

	// non-member and unknown conversation are both silent no-ops
	if err := r.dispatch(t, mallory, chat.KindJoinRoom, map[string]any{"conversationId": "conv1"}); err != nil {
		t.Fatalf("non-member join must not error: %v", err)
	}
	if r.srv.Rooms().InRoom("conv1", mallory) {
		t.Fatalf("non-member must not be admitted")
	}
	if err := r.dispatch(t, alice, chat.KindJoinRoom, map[string]any{"conversationId": "nope"}); err != nil {
		t.Fatalf("unknown conversation join must not error: %v", err)
	}
	if r.srv.Rooms().InRoom("nope", alice) {
		t.Fatalf("unknown conversation must not gain a room member")
	}
}

func TestJoinOpenMode(t *testing.T) {
	r := newRig(t, chat.Config{AllowOpenRoomJoin: true})
	c := r.connect(t, "a1", "alice")

	if err := r.dispatch(t, c, chat.KindJoinRoom, map[string]any{"conversationId": "conv1"}); err != nil {
		t.Fatalf("open join: %v", err)
	}
	if !r.srv.Rooms().InRoom("conv1", c) {
		t.Fatalf("open mode must admit without a membership check")
	}
}

func TestLeaveRoom(t *testing.T) {
	r := newRig(t, chat.Config{AllowOpenRoomJoin: true})
	c := r.connect(t, "a1", "alice")

	_ = r.dispatch(t, c, chat.KindJoinRoom, map[string]any{"conversationId": "conv1"})
	if err := r.dispatch(t, c, chat.KindLeaveRoom, map[string]any{"conversationId": "conv1"}); err != nil {
		t.Fatalf("leave: %v", err)
	}
	if r.srv.Rooms().InRoom("conv1", c) {
		t.Fatalf("client should have left the room")
	}
	// leaving again is a no-op
	if err := r.dispatch(t, c, chat.KindLeaveRoom, map[string]any{"conversationId": "conv1"}); err != nil {
		t.Fatalf("double leave must not error: %v", err)
	}
}

func TestTypingBroadcastExcludesSender(t *testing.T) {
	r := newRig(t, chat.Config{AllowOpenRoomJoin: true, TypingTTL: time.Minute})
	alice := r.connect(t, "a1", "alice")
	bob := r.connect(t, "b1", "bob")
	drain(alice)

	_ = r.dispatch(t, alice, chat.KindJoinRoom, map[string]any{"conversationId": "conv1"})
	_ = r.dispatch(t, bob, chat.KindJoinRoom, map[string]any{"conversationId": "conv1"})

	if err := r.dispatch(t, alice, chat.KindTyping, map[string]any{"conversationId": "conv1", "isTyping": true}); err != nil {
		t.Fatalf("typing: %v", err)
	}
	f := recvFrame(t, bob)
	if f.Kind != chat.KindTypingChanged || f.Data["isTyping"] != true {
		t.Fatalf("bob frame = %s %v", f.Kind, f.Data)
	}
	expectNoFrame(t, alice)

	if !r.srv.Typing().IsTyping("conv1", "alice") {
		t.Fatalf("mark should be live")
	}
}

func TestTypingStopWithoutMarkIsSilent(t *testing.T) {
	r := newRig(t, chat.Config{AllowOpenRoomJoin: true, TypingTTL: time.Minute})
	alice := r.connect(t, "a1", "alice")
	bob := r.connect(t, "b1", "bob")
	drain(alice)

	_ = r.dispatch(t, alice, chat.KindJoinRoom, map[string]any{"conversationId": "conv1"})
	_ = r.dispatch(t, bob, chat.KindJoinRoom, map[string]any{"conversationId": "conv1"})

	if err := r.dispatch(t, alice, chat.KindTyping, map[string]any{"conversationId": "conv1", "isTyping": false}); err != nil {
		t.Fatalf("stop without mark: %v", err)
	}
	expectNoFrame(t, bob)
}

func TestTypingOutsideRoomIgnored(t *testing.T) {
	r := newRig(t, chat.Config{AllowOpenRoomJoin: true, TypingTTL: time.Minute})
	alice := r.connect(t, "a1", "alice")

	if err := r.dispatch(t, alice, chat.KindTyping, map[string]any{"conversationId": "conv1", "isTyping": true}); err != nil {
		t.Fatalf("typing outside room must not error: %v", err)
	}
	if r.srv.Typing().IsTyping("conv1", "alice") {
		t.Fatalf("no mark may be created outside the room")
	}
}

func TestMarkReadIdempotent(t *testing.T) {
	r := newRig(t, chat.Config{AllowOpenRoomJoin: true})
	alice := r.connect(t, "a1", "alice")
	bob := r.connect(t, "b1", "bob")
	drain(alice)

	_ = r.dispatch(t, alice, chat.KindJoinRoom, map[string]any{"conversationId": "conv1"})
	_ = r.dispatch(t, bob, chat.KindJoinRoom, map[string]any{"conversationId": "conv1"})

	if err := r.dispatch(t, alice, chat.KindMarkRead, map[string]any{"conversationId": "conv1"}); err != nil {
		t.Fatalf("mark-read: %v", err)
	}
	// receipt reaches the room with no exclusion, reader included
	for _, c := range []*chat.Client{alice, bob} {
		f := recvFrame(t, c)
		if f.Kind != chat.KindReadReceipt || f.Data["userId"] != "alice" {
			t.Fatalf("receipt frame = %s %v", f.Kind, f.Data)
		}
	}

	// second mark modifies nothing and publishes nothing
	if err := r.dispatch(t, alice, chat.KindMarkRead, map[string]any{"conversationId": "conv1"}); err != nil {
		t.Fatalf("repeat mark-read: %v", err)
	}
	expectNoFrame(t, bob)
}

func TestSetStatus(t *testing.T) {
	r := newRig(t, chat.Config{})
	alice := r.connect(t, "a1", "alice")
	bob := r.connect(t, "b1", "bob")
	drain(alice)

	if err := r.dispatch(t, alice, chat.KindSetStatus, map[string]any{"status": "away"}); err != nil {
		t.Fatalf("set-status: %v", err)
	}
	if r.store.statuses["alice"] != chatmodel.StatusAway {
		t.Fatalf("status not persisted: %v", r.store.statuses)
	}
	f := recvFrame(t, bob)
	if f.Kind != chat.KindStatusChanged || f.Data["status"] != "away" {
		t.Fatalf("status frame = %s %v", f.Kind, f.Data)
	}

	if err := r.dispatch(t, alice, chat.KindSetStatus, map[string]any{"status": "sleepy"}); err == nil {
		t.Fatalf("invalid status must error")
	}
}

func TestPingPong(t *testing.T) {
	r := newRig(t, chat.Config{})
	alice := r.connect(t, "a1", "alice")
	bob := r.connect(t, "b1", "bob")
	drain(alice)

	if err := r.dispatch(t, alice, chat.KindPing, nil); err != nil {
		t.Fatalf("ping: %v", err)
	}
	if f := recvFrame(t, alice); f.Kind != chat.KindPong {
		t.Fatalf("expected pong, got %s", f.Kind)
	}
	expectNoFrame(t, bob)
}
