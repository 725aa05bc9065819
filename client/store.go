// Package client is the connection-side state store. It reconciles REST
// fetches with realtime frames so a UI on top of it always renders a
// consistent conversation list, message history and presence view.
package client

import (
	"context"
	"sort"
	"sync"
	"time"

	"PRelay/logger"
	chatmodel "PRelay/module/chat/model"
	"PRelay/tools/safe"

	"github.com/pkg/errors"
)

// API is the REST client the store pulls authoritative state from.
type API interface {
	ListConversations(ctx context.Context) ([]chatmodel.Conversation, error)
	ListMessages(ctx context.Context, convID string, page, limit int64) ([]chatmodel.Message, int64, error)
	MarkRead(ctx context.Context, convID string) error
}

// Phase is a conversation's load state. A conversation moves
// inactive -> loading -> ready when opened; Deactivate returns it to
// inactive without discarding already-loaded history.
type Phase int

const (
	PhaseInactive Phase = iota
	PhaseLoading
	PhaseReady
)

var ErrLoading = errors.New("conversation load already in flight")

const historyPageSize = 50

// Store holds everything one connected user sees. All methods are safe
// for concurrent use; the read loop applies frames while the UI reads.
type Store struct {
	mu   sync.Mutex
	self string
	api  API

	convs    []chatmodel.Conversation
	phases   map[string]Phase
	active   string
	messages map[string][]chatmodel.Message
	seen     map[string]map[string]struct{}
	unread   map[string]int
	typing   map[string]map[string]string
	online   map[string]struct{}
	statuses map[string]string
}

func NewStore(selfID string, api API) *Store {
	return &Store{
		self:     selfID,
		api:      api,
		phases:   make(map[string]Phase),
		messages: make(map[string][]chatmodel.Message),
		seen:     make(map[string]map[string]struct{}),
		unread:   make(map[string]int),
		typing:   make(map[string]map[string]string),
		online:   make(map[string]struct{}),
		statuses: make(map[string]string),
	}
}

// LoadConversations replaces the list with the server's view.
func (s *Store) LoadConversations(ctx context.Context) error {
	convs, err := s.api.ListConversations(ctx)
	if err != nil {
		return errors.Wrap(err, "list conversations")
	}
	s.mu.Lock()
	s.convs = convs
	s.sortLocked()
	s.mu.Unlock()
	return nil
}

// Activate opens a conversation: history is fetched, the unread counter
// clears and a read receipt is sent upstream. A second Activate while
// the first fetch is in flight fails fast instead of racing it.
func (s *Store) Activate(ctx context.Context, convID string) error {
	s.mu.Lock()
	if s.phases[convID] == PhaseLoading {
		s.mu.Unlock()
		return ErrLoading
	}
	s.phases[convID] = PhaseLoading
	s.active = convID
	s.mu.Unlock()

	msgs, _, err := s.api.ListMessages(ctx, convID, 1, historyPageSize)
	if err != nil {
		s.mu.Lock()
		s.phases[convID] = PhaseInactive
		if s.active == convID {
			s.active = ""
		}
		s.mu.Unlock()
		return errors.Wrap(err, "load history")
	}

	s.mu.Lock()
	for _, m := range msgs {
		s.appendLocked(convID, m)
	}
	s.phases[convID] = PhaseReady
	s.unread[convID] = 0
	s.mu.Unlock()

	s.sendMarkRead(convID)
	return nil
}

// Deactivate closes the active conversation. Typing marks for it are
// dropped so a stale indicator cannot survive the view.
func (s *Store) Deactivate(convID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == convID {
		s.active = ""
	}
	if s.phases[convID] == PhaseReady {
		s.phases[convID] = PhaseInactive
	}
	delete(s.typing, convID)
}

// ===== realtime frame application =====

// ApplyMessageCreated merges one new message. Duplicates are dropped by
// id, the conversation bubbles to the top, unread grows only when the
// message is someone else's in a conversation not currently open, and an
// open conversation acknowledges with a read receipt.
func (s *Store) ApplyMessageCreated(m chatmodel.Message) {
	s.mu.Lock()
	conv := s.convLocked(m.ConversationID)
	if conv == nil {
		s.mu.Unlock()
		logger.Debugf("[client] message for unknown conversation %s", m.ConversationID)
		return
	}
	added := s.appendLocked(m.ConversationID, m)

	conv.LastMessage = &chatmodel.LastMessage{
		MessageID: m.ID, SenderID: m.SenderID, Content: m.Content, CreatedAt: m.CreatedAt,
	}
	conv.UpdatedAt = m.CreatedAt
	s.sortLocked()

	isActive := s.active == m.ConversationID
	if added && !isActive && m.SenderID != s.self {
		s.unread[m.ConversationID]++
	}
	if added {
		delete(s.typingFor(m.ConversationID), m.SenderID)
	}
	s.mu.Unlock()

	if added && isActive && m.SenderID != s.self {
		s.sendMarkRead(m.ConversationID)
	}
}

func (s *Store) ApplyMessageEdited(m chatmodel.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msgs := s.messages[m.ConversationID]
	for i := range msgs {
		if msgs[i].ID == m.ID {
			msgs[i].Content = m.Content
			msgs[i].IsEdited = true
			break
		}
	}
	if conv := s.convLocked(m.ConversationID); conv != nil &&
		conv.LastMessage != nil && conv.LastMessage.MessageID == m.ID {
		conv.LastMessage.Content = m.Content
	}
}

func (s *Store) ApplyMessageDeleted(convID, msgID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msgs := s.messages[convID]
	for i := range msgs {
		if msgs[i].ID == msgID {
			s.messages[convID] = append(msgs[:i], msgs[i+1:]...)
			break
		}
	}
	if set := s.seen[convID]; set != nil {
		delete(set, msgID)
	}
}

// ApplyReadReceipt marks every message the reader had not read yet. The
// reader appears at most once per message.
func (s *Store) ApplyReadReceipt(convID, readerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msgs := s.messages[convID]
	for i := range msgs {
		if msgs[i].SenderID == readerID || hasRead(&msgs[i], readerID) {
			continue
		}
		msgs[i].ReadBy = append(msgs[i].ReadBy, chatmodel.ReadMark{UserID: readerID})
	}
	if readerID == s.self {
		s.unread[convID] = 0
	}
}

func (s *Store) ApplyTypingChanged(convID, userID, username string, isTyping bool) {
	if userID == s.self {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if isTyping {
		s.typingFor(convID)[userID] = username
		return
	}
	delete(s.typingFor(convID), userID)
}

func (s *Store) ApplyPresenceSnapshot(userIDs []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.online = make(map[string]struct{}, len(userIDs))
	for _, id := range userIDs {
		s.online[id] = struct{}{}
	}
}

func (s *Store) ApplyUserOnline(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.online[userID] = struct{}{}
}

func (s *Store) ApplyUserOffline(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.online, userID)
	for convID := range s.typing {
		delete(s.typing[convID], userID)
	}
}

func (s *Store) ApplyStatusChanged(userID, status string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses[userID] = status
}

// ApplyConversationCreated prepends a conversation pushed by a peer's
// action; a refetch that already delivered it wins on id.
func (s *Store) ApplyConversationCreated(conv chatmodel.Conversation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.convLocked(conv.ID) != nil {
		return
	}
	s.convs = append([]chatmodel.Conversation{conv}, s.convs...)
	s.sortLocked()
}

// ApplyMemberRemoved handles this user being removed: the conversation
// and everything hanging off it is dropped.
func (s *Store) ApplyMemberRemoved(convID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.convs {
		if s.convs[i].ID == convID {
			s.convs = append(s.convs[:i], s.convs[i+1:]...)
			break
		}
	}
	if s.active == convID {
		s.active = ""
	}
	delete(s.phases, convID)
	delete(s.messages, convID)
	delete(s.seen, convID)
	delete(s.unread, convID)
	delete(s.typing, convID)
}

// ===== reads =====

func (s *Store) Conversations() []chatmodel.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]chatmodel.Conversation, len(s.convs))
	copy(out, s.convs)
	return out
}

func (s *Store) Messages(convID string) []chatmodel.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	msgs := s.messages[convID]
	out := make([]chatmodel.Message, len(msgs))
	copy(out, msgs)
	return out
}

func (s *Store) Unread(convID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unread[convID]
}

func (s *Store) PhaseOf(convID string) Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phases[convID]
}

func (s *Store) ActiveConversation() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

func (s *Store) IsOnline(userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.online[userID]
	return ok
}

func (s *Store) StatusOf(userID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.statuses[userID]
}

// TypingUsers lists who is typing in the conversation.
func (s *Store) TypingUsers(convID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	marks := s.typing[convID]
	out := make([]string, 0, len(marks))
	for id := range marks {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// ===== internals =====

// appendLocked inserts the message if its id is new, keeping the slice
// in createdAt order. Reports whether it was added.
func (s *Store) appendLocked(convID string, m chatmodel.Message) bool {
	set := s.seen[convID]
	if set == nil {
		set = make(map[string]struct{})
		s.seen[convID] = set
	}
	if _, dup := set[m.ID]; dup {
		return false
	}
	set[m.ID] = struct{}{}

	msgs := s.messages[convID]
	i := sort.Search(len(msgs), func(i int) bool {
		return msgs[i].CreatedAt.After(m.CreatedAt)
	})
	msgs = append(msgs, chatmodel.Message{})
	copy(msgs[i+1:], msgs[i:])
	msgs[i] = m
	s.messages[convID] = msgs
	return true
}

func (s *Store) convLocked(convID string) *chatmodel.Conversation {
	for i := range s.convs {
		if s.convs[i].ID == convID {
			return &s.convs[i]
		}
	}
	return nil
}

// sortLocked orders by last activity, newest first. A conversation with
// no message yet sorts on its creation time.
func (s *Store) sortLocked() {
	sort.SliceStable(s.convs, func(i, j int) bool {
		return lastActivity(&s.convs[i]).After(lastActivity(&s.convs[j]))
	})
}

func lastActivity(c *chatmodel.Conversation) time.Time {
	if c.LastMessage != nil {
		return c.LastMessage.CreatedAt
	}
	return c.CreatedAt
}

func (s *Store) typingFor(convID string) map[string]string {
	marks := s.typing[convID]
	if marks == nil {
		marks = make(map[string]string)
		s.typing[convID] = marks
	}
	return marks
}

// sendMarkRead acknowledges upstream without blocking the caller; a
// failed ack is retried implicitly by the next Activate.
func (s *Store) sendMarkRead(convID string) {
	safe.Go("client-markread", func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.api.MarkRead(ctx, convID); err != nil {
			logger.Debugf("[client] mark read %s: %v", convID, err)
		}
	})
}

func hasRead(m *chatmodel.Message, userID string) bool {
	for _, r := range m.ReadBy {
		if r.UserID == userID {
			return true
		}
	}
	return false
}
