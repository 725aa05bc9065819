package chat

import (
	"encoding/json"
	"fmt"

	decode "PRelay/tools/decode"
)

// EventKind is the closed set of frame kinds on the wire. The dispatcher
// table is checked against InboundKinds at startup, so a kind without a
// handler fails fast instead of surfacing as a runtime string miss.
type EventKind string

// client -> server
const (
	KindJoinRoom  EventKind = "join-room"
	KindLeaveRoom EventKind = "leave-room"
	KindTyping    EventKind = "typing"
	KindMarkRead  EventKind = "mark-read"
	KindSetStatus EventKind = "set-status"
	KindPing      EventKind = "ping"
)

// server -> client
const (
	KindPresenceSnapshot    EventKind = "presence-snapshot"
	KindUserOnline          EventKind = "user-online"
	KindUserOffline         EventKind = "user-offline"
	KindTypingChanged       EventKind = "typing-changed"
	KindMessageCreated      EventKind = "message-created"
	KindMessageEdited       EventKind = "message-edited"
	KindMessageDeleted      EventKind = "message-deleted"
	KindReadReceipt         EventKind = "read-receipt"
	KindConversationCreated EventKind = "conversation-created"
	KindMemberAdded         EventKind = "member-added"
	KindMemberRemoved       EventKind = "member-removed"
	KindStatusChanged       EventKind = "status-changed"
	KindPong                EventKind = "pong"
)

func InboundKinds() []EventKind {
	return []EventKind{KindJoinRoom, KindLeaveRoom, KindTyping, KindMarkRead, KindSetStatus, KindPing}
}

// Frame is one inbound wire message. Data stays generic until the
// handler decodes it into its typed payload.
type Frame struct {
	Kind EventKind      `json:"kind"`
	Data map[string]any `json:"data,omitempty"`
}

func ParseFrameJSON(raw []byte) (*Frame, error) {
	var f Frame
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("unmarshal frame: %w", err)
	}
	if f.Kind == "" {
		return nil, fmt.Errorf("frame missing kind")
	}
	return &f, nil
}

type outFrame struct {
	Kind EventKind `json:"kind"`
	Data any       `json:"data,omitempty"`
}

// MarshalFrame builds an outbound wire message.
func MarshalFrame(kind EventKind, payload any) ([]byte, error) {
	return json.Marshal(outFrame{Kind: kind, Data: payload})
}

// ===== inbound payloads =====

type JoinRoomPayload struct {
	ConversationID string `json:"conversationId"`
}

type LeaveRoomPayload struct {
	ConversationID string `json:"conversationId"`
}

type TypingPayload struct {
	ConversationID string `json:"conversationId"`
	IsTyping       bool   `json:"isTyping"`
}

type MarkReadPayload struct {
	ConversationID string `json:"conversationId"`
}

type SetStatusPayload struct {
	Status string `json:"status"`
}

// DecodePayload decodes a frame's generic data into a typed payload.
func DecodePayload[T any](f *Frame) (*T, error) {
	return decode.DecodeMap[T](f.Data)
}

// ===== outbound payloads =====

type PresenceSnapshotPayload struct {
	OnlineUserIDs []string `json:"onlineUserIds"`
}

type UserPresencePayload struct {
	UserID   string `json:"userId"`
	Username string `json:"username,omitempty"`
}

type TypingChangedPayload struct {
	ConversationID string `json:"conversationId"`
	UserID         string `json:"userId"`
	Username       string `json:"username,omitempty"`
	IsTyping       bool   `json:"isTyping"`
}

type ReadReceiptPayload struct {
	ConversationID string `json:"conversationId"`
	UserID         string `json:"userId"`
}

type MessageDeletedPayload struct {
	MessageID      string `json:"messageId"`
	ConversationID string `json:"conversationId"`
}

type MemberRemovedPayload struct {
	ConversationID string `json:"conversationId"`
}

type StatusChangedPayload struct {
	UserID string `json:"userId"`
	Status string `json:"status"`
}
