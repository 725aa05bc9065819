package handlers

import (
	"PRelay/service/chat"

	"github.com/pkg/errors"
)

type typingHandler struct{}

func (typingHandler) Kind() chat.EventKind { return chat.KindTyping }

// Handle starts or stops the sender's typing mark and tells the room.
// The sender's own connection is excluded; their other connections still
// hear it. An explicit stop without a live mark broadcasts nothing, so
// a mark that already expired is not announced twice.
func (typingHandler) Handle(ctx *chat.Context, c *chat.Client, f *chat.Frame) error {
	p, err := chat.DecodePayload[chat.TypingPayload](f)
	if err != nil {
		return errors.Wrap(err, "decode typing")
	}
	if p.ConversationID == "" {
		return errors.New("typing missing conversationId")
	}
	if !ctx.S.Rooms().InRoom(p.ConversationID, c) {
		return nil
	}

	if p.IsTyping {
		ctx.S.Typing().Start(p.ConversationID, c.UserID, c.Username)
	} else if !ctx.S.Typing().Stop(p.ConversationID, c.UserID) {
		return nil
	}

	ctx.S.BroadcastRoom(p.ConversationID, chat.KindTypingChanged, chat.TypingChangedPayload{
		ConversationID: p.ConversationID,
		UserID:         c.UserID,
		Username:       c.Username,
		IsTyping:       p.IsTyping,
	}, c)
	return nil
}
