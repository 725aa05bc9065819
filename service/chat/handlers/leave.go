package handlers

import (
	"PRelay/service/chat"

	"github.com/pkg/errors"
)

type leaveRoomHandler struct{}

func (leaveRoomHandler) Kind() chat.EventKind { return chat.KindLeaveRoom }

// Handle drops the connection from the room. Leaving a room the
// connection never joined is a no-op.
func (leaveRoomHandler) Handle(ctx *chat.Context, c *chat.Client, f *chat.Frame) error {
	p, err := chat.DecodePayload[chat.LeaveRoomPayload](f)
	if err != nil {
		return errors.Wrap(err, "decode leave-room")
	}
	if p.ConversationID == "" {
		return errors.New("leave-room missing conversationId")
	}
	ctx.S.Rooms().Leave(p.ConversationID, c)
	return nil
}
