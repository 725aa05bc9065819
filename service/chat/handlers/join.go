package handlers

import (
	"PRelay/logger"
	"PRelay/service/chat"

	"github.com/pkg/errors"
)

type joinRoomHandler struct{}

func (joinRoomHandler) Kind() chat.EventKind { return chat.KindJoinRoom }

// Handle subscribes the connection to a conversation's room. Unless the
// gateway runs with open joins, the user must be a participant; unknown
// conversations and non-members are silently ignored so a probing client
// learns nothing.
func (joinRoomHandler) Handle(ctx *chat.Context, c *chat.Client, f *chat.Frame) error {
	p, err := chat.DecodePayload[chat.JoinRoomPayload](f)
	if err != nil {
		return errors.Wrap(err, "decode join-room")
	}
	if p.ConversationID == "" {
		return errors.New("join-room missing conversationId")
	}

	if !ctx.S.Conf().AllowOpenRoomJoin {
		sctx, cancel := storeCtx()
		defer cancel()
		members, err := ctx.S.Store().Participants(sctx, p.ConversationID)
		if err != nil {
			logger.Debugf("[handlers] join lookup conv=%s: %v", p.ConversationID, err)
			return nil
		}
		if !contains(members, c.UserID) {
			logger.Debugf("[handlers] join refused conv=%s user=%s", p.ConversationID, c.UserID)
			return nil
		}
	}

	ctx.S.Rooms().Join(p.ConversationID, c)
	return nil
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
