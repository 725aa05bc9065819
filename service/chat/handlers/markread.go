package handlers

import (
	"PRelay/service/chat"

	"github.com/pkg/errors"
)

type markReadHandler struct{}

func (markReadHandler) Kind() chat.EventKind { return chat.KindMarkRead }

// Handle records the reader against every unread message in the
// conversation. The write is idempotent; a repeat with nothing left to
// mark modifies zero rows and broadcasts no receipt. The receipt goes to
// the whole room including the reader, so their other devices clear
// unread badges too.
func (markReadHandler) Handle(ctx *chat.Context, c *chat.Client, f *chat.Frame) error {
	p, err := chat.DecodePayload[chat.MarkReadPayload](f)
	if err != nil {
		return errors.Wrap(err, "decode mark-read")
	}
	if p.ConversationID == "" {
		return errors.New("mark-read missing conversationId")
	}

	sctx, cancel := storeCtx()
	defer cancel()
	modified, err := ctx.S.Store().MarkRead(sctx, p.ConversationID, c.UserID)
	if err != nil {
		return errors.Wrap(err, "mark read")
	}
	if modified == 0 {
		return nil
	}

	ctx.S.BroadcastRoom(p.ConversationID, chat.KindReadReceipt, chat.ReadReceiptPayload{
		ConversationID: p.ConversationID,
		UserID:         c.UserID,
	}, nil)
	return nil
}
