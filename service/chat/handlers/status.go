package handlers

import (
	chatmodel "PRelay/module/chat/model"
	"PRelay/service/chat"

	"github.com/pkg/errors"
)

type setStatusHandler struct{}

func (setStatusHandler) Kind() chat.EventKind { return chat.KindSetStatus }

// Handle persists the user's chosen status and announces it to every
// connection on the gateway.
func (setStatusHandler) Handle(ctx *chat.Context, c *chat.Client, f *chat.Frame) error {
	p, err := chat.DecodePayload[chat.SetStatusPayload](f)
	if err != nil {
		return errors.Wrap(err, "decode set-status")
	}
	status := chatmodel.Status(p.Status)
	if !chatmodel.ValidStatus(status) {
		return errors.Errorf("invalid status %q", p.Status)
	}

	sctx, cancel := storeCtx()
	defer cancel()
	if err := ctx.S.Store().SetUserStatus(sctx, c.UserID, status); err != nil {
		return errors.Wrap(err, "set status")
	}

	ctx.S.BroadcastAll(chat.KindStatusChanged, chat.StatusChangedPayload{
		UserID: c.UserID,
		Status: p.Status,
	})
	return nil
}
