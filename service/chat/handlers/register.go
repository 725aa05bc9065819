// Package handlers holds one handler per inbound frame kind. RegisterAll
// wires the full table and fails if any kind is left uncovered.
package handlers

import (
	"context"
	"time"

	"PRelay/service/chat"
)

const storeTimeout = 5 * time.Second

func RegisterAll(s *chat.Server) error {
	d := s.Disp()
	d.Register(&joinRoomHandler{})
	d.Register(&leaveRoomHandler{})
	d.Register(&typingHandler{})
	d.Register(&markReadHandler{})
	d.Register(&setStatusHandler{})
	d.Register(&pingHandler{})
	return d.EnsureHandlers(chat.InboundKinds()...)
}

func storeCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), storeTimeout)
}
