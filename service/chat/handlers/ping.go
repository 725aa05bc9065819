package handlers

import (
	"PRelay/service/chat"
)

type pingHandler struct{}

func (pingHandler) Kind() chat.EventKind { return chat.KindPing }

// Handle answers an application-level ping on the same connection only.
func (pingHandler) Handle(_ *chat.Context, c *chat.Client, _ *chat.Frame) error {
	data, err := chat.MarshalFrame(chat.KindPong, nil)
	if err != nil {
		return err
	}
	c.Enqueue(data)
	return nil
}
