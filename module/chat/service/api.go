// Package service is the REST surface of the chat module. Every mutation
// persists first, then publishes a domain event on the bus; the realtime
// gateway owns delivery from there.
package service

import (
	"encoding/json"
	"errors"
	"net/http"

	"PRelay/logger"
	"PRelay/middleware"
	"PRelay/module/chat/message"
	"PRelay/service/broker"
	"PRelay/tools/errs"
	"PRelay/tools/security"

	"github.com/gin-gonic/gin"
)

type ChatAPI struct {
	store *message.Store
	bus   broker.Bus
}

func NewChatAPI(store *message.Store, bus broker.Bus) *ChatAPI {
	return &ChatAPI{store: store, bus: bus}
}

// RegisterRoutes mounts the chat REST endpoints behind JWT auth.
func (a *ChatAPI) RegisterRoutes(r *gin.Engine, jwtOpts security.Options) {
	api := r.Group("/api", middleware.Auth(jwtOpts))

	chats := api.Group("/chats")
	chats.GET("", a.listConversations)
	chats.POST("/direct", a.createDirect)
	chats.POST("/group", a.createGroup)
	chats.PUT("/:chatId", a.renameGroup)
	chats.POST("/:chatId/participants", a.addParticipants)
	chats.DELETE("/:chatId/participants/:userId", a.removeParticipant)
	chats.POST("/:chatId/leave", a.leaveGroup)

	msgs := api.Group("/messages")
	msgs.GET("/chat/:chatId", a.listMessages)
	msgs.POST("/chat/:chatId", a.createMessage)
	msgs.POST("/chat/:chatId/attachment", a.createAttachment)
	msgs.PUT("/chat/:chatId/read", a.markRead)
	msgs.PUT("/:messageId", a.editMessage)
	msgs.DELETE("/:messageId", a.deleteMessage)
}

// publish sends one domain event; delivery is best effort and never
// fails the HTTP request that already persisted its mutation.
func (a *ChatAPI) publish(c *gin.Context, kind, convID string, targets []string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		logger.Errorf("[chatapi] marshal %s payload: %v", kind, err)
		return
	}
	ev := &broker.DomainEvent{
		Kind:           kind,
		ConversationID: convID,
		Targets:        targets,
		Payload:        data,
	}
	raw, err := ev.Encode()
	if err != nil {
		logger.Errorf("[chatapi] encode %s event: %v", kind, err)
		return
	}
	if err := a.bus.Publish(c.Request.Context(), broker.SubjectDomain, raw); err != nil {
		logger.Errorf("[chatapi] publish %s: %v", kind, err)
	}
}

func fail(c *gin.Context, err error) {
	var coded *errs.CodeError
	if errors.As(err, &coded) {
		c.JSON(httpStatus(coded.Code), gin.H{"code": coded.Code, "error": coded.Msg})
		return
	}
	logger.Errorf("[chatapi] %s %s: %v", c.Request.Method, c.FullPath(), err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}

func httpStatus(code int) int {
	switch code {
	case errs.ErrArgs.Code:
		return http.StatusBadRequest
	case errs.ErrTokenInvalid.Code:
		return http.StatusUnauthorized
	case errs.ErrNotFound.Code:
		return http.StatusNotFound
	case errs.ErrNoPermission.Code:
		return http.StatusForbidden
	}
	return http.StatusInternalServerError
}
