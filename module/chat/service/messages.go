package service

import (
	"net/http"
	"strconv"

	"PRelay/middleware"
	chatmodel "PRelay/module/chat/model"
	chat "PRelay/service/chat"
	"PRelay/tools/errs"

	"github.com/gin-gonic/gin"
)

type createMessageReq struct {
	Content string `json:"content" binding:"required"`
}

type createAttachmentReq struct {
	Content    string               `json:"content"`
	Attachment chatmodel.Attachment `json:"attachment" binding:"required"`
}

type editMessageReq struct {
	Content string `json:"content" binding:"required"`
}

func (a *ChatAPI) requireMember(c *gin.Context, convID string) (*chatmodel.Conversation, bool) {
	conv, err := a.store.GetConversation(c.Request.Context(), convID)
	if err != nil {
		fail(c, err)
		return nil, false
	}
	if !conv.HasParticipant(middleware.UserID(c)) {
		fail(c, errs.ErrNoPermission.WrapMsg("not a member", "conv", convID))
		return nil, false
	}
	return conv, true
}

func (a *ChatAPI) listMessages(c *gin.Context) {
	convID := c.Param("chatId")
	if _, ok := a.requireMember(c, convID); !ok {
		return
	}
	page, _ := strconv.ParseInt(c.DefaultQuery("page", "1"), 10, 64)
	limit, _ := strconv.ParseInt(c.DefaultQuery("limit", "50"), 10, 64)

	msgs, total, err := a.store.ListMessages(c.Request.Context(), convID, page, limit)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"messages": msgs,
		"total":    total,
		"page":     page,
		"limit":    limit,
	})
}

// createMessage persists and then announces to the room. The sender's
// connections are not excluded; their other devices render from the same
// event everyone else gets.
func (a *ChatAPI) createMessage(c *gin.Context) {
	convID := c.Param("chatId")
	if _, ok := a.requireMember(c, convID); !ok {
		return
	}
	var req createMessageReq
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, errs.ErrArgs.WrapMsg(err.Error()))
		return
	}

	msg, err := a.store.CreateMessage(c.Request.Context(), convID, middleware.UserID(c),
		chatmodel.MessageTypeText, req.Content, nil)
	if err != nil {
		fail(c, err)
		return
	}
	a.publish(c, string(chat.KindMessageCreated), convID, nil, msg)
	c.JSON(http.StatusCreated, msg)
}

// createAttachment accepts a reference to an already-uploaded blob; the
// upload itself happens elsewhere.
func (a *ChatAPI) createAttachment(c *gin.Context) {
	convID := c.Param("chatId")
	if _, ok := a.requireMember(c, convID); !ok {
		return
	}
	var req createAttachmentReq
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, errs.ErrArgs.WrapMsg(err.Error()))
		return
	}
	if req.Attachment.URL == "" {
		fail(c, errs.ErrArgs.WrapMsg("attachment url required"))
		return
	}

	msg, err := a.store.CreateMessage(c.Request.Context(), convID, middleware.UserID(c),
		chatmodel.MessageTypeFile, req.Content, &req.Attachment)
	if err != nil {
		fail(c, err)
		return
	}
	a.publish(c, string(chat.KindMessageCreated), convID, nil, msg)
	c.JSON(http.StatusCreated, msg)
}

// markRead is idempotent end to end: zero modified messages means no
// receipt is published.
func (a *ChatAPI) markRead(c *gin.Context) {
	convID := c.Param("chatId")
	if _, ok := a.requireMember(c, convID); !ok {
		return
	}
	uid := middleware.UserID(c)

	modified, err := a.store.MarkRead(c.Request.Context(), convID, uid)
	if err != nil {
		fail(c, err)
		return
	}
	if modified > 0 {
		a.publish(c, string(chat.KindReadReceipt), convID, nil,
			chat.ReadReceiptPayload{ConversationID: convID, UserID: uid})
	}
	c.JSON(http.StatusOK, gin.H{"marked": modified})
}

func (a *ChatAPI) editMessage(c *gin.Context) {
	var req editMessageReq
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, errs.ErrArgs.WrapMsg(err.Error()))
		return
	}
	msg, err := a.store.EditMessage(c.Request.Context(), c.Param("messageId"), middleware.UserID(c), req.Content)
	if err != nil {
		fail(c, err)
		return
	}
	a.publish(c, string(chat.KindMessageEdited), msg.ConversationID, nil, msg)
	c.JSON(http.StatusOK, msg)
}

func (a *ChatAPI) deleteMessage(c *gin.Context) {
	msg, err := a.store.DeleteMessage(c.Request.Context(), c.Param("messageId"), middleware.UserID(c))
	if err != nil {
		fail(c, err)
		return
	}
	a.publish(c, string(chat.KindMessageDeleted), msg.ConversationID, nil,
		chat.MessageDeletedPayload{MessageID: msg.ID, ConversationID: msg.ConversationID})
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}
