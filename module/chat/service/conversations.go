package service

import (
	"net/http"

	"PRelay/middleware"
	chat "PRelay/service/chat"
	"PRelay/tools/errs"

	"github.com/gin-gonic/gin"
)

type createDirectReq struct {
	UserID string `json:"userId" binding:"required"`
}

type createGroupReq struct {
	Name           string   `json:"name" binding:"required"`
	ParticipantIDs []string `json:"participantIds" binding:"required"`
}

type renameGroupReq struct {
	Name string `json:"name" binding:"required"`
}

type addParticipantsReq struct {
	UserIDs []string `json:"userIds" binding:"required"`
}

func (a *ChatAPI) listConversations(c *gin.Context) {
	out, err := a.store.ListConversations(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"chats": out})
}

// createDirect returns the existing conversation when one already links
// the pair. Only a genuinely new conversation is announced, and only to
// the peer; the caller already has the response body.
func (a *ChatAPI) createDirect(c *gin.Context) {
	var req createDirectReq
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, errs.ErrArgs.WrapMsg(err.Error()))
		return
	}
	uid := middleware.UserID(c)

	conv, created, err := a.store.CreateDirect(c.Request.Context(), uid, req.UserID)
	if err != nil {
		fail(c, err)
		return
	}
	if created {
		a.publish(c, string(chat.KindConversationCreated), conv.ID, []string{req.UserID}, conv)
		c.JSON(http.StatusCreated, conv)
		return
	}
	c.JSON(http.StatusOK, conv)
}

func (a *ChatAPI) createGroup(c *gin.Context) {
	var req createGroupReq
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, errs.ErrArgs.WrapMsg(err.Error()))
		return
	}
	uid := middleware.UserID(c)

	conv, _, err := a.store.CreateGroup(c.Request.Context(), req.Name, uid, req.ParticipantIDs)
	if err != nil {
		fail(c, err)
		return
	}

	var targets []string
	for _, p := range conv.Participants {
		if p != uid {
			targets = append(targets, p)
		}
	}
	if len(targets) > 0 {
		a.publish(c, string(chat.KindConversationCreated), conv.ID, targets, conv)
	}
	c.JSON(http.StatusCreated, conv)
}

func (a *ChatAPI) renameGroup(c *gin.Context) {
	var req renameGroupReq
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, errs.ErrArgs.WrapMsg(err.Error()))
		return
	}
	conv, err := a.store.RenameGroup(c.Request.Context(), c.Param("chatId"), middleware.UserID(c), req.Name)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, conv)
}

// addParticipants announces the conversation to the new members only;
// existing members discover them on the next conversation fetch.
func (a *ChatAPI) addParticipants(c *gin.Context) {
	var req addParticipantsReq
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, errs.ErrArgs.WrapMsg(err.Error()))
		return
	}
	conv, added, err := a.store.AddParticipants(c.Request.Context(), c.Param("chatId"), middleware.UserID(c), req.UserIDs)
	if err != nil {
		fail(c, err)
		return
	}
	if len(added) > 0 {
		a.publish(c, string(chat.KindMemberAdded), conv.ID, added, conv)
	}
	c.JSON(http.StatusOK, conv)
}

// removeParticipant notifies only the removed user. The envelope carries
// the conversation id so the gateway evicts their live connections from
// the room before delivery.
func (a *ChatAPI) removeParticipant(c *gin.Context) {
	convID := c.Param("chatId")
	target := c.Param("userId")

	conv, err := a.store.RemoveParticipant(c.Request.Context(), convID, middleware.UserID(c), target)
	if err != nil {
		fail(c, err)
		return
	}
	a.publish(c, string(chat.KindMemberRemoved), convID, []string{target},
		chat.MemberRemovedPayload{ConversationID: convID})
	c.JSON(http.StatusOK, conv)
}

// leaveGroup also targets the leaver so their other devices drop the
// room and the conversation from their lists.
func (a *ChatAPI) leaveGroup(c *gin.Context) {
	convID := c.Param("chatId")
	uid := middleware.UserID(c)

	if err := a.store.LeaveGroup(c.Request.Context(), convID, uid); err != nil {
		fail(c, err)
		return
	}
	a.publish(c, string(chat.KindMemberRemoved), convID, []string{uid},
		chat.MemberRemovedPayload{ConversationID: convID})
	c.JSON(http.StatusOK, gin.H{"left": true})
}
