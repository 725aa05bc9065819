package model

import (
	"time"

	"PRelay/service/mgo"
	"PRelay/tools/errs"

	"go.mongodb.org/mongo-driver/mongo"
)

// MinParticipants holds for every conversation, direct or group, at
// creation and after every membership mutation.
const MinParticipants = 2

var ErrTooFewParticipants = errs.ErrArgs.WithDetail("conversation needs at least 2 participants")

// LastMessage is a denormalized snapshot used only for list ordering and
// previews; the message collection stays authoritative.
type LastMessage struct {
	MessageID string    `bson:"message_id" json:"messageId"`
	SenderID  string    `bson:"sender_id" json:"senderId"`
	Content   string    `bson:"content" json:"content"`
	CreatedAt time.Time `bson:"created_at" json:"createdAt"`
}

type Conversation struct {
	ID           string       `bson:"_id" json:"id"`
	Name         string       `bson:"name,omitempty" json:"name,omitempty"`
	IsGroup      bool         `bson:"is_group" json:"isGroup"`
	Participants []string     `bson:"participants" json:"participants"`
	Admins       []string     `bson:"admins,omitempty" json:"admins,omitempty"`
	CreatedBy    string       `bson:"created_by" json:"createdBy"`
	LastMessage  *LastMessage `bson:"last_message,omitempty" json:"lastMessage,omitempty"`
	CreatedAt    time.Time    `bson:"created_at" json:"createdAt"`
	UpdatedAt    time.Time    `bson:"updated_at" json:"updatedAt"`
}

func (*Conversation) GetTableName() string { return "conversation" }

func (c *Conversation) Collection() *mongo.Collection {
	return mgo.GetDB().Collection(c.GetTableName())
}

func (c *Conversation) HasParticipant(userID string) bool {
	for _, p := range c.Participants {
		if p == userID {
			return true
		}
	}
	return false
}

func (c *Conversation) IsAdmin(userID string) bool {
	for _, a := range c.Admins {
		if a == userID {
			return true
		}
	}
	return false
}
