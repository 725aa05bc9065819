package model

import (
	"time"

	"PRelay/service/mgo"

	"go.mongodb.org/mongo-driver/mongo"
)

const (
	MessageTypeText   = "text"
	MessageTypeFile   = "file"
	MessageTypeSystem = "system"
)

// Attachment is a reference to an already-uploaded blob. Upload itself is
// an external collaborator; only the resulting URL travels through here.
type Attachment struct {
	URL      string `bson:"url" json:"url"`
	FileName string `bson:"file_name,omitempty" json:"fileName,omitempty"`
	FileSize int64  `bson:"file_size,omitempty" json:"fileSize,omitempty"`
	FileType string `bson:"file_type,omitempty" json:"fileType,omitempty"`
}

// ReadMark records that a user has read up to and including this message.
// A user appears at most once per message.
type ReadMark struct {
	UserID string    `bson:"user_id" json:"userId"`
	ReadAt time.Time `bson:"read_at" json:"readAt"`
}

type Message struct {
	ID             string      `bson:"_id" json:"id"`
	ConversationID string      `bson:"conversation_id" json:"conversationId"`
	SenderID       string      `bson:"sender_id" json:"senderId"`
	Type           string      `bson:"type" json:"type"`
	Content        string      `bson:"content" json:"content"`
	Attachment     *Attachment `bson:"attachment,omitempty" json:"attachment,omitempty"`
	IsEdited       bool        `bson:"is_edited" json:"isEdited"`
	IsDeleted      bool        `bson:"is_deleted" json:"isDeleted"`
	ReadBy         []ReadMark  `bson:"read_by,omitempty" json:"readBy,omitempty"`
	CreatedAt      time.Time   `bson:"created_at" json:"createdAt"`
}

func (*Message) GetTableName() string { return "message" }

func (m *Message) Collection() *mongo.Collection {
	return mgo.GetDB().Collection(m.GetTableName())
}

// HasContent reports whether the message carries something deliverable.
// System messages are exempt from the content-or-attachment rule.
func (m *Message) HasContent() bool {
	if m.Type == MessageTypeSystem {
		return true
	}
	return m.Content != "" || m.Attachment != nil
}
