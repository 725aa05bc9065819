package message

import (
	"context"
	"time"

	chatmodel "PRelay/module/chat/model"
	"PRelay/tools/errs"
	"PRelay/tools/ids"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// CreateMessage persists a message and bumps the conversation's
// last_message snapshot. The caller is responsible for fan-out.
func (s *Store) CreateMessage(ctx context.Context, convID, senderID, msgType, content string, att *chatmodel.Attachment) (*chatmodel.Message, error) {
	m := &chatmodel.Message{
		ID:             ids.GenerateString(),
		ConversationID: convID,
		SenderID:       senderID,
		Type:           msgType,
		Content:        content,
		Attachment:     att,
		CreatedAt:      time.Now(),
	}
	if !m.HasContent() {
		return nil, errs.ErrArgs.WrapMsg("message needs content or attachment")
	}
	if _, err := s.Msgs.InsertOne(ctx, m); err != nil {
		return nil, errors.Wrap(err, "insert message")
	}
	if err := s.bumpLastMessage(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

func (s *Store) bumpLastMessage(ctx context.Context, m *chatmodel.Message) error {
	_, err := s.Convs.UpdateOne(ctx,
		bson.M{"_id": m.ConversationID},
		bson.M{"$set": bson.M{
			"last_message": &chatmodel.LastMessage{
				MessageID: m.ID,
				SenderID:  m.SenderID,
				Content:   m.Content,
				CreatedAt: m.CreatedAt,
			},
			"updated_at": m.CreatedAt,
		}},
	)
	return errors.Wrap(err, "bump last message")
}

// MarkRead appends the reader to read_by on every unread message in the
// conversation that the reader did not send. The filter keeps it
// idempotent: a message already carrying this reader is not matched, so a
// second call changes nothing.
func (s *Store) MarkRead(ctx context.Context, convID, readerID string) (int64, error) {
	res, err := s.Msgs.UpdateMany(ctx,
		bson.M{
			"conversation_id": convID,
			"sender_id":       bson.M{"$ne": readerID},
			"read_by.user_id": bson.M{"$ne": readerID},
		},
		bson.M{"$push": bson.M{
			"read_by": chatmodel.ReadMark{UserID: readerID, ReadAt: time.Now()},
		}},
	)
	if err != nil {
		return 0, errors.Wrap(err, "mark read")
	}
	return res.ModifiedCount, nil
}

// EditMessage updates content on the sender's own text message.
func (s *Store) EditMessage(ctx context.Context, msgID, senderID, content string) (*chatmodel.Message, error) {
	if content == "" {
		return nil, errs.ErrArgs.WrapMsg("empty content")
	}
	var out chatmodel.Message
	err := s.Msgs.FindOneAndUpdate(ctx,
		bson.M{"_id": msgID, "sender_id": senderID, "type": chatmodel.MessageTypeText, "is_deleted": false},
		bson.M{"$set": bson.M{"content": content, "is_edited": true}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&out)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, errs.ErrNotFound.WrapMsg("message not found or not editable", "id", msgID)
	}
	if err != nil {
		return nil, errors.Wrap(err, "edit message")
	}
	return &out, nil
}

// DeleteMessage soft-deletes the sender's own message; content is replaced
// so history pulls never leak the original text.
func (s *Store) DeleteMessage(ctx context.Context, msgID, senderID string) (*chatmodel.Message, error) {
	var out chatmodel.Message
	err := s.Msgs.FindOneAndUpdate(ctx,
		bson.M{"_id": msgID, "sender_id": senderID},
		bson.M{"$set": bson.M{"is_deleted": true, "content": "This message was deleted"}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&out)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, errs.ErrNotFound.WrapMsg("message not found or not the sender", "id", msgID)
	}
	if err != nil {
		return nil, errors.Wrap(err, "delete message")
	}
	return &out, nil
}
