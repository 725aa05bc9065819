package message

import (
	"context"

	chatmodel "PRelay/module/chat/model"
	"PRelay/tools/errs"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func (s *Store) GetConversation(ctx context.Context, convID string) (*chatmodel.Conversation, error) {
	var conv chatmodel.Conversation
	err := s.Convs.FindOne(ctx, bson.M{"_id": convID}).Decode(&conv)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, errs.ErrNotFound.WrapMsg("conversation not found", "id", convID)
	}
	if err != nil {
		return nil, errors.Wrap(err, "get conversation")
	}
	return &conv, nil
}

// Participants is the narrow lookup the realtime core uses for join-time
// membership checks and direct fan-out targeting.
func (s *Store) Participants(ctx context.Context, convID string) ([]string, error) {
	conv, err := s.GetConversation(ctx, convID)
	if err != nil {
		return nil, err
	}
	return conv.Participants, nil
}

// ListConversations returns the user's conversations, most recently
// touched first.
func (s *Store) ListConversations(ctx context.Context, userID string) ([]chatmodel.Conversation, error) {
	cur, err := s.Convs.Find(ctx,
		bson.M{"participants": userID},
		options.Find().SetSort(bson.M{"updated_at": -1}),
	)
	if err != nil {
		return nil, errors.Wrap(err, "list conversations")
	}
	defer func() { _ = cur.Close(ctx) }()

	var out []chatmodel.Conversation
	if err := cur.All(ctx, &out); err != nil {
		return nil, errors.Wrap(err, "decode conversations")
	}
	return out, nil
}

// ListMessages pages history newest-first in storage order but returns
// each page oldest-first, which is what clients append to their view.
// Deleted messages are excluded.
func (s *Store) ListMessages(ctx context.Context, convID string, page, limit int64) ([]chatmodel.Message, int64, error) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	filter := bson.M{"conversation_id": convID, "is_deleted": false}

	cur, err := s.Msgs.Find(ctx, filter, options.Find().
		SetSort(bson.M{"created_at": -1}).
		SetSkip((page-1)*limit).
		SetLimit(limit),
	)
	if err != nil {
		return nil, 0, errors.Wrap(err, "list messages")
	}
	defer func() { _ = cur.Close(ctx) }()

	var batch []chatmodel.Message
	if err := cur.All(ctx, &batch); err != nil {
		return nil, 0, errors.Wrap(err, "decode messages")
	}
	// reverse to oldest-first
	for i, j := 0, len(batch)-1; i < j; i, j = i+1, j-1 {
		batch[i], batch[j] = batch[j], batch[i]
	}

	total, err := s.Msgs.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, errors.Wrap(err, "count messages")
	}
	return batch, total, nil
}
