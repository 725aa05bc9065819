package message

import (
	"context"
	"fmt"
	"time"

	chatmodel "PRelay/module/chat/model"
	"PRelay/tools/errs"
	"PRelay/tools/ids"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// CreateDirect returns the existing direct conversation between the two
// users or creates one. The second return reports whether it was created.
func (s *Store) CreateDirect(ctx context.Context, userID, peerID string) (*chatmodel.Conversation, bool, error) {
	if peerID == "" || peerID == userID {
		return nil, false, errs.ErrArgs.WrapMsg("bad peer", "peer", peerID)
	}

	var existing chatmodel.Conversation
	err := s.Convs.FindOne(ctx, bson.M{
		"is_group":     false,
		"participants": bson.M{"$all": []string{userID, peerID}, "$size": 2},
	}).Decode(&existing)
	if err == nil {
		return &existing, false, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, false, errors.Wrap(err, "find direct")
	}

	now := time.Now()
	conv := &chatmodel.Conversation{
		ID:           ids.GenerateString(),
		IsGroup:      false,
		Participants: []string{userID, peerID},
		CreatedBy:    userID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if _, err := s.Convs.InsertOne(ctx, conv); err != nil {
		return nil, false, errors.Wrap(err, "insert direct")
	}
	return conv, true, nil
}

// CreateGroup creates a group conversation with the creator as admin plus
// a system message announcing it. Participant count is enforced here and
// on every later mutation.
func (s *Store) CreateGroup(ctx context.Context, name, creatorID string, memberIDs []string) (*chatmodel.Conversation, *chatmodel.Message, error) {
	if name == "" {
		return nil, nil, errs.ErrArgs.WrapMsg("group name required")
	}
	participants := dedupeWith(creatorID, memberIDs)
	if len(participants) < chatmodel.MinParticipants {
		return nil, nil, chatmodel.ErrTooFewParticipants
	}

	now := time.Now()
	conv := &chatmodel.Conversation{
		ID:           ids.GenerateString(),
		Name:         name,
		IsGroup:      true,
		Participants: participants,
		Admins:       []string{creatorID},
		CreatedBy:    creatorID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if _, err := s.Convs.InsertOne(ctx, conv); err != nil {
		return nil, nil, errors.Wrap(err, "insert group")
	}

	sys, err := s.CreateMessage(ctx, conv.ID, creatorID, chatmodel.MessageTypeSystem,
		fmt.Sprintf("created the group %q", name), nil)
	if err != nil {
		return nil, nil, err
	}
	conv.LastMessage = &chatmodel.LastMessage{
		MessageID: sys.ID, SenderID: sys.SenderID, Content: sys.Content, CreatedAt: sys.CreatedAt,
	}
	conv.UpdatedAt = sys.CreatedAt
	return conv, sys, nil
}

// AddParticipants adds the not-yet-present users and returns them.
func (s *Store) AddParticipants(ctx context.Context, convID, adminID string, userIDs []string) (*chatmodel.Conversation, []string, error) {
	conv, err := s.GetConversation(ctx, convID)
	if err != nil {
		return nil, nil, err
	}
	if !conv.IsGroup || !conv.IsAdmin(adminID) {
		return nil, nil, errs.ErrNoPermission.WrapMsg("not a group admin", "conv", convID)
	}

	var added []string
	for _, id := range userIDs {
		if id != "" && !conv.HasParticipant(id) {
			added = append(added, id)
		}
	}
	if len(added) == 0 {
		return conv, nil, nil
	}

	if _, err := s.Convs.UpdateOne(ctx,
		bson.M{"_id": convID},
		bson.M{
			"$addToSet": bson.M{"participants": bson.M{"$each": added}},
			"$set":      bson.M{"updated_at": time.Now()},
		},
	); err != nil {
		return nil, nil, errors.Wrap(err, "add participants")
	}
	conv.Participants = append(conv.Participants, added...)
	return conv, added, nil
}

// RemoveParticipant drops one member. The last admin cannot be removed,
// and a group can never shrink below the participant minimum.
func (s *Store) RemoveParticipant(ctx context.Context, convID, adminID, targetID string) (*chatmodel.Conversation, error) {
	conv, err := s.GetConversation(ctx, convID)
	if err != nil {
		return nil, err
	}
	if !conv.IsGroup || !conv.IsAdmin(adminID) {
		return nil, errs.ErrNoPermission.WrapMsg("not a group admin", "conv", convID)
	}
	if len(conv.Admins) == 1 && conv.Admins[0] == targetID {
		return nil, errs.ErrArgs.WrapMsg("cannot remove the last admin")
	}
	if !conv.HasParticipant(targetID) {
		return conv, nil
	}
	if len(conv.Participants)-1 < chatmodel.MinParticipants {
		return nil, chatmodel.ErrTooFewParticipants
	}

	if _, err := s.Convs.UpdateOne(ctx,
		bson.M{"_id": convID},
		bson.M{
			"$pull": bson.M{"participants": targetID, "admins": targetID},
			"$set":  bson.M{"updated_at": time.Now()},
		},
	); err != nil {
		return nil, errors.Wrap(err, "remove participant")
	}
	conv.Participants = without(conv.Participants, targetID)
	conv.Admins = without(conv.Admins, targetID)
	return conv, nil
}

// LeaveGroup removes the caller; a sole admin hands off to another member
// first, and an emptied group is deleted with its messages.
func (s *Store) LeaveGroup(ctx context.Context, convID, userID string) error {
	conv, err := s.GetConversation(ctx, convID)
	if err != nil {
		return err
	}
	if !conv.IsGroup || !conv.HasParticipant(userID) {
		return errs.ErrNotFound.WrapMsg("not a member", "conv", convID)
	}

	rest := without(conv.Participants, userID)
	if len(rest) == 0 {
		if _, err := s.Msgs.DeleteMany(ctx, bson.M{"conversation_id": convID}); err != nil {
			return errors.Wrap(err, "purge messages")
		}
		_, err := s.Convs.DeleteOne(ctx, bson.M{"_id": convID})
		return errors.Wrap(err, "delete conversation")
	}

	admins := without(conv.Admins, userID)
	if len(admins) == 0 {
		admins = []string{rest[0]}
	}
	_, err = s.Convs.UpdateOne(ctx,
		bson.M{"_id": convID},
		bson.M{"$set": bson.M{
			"participants": rest,
			"admins":       admins,
			"updated_at":   time.Now(),
		}},
	)
	return errors.Wrap(err, "leave group")
}

// RenameGroup is admin-only.
func (s *Store) RenameGroup(ctx context.Context, convID, adminID, name string) (*chatmodel.Conversation, error) {
	if name == "" {
		return nil, errs.ErrArgs.WrapMsg("empty name")
	}
	conv, err := s.GetConversation(ctx, convID)
	if err != nil {
		return nil, err
	}
	if !conv.IsGroup || !conv.IsAdmin(adminID) {
		return nil, errs.ErrNoPermission.WrapMsg("not a group admin", "conv", convID)
	}
	if _, err := s.Convs.UpdateOne(ctx,
		bson.M{"_id": convID},
		bson.M{"$set": bson.M{"name": name, "updated_at": time.Now()}},
	); err != nil {
		return nil, errors.Wrap(err, "rename group")
	}
	conv.Name = name
	return conv, nil
}

func dedupeWith(first string, rest []string) []string {
	seen := map[string]struct{}{first: {}}
	out := []string{first}
	for _, id := range rest {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func without(list []string, id string) []string {
	out := make([]string, 0, len(list))
	for _, v := range list {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
