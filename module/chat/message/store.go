package message

import (
	"context"
	"time"

	chatmodel "PRelay/module/chat/model"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// Store is the narrow persistence API the realtime core and the REST
// surface share. It owns no caches; every call goes to mongo.
type Store struct {
	Users *mongo.Collection
	Convs *mongo.Collection
	Msgs  *mongo.Collection
}

func NewStore() *Store {
	u := chatmodel.User{}
	c := chatmodel.Conversation{}
	m := chatmodel.Message{}
	return &Store{
		Users: u.Collection(),
		Convs: c.Collection(),
		Msgs:  m.Collection(),
	}
}

// SetUserStatus persists the user-chosen status (online/away/busy/offline)
// and bumps last_seen. Derived presence is not touched here.
func (s *Store) SetUserStatus(ctx context.Context, userID string, status chatmodel.Status) error {
	if !chatmodel.ValidStatus(status) {
		return errors.Errorf("invalid status %q", status)
	}
	_, err := s.Users.UpdateOne(ctx,
		bson.M{"_id": userID},
		bson.M{"$set": bson.M{"status": status, "last_seen": time.Now()}},
	)
	return errors.Wrap(err, "set user status")
}
