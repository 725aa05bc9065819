package model

import (
	"time"

	"PRelay/service/mgo"

	"go.mongodb.org/mongo-driver/mongo"
)

// Status is the user-chosen status. Online/offline as seen by peers is
// derived from live connections, never read from this field alone.
type Status string

const (
	StatusOnline  Status = "online"
	StatusAway    Status = "away"
	StatusBusy    Status = "busy"
	StatusOffline Status = "offline"
)

func ValidStatus(s Status) bool {
	switch s {
	case StatusOnline, StatusAway, StatusBusy, StatusOffline:
		return true
	}
	return false
}

type User struct {
	ID          string    `bson:"_id" json:"id"`
	Username    string    `bson:"username" json:"username"`
	DisplayName string    `bson:"display_name" json:"displayName"`
	AvatarURL   string    `bson:"avatar_url,omitempty" json:"avatarUrl,omitempty"`
	Status      Status    `bson:"status" json:"status"`
	LastSeen    time.Time `bson:"last_seen" json:"lastSeen"`
}

func (*User) GetTableName() string { return "user" }

func (u *User) Collection() *mongo.Collection {
	return mgo.GetDB().Collection(u.GetTableName())
}
