package chat

import (
	"sync"
)

// RoomManager maps a conversation to the set of connections subscribed
// to its events. Join and leave are idempotent; the byConn reverse index
// lets a disconnecting client be pulled out of every room in one call.
type RoomManager struct {
	mu     sync.RWMutex
	rooms  map[string]map[string]*Client  // conversation_id -> conn_id -> client
	byConn map[string]map[string]struct{} // conn_id -> conversation ids
}

func NewRoomManager() *RoomManager {
	return &RoomManager{
		rooms:  make(map[string]map[string]*Client),
		byConn: make(map[string]map[string]struct{}),
	}
}

func (r *RoomManager) Join(convID string, c *Client) {
	if convID == "" || c == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	room := r.rooms[convID]
	if room == nil {
		room = make(map[string]*Client)
		r.rooms[convID] = room
	}
	room[c.ConnID] = c

	joined := r.byConn[c.ConnID]
	if joined == nil {
		joined = make(map[string]struct{})
		r.byConn[c.ConnID] = joined
	}
	joined[convID] = struct{}{}
}

func (r *RoomManager) Leave(convID string, c *Client) {
	if convID == "" || c == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.leaveLocked(convID, c.ConnID)
}

// LeaveAll removes the connection from every room it joined.
func (r *RoomManager) LeaveAll(c *Client) {
	if c == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for convID := range r.byConn[c.ConnID] {
		r.leaveLocked(convID, c.ConnID)
	}
}

func (r *RoomManager) leaveLocked(convID, connID string) {
	if room := r.rooms[convID]; room != nil {
		delete(room, connID)
		if len(room) == 0 {
			delete(r.rooms, convID)
		}
	}
	if joined := r.byConn[connID]; joined != nil {
		delete(joined, convID)
		if len(joined) == 0 {
			delete(r.byConn, connID)
		}
	}
}

// EvictUser proactively removes all of a user's connections from one
// room, used when a member is removed from a group.
func (r *RoomManager) EvictUser(convID, userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	room := r.rooms[convID]
	for connID, c := range room {
		if c.UserID == userID {
			r.leaveLocked(convID, connID)
		}
	}
}

// Connections snapshots the room's current members.
func (r *RoomManager) Connections(convID string) []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	room := r.rooms[convID]
	if len(room) == 0 {
		return nil
	}
	out := make([]*Client, 0, len(room))
	for _, c := range room {
		out = append(out, c)
	}
	return out
}

func (r *RoomManager) InRoom(convID string, c *Client) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	room := r.rooms[convID]
	if room == nil {
		return false
	}
	_, ok := room[c.ConnID]
	return ok
}
