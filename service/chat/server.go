package chat

import (
	"context"
	"encoding/json"
	"time"

	"PRelay/logger"
	chatmodel "PRelay/module/chat/model"
	"PRelay/service/broker"
	storage "PRelay/service/storage"
	"PRelay/tools/safe"
	"PRelay/tools/security"
)

// Store is the narrow persistence API the realtime core consumes. The
// REST surface owns validation and writes; the core only needs these.
type Store interface {
	Participants(ctx context.Context, convID string) ([]string, error)
	MarkRead(ctx context.Context, convID, readerID string) (int64, error)
	SetUserStatus(ctx context.Context, userID string, status chatmodel.Status) error
}

// VerifyFunc resolves a connect-time credential into an identity. It is
// an external collaborator; the core never inspects tokens itself.
type VerifyFunc func(token string) (*security.Identity, error)

type Config struct {
	GatewayID     string
	TypingTTL     time.Duration
	SendQueueSize int
	FanoutWorkers int
	FanoutQueue   int

	// AllowOpenRoomJoin preserves the historical behavior where any
	// connection knowing a conversation id may join its room. Off by
	// default: joins are checked against the participant set.
	AllowOpenRoomJoin bool

	// MirrorPresence writes the connection set to redis with this TTL
	// so other services can observe liveness. Best effort only.
	MirrorPresence bool
	PresenceTTL    time.Duration

	VerifyToken VerifyFunc
}

func (c *Config) norm() {
	if c.TypingTTL <= 0 {
		c.TypingTTL = DefaultTypingTTL
	}
	if c.SendQueueSize <= 0 {
		c.SendQueueSize = 256
	}
	if c.FanoutWorkers <= 0 {
		c.FanoutWorkers = 4
	}
	if c.FanoutQueue <= 0 {
		c.FanoutQueue = 4096
	}
	if c.PresenceTTL <= 0 {
		c.PresenceTTL = 2 * time.Hour
	}
}

// Server wires the presence registry, room manager, typing coordinator
// and dispatcher together, and is the single entry point for domain
// mutations arriving from the REST surface.
type Server struct {
	cfg      Config
	store    Store
	presence *PresenceRegistry
	rooms    *RoomManager
	typing   *TypingCoordinator
	disp     *Dispatcher
	fanout   *Fanout
}

func NewServer(cfg Config, store Store) *Server {
	cfg.norm()
	s := &Server{
		cfg:      cfg,
		store:    store,
		presence: NewPresenceRegistry(),
		rooms:    NewRoomManager(),
		disp:     NewDispatcher(),
		fanout:   NewFanout(cfg.FanoutWorkers, cfg.FanoutQueue),
	}
	// a mark that times out on its own reaches the whole room,
	// the owner's connections included
	s.typing = NewTypingCoordinator(cfg.TypingTTL, func(convID, userID, username string) {
		s.BroadcastRoom(convID, KindTypingChanged, TypingChangedPayload{
			ConversationID: convID,
			UserID:         userID,
			Username:       username,
			IsTyping:       false,
		}, nil)
	})
	return s
}

func (s *Server) Conf() Config                { return s.cfg }
func (s *Server) Disp() *Dispatcher           { return s.disp }
func (s *Server) Presence() *PresenceRegistry { return s.presence }
func (s *Server) Rooms() *RoomManager         { return s.rooms }
func (s *Server) Typing() *TypingCoordinator  { return s.typing }
func (s *Server) Store() Store                { return s.store }

func (s *Server) Close() {
	s.typing.Close()
	s.fanout.Close()
}

// ===== connection lifecycle =====

// HandleConnect registers an authenticated connection. The snapshot goes
// only to the new connection; user-online goes to everyone else exactly
// on the user's 0->1 transition.
func (s *Server) HandleConnect(c *Client) {
	first, online := s.presence.Register(c)

	if data, err := MarshalFrame(KindPresenceSnapshot, PresenceSnapshotPayload{OnlineUserIDs: online}); err == nil {
		c.Enqueue(data)
	}

	if first {
		s.broadcastClients("presence", s.presence.AllClientsExcept(c.UserID),
			KindUserOnline, UserPresencePayload{UserID: c.UserID, Username: c.Username})
	}

	if s.cfg.MirrorPresence {
		safe.Go("presence-mirror", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := storage.ConnOnline(ctx, c.UserID, c.ConnID, s.cfg.PresenceTTL); err != nil {
				logger.Warnf("[presence] mirror online failed user=%s: %v", c.UserID, err)
			}
		})
	}

	logger.Infof("[chat] connected user=%s conn=%s first=%v", c.UserID, c.ConnID, first)
}

// HandleDisconnect tears the connection out of every registry. Duplicate
// disconnects are harmless no-ops all the way down.
func (s *Server) HandleDisconnect(c *Client) {
	s.rooms.LeaveAll(c)
	last := s.presence.Unregister(c)

	if last {
		s.broadcastClients("presence", s.presence.AllClientsExcept(c.UserID),
			KindUserOffline, UserPresencePayload{UserID: c.UserID, Username: c.Username})
	}

	if s.cfg.MirrorPresence {
		safe.Go("presence-mirror", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := storage.ConnOffline(ctx, c.UserID, c.ConnID); err != nil {
				logger.Warnf("[presence] mirror offline failed user=%s: %v", c.UserID, err)
			}
		})
	}

	logger.Infof("[chat] disconnected user=%s conn=%s last=%v", c.UserID, c.ConnID, last)
}

// ===== fan-out =====

// BroadcastRoom delivers to every connection in the conversation's room,
// optionally skipping the originating connection. Message and read
// events never set exclude so a sender's other devices stay in sync.
func (s *Server) BroadcastRoom(convID string, kind EventKind, payload any, exclude *Client) {
	conns := s.rooms.Connections(convID)
	if exclude != nil {
		kept := conns[:0]
		for _, c := range conns {
			if c.ConnID != exclude.ConnID {
				kept = append(kept, c)
			}
		}
		conns = kept
	}
	s.broadcastClients("room:"+convID, conns, kind, payload)
}

// SendToUser delivers directly to all of one user's connections, used
// for out-of-room notifications. Zero live connections means the event
// is dropped; the user reconciles on their next REST fetch.
func (s *Server) SendToUser(userID string, kind EventKind, payload any) {
	conns := s.presence.ClientsOf(userID)
	if len(conns) == 0 {
		logger.Debugf("[chat] drop direct notification kind=%s user=%s, no live connections", kind, userID)
		return
	}
	s.broadcastClients("user:"+userID, conns, kind, payload)
}

// BroadcastAll reaches every connection on the gateway.
func (s *Server) BroadcastAll(kind EventKind, payload any) {
	s.broadcastClients("presence", s.presence.AllClients(), kind, payload)
}

func (s *Server) broadcastClients(key string, conns []*Client, kind EventKind, payload any) {
	if len(conns) == 0 {
		return
	}
	data, err := MarshalFrame(kind, payload)
	if err != nil {
		logger.Errorf("[chat] marshal frame kind=%s: %v", kind, err)
		return
	}
	s.fanout.Broadcast(key, conns, data)
}

// ===== domain mutations =====

// AttachBus subscribes the server to the domain-event feed published by
// the REST surface.
func (s *Server) AttachBus(bus broker.Bus) error {
	return bus.Subscribe(broker.SubjectDomain, func(data []byte) {
		ev, err := broker.DecodeDomainEvent(data)
		if err != nil {
			logger.Warnf("[chat] bad domain event: %v", err)
			return
		}
		s.ApplyDomain(ev)
	})
}

// ApplyDomain fans one persisted mutation out to its targets. Events
// with explicit targets are per-user direct deliveries; everything else
// goes to the conversation's room. Called serially per bus subscription,
// which preserves per-room order end to end.
func (s *Server) ApplyDomain(ev *broker.DomainEvent) {
	kind := EventKind(ev.Kind)
	payload := json.RawMessage(ev.Payload)

	if len(ev.Targets) > 0 {
		for _, userID := range ev.Targets {
			if kind == KindMemberRemoved && ev.ConversationID != "" {
				s.rooms.EvictUser(ev.ConversationID, userID)
			}
			s.SendToUser(userID, kind, payload)
		}
		return
	}
	if ev.ConversationID == "" {
		logger.Warnf("[chat] domain event without target or conversation kind=%s", ev.Kind)
		return
	}
	s.BroadcastRoom(ev.ConversationID, kind, payload, nil)
}
