package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/Ashy-21/TWINK/internal/models"
	"github.com/Ashy-21/TWINK/pkg/logger"
)

var ErrEmptyRoom = errors.New("room name is required")

type ConnState int32

const (
	StateConnecting ConnState = iota
	StateOpen
	StateClosed
)

func (s ConnState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	default:
		return "closed"
	}
}

// Session is one connection's membership in the relay.
type Session struct {
	sub      Subscriber
	room     string
	identity models.Identity

	mu    sync.Mutex
	state ConnState
}

func (s *Session) Room() string              { return s.room }
func (s *Session) Identity() models.Identity { return s.identity }

func (s *Session) State() ConnState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

const roomStripes = 64

// Engine wires connections to the hub, the presence tracker and the persister.
type Engine struct {
	hub       *Hub
	persister *Persister
	presence  *PresenceTracker
	now       func() time.Time

	// roomLocks serialize submit+broadcast per room so that live order and
	// stored order agree.
	roomLocks [roomStripes]sync.Mutex

	mu       sync.Mutex
	sessions map[*Session]struct{}
	idle     *sync.Cond
}

func NewEngine(hub *Hub, persister *Persister) *Engine {
	e := &Engine{
		hub:       hub,
		persister: persister,
		presence:  NewPresenceTracker(),
		now:       time.Now,
		sessions:  make(map[*Session]struct{}),
	}
	e.idle = sync.NewCond(&e.mu)
	hub.Join(PresenceTopic, e.presence)
	return e
}

func (e *Engine) Hub() *Hub                       { return e.hub }
func (e *Engine) Presence() *PresenceTracker      { return e.presence }
func (e *Engine) roomLock(room string) *sync.Mutex { return &e.roomLocks[roomHash(room)%roomStripes] }

// Sessions returns the number of open sessions.
func (e *Engine) Sessions() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.sessions)
}

// Connect subscribes sub to the room and presence topics and announces an
// authenticated identity as online. Anonymous identities are always accepted.
func (e *Engine) Connect(sub Subscriber, room string, id models.Identity) (*Session, error) {
	if room == "" {
		return nil, ErrEmptyRoom
	}

	s := &Session{sub: sub, room: room, identity: id, state: StateConnecting}

	e.hub.Join(ChatTopic(room), sub)
	e.hub.Join(PresenceTopic, sub)
	if id.Authenticated() {
		e.hub.Join(UserPresenceTopic(id.Username), sub)
		e.hub.Broadcast(PresenceTopic, models.NewPresenceFrame(id.Username, models.StatusOnline))
	}

	s.mu.Lock()
	s.state = StateOpen
	s.mu.Unlock()

	e.mu.Lock()
	e.sessions[s] = struct{}{}
	e.mu.Unlock()

	logger.Info("User %s joined room %s", id.DisplayName(), room)
	return s, nil
}

// Disconnect removes every subscription of s and announces an authenticated
// identity as offline. Calling it more than once is a no-op.
func (e *Engine) Disconnect(s *Session) {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return
	}
	s.state = StateClosed
	s.mu.Unlock()

	e.hub.Leave(ChatTopic(s.room), s.sub)
	e.hub.Leave(PresenceTopic, s.sub)
	if s.identity.Authenticated() {
		e.hub.Broadcast(PresenceTopic, models.NewPresenceFrame(s.identity.Username, models.StatusOffline))
		e.hub.Leave(UserPresenceTopic(s.identity.Username), s.sub)
	}

	e.mu.Lock()
	delete(e.sessions, s)
	if len(e.sessions) == 0 {
		e.idle.Broadcast()
	}
	e.mu.Unlock()

	logger.Info("User %s left room %s", s.identity.DisplayName(), s.room)
}

// Receive handles one inbound frame. Authenticated messages are handed to the
// persister and the returned channel reports the outcome; it is nil for
// anonymous senders and closed sessions. The chat event is broadcast either way.
func (e *Engine) Receive(s *Session, frame []byte) <-chan PersistResult {
	if s.State() != StateOpen {
		return nil
	}

	content := parseInbound(frame)

	lock := e.roomLock(s.room)
	lock.Lock()
	defer lock.Unlock()

	var done <-chan PersistResult
	if s.identity.Authenticated() {
		done = e.persister.Submit(models.NewMessage(s.identity, s.room, content))
	}
	e.hub.Broadcast(ChatTopic(s.room), models.NewChatFrame(content, s.identity.DisplayName(), e.now()))
	return done
}

func parseInbound(frame []byte) string {
	var in models.InboundFrame
	if err := json.Unmarshal(frame, &in); err != nil {
		logger.Debug("Unparsable frame treated as empty message: %v", err)
		return ""
	}
	return in.Message
}

// Shutdown closes every connected subscriber that can be closed, waits for their
// sessions to end, then drains the persister.
func (e *Engine) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	subs := make([]Subscriber, 0, len(e.sessions))
	for s := range e.sessions {
		subs = append(subs, s.sub)
	}
	e.mu.Unlock()

	for _, sub := range subs {
		if c, ok := sub.(interface{ Close() error }); ok {
			if err := c.Close(); err != nil {
				logger.Debug("Error closing %s: %v", sub.ID(), err)
			}
		}
	}
	logger.Info("Closed %d client connections", len(subs))

	if err := e.waitIdle(ctx); err != nil {
		logger.Warn("Shutdown timeout reached with %d sessions open", e.Sessions())
	}
	return e.persister.Close(ctx)
}

func (e *Engine) waitIdle(ctx context.Context) error {
	idle := make(chan struct{})
	go func() {
		e.mu.Lock()
		for len(e.sessions) > 0 && ctx.Err() == nil {
			e.idle.Wait()
		}
		e.mu.Unlock()
		close(idle)
	}()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		// wake the waiter so it can observe ctx.Err()
		e.mu.Lock()
		e.idle.Broadcast()
		e.mu.Unlock()
		return ctx.Err()
	}
}
