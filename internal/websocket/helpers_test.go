package websocket

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Ashy-21/TWINK/internal/models"
)

// recorder is a Subscriber that keeps every event it is given.
type recorder struct {
	id string

	mu     sync.Mutex
	events []Event
	fail   error
	closed bool
}

func newRecorder(id string) *recorder {
	return &recorder{id: id}
}

func (r *recorder) ID() string { return r.id }

func (r *recorder) Deliver(ev Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail != nil {
		return r.fail
	}
	r.events = append(r.events, ev)
	return nil
}

func (r *recorder) Close() error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	return nil
}

func (r *recorder) isClosed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

func (r *recorder) setFail(err error) {
	r.mu.Lock()
	r.fail = err
	r.mu.Unlock()
}

func (r *recorder) all() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

func (r *recorder) chats() []models.ChatFrame {
	var out []models.ChatFrame
	for _, ev := range r.all() {
		if f, ok := ev.Payload.(models.ChatFrame); ok {
			out = append(out, f)
		}
	}
	return out
}

func (r *recorder) presence() []models.PresenceFrame {
	var out []models.PresenceFrame
	for _, ev := range r.all() {
		if f, ok := ev.Payload.(models.PresenceFrame); ok {
			out = append(out, f)
		}
	}
	return out
}

// fakeStore is an in-memory MessageStore that records append order.
type fakeStore struct {
	mu     sync.Mutex
	msgs   []*models.Message
	nextID int64
	err    error
	gate   chan struct{}
	delay  time.Duration
}

func (s *fakeStore) AppendMessage(ctx context.Context, msg *models.Message) (*models.Message, error) {
	if s.gate != nil {
		select {
		case <-s.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.delay > 0 {
		time.Sleep(s.delay)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	s.nextID++
	saved := *msg
	saved.ID = s.nextID
	saved.IsGroup = models.IsGroupRoom(msg.RoomName)
	saved.Timestamp = time.Now()
	s.msgs = append(s.msgs, &saved)
	return &saved, nil
}

func (s *fakeStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.msgs)
}

func (s *fakeStore) contents(room string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, m := range s.msgs {
		if m.RoomName == room {
			out = append(out, m.Content)
		}
	}
	return out
}

var errStoreDown = errors.New("store down")

func alice() models.Identity { return models.Identity{UserID: 1, Username: "alice"} }
func bob() models.Identity   { return models.Identity{UserID: 2, Username: "bob"} }

func waitResult(ch <-chan PersistResult) PersistResult {
	select {
	case res := <-ch:
		return res
	case <-time.After(5 * time.Second):
		return PersistResult{Err: errors.New("timed out waiting for persistence")}
	}
}
