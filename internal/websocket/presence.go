package websocket

import (
	"sort"
	"sync"

	"github.com/Ashy-21/TWINK/internal/models"
)

// PresenceTopic carries online/offline events for every authenticated connection.
const PresenceTopic = "presence"

func ChatTopic(room string) string {
	return "chat_" + room
}

func UserPresenceTopic(username string) string {
	return "presence_user_" + username
}

const presenceTrackerID = "presence-tracker"

// PresenceTracker folds connection-level presence events into per-user state:
// a user is online while at least one of their connections is open.
type PresenceTracker struct {
	mu     sync.RWMutex
	counts map[string]int
}

func NewPresenceTracker() *PresenceTracker {
	return &PresenceTracker{counts: make(map[string]int)}
}

func (p *PresenceTracker) ID() string {
	return presenceTrackerID
}

// Deliver implements Subscriber. Non-presence payloads are ignored.
func (p *PresenceTracker) Deliver(ev Event) error {
	frame, ok := ev.Payload.(models.PresenceFrame)
	if !ok {
		return nil
	}
	p.Apply(frame)
	return nil
}

// Apply folds a single presence event.
func (p *PresenceTracker) Apply(frame models.PresenceFrame) {
	if frame.Username == "" {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	switch frame.Status {
	case models.StatusOnline:
		p.counts[frame.Username]++
	case models.StatusOffline:
		if p.counts[frame.Username] <= 1 {
			delete(p.counts, frame.Username)
			return
		}
		p.counts[frame.Username]--
	}
}

func (p *PresenceTracker) IsOnline(username string) bool {
	return p.Connections(username) > 0
}

// Connections returns how many open connections username has.
func (p *PresenceTracker) Connections(username string) int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.counts[username]
}

// Online returns the usernames with at least one open connection, sorted.
func (p *PresenceTracker) Online() []string {
	p.mu.RLock()
	users := make([]string, 0, len(p.counts))
	for name := range p.counts {
		users = append(users, name)
	}
	p.mu.RUnlock()

	sort.Strings(users)
	return users
}
