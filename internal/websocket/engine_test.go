package websocket

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/Ashy-21/TWINK/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T, store MessageStore) *Engine {
	t.Helper()
	p := NewPersister(store, 4)
	t.Cleanup(func() { _ = p.Close(context.Background()) })
	return NewEngine(NewHub(), p)
}

func TestConnectAuthenticatedJoinsTopics(t *testing.T) {
	e := newTestEngine(t, &fakeStore{})
	sub := newRecorder("a")

	s, err := e.Connect(sub, "group_7", alice())
	require.NoError(t, err)

	assert.Equal(t, StateOpen, s.State())
	assert.True(t, e.Hub().IsSubscribed(ChatTopic("group_7"), sub))
	assert.True(t, e.Hub().IsSubscribed(PresenceTopic, sub))
	assert.True(t, e.Hub().IsSubscribed(UserPresenceTopic("alice"), sub))
	assert.Equal(t, 1, e.Sessions())
}

func TestConnectAnonymous(t *testing.T) {
	e := newTestEngine(t, &fakeStore{})
	observer := newRecorder("observer")
	e.Hub().Join(PresenceTopic, observer)
	sub := newRecorder("anon")

	s, err := e.Connect(sub, "lobby", models.Identity{})
	require.NoError(t, err)

	assert.Equal(t, StateOpen, s.State())
	assert.True(t, e.Hub().IsSubscribed(ChatTopic("lobby"), sub))
	assert.True(t, e.Hub().IsSubscribed(PresenceTopic, sub))
	assert.Equal(t, 0, e.Hub().Subscribers(UserPresenceTopic("")))
	assert.Empty(t, observer.presence())

	e.Disconnect(s)
	assert.Empty(t, observer.presence())
}

func TestConnectRejectsEmptyRoom(t *testing.T) {
	e := newTestEngine(t, &fakeStore{})
	sub := newRecorder("a")

	_, err := e.Connect(sub, "", alice())

	assert.ErrorIs(t, err, ErrEmptyRoom)
	assert.False(t, e.Hub().IsSubscribed(PresenceTopic, sub))
}

func TestConnectDisconnectEmitsOnlineThenOffline(t *testing.T) {
	e := newTestEngine(t, &fakeStore{})
	observer := newRecorder("observer")
	e.Hub().Join(PresenceTopic, observer)

	s, err := e.Connect(newRecorder("a"), "lobby", alice())
	require.NoError(t, err)
	e.Disconnect(s)

	assert.Equal(t, []models.PresenceFrame{
		models.NewPresenceFrame("alice", models.StatusOnline),
		models.NewPresenceFrame("alice", models.StatusOffline),
	}, observer.presence())
}

func TestDisconnectIsIdempotent(t *testing.T) {
	e := newTestEngine(t, &fakeStore{})
	observer := newRecorder("observer")
	e.Hub().Join(PresenceTopic, observer)
	sub := newRecorder("a")

	s, err := e.Connect(sub, "lobby", alice())
	require.NoError(t, err)

	e.Disconnect(s)
	assert.NotPanics(t, func() { e.Disconnect(s) })

	assert.Equal(t, StateClosed, s.State())
	assert.Len(t, observer.presence(), 2)
	assert.False(t, e.Hub().IsSubscribed(ChatTopic("lobby"), sub))
	assert.False(t, e.Hub().IsSubscribed(PresenceTopic, sub))
	assert.False(t, e.Hub().IsSubscribed(UserPresenceTopic("alice"), sub))
	assert.Equal(t, 0, e.Sessions())
}

func TestDisconnectAfterSubscriptionsAlreadyRemoved(t *testing.T) {
	e := newTestEngine(t, &fakeStore{})
	sub := newRecorder("a")
	s, err := e.Connect(sub, "lobby", alice())
	require.NoError(t, err)

	e.Hub().Leave(UserPresenceTopic("alice"), sub)
	e.Hub().Leave(ChatTopic("lobby"), sub)

	assert.NotPanics(t, func() { e.Disconnect(s) })
	assert.False(t, e.Hub().IsSubscribed(PresenceTopic, sub))
}

func TestReceiveBroadcastsToRoomInOrder(t *testing.T) {
	store := &fakeStore{}
	e := newTestEngine(t, store)
	a, b, other := newRecorder("a"), newRecorder("b"), newRecorder("other")

	sa, err := e.Connect(a, "lobby", alice())
	require.NoError(t, err)
	_, err = e.Connect(b, "lobby", bob())
	require.NoError(t, err)
	_, err = e.Connect(other, "elsewhere", models.Identity{})
	require.NoError(t, err)

	var last <-chan PersistResult
	for _, text := range []string{"one", "two", "three"} {
		last = e.Receive(sa, []byte(fmt.Sprintf(`{"message":%q}`, text)))
	}
	require.NoError(t, waitResult(last).Err)

	for _, r := range []*recorder{a, b} {
		chats := r.chats()
		require.Len(t, chats, 3, r.id)
		for i, text := range []string{"one", "two", "three"} {
			assert.Equal(t, text, chats[i].Message)
			assert.Equal(t, "alice", chats[i].Sender)
			assert.Equal(t, models.MessageTypeChat, chats[i].Type)
			_, perr := time.Parse(time.RFC3339Nano, chats[i].Timestamp)
			assert.NoError(t, perr)
		}
	}
	assert.Empty(t, other.chats())
	assert.Equal(t, []string{"one", "two", "three"}, store.contents("lobby"))
}

func TestReceiveConcurrentSendersNoLossNoDuplicates(t *testing.T) {
	store := &fakeStore{}
	e := newTestEngine(t, store)
	a, b := newRecorder("a"), newRecorder("b")
	sa, err := e.Connect(a, "group_1", alice())
	require.NoError(t, err)
	sb, err := e.Connect(b, "group_1", bob())
	require.NoError(t, err)

	const perSender = 100
	var wg sync.WaitGroup
	var mu sync.Mutex
	var pending []<-chan PersistResult
	for _, s := range []*Session{sa, sb} {
		wg.Add(1)
		go func(s *Session) {
			defer wg.Done()
			for i := 0; i < perSender; i++ {
				ch := e.Receive(s, []byte(fmt.Sprintf(`{"message":"%s-%d"}`, s.Identity().Username, i)))
				mu.Lock()
				pending = append(pending, ch)
				mu.Unlock()
			}
		}(s)
	}
	wg.Wait()
	for _, ch := range pending {
		require.NoError(t, waitResult(ch).Err)
	}

	seenA := messagesOf(a.chats())
	seenB := messagesOf(b.chats())
	require.Len(t, seenA, 2*perSender)
	assert.Equal(t, seenA, seenB, "every subscriber sees the same order")
	assert.Equal(t, seenA, store.contents("group_1"), "stored order matches broadcast order")

	unique := make(map[string]bool)
	next := map[string]int{"alice": 0, "bob": 0}
	for i, chat := range a.chats() {
		assert.False(t, unique[seenA[i]], "duplicate %s", seenA[i])
		unique[seenA[i]] = true
		assert.Equal(t, fmt.Sprintf("%s-%d", chat.Sender, next[chat.Sender]), chat.Message, "per-sender order")
		next[chat.Sender]++
	}
}

func messagesOf(chats []models.ChatFrame) []string {
	out := make([]string, len(chats))
	for i, c := range chats {
		out[i] = c.Message
	}
	return out
}

func TestReceiveAnonymousIsNotPersisted(t *testing.T) {
	store := &fakeStore{}
	e := newTestEngine(t, store)
	listener := newRecorder("listener")
	_, err := e.Connect(listener, "lobby", bob())
	require.NoError(t, err)
	s, err := e.Connect(newRecorder("anon"), "lobby", models.Identity{})
	require.NoError(t, err)

	done := e.Receive(s, []byte(`{"message":"boo"}`))

	assert.Nil(t, done)
	chats := listener.chats()
	require.Len(t, chats, 1)
	assert.Equal(t, "Anonymous", chats[0].Sender)
	assert.Equal(t, "boo", chats[0].Message)
	assert.Equal(t, 0, store.count())
}

func TestReceiveMalformedFrameIsEmptyMessage(t *testing.T) {
	store := &fakeStore{}
	e := newTestEngine(t, store)
	sub := newRecorder("a")
	s, err := e.Connect(sub, "lobby", alice())
	require.NoError(t, err)

	for _, frame := range []string{`not json`, `{}`, `{"message": 42}`, ``} {
		res := waitResult(e.Receive(s, []byte(frame)))
		require.NoError(t, res.Err, frame)
		assert.Equal(t, "", res.Message.Content, frame)
	}

	chats := sub.chats()
	require.Len(t, chats, 4)
	for _, c := range chats {
		assert.Equal(t, "", c.Message)
	}
	assert.Equal(t, StateOpen, s.State())
}

func TestReceiveStorageFailureStillBroadcasts(t *testing.T) {
	store := &fakeStore{err: errStoreDown}
	e := newTestEngine(t, store)
	sub := newRecorder("a")
	s, err := e.Connect(sub, "lobby", alice())
	require.NoError(t, err)

	res := waitResult(e.Receive(s, []byte(`{"message":"lost"}`)))

	assert.ErrorIs(t, res.Err, errStoreDown)
	require.Len(t, sub.chats(), 1)
	assert.Equal(t, "lost", sub.chats()[0].Message)
}

func TestReceiveSlowStoreDoesNotDelayBroadcast(t *testing.T) {
	store := &fakeStore{gate: make(chan struct{})}
	e := newTestEngine(t, store)
	a, b := newRecorder("a"), newRecorder("b")
	sa, err := e.Connect(a, "room-a", alice())
	require.NoError(t, err)
	sb, err := e.Connect(b, "room-b", bob())
	require.NoError(t, err)

	doneA := e.Receive(sa, []byte(`{"message":"slow"}`))
	doneB := e.Receive(sb, []byte(`{"message":"fast"}`))

	assert.Len(t, a.chats(), 1)
	assert.Len(t, b.chats(), 1)
	assert.Equal(t, 0, store.count())

	close(store.gate)
	require.NoError(t, waitResult(doneA).Err)
	require.NoError(t, waitResult(doneB).Err)
}

func TestReceiveOnClosedSessionIsIgnored(t *testing.T) {
	e := newTestEngine(t, &fakeStore{})
	listener := newRecorder("listener")
	_, err := e.Connect(listener, "lobby", bob())
	require.NoError(t, err)
	s, err := e.Connect(newRecorder("a"), "lobby", alice())
	require.NoError(t, err)
	e.Disconnect(s)

	assert.Nil(t, e.Receive(s, []byte(`{"message":"ghost"}`)))
	assert.Empty(t, listener.chats())
}

func TestPresenceFoldingAcrossTwoConnections(t *testing.T) {
	e := newTestEngine(t, &fakeStore{})

	first, err := e.Connect(newRecorder("tab1"), "lobby", alice())
	require.NoError(t, err)
	second, err := e.Connect(newRecorder("tab2"), "group_3", alice())
	require.NoError(t, err)
	assert.Equal(t, 2, e.Presence().Connections("alice"))

	e.Disconnect(first)
	assert.True(t, e.Presence().IsOnline("alice"))
	assert.Equal(t, 1, e.Presence().Connections("alice"))

	e.Disconnect(second)
	assert.False(t, e.Presence().IsOnline("alice"))
}

func TestShutdownClosesSubscribers(t *testing.T) {
	store := &fakeStore{}
	p := NewPersister(store, 1)
	e := NewEngine(NewHub(), p)
	sub := newRecorder("a")
	s, err := e.Connect(sub, "lobby", alice())
	require.NoError(t, err)
	done := e.Receive(s, []byte(`{"message":"bye"}`))

	// recorder.Close does not end the session, so Shutdown waits out ctx.
	go func() {
		time.Sleep(10 * time.Millisecond)
		e.Disconnect(s)
	}()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	require.NoError(t, e.Shutdown(ctx))
	assert.True(t, sub.isClosed())
	assert.Equal(t, 0, e.Sessions())
	require.NoError(t, waitResult(done).Err)
	assert.Equal(t, 1, store.count())
}
