package websocket

import (
	"context"
	"errors"
	"hash/fnv"
	"sync"

	"github.com/Ashy-21/TWINK/internal/models"
	"github.com/Ashy-21/TWINK/pkg/logger"

	"github.com/eapache/queue"
)

var ErrPersisterClosed = errors.New("persister closed")

// MessageStore is the part of the message log the relay writes to.
type MessageStore interface {
	AppendMessage(ctx context.Context, msg *models.Message) (*models.Message, error)
}

// PersistResult is delivered exactly once on the channel returned by Submit.
type PersistResult struct {
	Message *models.Message
	Err     error
}

type persistJob struct {
	msg  *models.Message
	done chan PersistResult
}

// persistShard is one worker with an unbounded FIFO backlog.
type persistShard struct {
	mu      sync.Mutex
	pending *queue.Queue
	wake    chan struct{}
	closed  bool
}

// Persister writes messages to the store off the connection goroutines. Messages
// for the same room always land on the same shard, so they are stored in the
// order they were submitted.
type Persister struct {
	store  MessageStore
	shards []*persistShard
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewPersister(store MessageStore, workers int) *Persister {
	if workers <= 0 {
		workers = 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &Persister{
		store:  store,
		shards: make([]*persistShard, workers),
		ctx:    ctx,
		cancel: cancel,
	}
	for i := range p.shards {
		shard := &persistShard{
			pending: queue.New(),
			wake:    make(chan struct{}, 1),
		}
		p.shards[i] = shard
		p.wg.Add(1)
		go p.work(shard)
	}
	return p
}

func roomHash(room string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(room))
	return h.Sum32()
}

// Submit queues msg and returns immediately. The returned channel is buffered
// and receives one result once the store has answered.
func (p *Persister) Submit(msg *models.Message) <-chan PersistResult {
	done := make(chan PersistResult, 1)
	shard := p.shards[roomHash(msg.RoomName)%uint32(len(p.shards))]

	shard.mu.Lock()
	if shard.closed {
		shard.mu.Unlock()
		done <- PersistResult{Err: ErrPersisterClosed}
		return done
	}
	shard.pending.Add(&persistJob{msg: msg, done: done})
	shard.mu.Unlock()

	shard.signal()
	return done
}

func (s *persistShard) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// next blocks until a job is queued or the shard is closed and drained.
func (s *persistShard) next() (*persistJob, bool) {
	for {
		s.mu.Lock()
		if s.pending.Length() > 0 {
			job := s.pending.Remove().(*persistJob)
			s.mu.Unlock()
			return job, true
		}
		closed := s.closed
		s.mu.Unlock()

		if closed {
			return nil, false
		}
		<-s.wake
	}
}

func (p *Persister) work(shard *persistShard) {
	defer p.wg.Done()

	for {
		job, ok := shard.next()
		if !ok {
			return
		}

		saved, err := p.store.AppendMessage(p.ctx, job.msg)
		if err != nil {
			logger.Error("Error saving message to room %s: %v", job.msg.RoomName, err)
		}
		job.done <- PersistResult{Message: saved, Err: err}
	}
}

// Close stops accepting work and waits for queued messages to be stored. If ctx
// ends first, in-flight store calls are cancelled and ctx.Err() is returned.
func (p *Persister) Close(ctx context.Context) error {
	for _, shard := range p.shards {
		shard.mu.Lock()
		shard.closed = true
		shard.mu.Unlock()
		shard.signal()
	}

	drained := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(drained)
	}()

	select {
	case <-drained:
		p.cancel()
		return nil
	case <-ctx.Done():
		p.cancel()
		<-drained
		return ctx.Err()
	}
}
