// Package events sequences admin content changes, persists them, and fans
// them out to connected admin consoles so a second session learns about a
// concurrent edit without polling.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Change is one mutation of a content collection.
type Change struct {
	Seq    int64     `json:"seq"`
	Type   string    `json:"type"`
	Action string    `json:"action"`
	ID     string    `json:"id,omitempty"`
	At     time.Time `json:"at"`
}

// Log is the persisted, sequenced change history.
type Log interface {
	// Append stores c and returns its sequence number.
	Append(ctx context.Context, c Change) (int64, error)

	// Since returns changes with seq > since in ascending order. limit <= 0
	// means no limit.
	Since(ctx context.Context, since int64, limit int) ([]Change, error)
}

// Subscription is one live consumer of the change feed.
type Subscription struct {
	ch   chan []byte
	gone chan struct{}
	once sync.Once
	m    *Manager

	// Guarded by m.mu. While replaying, live frames queue in pending and
	// are delivered after the backlog, so frames arrive in seq order.
	replaying bool
	pending   []frame
}

type frame struct {
	seq  int64
	data []byte
}

const (
	subBuffer  = 256
	maxPending = 1024
)

// C delivers JSON-encoded changes.
func (s *Subscription) C() <-chan []byte { return s.ch }

// Done is closed when the subscription ends, either because it was
// cancelled, the consumer fell behind, or the manager shut down.
func (s *Subscription) Done() <-chan struct{} { return s.gone }

// Cancel ends the subscription. Safe to call more than once.
func (s *Subscription) Cancel() {
	s.m.remove(s)
}

func (s *Subscription) end() {
	s.once.Do(func() { close(s.gone) })
}

// Manager handles change sequencing, persistence, and fan-out to
// WebSocket subscribers.
type Manager struct {
	log    Log
	logger *zap.Logger
	now    func() time.Time

	mu     sync.Mutex
	subs   map[*Subscription]struct{}
	closed bool
}

// NewManager creates a Manager persisting to l.
func NewManager(l Log, logger *zap.Logger) *Manager {
	return &Manager{
		log:    l,
		logger: logger.Named("events"),
		now:    time.Now,
		subs:   make(map[*Subscription]struct{}),
	}
}

// Record persists a change and broadcasts it. Failures are logged; the
// mutation that triggered the change has already been committed.
func (m *Manager) Record(ctx context.Context, typeKey, action, id string) {
	if _, err := m.Emit(ctx, Change{Type: typeKey, Action: action, ID: id}); err != nil {
		m.logger.Warn("record change failed", zap.String("type", typeKey), zap.String("action", action), zap.Error(err))
	}
}

// Emit persists c to get a sequence number and broadcasts the encoded
// frame to all subscribers.
func (m *Manager) Emit(ctx context.Context, c Change) (Change, error) {
	if c.At.IsZero() {
		c.At = m.now().UTC()
	}
	seq, err := m.log.Append(ctx, c)
	if err != nil {
		return Change{}, fmt.Errorf("events: persist: %w", err)
	}
	c.Seq = seq

	data, err := json.Marshal(c)
	if err != nil {
		return Change{}, fmt.Errorf("events: encode frame: %w", err)
	}
	m.broadcast(c.Seq, data)
	return c, nil
}

// Changes returns persisted changes after since.
func (m *Manager) Changes(ctx context.Context, since int64, limit int) ([]Change, error) {
	out, err := m.log.Since(ctx, since, limit)
	if err != nil {
		return nil, fmt.Errorf("events: changes since %d: %w", since, err)
	}
	return out, nil
}

// Subscribe registers a consumer. If since is non-nil, changes after that
// cursor are replayed first; live changes committed meanwhile follow the
// backlog without duplicates.
func (m *Manager) Subscribe(ctx context.Context, since *int64) (*Subscription, error) {
	sub := &Subscription{
		ch:        make(chan []byte, subBuffer),
		gone:      make(chan struct{}),
		m:         m,
		replaying: since != nil,
	}

	// Register before replay so nothing committed during the replay query
	// is missed.
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, fmt.Errorf("events: manager shut down")
	}
	m.subs[sub] = struct{}{}
	m.mu.Unlock()

	if since != nil {
		go m.replay(ctx, sub, *since)
	}
	return sub, nil
}

func (m *Manager) replay(ctx context.Context, sub *Subscription, since int64) {
	changes, err := m.log.Since(ctx, since, 0)
	if err != nil {
		m.logger.Warn("replay failed", zap.Int64("since", since), zap.Error(err))
		m.remove(sub)
		return
	}
	last := since
	for _, c := range changes {
		data, err := json.Marshal(c)
		if err != nil {
			m.logger.Warn("replay encode failed", zap.Int64("seq", c.Seq), zap.Error(err))
			m.remove(sub)
			return
		}
		if !sub.send(ctx, data) {
			return
		}
		last = c.Seq
	}

	// Drain frames that arrived live during the replay, then switch to
	// direct delivery.
	for {
		m.mu.Lock()
		batch := sub.pending
		sub.pending = nil
		if len(batch) == 0 {
			sub.replaying = false
			m.mu.Unlock()
			return
		}
		m.mu.Unlock()

		for _, f := range batch {
			if f.seq <= last {
				continue
			}
			if !sub.send(ctx, f.data) {
				return
			}
			last = f.seq
		}
	}
}

func (s *Subscription) send(ctx context.Context, data []byte) bool {
	select {
	case s.ch <- data:
		return true
	case <-s.gone:
		return false
	case <-ctx.Done():
		return false
	}
}

// Shutdown ends every subscription and refuses new ones.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	for sub := range m.subs {
		sub.end()
		delete(m.subs, sub)
	}
}

func (m *Manager) remove(sub *Subscription) {
	m.mu.Lock()
	delete(m.subs, sub)
	m.mu.Unlock()
	sub.end()
}

// broadcast sends a frame to all subscribers. Slow consumers whose
// buffers are full are dropped and should reconnect with a cursor.
func (m *Manager) broadcast(seq int64, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for sub := range m.subs {
		if sub.replaying {
			if len(sub.pending) < maxPending {
				sub.pending = append(sub.pending, frame{seq: seq, data: data})
				continue
			}
			m.logger.Info("dropping change feed consumer stuck in replay")
			sub.end()
			delete(m.subs, sub)
			continue
		}
		select {
		case sub.ch <- data:
		default:
			m.logger.Info("dropping slow change feed consumer")
			sub.end()
			delete(m.subs, sub)
		}
	}
}
