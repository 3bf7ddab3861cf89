// Package storetest provides Store doubles for tests: a store that always
// fails and a wrapper that injects failures and counts calls.
package storetest

import (
	"context"
	"errors"
	"sync"

	"github.com/primal-host/primal-site/internal/content"
	"github.com/primal-host/primal-site/internal/store"
)

// ErrUnreachable is returned by Failing.
var ErrUnreachable = errors.New("storetest: store unreachable")

// Failing is a Store whose every call fails with Err (ErrUnreachable when
// Err is nil).
type Failing struct {
	Err error
}

func (f Failing) err() error {
	if f.Err != nil {
		return f.Err
	}
	return ErrUnreachable
}

func (f Failing) Select(context.Context, *content.Type, store.Query) ([]content.Item, error) {
	return nil, f.err()
}

func (f Failing) Insert(context.Context, *content.Type, content.Item) (content.Item, error) {
	return content.Item{}, f.err()
}

func (f Failing) Update(context.Context, *content.Type, string, store.Patch) (content.Item, error) {
	return content.Item{}, f.err()
}

func (f Failing) Delete(context.Context, *content.Type, string) error {
	return f.err()
}

func (f Failing) Upsert(context.Context, *content.Type, string, content.Item) (content.Item, error) {
	return content.Item{}, f.err()
}

// Op names a Store method.
type Op string

// Store operations.
const (
	OpSelect Op = "select"
	OpInsert Op = "insert"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
	OpUpsert Op = "upsert"
)

// Scripted wraps a Store. Operations listed in Fail return the mapped
// error without reaching the wrapped store; every call is counted.
type Scripted struct {
	Store store.Store

	mu     sync.Mutex
	fail   map[Op]error
	calls  map[Op]int
	writes []content.Item
}

// NewScripted wraps s, or a fresh Memory store when s is nil.
func NewScripted(s store.Store) *Scripted {
	if s == nil {
		s = store.NewMemory()
	}
	return &Scripted{Store: s, fail: map[Op]error{}, calls: map[Op]int{}}
}

// FailOn makes op return err until Heal is called. A nil err uses
// ErrUnreachable.
func (s *Scripted) FailOn(op Op, err error) *Scripted {
	if err == nil {
		err = ErrUnreachable
	}
	s.mu.Lock()
	s.fail[op] = err
	s.mu.Unlock()
	return s
}

// Heal clears every injected failure.
func (s *Scripted) Heal() {
	s.mu.Lock()
	s.fail = map[Op]error{}
	s.mu.Unlock()
}

// Calls reports how many times op was invoked, failed calls included.
func (s *Scripted) Calls(op Op) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[op]
}

// Writes returns every item passed to Insert or Upsert, in call order.
func (s *Scripted) Writes() []content.Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]content.Item(nil), s.writes...)
}

func (s *Scripted) enter(op Op, written *content.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[op]++
	if written != nil {
		s.writes = append(s.writes, written.Clone())
	}
	return s.fail[op]
}

func (s *Scripted) Select(ctx context.Context, t *content.Type, q store.Query) ([]content.Item, error) {
	if err := s.enter(OpSelect, nil); err != nil {
		return nil, err
	}
	return s.Store.Select(ctx, t, q)
}

func (s *Scripted) Insert(ctx context.Context, t *content.Type, item content.Item) (content.Item, error) {
	if err := s.enter(OpInsert, &item); err != nil {
		return content.Item{}, err
	}
	return s.Store.Insert(ctx, t, item)
}

func (s *Scripted) Update(ctx context.Context, t *content.Type, id string, p store.Patch) (content.Item, error) {
	if err := s.enter(OpUpdate, nil); err != nil {
		return content.Item{}, err
	}
	return s.Store.Update(ctx, t, id, p)
}

func (s *Scripted) Delete(ctx context.Context, t *content.Type, id string) error {
	if err := s.enter(OpDelete, nil); err != nil {
		return err
	}
	return s.Store.Delete(ctx, t, id)
}

func (s *Scripted) Upsert(ctx context.Context, t *content.Type, keyField string, item content.Item) (content.Item, error) {
	if err := s.enter(OpUpsert, &item); err != nil {
		return content.Item{}, err
	}
	return s.Store.Upsert(ctx, t, keyField, item)
}

// Seed inserts fields as rows of t, in order, with positions 1..n and
// is_active true. It panics on failure.
func Seed(s store.Store, t *content.Type, rows ...content.Fields) []content.Item {
	out := make([]content.Item, 0, len(rows))
	for n, f := range rows {
		it, err := s.Insert(context.Background(), t, content.Item{Fields: f, Position: n + 1, IsActive: true})
		if err != nil {
			panic(err)
		}
		out = append(out, it)
	}
	return out
}
