// Package memstore is an in-process docstore.Store used by tests and by
// STORE_DRIVER=memory.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"opsdash/docstore"

	"github.com/google/uuid"
)

type record struct {
	seq    int64
	id     string
	fields docstore.Fields
}

type Store struct {
	mu          sync.Mutex
	collections map[string][]*record
	seq         int64
	last        time.Time
	now         func() time.Time
	unavailable bool
}

type Option func(*Store)

// WithClock overrides the commit clock. Commit times stay strictly
// increasing even if the clock stalls or goes backwards.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func New(opts ...Option) *Store {
	s := &Store{
		collections: make(map[string][]*record),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetUnavailable makes every subsequent call fail with docstore.ErrUnavailable.
func (s *Store) SetUnavailable(down bool) {
	s.mu.Lock()
	s.unavailable = down
	s.mu.Unlock()
}

// commitTime must be called with mu held.
func (s *Store) commitTime() time.Time {
	t := s.now().UTC()
	if !t.After(s.last) {
		t = s.last.Add(time.Microsecond)
	}
	s.last = t
	return t
}

func (s *Store) check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.unavailable {
		return docstore.ErrUnavailable
	}
	return nil
}

func resolve(fields docstore.Fields, at time.Time) docstore.Fields {
	out := make(docstore.Fields, len(fields))
	for k, v := range fields {
		if docstore.IsServerTimestamp(v) {
			v = at
		}
		out[k] = v
	}
	return out
}

func (s *Store) find(collection, id string) *record {
	for _, r := range s.collections[collection] {
		if r.id == id {
			return r
		}
	}
	return nil
}

func (s *Store) Append(ctx context.Context, collection string, fields docstore.Fields) (docstore.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx); err != nil {
		return docstore.Document{}, err
	}

	s.seq++
	r := &record{
		seq:    s.seq,
		id:     uuid.NewString(),
		fields: resolve(fields, s.commitTime()),
	}
	s.collections[collection] = append(s.collections[collection], r)
	return docstore.Document{ID: r.id, Fields: copyFields(r.fields)}, nil
}

func (s *Store) Merge(ctx context.Context, collection, id string, fields docstore.Fields) (docstore.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx); err != nil {
		return docstore.Document{}, err
	}

	resolved := resolve(fields, s.commitTime())
	r := s.find(collection, id)
	if r != nil {
		for k, v := range resolved {
			r.fields[k] = v
		}
	} else {
		s.seq++
		r = &record{seq: s.seq, id: id, fields: resolved}
		s.collections[collection] = append(s.collections[collection], r)
	}
	return docstore.Document{ID: r.id, Fields: copyFields(r.fields)}, nil
}

func (s *Store) Get(ctx context.Context, collection, id string) (docstore.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx); err != nil {
		return docstore.Document{}, err
	}

	r := s.find(collection, id)
	if r == nil {
		return docstore.Document{}, fmt.Errorf("%s/%s: %w", collection, id, docstore.ErrNotFound)
	}
	return docstore.Document{ID: r.id, Fields: copyFields(r.fields)}, nil
}

func (s *Store) selectRecords(collection string, q docstore.Query) []*record {
	var out []*record
	for _, r := range s.collections[collection] {
		if q.After != nil {
			t, ok := r.fields[q.OrderBy].(time.Time)
			if !ok || !t.After(*q.After) {
				continue
			}
		}
		out = append(out, r)
	}

	if q.OrderBy != "" {
		sort.SliceStable(out, func(i, j int) bool {
			ti, _ := out[i].fields[q.OrderBy].(time.Time)
			tj, _ := out[j].fields[q.OrderBy].(time.Time)
			if ti.Equal(tj) {
				return out[i].seq < out[j].seq
			}
			return ti.Before(tj)
		})
	}
	if q.Desc {
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
	}
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out
}

func (s *Store) List(ctx context.Context, collection string, q docstore.Query) ([]docstore.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx); err != nil {
		return nil, err
	}

	records := s.selectRecords(collection, q)
	docs := make([]docstore.Document, 0, len(records))
	for _, r := range records {
		docs = append(docs, docstore.Document{ID: r.id, Fields: copyFields(r.fields)})
	}
	return docs, nil
}

func (s *Store) Count(ctx context.Context, collection string, q docstore.Query) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx); err != nil {
		return 0, err
	}
	return int64(len(s.selectRecords(collection, q))), nil
}

func (s *Store) Close(context.Context) error { return nil }

func copyFields(f docstore.Fields) docstore.Fields {
	out := make(docstore.Fields, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}
