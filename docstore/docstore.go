// Package docstore describes the ordered, timestamped document store the
// admin chat is written against. Implementations live in the mongostore,
// sqlitestore and memstore subpackages.
package docstore

import (
	"context"
	"errors"
	"time"
)

var (
	ErrUnavailable = errors.New("docstore: store unavailable")
	ErrNotFound    = errors.New("docstore: document not found")
)

type serverTimestamp struct{}

// ServerTimestamp is a field value that the store replaces with its own
// clock when the write commits. Callers never see it on read-back.
var ServerTimestamp any = serverTimestamp{}

func IsServerTimestamp(v any) bool {
	_, ok := v.(serverTimestamp)
	return ok
}

// Fields is a flat set of top-level document fields.
type Fields map[string]any

// ServerTimestampKeys lists the keys of f holding the ServerTimestamp marker.
func (f Fields) ServerTimestampKeys() []string {
	var keys []string
	for k, v := range f {
		if IsServerTimestamp(v) {
			keys = append(keys, k)
		}
	}
	return keys
}

func (f Fields) String(key string) string {
	s, _ := f[key].(string)
	return s
}

func (f Fields) Time(key string) time.Time {
	t, _ := f[key].(time.Time)
	return t
}

type Document struct {
	ID     string
	Fields Fields
}

// Query selects documents of one collection ordered by OrderBy. Ties are
// broken by insertion order.
type Query struct {
	OrderBy string
	After   *time.Time
	Limit   int
	Desc    bool
}

type Store interface {
	// Append persists a new document and returns it as committed, with every
	// ServerTimestamp replaced by the commit time.
	Append(ctx context.Context, collection string, fields Fields) (Document, error)

	// Merge creates the document if absent, otherwise writes only the given
	// top-level fields and leaves the rest untouched. The whole document is
	// returned as committed, in the same atomic step as the write.
	Merge(ctx context.Context, collection, id string, fields Fields) (Document, error)

	Get(ctx context.Context, collection, id string) (Document, error)
	List(ctx context.Context, collection string, q Query) ([]Document, error)
	Count(ctx context.Context, collection string, q Query) (int64, error)

	Close(ctx context.Context) error
}
