// Package sqlitestore implements docstore.Store on an embedded SQLite file.
// Documents are JSON objects; timestamps are encoded as {"$date": "..."} in
// a fixed-width UTC layout so they sort lexically.
package sqlitestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"time"

	"opsdash/docstore"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

const timeLayout = "2006-01-02T15:04:05.000000000Z"

var fieldName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

type Store struct {
	db *sql.DB
}

func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("%w: open: %v", docstore.ErrUnavailable, err)
	}
	// a single connection keeps ":memory:" databases alive and serializes writers
	db.SetMaxOpenConns(1)

	if err := Migrate(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func Migrate(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS documents (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			collection TEXT NOT NULL,
			id TEXT NOT NULL,
			body TEXT NOT NULL,
			UNIQUE (collection, id)
		);`,
		`CREATE TABLE IF NOT EXISTS store_clock (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			last TEXT NOT NULL
		);`,
		`INSERT OR IGNORE INTO store_clock (id, last) VALUES (1, '')`,
	}

	for i, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return fmt.Errorf("migrate stmt %d: %w", i, err)
		}
	}
	return nil
}

// commitTime reads the SQLite clock inside tx and bumps it past the last
// commit so that server timestamps never repeat.
func commitTime(ctx context.Context, tx *sql.Tx) (time.Time, error) {
	var nowStr, lastStr string
	if err := tx.QueryRowContext(ctx, `SELECT strftime('%Y-%m-%d %H:%M:%f', 'now')`).Scan(&nowStr); err != nil {
		return time.Time{}, err
	}
	if err := tx.QueryRowContext(ctx, `SELECT last FROM store_clock WHERE id = 1`).Scan(&lastStr); err != nil {
		return time.Time{}, err
	}

	now, err := time.Parse("2006-01-02 15:04:05.000", nowStr)
	if err != nil {
		return time.Time{}, err
	}
	if lastStr != "" {
		last, err := time.Parse(timeLayout, lastStr)
		if err != nil {
			return time.Time{}, err
		}
		if !now.After(last) {
			now = last.Add(time.Microsecond)
		}
	}

	if _, err := tx.ExecContext(ctx, `UPDATE store_clock SET last = ? WHERE id = 1`, now.Format(timeLayout)); err != nil {
		return time.Time{}, err
	}
	return now, nil
}

// write resolves server timestamps, runs exec inside one transaction and
// returns the document as the row stores it after commit.
func (s *Store) write(ctx context.Context, fields docstore.Fields, exec func(tx *sql.Tx, body string) (string, error)) (docstore.Fields, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, classify(ctx, err)
	}
	defer tx.Rollback()

	resolved := make(docstore.Fields, len(fields))
	for k, v := range fields {
		resolved[k] = v
	}
	if keys := fields.ServerTimestampKeys(); len(keys) > 0 {
		at, err := commitTime(ctx, tx)
		if err != nil {
			return nil, classify(ctx, err)
		}
		for _, k := range keys {
			resolved[k] = at
		}
	}

	body, err := encode(resolved)
	if err != nil {
		return nil, err
	}
	committed, err := exec(tx, body)
	if err != nil {
		return nil, classify(ctx, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, classify(ctx, err)
	}
	return decode(committed)
}

func (s *Store) Append(ctx context.Context, collection string, fields docstore.Fields) (docstore.Document, error) {
	id := uuid.NewString()
	committed, err := s.write(ctx, fields, func(tx *sql.Tx, body string) (string, error) {
		var out string
		err := tx.QueryRowContext(ctx,
			`INSERT INTO documents (collection, id, body) VALUES (?, ?, ?) RETURNING body`,
			collection, id, body).Scan(&out)
		return out, err
	})
	if err != nil {
		return docstore.Document{}, err
	}
	return docstore.Document{ID: id, Fields: committed}, nil
}

func (s *Store) Merge(ctx context.Context, collection, id string, fields docstore.Fields) (docstore.Document, error) {
	committed, err := s.write(ctx, fields, func(tx *sql.Tx, body string) (string, error) {
		var out string
		err := tx.QueryRowContext(ctx, `
			INSERT INTO documents (collection, id, body) VALUES (?, ?, ?)
			ON CONFLICT (collection, id) DO UPDATE SET body = json_patch(documents.body, excluded.body)
			RETURNING body
		`, collection, id, body).Scan(&out)
		return out, err
	})
	if err != nil {
		return docstore.Document{}, err
	}
	return docstore.Document{ID: id, Fields: committed}, nil
}

func (s *Store) Get(ctx context.Context, collection, id string) (docstore.Document, error) {
	var body string
	err := s.db.QueryRowContext(ctx,
		`SELECT body FROM documents WHERE collection = ? AND id = ?`,
		collection, id).Scan(&body)
	if err != nil {
		return docstore.Document{}, classify(ctx, err)
	}

	fields, err := decode(body)
	if err != nil {
		return docstore.Document{}, err
	}
	return docstore.Document{ID: id, Fields: fields}, nil
}

// where builds the shared WHERE/ORDER BY tail for List and Count.
func where(collection string, q docstore.Query, ordered bool) (string, []any, error) {
	clause := ` WHERE collection = ?`
	args := []any{collection}
	if q.OrderBy == "" {
		if ordered {
			clause += ` ORDER BY seq`
		}
		return clause, args, nil
	}
	if !fieldName.MatchString(q.OrderBy) {
		return "", nil, fmt.Errorf("sqlitestore: invalid order field %q", q.OrderBy)
	}

	path := fmt.Sprintf(`$."%s"."$date"`, q.OrderBy)
	if q.After != nil {
		clause += ` AND json_extract(body, ?) > ?`
		args = append(args, path, q.After.UTC().Format(timeLayout))
	}
	if ordered {
		dir := "ASC"
		if q.Desc {
			dir = "DESC"
		}
		clause += fmt.Sprintf(` ORDER BY json_extract(body, ?) %s, seq %s`, dir, dir)
		args = append(args, path)
	}
	return clause, args, nil
}

func (s *Store) List(ctx context.Context, collection string, q docstore.Query) ([]docstore.Document, error) {
	clause, args, err := where(collection, q, true)
	if err != nil {
		return nil, err
	}
	query := `SELECT id, body FROM documents` + clause
	if q.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, q.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classify(ctx, err)
	}
	defer rows.Close()

	var docs []docstore.Document
	for rows.Next() {
		var id, body string
		if err := rows.Scan(&id, &body); err != nil {
			return nil, classify(ctx, err)
		}
		fields, err := decode(body)
		if err != nil {
			return nil, err
		}
		docs = append(docs, docstore.Document{ID: id, Fields: fields})
	}
	if err := rows.Err(); err != nil {
		return nil, classify(ctx, err)
	}
	return docs, nil
}

func (s *Store) Count(ctx context.Context, collection string, q docstore.Query) (int64, error) {
	clause, args, err := where(collection, q, false)
	if err != nil {
		return 0, err
	}

	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`+clause, args...).Scan(&n); err != nil {
		return 0, classify(ctx, err)
	}
	if q.Limit > 0 && n > int64(q.Limit) {
		n = int64(q.Limit)
	}
	return n, nil
}

func (s *Store) Close(context.Context) error {
	return s.db.Close()
}

func classify(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return docstore.ErrNotFound
	case ctx.Err() != nil:
		return ctx.Err()
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		return fmt.Errorf("%w: %v", docstore.ErrUnavailable, err)
	}
}

func encode(fields docstore.Fields) (string, error) {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		if t, ok := v.(time.Time); ok {
			v = map[string]string{"$date": t.UTC().Format(timeLayout)}
		}
		out[k] = v
	}
	b, err := json.Marshal(out)
	if err != nil {
		return "", fmt.Errorf("sqlitestore: encode: %w", err)
	}
	return string(b), nil
}

func decode(body string) (docstore.Fields, error) {
	var raw map[string]any
	if err := json.Unmarshal([]byte(body), &raw); err != nil {
		return nil, fmt.Errorf("sqlitestore: decode: %w", err)
	}

	fields := make(docstore.Fields, len(raw))
	for k, v := range raw {
		if m, ok := v.(map[string]any); ok && len(m) == 1 {
			if s, ok := m["$date"].(string); ok {
				if t, err := time.Parse(timeLayout, s); err == nil {
					v = t
				}
			}
		}
		fields[k] = v
	}
	return fields, nil
}
