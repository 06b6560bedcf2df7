package sqlitestore

import (
	"context"
	"testing"
	"time"

	"opsdash/docstore"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Failed to open test store: %v", err)
	}
	t.Cleanup(func() {
		if err := s.Close(context.Background()); err != nil {
			t.Errorf("Failed to close test store: %v", err)
		}
	})
	return s
}

func TestAppendAndGet(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	doc, err := s.Append(ctx, "adminChats/global/messages", docstore.Fields{
		"text":      "On it",
		"senderId":  "b",
		"createdAt": docstore.ServerTimestamp,
	})
	require.NoError(t, err)
	require.NotEmpty(t, doc.ID)

	createdAt := doc.Fields.Time("createdAt")
	assert.WithinDuration(t, time.Now().UTC(), createdAt, time.Minute)

	got, err := s.Get(ctx, "adminChats/global/messages", doc.ID)
	require.NoError(t, err)
	assert.Equal(t, "On it", got.Fields.String("text"))
	assert.True(t, createdAt.Equal(got.Fields.Time("createdAt")))
}

func TestAppend_DistinctIncreasingTimestamps(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	var prev time.Time
	for i := 0; i < 20; i++ {
		doc, err := s.Append(ctx, "log", docstore.Fields{"n": i, "at": docstore.ServerTimestamp})
		require.NoError(t, err)
		at := doc.Fields.Time("at")
		assert.True(t, at.After(prev), "timestamp %d did not advance", i)
		prev = at
	}
}

func TestMerge_UpsertKeepsOtherFields(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	created, err := s.Merge(ctx, "admins", "admin-1", docstore.Fields{"lastSeenMessageAt": docstore.ServerTimestamp})
	require.NoError(t, err)
	assert.Equal(t, "admin-1", created.ID)
	assert.Len(t, created.Fields, 1)

	_, err = s.Merge(ctx, "admins", "admin-1", docstore.Fields{"name": "Ada"})
	require.NoError(t, err)
	merged, err := s.Merge(ctx, "admins", "admin-1", docstore.Fields{"lastSeenMessageAt": docstore.ServerTimestamp})
	require.NoError(t, err)
	assert.Equal(t, "Ada", merged.Fields.String("name"))
	assert.True(t, merged.Fields.Time("lastSeenMessageAt").After(created.Fields.Time("lastSeenMessageAt")))

	got, err := s.Get(ctx, "admins", "admin-1")
	require.NoError(t, err)
	assert.Equal(t, merged.Fields, got.Fields)
}

func TestAppend_ReturnsStoredBody(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	doc, err := s.Append(ctx, "log", docstore.Fields{"text": "late \xff\xfe rider", "n": 3})
	require.NoError(t, err)

	got, err := s.Get(ctx, "log", doc.ID)
	require.NoError(t, err)
	assert.Equal(t, got.Fields, doc.Fields)
}

func TestGet_Missing(t *testing.T) {
	s := setupTestStore(t)

	_, err := s.Get(context.Background(), "admins", "nobody")
	assert.ErrorIs(t, err, docstore.ErrNotFound)
}

func TestListAndCount(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	var docs []docstore.Document
	for _, text := range []string{"a", "b", "c", "d"} {
		d, err := s.Append(ctx, "log", docstore.Fields{"text": text, "at": docstore.ServerTimestamp})
		require.NoError(t, err)
		docs = append(docs, d)
	}
	_, err := s.Append(ctx, "other", docstore.Fields{"text": "x", "at": docstore.ServerTimestamp})
	require.NoError(t, err)

	all, err := s.List(ctx, "log", docstore.Query{OrderBy: "at"})
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, "a", all[0].Fields.String("text"))
	assert.Equal(t, "d", all[3].Fields.String("text"))

	latest, err := s.List(ctx, "log", docstore.Query{OrderBy: "at", Desc: true, Limit: 2})
	require.NoError(t, err)
	require.Len(t, latest, 2)
	assert.Equal(t, "d", latest[0].Fields.String("text"))
	assert.Equal(t, "c", latest[1].Fields.String("text"))

	after := docs[0].Fields.Time("at")
	n, err := s.Count(ctx, "log", docstore.Query{OrderBy: "at", After: &after})
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)
}

func TestList_RejectsBadField(t *testing.T) {
	s := setupTestStore(t)

	_, err := s.List(context.Background(), "log", docstore.Query{OrderBy: `at"; DROP TABLE documents; --`})
	assert.Error(t, err)
}

func TestCanceledContext(t *testing.T) {
	s := setupTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Append(ctx, "log", docstore.Fields{"text": "never"})
	assert.ErrorIs(t, err, context.Canceled)

	n, err := s.Count(context.Background(), "log", docstore.Query{})
	require.NoError(t, err)
	assert.Zero(t, n)
}
