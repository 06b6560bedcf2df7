package chat

import (
	"context"
	"errors"
	"strings"

	"opsdash/apperrors"
	"opsdash/docstore"
	"opsdash/models"
)

const MaxHistory = 500

// Reader is the read side used by the dashboard: message history and the
// watermark comparison behind the unread badge.
type Reader struct {
	store   docstore.Store
	channel string
}

func NewReader(store docstore.Store, channel string) *Reader {
	return &Reader{store: store, channel: normalizeChannel(channel)}
}

// History returns the latest limit messages, oldest first.
func (r *Reader) History(ctx context.Context, limit int) ([]models.AdminMessage, error) {
	if limit <= 0 || limit > MaxHistory {
		limit = MaxHistory
	}

	docs, err := r.store.List(ctx, ChannelPath(r.channel), docstore.Query{
		OrderBy: fieldCreatedAt,
		Desc:    true,
		Limit:   limit,
	})
	if err != nil {
		return nil, storeError(err)
	}

	messages := make([]models.AdminMessage, len(docs))
	for i, doc := range docs {
		messages[len(docs)-1-i] = messageFromDocument(doc, r.channel)
	}
	return messages, nil
}

// Receipt returns the admin's watermark, or apperrors.ErrNoReceipt if the
// admin has never marked the channel as seen.
func (r *Reader) Receipt(ctx context.Context, adminID string) (models.ReadReceipt, error) {
	if strings.TrimSpace(adminID) == "" {
		return models.ReadReceipt{}, apperrors.ErrEmptyAdminID
	}

	doc, err := r.store.Get(ctx, AdminsCollection, adminID)
	if errors.Is(err, docstore.ErrNotFound) {
		return models.ReadReceipt{}, apperrors.ErrNoReceipt
	}
	if err != nil {
		return models.ReadReceipt{}, storeError(err)
	}

	seen := doc.Fields.Time(fieldLastSeenMessageAt)
	if seen.IsZero() {
		// admin record exists but was never marked seen
		return models.ReadReceipt{}, apperrors.ErrNoReceipt
	}
	return models.ReadReceipt{AdminID: adminID, LastSeenMessageAt: seen}, nil
}

// UnreadCount counts messages created after the admin's watermark. With no
// watermark every message is unread.
func (r *Reader) UnreadCount(ctx context.Context, adminID string) (int64, error) {
	q := docstore.Query{OrderBy: fieldCreatedAt}

	receipt, err := r.Receipt(ctx, adminID)
	switch {
	case err == nil:
		q.After = &receipt.LastSeenMessageAt
	case !errors.Is(err, apperrors.ErrNoReceipt):
		return 0, err
	}

	n, err := r.store.Count(ctx, ChannelPath(r.channel), q)
	if err != nil {
		return 0, storeError(err)
	}
	return n, nil
}
