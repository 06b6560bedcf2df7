package chat

import (
	"context"
	"log"
	"strings"
	"time"

	"opsdash/apperrors"
	"opsdash/docstore"
)

// Tracker records per-admin read watermarks.
type Tracker struct {
	store docstore.Store
}

func NewTracker(store docstore.Store) *Tracker {
	return &Tracker{store: store}
}

// MarkSeen sets the admin's lastSeenMessageAt to the store's current time.
// Only that one field is written; the rest of the admin record is left as is.
// The watermark is coarse: it always means "everything up to now".
func (t *Tracker) MarkSeen(ctx context.Context, adminID string) (time.Time, error) {
	if strings.TrimSpace(adminID) == "" {
		return time.Time{}, apperrors.ErrEmptyAdminID
	}
	if err := checkContext(ctx); err != nil {
		return time.Time{}, err
	}

	doc, err := t.store.Merge(ctx, AdminsCollection, adminID, docstore.Fields{
		fieldLastSeenMessageAt: docstore.ServerTimestamp,
	})
	if err != nil {
		log.Printf("[AdminChat] mark seen for %s failed: %v", adminID, err)
		return time.Time{}, storeError(err)
	}
	return doc.Fields.Time(fieldLastSeenMessageAt), nil
}
