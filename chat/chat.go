// Package chat is the admin chat core: posting operator messages into a
// channel log and tracking, per admin, how far that admin has read it.
// All state lives in the injected docstore.Store.
package chat

import (
	"context"
	"errors"
	"strings"

	"opsdash/apperrors"
	"opsdash/docstore"
	"opsdash/models"
)

const (
	DefaultChannel    = "global"
	DefaultSenderName = "Admin"

	ChatsCollection  = "adminChats"
	AdminsCollection = "admins"

	fieldText              = "text"
	fieldSenderID          = "senderId"
	fieldSenderName        = "senderName"
	fieldSenderRole        = "senderRole"
	fieldCreatedAt         = "createdAt"
	fieldLastSeenMessageAt = "lastSeenMessageAt"
)

// ChannelPath returns the collection holding a channel's message log,
// e.g. "adminChats/global/messages".
func ChannelPath(channel string) string {
	return ChatsCollection + "/" + channel + "/messages"
}

func normalizeChannel(channel string) string {
	if strings.TrimSpace(channel) == "" {
		return DefaultChannel
	}
	return channel
}

// storeError maps a store failure onto the application error taxonomy.
func storeError(err error) error {
	switch {
	case errors.Is(err, context.Canceled):
		return apperrors.ErrCanceled(err)
	case errors.Is(err, context.DeadlineExceeded):
		return apperrors.ErrDeadlineExceeded(err)
	default:
		return apperrors.ErrStoreUnavailable(err)
	}
}

// checkContext fails fast so that a torn-down caller never reaches the store.
func checkContext(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return storeError(err)
	}
	return nil
}

func messageFromDocument(doc docstore.Document, channel string) models.AdminMessage {
	return models.AdminMessage{
		ID:         doc.ID,
		Channel:    channel,
		Text:       doc.Fields.String(fieldText),
		SenderID:   doc.Fields.String(fieldSenderID),
		SenderName: doc.Fields.String(fieldSenderName),
		SenderRole: doc.Fields.String(fieldSenderRole),
		CreatedAt:  doc.Fields.Time(fieldCreatedAt),
	}
}
