package chat

import (
	"context"
	"log"
	"strings"
	"unicode/utf8"

	"opsdash/apperrors"
	"opsdash/docstore"
	"opsdash/models"
)

// Poster appends operator messages to one channel.
type Poster struct {
	store   docstore.Store
	channel string
}

func NewPoster(store docstore.Store, channel string) *Poster {
	return &Poster{store: store, channel: normalizeChannel(channel)}
}

func (p *Poster) Channel() string { return p.channel }

// PostMessage appends one immutable message and returns it as committed.
// createdAt is always assigned by the store. Identical calls produce
// distinct messages; there is no dedup and no retry.
func (p *Poster) PostMessage(ctx context.Context, text string, author models.Author) (models.AdminMessage, error) {
	if strings.TrimSpace(text) == "" {
		return models.AdminMessage{}, apperrors.ErrEmptyText
	}
	if !utf8.ValidString(text) {
		return models.AdminMessage{}, apperrors.ErrInvalidText
	}
	if strings.TrimSpace(author.ID) == "" {
		return models.AdminMessage{}, apperrors.ErrEmptyAuthorID
	}
	if strings.TrimSpace(author.Role) == "" {
		return models.AdminMessage{}, apperrors.ErrEmptyAuthorRole
	}
	if err := checkContext(ctx); err != nil {
		return models.AdminMessage{}, err
	}

	senderName := author.DisplayName
	if strings.TrimSpace(senderName) == "" {
		senderName = DefaultSenderName
	}

	doc, err := p.store.Append(ctx, ChannelPath(p.channel), docstore.Fields{
		fieldText:       text,
		fieldSenderID:   author.ID,
		fieldSenderName: senderName,
		fieldSenderRole: author.Role,
		fieldCreatedAt:  docstore.ServerTimestamp,
	})
	if err != nil {
		log.Printf("[AdminChat] post to %s by %s failed: %v", p.channel, author.ID, err)
		return models.AdminMessage{}, storeError(err)
	}

	return messageFromDocument(doc, p.channel), nil
}
