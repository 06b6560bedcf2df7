package handlers

import (
	"context"
	"log"
	"net/http"
	"strconv"
	"time"

	"opsdash/middleware"
	"opsdash/models"

	"github.com/gin-gonic/gin"
)

type MessagePoster interface {
	PostMessage(ctx context.Context, text string, author models.Author) (models.AdminMessage, error)
}

type SeenTracker interface {
	MarkSeen(ctx context.Context, adminID string) (time.Time, error)
}

type ChatReader interface {
	History(ctx context.Context, limit int) ([]models.AdminMessage, error)
	Receipt(ctx context.Context, adminID string) (models.ReadReceipt, error)
	UnreadCount(ctx context.Context, adminID string) (int64, error)
}

// Broadcaster pushes committed chat events to connected dashboards.
type Broadcaster interface {
	BroadcastAdminMessage(msg models.AdminMessage)
	BroadcastAdminSeen(receipt models.ReadReceipt)
}

type AdminChatHandler struct {
	poster       MessagePoster
	tracker      SeenTracker
	reader       ChatReader
	events       Broadcaster
	timeout      time.Duration
	historyLimit int
}

type AdminChatOption func(*AdminChatHandler)

func WithBroadcaster(b Broadcaster) AdminChatOption {
	return func(h *AdminChatHandler) { h.events = b }
}

func WithTimeout(d time.Duration) AdminChatOption {
	return func(h *AdminChatHandler) { h.timeout = d }
}

func WithHistoryLimit(n int) AdminChatOption {
	return func(h *AdminChatHandler) { h.historyLimit = n }
}

func NewAdminChatHandler(poster MessagePoster, tracker SeenTracker, reader ChatReader, opts ...AdminChatOption) *AdminChatHandler {
	h := &AdminChatHandler{
		poster:       poster,
		tracker:      tracker,
		reader:       reader,
		timeout:      10 * time.Second,
		historyLimit: 100,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// requestContext derives from the request so an aborted client cancels
// the store call.
func (h *AdminChatHandler) requestContext(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), h.timeout)
}

type postMessageRequest struct {
	Text string `json:"text"`
}

func (h *AdminChatHandler) PostMessage(c *gin.Context) {
	var req postMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	author := models.Author{
		ID:          c.GetString(middleware.AdminIDKey),
		DisplayName: c.GetString(middleware.AdminNameKey),
		Role:        c.GetString(middleware.AdminRoleKey),
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()

	msg, err := h.poster.PostMessage(ctx, req.Text, author)
	if err != nil {
		writeError(c, err)
		return
	}

	if h.events != nil {
		h.events.BroadcastAdminMessage(msg)
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": msg,
	})
}

func (h *AdminChatHandler) GetMessages(c *gin.Context) {
	limit := h.historyLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()

	messages, err := h.reader.History(ctx, limit)
	if err != nil {
		log.Printf("[AdminChat] history error: %v", err)
		writeError(c, err)
		return
	}
	if messages == nil {
		messages = []models.AdminMessage{}
	}

	c.JSON(http.StatusOK, messages)
}

func (h *AdminChatHandler) MarkSeen(c *gin.Context) {
	adminID := c.GetString(middleware.AdminIDKey)

	ctx, cancel := h.requestContext(c)
	defer cancel()

	seenAt, err := h.tracker.MarkSeen(ctx, adminID)
	if err != nil {
		writeError(c, err)
		return
	}

	receipt := models.ReadReceipt{AdminID: adminID, LastSeenMessageAt: seenAt}
	if h.events != nil {
		h.events.BroadcastAdminSeen(receipt)
	}

	c.JSON(http.StatusOK, receipt)
}

func (h *AdminChatHandler) GetReceipt(c *gin.Context) {
	ctx, cancel := h.requestContext(c)
	defer cancel()

	receipt, err := h.reader.Receipt(ctx, c.GetString(middleware.AdminIDKey))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, receipt)
}

func (h *AdminChatHandler) GetUnread(c *gin.Context) {
	ctx, cancel := h.requestContext(c)
	defer cancel()

	n, err := h.reader.UnreadCount(ctx, c.GetString(middleware.AdminIDKey))
	if err != nil {
		log.Printf("[AdminChat] unread count error: %v", err)
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"unread": n})
}
