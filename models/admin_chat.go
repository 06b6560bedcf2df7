package models

import "time"

// Author identifies who posts a message. ID and Role are required,
// DisplayName is optional.
type Author struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName,omitempty"`
	Role        string `json:"role"`
}

type AdminMessage struct {
	ID         string    `json:"id"`
	Channel    string    `json:"channel"`
	Text       string    `json:"text"`
	SenderID   string    `json:"senderId"`
	SenderName string    `json:"senderName"`
	SenderRole string    `json:"senderRole"`
	CreatedAt  time.Time `json:"createdAt"` // server-assigned
}

// ReadReceipt is the per-admin watermark through which the channel has been read.
type ReadReceipt struct {
	AdminID           string    `json:"adminId"`
	LastSeenMessageAt time.Time `json:"lastSeenMessageAt"` // server-assigned
}
