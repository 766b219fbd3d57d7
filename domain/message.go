// Package domain contains core concepts of the chat system.
// This file defines Message and the rules every persisted message follows.
// Messages are immutable once created.
package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Message is a direct message between two users.
// At least one of Text or Image is always set.
type Message struct {
	ID         uuid.UUID `json:"_id"`
	SenderID   UserID    `json:"senderId"`
	ReceiverID UserID    `json:"receiverId"`
	Text       string    `json:"text,omitempty"`
	Image      string    `json:"image,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

// HasContent reports whether the message carries text or an image.
func (m Message) HasContent() bool {
	return strings.TrimSpace(m.Text) != "" || m.Image != ""
}
