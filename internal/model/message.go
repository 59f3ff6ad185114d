package model

import (
	"time"

	"github.com/helpchat/internal/attach"
)

type DeliveryState string

const (
	DeliveryPending   DeliveryState = "pending"
	DeliveryConfirmed DeliveryState = "confirmed"
	DeliveryFailed    DeliveryState = "failed"
)

// Attachment is either remote (uploaded, RemoteURL set) or local
// (not yet sent, Preview set). Exactly one of the two is populated;
// the preview resource is owned by the attachment pipeline.
type Attachment struct {
	ID        string          `json:"id"`
	Filename  string          `json:"filename"`
	Mime      string          `json:"mime"`
	SizeBytes int64           `json:"size_bytes"`
	RemoteURL string          `json:"remote_url,omitempty"`
	Preview   *attach.Preview `json:"-"`
}

// Local reports whether the attachment still renders from a local
// preview resource.
func (a Attachment) Local() bool { return a.Preview != nil }

// Message is the canonical message shape. A pending message carries a
// locally generated temporary ID, replaced atomically by the
// server-assigned ID on confirmation. Messages are never mutated
// after confirmation.
type Message struct {
	ID             string        `json:"id"`
	ConversationID string        `json:"conversation_id"`
	AuthorID       string        `json:"author_id"`
	AuthorName     string        `json:"author_name,omitempty"`
	AuthorRole     Role          `json:"author_role,omitempty"`
	Body           string        `json:"body"`
	Attachments    []Attachment  `json:"attachments,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
	Delivery       DeliveryState `json:"delivery"`
}
