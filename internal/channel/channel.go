// Package channel delivers a conversation's real-time events to the
// engine. Factories are injected so the transport (WebSocket, Redis
// pub/sub, or a test fake) stays swappable; inbound payloads are
// normalized into the canonical message shape at this boundary.
package channel

import (
	"context"

	"github.com/helpchat/internal/model"
)

type EventKind string

const (
	KindMessage EventKind = "message"
	KindTyping  EventKind = "typing"
)

// TypingSignal is a transient indicator; it never enters the durable
// message sequence.
type TypingSignal struct {
	ConversationID string
	AuthorID       string
	AuthorName     string
}

type Event struct {
	Kind    EventKind
	Message *model.Message
	Typing  *TypingSignal
}

// Subscription is one live per-conversation event stream. Events is
// closed when the stream ends; Close is safe to call more than once.
type Subscription interface {
	Events() <-chan Event
	Close() error
}

// Factory opens per-conversation subscriptions. The engine guarantees
// the previous conversation's subscription is closed before a new one
// is opened.
type Factory interface {
	Subscribe(ctx context.Context, conversationID string) (Subscription, error)
}
