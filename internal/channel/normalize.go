package channel

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/helpchat/internal/model"
)

// flexTime accepts RFC3339 strings and unix second/millisecond
// numbers; producers disagree on the timestamp encoding.
type flexTime struct {
	time.Time
}

func (t *flexTime) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" || s == `""` {
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var raw string
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return fmt.Errorf("channel: parse timestamp %q: %w", raw, err)
		}
		t.Time = parsed
		return nil
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("channel: parse timestamp %q: %w", s, err)
	}
	// Millisecond epochs are 13 digits; anything that large is ms.
	if n > 1e12 {
		t.Time = time.UnixMilli(int64(n)).UTC()
	} else {
		t.Time = time.Unix(int64(n), 0).UTC()
	}
	return nil
}

// wireAttachment covers the attachment field spellings observed
// across producers.
type wireAttachment struct {
	ID        string `json:"id"`
	Filename  string `json:"filename"`
	FileName  string `json:"file_name"`
	Name      string `json:"name"`
	Mime      string `json:"mime"`
	MimeType  string `json:"mime_type"`
	SizeBytes int64  `json:"size_bytes"`
	FileSize  int64  `json:"file_size"`
	Size      int64  `json:"size"`
	RemoteURL string `json:"remote_url"`
	FileURL   string `json:"file_url"`
	URL       string `json:"url"`
}

// wireMessage covers the message field spellings observed across
// producers. Alias resolution happens here and nowhere deeper.
type wireMessage struct {
	ID        string `json:"id"`
	MessageID string `json:"message_id"`

	ConversationID string `json:"conversation_id"`
	ChatID         string `json:"chat_id"`
	TicketID       string `json:"ticket_id"`

	AuthorID string `json:"author_id"`
	SenderID string `json:"sender_id"`
	UserID   string `json:"user_id"`

	AuthorName string `json:"author_name"`
	SenderName string `json:"sender_name"`
	Username   string `json:"username"`

	AuthorRole string `json:"author_role"`
	Role       string `json:"role"`

	Body    string `json:"body"`
	Content string `json:"content"`
	Text    string `json:"text"`
	Msg     string `json:"message"`

	Attachments []wireAttachment `json:"attachments"`
	Files       []wireAttachment `json:"files"`

	CreatedAt flexTime `json:"created_at"`
	Timestamp flexTime `json:"timestamp"`
	SentAt    flexTime `json:"sent_at"`
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func firstNonZero(vals ...int64) int64 {
	for _, v := range vals {
		if v != 0 {
			return v
		}
	}
	return 0
}

// DecodeMessage normalizes a raw message payload into the canonical
// shape. A missing server id is not an error here; the send
// coordinator decides how to treat it.
func DecodeMessage(raw []byte) (*model.Message, error) {
	var w wireMessage
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, fmt.Errorf("channel: decode message: %w", err)
	}
	m := &model.Message{
		ID:             firstNonEmpty(w.ID, w.MessageID),
		ConversationID: firstNonEmpty(w.ConversationID, w.ChatID, w.TicketID),
		AuthorID:       firstNonEmpty(w.AuthorID, w.SenderID, w.UserID),
		AuthorName:     firstNonEmpty(w.AuthorName, w.SenderName, w.Username),
		AuthorRole:     model.Role(firstNonEmpty(w.AuthorRole, w.Role)),
		Body:           firstNonEmpty(w.Body, w.Content, w.Text, w.Msg),
		Delivery:       model.DeliveryConfirmed,
	}
	for _, t := range []flexTime{w.CreatedAt, w.Timestamp, w.SentAt} {
		if !t.IsZero() {
			m.CreatedAt = t.Time
			break
		}
	}
	wireAtts := w.Attachments
	if len(wireAtts) == 0 {
		wireAtts = w.Files
	}
	for _, a := range wireAtts {
		m.Attachments = append(m.Attachments, model.Attachment{
			ID:        a.ID,
			Filename:  firstNonEmpty(a.Filename, a.FileName, a.Name),
			Mime:      firstNonEmpty(a.Mime, a.MimeType),
			SizeBytes: firstNonZero(a.SizeBytes, a.FileSize, a.Size),
			RemoteURL: firstNonEmpty(a.RemoteURL, a.FileURL, a.URL),
		})
	}
	return m, nil
}

// wireEnvelope is the outer event frame; some producers wrap the
// payload, others send the message object bare.
type wireEnvelope struct {
	Type    string          `json:"type"`
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
	Data    json.RawMessage `json:"data"`
}

type wireTyping struct {
	ConversationID string `json:"conversation_id"`
	ChatID         string `json:"chat_id"`
	AuthorID       string `json:"author_id"`
	UserID         string `json:"user_id"`
	AuthorName     string `json:"author_name"`
	Username       string `json:"username"`
}

// DecodeEvent normalizes one inbound frame into an Event.
func DecodeEvent(raw []byte) (Event, error) {
	var env wireEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Event{}, fmt.Errorf("channel: decode event: %w", err)
	}
	payload := env.Payload
	if len(payload) == 0 {
		payload = env.Data
	}
	if len(payload) == 0 {
		payload = raw
	}
	switch firstNonEmpty(env.Type, env.Event) {
	case "typing", "user_typing":
		var w wireTyping
		if err := json.Unmarshal(payload, &w); err != nil {
			return Event{}, fmt.Errorf("channel: decode typing: %w", err)
		}
		return Event{Kind: KindTyping, Typing: &TypingSignal{
			ConversationID: firstNonEmpty(w.ConversationID, w.ChatID),
			AuthorID:       firstNonEmpty(w.AuthorID, w.UserID),
			AuthorName:     firstNonEmpty(w.AuthorName, w.Username),
		}}, nil
	default:
		// "message", "new_message", "message_created" and bare frames
		// all land here.
		m, err := DecodeMessage(payload)
		if err != nil {
			return Event{}, err
		}
		return Event{Kind: KindMessage, Message: m}, nil
	}
}
