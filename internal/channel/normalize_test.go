package channel

import (
	"testing"
	"time"
)

func TestDecodeMessageAliasSpellings(t *testing.T) {
	raw := []byte(`{
		"message_id": "m1",
		"chat_id": "c1",
		"sender_id": "u1",
		"username": "Dana",
		"content": "hello there",
		"files": [{"file_name": "shot.png", "mime_type": "image/png", "file_size": 42, "file_url": "/api/files/shot.png"}],
		"timestamp": "2026-03-01T12:00:00Z"
	}`)
	m, err := DecodeMessage(raw)
	if err != nil {
		t.Fatalf("DecodeMessage: %v", err)
	}
	if m.ID != "m1" || m.ConversationID != "c1" || m.AuthorID != "u1" || m.AuthorName != "Dana" {
		t.Fatalf("identity fields = %+v", m)
	}
	if m.Body != "hello there" {
		t.Errorf("body = %q", m.Body)
	}
	if len(m.Attachments) != 1 {
		t.Fatalf("attachments = %+v", m.Attachments)
	}
	a := m.Attachments[0]
	if a.Filename != "shot.png" || a.Mime != "image/png" || a.SizeBytes != 42 || a.RemoteURL != "/api/files/shot.png" {
		t.Errorf("attachment = %+v", a)
	}
	if !m.CreatedAt.Equal(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)) {
		t.Errorf("created at = %v", m.CreatedAt)
	}
}

func TestDecodeMessageCanonicalSpellings(t *testing.T) {
	raw := []byte(`{"id":"m2","conversation_id":"c2","author_id":"a1","body":"hi","created_at":"2026-03-01T09:30:00Z"}`)
	m, err := DecodeMessage(raw)
	if err != nil {
		t.Fatalf("DecodeMessage: %v", err)
	}
	if m.ID != "m2" || m.ConversationID != "c2" || m.Body != "hi" {
		t.Fatalf("decoded = %+v", m)
	}
}

func TestDecodeMessageMissingIDIsNotAnError(t *testing.T) {
	m, err := DecodeMessage([]byte(`{"body":"unacknowledged"}`))
	if err != nil {
		t.Fatalf("DecodeMessage: %v", err)
	}
	if m.ID != "" {
		t.Fatalf("id = %q, want empty", m.ID)
	}
}

func TestFlexTimeUnixSecondsAndMillis(t *testing.T) {
	want := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	m, err := DecodeMessage([]byte(`{"id":"m1","created_at":1772366400}`))
	if err != nil {
		t.Fatalf("DecodeMessage seconds: %v", err)
	}
	if !m.CreatedAt.Equal(want) {
		t.Errorf("seconds epoch = %v, want %v", m.CreatedAt, want)
	}

	m, err = DecodeMessage([]byte(`{"id":"m2","timestamp":1772366400000}`))
	if err != nil {
		t.Fatalf("DecodeMessage millis: %v", err)
	}
	if !m.CreatedAt.Equal(want) {
		t.Errorf("millisecond epoch = %v, want %v", m.CreatedAt, want)
	}
}

func TestFlexTimeNullAndEmpty(t *testing.T) {
	m, err := DecodeMessage([]byte(`{"id":"m1","created_at":null,"timestamp":""}`))
	if err != nil {
		t.Fatalf("DecodeMessage: %v", err)
	}
	if !m.CreatedAt.IsZero() {
		t.Errorf("created at = %v, want zero", m.CreatedAt)
	}
}

func TestDecodeEventWrappedMessage(t *testing.T) {
	raw := []byte(`{"type":"message","payload":{"id":"m1","conversation_id":"c1","body":"wrapped"}}`)
	ev, err := DecodeEvent(raw)
	if err != nil {
		t.Fatalf("DecodeEvent: %v", err)
	}
	if ev.Kind != KindMessage || ev.Message == nil || ev.Message.Body != "wrapped" {
		t.Fatalf("event = %+v", ev)
	}
}

func TestDecodeEventDataEnvelope(t *testing.T) {
	raw := []byte(`{"event":"new_message","data":{"id":"m1","body":"in data"}}`)
	ev, err := DecodeEvent(raw)
	if err != nil {
		t.Fatalf("DecodeEvent: %v", err)
	}
	if ev.Kind != KindMessage || ev.Message.Body != "in data" {
		t.Fatalf("event = %+v", ev)
	}
}

func TestDecodeEventBareMessage(t *testing.T) {
	raw := []byte(`{"id":"m1","conversation_id":"c1","body":"bare"}`)
	ev, err := DecodeEvent(raw)
	if err != nil {
		t.Fatalf("DecodeEvent: %v", err)
	}
	if ev.Kind != KindMessage || ev.Message.Body != "bare" {
		t.Fatalf("event = %+v", ev)
	}
}

func TestDecodeEventTyping(t *testing.T) {
	raw := []byte(`{"type":"user_typing","payload":{"chat_id":"c1","user_id":"u9","username":"Sam"}}`)
	ev, err := DecodeEvent(raw)
	if err != nil {
		t.Fatalf("DecodeEvent: %v", err)
	}
	if ev.Kind != KindTyping || ev.Typing == nil {
		t.Fatalf("event = %+v", ev)
	}
	if ev.Typing.ConversationID != "c1" || ev.Typing.AuthorID != "u9" || ev.Typing.AuthorName != "Sam" {
		t.Fatalf("typing = %+v", ev.Typing)
	}
}

func TestDecodeEventGarbage(t *testing.T) {
	if _, err := DecodeEvent([]byte("{not json")); err == nil {
		t.Fatalf("garbage frame decoded without error")
	}
}
