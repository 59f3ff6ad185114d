package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/helpchat/internal/attach"
	"github.com/helpchat/internal/model"
)

func TestClientListConversations(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/conversations" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("status"); got != "active" {
			t.Errorf("status param = %q", got)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("auth = %q", got)
		}
		json.NewEncoder(w).Encode([]model.Conversation{{ID: "c1", DisplayName: "Checkout fails"}})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "tok")
	got, err := c.ListConversations(context.Background(), model.ListFilter{Status: model.StatusActive})
	if err != nil {
		t.Fatalf("ListConversations: %v", err)
	}
	if len(got) != 1 || got[0].ID != "c1" {
		t.Fatalf("got %+v", got)
	}
}

func TestClientHistoryNormalizesLooseSpellings(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/conversations/c1/messages" {
			t.Errorf("path = %s", r.URL.Path)
		}
		io.WriteString(w, `[
			{"message_id":"m1","chat_id":"c1","content":"loose","timestamp":1772366400},
			{"id":"m2","conversation_id":"c1","body":"canonical","created_at":"2026-03-01T12:01:00Z"}
		]`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "")
	got, err := c.History(context.Background(), "c1")
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d messages", len(got))
	}
	if got[0].ID != "m1" || got[0].Body != "loose" {
		t.Fatalf("loose message = %+v", got[0])
	}
	if got[1].Body != "canonical" {
		t.Fatalf("canonical message = %+v", got[1])
	}
}

func TestClientSendMultipart(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
		}
		if got := r.FormValue("body"); got != "hello" {
			t.Errorf("body field = %q", got)
		}
		if got := r.FormValue("conversation_id"); got != "c1" {
			t.Errorf("conversation_id field = %q", got)
		}
		files := r.MultipartForm.File["files"]
		if len(files) != 1 || files[0].Filename != "shot.png" {
			t.Errorf("files = %+v", files)
		}
		json.NewEncoder(w).Encode(map[string]string{"id": "srv-1", "conversation_id": "c1", "body": "hello"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "")
	m, err := c.Send(context.Background(), "c1", "hello", []attach.File{{Name: "shot.png", Mime: "image/png", Data: []byte{1}}})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if m.ID != "srv-1" {
		t.Fatalf("message = %+v", m)
	}
}

func TestClientSendWithoutIDPassesThrough(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"status": "accepted"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "")
	m, err := c.Send(context.Background(), "c1", "hello", nil)
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if m.ID != "" {
		t.Fatalf("id = %q, want empty (caller decides)", m.ID)
	}
}

func TestClientErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"not a member"}`, http.StatusForbidden)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "")
	if err := c.Join(context.Background(), "c1"); err == nil {
		t.Fatalf("expected error on 403")
	}
}
