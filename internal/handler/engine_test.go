package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/helpchat/internal/attach"
	"github.com/helpchat/internal/channel"
	"github.com/helpchat/internal/chat"
	"github.com/helpchat/internal/model"
)

type stubAPI struct{}

func (stubAPI) ListConversations(ctx context.Context, _ model.ListFilter) ([]model.Conversation, error) {
	return []model.Conversation{{ID: "c1", Status: model.StatusActive}}, nil
}

func (stubAPI) Detail(ctx context.Context, id string) (*model.ConversationDetail, error) {
	// The actor is never listed, so every send hits the membership gate.
	return &model.ConversationDetail{Members: []model.Member{{ID: "someone-else"}}}, nil
}

func (stubAPI) History(ctx context.Context, id string) ([]model.Message, error) { return nil, nil }

func (stubAPI) Send(ctx context.Context, id, body string, files []attach.File) (*model.Message, error) {
	return &model.Message{ID: "srv-1", ConversationID: id, Body: body, CreatedAt: time.Now().UTC()}, nil
}

func (stubAPI) Join(ctx context.Context, id string) error   { return nil }
func (stubAPI) Typing(ctx context.Context, id string) error { return nil }

type stubFactory struct{}

func (stubFactory) Subscribe(ctx context.Context, id string) (channel.Subscription, error) {
	return &stubSub{events: make(chan channel.Event)}, nil
}

type stubSub struct {
	events chan channel.Event
	once   sync.Once
}

func (s *stubSub) Events() <-chan channel.Event { return s.events }

func (s *stubSub) Close() error {
	s.once.Do(func() { close(s.events) })
	return nil
}

type stubSuggester struct{}

func (stubSuggester) Generate(ctx context.Context, conversationContext, language string) ([]model.Suggestion, error) {
	return []model.Suggestion{{ID: "s1", Text: "On it."}}, nil
}

func newTestHandler(t *testing.T) (*EngineHandler, *chat.Engine) {
	t.Helper()
	eng := chat.New(chat.Options{
		API:       stubAPI{},
		Channel:   stubFactory{},
		Suggester: stubSuggester{},
		Actor:     chat.Actor{ID: "me", Name: "Me", Role: model.RoleAgent},
		Surface:   chat.SurfaceAdmin,
	})
	t.Cleanup(eng.Close)
	if err := eng.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	return NewEngineHandler(eng), eng
}

func TestSendNotMemberMapsTo403(t *testing.T) {
	h, _ := newTestHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/api/send", strings.NewReader(`{"body":"hi"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.Send(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403; body %s", rec.Code, rec.Body.String())
	}
}

func TestSelectRequiresConversationID(t *testing.T) {
	h, _ := newTestHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/api/select", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	h.SelectConversation(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestGetConversationsReturnsSnapshot(t *testing.T) {
	h, eng := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/api/conversations?status=active", nil)
	rec := httptest.NewRecorder()
	h.GetConversations(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d; body %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"c1"`) {
		t.Fatalf("snapshot missing conversation: %s", rec.Body.String())
	}
	if eng.ActiveConversationID() != "c1" {
		t.Fatalf("auto-select did not run")
	}
}

func TestSuggestionsEndpoint(t *testing.T) {
	h, _ := newTestHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/api/suggestions", nil)
	rec := httptest.NewRecorder()
	h.Suggestions(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d; body %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "On it.") {
		t.Fatalf("body = %s", rec.Body.String())
	}
}
