package devstub

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/helpchat/internal/api"
	"github.com/helpchat/internal/model"
	"github.com/helpchat/internal/suggest"
)

func TestParseActor(t *testing.T) {
	tests := []struct {
		header string
		want   actor
	}{
		{"", actor{ID: "agent-1", Name: "Agent One", Role: model.RoleAgent}},
		{"Bearer u7", actor{ID: "u7", Name: "u7", Role: model.RoleAgent}},
		{"Bearer u7:Dana", actor{ID: "u7", Name: "Dana", Role: model.RoleAgent}},
		{"Bearer u7:Dana:admin", actor{ID: "u7", Name: "Dana", Role: model.RoleAdmin}},
	}
	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		if tt.header != "" {
			r.Header.Set("Authorization", tt.header)
		}
		if got := parseActor(r); got != tt.want {
			t.Errorf("parseActor(%q) = %+v, want %+v", tt.header, got, tt.want)
		}
	}
}

func TestGenerateAnswerIsParseable(t *testing.T) {
	h := &Handler{}
	req := httptest.NewRequest(http.MethodPost, "/api/generate", strings.NewReader(`{"prompt":"ctx","language":"en"}`))
	rec := httptest.NewRecorder()
	h.Generate(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	// The response must survive the gateway's full decode+parse chain.
	text, err := api.DecodeGenerated(rec.Body.Bytes())
	if err != nil {
		t.Fatalf("DecodeGenerated: %v", err)
	}
	lines, err := suggest.Parse(text)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(lines) < 3 {
		t.Fatalf("parsed %d lines from %q", len(lines), text)
	}
}

func TestGenerateRejectsBadBody(t *testing.T) {
	h := &Handler{}
	req := httptest.NewRequest(http.MethodPost, "/api/generate", strings.NewReader("{broken"))
	rec := httptest.NewRecorder()
	h.Generate(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}
