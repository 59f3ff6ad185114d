package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestDecodeGeneratedShapes(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"bare json string", `"1. A\n2. B"`, "1. A\n2. B"},
		{"suggestion key", `{"suggestion": "try this"}`, "try this"},
		{"suggestions string", `{"suggestions": "one\ntwo"}`, "one\ntwo"},
		{"suggestions list", `{"suggestions": ["one", "two", "three"]}`, "one\ntwo\nthree"},
		{"data key", `{"data": "payload text"}`, "payload text"},
		{"plain text", "just plain text, no json", "just plain text, no json"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeGenerated([]byte(tt.raw))
			if err != nil {
				t.Fatalf("DecodeGenerated: %v", err)
			}
			if got != tt.want {
				t.Fatalf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDecodeGeneratedRejectsEmptyAndUnknown(t *testing.T) {
	if _, err := DecodeGenerated([]byte("   ")); err == nil {
		t.Errorf("empty body decoded")
	}
	if _, err := DecodeGenerated([]byte(`{"unrelated": 42}`)); err == nil {
		t.Errorf("unknown object shape decoded")
	}
}

func TestGeneratorSendsPromptAndAuth(t *testing.T) {
	var gotAuth, gotPrompt, gotLanguage string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		var req struct {
			Prompt   string `json:"prompt"`
			Language string `json:"language"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		gotPrompt, gotLanguage = req.Prompt, req.Language
		json.NewEncoder(w).Encode(map[string]string{"data": "1. A\n2. B\n3. C"})
	}))
	defer srv.Close()

	g := NewGenerator(srv.URL, "secret-key")
	got, err := g.Generate(context.Background(), "the prompt", "en")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if got != "1. A\n2. B\n3. C" {
		t.Fatalf("text = %q", got)
	}
	if gotAuth != "Bearer secret-key" {
		t.Errorf("auth header = %q", gotAuth)
	}
	if gotPrompt != "the prompt" || gotLanguage != "en" {
		t.Errorf("request = %q / %q", gotPrompt, gotLanguage)
	}
}

func TestGeneratorNon200IsAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	g := NewGenerator(srv.URL, "")
	if _, err := g.Generate(context.Background(), "p", "en"); err == nil {
		t.Fatalf("expected error on 503")
	}
}
