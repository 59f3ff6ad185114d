package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Generator calls the AI text-generation collaborator. The response
// shape is not contractually fixed; DecodeGenerated normalizes the
// variants seen in the wild before any parsing logic runs.
type Generator struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewGenerator creates the client. No client-level timeout is set;
// the suggestion engine bounds each attempt with a context deadline.
func NewGenerator(baseURL, apiKey string) *Generator {
	return &Generator{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{},
	}
}

type generateRequest struct {
	Prompt   string `json:"prompt"`
	Language string `json:"language,omitempty"`
}

func (g *Generator) Generate(ctx context.Context, prompt, language string) (string, error) {
	payload, err := json.Marshal(generateRequest{Prompt: prompt, Language: language})
	if err != nil {
		return "", fmt.Errorf("api.Generate: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/api/generate", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("api.Generate: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if g.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+g.apiKey)
	}
	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("api.Generate: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", fmt.Errorf("api.Generate read: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("api.Generate: status %d: %s", resp.StatusCode, truncateBody(body))
	}
	return DecodeGenerated(body)
}

// generatedEnvelope covers the keyed response shapes: the text may
// hide behind "suggestion", "suggestions" or "data", as a string or a
// list of strings.
type generatedEnvelope struct {
	Suggestion  json.RawMessage `json:"suggestion"`
	Suggestions json.RawMessage `json:"suggestions"`
	Data        json.RawMessage `json:"data"`
}

// DecodeGenerated extracts the generated text from whichever shape
// the collaborator produced: a bare JSON string, a keyed envelope, or
// plain text. List values are joined with newlines so the downstream
// line-splitting heuristics see one blob.
func DecodeGenerated(raw []byte) (string, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return "", fmt.Errorf("api.Generate: empty response")
	}

	// Bare JSON string.
	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err == nil {
			return s, nil
		}
	}

	if trimmed[0] == '{' {
		var env generatedEnvelope
		if err := json.Unmarshal(trimmed, &env); err == nil {
			for _, field := range []json.RawMessage{env.Suggestion, env.Suggestions, env.Data} {
				if text := decodeTextValue(field); text != "" {
					return text, nil
				}
			}
		}
		return "", fmt.Errorf("api.Generate: unrecognized response shape: %s", truncateBody(trimmed))
	}

	// Plain text body.
	return string(trimmed), nil
}

func decodeTextValue(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return strings.Join(list, "\n")
	}
	return ""
}
