// Package api is the HTTP client for the external helpdesk backend:
// conversation list/detail, message history, send, join and typing.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/helpchat/internal/attach"
	"github.com/helpchat/internal/channel"
	"github.com/helpchat/internal/model"
)

const maxResponseBytes = 4 << 20

type Client struct {
	baseURL    string
	authToken  string
	httpClient *http.Client
}

// NewClient creates a backend client. authToken may be empty; when
// set it is sent as a bearer token (session handling itself is the
// dashboards' concern).
func NewClient(baseURL, authToken string) *Client {
	return &Client{
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		authToken: authToken,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	req.Header.Set("Accept", "application/json")
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, truncateBody(body))
	}
	return body, nil
}

func truncateBody(b []byte) string {
	const max = 200
	if len(b) > max {
		b = b[:max]
	}
	return string(bytes.TrimSpace(b))
}

// ListConversations fetches the conversation list for one status
// tab / query combination. Filtering is repeated client-side by the
// directory; the parameters only bound the fetch.
func (c *Client) ListConversations(ctx context.Context, f model.ListFilter) ([]model.Conversation, error) {
	q := url.Values{}
	if f.Status != "" {
		q.Set("status", string(f.Status))
	}
	if f.Query != "" {
		q.Set("q", f.Query)
	}
	u := c.baseURL + "/api/conversations"
	if enc := q.Encode(); enc != "" {
		u += "?" + enc
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("api.ListConversations: %w", err)
	}
	body, err := c.do(req)
	if err != nil {
		return nil, fmt.Errorf("api.ListConversations: %w", err)
	}
	var out []model.Conversation
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("api.ListConversations decode: %w", err)
	}
	return out, nil
}

// Detail fetches per-conversation membership, customer profile and stats.
func (c *Client) Detail(ctx context.Context, conversationID string) (*model.ConversationDetail, error) {
	u := c.baseURL + "/api/conversations/" + url.PathEscape(conversationID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("api.Detail: %w", err)
	}
	body, err := c.do(req)
	if err != nil {
		return nil, fmt.Errorf("api.Detail: %w", err)
	}
	var out model.ConversationDetail
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("api.Detail decode: %w", err)
	}
	return &out, nil
}

// History fetches the full message sequence of a conversation. Items
// go through the normalization boundary; history producers use the
// same loose field spellings as the realtime channel.
func (c *Client) History(ctx context.Context, conversationID string) ([]model.Message, error) {
	u := c.baseURL + "/api/conversations/" + url.PathEscape(conversationID) + "/messages"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("api.History: %w", err)
	}
	body, err := c.do(req)
	if err != nil {
		return nil, fmt.Errorf("api.History: %w", err)
	}
	var raws []json.RawMessage
	if err := json.Unmarshal(body, &raws); err != nil {
		return nil, fmt.Errorf("api.History decode: %w", err)
	}
	out := make([]model.Message, 0, len(raws))
	for _, raw := range raws {
		m, err := channel.DecodeMessage(raw)
		if err != nil {
			return nil, fmt.Errorf("api.History: %w", err)
		}
		out = append(out, *m)
	}
	return out, nil
}

// Send posts a message with its raw files as multipart form data and
// returns the server's view of the created message. A response
// without a message id comes back with ID == ""; the send coordinator
// treats that as "not persisted".
func (c *Client) Send(ctx context.Context, conversationID, body string, files []attach.File) (*model.Message, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("conversation_id", conversationID); err != nil {
		return nil, fmt.Errorf("api.Send: %w", err)
	}
	if err := mw.WriteField("body", body); err != nil {
		return nil, fmt.Errorf("api.Send: %w", err)
	}
	for _, f := range files {
		part, err := mw.CreateFormFile("files", f.Name)
		if err != nil {
			return nil, fmt.Errorf("api.Send: %w", err)
		}
		if _, err := part.Write(f.Data); err != nil {
			return nil, fmt.Errorf("api.Send: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("api.Send: %w", err)
	}

	u := c.baseURL + "/api/conversations/" + url.PathEscape(conversationID) + "/messages"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, &buf)
	if err != nil {
		return nil, fmt.Errorf("api.Send: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	respBody, err := c.do(req)
	if err != nil {
		return nil, fmt.Errorf("api.Send: %w", err)
	}
	m, err := channel.DecodeMessage(respBody)
	if err != nil {
		return nil, fmt.Errorf("api.Send: %w", err)
	}
	return m, nil
}

// Join makes the actor a member of the conversation.
func (c *Client) Join(ctx context.Context, conversationID string) error {
	u := c.baseURL + "/api/conversations/" + url.PathEscape(conversationID) + "/join"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, nil)
	if err != nil {
		return fmt.Errorf("api.Join: %w", err)
	}
	if _, err := c.do(req); err != nil {
		return fmt.Errorf("api.Join: %w", err)
	}
	return nil
}

// Typing signals that the actor is composing. Best effort.
func (c *Client) Typing(ctx context.Context, conversationID string) error {
	u := c.baseURL + "/api/conversations/" + url.PathEscape(conversationID) + "/typing"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, nil)
	if err != nil {
		return fmt.Errorf("api.Typing: %w", err)
	}
	if _, err := c.do(req); err != nil {
		return fmt.Errorf("api.Typing: %w", err)
	}
	return nil
}
