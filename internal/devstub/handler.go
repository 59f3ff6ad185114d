package devstub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/helpchat/internal/logger"
	"github.com/helpchat/internal/model"
)

const maxUploadBytes = 32 << 20

// Handler implements the helpdesk backend contract: conversation
// directory, history, send, join, typing, file serving and the AI
// text-generation endpoint.
type Handler struct {
	convRepo   *ConversationRepository
	msgRepo    *MessageRepository
	hub        *Hub
	rdb        *redis.Client // nil when Redis is not configured
	uploadsDir string
}

func NewHandler(convRepo *ConversationRepository, msgRepo *MessageRepository, hub *Hub, rdb *redis.Client, uploadsDir string) *Handler {
	return &Handler{convRepo: convRepo, msgRepo: msgRepo, hub: hub, rdb: rdb, uploadsDir: uploadsDir}
}

// actor identifies the caller. The devstub trusts the bearer token and
// reads it as "id:name:role"; missing parts get agent defaults.
type actor struct {
	ID   string
	Name string
	Role model.Role
}

func parseActor(r *http.Request) actor {
	a := actor{ID: "agent-1", Name: "Agent One", Role: model.RoleAgent}
	auth := r.Header.Get("Authorization")
	token := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	if token == "" || token == auth {
		return a
	}
	parts := strings.SplitN(token, ":", 3)
	if parts[0] != "" {
		a.ID = parts[0]
		a.Name = parts[0]
	}
	if len(parts) > 1 && parts[1] != "" {
		a.Name = parts[1]
	}
	if len(parts) > 2 && parts[2] != "" {
		a.Role = model.Role(parts[2])
	}
	return a
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Errorf("devstub: writeJSON encode: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// GetConversations handles GET /api/conversations?status=&q=.
func (h *Handler) GetConversations(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	list, err := h.convRepo.List(r.Context(), q.Get("status"), q.Get("q"))
	if err != nil {
		logger.Errorf("devstub: list conversations: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if list == nil {
		list = []model.Conversation{}
	}
	writeJSON(w, http.StatusOK, list)
}

// GetConversation handles GET /api/conversations/{id}.
func (h *Handler) GetConversation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	d, err := h.convRepo.GetDetail(r.Context(), id)
	if errors.Is(err, ErrNotFound) {
		writeError(w, http.StatusNotFound, "conversation not found")
		return
	}
	if err != nil {
		logger.Errorf("devstub: get conversation %s: %v", id, err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// GetMessages handles GET /api/conversations/{id}/messages.
func (h *Handler) GetMessages(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	msgs, err := h.msgRepo.History(r.Context(), id)
	if err != nil {
		logger.Errorf("devstub: history %s: %v", id, err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if msgs == nil {
		msgs = []model.Message{}
	}
	writeJSON(w, http.StatusOK, msgs)
}

// PostMessage handles POST /api/conversations/{id}/messages
// (multipart: "body" plus "files" parts). Non-members get 403. The
// stored message is answered to the caller and broadcast to realtime
// subscribers, so the sender sees its own echo on the channel too.
func (h *Handler) PostMessage(w http.ResponseWriter, r *http.Request) {
	defer logger.DeferLogDuration("devstub.PostMessage", time.Now())()

	id := chi.URLParam(r, "id")
	a := parseActor(r)

	member, err := h.convRepo.IsMember(r.Context(), id, a.ID)
	if err != nil {
		logger.Errorf("devstub: membership %s: %v", id, err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if !member {
		writeError(w, http.StatusForbidden, "not a member of this conversation")
		return
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	body := r.FormValue("body")

	var attachments []model.Attachment
	if r.MultipartForm != nil {
		for _, fh := range r.MultipartForm.File["files"] {
			att, err := h.saveUpload(fh)
			if err != nil {
				logger.Errorf("devstub: save upload %s: %v", fh.Filename, err)
				writeError(w, http.StatusInternalServerError, "failed to store file")
				return
			}
			attachments = append(attachments, att)
		}
	}
	if body == "" && len(attachments) == 0 {
		writeError(w, http.StatusBadRequest, "empty message")
		return
	}

	msg := &model.Message{
		ID:             uuid.New().String(),
		ConversationID: id,
		AuthorID:       a.ID,
		AuthorName:     a.Name,
		AuthorRole:     a.Role,
		Body:           body,
		Attachments:    attachments,
		CreatedAt:      time.Now().UTC(),
		Delivery:       model.DeliveryConfirmed,
	}
	if err := h.msgRepo.Create(r.Context(), msg); err != nil {
		logger.Errorf("devstub: create message: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	preview := body
	if preview == "" {
		preview = attachments[0].Filename
	}
	if err := h.convRepo.TouchActivity(r.Context(), id, preview, msg.CreatedAt); err != nil {
		logger.Errorf("devstub: touch activity: %v", err)
	}

	h.publish(r.Context(), id, map[string]any{"type": "message", "payload": msg})
	writeJSON(w, http.StatusCreated, msg)
}

// Join handles POST /api/conversations/{id}/join.
func (h *Handler) Join(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	a := parseActor(r)
	err := h.convRepo.AddMember(r.Context(), id, model.Member{ID: a.ID, Name: a.Name, Role: a.Role})
	if errors.Is(err, ErrNotFound) {
		writeError(w, http.StatusNotFound, "conversation not found")
		return
	}
	if err != nil {
		logger.Errorf("devstub: join %s: %v", id, err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "joined"})
}

// Typing handles POST /api/conversations/{id}/typing, relaying the
// signal to realtime subscribers.
func (h *Handler) Typing(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	a := parseActor(r)
	h.publish(r.Context(), id, map[string]any{
		"type": "typing",
		"payload": map[string]string{
			"conversation_id": id,
			"author_id":       a.ID,
			"author_name":     a.Name,
		},
	})
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Generate handles POST /api/generate, the AI collaborator stand-in.
// It answers with a numbered block in a wrapped field, one of the
// response shapes seen in production.
func (h *Handler) Generate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Prompt   string `json:"prompt"`
		Language string `json:"language"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	lines := []string{
		"Thanks for the details, let me look into that right away.",
		"Could you tell me which version you are running?",
		"I have escalated this to our engineering team and will keep you posted.",
	}
	var b strings.Builder
	for i, l := range lines {
		fmt.Fprintf(&b, "%d. %s\n", i+1, l)
	}
	writeJSON(w, http.StatusOK, map[string]string{"data": b.String()})
}

// ServeFile handles GET /api/files/{name} for uploaded attachments.
func (h *Handler) ServeFile(w http.ResponseWriter, r *http.Request) {
	name := filepath.Base(chi.URLParam(r, "name"))
	path := filepath.Join(h.uploadsDir, name)
	if _, err := os.Stat(path); err != nil {
		writeError(w, http.StatusNotFound, "file not found")
		return
	}
	http.ServeFile(w, r, path)
}

// ServeWS handles GET /ws/conversations/{id}.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	h.hub.ServeWS(w, r, chi.URLParam(r, "id"))
}

func (h *Handler) saveUpload(fh *multipart.FileHeader) (model.Attachment, error) {
	src, err := fh.Open()
	if err != nil {
		return model.Attachment{}, err
	}
	defer src.Close()
	filename := fh.Filename
	mime := fh.Header.Get("Content-Type")

	if err := os.MkdirAll(h.uploadsDir, 0o755); err != nil {
		return model.Attachment{}, err
	}
	id := uuid.New().String()
	stored := id + filepath.Ext(filename)
	dst, err := os.Create(filepath.Join(h.uploadsDir, stored))
	if err != nil {
		return model.Attachment{}, err
	}
	n, err := io.Copy(dst, src)
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return model.Attachment{}, err
	}
	if mime == "" {
		mime = "application/octet-stream"
	}
	return model.Attachment{
		ID:        id,
		Filename:  filename,
		Mime:      mime,
		SizeBytes: n,
		RemoteURL: "/api/files/" + stored,
	}, nil
}

// publish sends one realtime frame to the conversation's WebSocket
// room and, when Redis is configured, its pub/sub channel.
func (h *Handler) publish(ctx context.Context, conversationID string, frame map[string]any) {
	raw, err := json.Marshal(frame)
	if err != nil {
		logger.Errorf("devstub: marshal frame: %v", err)
		return
	}
	h.hub.Broadcast(conversationID, raw)
	if h.rdb != nil {
		if err := h.rdb.Publish(ctx, "conversation:"+conversationID, raw).Err(); err != nil {
			logger.Errorf("devstub: redis publish conv=%s: %v", conversationID, err)
		}
	}
}
