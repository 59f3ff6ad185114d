package handler

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/helpchat/internal/attach"
	"github.com/helpchat/internal/chat"
	"github.com/helpchat/internal/logger"
	"github.com/helpchat/internal/model"
)

const maxUploadBytes = 32 << 20

// EngineHandler exposes the chat engine to dashboard frontends over
// REST. State-changing calls answer with the fresh snapshot so the
// caller does not need a follow-up fetch.
type EngineHandler struct {
	eng *chat.Engine
}

func NewEngineHandler(eng *chat.Engine) *EngineHandler {
	return &EngineHandler{eng: eng}
}

// GetConversations handles GET /api/conversations?status=&q=.
// Filter params apply before the reload.
func (h *EngineHandler) GetConversations(w http.ResponseWriter, r *http.Request) {
	defer logger.DeferLogDuration("EngineHandler.GetConversations", time.Now())()

	q := r.URL.Query()
	tab := model.ConversationStatus(q.Get("status"))
	if err := h.eng.ApplyFilter(r.Context(), tab, q.Get("q")); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"conversations": h.eng.Conversations(),
		"active_id":     h.eng.ActiveConversationID(),
	})
}

// SelectConversation handles POST /api/select.
func (h *EngineHandler) SelectConversation(w http.ResponseWriter, r *http.Request) {
	defer logger.DeferLogDuration("EngineHandler.SelectConversation", time.Now())()

	var req struct {
		ConversationID string `json:"conversation_id"`
	}
	if err := decodeJSON(r, &req); err != nil || req.ConversationID == "" {
		writeError(w, http.StatusBadRequest, "conversation_id is required")
		return
	}
	if err := h.eng.Select(r.Context(), req.ConversationID); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"active_id": h.eng.ActiveConversationID(),
		"messages":  h.eng.Messages(),
	})
}

// GetMessages handles GET /api/messages?conversation_id=&limit=.
// Without conversation_id the active conversation is meant.
func (h *EngineHandler) GetMessages(w http.ResponseWriter, r *http.Request) {
	var msgs []*model.Message
	if id := r.URL.Query().Get("conversation_id"); id != "" {
		msgs = h.eng.MessagesFor(id)
	} else {
		msgs = h.eng.Messages()
	}
	if limit := queryInt(r, "limit", 0); limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"messages": msgs,
		"typing":   h.eng.TypingAuthors(),
	})
}

// Send handles POST /api/send (multipart/form-data: "body" plus any
// number of "files" parts). Uploaded files join the pending attachment
// set before the send fires.
func (h *EngineHandler) Send(w http.ResponseWriter, r *http.Request) {
	defer logger.DeferLogDuration("EngineHandler.Send", time.Now())()

	body := ""
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
			writeError(w, http.StatusBadRequest, "invalid multipart form")
			return
		}
		body = r.FormValue("body")
		files, err := readMultipartFiles(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, "unreadable file part")
			return
		}
		if len(files) > 0 {
			h.eng.Attachments().Select(files)
		}
	} else {
		var req struct {
			Body string `json:"body"`
		}
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		body = req.Body
	}

	if err := h.eng.Send(r.Context(), body); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": h.eng.Messages()})
}

// Join handles POST /api/join.
func (h *EngineHandler) Join(w http.ResponseWriter, r *http.Request) {
	defer logger.DeferLogDuration("EngineHandler.Join", time.Now())()

	var req struct {
		ConversationID string `json:"conversation_id"`
	}
	if err := decodeJSON(r, &req); err != nil || req.ConversationID == "" {
		writeError(w, http.StatusBadRequest, "conversation_id is required")
		return
	}
	if err := h.eng.Join(r.Context(), req.ConversationID); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"conversations": h.eng.Conversations()})
}

// Suggestions handles POST /api/suggestions. Never fails outright:
// the engine falls back to canned replies, so only a cancelled
// request surfaces as an error.
func (h *EngineHandler) Suggestions(w http.ResponseWriter, r *http.Request) {
	defer logger.DeferLogDuration("EngineHandler.Suggestions", time.Now())()

	sugg, err := h.eng.GenerateSuggestions(r.Context())
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"suggestions": sugg})
}

// Typing handles POST /api/typing, relaying the actor's keystroke
// activity to the backend. Always 204; delivery is best effort.
func (h *EngineHandler) Typing(w http.ResponseWriter, r *http.Request) {
	h.eng.NotifyTyping(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

// StageAttachments handles POST /api/attachments (multipart "files"
// parts), adding files to the pending set ahead of the next send.
func (h *EngineHandler) StageAttachments(w http.ResponseWriter, r *http.Request) {
	defer logger.DeferLogDuration("EngineHandler.StageAttachments", time.Now())()

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	files, err := readMultipartFiles(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "unreadable file part")
		return
	}
	if len(files) == 0 {
		writeError(w, http.StatusBadRequest, "no files")
		return
	}
	h.eng.Attachments().Select(files)
	writeJSON(w, http.StatusOK, map[string]any{"attachments": attachmentViews(h.eng.Attachments().Handles())})
}

// GetAttachments handles GET /api/attachments.
func (h *EngineHandler) GetAttachments(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"attachments": attachmentViews(h.eng.Attachments().Handles())})
}

// RemoveAttachment handles DELETE /api/attachments/{id}. Removing an
// already-removed handle is a no-op, mirroring the pipeline.
func (h *EngineHandler) RemoveAttachment(w http.ResponseWriter, r *http.Request) {
	h.eng.Attachments().Remove(chi.URLParam(r, "id"))
	w.WriteHeader(http.StatusNoContent)
}

// ClearAttachments handles DELETE /api/attachments.
func (h *EngineHandler) ClearAttachments(w http.ResponseWriter, r *http.Request) {
	h.eng.Attachments().Clear()
	w.WriteHeader(http.StatusNoContent)
}

type attachmentView struct {
	ID         string `json:"id"`
	Filename   string `json:"filename"`
	Mime       string `json:"mime"`
	SizeBytes  int64  `json:"size_bytes"`
	PreviewURL string `json:"preview_url,omitempty"`
}

func attachmentViews(handles []*attach.Handle) []attachmentView {
	out := make([]attachmentView, 0, len(handles))
	for _, h := range handles {
		v := attachmentView{ID: h.ID, Filename: h.File.Name, Mime: h.File.Mime, SizeBytes: h.File.Size}
		if h.Preview != nil {
			v.PreviewURL = h.Preview.URL()
		}
		out = append(out, v)
	}
	return out
}

func readMultipartFiles(r *http.Request) ([]attach.File, error) {
	if r.MultipartForm == nil {
		return nil, nil
	}
	var files []attach.File
	for _, fh := range r.MultipartForm.File["files"] {
		f, err := fh.Open()
		if err != nil {
			return nil, err
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return nil, err
		}
		mime := fh.Header.Get("Content-Type")
		if mime == "" {
			mime = "application/octet-stream"
		}
		files = append(files, attach.File{Name: fh.Filename, Mime: mime, Size: int64(len(data)), Data: data})
	}
	return files, nil
}

// writeEngineError maps engine sentinels onto HTTP statuses. Anything
// unmatched is a collaborator failure, reported as a bad gateway.
func writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, chat.ErrNotMember):
		writeError(w, http.StatusForbidden, "join the conversation before replying")
	case errors.Is(err, chat.ErrEmptyCompose):
		writeError(w, http.StatusBadRequest, "nothing to send")
	case errors.Is(err, chat.ErrNoActiveConversation):
		writeError(w, http.StatusBadRequest, "no conversation selected")
	case errors.Is(err, chat.ErrUnpersisted):
		writeError(w, http.StatusBadGateway, "message was not persisted, try again")
	default:
		logger.Errorf("handler: %v", err)
		writeError(w, http.StatusBadGateway, "upstream request failed")
	}
}
