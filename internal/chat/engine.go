// Package chat is the live-chat core: the per-conversation message
// store with optimistic sends and reconciliation, the conversation
// directory, and the glue binding attachments, suggestions and the
// real-time channel into one engine per dashboard session.
package chat

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/helpchat/internal/attach"
	"github.com/helpchat/internal/channel"
	"github.com/helpchat/internal/logger"
	"github.com/helpchat/internal/model"
)

// PlaceholderBody substitutes an empty body when attachments are
// present, so a message is never empty on the wire.
const PlaceholderBody = "attachment(s) sent"

const (
	defaultDebounce  = 300 * time.Millisecond
	contextWindow    = 12 // messages fed to suggestion generation
	eventBufSize     = 64
	previewMaxLength = 80
)

// API is the helpdesk backend contract the engine consumes.
type API interface {
	ListConversations(ctx context.Context, f model.ListFilter) ([]model.Conversation, error)
	Detail(ctx context.Context, conversationID string) (*model.ConversationDetail, error)
	History(ctx context.Context, conversationID string) ([]model.Message, error)
	Send(ctx context.Context, conversationID, body string, files []attach.File) (*model.Message, error)
	Join(ctx context.Context, conversationID string) error
	Typing(ctx context.Context, conversationID string) error
}

// Suggester produces quick-reply suggestions from conversation context.
type Suggester interface {
	Generate(ctx context.Context, conversationContext, language string) ([]model.Suggestion, error)
}

// EventKind tags engine notifications to the rendering surface. The
// surface refetches the matching snapshot; events carry no state.
type EventKind string

const (
	EventConversations EventKind = "conversations"
	EventMessages      EventKind = "messages"
	EventSuggestions   EventKind = "suggestions"
	EventTyping        EventKind = "typing"
	EventNotice        EventKind = "notice"
)

type Event struct {
	Kind           EventKind `json:"kind"`
	ConversationID string    `json:"conversation_id,omitempty"`
	Notice         string    `json:"notice,omitempty"`
}

type Options struct {
	API       API
	Channel   channel.Factory
	Suggester Suggester
	Previews  attach.Allocator
	Actor     Actor
	Surface   Surface

	// Language for suggestion generation, e.g. "en".
	Language string

	// DebounceDelay for directory query changes; defaults to 300ms.
	DebounceDelay time.Duration
	// TypingTTL before a typing indicator expires; defaults to 3s.
	TypingTTL time.Duration
}

// Engine is one dashboard session's chat core. All state is guarded
// by mu; channel deliveries and send completions serialize through it,
// so a render snapshot never observes a half-applied mutation.
type Engine struct {
	api       API
	factory   channel.Factory
	suggester Suggester
	pipeline  *attach.Pipeline
	actor     Actor
	surface   Surface
	language  string

	debounceDelay time.Duration

	mu            sync.Mutex
	conversations []model.Conversation
	tab           model.ConversationStatus
	query         string
	debounce      *time.Timer
	activeID      string
	stores        map[string]*Store
	inflight      map[string]string // temp id -> conversation id
	sub           channel.Subscription
	subCancel     context.CancelFunc
	suggestions   []model.Suggestion

	typing *channel.TypingTracker

	events chan Event
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(opts Options) *Engine {
	if opts.DebounceDelay <= 0 {
		opts.DebounceDelay = defaultDebounce
	}
	if opts.Language == "" {
		opts.Language = "en"
	}
	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		api:           opts.API,
		factory:       opts.Channel,
		suggester:     opts.Suggester,
		pipeline:      attach.NewPipeline(opts.Previews),
		actor:         opts.Actor,
		surface:       opts.Surface,
		language:      opts.Language,
		debounceDelay: opts.DebounceDelay,
		tab:           model.StatusActive,
		stores:        make(map[string]*Store),
		inflight:      make(map[string]string),
		events:        make(chan Event, eventBufSize),
		ctx:           ctx,
		cancel:        cancel,
	}
	e.typing = channel.NewTypingTracker(opts.TypingTTL, func() {
		e.emit(Event{Kind: EventTyping, ConversationID: e.ActiveConversationID()})
	})
	return e
}

// Events is the engine's notification feed. Entries are dropped under
// backpressure; surfaces refetch snapshots, so a dropped event only
// delays a repaint.
func (e *Engine) Events() <-chan Event { return e.events }

// Done is closed when the engine shuts down.
func (e *Engine) Done() <-chan struct{} { return e.ctx.Done() }

// Close tears the engine down: cancels pumps, closes the channel
// subscription and releases every outstanding attachment preview.
func (e *Engine) Close() {
	e.mu.Lock()
	if e.debounce != nil {
		e.debounce.Stop()
	}
	sub := e.sub
	cancel := e.subCancel
	e.sub, e.subCancel = nil, nil
	e.mu.Unlock()

	e.cancel()
	if cancel != nil {
		cancel()
	}
	if sub != nil {
		sub.Close()
	}
	e.typing.Reset()
	e.pipeline.Clear()
	e.wg.Wait()
}

// Attachments exposes the compose surface's attachment pipeline.
func (e *Engine) Attachments() *attach.Pipeline { return e.pipeline }

// Select makes the conversation active: tears down the previous
// subscription, loads history, subscribes to the new stream and
// resets unread state. Teardown strictly precedes the new
// subscription; the reverse order risks duplicate delivery under a
// rapid switch. A failed load or subscribe clears the active marker
// again, so selecting the same conversation can be retried.
func (e *Engine) Select(ctx context.Context, conversationID string) error {
	e.mu.Lock()
	if e.activeID == conversationID {
		e.mu.Unlock()
		return nil
	}
	oldSub, oldCancel := e.sub, e.subCancel
	e.sub, e.subCancel = nil, nil
	e.activeID = conversationID
	if _, ok := e.stores[conversationID]; !ok {
		e.stores[conversationID] = NewStore(conversationID)
	}
	for i := range e.conversations {
		if e.conversations[i].ID == conversationID {
			e.conversations[i].UnreadCount = 0
		}
	}
	e.mu.Unlock()

	// Close the old subscription before resetting typing state; the
	// reverse order lets the old pump re-add a stale entry.
	if oldCancel != nil {
		oldCancel()
	}
	if oldSub != nil {
		oldSub.Close()
	}
	e.typing.Reset()

	history, err := e.api.History(ctx, conversationID)
	if err != nil {
		e.abandonSelect(conversationID)
		return fmt.Errorf("load history %s: %w", conversationID, err)
	}
	e.mu.Lock()
	e.stores[conversationID].MergeHistory(history)
	e.suggestions = nil
	e.mu.Unlock()

	subCtx, subCancel := context.WithCancel(e.ctx)
	sub, err := e.factory.Subscribe(subCtx, conversationID)
	if err != nil {
		subCancel()
		e.abandonSelect(conversationID)
		return fmt.Errorf("subscribe %s: %w", conversationID, err)
	}

	e.mu.Lock()
	if e.activeID != conversationID {
		// Lost a switch race; this subscription is already stale.
		e.mu.Unlock()
		subCancel()
		sub.Close()
		return nil
	}
	e.sub, e.subCancel = sub, subCancel
	e.mu.Unlock()

	e.wg.Add(1)
	go e.pump(conversationID, sub)
	e.emit(Event{Kind: EventMessages, ConversationID: conversationID})
	return nil
}

// abandonSelect clears the active marker after a failed switch unless
// a competing Select already took over. Leaving the marker set would
// turn a retry of the same conversation into a silent no-op.
func (e *Engine) abandonSelect(conversationID string) {
	e.mu.Lock()
	if e.activeID == conversationID && e.sub == nil {
		e.activeID = ""
	}
	e.mu.Unlock()
}

// Send performs the optimistic send algorithm against the active
// conversation. Pre-flight failures (membership, empty compose) block
// the network call entirely; a transport failure or a response
// without a message id rolls the optimistic insert back.
func (e *Engine) Send(ctx context.Context, body string) error {
	e.mu.Lock()
	conversationID := e.activeID
	if conversationID == "" {
		e.mu.Unlock()
		return ErrNoActiveConversation
	}
	if !e.isMemberLocked(conversationID) {
		e.mu.Unlock()
		return ErrNotMember
	}
	handles := e.pipeline.Handles()
	trimmed := strings.TrimSpace(body)
	if trimmed == "" && len(handles) == 0 {
		e.mu.Unlock()
		return ErrEmptyCompose
	}
	if trimmed == "" {
		trimmed = PlaceholderBody
	}

	tempID := uuid.New().String()
	pending := &model.Message{
		ID:             tempID,
		ConversationID: conversationID,
		AuthorID:       e.actor.ID,
		AuthorName:     e.actor.Name,
		AuthorRole:     e.actor.Role,
		Body:           trimmed,
		Attachments:    localAttachments(handles),
		CreatedAt:      time.Now().UTC(),
		Delivery:       model.DeliveryPending,
	}
	store := e.stores[conversationID]
	store.Insert(pending)
	e.inflight[tempID] = conversationID
	e.mu.Unlock()
	e.emit(Event{Kind: EventMessages, ConversationID: conversationID})

	files := make([]attach.File, 0, len(handles))
	for _, h := range handles {
		files = append(files, h.File)
	}
	confirmed, sendErr := e.api.Send(ctx, conversationID, trimmed, files)

	// Reconcile against the send's own conversation, which may no
	// longer be the active one.
	e.mu.Lock()
	delete(e.inflight, tempID)
	store = e.stores[conversationID]

	if sendErr != nil || confirmed == nil || confirmed.ID == "" {
		store.Remove(tempID)
		e.mu.Unlock()
		e.pipeline.DropPreviews(handles)
		e.emit(Event{Kind: EventMessages, ConversationID: conversationID})
		if sendErr != nil {
			return fmt.Errorf("send: %w", sendErr)
		}
		return ErrUnpersisted
	}

	confirmed.ConversationID = conversationID
	confirmed.Delivery = model.DeliveryConfirmed
	if store.Has(confirmed.ID) {
		// The channel echo won the race; drop the pending entry.
		store.Remove(tempID)
	} else {
		store.Replace(tempID, confirmed)
	}
	e.touchConversationLocked(confirmed)
	e.mu.Unlock()

	// Success clears the compose attachments (and their previews).
	for _, h := range handles {
		e.pipeline.Remove(h.ID)
	}
	e.emit(Event{Kind: EventMessages, ConversationID: conversationID})
	return nil
}

// GenerateSuggestions regenerates the quick-reply list from the tail
// of the active conversation. The engine below never hard-fails: on
// parse/transport trouble it retries once and then falls back to a
// canned set.
func (e *Engine) GenerateSuggestions(ctx context.Context) ([]model.Suggestion, error) {
	e.mu.Lock()
	conversationID := e.activeID
	if conversationID == "" {
		e.mu.Unlock()
		return nil, ErrNoActiveConversation
	}
	conversationContext := e.contextWindowLocked(conversationID)
	e.mu.Unlock()

	suggestions, err := e.suggester.Generate(ctx, conversationContext, e.language)
	if err != nil {
		return nil, fmt.Errorf("suggestions: %w", err)
	}
	e.mu.Lock()
	e.suggestions = suggestions
	e.mu.Unlock()
	e.emit(Event{Kind: EventSuggestions, ConversationID: conversationID})
	return suggestions, nil
}

// NotifyTyping signals the actor's typing state to the backend.
// Best effort: failures are logged, never surfaced.
func (e *Engine) NotifyTyping(ctx context.Context) {
	e.mu.Lock()
	conversationID := e.activeID
	e.mu.Unlock()
	if conversationID == "" {
		return
	}
	if err := e.api.Typing(ctx, conversationID); err != nil {
		logger.Errorf("engine: typing signal conv=%s: %v", conversationID, err)
	}
}

// --- snapshots ---

func (e *Engine) Conversations() []model.Conversation {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]model.Conversation, len(e.conversations))
	copy(out, e.conversations)
	return out
}

func (e *Engine) ActiveConversationID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.activeID
}

// Messages returns the active conversation's ordered sequence.
func (e *Engine) Messages() []*model.Message {
	e.mu.Lock()
	defer e.mu.Unlock()
	st, ok := e.stores[e.activeID]
	if !ok {
		return nil
	}
	return st.Messages()
}

// MessagesFor returns another conversation's sequence; stores survive
// switches so late reconciliations stay observable.
func (e *Engine) MessagesFor(conversationID string) []*model.Message {
	e.mu.Lock()
	defer e.mu.Unlock()
	st, ok := e.stores[conversationID]
	if !ok {
		return nil
	}
	return st.Messages()
}

func (e *Engine) Suggestions() []model.Suggestion {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]model.Suggestion, len(e.suggestions))
	copy(out, e.suggestions)
	return out
}

// TypingAuthors lists who is currently typing in the active conversation.
func (e *Engine) TypingAuthors() []string { return e.typing.Active() }

// --- internals ---

func (e *Engine) pump(conversationID string, sub channel.Subscription) {
	defer e.wg.Done()
	for ev := range sub.Events() {
		switch ev.Kind {
		case channel.KindMessage:
			if ev.Message != nil {
				e.acceptInbound(conversationID, ev.Message)
			}
		case channel.KindTyping:
			// Typing state is scoped to the active conversation; a
			// lingering pump of a switched-away subscription must not
			// touch it.
			if ev.Typing != nil && ev.Typing.AuthorID != e.actor.ID && e.ActiveConversationID() == conversationID {
				e.typing.Touch(ev.Typing.AuthorID, ev.Typing.AuthorName)
			}
		}
	}
}

// acceptInbound merges one channel-delivered message. Duplicates (the
// echo of a send already reconciled via the direct response) are
// dropped by id; out-of-order arrivals land at their timestamp
// position.
func (e *Engine) acceptInbound(subscribedID string, m *model.Message) {
	e.mu.Lock()
	if m.ConversationID == "" {
		m.ConversationID = subscribedID
	}
	store, ok := e.stores[m.ConversationID]
	if !ok || m.ID == "" {
		e.mu.Unlock()
		return
	}
	m.Delivery = model.DeliveryConfirmed
	if !store.Insert(m) {
		e.mu.Unlock()
		return
	}
	e.touchConversationLocked(m)
	if m.ConversationID != e.activeID && m.AuthorID != e.actor.ID {
		for i := range e.conversations {
			if e.conversations[i].ID == m.ConversationID {
				e.conversations[i].UnreadCount++
			}
		}
	}
	e.mu.Unlock()
	e.emit(Event{Kind: EventMessages, ConversationID: m.ConversationID})
}

// touchConversationLocked refreshes a directory row from a new message.
func (e *Engine) touchConversationLocked(m *model.Message) {
	preview := m.Body
	if preview == "" && len(m.Attachments) > 0 {
		preview = m.Attachments[0].Filename
	}
	// Truncate on rune boundaries; byte slicing can split a multi-byte
	// sequence.
	if r := []rune(preview); len(r) > previewMaxLength {
		preview = string(r[:previewMaxLength])
	}
	for i := range e.conversations {
		if e.conversations[i].ID != m.ConversationID {
			continue
		}
		e.conversations[i].LastMessagePreview = preview
		if m.CreatedAt.After(e.conversations[i].LastActivityAt) {
			e.conversations[i].LastActivityAt = m.CreatedAt
		}
	}
}

func (e *Engine) isMemberLocked(conversationID string) bool {
	for i := range e.conversations {
		if e.conversations[i].ID == conversationID {
			return e.conversations[i].IsMember
		}
	}
	return false
}

// contextWindowLocked renders the conversation tail as prompt context.
func (e *Engine) contextWindowLocked(conversationID string) string {
	st, ok := e.stores[conversationID]
	if !ok {
		return ""
	}
	msgs := st.Messages()
	if len(msgs) > contextWindow {
		msgs = msgs[len(msgs)-contextWindow:]
	}
	var b strings.Builder
	for _, m := range msgs {
		name := m.AuthorName
		if name == "" {
			name = m.AuthorID
		}
		b.WriteString(name)
		b.WriteString(": ")
		b.WriteString(m.Body)
		b.WriteString("\n")
	}
	return b.String()
}

func (e *Engine) emit(ev Event) {
	select {
	case e.events <- ev:
	default:
	}
}

func localAttachments(handles []*attach.Handle) []model.Attachment {
	out := make([]model.Attachment, 0, len(handles))
	for _, h := range handles {
		out = append(out, model.Attachment{
			ID:        h.ID,
			Filename:  h.File.Name,
			Mime:      h.File.Mime,
			SizeBytes: h.File.Size,
			Preview:   h.Preview,
		})
	}
	return out
}
