package chat

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/helpchat/internal/logger"
	"github.com/helpchat/internal/model"
)

// Refresh reloads the conversation list for the current tab/query,
// resolves membership per conversation and applies the surface's
// listing policy. Auto-selects the first eligible conversation when
// nothing is selected yet.
func (e *Engine) Refresh(ctx context.Context) error {
	e.mu.Lock()
	tab, query := e.tab, e.query
	e.mu.Unlock()

	list, err := e.api.ListConversations(ctx, model.ListFilter{Status: tab, Query: query})
	if err != nil {
		return fmt.Errorf("refresh conversations: %w", err)
	}

	// Membership resolution issues one detail fetch per conversation;
	// these run concurrently and are joined before filtering.
	details := make([]*model.ConversationDetail, len(list))
	var wg sync.WaitGroup
	for i := range list {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			d, err := e.api.Detail(ctx, list[i].ID)
			if err != nil {
				logger.Errorf("directory: detail conv=%s: %v", list[i].ID, err)
				return
			}
			details[i] = d
		}(i)
	}
	wg.Wait()

	eligible := make([]model.Conversation, 0, len(list))
	for i, c := range list {
		if d := details[i]; d != nil {
			c.Members = d.Members
			c.IsMember, c.MembershipKnown = resolveMembership(d, e.actor.ID)
		} else {
			c.IsMember, c.MembershipKnown = false, false
		}
		if !matchesFilter(c, tab, query) {
			continue
		}
		if !c.IsMember && !e.surface.ListUnjoined {
			continue
		}
		eligible = append(eligible, c)
	}

	e.mu.Lock()
	e.conversations = eligible
	autoSelect := e.activeID == "" && len(eligible) > 0
	var firstID string
	if autoSelect {
		firstID = eligible[0].ID
	}
	e.mu.Unlock()
	e.emit(Event{Kind: EventConversations})

	if autoSelect {
		if err := e.Select(ctx, firstID); err != nil {
			return fmt.Errorf("refresh auto-select: %w", err)
		}
	}
	return nil
}

// SetStatusTab switches the status tab and reloads immediately.
func (e *Engine) SetStatusTab(tab model.ConversationStatus) {
	e.mu.Lock()
	changed := e.tab != tab
	e.tab = tab
	e.mu.Unlock()
	if changed {
		go e.refreshAsync()
	}
}

// SetQuery updates the free-text query; the reload is debounced so a
// typing burst causes one fetch.
func (e *Engine) SetQuery(query string) {
	e.mu.Lock()
	e.query = query
	if e.debounce != nil {
		e.debounce.Stop()
	}
	e.debounce = time.AfterFunc(e.debounceDelay, e.refreshAsync)
	e.mu.Unlock()
}

// ApplyFilter sets both filters at once and reloads synchronously.
// HTTP surfaces use this; the debounced SetQuery is for interactive
// keystroke streams.
func (e *Engine) ApplyFilter(ctx context.Context, tab model.ConversationStatus, query string) error {
	e.mu.Lock()
	if e.debounce != nil {
		e.debounce.Stop()
		e.debounce = nil
	}
	e.tab = tab
	e.query = query
	e.mu.Unlock()
	return e.Refresh(ctx)
}

func (e *Engine) refreshAsync() {
	ctx, cancel := context.WithTimeout(e.ctx, 15*time.Second)
	defer cancel()
	if err := e.Refresh(ctx); err != nil && ctx.Err() == nil {
		logger.Errorf("directory: refresh: %v", err)
		e.emit(Event{Kind: EventNotice, Notice: "failed to refresh conversations"})
	}
}

// Join makes the actor a member of the conversation and updates the
// directory row so the send gate opens without a full reload.
func (e *Engine) Join(ctx context.Context, conversationID string) error {
	if err := e.api.Join(ctx, conversationID); err != nil {
		return fmt.Errorf("join %s: %w", conversationID, err)
	}
	e.mu.Lock()
	for i := range e.conversations {
		if e.conversations[i].ID == conversationID {
			e.conversations[i].IsMember = true
			e.conversations[i].MembershipKnown = true
		}
	}
	e.mu.Unlock()
	e.emit(Event{Kind: EventConversations})
	return nil
}

// resolveMembership derives the actor's membership from a detail
// response. An explicit is_member wins; otherwise presence in the
// member list decides, and an empty list leaves membership unknown.
// Unknown membership never grants access.
func resolveMembership(d *model.ConversationDetail, actorID string) (isMember, known bool) {
	if d.IsMember != nil {
		return *d.IsMember, true
	}
	if len(d.Members) == 0 {
		return false, false
	}
	for _, m := range d.Members {
		if m.ID == actorID {
			return true, true
		}
	}
	return false, true
}

// matchesFilter applies the status tab and the case-insensitive
// free-text query over display name, member emails and the
// last-message preview. Purely client-side.
func matchesFilter(c model.Conversation, tab model.ConversationStatus, query string) bool {
	if tab != "" && c.Status != tab {
		return false
	}
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return true
	}
	if strings.Contains(strings.ToLower(c.DisplayName), q) {
		return true
	}
	if strings.Contains(strings.ToLower(c.LastMessagePreview), q) {
		return true
	}
	for _, m := range c.Members {
		if strings.Contains(strings.ToLower(m.Email), q) {
			return true
		}
	}
	return false
}
