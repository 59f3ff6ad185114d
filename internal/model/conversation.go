package model

import "time"

type ConversationStatus string

const (
	StatusActive   ConversationStatus = "active"
	StatusWaiting  ConversationStatus = "waiting"
	StatusResolved ConversationStatus = "resolved"
)

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

type Role string

const (
	RoleClient Role = "client"
	RoleAgent  Role = "agent"
	RoleAdmin  Role = "admin"
)

// Member is a participant of one conversation. IsMember is a
// per-conversation, per-actor fact, not a global property of the user.
type Member struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email,omitempty"`
	Role     Role   `json:"role"`
	IsMember bool   `json:"is_member"`
	Online   bool   `json:"online"`
}

type Conversation struct {
	ID                 string             `json:"id"`
	DisplayName        string             `json:"display_name"`
	Status             ConversationStatus `json:"status"`
	Priority           Priority           `json:"priority"`
	LastMessagePreview string             `json:"last_message_preview,omitempty"`
	LastActivityAt     time.Time          `json:"last_activity_at"`
	UnreadCount        int                `json:"unread_count"`
	Members            []Member           `json:"members,omitempty"`

	// IsMember is the resolved membership of the current actor.
	// MembershipKnown is false when the detail fetch could not
	// establish it; unknown membership never grants send permission.
	IsMember        bool `json:"is_member"`
	MembershipKnown bool `json:"membership_known"`
}

// CustomerProfile is the customer card attached to a conversation detail.
type CustomerProfile struct {
	Name    string `json:"name,omitempty"`
	Email   string `json:"email,omitempty"`
	Company string `json:"company,omitempty"`
}

// ConversationStats are the per-conversation counters shown in the sidebar.
type ConversationStats struct {
	MessageCount int        `json:"message_count"`
	FirstReplyAt *time.Time `json:"first_reply_at,omitempty"`
}

// ConversationDetail is the per-conversation detail fetched during
// membership resolution.
type ConversationDetail struct {
	Members  []Member           `json:"members"`
	IsMember *bool              `json:"is_member,omitempty"`
	Customer *CustomerProfile   `json:"customer,omitempty"`
	Stats    *ConversationStats `json:"stats,omitempty"`
}

// ListFilter selects conversations by status tab and free-text query.
type ListFilter struct {
	Status ConversationStatus
	Query  string
}
