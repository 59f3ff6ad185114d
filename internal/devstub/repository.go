// Package devstub is a self-contained helpdesk backend for local
// development: it serves the same REST and realtime contract the
// gateway's clients expect, backed by PostgreSQL.
package devstub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/helpchat/internal/logger"
	"github.com/helpchat/internal/model"
)

var ErrNotFound = errors.New("not found")

type ConversationRepository struct {
	pool *pgxpool.Pool
}

func NewConversationRepository(pool *pgxpool.Pool) *ConversationRepository {
	return &ConversationRepository{pool: pool}
}

// List returns conversations matching the optional status and query
// filters, most recently active first.
func (r *ConversationRepository) List(ctx context.Context, status, query string) ([]model.Conversation, error) {
	defer logger.DeferLogDuration("conv.List", time.Now())()
	rows, err := r.pool.Query(ctx,
		`SELECT id, display_name, status, priority, last_message_preview, last_activity_at
		 FROM conversations
		 WHERE ($1 = '' OR status = $1)
		   AND ($2 = '' OR display_name ILIKE '%' || $2 || '%'
		        OR customer_email ILIKE '%' || $2 || '%'
		        OR last_message_preview ILIKE '%' || $2 || '%')
		 ORDER BY last_activity_at DESC`, status, query,
	)
	if err != nil {
		return nil, fmt.Errorf("convRepo.List query: %w", err)
	}
	defer rows.Close()

	var out []model.Conversation
	for rows.Next() {
		var c model.Conversation
		if err := rows.Scan(&c.ID, &c.DisplayName, &c.Status, &c.Priority, &c.LastMessagePreview, &c.LastActivityAt); err != nil {
			return nil, fmt.Errorf("convRepo.List scan: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("convRepo.List rows: %w", err)
	}
	return out, nil
}

// GetDetail returns one conversation with its member list, customer
// profile and message stats.
func (r *ConversationRepository) GetDetail(ctx context.Context, id string) (*model.ConversationDetail, error) {
	defer logger.DeferLogDuration("conv.GetDetail", time.Now())()
	d := &model.ConversationDetail{}
	customer := &model.CustomerProfile{}
	err := r.pool.QueryRow(ctx,
		`SELECT customer_name, customer_email, customer_company
		 FROM conversations WHERE id = $1`, id,
	).Scan(&customer.Name, &customer.Email, &customer.Company)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("convRepo.GetDetail: %w", err)
	}
	d.Customer = customer

	rows, err := r.pool.Query(ctx,
		`SELECT user_id, name, email, role FROM conversation_members
		 WHERE conversation_id = $1 ORDER BY joined_at`, id,
	)
	if err != nil {
		return nil, fmt.Errorf("convRepo.GetDetail members: %w", err)
	}
	defer rows.Close()
	d.Members = []model.Member{}
	for rows.Next() {
		var m model.Member
		if err := rows.Scan(&m.ID, &m.Name, &m.Email, &m.Role); err != nil {
			return nil, fmt.Errorf("convRepo.GetDetail members scan: %w", err)
		}
		m.IsMember = true
		d.Members = append(d.Members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("convRepo.GetDetail members rows: %w", err)
	}

	stats := &model.ConversationStats{}
	err = r.pool.QueryRow(ctx,
		`SELECT count(*), min(created_at) FILTER (WHERE author_role = 'agent')
		 FROM messages WHERE conversation_id = $1`, id,
	).Scan(&stats.MessageCount, &stats.FirstReplyAt)
	if err != nil {
		return nil, fmt.Errorf("convRepo.GetDetail stats: %w", err)
	}
	d.Stats = stats
	return d, nil
}

// AddMember is idempotent; joining twice is not an error.
func (r *ConversationRepository) AddMember(ctx context.Context, conversationID string, m model.Member) error {
	defer logger.DeferLogDuration("conv.AddMember", time.Now())()
	tag, err := r.pool.Exec(ctx,
		`INSERT INTO conversation_members (conversation_id, user_id, name, email, role)
		 SELECT id, $2, $3, $4, $5 FROM conversations WHERE id = $1
		 ON CONFLICT (conversation_id, user_id) DO NOTHING`,
		conversationID, m.ID, m.Name, m.Email, m.Role,
	)
	if err != nil {
		return fmt.Errorf("convRepo.AddMember: %w", err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := r.pool.QueryRow(ctx, `SELECT true FROM conversations WHERE id = $1`, conversationID).Scan(&exists); errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
	}
	return nil
}

// IsMember reports whether the user belongs to the conversation.
func (r *ConversationRepository) IsMember(ctx context.Context, conversationID, userID string) (bool, error) {
	var ok bool
	err := r.pool.QueryRow(ctx,
		`SELECT true FROM conversation_members WHERE conversation_id = $1 AND user_id = $2`,
		conversationID, userID,
	).Scan(&ok)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("convRepo.IsMember: %w", err)
	}
	return ok, nil
}

// TouchActivity bumps the directory row after a new message.
func (r *ConversationRepository) TouchActivity(ctx context.Context, conversationID, preview string, at time.Time) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE conversations SET last_message_preview = $2, last_activity_at = $3 WHERE id = $1`,
		conversationID, preview, at,
	)
	if err != nil {
		return fmt.Errorf("convRepo.TouchActivity: %w", err)
	}
	return nil
}

type MessageRepository struct {
	pool *pgxpool.Pool
}

func NewMessageRepository(pool *pgxpool.Pool) *MessageRepository {
	return &MessageRepository{pool: pool}
}

// History returns a conversation's messages in chronological order.
func (r *MessageRepository) History(ctx context.Context, conversationID string) ([]model.Message, error) {
	defer logger.DeferLogDuration("msg.History", time.Now())()
	rows, err := r.pool.Query(ctx,
		`SELECT id, conversation_id, author_id, author_name, author_role, body, attachments, created_at
		 FROM messages WHERE conversation_id = $1 ORDER BY created_at`, conversationID,
	)
	if err != nil {
		return nil, fmt.Errorf("msgRepo.History query: %w", err)
	}
	defer rows.Close()

	var out []model.Message
	for rows.Next() {
		var m model.Message
		var rawAttach []byte
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.AuthorID, &m.AuthorName, &m.AuthorRole, &m.Body, &rawAttach, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("msgRepo.History scan: %w", err)
		}
		if len(rawAttach) > 0 {
			if err := json.Unmarshal(rawAttach, &m.Attachments); err != nil {
				return nil, fmt.Errorf("msgRepo.History attachments: %w", err)
			}
		}
		m.Delivery = model.DeliveryConfirmed
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("msgRepo.History rows: %w", err)
	}
	return out, nil
}

// Create persists a message. Attachments go in as JSONB.
func (r *MessageRepository) Create(ctx context.Context, m *model.Message) error {
	defer logger.DeferLogDuration("msg.Create", time.Now())()
	rawAttach, err := json.Marshal(m.Attachments)
	if err != nil {
		return fmt.Errorf("msgRepo.Create attachments: %w", err)
	}
	if m.Attachments == nil {
		rawAttach = []byte("[]")
	}
	_, err = r.pool.Exec(ctx,
		`INSERT INTO messages (id, conversation_id, author_id, author_name, author_role, body, attachments, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		m.ID, m.ConversationID, m.AuthorID, m.AuthorName, m.AuthorRole, m.Body, rawAttach, m.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("msgRepo.Create: %w", err)
	}
	return nil
}
