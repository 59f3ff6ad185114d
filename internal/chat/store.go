package chat

import (
	"github.com/helpchat/internal/model"
)

// Store holds the ordered message sequence for one conversation:
// CreatedAt ascending, ties broken by insertion order. It is not safe
// for concurrent use; the engine serializes all access under its lock.
type Store struct {
	conversationID string
	msgs           []*model.Message
	ids            map[string]struct{}
}

func NewStore(conversationID string) *Store {
	return &Store{
		conversationID: conversationID,
		ids:            make(map[string]struct{}),
	}
}

func (s *Store) ConversationID() string { return s.conversationID }

func (s *Store) Len() int { return len(s.msgs) }

func (s *Store) Has(id string) bool {
	_, ok := s.ids[id]
	return ok
}

// Insert places m into the ordered sequence. A message whose id is
// already present is dropped, which makes channel echoes of
// directly-confirmed sends idempotent. Reports whether m was added.
func (s *Store) Insert(m *model.Message) bool {
	if m.ID == "" {
		return false
	}
	if _, ok := s.ids[m.ID]; ok {
		return false
	}
	// Position after the last entry not later than m, preserving
	// insertion order among equal timestamps.
	pos := len(s.msgs)
	for pos > 0 && s.msgs[pos-1].CreatedAt.After(m.CreatedAt) {
		pos--
	}
	s.msgs = append(s.msgs, nil)
	copy(s.msgs[pos+1:], s.msgs[pos:])
	s.msgs[pos] = m
	s.ids[m.ID] = struct{}{}
	return true
}

// Replace swaps the entry with id oldID for m in place. The confirmed
// message keeps the pending entry's position; it is not re-sorted to
// the end. Reports whether oldID was found.
func (s *Store) Replace(oldID string, m *model.Message) bool {
	for i, cur := range s.msgs {
		if cur.ID == oldID {
			s.msgs[i] = m
			delete(s.ids, oldID)
			s.ids[m.ID] = struct{}{}
			return true
		}
	}
	return false
}

// Remove deletes the entry with the given id. Reports whether it existed.
func (s *Store) Remove(id string) bool {
	for i, cur := range s.msgs {
		if cur.ID == id {
			s.msgs = append(s.msgs[:i], s.msgs[i+1:]...)
			delete(s.ids, id)
			return true
		}
	}
	return false
}

// PendingCount returns the number of entries awaiting reconciliation.
func (s *Store) PendingCount() int {
	n := 0
	for _, m := range s.msgs {
		if m.Delivery == model.DeliveryPending {
			n++
		}
	}
	return n
}

// Messages returns a copy of the ordered sequence.
func (s *Store) Messages() []*model.Message {
	out := make([]*model.Message, len(s.msgs))
	copy(out, s.msgs)
	return out
}

// MergeHistory inserts fetched history, skipping ids already present
// (e.g. pending sends or messages that raced in via the channel).
func (s *Store) MergeHistory(history []model.Message) {
	for i := range history {
		m := history[i]
		if m.Delivery == "" {
			m.Delivery = model.DeliveryConfirmed
		}
		if m.ConversationID == "" {
			m.ConversationID = s.conversationID
		}
		s.Insert(&m)
	}
}
