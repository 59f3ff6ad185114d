package chat

import "errors"

var (
	// ErrNotMember blocks a send before any network call when the
	// actor is not a member of the active conversation.
	ErrNotMember = errors.New("chat: not a member of this conversation")

	// ErrEmptyCompose blocks a send with no body and no attachments.
	ErrEmptyCompose = errors.New("chat: empty message and no attachments")

	// ErrUnpersisted means the server accepted the send but returned
	// no message id; the message is treated as not persisted and the
	// optimistic insert is rolled back.
	ErrUnpersisted = errors.New("chat: server response missing message id")

	// ErrNoActiveConversation is returned by operations that require
	// a selected conversation.
	ErrNoActiveConversation = errors.New("chat: no active conversation")
)
