package model

// Suggestion is an ephemeral quick-reply candidate offered for
// one-click insertion into the compose box. The whole list is
// replaced on every regeneration.
type Suggestion struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}
