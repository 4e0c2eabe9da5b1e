package domain

import (
	"fmt"
	"strings"
)

// State is the moderation lifecycle of an ingested item. The three values are
// mutually exclusive; there is no way to be verified and banned at once.
type State string

const (
	StatePending  State = "pending"
	StateVerified State = "verified"
	StateBanned   State = "banned"
)

// States lists every valid moderation state.
var States = []State{StatePending, StateVerified, StateBanned}

// Valid reports whether s is one of the known states.
func (s State) Valid() bool {
	switch s {
	case StatePending, StateVerified, StateBanned:
		return true
	default:
		return false
	}
}

// ParseState converts user input such as "BANNED" into a State.
func ParseState(value string) (State, error) {
	state := State(strings.ToLower(strings.TrimSpace(value)))
	if !state.Valid() {
		return "", fmt.Errorf("unknown moderation state %q", value)
	}
	return state, nil
}

// NewItem carries everything the repository needs to create an item. New
// items always start in StatePending.
type NewItem struct {
	Digest      Digest
	Permalink   string
	SourceURL   string
	ContentType string
	Channel     string
}

// Item is the persisted record of an accepted, deduplicated blob.
type Item struct {
	ID          int64
	Digest      Digest
	Permalink   string
	SourceURL   string
	ContentType string
	Channel     string
	State       State
}

// PendingRef is the minimal projection the moderator needs for a re-check.
type PendingRef struct {
	ID        int64
	Permalink string
}

// Content is a fetched payload ready to be hashed and stored.
type Content struct {
	Bytes       []byte
	ContentType string
	// FinalURL differs from the requested URL when a wrapper page was resolved.
	FinalURL string
}
