package models

import "slices"

// ChannelRef identifies a channel the user asked to join.
type ChannelRef struct {
	URL  string `json:"url" validate:"required"`
	Name string `json:"name,omitempty"`
}

// ChannelHandle is the backend's handle on a joined channel.
type ChannelHandle struct {
	URL       string `json:"url"`
	Name      string `json:"name"`
	SessionID string `json:"-"`
}

func (h *ChannelHandle) Valid() bool {
	return h != nil && h.URL != ""
}

// OperatorSet holds the user ids with moderation rights, captured at join.
type OperatorSet map[string]struct{}

func NewOperatorSet(userIDs ...string) OperatorSet {
	set := make(OperatorSet, len(userIDs))
	for _, id := range userIDs {
		set[id] = struct{}{}
	}
	return set
}

func (s OperatorSet) Contains(userID string) bool {
	_, ok := s[userID]
	return ok
}

func (s OperatorSet) List() []string {
	out := make([]string, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}
