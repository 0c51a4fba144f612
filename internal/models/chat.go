// internal/models/chat.go
package models

import "time"

// Reaction is one (emoji, user) pair on a chat message. Reactions are a set,
// not a count: the same user reacting twice with the same emoji is one entry.
type Reaction struct {
	Emoji  string `json:"emoji"`
	UserID string `json:"userId"`
}

// ChatMessage is an append-only chat entry. Reactions are the only mutable
// sub-field after receipt.
type ChatMessage struct {
	MessageID string     `json:"messageId"`
	LobbyID   string     `json:"lobbyId,omitempty"`
	UserID    string     `json:"userId"`
	Content   string     `json:"content"`
	ReplyTo   string     `json:"replyTo,omitempty"`
	Reactions []Reaction `json:"reactions"`
	CreatedAt time.Time  `json:"createdAt"`
}

// HasReaction reports whether the (userID, emoji) pair is already present.
func (m *ChatMessage) HasReaction(userID, emoji string) bool {
	for _, r := range m.Reactions {
		if r.UserID == userID && r.Emoji == emoji {
			return true
		}
	}
	return false
}

// AddReaction appends the pair if absent. Returns true if the message changed.
func (m *ChatMessage) AddReaction(userID, emoji string) bool {
	if m.HasReaction(userID, emoji) {
		return false
	}
	m.Reactions = append(m.Reactions, Reaction{Emoji: emoji, UserID: userID})
	return true
}

// RemoveReaction removes the pair if present. Returns true if the message changed.
func (m *ChatMessage) RemoveReaction(userID, emoji string) bool {
	for i, r := range m.Reactions {
		if r.UserID == userID && r.Emoji == emoji {
			m.Reactions = append(m.Reactions[:i], m.Reactions[i+1:]...)
			return true
		}
	}
	return false
}
