// internal/models/lobby.go
package models

import "time"

// LobbyStatus is the server-declared lifecycle stage of a room.
type LobbyStatus string

const (
	StatusWaiting    LobbyStatus = "waiting"
	StatusStarting   LobbyStatus = "starting"
	StatusInProgress LobbyStatus = "in_progress"
	StatusFinished   LobbyStatus = "finished"
)

// statusOrder gives each status its position in the forward-only lifecycle.
var statusOrder = map[LobbyStatus]int{
	StatusWaiting:    0,
	StatusStarting:   1,
	StatusInProgress: 2,
	StatusFinished:   3,
}

// ForwardTransition reports whether moving from 'from' to 'to' follows the
// normal lifecycle order. The one sanctioned backward move is the creator
// aborting a countdown: starting -> waiting.
func ForwardTransition(from, to LobbyStatus) bool {
	if from == StatusStarting && to == StatusWaiting {
		return true
	}
	fo, ok1 := statusOrder[from]
	to2, ok2 := statusOrder[to]
	if !ok1 || !ok2 {
		return false
	}
	return to2 >= fo
}

// Lobby is the client replica of one room's lobby record. Every field is
// written verbatim from server frames; the engine never derives transitions.
// The economic fields (amounts, token, vault) are opaque pass-through values
// owned by the escrow layer.
type Lobby struct {
	ID          string `json:"lobbyId"`
	Path        string `json:"path"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`

	GamePath  string `json:"gamePath"`
	CreatorID string `json:"creatorId"`

	Amount        string `json:"amount"`
	CurrentAmount string `json:"currentAmount"`
	TokenSymbol   string `json:"tokenSymbol,omitempty"`
	TokenAddress  string `json:"tokenAddress,omitempty"`
	VaultAddress  string `json:"vaultAddress,omitempty"`

	Private bool        `json:"private"`
	Status  LobbyStatus `json:"status"`

	ParticipantCount int `json:"participantCount"`
	MaxParticipants  int `json:"maxParticipants,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt,omitempty"`
}
