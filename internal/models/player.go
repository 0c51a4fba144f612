// internal/models/player.go
package models

import "time"

// JoinState tracks a participant's approval state within one lobby.
type JoinState string

const (
	JoinPending  JoinState = "pending"
	JoinAccepted JoinState = "accepted"
	JoinRejected JoinState = "rejected"
)

// StaleThreshold is how long a player may go without a heartbeat before the
// client renders them as inactive. The server never pushes this as a flag.
const StaleThreshold = 30 * time.Second

// PlayerState is the per-user record scoped to one lobby. User ids are
// opaque strings (wallet-derived on the real backend).
type PlayerState struct {
	UserID      string    `json:"userId"`
	State       JoinState `json:"state"`
	IsCreator   bool      `json:"isCreator"`
	Wallet      string    `json:"wallet,omitempty"`
	DisplayName string    `json:"displayName,omitempty"`
	TrustRating float64   `json:"trustRating,omitempty"`

	LastPing time.Time `json:"lastPing"`
	TxID     string    `json:"txId,omitempty"`

	Rank  int    `json:"rank,omitempty"`
	Prize string `json:"prize,omitempty"`
}

// Stale reports whether the player has missed heartbeats long enough to be
// shown as inactive, derived purely from LastPing.
func (p PlayerState) Stale(now time.Time) bool {
	if p.LastPing.IsZero() {
		return false
	}
	return now.Sub(p.LastPing) > StaleThreshold
}

// JoinRequest is a pending-approval record. It only exists while the state
// is pending; acceptance is expected to be followed by a PlayerState.
type JoinRequest struct {
	UserID      string    `json:"userId"`
	Wallet      string    `json:"wallet,omitempty"`
	DisplayName string    `json:"displayName,omitempty"`
	State       JoinState `json:"state"`
}

// Standing is one entry of a final-standings frame.
type Standing struct {
	UserID string `json:"userId"`
	Rank   int    `json:"rank"`
	Prize  string `json:"prize,omitempty"`
}
