// internal/protocol/frames.go
package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/chainwars-gg/roomsync/internal/models"
)

// Lobby frame types pushed by the server. Anything not listed here and not
// carrying a game scope is unrecognized and gets dropped by the dispatcher.
const (
	TypeLobbyBootstrap     = "lobbyBootstrap"
	TypeLobbyStatusChanged = "lobbyStatusChanged"
	TypeStartCountdown     = "startCountdown"
	TypePlayerJoined       = "playerJoined"
	TypePlayerLeft         = "playerLeft"
	TypePlayerKicked       = "playerKicked"
	TypePlayerUpdated      = "playerUpdated"
	TypeJoinRequests       = "joinRequestsUpdated"
	TypeJoinRequestStatus  = "joinRequestStatus"
	TypeMessageReceived    = "messageReceived"
	TypeReactionAdded      = "reactionAdded"
	TypeReactionRemoved    = "reactionRemoved"
	TypeGameStarted        = "gameStarted"
	TypeGameStartFailed    = "gameStartFailed"
	TypeFinalStanding      = "finalStanding"
	TypeGameOver           = "gameOver"
	TypeGameState          = "gameState"
	TypePong               = "pong"
	TypeError              = "error"
)

// Envelope is one decoded inbound frame. A non-empty Game field marks the
// frame as game-scoped; everything else is classified by Type. Raw keeps the
// full payload so type-specific structs can be decoded lazily.
type Envelope struct {
	Type string          `json:"type"`
	Game string          `json:"game"`
	Raw  json.RawMessage `json:"-"`
}

// IsGameFrame reports whether the frame belongs to the active game plugin.
func (e Envelope) IsGameFrame() bool { return e.Game != "" }

// Decode parses an inbound payload into an Envelope. The payload must be a
// JSON object; anything else is a decode error the caller logs and drops.
func Decode(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("malformed frame: %w", err)
	}
	if env.Type == "" && env.Game == "" {
		return Envelope{}, fmt.Errorf("frame carries neither type nor game scope")
	}
	env.Raw = append(json.RawMessage(nil), data...)
	return env, nil
}

// GameFrame is the view of a game-scoped frame handed to a plugin reducer.
// The engine never inspects anything beyond the scope key; Raw is the whole
// frame for the plugin to pick apart.
type GameFrame struct {
	Game string
	Type string
	Raw  json.RawMessage
}

// Payload structs for the lobby-scope frames. Fields the server omits stay
// zero; pointer fields let the store tell omitted from explicit zero.

type BootstrapPayload struct {
	LobbyInfo    models.Lobby         `json:"lobbyInfo"`
	Players      []models.PlayerState `json:"players"`
	JoinRequests []models.JoinRequest `json:"joinRequests"`
	ChatHistory  []models.ChatMessage `json:"chatHistory"`
}

type StatusChangedPayload struct {
	Status           models.LobbyStatus `json:"status"`
	ParticipantCount *int               `json:"participantCount,omitempty"`
	CurrentAmount    *string            `json:"currentAmount,omitempty"`
}

type CountdownPayload struct {
	SecondsRemaining int `json:"secondsRemaining"`
}

type PlayerPayload struct {
	Player models.PlayerState `json:"player"`
}

type PlayersPayload struct {
	Players []models.PlayerState `json:"players"`
}

type JoinRequestsPayload struct {
	JoinRequests []models.JoinRequest `json:"joinRequests"`
}

type JoinRequestStatusPayload struct {
	UserID   string `json:"userId"`
	Accepted bool   `json:"accepted"`
}

type MessagePayload struct {
	Message models.ChatMessage `json:"message"`
}

type ReactionPayload struct {
	MessageID string `json:"messageId"`
	UserID    string `json:"userId"`
	Emoji     string `json:"emoji"`
}

type GameStartFailedPayload struct {
	Reason string `json:"reason"`
}

type FinalStandingPayload struct {
	Standings []models.Standing `json:"standings"`
}

type GameOverPayload struct {
	Rank      int    `json:"rank"`
	Prize     string `json:"prize,omitempty"`
	WarsPoint int    `json:"warsPoint,omitempty"`
}

type GameStatePayload struct {
	GameState json.RawMessage `json:"gameState"`
}

type PongPayload struct {
	Ts        int64 `json:"ts,omitempty"`
	ServerTs  int64 `json:"serverTs,omitempty"`
	ElapsedMs int64 `json:"elapsedMs,omitempty"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// DecodePayload unmarshals the envelope's raw frame into the given payload
// struct.
func (e Envelope) DecodePayload(v interface{}) error {
	if err := json.Unmarshal(e.Raw, v); err != nil {
		return fmt.Errorf("decode %s payload: %w", e.Type, err)
	}
	return nil
}
