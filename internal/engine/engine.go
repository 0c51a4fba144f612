// internal/engine/engine.go
package engine

import (
	"context"
	"net/url"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/chainwars-gg/roomsync/internal/auth"
	"github.com/chainwars-gg/roomsync/internal/conn"
	"github.com/chainwars-gg/roomsync/internal/journal"
	"github.com/chainwars-gg/roomsync/internal/pending"
	"github.com/chainwars-gg/roomsync/internal/plugin"
	"github.com/chainwars-gg/roomsync/internal/protocol"
	"github.com/chainwars-gg/roomsync/internal/store"
)

// Config wires one Engine to one room.
type Config struct {
	// ServerURL is the websocket base, e.g. wss://rooms.example.com.
	ServerURL string
	// RoomPath addresses the room; one connection per room.
	RoomPath string
	// Token is the opaque auth token attached as a query parameter at
	// connect time. The engine only reads its subject to learn its own
	// user id.
	Token string

	Registry *plugin.Registry
	Logger   *logrus.Logger

	// Journal is an optional frame tap; nil disables it.
	Journal *journal.Journal

	// OnProtocolError surfaces server error{code,message} frames, the only
	// error class meant to reach end-user messaging.
	OnProtocolError func(code, message string)

	// Dial overrides the transport dialer (tests).
	Dial conn.Dialer
	// Tuning knobs forwarded to the connection manager; zero picks defaults.
	Tuning conn.Config
}

// Engine is the room synchronization engine: it owns the room's connection,
// replays server frames into the lobby store and the game state slot, and
// tracks in-flight commands. One instance per room mount; Close then a fresh
// New is the only way to resume after exhausted reconnects.
type Engine struct {
	logger   *logrus.Logger
	manager  *conn.Manager
	store    *store.Store
	tracker  *pending.Tracker
	registry *plugin.Registry
	slot     *plugin.Slot
	journal  *journal.Journal

	roomPath string
	userID   string

	onProtocolError func(code, message string)
}

// New builds an engine. It does not connect.
func New(cfg Config) *Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = logrus.New()
	}
	registry := cfg.Registry
	if registry == nil {
		registry = plugin.NewRegistry()
	}

	e := &Engine{
		logger:          logger,
		store:           store.New(logger),
		tracker:         pending.NewTracker(logger),
		registry:        registry,
		slot:            plugin.NewSlot(logger),
		journal:         cfg.Journal,
		roomPath:        cfg.RoomPath,
		onProtocolError: cfg.OnProtocolError,
	}

	if cfg.Token != "" {
		uid, err := auth.UserIDFromToken(cfg.Token)
		if err != nil {
			logger.Warnf("room %s: %v; self-attribution disabled", cfg.RoomPath, err)
		} else {
			e.userID = uid
		}
	}

	mcfg := cfg.Tuning
	mcfg.URL = roomURL(cfg.ServerURL, cfg.RoomPath, cfg.Token)
	mcfg.Dial = cfg.Dial
	mcfg.Logger = logger
	mcfg.OnFrame = e.dispatch
	mcfg.OnState = e.onConnState
	e.manager = conn.NewManager(mcfg)
	return e
}

// roomURL composes the per-room connection URL with the optional auth token
// as a query parameter.
func roomURL(base, roomPath, token string) string {
	u := strings.TrimSuffix(base, "/") + "/room/ws/" + strings.TrimPrefix(roomPath, "/")
	if token != "" {
		u += "?token=" + url.QueryEscape(token)
	}
	return u
}

// Connect dials the room and blocks until the transport is open or fails.
func (e *Engine) Connect(ctx context.Context) error {
	return e.manager.Connect(ctx)
}

// Close tears the engine down: connection manager (timers first, then
// transport, then handlers), pending flags, game slot, store. A remounted
// room observes no residue of this instance.
func (e *Engine) Close() {
	e.manager.Close()
	e.tracker.Clear()
	e.slot.Activate(nil)
	e.store.Reset()
}

// Store exposes the read-only lobby replica for UI subscriptions.
func (e *Engine) Store() *store.Store { return e.store }

// Pending exposes the in-flight command tracker.
func (e *Engine) Pending() *pending.Tracker { return e.tracker }

// GameSlot exposes the active game's reducer output.
func (e *Engine) GameSlot() *plugin.Slot { return e.slot }

// UserID is the authenticated user id parsed from the token, if any.
func (e *Engine) UserID() string { return e.userID }

// onConnState mirrors manager transitions into the store's connection topic.
// Any teardown clears pending flags fail-open: the server can no longer
// answer them.
func (e *Engine) onConnState(s conn.State, err error) {
	switch s {
	case conn.StateConnected:
		e.store.SetConnection(store.ConnConnected, nil)
	case conn.StateConnecting:
		e.store.SetConnection(store.ConnConnecting, nil)
	default:
		e.tracker.Clear()
		e.store.SetConnection(store.ConnDisconnected, err)
	}
}

// send marks the command pending, journals it and fires it at the server.
func (e *Engine) send(key string, frame []byte) {
	if key != "" {
		e.tracker.Mark(key)
	}
	e.journal.Record(journal.DirOutbound, outboundType(frame), frame)
	e.manager.Send(frame)
}

// Command surface. Every command with externally visible latency marks a
// pending key that a success frame, a mapped error frame or teardown clears.

func (e *Engine) Join()  { e.send("join", protocol.Join()) }
func (e *Engine) Leave() { e.send("leave", protocol.Leave()) }

func (e *Engine) UpdateLobbyStatus(status string) {
	e.send("updateLobbyStatus", protocol.UpdateLobbyStatus(status))
}

func (e *Engine) RequestJoin() { e.send("joinRequest", protocol.JoinRequest()) }

func (e *Engine) ApproveJoin(userID string) {
	e.send(pending.Key("approveJoin", userID), protocol.ApproveJoin(userID))
}

func (e *Engine) RejectJoin(userID string) {
	e.send(pending.Key("rejectJoin", userID), protocol.RejectJoin(userID))
}

func (e *Engine) Kick(userID string) {
	e.send(pending.Key("kick", userID), protocol.Kick(userID))
}

func (e *Engine) SendMessage(content, replyTo string) {
	e.send("sendMessage", protocol.SendMessage(content, replyTo))
}

func (e *Engine) AddReaction(messageID, emoji string) {
	e.send(pending.Key("addReaction", messageID, emoji), protocol.AddReaction(messageID, emoji))
}

func (e *Engine) RemoveReaction(messageID, emoji string) {
	e.send(pending.Key("removeReaction", messageID, emoji), protocol.RemoveReaction(messageID, emoji))
}

// SendGameCommand forwards a plugin command under the game scope. Game
// commands carry no pending key; plugins own their own acknowledgement
// semantics through reduced state.
func (e *Engine) SendGameCommand(msgType string, payload interface{}) {
	p := e.slot.Active()
	if p == nil {
		e.logger.Warnf("room %s: game command %q dropped, no active game", e.roomPath, msgType)
		return
	}
	e.send("", protocol.GameCommand(p.Path(), msgType, payload))
}

// outboundType extracts the type discriminator for journal records without
// reparsing the whole command.
func outboundType(frame []byte) string {
	env, err := protocol.Decode(frame)
	if err != nil {
		return "unknown"
	}
	if env.Type != "" {
		return env.Type
	}
	return "game"
}
