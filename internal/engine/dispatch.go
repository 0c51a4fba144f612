// internal/engine/dispatch.go
package engine

import (
	"time"

	"github.com/chainwars-gg/roomsync/internal/journal"
	"github.com/chainwars-gg/roomsync/internal/pending"
	"github.com/chainwars-gg/roomsync/internal/protocol"
)

// dispatch classifies one inbound payload and routes it. Runs on the read
// pump goroutine, so frames mutate state strictly in receipt order. A
// malformed frame is logged and dropped; the pump never dies on bad input.
func (e *Engine) dispatch(data []byte) {
	env, err := protocol.Decode(data)
	if err != nil {
		e.logger.Warnf("room %s: dropping frame: %v", e.roomPath, err)
		return
	}

	if env.IsGameFrame() {
		e.journal.Record(journal.DirInbound, "game", data)
		e.slot.Apply(protocol.GameFrame{Game: env.Game, Type: env.Type, Raw: env.Raw})
		return
	}

	e.journal.Record(journal.DirInbound, env.Type, data)

	switch env.Type {
	case protocol.TypeLobbyBootstrap:
		e.handleBootstrap(env)
	case protocol.TypeLobbyStatusChanged:
		var p protocol.StatusChangedPayload
		if err := env.DecodePayload(&p); err != nil {
			e.logger.Warnf("room %s: %v", e.roomPath, err)
			return
		}
		e.store.UpdateLobbyStatus(p.Status, p.ParticipantCount, p.CurrentAmount)
		e.tracker.Resolve("updateLobbyStatus")
	case protocol.TypeStartCountdown:
		var p protocol.CountdownPayload
		if err := env.DecodePayload(&p); err != nil {
			e.logger.Warnf("room %s: %v", e.roomPath, err)
			return
		}
		e.store.SetCountdown(&p.SecondsRemaining)
	case protocol.TypePlayerJoined:
		var p protocol.PlayerPayload
		if err := env.DecodePayload(&p); err != nil {
			e.logger.Warnf("room %s: %v", e.roomPath, err)
			return
		}
		if p.Player.LastPing.IsZero() {
			p.Player.LastPing = time.Now()
		}
		e.store.AddPlayer(p.Player)
		// Without a token the engine cannot attribute frames to itself, so
		// success frames resolve conservatively rather than leaving the UI
		// stuck loading.
		if e.userID == "" || p.Player.UserID == e.userID {
			e.tracker.Resolve("join")
		}
	case protocol.TypePlayerLeft:
		var p protocol.PlayerPayload
		if err := env.DecodePayload(&p); err != nil {
			e.logger.Warnf("room %s: %v", e.roomPath, err)
			return
		}
		e.store.RemovePlayer(p.Player.UserID)
		if e.userID == "" || p.Player.UserID == e.userID {
			e.tracker.Resolve("leave")
		}
	case protocol.TypePlayerKicked:
		var p protocol.PlayerPayload
		if err := env.DecodePayload(&p); err != nil {
			e.logger.Warnf("room %s: %v", e.roomPath, err)
			return
		}
		e.store.RemovePlayer(p.Player.UserID)
		e.tracker.Resolve(pending.Key("kick", p.Player.UserID))
	case protocol.TypePlayerUpdated:
		var p protocol.PlayersPayload
		if err := env.DecodePayload(&p); err != nil {
			e.logger.Warnf("room %s: %v", e.roomPath, err)
			return
		}
		e.store.UpdatePlayers(p.Players)
	case protocol.TypeJoinRequests:
		var p protocol.JoinRequestsPayload
		if err := env.DecodePayload(&p); err != nil {
			e.logger.Warnf("room %s: %v", e.roomPath, err)
			return
		}
		// Requests the server dropped from the authoritative list can no
		// longer be approved or rejected; their pendings are stale.
		for _, uid := range e.store.SetJoinRequests(p.JoinRequests) {
			e.tracker.Resolve(pending.Key("approveJoin", uid))
			e.tracker.Resolve(pending.Key("rejectJoin", uid))
		}
	case protocol.TypeJoinRequestStatus:
		var p protocol.JoinRequestStatusPayload
		if err := env.DecodePayload(&p); err != nil {
			e.logger.Warnf("room %s: %v", e.roomPath, err)
			return
		}
		e.tracker.Resolve(pending.Key("approveJoin", p.UserID))
		e.tracker.Resolve(pending.Key("rejectJoin", p.UserID))
		if e.userID == "" || p.UserID == e.userID {
			e.tracker.Resolve("joinRequest")
		}
	case protocol.TypeMessageReceived:
		var p protocol.MessagePayload
		if err := env.DecodePayload(&p); err != nil {
			e.logger.Warnf("room %s: %v", e.roomPath, err)
			return
		}
		e.store.AppendChatMessage(p.Message)
		if e.userID == "" || p.Message.UserID == e.userID {
			e.tracker.Resolve("sendMessage")
		}
	case protocol.TypeReactionAdded:
		var p protocol.ReactionPayload
		if err := env.DecodePayload(&p); err != nil {
			e.logger.Warnf("room %s: %v", e.roomPath, err)
			return
		}
		e.store.AddReaction(p.MessageID, p.UserID, p.Emoji)
		e.tracker.Resolve(pending.Key("addReaction", p.MessageID, p.Emoji))
	case protocol.TypeReactionRemoved:
		var p protocol.ReactionPayload
		if err := env.DecodePayload(&p); err != nil {
			e.logger.Warnf("room %s: %v", e.roomPath, err)
			return
		}
		e.store.RemoveReaction(p.MessageID, p.UserID, p.Emoji)
		e.tracker.Resolve(pending.Key("removeReaction", p.MessageID, p.Emoji))
	case protocol.TypeGameStarted:
		e.store.SetCountdown(nil)
	case protocol.TypeGameStartFailed:
		var p protocol.GameStartFailedPayload
		if err := env.DecodePayload(&p); err != nil {
			e.logger.Warnf("room %s: %v", e.roomPath, err)
		} else {
			e.logger.Warnf("room %s: game start failed: %s", e.roomPath, p.Reason)
		}
		e.store.SetCountdown(nil)
	case protocol.TypeFinalStanding:
		var p protocol.FinalStandingPayload
		if err := env.DecodePayload(&p); err != nil {
			e.logger.Warnf("room %s: %v", e.roomPath, err)
			return
		}
		e.store.SetStandings(p.Standings)
	case protocol.TypeGameOver:
		var p protocol.GameOverPayload
		if err := env.DecodePayload(&p); err != nil {
			e.logger.Warnf("room %s: %v", e.roomPath, err)
			return
		}
		if e.userID != "" {
			e.store.SetPlayerResult(e.userID, p.Rank, p.Prize)
		}
	case protocol.TypeGameState:
		var p protocol.GameStatePayload
		if err := env.DecodePayload(&p); err != nil {
			e.logger.Warnf("room %s: %v", e.roomPath, err)
			return
		}
		e.slot.ImportSnapshot(p.GameState)
	case protocol.TypePong:
		var p protocol.PongPayload
		if err := env.DecodePayload(&p); err != nil {
			e.logger.Warnf("room %s: %v", e.roomPath, err)
			return
		}
		switch {
		case p.Ts > 0:
			e.store.SetLatency(time.Now().UnixMilli() - p.Ts)
		case p.ElapsedMs > 0:
			e.store.SetLatency(p.ElapsedMs)
		}
		// A pong answers our own ping, so it doubles as our heartbeat.
		if e.userID != "" {
			e.store.TouchPlayer(e.userID, time.Now())
		}
	case protocol.TypeError:
		var p protocol.ErrorPayload
		if err := env.DecodePayload(&p); err != nil {
			e.logger.Warnf("room %s: %v", e.roomPath, err)
			return
		}
		e.handleServerError(p)
	default:
		e.logger.Warnf("room %s: unrecognized frame type %q dropped", e.roomPath, env.Type)
	}
}

// handleBootstrap atomically replaces the lobby replica and seeds the game
// slot. A missing plugin only costs the game view; chat and the participant
// list keep working.
func (e *Engine) handleBootstrap(env protocol.Envelope) {
	var p protocol.BootstrapPayload
	if err := env.DecodePayload(&p); err != nil {
		e.logger.Warnf("room %s: %v", e.roomPath, err)
		return
	}
	e.store.Bootstrap(p.LobbyInfo, p.Players, p.JoinRequests, p.ChatHistory)

	gamePath := p.LobbyInfo.GamePath
	pl := e.registry.Get(gamePath)
	if pl == nil && gamePath != "" {
		e.logger.Warnf("room %s: no plugin registered for game %q; lobby features only", e.roomPath, gamePath)
	}
	e.slot.Activate(pl)
}

// handleServerError maps a protocol error onto its pending-action family and
// surfaces it to the caller. The connection stays up.
func (e *Engine) handleServerError(p protocol.ErrorPayload) {
	families := protocol.FamiliesForCode(p.Code)
	if len(families) == 0 {
		e.logger.Warnf("room %s: server error %s: %s", e.roomPath, p.Code, p.Message)
	}
	for _, fam := range families {
		e.tracker.ResolveFamily(fam)
	}
	if e.onProtocolError != nil {
		e.onProtocolError(p.Code, p.Message)
	}
}
