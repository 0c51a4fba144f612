// internal/store/store.go
package store

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/chainwars-gg/roomsync/internal/models"
)

// Topic identifies an entity class for granular read subscriptions.
type Topic int

const (
	TopicLobby Topic = iota
	TopicPlayers
	TopicJoinRequests
	TopicChat
	TopicCountdown
	TopicConnection
)

// ConnState mirrors the connection manager's derived state for UI observers.
type ConnState string

const (
	ConnDisconnected ConnState = "disconnected"
	ConnConnecting   ConnState = "connecting"
	ConnConnected    ConnState = "connected"
)

// ConnectionInfo is the connection-topic snapshot: derived state, last
// measured round-trip latency and last error. Never persisted.
type ConnectionInfo struct {
	State     ConnState
	LatencyMs int64
	LastError error
}

// Store is the canonical client replica of one room's lobby-level entities.
// The engine is the only writer; UI layers subscribe and read copies.
//
// Locking follows the lobby server this client pairs with: mutate under the
// mutex, collect subscribers under the mutex, notify after unlock.
type Store struct {
	mu sync.Mutex

	lobby        models.Lobby
	hasLobby     bool
	players      []models.PlayerState
	joinRequests []models.JoinRequest
	chat         []models.ChatMessage
	standings    []models.Standing
	countdown    *int
	connection   ConnectionInfo

	subs   map[Topic][]func()
	logger *logrus.Logger
}

// New returns an empty store.
func New(logger *logrus.Logger) *Store {
	if logger == nil {
		logger = logrus.New()
	}
	return &Store{
		subs:       make(map[Topic][]func()),
		connection: ConnectionInfo{State: ConnDisconnected},
		logger:     logger,
	}
}

// Subscribe registers a listener for one entity class. Returns an
// unsubscribe func. Listeners run after the mutation, outside the lock.
func (s *Store) Subscribe(topic Topic, fn func()) func() {
	s.mu.Lock()
	s.subs[topic] = append(s.subs[topic], fn)
	idx := len(s.subs[topic]) - 1
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		s.subs[topic][idx] = nil
		s.mu.Unlock()
	}
}

func (s *Store) notify(topics ...Topic) {
	s.mu.Lock()
	var fns []func()
	for _, t := range topics {
		for _, fn := range s.subs[t] {
			if fn != nil {
				fns = append(fns, fn)
			}
		}
	}
	s.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

// Bootstrap atomically replaces lobby, players, join requests and chat
// history from a server snapshot. Nothing from a prior bootstrap survives.
func (s *Store) Bootstrap(lobby models.Lobby, players []models.PlayerState, joinRequests []models.JoinRequest, chat []models.ChatMessage) {
	s.mu.Lock()
	s.lobby = lobby
	s.hasLobby = true
	s.players = dedupePlayers(players)
	s.joinRequests = append([]models.JoinRequest(nil), joinRequests...)
	s.chat = append([]models.ChatMessage(nil), chat...)
	s.standings = nil
	s.countdown = nil
	s.mu.Unlock()
	s.notify(TopicLobby, TopicPlayers, TopicJoinRequests, TopicChat, TopicCountdown)
}

// UpdateLobbyStatus merges a status transition into the lobby record without
// touching unrelated fields. Transitions are applied verbatim; an
// out-of-order one (other than the starting -> waiting abort) is only worth
// a warning, the server owns truth.
func (s *Store) UpdateLobbyStatus(status models.LobbyStatus, participantCount *int, currentAmount *string) {
	s.mu.Lock()
	if s.hasLobby && !models.ForwardTransition(s.lobby.Status, status) {
		s.logger.Warnf("lobby %s: unexpected status transition %s -> %s", s.lobby.ID, s.lobby.Status, status)
	}
	s.lobby.Status = status
	if participantCount != nil {
		s.lobby.ParticipantCount = *participantCount
	}
	if currentAmount != nil {
		s.lobby.CurrentAmount = *currentAmount
	}
	s.mu.Unlock()
	s.notify(TopicLobby)
}

// AddPlayer inserts a player, replacing any existing entry with the same
// user id so the list never holds duplicates.
func (s *Store) AddPlayer(p models.PlayerState) {
	s.mu.Lock()
	replaced := false
	for i := range s.players {
		if s.players[i].UserID == p.UserID {
			s.players[i] = p
			replaced = true
			break
		}
	}
	if !replaced {
		s.players = append(s.players, p)
	}
	s.mu.Unlock()
	s.notify(TopicPlayers)
}

// RemovePlayer drops the player with the given id. Absent id is a no-op.
func (s *Store) RemovePlayer(userID string) {
	s.mu.Lock()
	removed := false
	for i := range s.players {
		if s.players[i].UserID == userID {
			s.players = append(s.players[:i], s.players[i+1:]...)
			removed = true
			break
		}
	}
	s.mu.Unlock()
	if removed {
		s.notify(TopicPlayers)
	}
}

// UpdatePlayers merges a bulk playerUpdated frame: listed players replace
// their existing entries (or are added); unlisted players are untouched.
func (s *Store) UpdatePlayers(players []models.PlayerState) {
	s.mu.Lock()
	for _, p := range players {
		found := false
		for i := range s.players {
			if s.players[i].UserID == p.UserID {
				s.players[i] = p
				found = true
				break
			}
		}
		if !found {
			s.players = append(s.players, p)
		}
	}
	s.mu.Unlock()
	s.notify(TopicPlayers)
}

// SetJoinRequests replaces the pending-request set; the server is
// authoritative for it. Returns the user ids that disappeared from the list
// so the engine can clear stale approve/reject pending actions.
func (s *Store) SetJoinRequests(list []models.JoinRequest) []string {
	s.mu.Lock()
	var vanished []string
	for _, old := range s.joinRequests {
		still := false
		for _, req := range list {
			if req.UserID == old.UserID {
				still = true
				break
			}
		}
		if !still {
			vanished = append(vanished, old.UserID)
		}
	}
	s.joinRequests = append([]models.JoinRequest(nil), list...)
	s.mu.Unlock()
	s.notify(TopicJoinRequests)
	return vanished
}

// AppendChatMessage appends in receipt order.
func (s *Store) AppendChatMessage(msg models.ChatMessage) {
	s.mu.Lock()
	s.chat = append(s.chat, msg)
	s.mu.Unlock()
	s.notify(TopicChat)
}

// AddReaction records a (user, emoji) pair on a message. Duplicate pairs and
// unknown message ids are no-ops.
func (s *Store) AddReaction(messageID, userID, emoji string) {
	s.mu.Lock()
	changed := false
	for i := range s.chat {
		if s.chat[i].MessageID == messageID {
			changed = s.chat[i].AddReaction(userID, emoji)
			break
		}
	}
	s.mu.Unlock()
	if changed {
		s.notify(TopicChat)
	}
}

// RemoveReaction removes a (user, emoji) pair. Absent pairs are no-ops.
func (s *Store) RemoveReaction(messageID, userID, emoji string) {
	s.mu.Lock()
	changed := false
	for i := range s.chat {
		if s.chat[i].MessageID == messageID {
			changed = s.chat[i].RemoveReaction(userID, emoji)
			break
		}
	}
	s.mu.Unlock()
	if changed {
		s.notify(TopicChat)
	}
}

// SetCountdown replaces the displayed countdown; nil clears it.
func (s *Store) SetCountdown(seconds *int) {
	s.mu.Lock()
	if seconds == nil {
		s.countdown = nil
	} else {
		v := *seconds
		s.countdown = &v
	}
	s.mu.Unlock()
	s.notify(TopicCountdown)
}

// SetStandings records final standings and stamps rank/prize onto players.
func (s *Store) SetStandings(standings []models.Standing) {
	s.mu.Lock()
	s.standings = append([]models.Standing(nil), standings...)
	for _, st := range standings {
		for i := range s.players {
			if s.players[i].UserID == st.UserID {
				s.players[i].Rank = st.Rank
				s.players[i].Prize = st.Prize
			}
		}
	}
	s.mu.Unlock()
	s.notify(TopicLobby, TopicPlayers)
}

// SetPlayerResult stamps a final rank/prize onto one player (gameOver frame
// for the local user). Unknown ids are a no-op.
func (s *Store) SetPlayerResult(userID string, rank int, prize string) {
	s.mu.Lock()
	changed := false
	for i := range s.players {
		if s.players[i].UserID == userID {
			s.players[i].Rank = rank
			s.players[i].Prize = prize
			changed = true
			break
		}
	}
	s.mu.Unlock()
	if changed {
		s.notify(TopicPlayers)
	}
}

// TouchPlayer refreshes a player's heartbeat timestamp. Unknown ids are a
// no-op and fire no listeners.
func (s *Store) TouchPlayer(userID string, at time.Time) {
	s.mu.Lock()
	changed := false
	for i := range s.players {
		if s.players[i].UserID == userID {
			s.players[i].LastPing = at
			changed = true
			break
		}
	}
	s.mu.Unlock()
	if changed {
		s.notify(TopicPlayers)
	}
}

// SetLatency records the heartbeat round trip.
func (s *Store) SetLatency(ms int64) {
	s.mu.Lock()
	s.connection.LatencyMs = ms
	s.mu.Unlock()
	s.notify(TopicConnection)
}

// SetConnection records the derived connection state and last error.
func (s *Store) SetConnection(state ConnState, lastErr error) {
	s.mu.Lock()
	s.connection.State = state
	s.connection.LastError = lastErr
	s.mu.Unlock()
	s.notify(TopicConnection)
}

// Reset restores every field to its initial empty value. Mandatory on
// teardown so a new room mount never inherits stale state.
func (s *Store) Reset() {
	s.mu.Lock()
	s.lobby = models.Lobby{}
	s.hasLobby = false
	s.players = nil
	s.joinRequests = nil
	s.chat = nil
	s.standings = nil
	s.countdown = nil
	s.connection = ConnectionInfo{State: ConnDisconnected}
	s.mu.Unlock()
	s.notify(TopicLobby, TopicPlayers, TopicJoinRequests, TopicChat, TopicCountdown, TopicConnection)
}

// Read accessors return copies; mutating a returned slice never touches the
// replica.

func (s *Store) Lobby() (models.Lobby, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lobby, s.hasLobby
}

func (s *Store) Players() []models.PlayerState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.PlayerState(nil), s.players...)
}

func (s *Store) JoinRequests() []models.JoinRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.JoinRequest(nil), s.joinRequests...)
}

func (s *Store) ChatHistory() []models.ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.ChatMessage(nil), s.chat...)
}

func (s *Store) Standings() []models.Standing {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Standing(nil), s.standings...)
}

func (s *Store) Countdown() *int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.countdown == nil {
		return nil
	}
	v := *s.countdown
	return &v
}

func (s *Store) Connection() ConnectionInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connection
}

// dedupePlayers keeps the last entry per user id, preserving order of first
// appearance. Bootstrap snapshots from a well-behaved server never contain
// duplicates, but the invariant holds regardless of input.
func dedupePlayers(in []models.PlayerState) []models.PlayerState {
	out := make([]models.PlayerState, 0, len(in))
	index := make(map[string]int, len(in))
	for _, p := range in {
		if i, ok := index[p.UserID]; ok {
			out[i] = p
			continue
		}
		index[p.UserID] = len(out)
		out = append(out, p)
	}
	return out
}
