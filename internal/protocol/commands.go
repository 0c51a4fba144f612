// internal/protocol/commands.go
package protocol

import "encoding/json"

// Outbound lobby commands are flat type-discriminated objects; outbound game
// commands are wrapped under the game scope key so the server can route them
// without inspecting lobby semantics.

type command struct {
	Type      string      `json:"type"`
	Status    string      `json:"status,omitempty"`
	UserID    string      `json:"userId,omitempty"`
	Content   string      `json:"content,omitempty"`
	ReplyTo   string      `json:"replyTo,omitempty"`
	MessageID string      `json:"messageId,omitempty"`
	Emoji     string      `json:"emoji,omitempty"`
	Ts        int64       `json:"ts,omitempty"`
	Payload   interface{} `json:"payload,omitempty"`
}

func marshal(c command) []byte {
	data, err := json.Marshal(c)
	if err != nil {
		// All command fields are plain strings and numbers; this cannot fail
		// unless a caller smuggles an unmarshalable payload in.
		return []byte(`{"type":"` + c.Type + `"}`)
	}
	return data
}

func Join() []byte  { return marshal(command{Type: "join"}) }
func Leave() []byte { return marshal(command{Type: "leave"}) }

func UpdateLobbyStatus(status string) []byte {
	return marshal(command{Type: "updateLobbyStatus", Status: status})
}

func JoinRequest() []byte { return marshal(command{Type: "joinRequest"}) }

func ApproveJoin(userID string) []byte {
	return marshal(command{Type: "approveJoin", UserID: userID})
}

func RejectJoin(userID string) []byte {
	return marshal(command{Type: "rejectJoin", UserID: userID})
}

func Kick(userID string) []byte {
	return marshal(command{Type: "kick", UserID: userID})
}

func SendMessage(content, replyTo string) []byte {
	return marshal(command{Type: "sendMessage", Content: content, ReplyTo: replyTo})
}

func AddReaction(messageID, emoji string) []byte {
	return marshal(command{Type: "addReaction", MessageID: messageID, Emoji: emoji})
}

func RemoveReaction(messageID, emoji string) []byte {
	return marshal(command{Type: "removeReaction", MessageID: messageID, Emoji: emoji})
}

func Ping(ts int64) []byte {
	return marshal(command{Type: "ping", Ts: ts})
}

// GameCommand wraps a plugin command under the game scope key.
func GameCommand(game, msgType string, payload interface{}) []byte {
	data, err := json.Marshal(struct {
		Game    string      `json:"game"`
		Type    string      `json:"type"`
		Payload interface{} `json:"payload,omitempty"`
	}{Game: game, Type: msgType, Payload: payload})
	if err != nil {
		return []byte(`{"game":"` + game + `","type":"` + msgType + `"}`)
	}
	return data
}
