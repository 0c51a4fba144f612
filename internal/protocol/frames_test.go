package protocol

import (
	"encoding/json"
	"testing"

	"github.com/coder/websocket"
)

func TestDecodeClassification(t *testing.T) {
	cases := []struct {
		name     string
		payload  string
		wantGame bool
		wantType string
		wantErr  bool
	}{
		{"lobby frame", `{"type":"messageReceived","message":{}}`, false, "messageReceived", false},
		{"game frame", `{"game":"wordwars","phase":"guessing"}`, true, "", false},
		{"game frame with type", `{"game":"wordwars","type":"turn","payload":{}}`, true, "turn", false},
		{"not json", `having a normal one`, false, "", true},
		{"json but no discriminator", `{"foo":1}`, false, "", true},
		{"json array", `[1,2,3]`, false, "", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			env, err := Decode([]byte(tc.payload))
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected decode error, got %+v", env)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected decode error: %v", err)
			}
			if env.IsGameFrame() != tc.wantGame {
				t.Fatalf("IsGameFrame() = %v, want %v", env.IsGameFrame(), tc.wantGame)
			}
			if env.Type != tc.wantType {
				t.Fatalf("Type = %q, want %q", env.Type, tc.wantType)
			}
		})
	}
}

func TestDecodePayloadRoundTrip(t *testing.T) {
	raw := `{"type":"lobbyStatusChanged","status":"starting","participantCount":4}`
	env, err := Decode([]byte(raw))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	var p StatusChangedPayload
	if err := env.DecodePayload(&p); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if string(p.Status) != "starting" {
		t.Fatalf("status = %q", p.Status)
	}
	if p.ParticipantCount == nil || *p.ParticipantCount != 4 {
		t.Fatalf("participantCount = %v", p.ParticipantCount)
	}
	if p.CurrentAmount != nil {
		t.Fatalf("currentAmount should be absent, got %v", *p.CurrentAmount)
	}
}

func TestOutboundCommandShapes(t *testing.T) {
	cases := []struct {
		name string
		data []byte
		want map[string]interface{}
	}{
		{"kick", Kick("u9"), map[string]interface{}{"type": "kick", "userId": "u9"}},
		{"sendMessage", SendMessage("hi", ""), map[string]interface{}{"type": "sendMessage", "content": "hi"}},
		{"reply", SendMessage("yo", "m3"), map[string]interface{}{"type": "sendMessage", "content": "yo", "replyTo": "m3"}},
		{"addReaction", AddReaction("m1", "🔥"), map[string]interface{}{"type": "addReaction", "messageId": "m1", "emoji": "🔥"}},
		{"status", UpdateLobbyStatus("starting"), map[string]interface{}{"type": "updateLobbyStatus", "status": "starting"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var got map[string]interface{}
			if err := json.Unmarshal(tc.data, &got); err != nil {
				t.Fatalf("command is not valid json: %v", err)
			}
			for k, v := range tc.want {
				if got[k] != v {
					t.Fatalf("field %q = %v, want %v", k, got[k], v)
				}
			}
			for k := range got {
				if _, ok := tc.want[k]; !ok {
					t.Fatalf("unexpected field %q in %s", k, tc.data)
				}
			}
		})
	}
}

func TestGameCommandWrapsScope(t *testing.T) {
	data := GameCommand("wordwars", "submitGuess", map[string]string{"word": "crane"})
	var got struct {
		Game    string            `json:"game"`
		Type    string            `json:"type"`
		Payload map[string]string `json:"payload"`
	}
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Game != "wordwars" || got.Type != "submitGuess" || got.Payload["word"] != "crane" {
		t.Fatalf("unexpected game command: %+v", got)
	}
}

func TestFamiliesForCode(t *testing.T) {
	if fams := FamiliesForCode(ErrKickFailed); len(fams) != 1 || fams[0] != "kick" {
		t.Fatalf("KICK_FAILED families = %v", fams)
	}
	if fams := FamiliesForCode(ErrReactionFailed); len(fams) != 2 {
		t.Fatalf("REACTION_FAILED should clear both reaction families, got %v", fams)
	}
	if fams := FamiliesForCode("SOMETHING_ELSE"); fams != nil {
		t.Fatalf("unknown code should map to nothing, got %v", fams)
	}
}

func TestTerminalClose(t *testing.T) {
	for _, code := range []websocket.StatusCode{
		websocket.StatusNormalClosure,
		websocket.StatusPolicyViolation,
		CloseInvalidAuthToken,
		CloseInvalidRoomPath,
	} {
		if !TerminalClose(code) {
			t.Fatalf("code %d should be terminal", code)
		}
	}
	for _, code := range []websocket.StatusCode{
		websocket.StatusAbnormalClosure,
		websocket.StatusGoingAway,
		websocket.StatusCode(-1), // no close frame at all
	} {
		if TerminalClose(code) {
			t.Fatalf("code %d should allow reconnect", code)
		}
	}
}
