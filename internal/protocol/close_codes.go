// internal/protocol/close_codes.go
package protocol

import "github.com/coder/websocket"

// Custom WebSocket close codes the server uses beyond the standard set.
// These signal conditions a retry cannot fix, so the connection manager
// treats them as terminal instead of scheduling a reconnect.
const (
	CloseBadSubprotocol   websocket.StatusCode = 3000 // unsupported subprotocol
	CloseInvalidAuthToken websocket.StatusCode = 3001 // token invalid or expired
	CloseInvalidUserID    websocket.StatusCode = 3002 // user id from token malformed
	CloseInvalidRoomPath  websocket.StatusCode = 3003 // room path does not resolve
)

// TerminalClose reports whether the close status means reconnecting is
// pointless (policy rejections and the custom 3000-range codes).
func TerminalClose(code websocket.StatusCode) bool {
	switch code {
	case websocket.StatusNormalClosure,
		websocket.StatusPolicyViolation,
		CloseBadSubprotocol,
		CloseInvalidAuthToken,
		CloseInvalidUserID,
		CloseInvalidRoomPath:
		return true
	}
	return false
}
