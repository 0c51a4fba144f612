// internal/protocol/errors.go
package protocol

// Server error codes carried in error{code,message} frames, and their mapping
// onto pending-action key families. The wire gives no per-target detail, so
// one code clears every in-flight key of its family.
const (
	ErrJoinFailed        = "JOIN_FAILED"
	ErrLeaveFailed       = "LEAVE_FAILED"
	ErrKickFailed        = "KICK_FAILED"
	ErrApproveFailed     = "APPROVE_FAILED"
	ErrRejectFailed      = "REJECT_FAILED"
	ErrMessageFailed     = "MESSAGE_FAILED"
	ErrStatusFailed      = "STATUS_FAILED"
	ErrReactionFailed    = "REACTION_FAILED"
	ErrJoinRequestFailed = "JOIN_REQUEST_FAILED"
)

var errorFamilies = map[string][]string{
	ErrJoinFailed:        {"join"},
	ErrLeaveFailed:       {"leave"},
	ErrKickFailed:        {"kick"},
	ErrApproveFailed:     {"approveJoin"},
	ErrRejectFailed:      {"rejectJoin"},
	ErrMessageFailed:     {"sendMessage"},
	ErrStatusFailed:      {"updateLobbyStatus"},
	ErrReactionFailed:    {"addReaction", "removeReaction"},
	ErrJoinRequestFailed: {"joinRequest"},
}

// FamiliesForCode maps a server error code to the pending-action key
// prefixes it resolves. Unknown codes map to nothing.
func FamiliesForCode(code string) []string {
	return errorFamilies[code]
}
