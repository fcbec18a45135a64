// Package kick defines why a session is disconnected. A *Reason is an error
// so any component can return one and let the session boundary act on it.
package kick

import (
	"errors"
	"fmt"
)

// Reason is a disconnect cause with a stable code and the text shown to the player.
type Reason struct {
	Code    string
	Message string
}

func (r *Reason) Error() string {
	return fmt.Sprintf("%s: %s", r.Code, r.Message)
}

// Is matches reasons by code so wrapped or re-formatted reasons compare equal.
func (r *Reason) Is(target error) bool {
	t, ok := target.(*Reason)
	return ok && t.Code == r.Code
}

// Withf returns a copy of r with a formatted message.
func (r *Reason) Withf(format string, args ...any) *Reason {
	return &Reason{Code: r.Code, Message: fmt.Sprintf(format, args...)}
}

func New(code, message string) *Reason {
	return &Reason{Code: code, Message: message}
}

// From extracts the Reason carried by err, or InternalError.
func From(err error) *Reason {
	var r *Reason
	if errors.As(err, &r) {
		return r
	}
	return InternalError
}

var (
	// framing / decoding
	FrameTooLarge    = New("frame_too_large", "Packet too large")
	MalformedFrame   = New("malformed_frame", "Malformed packet")
	UnknownMessageID = New("unknown_message_id", "Unknown packet")

	// protocol order
	InvalidIntent      = New("invalid_intent", "Unknown connection intent")
	TransfersDisabled  = New("transfers_disabled", "Transfers are not accepted by this server")
	OutdatedClient     = New("outdated_client", "Outdated client!")
	IncompatibleClient = New("incompatible_client", "Incompatible client!")
	UnexpectedMessage  = New("unexpected_message", "Unexpected packet for current connection state")
	InvalidUsername    = New("invalid_username", "Invalid username")
	DuplicateLogin     = New("duplicate_login", "You logged in from another location")
	ServerFull         = New("server_full", "The server is full!")

	// liveness
	Timeout            = New("timeout", "Timed out")
	Idling             = New("idling", "You have been idle for too long!")
	SlowLogin          = New("slow_login", "Took too long to log in")
	ExceededPacketRate = New("exceeded_packet_rate", "Exceeded packet rate limit")
	OutboundOverflow   = New("outbound_overflow", "Too many queued packets")

	// movement
	InvalidPlayerMovement  = New("invalid_player_movement", "Invalid move player packet received")
	InvalidVehicleMovement = New("invalid_vehicle_movement", "Invalid move vehicle packet received")
	FlyingViolation        = New("flying", "Flying is not enabled on this server")
	VehicleFlying          = New("vehicle_flying", "Flying is not enabled on this server")

	// chat
	IllegalCharacters    = New("illegal_characters", "Illegal characters in chat")
	OutOfOrderChat       = New("out_of_order_chat", "Out-of-order chat packet received. Did your system time change?")
	ChatValidationFailed = New("chat_validation_failed", "Chat message validation failure")
	TooManyPendingChats  = New("too_many_pending_chats", "Too many unacknowledged chat messages received")
	Spam                 = New("spam", "Kicked for spamming")
	ExpiredPublicKey     = New("expired_public_key", "Chat profile public key has expired")
	InvalidPublicKey     = New("invalid_public_key", "Invalid chat profile public key")
	MissingProfileKey    = New("missing_profile_key", "Secure chat is required on this server")
	InvalidSignature     = New("invalid_signature", "Chat message signature is invalid")
	ChainBroken          = New("chain_broken", "Chat chain is broken")

	// lifecycle
	Kicked        = New("kicked", "Kicked by an operator")
	ServerClosing = New("server_closing", "Server closed")
	InternalError = New("internal_error", "Internal server error")
	ClientQuit    = New("client_quit", "Disconnected")
)
