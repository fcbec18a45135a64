package protocol

import "errors"

var (
	ErrVarIntTooLong    = errors.New("varint is too long")
	ErrVarLongTooLong   = errors.New("varlong is too long")
	ErrPacketTooLarge   = errors.New("packet size exceeds maximum allowed")
	ErrInvalidPacket    = errors.New("invalid packet structure")
	ErrStringTooLong    = errors.New("string exceeds maximum length")
	ErrUnknownMessageID = errors.New("unknown message id")
	ErrSkippable        = errors.New("malformed skippable message")
	ErrUnregisteredType = errors.New("message type not registered")
	ErrWrongPhase       = errors.New("message not valid in current phase")
	ErrPhaseDowngrade   = errors.New("phase transitions are one-directional")
)
