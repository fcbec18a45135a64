package protocol

import (
	"bytes"
	"io"
)

const (
	IntentStatus   = 1
	IntentLogin    = 2
	IntentTransfer = 3
)

type Intention struct {
	ProtocolVersion int32
	ServerAddress   string
	ServerPort      uint16
	Intent          int32
}

func (*Intention) Type() Type { return TypeIntention }

func (h *Intention) Encode(w io.Writer) error {
	if err := WriteVarint(w, h.ProtocolVersion); err != nil {
		return err
	}
	if err := WriteString(w, h.ServerAddress); err != nil {
		return err
	}
	if err := WriteUnsignedShort(w, h.ServerPort); err != nil {
		return err
	}
	return WriteVarint(w, h.Intent)
}

func ParseIntention(r *bytes.Reader) (Message, error) {
	protocolVersion, err := ReadVarint(r)
	if err != nil {
		return nil, err
	}
	serverAddress, err := ReadString(r, 255)
	if err != nil {
		return nil, err
	}
	serverPort, err := ReadUnsignedShort(r)
	if err != nil {
		return nil, err
	}
	intent, err := ReadVarint(r)
	if err != nil {
		return nil, err
	}
	return &Intention{
		ProtocolVersion: protocolVersion,
		ServerAddress:   serverAddress,
		ServerPort:      serverPort,
		Intent:          intent,
	}, nil
}
