package protocol

import (
	"bytes"
	"io"

	"github.com/google/uuid"
)

const MaxUsernameLength = 16

type LoginStart struct {
	Username string
	UUID     uuid.UUID
}

func (*LoginStart) Type() Type { return TypeLoginStart }

func (l *LoginStart) Encode(w io.Writer) error {
	if err := WriteString(w, l.Username); err != nil {
		return err
	}
	return WriteUUID(w, l.UUID)
}

func ParseLoginStart(r *bytes.Reader) (Message, error) {
	username, err := ReadString(r, MaxUsernameLength)
	if err != nil {
		return nil, err
	}
	id, err := ReadUUID(r)
	if err != nil {
		return nil, err
	}
	return &LoginStart{
		Username: username,
		UUID:     id,
	}, nil
}

type LoginAcknowledged struct{}

func (*LoginAcknowledged) Type() Type             { return TypeLoginAcknowledged }
func (*LoginAcknowledged) Encode(io.Writer) error { return nil }

func ParseLoginAcknowledged(*bytes.Reader) (Message, error) {
	return &LoginAcknowledged{}, nil
}

// LoginDisconnect carries a JSON text component.
type LoginDisconnect struct {
	Reason string
}

func (*LoginDisconnect) Type() Type { return TypeLoginDisconnect }

func (d *LoginDisconnect) Encode(w io.Writer) error { return WriteString(w, d.Reason) }

func ParseLoginDisconnect(r *bytes.Reader) (Message, error) {
	reason, err := ReadString(r, 262144)
	if err != nil {
		return nil, err
	}
	return &LoginDisconnect{Reason: reason}, nil
}

type SetCompression struct {
	Threshold int32
}

func (*SetCompression) Type() Type { return TypeSetCompression }

func (s *SetCompression) Encode(w io.Writer) error { return WriteVarint(w, s.Threshold) }

func ParseSetCompression(r *bytes.Reader) (Message, error) {
	threshold, err := ReadVarint(r)
	if err != nil {
		return nil, err
	}
	return &SetCompression{Threshold: threshold}, nil
}
