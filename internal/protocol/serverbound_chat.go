package protocol

import (
	"bytes"
	"io"

	"github.com/google/uuid"
)

const (
	MaxChatLength = 256
	// LastSeenWindow 是客户端确认窗口的固定大小
	LastSeenWindow   = 20
	maxArgSignatures = 8
	maxPublicKeySize = 512
	maxKeySignature  = 4096
)

// LastSeenUpdate is the client's compact acknowledgment delta: how far the
// window advanced and which of the last LastSeenWindow messages it saw.
type LastSeenUpdate struct {
	Offset       int32
	Acknowledged []bool
	Checksum     byte
}

func ReadLastSeenUpdate(r io.Reader) (LastSeenUpdate, error) {
	offset, err := ReadVarint(r)
	if err != nil {
		return LastSeenUpdate{}, err
	}
	acked, err := ReadFixedBitSet(r, LastSeenWindow)
	if err != nil {
		return LastSeenUpdate{}, err
	}
	checksum, err := ReadByte(r)
	if err != nil {
		return LastSeenUpdate{}, err
	}
	return LastSeenUpdate{Offset: offset, Acknowledged: acked, Checksum: checksum}, nil
}

func WriteLastSeenUpdate(w io.Writer, u LastSeenUpdate) error {
	if err := WriteVarint(w, u.Offset); err != nil {
		return err
	}
	if err := WriteFixedBitSet(w, u.Acknowledged, LastSeenWindow); err != nil {
		return err
	}
	return WriteByte(w, u.Checksum)
}

type ChatMessage struct {
	Message   string
	Timestamp int64 // epoch millis
	Salt      int64
	Signature *MessageSignature
	LastSeen  LastSeenUpdate
}

func (*ChatMessage) Type() Type { return TypeChat }

func (c *ChatMessage) Encode(w io.Writer) error {
	if err := WriteString(w, c.Message); err != nil {
		return err
	}
	if err := WriteInt64(w, c.Timestamp); err != nil {
		return err
	}
	if err := WriteInt64(w, c.Salt); err != nil {
		return err
	}
	if err := WriteOptionalSignature(w, c.Signature); err != nil {
		return err
	}
	return WriteLastSeenUpdate(w, c.LastSeen)
}

func ParseChatMessage(r *bytes.Reader) (Message, error) {
	var chat ChatMessage
	var err error
	if chat.Message, err = ReadString(r, MaxChatLength); err != nil {
		return nil, err
	}
	if chat.Timestamp, err = ReadInt64(r); err != nil {
		return nil, err
	}
	if chat.Salt, err = ReadInt64(r); err != nil {
		return nil, err
	}
	if chat.Signature, err = ReadOptionalSignature(r); err != nil {
		return nil, err
	}
	if chat.LastSeen, err = ReadLastSeenUpdate(r); err != nil {
		return nil, err
	}
	return &chat, nil
}

type ChatAck struct {
	Offset int32
}

func (*ChatAck) Type() Type { return TypeChatAck }

func (c *ChatAck) Encode(w io.Writer) error { return WriteVarint(w, c.Offset) }

func ParseChatAck(r *bytes.Reader) (Message, error) {
	offset, err := ReadVarint(r)
	if err != nil {
		return nil, err
	}
	return &ChatAck{Offset: offset}, nil
}

type ChatCommand struct {
	Command string
}

func (*ChatCommand) Type() Type { return TypeChatCommand }

func (c *ChatCommand) Encode(w io.Writer) error { return WriteString(w, c.Command) }

func ParseChatCommand(r *bytes.Reader) (Message, error) {
	command, err := ReadString(r, MaxStringLength)
	if err != nil {
		return nil, err
	}
	return &ChatCommand{Command: command}, nil
}

type ArgumentSignature struct {
	Name      string
	Signature MessageSignature
}

type ChatCommandSigned struct {
	Command            string
	Timestamp          int64
	Salt               int64
	ArgumentSignatures []ArgumentSignature
	LastSeen           LastSeenUpdate
}

func (*ChatCommandSigned) Type() Type { return TypeChatCommandSigned }

func (c *ChatCommandSigned) Encode(w io.Writer) error {
	if err := WriteString(w, c.Command); err != nil {
		return err
	}
	if err := WriteInt64(w, c.Timestamp); err != nil {
		return err
	}
	if err := WriteInt64(w, c.Salt); err != nil {
		return err
	}
	if err := WriteVarint(w, int32(len(c.ArgumentSignatures))); err != nil {
		return err
	}
	for _, a := range c.ArgumentSignatures {
		if err := WriteString(w, a.Name); err != nil {
			return err
		}
		if _, err := w.Write(a.Signature[:]); err != nil {
			return err
		}
	}
	return WriteLastSeenUpdate(w, c.LastSeen)
}

func ParseChatCommandSigned(r *bytes.Reader) (Message, error) {
	var cmd ChatCommandSigned
	var err error
	if cmd.Command, err = ReadString(r, MaxStringLength); err != nil {
		return nil, err
	}
	if cmd.Timestamp, err = ReadInt64(r); err != nil {
		return nil, err
	}
	if cmd.Salt, err = ReadInt64(r); err != nil {
		return nil, err
	}
	argSigLength, err := ReadVarint(r)
	if err != nil {
		return nil, err
	}
	if argSigLength < 0 || argSigLength > maxArgSignatures {
		return nil, ErrInvalidPacket
	}
	cmd.ArgumentSignatures = make([]ArgumentSignature, argSigLength)
	for i := range cmd.ArgumentSignatures {
		name, err := ReadString(r, 16)
		if err != nil {
			return nil, err
		}
		sig, err := ReadSignature(r)
		if err != nil {
			return nil, err
		}
		cmd.ArgumentSignatures[i] = ArgumentSignature{Name: name, Signature: sig}
	}
	if cmd.LastSeen, err = ReadLastSeenUpdate(r); err != nil {
		return nil, err
	}
	return &cmd, nil
}

// ChatSessionUpdate announces the player's signing key.
type ChatSessionUpdate struct {
	SessionID    uuid.UUID
	ExpiresAt    int64 // epoch millis
	PublicKey    []byte
	KeySignature []byte
}

func (*ChatSessionUpdate) Type() Type { return TypeChatSessionUpdate }

func (c *ChatSessionUpdate) Encode(w io.Writer) error {
	if err := WriteUUID(w, c.SessionID); err != nil {
		return err
	}
	if err := WriteInt64(w, c.ExpiresAt); err != nil {
		return err
	}
	if err := WriteByteArray(w, c.PublicKey); err != nil {
		return err
	}
	return WriteByteArray(w, c.KeySignature)
}

func ParseChatSessionUpdate(r *bytes.Reader) (Message, error) {
	var c ChatSessionUpdate
	var err error
	if c.SessionID, err = ReadUUID(r); err != nil {
		return nil, err
	}
	if c.ExpiresAt, err = ReadInt64(r); err != nil {
		return nil, err
	}
	if c.PublicKey, err = ReadByteArray(r, maxPublicKeySize); err != nil {
		return nil, err
	}
	if c.KeySignature, err = ReadByteArray(r, maxKeySignature); err != nil {
		return nil, err
	}
	return &c, nil
}
