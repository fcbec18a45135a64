package protocol

import (
	"bytes"
	"io"

	"github.com/google/uuid"
)

type PlayerChat struct {
	GlobalIndex      int32
	SenderUUID       uuid.UUID
	Index            int32
	Signature        *MessageSignature
	PlainMessage     string
	Timestamp        int64
	Salt             int64
	PreviousMessages []MessageSignature
	UnsignedContent  *string
	FilterType       int32
	ChatType         int32
	NetworkName      string
}

func (*PlayerChat) Type() Type { return TypePlayerChat }

func (c *PlayerChat) Encode(w io.Writer) error {
	if err := WriteVarint(w, c.GlobalIndex); err != nil {
		return err
	}
	if err := WriteUUID(w, c.SenderUUID); err != nil {
		return err
	}
	if err := WriteVarint(w, c.Index); err != nil {
		return err
	}
	if err := WriteOptionalSignature(w, c.Signature); err != nil {
		return err
	}
	if err := WriteString(w, c.PlainMessage); err != nil {
		return err
	}
	if err := WriteInt64(w, c.Timestamp); err != nil {
		return err
	}
	if err := WriteInt64(w, c.Salt); err != nil {
		return err
	}
	if err := WriteVarint(w, int32(len(c.PreviousMessages))); err != nil {
		return err
	}
	for _, sig := range c.PreviousMessages {
		if _, err := w.Write(sig[:]); err != nil {
			return err
		}
	}
	if err := WriteBool(w, c.UnsignedContent != nil); err != nil {
		return err
	}
	if c.UnsignedContent != nil {
		if err := WriteString(w, *c.UnsignedContent); err != nil {
			return err
		}
	}
	if err := WriteVarint(w, c.FilterType); err != nil {
		return err
	}
	if err := WriteVarint(w, c.ChatType); err != nil {
		return err
	}
	return WriteString(w, c.NetworkName)
}

func ParsePlayerChat(r *bytes.Reader) (Message, error) {
	var chat PlayerChat
	var err error
	if chat.GlobalIndex, err = ReadVarint(r); err != nil {
		return nil, err
	}
	if chat.SenderUUID, err = ReadUUID(r); err != nil {
		return nil, err
	}
	if chat.Index, err = ReadVarint(r); err != nil {
		return nil, err
	}
	if chat.Signature, err = ReadOptionalSignature(r); err != nil {
		return nil, err
	}
	if chat.PlainMessage, err = ReadString(r, MaxChatLength); err != nil {
		return nil, err
	}
	if chat.Timestamp, err = ReadInt64(r); err != nil {
		return nil, err
	}
	if chat.Salt, err = ReadInt64(r); err != nil {
		return nil, err
	}
	count, err := ReadVarint(r)
	if err != nil {
		return nil, err
	}
	if count < 0 || count > LastSeenWindow {
		return nil, ErrInvalidPacket
	}
	chat.PreviousMessages = make([]MessageSignature, count)
	for i := range chat.PreviousMessages {
		if chat.PreviousMessages[i], err = ReadSignature(r); err != nil {
			return nil, err
		}
	}
	hasUnsigned, err := ReadBool(r)
	if err != nil {
		return nil, err
	}
	if hasUnsigned {
		s, err := ReadString(r, 262144)
		if err != nil {
			return nil, err
		}
		chat.UnsignedContent = &s
	}
	if chat.FilterType, err = ReadVarint(r); err != nil {
		return nil, err
	}
	if chat.ChatType, err = ReadVarint(r); err != nil {
		return nil, err
	}
	if chat.NetworkName, err = ReadString(r, 262144); err != nil {
		return nil, err
	}
	return &chat, nil
}
