package protocol

import (
	"bytes"
	"io"
)

const (
	ChatModeEnabled = iota
	ChatModeCommandsOnly
	ChatModeHidden
)

type ClientInformation struct {
	Locale              string
	ViewDistance        int8
	ChatMode            int32
	ChatColors          bool
	SkinParts           uint8
	MainHand            int32
	TextFiltering       bool
	AllowServerListings bool
	ParticleStatus      int32
}

func (*ClientInformation) Type() Type { return TypeClientInformation }

func (c *ClientInformation) Encode(w io.Writer) error {
	if err := WriteString(w, c.Locale); err != nil {
		return err
	}
	if err := WriteByte(w, byte(c.ViewDistance)); err != nil {
		return err
	}
	if err := WriteVarint(w, c.ChatMode); err != nil {
		return err
	}
	if err := WriteBool(w, c.ChatColors); err != nil {
		return err
	}
	if err := WriteByte(w, c.SkinParts); err != nil {
		return err
	}
	if err := WriteVarint(w, c.MainHand); err != nil {
		return err
	}
	if err := WriteBool(w, c.TextFiltering); err != nil {
		return err
	}
	if err := WriteBool(w, c.AllowServerListings); err != nil {
		return err
	}
	return WriteVarint(w, c.ParticleStatus)
}

func ParseClientInformation(r *bytes.Reader) (Message, error) {
	var c ClientInformation
	var err error
	if c.Locale, err = ReadString(r, 16); err != nil {
		return nil, err
	}
	vd, err := ReadByte(r)
	if err != nil {
		return nil, err
	}
	c.ViewDistance = int8(vd)
	if c.ChatMode, err = ReadVarint(r); err != nil {
		return nil, err
	}
	if c.ChatColors, err = ReadBool(r); err != nil {
		return nil, err
	}
	if c.SkinParts, err = ReadByte(r); err != nil {
		return nil, err
	}
	if c.MainHand, err = ReadVarint(r); err != nil {
		return nil, err
	}
	if c.TextFiltering, err = ReadBool(r); err != nil {
		return nil, err
	}
	if c.AllowServerListings, err = ReadBool(r); err != nil {
		return nil, err
	}
	if c.ParticleStatus, err = ReadVarint(r); err != nil {
		return nil, err
	}
	return &c, nil
}

// CustomPayload is a plugin channel message; the server does not interpret it.
type CustomPayload struct {
	Channel string
	Data    []byte
}

func (*CustomPayload) Type() Type { return TypeCustomPayload }

func (c *CustomPayload) Encode(w io.Writer) error {
	if err := WriteString(w, c.Channel); err != nil {
		return err
	}
	_, err := w.Write(c.Data)
	return err
}

func ParseCustomPayload(r *bytes.Reader) (Message, error) {
	channel, err := ReadString(r, MaxStringLength)
	if err != nil {
		return nil, err
	}
	if r.Len() > 32767 {
		return nil, ErrPacketTooLarge
	}
	data, _ := io.ReadAll(r)
	return &CustomPayload{Channel: channel, Data: data}, nil
}
