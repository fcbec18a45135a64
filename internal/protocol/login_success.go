package protocol

import (
	"bytes"
	"io"

	"github.com/google/uuid"
)

type LoginSuccess struct {
	UUID       uuid.UUID
	Username   string
	Properties []Property
}

type Property struct {
	Name      string
	Value     string
	Signature *string
}

func (*LoginSuccess) Type() Type { return TypeLoginSuccess }

func (l *LoginSuccess) Encode(w io.Writer) error {
	if err := WriteUUID(w, l.UUID); err != nil {
		return err
	}
	if err := WriteString(w, l.Username); err != nil {
		return err
	}
	if err := WriteVarint(w, int32(len(l.Properties))); err != nil {
		return err
	}
	for _, p := range l.Properties {
		if err := WriteProperty(w, p); err != nil {
			return err
		}
	}
	return nil
}

func ParseLoginSuccess(r *bytes.Reader) (Message, error) {
	id, err := ReadUUID(r)
	if err != nil {
		return nil, err
	}
	username, err := ReadString(r, MaxUsernameLength)
	if err != nil {
		return nil, err
	}
	propertiesLength, err := ReadVarint(r)
	if err != nil {
		return nil, err
	}
	if propertiesLength < 0 || propertiesLength > 16 {
		return nil, ErrInvalidPacket
	}
	properties := make([]Property, propertiesLength)
	for i := range properties {
		prop, err := ReadProperty(r)
		if err != nil {
			return nil, err
		}
		properties[i] = prop
	}
	return &LoginSuccess{
		UUID:       id,
		Username:   username,
		Properties: properties,
	}, nil
}

func ReadProperty(r io.Reader) (Property, error) {
	name, err := ReadString(r, 64)
	if err != nil {
		return Property{}, err
	}
	value, err := ReadString(r, MaxStringLength)
	if err != nil {
		return Property{}, err
	}
	hasSignature, err := ReadBool(r)
	if err != nil {
		return Property{}, err
	}
	var signature *string
	if hasSignature {
		sig, err := ReadString(r, 1024)
		if err != nil {
			return Property{}, err
		}
		signature = &sig
	}
	return Property{Name: name, Value: value, Signature: signature}, nil
}

func WriteProperty(w io.Writer, p Property) error {
	if err := WriteString(w, p.Name); err != nil {
		return err
	}
	if err := WriteString(w, p.Value); err != nil {
		return err
	}
	if err := WriteBool(w, p.Signature != nil); err != nil {
		return err
	}
	if p.Signature != nil {
		return WriteString(w, *p.Signature)
	}
	return nil
}
