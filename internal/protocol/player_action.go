package protocol

import (
	"bytes"
	"io"
)

const (
	PlayerActionStartDigging = iota
	PlayerActionCancelDigging
	PlayerActionFinishDigging
	PlayerActionDropAllItems
	PlayerActionDropItem
	PlayerActionReleaseUseItem
	PlayerActionSwapItemWithOffhand
)

type PlayerAction struct {
	Status   int32
	Position int64 // packed block position
	Face     byte
	Sequence int32
}

func (*PlayerAction) Type() Type { return TypePlayerAction }

// IsDrop reports whether the action throws items out of the inventory.
func (p *PlayerAction) IsDrop() bool {
	return p.Status == PlayerActionDropAllItems || p.Status == PlayerActionDropItem
}

func (p *PlayerAction) Encode(w io.Writer) error {
	if err := WriteVarint(w, p.Status); err != nil {
		return err
	}
	if err := WriteInt64(w, p.Position); err != nil {
		return err
	}
	if err := WriteByte(w, p.Face); err != nil {
		return err
	}
	return WriteVarint(w, p.Sequence)
}

func ParsePlayerAction(r *bytes.Reader) (Message, error) {
	var p PlayerAction
	var err error
	if p.Status, err = ReadVarint(r); err != nil {
		return nil, err
	}
	if p.Position, err = ReadInt64(r); err != nil {
		return nil, err
	}
	if p.Face, err = ReadByte(r); err != nil {
		return nil, err
	}
	if p.Sequence, err = ReadVarint(r); err != nil {
		return nil, err
	}
	return &p, nil
}

type Swing struct {
	Hand int32
}

func (*Swing) Type() Type { return TypeSwing }

func (s *Swing) Encode(w io.Writer) error { return WriteVarint(w, s.Hand) }

func ParseSwing(r *bytes.Reader) (Message, error) {
	hand, err := ReadVarint(r)
	if err != nil {
		return nil, err
	}
	return &Swing{Hand: hand}, nil
}
