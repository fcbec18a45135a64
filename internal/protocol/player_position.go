package protocol

import (
	"bytes"
	"io"
)

const (
	RelX        = 0x001
	RelY        = 0x002
	RelZ        = 0x004
	RelYaw      = 0x008
	RelPitch    = 0x010
	RelVelX     = 0x020
	RelVelY     = 0x040
	RelVelZ     = 0x080
	RelRotDelta = 0x100
)

// PlayerPosition is the server's authoritative teleport.
type PlayerPosition struct {
	TeleportID int32
	X          float64
	Y          float64
	Z          float64
	Dx         float64
	Dy         float64
	Dz         float64
	Yaw        float32
	Pitch      float32
	Flags      int32
}

func (*PlayerPosition) Type() Type { return TypePlayerPosition }

func (p *PlayerPosition) Encode(w io.Writer) error {
	if err := WriteVarint(w, p.TeleportID); err != nil {
		return err
	}
	for _, v := range []float64{p.X, p.Y, p.Z, p.Dx, p.Dy, p.Dz} {
		if err := WriteDouble(w, v); err != nil {
			return err
		}
	}
	if err := WriteFloat(w, p.Yaw); err != nil {
		return err
	}
	if err := WriteFloat(w, p.Pitch); err != nil {
		return err
	}
	return WriteInt32(w, p.Flags)
}

func ParsePlayerPosition(r *bytes.Reader) (Message, error) {
	teleportID, err := ReadVarint(r)
	if err != nil {
		return nil, err
	}
	var vals [6]float64
	for i := range vals {
		if vals[i], err = ReadDouble(r); err != nil {
			return nil, err
		}
	}
	yaw, err := ReadFloat(r)
	if err != nil {
		return nil, err
	}
	pitch, err := ReadFloat(r)
	if err != nil {
		return nil, err
	}
	flags, err := ReadInt32(r)
	if err != nil {
		return nil, err
	}
	return &PlayerPosition{
		TeleportID: teleportID,
		X:          vals[0],
		Y:          vals[1],
		Z:          vals[2],
		Dx:         vals[3],
		Dy:         vals[4],
		Dz:         vals[5],
		Yaw:        yaw,
		Pitch:      pitch,
		Flags:      flags,
	}, nil
}

type TeleportConfirm struct {
	TeleportID int32
}

func (*TeleportConfirm) Type() Type { return TypeAcceptTeleportation }

func (t *TeleportConfirm) Encode(w io.Writer) error { return WriteVarint(w, t.TeleportID) }

func ParseTeleportConfirm(r *bytes.Reader) (Message, error) {
	id, err := ReadVarint(r)
	if err != nil {
		return nil, err
	}
	return &TeleportConfirm{TeleportID: id}, nil
}
