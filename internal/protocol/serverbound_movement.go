package protocol

import (
	"bytes"
	"io"
)

const (
	movementFlagOnGround               = 0x01
	movementFlagHasHorizontalCollision = 0x02
)

// MovePlayer covers the four serverbound movement variants. HasPos and HasRot
// record which fields were present on the wire.
type MovePlayer struct {
	X, Y, Z    float64
	Yaw, Pitch float32
	OnGround   bool
	// HorizontalCollision is client-reported and only informational.
	HorizontalCollision bool
	HasPos              bool
	HasRot              bool
}

func (m *MovePlayer) Type() Type {
	switch {
	case m.HasPos && m.HasRot:
		return TypeMovePlayerPosRot
	case m.HasPos:
		return TypeMovePlayerPos
	case m.HasRot:
		return TypeMovePlayerRot
	default:
		return TypeMovePlayerStatusOnly
	}
}

func (m *MovePlayer) Encode(w io.Writer) error {
	if m.HasPos {
		for _, v := range []float64{m.X, m.Y, m.Z} {
			if err := WriteDouble(w, v); err != nil {
				return err
			}
		}
	}
	if m.HasRot {
		if err := WriteFloat(w, m.Yaw); err != nil {
			return err
		}
		if err := WriteFloat(w, m.Pitch); err != nil {
			return err
		}
	}
	return WriteByte(w, encodeMovementFlags(m.OnGround, m.HorizontalCollision))
}

func parseMovePlayer(hasPos, hasRot bool) func(r *bytes.Reader) (Message, error) {
	return func(r *bytes.Reader) (Message, error) {
		m := &MovePlayer{HasPos: hasPos, HasRot: hasRot}
		var err error
		if hasPos {
			if m.X, err = ReadDouble(r); err != nil {
				return nil, err
			}
			if m.Y, err = ReadDouble(r); err != nil {
				return nil, err
			}
			if m.Z, err = ReadDouble(r); err != nil {
				return nil, err
			}
		}
		if hasRot {
			if m.Yaw, err = ReadFloat(r); err != nil {
				return nil, err
			}
			if m.Pitch, err = ReadFloat(r); err != nil {
				return nil, err
			}
		}
		flags, err := ReadByte(r)
		if err != nil {
			return nil, err
		}
		m.OnGround = flags&movementFlagOnGround != 0
		m.HorizontalCollision = flags&movementFlagHasHorizontalCollision != 0
		return m, nil
	}
}

func CreatePlayerPositionPacket(x, y, z float64, onGround bool) *MovePlayer {
	return &MovePlayer{X: x, Y: y, Z: z, OnGround: onGround, HasPos: true}
}

func CreatePlayerRotationPacket(yaw, pitch float32, onGround bool) *MovePlayer {
	return &MovePlayer{Yaw: yaw, Pitch: pitch, OnGround: onGround, HasRot: true}
}

func CreatePlayerPositionAndRotationPacket(x, y, z float64, yaw, pitch float32, onGround bool) *MovePlayer {
	return &MovePlayer{X: x, Y: y, Z: z, Yaw: yaw, Pitch: pitch, OnGround: onGround, HasPos: true, HasRot: true}
}

func encodeMovementFlags(onGround, hasHorizontalCollision bool) byte {
	var flags byte
	if onGround {
		flags |= movementFlagOnGround
	}
	if hasHorizontalCollision {
		flags |= movementFlagHasHorizontalCollision
	}
	return flags
}

// MoveVehicle is sent by a client steering a vehicle and echoed back by the
// server as a correction.
type MoveVehicle struct {
	X, Y, Z     float64
	Yaw, Pitch  float32
	OnGround    bool
	Clientbound bool
}

func (m *MoveVehicle) Type() Type {
	if m.Clientbound {
		return TypeMoveVehicleClientbound
	}
	return TypeMoveVehicleServerbound
}

func (m *MoveVehicle) Encode(w io.Writer) error {
	for _, v := range []float64{m.X, m.Y, m.Z} {
		if err := WriteDouble(w, v); err != nil {
			return err
		}
	}
	if err := WriteFloat(w, m.Yaw); err != nil {
		return err
	}
	if err := WriteFloat(w, m.Pitch); err != nil {
		return err
	}
	if m.Clientbound {
		return nil
	}
	return WriteBool(w, m.OnGround)
}

func parseMoveVehicle(clientbound bool) func(r *bytes.Reader) (Message, error) {
	return func(r *bytes.Reader) (Message, error) {
		m := &MoveVehicle{Clientbound: clientbound}
		var err error
		if m.X, err = ReadDouble(r); err != nil {
			return nil, err
		}
		if m.Y, err = ReadDouble(r); err != nil {
			return nil, err
		}
		if m.Z, err = ReadDouble(r); err != nil {
			return nil, err
		}
		if m.Yaw, err = ReadFloat(r); err != nil {
			return nil, err
		}
		if m.Pitch, err = ReadFloat(r); err != nil {
			return nil, err
		}
		if !clientbound {
			if m.OnGround, err = ReadBool(r); err != nil {
				return nil, err
			}
		}
		return m, nil
	}
}
