package movement

import (
	"fmt"

	"github.com/Versifine/warden/internal/kick"
	"github.com/Versifine/warden/internal/physics"
	"github.com/Versifine/warden/internal/protocol"
)

const vehicleDeflate = 0.0625

type vehicleState struct {
	pos        physics.Vec3
	vel        physics.Vec3
	yaw, pitch float32
	dims       physics.Dimensions
	noGravity  bool

	firstGood physics.Vec3
	lastGood  physics.Vec3

	floating         bool
	aboveGroundTicks int
}

// Mount starts validating the vehicle the player controls.
func (v *Validator) Mount(pos physics.Vec3, dims physics.Dimensions, noGravity bool) {
	v.vehicle = &vehicleState{
		pos:       pos,
		dims:      dims,
		noGravity: noGravity,
		firstGood: pos,
		lastGood:  pos,
	}
}

func (v *Validator) Dismount() {
	v.vehicle = nil
}

func (v *Validator) VehiclePosition() (physics.Vec3, bool) {
	if v.vehicle == nil {
		return physics.Vec3{}, false
	}
	return v.vehicle.pos, true
}

func (v *Validator) SetVehicleVelocity(vel physics.Vec3) {
	if v.vehicle != nil {
		v.vehicle.vel = vel
	}
}

func (v *Validator) VehicleFloatingTicks() int {
	if v.vehicle == nil {
		return 0
	}
	return v.vehicle.aboveGroundTicks
}

func (v *Validator) tickVehicle() error {
	veh := v.vehicle
	if veh == nil {
		return nil
	}
	veh.firstGood = veh.pos
	veh.lastGood = veh.pos
	if veh.floating && !veh.noGravity && !v.allowFlight {
		veh.aboveGroundTicks++
		if veh.aboveGroundTicks > MaxFloatingTicks {
			v.log.Warn().Int("ticks", veh.aboveGroundTicks).Msg("vehicle floated too long")
			return kick.VehicleFlying
		}
		return nil
	}
	veh.floating = false
	veh.aboveGroundTicks = 0
	return nil
}

// HandleVehicleMove validates a steering update for the controlled vehicle.
func (v *Validator) HandleVehicleMove(m *protocol.MoveVehicle) error {
	if !(physics.Vec3{X: m.X, Y: m.Y, Z: m.Z}).IsFinite() || !isFinite32(m.Yaw) || !isFinite32(m.Pitch) {
		return kick.InvalidVehicleMovement
	}
	if awaiting, err := v.updateAwaitingTeleport(); awaiting || err != nil {
		return err
	}
	veh := v.vehicle
	if veh == nil {
		return nil
	}

	start := veh.pos
	target := physics.Vec3{X: clampHorizontal(m.X), Y: clampVertical(m.Y), Z: clampHorizontal(m.Z)}
	yaw, pitch := wrapDegrees(m.Yaw), wrapDegrees(m.Pitch)

	distSq := target.Sub(veh.firstGood).LengthSqr()
	if distSq-veh.vel.LengthSqr() > MoveBudget && !v.exempt {
		v.log.Warn().Float64("dist_sq", distSq).Msg("vehicle moved too quickly")
		return v.sendVehicleCorrection()
	}

	startFree := !physics.CollidesWithBlock(veh.dims.At(start).Inflate(-vehicleDeflate), v.world)
	resolved, _ := physics.ResolveMovement(start, target.Sub(start), veh.dims, v.world)
	dx, dz := target.X-resolved.X, target.Z-resolved.Z
	movedWrongly := dx*dx+dz*dz > MovedWronglyThreshold
	endFree := !physics.CollidesWithBlock(veh.dims.At(target).Inflate(-vehicleDeflate), v.world)
	if startFree && (movedWrongly || !endFree) {
		v.log.Warn().Msg("vehicle moved wrongly")
		return v.sendVehicleCorrection()
	}

	dy := target.Y - veh.lastGood.Y
	veh.pos = target
	veh.yaw, veh.pitch = yaw, pitch
	veh.floating = dy >= FloatEpsilon && !v.allowFlight && !veh.noGravity &&
		physics.NoBlocksAround(veh.dims.At(target), v.world)
	veh.lastGood = target
	return nil
}

func (v *Validator) sendVehicleCorrection() error {
	veh := v.vehicle
	err := v.sender.Send(&protocol.MoveVehicle{
		X:           veh.pos.X,
		Y:           veh.pos.Y,
		Z:           veh.pos.Z,
		Yaw:         veh.yaw,
		Pitch:       veh.pitch,
		Clientbound: true,
	})
	if err != nil {
		return fmt.Errorf("send vehicle correction: %w", err)
	}
	return nil
}
