// Package movement reconciles client-reported positions with the server's
// confirmed state. A Validator belongs to one session and is only touched
// from the logic goroutine.
package movement

import (
	"fmt"
	"math"

	"github.com/Versifine/warden/internal/kick"
	"github.com/Versifine/warden/internal/physics"
	"github.com/Versifine/warden/internal/protocol"
	"github.com/rs/zerolog"
)

const (
	MaxHorizontal = 3.0e7
	MaxVertical   = 2.0e7

	MoveBudget        = 100.0
	GlideMoveBudget   = 300.0
	MaxPacketsPerTick = 5

	// MovedWronglyThreshold 是碰撞后位置与上报位置之间允许的水平距离平方
	MovedWronglyThreshold = 0.0625
	FloatEpsilon          = -0.03125
	MaxFloatingTicks      = 80
	TeleportResendTicks   = 20
)

// Sender queues an outbound message on the owning session.
type Sender interface {
	Send(msg protocol.Message) error
}

// Abilities is the simulation's view of everything that can justify a player
// leaving the ground or skipping checks.
type Abilities struct {
	MayFly        bool
	Gliding       bool
	Levitating    bool
	SpinAttacking bool
	Spectator     bool
	Creative      bool
	Sleeping      bool
	NoPhysics     bool
	Passenger     bool
	Falling       bool
	Dead          bool
}

// AbilitySource is implemented by the external simulation.
type AbilitySource interface {
	Abilities() Abilities
}

type Options struct {
	World    physics.BlockStore
	Player   AbilitySource
	Position physics.Vec3
	Yaw      float32
	Pitch    float32
	// Exempt 关闭速度预算检查 (受信任的本地所有者)
	Exempt      bool
	AllowFlight bool
	Logger      zerolog.Logger
}

type PendingTeleport struct {
	ID       int32
	Target   physics.Vec3
	Yaw      float32
	Pitch    float32
	IssuedAt int
}

type Validator struct {
	sender      Sender
	world       physics.BlockStore
	player      AbilitySource
	exempt      bool
	allowFlight bool
	log         zerolog.Logger

	tickCount int

	pos        physics.Vec3
	vel        physics.Vec3
	yaw, pitch float32
	onGround   bool

	firstGood physics.Vec3
	lastGood  physics.Vec3

	receivedMoves int
	knownMoves    int

	teleportID   int32
	pending      *PendingTeleport
	awaitingTime int

	floating         bool
	aboveGroundTicks int

	vehicle *vehicleState
}

func New(sender Sender, opts Options) *Validator {
	return &Validator{
		sender:      sender,
		world:       opts.World,
		player:      opts.Player,
		exempt:      opts.Exempt,
		allowFlight: opts.AllowFlight,
		log:         opts.Logger,
		pos:         opts.Position,
		yaw:         opts.Yaw,
		pitch:       opts.Pitch,
		firstGood:   opts.Position,
		lastGood:    opts.Position,
	}
}

func (v *Validator) Position() physics.Vec3 { return v.pos }

func (v *Validator) Rotation() (float32, float32) { return v.yaw, v.pitch }

func (v *Validator) OnGround() bool { return v.onGround }

func (v *Validator) Velocity() physics.Vec3 { return v.vel }

// SetVelocity records server-applied motion (knockback, explosions) that
// widens the next move budget.
func (v *Validator) SetVelocity(vel physics.Vec3) { v.vel = vel }

func (v *Validator) Pending() (PendingTeleport, bool) {
	if v.pending == nil {
		return PendingTeleport{}, false
	}
	return *v.pending, true
}

func (v *Validator) FloatingTicks() int { return v.aboveGroundTicks }

func (v *Validator) abilities() Abilities {
	if v.player == nil {
		return Abilities{}
	}
	return v.player.Abilities()
}

func (v *Validator) flightJustified(ab Abilities) bool {
	return v.allowFlight || ab.MayFly || ab.Levitating || ab.Gliding || ab.Spectator || ab.SpinAttacking
}

func (v *Validator) resetPosition() {
	v.firstGood = v.pos
	v.lastGood = v.pos
}

// Tick ages the per-tick counters. It returns a *kick.Reason when the player
// or its vehicle has floated for too long.
func (v *Validator) Tick() error {
	v.resetPosition()
	v.tickCount++
	v.knownMoves = v.receivedMoves

	ab := v.abilities()
	if v.floating && !v.flightJustified(ab) && !ab.Sleeping && !ab.Passenger && !ab.Dead {
		v.aboveGroundTicks++
		if v.aboveGroundTicks > MaxFloatingTicks {
			v.log.Warn().Int("ticks", v.aboveGroundTicks).Msg("player floated too long")
			return kick.FlyingViolation
		}
	} else {
		v.floating = false
		v.aboveGroundTicks = 0
	}

	return v.tickVehicle()
}

// Teleport forces the client to pos and waits for the acknowledgment.
func (v *Validator) Teleport(pos physics.Vec3, yaw, pitch float32) error {
	v.awaitingTime = v.tickCount
	v.teleportID = nextTeleportID(v.teleportID)
	v.pending = &PendingTeleport{ID: v.teleportID, Target: pos, Yaw: yaw, Pitch: pitch, IssuedAt: v.tickCount}
	v.pos = pos
	v.yaw, v.pitch = yaw, pitch
	return v.sendTeleport()
}

func nextTeleportID(id int32) int32 {
	id++
	if id == math.MaxInt32 {
		return 0
	}
	return id
}

func (v *Validator) sendTeleport() error {
	p := v.pending
	err := v.sender.Send(&protocol.PlayerPosition{
		TeleportID: p.ID,
		X:          p.Target.X,
		Y:          p.Target.Y,
		Z:          p.Target.Z,
		Yaw:        p.Yaw,
		Pitch:      p.Pitch,
	})
	if err != nil {
		return fmt.Errorf("send teleport %d: %w", p.ID, err)
	}
	return nil
}

// updateAwaitingTeleport 返回是否还有未确认的传送, 太久没确认就重发
func (v *Validator) updateAwaitingTeleport() (bool, error) {
	if v.pending == nil {
		v.awaitingTime = v.tickCount
		return false, nil
	}
	if v.tickCount-v.awaitingTime > TeleportResendTicks {
		v.awaitingTime = v.tickCount
		return true, v.sendTeleport()
	}
	return true, nil
}

// HandleTeleportConfirm resolves the outstanding teleport when id matches it.
// Any other id is ignored.
func (v *Validator) HandleTeleportConfirm(id int32) error {
	if v.pending == nil || id != v.pending.ID {
		return nil
	}
	target := v.pending.Target
	v.pos = target
	v.firstGood = target
	v.lastGood = target
	v.vel = physics.Vec3{}
	v.knownMoves = v.receivedMoves
	v.pending = nil
	return nil
}

// HandleMove validates one serverbound movement packet.
func (v *Validator) HandleMove(m *protocol.MovePlayer) error {
	if m.HasPos && !(physics.Vec3{X: m.X, Y: m.Y, Z: m.Z}).IsFinite() {
		return kick.InvalidPlayerMovement
	}
	if m.HasRot && (!isFinite32(m.Yaw) || !isFinite32(m.Pitch)) {
		return kick.InvalidPlayerMovement
	}

	if v.tickCount == 0 {
		v.resetPosition()
	}
	if awaiting, err := v.updateAwaitingTeleport(); awaiting || err != nil {
		return err
	}

	target := v.pos
	if m.HasPos {
		target = physics.Vec3{X: clampHorizontal(m.X), Y: clampVertical(m.Y), Z: clampHorizontal(m.Z)}
	}
	yaw, pitch := v.yaw, v.pitch
	if m.HasRot {
		yaw, pitch = wrapDegrees(m.Yaw), wrapDegrees(m.Pitch)
	}

	ab := v.abilities()
	if ab.Passenger {
		v.yaw, v.pitch = yaw, pitch
		return nil
	}

	distSq := target.Sub(v.firstGood).LengthSqr()
	if ab.Sleeping {
		if distSq > 1 {
			return v.Teleport(v.pos, v.yaw, v.pitch)
		}
		return nil
	}

	v.receivedMoves++
	n := v.receivedMoves - v.knownMoves
	if n > MaxPacketsPerTick {
		n = 1
	}
	if m.HasPos && !v.exempt {
		budget := MoveBudget
		if ab.Gliding {
			budget = GlideMoveBudget
		}
		if distSq-v.vel.LengthSqr() > budget*float64(n) {
			v.log.Warn().Float64("dist_sq", distSq).Int("packets", n).Msg("player moved too quickly")
			return v.Teleport(v.pos, v.yaw, v.pitch)
		}
	}

	start := v.pos
	dims := physics.PlayerDimensions
	startBox := dims.At(start)
	resolved, _ := physics.ResolveMovement(start, target.Sub(start), dims, v.world)
	dx, dz := target.X-resolved.X, target.Z-resolved.Z
	movedWrongly := dx*dx+dz*dz > MovedWronglyThreshold && !ab.Creative && !ab.Spectator

	if !ab.NoPhysics {
		startColliding := physics.CollidesWithBlock(startBox, v.world)
		if (movedWrongly && !startColliding) || v.collidesWithNew(startBox, dims.At(target)) {
			v.log.Warn().
				Float64("x", target.X).Float64("y", target.Y).Float64("z", target.Z).
				Msg("player moved wrongly")
			return v.Teleport(start, yaw, pitch)
		}
	}

	dy := target.Y - v.lastGood.Y
	v.pos = target
	v.yaw, v.pitch = yaw, pitch
	v.onGround = m.OnGround
	v.floating = dy >= FloatEpsilon && !ab.Falling && !v.flightJustified(ab) &&
		physics.NoBlocksAround(dims.At(target), v.world)
	v.lastGood = target
	return nil
}

// collidesWithNew 判断目标位置是否碰到了起点时没有重叠的方块
func (v *Validator) collidesWithNew(from, to physics.AABB) bool {
	if physics.CollidesWithBlock(from, v.world) {
		return false
	}
	return physics.CollidesWithBlock(to.Inflate(-1e-5), v.world)
}

func clampHorizontal(d float64) float64 {
	return math.Max(-MaxHorizontal, math.Min(MaxHorizontal, d))
}

func clampVertical(d float64) float64 {
	return math.Max(-MaxVertical, math.Min(MaxVertical, d))
}

func wrapDegrees(f float32) float32 {
	w := float32(math.Mod(float64(f), 360))
	if w >= 180 {
		w -= 360
	}
	if w < -180 {
		w += 360
	}
	return w
}

func isFinite32(f float32) bool {
	return !math.IsNaN(float64(f)) && !math.IsInf(float64(f), 0)
}
