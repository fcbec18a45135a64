package physics

import "math"

// BlockStore answers the one world question collision needs.
type BlockStore interface {
	IsSolid(x, y, z int) bool
}

type Vec3 struct {
	X float64
	Y float64
	Z float64
}

func (v Vec3) Add(o Vec3) Vec3 { return Vec3{X: v.X + o.X, Y: v.Y + o.Y, Z: v.Z + o.Z} }
func (v Vec3) Sub(o Vec3) Vec3 { return Vec3{X: v.X - o.X, Y: v.Y - o.Y, Z: v.Z - o.Z} }

func (v Vec3) LengthSqr() float64 { return v.X*v.X + v.Y*v.Y + v.Z*v.Z }

func (v Vec3) IsFinite() bool {
	for _, c := range []float64{v.X, v.Y, v.Z} {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	return true
}

type AABB struct {
	MinX float64
	MinY float64
	MinZ float64
	MaxX float64
	MaxY float64
	MaxZ float64
}

// Dimensions is an entity footprint: width on X/Z, height on Y.
type Dimensions struct {
	Width  float64
	Height float64
}

var PlayerDimensions = Dimensions{Width: PlayerWidth, Height: PlayerHeight}

func (d Dimensions) At(pos Vec3) AABB {
	hw := d.Width / 2
	return AABB{
		MinX: pos.X - hw,
		MinY: pos.Y,
		MinZ: pos.Z - hw,
		MaxX: pos.X + hw,
		MaxY: pos.Y + d.Height,
		MaxZ: pos.Z + hw,
	}
}

func PlayerAABB(x, y, z float64) AABB {
	return PlayerDimensions.At(Vec3{X: x, Y: y, Z: z})
}

func (a AABB) Inflate(d float64) AABB {
	return AABB{
		MinX: a.MinX - d, MinY: a.MinY - d, MinZ: a.MinZ - d,
		MaxX: a.MaxX + d, MaxY: a.MaxY + d, MaxZ: a.MaxZ + d,
	}
}

// ExpandDown stretches the box downward by d.
func (a AABB) ExpandDown(d float64) AABB {
	a.MinY -= d
	return a
}

func CollidesWithBlock(aabb AABB, blockStore BlockStore) bool {
	if blockStore == nil {
		return false
	}

	minX := floorForMin(aabb.MinX)
	maxX := floorForMax(aabb.MaxX)
	minY := floorForMin(aabb.MinY)
	maxY := floorForMax(aabb.MaxY)
	minZ := floorForMin(aabb.MinZ)
	maxZ := floorForMax(aabb.MaxZ)

	for y := minY; y <= maxY; y++ {
		for x := minX; x <= maxX; x++ {
			for z := minZ; z <= maxZ; z++ {
				if !blockStore.IsSolid(x, y, z) {
					continue
				}
				block := AABB{
					MinX: float64(x),
					MinY: float64(y),
					MinZ: float64(z),
					MaxX: float64(x + 1),
					MaxY: float64(y + 1),
					MaxZ: float64(z + 1),
				}
				if intersects(aabb, block) {
					return true
				}
			}
		}
	}

	return false
}

// NoBlocksAround reports whether nothing solid touches the box inflated by
// SupportInflate and stretched SupportProbeDepth downward.
func NoBlocksAround(box AABB, blockStore BlockStore) bool {
	return !CollidesWithBlock(box.Inflate(SupportInflate).ExpandDown(SupportProbeDepth), blockStore)
}

// ResolveMovement moves a box of the given dimensions from pos by delta,
// clipping each axis (Y, X, Z) against solid blocks. Clipped axes get zero
// velocity in the returned delta.
func ResolveMovement(pos, delta Vec3, dims Dimensions, blockStore BlockStore) (Vec3, Vec3) {
	newPos := pos
	newVel := delta

	var moved float64
	moved, newVel.Y = resolveAxis(dims.At(newPos), axisY, delta.Y, blockStore)
	newPos.Y += moved
	moved, newVel.X = resolveAxis(dims.At(newPos), axisX, delta.X, blockStore)
	newPos.X += moved
	moved, newVel.Z = resolveAxis(dims.At(newPos), axisZ, delta.Z, blockStore)
	newPos.Z += moved

	return newPos, newVel
}

type axis int

const (
	axisX axis = iota
	axisY
	axisZ
)

// span returns the min/max of box along a.
func (a AABB) span(ax axis) (float64, float64) {
	switch ax {
	case axisX:
		return a.MinX, a.MaxX
	case axisY:
		return a.MinY, a.MaxY
	default:
		return a.MinZ, a.MaxZ
	}
}

// resolveAxis returns how far box can travel along ax and the remaining
// velocity on that axis (zero when clipped).
func resolveAxis(box AABB, ax axis, delta float64, blockStore BlockStore) (float64, float64) {
	lo, hi := box.span(ax)
	if blockStore == nil || nearlyZero(delta) {
		return delta, delta
	}

	// the two axes perpendicular to ax
	var p1, p2 axis
	switch ax {
	case axisX:
		p1, p2 = axisY, axisZ
	case axisY:
		p1, p2 = axisX, axisZ
	default:
		p1, p2 = axisX, axisY
	}
	p1lo, p1hi := box.span(p1)
	p2lo, p2hi := box.span(p2)
	minA, maxA := floorForMin(p1lo), floorForMax(p1hi)
	minB, maxB := floorForMin(p2lo), floorForMax(p2hi)

	solidAt := func(c, a, b int) bool {
		switch ax {
		case axisX:
			return blockStore.IsSolid(c, a, b)
		case axisY:
			return blockStore.IsSolid(a, c, b)
		default:
			return blockStore.IsSolid(a, b, c)
		}
	}

	allowed := delta
	if delta > 0 {
		start := int(math.Floor(hi))
		end := int(math.Floor(hi + delta))
		for c := start; c <= end; c++ {
			for a := minA; a <= maxA; a++ {
				for b := minB; b <= maxB; b++ {
					if !solidAt(c, a, b) {
						continue
					}
					if candidate := float64(c) - hi; candidate < allowed {
						allowed = candidate
					}
				}
			}
		}
	} else {
		start := int(math.Floor(lo + delta))
		end := int(math.Floor(lo - CollisionAxisTolerance))
		for c := end; c >= start; c-- {
			for a := minA; a <= maxA; a++ {
				for b := minB; b <= maxB; b++ {
					if !solidAt(c, a, b) {
						continue
					}
					if candidate := float64(c+1) - lo; candidate > allowed {
						allowed = candidate
					}
				}
			}
		}
	}

	if !nearlyEqual(allowed, delta) {
		return allowed, 0
	}
	return allowed, delta
}

func floorForMin(v float64) int {
	return int(math.Floor(v + CollisionAxisTolerance))
}

func floorForMax(v float64) int {
	return int(math.Floor(v - CollisionAxisTolerance))
}

func intersects(a, b AABB) bool {
	return a.MinX < b.MaxX &&
		a.MaxX > b.MinX &&
		a.MinY < b.MaxY &&
		a.MaxY > b.MinY &&
		a.MinZ < b.MaxZ &&
		a.MaxZ > b.MinZ
}

func nearlyZero(v float64) bool {
	return math.Abs(v) <= CollisionAxisTolerance
}

func nearlyEqual(a, b float64) bool {
	return math.Abs(a-b) <= CollisionAxisTolerance
}
