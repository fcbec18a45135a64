package world

const (
	DimensionOverworld = "minecraft:overworld"
	DimensionNether    = "minecraft:the_nether"
	DimensionEnd       = "minecraft:the_end"
)

type DimensionBounds struct {
	MinY   int
	Height int
}

// MaxY is the highest buildable block row.
func (b DimensionBounds) MaxY() int {
	return b.MinY + b.Height - 1
}

func (b DimensionBounds) Contains(y int) bool {
	return y >= b.MinY && y <= b.MaxY()
}

func (b DimensionBounds) sectionCount() int {
	return (b.Height + ChunkSectionHeight - 1) / ChunkSectionHeight
}

func VanillaDimensionBounds(name string) (DimensionBounds, bool) {
	switch name {
	case DimensionOverworld:
		return DimensionBounds{MinY: -64, Height: 384}, true
	case DimensionNether, DimensionEnd:
		return DimensionBounds{MinY: 0, Height: 256}, true
	default:
		return DimensionBounds{}, false
	}
}
