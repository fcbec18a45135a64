package world

import (
	"fmt"
	"sync"
)

const (
	ChunkSectionHeight = 16
	BlocksPerSection   = 16 * 16 * 16
)

type ChunkPos struct {
	X int32
	Z int32
}

// ChunkSection keeps one solid bit per block.
type ChunkSection struct {
	solid [BlocksPerSection / 64]uint64
}

func (s *ChunkSection) get(i int) bool {
	return s.solid[i>>6]&(1<<(uint(i)&63)) != 0
}

func (s *ChunkSection) set(i int, v bool) {
	if v {
		s.solid[i>>6] |= 1 << (uint(i) & 63)
	} else {
		s.solid[i>>6] &^= 1 << (uint(i) & 63)
	}
}

type Chunk struct {
	Sections []*ChunkSection
}

// BlockStore is the collision view of a dimension. Blocks at or below the
// floor row are solid everywhere unless explicitly cleared.
type BlockStore struct {
	mu       sync.RWMutex
	bounds   DimensionBounds
	floorY   int
	hasFloor bool
	chunks   map[ChunkPos]*Chunk
	cleared  map[[3]int]struct{}
}

func NewBlockStore(dimension string) (*BlockStore, error) {
	bounds, ok := VanillaDimensionBounds(dimension)
	if !ok {
		return nil, fmt.Errorf("unknown dimension %q", dimension)
	}
	return &BlockStore{
		bounds:  bounds,
		chunks:  make(map[ChunkPos]*Chunk),
		cleared: make(map[[3]int]struct{}),
	}, nil
}

// NewFlatBlockStore returns a store with a solid floor filling every row
// from the bottom of the dimension up to floorY.
func NewFlatBlockStore(dimension string, floorY int) (*BlockStore, error) {
	bs, err := NewBlockStore(dimension)
	if err != nil {
		return nil, err
	}
	if !bs.bounds.Contains(floorY) {
		return nil, fmt.Errorf("floor y %d outside dimension bounds [%d, %d]", floorY, bs.bounds.MinY, bs.bounds.MaxY())
	}
	bs.floorY = floorY
	bs.hasFloor = true
	return bs, nil
}

func (bs *BlockStore) Bounds() DimensionBounds {
	return bs.bounds
}

func (bs *BlockStore) locate(x, y, z int) (ChunkPos, int, int) {
	pos := ChunkPos{X: int32(floorDiv16(x)), Z: int32(floorDiv16(z))}
	sectionIndex := (y - bs.bounds.MinY) / ChunkSectionHeight
	localY := (y - bs.bounds.MinY) % ChunkSectionHeight
	blockIndex := localY*16*16 + floorMod16(z)*16 + floorMod16(x)
	return pos, sectionIndex, blockIndex
}

// SetSolid marks a single block. It reports false outside the dimension.
func (bs *BlockStore) SetSolid(x, y, z int, solid bool) bool {
	if !bs.bounds.Contains(y) {
		return false
	}
	pos, sectionIndex, blockIndex := bs.locate(x, y, z)

	bs.mu.Lock()
	defer bs.mu.Unlock()

	key := [3]int{x, y, z}
	if bs.hasFloor && y <= bs.floorY {
		if solid {
			delete(bs.cleared, key)
		} else {
			bs.cleared[key] = struct{}{}
		}
		return true
	}

	chunk, ok := bs.chunks[pos]
	if !ok {
		if !solid {
			return true
		}
		chunk = &Chunk{Sections: make([]*ChunkSection, bs.bounds.sectionCount())}
		bs.chunks[pos] = chunk
	}
	section := chunk.Sections[sectionIndex]
	if section == nil {
		if !solid {
			return true
		}
		section = &ChunkSection{}
		chunk.Sections[sectionIndex] = section
	}
	section.set(blockIndex, solid)
	return true
}

// Fill sets every block in the inclusive box.
func (bs *BlockStore) Fill(x1, y1, z1, x2, y2, z2 int, solid bool) int {
	if x1 > x2 {
		x1, x2 = x2, x1
	}
	if y1 > y2 {
		y1, y2 = y2, y1
	}
	if z1 > z2 {
		z1, z2 = z2, z1
	}
	n := 0
	for y := y1; y <= y2; y++ {
		for x := x1; x <= x2; x++ {
			for z := z1; z <= z2; z++ {
				if bs.SetSolid(x, y, z, solid) {
					n++
				}
			}
		}
	}
	return n
}

func (bs *BlockStore) UnloadChunk(chunkX, chunkZ int32) {
	bs.mu.Lock()
	defer bs.mu.Unlock()
	delete(bs.chunks, ChunkPos{X: chunkX, Z: chunkZ})
}

func (bs *BlockStore) IsLoaded(chunkX, chunkZ int32) bool {
	bs.mu.RLock()
	defer bs.mu.RUnlock()
	_, ok := bs.chunks[ChunkPos{X: chunkX, Z: chunkZ}]
	return ok
}

func (bs *BlockStore) LoadedChunkCount() int {
	bs.mu.RLock()
	defer bs.mu.RUnlock()
	return len(bs.chunks)
}

func (bs *BlockStore) IsSolid(x, y, z int) bool {
	if !bs.bounds.Contains(y) {
		return false
	}
	pos, sectionIndex, blockIndex := bs.locate(x, y, z)

	bs.mu.RLock()
	defer bs.mu.RUnlock()

	if bs.hasFloor && y <= bs.floorY {
		_, cleared := bs.cleared[[3]int{x, y, z}]
		return !cleared
	}
	chunk, ok := bs.chunks[pos]
	if !ok {
		return false
	}
	section := chunk.Sections[sectionIndex]
	if section == nil {
		return false
	}
	return section.get(blockIndex)
}

func floorDiv16(v int) int {
	q := v / 16
	if v < 0 && v%16 != 0 {
		q--
	}
	return q
}

func floorMod16(v int) int {
	m := v % 16
	if m < 0 {
		m += 16
	}
	return m
}
