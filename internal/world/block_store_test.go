package world

import "testing"

func newOverworld(t *testing.T) *BlockStore {
	t.Helper()
	bs, err := NewBlockStore(DimensionOverworld)
	if err != nil {
		t.Fatalf("NewBlockStore failed: %v", err)
	}
	return bs
}

func TestNewBlockStoreUnknownDimension(t *testing.T) {
	if _, err := NewBlockStore("minecraft:custom"); err == nil {
		t.Fatalf("expected error for unknown dimension")
	}
	if _, err := NewFlatBlockStore(DimensionNether, 300); err == nil {
		t.Fatalf("expected error for floor outside bounds")
	}
}

func TestBlockStoreSetAndUnloadChunk(t *testing.T) {
	bs := newOverworld(t)

	if !bs.SetSolid(1, 64, 2, true) {
		t.Fatalf("SetSolid should succeed inside bounds")
	}
	if !bs.IsSolid(1, 64, 2) {
		t.Fatalf("IsSolid(1,64,2) should be true")
	}
	if bs.IsSolid(1, 65, 2) {
		t.Fatalf("IsSolid(1,65,2) should be false")
	}
	if !bs.IsLoaded(0, 0) || bs.LoadedChunkCount() != 1 {
		t.Fatalf("chunk (0,0) should be loaded, count = %d", bs.LoadedChunkCount())
	}

	bs.UnloadChunk(0, 0)
	if bs.IsSolid(1, 64, 2) {
		t.Fatalf("IsSolid should be false after unload")
	}
	if bs.LoadedChunkCount() != 0 {
		t.Fatalf("LoadedChunkCount() = %d, want 0", bs.LoadedChunkCount())
	}
}

func TestBlockStoreNegativeCoordinatesAndEdgeCases(t *testing.T) {
	bs := newOverworld(t)

	// (-1,-64,-1) 位于 chunk (-1,-1) 的 local (15,0,15)
	if !bs.SetSolid(-1, -64, -1, true) {
		t.Fatalf("SetSolid(-1,-64,-1) failed")
	}
	if !bs.IsLoaded(-1, -1) {
		t.Fatalf("chunk (-1,-1) should be loaded")
	}
	if !bs.IsSolid(-1, -64, -1) {
		t.Fatalf("IsSolid should be true at (-1,-64,-1)")
	}
	if bs.IsSolid(15, -64, 15) {
		t.Fatalf("neighbouring chunk must stay empty")
	}

	if bs.SetSolid(0, -65, 0, true) {
		t.Fatalf("SetSolid below minimum Y should fail")
	}
	if bs.IsSolid(-1, -65, -1) || bs.IsSolid(-1, 320, -1) {
		t.Fatalf("IsSolid should be false outside Y bounds")
	}
}

func TestBlockStoreClearDoesNotAllocate(t *testing.T) {
	bs := newOverworld(t)
	bs.SetSolid(5, 5, 5, false)
	if bs.LoadedChunkCount() != 0 {
		t.Fatalf("clearing an empty block should not create chunks")
	}
}

func TestFlatBlockStore(t *testing.T) {
	bs, err := NewFlatBlockStore(DimensionOverworld, 63)
	if err != nil {
		t.Fatalf("NewFlatBlockStore failed: %v", err)
	}

	tests := []struct {
		name    string
		x, y, z int
		want    bool
	}{
		{"地表", 100, 63, -100, true},
		{"地下", -7, 0, 3, true},
		{"地表之上", 0, 64, 0, false},
		{"世界底部之下", 0, -65, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := bs.IsSolid(tt.x, tt.y, tt.z); got != tt.want {
				t.Errorf("IsSolid(%d,%d,%d) = %v, 期望 %v", tt.x, tt.y, tt.z, got, tt.want)
			}
		})
	}

	bs.SetSolid(0, 63, 0, false)
	if bs.IsSolid(0, 63, 0) {
		t.Fatalf("cleared floor block should not be solid")
	}
	bs.SetSolid(0, 63, 0, true)
	if !bs.IsSolid(0, 63, 0) {
		t.Fatalf("restored floor block should be solid")
	}
}

func TestFill(t *testing.T) {
	bs := newOverworld(t)
	n := bs.Fill(2, 70, 2, 0, 71, 0, true)
	if n != 18 {
		t.Fatalf("Fill() = %d, want 18", n)
	}
	if !bs.IsSolid(1, 71, 1) || bs.IsSolid(3, 70, 0) {
		t.Fatalf("Fill covered the wrong region")
	}
}
