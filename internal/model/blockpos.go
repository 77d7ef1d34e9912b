package model

// ChunkLocalBlockPos addresses a block within its containing chunk: X/Z in
// 0..15, Y as the absolute world height. Used as a map key for
// block-entities, so it must stay comparable (no slices/pointers).
type ChunkLocalBlockPos struct {
	X, Y, Z int32
}
