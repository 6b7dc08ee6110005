package engine

// Splitmix-style avalanche. Cheap, stateless, good enough for per-cell rolls.
func mix64(z uint64) uint64 {
	z += 0x9e3779b97f4a7c15
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}

func hash2(seed int64, x, y int) uint64 {
	ux := uint64(uint32(int32(x)))
	uy := uint64(uint32(int32(y)))
	v := uint64(seed) ^ (ux * 0x9e3779b97f4a7c15) ^ (uy * 0xbf58476d1ce4e5b9)
	return mix64(v)
}

func hash3(seed int64, x, y int, tick uint64) uint64 {
	ux := uint64(uint32(int32(x)))
	uy := uint64(uint32(int32(y)))
	v := uint64(seed) ^ (ux * 0x9e3779b97f4a7c15) ^ (uy * 0xc2b2ae3d27d4eb4f) ^ (tick * 0xbf58476d1ce4e5b9)
	return mix64(v)
}

// Domain salts keep the decay and movement rolls of the same cell and tick
// independent of each other.
const (
	saltDecay int64 = 0x5f646563
	saltMove  int64 = 0x5f6d6f76
)
