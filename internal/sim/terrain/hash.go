package terrain

// Hash2 is a stateless per-coordinate hash (splitmix64 finalizer). Generation uses it so
// a tile's deposits depend only on the seed and its coordinates.
func Hash2(seed int64, x, y int) uint64 {
	ux := uint64(uint32(int32(x)))
	uy := uint64(uint32(int32(y)))
	v := uint64(seed) ^ (ux * 0x9e3779b97f4a7c15) ^ (uy * 0xbf58476d1ce4e5b9)
	return mix64(v)
}

// Hash3 adds a salt, typically the index of the resource being rolled.
func Hash3(seed int64, x, y, salt int) uint64 {
	ux := uint64(uint32(int32(x)))
	uy := uint64(uint32(int32(y)))
	us := uint64(uint32(int32(salt)))
	v := uint64(seed) ^ (ux * 0x9e3779b97f4a7c15) ^ (uy * 0xbf58476d1ce4e5b9) ^ (us * 0xc2b2ae3d27d4eb4f)
	return mix64(v)
}

func mix64(z uint64) uint64 {
	z += 0x9e3779b97f4a7c15
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}

// unit maps a hash to [0,1).
func unit(h uint64) float64 {
	return float64(h>>11) / (1 << 53)
}
