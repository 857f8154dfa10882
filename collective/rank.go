package collective

// Virtualize renumbers rank so that root becomes 0.
func Virtualize(rank, root, size int) int {
	return (rank - root + size) % size
}

// Devirtualize is the inverse of Virtualize.
func Devirtualize(virtual, root, size int) int {
	return (virtual + root) % size
}
