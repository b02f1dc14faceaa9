package reflink

const (
	// A single FSCTL_DUPLICATE_EXTENTS_TO_FILE request must stay below 4 GiB
	maxCloneChunk = 4 << 30

	// largest ReFS cluster, used when the volume reports none
	maxClusterSize = 64 << 10
)

// cloneChunks splits a block clone of size bytes into request lengths. Each
// request is below 4 GiB and a multiple of cluster; the lengths add up to
// size rounded up to the next cluster boundary, so the last request may reach
// past the end of the file. A cluster of 0 means no alignment is required.
func cloneChunks(size, cluster int64) []int64 {
	total, chunk := size, int64(maxCloneChunk-maxClusterSize)
	if cluster != 0 {
		total = roundUp(size, cluster)
		chunk = maxCloneChunk - cluster
	}

	var chunks []int64
	for offset := int64(0); offset < total; {
		n := min(total-offset, chunk)
		chunks = append(chunks, n)
		offset += n
	}
	return chunks
}

// roundUp rounds n up to a multiple of m, which must be a power of two
func roundUp(n, m int64) int64 {
	return (n + m - 1) &^ (m - 1)
}
