package cache

import (
	"crypto/sha256"
	"slices"

	"voxmap/internal/coord"
)

// TileHash folds the hashes of the given chunks, in canonical chunk order,
// into one digest. A tile with no chunks gets the digest of empty input,
// which is a valid hash of its own. known is false when any chunk has no
// usable hash; the returned hash is then meaningless.
func TileHash(chunks []coord.ChunkCoord, hashes ChunkHashes) (hash []byte, known bool) {
	sorted := slices.Clone(chunks)
	slices.SortFunc(sorted, coord.ChunkCoord.Compare)

	h := sha256.New()
	for _, c := range sorted {
		chunkHash, err := hashes.ChunkHash(c)
		if err != nil {
			return nil, false
		}
		h.Write(chunkHash)
	}
	return h.Sum(nil), true
}
