package hashstore

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strconv"

	"voxmap/internal/coord"
)

const (
	fileMagic   uint32 = 0xCAFEBABE
	recordMagic uint32 = 0x00FEEFEE

	// A hash longer than this is taken as a misaligned read.
	maxHashLen = 1024
)

var (
	ErrCorrupt   = errors.New("corrupt region hash file")
	ErrNotHashed = errors.New("chunk has no stored hash")
)

// regionHashes is the in-memory form of one region file.
type regionHashes struct {
	region coord.RegionCoord
	hashes map[coord.ChunkCoord][]byte
}

func newRegionHashes(region coord.RegionCoord) *regionHashes {
	return &regionHashes{
		region: region,
		hashes: make(map[coord.ChunkCoord][]byte),
	}
}

func regionFileName(region coord.RegionCoord) string {
	return "r-" + strconv.FormatInt(region.X, 10) + "-" + strconv.FormatInt(region.Z, 10) + ".hashes"
}

// write stores the region atomically: a reader never sees a half-written file
// under the final name.
func (r *regionHashes) write(dir string) error {
	path := filepath.Join(dir, regionFileName(r.region))
	tmpPath := path + ".tmp"

	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("failed to create region hash file: %w", err)
	}
	w := bufio.NewWriter(f)

	if err := r.encode(w); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := w.Flush(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write region hash file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close region hash file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to commit region hash file: %w", err)
	}
	return nil
}

func (r *regionHashes) encode(w io.Writer) error {
	chunks := make([]coord.ChunkCoord, 0, len(r.hashes))
	for c := range r.hashes {
		chunks = append(chunks, c)
	}
	slices.SortFunc(chunks, coord.ChunkCoord.Compare)

	var buf [8]byte
	put32 := func(v uint32) error {
		binary.BigEndian.PutUint32(buf[:4], v)
		_, err := w.Write(buf[:4])
		return err
	}
	put64 := func(v int64) error {
		binary.BigEndian.PutUint64(buf[:8], uint64(v))
		_, err := w.Write(buf[:8])
		return err
	}

	if err := put32(fileMagic); err != nil {
		return err
	}
	if err := put32(uint32(len(chunks))); err != nil {
		return err
	}
	for _, c := range chunks {
		hash := r.hashes[c]
		if err := put32(recordMagic); err != nil {
			return err
		}
		if err := put64(c.X); err != nil {
			return err
		}
		if err := put64(c.Z); err != nil {
			return err
		}
		if err := put32(uint32(len(hash))); err != nil {
			return err
		}
		if _, err := w.Write(hash); err != nil {
			return err
		}
	}
	return nil
}

// readRegionHashes loads a region file. A missing file returns an error
// satisfying errors.Is(err, os.ErrNotExist); any structural problem wraps
// ErrCorrupt.
func readRegionHashes(dir string, region coord.RegionCoord) (*regionHashes, error) {
	f, err := os.Open(filepath.Join(dir, regionFileName(region)))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := newRegionHashes(region)
	if err := r.decode(bufio.NewReader(f)); err != nil {
		return nil, fmt.Errorf("%s: %w", region, err)
	}
	return r, nil
}

func (r *regionHashes) decode(rd io.Reader) error {
	var buf [8]byte
	get32 := func() (uint32, error) {
		if _, err := io.ReadFull(rd, buf[:4]); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
		return binary.BigEndian.Uint32(buf[:4]), nil
	}
	get64 := func() (int64, error) {
		if _, err := io.ReadFull(rd, buf[:8]); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
		return int64(binary.BigEndian.Uint64(buf[:8])), nil
	}

	magic, err := get32()
	if err != nil {
		return err
	}
	if magic != fileMagic {
		return fmt.Errorf("%w: bad file magic %#x", ErrCorrupt, magic)
	}
	count, err := get32()
	if err != nil {
		return err
	}

	for i := uint32(0); i < count; i++ {
		magic, err := get32()
		if err != nil {
			return err
		}
		if magic != recordMagic {
			return fmt.Errorf("%w: bad record magic %#x in record %d", ErrCorrupt, magic, i)
		}
		x, err := get64()
		if err != nil {
			return err
		}
		z, err := get64()
		if err != nil {
			return err
		}
		hashLen, err := get32()
		if err != nil {
			return err
		}
		if hashLen > maxHashLen {
			return fmt.Errorf("%w: hash length %d in record %d", ErrCorrupt, hashLen, i)
		}
		hash := make([]byte, hashLen)
		if _, err := io.ReadFull(rd, hash); err != nil {
			return fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
		r.hashes[coord.ChunkCoord{X: x, Z: z}] = hash
	}
	return nil
}
