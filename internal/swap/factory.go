package swap

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"voxmap/internal/coord"
)

var ErrListExists = errors.New("tile list already exists")

// Factory hands out tile lists below a single scratch directory. The
// directory is wiped when the factory is created; lists never outlive a run.
type Factory struct {
	mu      sync.Mutex
	baseDir string
	counter int
	lists   map[string]struct{}
	logger  *zap.Logger
}

func NewFactory(baseDir string, logger *zap.Logger) (*Factory, error) {
	if err := os.RemoveAll(baseDir); err != nil {
		return nil, fmt.Errorf("failed to clear swap directory: %w", err)
	}
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create swap directory: %w", err)
	}
	return &Factory{
		baseDir: baseDir,
		lists:   make(map[string]struct{}),
		logger:  logger,
	}, nil
}

func (f *Factory) BaseDir() string {
	return f.baseDir
}

// CreateList creates a list with a generated name (autoList0, autoList1, ...).
func (f *Factory) CreateList() (*TileList, error) {
	f.mu.Lock()
	var dir string
	for {
		dir = filepath.Join(f.baseDir, "autoList"+strconv.Itoa(f.counter))
		f.counter++
		if _, err := os.Stat(dir); errors.Is(err, os.ErrNotExist) {
			break
		}
	}
	f.lists[dir] = struct{}{}
	f.mu.Unlock()

	return newTileList(dir)
}

// CreateNamedList fails with ErrListExists if name is taken.
func (f *Factory) CreateNamedList(name string) (*TileList, error) {
	dir := filepath.Join(f.baseDir, name)
	if _, err := os.Stat(dir); err == nil {
		return nil, fmt.Errorf("%w: %s", ErrListExists, dir)
	}
	f.mu.Lock()
	f.lists[dir] = struct{}{}
	f.mu.Unlock()
	return newTileList(dir)
}

// Release deletes a list's backing directory. The list must not be used
// afterwards.
func (f *Factory) Release(l *TileList) {
	if l == nil {
		return
	}
	f.mu.Lock()
	delete(f.lists, l.dir)
	f.mu.Unlock()
	if err := os.RemoveAll(l.dir); err != nil {
		f.logger.Warn("Failed to remove tile list", zap.String("dir", l.dir), zap.Error(err))
	}
}

// Close removes every list still alive and then the scratch directory.
func (f *Factory) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	var err error
	for dir := range f.lists {
		err = multierr.Append(err, os.RemoveAll(dir))
	}
	f.lists = make(map[string]struct{})
	err = multierr.Append(err, os.RemoveAll(f.baseDir))
	if err != nil {
		return fmt.Errorf("failed to remove swap directory: %w", err)
	}
	return nil
}

// NextZoomTiles returns the parents of every tile in prev.
func NextZoomTiles(f *Factory, prev *TileList) (*TileList, error) {
	next, err := f.CreateList()
	if err != nil {
		return nil, err
	}
	err = prev.ForEach(func(c coord.TileCoord) error {
		return next.Add(c.Parent())
	})
	if err != nil {
		return nil, err
	}
	return next, nil
}

// Trim returns a list holding at most maxTiles members of in. maxTiles <= 0
// means unlimited, in which case in itself is returned.
func Trim(f *Factory, in *TileList, maxTiles int) (*TileList, error) {
	if maxTiles <= 0 || in.Size() <= maxTiles {
		return in, nil
	}
	out, err := f.CreateList()
	if err != nil {
		return nil, err
	}
	errFull := errors.New("full")
	err = in.ForEach(func(c coord.TileCoord) error {
		if out.Size() >= maxTiles {
			return errFull
		}
		return out.Add(c)
	})
	if err != nil && !errors.Is(err, errFull) {
		return nil, err
	}
	f.logger.Info("Trimmed tile list", zap.Int("from", in.Size()), zap.Int("to", out.Size()))
	return out, nil
}
