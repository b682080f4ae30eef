package changelog

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"voxmap/internal/coord"
	"voxmap/internal/swap"
)

// Entry is one image file written during a run.
type Entry struct {
	Zoom int
	Tile coord.TileCoord
	Path string
}

// MarshalBinary encodes the entry as [zoom:4][x:4][y:4][path...], big-endian.
func (e *Entry) MarshalBinary() ([]byte, error) {
	buf := make([]byte, 12+len(e.Path))
	binary.BigEndian.PutUint32(buf[0:4], uint32(int32(e.Zoom)))
	binary.BigEndian.PutUint32(buf[4:8], uint32(int32(e.Tile.X)))
	binary.BigEndian.PutUint32(buf[8:12], uint32(int32(e.Tile.Y)))
	copy(buf[12:], e.Path)
	return buf, nil
}

func (e *Entry) UnmarshalBinary(data []byte) error {
	if len(data) < 12 {
		return fmt.Errorf("change entry: want at least 12 bytes, got %d", len(data))
	}
	e.Zoom = int(int32(binary.BigEndian.Uint32(data[0:4])))
	e.Tile.X = int(int32(binary.BigEndian.Uint32(data[4:8])))
	e.Tile.Y = int(int32(binary.BigEndian.Uint32(data[8:12])))
	e.Path = string(data[12:])
	return nil
}

// Log collects the files written by render and downsample workers. Record
// may be called concurrently; entries reach disk on Flush or Close.
type Log struct {
	runID   string
	records *swap.RecordWriter
	logger  *zap.Logger
}

// Open starts a new log in dir. Each run writes its own file.
func Open(dir string, logger *zap.Logger) (*Log, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create change log directory: %w", err)
	}
	runID := uuid.NewString()
	records, err := swap.CreateRecordWriter(filepath.Join(dir, "changes-"+runID+".records"))
	if err != nil {
		return nil, err
	}
	return &Log{
		runID:   runID,
		records: records,
		logger:  logger.With(zap.String("run_id", runID)),
	}, nil
}

func (l *Log) RunID() string {
	return l.runID
}

func (l *Log) Path() string {
	return l.records.Path()
}

func (l *Log) Record(zoom int, tile coord.TileCoord, path string) error {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return l.records.Add(&Entry{Zoom: zoom, Tile: tile, Path: path})
}

func (l *Log) Size() int {
	return l.records.Size()
}

func (l *Log) Flush() error {
	return l.records.Flush()
}

func (l *Log) Close() error {
	if err := l.records.Close(); err != nil {
		return err
	}
	l.logger.Debug("Change log closed", zap.String("path", l.Path()), zap.Int("entries", l.Size()))
	return nil
}

// ForEach replays a closed log in write order.
func ForEach(path string, fn func(Entry) error) error {
	r, err := swap.OpenRecordReader(path)
	if err != nil {
		return err
	}
	defer r.Close()

	for r.HasNext() {
		var e Entry
		if err := r.Read(&e); err != nil {
			return err
		}
		if err := fn(e); err != nil {
			return err
		}
	}
	return nil
}

// Export writes the path of every entry in a closed log to outPath, one per
// line. The output is zstd-compressed when outPath ends in ".zst". It returns
// the number of lines written.
func Export(recordsPath, outPath string) (n int, err error) {
	f, err := os.OpenFile(outPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return 0, fmt.Errorf("failed to create change list: %w", err)
	}
	defer func() { err = multierr.Append(err, f.Close()) }()

	var bw *bufio.Writer
	if strings.HasSuffix(outPath, ".zst") {
		enc, encErr := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if encErr != nil {
			return 0, encErr
		}
		defer func() { err = multierr.Append(err, enc.Close()) }()
		bw = bufio.NewWriterSize(enc, 128*1024)
	} else {
		bw = bufio.NewWriterSize(f, 128*1024)
	}
	defer func() { err = multierr.Append(err, bw.Flush()) }()

	err = ForEach(recordsPath, func(e Entry) error {
		if _, err := bw.WriteString(e.Path); err != nil {
			return err
		}
		n++
		return bw.WriteByte('\n')
	})
	if err != nil {
		return n, fmt.Errorf("failed to export change list: %w", err)
	}
	return n, nil
}
