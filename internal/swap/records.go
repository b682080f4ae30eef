package swap

import (
	"bufio"
	"encoding"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
)

// RecordMagic prefixes every framed record: [magic:4][length:4][payload].
const RecordMagic uint32 = 0xC0DEBABE

// maxRecordLen bounds a single payload so that a corrupt length field cannot
// trigger a huge allocation.
const maxRecordLen = 64 << 20

var ErrCorrupt = errors.New("corrupt record list")

// RecordWriter appends framed records to a single file. Add may be called
// from any number of goroutines; records are queued in memory and only
// written by Flush or Close, which never run concurrently with each other.
type RecordWriter struct {
	path string

	queueMu sync.Mutex
	queue   [][]byte
	added   int

	flushMu sync.Mutex
	f       *os.File
	w       *bufio.Writer
	written int
}

// CreateRecordWriter truncates any existing file at path.
func CreateRecordWriter(path string) (*RecordWriter, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to create record list: %w", err)
	}
	return &RecordWriter{
		path: path,
		f:    f,
		w:    bufio.NewWriterSize(f, 64*1024),
	}, nil
}

func (w *RecordWriter) Path() string {
	return w.path
}

// Add serializes rec and queues it for the next flush.
func (w *RecordWriter) Add(rec encoding.BinaryMarshaler) error {
	payload, err := rec.MarshalBinary()
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}
	if len(payload) > maxRecordLen {
		return fmt.Errorf("record of %d bytes exceeds limit", len(payload))
	}

	w.queueMu.Lock()
	w.queue = append(w.queue, payload)
	w.added++
	w.queueMu.Unlock()
	return nil
}

// Size is the number of records added so far, flushed or not.
func (w *RecordWriter) Size() int {
	w.queueMu.Lock()
	defer w.queueMu.Unlock()
	return w.added
}

// Flush drains the queue to disk in dequeue order.
func (w *RecordWriter) Flush() error {
	w.flushMu.Lock()
	defer w.flushMu.Unlock()
	return w.flushLocked()
}

func (w *RecordWriter) flushLocked() error {
	if w.f == nil {
		return fmt.Errorf("record list %s is closed", w.path)
	}

	w.queueMu.Lock()
	pending := w.queue
	w.queue = nil
	w.queueMu.Unlock()

	var header [8]byte
	for _, payload := range pending {
		binary.BigEndian.PutUint32(header[0:4], RecordMagic)
		binary.BigEndian.PutUint32(header[4:8], uint32(len(payload)))
		if _, err := w.w.Write(header[:]); err != nil {
			return fmt.Errorf("failed to write record header: %w", err)
		}
		if _, err := w.w.Write(payload); err != nil {
			return fmt.Errorf("failed to write record: %w", err)
		}
		w.written++
	}
	return w.w.Flush()
}

// Close flushes outstanding records and closes the file.
func (w *RecordWriter) Close() error {
	w.flushMu.Lock()
	defer w.flushMu.Unlock()

	if w.f == nil {
		return nil
	}
	flushErr := w.flushLocked()
	closeErr := w.f.Close()
	w.f = nil
	if flushErr != nil {
		return flushErr
	}
	return closeErr
}

// RecordReader replays a file written by RecordWriter.
type RecordReader struct {
	f        *os.File
	r        *bufio.Reader
	size     int64
	position int64
}

func OpenRecordReader(path string) (*RecordReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open record list: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to stat record list: %w", err)
	}
	return &RecordReader{
		f:    f,
		r:    bufio.NewReaderSize(f, 64*1024),
		size: info.Size(),
	}, nil
}

func (r *RecordReader) HasNext() bool {
	return r.position < r.size
}

// Read decodes the next record into rec. A bad magic number or a truncated
// frame yields an error wrapping ErrCorrupt.
func (r *RecordReader) Read(rec encoding.BinaryUnmarshaler) error {
	var header [8]byte
	if _, err := io.ReadFull(r.r, header[:]); err != nil {
		return fmt.Errorf("%w: header at offset %d: %v", ErrCorrupt, r.position, err)
	}
	if magic := binary.BigEndian.Uint32(header[0:4]); magic != RecordMagic {
		return fmt.Errorf("%w: bad magic %#x at offset %d", ErrCorrupt, magic, r.position)
	}
	length := binary.BigEndian.Uint32(header[4:8])
	if length > maxRecordLen || int64(length) > r.size-r.position-8 {
		return fmt.Errorf("%w: record length %d at offset %d", ErrCorrupt, length, r.position)
	}

	payload := make([]byte, length)
	if _, err := io.ReadFull(r.r, payload); err != nil {
		return fmt.Errorf("%w: payload at offset %d: %v", ErrCorrupt, r.position, err)
	}
	r.position += 8 + int64(length)

	return rec.UnmarshalBinary(payload)
}

func (r *RecordReader) Close() error {
	return r.f.Close()
}
