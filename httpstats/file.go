package httpstats

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
)

// Segment file layout, little endian:
//
//	magic      [8]byte  "HTTPSTAT"
//	version    uint32
//	fields     uint32
//	run id     [16]byte
//	names      fields x [16]byte, zero padded
//	values     fields x uint64
const (
	segmentMagic   = "HTTPSTAT"
	segmentVersion = 1
	fieldNameSize  = 16

	segmentHeaderSize = 8 + 4 + 4 + 16
	SegmentFileSize   = segmentHeaderSize + len(Fields)*(fieldNameSize+8)
)

var ErrBadSegment = errors.New("malformed segment file")

// Compile-time check
var _ Exposer = (*FileExposer)(nil)

// FileExposer writes each segment to <dir>/<instance>/<segment name>.
// Values are refreshed on Flush; the record path never touches the file.
type FileExposer struct {
	dir   string
	runID uuid.UUID

	mu       sync.Mutex
	segments map[*Segment]string
}

// NewFileExposer returns an exposer rooted at dir. Each exposer carries a
// fresh run id so readers can tell a restarted process from a stalled one.
func NewFileExposer(dir string) *FileExposer {
	return &FileExposer{
		dir:      dir,
		runID:    uuid.New(),
		segments: make(map[*Segment]string),
	}
}

// RunID identifies this exposer in every file it writes.
func (f *FileExposer) RunID() uuid.UUID { return f.runID }

// Path returns the file a segment is published to.
func (f *FileExposer) Path(seg *Segment) string {
	return filepath.Join(f.dir, seg.Instance(), seg.Name())
}

func (f *FileExposer) Publish(seg *Segment) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.segments[seg]; ok {
		return fmt.Errorf("segment %s already published", seg.Name())
	}

	path := f.Path(seg)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create segment directory: %w", err)
	}
	if err := f.write(path, seg.Values()); err != nil {
		return err
	}

	f.segments[seg] = path
	return nil
}

func (f *FileExposer) Unpublish(seg *Segment) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	path, ok := f.segments[seg]
	if !ok {
		return nil
	}
	delete(f.segments, seg)

	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove segment file %s: %w", path, err)
	}
	return nil
}

// Flush rewrites every published segment with its current values.
func (f *FileExposer) Flush() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	var errs []error
	for seg, path := range f.segments {
		if err := f.write(path, seg.Values()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// write replaces path atomically so readers never see a torn block.
func (f *FileExposer) write(path string, values [len(Fields)]uint64) error {
	buf := encodeSegment(f.runID, values)

	tmp, err := os.CreateTemp(filepath.Dir(path), ".seg-*")
	if err != nil {
		return fmt.Errorf("failed to create segment file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(buf); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write segment file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close segment file: %w", err)
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to chmod segment file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to name segment file %s: %w", path, err)
	}
	return nil
}

func encodeSegment(runID uuid.UUID, values [len(Fields)]uint64) []byte {
	buf := make([]byte, 0, SegmentFileSize)
	buf = append(buf, segmentMagic...)
	buf = binary.LittleEndian.AppendUint32(buf, segmentVersion)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(Fields)))
	buf = append(buf, runID[:]...)
	for _, fld := range Fields {
		var name [fieldNameSize]byte
		copy(name[:], fld.Name)
		buf = append(buf, name[:]...)
	}
	for _, v := range values {
		buf = binary.LittleEndian.AppendUint64(buf, v)
	}
	return buf
}

// SegmentFile is the decoded content of a published segment file.
type SegmentFile struct {
	RunID  uuid.UUID
	Names  []string
	Values []uint64
}

// Value returns the counter named name, e.g. "resp_4xx".
func (s SegmentFile) Value(name string) (uint64, bool) {
	for i, n := range s.Names {
		if n == name {
			return s.Values[i], true
		}
	}
	return 0, false
}

// ReadSegmentFile decodes a segment file written by FileExposer.
func ReadSegmentFile(path string) (SegmentFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return SegmentFile{}, err
	}
	return decodeSegment(data)
}

func decodeSegment(data []byte) (SegmentFile, error) {
	if len(data) < segmentHeaderSize || string(data[:8]) != segmentMagic {
		return SegmentFile{}, ErrBadSegment
	}
	if v := binary.LittleEndian.Uint32(data[8:12]); v != segmentVersion {
		return SegmentFile{}, fmt.Errorf("%w: unsupported version %d", ErrBadSegment, v)
	}
	n := int(binary.LittleEndian.Uint32(data[12:16]))
	if len(data) != segmentHeaderSize+n*(fieldNameSize+8) {
		return SegmentFile{}, fmt.Errorf("%w: size %d does not match %d fields", ErrBadSegment, len(data), n)
	}

	var out SegmentFile
	copy(out.RunID[:], data[16:32])

	off := segmentHeaderSize
	out.Names = make([]string, n)
	for i := 0; i < n; i++ {
		out.Names[i] = string(bytes.TrimRight(data[off:off+fieldNameSize], "\x00"))
		off += fieldNameSize
	}
	out.Values = make([]uint64, n)
	for i := 0; i < n; i++ {
		out.Values[i] = binary.LittleEndian.Uint64(data[off : off+8])
		off += 8
	}
	return out, nil
}
