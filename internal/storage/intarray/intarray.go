// Package intarray implements an append-only file store of
// length-prefixed int32 arrays, with partial in-place update/read of
// sub-ranges. Used by the train service for per-leg seat inventory.
package intarray

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/jontk/ticketd/pkg/logging"
)

const lengthPrefixSize = 4 // int32

// Store is a bulk variable-length int32-array file.
type Store struct {
	mu      sync.Mutex
	file    *os.File
	path    string
	infoLen int
	log     logging.Logger
}

// Open creates the file (zero-filled header) if absent, or opens an
// existing one in place.
func Open(path string, infoLen int, log logging.Logger) (*Store, error) {
	if log == nil {
		log = logging.NoOpLogger{}
	}
	s := &Store{path: path, infoLen: infoLen, log: log}

	_, err := os.Stat(path)
	switch {
	case os.IsNotExist(err):
		f, ferr := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
		if ferr != nil {
			return nil, fmt.Errorf("intarray: create %s: %w", path, ferr)
		}
		s.file = f
		if err := s.writeZeroHeader(); err != nil {
			return nil, err
		}
	case err == nil:
		f, ferr := os.OpenFile(path, os.O_RDWR, 0o644)
		if ferr != nil {
			return nil, fmt.Errorf("intarray: open %s: %w", path, ferr)
		}
		s.file = f
	default:
		return nil, fmt.Errorf("intarray: stat %s: %w", path, err)
	}
	return s, nil
}

func (s *Store) writeZeroHeader() error {
	buf := make([]byte, s.infoLen*lengthPrefixSize)
	_, err := s.file.WriteAt(buf, 0)
	return err
}

func (s *Store) headerLen() int64 { return int64(s.infoLen) * lengthPrefixSize }

// GetInfo reads the n-th (1-indexed) header slot.
func (s *Store) GetInfo(n int) (int32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n < 1 || n > s.infoLen {
		return 0, fmt.Errorf("intarray: info slot %d out of range", n)
	}
	var buf [lengthPrefixSize]byte
	if _, err := s.file.ReadAt(buf[:], int64(n-1)*lengthPrefixSize); err != nil {
		return 0, err
	}
	return int32(binary.LittleEndian.Uint32(buf[:])), nil
}

// WriteInfo writes the n-th (1-indexed) header slot.
func (s *Store) WriteInfo(n int, v int32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n < 1 || n > s.infoLen {
		return fmt.Errorf("intarray: info slot %d out of range", n)
	}
	var buf [lengthPrefixSize]byte
	binary.LittleEndian.PutUint32(buf[:], uint32(v))
	_, err := s.file.WriteAt(buf[:], int64(n-1)*lengthPrefixSize)
	return err
}

func encodeInts(vals []int32) []byte {
	buf := make([]byte, len(vals)*4)
	for i, v := range vals {
		binary.LittleEndian.PutUint32(buf[i*4:i*4+4], uint32(v))
	}
	return buf
}

func decodeInts(buf []byte) []int32 {
	out := make([]int32, len(buf)/4)
	for i := range out {
		out[i] = int32(binary.LittleEndian.Uint32(buf[i*4 : i*4+4]))
	}
	return out
}

// Append writes a fresh array of n copies of initValue and returns its id.
func (s *Store) Append(initValue int32, n int) (int64, error) {
	if n <= 0 {
		return 0, fmt.Errorf("intarray: append requires n > 0, got %d", n)
	}
	vals := make([]int32, n)
	for i := range vals {
		vals[i] = initValue
	}
	return s.write(vals)
}

// AppendValues writes a fresh array containing exactly data.
func (s *Store) AppendValues(data []int32) (int64, error) {
	return s.write(data)
}

func (s *Store) write(vals []int32) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	offset, err := s.file.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, fmt.Errorf("intarray: seek end: %w", err)
	}

	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(vals)))
	if _, err := s.file.WriteAt(lenBuf[:], offset); err != nil {
		return 0, fmt.Errorf("intarray: write length: %w", err)
	}
	if len(vals) > 0 {
		if _, err := s.file.WriteAt(encodeInts(vals), offset+4); err != nil {
			return 0, fmt.Errorf("intarray: write payload: %w", err)
		}
	}
	return offset, nil
}

func (s *Store) readLength(offset int64) (int32, error) {
	var lenBuf [4]byte
	if _, err := s.file.ReadAt(lenBuf[:], offset); err != nil {
		return 0, fmt.Errorf("intarray: read length: %w", err)
	}
	return int32(binary.LittleEndian.Uint32(lenBuf[:])), nil
}

// Read returns the full array stored at id.
func (s *Store) Read(id int64) ([]int32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, err := s.readLength(id)
	if err != nil {
		return nil, err
	}
	if n <= 0 {
		return nil, nil
	}
	buf := make([]byte, int(n)*4)
	if _, err := s.file.ReadAt(buf, id+4); err != nil {
		return nil, fmt.Errorf("intarray: read payload: %w", err)
	}
	return decodeInts(buf), nil
}

// ReadRange returns n elements starting at element-offset offset within
// the array stored at id.
func (s *Store) ReadRange(id int64, offset, n int) ([]int32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	buf := make([]byte, n*4)
	if _, err := s.file.ReadAt(buf, id+4+int64(offset)*4); err != nil {
		return nil, fmt.Errorf("intarray: read range: %w", err)
	}
	return decodeInts(buf), nil
}

// Update overwrites the full array stored at id. len(data) must equal
// the array's original length.
func (s *Store) Update(id int64, data []int32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(data) == 0 {
		return nil
	}
	_, err := s.file.WriteAt(encodeInts(data), id+4)
	if err != nil {
		return fmt.Errorf("intarray: update: %w", err)
	}
	return nil
}

// UpdateRange overwrites n elements starting at element-offset offset
// within the array stored at id.
func (s *Store) UpdateRange(id int64, offset, n int, data []int32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(data) == 0 {
		return nil
	}
	_, err := s.file.WriteAt(encodeInts(data[:n]), id+4+int64(offset)*4)
	if err != nil {
		return fmt.Errorf("intarray: update range: %w", err)
	}
	return nil
}

// MarkRemoved writes length=0 in place; the payload bytes are not reclaimed.
func (s *Store) MarkRemoved(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var zero [4]byte
	_, err := s.file.WriteAt(zero[:], id)
	return err
}

// IsEmpty reports whether the file contains only its header.
func (s *Store) IsEmpty() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	size, err := s.file.Seek(0, io.SeekEnd)
	if err != nil {
		return false, err
	}
	return size == s.headerLen(), nil
}

// Clear truncates the file back to a zero-filled header.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.file.Truncate(0); err != nil {
		return err
	}
	if _, err := s.file.Seek(0, io.SeekStart); err != nil {
		return err
	}
	return s.writeZeroHeader()
}

// Close closes the underlying file handle.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.file.Close()
}
