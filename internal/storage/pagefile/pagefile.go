// Package pagefile implements a paged, append-only file store of
// fixed-size binary records, addressed by byte offset.
package pagefile

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/jontk/ticketd/pkg/logging"
)

// Record is anything that can be packed into a fixed-size binary slot.
// Size must be constant across the lifetime of a Store.
type Record interface {
	MarshalBinary() ([]byte, error)
	UnmarshalBinary([]byte) error
}

// Store is a typed, fixed-record-size paged file. The header holds
// infoLen little-endian int32 slots, 1-indexed, followed by packed
// records of recordSize bytes each. Offsets returned by Append are
// permanent record ids for the lifetime of the file.
type Store struct {
	mu         sync.Mutex
	file       *os.File
	path       string
	infoLen    int
	recordSize int
	log        logging.Logger
}

const headerSlotSize = 4 // int32

// Open creates the file (zero-filled header) if absent, or opens an
// existing one in place. recordSize must match the caller's Record
// encoding exactly.
func Open(path string, infoLen, recordSize int, log logging.Logger) (*Store, error) {
	if log == nil {
		log = logging.NoOpLogger{}
	}
	s := &Store{path: path, infoLen: infoLen, recordSize: recordSize, log: log}

	_, err := os.Stat(path)
	switch {
	case os.IsNotExist(err):
		f, ferr := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
		if ferr != nil {
			return nil, fmt.Errorf("pagefile: create %s: %w", path, ferr)
		}
		s.file = f
		if err := s.writeZeroHeader(); err != nil {
			return nil, err
		}
	case err == nil:
		f, ferr := os.OpenFile(path, os.O_RDWR, 0o644)
		if ferr != nil {
			return nil, fmt.Errorf("pagefile: open %s: %w", path, ferr)
		}
		s.file = f
	default:
		return nil, fmt.Errorf("pagefile: stat %s: %w", path, err)
	}
	log.Debug("pagefile opened", "path", path, "info_len", infoLen, "record_size", recordSize)
	return s, nil
}

func (s *Store) writeZeroHeader() error {
	buf := make([]byte, s.infoLen*headerSlotSize)
	if _, err := s.file.WriteAt(buf, 0); err != nil {
		return fmt.Errorf("pagefile: write header: %w", err)
	}
	return nil
}

func (s *Store) headerLen() int64 { return int64(s.infoLen) * headerSlotSize }

// GetInfo reads the n-th (1-indexed) header slot.
func (s *Store) GetInfo(n int) (int32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n < 1 || n > s.infoLen {
		return 0, fmt.Errorf("pagefile: info slot %d out of range [1,%d]", n, s.infoLen)
	}
	var buf [headerSlotSize]byte
	if _, err := s.file.ReadAt(buf[:], int64(n-1)*headerSlotSize); err != nil {
		return 0, fmt.Errorf("pagefile: read info slot %d: %w", n, err)
	}
	return int32(binary.LittleEndian.Uint32(buf[:])), nil
}

// WriteInfo writes the n-th (1-indexed) header slot.
func (s *Store) WriteInfo(n int, v int32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n < 1 || n > s.infoLen {
		return fmt.Errorf("pagefile: info slot %d out of range [1,%d]", n, s.infoLen)
	}
	var buf [headerSlotSize]byte
	binary.LittleEndian.PutUint32(buf[:], uint32(v))
	if _, err := s.file.WriteAt(buf[:], int64(n-1)*headerSlotSize); err != nil {
		return fmt.Errorf("pagefile: write info slot %d: %w", n, err)
	}
	return nil
}

// Append writes r at the end of the file and returns its permanent offset id.
func (s *Store) Append(r Record) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	payload, err := r.MarshalBinary()
	if err != nil {
		return 0, fmt.Errorf("pagefile: marshal record: %w", err)
	}
	if len(payload) != s.recordSize {
		return 0, fmt.Errorf("pagefile: record size %d != configured %d", len(payload), s.recordSize)
	}

	size, err := s.file.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, fmt.Errorf("pagefile: seek end: %w", err)
	}
	if _, err := s.file.WriteAt(payload, size); err != nil {
		return 0, fmt.Errorf("pagefile: append: %w", err)
	}
	return size, nil
}

// Read loads the record at offset into r.
func (s *Store) Read(offset int64, r Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	buf := make([]byte, s.recordSize)
	if _, err := s.file.ReadAt(buf, offset); err != nil {
		return fmt.Errorf("pagefile: read at %d: %w", offset, err)
	}
	if err := r.UnmarshalBinary(buf); err != nil {
		return fmt.Errorf("pagefile: unmarshal at %d: %w", offset, err)
	}
	return nil
}

// Overwrite replaces the record at offset in place.
func (s *Store) Overwrite(offset int64, r Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	payload, err := r.MarshalBinary()
	if err != nil {
		return fmt.Errorf("pagefile: marshal record: %w", err)
	}
	if len(payload) != s.recordSize {
		return fmt.Errorf("pagefile: record size %d != configured %d", len(payload), s.recordSize)
	}
	if _, err := s.file.WriteAt(payload, offset); err != nil {
		return fmt.Errorf("pagefile: overwrite at %d: %w", offset, err)
	}
	return nil
}

// MarkRemoved is a documented no-op: space is never physically reclaimed.
func (s *Store) MarkRemoved(offset int64) error {
	s.log.Debug("pagefile mark-removed (no reclamation)", "offset", offset)
	return nil
}

// IsEmpty reports whether the file contains only its header.
func (s *Store) IsEmpty() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	size, err := s.file.Seek(0, io.SeekEnd)
	if err != nil {
		return false, fmt.Errorf("pagefile: seek end: %w", err)
	}
	return size == s.headerLen(), nil
}

// Clear truncates the file back to a zero-filled header.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.file.Truncate(0); err != nil {
		return fmt.Errorf("pagefile: truncate: %w", err)
	}
	if _, err := s.file.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("pagefile: seek start: %w", err)
	}
	return s.writeZeroHeader()
}

// Close closes the underlying file handle.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.file.Close()
}
