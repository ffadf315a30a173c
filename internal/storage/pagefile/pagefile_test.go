package pagefile

import (
	"encoding/binary"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// fixedRecord is a 12-byte test record: two int32 plus a 4-byte tag.
type fixedRecord struct {
	A, B int32
	Tag  [4]byte
}

func (r fixedRecord) MarshalBinary() ([]byte, error) {
	buf := make([]byte, 12)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(r.A))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(r.B))
	copy(buf[8:12], r.Tag[:])
	return buf, nil
}

func (r *fixedRecord) UnmarshalBinary(b []byte) error {
	r.A = int32(binary.LittleEndian.Uint32(b[0:4]))
	r.B = int32(binary.LittleEndian.Uint32(b[4:8]))
	copy(r.Tag[:], b[8:12])
	return nil
}

func TestStoreAppendReadOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "records.db")
	s, err := Open(path, 2, 12, nil)
	require.NoError(t, err)
	defer s.Close()

	empty, err := s.IsEmpty()
	require.NoError(t, err)
	require.True(t, empty)

	r1 := fixedRecord{A: 1, B: 2, Tag: [4]byte{'a', 'b', 'c', 'd'}}
	off1, err := s.Append(&r1)
	require.NoError(t, err)

	r2 := fixedRecord{A: 3, B: 4, Tag: [4]byte{'e', 'f', 'g', 'h'}}
	off2, err := s.Append(&r2)
	require.NoError(t, err)
	require.NotEqual(t, off1, off2)

	var got fixedRecord
	require.NoError(t, s.Read(off1, &got))
	require.Equal(t, r1, got)

	require.NoError(t, s.Read(off2, &got))
	require.Equal(t, r2, got)

	r1b := fixedRecord{A: 100, B: 200, Tag: [4]byte{'z', 'z', 'z', 'z'}}
	require.NoError(t, s.Overwrite(off1, &r1b))
	require.NoError(t, s.Read(off1, &got))
	require.Equal(t, r1b, got)

	empty, err = s.IsEmpty()
	require.NoError(t, err)
	require.False(t, empty)
}

func TestStoreInfoSlots(t *testing.T) {
	path := filepath.Join(t.TempDir(), "records.db")
	s, err := Open(path, 2, 12, nil)
	require.NoError(t, err)
	defer s.Close()

	v, err := s.GetInfo(1)
	require.NoError(t, err)
	require.Zero(t, v)

	require.NoError(t, s.WriteInfo(1, 42))
	v, err = s.GetInfo(1)
	require.NoError(t, err)
	require.Equal(t, int32(42), v)

	_, err = s.GetInfo(3)
	require.Error(t, err)
}

func TestStoreClear(t *testing.T) {
	path := filepath.Join(t.TempDir(), "records.db")
	s, err := Open(path, 1, 12, nil)
	require.NoError(t, err)
	defer s.Close()

	_, err = s.Append(&fixedRecord{A: 1})
	require.NoError(t, err)
	require.NoError(t, s.WriteInfo(1, 7))

	require.NoError(t, s.Clear())
	empty, err := s.IsEmpty()
	require.NoError(t, err)
	require.True(t, empty)

	v, err := s.GetInfo(1)
	require.NoError(t, err)
	require.Zero(t, v)
}

func TestStoreReopenPreservesData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "records.db")
	s, err := Open(path, 1, 12, nil)
	require.NoError(t, err)
	off, err := s.Append(&fixedRecord{A: 9, B: 10})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s2, err := Open(path, 1, 12, nil)
	require.NoError(t, err)
	defer s2.Close()
	var got fixedRecord
	require.NoError(t, s2.Read(off, &got))
	require.Equal(t, int32(9), got.A)
}
