package user

import (
	"encoding/binary"
	"strings"
)

// Fixed-width field sizes for the persisted User record (§3 User).
// Usernames, display names, and mail addresses are truncated to these
// widths, matching the source system's fixed-width string buffers
// (original_source's string32/string64).
const (
	usernameWidth = 64
	nameWidth     = 64
	mailWidth     = 64
)

// Record is a single persisted User entry (§3 User).
type Record struct {
	Username     string
	PasswordHash uint64
	Name         string
	Mail         string
	Privilege    int32
}

// recordCodec implements bptree.Codec[Record].
type recordCodec struct{}

func (recordCodec) Size() int {
	return usernameWidth + 8 + nameWidth + mailWidth + 4
}

func (recordCodec) Encode(v Record, buf []byte) {
	off := 0
	putFixedString(buf[off:off+usernameWidth], v.Username)
	off += usernameWidth
	binary.LittleEndian.PutUint64(buf[off:off+8], v.PasswordHash)
	off += 8
	putFixedString(buf[off:off+nameWidth], v.Name)
	off += nameWidth
	putFixedString(buf[off:off+mailWidth], v.Mail)
	off += mailWidth
	binary.LittleEndian.PutUint32(buf[off:off+4], uint32(v.Privilege))
}

func (recordCodec) Decode(buf []byte) Record {
	off := 0
	username := getFixedString(buf[off : off+usernameWidth])
	off += usernameWidth
	hash := binary.LittleEndian.Uint64(buf[off : off+8])
	off += 8
	name := getFixedString(buf[off : off+nameWidth])
	off += nameWidth
	mail := getFixedString(buf[off : off+mailWidth])
	off += mailWidth
	priv := int32(binary.LittleEndian.Uint32(buf[off : off+4]))
	return Record{Username: username, PasswordHash: hash, Name: name, Mail: mail, Privilege: priv}
}

func putFixedString(buf []byte, s string) {
	for i := range buf {
		buf[i] = 0
	}
	n := copy(buf, s)
	_ = n
}

func getFixedString(buf []byte) string {
	return strings.TrimRight(string(buf), "\x00")
}

// recordLess orders records for bag-level ties: records sharing a
// username hash (a collision, §9) are ordered by their actual username
// so lookups can disambiguate with a linear scan.
func recordLess(a, b Record) bool {
	if a.Username != b.Username {
		return a.Username < b.Username
	}
	if a.PasswordHash != b.PasswordHash {
		return a.PasswordHash < b.PasswordHash
	}
	if a.Name != b.Name {
		return a.Name < b.Name
	}
	return a.Mail < b.Mail
}
