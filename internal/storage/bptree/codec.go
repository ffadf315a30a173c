package bptree

import "encoding/binary"

// Codec defines a fixed-width binary encoding for a key or value type
// used by the tree. Size must be constant for a given instantiation.
type Codec[T any] interface {
	Size() int
	Encode(v T, buf []byte)
	Decode(buf []byte) T
}

// Uint64Codec encodes a plain uint64 — the common case for hashed
// string keys (§4.8, §9 "hash-keyed B+-trees").
type Uint64Codec struct{}

func (Uint64Codec) Size() int { return 8 }
func (Uint64Codec) Encode(v uint64, buf []byte) {
	binary.LittleEndian.PutUint64(buf, v)
}
func (Uint64Codec) Decode(buf []byte) uint64 {
	return binary.LittleEndian.Uint64(buf)
}

// Int64Codec encodes a plain int64, used for timestamp-ordered values.
type Int64Codec struct{}

func (Int64Codec) Size() int { return 8 }
func (Int64Codec) Encode(v int64, buf []byte) {
	binary.LittleEndian.PutUint64(buf, uint64(v))
}
func (Int64Codec) Decode(buf []byte) int64 {
	return int64(binary.LittleEndian.Uint64(buf))
}

// PairKey is a composite key of two hashed components, used by T's
// by-station-pair index (§4.7.1 byPair).
type PairKey struct {
	A, B uint64
}

type PairKeyCodec struct{}

func (PairKeyCodec) Size() int { return 16 }
func (PairKeyCodec) Encode(v PairKey, buf []byte) {
	binary.LittleEndian.PutUint64(buf[0:8], v.A)
	binary.LittleEndian.PutUint64(buf[8:16], v.B)
}
func (PairKeyCodec) Decode(buf []byte) PairKey {
	return PairKey{
		A: binary.LittleEndian.Uint64(buf[0:8]),
		B: binary.LittleEndian.Uint64(buf[8:16]),
	}
}

// TrainDateKey is a composite key of a hashed train id and an integer
// origin date, used by O's pending queue (§4.8 pendingByTrain).
type TrainDateKey struct {
	TrainIDHash uint64
	OriginDate  int32
}

type TrainDateKeyCodec struct{}

func (TrainDateKeyCodec) Size() int { return 12 }
func (TrainDateKeyCodec) Encode(v TrainDateKey, buf []byte) {
	binary.LittleEndian.PutUint64(buf[0:8], v.TrainIDHash)
	binary.LittleEndian.PutUint32(buf[8:12], uint32(v.OriginDate))
}
func (TrainDateKeyCodec) Decode(buf []byte) TrainDateKey {
	return TrainDateKey{
		TrainIDHash: binary.LittleEndian.Uint64(buf[0:8]),
		OriginDate:  int32(binary.LittleEndian.Uint32(buf[8:12])),
	}
}

// LessUint64 is the natural ordering for uint64 keys.
func LessUint64(a, b uint64) bool { return a < b }

// LessPairKey orders lexicographically by (A, B).
func LessPairKey(a, b PairKey) bool {
	if a.A != b.A {
		return a.A < b.A
	}
	return a.B < b.B
}

// LessTrainDateKey orders lexicographically by (TrainIDHash, OriginDate).
func LessTrainDateKey(a, b TrainDateKey) bool {
	if a.TrainIDHash != b.TrainIDHash {
		return a.TrainIDHash < b.TrainIDHash
	}
	return a.OriginDate < b.OriginDate
}
