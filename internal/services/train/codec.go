package train

import (
	"encoding/binary"
	"strings"

	"github.com/jontk/ticketd/internal/dateutil"
)

const (
	trainIDWidth = 32
	stationWidth = 64
)

// Train is the persisted catalog entry (§3 Train).
type Train struct {
	TrainID         string
	StationNum      int32
	StationBucketID int64
	SeatNum         int32
	TicketBucketID  int64 // -1 until released
	SaleStart       dateutil.Date
	SaleEnd         dateutil.Date
	StartTime       int32 // minutes of day
	Type            byte
	IsReleased      bool
}

type trainCodec struct{}

func (trainCodec) Size() int {
	return trainIDWidth + 4 + 8 + 4 + 8 + 4 + 4 + 4 + 1 + 1
}

func (trainCodec) Encode(v Train, buf []byte) {
	off := 0
	putFixed(buf[off:off+trainIDWidth], v.TrainID)
	off += trainIDWidth
	binary.LittleEndian.PutUint32(buf[off:], uint32(v.StationNum))
	off += 4
	binary.LittleEndian.PutUint64(buf[off:], uint64(v.StationBucketID))
	off += 8
	binary.LittleEndian.PutUint32(buf[off:], uint32(v.SeatNum))
	off += 4
	binary.LittleEndian.PutUint64(buf[off:], uint64(v.TicketBucketID))
	off += 8
	binary.LittleEndian.PutUint32(buf[off:], uint32(v.SaleStart.Month*100+v.SaleStart.Day))
	off += 4
	binary.LittleEndian.PutUint32(buf[off:], uint32(v.SaleEnd.Month*100+v.SaleEnd.Day))
	off += 4
	binary.LittleEndian.PutUint32(buf[off:], uint32(v.StartTime))
	off += 4
	buf[off] = v.Type
	off++
	if v.IsReleased {
		buf[off] = 1
	}
}

func (trainCodec) Decode(buf []byte) Train {
	off := 0
	trainID := getFixed(buf[off : off+trainIDWidth])
	off += trainIDWidth
	stationNum := int32(binary.LittleEndian.Uint32(buf[off:]))
	off += 4
	stationBucketID := int64(binary.LittleEndian.Uint64(buf[off:]))
	off += 8
	seatNum := int32(binary.LittleEndian.Uint32(buf[off:]))
	off += 4
	ticketBucketID := int64(binary.LittleEndian.Uint64(buf[off:]))
	off += 8
	saleStartPacked := int(binary.LittleEndian.Uint32(buf[off:]))
	off += 4
	saleEndPacked := int(binary.LittleEndian.Uint32(buf[off:]))
	off += 4
	startTime := int32(binary.LittleEndian.Uint32(buf[off:]))
	off += 4
	trainType := buf[off]
	off++
	isReleased := buf[off] == 1

	return Train{
		TrainID:         trainID,
		StationNum:      stationNum,
		StationBucketID: stationBucketID,
		SeatNum:         seatNum,
		TicketBucketID:  ticketBucketID,
		SaleStart:       dateutil.Date{Month: saleStartPacked / 100, Day: saleStartPacked % 100},
		SaleEnd:         dateutil.Date{Month: saleEndPacked / 100, Day: saleEndPacked % 100},
		StartTime:       startTime,
		Type:            trainType,
		IsReleased:      isReleased,
	}
}

func trainLess(a, b Train) bool { return a.TrainID < b.TrainID }

// lookupValue is the bag value stored in the by-station lookup indexes:
// just enough to re-fetch the full Train record (§4.7.1 byPair, byFrom).
type lookupValue struct {
	TrainID string
}

type lookupValueCodec struct{}

func (lookupValueCodec) Size() int { return trainIDWidth }
func (lookupValueCodec) Encode(v lookupValue, buf []byte) {
	putFixed(buf, v.TrainID)
}
func (lookupValueCodec) Decode(buf []byte) lookupValue {
	return lookupValue{TrainID: getFixed(buf)}
}
func lookupValueLess(a, b lookupValue) bool { return a.TrainID < b.TrainID }

// Station is a single precomputed per-station record (§3 Station record),
// stored contiguously per train in the station bucket (CF).
type Station struct {
	IsStart       bool
	IsEnd         bool
	Name          string
	Price         int32
	ArrivalOffset int32
	LeavingOffset int32
	Index         int32
}

const stationRecordSize = 1 + 1 + stationWidth + 4 + 4 + 4 + 4

func (s *Station) MarshalBinary() ([]byte, error) {
	buf := make([]byte, stationRecordSize)
	off := 0
	if s.IsStart {
		buf[off] = 1
	}
	off++
	if s.IsEnd {
		buf[off] = 1
	}
	off++
	putFixed(buf[off:off+stationWidth], s.Name)
	off += stationWidth
	binary.LittleEndian.PutUint32(buf[off:], uint32(s.Price))
	off += 4
	binary.LittleEndian.PutUint32(buf[off:], uint32(s.ArrivalOffset))
	off += 4
	binary.LittleEndian.PutUint32(buf[off:], uint32(s.LeavingOffset))
	off += 4
	binary.LittleEndian.PutUint32(buf[off:], uint32(s.Index))
	return buf, nil
}

func (s *Station) UnmarshalBinary(buf []byte) error {
	off := 0
	s.IsStart = buf[off] == 1
	off++
	s.IsEnd = buf[off] == 1
	off++
	s.Name = getFixed(buf[off : off+stationWidth])
	off += stationWidth
	s.Price = int32(binary.LittleEndian.Uint32(buf[off:]))
	off += 4
	s.ArrivalOffset = int32(binary.LittleEndian.Uint32(buf[off:]))
	off += 4
	s.LeavingOffset = int32(binary.LittleEndian.Uint32(buf[off:]))
	off += 4
	s.Index = int32(binary.LittleEndian.Uint32(buf[off:]))
	return nil
}

func putFixed(buf []byte, s string) {
	for i := range buf {
		buf[i] = 0
	}
	copy(buf, s)
}

func getFixed(buf []byte) string {
	return strings.TrimRight(string(buf), "\x00")
}
