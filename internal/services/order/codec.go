package order

import (
	"encoding/binary"
	"strings"

	"github.com/jontk/ticketd/internal/dateutil"
)

const (
	usernameWidth = 64
	trainIDWidth  = 32
	stationWidth  = 64
)

// Status is an Order's lifecycle state (§3 Order).
type Status byte

const (
	StatusSuccess Status = iota
	StatusPending
	StatusRefunded
)

// Order is the persisted per-purchase record (§3 Order). It carries
// resolved station names/times rather than re-resolving them from T on
// every queryOrder, mirroring the original record's shape.
type Order struct {
	Username   string
	TrainID    string
	From       string
	To         string
	FromIdx    int32
	ToIdx      int32
	OriginDate dateutil.Date
	Depart     dateutil.Date
	DepartTime dateutil.ClockTime
	Arrive     dateutil.Date
	ArriveTime dateutil.ClockTime
	Price      int32
	Num        int32
	Status     Status
	Timestamp  int64
}

type orderCodec struct{}

func (orderCodec) Size() int {
	return usernameWidth + trainIDWidth + stationWidth*2 + 4 + 4 + 4 + 4 + 4 + 4 + 4 + 4 + 4 + 4 + 1 + 8
}

func (orderCodec) Encode(v Order, buf []byte) {
	off := 0
	putFixed(buf[off:off+usernameWidth], v.Username)
	off += usernameWidth
	putFixed(buf[off:off+trainIDWidth], v.TrainID)
	off += trainIDWidth
	putFixed(buf[off:off+stationWidth], v.From)
	off += stationWidth
	putFixed(buf[off:off+stationWidth], v.To)
	off += stationWidth
	binary.LittleEndian.PutUint32(buf[off:], uint32(v.FromIdx))
	off += 4
	binary.LittleEndian.PutUint32(buf[off:], uint32(v.ToIdx))
	off += 4
	binary.LittleEndian.PutUint32(buf[off:], uint32(v.OriginDate.Month*100+v.OriginDate.Day))
	off += 4
	binary.LittleEndian.PutUint32(buf[off:], uint32(v.Depart.Month*100+v.Depart.Day))
	off += 4
	binary.LittleEndian.PutUint32(buf[off:], uint32(v.DepartTime))
	off += 4
	binary.LittleEndian.PutUint32(buf[off:], uint32(v.Arrive.Month*100+v.Arrive.Day))
	off += 4
	binary.LittleEndian.PutUint32(buf[off:], uint32(v.ArriveTime))
	off += 4
	binary.LittleEndian.PutUint32(buf[off:], uint32(v.Price))
	off += 4
	binary.LittleEndian.PutUint32(buf[off:], uint32(v.Num))
	off += 4
	buf[off] = byte(v.Status)
	off++
	binary.LittleEndian.PutUint64(buf[off:], uint64(v.Timestamp))
}

func (orderCodec) Decode(buf []byte) Order {
	off := 0
	username := getFixed(buf[off : off+usernameWidth])
	off += usernameWidth
	trainID := getFixed(buf[off : off+trainIDWidth])
	off += trainIDWidth
	from := getFixed(buf[off : off+stationWidth])
	off += stationWidth
	to := getFixed(buf[off : off+stationWidth])
	off += stationWidth
	fromIdx := int32(binary.LittleEndian.Uint32(buf[off:]))
	off += 4
	toIdx := int32(binary.LittleEndian.Uint32(buf[off:]))
	off += 4
	originPacked := int(binary.LittleEndian.Uint32(buf[off:]))
	off += 4
	departPacked := int(binary.LittleEndian.Uint32(buf[off:]))
	off += 4
	departTime := dateutil.ClockTime(binary.LittleEndian.Uint32(buf[off:]))
	off += 4
	arrivePacked := int(binary.LittleEndian.Uint32(buf[off:]))
	off += 4
	arriveTime := dateutil.ClockTime(binary.LittleEndian.Uint32(buf[off:]))
	off += 4
	price := int32(binary.LittleEndian.Uint32(buf[off:]))
	off += 4
	num := int32(binary.LittleEndian.Uint32(buf[off:]))
	off += 4
	status := Status(buf[off])
	off++
	timestamp := int64(binary.LittleEndian.Uint64(buf[off:]))

	return Order{
		Username: username, TrainID: trainID, From: from, To: to,
		FromIdx: fromIdx, ToIdx: toIdx,
		OriginDate: dateutil.Date{Month: originPacked / 100, Day: originPacked % 100},
		Depart:     dateutil.Date{Month: departPacked / 100, Day: departPacked % 100},
		DepartTime: departTime,
		Arrive:     dateutil.Date{Month: arrivePacked / 100, Day: arrivePacked % 100},
		ArriveTime: arriveTime,
		Price:      price, Num: num, Status: status, Timestamp: timestamp,
	}
}

// orderLess orders the bag ascending by timestamp, the order's total
// order (§3 Order: "Timestamp... serves as total order of orders").
// Ties (impossible in practice, since timestamps are unique) fall back
// to username, train ID, from-index and to-index, in that order.
func orderLess(a, b Order) bool {
	if a.Timestamp != b.Timestamp {
		return a.Timestamp < b.Timestamp
	}
	if a.Username != b.Username {
		return a.Username < b.Username
	}
	if a.TrainID != b.TrainID {
		return a.TrainID < b.TrainID
	}
	if a.FromIdx != b.FromIdx {
		return a.FromIdx < b.FromIdx
	}
	return a.ToIdx < b.ToIdx
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
