// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

// Package train implements the train catalog and seat-inventory
// service (T, §4.7): the station-precomputed catalog, two by-station
// lookup B-indexes, and per-originDate seat arithmetic.
package train

import (
	"fmt"
	"math"
	"path/filepath"
	"sort"
	"sync"

	"github.com/jontk/ticketd/internal/dateutil"
	"github.com/jontk/ticketd/internal/hashkey"
	"github.com/jontk/ticketd/internal/storage/bptree"
	"github.com/jontk/ticketd/internal/storage/cachedfile"
	"github.com/jontk/ticketd/internal/storage/intarray"
	"github.com/jontk/ticketd/pkg/logging"
	"github.com/jontk/ticketd/pkg/ticketerr"
)

// Options configures a Service's backing files and storage tuning.
type Options struct {
	DataDir       string
	NodeFanout    int
	BlockCapacity int
	CacheK        int
	CacheCapacity int
	Logger        logging.Logger
}

// Service is the train catalog and seat inventory (§4.7).
type Service struct {
	mu sync.Mutex

	trains  *bptree.Tree[uint64, Train]
	byPair  *bptree.Tree[bptree.PairKey, lookupValue]
	byFrom  *bptree.Tree[uint64, lookupValue]
	station *cachedfile.Store[Station, *Station]
	seats   *intarray.Store

	log logging.Logger
}

// Open opens or creates every backing file under opts.DataDir.
func Open(opts Options) (*Service, error) {
	log := opts.Logger
	if log == nil {
		log = logging.NoOpLogger{}
	}
	trains, err := bptree.Open[uint64, Train](
		filepath.Join(opts.DataDir, "trains_train_node"),
		filepath.Join(opts.DataDir, "trains_train_data"),
		bptree.Options[uint64, Train]{
			NodeFanout: opts.NodeFanout, BlockCapacity: opts.BlockCapacity,
			KeyCodec: bptree.Uint64Codec{}, ValueCodec: trainCodec{},
			KeyLess: bptree.LessUint64, ValueLess: trainLess, MaxKey: math.MaxUint64,
			CacheK: opts.CacheK, CacheCapacity: opts.CacheCapacity, Logger: log,
		})
	if err != nil {
		return nil, fmt.Errorf("train: open catalog: %w", err)
	}

	byPair, err := bptree.Open[bptree.PairKey, lookupValue](
		filepath.Join(opts.DataDir, "trains_ticket_lookup_node"),
		filepath.Join(opts.DataDir, "trains_ticket_lookup_data"),
		bptree.Options[bptree.PairKey, lookupValue]{
			NodeFanout: opts.NodeFanout, BlockCapacity: opts.BlockCapacity,
			KeyCodec: bptree.PairKeyCodec{}, ValueCodec: lookupValueCodec{},
			KeyLess: bptree.LessPairKey, ValueLess: lookupValueLess,
			MaxKey: bptree.PairKey{A: math.MaxUint64, B: math.MaxUint64},
			CacheK: opts.CacheK, CacheCapacity: opts.CacheCapacity, Logger: log,
		})
	if err != nil {
		return nil, fmt.Errorf("train: open by-pair index: %w", err)
	}

	byFrom, err := bptree.Open[uint64, lookupValue](
		filepath.Join(opts.DataDir, "trains_transfer_lookup_node"),
		filepath.Join(opts.DataDir, "trains_transfer_lookup_data"),
		bptree.Options[uint64, lookupValue]{
			NodeFanout: opts.NodeFanout, BlockCapacity: opts.BlockCapacity,
			KeyCodec: bptree.Uint64Codec{}, ValueCodec: lookupValueCodec{},
			KeyLess: bptree.LessUint64, ValueLess: lookupValueLess, MaxKey: math.MaxUint64,
			CacheK: opts.CacheK, CacheCapacity: opts.CacheCapacity, Logger: log,
		})
	if err != nil {
		return nil, fmt.Errorf("train: open by-from index: %w", err)
	}

	station, err := cachedfile.Open[Station](
		filepath.Join(opts.DataDir, "trains_station_bucket"), 2, stationRecordSize,
		opts.CacheK, opts.CacheCapacity, log)
	if err != nil {
		return nil, fmt.Errorf("train: open station bucket: %w", err)
	}

	seats, err := intarray.Open(filepath.Join(opts.DataDir, "trains_ticket_bucket"), 2, log)
	if err != nil {
		return nil, fmt.Errorf("train: open seat bucket: %w", err)
	}

	return &Service{trains: trains, byPair: byPair, byFrom: byFrom, station: station, seats: seats, log: log}, nil
}

// Close flushes and closes every backing file.
func (s *Service) Close() error {
	var firstErr error
	for _, c := range []func() error{s.trains.Close, s.byPair.Close, s.byFrom.Close, s.station.Close, s.seats.Close} {
		if err := c(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (s *Service) lookupTrain(trainID string) (Train, bool, error) {
	matches, err := s.trains.Find(hashkey.Hash(trainID))
	if err != nil {
		return Train{}, false, fmt.Errorf("train: lookup %q: %w", trainID, err)
	}
	for _, m := range matches {
		if m.TrainID == trainID {
			return m, true, nil
		}
	}
	return Train{}, false, nil
}

func (s *Service) stations(t Train) ([]Station, error) {
	out := make([]Station, t.StationNum)
	for i := range out {
		rec, err := s.station.Read(t.StationBucketID + int64(i)*stationRecordSize)
		if err != nil {
			return nil, fmt.Errorf("train: read station %d of %s: %w", i, t.TrainID, err)
		}
		out[i] = rec
	}
	return out, nil
}

// AddTrain precomputes per-station cumulative price and arrival/leaving
// offsets and persists the catalog entry plus the station block
// (§4.7.1 addTrain).
//
// prices and travelTimes each have stationNum-1 entries, one per leg.
// stopoverTimes has stationNum-2 entries, one per intermediate station;
// it is ignored when stationNum == 2.
func (s *Service) AddTrain(trainID string, stationNum int, seatNum int32, names []string,
	prices, travelTimes, stopoverTimes []int32, startTime int32, saleStart, saleEnd dateutil.Date, trainType byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if stationNum < 2 || len(names) != stationNum || len(prices) != stationNum-1 || len(travelTimes) != stationNum-1 {
		return ticketerr.New(ticketerr.CodeInvalidTicketNum, "malformed station/price/travel lists")
	}
	if stationNum > 2 && len(stopoverTimes) != stationNum-2 {
		return ticketerr.New(ticketerr.CodeInvalidTicketNum, "stopover list must have stationNum-2 entries")
	}
	if _, exists, err := s.lookupTrain(trainID); err != nil {
		return err
	} else if exists {
		return ticketerr.New(ticketerr.CodeDuplicateTrain, "trainID already exists")
	}

	stations := make([]Station, stationNum)
	stations[0] = Station{IsStart: true, Name: names[0], Price: 0, ArrivalOffset: -1, LeavingOffset: 0, Index: 0}
	for i := 1; i < stationNum; i++ {
		arrival := stations[i-1].LeavingOffset + travelTimes[i-1]
		leaving := int32(-1)
		if i != stationNum-1 {
			leaving = arrival + stopoverTimes[i-1]
		}
		stations[i] = Station{
			IsEnd:         i == stationNum-1,
			Name:          names[i],
			Price:         stations[i-1].Price + prices[i-1],
			ArrivalOffset: arrival,
			LeavingOffset: leaving,
			Index:         int32(i),
		}
	}

	bucketID := int64(-1)
	for i := range stations {
		off, err := s.station.Append(stations[i])
		if err != nil {
			return fmt.Errorf("train: append station %d: %w", i, err)
		}
		if i == 0 {
			bucketID = off
		}
	}

	t := Train{
		TrainID: trainID, StationNum: int32(stationNum), StationBucketID: bucketID,
		SeatNum: seatNum, TicketBucketID: -1, SaleStart: saleStart, SaleEnd: saleEnd,
		StartTime: startTime, Type: trainType,
	}
	if err := s.trains.Insert(hashkey.Hash(trainID), t); err != nil {
		return fmt.Errorf("train: insert catalog entry: %w", err)
	}
	s.log.Debug("train added", "trainID", trainID, "stationNum", stationNum)
	return nil
}

// DeleteTrain removes the catalog entry, only if never released
// (§4.7.1 deleteTrain).
func (s *Service) DeleteTrain(trainID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok, err := s.lookupTrain(trainID)
	if err != nil {
		return err
	}
	if !ok {
		return ticketerr.New(ticketerr.CodeTrainNotFound, "no such train")
	}
	if t.IsReleased {
		return ticketerr.New(ticketerr.CodeAlreadyReleased, "cannot delete a released train")
	}
	if err := s.trains.Remove(hashkey.Hash(trainID), t); err != nil {
		return fmt.Errorf("train: remove catalog entry: %w", err)
	}
	return nil
}

// ReleaseTrain allocates the seat bucket and populates the by-station
// lookup indexes, exactly once (§4.7.1 releaseTrain).
func (s *Service) ReleaseTrain(trainID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok, err := s.lookupTrain(trainID)
	if err != nil {
		return err
	}
	if !ok {
		return ticketerr.New(ticketerr.CodeTrainNotFound, "no such train")
	}
	if t.IsReleased {
		return ticketerr.New(ticketerr.CodeAlreadyReleased, "train already released")
	}

	saleDays := t.SaleEnd.Ordinal() - t.SaleStart.Ordinal() + 1
	legCount := int(t.StationNum) - 1
	bucketID, err := s.seats.Append(t.SeatNum, saleDays*legCount)
	if err != nil {
		return fmt.Errorf("train: allocate seat bucket: %w", err)
	}

	stations, err := s.stations(t)
	if err != nil {
		return err
	}
	for i := 0; i < len(stations); i++ {
		if err := s.byFrom.Insert(hashkey.Hash(stations[i].Name), lookupValue{TrainID: trainID}); err != nil {
			return fmt.Errorf("train: index byFrom: %w", err)
		}
		for j := i + 1; j < len(stations); j++ {
			key := bptree.PairKey{A: hashkey.Hash(stations[i].Name), B: hashkey.Hash(stations[j].Name)}
			if err := s.byPair.Insert(key, lookupValue{TrainID: trainID}); err != nil {
				return fmt.Errorf("train: index byPair: %w", err)
			}
		}
	}

	updated := t
	updated.TicketBucketID = bucketID
	updated.IsReleased = true
	if err := s.trains.Remove(hashkey.Hash(trainID), t); err != nil {
		return fmt.Errorf("train: remove pre-release entry: %w", err)
	}
	if err := s.trains.Insert(hashkey.Hash(trainID), updated); err != nil {
		return fmt.Errorf("train: insert released entry: %w", err)
	}
	return nil
}

// StationLine is one rendered line of a queryTrain reply (§4.7.2).
type StationLine struct {
	Name         string
	ArrivalDate  dateutil.Date
	ArrivalTime  dateutil.ClockTime
	HasArrival   bool
	LeavingDate  dateutil.Date
	LeavingTime  dateutil.ClockTime
	HasLeaving   bool
	Price        int32
	SeatsLeaving int32 // -1 at the terminal ("x")
}

// QueryTrain requires date within [saleStart, saleEnd] and renders one
// line per station (§4.7.2).
func (s *Service) QueryTrain(trainID string, date dateutil.Date) ([]StationLine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok, err := s.lookupTrain(trainID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ticketerr.New(ticketerr.CodeTrainNotFound, "no such train")
	}
	if !dateutil.InWindow(date, t.SaleStart, t.SaleEnd) {
		return nil, ticketerr.New(ticketerr.CodeInvalidDate, "date outside train's sale window")
	}

	stations, err := s.stations(t)
	if err != nil {
		return nil, err
	}

	var legSeats []int32
	if t.IsReleased {
		dayIdx := date.Ordinal() - t.SaleStart.Ordinal()
		legCount := int(t.StationNum) - 1
		legSeats, err = s.seats.ReadRange(t.TicketBucketID, dayIdx*legCount, legCount)
		if err != nil {
			return nil, fmt.Errorf("train: read seat range: %w", err)
		}
	}

	lines := make([]StationLine, len(stations))
	for i, st := range stations {
		line := StationLine{Name: st.Name, Price: st.Price}
		if !st.IsStart {
			d, c := dateutil.AddOffset(date, int(t.StartTime), int(st.ArrivalOffset))
			line.ArrivalDate, line.ArrivalTime, line.HasArrival = d, c, true
		}
		if !st.IsEnd {
			d, c := dateutil.AddOffset(date, int(t.StartTime), int(st.LeavingOffset))
			line.LeavingDate, line.LeavingTime, line.HasLeaving = d, c, true
			if legSeats != nil {
				line.SeatsLeaving = legSeats[i]
			} else {
				line.SeatsLeaving = t.SeatNum
			}
		} else {
			line.SeatsLeaving = -1
		}
		lines[i] = line
	}
	return lines, nil
}

func stationIndex(stations []Station, name string, after int) int {
	for i := after; i < len(stations); i++ {
		if stations[i].Name == name {
			return i
		}
	}
	return -1
}

// TicketCandidate is one queryTicket/queryTransfer-leg result (§4.7.2).
type TicketCandidate struct {
	TrainID    string
	FromIdx    int
	ToIdx      int
	OriginDate dateutil.Date
	Depart     dateutil.Date
	DepartTime dateutil.ClockTime
	Arrive     dateutil.Date
	ArriveTime dateutil.ClockTime
	Price      int32
	Duration   int32
	SeatsMin   int32
}

func (s *Service) legCandidate(lv lookupValue, fromName, toName string, date dateutil.Date) (TicketCandidate, bool, error) {
	t, ok, err := s.lookupTrain(lv.TrainID)
	if err != nil || !ok {
		return TicketCandidate{}, false, err
	}
	stations, err := s.stations(t)
	if err != nil {
		return TicketCandidate{}, false, err
	}
	fromIdx := stationIndex(stations, fromName, 0)
	if fromIdx < 0 {
		return TicketCandidate{}, false, nil
	}
	toIdx := stationIndex(stations, toName, fromIdx+1)
	if toIdx < 0 {
		return TicketCandidate{}, false, nil
	}

	leavingAtFrom := stations[fromIdx].LeavingOffset
	dayShift := (int(leavingAtFrom) + int(t.StartTime)) / 1440
	if (int(leavingAtFrom)+int(t.StartTime))%1440 < 0 {
		dayShift--
	}
	originDate := dateutil.AddDays(date, -dayShift)
	if !dateutil.InWindow(originDate, t.SaleStart, t.SaleEnd) {
		return TicketCandidate{}, false, nil
	}

	price := stations[toIdx].Price - stations[fromIdx].Price
	duration := stations[toIdx].ArrivalOffset - stations[fromIdx].LeavingOffset
	depDate, depTime := dateutil.AddOffset(originDate, int(t.StartTime), int(stations[fromIdx].LeavingOffset))
	arrDate, arrTime := dateutil.AddOffset(originDate, int(t.StartTime), int(stations[toIdx].ArrivalOffset))

	dayIdx := originDate.Ordinal() - t.SaleStart.Ordinal()
	legCount := int(t.StationNum) - 1
	legSeats, err := s.seats.ReadRange(t.TicketBucketID, dayIdx*legCount+fromIdx, toIdx-fromIdx)
	if err != nil {
		return TicketCandidate{}, false, fmt.Errorf("train: read leg seats: %w", err)
	}
	seatsMin := legSeats[0]
	for _, v := range legSeats[1:] {
		if v < seatsMin {
			seatsMin = v
		}
	}

	return TicketCandidate{
		TrainID: t.TrainID, FromIdx: fromIdx, ToIdx: toIdx, OriginDate: originDate,
		Depart: depDate, DepartTime: depTime, Arrive: arrDate, ArriveTime: arrTime,
		Price: price, Duration: duration, SeatsMin: seatsMin,
	}, true, nil
}

// QueryTicket returns every direct-ride candidate between from and to
// on date, sorted per sortBy (§4.7.2 queryTicket).
func (s *Service) QueryTicket(from, to string, date dateutil.Date, sortBy string) ([]TicketCandidate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	lookups, err := s.byPair.Find(bptree.PairKey{A: hashkey.Hash(from), B: hashkey.Hash(to)})
	if err != nil {
		return nil, fmt.Errorf("train: byPair lookup: %w", err)
	}

	var out []TicketCandidate
	for _, lv := range lookups {
		c, ok, err := s.legCandidate(lv, from, to, date)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, c)
		}
	}
	sortCandidates(out, sortBy)
	return out, nil
}

func sortCandidates(c []TicketCandidate, sortBy string) {
	sort.Slice(c, func(i, j int) bool {
		if sortBy == "cost" {
			if c[i].Price != c[j].Price {
				return c[i].Price < c[j].Price
			}
			return c[i].TrainID < c[j].TrainID
		}
		if c[i].Duration != c[j].Duration {
			return c[i].Duration < c[j].Duration
		}
		return c[i].TrainID < c[j].TrainID
	})
}

// TransferPlan is a two-leg queryTransfer result (§4.7.2).
type TransferPlan struct {
	Leg1, Leg2 TicketCandidate
}

// QueryTransfer finds the single best one-interchange itinerary from
// from to to on date (§4.7.2 queryTransfer). Returns found=false if
// none exists.
func (s *Service) QueryTransfer(from, to string, date dateutil.Date, sortBy string) (TransferPlan, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	starts, err := s.byFrom.Find(hashkey.Hash(from))
	if err != nil {
		return TransferPlan{}, false, fmt.Errorf("train: byFrom lookup: %w", err)
	}

	var best TransferPlan
	found := false
	for _, lv := range starts {
		t1, ok, err := s.lookupTrain(lv.TrainID)
		if err != nil {
			return TransferPlan{}, false, err
		}
		if !ok {
			continue
		}
		stations1, err := s.stations(t1)
		if err != nil {
			return TransferPlan{}, false, err
		}
		fromIdx1 := stationIndex(stations1, from, 0)
		if fromIdx1 < 0 {
			continue
		}

		for midIdx := fromIdx1 + 1; midIdx < len(stations1); midIdx++ {
			leg1, ok, err := s.legCandidate(lv, from, stations1[midIdx].Name, date)
			if err != nil {
				return TransferPlan{}, false, err
			}
			if !ok {
				continue
			}

			for _, candidateDate := range []dateutil.Date{leg1.Arrive, dateutil.AddDays(leg1.Arrive, 1)} {
				midLookups, err := s.byFrom.Find(hashkey.Hash(stations1[midIdx].Name))
				if err != nil {
					return TransferPlan{}, false, fmt.Errorf("train: byFrom lookup: %w", err)
				}
				for _, lv2 := range midLookups {
					if lv2.TrainID == t1.TrainID {
						continue
					}
					leg2, ok, err := s.legCandidate(lv2, stations1[midIdx].Name, to, candidateDate)
					if err != nil {
						return TransferPlan{}, false, err
					}
					if !ok {
						continue
					}
					depAbs := leg2.Depart.Ordinal()*1440 + int(leg2.DepartTime)
					arrAbs := leg1.Arrive.Ordinal()*1440 + int(leg1.ArriveTime)
					if depAbs < arrAbs {
						continue
					}
					plan := TransferPlan{Leg1: leg1, Leg2: leg2}
					if !found || betterTransfer(plan, best, sortBy) {
						best, found = plan, true
					}
				}
			}
		}
	}
	return best, found, nil
}

func betterTransfer(a, b TransferPlan, sortBy string) bool {
	aDur := transferDuration(a)
	bDur := transferDuration(b)
	aPrice := a.Leg1.Price + a.Leg2.Price
	bPrice := b.Leg1.Price + b.Leg2.Price
	if sortBy == "cost" {
		if aPrice != bPrice {
			return aPrice < bPrice
		}
		if aDur != bDur {
			return aDur < bDur
		}
	} else {
		if aDur != bDur {
			return aDur < bDur
		}
		if aPrice != bPrice {
			return aPrice < bPrice
		}
	}
	if a.Leg1.TrainID != b.Leg1.TrainID {
		return a.Leg1.TrainID < b.Leg1.TrainID
	}
	return a.Leg2.TrainID < b.Leg2.TrainID
}

func transferDuration(p TransferPlan) int32 {
	depAbs := int32(p.Leg1.Depart.Ordinal()*1440) + int32(p.Leg1.DepartTime)
	arrAbs := int32(p.Leg2.Arrive.Ordinal()*1440) + int32(p.Leg2.ArriveTime)
	return arrAbs - depAbs
}

// BuyResult is the outcome of an attempted seat purchase (§4.7.3).
type BuyResult struct {
	TotalPrice int32
	OriginDate dateutil.Date
	Success    bool
	FromIdx    int
	ToIdx      int
	Depart     dateutil.Date
	DepartTime dateutil.ClockTime
	Arrive     dateutil.Date
	ArriveTime dateutil.ClockTime
}

// BuyTicket resolves (fromIdx,toIdx), validates the date, and attempts
// to subtract num seats from every leg in [fromIdx,toIdx) for that
// originDate (§4.7.3 buyTicket).
//
// Per §9's documented source behavior, the decremented values are
// written back even when a leg would go negative; Success reports
// whether every leg stayed non-negative. Callers (O) never execute
// this path speculatively.
func (s *Service) BuyTicket(trainID string, date dateutil.Date, num int32, from, to string) (BuyResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok, err := s.lookupTrain(trainID)
	if err != nil {
		return BuyResult{}, err
	}
	if !ok {
		return BuyResult{}, ticketerr.New(ticketerr.CodeTrainNotFound, "no such train")
	}
	if !t.IsReleased {
		return BuyResult{}, ticketerr.New(ticketerr.CodeTrainNotFound, "train is not released")
	}
	stations, err := s.stations(t)
	if err != nil {
		return BuyResult{}, err
	}
	fromIdx := stationIndex(stations, from, 0)
	toIdx := stationIndex(stations, to, fromIdx+1)
	if fromIdx < 0 || toIdx < 0 {
		return BuyResult{}, ticketerr.New(ticketerr.CodeRouteNotFound, "from/to not found on this train in order")
	}

	leavingAtFrom := stations[fromIdx].LeavingOffset
	dayShift := (int(leavingAtFrom) + int(t.StartTime)) / 1440
	if (int(leavingAtFrom)+int(t.StartTime))%1440 < 0 {
		dayShift--
	}
	originDate := dateutil.AddDays(date, -dayShift)
	if !dateutil.InWindow(originDate, t.SaleStart, t.SaleEnd) {
		return BuyResult{}, ticketerr.New(ticketerr.CodeInvalidDate, "date outside train's sale window")
	}

	price := (stations[toIdx].Price - stations[fromIdx].Price) * num
	success, err := s.adjustSeats(t, originDate, fromIdx, toIdx, -num)
	if err != nil {
		return BuyResult{}, err
	}
	logging.LogReservationEvent(s.log, "sell", "", trainID,
		"fromIdx", fromIdx, "toIdx", toIdx, "num", num, "success", success).Debug("seats adjusted")

	depDate, depTime := dateutil.AddOffset(originDate, int(t.StartTime), int(stations[fromIdx].LeavingOffset))
	arrDate, arrTime := dateutil.AddOffset(originDate, int(t.StartTime), int(stations[toIdx].ArrivalOffset))

	return BuyResult{
		TotalPrice: price, OriginDate: originDate, Success: success,
		FromIdx: fromIdx, ToIdx: toIdx,
		Depart: depDate, DepartTime: depTime, Arrive: arrDate, ArriveTime: arrTime,
	}, nil
}

// RefundTicket adds num seats back to every leg in [fromIdx,toIdx) for
// originDate (§4.7.3 refundTicket).
func (s *Service) RefundTicket(trainID string, originDate dateutil.Date, num int32, fromIdx, toIdx int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok, err := s.lookupTrain(trainID)
	if err != nil {
		return err
	}
	if !ok {
		return ticketerr.New(ticketerr.CodeTrainNotFound, "no such train")
	}
	_, err = s.adjustSeats(t, originDate, fromIdx, toIdx, num)
	if err == nil {
		logging.LogReservationEvent(s.log, "refund", "", trainID,
			"fromIdx", fromIdx, "toIdx", toIdx, "num", num).Debug("seats released")
	}
	return err
}

// UpdateLeftSeats is the general seat mutator used by pending-order
// promotion; it reports success iff no leg went negative, and — unlike
// BuyTicket — does not write back on failure (§4.7.3 updateLeftSeats).
func (s *Service) UpdateLeftSeats(trainID string, originDate dateutil.Date, fromIdx, toIdx int, delta int32) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok, err := s.lookupTrain(trainID)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, ticketerr.New(ticketerr.CodeTrainNotFound, "no such train")
	}

	legCount := int(t.StationNum) - 1
	dayIdx := originDate.Ordinal() - t.SaleStart.Ordinal()
	offset := dayIdx*legCount + fromIdx
	n := toIdx - fromIdx
	cur, err := s.seats.ReadRange(t.TicketBucketID, offset, n)
	if err != nil {
		return false, fmt.Errorf("train: read seats: %w", err)
	}
	for _, v := range cur {
		if v+delta < 0 {
			return false, nil
		}
	}
	next := make([]int32, n)
	for i, v := range cur {
		next[i] = v + delta
	}
	if err := s.seats.UpdateRange(t.TicketBucketID, offset, n, next); err != nil {
		return false, fmt.Errorf("train: write seats: %w", err)
	}
	return true, nil
}

// adjustSeats performs the write-then-check update documented in §9:
// the decremented (or incremented) values are always written, and the
// bool return reports whether every leg stayed non-negative.
func (s *Service) adjustSeats(t Train, originDate dateutil.Date, fromIdx, toIdx int, delta int32) (bool, error) {
	legCount := int(t.StationNum) - 1
	dayIdx := originDate.Ordinal() - t.SaleStart.Ordinal()
	offset := dayIdx*legCount + fromIdx
	n := toIdx - fromIdx

	cur, err := s.seats.ReadRange(t.TicketBucketID, offset, n)
	if err != nil {
		return false, fmt.Errorf("train: read seats: %w", err)
	}
	next := make([]int32, n)
	success := true
	for i, v := range cur {
		next[i] = v + delta
		if next[i] < 0 {
			success = false
		}
	}
	if err := s.seats.UpdateRange(t.TicketBucketID, offset, n, next); err != nil {
		return false, fmt.Errorf("train: write seats: %w", err)
	}
	return success, nil
}
