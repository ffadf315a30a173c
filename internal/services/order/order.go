// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

// Package order implements the order manager (O, §4.8): a per-user
// order list and a pending queue keyed by (trainID, originDate),
// implementing sell/queue/refund/promote-pending on top of T.
package order

import (
	"fmt"
	"math"
	"path/filepath"
	"sync"

	"github.com/jontk/ticketd/internal/dateutil"
	"github.com/jontk/ticketd/internal/hashkey"
	"github.com/jontk/ticketd/internal/services/train"
	"github.com/jontk/ticketd/internal/storage/bptree"
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

// Notifier is notified whenever processPendingOrders promotes an order
// from PENDING to SUCCESS (the websocket live-update supplement).
type Notifier interface {
	OrderPromoted(username, trainID string, timestamp int64)
}

type noOpNotifier struct{}

func (noOpNotifier) OrderPromoted(string, string, int64) {}

// Service is the order manager (§4.8).
type Service struct {
	mu sync.Mutex

	byUser  *bptree.Tree[uint64, Order]
	pending *bptree.Tree[bptree.TrainDateKey, Order]
	trains  *train.Service

	notify Notifier
	log    logging.Logger
}

// Open opens or creates the backing B+-tree files under opts.DataDir.
// trains is the already-open Train service O delegates seat arithmetic
// to.
func Open(opts Options, trains *train.Service, notify Notifier) (*Service, error) {
	log := opts.Logger
	if log == nil {
		log = logging.NoOpLogger{}
	}
	if notify == nil {
		notify = noOpNotifier{}
	}

	byUser, err := bptree.Open[uint64, Order](
		filepath.Join(opts.DataDir, "orders_byuser_node"),
		filepath.Join(opts.DataDir, "orders_byuser_data"),
		bptree.Options[uint64, Order]{
			NodeFanout: opts.NodeFanout, BlockCapacity: opts.BlockCapacity,
			KeyCodec: bptree.Uint64Codec{}, ValueCodec: orderCodec{},
			KeyLess: bptree.LessUint64, ValueLess: orderLess, MaxKey: math.MaxUint64,
			CacheK: opts.CacheK, CacheCapacity: opts.CacheCapacity, Logger: log,
		})
	if err != nil {
		return nil, fmt.Errorf("order: open byUser index: %w", err)
	}

	pending, err := bptree.Open[bptree.TrainDateKey, Order](
		filepath.Join(opts.DataDir, "orders_pending_node"),
		filepath.Join(opts.DataDir, "orders_pending_data"),
		bptree.Options[bptree.TrainDateKey, Order]{
			NodeFanout: opts.NodeFanout, BlockCapacity: opts.BlockCapacity,
			KeyCodec: bptree.TrainDateKeyCodec{}, ValueCodec: orderCodec{},
			KeyLess: bptree.LessTrainDateKey, ValueLess: orderLess,
			MaxKey: bptree.TrainDateKey{TrainIDHash: math.MaxUint64, OriginDate: math.MaxInt32},
			CacheK: opts.CacheK, CacheCapacity: opts.CacheCapacity, Logger: log,
		})
	if err != nil {
		return nil, fmt.Errorf("order: open pending index: %w", err)
	}

	return &Service{byUser: byUser, pending: pending, trains: trains, notify: notify, log: log}, nil
}

// Close flushes and closes both backing stores.
func (s *Service) Close() error {
	var firstErr error
	if err := s.byUser.Close(); err != nil {
		firstErr = err
	}
	if err := s.pending.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

func pendingKey(trainID string, originDate dateutil.Date) bptree.TrainDateKey {
	return bptree.TrainDateKey{TrainIDHash: hashkey.Hash(trainID), OriginDate: int32(originDate.Month*100 + originDate.Day)}
}

// QueryOrder returns username's orders, newest-first (§4.8 queryOrder).
func (s *Service) QueryOrder(username string) ([]Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	matches, err := s.byUser.Find(hashkey.Hash(username))
	if err != nil {
		return nil, fmt.Errorf("order: query %q: %w", username, err)
	}
	var out []Order
	for _, o := range matches {
		if o.Username == username {
			out = append(out, o)
		}
	}
	// matches arrive ascending by timestamp; emit newest-first.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// BuyTicket delegates seat arithmetic to T and records the outcome
// (§4.8 buyTicket). Returns the price charged on SUCCESS, 0 on queued,
// -1 (with a nil error) when seats are short and queueIfFull is false,
// or an error for a hard rejection.
func (s *Service) BuyTicket(username, trainID string, date dateutil.Date, num int32, from, to string, queueIfFull bool, timestamp int64) (int32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if num <= 0 {
		return 0, ticketerr.New(ticketerr.CodeInvalidTicketNum, "ticket count must be positive")
	}

	res, err := s.trains.BuyTicket(trainID, date, num, from, to)
	if err != nil {
		return 0, err
	}

	o := Order{
		Username: username, TrainID: trainID, From: from, To: to,
		FromIdx: int32(res.FromIdx), ToIdx: int32(res.ToIdx),
		OriginDate: res.OriginDate, Depart: res.Depart, DepartTime: res.DepartTime,
		Arrive: res.Arrive, ArriveTime: res.ArriveTime,
		Price: res.TotalPrice, Num: num, Timestamp: timestamp,
	}

	if res.Success {
		o.Status = StatusSuccess
		if err := s.byUser.Insert(hashkey.Hash(username), o); err != nil {
			return 0, fmt.Errorf("order: insert success order: %w", err)
		}
		logging.LogReservationEvent(s.log, "sell", username, trainID,
			"num", num, "price", res.TotalPrice).Info("ticket sold")
		return res.TotalPrice, nil
	}

	// T.BuyTicket writes the decrement back even when it fails; put the
	// seats back so a rejected or queued request holds no inventory.
	if err := s.trains.RefundTicket(trainID, res.OriginDate, num, res.FromIdx, res.ToIdx); err != nil {
		return 0, err
	}

	if !queueIfFull {
		return -1, nil
	}

	o.Status = StatusPending
	if err := s.byUser.Insert(hashkey.Hash(username), o); err != nil {
		return 0, fmt.Errorf("order: insert pending order (byUser): %w", err)
	}
	if err := s.pending.Insert(pendingKey(trainID, res.OriginDate), o); err != nil {
		return 0, fmt.Errorf("order: insert pending order (pendingByTrain): %w", err)
	}
	logging.LogReservationEvent(s.log, "queue", username, trainID, "num", num).Info("order queued")
	return 0, nil
}

// RefundTicket refunds the orderIndex-th (1-based, newest-first) order
// of username (§4.8 refundTicket).
func (s *Service) RefundTicket(username string, orderIndex int) error {
	s.mu.Lock()

	orders, err := s.findUserOrders(username)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	// orders is ascending by timestamp (oldest first); orderIndex is
	// 1-based newest-first.
	if orderIndex < 1 || orderIndex > len(orders) {
		s.mu.Unlock()
		return ticketerr.New(ticketerr.CodeOrderIndexOutRange, "order index out of range")
	}
	target := orders[len(orders)-orderIndex]
	if target.Status == StatusRefunded {
		s.mu.Unlock()
		return ticketerr.New(ticketerr.CodeAlreadyRefunded, "order already refunded")
	}

	if err := s.byUser.Remove(hashkey.Hash(username), target); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("order: remove old order: %w", err)
	}
	if target.Status == StatusPending {
		if err := s.pending.Remove(pendingKey(target.TrainID, target.OriginDate), target); err != nil {
			s.mu.Unlock()
			return fmt.Errorf("order: remove pending entry: %w", err)
		}
	}

	refunded := target
	refunded.Status = StatusRefunded
	if err := s.byUser.Insert(hashkey.Hash(username), refunded); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("order: insert refunded order: %w", err)
	}

	wasSuccess := target.Status == StatusSuccess
	trainID, originDate, fromIdx, toIdx, num := target.TrainID, target.OriginDate, int(target.FromIdx), int(target.ToIdx), target.Num
	s.mu.Unlock()

	logging.LogReservationEvent(s.log, "refund", username, trainID, "orderIndex", orderIndex).Info("order refunded")

	if !wasSuccess {
		return nil
	}
	if err := s.trains.RefundTicket(trainID, originDate, num, fromIdx, toIdx); err != nil {
		return err
	}
	return s.ProcessPendingOrders(trainID, originDate)
}

func (s *Service) findUserOrders(username string) ([]Order, error) {
	matches, err := s.byUser.Find(hashkey.Hash(username))
	if err != nil {
		return nil, fmt.Errorf("order: find %q: %w", username, err)
	}
	var out []Order
	for _, o := range matches {
		if o.Username == username {
			out = append(out, o)
		}
	}
	return out, nil
}

// ProcessPendingOrders promotes as many FIFO-ordered pending orders for
// (trainID, originDate) as seat availability allows (§4.8
// processPendingOrders).
func (s *Service) ProcessPendingOrders(trainID string, originDate dateutil.Date) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.processPendingLocked(trainID, originDate)
}

func (s *Service) processPendingLocked(trainID string, originDate dateutil.Date) error {
	key := pendingKey(trainID, originDate)
	candidates, err := s.pending.Find(key)
	if err != nil {
		return fmt.Errorf("order: find pending candidates: %w", err)
	}

	for _, cand := range candidates {
		ok, err := s.trains.UpdateLeftSeats(trainID, originDate, int(cand.FromIdx), int(cand.ToIdx), -cand.Num)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}

		if err := s.pending.Remove(key, cand); err != nil {
			return fmt.Errorf("order: remove promoted pending entry: %w", err)
		}
		if err := s.byUser.Remove(hashkey.Hash(cand.Username), cand); err != nil {
			return fmt.Errorf("order: remove pre-promotion order: %w", err)
		}
		promoted := cand
		promoted.Status = StatusSuccess
		if err := s.byUser.Insert(hashkey.Hash(cand.Username), promoted); err != nil {
			return fmt.Errorf("order: insert promoted order: %w", err)
		}
		logging.LogReservationEvent(s.log, "promote", cand.Username, trainID,
			"num", cand.Num).Info("pending order promoted")
		s.notify.OrderPromoted(cand.Username, trainID, cand.Timestamp)
	}
	return nil
}
