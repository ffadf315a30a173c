// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

// Package engine wires U, T, and O onto a shared configuration, giving
// cmd/ticketd a single construction point for the reservation engine.
package engine

import (
	"fmt"

	"github.com/jontk/ticketd/internal/notify"
	"github.com/jontk/ticketd/internal/services/order"
	"github.com/jontk/ticketd/internal/services/train"
	"github.com/jontk/ticketd/internal/services/user"
	"github.com/jontk/ticketd/pkg/config"
	"github.com/jontk/ticketd/pkg/logging"
)

// Engine bundles the three domain services plus the websocket notifier
// that bridges O's pending-promotion events to subscribed clients.
type Engine struct {
	Users  *user.Service
	Trains *train.Service
	Orders *order.Service
	Notify *notify.Hub
}

// Open opens every backing store under cfg.DataDir.
func Open(cfg *config.Config, log logging.Logger) (*Engine, error) {
	users, err := user.Open(user.Options{
		DataDir: cfg.DataDir, NodeFanout: cfg.NodeFanout, BlockCapacity: cfg.BlockCapacity,
		CacheK: cfg.CacheK, CacheCapacity: cfg.CacheCapacity, Logger: log,
	})
	if err != nil {
		return nil, fmt.Errorf("engine: open users: %w", err)
	}

	trains, err := train.Open(train.Options{
		DataDir: cfg.DataDir, NodeFanout: cfg.NodeFanout, BlockCapacity: cfg.BlockCapacity,
		CacheK: cfg.CacheK, CacheCapacity: cfg.CacheCapacity, Logger: log,
	})
	if err != nil {
		return nil, fmt.Errorf("engine: open trains: %w", err)
	}

	hub := notify.NewHub()
	orders, err := order.Open(order.Options{
		DataDir: cfg.DataDir, NodeFanout: cfg.NodeFanout, BlockCapacity: cfg.BlockCapacity,
		CacheK: cfg.CacheK, CacheCapacity: cfg.CacheCapacity, Logger: log,
	}, trains, hub)
	if err != nil {
		return nil, fmt.Errorf("engine: open orders: %w", err)
	}

	return &Engine{Users: users, Trains: trains, Orders: orders, Notify: hub}, nil
}

// Close closes every backing store, collecting the first error.
func (e *Engine) Close() error {
	var firstErr error
	for _, c := range []func() error{e.Orders.Close, e.Trains.Close, e.Users.Close} {
		if err := c(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
