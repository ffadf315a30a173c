// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

// Package api is a thin HTTP façade over U, T, and O. The command
// grammar's own parsing/formatting is out of scope (§1 Non-goals); this
// package exists only to prove the services are callable over HTTP, not
// to reimplement that dispatcher.
package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/jontk/ticketd/internal/services/order"
	"github.com/jontk/ticketd/internal/services/train"
	"github.com/jontk/ticketd/internal/services/user"
	"github.com/jontk/ticketd/pkg/logging"
)

// Server wires U, T, and O onto a routed HTTP handler.
type Server struct {
	users   *user.Service
	trains  *train.Service
	orders  *order.Service
	log     logging.Logger
	stats   *routeStats
	router  *mux.Router
}

// NewServer builds the routed façade.
func NewServer(users *user.Service, trains *train.Service, orders *order.Service, log logging.Logger) *Server {
	if log == nil {
		log = logging.NoOpLogger{}
	}
	s := &Server{users: users, trains: trains, orders: orders, log: log, stats: newRouteStats()}
	s.router = mux.NewRouter()
	s.router.Use(withMetrics(s.stats))
	s.routes()
	s.router.HandleFunc("/metrics", s.handleMetrics).Methods(http.MethodGet)
	return s
}

// Router returns the handler to mount on an http.Server.
func (s *Server) Router() http.Handler {
	return withRequestID(s.log, s.router)
}

func (s *Server) routes() {
	s.router.HandleFunc("/users", s.handleAddUser).Methods(http.MethodPost)
	s.router.HandleFunc("/users/{username}", s.handleQueryProfile).Methods(http.MethodGet)
	s.router.HandleFunc("/users/{username}", s.handleModifyProfile).Methods(http.MethodPatch)
	s.router.HandleFunc("/sessions", s.handleLogin).Methods(http.MethodPost)
	s.router.HandleFunc("/sessions/{username}", s.handleLogout).Methods(http.MethodDelete)

	s.router.HandleFunc("/trains", s.handleAddTrain).Methods(http.MethodPost)
	s.router.HandleFunc("/trains/{trainID}", s.handleDeleteTrain).Methods(http.MethodDelete)
	s.router.HandleFunc("/trains/{trainID}/release", s.handleReleaseTrain).Methods(http.MethodPost)
	s.router.HandleFunc("/trains/{trainID}", s.handleQueryTrain).Methods(http.MethodGet)
	s.router.HandleFunc("/tickets", s.handleQueryTicket).Methods(http.MethodGet)
	s.router.HandleFunc("/transfers", s.handleQueryTransfer).Methods(http.MethodGet)

	s.router.HandleFunc("/orders", s.handleBuyTicket).Methods(http.MethodPost)
	s.router.HandleFunc("/orders", s.handleQueryOrder).Methods(http.MethodGet)
	s.router.HandleFunc("/orders/{index}/refund", s.handleRefundTicket).Methods(http.MethodPost)
}
