// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

// Package notify implements websocket and Server-Sent Events live-update
// channels for pending-order promotions — a supplement to the reservation
// engine's core: clients watching an order can be pushed its SUCCESS
// transition instead of having to poll queryOrder. The websocket side is
// grounded on the upgrader/keepAlive/send-JSON shape of a websocket
// broadcast server; the SSE side is grounded on the header/flusher/
// write-event shape of a Server-Sent Events endpoint.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// PromotionEvent is pushed to every subscribed client when O promotes a
// pending order to SUCCESS.
type PromotionEvent struct {
	Username  string    `json:"username"`
	TrainID   string    `json:"trainId"`
	Timestamp int64     `json:"timestamp"`
	SentAt    time.Time `json:"sentAt"`
}

// Hub fans out promotion events to every currently-connected websocket
// client. It implements order.Notifier.
type Hub struct {
	mu         sync.Mutex
	clients    map[*websocket.Conn]struct{}
	sseClients map[chan PromotionEvent]struct{}
	upgrader   websocket.Upgrader
}

// NewHub constructs an empty Hub.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*websocket.Conn]struct{}),
		sseClients: make(map[chan PromotionEvent]struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// OrderPromoted implements order.Notifier: it broadcasts the promotion
// to every connected client, dropping any connection that errors.
func (h *Hub) OrderPromoted(username, trainID string, timestamp int64) {
	h.broadcast(PromotionEvent{Username: username, TrainID: trainID, Timestamp: timestamp, SentAt: time.Now()})
}

func (h *Hub) broadcast(evt PromotionEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients {
		if err := conn.WriteJSON(evt); err != nil {
			log.Printf("notify: write failed, dropping client: %v", err)
			_ = conn.Close()
			delete(h.clients, conn)
		}
	}
	for ch := range h.sseClients {
		select {
		case ch <- evt:
		default:
			log.Printf("notify: sse subscriber backpressured, dropping event")
		}
	}
}

// ServeWS upgrades the request to a websocket and registers the
// connection until it errors or the request context ends.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("notify: upgrade error: %v", err)
		return
	}
	h.register(conn)
	defer h.unregister(conn)

	h.keepAlive(r.Context(), conn)
}

func (h *Hub) register(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[conn] = struct{}{}
}

func (h *Hub) unregister(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, conn)
	_ = conn.Close()
}

// keepAlive pings the connection until the context ends or the ping
// fails (e.g. the client disconnected).
func (h *Hub) keepAlive(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ServeSSE offers the same promotion feed over Server-Sent Events, for
// clients that can't hold a websocket connection open.
func (h *Hub) ServeSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch := make(chan PromotionEvent, 16)
	h.mu.Lock()
	h.sseClients[ch] = struct{}{}
	h.mu.Unlock()
	defer func() {
		h.mu.Lock()
		delete(h.sseClients, ch)
		h.mu.Unlock()
	}()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case evt := <-ch:
			data, err := json.Marshal(evt)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: order_promoted\ndata: %s\n\n", data)
			flusher.Flush()
		}
	}
}
