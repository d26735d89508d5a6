package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/uhyunpark/hyperdex/pkg/app/core/orderbook"
	"github.com/uhyunpark/hyperdex/pkg/app/dex"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
	sendBuffer = 256
)

// DealChannel is the subscription channel of a pair's deals.
func DealChannel(pairID uint64) string {
	return "deals:" + strconv.FormatUint(pairID, 10)
}

// BookChannel is the subscription channel of a pair's depth snapshots.
func BookChannel(pairID uint64) string {
	return "orderbook:" + strconv.FormatUint(pairID, 10)
}

// Hub tracks WebSocket clients and fans messages out to subscribers.
type Hub struct {
	log      *zap.SugaredLogger
	validate *validator.Validate
	upgrader websocket.Upgrader
	book     func(pairID uint64) (*OrderbookSnapshot, error)

	mu      sync.RWMutex
	clients map[*Client]struct{}
}

var _ dex.DealSink = (*Hub)(nil)

func NewHub(log *zap.SugaredLogger, validate *validator.Validate, checkOrigin func(*http.Request) bool) *Hub {
	return &Hub{
		log:      log,
		validate: validate,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
		clients: make(map[*Client]struct{}),
	}
}

// PublishDeals broadcasts each deal on its pair channel, then one fresh
// depth snapshot per traded pair. Slow clients miss messages rather than
// block the caller.
func (h *Hub) PublishDeals(_ context.Context, deals []*orderbook.Deal) error {
	var pairs []uint64
	seen := make(map[uint64]bool)
	for _, d := range deals {
		ch := DealChannel(d.SymPairID)
		if err := h.Broadcast(ch, DealUpdate{Type: "deal", Channel: ch, Deal: dealInfo(d)}); err != nil {
			return err
		}
		if !seen[d.SymPairID] {
			seen[d.SymPairID] = true
			pairs = append(pairs, d.SymPairID)
		}
	}
	if h.book == nil {
		return nil
	}
	for _, id := range pairs {
		snap, err := h.book(id)
		if err != nil {
			return err
		}
		ch := BookChannel(id)
		if err := h.Broadcast(ch, BookUpdate{Type: "orderbook", Channel: ch, Book: *snap}); err != nil {
			return err
		}
	}
	return nil
}

// Broadcast sends data to every client subscribed to channel.
func (h *Hub) Broadcast(channel string, data any) error {
	msg, err := json.Marshal(data)
	if err != nil {
		return err
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if !c.IsSubscribed(channel) {
			continue
		}
		select {
		case c.send <- msg:
		default:
			h.log.Debugw("ws_drop", "client", c.id, "channel", channel)
		}
	}
	return nil
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.log.Infow("ws_connected", "client", c.id, "total", n)
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	if ok {
		delete(h.clients, c)
		close(c.send)
	}
	n := len(h.clients)
	h.mu.Unlock()
	if ok {
		h.log.Infow("ws_disconnected", "client", c.id, "total", n)
	}
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
}

// ServeHTTP upgrades the request and starts the client pumps.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warnw("ws_upgrade_failed", "remote", r.RemoteAddr, "error", err)
		return
	}
	c := &Client{
		hub:           h,
		conn:          conn,
		send:          make(chan []byte, sendBuffer),
		id:            uuid.NewString(),
		subscriptions: make(map[string]struct{}),
	}
	h.register(c)
	go c.writePump()
	go c.readPump()
}

type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
	id   string

	subsMu        sync.RWMutex
	subscriptions map[string]struct{}
}

func (c *Client) IsSubscribed(channel string) bool {
	c.subsMu.RLock()
	defer c.subsMu.RUnlock()
	_, ok := c.subscriptions[channel]
	return ok
}

func (c *Client) apply(req WSSubscribeRequest) {
	c.subsMu.Lock()
	defer c.subsMu.Unlock()
	for _, ch := range req.Channels {
		if req.Op == "subscribe" {
			c.subscriptions[ch] = struct{}{}
		} else {
			delete(c.subscriptions, ch)
		}
	}
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.Warnw("ws_read_failed", "client", c.id, "error", err)
			}
			return
		}

		var req WSSubscribeRequest
		if err := json.Unmarshal(message, &req); err != nil {
			c.hub.log.Debugw("ws_bad_message", "client", c.id, "error", err)
			continue
		}
		if err := c.hub.validate.Struct(req); err != nil {
			c.hub.log.Debugw("ws_bad_message", "client", c.id, "error", err)
			continue
		}
		c.apply(req)
		c.hub.log.Debugw("ws_"+req.Op, "client", c.id, "channels", req.Channels)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
