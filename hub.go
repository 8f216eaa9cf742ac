package main

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"
)

const (
	maxConnsPerIP = 5
	maxTotalConns = 1000
)

// Hub manages all connected clients and binds them to player engines
type Hub struct {
	mu         sync.RWMutex
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	// Connection limiting (mutex-protected, accessed from HTTP handlers)
	connMu     sync.Mutex
	ipConns    map[string]int
	totalConns int
	// Economy services
	db       *DB
	auth     *Auth
	registry *Registry
	qr       *QrRewards
	tracker  Tracker
	// Online players: playerID -> connections sharing that player's engine
	onlineMu    sync.RWMutex
	onlineUsers map[string]map[*Client]bool
}

// NewHub creates a new Hub. db may be nil, which disables accounts and QR codes.
func NewHub(db *DB, registry *Registry, tracker Tracker) *Hub {
	h := &Hub{
		clients:     make(map[*Client]bool),
		register:    make(chan *Client, 64),
		unregister:  make(chan *Client, 64),
		ipConns:     make(map[string]int),
		db:          db,
		registry:    registry,
		tracker:     tracker,
		onlineUsers: make(map[string]map[*Client]bool),
	}
	if db != nil {
		h.auth = NewAuth(db)
		h.qr = NewQrRewards(db)
	}
	return h
}

func (h *Hub) CanAccept(ip string) bool {
	h.connMu.Lock()
	defer h.connMu.Unlock()
	if h.totalConns >= maxTotalConns {
		return false
	}
	if h.ipConns[ip] >= maxConnsPerIP {
		return false
	}
	return true
}

func (h *Hub) TrackConnect(ip string) {
	h.connMu.Lock()
	defer h.connMu.Unlock()
	h.ipConns[ip]++
	h.totalConns++
}

func (h *Hub) TrackDisconnect(ip string) {
	h.connMu.Lock()
	defer h.connMu.Unlock()
	h.ipConns[ip]--
	if h.ipConns[ip] <= 0 {
		delete(h.ipConns, ip)
	}
	h.totalConns--
}

// Run processes register/unregister events
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			if client.engine != nil {
				h.Detach(client)
			}
		}
	}
}

// Attach marks a client as online for its player
func (h *Hub) Attach(c *Client) {
	pid := c.ident.PlayerID
	h.onlineMu.Lock()
	conns, ok := h.onlineUsers[pid]
	if !ok {
		conns = make(map[*Client]bool)
		h.onlineUsers[pid] = conns
	}
	conns[c] = true
	h.onlineMu.Unlock()

	if !ok {
		h.track(EvtSessionStart, pid, nil)
	}
}

// Detach removes a client from its player's connections and drops the
// client's engine reference.
func (h *Hub) Detach(c *Client) {
	pid := c.ident.PlayerID
	h.onlineMu.Lock()
	conns := h.onlineUsers[pid]
	delete(conns, c)
	last := len(conns) == 0
	if last {
		delete(h.onlineUsers, pid)
	}
	h.onlineMu.Unlock()

	if c.engine != nil && h.registry != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		h.registry.Release(ctx, pid)
	}
	if last {
		h.track(EvtSessionEnd, pid, nil)
	}
}

// IsOnline checks if a player has at least one connection
func (h *Hub) IsOnline(playerID string) bool {
	h.onlineMu.RLock()
	defer h.onlineMu.RUnlock()
	return len(h.onlineUsers[playerID]) > 0
}

// OnlineCount returns the number of distinct online players
func (h *Hub) OnlineCount() int {
	h.onlineMu.RLock()
	defer h.onlineMu.RUnlock()
	return len(h.onlineUsers)
}

// BroadcastSnapshot sends the player's current profile to each of their connections
func (h *Hub) BroadcastSnapshot(playerID string) {
	if h.registry == nil {
		return
	}
	e := h.registry.Lookup(playerID)
	if e == nil {
		return
	}
	data, err := encodeSnapshot(e)
	if err != nil {
		log.Printf("snapshot marshal error: %v", err)
		return
	}
	h.onlineMu.RLock()
	defer h.onlineMu.RUnlock()
	for c := range h.onlineUsers[playerID] {
		c.SendBinary(data)
	}
}

func (h *Hub) track(evtType, playerID string, data map[string]any) {
	if h.tracker == nil {
		return
	}
	var raw []byte
	if data != nil {
		var err error
		if raw, err = json.Marshal(data); err != nil {
			log.Printf("hub: encode %s event: %v", evtType, err)
			return
		}
	}
	h.tracker.Track(evtType, playerID, string(raw))
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// TotalConns returns the tracked connection count
func (h *Hub) TotalConns() int {
	h.connMu.Lock()
	defer h.connMu.Unlock()
	return h.totalConns
}
