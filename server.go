package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"net/url"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
)

const (
	defaultLeaderboardSize = 10
	maxLeaderboardSize     = 100
	statsDays              = 7
	maxGrantAmount         = 1_000_000
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true // Non-browser clients don't send Origin
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		return u.Host == r.Host
	},
}

func extractIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// Server exposes the HTTP API, the WebSocket endpoint and the client files
type Server struct {
	hub       *Hub
	db        *DB
	registry  *Registry
	analytics *Analytics
	flavor    *Flavor
	clientDir string
}

// NewServer wires the HTTP layer. analytics may be nil.
func NewServer(hub *Hub, analytics *Analytics, flavor *Flavor, clientDir string) *Server {
	return &Server{
		hub:       hub,
		db:        hub.db,
		registry:  hub.registry,
		analytics: analytics,
		flavor:    flavor,
		clientDir: clientDir,
	}
}

type ctxKey int

const identityKey ctxKey = iota

// Routes configures HTTP routes
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Get("/ws", s.handleWS)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Logger)
		r.Use(middleware.Timeout(30 * time.Second))

		r.Get("/catalog", s.handleCatalog)
		r.Get("/games", s.handleGames)
		r.Get("/leaderboard/{gameID}", s.handleLeaderboard)
		r.Get("/fact", s.handleFact)

		r.Route("/admin", func(r chi.Router) {
			r.Use(s.requireAdmin)
			r.Get("/stats", s.handleStats)
			r.Post("/qr", s.handleCreateQr)
			r.Post("/quest", s.handleQuest)
			r.Post("/grant", s.handleGrant)
		})
	})

	r.NotFound(s.handleStatic)
	return r
}

// handleStatic serves client files with no-cache so browsers always revalidate.
// Paths without an extension are client-side routes and get index.html.
func (s *Server) handleStatic(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Cache-Control", "no-cache")
	if r.URL.Path == "/" || path.Ext(r.URL.Path) == "" {
		http.ServeFile(w, r, filepath.Join(s.clientDir, "index.html"))
		return
	}
	http.FileServer(http.Dir(s.clientDir)).ServeHTTP(w, r)
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	ip := extractIP(r)
	if !s.hub.CanAccept(ip) {
		http.Error(w, "too many connections", http.StatusServiceUnavailable)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("upgrade error: %v", err)
		return
	}

	s.hub.TrackConnect(ip)

	client := NewClient(s.hub, conn, ip)
	s.hub.register <- client

	go client.WritePump()
	go client.ReadPump()
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"clients": s.hub.ClientCount(),
		"online":  s.hub.OnlineCount(),
		"engines": s.registry.Count(),
	})
}

func (s *Server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, UpgradeCatalog)
}

func (s *Server) handleGames(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, Games)
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	gameID := chi.URLParam(r, "gameID")
	if !IsKnownGame(gameID) {
		writeError(w, http.StatusNotFound, "unknown game")
		return
	}
	if s.db == nil {
		writeJSON(w, http.StatusOK, []LeaderboardEntry{})
		return
	}
	limit := defaultLeaderboardSize
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = min(n, maxLeaderboardSize)
	}
	entries, err := s.db.GetLeaderboard(gameID, limit)
	if err != nil {
		log.Printf("leaderboard %s: %v", gameID, err)
		writeError(w, http.StatusInternalServerError, "leaderboard unavailable")
		return
	}
	if entries == nil {
		entries = []LeaderboardEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleFact(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"fact": s.flavor.DailyFact(r.Context())})
}

// requireAdmin accepts a Bearer token whose player profile has the admin flag
func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.hub.auth == nil {
			writeError(w, http.StatusServiceUnavailable, "accounts disabled")
			return
		}
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || token == "" {
			writeError(w, http.StatusUnauthorized, "missing token")
			return
		}
		ident, err := s.hub.auth.ValidateToken(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		admin, err := s.registry.IsAdmin(r.Context(), ident.PlayerID)
		if err != nil {
			log.Printf("admin check for %s: %v", ident.PlayerID, err)
			writeError(w, http.StatusInternalServerError, "could not read profile")
			return
		}
		if !admin {
			writeError(w, http.StatusForbidden, "admin only")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), identityKey, ident)))
	})
}

// AdminStats is the admin dashboard summary
type AdminStats struct {
	Players          int             `json:"players"`
	Online           int             `json:"online"`
	Engines          int             `json:"engines"`
	DAU              int             `json:"dau"`
	Events           map[string]int  `json:"events"`
	SessionEvents    map[string]int  `json:"sessionEvents"`
	PopularPurchases []ItemAnalytics `json:"popularPurchases"`
	CoinsAwarded     int64           `json:"coinsAwarded"`
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats := AdminStats{
		Online:  s.hub.OnlineCount(),
		Engines: s.registry.Count(),
	}
	var err error
	if stats.Players, err = s.db.CountPlayers(); err != nil {
		log.Printf("stats: count players: %v", err)
	}
	if s.analytics != nil {
		stats.SessionEvents = s.analytics.SessionCounts()
		if stats.DAU, err = s.analytics.DAUCount(); err != nil {
			log.Printf("stats: dau: %v", err)
		}
		if stats.Events, err = s.analytics.EventCounts(statsDays); err != nil {
			log.Printf("stats: event counts: %v", err)
		}
		if stats.PopularPurchases, err = s.analytics.PopularPurchases(10); err != nil {
			log.Printf("stats: popular purchases: %v", err)
		}
		if stats.CoinsAwarded, err = s.analytics.CoinsAwarded(statsDays); err != nil {
			log.Printf("stats: coins awarded: %v", err)
		}
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleCreateQr(w http.ResponseWriter, r *http.Request) {
	var req QrReward
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	code, png, err := s.hub.qr.Create(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("X-Qr-Code", code.Code)
	w.WriteHeader(http.StatusCreated)
	w.Write(png)
}

type questRequest struct {
	Theme string `json:"theme"`
}

func (s *Server) handleQuest(w http.ResponseWriter, r *http.Request) {
	var req questRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if strings.TrimSpace(req.Theme) == "" {
		req.Theme = "magnetism"
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"theme":       req.Theme,
		"description": s.flavor.QuestDescription(r.Context(), req.Theme),
	})
}

type grantRequest struct {
	PlayerID string `json:"playerId"`
	Amount   int64  `json:"amount"`
}

// handleGrant pays MagCoins to any player through the regular award path
func (s *Server) handleGrant(w http.ResponseWriter, r *http.Request) {
	var req grantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if req.Amount <= 0 || req.Amount > maxGrantAmount {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("amount must be between 1 and %d", maxGrantAmount))
		return
	}
	player, err := s.db.GetPlayerByID(req.PlayerID)
	if err != nil {
		log.Printf("grant: lookup %s: %v", req.PlayerID, err)
		writeError(w, http.StatusInternalServerError, "lookup failed")
		return
	}
	if player == nil {
		writeError(w, http.StatusNotFound, "player not found")
		return
	}

	engine, _, err := s.registry.Get(r.Context(), player.ID, player.Username)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, ErrRegistryFull) {
			status = http.StatusServiceUnavailable
		}
		writeError(w, status, err.Error())
		return
	}
	defer s.registry.Release(r.Context(), player.ID)
	credited := engine.AwardCoins(req.Amount)
	balance := engine.Snapshot().MagCoins
	s.hub.BroadcastSnapshot(player.ID)

	admin, _ := r.Context().Value(identityKey).(Identity)
	log.Printf("admin %s granted %d MC (credited %d) to %s", admin.Username, req.Amount, credited, player.ID)
	writeJSON(w, http.StatusOK, map[string]int64{"credited": credited, "magCoins": balance})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorMsg{Msg: msg})
}
