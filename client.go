package main

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/gorilla/websocket"
	"github.com/vmihailenco/msgpack/v5"
)

const (
	writeWait          = 10 * time.Second
	pongWait           = 60 * time.Second
	pingPeriod         = (pongWait * 9) / 10
	maxMessageSize     = 4096
	sendBufSize        = 256
	maxMessagesPerSec  = 50
	maxAwardPerMessage = 100000
	loadTimeout        = 5 * time.Second
)

// Client represents a WebSocket connection
type Client struct {
	hub        *Hub
	conn       *websocket.Conn
	send       chan []byte
	remoteAddr string
	msgCount   int
	msgResetAt time.Time
	// Auth state; engine is nil until authenticated
	ident  Identity
	engine *Engine
}

// NewClient creates a new Client
func NewClient(hub *Hub, conn *websocket.Conn, remoteAddr string) *Client {
	return &Client{
		hub:        hub,
		conn:       conn,
		send:       make(chan []byte, sendBufSize),
		remoteAddr: remoteAddr,
	}
}

// ReadPump reads messages from the WebSocket connection
func (c *Client) ReadPump() {
	defer func() {
		c.hub.TrackDisconnect(c.remoteAddr)
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("ws error: %v", err)
			}
			break
		}

		// Rate limiting
		now := time.Now()
		if now.After(c.msgResetAt) {
			c.msgCount = 0
			c.msgResetAt = now.Add(time.Second)
		}
		c.msgCount++
		if c.msgCount > maxMessagesPerSec {
			log.Printf("rate limit exceeded for %s, disconnecting", c.remoteAddr)
			break
		}

		c.handleMessage(message)
	}
}

// WritePump writes messages to the WebSocket connection
func (c *Client) WritePump() {
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
			// Check for binary marker (0xFF prefix from SendBinary)
			var err error
			if len(message) > 0 && message[0] == 0xFF {
				err = c.conn.WriteMessage(websocket.BinaryMessage, message[1:])
			} else {
				err = c.conn.WriteMessage(websocket.TextMessage, message)
			}
			if err != nil {
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

// SendJSON sends a JSON message to the client
func (c *Client) SendJSON(msg interface{}) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("marshal error: %v", err)
		return
	}
	c.SendRaw(data)
}

// SendRaw sends pre-marshaled bytes as a text message to the client
func (c *Client) SendRaw(data []byte) {
	defer func() { recover() }()
	select {
	case c.send <- data:
	default:
		// Client too slow, drop message
	}
}

// SendBinary sends pre-marshaled bytes as a binary WebSocket message
// Prefixes with 0xFF marker byte so WritePump can distinguish from text
func (c *Client) SendBinary(data []byte) {
	defer func() { recover() }()
	msg := make([]byte, len(data)+1)
	msg[0] = 0xFF // binary marker
	copy(msg[1:], data)
	select {
	case c.send <- msg:
	default:
	}
}

func (c *Client) sendError(msg string) {
	c.SendJSON(Envelope{T: MsgError, Data: ErrorMsg{Msg: msg}})
}

// SendSnapshot pushes the current profile as a msgpack binary frame
func (c *Client) SendSnapshot() {
	if c.engine == nil {
		return
	}
	data, err := encodeSnapshot(c.engine)
	if err != nil {
		log.Printf("snapshot marshal error: %v", err)
		return
	}
	c.SendBinary(data)
}

func encodeSnapshot(e *Engine) ([]byte, error) {
	return msgpack.Marshal(ProfileSnapshot{
		Profile:   e.Snapshot(),
		TechLevel: e.TechLevel(),
	})
}

// handleMessage routes incoming messages (single-pass decode via InEnvelope)
func (c *Client) handleMessage(raw []byte) {
	var env InEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		log.Printf("unmarshal error: %v", err)
		return
	}

	switch env.T {
	case MsgRegister:
		c.handleRegister(env.D)
		return
	case MsgLogin:
		c.handleLogin(env.D)
		return
	case MsgGuest:
		c.handleGuest()
		return
	case MsgAuth:
		c.handleAuth(env.D)
		return
	}

	if c.engine == nil {
		c.sendError("not authenticated")
		return
	}

	switch env.T {
	case MsgProfile:
		c.SendSnapshot()
	case MsgUpgrades:
		c.handleUpgrades()
	case MsgModifiers:
		c.SendJSON(Envelope{T: MsgModifiers, Data: c.engine.Modifiers()})
	case MsgAward:
		c.handleAward(env.D)
	case MsgPurchase:
		c.handlePurchase(env.D)
	case MsgUnlockSkin:
		c.handleUnlockSkin(env.D)
	case MsgScore:
		c.handleScore(env.D)
	case MsgRedeem:
		c.handleRedeem(env.D)
	case MsgScan:
		c.handleScan()
	}
}

func (c *Client) handleRegister(data json.RawMessage) {
	if c.hub.auth == nil {
		return
	}
	var msg RegisterMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}
	ident, token, err := c.hub.auth.Register(msg.Username, msg.Password)
	if err != nil {
		c.sendError(err.Error())
		return
	}
	c.authenticated(ident, token)
}

func (c *Client) handleLogin(data json.RawMessage) {
	if c.hub.auth == nil {
		return
	}
	var msg LoginMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}
	ident, token, err := c.hub.auth.Login(msg.Username, msg.Password, c.remoteAddr)
	if err != nil {
		c.sendError(err.Error())
		return
	}
	c.authenticated(ident, token)
}

func (c *Client) handleGuest() {
	if c.hub.auth == nil {
		return
	}
	ident, token, err := c.hub.auth.Guest()
	if err != nil {
		c.sendError(err.Error())
		return
	}
	c.authenticated(ident, token)
}

func (c *Client) handleAuth(data json.RawMessage) {
	if c.hub.auth == nil {
		return
	}
	var msg AuthMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}
	ident, err := c.hub.auth.ValidateToken(msg.Token)
	if err != nil {
		c.sendError("invalid token")
		return
	}
	c.authenticated(ident, msg.Token)
}

// authenticated binds the connection to the player's engine and sends the
// initial state: auth_ok, passive income if any, then a snapshot.
func (c *Client) authenticated(ident Identity, token string) {
	if c.engine != nil {
		if c.ident.PlayerID == ident.PlayerID {
			c.SendJSON(Envelope{T: MsgAuthOK, Data: AuthOKMsg{Token: token, Username: ident.Username, PlayerID: ident.PlayerID, Guest: ident.Guest}})
			c.SendSnapshot()
			return
		}
		c.hub.Detach(c)
		c.engine = nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), loadTimeout)
	defer cancel()
	engine, res, err := c.hub.registry.Get(ctx, ident.PlayerID, ident.Username)
	if err != nil {
		log.Printf("load profile for %s: %v", ident.PlayerID, err)
		if errors.Is(err, ErrRegistryFull) {
			c.sendError(err.Error())
		} else {
			c.sendError("could not load profile")
		}
		return
	}

	// The engine reference taken by Get is dropped by Detach
	c.ident = ident
	c.engine = engine
	c.hub.Attach(c)

	c.SendJSON(Envelope{T: MsgAuthOK, Data: AuthOKMsg{
		Token:    token,
		Username: ident.Username,
		PlayerID: ident.PlayerID,
		Guest:    ident.Guest,
	}})
	if res != nil && res.PassiveEarned > 0 {
		c.SendJSON(Envelope{T: MsgPassiveIncome, Data: PassiveIncomeMsg{Amount: res.PassiveEarned}})
	}
	c.SendSnapshot()
}

func (c *Client) handleUpgrades() {
	c.SendJSON(Envelope{T: MsgUpgrades, Data: UpgradesMsg{
		Upgrades:  c.engine.Upgrades(),
		TechLevel: c.engine.TechLevel(),
	}})
}

func (c *Client) handleAward(data json.RawMessage) {
	var msg AwardMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}
	if msg.Amount > maxAwardPerMessage {
		c.sendError("award too large")
		return
	}
	credited := c.engine.AwardCoins(msg.Amount)
	c.SendJSON(Envelope{T: MsgAwardResult, Data: AwardResultMsg{
		Requested: msg.Amount,
		Credited:  credited,
		MagCoins:  c.engine.Snapshot().MagCoins,
	}})
	if credited > 0 {
		c.hub.BroadcastSnapshot(c.ident.PlayerID)
	}
}

func (c *Client) handlePurchase(data json.RawMessage) {
	var msg PurchaseMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}
	price, err := c.engine.Purchase(msg.ID)
	res := PurchaseResultMsg{ID: msg.ID, OK: err == nil, Price: price}
	if err != nil {
		res.Error = err.Error()
	}
	res.MagCoins = c.engine.Snapshot().MagCoins
	c.SendJSON(Envelope{T: MsgPurchaseResult, Data: res})
	if err == nil {
		c.hub.BroadcastSnapshot(c.ident.PlayerID)
	}
}

func (c *Client) handleUnlockSkin(data json.RawMessage) {
	var msg UnlockSkinMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}
	unlocked := c.engine.UnlockSkin(msg.SkinID)
	c.SendJSON(Envelope{T: MsgSkinResult, Data: SkinResultMsg{SkinID: msg.SkinID, Unlocked: unlocked}})
	if unlocked {
		c.hub.BroadcastSnapshot(c.ident.PlayerID)
	}
}

func (c *Client) handleScore(data json.RawMessage) {
	var msg ScoreMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}
	if !IsKnownGame(msg.GameID) {
		c.sendError("unknown game")
		return
	}
	best, record := c.engine.RecordScore(msg.GameID, msg.Score)
	c.SendJSON(Envelope{T: MsgScoreResult, Data: ScoreResultMsg{GameID: msg.GameID, Best: best, NewRecord: record}})
	if record {
		c.hub.BroadcastSnapshot(c.ident.PlayerID)
	}
}

func (c *Client) handleRedeem(data json.RawMessage) {
	if c.hub.qr == nil {
		c.sendError("reward codes unavailable")
		return
	}
	var msg RedeemMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}
	credited, err := c.hub.qr.Redeem(msg.Code, c.engine)
	switch {
	case errors.Is(err, ErrCodeNotFound), errors.Is(err, ErrCodeRedeemed):
		c.sendError(err.Error())
		return
	case err != nil:
		log.Printf("redeem %q for %s: %v", msg.Code, c.ident.PlayerID, err)
		c.sendError("could not redeem code")
		return
	}
	c.hub.track(EvtQrRedeem, c.ident.PlayerID, map[string]any{"code": msg.Code, "credited": credited})
	c.SendJSON(Envelope{T: MsgReward, Data: RewardMsg{
		Source:   "qr",
		Code:     msg.Code,
		Amount:   credited,
		MagCoins: c.engine.Snapshot().MagCoins,
	}})
	c.hub.BroadcastSnapshot(c.ident.PlayerID)
}

func (c *Client) handleScan() {
	credited := c.engine.AwardCoins(RandomScanReward())
	c.SendJSON(Envelope{T: MsgReward, Data: RewardMsg{
		Source:   "scan",
		Amount:   credited,
		MagCoins: c.engine.Snapshot().MagCoins,
	}})
	c.hub.BroadcastSnapshot(c.ident.PlayerID)
}
