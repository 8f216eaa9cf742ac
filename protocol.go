package main

import "encoding/json"

// Client -> Server message types
const (
	MsgRegister   = "register"
	MsgLogin      = "login"
	MsgGuest      = "guest"
	MsgAuth       = "auth"
	MsgProfile    = "profile"    // request a profile snapshot
	MsgUpgrades   = "upgrades"   // request the shop view (also the reply type)
	MsgAward      = "award"      // minigame payout
	MsgPurchase   = "purchase"   // buy one upgrade level
	MsgUnlockSkin = "unlock_skin"
	MsgScore      = "score"      // end-of-run score
	MsgModifiers  = "modifiers"  // request gameplay modifiers (also the reply type)
	MsgRedeem     = "redeem"     // redeem a QR reward code
	MsgScan       = "scan"       // simulated QR scan
)

// Server -> Client message types
const (
	MsgAuthOK         = "auth_ok"
	MsgPurchaseResult = "purchase_result"
	MsgAwardResult    = "award_result"
	MsgScoreResult    = "score_result"
	MsgSkinResult     = "skin_result"
	MsgReward         = "reward"
	MsgPassiveIncome  = "passive_income"
	MsgError          = "error"
	// MsgSnapshot never goes on the wire as JSON; the snapshot is a binary
	// msgpack frame. Tests use it to tag decoded binary frames.
	MsgSnapshot = "snapshot"
)

// Envelope wraps all outgoing messages with a type field
type Envelope struct {
	T    string      `json:"t"`
	Data interface{} `json:"d,omitempty"`
}

// InEnvelope is used for incoming messages; D is decoded by the handler
type InEnvelope struct {
	T string          `json:"t"`
	D json.RawMessage `json:"d,omitempty"`
}

// RegisterMsg creates an account
type RegisterMsg struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginMsg authenticates with credentials
type LoginMsg struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// AuthMsg authenticates with a token from an earlier login
type AuthMsg struct {
	Token string `json:"token"`
}

type AwardMsg struct {
	Amount int64 `json:"amount"`
}

type PurchaseMsg struct {
	ID string `json:"id"`
}

type UnlockSkinMsg struct {
	SkinID string `json:"skinId"`
}

type ScoreMsg struct {
	GameID string `json:"gameId"`
	Score  int64  `json:"score"`
}

type RedeemMsg struct {
	Code string `json:"code"`
}

// AuthOKMsg confirms authentication
type AuthOKMsg struct {
	Token    string `json:"token"`
	Username string `json:"username"`
	PlayerID string `json:"pid"`
	Guest    bool   `json:"guest,omitempty"`
}

// UpgradesMsg is the shop view
type UpgradesMsg struct {
	Upgrades  []ShopEntry `json:"upgrades"`
	TechLevel int         `json:"techLevel"`
}

type PurchaseResultMsg struct {
	ID       string `json:"id"`
	OK       bool   `json:"ok"`
	Price    int64  `json:"price,omitempty"`
	Error    string `json:"error,omitempty"`
	MagCoins int64  `json:"magCoins"`
}

type AwardResultMsg struct {
	Requested int64 `json:"requested"`
	Credited  int64 `json:"credited"`
	MagCoins  int64 `json:"magCoins"`
}

type ScoreResultMsg struct {
	GameID    string `json:"gameId"`
	Best      int64  `json:"best"`
	NewRecord bool   `json:"newRecord"`
}

type SkinResultMsg struct {
	SkinID   string `json:"skinId"`
	Unlocked bool   `json:"unlocked"`
}

// RewardMsg reports a QR or scan payout
type RewardMsg struct {
	Source   string `json:"source"` // "qr" or "scan"
	Code     string `json:"code,omitempty"`
	Amount   int64  `json:"amount"`
	MagCoins int64  `json:"magCoins"`
}

// PassiveIncomeMsg reports offline earnings credited at load
type PassiveIncomeMsg struct {
	Amount int64 `json:"amount"`
}

// ErrorMsg sends error to client
type ErrorMsg struct {
	Msg string `json:"msg"`
}

// ProfileSnapshot is the msgpack body of the binary frame sent after every change
type ProfileSnapshot struct {
	Profile   PlayerProfile `msgpack:"profile"`
	TechLevel int           `msgpack:"techLevel"`
}
