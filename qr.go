package main

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	qrcode "github.com/skip2/go-qrcode"
)

// QrType controls how often a code pays out
type QrType string

const (
	QrOneTime QrType = "ONE_TIME" // first scanner only
	QrMulti   QrType = "MULTI"    // once per player
	QrDaily   QrType = "DAILY"    // once per player per UTC day
)

const (
	qrImageSize    = 256
	scanRewardMin  = 500
	scanRewardMax  = 2499
	maxQrCodeLen   = 64
	maxQrRewardAmt = 1_000_000
)

var (
	ErrCodeNotFound = errors.New("unknown reward code")
	ErrCodeRedeemed = errors.New("reward code already redeemed")
	ErrInvalidCode  = errors.New("invalid reward code")
)

// QrReward is a scannable code worth a fixed amount of MagCoins
type QrReward struct {
	Code         string `json:"code"`
	Type         QrType `json:"type"`
	RewardAmount int64  `json:"rewardAmount"`
	Description  string `json:"description"`
}

// CoinAwarder is the part of an Engine a redemption needs
type CoinAwarder interface {
	PlayerID() string
	AwardCoins(amount int64) int64
}

// QrRewards stores reward codes and their redemptions
type QrRewards struct {
	db  *DB
	now func() time.Time
}

// NewQrRewards creates the reward code service
func NewQrRewards(db *DB) *QrRewards {
	return &QrRewards{db: db, now: time.Now}
}

func (t QrType) valid() bool {
	switch t {
	case QrOneTime, QrMulti, QrDaily:
		return true
	}
	return false
}

// Create stores a new code and returns its PNG image. An empty code gets a random one.
func (q *QrRewards) Create(r QrReward) (QrReward, []byte, error) {
	r.Code = strings.TrimSpace(r.Code)
	if r.Code == "" {
		r.Code = "MC-" + strings.ToUpper(GenerateID(4))
	}
	if len(r.Code) > maxQrCodeLen {
		return QrReward{}, nil, ErrInvalidCode
	}
	if !r.Type.valid() {
		return QrReward{}, nil, fmt.Errorf("unknown code type %q", r.Type)
	}
	if r.RewardAmount <= 0 || r.RewardAmount > maxQrRewardAmt {
		return QrReward{}, nil, fmt.Errorf("reward must be 1-%d MagCoins", maxQrRewardAmt)
	}

	_, err := q.db.conn.Exec(
		"INSERT INTO qr_codes (code, kind, reward, description) VALUES (?, ?, ?, ?)",
		r.Code, string(r.Type), r.RewardAmount, r.Description,
	)
	if err != nil {
		return QrReward{}, nil, fmt.Errorf("store code: %w", err)
	}

	png, err := qrcode.Encode(r.Code, qrcode.Medium, qrImageSize)
	if err != nil {
		return QrReward{}, nil, fmt.Errorf("encode qr image: %w", err)
	}
	return r, png, nil
}

// Get returns a stored code
func (q *QrRewards) Get(code string) (QrReward, error) {
	var r QrReward
	var kind string
	err := q.db.conn.QueryRow(
		"SELECT code, kind, reward, description FROM qr_codes WHERE code = ?",
		code,
	).Scan(&r.Code, &kind, &r.RewardAmount, &r.Description)
	if errors.Is(err, sql.ErrNoRows) {
		return QrReward{}, ErrCodeNotFound
	}
	if err != nil {
		return QrReward{}, err
	}
	r.Type = QrType(kind)
	return r, nil
}

// Redeem pays a code to the player if its usage type still allows it and
// returns the credited amount.
func (q *QrRewards) Redeem(code string, player CoinAwarder) (int64, error) {
	r, err := q.Get(strings.TrimSpace(code))
	if err != nil {
		return 0, err
	}

	pid := player.PlayerID()
	res, err := q.db.conn.Exec(
		"INSERT OR IGNORE INTO qr_redemptions (code, scope, player_id) VALUES (?, ?, ?)",
		r.Code, q.scope(r.Type, pid), pid,
	)
	if err != nil {
		return 0, fmt.Errorf("record redemption: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return 0, ErrCodeRedeemed
	}
	return player.AwardCoins(r.RewardAmount), nil
}

// scope is the uniqueness key of a redemption within a code
func (q *QrRewards) scope(t QrType, playerID string) string {
	switch t {
	case QrOneTime:
		return ""
	case QrDaily:
		return playerID + ":" + q.now().UTC().Format("2006-01-02")
	default:
		return playerID
	}
}

// RandomScanReward is the payout of a simulated scan
func RandomScanReward() int64 {
	return RandomInt(scanRewardMin, scanRewardMax)
}
