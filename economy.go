package main

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sync"
	"time"
)

var (
	ErrUpgradeNotFound   = errors.New("upgrade not found")
	ErrInsufficientFunds = errors.New("not enough MagCoins")
	ErrUpgradeMaxed      = errors.New("upgrade already at max level")
)

const defaultPersistTimeout = 5 * time.Second

// Tracker receives economy events for analytics
type Tracker interface {
	Track(evtType string, playerID string, data string)
}

// Engine owns one player's profile and upgrade progress. Every operation is a
// single read-modify-write under mu, followed by a write-through to storage.
type Engine struct {
	mu       sync.Mutex
	profile  *PlayerProfile
	progress []UpgradeProgress
	index    map[string]int

	store          *ProfileStore // nil keeps state in memory only
	tracker        Tracker
	persistTimeout time.Duration
	persistErr     error
}

// NewEngine wraps already loaded state
func NewEngine(profile *PlayerProfile, progress []UpgradeProgress, store *ProfileStore, tracker Tracker) *Engine {
	e := &Engine{
		profile:        profile,
		progress:       progress,
		index:          make(map[string]int, len(progress)),
		store:          store,
		tracker:        tracker,
		persistTimeout: defaultPersistTimeout,
	}
	for i, p := range progress {
		e.index[p.ID] = i
	}
	return e
}

// LoadEngine loads a player's state through store and writes the reconciled
// result back, so passive income and the new lastLogin are durable.
func LoadEngine(ctx context.Context, store *ProfileStore, username string, tracker Tracker) (*Engine, *LoadResult, error) {
	res, err := store.Load(ctx, username)
	if err != nil {
		return nil, nil, err
	}
	e := NewEngine(res.Profile, res.Progress, store, tracker)
	if err := store.Save(ctx, res.Profile, res.Progress); err != nil {
		e.persistErr = err
		log.Printf("economy: initial save for %s failed: %v", res.Profile.ID, err)
	}
	if res.PassiveEarned > 0 {
		e.track(EvtPassiveIncome, map[string]any{"amount": res.PassiveEarned})
	}
	return e, res, nil
}

// PlayerID returns the owning player's id
func (e *Engine) PlayerID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.profile.ID
}

// AwardCoins credits amount scaled by the SCORE_MULTIPLIER level and returns
// the credited value. Negative amounts credit nothing and the balance never
// exceeds math.MaxInt64.
func (e *Engine) AwardCoins(amount int64) int64 {
	e.mu.Lock()
	defer e.mu.Unlock()

	credited := MultipliedCoins(amount, e.levelLocked(CatScoreMultiplier))
	// The balance saturates; whatever does not fit is not credited
	credited = AddCoins(e.profile.MagCoins, credited) - e.profile.MagCoins
	if credited == 0 {
		return 0
	}
	e.profile.MagCoins += credited
	e.persistLocked()
	e.track(EvtAward, map[string]any{"amount": amount, "credited": credited})
	return credited
}

// Purchase buys one level of an upgrade and returns the price paid.
// On any error nothing changes.
func (e *Engine) Purchase(upgradeID string) (int64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	i, ok := e.index[upgradeID]
	if !ok {
		return 0, ErrUpgradeNotFound
	}
	up := &e.progress[i]
	if up.CurrentLevel >= up.MaxLevel {
		e.track(EvtPurchaseFailed, map[string]any{"item_id": upgradeID, "reason": "maxed"})
		return 0, ErrUpgradeMaxed
	}
	price := UpgradePrice(up.BasePrice, up.CurrentLevel)
	if e.profile.MagCoins < price {
		e.track(EvtPurchaseFailed, map[string]any{"item_id": upgradeID, "reason": "funds"})
		return 0, ErrInsufficientFunds
	}

	e.profile.MagCoins -= price
	up.CurrentLevel++
	if up.SkinID != "" && !e.profile.HasSkin(up.SkinID) {
		e.profile.Inventory = append(e.profile.Inventory, up.SkinID)
	}
	e.persistLocked()
	e.track(EvtPurchase, map[string]any{"item_id": upgradeID, "price": price, "level": up.CurrentLevel})
	return price, nil
}

// TryPurchase is Purchase for callers that only surface success or failure
func (e *Engine) TryPurchase(upgradeID string) bool {
	_, err := e.Purchase(upgradeID)
	return err == nil
}

// UnlockSkin adds skinID to the inventory. Reports whether it was new.
func (e *Engine) UnlockSkin(skinID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if skinID == "" || e.profile.HasSkin(skinID) {
		return false
	}
	e.profile.Inventory = append(e.profile.Inventory, skinID)
	e.persistLocked()
	e.track(EvtSkinUnlock, map[string]any{"skin": skinID})
	return true
}

// RecordScore keeps the best score per game. Returns the best score after the
// call and whether this score raised it.
func (e *Engine) RecordScore(gameID string, score int64) (int64, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	existing, had := e.profile.HighScores[gameID]
	if had && score <= existing {
		return existing, false
	}
	best := max(score, existing)
	e.profile.HighScores[gameID] = best
	e.persistLocked()
	e.track(EvtScore, map[string]any{"game": gameID, "score": best})
	return best, best == score
}

// UpgradeLevel returns the level of the first upgrade in the given category, or 0
func (e *Engine) UpgradeLevel(cat UpgradeCategory) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.levelLocked(cat)
}

func (e *Engine) levelLocked(cat UpgradeCategory) int {
	for _, p := range e.progress {
		if p.Category == cat {
			return p.CurrentLevel
		}
	}
	return 0
}

// Snapshot returns a copy of the profile
func (e *Engine) Snapshot() PlayerProfile {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.profile.Clone()
}

// ShopEntry is one row of the upgrade shop
type ShopEntry struct {
	UpgradeProgress
	Price      int64 `json:"price"`
	Maxed      bool  `json:"maxed"`
	Affordable bool  `json:"affordable"`
}

// Upgrades returns the shop view in catalog order
func (e *Engine) Upgrades() []ShopEntry {
	e.mu.Lock()
	defer e.mu.Unlock()

	entries := make([]ShopEntry, len(e.progress))
	for i, p := range e.progress {
		price := UpgradePrice(p.BasePrice, p.CurrentLevel)
		maxed := p.CurrentLevel >= p.MaxLevel
		entries[i] = ShopEntry{
			UpgradeProgress: p,
			Price:           price,
			Maxed:           maxed,
			Affordable:      !maxed && e.profile.MagCoins >= price,
		}
	}
	return entries
}

// TechLevel is the rounded percentage of all upgrade levels bought
func (e *Engine) TechLevel() int {
	e.mu.Lock()
	defer e.mu.Unlock()

	var have, total int
	for _, p := range e.progress {
		have += p.CurrentLevel
		total += p.MaxLevel
	}
	if total == 0 {
		return 0
	}
	return (have*100 + total/2) / total
}

// Flush writes the current state, returning the storage error if any
func (e *Engine) Flush(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.store == nil {
		return nil
	}
	err := e.store.Save(ctx, e.profile, e.progress)
	e.persistErr = err
	return err
}

// PersistError returns the error of the most recent write, nil if it succeeded
func (e *Engine) PersistError() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.persistErr
}

// persistLocked writes through to storage. Failures are logged and remembered;
// in-memory state stays authoritative. Caller holds mu, which keeps writes in
// mutation order.
func (e *Engine) persistLocked() {
	if e.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), e.persistTimeout)
	defer cancel()
	e.persistErr = e.store.Save(ctx, e.profile, e.progress)
	if e.persistErr != nil {
		log.Printf("economy: persist %s: %v", e.profile.ID, e.persistErr)
	}
}

func (e *Engine) track(evtType string, data map[string]any) {
	if e.tracker == nil {
		return
	}
	raw, err := json.Marshal(data)
	if err != nil {
		log.Printf("economy: encode %s event: %v", evtType, err)
		return
	}
	e.tracker.Track(evtType, e.profile.ID, string(raw))
}
