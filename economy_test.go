package main

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"sync"
	"testing"
)

// recordingTracker collects tracked events in memory
type recordingTracker struct {
	mu     sync.Mutex
	events []AnalyticsEvent
}

func (r *recordingTracker) Track(evtType, playerID, data string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, AnalyticsEvent{Type: evtType, PlayerID: playerID, Data: data})
}

func (r *recordingTracker) ofType(evtType string) []AnalyticsEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []AnalyticsEvent
	for _, e := range r.events {
		if e.Type == evtType {
			out = append(out, e)
		}
	}
	return out
}

// newTestEngine loads a fresh player with the given balance from an in-memory store
func newTestEngine(t *testing.T, coins int64) (*Engine, *MemoryStore) {
	t.Helper()
	kv := NewMemoryStore()
	store := NewProfileStore(kv, "p1", ProfileDefaults{StartingCoins: coins})
	e, res, err := LoadEngine(context.Background(), store, "tester", nil)
	if err != nil {
		t.Fatalf("LoadEngine: %v", err)
	}
	if !res.Fresh {
		t.Fatal("expected a fresh profile")
	}
	return e, kv
}

func levelOfEngine(e *Engine, id string) int {
	for _, u := range e.Upgrades() {
		if u.ID == id {
			return u.CurrentLevel
		}
	}
	return -1
}

func TestPurchaseScenario(t *testing.T) {
	e, _ := newTestEngine(t, 5000)

	price, err := e.Purchase("u_magnet")
	if err != nil {
		t.Fatalf("first purchase: %v", err)
	}
	if price != 1000 {
		t.Errorf("first price = %d, want 1000", price)
	}
	if got := e.Snapshot().MagCoins; got != 4000 {
		t.Errorf("balance after first purchase = %d, want 4000", got)
	}
	if lvl := levelOfEngine(e, "u_magnet"); lvl != 1 {
		t.Errorf("level = %d, want 1", lvl)
	}

	price, err = e.Purchase("u_magnet")
	if err != nil {
		t.Fatalf("second purchase: %v", err)
	}
	if price != 1500 {
		t.Errorf("second price = %d, want 1500", price)
	}
	if got := e.Snapshot().MagCoins; got != 2500 {
		t.Errorf("balance after second purchase = %d, want 2500", got)
	}
	if lvl := levelOfEngine(e, "u_magnet"); lvl != 2 {
		t.Errorf("level = %d, want 2", lvl)
	}
}

func TestPurchaseEveryUpgradeToMax(t *testing.T) {
	e, _ := newTestEngine(t, 1_000_000_000)

	for _, def := range UpgradeCatalog {
		for lvl := 0; lvl < def.MaxLevel; lvl++ {
			before := e.Snapshot().MagCoins
			want := UpgradePrice(def.BasePrice, lvl)

			price, err := e.Purchase(def.ID)
			if err != nil {
				t.Fatalf("%s level %d: %v", def.ID, lvl, err)
			}
			if price != want {
				t.Errorf("%s level %d: paid %d, want %d", def.ID, lvl, price, want)
			}
			if after := e.Snapshot().MagCoins; before-after != want {
				t.Errorf("%s level %d: balance moved by %d, want %d", def.ID, lvl, before-after, want)
			}
			if got := levelOfEngine(e, def.ID); got != lvl+1 {
				t.Errorf("%s: level %d, want %d", def.ID, got, lvl+1)
			}
		}

		// Maxed: every further attempt fails without touching state
		before := e.Snapshot()
		for i := 0; i < 3; i++ {
			if _, err := e.Purchase(def.ID); !errors.Is(err, ErrUpgradeMaxed) {
				t.Fatalf("%s: expected ErrUpgradeMaxed, got %v", def.ID, err)
			}
		}
		if after := e.Snapshot(); after.MagCoins != before.MagCoins {
			t.Errorf("%s: maxed purchase changed balance %d -> %d", def.ID, before.MagCoins, after.MagCoins)
		}
		if got := levelOfEngine(e, def.ID); got != def.MaxLevel {
			t.Errorf("%s: level %d after maxed attempts, want %d", def.ID, got, def.MaxLevel)
		}
	}
}

func TestPurchaseInsufficientFunds(t *testing.T) {
	e, _ := newTestEngine(t, 999)

	if _, err := e.Purchase("u_magnet"); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
	if got := e.Snapshot().MagCoins; got != 999 {
		t.Errorf("balance = %d, want 999", got)
	}
	if lvl := levelOfEngine(e, "u_magnet"); lvl != 0 {
		t.Errorf("level = %d, want 0", lvl)
	}
	if e.TryPurchase("u_magnet") {
		t.Error("TryPurchase should fail")
	}
}

func TestPurchaseExactBalanceReachesZero(t *testing.T) {
	e, _ := newTestEngine(t, 1000)

	if !e.TryPurchase("u_magnet") {
		t.Fatal("purchase with exact balance should succeed")
	}
	if got := e.Snapshot().MagCoins; got != 0 {
		t.Errorf("balance = %d, want 0", got)
	}
	if e.TryPurchase("u_magnet") {
		t.Error("purchase with zero balance should fail")
	}
	if got := e.Snapshot().MagCoins; got < 0 {
		t.Errorf("balance went negative: %d", got)
	}
}

func TestPurchaseUnknownUpgrade(t *testing.T) {
	e, _ := newTestEngine(t, 5000)
	if _, err := e.Purchase("u_nope"); !errors.Is(err, ErrUpgradeNotFound) {
		t.Fatalf("expected ErrUpgradeNotFound, got %v", err)
	}
	if got := e.Snapshot().MagCoins; got != 5000 {
		t.Errorf("balance = %d, want 5000", got)
	}
}

func TestPurchaseSkinUnlocksCosmetic(t *testing.T) {
	e, _ := newTestEngine(t, 10000)
	if p := e.Snapshot(); p.HasSkin("circuit") {
		t.Fatal("circuit skin should start locked")
	}
	if _, err := e.Purchase("u_skin_circuit"); err != nil {
		t.Fatalf("purchase: %v", err)
	}
	p := e.Snapshot()
	if !p.HasSkin("circuit") {
		t.Errorf("inventory %v should contain circuit", p.Inventory)
	}
	if !p.HasSkin(DefaultSkin) {
		t.Errorf("inventory %v lost the default skin", p.Inventory)
	}
}

func TestAwardCoinsWithoutMultiplier(t *testing.T) {
	e, _ := newTestEngine(t, 0)
	if got := e.AwardCoins(137); got != 137 {
		t.Errorf("credited %d, want 137", got)
	}
	if got := e.Snapshot().MagCoins; got != 137 {
		t.Errorf("balance = %d, want 137", got)
	}
}

func TestAwardCoinsAppliesMultiplier(t *testing.T) {
	// u_score level 0 and 1 cost 2500 + 3750
	e, _ := newTestEngine(t, 6250)
	for i := 0; i < 2; i++ {
		if _, err := e.Purchase("u_score"); err != nil {
			t.Fatalf("buy u_score: %v", err)
		}
	}
	if lvl := e.UpgradeLevel(CatScoreMultiplier); lvl != 2 {
		t.Fatalf("multiplier level = %d, want 2", lvl)
	}

	if got := e.AwardCoins(100); got != 140 {
		t.Errorf("AwardCoins(100) at L=2 credited %d, want 140", got)
	}
	if got := e.AwardCoins(7); got != 9 {
		t.Errorf("AwardCoins(7) at L=2 credited %d, want 9", got)
	}
	if got := e.Snapshot().MagCoins; got != 149 {
		t.Errorf("balance = %d, want 149", got)
	}
}

func TestAwardCoinsIgnoresNonPositive(t *testing.T) {
	e, _ := newTestEngine(t, 500)
	if got := e.AwardCoins(-50); got != 0 {
		t.Errorf("negative award credited %d", got)
	}
	if got := e.AwardCoins(0); got != 0 {
		t.Errorf("zero award credited %d", got)
	}
	if got := e.Snapshot().MagCoins; got != 500 {
		t.Errorf("balance = %d, want 500", got)
	}
}

func TestAwardCoinsSaturatesBalance(t *testing.T) {
	e, _ := newTestEngine(t, 5000)
	got := e.AwardCoins(math.MaxInt64 - 1000)
	if want := int64(math.MaxInt64 - 5000); got != want {
		t.Errorf("credited %d, want %d", got, want)
	}
	if bal := e.Snapshot().MagCoins; bal != math.MaxInt64 {
		t.Fatalf("balance = %d, want MaxInt64", bal)
	}
	if got := e.AwardCoins(1); got != 0 {
		t.Errorf("award on a full balance credited %d", got)
	}
}

func TestAwardCoinsLargeMultipliedAmount(t *testing.T) {
	e, _ := newTestEngine(t, 2500)
	if _, err := e.Purchase("u_score"); err != nil {
		t.Fatalf("buy u_score: %v", err)
	}
	got := e.AwardCoins(8_000_000_000_000_000_000)
	if got != math.MaxInt64 {
		t.Errorf("credited %d, want MaxInt64", got)
	}
	if bal := e.Snapshot().MagCoins; bal != math.MaxInt64 {
		t.Errorf("balance = %d, want MaxInt64", bal)
	}
}

func TestAwardCoinsConcurrent(t *testing.T) {
	e, _ := newTestEngine(t, 0)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e.AwardCoins(10)
		}()
	}
	wg.Wait()

	if got := e.Snapshot().MagCoins; got != 500 {
		t.Errorf("balance = %d, want 500", got)
	}
}

func TestRecordScoreKeepsBest(t *testing.T) {
	e, _ := newTestEngine(t, 0)

	if best, rec := e.RecordScore("game1", 50); best != 50 || !rec {
		t.Errorf("first score: best=%d record=%v, want 50 true", best, rec)
	}
	if best, rec := e.RecordScore("game1", 30); best != 50 || rec {
		t.Errorf("lower score: best=%d record=%v, want 50 false", best, rec)
	}
	if got := e.Snapshot().HighScores["game1"]; got != 50 {
		t.Errorf("high score = %d, want 50", got)
	}
	if best, rec := e.RecordScore("game1", 80); best != 80 || !rec {
		t.Errorf("higher score: best=%d record=%v, want 80 true", best, rec)
	}
	if got := e.Snapshot().HighScores["game1"]; got != 80 {
		t.Errorf("high score = %d, want 80", got)
	}
}

func TestRecordScorePerGame(t *testing.T) {
	e, _ := newTestEngine(t, 0)
	e.RecordScore("game1", 10)
	e.RecordScore("game2", 20)

	hs := e.Snapshot().HighScores
	if hs["game1"] != 10 || hs["game2"] != 20 {
		t.Errorf("high scores = %v", hs)
	}
}

func TestUnlockSkin(t *testing.T) {
	e, _ := newTestEngine(t, 0)

	if !e.UnlockSkin("magma") {
		t.Error("first unlock should report new")
	}
	if e.UnlockSkin("magma") {
		t.Error("second unlock should report existing")
	}
	if e.UnlockSkin("") {
		t.Error("empty skin id should be rejected")
	}

	count := 0
	for _, s := range e.Snapshot().Inventory {
		if s == "magma" {
			count++
		}
	}
	if count != 1 {
		t.Errorf("magma appears %d times, want 1", count)
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	e, _ := newTestEngine(t, 0)
	snap := e.Snapshot()
	snap.MagCoins = 1_000_000
	snap.HighScores["game1"] = 999
	snap.Inventory[0] = "hacked"

	p := e.Snapshot()
	if p.MagCoins != 0 || p.HighScores["game1"] != 0 || p.Inventory[0] != DefaultSkin {
		t.Errorf("engine state changed through a snapshot: %+v", p)
	}
}

func TestMutationsWriteThrough(t *testing.T) {
	e, kv := newTestEngine(t, 5000)
	e.Purchase("u_magnet")
	e.RecordScore("game3", 42)

	store := NewProfileStore(kv, "p1", ProfileDefaults{StartingCoins: 5000})
	res, err := store.Load(context.Background(), "tester")
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if res.Fresh {
		t.Fatal("reload should find the stored profile")
	}
	if res.Profile.MagCoins != 4000 {
		t.Errorf("stored balance = %d, want 4000", res.Profile.MagCoins)
	}
	if res.Profile.HighScores["game3"] != 42 {
		t.Errorf("stored high score = %d, want 42", res.Profile.HighScores["game3"])
	}
	if lvl := levelOf(res.Progress, "u_magnet"); lvl != 1 {
		t.Errorf("stored level = %d, want 1", lvl)
	}
}

func TestPersistFailureKeepsMemoryState(t *testing.T) {
	e, kv := newTestEngine(t, 5000)
	kv.FailWrites = true

	if got := e.AwardCoins(100); got != 100 {
		t.Fatalf("credited %d, want 100", got)
	}
	if _, err := e.Purchase("u_magnet"); err != nil {
		t.Fatalf("purchase during outage: %v", err)
	}
	if e.PersistError() == nil {
		t.Error("expected a persist error during the outage")
	}
	if got := e.Snapshot().MagCoins; got != 4100 {
		t.Errorf("balance = %d, want 4100", got)
	}
	if lvl := levelOfEngine(e, "u_magnet"); lvl != 1 {
		t.Errorf("level = %d, want 1", lvl)
	}

	kv.FailWrites = false
	if err := e.Flush(context.Background()); err != nil {
		t.Fatalf("flush after recovery: %v", err)
	}
	if e.PersistError() != nil {
		t.Error("persist error should clear after a successful flush")
	}
	p, err := ReadProfile(context.Background(), kv, "p1")
	if err != nil {
		t.Fatalf("ReadProfile: %v", err)
	}
	if p.MagCoins != 4100 {
		t.Errorf("stored balance = %d, want 4100", p.MagCoins)
	}
}

func TestEngineTracksEvents(t *testing.T) {
	tr := &recordingTracker{}
	store := NewProfileStore(NewMemoryStore(), "p1", ProfileDefaults{StartingCoins: 1000})
	e, _, err := LoadEngine(context.Background(), store, "tester", tr)
	if err != nil {
		t.Fatalf("LoadEngine: %v", err)
	}

	e.Purchase("u_magnet")
	e.Purchase("u_magnet") // now unaffordable
	e.AwardCoins(25)

	buys := tr.ofType(EvtPurchase)
	if len(buys) != 1 {
		t.Fatalf("purchase events = %d, want 1", len(buys))
	}
	var data map[string]any
	if err := json.Unmarshal([]byte(buys[0].Data), &data); err != nil {
		t.Fatalf("event data: %v", err)
	}
	if data["item_id"] != "u_magnet" {
		t.Errorf("item_id = %v", data["item_id"])
	}
	if buys[0].PlayerID != "p1" {
		t.Errorf("player id = %q", buys[0].PlayerID)
	}
	if n := len(tr.ofType(EvtPurchaseFailed)); n != 1 {
		t.Errorf("failed purchase events = %d, want 1", n)
	}
	if n := len(tr.ofType(EvtAward)); n != 1 {
		t.Errorf("award events = %d, want 1", n)
	}
}

func TestUpgradesShopView(t *testing.T) {
	e, _ := newTestEngine(t, 5000)
	e.Purchase("u_safety") // max level 1, costs 5000

	entries := e.Upgrades()
	if len(entries) != len(UpgradeCatalog) {
		t.Fatalf("entries = %d, want %d", len(entries), len(UpgradeCatalog))
	}
	for i, entry := range entries {
		if entry.ID != UpgradeCatalog[i].ID {
			t.Errorf("entry %d is %s, want catalog order %s", i, entry.ID, UpgradeCatalog[i].ID)
		}
		if entry.Price != UpgradePrice(entry.BasePrice, entry.CurrentLevel) {
			t.Errorf("%s: price %d does not match level %d", entry.ID, entry.Price, entry.CurrentLevel)
		}
		if entry.ID == "u_safety" {
			if !entry.Maxed || entry.Affordable {
				t.Errorf("u_safety should be maxed and not affordable: %+v", entry)
			}
		} else if entry.Affordable {
			t.Errorf("%s affordable with zero balance", entry.ID)
		}
	}
}

func TestTechLevel(t *testing.T) {
	e, _ := newTestEngine(t, 5000)
	if got := e.TechLevel(); got != 0 {
		t.Errorf("initial tech level = %d, want 0", got)
	}

	total := 0
	for _, def := range UpgradeCatalog {
		total += def.MaxLevel
	}
	e.Purchase("u_safety")
	want := int(math.Round(100 / float64(total)))
	if got := e.TechLevel(); got != want {
		t.Errorf("tech level = %d, want %d", got, want)
	}
}

func TestModifiersFollowLevels(t *testing.T) {
	e, _ := newTestEngine(t, 1000+7000)
	m := e.Modifiers()
	if m.MagnetRadius != 1 || m.Shield || m.CoinMultiplier != 1 {
		t.Errorf("base modifiers = %+v", m)
	}

	e.Purchase("u_magnet")
	e.Purchase("u_shield")
	m = e.Modifiers()
	if math.Abs(m.MagnetRadius-1.1) > 1e-9 {
		t.Errorf("magnet radius = %v, want 1.1", m.MagnetRadius)
	}
	if !m.Shield {
		t.Error("shield should be active")
	}
	if m.PassivePerHour != 0 {
		t.Errorf("passive per hour = %d, want 0", m.PassivePerHour)
	}
}
