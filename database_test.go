package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
)

// newTestDB opens a throwaway SQLite file. A file (not :memory:) keeps every
// pooled connection on the same database.
func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := OpenDB(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("OpenDB: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestDBMigrateIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "twice.db")
	db, err := OpenDB(path)
	if err != nil {
		t.Fatalf("first open: %v", err)
	}
	db.Close()
	db, err = OpenDB(path)
	if err != nil {
		t.Fatalf("second open: %v", err)
	}
	db.Close()
}

func TestDBPlayers(t *testing.T) {
	db := newTestDB(t)

	id, err := db.CreatePlayer("alice", "hash")
	if err != nil {
		t.Fatalf("CreatePlayer: %v", err)
	}
	if !uuidRegex.MatchString(id) {
		t.Errorf("player id %q is not a UUID", id)
	}
	if _, err := db.CreatePlayer("alice", "other"); err == nil {
		t.Error("duplicate username should fail")
	}

	p, err := db.GetPlayerByUsername("alice")
	if err != nil || p == nil {
		t.Fatalf("GetPlayerByUsername: %v %v", p, err)
	}
	if p.ID != id || p.PassHash != "hash" || p.IsGuest {
		t.Errorf("unexpected row %+v", p)
	}

	gid, err := db.CreateGuest("Guest_abc")
	if err != nil {
		t.Fatalf("CreateGuest: %v", err)
	}
	g, err := db.GetPlayerByID(gid)
	if err != nil || g == nil {
		t.Fatalf("GetPlayerByID: %v %v", g, err)
	}
	if !g.IsGuest || g.PassHash != "" {
		t.Errorf("guest row %+v", g)
	}

	if missing, err := db.GetPlayerByID("nope"); err != nil || missing != nil {
		t.Errorf("missing player: %v %v", missing, err)
	}
	if exists, _ := db.UsernameExists("alice"); !exists {
		t.Error("alice should exist")
	}
	if exists, _ := db.UsernameExists("bob"); exists {
		t.Error("bob should not exist")
	}
	if n, _ := db.CountPlayers(); n != 2 {
		t.Errorf("CountPlayers = %d, want 2", n)
	}
}

func TestDBSettings(t *testing.T) {
	db := newTestDB(t)
	if v := db.GetSetting("missing"); v != "" {
		t.Errorf("missing setting = %q", v)
	}
	if err := db.SetSetting("k", "v1"); err != nil {
		t.Fatalf("SetSetting: %v", err)
	}
	if err := db.SetSetting("k", "v2"); err != nil {
		t.Fatalf("SetSetting overwrite: %v", err)
	}
	if v := db.GetSetting("k"); v != "v2" {
		t.Errorf("setting = %q, want v2", v)
	}
}

func TestDBKeyValueStore(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	if _, err := db.Get(ctx, "p1", ProfileKey); !errors.Is(err, ErrKeyNotFound) {
		t.Fatalf("expected ErrKeyNotFound, got %v", err)
	}
	if err := db.Set(ctx, "p1", ProfileKey, "a"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := db.Set(ctx, "p1", ProfileKey, "b"); err != nil {
		t.Fatalf("Set overwrite: %v", err)
	}
	if err := db.Set(ctx, "p2", ProfileKey, "c"); err != nil {
		t.Fatalf("Set other player: %v", err)
	}
	if v, _ := db.Get(ctx, "p1", ProfileKey); v != "b" {
		t.Errorf("p1 = %q, want b", v)
	}
	if v, _ := db.Get(ctx, "p2", ProfileKey); v != "c" {
		t.Errorf("p2 = %q, want c", v)
	}
}

func TestDBBacksEngine(t *testing.T) {
	db := newTestDB(t)
	r := NewRegistry(db, ProfileDefaults{StartingCoins: 5000}, nil)
	ctx := context.Background()

	e, _, err := r.Get(ctx, "p1", "x")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	e.Purchase("u_magnet")
	r.Release(ctx, "p1")

	e, _, err = r.Get(ctx, "p1", "x")
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got := e.Snapshot().MagCoins; got != 4000 {
		t.Errorf("coins = %d, want 4000", got)
	}
	if lvl := e.UpgradeLevel(CatMagnetStrength); lvl != 1 {
		t.Errorf("magnet level = %d, want 1", lvl)
	}
}

func TestDBLeaderboard(t *testing.T) {
	db := newTestDB(t)
	r := NewRegistry(db, ProfileDefaults{}, nil)
	ctx := context.Background()

	scores := []int64{300, 100, 200}
	for i, s := range scores {
		name := fmt.Sprintf("pilot%d", i)
		id, err := db.CreatePlayer(name, "")
		if err != nil {
			t.Fatalf("CreatePlayer: %v", err)
		}
		e, _, err := r.Get(ctx, id, name)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		e.RecordScore("game1", s)
	}
	// A player without a game1 score stays off the board
	id, _ := db.CreatePlayer("idle", "")
	if _, _, err := r.Get(ctx, id, "idle"); err != nil {
		t.Fatalf("Get idle: %v", err)
	}

	board, err := db.GetLeaderboard("game1", 10)
	if err != nil {
		t.Fatalf("GetLeaderboard: %v", err)
	}
	if len(board) != 3 {
		t.Fatalf("entries = %d, want 3: %+v", len(board), board)
	}
	want := []struct {
		name  string
		score int64
	}{{"pilot0", 300}, {"pilot2", 200}, {"pilot1", 100}}
	for i, w := range want {
		if board[i].Rank != i+1 || board[i].Username != w.name || board[i].Score != w.score {
			t.Errorf("entry %d = %+v, want %s %d", i, board[i], w.name, w.score)
		}
	}

	top, _ := db.GetLeaderboard("game1", 1)
	if len(top) != 1 || top[0].Score != 300 {
		t.Errorf("limit 1 = %+v", top)
	}
	if other, _ := db.GetLeaderboard("game2", 10); len(other) != 0 {
		t.Errorf("game2 board = %+v, want empty", other)
	}
}
