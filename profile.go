package main

import (
	"time"
)

// PlayerProfile is the persisted player record
type PlayerProfile struct {
	ID         string           `json:"id" msgpack:"id"`
	Username   string           `json:"username" msgpack:"username"`
	MagCoins   int64            `json:"magCoins" msgpack:"magCoins"`
	IsAdmin    bool             `json:"isAdmin" msgpack:"isAdmin"`
	Inventory  []string         `json:"inventory" msgpack:"inventory"`
	HighScores map[string]int64 `json:"highScores" msgpack:"highScores"`
	LastLogin  int64            `json:"lastLogin,omitempty" msgpack:"lastLogin"` // epoch ms
}

// UpgradeProgress is a catalog entry with the player's current level.
// Definition fields are stored denormalized; only ID and CurrentLevel are read back.
type UpgradeProgress struct {
	UpgradeDefinition
	CurrentLevel int `json:"currentLevel"`
}

// ProfileDefaults controls what a first-run profile looks like
type ProfileDefaults struct {
	StartingCoins int64
	IsAdmin       bool
}

// NewProfile builds a first-run profile
func NewProfile(id, username string, defaults ProfileDefaults, now time.Time) *PlayerProfile {
	return &PlayerProfile{
		ID:         id,
		Username:   username,
		MagCoins:   defaults.StartingCoins,
		IsAdmin:    defaults.IsAdmin,
		Inventory:  []string{DefaultSkin},
		HighScores: make(map[string]int64),
		LastLogin:  now.UnixMilli(),
	}
}

// NewProgress returns every catalog entry at level 0
func NewProgress() []UpgradeProgress {
	progress := make([]UpgradeProgress, len(UpgradeCatalog))
	for i, def := range UpgradeCatalog {
		progress[i] = UpgradeProgress{UpgradeDefinition: def}
	}
	return progress
}

// ReconcileProgress rebuilds a persisted progress list against the current catalog.
// Levels of known ids survive (clamped to the definition's cap), new definitions start
// at 0 and ids that no longer exist are dropped.
func ReconcileProgress(saved []UpgradeProgress) []UpgradeProgress {
	levels := make(map[string]int, len(saved))
	for _, p := range saved {
		if _, seen := levels[p.ID]; !seen {
			levels[p.ID] = p.CurrentLevel
		}
	}
	progress := NewProgress()
	for i := range progress {
		lvl := levels[progress[i].ID]
		if lvl < 0 {
			lvl = 0
		}
		if lvl > progress[i].MaxLevel {
			lvl = progress[i].MaxLevel
		}
		progress[i].CurrentLevel = lvl
	}
	return progress
}

// normalize repairs fields a hand-edited or older record may be missing
func (p *PlayerProfile) normalize() {
	if p.HighScores == nil {
		p.HighScores = make(map[string]int64)
	}
	if !p.HasSkin(DefaultSkin) {
		p.Inventory = append([]string{DefaultSkin}, p.Inventory...)
	}
	if p.MagCoins < 0 {
		p.MagCoins = 0
	}
}

// HasSkin reports whether skinID is in the inventory
func (p *PlayerProfile) HasSkin(skinID string) bool {
	for _, s := range p.Inventory {
		if s == skinID {
			return true
		}
	}
	return false
}

// Clone returns a deep copy safe to hand out of the engine
func (p *PlayerProfile) Clone() PlayerProfile {
	c := *p
	c.Inventory = append([]string(nil), p.Inventory...)
	c.HighScores = make(map[string]int64, len(p.HighScores))
	for k, v := range p.HighScores {
		c.HighScores[k] = v
	}
	return c
}
