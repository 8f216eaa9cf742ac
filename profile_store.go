package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"
)

// ProfileStore loads and persists one player's profile and upgrade progress
type ProfileStore struct {
	kv       KVStore
	playerID string
	defaults ProfileDefaults
	now      func() time.Time
}

// NewProfileStore binds a store to a player's storage scope
func NewProfileStore(kv KVStore, playerID string, defaults ProfileDefaults) *ProfileStore {
	return &ProfileStore{
		kv:       kv,
		playerID: playerID,
		defaults: defaults,
		now:      time.Now,
	}
}

// LoadResult is what a profile load produced
type LoadResult struct {
	Profile  *PlayerProfile
	Progress []UpgradeProgress
	// PassiveEarned is the offline income credited during this load
	PassiveEarned int64
	// Fresh is true when no profile was stored yet
	Fresh bool
}

// Load reads the stored records (or defaults), reconciles progress against the
// catalog and credits passive income. username is only used for a fresh profile.
func (s *ProfileStore) Load(ctx context.Context, username string) (*LoadResult, error) {
	now := s.now()
	res := &LoadResult{}

	raw, err := s.kv.Get(ctx, s.playerID, ProfileKey)
	switch {
	case errors.Is(err, ErrKeyNotFound):
		res.Profile = NewProfile(s.playerID, username, s.defaults, now)
		res.Fresh = true
	case err != nil:
		return nil, fmt.Errorf("load profile: %w", err)
	default:
		var p PlayerProfile
		if err := json.Unmarshal([]byte(raw), &p); err != nil {
			return nil, fmt.Errorf("decode profile: %w", err)
		}
		if p.ID == "" {
			p.ID = s.playerID
		}
		p.normalize()
		res.Profile = &p
	}

	raw, err = s.kv.Get(ctx, s.playerID, UpgradesKey)
	switch {
	case errors.Is(err, ErrKeyNotFound):
		res.Progress = NewProgress()
	case err != nil:
		return nil, fmt.Errorf("load upgrades: %w", err)
	default:
		var saved []UpgradeProgress
		if err := json.Unmarshal([]byte(raw), &saved); err != nil {
			return nil, fmt.Errorf("decode upgrades: %w", err)
		}
		res.Progress = ReconcileProgress(saved)
	}

	if def, ok := UpgradeForCategory(CatPassiveIncome); ok && res.Profile.LastLogin > 0 {
		level := levelOf(res.Progress, def.ID)
		earned := PassiveIncome(level, time.UnixMilli(res.Profile.LastLogin), now)
		earned = AddCoins(res.Profile.MagCoins, earned) - res.Profile.MagCoins
		if earned > 0 {
			res.Profile.MagCoins += earned
			res.PassiveEarned = earned
			log.Printf("passive income: player %s earned %d MC", s.playerID, earned)
		}
	}
	res.Profile.LastLogin = now.UnixMilli()

	return res, nil
}

// Save writes both records. The two writes are independent; a failure of the
// second leaves the first in place.
func (s *ProfileStore) Save(ctx context.Context, profile *PlayerProfile, progress []UpgradeProgress) error {
	pb, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("encode profile: %w", err)
	}
	ub, err := json.Marshal(progress)
	if err != nil {
		return fmt.Errorf("encode upgrades: %w", err)
	}
	if err := s.kv.Set(ctx, s.playerID, ProfileKey, string(pb)); err != nil {
		return fmt.Errorf("save profile: %w", err)
	}
	if err := s.kv.Set(ctx, s.playerID, UpgradesKey, string(ub)); err != nil {
		return fmt.Errorf("save upgrades: %w", err)
	}
	return nil
}

// ReadProfile decodes a stored profile without crediting income or touching lastLogin
func ReadProfile(ctx context.Context, kv KVStore, playerID string) (*PlayerProfile, error) {
	raw, err := kv.Get(ctx, playerID, ProfileKey)
	if err != nil {
		return nil, err
	}
	var p PlayerProfile
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return nil, fmt.Errorf("decode profile: %w", err)
	}
	p.normalize()
	return &p, nil
}

func levelOf(progress []UpgradeProgress, id string) int {
	for _, p := range progress {
		if p.ID == id {
			return p.CurrentLevel
		}
	}
	return 0
}
