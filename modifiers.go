package main

// GameplayModifiers are the gameplay parameters minigames derive from upgrade levels
type GameplayModifiers struct {
	MagnetRadius    float64 `json:"magnetRadius" msgpack:"magnetRadius"`       // multiplier, +10% per level
	CoinMultiplier  float64 `json:"coinMultiplier" msgpack:"coinMultiplier"`   // display only; AwardCoins applies it
	SafetyNet       bool    `json:"safetyNet" msgpack:"safetyNet"`             // one free save per run
	FallSpeed       float64 `json:"fallSpeed" msgpack:"fallSpeed"`             // multiplier, -10% per level
	GoldenChance    float64 `json:"goldenChance" msgpack:"goldenChance"`       // +5% per level
	PassivePerHour  int     `json:"passivePerHour" msgpack:"passivePerHour"`
	ComboBonus      float64 `json:"comboBonus" msgpack:"comboBonus"`           // +20% per level
	PulseLevel      int     `json:"pulseLevel" msgpack:"pulseLevel"`
	HeadStartPoints int     `json:"headStartPoints" msgpack:"headStartPoints"` // +50 per level
	Shield          bool    `json:"shield" msgpack:"shield"`
	CrystalRadius   float64 `json:"crystalRadius" msgpack:"crystalRadius"`     // meters, +2 per level
	CritChance      float64 `json:"critChance" msgpack:"critChance"`           // +2% per level
	AutoStacker     bool    `json:"autoStacker" msgpack:"autoStacker"`
	GhostChance     float64 `json:"ghostChance" msgpack:"ghostChance"`         // +5% per level
	FreezeSeconds   float64 `json:"freezeSeconds" msgpack:"freezeSeconds"`     // +2s per level
}

// Modifiers computes the gameplay parameters from current levels
func (e *Engine) Modifiers() GameplayModifiers {
	e.mu.Lock()
	defer e.mu.Unlock()

	lvl := func(cat UpgradeCategory) float64 { return float64(e.levelLocked(cat)) }
	return GameplayModifiers{
		MagnetRadius:    1 + 0.1*lvl(CatMagnetStrength),
		CoinMultiplier:  1 + 0.2*lvl(CatScoreMultiplier),
		SafetyNet:       lvl(CatSafetyNet) > 0,
		FallSpeed:       1 - 0.1*lvl(CatTimeDilation),
		GoldenChance:    0.05 * lvl(CatGoldenTouch),
		PassivePerHour:  e.levelLocked(CatPassiveIncome) * PassiveRatePerLevel,
		ComboBonus:      0.2 * lvl(CatComboMaster),
		PulseLevel:      e.levelLocked(CatPulseTech),
		HeadStartPoints: 50 * e.levelLocked(CatHeadStart),
		Shield:          lvl(CatMagnetShield) > 0,
		CrystalRadius:   2 * lvl(CatCrystalMagnet),
		CritChance:      0.02 * lvl(CatCritHarvest),
		AutoStacker:     lvl(CatAutoStacker) > 0,
		GhostChance:     0.05 * lvl(CatGhostMode),
		FreezeSeconds:   2 * lvl(CatFreezeTime),
	}
}
