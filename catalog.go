package main

// UpgradeCategory tags what an upgrade does. Gameplay code looks upgrades up by category.
type UpgradeCategory string

const (
	CatMagnetStrength  UpgradeCategory = "MAGNET_STRENGTH"
	CatScoreMultiplier UpgradeCategory = "SCORE_MULTIPLIER"
	CatSafetyNet       UpgradeCategory = "SAFETY_NET"
	CatTimeDilation    UpgradeCategory = "TIME_DILATION"
	CatGoldenTouch     UpgradeCategory = "GOLDEN_TOUCH"
	CatPassiveIncome   UpgradeCategory = "PASSIVE_INCOME"
	CatComboMaster     UpgradeCategory = "COMBO_MASTER"
	CatPulseTech       UpgradeCategory = "PULSE_TECH"
	CatSkinCircuit     UpgradeCategory = "SKIN_CIRCUIT"
	CatSkinGlass       UpgradeCategory = "SKIN_GLASS"
	CatHeadStart       UpgradeCategory = "HEAD_START"
	CatMagnetShield    UpgradeCategory = "MAGNET_SHIELD"
	CatCrystalMagnet   UpgradeCategory = "CRYSTAL_MAGNET"
	CatLoyaltyCard     UpgradeCategory = "LOYALTY_CARD"
	CatCritHarvest     UpgradeCategory = "CRIT_HARVEST"
	CatAutoStacker     UpgradeCategory = "AUTO_STACKER"
	CatGhostMode       UpgradeCategory = "GHOST_MODE"
	CatFreezeTime      UpgradeCategory = "FREEZE_TIME"
	CatSkinMagma       UpgradeCategory = "SKIN_MAGMA"
	CatSkinHolo        UpgradeCategory = "SKIN_HOLO"
)

// DefaultSkin is always present in a player's inventory
const DefaultSkin = "default"

// UpgradeDefinition is the static, immutable part of a shop upgrade
type UpgradeDefinition struct {
	ID             string          `json:"id"`
	Category       UpgradeCategory `json:"type"`
	Name           string          `json:"name"`
	Description    string          `json:"description"`
	BasePrice      int64           `json:"basePrice"`
	MaxLevel       int             `json:"maxLevel"`
	EffectPerLevel string          `json:"effectPerLevel"`
	SkinID         string          `json:"skinId,omitempty"` // set for cosmetic unlocks
}

// UpgradeCatalog is the ordered list of purchasable upgrades.
// Order matters: category lookups return the first match.
var UpgradeCatalog = []UpgradeDefinition{
	{ID: "u_magnet", Category: CatMagnetStrength, Name: "Magnetic Force", Description: "Increases grab radius.", BasePrice: 1000, MaxLevel: 5, EffectPerLevel: "+10% Radius"},
	{ID: "u_score", Category: CatScoreMultiplier, Name: "Quantum Chip", Description: "Increases earned coins.", BasePrice: 2500, MaxLevel: 5, EffectPerLevel: "x1.2 Coins"},
	{ID: "u_safety", Category: CatSafetyNet, Name: "Safety Net", Description: "Saves you from one fall.", BasePrice: 5000, MaxLevel: 1, EffectPerLevel: "1 Chance"},
	{ID: "u_time", Category: CatTimeDilation, Name: "Time Dilator", Description: "Blocks move slower.", BasePrice: 4000, MaxLevel: 3, EffectPerLevel: "-10% Speed"},
	{ID: "u_gold", Category: CatGoldenTouch, Name: "Golden Touch", Description: "Chance to spawn a Golden Cube.", BasePrice: 6000, MaxLevel: 3, EffectPerLevel: "+5% Chance"},
	{ID: "u_passive", Category: CatPassiveIncome, Name: "Auto-Miner", Description: "Generates coins while offline.", BasePrice: 8000, MaxLevel: 5, EffectPerLevel: "+10 MC/hour"},
	{ID: "u_combo", Category: CatComboMaster, Name: "Combo Master", Description: "Bonus for streaks.", BasePrice: 3000, MaxLevel: 3, EffectPerLevel: "+20% Bonus"},
	{ID: "u_pulse", Category: CatPulseTech, Name: "Pulse", Description: "Improves controls.", BasePrice: 2000, MaxLevel: 3, EffectPerLevel: "Faster response"},
	{ID: "u_skin_circuit", Category: CatSkinCircuit, Name: "Skin: Cyber Circuit", Description: "Microchip textures.", BasePrice: 10000, MaxLevel: 1, EffectPerLevel: "Unlocked", SkinID: "circuit"},
	{ID: "u_skin_glass", Category: CatSkinGlass, Name: "Skin: Neon Glass", Description: "Transparent materials.", BasePrice: 15000, MaxLevel: 1, EffectPerLevel: "Unlocked", SkinID: "glass"},

	{ID: "u_headstart", Category: CatHeadStart, Name: "Head Start", Description: "Start games with bonus points.", BasePrice: 3500, MaxLevel: 3, EffectPerLevel: "+50 Points"},
	{ID: "u_shield", Category: CatMagnetShield, Name: "Magnet Shield", Description: "Blocks one hit in Surfer and Labyrinth.", BasePrice: 7000, MaxLevel: 1, EffectPerLevel: "Active"},
	{ID: "u_crystal", Category: CatCrystalMagnet, Name: "Magnet Vacuum", Description: "Collects coins automatically.", BasePrice: 5000, MaxLevel: 3, EffectPerLevel: "+2m Radius"},
	{ID: "u_loyalty", Category: CatLoyaltyCard, Name: "Loyalty Card", Description: "Discount on all upgrades.", BasePrice: 10000, MaxLevel: 3, EffectPerLevel: "-5% Prices"},
	{ID: "u_crit", Category: CatCritHarvest, Name: "Critical Harvest", Description: "Chance to earn x10 coins.", BasePrice: 4500, MaxLevel: 5, EffectPerLevel: "+2% Chance"},
	{ID: "u_auto_stack", Category: CatAutoStacker, Name: "Auto-Stacker", Description: "Every 10th Tower block is perfect.", BasePrice: 12000, MaxLevel: 1, EffectPerLevel: "On"},
	{ID: "u_ghost", Category: CatGhostMode, Name: "Ghost", Description: "Pass through obstacles (chance).", BasePrice: 9000, MaxLevel: 3, EffectPerLevel: "+5% Chance"},
	{ID: "u_freeze", Category: CatFreezeTime, Name: "Cryo-Stasis", Description: "Slows time briefly when in danger.", BasePrice: 6000, MaxLevel: 2, EffectPerLevel: "+2 sec"},
	{ID: "u_skin_magma", Category: CatSkinMagma, Name: "Skin: Magma", Description: "Pulsing lava.", BasePrice: 20000, MaxLevel: 1, EffectPerLevel: "Unlocked", SkinID: "magma"},
	{ID: "u_skin_holo", Category: CatSkinHolo, Name: "Skin: Hologram", Description: "Digital glitch.", BasePrice: 25000, MaxLevel: 1, EffectPerLevel: "Unlocked", SkinID: "holo"},
}

// upgradeIndex provides O(1) lookup by upgrade ID into UpgradeCatalog
var upgradeIndex map[string]int

func init() {
	upgradeIndex = make(map[string]int, len(UpgradeCatalog))
	for i, def := range UpgradeCatalog {
		if _, dup := upgradeIndex[def.ID]; dup {
			panic("duplicate upgrade id in catalog: " + def.ID)
		}
		upgradeIndex[def.ID] = i
	}
}

// LookupUpgrade returns the definition for an upgrade ID
func LookupUpgrade(id string) (UpgradeDefinition, bool) {
	i, ok := upgradeIndex[id]
	if !ok {
		return UpgradeDefinition{}, false
	}
	return UpgradeCatalog[i], true
}

// UpgradeForCategory returns the first catalog entry with the given category.
func UpgradeForCategory(cat UpgradeCategory) (UpgradeDefinition, bool) {
	for _, def := range UpgradeCatalog {
		if def.Category == cat {
			return def, true
		}
	}
	return UpgradeDefinition{}, false
}

// GameDefinition describes one of the minigames that reports scores
type GameDefinition struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Color       string `json:"color"`
}

var Games = []GameDefinition{
	{"game1", "Magnet Tower", "Build a tower by catching the moment of magnetic lock.", "#00f3ff"},
	{"game2", "Cube Merge", "Drop and merge cubes with physics.", "#bc13fe"},
	{"game3", "Magnetic Puzzle", "Assemble 3D structures from a blueprint.", "#ff0055"},
	{"game4", "Avalanche", "Survive a hail of falling magnets.", "#ffaa00"},
	{"game5", "Labyrinth", "Guide the ball to the goal with attraction.", "#00ff66"},
	{"game6", "Mag-Tris 3D", "Classic in 3D: clear layers of magnets.", "#ff3333"},
	{"game7", "Cube Surfer", "Glide over waves on a stack of cubes.", "#3388ff"},
}

// IsKnownGame reports whether gameID names one of the minigames
func IsKnownGame(gameID string) bool {
	for _, g := range Games {
		if g.ID == gameID {
			return true
		}
	}
	return false
}
