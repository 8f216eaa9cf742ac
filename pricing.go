package main

import (
	"math"
	"time"

	"github.com/shopspring/decimal"
)

const (
	// ScoreMultiplierStep is the coin bonus per SCORE_MULTIPLIER level (20%)
	scoreMultiplierStep = "0.2"
	// priceGrowth is the per-level price factor
	priceGrowth = "1.5"
	// PassiveRatePerLevel is MagCoins per hour per PASSIVE_INCOME level
	PassiveRatePerLevel = 10
)

var (
	decScoreStep   = decimal.RequireFromString(scoreMultiplierStep)
	decPriceGrowth = decimal.RequireFromString(priceGrowth)
	decMaxInt64    = decimal.NewFromInt(math.MaxInt64)
)

// toInt64 floors d, saturating at math.MaxInt64 instead of wrapping
func toInt64(d decimal.Decimal) int64 {
	d = d.Floor()
	if d.GreaterThan(decMaxInt64) {
		return math.MaxInt64
	}
	return d.IntPart()
}

// AddCoins returns balance+amount, saturating at math.MaxInt64
func AddCoins(balance, amount int64) int64 {
	if amount > 0 && balance > 0 && amount > math.MaxInt64-balance {
		return math.MaxInt64
	}
	return balance + amount
}

// UpgradePrice returns floor(basePrice * 1.5^level).
// Evaluated in decimal so large levels don't pick up float rounding.
func UpgradePrice(basePrice int64, level int) int64 {
	price := decimal.NewFromInt(basePrice)
	for i := 0; i < level; i++ {
		price = price.Mul(decPriceGrowth)
	}
	return toInt64(price)
}

// MultipliedCoins returns floor(amount * (1 + 0.2*level)), capped at math.MaxInt64.
func MultipliedCoins(amount int64, multiplierLevel int) int64 {
	if amount <= 0 {
		return 0
	}
	mult := decimal.NewFromInt(1).Add(decScoreStep.Mul(decimal.NewFromInt(int64(multiplierLevel))))
	return toInt64(decimal.NewFromInt(amount).Mul(mult))
}

// PassiveIncome returns the coins accrued offline between lastLogin and now
// for the given PASSIVE_INCOME level. Clock skew (now before lastLogin) earns nothing.
func PassiveIncome(level int, lastLogin, now time.Time) int64 {
	if level <= 0 || lastLogin.IsZero() || !now.After(lastLogin) {
		return 0
	}
	elapsedMs := decimal.NewFromInt(now.Sub(lastLogin).Milliseconds())
	rate := decimal.NewFromInt(int64(level * PassiveRatePerLevel))
	q, _ := elapsedMs.Mul(rate).QuoRem(decimal.NewFromInt(time.Hour.Milliseconds()), 0)
	return toInt64(q)
}
