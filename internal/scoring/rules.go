package scoring

import (
	"math"

	"github.com/credo-protocol/credo-engine/internal/models"
)

// RuleBasedScore computes the deterministic Credo Score from five weighted
// signals, each contributing 0-200 points. It is a pure function and the
// audit baseline the predictive model is compared against: identical input
// metrics must reproduce identical output bit for bit.
func RuleBasedScore(m *models.WalletMetrics) (int, map[string]float64) {
	subScores := map[string]float64{
		"age":         ageSubScore(m.WalletAgeDays),
		"activity":    activitySubScore(m.TransactionCount),
		"liquidation": liquidationSubScore(m.LiquidationCount),
		"asset_mix":   assetMixSubScore(clamp(m.StablecoinPercentage, 0, 100)),
		"stability":   clamp(m.BalanceStabilityScore, 0, 100) * 2,
	}

	total := 0.0
	for _, s := range subScores {
		total += s
	}

	return clampScore(int(math.Round(total))), subScores
}

// ageSubScore ramps from 0 at day 0 to 200 at one year, with knees at
// 30/90/180 days.
func ageSubScore(days int) float64 {
	d := float64(days)
	switch {
	case d >= 365:
		return 200
	case d >= 180:
		return 150 + (d-180)*50/185
	case d >= 90:
		return 100 + (d-90)*50/90
	case d >= 30:
		return 50 + (d-30)*50/60
	default:
		return d * 50 / 30
	}
}

// activitySubScore ramps from 0 at zero transactions to 200 at 100+, with
// knees at 5/20/50.
func activitySubScore(count int) float64 {
	c := float64(count)
	switch {
	case c >= 100:
		return 200
	case c >= 50:
		return 150 + (c-50)*50/50
	case c >= 20:
		return 100 + (c-20)*50/30
	case c >= 5:
		return 50 + (c-5)*50/15
	default:
		return c * 50 / 5
	}
}

func liquidationSubScore(count int) float64 {
	switch {
	case count == 0:
		return 200
	case count == 1:
		return 150
	case count == 2:
		return 100
	case count <= 5:
		return 50
	default:
		return 0
	}
}

// assetMixSubScore rewards a balanced stablecoin allocation. A 20-60% mix is
// optimal; holding no stablecoins at all scores lowest.
func assetMixSubScore(pct float64) float64 {
	switch {
	case pct == 0:
		return 25
	case pct >= 20 && pct <= 60:
		return 200
	case (pct >= 10 && pct < 20) || (pct > 60 && pct <= 80):
		return 150
	case (pct >= 5 && pct < 10) || (pct > 80 && pct <= 90):
		return 100
	default:
		return 50
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampScore(score int) int {
	if score < 0 {
		return 0
	}
	if score > 1000 {
		return 1000
	}
	return score
}
