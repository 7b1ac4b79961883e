package scoring

import (
	"testing"

	"github.com/credo-protocol/credo-engine/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestAgeSubScore(t *testing.T) {
	tests := []struct {
		name string
		days int
		want float64
	}{
		{"new wallet", 0, 0},
		{"one month", 30, 50},
		{"mid ramp", 60, 75},
		{"three months", 90, 100},
		{"six months", 180, 150},
		{"one year", 365, 200},
		{"beyond one year", 800, 200},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, ageSubScore(tt.days), 0.01)
		})
	}
}

func TestAgeSubScore_Monotonic(t *testing.T) {
	prev := ageSubScore(0)
	for d := 1; d <= 400; d++ {
		cur := ageSubScore(d)
		assert.GreaterOrEqual(t, cur, prev, "age %d", d)
		prev = cur
	}
}

func TestActivitySubScore(t *testing.T) {
	tests := []struct {
		name  string
		count int
		want  float64
	}{
		{"inactive", 0, 0},
		{"first knee", 5, 50},
		{"second knee", 20, 100},
		{"third knee", 50, 150},
		{"saturated", 100, 200},
		{"beyond saturation", 5000, 200},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, activitySubScore(tt.count), 0.01)
		})
	}
}

func TestLiquidationSubScore(t *testing.T) {
	assert.Equal(t, 200.0, liquidationSubScore(0))
	assert.Equal(t, 150.0, liquidationSubScore(1))
	assert.Equal(t, 100.0, liquidationSubScore(2))
	assert.Equal(t, 50.0, liquidationSubScore(5))
	assert.Equal(t, 0.0, liquidationSubScore(6))

	// more liquidations never score higher
	prev := liquidationSubScore(0)
	for n := 1; n <= 10; n++ {
		cur := liquidationSubScore(n)
		assert.LessOrEqual(t, cur, prev, "count %d", n)
		prev = cur
	}
}

func TestAssetMixSubScore(t *testing.T) {
	tests := []struct {
		name string
		pct  float64
		want float64
	}{
		{"no stablecoins", 0, 25},
		{"balanced low", 20, 200},
		{"balanced high", 60, 200},
		{"slightly low", 15, 150},
		{"slightly high", 70, 150},
		{"thin", 7, 100},
		{"heavy", 85, 100},
		{"trace", 3, 50},
		{"all stable", 100, 50},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, assetMixSubScore(tt.pct))
		})
	}
}

func TestRuleBasedScore(t *testing.T) {
	tests := []struct {
		name      string
		metrics   models.WalletMetrics
		wantScore int
	}{
		{
			name: "perfect wallet",
			metrics: models.WalletMetrics{
				WalletAgeDays:         400,
				TransactionCount:      120,
				LiquidationCount:      0,
				StablecoinPercentage:  40,
				BalanceStabilityScore: 100,
			},
			wantScore: 1000,
		},
		{
			name:      "empty wallet",
			metrics:   models.WalletMetrics{},
			wantScore: 225, // liquidation 200 + asset mix 25
		},
		{
			name: "mid-tier wallet",
			metrics: models.WalletMetrics{
				WalletAgeDays:         90,
				TransactionCount:      20,
				LiquidationCount:      1,
				StablecoinPercentage:  15,
				BalanceStabilityScore: 50,
			},
			wantScore: 600, // 100 + 100 + 150 + 150 + 100
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			score, subScores := RuleBasedScore(&tt.metrics)
			assert.Equal(t, tt.wantScore, score)
			assert.Len(t, subScores, 5)
			for name, s := range subScores {
				assert.GreaterOrEqual(t, s, 0.0, name)
				assert.LessOrEqual(t, s, 200.0, name)
			}
		})
	}
}

func TestRuleBasedScore_Deterministic(t *testing.T) {
	m := models.WalletMetrics{
		WalletAgeDays:         123,
		TransactionCount:      47,
		LiquidationCount:      1,
		StablecoinPercentage:  33.3,
		BalanceStabilityScore: 77.7,
	}

	first, _ := RuleBasedScore(&m)
	for i := 0; i < 10; i++ {
		again, _ := RuleBasedScore(&m)
		assert.Equal(t, first, again)
	}
}

func TestRuleBasedScore_ClampsOutOfRangeInputs(t *testing.T) {
	m := models.WalletMetrics{
		StablecoinPercentage:  250,
		BalanceStabilityScore: -40,
	}

	score, subScores := RuleBasedScore(&m)
	assert.GreaterOrEqual(t, score, 0)
	assert.LessOrEqual(t, score, 1000)
	assert.Equal(t, 0.0, subScores["stability"])
	assert.Equal(t, 50.0, subScores["asset_mix"]) // clamped to 100%
}
