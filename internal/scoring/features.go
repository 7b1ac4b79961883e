package scoring

import (
	"math"

	"github.com/credo-protocol/credo-engine/internal/models"
)

// FeatureVector 派生特征, 预测模型的输入
type FeatureVector map[string]float64

// Behavioral flag thresholds.
const (
	whalePortfolioUSD  = 100_000
	activeTraderTxRate = 1.0 // tx per day
	hodlerTxRate       = 0.1
)

// ExtractFeatures derives the predictive model's feature vector from a
// metrics snapshot. Every feature is a deterministic function of the input.
func ExtractFeatures(m *models.WalletMetrics) FeatureVector {
	f := FeatureVector{
		"wallet_age_days":           float64(m.WalletAgeDays),
		"transaction_count":         float64(m.TransactionCount),
		"eth_balance":               m.EthBalance,
		"liquidation_count":         float64(m.LiquidationCount),
		"stablecoin_percentage":     m.StablecoinPercentage,
		"balance_stability_score":   m.BalanceStabilityScore,
		"total_portfolio_value_usd": m.TotalPortfolioValueUSD,
	}

	// Activity ratios.
	if m.WalletAgeDays > 0 {
		f["tx_per_day"] = f["transaction_count"] / f["wallet_age_days"]
		f["value_per_day"] = f["total_portfolio_value_usd"] / f["wallet_age_days"]
	} else {
		f["tx_per_day"] = 0
		f["value_per_day"] = 0
	}

	// Risk indicators.
	f["liquidation_rate"] = f["liquidation_count"] / math.Max(1, f["transaction_count"])
	f["portfolio_concentration"] = 100 - f["stablecoin_percentage"]

	// Wealth indicators.
	f["eth_dominance"] = f["eth_balance"] * 2000 / math.Max(1, f["total_portfolio_value_usd"]) * 100
	f["log_portfolio_value"] = math.Log1p(f["total_portfolio_value_usd"])

	// Behavioral flags.
	f["is_whale"] = boolFeature(f["total_portfolio_value_usd"] > whalePortfolioUSD)
	f["is_active_trader"] = boolFeature(f["tx_per_day"] > activeTraderTxRate)
	f["is_hodler"] = boolFeature(f["tx_per_day"] < hodlerTxRate && m.WalletAgeDays > 365)

	// Stability composites.
	f["stability_age_ratio"] = f["balance_stability_score"] * f["wallet_age_days"] / 365
	f["diversification_score"] = math.Min(f["stablecoin_percentage"], 100-f["stablecoin_percentage"])

	return f
}

func boolFeature(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
