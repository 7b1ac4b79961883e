package metrics

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/credo-protocol/credo-engine/internal/chain"
	"github.com/credo-protocol/credo-engine/internal/models"
)

const (
	// stabilitySampleSize bounds the transaction sample for the stability
	// signal; stabilityOutgoingLimit bounds the outgoing transfers kept of it.
	stabilitySampleSize    = 50
	stabilityOutgoingLimit = 20
)

// liquidationValueWei is the minimum internal-transfer value (0.1 native
// units) considered for the liquidation heuristic.
var liquidationValueWei = big.NewInt(100_000_000_000_000_000)

// Aggregator builds a WalletMetrics snapshot by fanning out to the metric
// sources concurrently. A failed sub-fetch degrades only its own fields to
// neutral defaults; only the mandatory native-balance read can fail the call.
type Aggregator struct {
	txSources        []TransactionSource // primary first, fallbacks after
	balances         BalanceSource
	lendingProtocols map[string]struct{}
	ethPriceUSD      float64
	logger           *slog.Logger
	now              func() time.Time
}

func NewAggregator(txSources []TransactionSource, balances BalanceSource, ethPriceUSD float64, lendingProtocols []string, logger *slog.Logger) *Aggregator {
	protocols := make(map[string]struct{}, len(lendingProtocols))
	for _, addr := range lendingProtocols {
		protocols[strings.ToLower(addr)] = struct{}{}
	}
	return &Aggregator{
		txSources:        txSources,
		balances:         balances,
		lendingProtocols: protocols,
		ethPriceUSD:      ethPriceUSD,
		logger:           logger,
		now:              time.Now,
	}
}

// Aggregate collects the metrics snapshot for address.
func (a *Aggregator) Aggregate(ctx context.Context, address string) (*models.WalletMetrics, error) {
	// The native balance read is a synchronous precondition: without it the
	// final score is meaningless.
	nativeWei, err := a.balances.FetchNativeBalance(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAggregationFailed, err)
	}

	m := &models.WalletMetrics{
		EthBalance:            chain.WeiToEther(nativeWei),
		BalanceStabilityScore: 50,
		AssetBreakdown:        map[string]models.AssetHolding{},
		TxDataSource:          models.TxSourceNone,
	}

	// The four fetches run independently and write into disjoint field groups
	// of m, so the join barrier is the only synchronization needed.
	var wg sync.WaitGroup
	wg.Add(4)
	go func() {
		defer wg.Done()
		a.fillTransactionData(ctx, address, m)
	}()
	go func() {
		defer wg.Done()
		a.fillAssetMix(ctx, address, m)
	}()
	go func() {
		defer wg.Done()
		a.fillLiquidations(ctx, address, m)
	}()
	go func() {
		defer wg.Done()
		a.fillStability(ctx, address, m)
	}()
	wg.Wait()

	if m.FirstTransactionTime != nil {
		age := int(a.now().Sub(time.Unix(*m.FirstTransactionTime, 0)).Hours() / 24)
		if age < 0 {
			age = 0
		}
		m.WalletAgeDays = age
	}

	m.StablecoinPercentage = clamp(m.StablecoinPercentage, 0, 100)
	m.BalanceStabilityScore = clamp(m.BalanceStabilityScore, 0, 100)

	return m, nil
}

func (a *Aggregator) fillTransactionData(ctx context.Context, address string, m *models.WalletMetrics) {
	for _, src := range a.txSources {
		data, err := src.FetchTransactions(ctx, address)
		if err != nil {
			a.logger.Warn("transaction fetch failed", "source", src.Name(), "address", address, "err", err)
			continue
		}
		m.TransactionCount = data.Count
		m.FirstTransactionTime = data.FirstTimestamp
		m.LastTransactionTime = data.LastTimestamp
		m.TxDataSource = data.Source
		return
	}
	// All sources down: zero counts, nil timestamps.
}

func (a *Aggregator) fillAssetMix(ctx context.Context, address string, m *models.WalletMetrics) {
	tokens, err := a.balances.FetchTokenBalances(ctx, address)
	if err != nil {
		a.logger.Warn("token balance fetch failed", "address", address, "err", err)
		return
	}

	ethValue := m.EthBalance * a.ethPriceUSD
	totalValue := ethValue
	stablecoinValue := 0.0

	breakdown := map[string]models.AssetHolding{
		"ETH": {Balance: m.EthBalance, ValueUSD: ethValue},
	}
	for _, token := range tokens {
		// Stablecoins are valued at $1 par.
		breakdown[token.Symbol] = models.AssetHolding{Balance: token.Balance, ValueUSD: token.Balance}
		totalValue += token.Balance
		stablecoinValue += token.Balance
	}

	if totalValue > 0 {
		m.StablecoinPercentage = round2(stablecoinValue / totalValue * 100)
	}
	m.TotalPortfolioValueUSD = round2(totalValue)
	m.AssetBreakdown = breakdown
}

// fillLiquidations scans internal transfers for liquidation-suspect activity:
// large transfers originating from a configured lending-protocol contract.
// Without a protocol registry the count stays 0; a real classification needs
// lending-protocol event logs.
func (a *Aggregator) fillLiquidations(ctx context.Context, address string, m *models.WalletMetrics) {
	for _, src := range a.txSources {
		transfers, err := src.FetchInternalTransfers(ctx, address)
		if err != nil {
			a.logger.Warn("internal transfer fetch failed", "source", src.Name(), "address", address, "err", err)
			continue
		}

		count := 0
		for _, t := range transfers {
			if t.ValueWei == nil || t.ValueWei.Cmp(liquidationValueWei) < 0 {
				continue
			}
			if _, ok := a.lendingProtocols[strings.ToLower(t.From)]; ok {
				count++
			}
		}
		m.LiquidationCount = count
		return
	}
}

// fillStability derives a 0-100 stability score from the spread of recent
// outgoing transfer values, using the coefficient of variation as an inverse
// stability proxy. Fewer than two outgoing values keeps the neutral 50.
func (a *Aggregator) fillStability(ctx context.Context, address string, m *models.WalletMetrics) {
	for _, src := range a.txSources {
		transfers, err := src.FetchRecentTransfers(ctx, address, stabilitySampleSize)
		if err != nil {
			a.logger.Warn("recent transfer fetch failed", "source", src.Name(), "address", address, "err", err)
			continue
		}

		var values []float64
		for _, t := range transfers {
			if t.ValueWei == nil || !strings.EqualFold(t.From, address) {
				continue
			}
			v, _ := new(big.Float).SetInt(t.ValueWei).Float64()
			values = append(values, v)
			if len(values) == stabilityOutgoingLimit {
				break
			}
		}

		if len(values) >= 2 {
			if cv, ok := coefficientOfVariation(values); ok {
				m.BalanceStabilityScore = round2(clamp(100-cv*50, 0, 100))
			}
		}
		return
	}
}

// coefficientOfVariation returns stddev/mean of values; ok is false when the
// mean is zero.
func coefficientOfVariation(values []float64) (float64, bool) {
	mean := 0.0
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))
	if mean == 0 {
		return 0, false
	}

	variance := 0.0
	for _, v := range values {
		variance += (v - mean) * (v - mean)
	}
	variance /= float64(len(values))

	return math.Sqrt(variance) / mean, true
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

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
