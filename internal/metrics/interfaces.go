package metrics

import (
	"context"
	"errors"
	"math/big"
)

var (
	// ErrSourceUnavailable marks a metric source that could not be reached or
	// answered unusably. The aggregator degrades the affected fields instead of
	// failing the snapshot.
	ErrSourceUnavailable = errors.New("metric source unavailable")

	// ErrAggregationFailed marks a failed mandatory native-balance read. The
	// whole scoring request fails when this surfaces.
	ErrAggregationFailed = errors.New("metric aggregation failed")
)

// TransactionData 地址的交易概况
type TransactionData struct {
	Count          int
	FirstTimestamp *int64 // epoch seconds, nil when no activity
	LastTimestamp  *int64
	Source         string // provenance label, see models.TxSource*
}

// Transfer is a single value movement touching the queried address.
type Transfer struct {
	From     string
	To       string
	ValueWei *big.Int
}

// TokenBalance is a decimal-adjusted token holding.
type TokenBalance struct {
	Symbol  string
	Balance float64
}

// TransactionSource 交易数据后端
//
// Implementations return a well-formed partial result or fail with
// ErrSourceUnavailable. Empty results are valid, never an error.
type TransactionSource interface {
	Name() string

	// FetchTransactions returns the transaction count and first/last activity
	// timestamps for the address.
	FetchTransactions(ctx context.Context, address string) (*TransactionData, error)

	// FetchRecentTransfers returns up to limit most-recent transfers involving
	// the address, newest first.
	FetchRecentTransfers(ctx context.Context, address string, limit int) ([]Transfer, error)

	// FetchInternalTransfers returns recent internal (contract-initiated)
	// transfers involving the address, newest first.
	FetchInternalTransfers(ctx context.Context, address string) ([]Transfer, error)
}

// BalanceSource 余额数据后端
type BalanceSource interface {
	Name() string

	// FetchNativeBalance returns the address's native balance in wei.
	FetchNativeBalance(ctx context.Context, address string) (*big.Int, error)

	// FetchTokenBalances returns decimal-adjusted balances for the configured
	// stablecoin registry. Tokens with zero balance are omitted.
	FetchTokenBalances(ctx context.Context, address string) ([]TokenBalance, error)
}
