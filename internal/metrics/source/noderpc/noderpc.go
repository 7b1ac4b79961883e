package noderpc

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/credo-protocol/credo-engine/internal/chain"
	"github.com/credo-protocol/credo-engine/internal/metrics"
	"github.com/credo-protocol/credo-engine/internal/models"
)

// Source estimates transaction data from a bare node when the explorer is
// unavailable. The account nonce stands in for the transaction count and the
// first-activity timestamp is back-derived from block time, so results are
// approximate and labeled as such.
type Source struct {
	client          chain.Client
	secondsPerBlock int64
	now             func() time.Time
}

func NewSource(client chain.Client, secondsPerBlock int) *Source {
	return &Source{
		client:          client,
		secondsPerBlock: int64(secondsPerBlock),
		now:             time.Now,
	}
}

func (s *Source) Name() string {
	return "noderpc"
}

func (s *Source) FetchTransactions(ctx context.Context, address string) (*metrics.TransactionData, error) {
	nonce, err := s.client.NonceAt(ctx, common.HexToAddress(address), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: nonce lookup failed: %v", metrics.ErrSourceUnavailable, err)
	}

	data := &metrics.TransactionData{
		Count:  int(nonce),
		Source: models.TxSourceNodeEstimate,
	}
	if nonce == 0 {
		return data, nil
	}

	currentBlock, err := s.client.BlockNumber(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: block number lookup failed: %v", metrics.ErrSourceUnavailable, err)
	}

	// Rough estimate: assume the wallet's first transaction landed about
	// nonce*2 blocks ago, then convert the block span to seconds.
	estimatedFirstBlock := uint64(0)
	if span := nonce * 2; span < currentBlock {
		estimatedFirstBlock = currentBlock - span
	}
	ageSeconds := int64(currentBlock-estimatedFirstBlock) * s.secondsPerBlock
	ageDays := ageSeconds / 86400
	if ageDays < 1 {
		ageDays = 1
	}

	now := s.now().Unix()
	first := now - ageDays*86400
	data.FirstTimestamp = &first
	data.LastTimestamp = &now

	return data, nil
}

// FetchRecentTransfers cannot enumerate history from a bare node; it reports
// no data, which is a valid empty result.
func (s *Source) FetchRecentTransfers(ctx context.Context, address string, limit int) ([]metrics.Transfer, error) {
	return nil, nil
}

func (s *Source) FetchInternalTransfers(ctx context.Context, address string) ([]metrics.Transfer, error) {
	return nil, nil
}
