package oracle

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/credo-protocol/credo-engine/internal/chain"
	"github.com/credo-protocol/credo-engine/internal/models"
)

// SubmitterConfig tunes submission behavior. Zero values fall back to the
// production defaults.
type SubmitterConfig struct {
	GasLimit       uint64
	BatchSize      int
	BatchPause     time.Duration
	ConfirmTimeout time.Duration
	PollInterval   time.Duration
}

func (c *SubmitterConfig) applyDefaults() {
	if c.GasLimit == 0 {
		c.GasLimit = 200000
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 10
	}
	if c.BatchPause <= 0 {
		c.BatchPause = 2 * time.Second
	}
	if c.ConfirmTimeout <= 0 {
		c.ConfirmTimeout = 90 * time.Second
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 2 * time.Second
	}
}

// Submitter signs score updates and drives them through the oracle contract:
// build, broadcast, then a bounded wait for confirmation. Every failure is
// converted into a structured outcome; nothing raises past this boundary.
type Submitter struct {
	signer   *Signer
	contract *Contract
	client   chain.Client
	key      *ecdsa.PrivateKey
	chainID  *big.Int
	cfg      SubmitterConfig
	logger   *slog.Logger
}

func NewSubmitter(signer *Signer, contract *Contract, client chain.Client, key *ecdsa.PrivateKey, chainID *big.Int, cfg SubmitterConfig, logger *slog.Logger) *Submitter {
	cfg.applyDefaults()
	return &Submitter{
		signer:   signer,
		contract: contract,
		client:   client,
		key:      key,
		chainID:  chainID,
		cfg:      cfg,
		logger:   logger,
	}
}

// Submit signs and submits a single score update, blocking until the
// transaction confirms or the confirmation wait times out.
func (s *Submitter) Submit(ctx context.Context, user string, score, version int) models.SubmissionOutcome {
	outcome, err := s.submit(ctx, user, score, version)
	if err != nil {
		s.logger.Error("score submission failed", "user", user, "score", score, "err", err)
		return models.SubmissionOutcome{
			Success: false,
			Error:   err.Error(),
			User:    user,
			Score:   score,
		}
	}
	return outcome
}

func (s *Submitter) submit(ctx context.Context, user string, score, version int) (models.SubmissionOutcome, error) {
	none := models.SubmissionOutcome{}

	signed, err := s.signer.Sign(ctx, user, score, version)
	if err != nil {
		return none, err
	}

	signature, err := hexutil.Decode(signed.Signature)
	if err != nil {
		return none, fmt.Errorf("%w: malformed signature: %v", ErrSubmissionFailed, err)
	}

	data, err := s.contract.PackSubmitScoreUpdate(scoreUpdateTuple{
		User:     common.HexToAddress(signed.Update.User),
		Score:    big.NewInt(int64(signed.Update.Score)),
		Version:  big.NewInt(int64(signed.Update.Version)),
		Nonce:    new(big.Int).SetUint64(signed.Update.Nonce),
		Deadline: big.NewInt(signed.Update.Deadline),
	}, signature)
	if err != nil {
		return none, fmt.Errorf("%w: %v", ErrSubmissionFailed, err)
	}

	gasPrice, err := s.client.SuggestGasPrice(ctx)
	if err != nil {
		return none, fmt.Errorf("%w: gas price lookup failed: %v", ErrSubmissionFailed, err)
	}

	// Concurrent submissions within a batch group read the signer account's
	// pending nonce independently, so on a live chain they can collide and
	// replace each other; the losing item surfaces as a failed or timed-out
	// outcome.
	accountNonce, err := s.client.PendingNonceAt(ctx, crypto.PubkeyToAddress(s.key.PublicKey))
	if err != nil {
		return none, fmt.Errorf("%w: account nonce lookup failed: %v", ErrSubmissionFailed, err)
	}

	tx := types.NewTransaction(accountNonce, s.contract.Address(), big.NewInt(0), s.cfg.GasLimit, gasPrice, data)
	signedTx, err := types.SignTx(tx, types.NewEIP155Signer(s.chainID), s.key)
	if err != nil {
		return none, fmt.Errorf("%w: transaction signing failed: %v", ErrSubmissionFailed, err)
	}

	if err := s.client.SendTransaction(ctx, signedTx); err != nil {
		return none, fmt.Errorf("%w: broadcast failed: %v", ErrSubmissionFailed, err)
	}

	receipt, err := s.waitConfirmed(ctx, signedTx)
	if err != nil {
		return none, err
	}
	if receipt.Status == types.ReceiptStatusFailed {
		return none, fmt.Errorf("%w: transaction %s reverted", ErrSubmissionFailed, signedTx.Hash().Hex())
	}

	s.logger.Info("score update submitted",
		"user", user, "score", score, "tx", signedTx.Hash().Hex(), "gas_used", receipt.GasUsed)

	return models.SubmissionOutcome{
		Success:         true,
		TransactionHash: signedTx.Hash().Hex(),
		GasUsed:         receipt.GasUsed,
		User:            user,
		Score:           score,
	}, nil
}

// waitConfirmed polls for the receipt until the transaction lands or the
// configured timeout elapses.
func (s *Submitter) waitConfirmed(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.ConfirmTimeout)
	defer cancel()

	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		receipt, err := s.client.TransactionReceipt(ctx, tx.Hash())
		if err == nil && receipt != nil {
			return receipt, nil
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %s", ErrConfirmationTimeout, tx.Hash().Hex())
		case <-ticker.C:
		}
	}
}

// SubmitBatch submits updates in groups of BatchSize. Items within a group
// run concurrently and fail independently; a fixed pause separates groups to
// avoid overwhelming the network.
func (s *Submitter) SubmitBatch(ctx context.Context, updates []models.ScoreUpdate, version int) models.BatchOutcome {
	results := make([]models.SubmissionOutcome, len(updates))

	for start := 0; start < len(updates); start += s.cfg.BatchSize {
		end := start + s.cfg.BatchSize
		if end > len(updates) {
			end = len(updates)
		}

		var wg sync.WaitGroup
		for i := start; i < end; i++ {
			wg.Add(1)
			go func(idx int) {
				defer wg.Done()
				results[idx] = s.Submit(ctx, updates[idx].User, updates[idx].Score, version)
			}(i)
		}
		wg.Wait()

		if end < len(updates) {
			select {
			case <-ctx.Done():
			case <-time.After(s.cfg.BatchPause):
			}
		}
	}

	successful := 0
	for _, r := range results {
		if r.Success {
			successful++
		}
	}

	return models.BatchOutcome{
		Success:           true,
		TotalUpdates:      len(updates),
		SuccessfulUpdates: successful,
		FailedUpdates:     len(updates) - successful,
		Results:           results,
	}
}
