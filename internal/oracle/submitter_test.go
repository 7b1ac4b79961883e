package oracle

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"math/big"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/credo-protocol/credo-engine/internal/models"
)

// fakeChain implements chain.Client for submitter tests. Safe for concurrent
// use, matching the batch path.
type fakeChain struct {
	mu         sync.Mutex
	sent       []*types.Transaction
	sendErr    error
	receiptErr error
	failUsers  [][]byte // getCurrentNonce calls touching these addresses fail
}

func (f *fakeChain) ChainID(ctx context.Context) (*big.Int, error) { return big.NewInt(2810), nil }

func (f *fakeChain) BlockNumber(ctx context.Context) (uint64, error) { return 100, nil }

func (f *fakeChain) BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error) {
	return big.NewInt(0), nil
}

func (f *fakeChain) NonceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (uint64, error) {
	return 0, nil
}

func (f *fakeChain) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	return 0, nil
}

func (f *fakeChain) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, user := range f.failUsers {
		if bytes.Contains(msg.Data, user) {
			return nil, errors.New("nonce read failed")
		}
	}
	return make([]byte, 32), nil
}

func (f *fakeChain) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	return big.NewInt(1_000_000_000), nil
}

func (f *fakeChain) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, tx)
	return nil
}

func (f *fakeChain) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.receiptErr != nil {
		return nil, f.receiptErr
	}
	return &types.Receipt{Status: types.ReceiptStatusSuccessful, GasUsed: 85000}, nil
}

func (f *fakeChain) Close() {}

func newTestSubmitter(t *testing.T, client *fakeChain, cfg SubmitterConfig) *Submitter {
	t.Helper()

	key, err := crypto.HexToECDSA(testKeyHex)
	require.NoError(t, err)

	contract, err := NewContract("0x5555555555555555555555555555555555555555", client)
	require.NoError(t, err)

	signer := NewSigner(key, contract, time.Hour)
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	return NewSubmitter(signer, contract, client, key, big.NewInt(2810), cfg, logger)
}

func TestSubmit_Success(t *testing.T) {
	client := &fakeChain{}
	sub := newTestSubmitter(t, client, SubmitterConfig{})

	outcome := sub.Submit(context.Background(), testUser, 640, testVersion)

	assert.True(t, outcome.Success)
	assert.NotEmpty(t, outcome.TransactionHash)
	assert.Equal(t, uint64(85000), outcome.GasUsed)
	assert.Equal(t, testUser, outcome.User)
	assert.Equal(t, 640, outcome.Score)
	assert.Empty(t, outcome.Error)

	require.Len(t, client.sent, 1)
	assert.Equal(t, common.HexToAddress("0x5555555555555555555555555555555555555555"), *client.sent[0].To())
}

func TestSubmit_BroadcastFailure(t *testing.T) {
	client := &fakeChain{sendErr: errors.New("insufficient funds")}
	sub := newTestSubmitter(t, client, SubmitterConfig{})

	outcome := sub.Submit(context.Background(), testUser, 640, testVersion)

	assert.False(t, outcome.Success)
	assert.Contains(t, outcome.Error, "insufficient funds")
	assert.Equal(t, testUser, outcome.User)
	assert.Equal(t, 640, outcome.Score)
}

func TestSubmit_ConfirmationTimeout(t *testing.T) {
	client := &fakeChain{receiptErr: errors.New("not found")}
	sub := newTestSubmitter(t, client, SubmitterConfig{
		ConfirmTimeout: 50 * time.Millisecond,
		PollInterval:   10 * time.Millisecond,
	})

	outcome := sub.Submit(context.Background(), testUser, 640, testVersion)

	assert.False(t, outcome.Success)
	assert.Contains(t, outcome.Error, ErrConfirmationTimeout.Error())
}

func TestSubmitBatch(t *testing.T) {
	failing := common.HexToAddress("0x00000000000000000000000000000000000000ff")
	client := &fakeChain{failUsers: [][]byte{failing.Bytes()}}
	sub := newTestSubmitter(t, client, SubmitterConfig{
		BatchSize:  10,
		BatchPause: 30 * time.Millisecond,
	})

	updates := make([]models.ScoreUpdate, 0, 12)
	for i := 0; i < 11; i++ {
		addr := common.BigToAddress(big.NewInt(int64(i + 1)))
		updates = append(updates, models.ScoreUpdate{User: addr.Hex(), Score: 500 + i})
	}
	updates = append(updates, models.ScoreUpdate{User: failing.Hex(), Score: 100})

	start := time.Now()
	outcome := sub.SubmitBatch(context.Background(), updates, testVersion)
	elapsed := time.Since(start)

	assert.True(t, outcome.Success)
	assert.Equal(t, 12, outcome.TotalUpdates)
	assert.Equal(t, 11, outcome.SuccessfulUpdates)
	assert.Equal(t, 1, outcome.FailedUpdates)
	require.Len(t, outcome.Results, 12)

	// results stay aligned with the request order
	for i, result := range outcome.Results {
		assert.Equal(t, updates[i].User, result.User)
		assert.Equal(t, updates[i].Score, result.Score)
	}
	assert.False(t, outcome.Results[11].Success)
	assert.NotEmpty(t, outcome.Results[11].Error)

	// two groups of ten and two, separated by one pause
	assert.GreaterOrEqual(t, elapsed, 30*time.Millisecond)
}

func TestSubmitBatch_Empty(t *testing.T) {
	sub := newTestSubmitter(t, &fakeChain{}, SubmitterConfig{})

	outcome := sub.SubmitBatch(context.Background(), nil, testVersion)

	assert.True(t, outcome.Success)
	assert.Equal(t, 0, outcome.TotalUpdates)
	assert.Empty(t, outcome.Results)
}
