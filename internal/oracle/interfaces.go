package oracle

import (
	"context"
	"errors"

	"github.com/ethereum/go-ethereum/common"
)

var (
	// ErrSignerUnconfigured means no signing key or oracle contract reference
	// is present. Surfaced to the caller, never retried.
	ErrSignerUnconfigured = errors.New("oracle signer not configured")

	// ErrSubmissionFailed marks a failed transaction build, broadcast or
	// confirmation. Reported per item in batches, never cascading.
	ErrSubmissionFailed = errors.New("oracle submission failed")

	// ErrConfirmationTimeout means the transaction was broadcast but not
	// confirmed within the configured wait.
	ErrConfirmationTimeout = errors.New("transaction confirmation timed out")
)

// NonceReader reads the oracle contract's per-user replay-protection nonce.
type NonceReader interface {
	CurrentNonce(ctx context.Context, user common.Address) (uint64, error)
}
