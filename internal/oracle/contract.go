package oracle

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/credo-protocol/credo-engine/internal/chain"
)

// scoreOracleABIJSON covers the two entry points this service uses. The tuple
// layout must match the deployed ScoreOracle contract exactly.
const scoreOracleABIJSON = `[
	{"inputs":[{"components":[{"name":"user","type":"address"},{"name":"score","type":"uint256"},{"name":"version","type":"uint256"},{"name":"nonce","type":"uint256"},{"name":"deadline","type":"uint256"}],"name":"update","type":"tuple"},{"name":"signature","type":"bytes"}],"name":"submitScoreUpdate","outputs":[],"stateMutability":"nonpayable","type":"function"},
	{"inputs":[{"name":"user","type":"address"}],"name":"getCurrentNonce","outputs":[{"name":"","type":"uint256"}],"stateMutability":"view","type":"function"}
]`

// scoreUpdateTuple matches the contract's update struct for ABI packing.
type scoreUpdateTuple struct {
	User     common.Address
	Score    *big.Int
	Version  *big.Int
	Nonce    *big.Int
	Deadline *big.Int
}

// Contract wraps the on-chain ScoreOracle.
type Contract struct {
	address common.Address
	client  chain.Client
	abi     abi.ABI
}

func NewContract(address string, client chain.Client) (*Contract, error) {
	parsed, err := abi.JSON(strings.NewReader(scoreOracleABIJSON))
	if err != nil {
		return nil, fmt.Errorf("failed to parse oracle abi: %w", err)
	}
	return &Contract{
		address: common.HexToAddress(address),
		client:  client,
		abi:     parsed,
	}, nil
}

func (c *Contract) Address() common.Address {
	return c.address
}

// CurrentNonce implements NonceReader with an eth_call against the contract.
func (c *Contract) CurrentNonce(ctx context.Context, user common.Address) (uint64, error) {
	data, err := c.abi.Pack("getCurrentNonce", user)
	if err != nil {
		return 0, fmt.Errorf("failed to pack getCurrentNonce call: %w", err)
	}

	out, err := c.client.CallContract(ctx, ethereum.CallMsg{To: &c.address, Data: data}, nil)
	if err != nil {
		return 0, fmt.Errorf("getCurrentNonce call failed: %w", err)
	}

	results, err := c.abi.Unpack("getCurrentNonce", out)
	if err != nil {
		return 0, fmt.Errorf("failed to unpack getCurrentNonce result: %w", err)
	}

	return results[0].(*big.Int).Uint64(), nil
}

// PackSubmitScoreUpdate encodes the submitScoreUpdate calldata.
func (c *Contract) PackSubmitScoreUpdate(update scoreUpdateTuple, signature []byte) ([]byte, error) {
	data, err := c.abi.Pack("submitScoreUpdate", update, signature)
	if err != nil {
		return nil, fmt.Errorf("failed to pack submitScoreUpdate call: %w", err)
	}
	return data, nil
}
