package noderpc

import (
	"context"
	"fmt"
	"math"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/credo-protocol/credo-engine/internal/chain"
	"github.com/credo-protocol/credo-engine/internal/metrics"
)

// Balances reads native and stablecoin balances from the node. The stablecoin
// registry is fixed at construction; unknown tokens are not discovered.
type Balances struct {
	client      chain.Client
	erc20       *chain.ERC20Reader
	stablecoins map[string]common.Address // symbol -> contract
}

func NewBalances(client chain.Client, stablecoins map[string]string) *Balances {
	registry := make(map[string]common.Address, len(stablecoins))
	for symbol, addr := range stablecoins {
		registry[symbol] = common.HexToAddress(addr)
	}
	return &Balances{
		client:      client,
		erc20:       chain.NewERC20Reader(client),
		stablecoins: registry,
	}
}

func (b *Balances) Name() string {
	return "noderpc"
}

func (b *Balances) FetchNativeBalance(ctx context.Context, address string) (*big.Int, error) {
	wei, err := b.client.BalanceAt(ctx, common.HexToAddress(address), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: native balance read failed: %v", metrics.ErrSourceUnavailable, err)
	}
	return wei, nil
}

func (b *Balances) FetchTokenBalances(ctx context.Context, address string) ([]metrics.TokenBalance, error) {
	owner := common.HexToAddress(address)

	var balances []metrics.TokenBalance
	for symbol, token := range b.stablecoins {
		raw, err := b.erc20.BalanceOf(ctx, token, owner)
		if err != nil {
			// One unreadable token contract does not invalidate the rest of
			// the registry.
			continue
		}
		if raw.Sign() == 0 {
			continue
		}

		decimals, err := b.erc20.Decimals(ctx, token)
		if err != nil {
			continue
		}

		value, _ := new(big.Float).Quo(
			new(big.Float).SetInt(raw),
			new(big.Float).SetFloat64(math.Pow10(int(decimals))),
		).Float64()

		balances = append(balances, metrics.TokenBalance{Symbol: symbol, Balance: value})
	}

	return balances, nil
}
