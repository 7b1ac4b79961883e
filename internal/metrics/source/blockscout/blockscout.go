package blockscout

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-resty/resty/v2"

	"github.com/credo-protocol/credo-engine/internal/metrics"
	"github.com/credo-protocol/credo-engine/internal/models"
	"github.com/credo-protocol/credo-engine/internal/utils/request"
)

// Source reads transaction history from a Blockscout-compatible explorer API.
// It is the primary transaction backend.
type Source struct {
	baseURL    string
	httpClient *resty.Client
}

func NewSource(baseURL string) *Source {
	return &Source{
		baseURL:    baseURL,
		httpClient: request.Request,
	}
}

func (s *Source) Name() string {
	return "blockscout"
}

// envelope is the Blockscout account-module response frame. Status "1" means
// data present; "0" with a "No transactions found" message is an empty result,
// not a failure.
type envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Result  json.RawMessage `json:"result"`
}

type apiTransaction struct {
	TimeStamp string `json:"timeStamp"`
	From      string `json:"from"`
	To        string `json:"to"`
	Value     string `json:"value"`
}

func (s *Source) FetchTransactions(ctx context.Context, address string) (*metrics.TransactionData, error) {
	txs, err := s.listTransactions(ctx, "txlist", address, "asc", 1000)
	if err != nil {
		return nil, err
	}

	data := &metrics.TransactionData{
		Count:  len(txs),
		Source: models.TxSourceExplorer,
	}

	if len(txs) > 0 {
		if ts, err := strconv.ParseInt(txs[0].TimeStamp, 10, 64); err == nil {
			data.FirstTimestamp = &ts
		}
		if ts, err := strconv.ParseInt(txs[len(txs)-1].TimeStamp, 10, 64); err == nil {
			data.LastTimestamp = &ts
		}
	}

	return data, nil
}

func (s *Source) FetchRecentTransfers(ctx context.Context, address string, limit int) ([]metrics.Transfer, error) {
	txs, err := s.listTransactions(ctx, "txlist", address, "desc", limit)
	if err != nil {
		return nil, err
	}
	return toTransfers(txs), nil
}

func (s *Source) FetchInternalTransfers(ctx context.Context, address string) ([]metrics.Transfer, error) {
	txs, err := s.listTransactions(ctx, "txlistinternal", address, "desc", 100)
	if err != nil {
		return nil, err
	}
	return toTransfers(txs), nil
}

func (s *Source) listTransactions(ctx context.Context, action, address, sort string, offset int) ([]apiTransaction, error) {
	resp, err := s.httpClient.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"module":     "account",
			"action":     action,
			"address":    address,
			"startblock": "0",
			"endblock":   "99999999",
			"page":       "1",
			"offset":     strconv.Itoa(offset),
			"sort":       sort,
		}).
		Get(s.baseURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %s request failed: %v", metrics.ErrSourceUnavailable, action, err)
	}

	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("%w: unexpected status code %d", metrics.ErrSourceUnavailable, resp.StatusCode())
	}

	var env envelope
	if err := json.Unmarshal(resp.Body(), &env); err != nil {
		return nil, fmt.Errorf("%w: failed to decode response: %v", metrics.ErrSourceUnavailable, err)
	}

	if env.Status != "1" {
		// Blockscout reports empty histories as status "0".
		if strings.Contains(env.Message, "No transactions found") {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: api status %q message %q", metrics.ErrSourceUnavailable, env.Status, env.Message)
	}

	var txs []apiTransaction
	if err := json.Unmarshal(env.Result, &txs); err != nil {
		return nil, fmt.Errorf("%w: failed to decode result list: %v", metrics.ErrSourceUnavailable, err)
	}

	return txs, nil
}

func toTransfers(txs []apiTransaction) []metrics.Transfer {
	transfers := make([]metrics.Transfer, 0, len(txs))
	for _, tx := range txs {
		value, ok := new(big.Int).SetString(tx.Value, 10)
		if !ok {
			value = big.NewInt(0)
		}
		transfers = append(transfers, metrics.Transfer{
			From:     tx.From,
			To:       tx.To,
			ValueWei: value,
		})
	}
	return transfers
}
