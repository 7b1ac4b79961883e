package blockscout

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/credo-protocol/credo-engine/internal/metrics"
	"github.com/credo-protocol/credo-engine/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testAddress = "0x1111111111111111111111111111111111111111"

func TestFetchTransactions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "account", r.URL.Query().Get("module"))
		assert.Equal(t, "txlist", r.URL.Query().Get("action"))
		assert.Equal(t, testAddress, r.URL.Query().Get("address"))
		assert.Equal(t, "asc", r.URL.Query().Get("sort"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"status": "1",
			"message": "OK",
			"result": [
				{"timeStamp": "1600000000", "from": "0xaa", "to": "0xbb", "value": "1000"},
				{"timeStamp": "1650000000", "from": "0xbb", "to": "0xaa", "value": "2000"},
				{"timeStamp": "1700000000", "from": "0xaa", "to": "0xcc", "value": "3000"}
			]
		}`))
	}))
	defer srv.Close()

	src := NewSource(srv.URL)
	data, err := src.FetchTransactions(context.Background(), testAddress)
	require.NoError(t, err)

	assert.Equal(t, 3, data.Count)
	assert.Equal(t, models.TxSourceExplorer, data.Source)
	require.NotNil(t, data.FirstTimestamp)
	require.NotNil(t, data.LastTimestamp)
	assert.Equal(t, int64(1600000000), *data.FirstTimestamp)
	assert.Equal(t, int64(1700000000), *data.LastTimestamp)
}

func TestFetchTransactions_EmptyHistory(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status": "0", "message": "No transactions found", "result": []}`))
	}))
	defer srv.Close()

	src := NewSource(srv.URL)
	data, err := src.FetchTransactions(context.Background(), testAddress)
	require.NoError(t, err)

	assert.Equal(t, 0, data.Count)
	assert.Nil(t, data.FirstTimestamp)
	assert.Nil(t, data.LastTimestamp)
	assert.Equal(t, models.TxSourceExplorer, data.Source)
}

func TestFetchTransactions_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	src := NewSource(srv.URL)
	_, err := src.FetchTransactions(context.Background(), testAddress)
	assert.ErrorIs(t, err, metrics.ErrSourceUnavailable)
}

func TestFetchTransactions_APIErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status": "0", "message": "NOTOK", "result": null}`))
	}))
	defer srv.Close()

	src := NewSource(srv.URL)
	_, err := src.FetchTransactions(context.Background(), testAddress)
	assert.ErrorIs(t, err, metrics.ErrSourceUnavailable)
}

func TestFetchRecentTransfers(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "txlist", r.URL.Query().Get("action"))
		assert.Equal(t, "desc", r.URL.Query().Get("sort"))
		assert.Equal(t, "50", r.URL.Query().Get("offset"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"status": "1",
			"message": "OK",
			"result": [
				{"timeStamp": "1700000000", "from": "0xaa", "to": "0xbb", "value": "5000000000000000000"},
				{"timeStamp": "1690000000", "from": "0xbb", "to": "0xaa", "value": "junk"}
			]
		}`))
	}))
	defer srv.Close()

	src := NewSource(srv.URL)
	transfers, err := src.FetchRecentTransfers(context.Background(), testAddress, 50)
	require.NoError(t, err)
	require.Len(t, transfers, 2)

	assert.Equal(t, "0xaa", transfers[0].From)
	assert.Equal(t, "5000000000000000000", transfers[0].ValueWei.String())
	// unparseable values degrade to zero
	assert.Equal(t, "0", transfers[1].ValueWei.String())
}

func TestFetchInternalTransfers(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "txlistinternal", r.URL.Query().Get("action"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"status": "1",
			"message": "OK",
			"result": [
				{"timeStamp": "1700000000", "from": "0xdd", "to": "0xaa", "value": "100000000000000000"}
			]
		}`))
	}))
	defer srv.Close()

	src := NewSource(srv.URL)
	transfers, err := src.FetchInternalTransfers(context.Background(), testAddress)
	require.NoError(t, err)
	require.Len(t, transfers, 1)
	assert.Equal(t, "0xdd", transfers[0].From)
}
