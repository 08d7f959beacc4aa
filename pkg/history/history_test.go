package history

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"bridgectl/pkg/errs"
	"bridgectl/pkg/types"
)

var wallet = common.HexToAddress("0x1111111111111111111111111111111111111111")

func TestTransactionsWalksPages(t *testing.T) {
	var requests atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		require.Equal(t, wallet.Hex(), r.URL.Query().Get("address"))

		page := pageDTO{}
		switch r.URL.Query().Get("cursor") {
		case "":
			page.Transactions = []txDTO{{
				Recipient: wallet.Hex(),
				Index:     1,
				Status:    string(types.WithdrawalPending),
				Symbol:    "ETH",
				Decimals:  18,
				Amount:    "1000000000000000000",
				TxHash:    "0xaa",
			}}
			page.Cursor = "page2"
		case "page2":
			page.Transactions = []txDTO{{
				Recipient: wallet.Hex(),
				Index:     2,
				Status:    string(types.WithdrawalClaimed),
				Symbol:    "USDC",
				Decimals:  6,
				Token:     "0x3333333333333333333333333333333333333333",
				Amount:    "25000000",
				TxHash:    "0xbb",
			}}
		default:
			t.Errorf("unexpected cursor %q", r.URL.Query().Get("cursor"))
		}

		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(page))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Minute, zap.NewNop())
	records, err := c.Transactions(context.Background(), wallet)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, uint64(1), records[0].Index)
	assert.Equal(t, "1000000000000000000", records[0].Units.String())
	assert.Equal(t, uint64(2), records[1].Index)
	require.NotNil(t, records[1].Token.Address)
	assert.Equal(t, int64(2), requests.Load())

	// Second lookup is served from cache.
	_, err = c.Transactions(context.Background(), wallet)
	require.NoError(t, err)
	assert.Equal(t, int64(2), requests.Load())
}

func TestTransactionsSkipsMalformedEntries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		page := pageDTO{Transactions: []txDTO{
			{Recipient: "garbage", Amount: "1"},
			{Recipient: wallet.Hex(), Index: 5, Status: string(types.WithdrawalPending), Amount: "1"},
			{Recipient: wallet.Hex(), Index: 6, Status: string(types.WithdrawalPending), Amount: "not-a-number"},
		}}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(page))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Minute, zap.NewNop())
	records, err := c.Transactions(context.Background(), wallet)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, uint64(5), records[0].Index)
}

func TestTransactionsServiceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "maintenance", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Minute, zap.NewNop())
	_, err := c.Transactions(context.Background(), wallet)
	assert.ErrorIs(t, err, errs.ErrServiceUnavailable)
}

func TestPendingWithdrawalsFiltersByStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		page := pageDTO{Transactions: []txDTO{
			{Recipient: wallet.Hex(), Index: 1, Status: string(types.WithdrawalInProgress), Amount: "1"},
			{Recipient: wallet.Hex(), Index: 2, Status: string(types.WithdrawalPending), Amount: "2"},
			{Recipient: wallet.Hex(), Index: 3, Status: string(types.WithdrawalClaimed), Amount: "3"},
		}}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(page))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Minute, zap.NewNop())
	pending, err := c.PendingWithdrawals(context.Background(), wallet)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, uint64(1), pending[0].Index)
	assert.Equal(t, uint64(2), pending[1].Index)
}
