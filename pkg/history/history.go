package history

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-resty/resty/v2"
	cache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"bridgectl/pkg/errs"
	"bridgectl/pkg/types"
)

const maxPages = 20

// Service reads prior bridge transactions for a wallet.
type Service interface {
	Transactions(ctx context.Context, address common.Address) ([]types.WithdrawalRecord, error)
	PendingWithdrawals(ctx context.Context, address common.Address) ([]types.WithdrawalRecord, error)
}

// Client is a REST transaction-history client with a short TTL cache
// in front of it.
type Client struct {
	http  *resty.Client
	cache *cache.Cache
	ttl   time.Duration
	log   *zap.Logger
}

var _ Service = (*Client)(nil)

type txDTO struct {
	Recipient string     `json:"recipient"`
	Index     uint64     `json:"withdrawalIndex"`
	Status    string     `json:"status"`
	TxHash    string     `json:"txHash"`
	Symbol    string     `json:"tokenSymbol"`
	Decimals  uint8      `json:"tokenDecimals"`
	Token     string     `json:"tokenAddress,omitempty"`
	Amount    string     `json:"amount"`
	ReadyAt   *time.Time `json:"readyAt,omitempty"`
}

type pageDTO struct {
	Transactions []txDTO `json:"transactions"`
	Cursor       string  `json:"cursor,omitempty"`
}

// NewClient creates a history client caching responses for ttl.
func NewClient(baseURL string, ttl time.Duration, log *zap.Logger) *Client {
	return &Client{
		http:  resty.New().SetBaseURL(baseURL).SetHeader("Accept", "application/json"),
		cache: cache.New(ttl, 2*ttl),
		ttl:   ttl,
		log:   log,
	}
}

// Transactions returns all recorded bridge transactions for a wallet,
// walking the paginated endpoint. Results are cached briefly so the
// polling views do not hammer the service.
func (c *Client) Transactions(ctx context.Context, address common.Address) ([]types.WithdrawalRecord, error) {
	key := address.Hex()
	if x, found := c.cache.Get(key); found {
		if records, ok := x.([]types.WithdrawalRecord); ok {
			return records, nil
		}
	}

	var records []types.WithdrawalRecord
	cursor := ""
	for page := 0; page < maxPages; page++ {
		req := c.http.R().
			SetContext(ctx).
			SetQueryParam("address", address.Hex())
		if cursor != "" {
			req.SetQueryParam("cursor", cursor)
		}

		var out pageDTO
		resp, err := req.SetResult(&out).Get("/v1/transactions")
		if err != nil {
			return nil, fmt.Errorf("history request failed: %w", errs.ErrServiceUnavailable)
		}
		if resp.IsError() {
			return nil, fmt.Errorf("history service returned status %d: %w", resp.StatusCode(), errs.ErrServiceUnavailable)
		}

		for _, dto := range out.Transactions {
			record, err := dto.toRecord()
			if err != nil {
				c.log.Warn("skipping malformed history entry", zap.Error(err))
				continue
			}
			records = append(records, record)
		}

		if out.Cursor == "" {
			break
		}
		cursor = out.Cursor
	}

	c.cache.Set(key, records, c.ttl)
	return records, nil
}

// PendingWithdrawals filters Transactions down to withdrawals that
// are still in flight or awaiting a claim.
func (c *Client) PendingWithdrawals(ctx context.Context, address common.Address) ([]types.WithdrawalRecord, error) {
	records, err := c.Transactions(ctx, address)
	if err != nil {
		return nil, err
	}

	var pending []types.WithdrawalRecord
	for _, record := range records {
		if record.Status == types.WithdrawalInProgress || record.Status == types.WithdrawalPending {
			pending = append(pending, record)
		}
	}
	return pending, nil
}

func (d txDTO) toRecord() (types.WithdrawalRecord, error) {
	if !common.IsHexAddress(d.Recipient) {
		return types.WithdrawalRecord{}, fmt.Errorf("invalid recipient address: %s", d.Recipient)
	}

	units := new(big.Int)
	if d.Amount != "" {
		if _, ok := units.SetString(d.Amount, 10); !ok {
			return types.WithdrawalRecord{}, fmt.Errorf("invalid amount: %s", d.Amount)
		}
	}

	token := types.TokenInfo{Symbol: d.Symbol, Decimals: d.Decimals}
	if d.Token != "" {
		if !common.IsHexAddress(d.Token) {
			return types.WithdrawalRecord{}, fmt.Errorf("invalid token address: %s", d.Token)
		}
		addr := common.HexToAddress(d.Token)
		token.Address = &addr
	}

	return types.WithdrawalRecord{
		Recipient: common.HexToAddress(d.Recipient),
		Index:     d.Index,
		Status:    types.WithdrawalStatus(d.Status),
		Token:     token,
		Units:     units,
		TxHash:    common.HexToHash(d.TxHash),
		ReadyAt:   d.ReadyAt,
	}, nil
}
