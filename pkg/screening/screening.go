package screening

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"bridgectl/pkg/errs"
)

// Checker is the sanctions screening capability.
type Checker interface {
	// IsSanctioned reports whether the address is blocked in the
	// given environment.
	IsSanctioned(ctx context.Context, address common.Address, environment string) (bool, error)
}

// Client screens addresses through a REST service. FailOpen decides
// what a network failure of the check itself means: true treats the
// address as clean, false blocks it.
type Client struct {
	http     *resty.Client
	failOpen bool
	log      *zap.Logger
}

var _ Checker = (*Client)(nil)

type screenRequestDTO struct {
	Address     string `json:"address"`
	Environment string `json:"environment"`
}

type screenResponseDTO struct {
	Sanctioned bool `json:"sanctioned"`
}

// NewClient creates a screening client.
func NewClient(baseURL string, failOpen bool, log *zap.Logger) *Client {
	return &Client{
		http:     resty.New().SetBaseURL(baseURL).SetHeader("Accept", "application/json"),
		failOpen: failOpen,
		log:      log,
	}
}

// IsSanctioned checks the address. A failed check degrades per the
// configured policy instead of aborting the wallet selection.
func (c *Client) IsSanctioned(ctx context.Context, address common.Address, environment string) (bool, error) {
	var out screenResponseDTO
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(screenRequestDTO{Address: address.Hex(), Environment: environment}).
		SetResult(&out).
		Post("/v1/screen")

	if err != nil || resp.IsError() {
		status := 0
		if resp != nil {
			status = resp.StatusCode()
		}
		c.log.Warn("sanctions check failed",
			zap.String("address", address.Hex()),
			zap.Int("status", status),
			zap.Bool("failOpen", c.failOpen),
			zap.Error(err))
		if c.failOpen {
			return false, nil
		}
		return true, fmt.Errorf("sanctions check unavailable: %w", errs.ErrServiceUnavailable)
	}

	return out.Sanctioned, nil
}
