package oracle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"auxpass/utils"

	"github.com/shopspring/decimal"
)

var _ BalanceOracle = (*client)(nil)

// ErrNotConfigured is returned by Unconfigured for every lookup.
var ErrNotConfigured = errors.New("oracle: balance oracle url not configured")

// BalanceOracle returns a wallet's gate-token balance in whole token units.
type BalanceOracle interface {
	Balance(ctx context.Context, wallet string) (int64, error)
}

type (
	Config struct {
		BaseURL      string `json:"base_url"`
		APIKey       string `json:"api_key"`
		TokenAddress string `json:"token_address"`

		// Decimals is the gate token's ERC-20 decimals; the oracle reports
		// raw base units.
		Decimals int32 `json:"decimals"`

		Timeout time.Duration `json:"timeout"`
	}

	client struct {
		baseURL      string
		apiKey       string
		tokenAddress string
		decimals     int32

		// hc is the http client.
		hc *http.Client

		breaker *utils.CircuitBreaker
	}
)

type balanceReply struct {
	Wallet  string `json:"wallet"`
	Token   string `json:"token"`
	Balance string `json:"balance"`
}

// New creates a new HTTP balance oracle client.
func New(cfg *Config) (BalanceOracle, error) {
	if cfg == nil || cfg.BaseURL == "" {
		return nil, ErrNotConfigured
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("oracle: parse base url: %w", err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}

	return &client{
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:       cfg.APIKey,
		tokenAddress: cfg.TokenAddress,
		decimals:     cfg.Decimals,

		// set http client with timeout.
		hc: &http.Client{
			Timeout: timeout,
		},

		breaker: utils.NewCircuitBreaker("balance-oracle"),
	}, nil
}

func (c *client) Balance(ctx context.Context, wallet string) (int64, error) {
	var balance int64

	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		raw, err := c.fetch(ctx, wallet)
		if err != nil {
			return err
		}

		balance, err = toWholeUnits(raw, c.decimals)
		return err
	})
	if errors.Is(err, utils.ErrOpenState) || errors.Is(err, utils.ErrTooManyRequests) {
		return 0, fmt.Errorf("oracle: %s: %w", c.breaker.Name(), err)
	}
	if err != nil {
		return 0, err
	}

	return balance, nil
}

// fetch makes the http call and returns the raw base-unit balance string.
func (c *client) fetch(ctx context.Context, wallet string) (string, error) {
	endpoint := fmt.Sprintf("%s/v1/balances/%s", c.baseURL, url.PathEscape(wallet))
	if c.tokenAddress != "" {
		endpoint += "?" + url.Values{"token": []string{c.tokenAddress}}.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("oracle: http.NewRequestWithContext: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return "", fmt.Errorf("oracle: hc.Do: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		rbody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("oracle: resp.StatusCode: %d, resp.Body: %s", resp.StatusCode, rbody)
	}

	var reply balanceReply
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		return "", fmt.Errorf("oracle: json.Decode: %w", err)
	}

	return reply.Balance, nil
}

// toWholeUnits floors a base-unit amount to whole tokens, capped at MaxInt64.
func toWholeUnits(raw string, decimals int32) (int64, error) {
	amount, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("oracle: parse balance %q: %w", raw, err)
	}
	if amount.IsNegative() {
		return 0, fmt.Errorf("oracle: negative balance %q", raw)
	}

	whole := amount.Shift(-decimals).Floor()
	if whole.GreaterThan(decimal.NewFromInt(math.MaxInt64)) {
		return math.MaxInt64, nil
	}
	return whole.IntPart(), nil
}

// Unconfigured fails every lookup, so joins fail closed when no oracle is set.
type Unconfigured struct{}

func (Unconfigured) Balance(context.Context, string) (int64, error) {
	return 0, ErrNotConfigured
}
