package chain

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/marondal/donation-engine/pkg/config"
	pkgerrors "github.com/marondal/donation-engine/pkg/errors"
)

const (
	defaultTimeout           = 30 * time.Second
	errorBodyReadLimit int64 = 1024
)

var errBaseURLRequired = errors.New("chain base url is required")

// Client wraps the token-chain gateway that burns settled MARON.
type Client struct {
	httpClient   *http.Client
	baseURL      string
	apiKey       string
	vaultAddress string
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// NewClient builds the chain client from configuration.
func NewClient(cfg config.ChainConfig, opts ...Option) (*Client, error) {
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		return nil, errBaseURLRequired
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	client := &Client{
		baseURL:      baseURL,
		apiKey:       strings.TrimSpace(cfg.APIKey),
		vaultAddress: strings.TrimSpace(cfg.VaultAddress),
		httpClient:   &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client, nil
}

// BurnRequest describes a token burn from a vault address. ReferenceKey is
// the gateway-side idempotency key so a retried burn resolves to the
// original transaction.
type BurnRequest struct {
	VaultAddress string
	TokenAmount  decimal.Decimal
	ReferenceKey string
}

// BurnResult carries the on-chain transaction hash.
type BurnResult struct {
	TxHash string `json:"tx_hash"`
}

// Burn destroys the settled token amount on chain.
func (c *Client) Burn(ctx context.Context, req BurnRequest) (*BurnResult, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "chain client not configured")
	}
	vault := strings.TrimSpace(req.VaultAddress)
	if vault == "" {
		vault = c.vaultAddress
	}
	if vault == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "vault address is required")
	}
	if strings.TrimSpace(req.ReferenceKey) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "burn reference key is required")
	}
	if req.TokenAmount.Sign() <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "burn amount must be positive")
	}

	payload, err := json.Marshal(map[string]string{
		"vault_address": vault,
		"token_amount":  req.TokenAmount.String(),
		"reference_key": req.ReferenceKey,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "marshal burn request")
	}

	url := strings.TrimRight(c.baseURL, "/") + "/v1/burns"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build burn request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Idempotency-Key", req.ReferenceKey)
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, pkgerrors.WrapTimeoutAware(err, "execute burn request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyReadLimit))
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))), "burn request failed")
	}

	var result BurnResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode burn response")
	}
	if strings.TrimSpace(result.TxHash) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "burn response missing tx_hash")
	}
	return &result, nil
}
