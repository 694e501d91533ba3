package payout

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
	defaultTimeout           = 20 * time.Second
	errorBodyReadLimit int64 = 1024
)

var errBaseURLRequired = errors.New("payout base url is required")

// Client wraps the banking partner used for KRW transfers to farm accounts.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
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

// NewClient builds the payout client from configuration.
func NewClient(cfg config.PayoutConfig, opts ...Option) (*Client, error) {
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		return nil, errBaseURLRequired
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	client := &Client{
		baseURL:    baseURL,
		apiKey:     strings.TrimSpace(cfg.APIKey),
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client, nil
}

// TransferRequest describes a KRW payout to a farm's registered account.
// ReferenceKey doubles as the partner-side idempotency key, so retried
// settlements reuse the original transfer instead of double-paying.
type TransferRequest struct {
	BankAccountRef string
	AmountKRW      decimal.Decimal
	ReferenceKey   string
	Memo           string
}

// TransferResult carries the partner transaction reference.
type TransferResult struct {
	TxRef string `json:"tx_ref"`
}

// Transfer initiates the KRW payout.
func (c *Client) Transfer(ctx context.Context, req TransferRequest) (*TransferResult, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "payout client not configured")
	}
	if strings.TrimSpace(req.BankAccountRef) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "bank account reference is required")
	}
	if strings.TrimSpace(req.ReferenceKey) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "transfer reference key is required")
	}
	if req.AmountKRW.Sign() <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "transfer amount must be positive")
	}

	payload, err := json.Marshal(map[string]string{
		"bank_account_ref": req.BankAccountRef,
		"amount_krw":       req.AmountKRW.String(),
		"reference_key":    req.ReferenceKey,
		"memo":             req.Memo,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "marshal transfer request")
	}

	url := strings.TrimRight(c.baseURL, "/") + "/v1/transfers"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build transfer request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Idempotency-Key", req.ReferenceKey)
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, pkgerrors.WrapTimeoutAware(err, "execute transfer request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyReadLimit))
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))), "transfer request failed")
	}

	var result TransferResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode transfer response")
	}
	if strings.TrimSpace(result.TxRef) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "transfer response missing tx_ref")
	}
	return &result, nil
}
