package ocr

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

	"github.com/marondal/donation-engine/pkg/config"
	pkgerrors "github.com/marondal/donation-engine/pkg/errors"
)

const (
	defaultTimeout             = 30 * time.Second
	errorBodyReadLimit   int64 = 1024
)

var errBaseURLRequired = errors.New("ocr base url is required")

// Client wraps the receipt OCR service used during verification.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	language   string
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

// NewClient builds the OCR client from configuration.
func NewClient(cfg config.OCRConfig, opts ...Option) (*Client, error) {
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
		language:   cfg.Language,
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client, nil
}

// LineItem is one purchased item extracted from the receipt image.
type LineItem struct {
	Name       string `json:"name"`
	Quantity   int    `json:"quantity"`
	UnitPrice  string `json:"unit_price"`
	TotalPrice string `json:"total_price"`
}

// ExtractedReceipt is the normalized OCR result. Monetary fields stay raw
// strings here; the verification pipeline owns the numeric parse.
type ExtractedReceipt struct {
	StoreName      string     `json:"store_name"`
	StoreAddress   string     `json:"store_address"`
	StorePhone     string     `json:"store_phone"`
	TotalAmount    string     `json:"total_amount"`
	LineItems      []LineItem `json:"line_items"`
	ApprovalNumber string     `json:"approval_number"`
	IssuedAt       *time.Time `json:"issued_at"`
}

// Extract runs OCR on the stored receipt image and returns the structured
// fields the service could read.
func (c *Client) Extract(ctx context.Context, imageRef string) (*ExtractedReceipt, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "ocr client not configured")
	}
	if strings.TrimSpace(imageRef) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "receipt image reference is required")
	}

	payload, err := json.Marshal(map[string]string{
		"image_ref": imageRef,
		"language":  c.language,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "marshal ocr request")
	}

	url := strings.TrimRight(c.baseURL, "/") + "/v1/receipts:extract"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build ocr request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, pkgerrors.WrapTimeoutAware(err, "execute ocr request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyReadLimit))
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))), "ocr request failed")
	}

	var extracted ExtractedReceipt
	if err := json.NewDecoder(resp.Body).Decode(&extracted); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode ocr response")
	}
	return &extracted, nil
}
