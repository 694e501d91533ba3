package oracle

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
	"github.com/marondal/donation-engine/pkg/enums"
	pkgerrors "github.com/marondal/donation-engine/pkg/errors"
	"github.com/marondal/donation-engine/pkg/jsonx"
)

const (
	defaultTimeout           = 45 * time.Second
	errorBodyReadLimit int64 = 1024
)

var errBaseURLRequired = errors.New("oracle base url is required")

// Client wraps the generative eligibility oracle. The backend returns
// free-form completions, so verdict parsing is deliberately tolerant of
// fences, prose and Korean verdict labels.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	model      string
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

// NewClient builds the oracle client from configuration.
func NewClient(cfg config.OracleConfig, opts ...Option) (*Client, error) {
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
		model:      cfg.Model,
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client, nil
}

// AssessmentRequest carries the extracted receipt facts the oracle judges.
type AssessmentRequest struct {
	Category              enums.ExpenseCategory
	StoreName             string
	StoreAddress          string
	LineItems             []AssessmentLineItem
	ClaimedAmount         string
	CertificationImageRef string
}

// AssessmentLineItem is one extracted purchase line.
type AssessmentLineItem struct {
	Name       string `json:"name"`
	Quantity   int    `json:"quantity"`
	TotalPrice string `json:"total_price"`
}

// Verdict is the oracle's eligibility decision.
type Verdict struct {
	Result       enums.VerdictResult
	Reason       string
	MatchedItems []string
}

// Assess asks the oracle whether the receipt's purchases qualify under the
// claimed expense category.
func (c *Client) Assess(ctx context.Context, req AssessmentRequest) (*Verdict, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "oracle client not configured")
	}
	if !req.Category.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "assessment category is required")
	}

	payload, err := json.Marshal(map[string]any{
		"model": c.model,
		"input": map[string]any{
			"category":                req.Category,
			"store_name":              req.StoreName,
			"store_address":           req.StoreAddress,
			"line_items":              req.LineItems,
			"claimed_amount":          req.ClaimedAmount,
			"certification_image_ref": req.CertificationImageRef,
		},
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "marshal assessment request")
	}

	url := strings.TrimRight(c.baseURL, "/") + "/v1/assessments"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build assessment request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, pkgerrors.WrapTimeoutAware(err, "execute assessment request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyReadLimit))
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))), "assessment request failed")
	}

	var apiResp struct {
		Output string `json:"output"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode assessment response")
	}

	return parseVerdict(apiResp.Output)
}

func parseVerdict(output string) (*Verdict, error) {
	var doc struct {
		Result       string   `json:"result"`
		Reason       string   `json:"reason"`
		MatchedItems []string `json:"matched_items"`
	}
	if err := jsonx.ExtractObject(output, &doc); err != nil {
		// Last resort: the model sometimes answers with just the verdict
		// label, no JSON at all.
		label := strings.Trim(strings.TrimSpace(output), `"`)
		result, parseErr := enums.ParseVerdictResult(label)
		if parseErr != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "parse assessment verdict")
		}
		return &Verdict{Result: result}, nil
	}

	result, err := enums.ParseVerdictResult(doc.Result)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "parse assessment verdict")
	}

	return &Verdict{
		Result:       result,
		Reason:       doc.Reason,
		MatchedItems: doc.MatchedItems,
	}, nil
}
