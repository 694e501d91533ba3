package exif

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/marondal/donation-engine/pkg/config"
	pkgerrors "github.com/marondal/donation-engine/pkg/errors"
)

const (
	defaultTimeout           = 10 * time.Second
	errorBodyReadLimit int64 = 1024
)

var errBaseURLRequired = errors.New("exif base url is required")

// Client wraps the media service endpoint that reads EXIF blocks out of
// stored images. Provenance fields come back nil when the image carries no
// usable metadata; callers decide what missing fields mean.
type Client struct {
	httpClient *http.Client
	baseURL    string
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

// NewClient builds the EXIF inspection client from configuration.
func NewClient(cfg config.ExifConfig, opts ...Option) (*Client, error) {
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
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client, nil
}

// Provenance is the capture metadata read from the image.
type Provenance struct {
	TakenAt   *time.Time `json:"taken_at"`
	Latitude  *float64   `json:"latitude"`
	Longitude *float64   `json:"longitude"`
}

// HasLocation reports whether both GPS coordinates are present.
func (p *Provenance) HasLocation() bool {
	return p != nil && p.Latitude != nil && p.Longitude != nil
}

// Inspect reads capture metadata for the stored image.
func (c *Client) Inspect(ctx context.Context, imageRef string) (*Provenance, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "exif client not configured")
	}
	trimmed := strings.TrimSpace(imageRef)
	if trimmed == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "image reference is required")
	}

	endpoint := strings.TrimRight(c.baseURL, "/") + "/v1/images/" + url.PathEscape(trimmed) + "/exif"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build exif request")
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, pkgerrors.WrapTimeoutAware(err, "execute exif request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "image not found")
	}
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyReadLimit))
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))), "exif request failed")
	}

	var provenance Provenance
	if err := json.NewDecoder(resp.Body).Decode(&provenance); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode exif response")
	}
	return &provenance, nil
}
