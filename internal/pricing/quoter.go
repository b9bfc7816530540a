package pricing

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bytedance/sonic"
)

const (
	DefaultBaseURL      = "https://api.polygon.io"
	DefaultQuoteTimeout = 5 * time.Second
)

// Quoter is the live market-data feed.
type Quoter interface {
	Quote(ctx context.Context, symbol string) (float64, error)
}

type QuoterConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// HTTPQuoter reads the previous-day close from a Polygon-compatible REST API.
type HTTPQuoter struct {
	http    *http.Client
	baseURL string
	apiKey  string
}

func NewHTTPQuoter(cfg QuoterConfig) *HTTPQuoter {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultQuoteTimeout
	}
	return &HTTPQuoter{
		http:    &http.Client{Timeout: cfg.Timeout},
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
	}
}

type prevCloseResponse struct {
	Status       string `json:"status"`
	ResultsCount int    `json:"resultsCount"`
	Error        string `json:"error"`
	Results      []struct {
		Ticker string  `json:"T"`
		Close  float64 `json:"c"`
	} `json:"results"`
}

func (q *HTTPQuoter) Quote(ctx context.Context, symbol string) (float64, error) {
	params := url.Values{}
	params.Set("adjusted", "true")
	params.Set("apiKey", q.apiKey)
	endpoint := fmt.Sprintf("%s/v2/aggs/ticker/%s/prev?%s",
		q.baseURL, url.PathEscape(strings.ToUpper(symbol)), params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}

	resp, err := q.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	rb, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode/100 != 2 {
		return 0, fmt.Errorf("http %d: %s", resp.StatusCode, string(rb))
	}

	var payload prevCloseResponse
	if err := sonic.Unmarshal(rb, &payload); err != nil {
		return 0, fmt.Errorf("decode: %w", err)
	}
	if payload.Status != "OK" && payload.Status != "DELAYED" {
		return 0, fmt.Errorf("quote error: status=%s msg=%s", payload.Status, payload.Error)
	}
	if len(payload.Results) == 0 {
		return 0, fmt.Errorf("symbol %s not found", symbol)
	}

	px := payload.Results[0].Close
	if px <= 0 {
		return 0, fmt.Errorf("close <= 0: %.10f", px)
	}
	return px, nil
}
