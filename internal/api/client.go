package api

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// maxBodyBytes bounds a single snapshot response.
const maxBodyBytes = 32 << 20

// Client interface for testability
type Client interface {
	GetSnapshot(ctx context.Context, ticker, aggregation string) ([]byte, error)
}

type HTTPClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	limiter    *rate.Limiter
	logger     *zap.Logger
}

func NewClient(baseURL, apiKey string, ratePerSec int, timeout time.Duration, logger *zap.Logger) *HTTPClient {
	transport := &http.Transport{
		MaxIdleConns:       10,
		MaxConnsPerHost:    4,
		IdleConnTimeout:    90 * time.Second,
		DisableCompression: false,
	}

	if ratePerSec < 1 {
		ratePerSec = 1
	}

	return &HTTPClient{
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   timeout,
		},
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
		limiter: rate.NewLimiter(rate.Limit(ratePerSec), ratePerSec*2),
		logger:  logger,
	}
}

// GetSnapshot fetches the classic GEX payload for ticker. It makes exactly one
// attempt; callers treat any error as "snapshot unavailable".
func (c *HTTPClient) GetSnapshot(ctx context.Context, ticker, aggregation string) ([]byte, error) {
	// Wait for rate limiter
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	endpoint := fmt.Sprintf("%s/%s/classic/%s?key=%s",
		c.baseURL, url.PathEscape(ticker), url.PathEscape(aggregation), url.QueryEscape(c.apiKey))
	c.logger.Debug("requesting", zap.String("url", MaskKey(endpoint)))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// url.Error embeds the full URL, key included.
		return nil, fmt.Errorf("executing request for %s: %s", ticker, MaskKey(err.Error()))
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		return body, nil
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrNotFound
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, ErrAuthFailed
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, ErrRateLimited
	default:
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, truncate(string(body), 200))
	}
}

// MaskKey masks the value of a "key" query parameter wherever it appears in s.
func MaskKey(s string) string {
	const marker = "key="
	var sb strings.Builder
	for {
		i := strings.Index(s, marker)
		if i < 0 {
			sb.WriteString(s)
			return sb.String()
		}
		start := i + len(marker)
		end := start
		for end < len(s) && s[end] != '&' && s[end] != '"' && s[end] != ' ' {
			end++
		}
		sb.WriteString(s[:start])
		if key := s[start:end]; len(key) > 4 {
			sb.WriteString(key[:4] + "****")
		} else {
			sb.WriteString(key)
		}
		s = s[end:]
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
