// Package fetch retrieves review pages from the scraping service.
package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/reviewpulse/reviewpulse/internal/model"
)

// Fetcher returns the current review page set for one organization.
// full asks for the complete history instead of only recent pages.
type Fetcher interface {
	FetchReviews(ctx context.Context, orgID string, full bool) (*model.ScrapeResult, error)
}

// Config tunes the HTTP fetcher.
type Config struct {
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int
	RetryDelay time.Duration
	// RequestsPerMinute throttles calls to the scraping service.
	// Zero disables throttling.
	RequestsPerMinute int
}

// HTTPFetcher calls the scraping service over HTTP with retries.
type HTTPFetcher struct {
	baseURL    string
	client     *http.Client
	maxRetries int
	retryDelay time.Duration
	limiter    *rate.Limiter
}

// NewHTTP builds a fetcher for the configured scraping endpoint.
func NewHTTP(cfg Config) (*HTTPFetcher, error) {
	if cfg.BaseURL == "" {
		return nil, eris.New("fetch: missing base URL")
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	retries := cfg.MaxRetries
	if retries == 0 {
		retries = 3
	}
	delay := cfg.RetryDelay
	if delay == 0 {
		delay = 2 * time.Second
	}
	var limiter *rate.Limiter
	if cfg.RequestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), 1)
	}
	return &HTTPFetcher{
		baseURL:    cfg.BaseURL,
		client:     &http.Client{Timeout: timeout},
		maxRetries: retries,
		retryDelay: delay,
		limiter:    limiter,
	}, nil
}

// FetchReviews requests one organization's reviews, retrying transient
// failures with linear backoff.
func (f *HTTPFetcher) FetchReviews(ctx context.Context, orgID string, full bool) (*model.ScrapeResult, error) {
	endpoint := fmt.Sprintf("%s/reviews?org=%s&full=%t", f.baseURL, url.QueryEscape(orgID), full)

	var lastErr error
	for attempt := 1; attempt <= f.maxRetries; attempt++ {
		if f.limiter != nil {
			if err := f.limiter.Wait(ctx); err != nil {
				return nil, eris.Wrap(err, "fetch: rate limiter")
			}
		}

		result, err := f.fetchOnce(ctx, endpoint)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if attempt < f.maxRetries {
			zap.S().Warnw("fetch attempt failed, retrying",
				"org", orgID, "attempt", attempt, "error", err)
			select {
			case <-ctx.Done():
				return nil, eris.Wrap(ctx.Err(), "fetch: canceled")
			case <-time.After(time.Duration(attempt) * f.retryDelay):
			}
		}
	}
	return nil, eris.Wrapf(lastErr, "fetch: reviews for %s after %d attempts", orgID, f.maxRetries)
}

func (f *HTTPFetcher) fetchOnce(ctx context.Context, endpoint string) (*model.ScrapeResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, eris.Wrap(err, "fetch: build request")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "fetch: request")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, eris.Errorf("fetch: status %d: %s", resp.StatusCode, string(body))
	}

	var result model.ScrapeResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, eris.Wrap(err, "fetch: decode response")
	}
	return &result, nil
}
