package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/mskaar/rain-alert-bot/internal/cache"
	"github.com/mskaar/rain-alert-bot/internal/circuitbreaker"
	"github.com/mskaar/rain-alert-bot/internal/met"
	"github.com/mskaar/rain-alert-bot/internal/models"
	"github.com/mskaar/rain-alert-bot/internal/observability"
)

// ForecastClient is the fetch port: it returns a complete, parsed forecast
// document for a location. The evaluation layer never does I/O itself.
type ForecastClient interface {
	GetCompleteForecast(ctx context.Context, coords models.Coordinates) (*met.Document, error)
}

var (
	// ErrMissingUserAgent is returned at construction when no identifying
	// User-Agent is configured. api.met.no rejects anonymous clients.
	ErrMissingUserAgent = errors.New("user agent identification is required")
	// ErrForbidden is returned when the upstream rejects our identification.
	ErrForbidden = errors.New("request forbidden by upstream")
	// ErrRateLimited is returned on upstream 429 responses.
	ErrRateLimited = errors.New("rate limited by upstream")
	// ErrUpstreamFailure is returned on upstream 5xx responses and transport errors.
	ErrUpstreamFailure = errors.New("upstream failure")
)

// The provider updates forecasts roughly hourly; used when no Expires
// header is present.
const defaultFreshness = time.Hour

// LocationforecastClient fetches locationforecast/2.0 "complete" documents,
// with bounded retries, outbound rate limiting, a circuit breaker, and a
// document cache honoring the provider's Expires header.
type LocationforecastClient struct {
	apiURL         string
	userAgent      string
	timeout        time.Duration
	client         *http.Client
	retryAttempts  int
	retryBaseDelay time.Duration
	retryMaxDelay  time.Duration
	limiter        *rate.Limiter
	breaker        *circuitbreaker.CircuitBreaker
	cache          cache.Cache
	staleMaxAge    time.Duration
	logger         *zap.Logger
}

// Options configures a LocationforecastClient beyond its required fields.
// Nil or zero values disable the corresponding feature.
type Options struct {
	RetryAttempts  int
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration
	// Limiter throttles outbound calls; api.met.no asks clients to be polite.
	Limiter *rate.Limiter
	// Breaker fails calls fast while the upstream is known bad.
	Breaker *circuitbreaker.CircuitBreaker
	// Cache stores raw documents between evaluations. StaleMaxAge bounds how
	// old an expired document may be and still be served when the upstream
	// is down.
	Cache       cache.Cache
	StaleMaxAge time.Duration
}

// NewLocationforecastClient creates a client for the given endpoint. The
// userAgent must identify the application, e.g.
// "rain-alert-bot/1.0 ops@example.org"; the provider returns 403 without it.
func NewLocationforecastClient(apiURL, userAgent string, timeout time.Duration, opts Options, logger *zap.Logger) (*LocationforecastClient, error) {
	if strings.TrimSpace(userAgent) == "" {
		return nil, ErrMissingUserAgent
	}
	if opts.RetryAttempts <= 0 {
		opts.RetryAttempts = 3
	}
	if opts.RetryBaseDelay <= 0 {
		opts.RetryBaseDelay = 100 * time.Millisecond
	}
	if opts.RetryMaxDelay <= 0 {
		opts.RetryMaxDelay = 2 * time.Second
	}
	return &LocationforecastClient{
		apiURL:         apiURL,
		userAgent:      userAgent,
		timeout:        timeout,
		client:         &http.Client{Timeout: timeout},
		retryAttempts:  opts.RetryAttempts,
		retryBaseDelay: opts.RetryBaseDelay,
		retryMaxDelay:  opts.RetryMaxDelay,
		limiter:        opts.Limiter,
		breaker:        opts.Breaker,
		cache:          opts.Cache,
		staleMaxAge:    opts.StaleMaxAge,
		logger:         logger,
	}, nil
}

// GetCompleteForecast returns the parsed forecast for coords. A fresh cached
// document is served without touching the upstream; when the upstream fails,
// an expired document within the stale window is served instead.
func (c *LocationforecastClient) GetCompleteForecast(ctx context.Context, coords models.Coordinates) (*met.Document, error) {
	key := coords.Key()

	if c.cache != nil {
		entry, ok, err := c.cache.Get(ctx, key)
		if err != nil {
			c.logger.Warn("document cache get failed", zap.String("location", key), zap.Error(err))
		} else if ok {
			doc, parseErr := met.Parse(entry.Body)
			if parseErr == nil {
				observability.DocumentCacheHitsTotal.Inc()
				c.logger.Debug("document cache hit", zap.String("location", key))
				return doc, nil
			}
			// A cached body that no longer parses is treated as a miss.
			c.logger.Warn("cached document malformed, refetching", zap.String("location", key), zap.Error(parseErr))
		}
	}

	body, fetchedAt, expiresAt, err := c.fetchWithRetry(ctx, coords)
	if err != nil {
		if c.cache != nil && c.staleMaxAge > 0 {
			entry, ok, staleErr := c.cache.GetStale(ctx, key, c.staleMaxAge)
			if staleErr == nil && ok {
				if doc, parseErr := met.Parse(entry.Body); parseErr == nil {
					observability.StaleDocumentServesTotal.Inc()
					c.logger.Info("serving stale forecast document",
						zap.String("location", key),
						zap.Duration("age", time.Since(entry.FetchedAt)))
					return doc, nil
				}
			}
		}
		return nil, fmt.Errorf("fetch forecast for %s: %w", key, err)
	}

	doc, err := met.Parse(body)
	if err != nil {
		observability.ParseFailuresTotal.Inc()
		return nil, err
	}

	if c.cache != nil {
		entry := cache.Entry{Body: body, FetchedAt: fetchedAt, ExpiresAt: expiresAt}
		if setErr := c.cache.Set(ctx, key, entry); setErr != nil {
			c.logger.Warn("document cache set failed", zap.String("location", key), zap.Error(setErr))
		}
	}
	return doc, nil
}

// fetchWithRetry performs the HTTP fetch with bounded retries. Every attempt
// goes through the breaker so a known-bad upstream fails fast.
func (c *LocationforecastClient) fetchWithRetry(ctx context.Context, coords models.Coordinates) (body []byte, fetchedAt, expiresAt time.Time, err error) {
	var lastErr error
	for attempt := 0; attempt < c.retryAttempts; attempt++ {
		if attempt > 0 {
			observability.ForecastRetriesTotal.Inc()
			delay := c.calculateBackoff(attempt)
			select {
			case <-ctx.Done():
				return nil, time.Time{}, time.Time{}, ctx.Err()
			case <-time.After(delay):
			}
		}

		call := func() error {
			var callErr error
			body, fetchedAt, expiresAt, callErr = c.callAPI(ctx, coords)
			return callErr
		}
		if c.breaker != nil {
			err = c.breaker.Call(call)
		} else {
			err = call()
		}
		if err == nil {
			return body, fetchedAt, expiresAt, nil
		}

		lastErr = err
		if !isRetryable(err) {
			return nil, time.Time{}, time.Time{}, err
		}
	}
	return nil, time.Time{}, time.Time{}, fmt.Errorf("exhausted retries: %w", lastErr)
}

func (c *LocationforecastClient) callAPI(ctx context.Context, coords models.Coordinates) ([]byte, time.Time, time.Time, error) {
	start := time.Now()

	reqCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		reqCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(reqCtx); err != nil {
			return nil, time.Time{}, time.Time{}, fmt.Errorf("rate limiter: %w", err)
		}
	}

	req, err := c.buildRequest(reqCtx, coords)
	if err != nil {
		observability.ForecastFetchesTotal.WithLabelValues("error").Inc()
		return nil, time.Time{}, time.Time{}, fmt.Errorf("build request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		duration := time.Since(start).Seconds()
		observability.ForecastFetchesTotal.WithLabelValues("error").Inc()
		observability.ForecastFetchDuration.WithLabelValues("error").Observe(duration)
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return nil, time.Time{}, time.Time{}, fmt.Errorf("request timeout: %w", err)
		}
		return nil, time.Time{}, time.Time{}, fmt.Errorf("%w: %v", ErrUpstreamFailure, err)
	}
	defer resp.Body.Close()

	duration := time.Since(start).Seconds()
	status := statusLabel(resp.StatusCode)
	observability.ForecastFetchesTotal.WithLabelValues(status).Inc()
	observability.ForecastFetchDuration.WithLabelValues(status).Observe(duration)

	if err := handleErrorResponse(resp); err != nil {
		return nil, time.Time{}, time.Time{}, err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, time.Time{}, time.Time{}, fmt.Errorf("read response body: %w", err)
	}

	fetchedAt := time.Now()
	return body, fetchedAt, expiryFromHeader(resp.Header, fetchedAt), nil
}

// expiryFromHeader derives document freshness from the response's Expires
// header, falling back to the provider's typical update cadence.
func expiryFromHeader(h http.Header, fetchedAt time.Time) time.Time {
	if v := h.Get("Expires"); v != "" {
		if t, err := http.ParseTime(v); err == nil && t.After(fetchedAt) {
			return t
		}
	}
	return fetchedAt.Add(defaultFreshness)
}

func (c *LocationforecastClient) buildRequest(ctx context.Context, coords models.Coordinates) (*http.Request, error) {
	baseURL, err := url.Parse(c.apiURL)
	if err != nil {
		return nil, fmt.Errorf("invalid API URL: %w", err)
	}

	// The provider wants at most four decimals; more defeats their cache.
	params := url.Values{}
	params.Set("lat", fmt.Sprintf("%.4f", coords.Lat))
	params.Set("lon", fmt.Sprintf("%.4f", coords.Lon))
	baseURL.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, "GET", baseURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	return req, nil
}

func handleErrorResponse(resp *http.Response) error {
	switch resp.StatusCode {
	case http.StatusForbidden:
		return fmt.Errorf("%w: User-Agent rejected", ErrForbidden)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w", ErrRateLimited)
	case http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return fmt.Errorf("%w: HTTP %d", ErrUpstreamFailure, resp.StatusCode)
	}

	// 203 means the product version is deprecated but still served.
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: HTTP %d", ErrUpstreamFailure, resp.StatusCode)
	}
	return nil
}

func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, circuitbreaker.ErrOpen) || errors.Is(err, ErrForbidden) {
		return false
	}
	if errors.Is(err, ErrRateLimited) || errors.Is(err, ErrUpstreamFailure) {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "context deadline exceeded")
}

func (c *LocationforecastClient) calculateBackoff(attempt int) time.Duration {
	delay := float64(c.retryBaseDelay) * math.Pow(2, float64(attempt-1))
	if delay > float64(c.retryMaxDelay) {
		delay = float64(c.retryMaxDelay)
	}
	jitter := delay * 0.1 * rand.Float64()
	return time.Duration(delay + jitter)
}

func statusLabel(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return "success"
	case statusCode == http.StatusTooManyRequests:
		return "rate_limited"
	case statusCode >= 400 && statusCode < 500:
		return "client_error"
	case statusCode >= 500:
		return "server_error"
	default:
		return "error"
	}
}
