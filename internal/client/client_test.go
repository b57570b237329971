package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/mskaar/rain-alert-bot/internal/cache"
	"github.com/mskaar/rain-alert-bot/internal/models"
)

var testDocument = []byte(`{
	"type": "Feature",
	"geometry": {"type": "Point", "coordinates": [10.7522, 59.9139, 94]},
	"properties": {
		"meta": {"updated_at": "2026-08-29T06:00:00Z", "units": {"precipitation_amount": "mm"}},
		"timeseries": [
			{"time": "2026-08-29T12:00:00Z", "data": {
				"instant": {"details": {"air_temperature": 17.2}},
				"next_1_hours": {"summary": {"symbol_code": "lightrain"}, "details": {"precipitation_amount": 0.4}}
			}}
		]
	}
}`)

var testCoords = models.Coordinates{Lat: 59.9139, Lon: 10.7522}

func newTestClient(t *testing.T, url string, opts Options) *LocationforecastClient {
	t.Helper()
	if opts.RetryBaseDelay == 0 {
		opts.RetryBaseDelay = time.Millisecond
	}
	if opts.RetryMaxDelay == 0 {
		opts.RetryMaxDelay = 5 * time.Millisecond
	}
	c, err := NewLocationforecastClient(url, "rain-alert-bot/test test@example.org", 5*time.Second, opts, zap.NewNop())
	if err != nil {
		t.Fatalf("NewLocationforecastClient() error = %v", err)
	}
	return c
}

// TestNewLocationforecastClient_RequiresUserAgent verifies construction
// fails without identification.
func TestNewLocationforecastClient_RequiresUserAgent(t *testing.T) {
	for _, ua := range []string{"", "   "} {
		_, err := NewLocationforecastClient("http://example.org", ua, time.Second, Options{}, zap.NewNop())
		if !errors.Is(err, ErrMissingUserAgent) {
			t.Errorf("NewLocationforecastClient(ua=%q) error = %v, want ErrMissingUserAgent", ua, err)
		}
	}
}

// TestGetCompleteForecast_RequestShape verifies the outbound request carries
// the User-Agent, Accept header, and four-decimal coordinates.
func TestGetCompleteForecast_RequestShape(t *testing.T) {
	var gotUA, gotAccept, gotLat, gotLon string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotAccept = r.Header.Get("Accept")
		gotLat = r.URL.Query().Get("lat")
		gotLon = r.URL.Query().Get("lon")
		_, _ = w.Write(testDocument)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, Options{})
	doc, err := c.GetCompleteForecast(context.Background(), models.Coordinates{Lat: 59.91390001, Lon: 10.75219999})
	if err != nil {
		t.Fatalf("GetCompleteForecast() error = %v", err)
	}
	if doc.Series[0].Next1Hour.SymbolCode != "lightrain" {
		t.Errorf("parsed symbol = %q, want lightrain", doc.Series[0].Next1Hour.SymbolCode)
	}
	if gotUA != "rain-alert-bot/test test@example.org" {
		t.Errorf("User-Agent = %q", gotUA)
	}
	if gotAccept != "application/json" {
		t.Errorf("Accept = %q, want application/json", gotAccept)
	}
	if gotLat != "59.9139" || gotLon != "10.7522" {
		t.Errorf("lat,lon = %q,%q, want 59.9139,10.7522", gotLat, gotLon)
	}
}

// TestGetCompleteForecast_RetriesServerErrors verifies 5xx responses are
// retried until one succeeds.
func TestGetCompleteForecast_RetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write(testDocument)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, Options{RetryAttempts: 3})
	if _, err := c.GetCompleteForecast(context.Background(), testCoords); err != nil {
		t.Fatalf("GetCompleteForecast() error = %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Errorf("upstream calls = %d, want 3", got)
	}
}

// TestGetCompleteForecast_ExhaustedRetries verifies persistent 5xx surfaces
// as ErrUpstreamFailure after the attempt budget.
func TestGetCompleteForecast_ExhaustedRetries(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, Options{RetryAttempts: 3})
	_, err := c.GetCompleteForecast(context.Background(), testCoords)
	if !errors.Is(err, ErrUpstreamFailure) {
		t.Fatalf("GetCompleteForecast() error = %v, want ErrUpstreamFailure", err)
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Errorf("upstream calls = %d, want 3", got)
	}
}

// TestGetCompleteForecast_ForbiddenNotRetried verifies a 403 fails
// immediately; retrying a rejected User-Agent only burns quota.
func TestGetCompleteForecast_ForbiddenNotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, Options{RetryAttempts: 5})
	_, err := c.GetCompleteForecast(context.Background(), testCoords)
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("GetCompleteForecast() error = %v, want ErrForbidden", err)
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("upstream calls = %d, want 1", got)
	}
}

// TestGetCompleteForecast_Deprecated203Accepted verifies a 203 response is
// treated as success.
func TestGetCompleteForecast_Deprecated203Accepted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNonAuthoritativeInfo)
		_, _ = w.Write(testDocument)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, Options{})
	if _, err := c.GetCompleteForecast(context.Background(), testCoords); err != nil {
		t.Fatalf("GetCompleteForecast() error = %v", err)
	}
}

// TestGetCompleteForecast_CachesByExpiresHeader verifies a fresh cached
// document short-circuits the upstream call.
func TestGetCompleteForecast_CachesByExpiresHeader(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set("Expires", time.Now().Add(time.Hour).UTC().Format(http.TimeFormat))
		_, _ = w.Write(testDocument)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, Options{Cache: cache.NewInMemoryCache(24 * time.Hour)})
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if _, err := c.GetCompleteForecast(ctx, testCoords); err != nil {
			t.Fatalf("GetCompleteForecast() call %d error = %v", i, err)
		}
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("upstream calls = %d, want 1 (cache should absorb the rest)", got)
	}
}

// TestGetCompleteForecast_ServesStaleOnUpstreamFailure verifies an expired
// document within the stale window is served when the upstream is down.
func TestGetCompleteForecast_ServesStaleOnUpstreamFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	docCache := cache.NewInMemoryCache(24 * time.Hour)
	entry := cache.Entry{
		Body:      testDocument,
		FetchedAt: time.Now().Add(-2 * time.Hour),
		ExpiresAt: time.Now().Add(-time.Hour),
	}
	if err := docCache.Set(context.Background(), testCoords.Key(), entry); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	c := newTestClient(t, srv.URL, Options{
		RetryAttempts: 2,
		Cache:         docCache,
		StaleMaxAge:   6 * time.Hour,
	})
	doc, err := c.GetCompleteForecast(context.Background(), testCoords)
	if err != nil {
		t.Fatalf("GetCompleteForecast() error = %v, want stale document", err)
	}
	if doc.Series[0].Next1Hour.SymbolCode != "lightrain" {
		t.Errorf("stale document symbol = %q, want lightrain", doc.Series[0].Next1Hour.SymbolCode)
	}
}

// TestGetCompleteForecast_MalformedBody verifies a well-formed HTTP response
// with a broken document fails without being cached.
func TestGetCompleteForecast_MalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"type": "Feature"}`)
	}))
	defer srv.Close()

	docCache := cache.NewInMemoryCache(24 * time.Hour)
	c := newTestClient(t, srv.URL, Options{Cache: docCache})
	if _, err := c.GetCompleteForecast(context.Background(), testCoords); err == nil {
		t.Fatal("GetCompleteForecast() error = nil, want parse failure")
	}
	if _, ok, _ := docCache.Get(context.Background(), testCoords.Key()); ok {
		t.Error("malformed body was cached")
	}
}

// TestIsRetryable covers the retry classification.
func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"forbidden", ErrForbidden, false},
		{"rate limited", ErrRateLimited, true},
		{"upstream", fmt.Errorf("wrapped: %w", ErrUpstreamFailure), true},
		{"timeout text", errors.New("request timeout: context deadline exceeded"), true},
		{"other", errors.New("something else"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isRetryable(tt.err); got != tt.want {
				t.Errorf("isRetryable(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

// TestExpiryFromHeader verifies the Expires header wins when present and in
// the future, with the hourly default otherwise.
func TestExpiryFromHeader(t *testing.T) {
	fetchedAt := time.Now()

	t.Run("valid future header", func(t *testing.T) {
		want := fetchedAt.Add(30 * time.Minute).UTC().Truncate(time.Second)
		h := http.Header{}
		h.Set("Expires", want.Format(http.TimeFormat))
		if got := expiryFromHeader(h, fetchedAt); !got.Equal(want) {
			t.Errorf("expiryFromHeader() = %s, want %s", got, want)
		}
	})
	t.Run("past header falls back", func(t *testing.T) {
		h := http.Header{}
		h.Set("Expires", fetchedAt.Add(-time.Minute).UTC().Format(http.TimeFormat))
		if got := expiryFromHeader(h, fetchedAt); !got.Equal(fetchedAt.Add(defaultFreshness)) {
			t.Errorf("expiryFromHeader() = %s, want default freshness", got)
		}
	})
	t.Run("absent header falls back", func(t *testing.T) {
		if got := expiryFromHeader(http.Header{}, fetchedAt); !got.Equal(fetchedAt.Add(defaultFreshness)) {
			t.Errorf("expiryFromHeader() = %s, want default freshness", got)
		}
	})
}
