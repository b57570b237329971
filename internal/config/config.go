package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mskaar/rain-alert-bot/internal/models"
	"github.com/mskaar/rain-alert-bot/internal/validation"
)

// Config holds bot configuration loaded from YAML and env. There are no
// process-wide mutable settings; everything is threaded through constructors
// from here.
type Config struct {
	// Coordinates the bot watches.
	Coordinates models.Coordinates
	// Location is the timezone alerts and day boundaries are expressed in.
	Location     *time.Location
	TimeZoneName string

	// NotifyTime is the local wall-clock time ("HH:MM" or "HH:MM:SS") of the
	// daily rain check.
	NotifyTime string

	// Policy selects the rainy-hour strictness.
	Policy models.RainPolicy

	WebhookURL      string
	WebhookUsername string
	WebhookTimeout  time.Duration

	ForecastAPIURL  string
	UserAgent       string
	ForecastTimeout time.Duration

	RetryAttempts  int
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration

	// Outbound politeness limit toward the forecast provider.
	UpstreamRateLimitPerSec float64
	UpstreamRateLimitBurst  int

	BreakerEnabled          bool
	BreakerFailureThreshold int
	BreakerSuccessThreshold int
	BreakerCooldown         time.Duration

	CacheBackend          string // "in_memory" or "memcached"
	CacheStaleMaxAge      time.Duration
	CacheRetention        time.Duration
	MemcachedAddrs        string
	MemcachedTimeout      time.Duration
	MemcachedMaxIdleConns int

	OpsPort         string
	CycleTimeout    time.Duration
	ShutdownTimeout time.Duration
}

type fileConfig struct {
	Location struct {
		Lat      *float64 `yaml:"lat"`
		Lon      *float64 `yaml:"lon"`
		TimeZone string   `yaml:"time_zone"`
	} `yaml:"location"`

	Notify struct {
		Time     string `yaml:"time"`
		Policy   string `yaml:"policy"`
		Username string `yaml:"username"`
		Timeout  string `yaml:"timeout"`
	} `yaml:"notify"`

	ForecastAPI struct {
		URL       string `yaml:"url"`
		UserAgent string `yaml:"user_agent"`
		Timeout   string `yaml:"timeout"`
	} `yaml:"forecast_api"`

	Reliability struct {
		RetryMaxAttempts        int     `yaml:"retry_max_attempts"`
		RetryBaseDelay          string  `yaml:"retry_base_delay"`
		RetryMaxDelay           string  `yaml:"retry_max_delay"`
		RateLimitPerSec         float64 `yaml:"rate_limit_per_sec"`
		RateLimitBurst          int     `yaml:"rate_limit_burst"`
		BreakerEnabled          *bool   `yaml:"breaker_enabled"`
		BreakerFailureThreshold int     `yaml:"breaker_failure_threshold"`
		BreakerSuccessThreshold int     `yaml:"breaker_success_threshold"`
		BreakerCooldown         string  `yaml:"breaker_cooldown"`
	} `yaml:"reliability"`

	Cache struct {
		Backend     string `yaml:"backend"`
		StaleMaxAge string `yaml:"stale_max_age"`
		Retention   string `yaml:"retention"`
		Memcached   struct {
			Addrs        string `yaml:"addrs"`
			Timeout      string `yaml:"timeout"`
			MaxIdleConns int    `yaml:"max_idle_conns"`
		} `yaml:"memcached"`
	} `yaml:"cache"`

	Ops struct {
		Port            string `yaml:"port"`
		CycleTimeout    string `yaml:"cycle_timeout"`
		ShutdownTimeout string `yaml:"shutdown_timeout"`
	} `yaml:"ops"`
}

type secretsFile struct {
	WebhookURL string `yaml:"webhook_url"`
}

// Load reads configuration from config/{ENV_NAME}.yaml (default dev) plus
// config/secrets.yaml. The webhook URL comes from WEBHOOK_URL env or the
// secrets file; LAT, LON, TIME_ZONE and NOTIFY_TIME env vars override the
// file. Call from project root.
func Load() (*Config, error) {
	env := os.Getenv("ENV_NAME")
	if env == "" {
		env = "dev"
	}

	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("config: get working directory: %w", err)
	}
	configPath := filepath.Join(cwd, "config", env+".yaml")
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", configPath)
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	cfg := &Config{}

	lat, err := floatValue("LAT", fc.Location.Lat)
	if err != nil {
		return nil, err
	}
	lon, err := floatValue("LON", fc.Location.Lon)
	if err != nil {
		return nil, err
	}
	cfg.Coordinates = models.Coordinates{Lat: lat, Lon: lon}

	cfg.TimeZoneName = stringValue("TIME_ZONE", fc.Location.TimeZone)
	if cfg.TimeZoneName == "" {
		cfg.TimeZoneName = "UTC"
	}
	cfg.Location, err = time.LoadLocation(cfg.TimeZoneName)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", cfg.TimeZoneName, err)
	}

	cfg.NotifyTime = stringValue("NOTIFY_TIME", fc.Notify.Time)
	if cfg.NotifyTime == "" {
		cfg.NotifyTime = "17:00"
	}

	cfg.Policy, err = models.ParseRainPolicy(stringValue("RAIN_POLICY", fc.Notify.Policy))
	if err != nil {
		return nil, err
	}

	cfg.WebhookURL = os.Getenv("WEBHOOK_URL")
	if cfg.WebhookURL == "" {
		secretsPath := filepath.Join(cwd, "config", "secrets.yaml")
		secretsData, err := os.ReadFile(secretsPath)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("read secrets file: %w", err)
			}
		} else {
			var sec secretsFile
			if err := yaml.Unmarshal(secretsData, &sec); err != nil {
				return nil, fmt.Errorf("parse secrets file: %w", err)
			}
			cfg.WebhookURL = sec.WebhookURL
		}
	}
	if cfg.WebhookURL == "" {
		return nil, fmt.Errorf("WEBHOOK_URL required (set env or config/secrets.yaml webhook_url)")
	}
	cfg.WebhookUsername = fc.Notify.Username
	cfg.WebhookTimeout = parseDuration(fc.Notify.Timeout, 10*time.Second)

	cfg.ForecastAPIURL = fc.ForecastAPI.URL
	if cfg.ForecastAPIURL == "" {
		cfg.ForecastAPIURL = "https://api.met.no/weatherapi/locationforecast/2.0/complete"
	}
	cfg.UserAgent = stringValue("USER_AGENT", fc.ForecastAPI.UserAgent)
	if cfg.UserAgent == "" {
		return nil, fmt.Errorf("USER_AGENT required: api.met.no rejects unidentified clients")
	}
	cfg.ForecastTimeout = parseDuration(fc.ForecastAPI.Timeout, 10*time.Second)

	cfg.RetryAttempts = fc.Reliability.RetryMaxAttempts
	if cfg.RetryAttempts <= 0 {
		cfg.RetryAttempts = 3
	}
	cfg.RetryBaseDelay = parseDuration(fc.Reliability.RetryBaseDelay, 500*time.Millisecond)
	cfg.RetryMaxDelay = parseDuration(fc.Reliability.RetryMaxDelay, 10*time.Second)

	cfg.UpstreamRateLimitPerSec = fc.Reliability.RateLimitPerSec
	if cfg.UpstreamRateLimitPerSec <= 0 {
		cfg.UpstreamRateLimitPerSec = 1
	}
	cfg.UpstreamRateLimitBurst = fc.Reliability.RateLimitBurst
	if cfg.UpstreamRateLimitBurst <= 0 {
		cfg.UpstreamRateLimitBurst = 2
	}

	cfg.BreakerEnabled = true
	if fc.Reliability.BreakerEnabled != nil {
		cfg.BreakerEnabled = *fc.Reliability.BreakerEnabled
	}
	cfg.BreakerFailureThreshold = fc.Reliability.BreakerFailureThreshold
	if cfg.BreakerFailureThreshold <= 0 {
		cfg.BreakerFailureThreshold = 5
	}
	cfg.BreakerSuccessThreshold = fc.Reliability.BreakerSuccessThreshold
	if cfg.BreakerSuccessThreshold <= 0 {
		cfg.BreakerSuccessThreshold = 2
	}
	cfg.BreakerCooldown = parseDuration(fc.Reliability.BreakerCooldown, 5*time.Minute)

	cfg.CacheBackend = stringValue("CACHE_BACKEND", fc.Cache.Backend)
	cfg.CacheBackend = strings.ToLower(cfg.CacheBackend)
	if cfg.CacheBackend == "" {
		cfg.CacheBackend = "in_memory"
	}
	cfg.CacheStaleMaxAge = parseDuration(fc.Cache.StaleMaxAge, 6*time.Hour)
	cfg.CacheRetention = parseDuration(fc.Cache.Retention, 24*time.Hour)
	cfg.MemcachedAddrs = stringValue("MEMCACHED_ADDRS", fc.Cache.Memcached.Addrs)
	if cfg.MemcachedAddrs == "" {
		cfg.MemcachedAddrs = "localhost:11211"
	}
	cfg.MemcachedTimeout = parseDuration(fc.Cache.Memcached.Timeout, 500*time.Millisecond)
	cfg.MemcachedMaxIdleConns = fc.Cache.Memcached.MaxIdleConns
	if cfg.MemcachedMaxIdleConns <= 0 {
		cfg.MemcachedMaxIdleConns = 2
	}

	cfg.OpsPort = fc.Ops.Port
	if cfg.OpsPort == "" {
		cfg.OpsPort = "8080"
	}
	cfg.CycleTimeout = parseDuration(fc.Ops.CycleTimeout, 2*time.Minute)
	cfg.ShutdownTimeout = parseDuration(fc.Ops.ShutdownTimeout, 15*time.Second)

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// stringValue prefers the env var over the file value.
func stringValue(envKey, fileVal string) string {
	if v := strings.TrimSpace(os.Getenv(envKey)); v != "" {
		return v
	}
	return strings.TrimSpace(fileVal)
}

// floatValue requires the value from env or file; there is no sensible
// default for a coordinate.
func floatValue(envKey string, fileVal *float64) (float64, error) {
	if v := strings.TrimSpace(os.Getenv(envKey)); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %w", envKey, err)
		}
		return f, nil
	}
	if fileVal != nil {
		return *fileVal, nil
	}
	return 0, fmt.Errorf("%s required (set env or config file)", envKey)
}

// parseDuration parses a duration string and returns defaultVal if the
// string is empty, unparseable, or non-positive.
func parseDuration(s string, defaultVal time.Duration) time.Duration {
	s = strings.TrimSpace(s)
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return defaultVal
	}
	return d
}

func validate(cfg *Config) error {
	if err := validation.ValidateCoordinates(cfg.Coordinates.Lat, cfg.Coordinates.Lon); err != nil {
		return err
	}
	if err := validation.ValidateWebhookURL(cfg.WebhookURL); err != nil {
		return err
	}
	switch cfg.CacheBackend {
	case "in_memory", "memcached":
	default:
		return fmt.Errorf("cache.backend must be in_memory or memcached, got %q", cfg.CacheBackend)
	}
	return nil
}
