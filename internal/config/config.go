package config

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/FranksOps/powder/internal/fingerprint"
)

// EnvPrefix namespaces environment variables, e.g. POWDER_HTTP_ADDR.
const EnvPrefix = "POWDER"

// Keys shared by flags, environment variables and config files.
const (
	KeyHTTPAddr          = "http-addr"
	KeyLogLevel          = "log-level"
	KeyLogFormat         = "log-format"
	KeyFetchTimeout      = "fetch-timeout"
	KeyMaxRedirects      = "max-redirects"
	KeyFingerprint       = "fingerprint"
	KeyUserAgents        = "user-agents"
	KeyRequestsPerSecond = "rps"
	KeyBurst             = "burst"
	KeyRespectRobots     = "respect-robots"
	KeyAllowedHosts      = "allowed-hosts"
	KeyProxies           = "proxies"
	KeyProxyCooldown     = "proxy-cooldown"
	KeyStorageBackend    = "storage-backend"
	KeyStorageDSN        = "storage-dsn"
	KeyWarmSitemap       = "warm-sitemap"
	KeyWarmPattern       = "warm-pattern"
	KeyWarmConcurrency   = "warm-concurrency"
	KeyShutdownTimeout   = "shutdown-timeout"
)

// Storage backends.
const (
	StorageNone     = "none"
	StorageSQLite   = "sqlite"
	StoragePostgres = "postgres"
	StorageJSON     = "json"
)

// Config holds all service settings.
type Config struct {
	HTTPAddr  string
	LogLevel  string
	LogFormat string

	FetchTimeout      time.Duration
	MaxRedirects      int
	Fingerprint       fingerprint.Profile
	UserAgents        []string
	RequestsPerSecond float64
	Burst             int
	RespectRobots     bool
	// AllowedHosts limits scraping to these hosts and their subdomains.
	AllowedHosts []string
	// Proxies are forward proxy URLs used round-robin.
	Proxies       []string
	ProxyCooldown time.Duration

	StorageBackend string
	StorageDSN     string

	WarmSitemap     string
	WarmPattern     string
	WarmConcurrency int

	ShutdownTimeout time.Duration
}

// NewViper returns a viper instance with defaults and environment binding.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault(KeyHTTPAddr, ":8080")
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogFormat, "json")
	v.SetDefault(KeyFetchTimeout, 30*time.Second)
	v.SetDefault(KeyMaxRedirects, 10)
	v.SetDefault(KeyFingerprint, string(fingerprint.ProfileGo))
	v.SetDefault(KeyRequestsPerSecond, 2.0)
	v.SetDefault(KeyBurst, 4)
	v.SetDefault(KeyRespectRobots, true)
	v.SetDefault(KeyProxyCooldown, 5*time.Minute)
	v.SetDefault(KeyStorageBackend, StorageNone)
	v.SetDefault(KeyWarmConcurrency, 4)
	v.SetDefault(KeyShutdownTimeout, 15*time.Second)
	return v
}

// Load reads Config from v. A non-empty configFile is read first; values set
// by flags or the environment take precedence over it.
func Load(v *viper.Viper, configFile string) (*Config, error) {
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", configFile, err)
		}
	}

	cfg := &Config{
		HTTPAddr:          v.GetString(KeyHTTPAddr),
		LogLevel:          v.GetString(KeyLogLevel),
		LogFormat:         v.GetString(KeyLogFormat),
		FetchTimeout:      v.GetDuration(KeyFetchTimeout),
		MaxRedirects:      v.GetInt(KeyMaxRedirects),
		Fingerprint:       fingerprint.Profile(v.GetString(KeyFingerprint)),
		UserAgents:        splitList(v.Get(KeyUserAgents), "|"),
		RequestsPerSecond: v.GetFloat64(KeyRequestsPerSecond),
		Burst:             v.GetInt(KeyBurst),
		RespectRobots:     v.GetBool(KeyRespectRobots),
		AllowedHosts:      splitList(v.Get(KeyAllowedHosts), ","),
		Proxies:           splitList(v.Get(KeyProxies), ","),
		ProxyCooldown:     v.GetDuration(KeyProxyCooldown),
		StorageBackend:    strings.ToLower(v.GetString(KeyStorageBackend)),
		StorageDSN:        v.GetString(KeyStorageDSN),
		WarmSitemap:       v.GetString(KeyWarmSitemap),
		WarmPattern:       v.GetString(KeyWarmPattern),
		WarmConcurrency:   v.GetInt(KeyWarmConcurrency),
		ShutdownTimeout:   v.GetDuration(KeyShutdownTimeout),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.FetchTimeout <= 0 {
		return errors.New("fetch-timeout must be positive")
	}
	if c.ShutdownTimeout <= 0 {
		return errors.New("shutdown-timeout must be positive")
	}
	if len(c.Proxies) > 0 && c.ProxyCooldown <= 0 {
		return errors.New("proxy-cooldown must be positive")
	}
	if c.RequestsPerSecond < 0 {
		return errors.New("rps must not be negative")
	}
	if c.WarmConcurrency < 1 {
		return errors.New("warm-concurrency must be at least 1")
	}
	if _, err := fingerprint.ParseProfile(string(c.Fingerprint)); err != nil {
		return err
	}
	if c.WarmPattern != "" {
		if _, err := regexp.Compile(c.WarmPattern); err != nil {
			return fmt.Errorf("invalid warm-pattern: %w", err)
		}
	}

	switch c.StorageBackend {
	case StorageNone:
	case StorageSQLite, StoragePostgres, StorageJSON:
		if c.StorageDSN == "" {
			return fmt.Errorf("storage-dsn is required for the %s backend", c.StorageBackend)
		}
	default:
		return fmt.Errorf("unknown storage-backend %q", c.StorageBackend)
	}
	return nil
}

// splitList accepts a list from a flag or config file, or a sep-joined
// string from the environment. User-Agents contain commas, hence sep.
func splitList(raw any, sep string) []string {
	var parts []string
	switch val := raw.(type) {
	case nil:
		return nil
	case []string:
		parts = val
	case []any:
		for _, p := range val {
			parts = append(parts, fmt.Sprint(p))
		}
	default:
		parts = strings.Split(fmt.Sprint(val), sep)
	}

	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
