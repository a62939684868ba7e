// Package config loads the process configuration from environment
// variables (optionally backed by a .env file) before any component is
// constructed.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// ProviderConfig is the per-provider connection settings: base URL, API
// key (most providers work keyless but at a lower rate), and the
// provider's own minimum inter-request interval.
type ProviderConfig struct {
	BaseURL        string
	APIKey         string
	MinInterval    time.Duration
	RateTokensSec  float64
	RateBurst      int
}

// BreakerConfig mirrors internal/circuit.Config defaults, surfaced here so
// they can be overridden per-deployment without touching code.
type BreakerConfig struct {
	FailureThreshold int
	RecoveryTimeout  time.Duration
}

// EntityCacheConfig configures internal/entity's TTL+LRU cache.
type EntityCacheConfig struct {
	TTL      time.Duration
	MaxSize  int
}

// PipelineStoreConfig points at the two persistence scopes pipelines
// live in.
type PipelineStoreConfig struct {
	WorkspaceDir string
	GlobalDir    string
}

// Config is the fully resolved process configuration.
type Config struct {
	Providers     map[string]ProviderConfig
	Breaker       BreakerConfig
	EntityCache   EntityCacheConfig
	PipelineStore PipelineStoreConfig

	DispatchGlobalTimeout   time.Duration
	DispatchProviderTimeout time.Duration
	RelaxMinResults         int

	LogLevel string
	LogPretty bool

	MCPAddr string
}

const (
	defaultFailureThreshold = 10
	defaultRecoveryTimeout  = 60 * time.Second
	defaultEntityCacheTTL   = time.Hour
	defaultEntityCacheSize  = 1000
	defaultGlobalTimeout    = 30 * time.Second
	defaultProviderTimeout  = 10 * time.Second
	defaultRelaxMinResults  = 1
)

// providerKeys is the full provider roster.
var providerKeys = []string{
	"pubmed", "europepmc", "crossref", "icite", "unpaywall",
	"pubtator", "biorxiv", "clinicaltrials", "fulltext",
}

// defaultBaseURLs are the well-known public API roots for each provider.
// Overridable via <PROVIDER>_BASE_URL for testing against a local stub.
var defaultBaseURLs = map[string]string{
	"pubmed":         "https://eutils.ncbi.nlm.nih.gov/entrez/eutils",
	"europepmc":      "https://www.ebi.ac.uk/europepmc/webservices/rest",
	"crossref":       "https://api.crossref.org",
	"icite":          "https://icite.od.nih.gov/api",
	"unpaywall":      "https://api.unpaywall.org/v2",
	"pubtator":       "https://www.ncbi.nlm.nih.gov/research/pubtator3-api",
	"biorxiv":        "https://api.biorxiv.org",
	"clinicaltrials": "https://clinicaltrials.gov/api/v2",
	"fulltext":       "https://www.ncbi.nlm.nih.gov/pmc/utils/oa",
}

// defaultRate is the fallback (rate/sec, burst) applied when a provider has
// no <PROVIDER>_RATE / <PROVIDER>_BURST override configured, whether or not
// it has an API key.
const (
	defaultRateTokensSec = 3.0
	defaultRateBurst     = 3
)

// Load resolves configuration from the environment, loading a .env file
// first if one is present in the working directory (a no-op, not an error,
// when it's absent).
func Load() *Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Debug().Err(err).Msg("no .env file loaded")
	}

	cfg := &Config{
		Providers: make(map[string]ProviderConfig, len(providerKeys)),
		Breaker: BreakerConfig{
			FailureThreshold: envInt("CIRCUIT_FAILURE_THRESHOLD", defaultFailureThreshold),
			RecoveryTimeout:  envDuration("CIRCUIT_RECOVERY_TIMEOUT", defaultRecoveryTimeout),
		},
		EntityCache: EntityCacheConfig{
			TTL:     envDuration("ENTITY_CACHE_TTL", defaultEntityCacheTTL),
			MaxSize: envInt("ENTITY_CACHE_SIZE", defaultEntityCacheSize),
		},
		PipelineStore: PipelineStoreConfig{
			WorkspaceDir: envString("PIPELINE_WORKSPACE_DIR", "./.litsearch/pipelines"),
			GlobalDir:    envString("PIPELINE_GLOBAL_DIR", globalConfigDir()),
		},
		DispatchGlobalTimeout:   envDuration("DISPATCH_GLOBAL_TIMEOUT", defaultGlobalTimeout),
		DispatchProviderTimeout: envDuration("DISPATCH_PROVIDER_TIMEOUT", defaultProviderTimeout),
		RelaxMinResults:         envInt("RELAX_MIN_RESULTS", defaultRelaxMinResults),
		LogLevel:                envString("LOG_LEVEL", "info"),
		LogPretty:               envBool("LOG_PRETTY", true),
		MCPAddr:                 envString("MCP_ADDR", ":8585"),
	}

	for _, key := range providerKeys {
		upper := strings.ToUpper(key)
		cfg.Providers[key] = ProviderConfig{
			BaseURL:       envString(upper+"_BASE_URL", defaultBaseURLs[key]),
			APIKey:        envString(upper+"_API_KEY", ""),
			MinInterval:   envDuration(upper+"_MIN_INTERVAL", 0),
			RateTokensSec: envFloat(upper+"_RATE", defaultRateTokensSec),
			RateBurst:     envInt(upper+"_BURST", defaultRateBurst),
		}
	}

	return cfg
}

func globalConfigDir() string {
	if home, err := os.UserHomeDir(); err == nil {
		return home + "/.config/litsearch-mcp/pipelines"
	}
	return "./.litsearch-global/pipelines"
}

func envString(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envFloat(key string, def float64) float64 {
	if v, ok := os.LookupEnv(key); ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func envBool(key string, def bool) bool {
	if v, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
