package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/samber/lo"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	ChainID           int64
	SupportedChainIDs []int64
	SubgraphURLs      map[int64]string
	MetadataCacheURL  string
	MetadataCacheTTL  time.Duration
	RPCURL            string
	AssetDID          string

	OceanTokenAddress        string
	FixedRateExchangeAddress string
	Fees                     Fees

	Currencies        []string
	CoinGeckoTokenIDs []string
	TokenSymbolIDs    map[string]string

	CoinGeckoURL           string
	CoinGeckoDelay         time.Duration
	CoinGeckoRetryMax      int
	SubgraphRetryMax       int
	SubgraphRetryBaseDelay time.Duration
	RateWorkerInterval     time.Duration
	ResolveConcurrency     int
	ProviderTimeout        time.Duration
	SessionIdleTTL         time.Duration
	MaxSessions            int

	DatabaseURL string
	HTTPPort    string
	AdminAPIKey string
}

// Fees are the marketplace fee settings applied when pricing an order.
// Order fees are absolute amounts; the swap fee is a fraction (0.01 = 1%).
// MarketFeeAddress receives the consume market fees.
type Fees struct {
	MarketFeeAddress          string
	PublisherMarketOrderFee   string
	ConsumeMarketOrderFee     string
	ConsumeMarketFixedSwapFee string
}

// defaultSubgraphURLs are the public indexer deployments per chain.
var defaultSubgraphURLs = map[int64]string{
	1:     "https://v4.subgraph.mainnet.oceanprotocol.com",
	5:     "https://v4.subgraph.goerli.oceanprotocol.com",
	56:    "https://v4.subgraph.bsc.oceanprotocol.com",
	137:   "https://v4.subgraph.polygon.oceanprotocol.com",
	246:   "https://v4.subgraph.energyweb.oceanprotocol.com",
	1285:  "https://v4.subgraph.moonriver.oceanprotocol.com",
	80001: "https://v4.subgraph.mumbai.oceanprotocol.com",
}

var defaultTokenSymbolIDs = map[string]string{
	"OCEAN": "ocean-protocol",
	"ETH":   "ethereum",
	"MATIC": "matic-network",
}

// Load reads configuration from environment variables with sensible defaults.
// A .env file in the working directory is applied first if present.
func Load() Config {
	if err := godotenv.Load(); err == nil {
		slog.Info("loaded .env file")
	}

	return Config{
		ChainID:           envOrDefaultInt64("CHAIN_ID", 80001),
		SupportedChainIDs: envOrDefaultInt64List("SUPPORTED_CHAIN_IDS", []int64{1, 137, 56, 246, 1285, 5, 80001}),
		SubgraphURLs:      envOrDefaultChainMap("SUBGRAPH_URLS", defaultSubgraphURLs),
		MetadataCacheURL:  envOrDefault("METADATA_CACHE_URL", "https://v4.aquarius.oceanprotocol.com"),
		MetadataCacheTTL:  envOrDefaultDuration("METADATA_CACHE_TTL", 30*time.Second),
		RPCURL:            envOrDefault("RPC_URL", "https://rpc-mumbai.maticvigil.com/"),
		AssetDID:          envOrDefaultWarn("ASSET_DID", ""),

		OceanTokenAddress:        envOrDefault("OCEAN_TOKEN_ADDRESS", "0xd8992Ed72C445c35Cb4A2be468568Ed1079357c8"),
		FixedRateExchangeAddress: envOrDefaultWarn("FIXED_RATE_EXCHANGE_ADDRESS", ""),
		Fees: Fees{
			MarketFeeAddress:          envOrDefault("MARKET_FEE_ADDRESS", "0x9984b2453eC7D99a73A5B3a46Da81f197B753C8d"),
			PublisherMarketOrderFee:   envOrDefault("PUBLISHER_MARKET_ORDER_FEE", "0"),
			ConsumeMarketOrderFee:     envOrDefault("CONSUME_MARKET_ORDER_FEE", "0"),
			ConsumeMarketFixedSwapFee: envOrDefault("CONSUME_MARKET_FIXED_SWAP_FEE", "0"),
		},

		Currencies:        envOrDefaultList("CURRENCIES", []string{"EUR"}),
		CoinGeckoTokenIDs: envOrDefaultList("COINGECKO_TOKEN_IDS", []string{"ocean-protocol", "ethereum", "matic-network"}),
		TokenSymbolIDs:    envOrDefaultStringMap("TOKEN_SYMBOL_IDS", defaultTokenSymbolIDs),

		CoinGeckoURL:           envOrDefault("COINGECKO_URL", "https://api.coingecko.com/api/v3"),
		CoinGeckoDelay:         envOrDefaultDuration("COINGECKO_DELAY", 6*time.Second),
		CoinGeckoRetryMax:      envOrDefaultInt("COINGECKO_RETRY_MAX", 5),
		SubgraphRetryMax:       envOrDefaultInt("SUBGRAPH_RETRY_MAX", 3),
		SubgraphRetryBaseDelay: envOrDefaultDuration("SUBGRAPH_RETRY_BASE_DELAY", 1*time.Second),
		RateWorkerInterval:     envOrDefaultDuration("RATE_WORKER_INTERVAL", 5*time.Minute),
		ResolveConcurrency:     envOrDefaultInt("RESOLVE_CONCURRENCY", 4),
		ProviderTimeout:        envOrDefaultDuration("PROVIDER_TIMEOUT", 30*time.Second),
		SessionIdleTTL:         envOrDefaultDuration("SESSION_IDLE_TTL", 30*time.Minute),
		MaxSessions:            envOrDefaultInt("MAX_SESSIONS", 10000),

		DatabaseURL: envOrDefault("DATABASE_URL", ""),
		HTTPPort:    envOrDefault("HTTP_PORT", "8080"),
		AdminAPIKey: envOrDefault("ADMIN_API_KEY", ""),
	}
}

// IsSupportedChain reports whether chainID is in the supported set.
func (c Config) IsSupportedChain(chainID int64) bool {
	return lo.Contains(c.SupportedChainIDs, chainID)
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envOrDefaultWarn(key, defaultVal string) string {
	v := envOrDefault(key, defaultVal)
	if v == "" {
		slog.Warn("required env var not set", "key", key)
	}
	return v
}

func envOrDefaultInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			slog.Warn("invalid integer env var, using default", "key", key, "value", v, "default", defaultVal)
			return defaultVal
		}
		return n
	}
	return defaultVal
}

func envOrDefaultInt64(key string, defaultVal int64) int64 {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			slog.Warn("invalid integer env var, using default", "key", key, "value", v, "default", defaultVal)
			return defaultVal
		}
		return n
	}
	return defaultVal
}

func envOrDefaultDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			slog.Warn("invalid duration env var, using default", "key", key, "value", v, "default", defaultVal)
			return defaultVal
		}
		return d
	}
	return defaultVal
}

// envOrDefaultList parses a comma-separated list, dropping blank items.
func envOrDefaultList(key string, defaultVal []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	items := lo.FilterMap(strings.Split(v, ","), func(s string, _ int) (string, bool) {
		s = strings.TrimSpace(s)
		return s, s != ""
	})
	if len(items) == 0 {
		return defaultVal
	}
	return items
}

func envOrDefaultInt64List(key string, defaultVal []int64) []int64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	var ids []int64
	for _, s := range envOrDefaultList(key, nil) {
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			slog.Warn("invalid integer list env var, using default", "key", key, "value", v, "default", defaultVal)
			return defaultVal
		}
		ids = append(ids, n)
	}
	if len(ids) == 0 {
		return defaultVal
	}
	return ids
}

// envOrDefaultStringMap parses "KEY=value,KEY2=value2".
func envOrDefaultStringMap(key string, defaultVal map[string]string) map[string]string {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	result := make(map[string]string)
	for _, pair := range envOrDefaultList(key, nil) {
		k, val, ok := strings.Cut(pair, "=")
		if !ok || strings.TrimSpace(k) == "" {
			slog.Warn("invalid map env var, using default", "key", key, "value", v)
			return defaultVal
		}
		result[strings.TrimSpace(k)] = strings.TrimSpace(val)
	}
	return result
}

// envOrDefaultChainMap parses "137=https://...,80001=https://..." and merges it over the defaults.
func envOrDefaultChainMap(key string, defaultVal map[int64]string) map[int64]string {
	result := lo.Assign(defaultVal)
	raw := envOrDefaultStringMap(key, nil)
	for k, url := range raw {
		id, err := strconv.ParseInt(k, 10, 64)
		if err != nil {
			slog.Warn("invalid chain id in env var, ignoring entry", "key", key, "chainId", k)
			continue
		}
		result[id] = url
	}
	return result
}
