package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds configuration values loaded from flags, env, or config file.
type Config struct {
	RPCURL         string
	ChainID        uint64
	Router         string
	Factory        string
	NativeSymbol   string
	WrappedNative  TokenSpec
	Stablecoin     *TokenSpec
	Tokens         []string
	Interval       time.Duration
	Out            string
	PGDSN          string
	RedisAddr      string
	RedisTTL       time.Duration
	StateFile      string
	MetricsAddr    string
	Listen         string
	MaxRetries     int
	RetryBackoff   time.Duration
	MissingPairTTL time.Duration
	LogLevel       string
	FromBlock      uint64
	ToBlock        uint64
	Step           uint64
	// Chains is KnownChains merged with the "chains" config section.
	Chains map[uint64]ChainSpec
}

// Load merges config file, environment variables, and flags into Config.
// Chain constants not set explicitly are filled from the known chain table.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("PRICER")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("chain-id", uint64(56))
	v.SetDefault("interval", 15*time.Second)
	v.SetDefault("out", "./data/prices.jsonl")
	v.SetDefault("redis-ttl", 5*time.Minute)
	v.SetDefault("max-retries", 5)
	v.SetDefault("retry-backoff", 500*time.Millisecond)
	v.SetDefault("missing-pair-ttl", time.Minute)
	v.SetDefault("listen", ":8080")
	v.SetDefault("log-level", "info")
	v.SetDefault("step", uint64(1200))

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	cfg := Config{
		RPCURL:         v.GetString("rpc"),
		ChainID:        v.GetUint64("chain-id"),
		Router:         v.GetString("router"),
		Factory:        v.GetString("factory"),
		Tokens:         getStringSlice(v, "token"),
		Interval:       v.GetDuration("interval"),
		Out:            v.GetString("out"),
		PGDSN:          v.GetString("pg-dsn"),
		RedisAddr:      v.GetString("redis-addr"),
		RedisTTL:       v.GetDuration("redis-ttl"),
		StateFile:      v.GetString("state-file"),
		MetricsAddr:    v.GetString("metrics-addr"),
		Listen:         v.GetString("listen"),
		MaxRetries:     v.GetInt("max-retries"),
		RetryBackoff:   v.GetDuration("retry-backoff"),
		MissingPairTTL: v.GetDuration("missing-pair-ttl"),
		LogLevel:       v.GetString("log-level"),
		NativeSymbol:   v.GetString("native-symbol"),
		FromBlock:      v.GetUint64("from-block"),
		ToBlock:        v.GetUint64("to-block"),
		Step:           v.GetUint64("step"),
	}

	if addr := v.GetString("wrapped-native"); addr != "" {
		cfg.WrappedNative = TokenSpec{Address: addr, Decimals: 18, Symbol: v.GetString("wrapped-native-symbol")}
	}
	if addr := v.GetString("stablecoin"); addr != "" {
		cfg.Stablecoin = &TokenSpec{Address: addr, Decimals: uint8(v.GetUint("stablecoin-decimals")), Symbol: v.GetString("stablecoin-symbol")}
		if !v.IsSet("stablecoin-decimals") {
			cfg.Stablecoin.Decimals = 18
		}
	}

	chains, err := loadChains(v)
	if err != nil {
		return Config{}, err
	}
	cfg.Chains = chains

	applyKnownChain(&cfg)
	return cfg, nil
}

// loadChains overlays the "chains" section, keyed by chain id, on KnownChains.
func loadChains(v *viper.Viper) (map[uint64]ChainSpec, error) {
	chains := make(map[uint64]ChainSpec, len(KnownChains))
	for id, spec := range KnownChains {
		chains[id] = spec
	}
	if !v.IsSet("chains") {
		return chains, nil
	}

	var raw map[string]ChainSpec
	if err := v.UnmarshalKey("chains", &raw); err != nil {
		return nil, fmt.Errorf("parse chains: %w", err)
	}
	for key, spec := range raw {
		id, err := strconv.ParseUint(strings.TrimSpace(key), 10, 64)
		if err != nil || id == 0 {
			return nil, fmt.Errorf("invalid chain id in chains: %q", key)
		}
		chains[id] = mergeChainSpec(chains[id], spec)
	}
	return chains, nil
}

func mergeChainSpec(base, override ChainSpec) ChainSpec {
	if override.NativeSymbol != "" {
		base.NativeSymbol = override.NativeSymbol
	}
	if override.WrappedNative.Address != "" {
		base.WrappedNative = withDefaultDecimals(override.WrappedNative)
	}
	if override.Stablecoin != nil && override.Stablecoin.Address != "" {
		stable := withDefaultDecimals(*override.Stablecoin)
		base.Stablecoin = &stable
	}
	if override.Router != "" || override.Factory != "" {
		base.Router = override.Router
		base.Factory = override.Factory
	}
	return base
}

func withDefaultDecimals(spec TokenSpec) TokenSpec {
	if spec.Decimals == 0 {
		spec.Decimals = 18
	}
	return spec
}

func applyKnownChain(cfg *Config) {
	chains := cfg.Chains
	if chains == nil {
		chains = KnownChains
	}
	known, ok := chains[cfg.ChainID]
	if !ok {
		return
	}
	if cfg.WrappedNative.Address == "" {
		cfg.WrappedNative = known.WrappedNative
	}
	if cfg.NativeSymbol == "" {
		cfg.NativeSymbol = known.NativeSymbol
	}
	if cfg.Stablecoin == nil && known.Stablecoin != nil {
		stable := *known.Stablecoin
		cfg.Stablecoin = &stable
	}
	if cfg.Router == "" && cfg.Factory == "" {
		cfg.Router = known.Router
		cfg.Factory = known.Factory
	}
}

func getStringSlice(v *viper.Viper, key string) []string {
	if !v.IsSet(key) {
		return nil
	}

	val := v.Get(key)
	switch typed := val.(type) {
	case []string:
		return cleanStrings(typed)
	case string:
		return splitAndClean(typed)
	case []interface{}:
		items := make([]string, 0, len(typed))
		for _, item := range typed {
			items = append(items, fmt.Sprintf("%v", item))
		}
		return cleanStrings(items)
	default:
		return nil
	}
}

func splitAndClean(input string) []string {
	if input == "" {
		return nil
	}
	parts := strings.Split(input, ",")
	return cleanStrings(parts)
}

func cleanStrings(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out = append(out, item)
	}
	return out
}
