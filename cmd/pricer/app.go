package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"priceScope/internal/api"
	"priceScope/internal/chain"
	"priceScope/internal/config"
	"priceScope/internal/dex"
	"priceScope/internal/metrics"
	"priceScope/internal/pricing"
	"priceScope/internal/reserves"
	"priceScope/internal/storage"
	"priceScope/internal/storage/postgres"
	"priceScope/internal/watcher"
)

const stateName = "pricer"

// app holds the components shared by every subcommand.
type app struct {
	cfg     config.Config
	logger  *zap.Logger
	client  *chain.Client
	chain   pricing.ChainConfig
	oracle  *pricing.Oracle
	tokens  *dex.TokenSource
	closers []func()
}

func setup(ctx context.Context, cmd *cobra.Command) (*app, error) {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return nil, err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, logger: logger}

	if cfg.RPCURL == "" {
		return nil, fmt.Errorf("rpc url is required")
	}
	chainCfg, err := cfg.ChainConfig()
	if err != nil {
		return nil, err
	}
	a.chain = chainCfg

	client, err := chain.NewClient(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("connect rpc: %w", err)
	}
	a.client = client
	a.closers = append(a.closers, client.Close)

	rpcChainID, err := client.ChainID(ctx)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("get chain id: %w", err)
	}
	if rpcChainID != cfg.ChainID {
		a.Close()
		return nil, fmt.Errorf("rpc serves chain %d, configured chain is %d", rpcChainID, cfg.ChainID)
	}

	router, err := cfg.RouterAddress()
	if err != nil {
		a.Close()
		return nil, err
	}
	factory, err := cfg.FactoryAddress()
	if err != nil {
		a.Close()
		return nil, err
	}
	provider, err := reserves.NewRPCProvider(reserves.RPCConfig{
		ChainID:        cfg.ChainID,
		Factory:        factory,
		Router:         router,
		MissingPairTTL: cfg.MissingPairTTL,
	}, client, logger)
	if err != nil {
		a.Close()
		return nil, err
	}

	resolver, err := pricing.NewResolver(chainCfg)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.oracle = pricing.NewOracle(resolver, provider, logger)

	a.tokens = dex.NewTokenSource(cfg.ChainID, cfg.NativeSymbol, client, logger)
	a.tokens.Preload(chainCfg.WrappedNative)
	if chainCfg.Stablecoin != nil {
		a.tokens.Preload(*chainCfg.Stablecoin)
	}

	logger.Info("pricer ready",
		zap.Uint64("chain_id", cfg.ChainID),
		zap.String("wrapped_native", chainCfg.WrappedNative.Address.Hex()),
		zap.Bool("stablecoin", chainCfg.Stablecoin != nil),
		zap.String("router", cfg.Router),
		zap.String("factory", cfg.Factory),
	)
	return a, nil
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
	_ = a.logger.Sync()
}

func (a *app) targets(ctx context.Context) ([]watcher.Target, error) {
	if len(a.cfg.Tokens) == 0 {
		return nil, fmt.Errorf("token list is required")
	}
	targets := make([]watcher.Target, 0, len(a.cfg.Tokens))
	for _, value := range a.cfg.Tokens {
		currency, symbol, err := a.tokens.Currency(ctx, value)
		if err != nil {
			return nil, err
		}
		targets = append(targets, watcher.Target{Currency: currency, Symbol: symbol})
	}
	return targets, nil
}

// sinks builds the configured storage fan-out. The state store lives in
// Postgres when a DSN is set, otherwise in the state file.
func (a *app) sinks(ctx context.Context) (storage.Storage, watcher.StateStore, error) {
	sinks := storage.Multi{}
	var state watcher.StateStore = &watcher.FileStateStore{Path: a.cfg.StateFile}

	if a.cfg.Out != "" {
		sinks = append(sinks, storage.NewJsonlStorage(a.cfg.Out))
	}
	if a.cfg.PGDSN != "" {
		store, err := postgres.NewStore(ctx, a.cfg.PGDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("connect postgres: %w", err)
		}
		a.closers = append(a.closers, store.Close)
		sinks = append(sinks, store)
		state = &watcher.DBStateStore{Store: store, Name: stateName}
	}
	if a.cfg.RedisAddr != "" {
		latest, err := a.redisStorage(ctx)
		if err != nil {
			return nil, nil, err
		}
		sinks = append(sinks, latest)
	}
	if len(sinks) == 0 {
		return nil, nil, fmt.Errorf("no storage configured")
	}
	return sinks, state, nil
}

func (a *app) redisStorage(ctx context.Context) (*storage.RedisStorage, error) {
	client := redis.NewClient(&redis.Options{Addr: a.cfg.RedisAddr})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	a.closers = append(a.closers, func() { _ = client.Close() })
	return storage.NewRedisStorage(client, a.cfg.RedisTTL), nil
}

func (a *app) runConfig(targets []watcher.Target) watcher.RunConfig {
	return watcher.RunConfig{
		Chain:        a.chain,
		Targets:      targets,
		Interval:     a.cfg.Interval,
		MaxRetries:   a.cfg.MaxRetries,
		RetryBackoff: a.cfg.RetryBackoff,
	}
}

func (a *app) serveMetrics() error {
	if a.cfg.MetricsAddr == "" {
		return nil
	}
	srv, err := metrics.Serve(a.cfg.MetricsAddr, a.logger)
	if err != nil {
		return err
	}
	a.closers = append(a.closers, func() { _ = srv.Close() })
	a.logger.Info("metrics listening", zap.String("addr", srv.Addr))
	return nil
}

func runPrice(cmd *cobra.Command, _ []string) error {
	ctx, stop := signalContext()
	defer stop()

	a, err := setup(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	targets, err := a.targets(ctx)
	if err != nil {
		return err
	}
	runner := watcher.NewRunner(a.runConfig(targets), a.client, a.oracle, storage.NewWriterStorage(os.Stdout), nil, a.logger)
	_, err = runner.Tick(ctx)
	return err
}

func runWatch(cmd *cobra.Command, _ []string) error {
	ctx, stop := signalContext()
	defer stop()

	a, err := setup(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	targets, err := a.targets(ctx)
	if err != nil {
		return err
	}
	sink, state, err := a.sinks(ctx)
	if err != nil {
		return err
	}
	if err := a.serveMetrics(); err != nil {
		return err
	}

	a.logger.Info("watcher start",
		zap.Int("tokens", len(targets)),
		zap.Duration("interval", a.cfg.Interval),
		zap.String("out", a.cfg.Out),
		zap.Bool("postgres", a.cfg.PGDSN != ""),
		zap.Bool("redis", a.cfg.RedisAddr != ""),
	)
	return watcher.NewRunner(a.runConfig(targets), a.client, a.oracle, sink, state, a.logger).Run(ctx)
}

func runBackfill(cmd *cobra.Command, _ []string) error {
	ctx, stop := signalContext()
	defer stop()

	a, err := setup(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	targets, err := a.targets(ctx)
	if err != nil {
		return err
	}
	sink, _, err := a.sinks(ctx)
	if err != nil {
		return err
	}

	to := a.cfg.ToBlock
	if to == 0 {
		latest, err := a.client.LatestBlockNumber(ctx)
		if err != nil {
			return fmt.Errorf("get latest block: %w", err)
		}
		to = latest
	}

	runner := watcher.NewRunner(a.runConfig(targets), a.client, a.oracle, sink, nil, a.logger)
	written, err := runner.Backfill(ctx, a.cfg.FromBlock, to, a.cfg.Step)
	a.logger.Info("backfill finished", zap.Int("quotes", written), zap.Uint64("from", a.cfg.FromBlock), zap.Uint64("to", to))
	if watcher.IsShutdown(err) {
		return nil
	}
	return err
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signalContext()
	defer stop()

	a, err := setup(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.Close()
	if err := a.serveMetrics(); err != nil {
		return err
	}

	handler := api.New(a.oracle, map[uint64]api.CurrencyParser{a.cfg.ChainID: a.tokens}, a.logger)
	if a.cfg.RedisAddr != "" {
		latest, err := a.redisStorage(ctx)
		if err != nil {
			return err
		}
		handler.SetFallback(latest)
	}
	srv := &http.Server{Addr: a.cfg.Listen, Handler: api.NewRouter(handler)}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("api listening", zap.String("addr", a.cfg.Listen))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
