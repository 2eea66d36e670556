package watcher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"priceScope/internal/amm"
	"priceScope/internal/metrics"
	"priceScope/internal/model"
	"priceScope/internal/pricing"
	"priceScope/internal/storage"
)

// Target is a currency the watcher prices on every tick.
type Target struct {
	Currency *amm.Currency
	Symbol   string
}

// Quoter resolves stablecoin quotes. *pricing.Oracle implements it.
type Quoter interface {
	Quote(ctx context.Context, chainID uint64, target *amm.Currency) (pricing.Quote, error)
	QuoteAt(ctx context.Context, chainID uint64, target *amm.Currency, block uint64) (pricing.Quote, error)
}

// BlockSource reads chain heads and block times.
type BlockSource interface {
	LatestBlockNumber(ctx context.Context) (uint64, error)
	BlockTimestamp(ctx context.Context, number uint64) (uint64, error)
}

// RunConfig holds runtime settings for the watcher.
type RunConfig struct {
	Chain        pricing.ChainConfig
	Targets      []Target
	Interval     time.Duration
	MaxRetries   int
	RetryBackoff time.Duration
}

// Runner re-prices its targets whenever the chain head moves and writes the
// quotes to storage.
type Runner struct {
	cfg     RunConfig
	blocks  BlockSource
	quoter  Quoter
	storage storage.Storage
	state   StateStore
	logger  *zap.Logger
	retry   retryPolicy
	now     func() time.Time

	lastBlock  uint64
	haveLast   bool
	stateReady bool
}

// NewRunner builds a Runner with its dependencies. state may be nil.
func NewRunner(cfg RunConfig, blocks BlockSource, quoter Quoter, storageSink storage.Storage, state StateStore, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		cfg:     cfg,
		blocks:  blocks,
		quoter:  quoter,
		storage: storageSink,
		state:   state,
		logger:  logger,
		retry:   newRetryPolicy(cfg.MaxRetries, cfg.RetryBackoff, logger),
		now:     time.Now,
	}
}

func (r *Runner) validate() error {
	if r.blocks == nil {
		return fmt.Errorf("block source is nil")
	}
	if r.quoter == nil {
		return fmt.Errorf("quoter is nil")
	}
	if r.storage == nil {
		return fmt.Errorf("storage is nil")
	}
	if len(r.cfg.Targets) == 0 {
		return fmt.Errorf("at least one token is required")
	}
	return nil
}

// Run ticks until ctx is cancelled. Tick failures are logged and retried on
// the next interval.
func (r *Runner) Run(ctx context.Context) error {
	if err := r.validate(); err != nil {
		return err
	}
	if r.cfg.Interval <= 0 {
		return fmt.Errorf("interval must be greater than zero")
	}

	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	for {
		if _, err := r.Tick(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			r.logger.Error("tick failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// Tick prices every target once if the chain head moved past the last
// processed block. It returns the number of quotes written.
func (r *Runner) Tick(ctx context.Context) (int, error) {
	if err := r.validate(); err != nil {
		return 0, err
	}
	if err := r.loadState(ctx); err != nil {
		return 0, err
	}

	latest, err := r.latestBlockWithRetry(ctx)
	if err != nil {
		return 0, fmt.Errorf("latest block: %w", err)
	}
	if r.haveLast && latest <= r.lastBlock {
		r.logger.Debug("head unchanged", zap.Uint64("block", latest))
		return 0, nil
	}

	records, err := r.priceTargets(ctx, latest, func(ctx context.Context, target *amm.Currency) (pricing.Quote, error) {
		return r.quoter.Quote(ctx, r.cfg.Chain.ChainID, target)
	})
	if err != nil {
		return 0, err
	}
	if err := r.write(ctx, records); err != nil {
		return 0, err
	}

	if r.state != nil {
		if err := r.state.Save(ctx, latest); err != nil {
			return 0, fmt.Errorf("save state: %w", err)
		}
	}
	r.lastBlock = latest
	r.haveLast = true

	r.logger.Info("tick complete", zap.Uint64("block", latest), zap.Int("quotes", len(records)))
	return len(records), nil
}

// Backfill prices every target at sampled historical blocks. It does not
// touch the checkpoint.
func (r *Runner) Backfill(ctx context.Context, from, to, step uint64) (int, error) {
	if err := r.validate(); err != nil {
		return 0, err
	}
	blocks, err := SampleBlocks(from, to, step)
	if err != nil {
		return 0, err
	}

	written := 0
	for _, block := range blocks {
		select {
		case <-ctx.Done():
			return written, ctx.Err()
		default:
		}

		records, err := r.priceTargets(ctx, block, func(ctx context.Context, target *amm.Currency) (pricing.Quote, error) {
			return r.quoter.QuoteAt(ctx, r.cfg.Chain.ChainID, target, block)
		})
		if err != nil {
			return written, fmt.Errorf("block %d: %w", block, err)
		}
		if err := r.write(ctx, records); err != nil {
			return written, fmt.Errorf("block %d: %w", block, err)
		}
		written += len(records)
		r.logger.Info("backfill block complete", zap.Uint64("block", block), zap.Int("quotes", len(records)))
	}
	return written, nil
}

type quoteFunc func(ctx context.Context, target *amm.Currency) (pricing.Quote, error)

func (r *Runner) priceTargets(ctx context.Context, head uint64, quote quoteFunc) ([]model.PriceQuote, error) {
	observedAt := r.now()
	timestamps := make(map[uint64]uint64)
	records := make([]model.PriceQuote, 0, len(r.cfg.Targets))

	for _, target := range r.cfg.Targets {
		var q pricing.Quote
		err := r.retry.do(ctx, "quote", func(ctx context.Context) error {
			var err error
			q, err = quote(ctx, target.Currency)
			return err
		}, zap.String("token", target.Symbol))
		if err != nil {
			return nil, fmt.Errorf("quote %s: %w", target.Symbol, err)
		}
		if q.BlockNumber == 0 {
			q.BlockNumber = head
		}

		ts, ok := timestamps[q.BlockNumber]
		if !ok {
			ts, err = r.blockTimestampWithRetry(ctx, q.BlockNumber)
			if err != nil {
				return nil, fmt.Errorf("block timestamp %d: %w", q.BlockNumber, err)
			}
			timestamps[q.BlockNumber] = ts
		}

		records = append(records, buildQuoteRecord(r.cfg.Chain, target, q, ts, observedAt))
	}
	return records, nil
}

func (r *Runner) write(ctx context.Context, records []model.PriceQuote) error {
	if err := r.storage.PutQuoteBatch(ctx, records); err != nil {
		return fmt.Errorf("store quotes: %w", err)
	}
	metrics.QuotesWrittenTotal.Add(float64(len(records)))
	return nil
}

func (r *Runner) loadState(ctx context.Context) error {
	if r.stateReady || r.state == nil {
		return nil
	}
	last, ok, err := r.state.Load(ctx)
	if err != nil {
		return fmt.Errorf("load state: %w", err)
	}
	r.stateReady = true
	if ok {
		r.lastBlock = last
		r.haveLast = true
		r.logger.Info("resume from state", zap.Uint64("last_processed", last))
	}
	return nil
}

func (r *Runner) latestBlockWithRetry(ctx context.Context) (uint64, error) {
	var latest uint64
	err := r.retry.do(ctx, "latest block fetch", func(ctx context.Context) error {
		var err error
		latest, err = r.blocks.LatestBlockNumber(ctx)
		return err
	})
	return latest, err
}

func (r *Runner) blockTimestampWithRetry(ctx context.Context, blockNumber uint64) (uint64, error) {
	var ts uint64
	err := r.retry.do(ctx, "block timestamp fetch", func(ctx context.Context) error {
		var err error
		ts, err = r.blocks.BlockTimestamp(ctx, blockNumber)
		return err
	}, zap.Uint64("block_number", blockNumber))
	return ts, err
}

// IsShutdown reports whether err only reflects context cancellation.
func IsShutdown(err error) bool {
	return errors.Is(err, context.Canceled)
}
