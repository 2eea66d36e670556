package reserves

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"priceScope/internal/amm"
	"priceScope/internal/dex"
)

// ChainReader is the RPC surface the provider reads through.
type ChainReader interface {
	dex.Caller
	LatestBlockNumber(ctx context.Context) (uint64, error)
}

// RPCConfig configures an RPC-backed provider for one chain.
type RPCConfig struct {
	ChainID uint64
	// Factory is used directly when set; otherwise it is read from Router.
	Factory common.Address
	Router  common.Address
	// PairCacheSize bounds the pair address cache.
	PairCacheSize int
	// MissingPairTTL is how long a "no pair" answer is trusted.
	MissingPairTTL time.Duration
	// MaxConcurrency bounds concurrent pair lookups per call.
	MaxConcurrency int
}

// RPCProvider reads V2 pair reserves over eth_call. All pairs in one call
// are read at the same block.
type RPCProvider struct {
	cfg    RPCConfig
	reader ChainReader
	logger *zap.Logger

	factoryMu sync.Mutex
	factory   common.Address

	pairAddrs    *lru.Cache[string, common.Address]
	missingPairs *expirable.LRU[string, struct{}]
	group        singleflight.Group
}

// NewRPCProvider builds an RPC-backed provider.
func NewRPCProvider(cfg RPCConfig, reader ChainReader, logger *zap.Logger) (*RPCProvider, error) {
	if reader == nil {
		return nil, fmt.Errorf("chain reader is nil")
	}
	if cfg.Factory == (common.Address{}) && cfg.Router == (common.Address{}) {
		return nil, fmt.Errorf("factory or router address is required")
	}
	if cfg.PairCacheSize <= 0 {
		cfg.PairCacheSize = 1024
	}
	if cfg.MissingPairTTL <= 0 {
		cfg.MissingPairTTL = time.Minute
	}
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = 8
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	pairAddrs, err := lru.New[string, common.Address](cfg.PairCacheSize)
	if err != nil {
		return nil, fmt.Errorf("pair cache: %w", err)
	}

	return &RPCProvider{
		cfg:          cfg,
		reader:       reader,
		logger:       logger,
		factory:      cfg.Factory,
		pairAddrs:    pairAddrs,
		missingPairs: expirable.NewLRU[string, struct{}](cfg.PairCacheSize, nil, cfg.MissingPairTTL),
	}, nil
}

// Pairs pins the latest block and reads every valid request concurrently.
// A failed lookup yields PairLoading for that request only.
func (p *RPCProvider) Pairs(ctx context.Context, chainID uint64, reqs []amm.PairRequest) ([]amm.PairSnapshot, error) {
	return p.PairsAt(ctx, chainID, reqs, nil)
}

// PairsAt reads every valid request at block, or at the latest block when
// block is nil. Historical reads need an archive node.
func (p *RPCProvider) PairsAt(ctx context.Context, chainID uint64, reqs []amm.PairRequest, block *big.Int) ([]amm.PairSnapshot, error) {
	if chainID != p.cfg.ChainID {
		return nil, fmt.Errorf("provider serves chain %d, got %d", p.cfg.ChainID, chainID)
	}

	out := make([]amm.PairSnapshot, len(reqs))
	pending := 0
	for i, req := range reqs {
		if !req.Valid() {
			out[i] = amm.PairSnapshot{State: amm.PairNotExists}
			continue
		}
		pending++
	}
	if pending == 0 {
		return out, nil
	}

	var pinned uint64
	switch {
	case block == nil:
		latest, err := p.reader.LatestBlockNumber(ctx)
		if err != nil {
			return nil, fmt.Errorf("latest block: %w", err)
		}
		pinned = latest
	case block.Sign() < 0 || !block.IsUint64():
		return nil, fmt.Errorf("invalid block %s", block)
	default:
		pinned = block.Uint64()
	}
	factory, err := p.factoryAddress(ctx)
	if err != nil {
		return nil, err
	}

	var g errgroup.Group
	g.SetLimit(p.cfg.MaxConcurrency)
	for i, req := range reqs {
		if !req.Valid() {
			continue
		}
		i, req := i, req
		g.Go(func() error {
			out[i] = p.lookup(ctx, factory, req, pinned)
			return nil
		})
	}
	_ = g.Wait()

	return out, nil
}

func (p *RPCProvider) lookup(ctx context.Context, factory common.Address, req amm.PairRequest, block uint64) amm.PairSnapshot {
	key := fmt.Sprintf("%s@%d", req.Key(), block)
	// Shared by every deduplicated caller, so one caller's cancellation
	// must not fail the others.
	shared := context.WithoutCancel(ctx)
	value, err, _ := p.group.Do(key, func() (interface{}, error) {
		return p.fetch(shared, factory, req, block)
	})
	if err != nil {
		p.logger.Warn("pair lookup failed",
			zap.String("token_a", req.A.Address.Hex()),
			zap.String("token_b", req.B.Address.Hex()),
			zap.Uint64("block", block),
			zap.Error(err),
		)
		return amm.PairSnapshot{State: amm.PairLoading}
	}
	return value.(amm.PairSnapshot)
}

func (p *RPCProvider) fetch(ctx context.Context, factory common.Address, req amm.PairRequest, block uint64) (amm.PairSnapshot, error) {
	token0, token1 := amm.SortTokens(*req.A, *req.B)

	pairAddr, ok, err := p.pairAddress(ctx, factory, token0, token1)
	if err != nil {
		return amm.PairSnapshot{}, err
	}
	if !ok {
		return amm.PairSnapshot{State: amm.PairNotExists}, nil
	}

	reserves, err := dex.GetReserves(ctx, p.reader, pairAddr, new(big.Int).SetUint64(block))
	if err != nil {
		return amm.PairSnapshot{}, err
	}

	pair := amm.NewPair(pairAddr, token0, reserves.Reserve0, token1, reserves.Reserve1, block)
	return amm.PairSnapshot{State: amm.PairExists, Pair: pair}, nil
}

func (p *RPCProvider) pairAddress(ctx context.Context, factory common.Address, token0, token1 amm.Token) (common.Address, bool, error) {
	key := amm.PairKey(token0.ChainID, token0.Address, token1.Address)
	if addr, ok := p.pairAddrs.Get(key); ok {
		return addr, true, nil
	}
	if _, ok := p.missingPairs.Get(key); ok {
		return common.Address{}, false, nil
	}

	addr, err := dex.GetPair(ctx, p.reader, factory, token0.Address, token1.Address)
	if err != nil {
		return common.Address{}, false, err
	}
	if addr == (common.Address{}) {
		p.missingPairs.Add(key, struct{}{})
		return common.Address{}, false, nil
	}
	p.pairAddrs.Add(key, addr)
	return addr, true, nil
}

func (p *RPCProvider) factoryAddress(ctx context.Context) (common.Address, error) {
	p.factoryMu.Lock()
	defer p.factoryMu.Unlock()

	if p.factory != (common.Address{}) {
		return p.factory, nil
	}
	factory, err := dex.FactoryOf(ctx, p.reader, p.cfg.Router)
	if err != nil {
		return common.Address{}, fmt.Errorf("resolve factory: %w", err)
	}
	p.factory = factory
	p.logger.Info("factory resolved", zap.String("router", p.cfg.Router.Hex()), zap.String("factory", factory.Hex()))
	return factory, nil
}
