package pricing

import (
	"context"
	"fmt"
	"math/big"

	"go.uber.org/zap"

	"priceScope/internal/amm"
	"priceScope/internal/metrics"
)

// SnapshotProvider supplies pair snapshots in request order.
type SnapshotProvider interface {
	Pairs(ctx context.Context, chainID uint64, reqs []amm.PairRequest) ([]amm.PairSnapshot, error)
}

// BlockSnapshotProvider can read snapshots pinned at a historical block.
type BlockSnapshotProvider interface {
	PairsAt(ctx context.Context, chainID uint64, reqs []amm.PairRequest, block *big.Int) ([]amm.PairSnapshot, error)
}

// Oracle fetches the route snapshots for a currency and resolves its price.
type Oracle struct {
	resolver *Resolver
	provider SnapshotProvider
	logger   *zap.Logger
}

// NewOracle wires a resolver to a snapshot provider.
func NewOracle(resolver *Resolver, provider SnapshotProvider, logger *zap.Logger) *Oracle {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Oracle{resolver: resolver, provider: provider, logger: logger}
}

// Resolver returns the underlying resolver.
func (o *Oracle) Resolver() *Resolver {
	return o.resolver
}

// Quote is a resolved price together with the route and snapshot height.
type Quote struct {
	Price       *amm.Price
	Route       Route
	BlockNumber uint64
}

// Price returns the stablecoin price of target on chainID. An unresolvable
// price is (nil, nil); errors only come from the provider.
func (o *Oracle) Price(ctx context.Context, chainID uint64, target *amm.Currency) (*amm.Price, error) {
	quote, err := o.Quote(ctx, chainID, target)
	if err != nil {
		return nil, err
	}
	return quote.Price, nil
}

// Quote is Price with resolution details.
func (o *Oracle) Quote(ctx context.Context, chainID uint64, target *amm.Currency) (Quote, error) {
	if o.provider == nil {
		return Quote{}, fmt.Errorf("provider is nil")
	}
	return o.quote(ctx, chainID, target, func(reqs []amm.PairRequest) ([]amm.PairSnapshot, error) {
		return o.provider.Pairs(ctx, chainID, reqs)
	})
}

// QuoteAt resolves against snapshots pinned at block.
func (o *Oracle) QuoteAt(ctx context.Context, chainID uint64, target *amm.Currency, block uint64) (Quote, error) {
	pinned, ok := o.provider.(BlockSnapshotProvider)
	if !ok {
		return Quote{}, fmt.Errorf("provider cannot read historical blocks")
	}
	return o.quote(ctx, chainID, target, func(reqs []amm.PairRequest) ([]amm.PairSnapshot, error) {
		return pinned.PairsAt(ctx, chainID, reqs, new(big.Int).SetUint64(block))
	})
}

func (o *Oracle) quote(ctx context.Context, chainID uint64, target *amm.Currency, fetch func([]amm.PairRequest) ([]amm.PairSnapshot, error)) (Quote, error) {
	if o.resolver == nil {
		return Quote{}, fmt.Errorf("resolver is nil")
	}
	chain, ok := o.resolver.Chain(chainID)
	if !ok || target == nil {
		metrics.ObserveResolution(chainID, string(RouteNone))
		return Quote{Route: RouteNone}, nil
	}

	reqs := o.resolver.Requests(target, chainID)
	snapshots, err := fetch(reqs)
	if err != nil {
		return Quote{}, fmt.Errorf("fetch pairs: %w", err)
	}
	if len(snapshots) != len(reqs) {
		return Quote{}, fmt.Errorf("provider returned %d snapshots for %d requests", len(snapshots), len(reqs))
	}
	for _, snapshot := range snapshots {
		metrics.ObserveSnapshot(snapshot.State.String())
	}

	routes := RoutesFromSnapshots(snapshots)
	price, route := ResolveRoute(target, chain, routes)
	metrics.ObserveResolution(chainID, string(route))

	o.logger.Debug("price resolved",
		zap.Uint64("chain_id", chainID),
		zap.String("route", string(route)),
		zap.String("route_a", routes.A.State.String()),
		zap.String("route_b", routes.B.State.String()),
		zap.String("route_c", routes.C.State.String()),
	)

	return Quote{Price: price, Route: route, BlockNumber: snapshotBlock(snapshots)}, nil
}

func snapshotBlock(snapshots []amm.PairSnapshot) uint64 {
	var block uint64
	for _, snapshot := range snapshots {
		if snapshot.Usable() && snapshot.Pair.BlockNumber > block {
			block = snapshot.Pair.BlockNumber
		}
	}
	return block
}
