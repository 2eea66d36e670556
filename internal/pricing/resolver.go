package pricing

import (
	"fmt"
	"math/big"

	"priceScope/internal/amm"
)

// Route names which branch produced a price.
type Route string

const (
	RouteNone     Route = "unavailable"
	RouteNative   Route = "native"
	RouteIdentity Route = "identity"
	RouteDirect   Route = "direct"
	RouteRouted   Route = "routed"
)

// Routes carries the three pair snapshots the resolver reads.
//
//	A: (target, wrappedNative)
//	B: (wrappedNative, stablecoin)
//	C: (target, stablecoin)
type Routes struct {
	A amm.PairSnapshot
	B amm.PairSnapshot
	C amm.PairSnapshot
}

// Resolver prices currencies in each configured chain's stablecoin.
// It holds no mutable state and is safe for concurrent use.
type Resolver struct {
	chains map[uint64]ChainConfig
}

// NewResolver builds a resolver over the given chain configurations.
func NewResolver(chains ...ChainConfig) (*Resolver, error) {
	byID := make(map[uint64]ChainConfig, len(chains))
	for _, chain := range chains {
		if err := chain.Validate(); err != nil {
			return nil, err
		}
		if _, ok := byID[chain.ChainID]; ok {
			return nil, fmt.Errorf("duplicate chain %d", chain.ChainID)
		}
		byID[chain.ChainID] = chain
	}
	return &Resolver{chains: byID}, nil
}

// Chain returns the configuration for chainID.
func (r *Resolver) Chain(chainID uint64) (*ChainConfig, bool) {
	chain, ok := r.chains[chainID]
	if !ok {
		return nil, false
	}
	return &chain, true
}

// Requests returns the pair lookups for target in A, C, B order.
// Skipped routes carry a nil leg.
func (r *Resolver) Requests(target *amm.Currency, chainID uint64) []amm.PairRequest {
	chain, _ := r.Chain(chainID)
	a, b, c := RouteRequests(target, chain)
	return []amm.PairRequest{a, c, b}
}

// RoutesFromSnapshots maps a snapshot batch ordered like Requests onto Routes.
func RoutesFromSnapshots(snapshots []amm.PairSnapshot) Routes {
	var routes Routes
	if len(snapshots) > 0 {
		routes.A = snapshots[0]
	}
	if len(snapshots) > 1 {
		routes.C = snapshots[1]
	}
	if len(snapshots) > 2 {
		routes.B = snapshots[2]
	}
	return routes
}

// Resolve returns the price of target in the chain's stablecoin, or nil.
func (r *Resolver) Resolve(target *amm.Currency, chainID uint64, routes Routes) *amm.Price {
	chain, _ := r.Chain(chainID)
	return ResolvePrice(target, chain, routes)
}

// RouteRequests builds the three route lookups for target on chain.
func RouteRequests(target *amm.Currency, chain *ChainConfig) (routeA, routeB, routeC amm.PairRequest) {
	if chain == nil {
		return
	}
	native := chain.WrappedNative
	wrapped, ok := amm.Wrap(target, native)

	routeA.B = &native
	if ok && !wrapped.Equals(native) {
		routeA.A = &wrapped
	}

	if chain.Stablecoin == nil {
		return
	}
	stable := *chain.Stablecoin

	if !native.Equals(stable) {
		routeB.A = &native
		routeB.B = &stable
	}

	routeC.B = &stable
	if ok && !wrapped.Equals(stable) {
		routeC.A = &wrapped
	}
	return
}

// ResolvePrice is the pure pricing routine. It returns nil whenever no
// price can be derived and never divides by a zero reserve.
func ResolvePrice(target *amm.Currency, chain *ChainConfig, routes Routes) *amm.Price {
	price, _ := ResolveRoute(target, chain, routes)
	return price
}

// ResolveRoute is ResolvePrice plus the branch that produced the result.
func ResolveRoute(target *amm.Currency, chain *ChainConfig, routes Routes) (*amm.Price, Route) {
	if chain == nil {
		return nil, RouteNone
	}
	wrapped, ok := amm.Wrap(target, chain.WrappedNative)
	if !ok || chain.Stablecoin == nil {
		return nil, RouteNone
	}
	native := chain.WrappedNative
	stable := *chain.Stablecoin

	if wrapped.Equals(native) {
		if !routes.B.Usable() {
			return nil, RouteNone
		}
		price := routes.B.Pair.PriceOf(native)
		if price == nil {
			return nil, RouteNone
		}
		return amm.NewPrice(wrapped, stable, price.Denominator, price.Numerator), RouteNative
	}

	if wrapped.Equals(stable) {
		return amm.IdentityPrice(stable), RouteIdentity
	}

	threshold := nativeReserveStableValue(routes, native)

	if routes.C.Usable() && routes.C.Pair.ReserveOf(stable).Cmp(threshold) > 0 {
		if price := routes.C.Pair.PriceOf(wrapped); price != nil {
			return amm.NewPrice(wrapped, stable, price.Denominator, price.Numerator), RouteDirect
		}
	}

	if routes.A.Usable() && routes.B.Usable() {
		if routes.B.Pair.ReserveOf(stable).Sign() > 0 && routes.A.Pair.ReserveOf(native).Sign() > 0 {
			stableInNative := routes.B.Pair.PriceOf(stable)
			nativeInTarget := routes.A.Pair.PriceOf(native)
			price := stableInNative.Multiply(nativeInTarget).Invert()
			if price != nil {
				return amm.NewPrice(wrapped, stable, price.Denominator, price.Numerator), RouteRouted
			}
		}
	}

	return nil, RouteNone
}

// nativeReserveStableValue values Route A's wrapped-native reserve in
// stablecoin through Route B. Zero when either route is unavailable.
func nativeReserveStableValue(routes Routes, native amm.Token) *big.Int {
	if !routes.A.Usable() || !routes.B.Usable() {
		return big.NewInt(0)
	}
	nativePrice := routes.B.Pair.PriceOf(native)
	if nativePrice == nil {
		return big.NewInt(0)
	}
	return nativePrice.QuoteAmount(routes.A.Pair.ReserveOf(native))
}
