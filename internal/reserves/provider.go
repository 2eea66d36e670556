package reserves

import (
	"context"
	"fmt"
	"sync"

	"priceScope/internal/amm"
)

// Provider returns one snapshot per request, in request order. Every call
// returns fresh immutable snapshots; callers decide the polling cadence.
type Provider interface {
	Pairs(ctx context.Context, chainID uint64, reqs []amm.PairRequest) ([]amm.PairSnapshot, error)
}

// ChainProviders dispatches requests to a per-chain provider.
type ChainProviders map[uint64]Provider

func (c ChainProviders) Pairs(ctx context.Context, chainID uint64, reqs []amm.PairRequest) ([]amm.PairSnapshot, error) {
	provider, ok := c[chainID]
	if !ok {
		return nil, fmt.Errorf("no reserve provider for chain %d", chainID)
	}
	return provider.Pairs(ctx, chainID, reqs)
}

// MemoryProvider serves snapshots from an in-memory pair table.
type MemoryProvider struct {
	mu      sync.RWMutex
	pairs   map[string]*amm.Pair
	missing amm.PairState
}

// NewMemoryProvider reports unknown pairs with the given state.
func NewMemoryProvider(missing amm.PairState) *MemoryProvider {
	return &MemoryProvider{pairs: make(map[string]*amm.Pair), missing: missing}
}

// SetPair stores or replaces a pair snapshot.
func (m *MemoryProvider) SetPair(pair *amm.Pair) {
	key := amm.PairKey(pair.Token0.ChainID, pair.Token0.Address, pair.Token1.Address)
	m.mu.Lock()
	m.pairs[key] = pair
	m.mu.Unlock()
}

// RemovePair drops a pair so later lookups report the missing state.
func (m *MemoryProvider) RemovePair(a, b amm.Token) {
	key := amm.PairRequest{A: &a, B: &b}.Key()
	m.mu.Lock()
	delete(m.pairs, key)
	m.mu.Unlock()
}

func (m *MemoryProvider) Pairs(_ context.Context, _ uint64, reqs []amm.PairRequest) ([]amm.PairSnapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]amm.PairSnapshot, len(reqs))
	for i, req := range reqs {
		if !req.Valid() {
			out[i] = amm.PairSnapshot{State: amm.PairNotExists}
			continue
		}
		pair, ok := m.pairs[req.Key()]
		if !ok {
			out[i] = amm.PairSnapshot{State: m.missing}
			continue
		}
		out[i] = amm.PairSnapshot{State: amm.PairExists, Pair: pair}
	}
	return out, nil
}
