package dex

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Reserves is the decoded getReserves result, in token0/token1 order.
type Reserves struct {
	Reserve0           *big.Int
	Reserve1           *big.Int
	BlockTimestampLast uint32
}

// FactoryOf reads the factory address from a V2 router.
func FactoryOf(ctx context.Context, caller Caller, router common.Address) (common.Address, error) {
	routerABI, err := V2RouterABI()
	if err != nil {
		return common.Address{}, fmt.Errorf("parse router abi: %w", err)
	}
	values, err := callMethod(ctx, caller, router, routerABI, "factory", nil)
	if err != nil {
		return common.Address{}, err
	}
	factory, err := asAddress(values[0])
	if err != nil {
		return common.Address{}, fmt.Errorf("factory: %w", err)
	}
	return factory, nil
}

// GetPair returns the pair address for two tokens, or the zero address when
// the factory has not created one.
func GetPair(ctx context.Context, caller Caller, factory, tokenA, tokenB common.Address) (common.Address, error) {
	factoryABI, err := V2FactoryABI()
	if err != nil {
		return common.Address{}, fmt.Errorf("parse factory abi: %w", err)
	}
	values, err := callMethod(ctx, caller, factory, factoryABI, "getPair", nil, tokenA, tokenB)
	if err != nil {
		return common.Address{}, err
	}
	pair, err := asAddress(values[0])
	if err != nil {
		return common.Address{}, fmt.Errorf("getPair: %w", err)
	}
	return pair, nil
}

// GetReserves reads pair reserves at block, or latest when block is nil.
func GetReserves(ctx context.Context, caller Caller, pair common.Address, block *big.Int) (Reserves, error) {
	pairABI, err := V2PairABI()
	if err != nil {
		return Reserves{}, fmt.Errorf("parse pair abi: %w", err)
	}
	values, err := callMethod(ctx, caller, pair, pairABI, "getReserves", block)
	if err != nil {
		return Reserves{}, err
	}
	if len(values) != 3 {
		return Reserves{}, fmt.Errorf("unexpected getReserves values: %d", len(values))
	}
	reserve0, err := asBigInt(values[0])
	if err != nil {
		return Reserves{}, fmt.Errorf("reserve0: %w", err)
	}
	reserve1, err := asBigInt(values[1])
	if err != nil {
		return Reserves{}, fmt.Errorf("reserve1: %w", err)
	}
	ts, ok := values[2].(uint32)
	if !ok {
		return Reserves{}, fmt.Errorf("blockTimestampLast unexpected type %T", values[2])
	}
	return Reserves{Reserve0: reserve0, Reserve1: reserve1, BlockTimestampLast: ts}, nil
}
