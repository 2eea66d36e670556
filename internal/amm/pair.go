package amm

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// PairState is the lifecycle of a pair lookup within one snapshot.
type PairState int

const (
	PairLoading PairState = iota
	PairNotExists
	PairExists
)

func (s PairState) String() string {
	switch s {
	case PairLoading:
		return "loading"
	case PairNotExists:
		return "not_exists"
	case PairExists:
		return "exists"
	default:
		return "unknown"
	}
}

// Pair is an immutable reserve snapshot of a constant-product pool.
type Pair struct {
	Address     common.Address
	Token0      Token
	Token1      Token
	Reserve0    *big.Int
	Reserve1    *big.Int
	BlockNumber uint64
}

// NewPair orders the legs and their reserves into token0/token1.
func NewPair(address common.Address, a Token, reserveA *big.Int, b Token, reserveB *big.Int, blockNumber uint64) *Pair {
	if reserveA == nil {
		reserveA = big.NewInt(0)
	}
	if reserveB == nil {
		reserveB = big.NewInt(0)
	}
	if !a.SortsBefore(b) {
		a, b = b, a
		reserveA, reserveB = reserveB, reserveA
	}
	return &Pair{
		Address:     address,
		Token0:      a,
		Token1:      b,
		Reserve0:    new(big.Int).Set(reserveA),
		Reserve1:    new(big.Int).Set(reserveB),
		BlockNumber: blockNumber,
	}
}

// ReserveOf returns the reserve held for token, or zero if token is not a leg.
func (p *Pair) ReserveOf(token Token) *big.Int {
	switch {
	case p.Token0.Equals(token):
		return new(big.Int).Set(p.Reserve0)
	case p.Token1.Equals(token):
		return new(big.Int).Set(p.Reserve1)
	default:
		return big.NewInt(0)
	}
}

// PriceOf returns the price of token denominated in the other leg.
// Returns nil when token is not a leg or its reserve is zero.
func (p *Pair) PriceOf(token Token) *Price {
	switch {
	case p.Token0.Equals(token):
		return NewPrice(p.Token0, p.Token1, p.Reserve0, p.Reserve1)
	case p.Token1.Equals(token):
		return NewPrice(p.Token1, p.Token0, p.Reserve1, p.Reserve0)
	default:
		return nil
	}
}

// PairRequest asks for the pair of two legs. A nil leg marks a skipped route.
type PairRequest struct {
	A *Token
	B *Token
}

// Valid reports whether both legs are set and distinct.
func (r PairRequest) Valid() bool {
	return r.A != nil && r.B != nil && !r.A.Equals(*r.B) && r.A.ChainID == r.B.ChainID
}

// Key identifies the unordered pair.
func (r PairRequest) Key() string {
	if !r.Valid() {
		return ""
	}
	t0, t1 := SortTokens(*r.A, *r.B)
	return PairKey(t0.ChainID, t0.Address, t1.Address)
}

// PairKey formats a pair identity from sorted leg addresses.
func PairKey(chainID uint64, token0, token1 common.Address) string {
	return fmt.Sprintf("%d:%s:%s", chainID, token0.Hex(), token1.Hex())
}

// PairSnapshot is the state of one requested pair at lookup time.
type PairSnapshot struct {
	State PairState
	Pair  *Pair
}

// Usable reports whether the snapshot carries loaded reserves.
func (s PairSnapshot) Usable() bool {
	return s.State == PairExists && s.Pair != nil
}
