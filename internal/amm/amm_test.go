package amm

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	tokenLow  = Token{ChainID: 56, Address: common.HexToAddress("0x1111111111111111111111111111111111111111"), Decimals: 18, Symbol: "LOW"}
	tokenHigh = Token{ChainID: 56, Address: common.HexToAddress("0x9999999999999999999999999999999999999999"), Decimals: 6, Symbol: "HIGH"}
)

func TestNewPairSortsLegs(t *testing.T) {
	pair := NewPair(common.Address{}, tokenHigh, big.NewInt(5), tokenLow, big.NewInt(7), 10)

	assert.True(t, pair.Token0.Equals(tokenLow))
	assert.True(t, pair.Token1.Equals(tokenHigh))
	assert.Equal(t, int64(7), pair.Reserve0.Int64())
	assert.Equal(t, int64(5), pair.Reserve1.Int64())
	assert.Equal(t, int64(5), pair.ReserveOf(tokenHigh).Int64())
	assert.Zero(t, pair.ReserveOf(Token{ChainID: 56}).Sign())
}

func TestPairPriceOf(t *testing.T) {
	pair := NewPair(common.Address{}, tokenLow, big.NewInt(4), tokenHigh, big.NewInt(10), 1)

	price := pair.PriceOf(tokenLow)
	require.NotNil(t, price)
	assert.Equal(t, "5/2", price.Rat().String())
	assert.True(t, price.Base.Equals(tokenLow))

	inverse := pair.PriceOf(tokenHigh)
	require.NotNil(t, inverse)
	assert.Equal(t, "2/5", inverse.Rat().String())

	empty := NewPair(common.Address{}, tokenLow, big.NewInt(0), tokenHigh, big.NewInt(10), 1)
	assert.Nil(t, empty.PriceOf(tokenLow))
	assert.Nil(t, pair.PriceOf(Token{ChainID: 56}))
}

func TestPriceMultiplyInvertExact(t *testing.T) {
	mid := Token{ChainID: 56, Address: common.HexToAddress("0x5555555555555555555555555555555555555555")}
	first := NewPrice(tokenLow, mid, big.NewInt(3), big.NewInt(1))
	second := NewPrice(mid, tokenHigh, big.NewInt(7), big.NewInt(2))

	product := first.Multiply(second)
	require.NotNil(t, product)
	assert.Equal(t, "2/21", product.Rat().String())

	inverted := product.Invert()
	require.NotNil(t, inverted)
	assert.True(t, inverted.Base.Equals(tokenHigh))
	assert.Equal(t, "21/2", inverted.Rat().String())

	assert.Nil(t, second.Multiply(first))
	assert.Nil(t, NewPrice(tokenLow, tokenHigh, big.NewInt(1), big.NewInt(0)).Invert())
}

func TestPriceQuoteRoundsDown(t *testing.T) {
	price := NewPrice(tokenLow, tokenHigh, big.NewInt(3), big.NewInt(2))
	assert.Equal(t, int64(6), price.QuoteAmount(big.NewInt(10)).Int64())
}

func TestPriceEqualCrossMultiplies(t *testing.T) {
	a := NewPrice(tokenLow, tokenHigh, big.NewInt(3), big.NewInt(1))
	b := NewPrice(tokenLow, tokenHigh, big.NewInt(9), big.NewInt(3))
	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(b.Invert()))
}

func TestPriceToFixedAdjustsDecimals(t *testing.T) {
	// 1e18 LOW raw buys 2.5e6 HIGH raw: 2.5 HIGH per LOW.
	price := NewPrice(tokenLow, tokenHigh, new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil), big.NewInt(2_500_000))
	assert.Equal(t, "2.5000", price.ToFixed(4))
}

func TestNewPriceRejectsZeroDenominator(t *testing.T) {
	assert.Nil(t, NewPrice(tokenLow, tokenHigh, big.NewInt(0), big.NewInt(1)))
}

func TestWrapAndEquals(t *testing.T) {
	wrapped, ok := Wrap(NativeCurrency(), tokenLow)
	require.True(t, ok)
	assert.True(t, wrapped.Equals(tokenLow))

	_, ok = Wrap(nil, tokenLow)
	assert.False(t, ok)

	assert.True(t, NativeCurrency().Equals(NativeCurrency()))
	assert.False(t, NativeCurrency().Equals(TokenCurrency(tokenLow)))
	assert.True(t, TokenCurrency(tokenLow).Equals(TokenCurrency(tokenLow)))
}

func TestPairRequestKeyIsUnordered(t *testing.T) {
	low, high := tokenLow, tokenHigh
	a := PairRequest{A: &low, B: &high}
	b := PairRequest{A: &high, B: &low}
	assert.Equal(t, a.Key(), b.Key())
	assert.False(t, PairRequest{A: &low, B: &low}.Valid())
	assert.Empty(t, PairRequest{A: &low}.Key())
}
