package amm

import (
	"math/big"
)

// Price is an exact ratio of quote raw units per base raw unit.
// Numerator and Denominator are never converted to floating point.
type Price struct {
	Base        Token
	Quote       Token
	Numerator   *big.Int
	Denominator *big.Int
}

// NewPrice builds a price from a base amount (denominator) and a quote amount
// (numerator). It returns nil when the denominator is zero or negative.
func NewPrice(base, quote Token, denominator, numerator *big.Int) *Price {
	if denominator == nil || numerator == nil || denominator.Sign() <= 0 {
		return nil
	}
	return &Price{
		Base:        base,
		Quote:       quote,
		Numerator:   new(big.Int).Set(numerator),
		Denominator: new(big.Int).Set(denominator),
	}
}

// IdentityPrice returns 1/1 of token against itself.
func IdentityPrice(token Token) *Price {
	return NewPrice(token, token, big.NewInt(1), big.NewInt(1))
}

// Invert swaps base and quote. Returns nil for a zero price.
func (p *Price) Invert() *Price {
	if p == nil || p.Numerator.Sign() <= 0 {
		return nil
	}
	return NewPrice(p.Quote, p.Base, p.Numerator, p.Denominator)
}

// Multiply chains p (base→quote) with other (quote→other.Quote).
// Returns nil when the legs do not connect.
func (p *Price) Multiply(other *Price) *Price {
	if p == nil || other == nil || !p.Quote.Equals(other.Base) {
		return nil
	}
	num := new(big.Int).Mul(p.Numerator, other.Numerator)
	den := new(big.Int).Mul(p.Denominator, other.Denominator)
	return NewPrice(p.Base, other.Quote, den, num)
}

// QuoteAmount converts a raw base amount into raw quote units, rounding down.
func (p *Price) QuoteAmount(amount *big.Int) *big.Int {
	if p == nil || amount == nil {
		return big.NewInt(0)
	}
	out := new(big.Int).Mul(amount, p.Numerator)
	return out.Quo(out, p.Denominator)
}

// Rat returns the reduced raw ratio.
func (p *Price) Rat() *big.Rat {
	return new(big.Rat).SetFrac(p.Numerator, p.Denominator)
}

// Equal reports whether both prices are the same ratio over the same tokens.
func (p *Price) Equal(other *Price) bool {
	if p == nil || other == nil {
		return p == other
	}
	if !p.Base.Equals(other.Base) || !p.Quote.Equals(other.Quote) {
		return false
	}
	left := new(big.Int).Mul(p.Numerator, other.Denominator)
	right := new(big.Int).Mul(other.Numerator, p.Denominator)
	return left.Cmp(right) == 0
}

// Adjusted scales the raw ratio by token decimals, giving quote units per
// whole base unit.
func (p *Price) Adjusted() *big.Rat {
	scalar := new(big.Rat).SetFrac(pow10(p.Base.Decimals), pow10(p.Quote.Decimals))
	return scalar.Mul(scalar, p.Rat())
}

// ToFixed formats the decimal-adjusted price with the given precision.
func (p *Price) ToFixed(places int) string {
	if p == nil {
		return ""
	}
	return p.Adjusted().FloatString(places)
}

func pow10(decimals uint8) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
}
