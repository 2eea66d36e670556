package amm

import (
	"bytes"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// Token is an ERC20 asset that can appear as a pair leg.
type Token struct {
	ChainID  uint64
	Address  common.Address
	Decimals uint8
	Symbol   string
	Name     string
}

// NewToken builds a Token from a hex address.
func NewToken(chainID uint64, address string, decimals uint8, symbol, name string) (Token, error) {
	if !common.IsHexAddress(address) {
		return Token{}, fmt.Errorf("invalid token address: %s", address)
	}
	return Token{
		ChainID:  chainID,
		Address:  common.HexToAddress(address),
		Decimals: decimals,
		Symbol:   symbol,
		Name:     name,
	}, nil
}

// Equals compares tokens by chain and address.
func (t Token) Equals(other Token) bool {
	return t.ChainID == other.ChainID && t.Address == other.Address
}

// SortsBefore reports whether t is token0 of a pair with other.
func (t Token) SortsBefore(other Token) bool {
	return bytes.Compare(t.Address.Bytes(), other.Address.Bytes()) < 0
}

func (t Token) String() string {
	if t.Symbol != "" {
		return t.Symbol
	}
	return t.Address.Hex()
}

// SortTokens returns the pair legs in token0, token1 order.
func SortTokens(a, b Token) (Token, Token) {
	if a.SortsBefore(b) {
		return a, b
	}
	return b, a
}

// Currency is either the chain's native coin or a token.
type Currency struct {
	Native bool
	Token  *Token
}

// NativeCurrency returns the native coin.
func NativeCurrency() *Currency {
	return &Currency{Native: true}
}

// TokenCurrency wraps a token as a Currency.
func TokenCurrency(token Token) *Currency {
	return &Currency{Token: &token}
}

// Equals compares currencies by native flag or token identity.
func (c *Currency) Equals(other *Currency) bool {
	if c == nil || other == nil {
		return c == other
	}
	if c.Native || other.Native {
		return c.Native == other.Native
	}
	if c.Token == nil || other.Token == nil {
		return c.Token == other.Token
	}
	return c.Token.Equals(*other.Token)
}

// Wrap returns the tradable form of c, mapping the native coin to wrappedNative.
func Wrap(c *Currency, wrappedNative Token) (Token, bool) {
	if c == nil {
		return Token{}, false
	}
	if c.Native {
		return wrappedNative, true
	}
	if c.Token == nil {
		return Token{}, false
	}
	return *c.Token, true
}
