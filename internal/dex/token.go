package dex

import (
	"context"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"priceScope/internal/amm"
	"priceScope/internal/model"
)

// NativeKeyword selects a chain's native coin wherever a token address is
// accepted.
const NativeKeyword = "native"

// TokenSource turns addresses on one chain into tokens with ERC20 metadata.
type TokenSource struct {
	chainID      uint64
	nativeSymbol string
	caller       Caller
	cache        *TokenMetaCache
	logger       *zap.Logger
}

func NewTokenSource(chainID uint64, nativeSymbol string, caller Caller, logger *zap.Logger) *TokenSource {
	if logger == nil {
		logger = zap.NewNop()
	}
	if nativeSymbol == "" {
		nativeSymbol = "NATIVE"
	}
	return &TokenSource{
		chainID:      chainID,
		nativeSymbol: nativeSymbol,
		caller:       caller,
		cache:        NewTokenMetaCache(),
		logger:       logger,
	}
}

// Preload seeds the cache with tokens whose metadata is already known.
func (s *TokenSource) Preload(tokens ...amm.Token) {
	for _, token := range tokens {
		s.cache.Set(token.Address, model.TokenMeta{
			Address:  token.Address.Hex(),
			Decimals: token.Decimals,
			Symbol:   token.Symbol,
			Name:     token.Name,
		})
	}
}

// Token loads metadata for address, reading the chain at most once.
func (s *TokenSource) Token(ctx context.Context, address common.Address) (amm.Token, error) {
	meta, err := CachedTokenMeta(ctx, s.caller, address, s.cache, s.logger)
	if err != nil {
		return amm.Token{}, err
	}
	return amm.Token{
		ChainID:  s.chainID,
		Address:  address,
		Decimals: meta.Decimals,
		Symbol:   meta.Symbol,
		Name:     meta.Name,
	}, nil
}

// Currency parses "native" or a hex token address.
func (s *TokenSource) Currency(ctx context.Context, value string) (*amm.Currency, string, error) {
	value = strings.TrimSpace(value)
	if strings.EqualFold(value, NativeKeyword) {
		return amm.NativeCurrency(), s.nativeSymbol, nil
	}
	if !common.IsHexAddress(value) {
		return nil, "", fmt.Errorf("invalid token: %s", value)
	}
	token, err := s.Token(ctx, common.HexToAddress(value))
	if err != nil {
		return nil, "", fmt.Errorf("token metadata %s: %w", value, err)
	}
	symbol := token.Symbol
	if symbol == "" {
		symbol = token.Address.Hex()
	}
	return amm.TokenCurrency(token), symbol, nil
}
