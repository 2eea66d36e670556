package config

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"priceScope/internal/amm"
	"priceScope/internal/pricing"
)

// TokenSpec describes a token by address with optional static metadata.
type TokenSpec struct {
	Address  string `mapstructure:"address"`
	Decimals uint8  `mapstructure:"decimals"`
	Symbol   string `mapstructure:"symbol"`
	Name     string `mapstructure:"name"`
}

// ChainSpec holds the routing constants of a chain.
type ChainSpec struct {
	NativeSymbol  string     `mapstructure:"native-symbol"`
	WrappedNative TokenSpec  `mapstructure:"wrapped-native"`
	Stablecoin    *TokenSpec `mapstructure:"stablecoin"`
	Router        string     `mapstructure:"router"`
	Factory       string     `mapstructure:"factory"`
}

// KnownChains are the built-in chain constants. The "chains" config section
// adds to or overrides them. The stablecoin reference is
// only defined on BSC mainnet; other chains price to nothing.
var KnownChains = map[uint64]ChainSpec{
	56: {
		NativeSymbol:  "BNB",
		WrappedNative: TokenSpec{Address: "0xbb4CdB9CBd36B01bD1cBaEBF2De08d9173bc095c", Decimals: 18, Symbol: "WBNB", Name: "Wrapped BNB"},
		Stablecoin:    &TokenSpec{Address: "0xe9e7cea3dedca5984780bafc599bd69add087d56", Decimals: 18, Symbol: "BUSD", Name: "Binance USD"},
		Router:        "0xf5b768f9e46d45bbebe5452ac383d80c8715052a",
	},
	97: {
		NativeSymbol:  "tBNB",
		WrappedNative: TokenSpec{Address: "0xae13d989daC2f0dEbFf460aC112a837C89BAa7cd", Decimals: 18, Symbol: "WBNB", Name: "Wrapped BNB"},
	},
}

// Token converts a spec into a chain token.
func (s TokenSpec) Token(chainID uint64) (amm.Token, error) {
	return amm.NewToken(chainID, s.Address, s.Decimals, s.Symbol, s.Name)
}

// ChainConfig builds the resolver constants for the configured chain.
func (c Config) ChainConfig() (pricing.ChainConfig, error) {
	if c.ChainID == 0 {
		return pricing.ChainConfig{}, fmt.Errorf("chain id is required")
	}
	if c.WrappedNative.Address == "" {
		return pricing.ChainConfig{}, fmt.Errorf("wrapped native address is required for chain %d", c.ChainID)
	}
	native, err := c.WrappedNative.Token(c.ChainID)
	if err != nil {
		return pricing.ChainConfig{}, fmt.Errorf("wrapped native: %w", err)
	}

	chainCfg := pricing.ChainConfig{ChainID: c.ChainID, WrappedNative: native}
	if c.Stablecoin != nil {
		stable, err := c.Stablecoin.Token(c.ChainID)
		if err != nil {
			return pricing.ChainConfig{}, fmt.Errorf("stablecoin: %w", err)
		}
		chainCfg.Stablecoin = &stable
	}
	return chainCfg, chainCfg.Validate()
}

// RouterAddress returns the configured router, or the zero address.
func (c Config) RouterAddress() (common.Address, error) {
	return optionalAddress("router", c.Router)
}

// FactoryAddress returns the configured factory, or the zero address.
func (c Config) FactoryAddress() (common.Address, error) {
	return optionalAddress("factory", c.Factory)
}

func optionalAddress(name, value string) (common.Address, error) {
	if value == "" {
		return common.Address{}, nil
	}
	if !common.IsHexAddress(value) {
		return common.Address{}, fmt.Errorf("invalid %s address: %s", name, value)
	}
	return common.HexToAddress(value), nil
}
