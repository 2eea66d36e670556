package pricing

import (
	"fmt"

	"priceScope/internal/amm"
)

// ChainConfig holds the per-chain constants the resolver routes through.
type ChainConfig struct {
	ChainID       uint64
	WrappedNative amm.Token
	// Stablecoin is nil on chains without a USD reference.
	Stablecoin *amm.Token
}

// Validate checks the constants belong to the configured chain.
func (c ChainConfig) Validate() error {
	if c.ChainID == 0 {
		return fmt.Errorf("chain id is required")
	}
	if c.WrappedNative.ChainID != c.ChainID {
		return fmt.Errorf("wrapped native chain %d does not match chain %d", c.WrappedNative.ChainID, c.ChainID)
	}
	if c.Stablecoin != nil && c.Stablecoin.ChainID != c.ChainID {
		return fmt.Errorf("stablecoin chain %d does not match chain %d", c.Stablecoin.ChainID, c.ChainID)
	}
	return nil
}
