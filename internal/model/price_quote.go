package model

// PriceQuote is a resolved stablecoin price for a token at a block.
// Numerator and Denominator are exact raw-unit integers encoded as strings.
type PriceQuote struct {
	ChainID     uint64 `json:"chain_id"`
	Token       string `json:"token"`
	Symbol      string `json:"symbol"`
	Quote       string `json:"quote"`
	QuoteSymbol string `json:"quote_symbol"`
	Numerator   string `json:"numerator,omitempty"`
	Denominator string `json:"denominator,omitempty"`
	Price       string `json:"price,omitempty"`
	Route       string `json:"route"`
	Available   bool   `json:"available"`
	BlockNumber uint64 `json:"block_number"`
	Timestamp   uint64 `json:"timestamp"`
	ObservedAt  string `json:"observed_at"`
}
