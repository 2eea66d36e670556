package watcher

import (
	"strings"
	"time"

	"priceScope/internal/model"
	"priceScope/internal/pricing"
	"priceScope/internal/storage"
)

const pricePlaces = 18

func buildQuoteRecord(chain pricing.ChainConfig, target Target, quote pricing.Quote, timestamp uint64, observedAt time.Time) model.PriceQuote {
	rec := model.PriceQuote{
		ChainID:     chain.ChainID,
		Token:       storage.TokenKey(target.Currency),
		Symbol:      target.Symbol,
		Route:       string(quote.Route),
		BlockNumber: quote.BlockNumber,
		Timestamp:   timestamp,
		ObservedAt:  observedAt.UTC().Format(time.RFC3339Nano),
	}
	if chain.Stablecoin != nil {
		rec.Quote = strings.ToLower(chain.Stablecoin.Address.Hex())
		rec.QuoteSymbol = chain.Stablecoin.Symbol
	}
	if quote.Price != nil {
		rec.Available = true
		rec.Numerator = quote.Price.Numerator.String()
		rec.Denominator = quote.Price.Denominator.String()
		rec.Price = quote.Price.ToFixed(pricePlaces)
	}
	return rec
}
