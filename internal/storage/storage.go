package storage

import (
	"context"
	"errors"

	"priceScope/internal/model"
)

// Storage defines a sink for resolved price quotes.
type Storage interface {
	PutQuoteBatch(ctx context.Context, quotes []model.PriceQuote) error
}

// Multi writes every batch to all sinks and joins their errors.
type Multi []Storage

func (m Multi) PutQuoteBatch(ctx context.Context, quotes []model.PriceQuote) error {
	var errs []error
	for _, sink := range m {
		if sink == nil {
			continue
		}
		if err := sink.PutQuoteBatch(ctx, quotes); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
