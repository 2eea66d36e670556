package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"priceScope/internal/amm"
	"priceScope/internal/model"
)

// NativeToken is the token field used for a chain's native coin.
const NativeToken = "native"

// TokenKey is the token field stored for currency: "native" or the
// lowercase token address.
func TokenKey(currency *amm.Currency) string {
	if currency == nil {
		return ""
	}
	if currency.Native || currency.Token == nil {
		return NativeToken
	}
	return strings.ToLower(currency.Token.Address.Hex())
}

// RedisStorage keeps the latest quote per token for readers that only need
// the current price.
type RedisStorage struct {
	client redis.UniversalClient
	ttl    time.Duration
}

func NewRedisStorage(client redis.UniversalClient, ttl time.Duration) *RedisStorage {
	return &RedisStorage{client: client, ttl: ttl}
}

// LatestKey is the key holding the latest quote for a token.
func LatestKey(chainID uint64, token string) string {
	return fmt.Sprintf("price:%d:%s", chainID, strings.ToLower(token))
}

// PutQuoteBatch overwrites the latest quote of every token in the batch.
// Unavailable quotes are stored too so readers see the outage.
func (s *RedisStorage) PutQuoteBatch(ctx context.Context, quotes []model.PriceQuote) error {
	if len(quotes) == 0 {
		return nil
	}
	pipe := s.client.Pipeline()
	for _, quote := range quotes {
		payload, err := json.Marshal(quote)
		if err != nil {
			return fmt.Errorf("marshal price quote: %w", err)
		}
		pipe.Set(ctx, LatestKey(quote.ChainID, quote.Token), payload, s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis set quotes: %w", err)
	}
	return nil
}

// Latest reads the latest stored quote for a token.
func (s *RedisStorage) Latest(ctx context.Context, chainID uint64, token string) (model.PriceQuote, bool, error) {
	payload, err := s.client.Get(ctx, LatestKey(chainID, token)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return model.PriceQuote{}, false, nil
		}
		return model.PriceQuote{}, false, fmt.Errorf("redis get quote: %w", err)
	}
	var quote model.PriceQuote
	if err := json.Unmarshal(payload, &quote); err != nil {
		return model.PriceQuote{}, false, fmt.Errorf("decode quote: %w", err)
	}
	return quote, true, nil
}
