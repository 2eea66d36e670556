package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"priceScope/internal/amm"
	"priceScope/internal/model"
	"priceScope/internal/pricing"
	"priceScope/internal/storage"
)

const pricePlaces = 18

// Quoter resolves the stablecoin price of a currency.
type Quoter interface {
	Quote(ctx context.Context, chainID uint64, target *amm.Currency) (pricing.Quote, error)
}

// CurrencyParser turns a path token into a currency on one chain.
type CurrencyParser interface {
	Currency(ctx context.Context, value string) (*amm.Currency, string, error)
}

// LatestReader returns the last stored quote for a token.
// *storage.RedisStorage implements it.
type LatestReader interface {
	Latest(ctx context.Context, chainID uint64, token string) (model.PriceQuote, bool, error)
}

type Handler struct {
	quoter   Quoter
	tokens   map[uint64]CurrencyParser
	fallback LatestReader
	logger   *zap.Logger
}

func New(quoter Quoter, tokens map[uint64]CurrencyParser, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{quoter: quoter, tokens: tokens, logger: logger}
}

// SetFallback serves stored quotes when live reserves cannot be read.
func (h *Handler) SetFallback(latest LatestReader) {
	h.fallback = latest
}

// NewRouter returns an engine with recovery, request logging and all routes.
func NewRouter(h *Handler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), RequestLogger(h.logger))
	h.RegisterRoutes(r)
	return r
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/healthz", h.Health)
	r.GET("/v1/price/:chain/:token", h.GetPrice)
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type priceResponse struct {
	ChainID     uint64 `json:"chain_id"`
	Token       string `json:"token"`
	Symbol      string `json:"symbol"`
	Base        string `json:"base"`
	Quote       string `json:"quote"`
	Numerator   string `json:"numerator"`
	Denominator string `json:"denominator"`
	Price       string `json:"price"`
	Route       string `json:"route"`
	BlockNumber uint64 `json:"block_number"`
	Cached      bool   `json:"cached,omitempty"`
}

// GetPrice resolves the stablecoin price of a token, or of the native coin
// when the token is "native".
func (h *Handler) GetPrice(c *gin.Context) {
	ctx := c.Request.Context()

	chainID, err := strconv.ParseUint(c.Param("chain"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid chain id: " + c.Param("chain")})
		return
	}
	parser, ok := h.tokens[chainID]
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported chain: " + c.Param("chain")})
		return
	}

	currency, symbol, err := parser.Currency(ctx, c.Param("token"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	quote, err := h.quoter.Quote(ctx, chainID, currency)
	if err != nil {
		h.logger.Warn("quote failed", zap.Uint64("chain_id", chainID), zap.String("token", c.Param("token")), zap.Error(err))
		if cached, ok := h.cachedQuote(ctx, chainID, currency); ok {
			c.JSON(http.StatusOK, cachedResponse(cached, c.Param("token"), symbol))
			return
		}
		c.JSON(http.StatusBadGateway, gin.H{"error": "reserve data unavailable"})
		return
	}
	if quote.Price == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "price unavailable"})
		return
	}

	c.JSON(http.StatusOK, priceResponse{
		ChainID:     chainID,
		Token:       c.Param("token"),
		Symbol:      symbol,
		Base:        quote.Price.Base.String(),
		Quote:       quote.Price.Quote.String(),
		Numerator:   quote.Price.Numerator.String(),
		Denominator: quote.Price.Denominator.String(),
		Price:       quote.Price.ToFixed(pricePlaces),
		Route:       string(quote.Route),
		BlockNumber: quote.BlockNumber,
	})
}

func (h *Handler) cachedQuote(ctx context.Context, chainID uint64, currency *amm.Currency) (model.PriceQuote, bool) {
	if h.fallback == nil {
		return model.PriceQuote{}, false
	}
	quote, ok, err := h.fallback.Latest(ctx, chainID, storage.TokenKey(currency))
	if err != nil {
		h.logger.Warn("cached quote read failed", zap.Uint64("chain_id", chainID), zap.Error(err))
		return model.PriceQuote{}, false
	}
	return quote, ok && quote.Available
}

func cachedResponse(quote model.PriceQuote, token, symbol string) priceResponse {
	return priceResponse{
		ChainID:     quote.ChainID,
		Token:       token,
		Symbol:      symbol,
		Base:        quote.Symbol,
		Quote:       quote.QuoteSymbol,
		Numerator:   quote.Numerator,
		Denominator: quote.Denominator,
		Price:       quote.Price,
		Route:       quote.Route,
		BlockNumber: quote.BlockNumber,
		Cached:      true,
	}
}

// RequestLogger logs one line per request.
func RequestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}
