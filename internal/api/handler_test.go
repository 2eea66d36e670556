package api

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"priceScope/internal/amm"
	"priceScope/internal/dex"
	"priceScope/internal/model"
	"priceScope/internal/pricing"
)

var (
	wbnb = amm.Token{ChainID: 56, Address: common.HexToAddress("0xbb4CdB9CBd36B01bD1cBaEBF2De08d9173bc095c"), Decimals: 18, Symbol: "WBNB"}
	busd = amm.Token{ChainID: 56, Address: common.HexToAddress("0xe9e7cea3dedca5984780bafc599bd69add087d56"), Decimals: 18, Symbol: "BUSD"}
	cake = amm.Token{ChainID: 56, Address: common.HexToAddress("0x0e09fabb73bd3ade0a17ecc321fd13a19e81ce82"), Decimals: 18, Symbol: "CAKE"}
)

type quoterStub struct {
	quotes map[common.Address]pricing.Quote
	err    error
}

func (q quoterStub) Quote(_ context.Context, _ uint64, target *amm.Currency) (pricing.Quote, error) {
	if q.err != nil {
		return pricing.Quote{}, q.err
	}
	token, _ := amm.Wrap(target, wbnb)
	return q.quotes[token.Address], nil
}

func newTestRouter(q Quoter) *gin.Engine {
	gin.SetMode(gin.TestMode)
	source := dex.NewTokenSource(56, "BNB", nil, nil)
	source.Preload(wbnb, busd, cake)
	return NewRouter(New(q, map[uint64]CurrencyParser{56: source}, nil))
}

func get(t *testing.T, r http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestHealth(t *testing.T) {
	w := get(t, newTestRouter(quoterStub{}), "/healthz")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestGetPrice(t *testing.T) {
	q := quoterStub{quotes: map[common.Address]pricing.Quote{
		cake.Address: {Price: amm.NewPrice(cake, busd, big.NewInt(2), big.NewInt(5)), Route: pricing.RouteDirect, BlockNumber: 9},
		wbnb.Address: {Price: amm.NewPrice(wbnb, busd, big.NewInt(1), big.NewInt(300)), Route: pricing.RouteNative, BlockNumber: 9},
	}}
	r := newTestRouter(q)

	w := get(t, r, "/v1/price/56/"+cake.Address.Hex())
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var body priceResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "CAKE", body.Base)
	assert.Equal(t, "BUSD", body.Quote)
	assert.Equal(t, "5", body.Numerator)
	assert.Equal(t, "2", body.Denominator)
	assert.Equal(t, "2.500000000000000000", body.Price)
	assert.Equal(t, "direct", body.Route)

	w = get(t, r, "/v1/price/56/native")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "BNB", body.Symbol)
	assert.Equal(t, "WBNB", body.Base)
	assert.Equal(t, "native", body.Route)
}

func TestGetPriceErrors(t *testing.T) {
	r := newTestRouter(quoterStub{})

	cases := []struct {
		path string
		code int
	}{
		{"/v1/price/abc/native", http.StatusBadRequest},
		{"/v1/price/1/native", http.StatusBadRequest},
		{"/v1/price/56/cake", http.StatusBadRequest},
		{"/v1/price/56/" + cake.Address.Hex(), http.StatusNotFound},
	}
	for _, tc := range cases {
		w := get(t, r, tc.path)
		assert.Equal(t, tc.code, w.Code, tc.path)
	}

	w := get(t, r, "/v1/price/56/"+cake.Address.Hex())
	assert.JSONEq(t, `{"error":"price unavailable"}`, w.Body.String())

	w = get(t, newTestRouter(quoterStub{err: errors.New("rpc down")}), "/v1/price/56/native")
	assert.Equal(t, http.StatusBadGateway, w.Code)
}

type latestStub map[string]model.PriceQuote

func (l latestStub) Latest(_ context.Context, _ uint64, token string) (model.PriceQuote, bool, error) {
	quote, ok := l[token]
	return quote, ok, nil
}

func TestGetPriceFallsBackToStoredQuote(t *testing.T) {
	gin.SetMode(gin.TestMode)
	source := dex.NewTokenSource(56, "BNB", nil, nil)
	source.Preload(wbnb, busd, cake)
	h := New(quoterStub{err: errors.New("rpc down")}, map[uint64]CurrencyParser{56: source}, nil)
	h.SetFallback(latestStub{
		"native": {ChainID: 56, Token: "native", Symbol: "BNB", QuoteSymbol: "BUSD", Numerator: "300", Denominator: "1", Price: "300.000000000000000000", Route: "native", Available: true, BlockNumber: 7},
	})
	r := NewRouter(h)

	w := get(t, r, "/v1/price/56/native")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var body priceResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.True(t, body.Cached)
	assert.Equal(t, "300", body.Numerator)
	assert.Equal(t, uint64(7), body.BlockNumber)

	w = get(t, r, "/v1/price/56/"+cake.Address.Hex())
	assert.Equal(t, http.StatusBadGateway, w.Code)
}
