package model

import (
	"encoding/json"
	"testing"
)

func TestPriceQuoteJSONStringFields(t *testing.T) {
	quote := PriceQuote{
		ChainID:     56,
		Token:       "0x0E09FaBB73Bd3Ade0a17ECC321fD13a19e81cE82",
		Symbol:      "CAKE",
		Quote:       "0xe9e7CEA3DedcA5984780Bafc599bD69ADd087D56",
		QuoteSymbol: "BUSD",
		Numerator:   "340282366920938463463374607431768211456",
		Denominator: "3",
		Price:       "113427455640312821154458202477256070485.333333333333333333",
		Route:       "direct",
		Available:   true,
		BlockNumber: 36000000,
	}

	data, err := json.Marshal(quote)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	for _, key := range []string{"numerator", "denominator", "price"} {
		if _, ok := decoded[key].(string); !ok {
			t.Fatalf("%s should be string", key)
		}
	}
}

func TestPriceQuoteUnavailableOmitsRatio(t *testing.T) {
	data, err := json.Marshal(PriceQuote{ChainID: 56, Route: "unavailable"})
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if _, ok := decoded["numerator"]; ok {
		t.Fatalf("numerator should be omitted for unavailable quotes")
	}
	if decoded["available"] != false {
		t.Fatalf("available should be false")
	}
}
