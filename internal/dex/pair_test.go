package dex

import (
	"bytes"
	"context"
	"fmt"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

type fakeCall struct {
	to       common.Address
	selector []byte
	resp     []byte
	err      error
}

type fakeCaller struct {
	calls  []fakeCall
	blocks []*big.Int
}

func (f *fakeCaller) CallContract(_ context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	f.blocks = append(f.blocks, blockNumber)
	for _, call := range f.calls {
		if msg.To != nil && *msg.To == call.to && bytes.HasPrefix(msg.Data, call.selector) {
			return call.resp, call.err
		}
	}
	return nil, fmt.Errorf("unexpected call to %s", msg.To.Hex())
}

func TestGetReservesAtBlock(t *testing.T) {
	pairABI, err := V2PairABI()
	if err != nil {
		t.Fatalf("abi parse: %v", err)
	}
	pair := common.HexToAddress("0x1111111111111111111111111111111111111111")

	resp, err := pairABI.Methods["getReserves"].Outputs.Pack(big.NewInt(1000), big.NewInt(2500), uint32(1700000000))
	if err != nil {
		t.Fatalf("pack getReserves: %v", err)
	}

	caller := &fakeCaller{calls: []fakeCall{{to: pair, selector: pairABI.Methods["getReserves"].ID, resp: resp}}}
	reserves, err := GetReserves(context.Background(), caller, pair, big.NewInt(42))
	if err != nil {
		t.Fatalf("get reserves: %v", err)
	}

	if reserves.Reserve0.Int64() != 1000 || reserves.Reserve1.Int64() != 2500 {
		t.Fatalf("reserves mismatch: %+v", reserves)
	}
	if reserves.BlockTimestampLast != 1700000000 {
		t.Fatalf("timestamp mismatch: %d", reserves.BlockTimestampLast)
	}
	if len(caller.blocks) != 1 || caller.blocks[0].Int64() != 42 {
		t.Fatalf("expected call pinned at block 42, got %v", caller.blocks)
	}
}

func TestGetPairAndFactory(t *testing.T) {
	routerABI, err := V2RouterABI()
	if err != nil {
		t.Fatalf("abi parse: %v", err)
	}
	factoryABI, err := V2FactoryABI()
	if err != nil {
		t.Fatalf("abi parse: %v", err)
	}

	router := common.HexToAddress("0xf5b768f9e46d45bbebe5452ac383d80c8715052a")
	factory := common.HexToAddress("0x2222222222222222222222222222222222222222")
	pair := common.HexToAddress("0x3333333333333333333333333333333333333333")

	factoryResp, err := routerABI.Methods["factory"].Outputs.Pack(factory)
	if err != nil {
		t.Fatalf("pack factory: %v", err)
	}
	pairResp, err := factoryABI.Methods["getPair"].Outputs.Pack(pair)
	if err != nil {
		t.Fatalf("pack getPair: %v", err)
	}

	caller := &fakeCaller{calls: []fakeCall{
		{to: router, selector: routerABI.Methods["factory"].ID, resp: factoryResp},
		{to: factory, selector: factoryABI.Methods["getPair"].ID, resp: pairResp},
	}}

	gotFactory, err := FactoryOf(context.Background(), caller, router)
	if err != nil {
		t.Fatalf("factory: %v", err)
	}
	if gotFactory != factory {
		t.Fatalf("factory mismatch: %s", gotFactory.Hex())
	}

	gotPair, err := GetPair(context.Background(), caller, factory, common.HexToAddress("0xaa"), common.HexToAddress("0xbb"))
	if err != nil {
		t.Fatalf("getPair: %v", err)
	}
	if gotPair != pair {
		t.Fatalf("pair mismatch: %s", gotPair.Hex())
	}
}

func TestFetchTokenMetaBytes32Fallback(t *testing.T) {
	stringABI, err := erc20ABIStringInstance()
	if err != nil {
		t.Fatalf("abi parse: %v", err)
	}
	bytes32ABI, err := erc20ABIBytes32Instance()
	if err != nil {
		t.Fatalf("abi parse: %v", err)
	}

	token := common.HexToAddress("0x4444444444444444444444444444444444444444")
	decimalsResp, err := stringABI.Methods["decimals"].Outputs.Pack(uint8(18))
	if err != nil {
		t.Fatalf("pack decimals: %v", err)
	}
	var symbol [32]byte
	copy(symbol[:], "MKR")
	symbolResp, err := bytes32ABI.Methods["symbol"].Outputs.Pack(symbol)
	if err != nil {
		t.Fatalf("pack symbol: %v", err)
	}

	caller := &fakeCaller{calls: []fakeCall{
		{to: token, selector: stringABI.Methods["decimals"].ID, resp: decimalsResp},
		{to: token, selector: stringABI.Methods["symbol"].ID, resp: symbolResp},
		{to: token, selector: stringABI.Methods["name"].ID, err: fmt.Errorf("execution reverted")},
	}}

	cache := NewTokenMetaCache()
	meta, err := CachedTokenMeta(context.Background(), caller, token, cache, zap.NewNop())
	if err != nil {
		t.Fatalf("fetch meta: %v", err)
	}
	if meta.Decimals != 18 || meta.Symbol != "MKR" {
		t.Fatalf("meta mismatch: %+v", meta)
	}
	if _, ok := cache.Get(token); !ok {
		t.Fatalf("expected metadata to be cached")
	}
}
