package reserves

import (
	"bytes"
	"context"
	"errors"
	"math/big"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"priceScope/internal/amm"
	"priceScope/internal/dex"
)

var (
	router  = common.HexToAddress("0xf5b768f9e46d45bbebe5452ac383d80c8715052a")
	factory = common.HexToAddress("0x2222222222222222222222222222222222222222")
	wbnb    = amm.Token{ChainID: 56, Address: common.HexToAddress("0xbb4CdB9CBd36B01bD1cBaEBF2De08d9173bc095c"), Symbol: "WBNB"}
	busd    = amm.Token{ChainID: 56, Address: common.HexToAddress("0xe9e7cea3dedca5984780bafc599bd69add087d56"), Symbol: "BUSD"}
	cake    = amm.Token{ChainID: 56, Address: common.HexToAddress("0x0e09fabb73bd3ade0a17ecc321fd13a19e81ce82"), Symbol: "CAKE"}
)

type fakeReserves struct {
	reserve0 int64
	reserve1 int64
	err      error
}

// fakeChain answers router, factory and pair calls from in-memory tables.
type fakeChain struct {
	t         *testing.T
	block     uint64
	pairs     map[string]common.Address
	reserves  map[common.Address]fakeReserves
	factories atomic.Int32
	getPairs  atomic.Int32

	mu     sync.Mutex
	blocks []uint64
}

func newFakeChain(t *testing.T) *fakeChain {
	return &fakeChain{
		t:        t,
		block:    100,
		pairs:    make(map[string]common.Address),
		reserves: make(map[common.Address]fakeReserves),
	}
}

func (f *fakeChain) addPair(a, b amm.Token, addr common.Address, reserve0, reserve1 int64) {
	t0, t1 := amm.SortTokens(a, b)
	f.pairs[t0.Address.Hex()+t1.Address.Hex()] = addr
	f.reserves[addr] = fakeReserves{reserve0: reserve0, reserve1: reserve1}
}

func (f *fakeChain) LatestBlockNumber(context.Context) (uint64, error) {
	return f.block, nil
}

func (f *fakeChain) CallContract(ctx context.Context, msg ethereum.CallMsg, block *big.Int) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	routerABI, _ := dex.V2RouterABI()
	factoryABI, _ := dex.V2FactoryABI()
	pairABI, _ := dex.V2PairABI()

	switch {
	case *msg.To == router && bytes.HasPrefix(msg.Data, routerABI.Methods["factory"].ID):
		f.factories.Add(1)
		return routerABI.Methods["factory"].Outputs.Pack(factory)
	case *msg.To == factory && bytes.HasPrefix(msg.Data, factoryABI.Methods["getPair"].ID):
		f.getPairs.Add(1)
		args, err := factoryABI.Methods["getPair"].Inputs.Unpack(msg.Data[4:])
		require.NoError(f.t, err)
		a, b := args[0].(common.Address), args[1].(common.Address)
		return factoryABI.Methods["getPair"].Outputs.Pack(f.pairs[a.Hex()+b.Hex()])
	case bytes.HasPrefix(msg.Data, pairABI.Methods["getReserves"].ID):
		f.mu.Lock()
		f.blocks = append(f.blocks, block.Uint64())
		f.mu.Unlock()
		res, ok := f.reserves[*msg.To]
		if !ok {
			return nil, errors.New("no contract code")
		}
		if res.err != nil {
			return nil, res.err
		}
		return packReserves(pairABI, res)
	}
	return nil, errors.New("unexpected call")
}

func packReserves(pairABI abi.ABI, res fakeReserves) ([]byte, error) {
	return pairABI.Methods["getReserves"].Outputs.Pack(big.NewInt(res.reserve0), big.NewInt(res.reserve1), uint32(1700000000))
}

func request(a, b amm.Token) amm.PairRequest {
	return amm.PairRequest{A: &a, B: &b}
}

func TestRPCProviderPairs(t *testing.T) {
	chain := newFakeChain(t)
	cakePair := common.HexToAddress("0xa527a61703d82139f8a06bc30097cc9caa2df5a6")
	nativePair := common.HexToAddress("0x58f876857a02d6762e0101bb5c46a8c1ed44dc16")
	// token0 is CAKE (lower address) for cake/wbnb, WBNB for wbnb/busd.
	chain.addPair(cake, wbnb, cakePair, 500, 10)
	chain.addPair(wbnb, busd, nativePair, 1000, 300000)

	provider, err := NewRPCProvider(RPCConfig{ChainID: 56, Router: router}, chain, zap.NewNop())
	require.NoError(t, err)

	reqs := []amm.PairRequest{
		request(cake, wbnb),
		request(cake, busd),
		request(wbnb, busd),
		{B: &wbnb},
	}
	snapshots, err := provider.Pairs(context.Background(), 56, reqs)
	require.NoError(t, err)
	require.Len(t, snapshots, 4)

	assert.Equal(t, amm.PairExists, snapshots[0].State)
	assert.Equal(t, int64(500), snapshots[0].Pair.ReserveOf(cake).Int64())
	assert.Equal(t, int64(10), snapshots[0].Pair.ReserveOf(wbnb).Int64())
	assert.Equal(t, uint64(100), snapshots[0].Pair.BlockNumber)

	assert.Equal(t, amm.PairNotExists, snapshots[1].State)

	assert.Equal(t, amm.PairExists, snapshots[2].State)
	assert.Equal(t, int64(300000), snapshots[2].Pair.ReserveOf(busd).Int64())

	assert.Equal(t, amm.PairNotExists, snapshots[3].State)

	for _, block := range chain.blocks {
		assert.Equal(t, uint64(100), block)
	}

	// Second call reuses the cached factory and pair addresses.
	chain.block = 101
	_, err = provider.Pairs(context.Background(), 56, reqs)
	require.NoError(t, err)
	assert.Equal(t, int32(1), chain.factories.Load())
	assert.Equal(t, int32(3), chain.getPairs.Load())
}

func TestRPCProviderFailedLookupIsLoading(t *testing.T) {
	chain := newFakeChain(t)
	pair := common.HexToAddress("0x58f876857a02d6762e0101bb5c46a8c1ed44dc16")
	chain.addPair(wbnb, busd, pair, 1, 1)
	chain.reserves[pair] = fakeReserves{err: errors.New("header not found")}

	provider, err := NewRPCProvider(RPCConfig{ChainID: 56, Factory: factory}, chain, nil)
	require.NoError(t, err)

	snapshots, err := provider.Pairs(context.Background(), 56, []amm.PairRequest{request(wbnb, busd)})
	require.NoError(t, err)
	assert.Equal(t, amm.PairLoading, snapshots[0].State)
	assert.Equal(t, int32(0), chain.factories.Load())
}

func TestRPCProviderRejectsOtherChain(t *testing.T) {
	provider, err := NewRPCProvider(RPCConfig{ChainID: 56, Factory: factory}, newFakeChain(t), nil)
	require.NoError(t, err)

	_, err = provider.Pairs(context.Background(), 1, nil)
	require.Error(t, err)
}

func TestNewRPCProviderRequiresFactoryOrRouter(t *testing.T) {
	_, err := NewRPCProvider(RPCConfig{ChainID: 56}, newFakeChain(t), nil)
	require.Error(t, err)
}

func TestRPCProviderPairsAtGenesisBlock(t *testing.T) {
	chain := newFakeChain(t)
	pair := common.HexToAddress("0x58f876857a02d6762e0101bb5c46a8c1ed44dc16")
	chain.addPair(wbnb, busd, pair, 1000, 300000)

	provider, err := NewRPCProvider(RPCConfig{ChainID: 56, Factory: factory}, chain, nil)
	require.NoError(t, err)

	snapshots, err := provider.PairsAt(context.Background(), 56, []amm.PairRequest{request(wbnb, busd)}, big.NewInt(0))
	require.NoError(t, err)
	require.Equal(t, amm.PairExists, snapshots[0].State)
	assert.Equal(t, uint64(0), snapshots[0].Pair.BlockNumber)
	assert.Equal(t, []uint64{0}, chain.blocks)

	_, err = provider.PairsAt(context.Background(), 56, []amm.PairRequest{request(wbnb, busd)}, big.NewInt(-1))
	require.Error(t, err)
}

func TestRPCProviderLookupIgnoresCallerCancel(t *testing.T) {
	chain := newFakeChain(t)
	pair := common.HexToAddress("0x58f876857a02d6762e0101bb5c46a8c1ed44dc16")
	chain.addPair(wbnb, busd, pair, 1000, 300000)

	provider, err := NewRPCProvider(RPCConfig{ChainID: 56, Factory: factory}, chain, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	snapshots, err := provider.PairsAt(ctx, 56, []amm.PairRequest{request(wbnb, busd)}, big.NewInt(90))
	require.NoError(t, err)
	assert.Equal(t, amm.PairExists, snapshots[0].State)
}
