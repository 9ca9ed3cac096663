package onchain

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type fakeCaller struct {
	balance  *big.Int
	approved map[common.Address]bool
	err      error
	calls    int
}

func (f *fakeCaller) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	switch *msg.To {
	case common.HexToAddress(usdcEAddress):
		return erc20ABI.Methods["balanceOf"].Outputs.Pack(f.balance)
	case common.HexToAddress(ctfAddress):
		args, err := erc1155ABI.Methods["isApprovedForAll"].Inputs.Unpack(msg.Data[4:])
		if err != nil {
			return nil, err
		}
		op := args[1].(common.Address)
		return erc1155ABI.Methods["isApprovedForAll"].Outputs.Pack(f.approved[op])
	}
	return nil, errors.New("unknown contract")
}

func allApproved() map[common.Address]bool {
	return map[common.Address]bool{
		common.HexToAddress(normalExchange):  true,
		common.HexToAddress(negRiskExchange): true,
	}
}

var owner = common.HexToAddress("0x56687bf447db6ffa42ffe2204a05edaa20f55839")

func TestCollateralBalance_ScalesSixDecimals(t *testing.T) {
	w := NewWallet(&fakeCaller{balance: big.NewInt(123_456_789)}, owner)

	bal, err := w.CollateralBalance(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "123.46", bal.StringFixed(2))
}

func TestPreflight_OK(t *testing.T) {
	f := &fakeCaller{balance: big.NewInt(500_000_000), approved: allApproved()}
	w := NewWallet(f, owner)

	require.NoError(t, w.Preflight(context.Background(), 100))
	assert.Equal(t, 3, f.calls)
}

func TestPreflight_InsufficientCollateral(t *testing.T) {
	w := NewWallet(&fakeCaller{balance: big.NewInt(10_000_000), approved: allApproved()}, owner)

	err := w.Preflight(context.Background(), 50)
	assert.ErrorIs(t, err, ErrInsufficientCollateral)
}

func TestPreflight_MissingApproval(t *testing.T) {
	approved := allApproved()
	approved[common.HexToAddress(negRiskExchange)] = false
	w := NewWallet(&fakeCaller{balance: big.NewInt(500_000_000), approved: approved}, owner)

	err := w.Preflight(context.Background(), 50)
	assert.ErrorIs(t, err, ErrMissingApproval)
}

func TestPreflight_RPCError(t *testing.T) {
	w := NewWallet(&fakeCaller{err: errors.New("rpc down")}, owner)

	err := w.Preflight(context.Background(), 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rpc down")
}
