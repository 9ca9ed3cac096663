package onchain

// wallet.go: lecturas on-chain del wallet que ejecuta en modo live.
//
// Antes de arrancar el executor live se comprueba que el wallet tiene
// colateral USDC.e suficiente y que los exchanges de Polymarket tienen
// setApprovalForAll sobre los tokens CTF. Solo lectura: no firma nada.

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/shopspring/decimal"
)

const (
	// USDC.e collateral on Polygon
	usdcEAddress = "0x2791Bca1f2de4661ED88A30C99A7a9449Aa84174"

	// CTF contract, holds conditional tokens (ERC1155)
	ctfAddress = "0x4D97DCd97eC945f40cF65F87097ACe5EA0476045"

	// Exchange contracts that need ERC1155 setApprovalForAll
	normalExchange  = "0x4bFb41d5B3570DeFd03C39a9A4D8dE6Bd8B8982E"
	negRiskExchange = "0xC5d563A36AE78145C45a50134d48A1215220f80a"

	usdcDecimals = 6
)

// ErrInsufficientCollateral se devuelve cuando el saldo no cubre el mínimo.
var ErrInsufficientCollateral = errors.New("insufficient collateral")

// ErrMissingApproval se devuelve cuando un exchange no tiene approval CTF.
var ErrMissingApproval = errors.New("missing CTF approval")

// Contract ABIs
var (
	erc20ABI   abi.ABI
	erc1155ABI abi.ABI
)

func init() {
	var err error

	erc20ABI, err = abi.JSON(strings.NewReader(`[
		{
			"name": "balanceOf",
			"type": "function",
			"inputs": [{"name": "account", "type": "address"}],
			"outputs": [{"name": "", "type": "uint256"}]
		}
	]`))
	if err != nil {
		panic("erc20 abi parse: " + err.Error())
	}

	erc1155ABI, err = abi.JSON(strings.NewReader(`[
		{
			"name": "isApprovedForAll",
			"type": "function",
			"inputs": [
				{"name": "account", "type": "address"},
				{"name": "operator", "type": "address"}
			],
			"outputs": [{"name": "", "type": "bool"}]
		}
	]`))
	if err != nil {
		panic("erc1155 abi parse: " + err.Error())
	}
}

// ContractCaller es el subconjunto de ethclient.Client que usa Wallet.
type ContractCaller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// Wallet consulta saldo y approvals de una dirección en Polygon.
type Wallet struct {
	caller  ContractCaller
	address common.Address
	closer  func()
}

// DialWallet conecta al RPC y devuelve un Wallet para address.
func DialWallet(ctx context.Context, rpcURL, address string) (*Wallet, error) {
	if !common.IsHexAddress(address) {
		return nil, fmt.Errorf("onchain.DialWallet: invalid address %q", address)
	}
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("onchain.DialWallet: dial rpc %s: %w", rpcURL, err)
	}
	w := NewWallet(client, common.HexToAddress(address))
	w.closer = client.Close
	return w, nil
}

// NewWallet crea un Wallet sobre un caller existente.
func NewWallet(caller ContractCaller, address common.Address) *Wallet {
	return &Wallet{caller: caller, address: address}
}

// Address devuelve la dirección consultada.
func (w *Wallet) Address() common.Address { return w.address }

// CollateralBalance devuelve el saldo USDC.e en unidades de dólar.
func (w *Wallet) CollateralBalance(ctx context.Context) (decimal.Decimal, error) {
	callData, err := erc20ABI.Pack("balanceOf", w.address)
	if err != nil {
		return decimal.Zero, fmt.Errorf("onchain.CollateralBalance: pack: %w", err)
	}

	token := common.HexToAddress(usdcEAddress)
	result, err := w.caller.CallContract(ctx, ethereum.CallMsg{To: &token, Data: callData}, nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("onchain.CollateralBalance: call: %w", err)
	}

	vals, err := erc20ABI.Unpack("balanceOf", result)
	if err != nil || len(vals) == 0 {
		return decimal.Zero, fmt.Errorf("onchain.CollateralBalance: unpack: %w", err)
	}
	raw, ok := vals[0].(*big.Int)
	if !ok {
		return decimal.Zero, fmt.Errorf("onchain.CollateralBalance: unexpected type %T", vals[0])
	}
	return decimal.NewFromBigInt(raw, -usdcDecimals), nil
}

// ApprovedForAll indica si operator puede mover los tokens CTF del wallet.
func (w *Wallet) ApprovedForAll(ctx context.Context, operator common.Address) (bool, error) {
	callData, err := erc1155ABI.Pack("isApprovedForAll", w.address, operator)
	if err != nil {
		return false, fmt.Errorf("onchain.ApprovedForAll: pack: %w", err)
	}

	ctf := common.HexToAddress(ctfAddress)
	result, err := w.caller.CallContract(ctx, ethereum.CallMsg{To: &ctf, Data: callData}, nil)
	if err != nil {
		return false, fmt.Errorf("onchain.ApprovedForAll: call: %w", err)
	}

	vals, err := erc1155ABI.Unpack("isApprovedForAll", result)
	if err != nil || len(vals) == 0 {
		return false, fmt.Errorf("onchain.ApprovedForAll: unpack: %w", err)
	}
	approved, _ := vals[0].(bool)
	return approved, nil
}

// Preflight verifica que el wallet puede operar: saldo >= minCollateral y
// approvals en ambos exchanges.
func (w *Wallet) Preflight(ctx context.Context, minCollateral float64) error {
	balance, err := w.CollateralBalance(ctx)
	if err != nil {
		return err
	}
	if balance.LessThan(decimal.NewFromFloat(minCollateral)) {
		return fmt.Errorf("onchain.Preflight: %w: have %s, need %.2f",
			ErrInsufficientCollateral, balance.StringFixed(2), minCollateral)
	}

	for _, ex := range []string{normalExchange, negRiskExchange} {
		op := common.HexToAddress(ex)
		ok, err := w.ApprovedForAll(ctx, op)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("onchain.Preflight: %w: operator %s", ErrMissingApproval, op.Hex())
		}
	}

	slog.Info("onchain: wallet preflight ok",
		"address", w.address.Hex(),
		"collateral", balance.StringFixed(2),
	)
	return nil
}

// Close cierra la conexión RPC si la abrió DialWallet.
func (w *Wallet) Close() {
	if w.closer != nil {
		w.closer()
	}
}
