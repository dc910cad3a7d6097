// Package chain reads wallet balances and exchange quotes from an EVM chain.
// It never signs or submits transactions.
package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/shopspring/decimal"

	"github.com/mtlprog/eventpass/internal/domain"
)

const (
	datatokenDecimals = 18
	nativeDecimals    = 18
)

var (
	ErrInvalidAddress  = errors.New("invalid address")
	ErrInvalidExchange = errors.New("invalid exchange id")
	ErrContractCall    = errors.New("contract call failed")
	ErrNoExchange      = errors.New("fixed-rate exchange address not configured")
)

// Backend is the subset of an RPC client the reader needs.
type Backend interface {
	bind.ContractCaller
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
}

// Reader reads the payment token and fixed-rate exchange contracts.
type Reader struct {
	backend      Backend
	paymentToken *bind.BoundContract
	exchange     *bind.BoundContract
}

// Dial connects to rpcURL and creates a Reader. The caller must Close the returned client.
func Dial(ctx context.Context, rpcURL, paymentToken, fixedRateExchange string) (*Reader, *ethclient.Client, error) {
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to %s: %w", rpcURL, err)
	}
	r, err := NewReader(client, paymentToken, fixedRateExchange)
	if err != nil {
		client.Close()
		return nil, nil, err
	}
	return r, client, nil
}

// NewReader creates a Reader over backend. fixedRateExchange may be empty,
// in which case FixedBuyQuote fails with ErrNoExchange.
func NewReader(backend Backend, paymentToken, fixedRateExchange string) (*Reader, error) {
	if !common.IsHexAddress(paymentToken) {
		return nil, fmt.Errorf("%w: payment token %q", ErrInvalidAddress, paymentToken)
	}

	erc20, err := abi.JSON(strings.NewReader(erc20ABI))
	if err != nil {
		return nil, fmt.Errorf("parsing ERC20 ABI: %w", err)
	}
	r := &Reader{
		backend:      backend,
		paymentToken: bind.NewBoundContract(common.HexToAddress(paymentToken), erc20, backend, nil, nil),
	}

	if fixedRateExchange != "" {
		if !common.IsHexAddress(fixedRateExchange) {
			return nil, fmt.Errorf("%w: fixed-rate exchange %q", ErrInvalidAddress, fixedRateExchange)
		}
		freABI, err := abi.JSON(strings.NewReader(fixedRateExchangeABI))
		if err != nil {
			return nil, fmt.Errorf("parsing fixed-rate exchange ABI: %w", err)
		}
		r.exchange = bind.NewBoundContract(common.HexToAddress(fixedRateExchange), freABI, backend, nil, nil)
	}

	return r, nil
}

// Balances returns the payment-token and native gas balances of account in whole units.
func (r *Reader) Balances(ctx context.Context, account string) (domain.WalletBalances, error) {
	if !common.IsHexAddress(account) {
		return domain.WalletBalances{}, fmt.Errorf("%w: %q", ErrInvalidAddress, account)
	}
	addr := common.HexToAddress(account)

	decimals, err := r.paymentDecimals(ctx)
	if err != nil {
		return domain.WalletBalances{}, err
	}

	var out []any
	if err := r.paymentToken.Call(&bind.CallOpts{Context: ctx}, &out, "balanceOf", addr); err != nil {
		return domain.WalletBalances{}, fmt.Errorf("%w: balanceOf: %v", ErrContractCall, err)
	}
	raw, err := bigAt(out, 0)
	if err != nil {
		return domain.WalletBalances{}, fmt.Errorf("balanceOf: %w", err)
	}

	gas, err := r.backend.BalanceAt(ctx, addr, nil)
	if err != nil {
		return domain.WalletBalances{}, fmt.Errorf("reading native balance: %w", err)
	}

	return domain.WalletBalances{
		Account:      addr.Hex(),
		PaymentToken: domain.FromBaseUnits(raw, decimals),
		Gas:          domain.FromBaseUnits(gas, nativeDecimals),
	}, nil
}

// FixedBuyQuote returns what buying one datatoken from exchangeID costs, in payment-token units.
// consumeMarketSwapFee is a fraction such as "0.01".
func (r *Reader) FixedBuyQuote(ctx context.Context, exchangeID, consumeMarketSwapFee string) (domain.FixedBuyQuote, error) {
	if r.exchange == nil {
		return domain.FixedBuyQuote{}, ErrNoExchange
	}
	id, err := exchangeKey(exchangeID)
	if err != nil {
		return domain.FixedBuyQuote{}, err
	}

	decimals, err := r.paymentDecimals(ctx)
	if err != nil {
		return domain.FixedBuyQuote{}, err
	}

	oneDatatoken := domain.ToBaseUnits(decimal.NewFromInt(1), datatokenDecimals)
	swapFee := domain.ToBaseUnits(domain.SafeParse(consumeMarketSwapFee), datatokenDecimals)

	var out []any
	if err := r.exchange.Call(&bind.CallOpts{Context: ctx}, &out, "calcBaseInGivenOutDT", id, oneDatatoken, swapFee); err != nil {
		return domain.FixedBuyQuote{}, fmt.Errorf("%w: calcBaseInGivenOutDT: %v", ErrContractCall, err)
	}

	amounts := make([]string, 4)
	for i := range amounts {
		v, err := bigAt(out, i)
		if err != nil {
			return domain.FixedBuyQuote{}, fmt.Errorf("calcBaseInGivenOutDT: %w", err)
		}
		amounts[i] = domain.FromBaseUnits(v, decimals).String()
	}

	return domain.FixedBuyQuote{
		BaseTokenAmount:        amounts[0],
		OceanFeeAmount:         amounts[1],
		MarketFeeAmount:        amounts[2],
		ConsumeMarketFeeAmount: amounts[3],
	}, nil
}

func (r *Reader) paymentDecimals(ctx context.Context) (int32, error) {
	var out []any
	if err := r.paymentToken.Call(&bind.CallOpts{Context: ctx}, &out, "decimals"); err != nil {
		return 0, fmt.Errorf("%w: decimals: %v", ErrContractCall, err)
	}
	if len(out) == 0 {
		return 0, fmt.Errorf("decimals: empty result")
	}
	d, ok := out[0].(uint8)
	if !ok {
		return 0, fmt.Errorf("decimals: unexpected type %T", out[0])
	}
	return int32(d), nil
}

// exchangeKey converts a 0x-prefixed 32-byte hex id into its bytes32 form.
func exchangeKey(exchangeID string) ([32]byte, error) {
	s := strings.TrimPrefix(strings.ToLower(exchangeID), "0x")
	if len(s) != 64 || !isHex(s) {
		return [32]byte{}, fmt.Errorf("%w: %q", ErrInvalidExchange, exchangeID)
	}
	return [32]byte(common.HexToHash(exchangeID)), nil
}

func isHex(s string) bool {
	for _, c := range s {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

func bigAt(out []any, i int) (*big.Int, error) {
	if i >= len(out) {
		return nil, fmt.Errorf("missing output %d", i)
	}
	v, ok := out[i].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("output %d: unexpected type %T", i, out[i])
	}
	return v, nil
}
