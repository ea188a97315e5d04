package dex

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"

	"github.com/bimakw/swap-router/internal/domain/entities"
	"github.com/bimakw/swap-router/internal/infrastructure/contracts"
)

// WellClient reads quotes from well contracts. The pricing math runs inside
// the well; this client only encodes the call and decodes the answer.
type WellClient struct {
	caller ContractCaller
}

func NewWellClient(caller ContractCaller) *WellClient {
	return &WellClient{caller: caller}
}

// GetSwapOut returns how much toToken the pool pays for exactly amountIn of fromToken
func (c *WellClient) GetSwapOut(ctx context.Context, pool *entities.Pool, fromToken, toToken entities.Token, amountIn *big.Int) (*big.Int, error) {
	data, err := contracts.WellABI.Pack("getSwapOut", fromToken.Address, toToken.Address, amountIn)
	if err != nil {
		return nil, err
	}
	return c.callUint(ctx, pool.Address, "getSwapOut", data)
}

// GetSwapIn returns how much fromToken the pool needs to pay exactly amountOut of toToken
func (c *WellClient) GetSwapIn(ctx context.Context, pool *entities.Pool, fromToken, toToken entities.Token, amountOut *big.Int) (*big.Int, error) {
	data, err := contracts.WellABI.Pack("getSwapIn", fromToken.Address, toToken.Address, amountOut)
	if err != nil {
		return nil, err
	}
	return c.callUint(ctx, pool.Address, "getSwapIn", data)
}

func (c *WellClient) callUint(ctx context.Context, to common.Address, method string, data []byte) (*big.Int, error) {
	result, err := c.caller.CallContract(ctx, ethereum.CallMsg{
		To:   &to,
		Data: data,
	})
	if err != nil {
		return nil, fmt.Errorf("%s on %s: %w", method, to.Hex(), err)
	}
	return contracts.UnpackUint256(contracts.WellABI, method, result)
}
