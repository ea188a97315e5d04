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

// TokenClient reads ERC-20 state
type TokenClient struct {
	caller ContractCaller
}

func NewTokenClient(caller ContractCaller) *TokenClient {
	return &TokenClient{caller: caller}
}

// Allowance returns how much of token spender may pull from owner
func (c *TokenClient) Allowance(ctx context.Context, token entities.Token, owner, spender common.Address) (*big.Int, error) {
	data, err := contracts.TokenABI.Pack("allowance", owner, spender)
	if err != nil {
		return nil, err
	}

	result, err := c.caller.CallContract(ctx, ethereum.CallMsg{
		To:   &token.Address,
		Data: data,
	})
	if err != nil {
		return nil, fmt.Errorf("allowance on %s: %w", token, err)
	}
	return contracts.UnpackUint256(contracts.TokenABI, "allowance", result)
}
