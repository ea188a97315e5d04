package services

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"

	"github.com/bimakw/swap-router/internal/domain/entities"
)

// PoolClient quotes a swap against a registered pool
type PoolClient interface {
	GetSwapOut(ctx context.Context, pool *entities.Pool, fromToken, toToken entities.Token, amountIn *big.Int) (*big.Int, error)
	GetSwapIn(ctx context.Context, pool *entities.Pool, fromToken, toToken entities.Token, amountOut *big.Int) (*big.Int, error)
}

// AllowanceReader reads ERC-20 allowances
type AllowanceReader interface {
	Allowance(ctx context.Context, token entities.Token, owner, spender common.Address) (*big.Int, error)
}

// Transactor estimates and submits settlement transactions. Signing happens
// behind the implementation, never in this package.
type Transactor interface {
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, from common.Address, call entities.Call) (common.Hash, error)
}
