package services

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/bimakw/swap-router/internal/domain/entities"
	"github.com/bimakw/swap-router/internal/infrastructure/contracts"
)

// Approval is an allowance increase that must land before the swap
type Approval struct {
	Token   entities.Token `json:"token"`
	Spender common.Address `json:"spender"`
	Amount  *big.Int       `json:"amount"`
	Call    entities.Call  `json:"call"`
}

// ApprovalChecker decides whether a spender needs a larger allowance
type ApprovalChecker struct {
	allowances AllowanceReader
}

func NewApprovalChecker(allowances AllowanceReader) *ApprovalChecker {
	return &ApprovalChecker{allowances: allowances}
}

// Check returns nil when no approval is needed: the token is native, or the
// current allowance already covers amount. Otherwise the returned approval
// raises the allowance to exactly amount.
func (c *ApprovalChecker) Check(ctx context.Context, token entities.Token, amount *big.Int, spender, account common.Address) (*Approval, error) {
	if token.IsNative {
		return nil, nil
	}

	allowance, err := c.allowances.Allowance(ctx, token, account, spender)
	if err != nil {
		return nil, fmt.Errorf("read allowance: %w", err)
	}
	if allowance.Cmp(amount) >= 0 {
		return nil, nil
	}

	data, err := contracts.PackApprove(spender, amount)
	if err != nil {
		return nil, err
	}
	return &Approval{
		Token:   token,
		Spender: spender,
		Amount:  new(big.Int).Set(amount),
		Call:    entities.Call{To: token.Address, Data: data, Value: new(big.Int)},
	}, nil
}
