package services

import (
	"context"
	"errors"
	"math"
	"math/big"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bimakw/swap-router/internal/domain/entities"
	"github.com/bimakw/swap-router/internal/infrastructure/contracts"
)

var abis = map[string]abi.ABI{
	"well":     contracts.WellABI,
	"token":    contracts.TokenABI,
	"depot":    contracts.DepotABI,
	"junction": contracts.JunctionABI,
}

func decode(t *testing.T, contract string, data []byte) (string, []interface{}) {
	t.Helper()
	name, args, err := contracts.Decode(abis[contract], data)
	require.NoError(t, err)
	return name, args
}

func opKinds(plan *entities.Plan) []entities.OpKind {
	kinds := make([]entities.OpKind, len(plan.Operations))
	for i, op := range plan.Operations {
		kinds[i] = op.Kind
	}
	return kinds
}

func TestQuoteForwardSingleHopSlippage(t *testing.T) {
	pools := NewMockPools()
	pools.SetRate(poolAB, 98, 100)
	tx := &MockTransactor{gas: 120_000}
	r := newTestRouter(t, testDeps{pools: pools, tx: tx})

	q := r.BuildQuote(tokenA, tokenB, account)
	require.NotNil(t, q)

	res, err := q.QuoteForward(context.Background(), units(100), recipient, 0.005)
	require.NoError(t, err)

	assert.Equal(t, units(98), res.Amount)
	assert.Equal(t, new(big.Int).Mul(big.NewInt(9751), new(big.Int).Exp(big.NewInt(10), big.NewInt(16), nil)), res.AmountWithSlippage)
	assert.Equal(t, units(98), res.FullAmount)
	assert.Equal(t, uint64(120_000), res.GasEstimate)
	assert.Equal(t, Forward, res.Direction)

	require.True(t, res.Plan.IsDirect())
	assert.Equal(t, entities.OpSwapFrom, res.Plan.Direct.Kind)
	assert.Equal(t, poolAB.Address, res.Call.To)

	name, args := decode(t, "well", res.Plan.Direct.Data)
	assert.Equal(t, "swapFrom", name)
	assert.Equal(t, units(100), args[2])
	assert.Equal(t, res.AmountWithSlippage, args[3])
	assert.Equal(t, recipient, args[4])
	assert.Equal(t, big.NewInt(testNow.Unix()+60), args[5])
}

func TestQuoteReverseSingleHop(t *testing.T) {
	pools := NewMockPools()
	pools.SetRate(poolAB, 98, 100)
	r := newTestRouter(t, testDeps{pools: pools})

	q := r.BuildQuote(tokenA, tokenB, account)
	res, err := q.QuoteReverse(context.Background(), units(98), recipient, 0.01)
	require.NoError(t, err)

	assert.Equal(t, units(100), res.Amount)
	assert.Equal(t, units(101), res.AmountWithSlippage)

	name, args := decode(t, "well", res.Plan.Direct.Data)
	assert.Equal(t, "swapTo", name)
	assert.Equal(t, units(101), args[2], "max amount in")
	assert.Equal(t, units(98), args[3], "exact amount out")
}

func TestReverseRecoversForwardInput(t *testing.T) {
	pools := NewMockPools()
	pools.SetRate(poolAB, 98, 100)
	r := newTestRouter(t, testDeps{pools: pools})
	ctx := context.Background()

	amounts := []*big.Int{big.NewInt(50), big.NewInt(1234567), units(3), new(big.Int).Add(units(7), big.NewInt(13))}
	slippages := []float64{0, 0.001, 0.005, 0.3}

	for _, in := range amounts {
		for _, s := range slippages {
			q := r.BuildQuote(tokenA, tokenB, account)
			fwd, err := q.QuoteForward(ctx, in, recipient, s)
			require.NoError(t, err)
			if fwd.Amount.Sign() == 0 {
				continue
			}

			rev, err := q.QuoteReverse(ctx, fwd.Amount, recipient, s)
			require.NoError(t, err)
			assert.GreaterOrEqual(t, rev.AmountWithSlippage.Cmp(in), 0, "in=%s slippage=%v", in, s)
			assert.LessOrEqual(t, fwd.AmountWithSlippage.Cmp(fwd.Amount), 0)
		}
	}
}

func TestGasEstimateFailureRecordsZero(t *testing.T) {
	pools := NewMockPools()
	pools.SetRate(poolAB, 98, 100)
	tx := &MockTransactor{gas: 99, estimateErr: errors.New("execution reverted: insufficient allowance")}
	r := newTestRouter(t, testDeps{pools: pools, tx: tx})
	ctx := context.Background()

	t.Run("single hop", func(t *testing.T) {
		q := r.BuildQuote(tokenA, tokenB, account)
		res, err := q.QuoteForward(ctx, units(100), recipient, 0.005)
		require.NoError(t, err)
		assert.Zero(t, res.GasEstimate)
		assert.Equal(t, units(98), res.Amount)
		assert.Equal(t, "97510000000000000000", res.AmountWithSlippage.String())
	})

	t.Run("multi hop", func(t *testing.T) {
		q := r.BuildQuote(tokenA, tokenC, account)
		res, err := q.QuoteForward(ctx, units(100), recipient, 0.005)
		require.NoError(t, err)
		assert.Zero(t, res.GasEstimate)
		assert.Equal(t, units(98), res.Amount)
		for _, hq := range q.HopQuotes() {
			assert.Zero(t, hq.GasEstimate)
		}
	})

	assert.NotEmpty(t, tx.estimates, "estimation should have been attempted")
}

func TestReverseChainsOnSlippageAdjustedAmounts(t *testing.T) {
	pools := NewMockPools()
	pools.SetRate(poolAB, 9, 10)
	pools.SetRate(poolBC, 1, 2)
	pools.SetRate(poolCD, 3, 4)
	r := newTestRouter(t, testDeps{pools: pools})

	q := r.BuildQuote(tokenA, tokenD, account)
	require.NotNil(t, q)
	require.Equal(t, 3, q.Route().Len())

	res, err := q.QuoteReverse(context.Background(), units(30), recipient, 0.01)
	require.NoError(t, err)
	assert.Equal(t, -1, res.FullAmount.Cmp(res.AmountWithSlippage), "full amount is the raw chain")

	states := q.HopQuotes()
	calls := pools.Calls()
	require.GreaterOrEqual(t, len(calls), 3)
	for _, c := range calls {
		require.Equal(t, "in", c.method)
	}

	assert.Equal(t, poolCD.Address, calls[0].pool)
	assert.Equal(t, units(30), calls[0].amount)

	assert.Equal(t, poolBC.Address, calls[1].pool)
	assert.Equal(t, states[2].QuotedWithSlippage, calls[1].amount, "H2 targets H3's slippage-adjusted input")
	assert.NotEqual(t, states[2].Quoted, calls[1].amount)

	assert.Equal(t, poolAB.Address, calls[2].pool)
	assert.Equal(t, states[1].QuotedWithSlippage, calls[2].amount)
	assert.Equal(t, states[1].QuotedWithSlippage, states[0].Amount)
}

func TestForwardMultiHopPlan(t *testing.T) {
	pools := NewMockPools()
	pools.SetRate(poolAB, 98, 100)
	pools.SetRate(poolBC, 2, 1)
	tx := &MockTransactor{gas: 300_000}
	r := newTestRouter(t, testDeps{pools: pools, tx: tx})

	q := r.BuildQuote(tokenA, tokenC, account)
	res, err := q.QuoteForward(context.Background(), units(100), recipient, 0.01)
	require.NoError(t, err)

	assert.Equal(t, units(196), res.Amount)
	assert.Equal(t, "194040000000000000000", res.AmountWithSlippage.String())
	assert.Equal(t, uint64(300_000), res.GasEstimate)

	plan := res.Plan
	assert.Equal(t, []entities.OpKind{entities.OpTransferToken, entities.OpShift, entities.OpShift}, opKinds(plan))
	assert.Equal(t, 1, plan.Count(entities.OpTransferToken))
	assert.Zero(t, plan.Value.Sign())

	transfer := plan.Operations[0]
	assert.Equal(t, entities.ViaDepot, transfer.Via)
	name, args := decode(t, "depot", transfer.Data)
	assert.Equal(t, "transferToken", name)
	assert.Equal(t, tokenA.Address, args[0])
	assert.Equal(t, poolAB.Address, args[1], "input moves into the first well")
	assert.Equal(t, units(100), args[2])

	_, args = decode(t, "well", plan.Operations[1].Data)
	assert.Equal(t, tokenB.Address, args[0])
	assert.Zero(t, args[1].(*big.Int).Sign(), "intermediate hops carry no minimum")
	assert.Equal(t, poolBC.Address, args[2], "output goes to the next well")

	_, args = decode(t, "well", plan.Operations[2].Data)
	assert.Equal(t, tokenC.Address, args[0])
	assert.Equal(t, res.AmountWithSlippage, args[1])
	assert.Equal(t, recipient, args[2])

	assert.Equal(t, depot, res.Call.To)
	method, err := contracts.DepotABI.MethodById(res.Call.Data[:4])
	require.NoError(t, err)
	assert.Equal(t, "farm", method.Name)
}

func TestReverseMultiHopPlan(t *testing.T) {
	pools := NewMockPools()
	pools.SetRate(poolAB, 1, 2)
	pools.SetRate(poolBC, 1, 1)
	r := newTestRouter(t, testDeps{pools: pools})

	q := r.BuildQuote(tokenA, tokenC, account)
	res, err := q.QuoteReverse(context.Background(), units(10), recipient, 0.1)
	require.NoError(t, err)

	states := q.HopQuotes()
	s1, s2 := states[0].QuotedWithSlippage, states[1].QuotedWithSlippage
	assert.Equal(t, units(11), s2)
	assert.Equal(t, units(22), states[0].Quoted)
	assert.Equal(t, s1, res.AmountWithSlippage)

	plan := res.Plan
	assert.Equal(t, []entities.OpKind{
		entities.OpTransferToken,
		entities.OpApprove, entities.OpSwapTo,
		entities.OpApprove, entities.OpSwapTo,
		entities.OpBalanceOf, entities.OpTransfer,
		entities.OpBalanceOf, entities.OpTransfer,
	}, opKinds(plan))

	_, args := decode(t, "depot", plan.Operations[0].Data)
	assert.Equal(t, pipeline, args[1])
	assert.Equal(t, s1, args[2])

	_, args = decode(t, "token", plan.Operations[1].Data)
	assert.Equal(t, poolAB.Address, args[0])
	assert.Equal(t, s1, args[1])

	_, args = decode(t, "well", plan.Operations[2].Data)
	assert.Equal(t, s1, args[2], "max in is the hop's own slippage-adjusted input")
	assert.Equal(t, s2, args[3], "desired out is the next hop's slippage-adjusted input")
	assert.Equal(t, pipeline, args[4], "intermediate output stays in Pipeline")

	_, args = decode(t, "token", plan.Operations[3].Data)
	assert.Equal(t, poolBC.Address, args[0])
	assert.Equal(t, s2, args[1])

	_, args = decode(t, "well", plan.Operations[4].Data)
	assert.Equal(t, s2, args[2])
	assert.Equal(t, units(10), args[3])
	assert.Equal(t, recipient, args[4])

	assertRefund(t, plan, 5, tokenA.Address, account)
	assertRefund(t, plan, 7, tokenB.Address, account)
}

// assertRefund checks that ops i and i+1 read Pipeline's balance of token and
// paste it into a transfer to dest.
func assertRefund(t *testing.T, plan *entities.Plan, i int, token, dest common.Address) {
	t.Helper()
	balance, transfer := plan.Operations[i], plan.Operations[i+1]

	assert.Equal(t, entities.ViaPipeline, balance.Via)
	assert.Equal(t, token, balance.Target)
	name, args := decode(t, "token", balance.Data)
	assert.Equal(t, "balanceOf", name)
	assert.Equal(t, pipeline, args[0])

	assert.Equal(t, entities.ViaPipeline, transfer.Via)
	assert.Equal(t, token, transfer.Target)
	name, args = decode(t, "token", transfer.Data)
	assert.Equal(t, "transfer", name)
	assert.Equal(t, dest, args[0])
	require.NotNil(t, transfer.Copy)
	assert.Equal(t, entities.CopyOutput{FromStep: i, CopySlot: 0, PasteSlot: 1}, *transfer.Copy)
}

func TestReverseRefundsUnusedInput(t *testing.T) {
	pools := NewMockPools()
	pools.SetRate(poolAB, 1, 2)
	pools.SetRate(poolBC, 1, 1)
	r := newTestRouter(t, testDeps{pools: pools})
	ctx := context.Background()

	t.Run("forward plans carry no refund", func(t *testing.T) {
		res, err := r.BuildQuote(tokenA, tokenC, account).QuoteForward(ctx, units(10), recipient, 0.1)
		require.NoError(t, err)
		assert.NotContains(t, opKinds(res.Plan), entities.OpBalanceOf)
	})

	t.Run("no account refunds the recipient", func(t *testing.T) {
		res, err := r.BuildQuote(tokenA, tokenC, common.Address{}).QuoteReverse(ctx, units(10), recipient, 0.1)
		require.NoError(t, err)
		n := len(res.Plan.Operations)
		assertRefund(t, res.Plan, n-4, tokenA.Address, recipient)
		assertRefund(t, res.Plan, n-2, tokenB.Address, recipient)
	})

	t.Run("refund shares the final pipeline batch", func(t *testing.T) {
		res, err := r.BuildQuote(tokenA, tokenC, account).QuoteReverse(ctx, units(10), recipient, 0.1)
		require.NoError(t, err)

		method, err := contracts.DepotABI.MethodById(res.Call.Data[:4])
		require.NoError(t, err)
		assert.Equal(t, "farm", method.Name)
		args, err := method.Inputs.Unpack(res.Call.Data[4:])
		require.NoError(t, err)
		assert.Len(t, args[0], 2, "transferToken plus one advancedPipe")
	})
}

func TestPlanIgnoresFullAmount(t *testing.T) {
	pools := NewMockPools()
	pools.SetRate(poolAB, 1, 2)
	pools.SetRate(poolBC, 3, 1)
	r := newTestRouter(t, testDeps{pools: pools})
	ctx := context.Background()
	deadline := big.NewInt(testNow.Unix())

	for _, dir := range []Direction{Forward, Reverse} {
		t.Run(dir.String(), func(t *testing.T) {
			q := r.BuildQuote(tokenA, tokenC, account)
			var err error
			if dir == Forward {
				_, err = q.QuoteForward(ctx, units(10), recipient, 0.02)
			} else {
				_, err = q.QuoteReverse(ctx, units(10), recipient, 0.02)
			}
			require.NoError(t, err)

			before, err := r.builder.Prepare(q, dir, recipient, deadline)
			require.NoError(t, err)

			q.fullAmount = big.NewInt(1)
			after, err := r.builder.Prepare(q, dir, recipient, deadline)
			require.NoError(t, err)
			assert.Equal(t, before, after)
		})
	}
}

func TestPrepareSequencing(t *testing.T) {
	r := newTestRouter(t, testDeps{pools: NewMockPools()})
	ctx := context.Background()
	deadline := big.NewInt(testNow.Unix())

	q := r.BuildQuote(tokenA, tokenC, account)
	_, err := r.builder.Prepare(q, Forward, recipient, deadline)
	assert.ErrorIs(t, err, ErrNotQuoted)

	_, err = q.QuoteForward(ctx, units(1), recipient, 0.01)
	require.NoError(t, err)

	_, err = r.builder.Prepare(q, Reverse, recipient, deadline)
	require.ErrorIs(t, err, ErrDirectionMismatch)
	assert.Contains(t, err.Error(), "reverse")
	assert.Contains(t, err.Error(), "forward")
}

func TestStepBuildBeforeQuote(t *testing.T) {
	env := &stepEnv{}
	hops := []entities.Hop{
		{Kind: entities.HopPoolSwap, From: tokenA, To: tokenB, Pool: &poolAB},
		{Kind: entities.HopWrapNative, From: entities.ETH, To: entities.WETH},
		{Kind: entities.HopUnwrapNative, From: entities.WETH, To: entities.ETH},
	}

	for _, hop := range hops {
		t.Run(hop.Kind.String(), func(t *testing.T) {
			step, err := newStep(hop, env)
			require.NoError(t, err)

			_, err = step.BuildSingle(StepQuote{}, recipient, big.NewInt(1))
			assert.ErrorIs(t, err, ErrNotQuoted)
			_, err = step.BuildChained(StepQuote{}, recipient, big.NewInt(0))
			assert.ErrorIs(t, err, ErrNotQuoted)
			_, err = step.BuildChainedReverse(StepQuote{}, recipient, big.NewInt(1), big.NewInt(1), big.NewInt(1))
			assert.ErrorIs(t, err, ErrNotQuoted)
		})
	}
}

func TestInvalidSlippageRejectedBeforeCalls(t *testing.T) {
	pools := NewMockPools()
	r := newTestRouter(t, testDeps{pools: pools})
	q := r.BuildQuote(tokenA, tokenC, account)

	for _, s := range []float64{math.NaN(), -0.01, 1, 1.5, math.Inf(1), 0.9999996} {
		_, err := q.QuoteForward(context.Background(), units(1), recipient, s)
		assert.ErrorIs(t, err, ErrInvalidSlippage, "slippage %v", s)
		_, err = q.QuoteReverse(context.Background(), units(1), recipient, s)
		assert.ErrorIs(t, err, ErrInvalidSlippage, "slippage %v", s)
	}
	assert.Empty(t, pools.Calls())

	_, err := q.QuoteForward(context.Background(), big.NewInt(0), recipient, 0.01)
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestPoolErrorPropagates(t *testing.T) {
	pools := NewMockPools()
	revert := errors.New("execution reverted")
	pools.err = revert
	r := newTestRouter(t, testDeps{pools: pools})

	q := r.BuildQuote(tokenA, tokenC, account)
	_, err := q.QuoteForward(context.Background(), units(1), recipient, 0.01)
	assert.ErrorIs(t, err, revert)
	assert.Equal(t, Direction(0), q.Direction(), "failed chain leaves no state")
}

func TestNativeWrapQuotesOneToOne(t *testing.T) {
	r := newTestRouter(t, testDeps{pools: NewMockPools()})
	ctx := context.Background()

	tests := []struct {
		name     string
		from, to entities.Token
		kind     entities.OpKind
		value    bool
	}{
		{"wrap", entities.ETH, entities.WETH, entities.OpDeposit, true},
		{"unwrap", entities.WETH, entities.ETH, entities.OpWithdraw, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := r.BuildQuote(tt.from, tt.to, account)
			require.NotNil(t, q)
			require.Equal(t, 1, q.Route().Len())

			fwd, err := q.QuoteForward(ctx, units(5), account, 0.05)
			require.NoError(t, err)
			assert.Equal(t, units(5), fwd.Amount)
			assert.Equal(t, units(5), fwd.AmountWithSlippage)

			rev, err := q.QuoteReverse(ctx, units(5), account, 0.05)
			require.NoError(t, err)
			assert.Equal(t, units(5), rev.Amount)
			assert.Equal(t, units(5), rev.AmountWithSlippage)

			require.True(t, rev.Plan.IsDirect())
			assert.Equal(t, tt.kind, rev.Plan.Direct.Kind)
			assert.Equal(t, entities.WETH.Address, rev.Call.To)
			if tt.value {
				assert.Equal(t, units(5), rev.Plan.Value)
				assert.Equal(t, units(5), rev.Call.Value)
			} else {
				assert.Zero(t, rev.Plan.Value.Sign())
			}
		})
	}
}

func TestSingleWrapToOtherRecipient(t *testing.T) {
	allowances := &MockAllowances{allowance: big.NewInt(0)}
	r := newTestRouter(t, testDeps{pools: NewMockPools(), allowances: allowances})
	ctx := context.Background()

	t.Run("wrap", func(t *testing.T) {
		res, err := r.BuildQuote(entities.ETH, entities.WETH, account).QuoteForward(ctx, units(5), recipient, 0.01)
		require.NoError(t, err)

		plan := res.Plan
		require.False(t, plan.IsDirect())
		assert.Equal(t, []entities.OpKind{entities.OpDeposit, entities.OpTransfer}, opKinds(plan))
		assert.Equal(t, units(5), plan.Value)

		_, args := decode(t, "token", plan.Operations[1].Data)
		assert.Equal(t, recipient, args[0], "wrapped tokens are forwarded to the recipient")
		assert.Equal(t, units(5), args[1])

		assert.Equal(t, depot, res.Call.To)
		assert.Equal(t, units(5), res.Call.Value)
		assert.Nil(t, res.Approval, "native input needs no allowance")
	})

	t.Run("unwrap", func(t *testing.T) {
		res, err := r.BuildQuote(entities.WETH, entities.ETH, account).QuoteReverse(ctx, units(5), recipient, 0.01)
		require.NoError(t, err)

		plan := res.Plan
		require.False(t, plan.IsDirect())
		assert.Equal(t, []entities.OpKind{
			entities.OpTransferToken, entities.OpTransfer, entities.OpUnwrapAndSend,
		}, opKinds(plan))
		assert.Zero(t, plan.Value.Sign())

		_, args := decode(t, "depot", plan.Operations[0].Data)
		assert.Equal(t, entities.WETH.Address, args[0])
		assert.Equal(t, pipeline, args[1])
		assert.Equal(t, units(5), args[2])

		_, args = decode(t, "token", plan.Operations[1].Data)
		assert.Equal(t, junction, args[0])
		assert.Equal(t, units(5), args[1])

		_, args = decode(t, "junction", plan.Operations[2].Data)
		assert.Equal(t, recipient, args[0], "ether is sent to the recipient")

		require.NotNil(t, res.Approval)
		assert.Equal(t, depot, res.Approval.Spender)
		assert.Equal(t, units(5), res.Approval.Amount)
	})

	t.Run("caller as recipient stays direct", func(t *testing.T) {
		res, err := r.BuildQuote(entities.WETH, entities.ETH, account).QuoteForward(ctx, units(5), account, 0.01)
		require.NoError(t, err)
		require.True(t, res.Plan.IsDirect())
		assert.Equal(t, entities.OpWithdraw, res.Plan.Direct.Kind)
		assert.Nil(t, res.Approval)
	})
}

func TestForwardNativeStartPlan(t *testing.T) {
	pools := NewMockPools()
	pools.SetRate(beanWeth, 3000, 1)
	r := newTestRouter(t, testDeps{pools: pools})

	q := r.BuildQuote(entities.ETH, entities.BEAN, account)
	res, err := q.QuoteForward(context.Background(), units(2), recipient, 0.01)
	require.NoError(t, err)

	plan := res.Plan
	assert.Equal(t, []entities.OpKind{entities.OpDeposit, entities.OpTransfer, entities.OpShift}, opKinds(plan))
	assert.Zero(t, plan.Count(entities.OpTransferToken))
	assert.Equal(t, units(2), plan.Value)
	assert.Equal(t, units(2), plan.Operations[0].Value)

	_, args := decode(t, "token", plan.Operations[1].Data)
	assert.Equal(t, beanWeth.Address, args[0])
	assert.Equal(t, units(2), args[1])

	_, args = decode(t, "well", plan.Operations[2].Data)
	assert.Equal(t, res.AmountWithSlippage, args[1])
	assert.Equal(t, recipient, args[2])

	assert.Equal(t, units(2), res.Call.Value)
	method, err := contracts.DepotABI.MethodById(res.Call.Data[:4])
	require.NoError(t, err)
	assert.Equal(t, "advancedPipe", method.Name, "a single batch is not wrapped in farm")
}

func TestForwardNativeEndPlan(t *testing.T) {
	pools := NewMockPools()
	pools.SetRate(beanWeth, 1, 4)
	r := newTestRouter(t, testDeps{pools: pools})

	q := r.BuildQuote(entities.BEAN, entities.ETH, account)
	res, err := q.QuoteForward(context.Background(), units(400), recipient, 0.01)
	require.NoError(t, err)

	assert.Equal(t, units(100), res.Amount)
	assert.Equal(t, units(99), res.AmountWithSlippage, "unwrap keeps the swap's minimum")

	plan := res.Plan
	assert.Equal(t, []entities.OpKind{
		entities.OpTransferToken, entities.OpShift, entities.OpTransfer, entities.OpUnwrapAndSend,
	}, opKinds(plan))

	_, args := decode(t, "well", plan.Operations[1].Data)
	assert.Equal(t, units(99), args[1], "minimum sits on the last pool swap")
	assert.Equal(t, pipeline, args[2])

	transfer := plan.Operations[2]
	require.NotNil(t, transfer.Copy)
	assert.Equal(t, entities.CopyOutput{FromStep: 1, CopySlot: 0, PasteSlot: 1}, *transfer.Copy)
	_, args = decode(t, "token", transfer.Data)
	assert.Equal(t, junction, args[0])

	_, args = decode(t, "junction", plan.Operations[3].Data)
	assert.Equal(t, recipient, args[0])
}

func TestReverseNativeStartPlan(t *testing.T) {
	pools := NewMockPools()
	pools.SetRate(beanWeth, 3000, 1)
	r := newTestRouter(t, testDeps{pools: pools})

	q := r.BuildQuote(entities.ETH, entities.BEAN, account)
	res, err := q.QuoteReverse(context.Background(), units(3000), recipient, 0.01)
	require.NoError(t, err)

	assert.Equal(t, "1010000000000000000", res.AmountWithSlippage.String())
	plan := res.Plan
	assert.Equal(t, []entities.OpKind{
		entities.OpDeposit, entities.OpApprove, entities.OpSwapTo,
		entities.OpBalanceOf, entities.OpTransfer,
	}, opKinds(plan))
	assert.Equal(t, res.AmountWithSlippage, plan.Value)

	_, args := decode(t, "well", plan.Operations[2].Data)
	assert.Equal(t, res.AmountWithSlippage, args[2])
	assert.Equal(t, units(3000), args[3])
	assert.Equal(t, recipient, args[4])

	// unspent ETH comes back wrapped
	assertRefund(t, plan, 3, entities.WETH.Address, account)
}

func TestApproval(t *testing.T) {
	pools := NewMockPools()
	ctx := context.Background()

	t.Run("single hop approves the pool", func(t *testing.T) {
		tx := &MockTransactor{}
		allowances := &MockAllowances{allowance: big.NewInt(0)}
		r := newTestRouter(t, testDeps{pools: pools, tx: tx, allowances: allowances})

		res, err := r.BuildQuote(tokenA, tokenB, account).QuoteForward(ctx, units(1), recipient, 0.01)
		require.NoError(t, err)
		require.NotNil(t, res.Approval)
		require.NotNil(t, res.ExecuteApproval)
		assert.Equal(t, poolAB.Address, res.Approval.Spender)
		assert.Equal(t, tokenA.Address, res.Approval.Call.To)

		_, args := decode(t, "token", res.Approval.Call.Data)
		assert.Equal(t, poolAB.Address, args[0])
		assert.Equal(t, units(1), args[1])

		_, err = res.ExecuteApproval(ctx)
		require.NoError(t, err)
		_, err = res.ExecuteSwap(ctx)
		require.NoError(t, err)
		require.Len(t, tx.sent, 2)
		assert.Equal(t, res.Call, tx.sent[1])
	})

	t.Run("multi hop reverse approves the depot for the worst-case input", func(t *testing.T) {
		allowances := &MockAllowances{allowance: big.NewInt(0)}
		r := newTestRouter(t, testDeps{pools: pools, allowances: allowances})

		res, err := r.BuildQuote(tokenA, tokenC, account).QuoteReverse(ctx, units(1), recipient, 0.5)
		require.NoError(t, err)
		require.NotNil(t, res.Approval)
		assert.Equal(t, depot, res.Approval.Spender)
		assert.Equal(t, res.AmountWithSlippage, res.Approval.Amount)
	})

	t.Run("enough allowance", func(t *testing.T) {
		allowances := &MockAllowances{allowance: units(10)}
		r := newTestRouter(t, testDeps{pools: pools, allowances: allowances})

		res, err := r.BuildQuote(tokenA, tokenB, account).QuoteForward(ctx, units(10), recipient, 0)
		require.NoError(t, err)
		assert.Nil(t, res.Approval)
		assert.Nil(t, res.ExecuteApproval)
	})

	t.Run("native input is never approved", func(t *testing.T) {
		allowances := &MockAllowances{allowance: big.NewInt(0)}
		r := newTestRouter(t, testDeps{pools: pools, allowances: allowances})

		res, err := r.BuildQuote(entities.ETH, entities.BEAN, account).QuoteForward(ctx, units(1), recipient, 0)
		require.NoError(t, err)
		assert.Nil(t, res.ExecuteApproval)
		assert.Zero(t, allowances.calls)
	})
}

func TestApprovalCheckerReadError(t *testing.T) {
	boom := errors.New("rpc down")
	checker := NewApprovalChecker(&MockAllowances{err: boom})

	_, err := checker.Check(context.Background(), tokenA, units(1), depot, account)
	assert.ErrorIs(t, err, boom)
}

func TestConcurrentQuotesOnOneRoute(t *testing.T) {
	pools := NewMockPools()
	pools.SetRate(poolAB, 98, 100)
	r := newTestRouter(t, testDeps{pools: pools})
	q := r.BuildQuote(tokenA, tokenC, account)

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			var err error
			if i%2 == 0 {
				_, err = q.QuoteForward(context.Background(), units(int64(i+1)), recipient, 0.01)
			} else {
				_, err = q.QuoteReverse(context.Background(), units(int64(i+1)), recipient, 0.01)
			}
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	assert.Len(t, q.HopQuotes(), 2)
}

func TestApplySlippage(t *testing.T) {
	tests := []struct {
		name     string
		amount   int64
		slippage float64
		dir      Direction
		want     int64
	}{
		{"forward rounds down", 999, 0.005, Forward, 994},
		{"reverse rounds up", 999, 0.005, Reverse, 1004},
		{"zero slippage forward", 98, 0, Forward, 98},
		{"zero slippage reverse", 98, 0, Reverse, 98},
		{"exact forward", 1_000_000, 0.01, Forward, 990_000},
		{"exact reverse", 1_000_000, 0.01, Reverse, 1_010_000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ppm, err := slippagePPM(tt.slippage)
			require.NoError(t, err)
			got := applySlippage(big.NewInt(tt.amount), ppm, tt.dir)
			assert.Equal(t, tt.want, got.Int64())
		})
	}
}

func TestSlippageNearOneNeverZeroesTheBound(t *testing.T) {
	_, err := slippagePPM(0.9999996)
	assert.ErrorIs(t, err, ErrInvalidSlippage)

	ppm, err := slippagePPM(0.999999)
	require.NoError(t, err)
	assert.Equal(t, int64(999_999), ppm)
	assert.Equal(t, units(100).Div(units(100), big.NewInt(1_000_000)), applySlippage(units(100), ppm, Forward))
}
