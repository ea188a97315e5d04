package services

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"

	"github.com/bimakw/swap-router/internal/domain/entities"
	"github.com/bimakw/swap-router/internal/infrastructure/contracts"
	"github.com/bimakw/swap-router/internal/metrics"
)

// QuoteResult is a quoted, ready-to-send swap. FullAmount is the route at zero
// slippage and is for display only. ExecuteApproval is nil when the current
// allowance already covers the input.
type QuoteResult struct {
	Direction          Direction      `json:"direction"`
	Amount             *big.Int       `json:"amount"`
	AmountWithSlippage *big.Int       `json:"amountWithSlippage"`
	FullAmount         *big.Int       `json:"fullAmount"`
	GasEstimate        uint64         `json:"gasEstimate"`
	Deadline           *big.Int       `json:"deadline"`
	Plan               *entities.Plan `json:"plan"`
	Call               entities.Call  `json:"call"`
	Approval           *Approval      `json:"approval,omitempty"`

	ExecuteSwap     func(ctx context.Context) (common.Hash, error) `json:"-"`
	ExecuteApproval func(ctx context.Context) (common.Hash, error) `json:"-"`
}

// Quote drives quoting and plan building for one route and one account.
// Calls on the same Quote are serialised; distinct quotes share nothing
// mutable.
type Quote struct {
	mu sync.Mutex

	route     *entities.Route
	steps     []Step
	account   common.Address
	env       *stepEnv
	builder   *PlanBuilder
	approvals *ApprovalChecker
	depot     common.Address

	// state of the last successful chain
	states             []StepQuote
	direction          Direction
	requested          *big.Int
	amount             *big.Int
	amountWithSlippage *big.Int
	fullAmount         *big.Int
}

func newQuote(route *entities.Route, account common.Address, env *stepEnv, builder *PlanBuilder, approvals *ApprovalChecker, depot common.Address) (*Quote, error) {
	steps := make([]Step, 0, route.Len())
	for _, hop := range route.Hops() {
		step, err := newStep(hop, env)
		if err != nil {
			return nil, err
		}
		steps = append(steps, step)
	}
	return &Quote{
		route:     route,
		steps:     steps,
		account:   account,
		env:       env,
		builder:   builder,
		approvals: approvals,
		depot:     depot,
		states:    make([]StepQuote, len(steps)),
	}, nil
}

func (q *Quote) Route() *entities.Route { return q.route }

func (q *Quote) Account() common.Address { return q.account }

// Direction returns the direction of the last chain, zero before any
func (q *Quote) Direction() Direction {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.direction
}

// HopQuotes returns a copy of the per-hop state of the last chain
func (q *Quote) HopQuotes() []StepQuote {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]StepQuote, len(q.states))
	copy(out, q.states)
	return out
}

// QuoteForward quotes selling exactly amount of the route's first token
func (q *Quote) QuoteForward(ctx context.Context, amount *big.Int, recipient common.Address, slippage float64) (*QuoteResult, error) {
	return q.run(ctx, Forward, amount, recipient, slippage)
}

// QuoteReverse quotes buying exactly amount of the route's last token
func (q *Quote) QuoteReverse(ctx context.Context, amount *big.Int, recipient common.Address, slippage float64) (*QuoteResult, error) {
	return q.run(ctx, Reverse, amount, recipient, slippage)
}

func (q *Quote) run(ctx context.Context, dir Direction, amount *big.Int, recipient common.Address, slippage float64) (*QuoteResult, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	start := time.Now()
	result, err := q.runLocked(ctx, dir, amount, recipient, slippage)
	metrics.QuoteDuration.WithLabelValues(dir.String()).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.QuoteRequests.WithLabelValues(dir.String(), "error").Inc()
		return nil, err
	}
	metrics.QuoteRequests.WithLabelValues(dir.String(), "ok").Inc()
	return result, nil
}

func (q *Quote) runLocked(ctx context.Context, dir Direction, amount *big.Int, recipient common.Address, slippage float64) (*QuoteResult, error) {
	if err := q.chain(ctx, amount, dir, slippage, recipient); err != nil {
		return nil, err
	}

	deadline := q.env.deadline()
	plan, err := q.builder.prepare(q, dir, recipient, deadline)
	if err != nil {
		return nil, fmt.Errorf("build plan: %w", err)
	}
	call, err := contracts.EncodePlan(plan, q.depot)
	if err != nil {
		return nil, fmt.Errorf("encode plan: %w", err)
	}

	gas := q.states[0].GasEstimate
	if !plan.IsDirect() {
		gas = q.estimatePlanGas(ctx, call)
	}

	approval, err := q.checkApproval(ctx, plan)
	if err != nil {
		return nil, err
	}

	result := &QuoteResult{
		Direction:          dir,
		Amount:             new(big.Int).Set(q.amount),
		AmountWithSlippage: new(big.Int).Set(q.amountWithSlippage),
		FullAmount:         new(big.Int).Set(q.fullAmount),
		GasEstimate:        gas,
		Deadline:           deadline,
		Plan:               plan,
		Call:               call,
		Approval:           approval,
		ExecuteSwap:        q.sender("swap", call),
	}
	if approval != nil {
		result.ExecuteApproval = q.sender("approval", approval.Call)
	}
	return result, nil
}

// chain quotes every hop in order and records the result. Forward feeds each
// hop's raw output into the next hop. Reverse walks from the last hop and
// targets each earlier hop at the slippage-adjusted input of the hop after it.
// State is only replaced when every hop quoted successfully.
func (q *Quote) chain(ctx context.Context, amount *big.Int, dir Direction, slippage float64, recipient common.Address) error {
	if _, err := validateQuoteArgs(amount, dir, slippage); err != nil {
		return err
	}
	if q.route.IsEmpty() {
		return ErrEmptyRoute
	}

	states := make([]StepQuote, len(q.steps))
	var final, finalWithSlippage, full *big.Int

	switch dir {
	case Forward:
		next := amount
		for i, step := range q.steps {
			sq, err := step.Quote(ctx, next, Forward, slippage, recipient)
			if err != nil {
				return hopError(step, err)
			}
			states[i] = sq
			next = sq.Quoted

			// 1:1 hops after a swap keep that swap's minimum
			if _, priced := step.(*PoolSwap); priced || finalWithSlippage == nil {
				finalWithSlippage = sq.QuotedWithSlippage
			}
		}
		final = next
		full = next

	case Reverse:
		target := amount
		for i := len(q.steps) - 1; i >= 0; i-- {
			sq, err := q.steps[i].Quote(ctx, target, Reverse, slippage, recipient)
			if err != nil {
				return hopError(q.steps[i], err)
			}
			states[i] = sq
			target = sq.QuotedWithSlippage
		}
		final = states[0].Quoted
		finalWithSlippage = states[0].QuotedWithSlippage
		full = final
		if len(q.steps) > 1 {
			var err error
			if full, err = q.rawChain(ctx, amount, Reverse); err != nil {
				return err
			}
		}
	}

	q.states = states
	q.direction = dir
	q.requested = new(big.Int).Set(amount)
	q.amount = final
	q.amountWithSlippage = finalWithSlippage
	q.fullAmount = full

	q.env.log.Debug().
		Str("route", q.route.String()).
		Str("direction", dir.String()).
		Str("amount", final.String()).
		Str("amount_with_slippage", finalWithSlippage.String()).
		Msg("route quoted")
	return nil
}

// rawChain runs the route with no slippage and records nothing
func (q *Quote) rawChain(ctx context.Context, amount *big.Int, dir Direction) (*big.Int, error) {
	current := amount
	for i := range q.steps {
		step := q.steps[i]
		if dir == Reverse {
			step = q.steps[len(q.steps)-1-i]
		}
		next, err := step.quoteRaw(ctx, current, dir)
		if err != nil {
			return nil, hopError(step, err)
		}
		current = next
	}
	return current, nil
}

// Rate returns the raw forward output for amountIn. It touches no quote state
// and builds no plan.
func (q *Quote) Rate(ctx context.Context, amountIn *big.Int) (*big.Int, error) {
	if amountIn == nil || amountIn.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	return q.rawChain(ctx, amountIn, Forward)
}

func hopError(step Step, err error) error {
	h := step.Hop()
	return fmt.Errorf("quote %s %s -> %s: %w", h.Kind, h.From, h.To, err)
}

func (q *Quote) estimatePlanGas(ctx context.Context, call entities.Call) uint64 {
	if q.env.tx == nil || q.account == (common.Address{}) {
		return 0
	}
	gas, err := q.env.tx.EstimateGas(ctx, ethereum.CallMsg{
		From:  q.account,
		To:    &call.To,
		Data:  call.Data,
		Value: call.Value,
	})
	if err != nil {
		metrics.GasEstimateFailures.WithLabelValues("plan").Inc()
		q.env.log.Debug().Err(err).Str("route", q.route.String()).Msg("plan gas estimate failed, recording 0")
		return 0
	}
	return gas
}

// checkApproval asks for an allowance on the input token. A direct pool swap
// is approved to the pool and any Depot plan to the Depot. Direct wraps and
// unwraps need none.
func (q *Quote) checkApproval(ctx context.Context, plan *entities.Plan) (*Approval, error) {
	if q.approvals == nil || q.account == (common.Address{}) {
		return nil, nil
	}

	first := q.route.First()
	spender := q.depot
	if plan.IsDirect() {
		if first.Kind != entities.HopPoolSwap {
			return nil, nil
		}
		spender = first.Pool.Address
	}
	return q.approvals.Check(ctx, first.From, q.states[0].Input(), spender, q.account)
}

func (q *Quote) sender(kind string, call entities.Call) func(ctx context.Context) (common.Hash, error) {
	return func(ctx context.Context) (common.Hash, error) {
		if q.env.tx == nil {
			return common.Hash{}, fmt.Errorf("send %s: no transactor configured", kind)
		}
		hash, err := q.env.tx.SendTransaction(ctx, q.account, call)
		if err != nil {
			metrics.TransactionsSent.WithLabelValues(kind, "error").Inc()
			return common.Hash{}, fmt.Errorf("send %s: %w", kind, err)
		}
		metrics.TransactionsSent.WithLabelValues(kind, "ok").Inc()
		q.env.log.Info().
			Str("kind", kind).
			Str("tx", hash.Hex()).
			Str("route", q.route.String()).
			Msg("transaction sent")
		return hash, nil
	}
}
