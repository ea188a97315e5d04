package services

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/bimakw/swap-router/internal/domain/entities"
	"github.com/bimakw/swap-router/internal/infrastructure/contracts"
)

var (
	ErrDirectionMismatch = errors.New("plan direction does not match the last quote")
	ErrEmptyRoute        = errors.New("route has no hops")
)

// PlanBuilder turns a quoted route into settlement operations
type PlanBuilder struct {
	depot    common.Address
	pipeline common.Address
}

func NewPlanBuilder(depot, pipeline common.Address) *PlanBuilder {
	return &PlanBuilder{depot: depot, pipeline: pipeline}
}

// Prepare builds the plan for the quote's last chain. dir must match the
// direction that chain ran in.
func (b *PlanBuilder) Prepare(q *Quote, dir Direction, recipient common.Address, deadline *big.Int) (*entities.Plan, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return b.prepare(q, dir, recipient, deadline)
}

func (b *PlanBuilder) prepare(q *Quote, dir Direction, recipient common.Address, deadline *big.Int) (*entities.Plan, error) {
	if q.route.IsEmpty() {
		return nil, ErrEmptyRoute
	}
	if q.direction == 0 {
		return nil, ErrNotQuoted
	}
	if dir != q.direction {
		return nil, fmt.Errorf("%w: preparing %s, last quoted %s", ErrDirectionMismatch, dir, q.direction)
	}

	if len(q.steps) == 1 {
		if _, priced := q.steps[0].(*PoolSwap); !priced && recipient != q.account {
			ops, err := b.passthroughTo(q, recipient, deadline)
			if err != nil {
				return nil, err
			}
			return &entities.Plan{Operations: ops, Value: sumValues(ops)}, nil
		}

		op, err := q.steps[0].BuildSingle(q.states[0], recipient, deadline)
		if err != nil {
			return nil, err
		}
		value := new(big.Int)
		if op.Value != nil {
			value.Set(op.Value)
		}
		return &entities.Plan{Direct: &op, Value: value}, nil
	}

	var (
		ops []entities.Operation
		err error
	)
	if dir == Forward {
		ops, err = b.forward(q, recipient)
	} else {
		ops, err = b.reverse(q, recipient, deadline)
	}
	if err != nil {
		return nil, err
	}

	return &entities.Plan{Operations: ops, Value: sumValues(ops)}, nil
}

func sumValues(ops []entities.Operation) *big.Int {
	value := new(big.Int)
	for _, op := range ops {
		if op.Value != nil {
			value.Add(value, op.Value)
		}
	}
	return value
}

// passthroughTo builds a lone wrap or unwrap whose output goes to someone
// other than the caller. deposit and withdraw only pay msg.sender, so the
// hop runs inside Pipeline and forwards the result to recipient.
func (b *PlanBuilder) passthroughTo(q *Quote, recipient common.Address, deadline *big.Int) ([]entities.Operation, error) {
	step, state := q.steps[0], q.states[0]
	amount := state.Input()

	switch hop := step.Hop(); hop.Kind {
	case entities.HopWrapNative:
		built, err := step.BuildChained(state, recipient, nil)
		if err != nil {
			return nil, err
		}
		return appendResolved(nil, built), nil

	case entities.HopUnwrapNative:
		if err := requireQuoted(step, state); err != nil {
			return nil, err
		}
		data, err := contracts.PackTransferToken(hop.From.Address, b.pipeline, amount)
		if err != nil {
			return nil, err
		}
		ops := []entities.Operation{{
			Kind:   entities.OpTransferToken,
			Via:    entities.ViaDepot,
			Target: b.depot,
			Data:   data,
		}}
		built, err := step.BuildChainedReverse(state, recipient, amount, amount, deadline)
		if err != nil {
			return nil, err
		}
		return appendResolved(ops, built), nil

	default:
		return nil, fmt.Errorf("%s: %w", hop.Kind, ErrUnknownHop)
	}
}

// forward moves the input into the first well and shifts it through every
// later one. Only the last priced hop carries a minimum output.
func (b *PlanBuilder) forward(q *Quote, recipient common.Address) ([]entities.Operation, error) {
	var ops []entities.Operation
	first := q.route.First()

	if !first.From.IsNative {
		if first.Kind != entities.HopPoolSwap {
			return nil, fmt.Errorf("route %s must start with a pool swap", q.route)
		}
		data, err := contracts.PackTransferToken(first.From.Address, first.Pool.Address, q.states[0].Amount)
		if err != nil {
			return nil, err
		}
		ops = append(ops, entities.Operation{
			Kind:   entities.OpTransferToken,
			Via:    entities.ViaDepot,
			Target: b.depot,
			Data:   data,
		})
	}

	boundaryHop := lastPricedHop(q.steps)
	for i, step := range q.steps {
		boundary := new(big.Int)
		if i == boundaryHop {
			boundary.Set(q.amountWithSlippage)
		}

		built, err := step.BuildChained(q.states[i], b.forwardRecipient(q.route, i, recipient), boundary)
		if err != nil {
			return nil, err
		}
		ops = appendResolved(ops, built)
	}
	return ops, nil
}

// forwardRecipient is where hop i sends its output: the next well, Pipeline
// when the next hop unwraps, or the final recipient
func (b *PlanBuilder) forwardRecipient(route *entities.Route, i int, recipient common.Address) common.Address {
	if i == route.Len()-1 {
		return recipient
	}
	next := route.Hop(i + 1)
	if next.Kind == entities.HopPoolSwap {
		return next.Pool.Address
	}
	return b.pipeline
}

// reverse funds Pipeline with the worst-case input, then lets every hop pull
// what it needs for its exact output
func (b *PlanBuilder) reverse(q *Quote, recipient common.Address, deadline *big.Int) ([]entities.Operation, error) {
	var ops []entities.Operation
	first := q.route.First()
	last := len(q.steps) - 1

	if !first.From.IsNative {
		data, err := contracts.PackTransferToken(first.From.Address, b.pipeline, q.states[0].QuotedWithSlippage)
		if err != nil {
			return nil, err
		}
		ops = append(ops, entities.Operation{
			Kind:   entities.OpTransferToken,
			Via:    entities.ViaDepot,
			Target: b.depot,
			Data:   data,
		})
	}

	for i, step := range q.steps {
		next := b.pipeline
		desiredOut := q.requested
		if i < last {
			desiredOut = q.states[i+1].QuotedWithSlippage
		} else {
			next = recipient
		}

		built, err := step.BuildChainedReverse(q.states[i], next, q.states[i].QuotedWithSlippage, desiredOut, deadline)
		if err != nil {
			return nil, err
		}
		ops = appendResolved(ops, built)
	}

	refundTo := q.account
	if refundTo == (common.Address{}) {
		refundTo = recipient
	}
	return b.refundLeftovers(ops, q.steps, refundTo)
}

// refundLeftovers returns what each swapTo did not pull from Pipeline. Every
// pool input is funded at its worst case, so Pipeline may keep a remainder of
// each; its balance is read and pasted into a transfer back to refundTo.
func (b *PlanBuilder) refundLeftovers(ops []entities.Operation, steps []Step, refundTo common.Address) ([]entities.Operation, error) {
	seen := make(map[common.Address]bool)
	for _, step := range steps {
		if _, priced := step.(*PoolSwap); !priced {
			continue
		}
		token := step.Hop().From.Address
		if seen[token] {
			continue
		}
		seen[token] = true

		balance, err := contracts.PackBalanceOf(b.pipeline)
		if err != nil {
			return nil, err
		}
		transfer, err := contracts.PackTransfer(refundTo, new(big.Int))
		if err != nil {
			return nil, err
		}

		from := len(ops)
		ops = append(ops,
			entities.Operation{Kind: entities.OpBalanceOf, Via: entities.ViaPipeline, Target: token, Data: balance},
			entities.Operation{
				Kind:   entities.OpTransfer,
				Via:    entities.ViaPipeline,
				Target: token,
				Data:   transfer,
				Copy:   &entities.CopyOutput{FromStep: from, CopySlot: 0, PasteSlot: 1},
			},
		)
	}
	return ops, nil
}

// appendResolved appends a hop's operations, turning relative clipboard
// sources into plan indexes
func appendResolved(ops, built []entities.Operation) []entities.Operation {
	base := len(ops)
	for _, op := range built {
		if op.Copy != nil && op.Copy.FromStep < 0 {
			cp := *op.Copy
			cp.FromStep += base
			op.Copy = &cp
		}
		ops = append(ops, op)
	}
	return ops
}

// lastPricedHop is the index of the last pool swap. Wraps after it are 1:1,
// so the route's minimum output is enforced there.
func lastPricedHop(steps []Step) int {
	for i := len(steps) - 1; i >= 0; i-- {
		if _, ok := steps[i].(*PoolSwap); ok {
			return i
		}
	}
	return len(steps) - 1
}
