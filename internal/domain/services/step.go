package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	"github.com/bimakw/swap-router/internal/domain/entities"
	"github.com/bimakw/swap-router/internal/infrastructure/contracts"
	"github.com/bimakw/swap-router/internal/metrics"
)

// Direction says which side of a swap is fixed. Forward fixes the input,
// Reverse fixes the output. The zero value means no quote has run.
type Direction uint8

const (
	Forward Direction = iota + 1
	Reverse
)

func (d Direction) String() string {
	switch d {
	case Forward:
		return "forward"
	case Reverse:
		return "reverse"
	default:
		return "unquoted"
	}
}

// ParseDirection accepts "forward" or "reverse", case-insensitive
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(s) {
	case "forward", "":
		return Forward, nil
	case "reverse":
		return Reverse, nil
	default:
		return 0, fmt.Errorf("unknown direction %q", s)
	}
}

var (
	ErrNotQuoted       = errors.New("quote must run before building")
	ErrInvalidSlippage = errors.New("slippage must be a fraction in [0, 1)")
	ErrInvalidAmount   = errors.New("amount must be positive")
	ErrUnknownHop      = errors.New("unknown hop kind")
)

const slippageScale = 1_000_000

func slippagePPM(slippage float64) (int64, error) {
	if math.IsNaN(slippage) || slippage < 0 || slippage >= 1 {
		return 0, fmt.Errorf("%w: got %v", ErrInvalidSlippage, slippage)
	}
	ppm := int64(math.Round(slippage * slippageScale))
	if ppm >= slippageScale {
		return 0, fmt.Errorf("%w: %v rounds to 100%%", ErrInvalidSlippage, slippage)
	}
	return ppm, nil
}

// applySlippage lowers an output bound (forward, rounded down) or raises an
// input bound (reverse, rounded up)
func applySlippage(amount *big.Int, ppm int64, dir Direction) *big.Int {
	scale := big.NewInt(slippageScale)
	out := new(big.Int)
	if dir == Forward {
		out.Mul(amount, big.NewInt(slippageScale-ppm))
		return out.Div(out, scale)
	}
	out.Mul(amount, big.NewInt(slippageScale+ppm))
	out.Add(out, big.NewInt(slippageScale-1))
	return out.Div(out, scale)
}

// StepQuote is the quoted state of one hop. It is produced by Step.Quote and
// handed back to the build methods; a zero StepQuote is unquoted. Amount is
// what the quote was asked for: the input on a forward quote, the desired
// output on a reverse one.
type StepQuote struct {
	Direction          Direction `json:"direction"`
	Amount             *big.Int  `json:"amount"`
	Quoted             *big.Int  `json:"quoted"`
	QuotedWithSlippage *big.Int  `json:"quotedWithSlippage"`
	GasEstimate        uint64    `json:"gasEstimate"`
}

func (q StepQuote) IsQuoted() bool {
	return q.Direction != 0
}

// Input is the amount the hop may consume at execution
func (q StepQuote) Input() *big.Int {
	if q.Direction == Reverse {
		return q.QuotedWithSlippage
	}
	return q.Amount
}

// Step quotes and builds one hop of a route. The set of implementations is
// closed: PoolSwap, WrapNative and UnwrapNative.
type Step interface {
	Hop() entities.Hop
	Quote(ctx context.Context, amount *big.Int, dir Direction, slippage float64, recipient common.Address) (StepQuote, error)
	BuildSingle(q StepQuote, recipient common.Address, deadline *big.Int) (entities.Operation, error)
	BuildChained(q StepQuote, nextRecipient common.Address, boundaryAmount *big.Int) ([]entities.Operation, error)
	BuildChainedReverse(q StepQuote, nextRecipient common.Address, maxAmountIn, desiredAmountOut, deadline *big.Int) ([]entities.Operation, error)

	// quoteRaw returns the hop's quote with no slippage and no side effects
	quoteRaw(ctx context.Context, amount *big.Int, dir Direction) (*big.Int, error)
}

// stepEnv is what every step of one quote shares
type stepEnv struct {
	pools          PoolClient
	tx             Transactor
	account        common.Address
	junction       common.Address
	deadlineWindow time.Duration
	now            func() time.Time
	log            zerolog.Logger
}

func (e *stepEnv) deadline() *big.Int {
	return big.NewInt(e.now().Add(e.deadlineWindow).Unix())
}

func newStep(hop entities.Hop, env *stepEnv) (Step, error) {
	switch hop.Kind {
	case entities.HopPoolSwap:
		return &PoolSwap{hop: hop, env: env}, nil
	case entities.HopWrapNative:
		return &WrapNative{hop: hop}, nil
	case entities.HopUnwrapNative:
		return &UnwrapNative{hop: hop, junction: env.junction}, nil
	default:
		return nil, fmt.Errorf("%s -> %s: %w", hop.From, hop.To, ErrUnknownHop)
	}
}

func validateQuoteArgs(amount *big.Int, dir Direction, slippage float64) (int64, error) {
	ppm, err := slippagePPM(slippage)
	if err != nil {
		return 0, err
	}
	if amount == nil || amount.Sign() <= 0 {
		return 0, ErrInvalidAmount
	}
	if dir != Forward && dir != Reverse {
		return 0, fmt.Errorf("invalid direction %d", dir)
	}
	return ppm, nil
}

func requireQuoted(s Step, q StepQuote) error {
	if !q.IsQuoted() {
		h := s.Hop()
		return fmt.Errorf("%s %s -> %s: %w", h.Kind, h.From, h.To, ErrNotQuoted)
	}
	return nil
}

func orZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}

// PoolSwap trades through a well
type PoolSwap struct {
	hop entities.Hop
	env *stepEnv
}

func (s *PoolSwap) Hop() entities.Hop { return s.hop }

func (s *PoolSwap) quoteRaw(ctx context.Context, amount *big.Int, dir Direction) (*big.Int, error) {
	if dir == Reverse {
		return s.env.pools.GetSwapIn(ctx, s.hop.Pool, s.hop.From, s.hop.To, amount)
	}
	return s.env.pools.GetSwapOut(ctx, s.hop.Pool, s.hop.From, s.hop.To, amount)
}

func (s *PoolSwap) Quote(ctx context.Context, amount *big.Int, dir Direction, slippage float64, recipient common.Address) (StepQuote, error) {
	ppm, err := validateQuoteArgs(amount, dir, slippage)
	if err != nil {
		return StepQuote{}, err
	}

	raw, err := s.quoteRaw(ctx, amount, dir)
	if err != nil {
		return StepQuote{}, err
	}

	q := StepQuote{
		Direction:          dir,
		Amount:             new(big.Int).Set(amount),
		Quoted:             raw,
		QuotedWithSlippage: applySlippage(raw, ppm, dir),
	}
	q.GasEstimate = s.estimateGas(ctx, q, recipient)
	return q, nil
}

// estimateGas prices the hop as a standalone swap. Any failure yields 0.
func (s *PoolSwap) estimateGas(ctx context.Context, q StepQuote, recipient common.Address) uint64 {
	if s.env.tx == nil || s.env.account == (common.Address{}) {
		return 0
	}

	op, err := s.BuildSingle(q, recipient, s.env.deadline())
	if err != nil {
		return 0
	}

	gas, err := s.env.tx.EstimateGas(ctx, ethereum.CallMsg{
		From: s.env.account,
		To:   &op.Target,
		Data: op.Data,
	})
	if err != nil {
		metrics.GasEstimateFailures.WithLabelValues("hop").Inc()
		s.env.log.Debug().
			Err(err).
			Str("pool", s.hop.Pool.Address.Hex()).
			Str("direction", q.Direction.String()).
			Msg("hop gas estimate failed, recording 0")
		return 0
	}
	return gas
}

func (s *PoolSwap) BuildSingle(q StepQuote, recipient common.Address, deadline *big.Int) (entities.Operation, error) {
	if err := requireQuoted(s, q); err != nil {
		return entities.Operation{}, err
	}

	op := entities.Operation{Target: s.hop.Pool.Address}
	var err error
	if q.Direction == Forward {
		op.Kind = entities.OpSwapFrom
		op.Data, err = contracts.PackSwapFrom(s.hop.From.Address, s.hop.To.Address, q.Amount, q.QuotedWithSlippage, recipient, deadline)
	} else {
		op.Kind = entities.OpSwapTo
		op.Data, err = contracts.PackSwapTo(s.hop.From.Address, s.hop.To.Address, q.QuotedWithSlippage, q.Amount, recipient, deadline)
	}
	if err != nil {
		return entities.Operation{}, err
	}
	return op, nil
}

// BuildChained shifts whatever the well received into the next recipient. The
// tokens must already sit in the well when the call runs.
func (s *PoolSwap) BuildChained(q StepQuote, nextRecipient common.Address, boundaryAmount *big.Int) ([]entities.Operation, error) {
	if err := requireQuoted(s, q); err != nil {
		return nil, err
	}

	data, err := contracts.PackShift(s.hop.To.Address, orZero(boundaryAmount), nextRecipient)
	if err != nil {
		return nil, err
	}
	return []entities.Operation{{
		Kind:   entities.OpShift,
		Via:    entities.ViaPipeline,
		Target: s.hop.Pool.Address,
		Data:   data,
	}}, nil
}

// BuildChainedReverse lets the well pull maxAmountIn from Pipeline and swap it
// for exactly desiredAmountOut
func (s *PoolSwap) BuildChainedReverse(q StepQuote, nextRecipient common.Address, maxAmountIn, desiredAmountOut, deadline *big.Int) ([]entities.Operation, error) {
	if err := requireQuoted(s, q); err != nil {
		return nil, err
	}

	approve, err := contracts.PackApprove(s.hop.Pool.Address, maxAmountIn)
	if err != nil {
		return nil, err
	}
	swap, err := contracts.PackSwapTo(s.hop.From.Address, s.hop.To.Address, maxAmountIn, desiredAmountOut, nextRecipient, deadline)
	if err != nil {
		return nil, err
	}
	return []entities.Operation{
		{Kind: entities.OpApprove, Via: entities.ViaPipeline, Target: s.hop.From.Address, Data: approve},
		{Kind: entities.OpSwapTo, Via: entities.ViaPipeline, Target: s.hop.Pool.Address, Data: swap},
	}, nil
}

// quotePassthrough is the 1:1 quote shared by wrap and unwrap
func quotePassthrough(amount *big.Int, dir Direction, slippage float64) (StepQuote, error) {
	if _, err := validateQuoteArgs(amount, dir, slippage); err != nil {
		return StepQuote{}, err
	}
	return StepQuote{
		Direction:          dir,
		Amount:             new(big.Int).Set(amount),
		Quoted:             new(big.Int).Set(amount),
		QuotedWithSlippage: new(big.Int).Set(amount),
	}, nil
}

// WrapNative turns the native currency into its wrapped token. Deposits mint
// to the caller, so the wrapped tokens land wherever the call runs from.
type WrapNative struct {
	hop entities.Hop
}

func (s *WrapNative) Hop() entities.Hop { return s.hop }

func (s *WrapNative) quoteRaw(_ context.Context, amount *big.Int, _ Direction) (*big.Int, error) {
	return new(big.Int).Set(amount), nil
}

func (s *WrapNative) Quote(_ context.Context, amount *big.Int, dir Direction, slippage float64, _ common.Address) (StepQuote, error) {
	return quotePassthrough(amount, dir, slippage)
}

func (s *WrapNative) deposit(via entities.Executor, value *big.Int) (entities.Operation, error) {
	data, err := contracts.PackDeposit()
	if err != nil {
		return entities.Operation{}, err
	}
	return entities.Operation{
		Kind:   entities.OpDeposit,
		Via:    via,
		Target: s.hop.To.Address,
		Data:   data,
		Value:  new(big.Int).Set(value),
	}, nil
}

// BuildSingle deposits for the caller; WETH mints only to msg.sender
func (s *WrapNative) BuildSingle(q StepQuote, _ common.Address, _ *big.Int) (entities.Operation, error) {
	if err := requireQuoted(s, q); err != nil {
		return entities.Operation{}, err
	}
	return s.deposit(entities.ViaDepot, q.Input())
}

func (s *WrapNative) BuildChained(q StepQuote, nextRecipient common.Address, _ *big.Int) ([]entities.Operation, error) {
	if err := requireQuoted(s, q); err != nil {
		return nil, err
	}

	deposit, err := s.deposit(entities.ViaPipeline, q.Amount)
	if err != nil {
		return nil, err
	}
	transfer, err := contracts.PackTransfer(nextRecipient, q.Amount)
	if err != nil {
		return nil, err
	}
	return []entities.Operation{
		deposit,
		{Kind: entities.OpTransfer, Via: entities.ViaPipeline, Target: s.hop.To.Address, Data: transfer},
	}, nil
}

// BuildChainedReverse deposits into Pipeline, where the next hop pulls from
func (s *WrapNative) BuildChainedReverse(q StepQuote, _ common.Address, maxAmountIn, _, _ *big.Int) ([]entities.Operation, error) {
	if err := requireQuoted(s, q); err != nil {
		return nil, err
	}
	deposit, err := s.deposit(entities.ViaPipeline, maxAmountIn)
	if err != nil {
		return nil, err
	}
	return []entities.Operation{deposit}, nil
}

// UnwrapNative turns the wrapped token back into the native currency
type UnwrapNative struct {
	hop      entities.Hop
	junction common.Address
}

func (s *UnwrapNative) Hop() entities.Hop { return s.hop }

func (s *UnwrapNative) quoteRaw(_ context.Context, amount *big.Int, _ Direction) (*big.Int, error) {
	return new(big.Int).Set(amount), nil
}

func (s *UnwrapNative) Quote(_ context.Context, amount *big.Int, dir Direction, slippage float64, _ common.Address) (StepQuote, error) {
	return quotePassthrough(amount, dir, slippage)
}

// BuildSingle withdraws to the caller; the wrapper has no recipient argument
func (s *UnwrapNative) BuildSingle(q StepQuote, _ common.Address, _ *big.Int) (entities.Operation, error) {
	if err := requireQuoted(s, q); err != nil {
		return entities.Operation{}, err
	}
	data, err := contracts.PackWithdraw(q.Input())
	if err != nil {
		return entities.Operation{}, err
	}
	return entities.Operation{Kind: entities.OpWithdraw, Target: s.hop.From.Address, Data: data}, nil
}

// BuildChained hands the previous hop's output to the junction, which unwraps
// it and sends ether to nextRecipient. The amount is copied from the return
// value of the operation right before this hop.
func (s *UnwrapNative) BuildChained(q StepQuote, nextRecipient common.Address, _ *big.Int) ([]entities.Operation, error) {
	if err := requireQuoted(s, q); err != nil {
		return nil, err
	}
	return s.unwrapAndSend(q.Amount, nextRecipient, &entities.CopyOutput{FromStep: -1, CopySlot: 0, PasteSlot: 1})
}

func (s *UnwrapNative) BuildChainedReverse(q StepQuote, nextRecipient common.Address, _, desiredAmountOut, _ *big.Int) ([]entities.Operation, error) {
	if err := requireQuoted(s, q); err != nil {
		return nil, err
	}
	return s.unwrapAndSend(desiredAmountOut, nextRecipient, nil)
}

func (s *UnwrapNative) unwrapAndSend(amount *big.Int, recipient common.Address, cp *entities.CopyOutput) ([]entities.Operation, error) {
	transfer, err := contracts.PackTransfer(s.junction, amount)
	if err != nil {
		return nil, err
	}
	unwrap, err := contracts.PackUnwrapAndSend(recipient)
	if err != nil {
		return nil, err
	}
	return []entities.Operation{
		{Kind: entities.OpTransfer, Via: entities.ViaPipeline, Target: s.hop.From.Address, Data: transfer, Copy: cp},
		{Kind: entities.OpUnwrapAndSend, Via: entities.ViaPipeline, Target: s.junction, Data: unwrap},
	}, nil
}
