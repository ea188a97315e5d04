package entities

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// OpKind labels an operation for inspection and logging
type OpKind string

const (
	OpSwapFrom      OpKind = "swap_from"
	OpSwapTo        OpKind = "swap_to"
	OpShift         OpKind = "shift"
	OpApprove       OpKind = "approve"
	OpTransfer      OpKind = "transfer"
	OpBalanceOf     OpKind = "balance_of"
	OpTransferToken OpKind = "transfer_token"
	OpDeposit       OpKind = "deposit"
	OpWithdraw      OpKind = "withdraw"
	OpUnwrapAndSend OpKind = "unwrap_and_send"
)

// Executor selects which contract runs an operation inside a plan
type Executor uint8

const (
	// ViaDepot runs the call from the Depot, which holds the caller's allowance
	ViaDepot Executor = iota
	// ViaPipeline runs the call from Pipeline inside an advancedPipe batch
	ViaPipeline
)

// CopyOutput pastes word CopySlot of the return data of operation FromStep into
// argument PasteSlot of the operation carrying it. In a finished plan FromStep
// is an index into Plan.Operations; a negative value counts back from the first
// operation of the hop that emitted it and is resolved when the plan is built.
type CopyOutput struct {
	FromStep  int `json:"fromStep"`
	CopySlot  int `json:"copySlot"`
	PasteSlot int `json:"pasteSlot"`
}

// Operation is one contract call in a plan
type Operation struct {
	Kind   OpKind         `json:"kind"`
	Via    Executor       `json:"via"`
	Target common.Address `json:"target"`
	Data   []byte         `json:"data"`
	Value  *big.Int       `json:"value,omitempty"`
	Copy   *CopyOutput    `json:"copy,omitempty"`
}

// Plan is the settlement work for one swap: either a single direct pool call or
// an ordered list of operations executed atomically through the Depot.
type Plan struct {
	Direct     *Operation  `json:"direct,omitempty"`
	Operations []Operation `json:"operations,omitempty"`
	Value      *big.Int    `json:"value"`
}

func (p *Plan) IsDirect() bool {
	return p.Direct != nil
}

// Count returns how many operations of the given kind the plan holds
func (p *Plan) Count(kind OpKind) int {
	if p.Direct != nil {
		if p.Direct.Kind == kind {
			return 1
		}
		return 0
	}
	n := 0
	for _, op := range p.Operations {
		if op.Kind == kind {
			n++
		}
	}
	return n
}

// Call is an encoded settlement transaction
type Call struct {
	To    common.Address `json:"to"`
	Data  []byte         `json:"data"`
	Value *big.Int       `json:"value"`
}
