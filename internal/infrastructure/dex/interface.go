package dex

import (
	"context"

	"github.com/ethereum/go-ethereum"
)

// ContractCaller executes read-only contract calls. The ethereum client
// satisfies it; tests substitute a fake.
type ContractCaller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg) ([]byte, error)
}
