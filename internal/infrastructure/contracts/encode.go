package contracts

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/bimakw/swap-router/internal/domain/entities"
)

// Balance modes understood by Depot.transferToken
const (
	ModeExternal uint8 = 0
	ModeInternal uint8 = 1
)

// Clipboard type bytes
const (
	clipboardNone   byte = 0x00
	clipboardSingle byte = 0x01
)

var (
	ErrBadCopy       = errors.New("invalid clipboard copy")
	ErrWrongExecutor = errors.New("depot operation targets another contract")
	ErrValueMismatch = errors.New("plan value does not match operation values")
)

// AdvancedPipeCall mirrors the tuple consumed by Depot.advancedPipe
type AdvancedPipeCall struct {
	Target    common.Address `abi:"target"`
	CallData  []byte         `abi:"callData"`
	Clipboard []byte         `abi:"clipboard"`
}

func PackSwapFrom(fromToken, toToken common.Address, amountIn, minAmountOut *big.Int, recipient common.Address, deadline *big.Int) ([]byte, error) {
	return WellABI.Pack("swapFrom", fromToken, toToken, amountIn, minAmountOut, recipient, deadline)
}

func PackSwapTo(fromToken, toToken common.Address, maxAmountIn, amountOut *big.Int, recipient common.Address, deadline *big.Int) ([]byte, error) {
	return WellABI.Pack("swapTo", fromToken, toToken, maxAmountIn, amountOut, recipient, deadline)
}

func PackShift(tokenOut common.Address, minAmountOut *big.Int, recipient common.Address) ([]byte, error) {
	return WellABI.Pack("shift", tokenOut, minAmountOut, recipient)
}

func PackApprove(spender common.Address, amount *big.Int) ([]byte, error) {
	return TokenABI.Pack("approve", spender, amount)
}

func PackTransfer(to common.Address, amount *big.Int) ([]byte, error) {
	return TokenABI.Pack("transfer", to, amount)
}

func PackBalanceOf(account common.Address) ([]byte, error) {
	return TokenABI.Pack("balanceOf", account)
}

func PackDeposit() ([]byte, error) {
	return TokenABI.Pack("deposit")
}

func PackWithdraw(amount *big.Int) ([]byte, error) {
	return TokenABI.Pack("withdraw", amount)
}

// PackTransferToken moves the caller's external balance of token to recipient
// through the Depot
func PackTransferToken(token, recipient common.Address, amount *big.Int) ([]byte, error) {
	return DepotABI.Pack("transferToken", token, recipient, amount, ModeExternal, ModeExternal)
}

func PackUnwrapAndSend(dest common.Address) ([]byte, error) {
	return JunctionABI.Pack("unwrapAndSendETH", dest)
}

// UnpackUint256 decodes a single uint256 return value of method
func UnpackUint256(contract abi.ABI, method string, data []byte) (*big.Int, error) {
	values, err := contract.Unpack(method, data)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	if len(values) != 1 {
		return nil, fmt.Errorf("unpack %s: expected 1 value, got %d", method, len(values))
	}
	v, ok := values[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unpack %s: unexpected type %T", method, values[0])
	}
	return v, nil
}

// Decode splits calldata into the method name and its arguments
func Decode(contract abi.ABI, data []byte) (string, []interface{}, error) {
	if len(data) < 4 {
		return "", nil, fmt.Errorf("calldata too short: %d bytes", len(data))
	}
	method, err := contract.MethodById(data[:4])
	if err != nil {
		return "", nil, err
	}
	args, err := method.Inputs.Unpack(data[4:])
	if err != nil {
		return "", nil, err
	}
	return method.Name, args, nil
}

// EncodeClipboard builds the Pipeline clipboard for one call. returnIndex is
// the position, inside the same advancedPipe batch, of the call whose return
// data is copied. A nil copy with a positive value only forwards ether.
func EncodeClipboard(returnIndex int, cp *entities.CopyOutput, value *big.Int) []byte {
	useEther := value != nil && value.Sign() > 0

	var out []byte
	if cp == nil {
		out = []byte{clipboardNone, boolByte(useEther)}
	} else {
		params := new(big.Int).Lsh(big.NewInt(int64(returnIndex)), 160)
		params.Or(params, new(big.Int).Lsh(big.NewInt(int64(32+32*cp.CopySlot)), 80))
		params.Or(params, big.NewInt(int64(36+32*cp.PasteSlot)))

		out = make([]byte, 2, 2+32)
		out[0], out[1] = clipboardSingle, boolByte(useEther)
		out = append(out, params.FillBytes(make([]byte, 32))...)
	}

	if useEther {
		out = append(out, value.FillBytes(make([]byte, 32))...)
	}
	return out
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}

type pipeBatch struct {
	calls []AdvancedPipeCall
	value *big.Int
}

// EncodePlan turns a plan into one settlement call. A direct plan is sent to
// its pool as is. Otherwise consecutive Pipeline operations are grouped into
// advancedPipe batches, Depot operations are kept as standalone entries, and
// the entries are wrapped in Depot.farm when there is more than one.
func EncodePlan(plan *entities.Plan, depot common.Address) (entities.Call, error) {
	if plan.IsDirect() {
		value := plan.Direct.Value
		if value == nil {
			value = new(big.Int)
		}
		return entities.Call{To: plan.Direct.Target, Data: plan.Direct.Data, Value: value}, nil
	}

	var (
		farmCalls [][]byte
		batch     *pipeBatch
		batchID   = -1
		opBatch   = make([]int, len(plan.Operations))
		opPos     = make([]int, len(plan.Operations))
		total     = new(big.Int)
	)

	flush := func() error {
		if batch == nil {
			return nil
		}
		data, err := DepotABI.Pack("advancedPipe", batch.calls, batch.value)
		if err != nil {
			return fmt.Errorf("pack advancedPipe: %w", err)
		}
		farmCalls = append(farmCalls, data)
		batch = nil
		return nil
	}

	for i, op := range plan.Operations {
		if op.Value != nil {
			total.Add(total, op.Value)
		}

		if op.Via == entities.ViaDepot {
			if op.Target != depot {
				return entities.Call{}, fmt.Errorf("operation %d (%s): %w", i, op.Kind, ErrWrongExecutor)
			}
			if op.Copy != nil {
				return entities.Call{}, fmt.Errorf("operation %d (%s): %w: depot calls cannot paste", i, op.Kind, ErrBadCopy)
			}
			if err := flush(); err != nil {
				return entities.Call{}, err
			}
			opBatch[i] = -1
			farmCalls = append(farmCalls, op.Data)
			continue
		}

		if batch == nil {
			batch = &pipeBatch{value: new(big.Int)}
			batchID++
		}

		returnIndex := 0
		if op.Copy != nil {
			from := op.Copy.FromStep
			if from < 0 || from >= i || opBatch[from] != batchID {
				return entities.Call{}, fmt.Errorf("operation %d (%s) copies from %d: %w", i, op.Kind, from, ErrBadCopy)
			}
			returnIndex = opPos[from]
		}

		opBatch[i] = batchID
		opPos[i] = len(batch.calls)
		batch.calls = append(batch.calls, AdvancedPipeCall{
			Target:    op.Target,
			CallData:  op.Data,
			Clipboard: EncodeClipboard(returnIndex, op.Copy, op.Value),
		})
		if op.Value != nil {
			batch.value.Add(batch.value, op.Value)
		}
	}
	if err := flush(); err != nil {
		return entities.Call{}, err
	}

	if plan.Value != nil && plan.Value.Cmp(total) != 0 {
		return entities.Call{}, fmt.Errorf("%w: plan %s, operations %s", ErrValueMismatch, plan.Value, total)
	}

	switch len(farmCalls) {
	case 0:
		return entities.Call{}, errors.New("plan has no operations")
	case 1:
		return entities.Call{To: depot, Data: farmCalls[0], Value: total}, nil
	default:
		data, err := DepotABI.Pack("farm", farmCalls)
		if err != nil {
			return entities.Call{}, fmt.Errorf("pack farm: %w", err)
		}
		return entities.Call{To: depot, Data: data, Value: total}, nil
	}
}
