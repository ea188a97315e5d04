package ethereum

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/bimakw/swap-router/internal/domain/entities"
)

// Client wraps the go-ethereum client with additional functionality
type Client struct {
	client  *ethclient.Client
	rpc     *rpc.Client
	rpcURL  string
	chainID *big.Int
	mu      sync.RWMutex
}

// NewClient creates a new Ethereum client
func NewClient(rpcURL string) (*Client, error) {
	rpcClient, err := rpc.Dial(rpcURL)
	if err != nil {
		return nil, err
	}
	client := ethclient.NewClient(rpcClient)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	chainID, err := client.ChainID(ctx)
	if err != nil {
		client.Close()
		return nil, err
	}

	return &Client{
		client:  client,
		rpc:     rpcClient,
		rpcURL:  rpcURL,
		chainID: chainID,
	}, nil
}

// Close closes the underlying client connection
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.client.Close()
}

// ChainID returns the chain ID
func (c *Client) ChainID() *big.Int {
	return c.chainID
}

// CallContract executes a contract call
func (c *Client) CallContract(ctx context.Context, msg ethereum.CallMsg) ([]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.client.CallContract(ctx, msg, nil)
}

// EstimateGas estimates the gas required for a transaction
func (c *Client) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.client.EstimateGas(ctx, msg)
}

// sendTxArgs is the eth_sendTransaction request body
type sendTxArgs struct {
	From  common.Address `json:"from"`
	To    common.Address `json:"to"`
	Data  hexutil.Bytes  `json:"data"`
	Value *hexutil.Big   `json:"value,omitempty"`
}

// SendTransaction submits call from an account managed by the node or the
// wallet behind the RPC endpoint. Signing never happens in this process.
func (c *Client) SendTransaction(ctx context.Context, from common.Address, call entities.Call) (common.Hash, error) {
	args := sendTxArgs{From: from, To: call.To, Data: call.Data}
	if call.Value != nil && call.Value.Sign() > 0 {
		args.Value = (*hexutil.Big)(call.Value)
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	var hash common.Hash
	if err := c.rpc.CallContext(ctx, &hash, "eth_sendTransaction", args); err != nil {
		return common.Hash{}, fmt.Errorf("eth_sendTransaction: %w", err)
	}
	return hash, nil
}

