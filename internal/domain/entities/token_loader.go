package entities

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// TokenConfig represents token configuration from JSON
type TokenConfig struct {
	Address  string `json:"address"`
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
	Decimals uint8  `json:"decimals"`
	IsNative bool   `json:"isNative"`
}

// PoolConfig lists a well by address and the symbols of the tokens it trades
type PoolConfig struct {
	Address string   `json:"address"`
	Name    string   `json:"name"`
	Tokens  []string `json:"tokens"`
}

// RegistryConfig represents the registry.json structure
type RegistryConfig struct {
	ChainID uint64        `json:"chainId"`
	Tokens  []TokenConfig `json:"tokens"`
	Wells   []PoolConfig  `json:"wells"`
}

// TokenRegistry holds loaded tokens indexed by address and symbol, plus the
// wells that trade them
type TokenRegistry struct {
	chainID   uint64
	byAddress map[common.Address]Token
	bySymbol  map[string]Token
	all       []Token
	pools     []Pool
}

// NewTokenRegistry creates a new token registry
func NewTokenRegistry(chainID uint64) *TokenRegistry {
	return &TokenRegistry{
		chainID:   chainID,
		byAddress: make(map[common.Address]Token),
		bySymbol:  make(map[string]Token),
		all:       make([]Token, 0),
	}
}

// LoadFromFile loads tokens and wells from a JSON config file
func (r *TokenRegistry) LoadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read registry config: %w", err)
	}
	return r.Load(data)
}

// Load parses registry JSON
func (r *TokenRegistry) Load(data []byte) error {
	var config RegistryConfig
	if err := json.Unmarshal(data, &config); err != nil {
		return fmt.Errorf("failed to parse registry config: %w", err)
	}
	if config.ChainID != 0 {
		r.chainID = config.ChainID
	}

	for _, tc := range config.Tokens {
		if !tc.IsNative && !common.IsHexAddress(tc.Address) {
			return fmt.Errorf("token %s: invalid address %q", tc.Symbol, tc.Address)
		}
		token := Token{
			Address:  common.HexToAddress(tc.Address),
			ChainID:  r.chainID,
			Symbol:   tc.Symbol,
			Name:     tc.Name,
			Decimals: tc.Decimals,
			IsNative: tc.IsNative,
		}
		if tc.IsNative {
			token.Address = NativeAddress
		}
		r.Register(token)
	}

	for _, wc := range config.Wells {
		if !common.IsHexAddress(wc.Address) {
			return fmt.Errorf("well %s: invalid address %q", wc.Name, wc.Address)
		}
		pool := Pool{
			Address: common.HexToAddress(wc.Address),
			Name:    wc.Name,
			Type:    PoolWell,
		}
		for _, sym := range wc.Tokens {
			token, ok := r.GetBySymbol(sym)
			if !ok {
				return fmt.Errorf("well %s: unknown token %q", wc.Name, sym)
			}
			pool.Tokens = append(pool.Tokens, token)
		}
		if err := pool.Validate(); err != nil {
			return err
		}
		r.pools = append(r.pools, pool)
	}

	return nil
}

// Register adds a token to the registry
func (r *TokenRegistry) Register(token Token) {
	if _, exists := r.byAddress[token.Address]; !exists {
		r.all = append(r.all, token)
	}
	r.byAddress[token.Address] = token
	r.bySymbol[strings.ToUpper(token.Symbol)] = token
}

// GetByAddress returns a token by its address
func (r *TokenRegistry) GetByAddress(addr common.Address) (Token, bool) {
	token, ok := r.byAddress[addr]
	return token, ok
}

// GetBySymbol returns a token by its symbol, ignoring case
func (r *TokenRegistry) GetBySymbol(symbol string) (Token, bool) {
	token, ok := r.bySymbol[strings.ToUpper(symbol)]
	return token, ok
}

// Resolve looks a token up by hex address or symbol
func (r *TokenRegistry) Resolve(symbolOrAddress string) (Token, bool) {
	if common.IsHexAddress(symbolOrAddress) {
		return r.GetByAddress(common.HexToAddress(symbolOrAddress))
	}
	return r.GetBySymbol(symbolOrAddress)
}

// Native returns the registered native token, if any
func (r *TokenRegistry) Native() (Token, bool) {
	return r.GetByAddress(NativeAddress)
}

// GetAll returns all registered tokens
func (r *TokenRegistry) GetAll() []Token {
	return r.all
}

// Pools returns the wells declared in the loaded config
func (r *TokenRegistry) Pools() []Pool {
	return r.pools
}

// Count returns the number of registered tokens
func (r *TokenRegistry) Count() int {
	return len(r.all)
}

// DefaultRegistry returns a registry with hardcoded default tokens and the
// BEAN:WETH well. Use this as fallback if config file is not available
func DefaultRegistry() *TokenRegistry {
	r := NewTokenRegistry(MainnetChainID)
	r.Register(ETH)
	r.Register(WETH)
	r.Register(USDC)
	r.Register(BEAN)
	r.pools = append(r.pools, Pool{
		Address: common.HexToAddress("0xBEA0e11282e2bB5893bEcE110cF199501e872bAd"),
		Name:    "BEAN:WETH",
		Type:    PoolWell,
		Tokens:  []Token{BEAN, WETH},
	})
	return r
}
