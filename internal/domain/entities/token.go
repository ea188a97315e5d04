package entities

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// NativeAddress is the placeholder address used for the chain's base currency
var NativeAddress = common.HexToAddress("0xEeeeeEeeeEeEeeEeEeEeeEEEeeeeEeeeeeeeEEeE")

// MainnetChainID is Ethereum mainnet
const MainnetChainID uint64 = 1

type Token struct {
	Address  common.Address `json:"address"`
	ChainID  uint64         `json:"chainId"`
	Symbol   string         `json:"symbol"`
	Name     string         `json:"name"`
	Decimals uint8          `json:"decimals"`
	IsNative bool           `json:"isNative,omitempty"`
}

// TokenKey identifies a token across chains
type TokenKey struct {
	ChainID uint64
	Address common.Address
}

func (k TokenKey) String() string {
	return fmt.Sprintf("%d:%s", k.ChainID, strings.ToLower(k.Address.Hex()))
}

// Key returns the identity of the token. Two tokens with the same key are the
// same asset regardless of symbol or name.
func (t Token) Key() TokenKey {
	return TokenKey{ChainID: t.ChainID, Address: t.Address}
}

// Equal reports whether both tokens refer to the same asset
func (t Token) Equal(other Token) bool {
	return t.Key() == other.Key()
}

func (t Token) String() string {
	if t.Symbol != "" {
		return t.Symbol
	}
	return t.Address.Hex()
}

// ETH is the native currency on Ethereum mainnet
var ETH = Token{
	Address:  NativeAddress,
	ChainID:  MainnetChainID,
	Symbol:   "ETH",
	Name:     "Ether",
	Decimals: 18,
	IsNative: true,
}

// WETH is the canonical Wrapped Ether token on Ethereum mainnet
var WETH = Token{
	Address:  common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"),
	ChainID:  MainnetChainID,
	Symbol:   "WETH",
	Name:     "Wrapped Ether",
	Decimals: 18,
}

// USDC is USD Coin on Ethereum mainnet
var USDC = Token{
	Address:  common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"),
	ChainID:  MainnetChainID,
	Symbol:   "USDC",
	Name:     "USD Coin",
	Decimals: 6,
}

// BEAN is the Beanstalk stablecoin on Ethereum mainnet
var BEAN = Token{
	Address:  common.HexToAddress("0xBEA0000029AD1c77D3d5D23Ba2D8893dB9d1Efab"),
	ChainID:  MainnetChainID,
	Symbol:   "BEAN",
	Name:     "Bean",
	Decimals: 6,
}
