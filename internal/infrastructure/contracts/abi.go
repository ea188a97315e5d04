// Package contracts holds the ABIs of the contracts a swap touches and the
// encoder that turns a plan into a single settlement call.
package contracts

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

const wellABIJSON = `[
	{"name":"getSwapOut","type":"function","stateMutability":"view",
	 "inputs":[{"name":"fromToken","type":"address"},{"name":"toToken","type":"address"},{"name":"amountIn","type":"uint256"}],
	 "outputs":[{"name":"amountOut","type":"uint256"}]},
	{"name":"getSwapIn","type":"function","stateMutability":"view",
	 "inputs":[{"name":"fromToken","type":"address"},{"name":"toToken","type":"address"},{"name":"amountOut","type":"uint256"}],
	 "outputs":[{"name":"amountIn","type":"uint256"}]},
	{"name":"swapFrom","type":"function","stateMutability":"nonpayable",
	 "inputs":[{"name":"fromToken","type":"address"},{"name":"toToken","type":"address"},{"name":"amountIn","type":"uint256"},
	           {"name":"minAmountOut","type":"uint256"},{"name":"recipient","type":"address"},{"name":"deadline","type":"uint256"}],
	 "outputs":[{"name":"amountOut","type":"uint256"}]},
	{"name":"swapTo","type":"function","stateMutability":"nonpayable",
	 "inputs":[{"name":"fromToken","type":"address"},{"name":"toToken","type":"address"},{"name":"maxAmountIn","type":"uint256"},
	           {"name":"amountOut","type":"uint256"},{"name":"recipient","type":"address"},{"name":"deadline","type":"uint256"}],
	 "outputs":[{"name":"amountIn","type":"uint256"}]},
	{"name":"shift","type":"function","stateMutability":"nonpayable",
	 "inputs":[{"name":"tokenOut","type":"address"},{"name":"minAmountOut","type":"uint256"},{"name":"recipient","type":"address"}],
	 "outputs":[{"name":"amountOut","type":"uint256"}]}
]`

const erc20ABIJSON = `[
	{"name":"balanceOf","type":"function","stateMutability":"view",
	 "inputs":[{"name":"account","type":"address"}],
	 "outputs":[{"name":"","type":"uint256"}]},
	{"name":"allowance","type":"function","stateMutability":"view",
	 "inputs":[{"name":"owner","type":"address"},{"name":"spender","type":"address"}],
	 "outputs":[{"name":"","type":"uint256"}]},
	{"name":"approve","type":"function","stateMutability":"nonpayable",
	 "inputs":[{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],
	 "outputs":[{"name":"","type":"bool"}]},
	{"name":"transfer","type":"function","stateMutability":"nonpayable",
	 "inputs":[{"name":"to","type":"address"},{"name":"amount","type":"uint256"}],
	 "outputs":[{"name":"","type":"bool"}]},
	{"name":"deposit","type":"function","stateMutability":"payable","inputs":[],"outputs":[]},
	{"name":"withdraw","type":"function","stateMutability":"nonpayable",
	 "inputs":[{"name":"wad","type":"uint256"}],"outputs":[]}
]`

const depotABIJSON = `[
	{"name":"farm","type":"function","stateMutability":"payable",
	 "inputs":[{"name":"data","type":"bytes[]"}],
	 "outputs":[{"name":"results","type":"bytes[]"}]},
	{"name":"advancedPipe","type":"function","stateMutability":"payable",
	 "inputs":[{"name":"pipes","type":"tuple[]","components":[
	     {"name":"target","type":"address"},{"name":"callData","type":"bytes"},{"name":"clipboard","type":"bytes"}]},
	   {"name":"value","type":"uint256"}],
	 "outputs":[{"name":"results","type":"bytes[]"}]},
	{"name":"transferToken","type":"function","stateMutability":"payable",
	 "inputs":[{"name":"token","type":"address"},{"name":"recipient","type":"address"},{"name":"amount","type":"uint256"},
	           {"name":"fromMode","type":"uint8"},{"name":"toMode","type":"uint8"}],
	 "outputs":[]}
]`

const junctionABIJSON = `[
	{"name":"unwrapAndSendETH","type":"function","stateMutability":"nonpayable",
	 "inputs":[{"name":"dest","type":"address"}],"outputs":[]}
]`

var (
	// WellABI covers the quote and swap entry points of a well
	WellABI = mustParse(wellABIJSON)
	// TokenABI covers ERC-20 plus the WETH deposit/withdraw extension
	TokenABI = mustParse(erc20ABIJSON)
	// DepotABI covers the multicall executor
	DepotABI = mustParse(depotABIJSON)
	// JunctionABI covers the unwrap-and-send helper called from Pipeline
	JunctionABI = mustParse(junctionABIJSON)
)

func mustParse(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(err)
	}
	return parsed
}
