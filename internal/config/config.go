package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
)

type Config struct {
	// Chain settings
	RPCUrl  string
	ChainID uint64

	// Settlement contracts
	DepotAddress    common.Address
	PipelineAddress common.Address
	JunctionAddress common.Address
	WETHAddress     common.Address

	// Quoting
	DeadlineWindow  time.Duration
	DefaultSlippage float64
	RegistryFile    string

	// Redis settings
	RedisAddr string

	// HTTP settings
	Port           string
	RateLimitRPS   float64
	RateLimitBurst int

	// Logging
	LogLevel  string
	LogPretty bool
}

// LoadEnvFile loads a .env file into the environment. A missing file is not an
// error; the process environment is used as is.
func LoadEnvFile(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

func Load() *Config {
	return &Config{
		// Chain
		RPCUrl:  getEnv("ETH_RPC_URL", "https://eth.llamarpc.com"),
		ChainID: getUintEnv("CHAIN_ID", 1),

		// Beanstalk Depot, Pipeline and the unwrap junction on mainnet
		DepotAddress:    getAddressEnv("DEPOT_ADDRESS", "0xDEb0f00071497a5cc9b4A6B96068277e57A82Ae2"),
		PipelineAddress: getAddressEnv("PIPELINE_ADDRESS", "0xb1bE0000C6B3C62749b5F0c92480146452D15423"),
		JunctionAddress: getAddressEnv("UNWRAP_JUNCTION_ADDRESS", "0x737Cad465B75CDc4c11B3E312Eb3fe5bEF793d96"),
		WETHAddress:     getAddressEnv("WETH_ADDRESS", "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"),

		// Quoting
		DeadlineWindow:  getDurationEnv("DEADLINE_WINDOW", 20*time.Minute),
		DefaultSlippage: getFloatEnv("DEFAULT_SLIPPAGE", 0.005),
		RegistryFile:    getEnv("REGISTRY_FILE", "config/registry.json"),

		// Redis
		RedisAddr: getEnv("REDIS_ADDR", ""),

		// HTTP
		Port:           getEnv("PORT", "8080"),
		RateLimitRPS:   getFloatEnv("RATE_LIMIT_RPS", 5),
		RateLimitBurst: getIntEnv("RATE_LIMIT_BURST", 10),

		// Logging
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogPretty: getBoolEnv("LOG_PRETTY", false),
	}
}

// Validate rejects configurations the router cannot run with
func (c *Config) Validate() error {
	var errs []error
	if c.RPCUrl == "" {
		errs = append(errs, errors.New("ETH_RPC_URL is required"))
	}
	zero := common.Address{}
	for name, addr := range map[string]common.Address{
		"DEPOT_ADDRESS":           c.DepotAddress,
		"PIPELINE_ADDRESS":        c.PipelineAddress,
		"UNWRAP_JUNCTION_ADDRESS": c.JunctionAddress,
		"WETH_ADDRESS":            c.WETHAddress,
	} {
		if addr == zero {
			errs = append(errs, fmt.Errorf("%s must be a non-zero address", name))
		}
	}
	if c.DefaultSlippage < 0 || c.DefaultSlippage >= 1 {
		errs = append(errs, fmt.Errorf("DEFAULT_SLIPPAGE must be in [0, 1), got %v", c.DefaultSlippage))
	}
	if c.DeadlineWindow <= 0 {
		errs = append(errs, errors.New("DEADLINE_WINDOW must be positive"))
	}
	if c.RateLimitRPS <= 0 || c.RateLimitBurst <= 0 {
		errs = append(errs, errors.New("RATE_LIMIT_RPS and RATE_LIMIT_BURST must be positive"))
	}
	return errors.Join(errs...)
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getIntEnv(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getUintEnv(key string, defaultVal uint64) uint64 {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.ParseUint(val, 10, 64); err == nil {
			return i
		}
	}
	return defaultVal
}

func getFloatEnv(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getBoolEnv(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

func getDurationEnv(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}

// getAddressEnv returns the zero address when the value is not a hex address,
// which Validate then reports
func getAddressEnv(key, defaultVal string) common.Address {
	val := getEnv(key, defaultVal)
	if !common.IsHexAddress(val) {
		return common.Address{}
	}
	return common.HexToAddress(val)
}
