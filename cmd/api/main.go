package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/bimakw/swap-router/internal/config"
	"github.com/bimakw/swap-router/internal/domain/entities"
	"github.com/bimakw/swap-router/internal/domain/services"
	"github.com/bimakw/swap-router/internal/infrastructure/cache"
	"github.com/bimakw/swap-router/internal/infrastructure/dex"
	"github.com/bimakw/swap-router/internal/infrastructure/ethereum"
	"github.com/bimakw/swap-router/internal/logger"
	"github.com/bimakw/swap-router/internal/presentation/handlers"
)

const (
	version = "0.3.0"
)

func main() {
	if err := config.LoadEnvFile(".env"); err != nil {
		log.Warn().Err(err).Msg("ignoring .env file")
	}
	cfg := config.Load()
	logger.Setup(cfg.LogLevel, cfg.LogPretty)

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	// Token registry and wells
	registry := entities.NewTokenRegistry(cfg.ChainID)
	if err := registry.LoadFromFile(cfg.RegistryFile); err != nil {
		log.Warn().Err(err).Str("file", cfg.RegistryFile).Msg("using default registry")
		registry = entities.DefaultRegistry()
	}
	log.Info().Int("tokens", registry.Count()).Int("wells", len(registry.Pools())).Msg("registry loaded")

	// Initialize Ethereum client
	ethClient, err := ethereum.NewClient(cfg.RPCUrl)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to Ethereum")
	}
	defer ethClient.Close()
	if ethClient.ChainID().Uint64() != cfg.ChainID {
		log.Warn().
			Str("rpc_chain_id", ethClient.ChainID().String()).
			Uint64("configured_chain_id", cfg.ChainID).
			Msg("RPC chain does not match configuration")
	}
	log.Info().Str("chain_id", ethClient.ChainID().String()).Msg("connected to Ethereum")

	// Initialize cache
	var cacheClient cache.Cache
	if cfg.RedisAddr != "" {
		redisCache, err := cache.NewRedisCache(cfg.RedisAddr, "", 0)
		if err != nil {
			log.Warn().Err(err).Msg("failed to connect to Redis, using in-memory cache")
			cacheClient = cache.NewInMemoryCache()
		} else {
			defer redisCache.Close()
			cacheClient = redisCache
			log.Info().Str("addr", cfg.RedisAddr).Msg("connected to Redis")
		}
	} else {
		cacheClient = cache.NewInMemoryCache()
		log.Info().Msg("using in-memory cache")
	}

	// Initialize services
	router := services.NewRouter(services.RouterConfig{
		Depot:          cfg.DepotAddress,
		Pipeline:       cfg.PipelineAddress,
		Junction:       cfg.JunctionAddress,
		DeadlineWindow: cfg.DeadlineWindow,
	}, services.Dependencies{
		Pools:      dex.NewWellClient(ethClient),
		Allowances: dex.NewTokenClient(ethClient),
		Tx:         ethClient,
	})
	for _, well := range registry.Pools() {
		if err := router.AddWell(well); err != nil {
			log.Fatal().Err(err).Str("well", well.String()).Msg("failed to register well")
		}
	}

	native, hasNative := registry.Native()
	wrapped, hasWrapped := registry.GetByAddress(cfg.WETHAddress)
	if hasNative && hasWrapped {
		if err := router.SetNativePair(native, wrapped); err != nil {
			log.Fatal().Err(err).Msg("failed to link native token")
		}
	} else {
		log.Warn().Msg("native or wrapped token missing from registry, native routes disabled")
	}

	priceService := services.NewPriceService(router, cacheClient)

	quoteToken, ok := registry.GetBySymbol("USDC")
	if !ok {
		quoteToken = wrapped
	}

	// Setup router
	handler := handlers.NewRouter(handlers.API{
		Health:  handlers.NewHealthHandler(version, router.Graph()),
		Quote:   handlers.NewQuoteHandler(router, cfg.DefaultSlippage),
		Price:   handlers.NewPriceHandler(priceService, router.Graph(), quoteToken),
		Limiter: handlers.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst),
		Log:     logger.ForService("http"),
	})

	// Start server
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 45 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		log.Info().Str("version", version).Str("port", cfg.Port).Msg("starting swap router API")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("server shutdown error")
	}
	log.Info().Msg("server stopped")
}
