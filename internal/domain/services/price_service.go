package services

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	"github.com/bimakw/swap-router/internal/domain/entities"
	"github.com/bimakw/swap-router/internal/infrastructure/cache"
	"github.com/bimakw/swap-router/internal/logger"
	"github.com/bimakw/swap-router/internal/metrics"
)

// ErrNoPrice is returned when no route connects a token to the quote token
var ErrNoPrice = errors.New("no route to price token")

// PriceService answers display prices: how much of a quote token one whole
// unit of a token is worth along its best route
type PriceService struct {
	router   *Router
	cache    cache.Cache
	cacheTTL time.Duration
	log      zerolog.Logger
}

func NewPriceService(router *Router, c cache.Cache) *PriceService {
	return &PriceService{
		router:   router,
		cache:    c,
		cacheTTL: 10 * time.Second, // Short TTL for price data
		log:      logger.ForService("price"),
	}
}

// GetTokenPrice returns the quote-token amount, in quote base units, received
// for one whole unit of token at zero slippage
func (s *PriceService) GetTokenPrice(ctx context.Context, token, quoteToken entities.Token) (*big.Int, error) {
	oneToken := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(token.Decimals)), nil)
	if token.Equal(quoteToken) {
		return oneToken, nil
	}

	key := cache.PriceCacheKey(token.ChainID, token.Address.Hex(), quoteToken.Address.Hex())
	if s.cache != nil {
		if cached, err := s.cache.GetPrice(ctx, key); err == nil && cached != "" {
			if price, ok := new(big.Int).SetString(cached, 10); ok {
				metrics.PriceCacheHits.Inc()
				return price, nil
			}
		}
		metrics.PriceCacheMisses.Inc()
	}

	quote := s.router.BuildQuote(token, quoteToken, common.Address{})
	if quote == nil {
		return nil, fmt.Errorf("%w: %s -> %s", ErrNoPrice, token, quoteToken)
	}

	price, err := quote.Rate(ctx, oneToken)
	if err != nil {
		return nil, fmt.Errorf("failed to get price: %w", err)
	}

	if s.cache != nil {
		if err := s.cache.SetPrice(ctx, key, price.String(), s.cacheTTL); err != nil {
			s.log.Warn().Err(err).Str("key", key).Msg("price cache write failed")
		}
	}
	return price, nil
}
