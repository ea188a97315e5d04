package handlers

import (
	"errors"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/bimakw/swap-router/internal/domain/entities"
	"github.com/bimakw/swap-router/internal/domain/graph"
	"github.com/bimakw/swap-router/internal/domain/services"
)

type PriceHandler struct {
	priceService *services.PriceService
	graph        *graph.TokenGraph
	defaultQuote entities.Token
}

// NewPriceHandler prices tokens in defaultQuote unless the request names
// another quote token
func NewPriceHandler(priceService *services.PriceService, g *graph.TokenGraph, defaultQuote entities.Token) *PriceHandler {
	return &PriceHandler{
		priceService: priceService,
		graph:        g,
		defaultQuote: defaultQuote,
	}
}

type PriceResponse struct {
	Token     string `json:"token"`
	Symbol    string `json:"symbol"`
	Quote     string `json:"quote"`
	Price     string `json:"price"`
	PriceRaw  string `json:"priceRaw"`
	UpdatedAt string `json:"updatedAt"`
}

// GetPrice handles GET /api/v1/price/{token}
func (h *PriceHandler) GetPrice(w http.ResponseWriter, r *http.Request) {
	tokenArg := chi.URLParam(r, "token")
	if tokenArg == "" {
		writeError(w, http.StatusBadRequest, "missing_token", "token is required")
		return
	}

	token, ok := h.graph.Node(tokenArg)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown_token", "unknown token: "+tokenArg)
		return
	}

	quote := h.defaultQuote
	if q := r.URL.Query().Get("quote"); q != "" {
		if quote, ok = h.graph.Node(q); !ok {
			writeError(w, http.StatusNotFound, "unknown_token", "unknown quote token: "+q)
			return
		}
	}

	price, err := h.priceService.GetTokenPrice(r.Context(), token, quote)
	if err != nil {
		if errors.Is(err, services.ErrNoPrice) {
			writeError(w, http.StatusNotFound, "price_not_found", err.Error())
			return
		}
		writeError(w, http.StatusBadGateway, "price_failed", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, PriceResponse{
		Token:     token.Address.Hex(),
		Symbol:    token.Symbol,
		Quote:     quote.Symbol,
		Price:     formatUnits(price, quote.Decimals),
		PriceRaw:  price.String(),
		UpdatedAt: time.Now().UTC().Format(time.RFC3339),
	})
}

// formatUnits renders an integer amount with the given number of decimals,
// trimming trailing zeros
func formatUnits(amount *big.Int, decimals uint8) string {
	s := new(big.Int).Abs(amount).String()
	d := int(decimals)
	if len(s) <= d {
		s = strings.Repeat("0", d-len(s)+1) + s
	}
	whole, frac := s[:len(s)-d], strings.TrimRight(s[len(s)-d:], "0")
	if amount.Sign() < 0 {
		whole = "-" + whole
	}
	if frac == "" {
		return whole
	}
	return whole + "." + frac
}
