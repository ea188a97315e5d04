package handlers

import (
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	"github.com/bimakw/swap-router/internal/domain/entities"
	"github.com/bimakw/swap-router/internal/domain/services"
	"github.com/bimakw/swap-router/internal/logger"
)

// QuoteHandler serves routes, quotes and swap submission
type QuoteHandler struct {
	router          *services.Router
	defaultSlippage float64
	log             zerolog.Logger
}

func NewQuoteHandler(router *services.Router, defaultSlippage float64) *QuoteHandler {
	return &QuoteHandler{
		router:          router,
		defaultSlippage: defaultSlippage,
		log:             logger.ForService("http"),
	}
}

// QuoteRequest carries the quote parameters. Tokens are symbols or addresses,
// amounts are integers in base units and slippage is a fraction.
type QuoteRequest struct {
	From      string   `json:"from"`
	To        string   `json:"to"`
	Amount    string   `json:"amount"`
	Direction string   `json:"direction"`
	Slippage  *float64 `json:"slippage,omitempty"`
	Account   string   `json:"account"`
	Recipient string   `json:"recipient"`
}

// QuoteResponse represents a quote response
type QuoteResponse struct {
	From               string               `json:"from"`
	To                 string               `json:"to"`
	Direction          string               `json:"direction"`
	Requested          string               `json:"requested"`
	Amount             string               `json:"amount"`
	AmountWithSlippage string               `json:"amountWithSlippage"`
	FullAmount         string               `json:"fullAmount"`
	Slippage           float64              `json:"slippage"`
	GasEstimate        uint64               `json:"gasEstimate"`
	Deadline           string               `json:"deadline"`
	Route              []RouteHop           `json:"route"`
	Hops               []services.StepQuote `json:"hops"`
	Tx                 TxResponse           `json:"tx"`
	Approval           *TxResponse          `json:"approval,omitempty"`
	Plan               *entities.Plan       `json:"plan"`
}

// SwapResponse lists the transactions sent for a swap
type SwapResponse struct {
	Quote        QuoteResponse `json:"quote"`
	ApprovalHash string        `json:"approvalHash,omitempty"`
	SwapHash     string        `json:"swapHash"`
}

// RouteResponse represents a route lookup
type RouteResponse struct {
	From string     `json:"from"`
	To   string     `json:"to"`
	Path string     `json:"path"`
	Hops []RouteHop `json:"hops"`
}

type requestError struct {
	code    string
	message string
}

func (e *requestError) Error() string { return e.message }

type parsedQuote struct {
	from, to  entities.Token
	amount    *big.Int
	direction services.Direction
	slippage  float64
	account   common.Address
	recipient common.Address
}

func (h *QuoteHandler) parse(req QuoteRequest) (*parsedQuote, error) {
	if req.From == "" || req.To == "" || req.Amount == "" {
		return nil, &requestError{"missing_params", "from, to, and amount are required"}
	}

	g := h.router.Graph()
	from, ok := g.Node(req.From)
	if !ok {
		return nil, &requestError{"unknown_token", "unknown token: " + req.From}
	}
	to, ok := g.Node(req.To)
	if !ok {
		return nil, &requestError{"unknown_token", "unknown token: " + req.To}
	}

	amount, ok := new(big.Int).SetString(req.Amount, 10)
	if !ok || amount.Sign() <= 0 {
		return nil, &requestError{"invalid_amount", "amount must be a positive integer"}
	}

	dir, err := services.ParseDirection(req.Direction)
	if err != nil {
		return nil, &requestError{"invalid_direction", err.Error()}
	}

	slippage := h.defaultSlippage
	if req.Slippage != nil {
		slippage = *req.Slippage
	}
	if slippage < 0 || slippage >= 1 {
		return nil, &requestError{"invalid_slippage", "slippage must be a fraction in [0, 1)"}
	}

	p := &parsedQuote{from: from, to: to, amount: amount, direction: dir, slippage: slippage}
	if req.Account != "" {
		if !common.IsHexAddress(req.Account) {
			return nil, &requestError{"invalid_account", "account is not a valid address"}
		}
		p.account = common.HexToAddress(req.Account)
	}
	p.recipient = p.account
	if req.Recipient != "" {
		if !common.IsHexAddress(req.Recipient) {
			return nil, &requestError{"invalid_recipient", "recipient is not a valid address"}
		}
		p.recipient = common.HexToAddress(req.Recipient)
	}
	if p.recipient == (common.Address{}) {
		return nil, &requestError{"missing_recipient", "account or recipient is required"}
	}
	return p, nil
}

func (h *QuoteHandler) quote(r *http.Request, p *parsedQuote) (*services.Quote, *services.QuoteResult, error) {
	q := h.router.BuildQuote(p.from, p.to, p.account)
	if q == nil {
		return nil, nil, &requestError{"no_route", "no route from " + p.from.String() + " to " + p.to.String()}
	}

	var result *services.QuoteResult
	var err error
	if p.direction == services.Reverse {
		result, err = q.QuoteReverse(r.Context(), p.amount, p.recipient, p.slippage)
	} else {
		result, err = q.QuoteForward(r.Context(), p.amount, p.recipient, p.slippage)
	}
	return q, result, err
}

// GetQuote handles GET /api/v1/quote
func (h *QuoteHandler) GetQuote(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	req := QuoteRequest{
		From:      query.Get("from"),
		To:        query.Get("to"),
		Amount:    query.Get("amount"),
		Direction: query.Get("direction"),
		Account:   query.Get("account"),
		Recipient: query.Get("recipient"),
	}
	if s := query.Get("slippage"); s != "" {
		slippage, err := strconv.ParseFloat(s, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_slippage", "slippage must be a number")
			return
		}
		req.Slippage = &slippage
	}

	p, err := h.parse(req)
	if err != nil {
		h.fail(w, err)
		return
	}
	q, result, err := h.quote(r, p)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, buildQuoteResponse(p, q, result))
}

// Swap handles POST /api/v1/swap. It sends the approval first when one is
// needed, then the swap, both from the request's account.
func (h *QuoteHandler) Swap(w http.ResponseWriter, r *http.Request) {
	var req QuoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "request body must be JSON")
		return
	}
	if req.Account == "" {
		writeError(w, http.StatusBadRequest, "missing_account", "account is required to send a swap")
		return
	}

	p, err := h.parse(req)
	if err != nil {
		h.fail(w, err)
		return
	}
	q, result, err := h.quote(r, p)
	if err != nil {
		h.fail(w, err)
		return
	}

	resp := SwapResponse{Quote: buildQuoteResponse(p, q, result)}
	if result.ExecuteApproval != nil {
		hash, err := result.ExecuteApproval(r.Context())
		if err != nil {
			writeError(w, http.StatusBadGateway, "approval_failed", err.Error())
			return
		}
		resp.ApprovalHash = hash.Hex()
	}

	hash, err := result.ExecuteSwap(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, "swap_failed", err.Error())
		return
	}
	resp.SwapHash = hash.Hex()
	writeJSON(w, http.StatusOK, resp)
}

// GetRoute handles GET /api/v1/route
func (h *QuoteHandler) GetRoute(w http.ResponseWriter, r *http.Request) {
	fromArg, toArg := r.URL.Query().Get("from"), r.URL.Query().Get("to")
	if fromArg == "" || toArg == "" {
		writeError(w, http.StatusBadRequest, "missing_params", "from and to are required")
		return
	}

	g := h.router.Graph()
	from, okFrom := g.Node(fromArg)
	to, okTo := g.Node(toArg)
	if !okFrom || !okTo {
		writeError(w, http.StatusNotFound, "no_route", "unknown token")
		return
	}

	route := h.router.FindRoute(from, to)
	if route == nil {
		writeError(w, http.StatusNotFound, "no_route", "no route from "+from.String()+" to "+to.String())
		return
	}
	writeJSON(w, http.StatusOK, RouteResponse{
		From: from.Address.Hex(),
		To:   to.Address.Hex(),
		Path: route.String(),
		Hops: newRouteHops(route),
	})
}

func (h *QuoteHandler) fail(w http.ResponseWriter, err error) {
	var reqErr *requestError
	switch {
	case errors.As(err, &reqErr) && reqErr.code == "no_route":
		writeError(w, http.StatusNotFound, reqErr.code, reqErr.message)
	case errors.As(err, &reqErr):
		writeError(w, http.StatusBadRequest, reqErr.code, reqErr.message)
	case errors.Is(err, services.ErrInvalidSlippage), errors.Is(err, services.ErrInvalidAmount):
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
	default:
		h.log.Warn().Err(err).Msg("quote failed")
		writeError(w, http.StatusBadGateway, "quote_failed", err.Error())
	}
}

func buildQuoteResponse(p *parsedQuote, q *services.Quote, result *services.QuoteResult) QuoteResponse {
	return QuoteResponse{
		From:               p.from.Address.Hex(),
		To:                 p.to.Address.Hex(),
		Direction:          result.Direction.String(),
		Requested:          p.amount.String(),
		Amount:             result.Amount.String(),
		AmountWithSlippage: result.AmountWithSlippage.String(),
		FullAmount:         result.FullAmount.String(),
		Slippage:           p.slippage,
		GasEstimate:        result.GasEstimate,
		Deadline:           result.Deadline.String(),
		Route:              newRouteHops(q.Route()),
		Hops:               q.HopQuotes(),
		Tx:                 newTxResponse(result.Call),
		Approval:           approvalTx(result.Approval),
		Plan:               result.Plan,
	}
}
