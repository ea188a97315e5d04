package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/bimakw/swap-router/internal/domain/entities"
	"github.com/bimakw/swap-router/internal/domain/services"
)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// TxResponse is an unsigned transaction ready for a wallet
type TxResponse struct {
	To    string        `json:"to"`
	Data  hexutil.Bytes `json:"data"`
	Value string        `json:"value"`
}

// RouteHop represents a hop in the route
type RouteHop struct {
	Kind string `json:"kind"`
	From string `json:"from"`
	To   string `json:"to"`
	Pool string `json:"pool,omitempty"`
}

func newTxResponse(call entities.Call) TxResponse {
	value := "0"
	if call.Value != nil {
		value = call.Value.String()
	}
	return TxResponse{
		To:    call.To.Hex(),
		Data:  hexutil.Bytes(call.Data),
		Value: value,
	}
}

func newRouteHops(route *entities.Route) []RouteHop {
	hops := make([]RouteHop, 0, route.Len())
	for _, hop := range route.Hops() {
		rh := RouteHop{
			Kind: hop.Kind.String(),
			From: hop.From.String(),
			To:   hop.To.String(),
		}
		if hop.Pool != nil {
			rh.Pool = hop.Pool.Address.Hex()
		}
		hops = append(hops, rh)
	}
	return hops
}

func approvalTx(a *services.Approval) *TxResponse {
	if a == nil {
		return nil
	}
	tx := newTxResponse(a.Call)
	return &tx
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{
		Error:   code,
		Message: message,
	})
}
