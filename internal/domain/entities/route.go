package entities

import (
	"errors"
	"fmt"
	"strings"
)

// HopKind selects how a hop is quoted and executed
type HopKind uint8

const (
	HopPoolSwap HopKind = iota + 1
	HopWrapNative
	HopUnwrapNative
)

func (k HopKind) String() string {
	switch k {
	case HopPoolSwap:
		return "pool_swap"
	case HopWrapNative:
		return "wrap_native"
	case HopUnwrapNative:
		return "unwrap_native"
	default:
		return "unknown"
	}
}

var ErrMissingEdge = errors.New("no edge between consecutive tokens")

// EdgeLookup resolves the pool connecting two adjacent tokens. A nil pool with
// ok == true marks the synthetic native/wrapped-native edge.
type EdgeLookup func(from, to Token) (pool *Pool, ok bool)

// Hop represents a single conversion step in a route
type Hop struct {
	Kind HopKind `json:"kind"`
	From Token   `json:"from"`
	To   Token   `json:"to"`
	Pool *Pool   `json:"pool,omitempty"`
}

// Route represents a swap path from tokenIn to tokenOut. It is built once and
// not modified afterwards.
type Route struct {
	hops []Hop
}

// NewRoute resolves each consecutive pair of the path into a hop. Paths shorter
// than two tokens produce an empty route.
func NewRoute(path []Token, lookup EdgeLookup) (*Route, error) {
	r := &Route{}
	if len(path) < 2 {
		return r, nil
	}

	r.hops = make([]Hop, 0, len(path)-1)
	for i := 0; i < len(path)-1; i++ {
		from, to := path[i], path[i+1]
		pool, ok := lookup(from, to)
		if !ok {
			return nil, fmt.Errorf("%s -> %s: %w", from, to, ErrMissingEdge)
		}

		hop := Hop{From: from, To: to, Pool: pool}
		switch {
		case pool != nil:
			hop.Kind = HopPoolSwap
		case from.IsNative:
			hop.Kind = HopWrapNative
		case to.IsNative:
			hop.Kind = HopUnwrapNative
		default:
			return nil, fmt.Errorf("%s -> %s: poolless edge between non-native tokens", from, to)
		}
		r.hops = append(r.hops, hop)
	}

	return r, nil
}

// Hops returns a copy of the route's hops
func (r *Route) Hops() []Hop {
	out := make([]Hop, len(r.hops))
	copy(out, r.hops)
	return out
}

func (r *Route) Hop(i int) Hop {
	return r.hops[i]
}

// Len returns the number of hops
func (r *Route) Len() int {
	return len(r.hops)
}

func (r *Route) IsEmpty() bool {
	return len(r.hops) == 0
}

func (r *Route) TokenIn() Token {
	return r.hops[0].From
}

func (r *Route) TokenOut() Token {
	return r.hops[len(r.hops)-1].To
}

// Tokens returns the token path the route was built from
func (r *Route) Tokens() []Token {
	if len(r.hops) == 0 {
		return nil
	}
	tokens := make([]Token, 0, len(r.hops)+1)
	tokens = append(tokens, r.hops[0].From)
	for _, h := range r.hops {
		tokens = append(tokens, h.To)
	}
	return tokens
}

func (r *Route) String() string {
	tokens := r.Tokens()
	symbols := make([]string, len(tokens))
	for i, t := range tokens {
		symbols[i] = t.String()
	}
	return strings.Join(symbols, " > ")
}

func (r *Route) First() Hop {
	return r.hops[0]
}

func (r *Route) Last() Hop {
	return r.hops[len(r.hops)-1]
}
