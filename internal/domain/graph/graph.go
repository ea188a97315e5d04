// Package graph holds the token graph used for route discovery. Tokens are
// nodes, pools are edges, and every edge has weight 1: the graph encodes
// reachability and hop count, never price.
package graph

import (
	"bytes"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/bimakw/swap-router/internal/domain/entities"
)

var (
	ErrPoollessEdge       = errors.New("only the native/wrapped-native edge may omit its pool")
	ErrNativePairConflict = errors.New("a different native pair is already registered")
)

type edgeKey struct {
	from entities.TokenKey
	to   entities.TokenKey
}

// edgeSet is every pool connecting one ordered token pair, kept sorted by
// pool address so lookups are deterministic when parallel pools exist.
type edgeSet struct {
	pools     []*entities.Pool
	synthetic bool
}

// Stats summarises the graph size
type Stats struct {
	Nodes int `json:"nodes"`
	Edges int `json:"edges"`
	Pools int `json:"pools"`
}

// TokenGraph is an append-only directed multigraph of tokens and pools. It is
// safe for concurrent reads while pools are still being registered.
type TokenGraph struct {
	mu sync.RWMutex

	nodes     map[entities.TokenKey]entities.Token
	order     []entities.TokenKey
	adj       map[entities.TokenKey][]entities.TokenKey
	edges     map[edgeKey]*edgeSet
	bySymbol  map[string]entities.TokenKey
	byAddress map[common.Address]entities.TokenKey
	pools     map[common.Address]struct{}
	edgeCount int

	// the one native/wrapped pair allowed a pool-less edge
	native  entities.TokenKey
	wrapped entities.TokenKey
	paired  bool
}

func New() *TokenGraph {
	return &TokenGraph{
		nodes:     make(map[entities.TokenKey]entities.Token),
		adj:       make(map[entities.TokenKey][]entities.TokenKey),
		edges:     make(map[edgeKey]*edgeSet),
		bySymbol:  make(map[string]entities.TokenKey),
		byAddress: make(map[common.Address]entities.TokenKey),
		pools:     make(map[common.Address]struct{}),
	}
}

// AddNode inserts a token. Adding a token that is already present is a no-op.
func (g *TokenGraph) AddNode(token entities.Token) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.addNodeLocked(token)
}

func (g *TokenGraph) addNodeLocked(token entities.Token) {
	key := token.Key()
	if _, ok := g.nodes[key]; ok {
		return
	}
	g.nodes[key] = token
	g.order = append(g.order, key)
	if token.Symbol != "" {
		g.bySymbol[strings.ToUpper(token.Symbol)] = key
	}
	g.byAddress[token.Address] = key
}

// AddEdge inserts a -> b and b -> a through pool. Pool-less edges are only
// created by AddNativePair.
func (g *TokenGraph) AddEdge(a, b entities.Token, pool *entities.Pool) error {
	if pool == nil {
		return fmt.Errorf("%s <-> %s: %w", a, b, ErrPoollessEdge)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.addEdgeLocked(a, b, pool)
	return nil
}

func (g *TokenGraph) addEdgeLocked(a, b entities.Token, pool *entities.Pool) {
	g.addNodeLocked(a)
	g.addNodeLocked(b)
	g.addDirectedLocked(a.Key(), b.Key(), pool)
	g.addDirectedLocked(b.Key(), a.Key(), pool)
	if pool != nil {
		g.pools[pool.Address] = struct{}{}
	}
}

func (g *TokenGraph) addDirectedLocked(from, to entities.TokenKey, pool *entities.Pool) {
	k := edgeKey{from: from, to: to}
	set, ok := g.edges[k]
	if !ok {
		set = &edgeSet{}
		g.edges[k] = set
		g.adj[from] = append(g.adj[from], to)
	}

	if pool == nil {
		if !set.synthetic {
			set.synthetic = true
			g.edgeCount++
		}
		return
	}

	i := sort.Search(len(set.pools), func(i int) bool {
		return bytes.Compare(set.pools[i].Address.Bytes(), pool.Address.Bytes()) >= 0
	})
	if i < len(set.pools) && set.pools[i].Address == pool.Address {
		return
	}
	set.pools = append(set.pools, nil)
	copy(set.pools[i+1:], set.pools[i:])
	set.pools[i] = pool
	g.edgeCount++
}

// AddPool registers a pool and an edge pair for every unordered pair of
// tokens it trades.
func (g *TokenGraph) AddPool(pool *entities.Pool) error {
	if err := pool.Validate(); err != nil {
		return err
	}
	for _, pair := range pool.TokenPairs() {
		if err := g.AddEdge(pair[0], pair[1], pool); err != nil {
			return err
		}
	}
	return nil
}

// AddNativePair adds the synthetic edge between the native token and its
// wrapped form.
func (g *TokenGraph) AddNativePair(native, wrapped entities.Token) error {
	if !native.IsNative || wrapped.IsNative {
		return fmt.Errorf("%s/%s: %w", native, wrapped, ErrPoollessEdge)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.paired && (g.native != native.Key() || g.wrapped != wrapped.Key()) {
		return fmt.Errorf("%s/%s: %w", native, wrapped, ErrNativePairConflict)
	}
	g.native, g.wrapped, g.paired = native.Key(), wrapped.Key(), true
	g.addEdgeLocked(native, wrapped, nil)
	return nil
}

// Node resolves a token by symbol (case-insensitive) or hex address
func (g *TokenGraph) Node(symbolOrAddress string) (entities.Token, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var key entities.TokenKey
	var ok bool
	if common.IsHexAddress(symbolOrAddress) {
		key, ok = g.byAddress[common.HexToAddress(symbolOrAddress)]
	} else {
		key, ok = g.bySymbol[strings.ToUpper(symbolOrAddress)]
	}
	if !ok {
		return entities.Token{}, false
	}
	return g.nodes[key], true
}

// HasNode reports whether the token has been registered
func (g *TokenGraph) HasNode(token entities.Token) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.nodes[token.Key()]
	return ok
}

// Edge returns the pool backing from -> to. When several pools connect the
// pair, the one with the lowest address is returned. The synthetic native
// edge yields a nil pool with ok == true.
func (g *TokenGraph) Edge(from, to entities.Token) (*entities.Pool, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	set, ok := g.edges[edgeKey{from: from.Key(), to: to.Key()}]
	if !ok {
		return nil, false
	}
	if len(set.pools) > 0 {
		return set.pools[0], true
	}
	return nil, set.synthetic
}

// Pools returns every pool connecting from -> to, lowest address first
func (g *TokenGraph) Pools(from, to entities.Token) []*entities.Pool {
	g.mu.RLock()
	defer g.mu.RUnlock()

	set, ok := g.edges[edgeKey{from: from.Key(), to: to.Key()}]
	if !ok {
		return nil
	}
	out := make([]*entities.Pool, len(set.pools))
	copy(out, set.pools)
	return out
}

func (g *TokenGraph) Stats() Stats {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return Stats{Nodes: len(g.nodes), Edges: g.edgeCount, Pools: len(g.pools)}
}
