package services

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	"github.com/bimakw/swap-router/internal/domain/entities"
	"github.com/bimakw/swap-router/internal/domain/graph"
	"github.com/bimakw/swap-router/internal/logger"
	"github.com/bimakw/swap-router/internal/metrics"
)

const defaultDeadlineWindow = 20 * time.Minute

// RouterConfig holds the settlement contracts swaps execute through
type RouterConfig struct {
	Depot          common.Address
	Pipeline       common.Address
	Junction       common.Address
	DeadlineWindow time.Duration
}

// Dependencies are the chain-facing collaborators of a router. Now defaults
// to time.Now.
type Dependencies struct {
	Pools      PoolClient
	Allowances AllowanceReader
	Tx         Transactor
	Now        func() time.Time
}

// Router owns the token graph and hands out quotes for routes through it
type Router struct {
	cfg       RouterConfig
	deps      Dependencies
	graph     *graph.TokenGraph
	builder   *PlanBuilder
	approvals *ApprovalChecker
	log       zerolog.Logger
}

func NewRouter(cfg RouterConfig, deps Dependencies) *Router {
	if cfg.DeadlineWindow <= 0 {
		cfg.DeadlineWindow = defaultDeadlineWindow
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}

	r := &Router{
		cfg:     cfg,
		deps:    deps,
		graph:   graph.New(),
		builder: NewPlanBuilder(cfg.Depot, cfg.Pipeline),
		log:     logger.ForService("router"),
	}
	if deps.Allowances != nil {
		r.approvals = NewApprovalChecker(deps.Allowances)
	}
	return r
}

// Graph exposes the token graph for read-only queries
func (r *Router) Graph() *graph.TokenGraph {
	return r.graph
}

// AddWell registers a well. Registering the same well twice is a no-op.
func (r *Router) AddWell(pool entities.Pool) error {
	if err := r.graph.AddPool(&pool); err != nil {
		return fmt.Errorf("add well %s: %w", pool.Address.Hex(), err)
	}
	r.updateGauges()
	r.log.Debug().Str("well", pool.String()).Msg("well registered")
	return nil
}

// SetNativePair links the native currency to its wrapped token
func (r *Router) SetNativePair(native, wrapped entities.Token) error {
	if err := r.graph.AddNativePair(native, wrapped); err != nil {
		return err
	}
	r.updateGauges()
	return nil
}

func (r *Router) updateGauges() {
	stats := r.graph.Stats()
	metrics.PoolCount.Set(float64(stats.Pools))
	metrics.TokenCount.Set(float64(stats.Nodes))
}

// FindRoute returns the fewest-hop route between two tokens, or nil when none
// exists or both are the same token
func (r *Router) FindRoute(from, to entities.Token) *entities.Route {
	path := r.graph.ShortestPathTokens(from, to)
	if len(path) < 2 {
		metrics.NoRoute.Inc()
		return nil
	}

	route, err := entities.NewRoute(path, r.graph.Edge)
	if err != nil {
		// the path came from the same graph, so every edge resolves
		r.log.Error().Err(err).Str("from", from.String()).Str("to", to.String()).Msg("path without edges")
		return nil
	}
	metrics.RouteHops.Observe(float64(route.Len()))
	return route
}

// BuildQuote prepares a quote for swapping from into to on behalf of account.
// It returns nil when no route connects the two tokens.
func (r *Router) BuildQuote(from, to entities.Token, account common.Address) *Quote {
	route := r.FindRoute(from, to)
	if route == nil {
		return nil
	}

	env := &stepEnv{
		pools:          r.deps.Pools,
		tx:             r.deps.Tx,
		account:        account,
		junction:       r.cfg.Junction,
		deadlineWindow: r.cfg.DeadlineWindow,
		now:            r.deps.Now,
		log:            r.log,
	}
	q, err := newQuote(route, account, env, r.builder, r.approvals, r.cfg.Depot)
	if err != nil {
		r.log.Error().Err(err).Str("route", route.String()).Msg("route has an unsupported hop")
		return nil
	}
	return q
}
