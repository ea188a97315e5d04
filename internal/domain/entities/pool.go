package entities

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// PoolType represents the kind of liquidity pool backing an edge
type PoolType string

const (
	PoolWell PoolType = "well"
)

var (
	ErrTooFewTokens   = errors.New("pool must trade at least two tokens")
	ErrDuplicateToken = errors.New("pool lists the same token twice")
)

// Pool represents a liquidity pool trading two or more tokens. Pricing lives in
// the pool contract; the router only knows its address and token set.
type Pool struct {
	Address common.Address `json:"address"`
	Name    string         `json:"name"`
	Type    PoolType       `json:"type"`
	Tokens  []Token        `json:"tokens"`
}

// Validate checks that the pool trades at least two distinct tokens
func (p *Pool) Validate() error {
	if len(p.Tokens) < 2 {
		return fmt.Errorf("%s: %w", p.Address.Hex(), ErrTooFewTokens)
	}
	seen := make(map[TokenKey]struct{}, len(p.Tokens))
	for _, t := range p.Tokens {
		if _, ok := seen[t.Key()]; ok {
			return fmt.Errorf("%s: %w (%s)", p.Address.Hex(), ErrDuplicateToken, t)
		}
		seen[t.Key()] = struct{}{}
	}
	return nil
}

// HasToken reports whether the pool trades the given token
func (p *Pool) HasToken(token Token) bool {
	for _, t := range p.Tokens {
		if t.Equal(token) {
			return true
		}
	}
	return false
}

// TokenPairs returns every unordered pair of tokens traded by the pool
func (p *Pool) TokenPairs() [][2]Token {
	var pairs [][2]Token
	for i := 0; i < len(p.Tokens); i++ {
		for j := i + 1; j < len(p.Tokens); j++ {
			pairs = append(pairs, [2]Token{p.Tokens[i], p.Tokens[j]})
		}
	}
	return pairs
}

func (p *Pool) String() string {
	if p.Name != "" {
		return p.Name
	}
	symbols := make([]string, len(p.Tokens))
	for i, t := range p.Tokens {
		symbols[i] = t.String()
	}
	return strings.Join(symbols, ":")
}
