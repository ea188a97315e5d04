package graph

import (
	"container/heap"

	"github.com/bimakw/swap-router/internal/domain/entities"
)

type queueItem struct {
	key  entities.TokenKey
	dist int
	seq  int
}

// distQueue is a min-heap on distance; seq breaks ties in push order so the
// search visits nodes deterministically.
type distQueue []queueItem

func (q distQueue) Len() int { return len(q) }

func (q distQueue) Less(i, j int) bool {
	if q[i].dist != q[j].dist {
		return q[i].dist < q[j].dist
	}
	return q[i].seq < q[j].seq
}

func (q distQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *distQueue) Push(x any) { *q = append(*q, x.(queueItem)) }

func (q *distQueue) Pop() any {
	old := *q
	item := old[len(old)-1]
	*q = old[:len(old)-1]
	return item
}

// ShortestPath returns the minimum-hop token path between two tokens given by
// symbol or address. It returns nil when either token is unknown, the target
// is unreachable, or start and end are the same token.
func (g *TokenGraph) ShortestPath(start, end string) []entities.Token {
	from, ok := g.Node(start)
	if !ok {
		return nil
	}
	to, ok := g.Node(end)
	if !ok {
		return nil
	}
	return g.ShortestPathTokens(from, to)
}

// ShortestPathTokens is ShortestPath keyed by token identity
func (g *TokenGraph) ShortestPathTokens(from, to entities.Token) []entities.Token {
	if from.Equal(to) {
		return nil
	}

	g.mu.RLock()
	defer g.mu.RUnlock()

	start, end := from.Key(), to.Key()
	if _, ok := g.nodes[start]; !ok {
		return nil
	}
	if _, ok := g.nodes[end]; !ok {
		return nil
	}

	dist := map[entities.TokenKey]int{start: 0}
	prev := make(map[entities.TokenKey]entities.TokenKey)
	settled := make(map[entities.TokenKey]bool)

	q := &distQueue{}
	seq := 0
	heap.Push(q, queueItem{key: start, dist: 0, seq: seq})

	for q.Len() > 0 {
		item := heap.Pop(q).(queueItem)
		if settled[item.key] {
			continue
		}
		settled[item.key] = true
		if item.key == end {
			break
		}

		for _, next := range g.adj[item.key] {
			nd := item.dist + 1
			if d, seen := dist[next]; seen && d <= nd {
				continue
			}
			dist[next] = nd
			prev[next] = item.key
			seq++
			heap.Push(q, queueItem{key: next, dist: nd, seq: seq})
		}
	}

	if _, reached := dist[end]; !reached {
		return nil
	}

	var reversed []entities.TokenKey
	for at := end; ; at = prev[at] {
		reversed = append(reversed, at)
		if at == start {
			break
		}
	}

	path := make([]entities.Token, len(reversed))
	for i, key := range reversed {
		path[len(reversed)-1-i] = g.nodes[key]
	}
	return path
}
