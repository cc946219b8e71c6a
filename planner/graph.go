// Package planner orders migrations by their dependencies and builds
// forwards and backwards plans with the schema state around each step.
package planner

import (
	"container/heap"
	"sort"

	"github.com/ridoystarlord/depmigrate/migration"
)

// Graph is the dependency graph over every registered migration.
type Graph struct {
	nodes      map[migration.Key]*migration.Migration
	dependants map[migration.Key][]migration.Key
}

// NewGraph builds the graph from a registry, failing on references to
// unregistered migrations.
func NewGraph(reg *migration.Registry) (*Graph, error) {
	g := &Graph{
		nodes:      map[migration.Key]*migration.Migration{},
		dependants: map[migration.Key][]migration.Key{},
	}
	for _, m := range reg.All() {
		g.nodes[m.Key()] = m
	}
	for _, m := range reg.All() {
		for _, dep := range m.Dependencies() {
			if _, ok := g.nodes[dep]; !ok {
				return nil, &NodeNotFoundError{Migration: m.Key(), Dependency: dep}
			}
			g.dependants[dep] = append(g.dependants[dep], m.Key())
		}
	}
	return g, nil
}

func (g *Graph) Node(k migration.Key) (*migration.Migration, bool) {
	m, ok := g.nodes[k]
	return m, ok
}

func (g *Graph) Len() int { return len(g.nodes) }

// Dependants returns the migrations that depend directly on k.
func (g *Graph) Dependants(k migration.Key) []migration.Key {
	return append([]migration.Key(nil), g.dependants[k]...)
}

// Order returns every migration in a topological order: each one comes after
// all of its dependencies. Among migrations that are ready at the same time
// the smallest name (then app) goes first, so the order is deterministic.
func (g *Graph) Order() ([]migration.Key, error) {
	indegree := make(map[migration.Key]int, len(g.nodes))
	ready := &keyHeap{}
	for k, m := range g.nodes {
		indegree[k] = len(m.Dependencies())
		if indegree[k] == 0 {
			heap.Push(ready, k)
		}
	}

	order := make([]migration.Key, 0, len(g.nodes))
	for ready.Len() > 0 {
		k := heap.Pop(ready).(migration.Key)
		order = append(order, k)
		for _, d := range g.dependants[k] {
			indegree[d]--
			if indegree[d] == 0 {
				heap.Push(ready, d)
			}
		}
	}

	if len(order) < len(g.nodes) {
		remaining := map[migration.Key]bool{}
		for k, n := range indegree {
			if n > 0 {
				remaining[k] = true
			}
		}
		return nil, &DependencyCycleError{Cycle: g.findCycle(remaining)}
	}
	return order, nil
}

// Ancestors returns k and everything it transitively depends on.
func (g *Graph) Ancestors(k migration.Key) map[migration.Key]bool {
	out := map[migration.Key]bool{}
	stack := []migration.Key{k}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if out[cur] {
			continue
		}
		out[cur] = true
		if m, ok := g.nodes[cur]; ok {
			stack = append(stack, m.Dependencies()...)
		}
	}
	return out
}

// findCycle walks dependencies among the nodes Kahn's algorithm could not
// place and returns the first cycle found, starting from the smallest key.
func (g *Graph) findCycle(remaining map[migration.Key]bool) []migration.Key {
	starts := make([]migration.Key, 0, len(remaining))
	for k := range remaining {
		starts = append(starts, k)
	}
	sortKeys(starts)

	const (
		unvisited = iota
		onPath
		done
	)
	color := map[migration.Key]int{}
	var path []migration.Key
	var cycle []migration.Key

	var visit func(k migration.Key) bool
	visit = func(k migration.Key) bool {
		color[k] = onPath
		path = append(path, k)
		deps := g.nodes[k].Dependencies()
		sortKeys(deps)
		for _, d := range deps {
			if !remaining[d] {
				continue
			}
			switch color[d] {
			case onPath:
				for i, p := range path {
					if p == d {
						cycle = append([]migration.Key(nil), path[i:]...)
						break
					}
				}
				return true
			case unvisited:
				if visit(d) {
					return true
				}
			}
		}
		path = path[:len(path)-1]
		color[k] = done
		return false
	}

	for _, k := range starts {
		if color[k] == unvisited && visit(k) {
			return cycle
		}
	}
	return starts
}

func sortKeys(keys []migration.Key) {
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })
}

type keyHeap []migration.Key

func (h keyHeap) Len() int            { return len(h) }
func (h keyHeap) Less(i, j int) bool  { return h[i].Less(h[j]) }
func (h keyHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *keyHeap) Push(x interface{}) { *h = append(*h, x.(migration.Key)) }
func (h *keyHeap) Pop() interface{} {
	old := *h
	n := len(old)
	k := old[n-1]
	*h = old[:n-1]
	return k
}
