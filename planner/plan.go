package planner

import (
	"fmt"

	"github.com/ridoystarlord/depmigrate/migration"
	"github.com/ridoystarlord/depmigrate/schema"
)

// Step is one migration to run together with the schema state around each of
// its operations: Snapshots[0] is the state before the first operation and
// Snapshots[i+1] the state after operation i.
type Step struct {
	Migration *migration.Migration
	Snapshots []*schema.State
}

func (s Step) Key() migration.Key { return s.Migration.Key() }

func (s Step) Before() *schema.State { return s.Snapshots[0] }

func (s Step) After() *schema.State { return s.Snapshots[len(s.Snapshots)-1] }

// Plan is the result of planning against a set of applied migrations.
type Plan struct {
	// Order is the full topological order of the graph.
	Order []migration.Key
	// Applied lists the applied migrations known to the graph, in Order.
	Applied []migration.Key
	// Unknown lists applied migrations that are not registered.
	Unknown []migration.Key
	// State is the schema after replaying Applied.
	State *schema.State
	// Steps are the migrations to run, in execution order.
	Steps []Step
}

// Final returns the schema state once every step has run.
func (p *Plan) Final() *schema.State {
	if len(p.Steps) == 0 {
		return p.State
	}
	return p.Steps[len(p.Steps)-1].After()
}

func (p *Plan) Keys() []migration.Key {
	out := make([]migration.Key, 0, len(p.Steps))
	for _, s := range p.Steps {
		out = append(out, s.Key())
	}
	return out
}

// Forwards plans every unapplied migration, or when targets are given only
// those the targets need. Every pending operation is simulated here, so a
// cycle, a missing dependency, an inconsistent history or an unmet operation
// precondition is reported before anything touches the database.
func Forwards(g *Graph, applied map[migration.Key]bool, targets ...migration.Key) (*Plan, error) {
	order, err := g.Order()
	if err != nil {
		return nil, err
	}

	var wanted map[migration.Key]bool
	if len(targets) > 0 {
		wanted = map[migration.Key]bool{}
		for _, t := range targets {
			if _, ok := g.Node(t); !ok {
				return nil, &NodeNotFoundError{Dependency: t}
			}
			for k := range g.Ancestors(t) {
				wanted[k] = true
			}
		}
	}

	plan := &Plan{Order: order, Unknown: unknownApplied(g, applied)}
	for _, k := range order {
		if !applied[k] {
			continue
		}
		m, _ := g.Node(k)
		for _, dep := range m.Dependencies() {
			if !applied[dep] {
				return nil, &InconsistentHistoryError{Migration: k, Dependency: dep}
			}
		}
		plan.Applied = append(plan.Applied, k)
	}

	state, err := replay(g, plan.Applied)
	if err != nil {
		return nil, err
	}
	plan.State = state

	current := state
	for _, k := range order {
		if applied[k] || (wanted != nil && !wanted[k]) {
			continue
		}
		m, _ := g.Node(k)
		snapshots, err := m.Simulate(current)
		if err != nil {
			return nil, err
		}
		plan.Steps = append(plan.Steps, Step{Migration: m, Snapshots: snapshots})
		current = snapshots[len(snapshots)-1]
	}
	return plan, nil
}

// Backwards plans the rollback of the n most recently applied migrations.
// appliedOrder lists applied migrations most recent first. The returned
// steps are in unapply order; their snapshots run forwards, from the state
// before the migration to the state after it.
func Backwards(g *Graph, appliedOrder []migration.Key, n int) (*Plan, error) {
	order, err := g.Order()
	if err != nil {
		return nil, err
	}
	if n > len(appliedOrder) {
		n = len(appliedOrder)
	}

	undo := map[migration.Key]bool{}
	for _, k := range appliedOrder[:n] {
		if _, ok := g.Node(k); !ok {
			return nil, &NodeNotFoundError{Dependency: k}
		}
		undo[k] = true
	}
	applied := map[migration.Key]bool{}
	for _, k := range appliedOrder {
		applied[k] = true
	}
	for k := range undo {
		for _, d := range g.Dependants(k) {
			if applied[d] && !undo[d] {
				return nil, &BlockedRollbackError{Migration: k, Dependant: d}
			}
		}
	}

	plan := &Plan{Order: order, Unknown: unknownApplied(g, applied)}
	var kept []migration.Key
	for _, k := range order {
		if applied[k] {
			plan.Applied = append(plan.Applied, k)
			if !undo[k] {
				kept = append(kept, k)
			}
		}
	}

	state, err := replay(g, kept)
	if err != nil {
		return nil, err
	}

	// Re-apply the migrations being undone in the order they were applied
	// (oldest first) to recover the state around each of them.
	var forward []Step
	current := state
	for i := n - 1; i >= 0; i-- {
		m, _ := g.Node(appliedOrder[i])
		snapshots, err := m.Simulate(current)
		if err != nil {
			return nil, fmt.Errorf("replaying %s: %w", m.Key(), err)
		}
		forward = append(forward, Step{Migration: m, Snapshots: snapshots})
		current = snapshots[len(snapshots)-1]
	}
	plan.State = current
	for i := len(forward) - 1; i >= 0; i-- {
		plan.Steps = append(plan.Steps, forward[i])
	}
	return plan, nil
}

// State replays the given applied migrations in topological order and
// returns the resulting schema.
func State(g *Graph, applied map[migration.Key]bool) (*schema.State, error) {
	order, err := g.Order()
	if err != nil {
		return nil, err
	}
	var keys []migration.Key
	for _, k := range order {
		if applied[k] {
			keys = append(keys, k)
		}
	}
	return replay(g, keys)
}

func replay(g *Graph, keys []migration.Key) (*schema.State, error) {
	state := schema.NewState()
	for _, k := range keys {
		m, _ := g.Node(k)
		snapshots, err := m.Simulate(state)
		if err != nil {
			return nil, fmt.Errorf("replaying applied migration %s: %w", k, err)
		}
		state = snapshots[len(snapshots)-1]
	}
	return state, nil
}

func unknownApplied(g *Graph, applied map[migration.Key]bool) []migration.Key {
	var out []migration.Key
	for k, ok := range applied {
		if _, known := g.Node(k); ok && !known {
			out = append(out, k)
		}
	}
	sortKeys(out)
	return out
}
