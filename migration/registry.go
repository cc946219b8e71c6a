package migration

import (
	"fmt"
	"sort"
)

// Registry maps each app to its migrations in registration order. Callers
// build one explicitly and hand it to the planner.
type Registry struct {
	apps  map[string][]*Migration
	byKey map[Key]*Migration
}

func NewRegistry() *Registry {
	return &Registry{
		apps:  map[string][]*Migration{},
		byKey: map[Key]*Migration{},
	}
}

// Register adds migrations. A key registered twice is an error and nothing
// from the failing call is kept.
func (r *Registry) Register(migrations ...*Migration) error {
	batch := map[Key]bool{}
	for _, m := range migrations {
		if _, exists := r.byKey[m.Key()]; exists || batch[m.Key()] {
			return fmt.Errorf("migration %s registered twice", m.Key())
		}
		batch[m.Key()] = true
	}
	for _, m := range migrations {
		r.apps[m.App()] = append(r.apps[m.App()], m)
		r.byKey[m.Key()] = m
	}
	return nil
}

// Apps returns the registered app names, sorted.
func (r *Registry) Apps() []string {
	apps := make([]string, 0, len(r.apps))
	for app := range r.apps {
		apps = append(apps, app)
	}
	sort.Strings(apps)
	return apps
}

func (r *Registry) Migrations(app string) []*Migration {
	return append([]*Migration(nil), r.apps[app]...)
}

// All returns every migration, grouped by app in sorted app order.
func (r *Registry) All() []*Migration {
	var out []*Migration
	for _, app := range r.Apps() {
		out = append(out, r.apps[app]...)
	}
	return out
}

func (r *Registry) Lookup(k Key) (*Migration, bool) {
	m, ok := r.byKey[k]
	return m, ok
}

func (r *Registry) Len() int { return len(r.byKey) }

// Leaves returns the migrations of app that no other migration of the same
// app depends on, sorted by name. New migrations for the app depend on these.
func (r *Registry) Leaves(app string) []Key {
	dependedOn := map[Key]bool{}
	for _, m := range r.apps[app] {
		for _, d := range m.dependencies {
			if d.App == app {
				dependedOn[d] = true
			}
		}
	}
	var leaves []Key
	for _, m := range r.apps[app] {
		if !dependedOn[m.key] {
			leaves = append(leaves, m.key)
		}
	}
	sort.Slice(leaves, func(i, j int) bool { return leaves[i].Less(leaves[j]) })
	return leaves
}
