// Package migration defines immutable migration descriptors, the schema
// operations they carry and the registry they are collected in.
package migration

import (
	"crypto/sha256"
	"fmt"
	"strings"

	"github.com/ridoystarlord/depmigrate/schema"
)

// Key identifies a migration by its app (namespace) and name.
type Key struct {
	App  string
	Name string
}

func (k Key) String() string {
	return k.App + "." + k.Name
}

// Less orders keys by name, then app.
func (k Key) Less(o Key) bool {
	if k.Name != o.Name {
		return k.Name < o.Name
	}
	return k.App < o.App
}

// ParseKey parses "app.name". The name may itself contain dots.
func ParseKey(s string) (Key, error) {
	app, name, ok := strings.Cut(strings.TrimSpace(s), ".")
	if !ok || app == "" || name == "" {
		return Key{}, fmt.Errorf("invalid migration reference %q, expected app.name", s)
	}
	return Key{App: app, Name: name}, nil
}

// Migration is an immutable descriptor: it cannot be changed once built.
type Migration struct {
	key          Key
	dependencies []Key
	operations   []Operation
}

// New builds a migration. Dependencies are de-duplicated and keep their
// declaration order; all inputs are copied.
func New(app, name string, dependencies []Key, operations ...Operation) *Migration {
	m := &Migration{key: Key{App: app, Name: name}}
	seen := map[Key]bool{}
	for _, d := range dependencies {
		if seen[d] {
			continue
		}
		seen[d] = true
		m.dependencies = append(m.dependencies, d)
	}
	for _, op := range operations {
		m.operations = append(m.operations, op.clone())
	}
	return m
}

func (m *Migration) Key() Key     { return m.key }
func (m *Migration) App() string  { return m.key.App }
func (m *Migration) Name() string { return m.key.Name }

func (m *Migration) Dependencies() []Key {
	return append([]Key(nil), m.dependencies...)
}

func (m *Migration) Operations() []Operation {
	out := make([]Operation, len(m.operations))
	for i, op := range m.operations {
		out[i] = op.clone()
	}
	return out
}

// Checksum is a sha256 over the canonical form of the operations. It changes
// whenever an already-applied migration is edited.
func (m *Migration) Checksum() string {
	h := sha256.New()
	for _, op := range m.operations {
		h.Write([]byte(op.canonical()))
		h.Write([]byte{'\n'})
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}

// Simulate applies the operations to a copy of state. It returns len(ops)+1
// snapshots: the state before the first operation followed by the state
// after each one. state itself is not modified.
func (m *Migration) Simulate(state *schema.State) ([]*schema.State, error) {
	snapshots := []*schema.State{state.Clone()}
	current := state.Clone()
	for i, op := range m.operations {
		if err := op.Apply(current); err != nil {
			return nil, &OperationError{Migration: m.key, Index: i, Op: op.clone(), Err: err}
		}
		snapshots = append(snapshots, current.Clone())
	}
	return snapshots, nil
}

// OperationError locates a failed operation inside its migration.
type OperationError struct {
	Migration Key
	Index     int
	Op        Operation
	Err       error
}

func (e *OperationError) Error() string {
	return fmt.Sprintf("migration %s, operation %d (%s): %v", e.Migration, e.Index+1, e.Op.Describe(), e.Err)
}

func (e *OperationError) Unwrap() error { return e.Err }
