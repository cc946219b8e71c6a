package planner

import (
	"fmt"
	"strings"

	"github.com/ridoystarlord/depmigrate/migration"
)

// DependencyCycleError is returned when the dependency graph is not acyclic.
// In Cycle each migration depends on the next one and the last depends on
// the first.
type DependencyCycleError struct {
	Cycle []migration.Key
}

func (e *DependencyCycleError) Error() string {
	parts := make([]string, 0, len(e.Cycle)+1)
	for _, k := range e.Cycle {
		parts = append(parts, k.String())
	}
	if len(e.Cycle) > 0 {
		parts = append(parts, e.Cycle[0].String())
	}
	return "dependency cycle: " + strings.Join(parts, " -> ")
}

// NodeNotFoundError is returned when a migration names a dependency (or a
// target) that is not registered.
type NodeNotFoundError struct {
	Migration  migration.Key
	Dependency migration.Key
}

func (e *NodeNotFoundError) Error() string {
	if e.Migration == (migration.Key{}) {
		return fmt.Sprintf("migration %s not found", e.Dependency)
	}
	return fmt.Sprintf("migration %s depends on unknown migration %s", e.Migration, e.Dependency)
}

// InconsistentHistoryError is returned when an applied migration depends on
// one that has not been applied.
type InconsistentHistoryError struct {
	Migration  migration.Key
	Dependency migration.Key
}

func (e *InconsistentHistoryError) Error() string {
	return fmt.Sprintf("migration %s is applied before its dependency %s", e.Migration, e.Dependency)
}

// BlockedRollbackError is returned when a migration cannot be unapplied
// because an applied migration that stays applied depends on it.
type BlockedRollbackError struct {
	Migration migration.Key
	Dependant migration.Key
}

func (e *BlockedRollbackError) Error() string {
	return fmt.Sprintf("cannot unapply %s: applied migration %s depends on it", e.Migration, e.Dependant)
}
