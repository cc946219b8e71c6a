package schema

import "fmt"

// SchemaError reports an operation whose target table or field is missing
// or would collide with an existing one.
type SchemaError struct {
	Table  string
	Field  string
	Reason string
}

func (e *SchemaError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("schema error on %s.%s: %s", e.Table, e.Field, e.Reason)
	}
	return fmt.Sprintf("schema error on %s: %s", e.Table, e.Reason)
}

// ConsistencyError reports a constraint that could not be kept valid while
// a field it references was renamed.
type ConsistencyError struct {
	Table      string
	Constraint string
	Reason     string
}

func (e *ConsistencyError) Error() string {
	return fmt.Sprintf("consistency error on %s (%s): %s", e.Table, e.Constraint, e.Reason)
}
