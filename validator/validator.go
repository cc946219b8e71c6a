package validator

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/hashicorp/go-multierror"

	"github.com/ridoystarlord/depmigrate/migration"
	"github.com/ridoystarlord/depmigrate/planner"
	"github.com/ridoystarlord/depmigrate/schema"
)

// ValidationError represents a validation finding with details
type ValidationError struct {
	Type      string `json:"type"`
	Migration string `json:"migration,omitempty"`
	Table     string `json:"table,omitempty"`
	Column    string `json:"column,omitempty"`
	Message   string `json:"message"`
	Severity  string `json:"severity"` // "error", "warning", "info"
}

func (e ValidationError) Error() string {
	var where []string
	if e.Migration != "" {
		where = append(where, e.Migration)
	}
	if e.Table != "" {
		t := e.Table
		if e.Column != "" {
			t += "." + e.Column
		}
		where = append(where, t)
	}
	if len(where) == 0 {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", strings.Join(where, " "), e.Message)
}

// ValidationResult contains all validation results
type ValidationResult struct {
	Valid    bool              `json:"valid"`
	Errors   []ValidationError `json:"errors"`
	Warnings []ValidationError `json:"warnings"`
	Info     []ValidationError `json:"info"`
}

// Err aggregates every error finding, or returns nil when there is none.
func (r *ValidationResult) Err() error {
	var result *multierror.Error
	for _, e := range r.Errors {
		result = multierror.Append(result, e)
	}
	return result.ErrorOrNil()
}

func (r *ValidationResult) addError(e ValidationError) {
	e.Severity = "error"
	r.Errors = append(r.Errors, e)
}

func (r *ValidationResult) addWarning(e ValidationError) {
	e.Severity = "warning"
	r.Warnings = append(r.Warnings, e)
}

var numbered = regexp.MustCompile(`^\d{4}_[a-z0-9_]+$`)

var reservedKeywords = []string{"user", "order", "group", "table", "index", "view", "schema", "select", "where", "from"}

var validTypes = map[string]bool{
	// Numeric types
	"smallint": true, "integer": true, "int": true, "bigint": true,
	"decimal": true, "numeric": true, "real": true, "double precision": true,
	"serial": true, "bigserial": true, "smallserial": true,

	// Character types
	"character varying": true, "varchar": true, "character": true, "char": true,
	"text": true,

	// Binary data types
	"bytea": true, "blob": true,

	// Date/time types
	"timestamp": true, "timestamp with time zone": true, "timestamptz": true,
	"date": true, "time": true, "interval": true, "datetime": true,

	"boolean": true, "bool": true,
	"json": true, "jsonb": true,
	"uuid": true,
}

// Validate checks every registered migration without touching a database:
// naming rules, dependencies, cycles and the operations' preconditions,
// simulated in dependency order.
func Validate(reg *migration.Registry) *ValidationResult {
	result := &ValidationResult{
		Valid:    true,
		Errors:   []ValidationError{},
		Warnings: []ValidationError{},
		Info:     []ValidationError{},
	}

	for _, m := range reg.All() {
		validateMigration(m, result)
	}

	graph, err := planner.NewGraph(reg)
	if err != nil {
		result.addError(ValidationError{Type: "dependency", Message: err.Error()})
		result.Valid = false
		return result
	}
	plan, err := planner.Forwards(graph, nil)
	if err != nil {
		result.addError(planError(err))
		result.Valid = false
		return result
	}

	final := plan.Final()
	result.Info = append(result.Info, ValidationError{
		Type:     "summary",
		Message:  fmt.Sprintf("%d migration(s) across %d app(s) produce %d table(s)", reg.Len(), len(reg.Apps()), len(final.Tables())),
		Severity: "info",
	})
	for _, app := range reg.Apps() {
		if leaves := reg.Leaves(app); len(leaves) > 1 {
			result.addWarning(ValidationError{
				Type:    "leaves",
				Message: fmt.Sprintf("app %s has %d leaf migrations (%s); add a migration depending on all of them", app, len(leaves), joinKeys(leaves)),
			})
		}
	}

	result.Valid = len(result.Errors) == 0
	return result
}

func planError(err error) ValidationError {
	var opErr *migration.OperationError
	if errors.As(err, &opErr) {
		ve := ValidationError{Type: "operation", Migration: opErr.Migration.String(), Table: opErr.Op.TableName, Message: opErr.Err.Error()}
		var schemaErr *schema.SchemaError
		var consistencyErr *schema.ConsistencyError
		switch {
		case errors.As(err, &schemaErr):
			ve.Type = "schema"
			ve.Column = schemaErr.Field
		case errors.As(err, &consistencyErr):
			ve.Type = "consistency"
		}
		return ve
	}
	var cycleErr *planner.DependencyCycleError
	if errors.As(err, &cycleErr) {
		return ValidationError{Type: "cycle", Message: err.Error()}
	}
	return ValidationError{Type: "plan", Message: err.Error()}
}

func validateMigration(m *migration.Migration, result *ValidationResult) {
	key := m.Key().String()
	if err := validateIdentifier("app name", m.App()); err != nil {
		result.addError(ValidationError{Type: "app_name", Migration: key, Message: err.Error()})
	}
	if !numbered.MatchString(m.Name()) {
		result.addWarning(ValidationError{Type: "migration_name", Migration: key, Message: fmt.Sprintf("migration name '%s' does not follow the NNNN_slug convention", m.Name())})
	}
	if len(m.Operations()) == 0 {
		result.addWarning(ValidationError{Type: "empty", Migration: key, Message: "migration has no operations"})
	}
	for _, dep := range m.Dependencies() {
		if dep == m.Key() {
			result.addError(ValidationError{Type: "dependency", Migration: key, Message: "migration depends on itself"})
		}
	}

	for _, op := range m.Operations() {
		validateOperation(key, op, result)
	}
}

func validateOperation(key string, op migration.Operation, result *ValidationResult) {
	if err := validateIdentifier("table name", op.TableName); err != nil {
		result.addError(ValidationError{Type: "table_name", Migration: key, Table: op.TableName, Message: err.Error()})
	} else if isReservedKeyword(op.TableName) {
		result.addWarning(ValidationError{Type: "table_name", Migration: key, Table: op.TableName, Message: fmt.Sprintf("table name '%s' is a reserved keyword", op.TableName)})
	}

	switch op.Type {
	case migration.CreateModelOp:
		primaries := 0
		for _, col := range op.Columns {
			if err := validateIdentifier("column name", col.Name); err != nil {
				result.addError(ValidationError{Type: "column_name", Migration: key, Table: op.TableName, Column: col.Name, Message: err.Error()})
			}
			if col.Type == "" {
				result.addError(ValidationError{Type: "data_type", Migration: key, Table: op.TableName, Column: col.Name, Message: "data type is required"})
			} else if err := validateDataType(col.Type); err != nil {
				result.addWarning(ValidationError{Type: "data_type", Migration: key, Table: op.TableName, Column: col.Name, Message: err.Error()})
			}
			if col.Primary {
				primaries++
			}
			if fk := col.ForeignKey; fk != nil {
				if err := validateOnDelete(fk.OnDelete); err != nil {
					result.addError(ValidationError{Type: "foreign_key", Migration: key, Table: op.TableName, Column: col.Name, Message: err.Error()})
				}
			}
		}
		if primaries > 1 {
			result.addError(ValidationError{Type: "primary_key", Migration: key, Table: op.TableName, Message: "more than one column is marked primary"})
		}
		if primaries == 0 {
			result.addWarning(ValidationError{Type: "primary_key", Migration: key, Table: op.TableName, Message: "table has no primary key"})
		}
		validateUniqueTogether(key, op, result)

	case migration.RenameFieldOp:
		if err := validateIdentifier("column name", op.NewName); err != nil {
			result.addError(ValidationError{Type: "column_name", Migration: key, Table: op.TableName, Column: op.NewName, Message: err.Error()})
		}

	case migration.AlterUniqueTogetherOp:
		validateUniqueTogether(key, op, result)
	}
}

func validateUniqueTogether(key string, op migration.Operation, result *ValidationResult) {
	for _, fields := range op.UniqueTogether {
		if len(fields) == 0 {
			result.addError(ValidationError{Type: "unique_together", Migration: key, Table: op.TableName, Message: "unique_together entry has no fields"})
			continue
		}
		if len(fields) == 1 {
			result.addWarning(ValidationError{Type: "unique_together", Migration: key, Table: op.TableName, Column: fields[0], Message: "single-field unique_together; consider a unique column"})
		}
		if name := schema.ConstraintName(op.TableName, fields); len(name) == schema.MaxIdentifierLength {
			result.Info = append(result.Info, ValidationError{Type: "unique_together", Migration: key, Table: op.TableName, Message: fmt.Sprintf("constraint name shortened to %s", name), Severity: "info"})
		}
	}
}

func validateIdentifier(kind, name string) error {
	if name == "" {
		return fmt.Errorf("%s cannot be empty", kind)
	}
	if len(name) > schema.MaxIdentifierLength {
		return fmt.Errorf("%s '%s' is too long (max %d characters)", kind, name, schema.MaxIdentifierLength)
	}
	for _, char := range name {
		if !((char >= 'a' && char <= 'z') || (char >= 'A' && char <= 'Z') || (char >= '0' && char <= '9') || char == '_') {
			return fmt.Errorf("%s '%s' contains invalid character '%c'", kind, name, char)
		}
	}
	if name[0] >= '0' && name[0] <= '9' {
		return fmt.Errorf("%s '%s' cannot start with a digit", kind, name)
	}
	return nil
}

func isReservedKeyword(name string) bool {
	for _, keyword := range reservedKeywords {
		if strings.ToLower(name) == keyword {
			return true
		}
	}
	return false
}

// validateDataType accepts the base type; a length or precision suffix such
// as VARCHAR(128) is ignored.
func validateDataType(dataType string) error {
	base := strings.ToLower(strings.TrimSpace(dataType))
	if i := strings.Index(base, "("); i >= 0 {
		base = strings.TrimSpace(base[:i])
	}
	base = strings.TrimSuffix(base, "[]")
	if !validTypes[base] {
		return fmt.Errorf("unknown data type '%s'", dataType)
	}
	return nil
}

func validateOnDelete(action string) error {
	switch strings.ToUpper(action) {
	case "", "CASCADE", "SET NULL", "SET DEFAULT", "RESTRICT", "NO ACTION":
		return nil
	default:
		return fmt.Errorf("invalid ON DELETE action '%s'", action)
	}
}

func joinKeys(keys []migration.Key) string {
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k.String())
	}
	return strings.Join(parts, ", ")
}
