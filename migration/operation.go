package migration

import (
	"fmt"
	"slices"
	"strings"

	"github.com/ridoystarlord/depmigrate/schema"
)

type OperationType string

const (
	CreateModelOp         OperationType = "CREATE_MODEL"
	RenameFieldOp         OperationType = "RENAME_FIELD"
	AlterUniqueTogetherOp OperationType = "ALTER_UNIQUE_TOGETHER"
)

// Operation is a single schema change. Which fields are meaningful depends on
// Type.
type Operation struct {
	Type           OperationType
	TableName      string
	Columns        []schema.Column // for CREATE_MODEL
	OldName        string          // for RENAME_FIELD
	NewName        string          // for RENAME_FIELD
	UniqueTogether [][]string      // for CREATE_MODEL, ALTER_UNIQUE_TOGETHER
}

func CreateModel(table string, columns []schema.Column, uniqueTogether [][]string) Operation {
	return Operation{
		Type:           CreateModelOp,
		TableName:      table,
		Columns:        columns,
		UniqueTogether: uniqueTogether,
	}.clone()
}

func RenameField(table, oldName, newName string) Operation {
	return Operation{
		Type:      RenameFieldOp,
		TableName: table,
		OldName:   oldName,
		NewName:   newName,
	}
}

func AlterUniqueTogether(table string, uniqueTogether [][]string) Operation {
	return Operation{
		Type:           AlterUniqueTogetherOp,
		TableName:      table,
		UniqueTogether: uniqueTogether,
	}.clone()
}

// Apply mutates state according to the operation, or returns a
// *schema.SchemaError / *schema.ConsistencyError when its preconditions are
// not met.
func (op Operation) Apply(state *schema.State) error {
	switch op.Type {
	case CreateModelOp:
		model := schema.Model{TableName: op.TableName, Columns: op.Columns}
		for _, fields := range op.UniqueTogether {
			model.Unique = append(model.Unique, schema.UniqueConstraint{Fields: fields})
		}
		return state.CreateModel(model)
	case RenameFieldOp:
		return state.RenameColumn(op.TableName, op.OldName, op.NewName)
	case AlterUniqueTogetherOp:
		return state.SetUniqueTogether(op.TableName, op.UniqueTogether)
	default:
		return fmt.Errorf("unsupported operation: %s", op.Type)
	}
}

// Describe returns a one-line summary for plan output.
func (op Operation) Describe() string {
	switch op.Type {
	case CreateModelOp:
		return fmt.Sprintf("Create model %s (%s)", op.TableName, strings.Join(columnNames(op.Columns), ", "))
	case RenameFieldOp:
		return fmt.Sprintf("Rename field %s on %s to %s", op.OldName, op.TableName, op.NewName)
	case AlterUniqueTogetherOp:
		return fmt.Sprintf("Alter unique_together for %s (%d constraint(s))", op.TableName, len(schema.NormalizeUniqueTogether(op.UniqueTogether)))
	default:
		return string(op.Type)
	}
}

// canonical is the stable text the migration checksum is computed over.
func (op Operation) canonical() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s", op.Type, op.TableName)
	switch op.Type {
	case CreateModelOp:
		for _, c := range op.Columns {
			fmt.Fprintf(&b, " col(%s %s pk=%t nn=%t uq=%t", c.Name, c.Type, c.Primary, c.NotNull, c.Unique)
			if c.Default != nil {
				fmt.Fprintf(&b, " default=%s", *c.Default)
			}
			if c.ForeignKey != nil {
				fmt.Fprintf(&b, " fk=%s.%s/%s", c.ForeignKey.ReferencesTable, c.ForeignKey.ReferencesColumn, c.ForeignKey.OnDelete)
			}
			b.WriteString(")")
		}
	case RenameFieldOp:
		fmt.Fprintf(&b, " %s->%s", op.OldName, op.NewName)
	}
	for _, fields := range op.UniqueTogether {
		fmt.Fprintf(&b, " unique(%s)", strings.Join(fields, ","))
	}
	return b.String()
}

func (op Operation) clone() Operation {
	out := op
	if op.Columns != nil {
		out.Columns = make([]schema.Column, len(op.Columns))
		for i, c := range op.Columns {
			out.Columns[i] = c
			if c.Default != nil {
				d := *c.Default
				out.Columns[i].Default = &d
			}
			if c.ForeignKey != nil {
				fk := *c.ForeignKey
				out.Columns[i].ForeignKey = &fk
			}
		}
	}
	if op.UniqueTogether != nil {
		out.UniqueTogether = make([][]string, len(op.UniqueTogether))
		for i, fields := range op.UniqueTogether {
			out.UniqueTogether[i] = slices.Clone(fields)
		}
	}
	return out
}

func columnNames(cols []schema.Column) []string {
	names := make([]string, 0, len(cols))
	for _, c := range cols {
		names = append(names, c.Name)
	}
	return names
}
