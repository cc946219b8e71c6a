package generator

import (
	"fmt"
	"strings"

	"github.com/ridoystarlord/depmigrate/migration"
	"github.com/ridoystarlord/depmigrate/schema"
)

// GenerateSQL converts one operation into the statements that take the
// database from the before state to the after state.
func GenerateSQL(op migration.Operation, before, after *schema.State) ([]string, error) {
	switch op.Type {
	case migration.CreateModelOp:
		model, ok := after.Model(op.TableName)
		if !ok {
			return nil, fmt.Errorf("table %s missing after CREATE MODEL", op.TableName)
		}
		stmts := []string{generateCreateTable(model)}
		for _, u := range model.Unique {
			stmts = append(stmts, generateCreateUniqueIndex(model.TableName, u))
		}
		return stmts, nil

	case migration.RenameFieldOp:
		return []string{generateRenameColumn(op.TableName, op.OldName, op.NewName)}, nil

	case migration.AlterUniqueTogetherOp:
		return uniqueTogetherSQL(op.TableName, before, after)

	default:
		return nil, fmt.Errorf("unsupported operation: %s", op.Type)
	}
}

// GenerateRollbackSQL converts one operation into the statements that take
// the database from the after state back to the before state.
func GenerateRollbackSQL(op migration.Operation, before, after *schema.State) ([]string, error) {
	switch op.Type {
	case migration.CreateModelOp:
		return []string{fmt.Sprintf(`DROP TABLE IF EXISTS %s;`, quote(op.TableName))}, nil

	case migration.RenameFieldOp:
		return []string{generateRenameColumn(op.TableName, op.NewName, op.OldName)}, nil

	case migration.AlterUniqueTogetherOp:
		return uniqueTogetherSQL(op.TableName, after, before)

	default:
		return nil, fmt.Errorf("unsupported rollback operation: %s", op.Type)
	}
}

// MigrationSQL generates the forward statements of a whole migration from
// the snapshots produced by migration.Simulate.
func MigrationSQL(m *migration.Migration, snapshots []*schema.State) ([]string, error) {
	ops := m.Operations()
	if len(snapshots) != len(ops)+1 {
		return nil, fmt.Errorf("migration %s: expected %d snapshots, got %d", m.Key(), len(ops)+1, len(snapshots))
	}
	var sqlStatements []string
	for i, op := range ops {
		stmts, err := GenerateSQL(op, snapshots[i], snapshots[i+1])
		if err != nil {
			return nil, fmt.Errorf("migration %s: %w", m.Key(), err)
		}
		sqlStatements = append(sqlStatements, stmts...)
	}
	return sqlStatements, nil
}

// RollbackSQL generates the statements undoing a whole migration, last
// operation first.
func RollbackSQL(m *migration.Migration, snapshots []*schema.State) ([]string, error) {
	ops := m.Operations()
	if len(snapshots) != len(ops)+1 {
		return nil, fmt.Errorf("migration %s: expected %d snapshots, got %d", m.Key(), len(ops)+1, len(snapshots))
	}
	var sqlStatements []string
	for i := len(ops) - 1; i >= 0; i-- {
		stmts, err := GenerateRollbackSQL(ops[i], snapshots[i], snapshots[i+1])
		if err != nil {
			return nil, fmt.Errorf("migration %s: %w", m.Key(), err)
		}
		sqlStatements = append(sqlStatements, stmts...)
	}
	return sqlStatements, nil
}

// uniqueTogetherSQL drops the constraints only in from and creates the ones
// only in to. Constraints are matched by name and fields; the name survives
// column renames, so a renamed field does not rebuild its index.
func uniqueTogetherSQL(table string, from, to *schema.State) ([]string, error) {
	fromModel, ok := from.Model(table)
	if !ok {
		return nil, fmt.Errorf("table %s does not exist", table)
	}
	toModel, ok := to.Model(table)
	if !ok {
		return nil, fmt.Errorf("table %s does not exist", table)
	}

	keep := map[string]bool{}
	for _, u := range toModel.Unique {
		keep[constraintKey(u)] = true
	}
	existing := map[string]bool{}
	for _, u := range fromModel.Unique {
		existing[constraintKey(u)] = true
	}

	var sqlStatements []string
	for _, u := range fromModel.Unique {
		if !keep[constraintKey(u)] {
			sqlStatements = append(sqlStatements, fmt.Sprintf(`DROP INDEX IF EXISTS %s;`, quote(u.Name)))
		}
	}
	for _, u := range toModel.Unique {
		if !existing[constraintKey(u)] {
			sqlStatements = append(sqlStatements, generateCreateUniqueIndex(table, u))
		}
	}
	return sqlStatements, nil
}

func constraintKey(u schema.UniqueConstraint) string {
	return u.Name + "(" + strings.Join(u.Fields, ",") + ")"
}

func generateRenameColumn(table, from, to string) string {
	return fmt.Sprintf(`ALTER TABLE %s RENAME COLUMN %s TO %s;`, quote(table), quote(from), quote(to))
}

func generateCreateTable(model schema.Model) string {
	stmt := fmt.Sprintf(`CREATE TABLE %s (`, quote(model.TableName))

	for i, col := range model.Columns {
		stmt += fmt.Sprintf(`%s %s`, quote(col.Name), col.Type)
		if col.Primary {
			stmt += " PRIMARY KEY"
		}
		if col.Unique {
			stmt += " UNIQUE"
		}
		if col.NotNull {
			stmt += " NOT NULL"
		}
		if col.Default != nil {
			stmt += fmt.Sprintf(" DEFAULT %s", *col.Default)
		}
		if col.ForeignKey != nil {
			stmt += fmt.Sprintf(" REFERENCES %s (%s)", quote(col.ForeignKey.ReferencesTable), quote(col.ForeignKey.ReferencesColumn))
			if col.ForeignKey.OnDelete != "" {
				stmt += fmt.Sprintf(" ON DELETE %s", strings.ToUpper(col.ForeignKey.OnDelete))
			}
		}
		if i < len(model.Columns)-1 {
			stmt += ", "
		}
	}

	stmt += ");"
	return stmt
}

func generateCreateUniqueIndex(table string, u schema.UniqueConstraint) string {
	cols := make([]string, 0, len(u.Fields))
	for _, f := range u.Fields {
		cols = append(cols, quote(f))
	}
	return fmt.Sprintf(`CREATE UNIQUE INDEX %s ON %s (%s);`, quote(u.Name), quote(table), strings.Join(cols, ", "))
}

func quote(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}
