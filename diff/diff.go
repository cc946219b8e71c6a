package diff

import (
	"fmt"
	"slices"
	"strings"

	"github.com/ridoystarlord/depmigrate/introspect"
	"github.com/ridoystarlord/depmigrate/schema"
)

type DriftType string

const (
	MissingTable      DriftType = "MISSING_TABLE"
	UnexpectedTable   DriftType = "UNEXPECTED_TABLE"
	MissingColumn     DriftType = "MISSING_COLUMN"
	UnexpectedColumn  DriftType = "UNEXPECTED_COLUMN"
	MissingForeignKey DriftType = "MISSING_FOREIGN_KEY"
	MissingUnique     DriftType = "MISSING_UNIQUE"
	UnexpectedUnique  DriftType = "UNEXPECTED_UNIQUE"
)

// Drift is one difference between the schema the applied migrations
// describe and the live database.
type Drift struct {
	Type      DriftType
	TableName string
	Column    string   // for column and foreign key drift
	IndexName string   // for unique drift
	Fields    []string // for unique drift
}

func (d Drift) String() string {
	switch d.Type {
	case MissingTable:
		return fmt.Sprintf("table %s is missing", d.TableName)
	case UnexpectedTable:
		return fmt.Sprintf("table %s is not described by any migration", d.TableName)
	case MissingColumn:
		return fmt.Sprintf("column %s.%s is missing", d.TableName, d.Column)
	case UnexpectedColumn:
		return fmt.Sprintf("column %s.%s is not described by any migration", d.TableName, d.Column)
	case MissingForeignKey:
		return fmt.Sprintf("foreign key on %s.%s is missing", d.TableName, d.Column)
	case MissingUnique:
		return fmt.Sprintf("unique index %s on %s (%s) is missing", d.IndexName, d.TableName, strings.Join(d.Fields, ", "))
	case UnexpectedUnique:
		return fmt.Sprintf("unique index %s on %s (%s) is not described by any migration", d.IndexName, d.TableName, strings.Join(d.Fields, ", "))
	default:
		return string(d.Type)
	}
}

// Compare lists the drift between the expected state and the live tables.
// Column types are not compared: each dialect reports them in its own
// spelling.
func Compare(expected *schema.State, existing []introspect.Table) []Drift {
	var drift []Drift

	existingTableMap := map[string]introspect.Table{}
	for _, t := range existing {
		existingTableMap[t.Name] = t
	}

	for _, model := range expected.Models() {
		table, exists := existingTableMap[model.TableName]
		if !exists {
			drift = append(drift, Drift{Type: MissingTable, TableName: model.TableName})
			continue
		}
		drift = append(drift, compareColumns(model, table)...)
		drift = append(drift, compareUnique(model, table)...)
	}

	for _, table := range existing {
		if _, ok := expected.Model(table.Name); !ok {
			drift = append(drift, Drift{Type: UnexpectedTable, TableName: table.Name})
		}
	}
	return drift
}

func compareColumns(model schema.Model, table introspect.Table) []Drift {
	var drift []Drift
	for _, col := range model.Columns {
		if _, ok := table.Column(col.Name); !ok {
			drift = append(drift, Drift{Type: MissingColumn, TableName: model.TableName, Column: col.Name})
			continue
		}
		if col.ForeignKey != nil && !hasForeignKey(table, col) {
			drift = append(drift, Drift{Type: MissingForeignKey, TableName: model.TableName, Column: col.Name})
		}
	}
	for _, col := range table.Columns {
		if !model.HasColumn(col.Name) {
			drift = append(drift, Drift{Type: UnexpectedColumn, TableName: model.TableName, Column: col.Name})
		}
	}
	return drift
}

func hasForeignKey(table introspect.Table, col schema.Column) bool {
	for _, fk := range table.ForeignKeys {
		if fk.ColumnName == col.Name &&
			fk.ReferencesTable == col.ForeignKey.ReferencesTable &&
			fk.ReferencesColumn == col.ForeignKey.ReferencesColumn {
			return true
		}
	}
	return false
}

// compareUnique matches unique-together constraints to unique indexes by
// name and field list. Single-column indexes backing a column declared
// UNIQUE are generated by the database and ignored.
func compareUnique(model schema.Model, table introspect.Table) []Drift {
	var drift []Drift
	live := table.UniqueIndexes()

	for _, u := range model.Unique {
		found := false
		for _, idx := range live {
			if idx.Name == u.Name && slices.Equal(idx.Columns, u.Fields) {
				found = true
				break
			}
		}
		if !found {
			drift = append(drift, Drift{Type: MissingUnique, TableName: model.TableName, IndexName: u.Name, Fields: u.Fields})
		}
	}

	for _, idx := range live {
		if len(idx.Columns) == 1 {
			if col, ok := model.Column(idx.Columns[0]); ok && col.Unique {
				continue
			}
		}
		if c, ok := model.UniqueFor(idx.Columns); ok && c.Name == idx.Name {
			continue
		}
		drift = append(drift, Drift{Type: UnexpectedUnique, TableName: model.TableName, IndexName: idx.Name, Fields: idx.Columns})
	}
	return drift
}
