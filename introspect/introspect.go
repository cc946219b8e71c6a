package introspect

import (
	"context"
	"fmt"
	"strings"

	"github.com/ridoystarlord/depmigrate/database"
)

type Table struct {
	Name        string
	Columns     []Column
	ForeignKeys []ForeignKey
	Indexes     []Index
}

type Column struct {
	Name     string
	DataType string
	Nullable bool
	Default  *string
	Primary  bool
}

type ForeignKey struct {
	ColumnName       string
	ReferencesTable  string
	ReferencesColumn string
	OnDelete         string
}

type Index struct {
	Name    string
	Columns []string
	Unique  bool
	Primary bool
}

// Column returns the named column.
func (t Table) Column(name string) (Column, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// UniqueIndexes returns the unique indexes that do not back the primary key.
func (t Table) UniqueIndexes() []Index {
	var out []Index
	for _, idx := range t.Indexes {
		if idx.Unique && !idx.Primary {
			out = append(out, idx)
		}
	}
	return out
}

// Inspect reads every user table of the connected database, ordered by
// name. Tables listed in skip are left out.
func Inspect(ctx context.Context, db *database.DB, skip ...string) ([]Table, error) {
	var ins inspector
	switch db.Dialect {
	case database.Postgres:
		ins = postgresInspector{db: db}
	case database.SQLite:
		ins = sqliteInspector{db: db}
	default:
		return nil, fmt.Errorf("unsupported dialect %q", db.Dialect)
	}

	names, err := ins.tables(ctx)
	if err != nil {
		return nil, fmt.Errorf("querying tables: %w", err)
	}

	skipped := map[string]bool{}
	for _, s := range skip {
		skipped[s] = true
	}

	var tables []Table
	for _, name := range names {
		if skipped[name] {
			continue
		}
		columns, err := ins.columns(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("getting columns for table %s: %w", name, err)
		}
		foreignKeys, err := ins.foreignKeys(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("getting foreign keys for table %s: %w", name, err)
		}
		indexes, err := ins.indexes(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("getting indexes for table %s: %w", name, err)
		}
		tables = append(tables, Table{
			Name:        name,
			Columns:     columns,
			ForeignKeys: foreignKeys,
			Indexes:     indexes,
		})
	}
	return tables, nil
}

type inspector interface {
	tables(ctx context.Context) ([]string, error)
	columns(ctx context.Context, table string) ([]Column, error)
	foreignKeys(ctx context.Context, table string) ([]ForeignKey, error)
	indexes(ctx context.Context, table string) ([]Index, error)
}

func splitColumns(list string) []string {
	if list == "" {
		return nil
	}
	columns := strings.Split(list, ",")
	for i, col := range columns {
		columns[i] = strings.TrimSpace(col)
	}
	return columns
}
