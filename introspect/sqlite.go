package introspect

import (
	"context"

	"github.com/ridoystarlord/depmigrate/database"
)

type sqliteInspector struct {
	db *database.DB
}

func (s sqliteInspector) tables(ctx context.Context) ([]string, error) {
	var names []string
	err := s.db.SelectContext(ctx, &names, `
	SELECT name
	FROM sqlite_master
	WHERE type = 'table' AND name NOT LIKE 'sqlite_%'
	ORDER BY name`)
	return names, err
}

func (s sqliteInspector) columns(ctx context.Context, table string) ([]Column, error) {
	var rows []struct {
		Name     string  `db:"name"`
		DataType string  `db:"type"`
		NotNull  int     `db:"notnull"`
		Default  *string `db:"dflt_value"`
		PK       int     `db:"pk"`
	}
	err := s.db.SelectContext(ctx, &rows, `SELECT name, type, "notnull", dflt_value, pk FROM pragma_table_info(?) ORDER BY cid`, table)
	if err != nil {
		return nil, err
	}

	columns := make([]Column, 0, len(rows))
	for _, r := range rows {
		columns = append(columns, Column{
			Name:     r.Name,
			DataType: r.DataType,
			Nullable: r.NotNull == 0 && r.PK == 0,
			Default:  r.Default,
			Primary:  r.PK > 0,
		})
	}
	return columns, nil
}

func (s sqliteInspector) foreignKeys(ctx context.Context, table string) ([]ForeignKey, error) {
	var rows []struct {
		ColumnName       string `db:"from"`
		ReferencesTable  string `db:"table"`
		ReferencesColumn string `db:"to"`
		OnDelete         string `db:"on_delete"`
	}
	err := s.db.SelectContext(ctx, &rows, `SELECT "from", "table", "to", on_delete FROM pragma_foreign_key_list(?) ORDER BY "from"`, table)
	if err != nil {
		return nil, err
	}

	fks := make([]ForeignKey, 0, len(rows))
	for _, r := range rows {
		fks = append(fks, ForeignKey(r))
	}
	return fks, nil
}

func (s sqliteInspector) indexes(ctx context.Context, table string) ([]Index, error) {
	var rows []struct {
		Name   string `db:"name"`
		Unique int    `db:"unique"`
		Origin string `db:"origin"`
	}
	err := s.db.SelectContext(ctx, &rows, `SELECT name, "unique", origin FROM pragma_index_list(?) ORDER BY name`, table)
	if err != nil {
		return nil, err
	}

	indexes := make([]Index, 0, len(rows))
	for _, r := range rows {
		var columns []string
		if err := s.db.SelectContext(ctx, &columns, `SELECT name FROM pragma_index_info(?) ORDER BY seqno`, r.Name); err != nil {
			return nil, err
		}
		indexes = append(indexes, Index{
			Name:    r.Name,
			Columns: columns,
			Unique:  r.Unique == 1,
			Primary: r.Origin == "pk",
		})
	}
	return indexes, nil
}
