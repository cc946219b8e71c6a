package introspect

import (
	"context"

	"github.com/ridoystarlord/depmigrate/database"
)

type postgresInspector struct {
	db *database.DB
}

func (p postgresInspector) tables(ctx context.Context) ([]string, error) {
	var names []string
	err := p.db.SelectContext(ctx, &names, `
	SELECT table_name
	FROM information_schema.tables
	WHERE table_schema = 'public' AND table_type = 'BASE TABLE'
	ORDER BY table_name`)
	return names, err
}

func (p postgresInspector) columns(ctx context.Context, table string) ([]Column, error) {
	var rows []struct {
		Name     string  `db:"column_name"`
		DataType string  `db:"data_type"`
		Nullable bool    `db:"is_nullable"`
		Default  *string `db:"column_default"`
		Primary  bool    `db:"is_primary"`
	}
	err := p.db.SelectContext(ctx, &rows, `
	SELECT
		c.column_name,
		c.data_type,
		(c.is_nullable = 'YES') AS is_nullable,
		c.column_default,
		EXISTS (
			SELECT 1
			FROM information_schema.table_constraints tc
			JOIN information_schema.key_column_usage kcu
				ON tc.constraint_name = kcu.constraint_name
				AND tc.table_schema = kcu.table_schema
			WHERE tc.constraint_type = 'PRIMARY KEY'
				AND tc.table_schema = c.table_schema
				AND tc.table_name = c.table_name
				AND kcu.column_name = c.column_name
		) AS is_primary
	FROM information_schema.columns c
	WHERE c.table_schema = 'public' AND c.table_name = $1
	ORDER BY c.ordinal_position`, table)
	if err != nil {
		return nil, err
	}

	columns := make([]Column, 0, len(rows))
	for _, r := range rows {
		columns = append(columns, Column{
			Name:     r.Name,
			DataType: r.DataType,
			Nullable: r.Nullable,
			Default:  r.Default,
			Primary:  r.Primary,
		})
	}
	return columns, nil
}

func (p postgresInspector) foreignKeys(ctx context.Context, table string) ([]ForeignKey, error) {
	var rows []struct {
		ColumnName       string `db:"column_name"`
		ReferencesTable  string `db:"foreign_table_name"`
		ReferencesColumn string `db:"foreign_column_name"`
		OnDelete         string `db:"delete_rule"`
	}
	err := p.db.SelectContext(ctx, &rows, `
	SELECT
		kcu.column_name,
		ccu.table_name AS foreign_table_name,
		ccu.column_name AS foreign_column_name,
		COALESCE(rc.delete_rule, '') AS delete_rule
	FROM information_schema.table_constraints AS tc
	JOIN information_schema.key_column_usage AS kcu
		ON tc.constraint_name = kcu.constraint_name
		AND tc.table_schema = kcu.table_schema
	JOIN information_schema.constraint_column_usage AS ccu
		ON ccu.constraint_name = tc.constraint_name
		AND ccu.table_schema = tc.table_schema
	LEFT JOIN information_schema.referential_constraints AS rc
		ON tc.constraint_name = rc.constraint_name
	WHERE tc.constraint_type = 'FOREIGN KEY'
		AND tc.table_schema = 'public'
		AND tc.table_name = $1
	ORDER BY kcu.column_name`, table)
	if err != nil {
		return nil, err
	}

	fks := make([]ForeignKey, 0, len(rows))
	for _, r := range rows {
		fks = append(fks, ForeignKey(r))
	}
	return fks, nil
}

func (p postgresInspector) indexes(ctx context.Context, table string) ([]Index, error) {
	var rows []struct {
		Name    string `db:"index_name"`
		Unique  bool   `db:"is_unique"`
		Primary bool   `db:"is_primary"`
		Columns string `db:"column_names"`
	}
	err := p.db.SelectContext(ctx, &rows, `
	SELECT
		ic.relname AS index_name,
		ix.indisunique AS is_unique,
		ix.indisprimary AS is_primary,
		string_agg(a.attname, ',' ORDER BY k.ord) AS column_names
	FROM pg_index ix
	JOIN pg_class t ON t.oid = ix.indrelid
	JOIN pg_class ic ON ic.oid = ix.indexrelid
	JOIN pg_namespace n ON n.oid = t.relnamespace
	CROSS JOIN LATERAL unnest(ix.indkey::int2[]) WITH ORDINALITY AS k(attnum, ord)
	JOIN pg_attribute a ON a.attrelid = t.oid AND a.attnum = k.attnum
	WHERE n.nspname = 'public' AND t.relname = $1
	GROUP BY ic.relname, ix.indisunique, ix.indisprimary
	ORDER BY ic.relname`, table)
	if err != nil {
		return nil, err
	}

	indexes := make([]Index, 0, len(rows))
	for _, r := range rows {
		indexes = append(indexes, Index{
			Name:    r.Name,
			Columns: splitColumns(r.Columns),
			Unique:  r.Unique,
			Primary: r.Primary,
		})
	}
	return indexes, nil
}
