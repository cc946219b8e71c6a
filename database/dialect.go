package database

import (
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
)

type Dialect string

const (
	Postgres Dialect = "postgres"
	SQLite   Dialect = "sqlite"
)

// ParseDialect accepts the dialect names used in configuration.
func ParseDialect(s string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "postgres", "postgresql", "pgx":
		return Postgres, nil
	case "sqlite", "sqlite3":
		return SQLite, nil
	default:
		return "", fmt.Errorf("unsupported dialect %q (expected postgres or sqlite)", s)
	}
}

// DetectDialect infers the dialect from a database URL.
func DetectDialect(url string) (Dialect, error) {
	switch {
	case strings.HasPrefix(url, "postgres://"), strings.HasPrefix(url, "postgresql://"):
		return Postgres, nil
	case strings.HasPrefix(url, "sqlite://"), strings.HasPrefix(url, "sqlite:"), strings.HasPrefix(url, "file:"):
		return SQLite, nil
	case strings.Contains(url, "host=") || strings.Contains(url, "dbname="):
		return Postgres, nil
	default:
		return "", fmt.Errorf("cannot infer dialect from database URL, set dialect explicitly")
	}
}

// DriverName is the database/sql driver registered for the dialect.
func (d Dialect) DriverName() string {
	if d == SQLite {
		return "sqlite3"
	}
	return "pgx"
}

func (d Dialect) Placeholder() sq.PlaceholderFormat {
	if d == SQLite {
		return sq.Question
	}
	return sq.Dollar
}

// Builder returns a squirrel statement builder using the dialect's
// placeholders.
func (d Dialect) Builder() sq.StatementBuilderType {
	return sq.StatementBuilder.PlaceholderFormat(d.Placeholder())
}

// sqlitePath strips the URL prefixes accepted for SQLite.
func sqlitePath(url string) string {
	for _, prefix := range []string{"sqlite://", "sqlite:"} {
		if strings.HasPrefix(url, prefix) {
			return strings.TrimPrefix(url, prefix)
		}
	}
	return url
}
