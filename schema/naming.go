package schema

import (
	"crypto/sha256"
	"fmt"
	"strings"
)

// MaxIdentifierLength is the PostgreSQL identifier limit; names are kept
// within it for both dialects.
const MaxIdentifierLength = 63

// ConstraintName derives the name of a unique-together constraint.
func ConstraintName(table string, fields []string) string {
	name := fmt.Sprintf("uniq_%s_%s", table, strings.Join(fields, "_"))
	if len(name) <= MaxIdentifierLength {
		return name
	}
	sum := sha256.Sum256([]byte(name))
	return fmt.Sprintf("%s_%x", name[:MaxIdentifierLength-9], sum[:4])
}
