package schema

import (
	"fmt"
	"slices"
	"sort"
	"strings"
)

// State is the in-memory project schema that migrations are replayed into.
type State struct {
	models map[string]*Model
}

func NewState() *State {
	return &State{models: map[string]*Model{}}
}

// Clone returns a deep copy of the state.
func (s *State) Clone() *State {
	out := NewState()
	for name, m := range s.models {
		c := m.clone()
		out.models[name] = &c
	}
	return out
}

// Model returns a copy of the named table.
func (s *State) Model(table string) (Model, bool) {
	m, ok := s.models[table]
	if !ok {
		return Model{}, false
	}
	return m.clone(), true
}

// Tables returns table names in sorted order.
func (s *State) Tables() []string {
	names := make([]string, 0, len(s.models))
	for name := range s.models {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Models returns copies of every table, sorted by name.
func (s *State) Models() []Model {
	out := make([]Model, 0, len(s.models))
	for _, name := range s.Tables() {
		out = append(out, s.models[name].clone())
	}
	return out
}

// CreateModel adds a new table. Unique constraints without a name get one.
func (s *State) CreateModel(m Model) error {
	if m.TableName == "" {
		return &SchemaError{Reason: "table name is empty"}
	}
	if _, exists := s.models[m.TableName]; exists {
		return &SchemaError{Table: m.TableName, Reason: "table already exists"}
	}
	if len(m.Columns) == 0 {
		return &SchemaError{Table: m.TableName, Reason: "table must have at least one column"}
	}
	seen := map[string]bool{}
	for _, c := range m.Columns {
		if c.Name == "" {
			return &SchemaError{Table: m.TableName, Reason: "column name is empty"}
		}
		if seen[c.Name] {
			return &SchemaError{Table: m.TableName, Field: c.Name, Reason: "duplicate column"}
		}
		seen[c.Name] = true
	}
	for _, c := range m.Columns {
		if c.ForeignKey == nil {
			continue
		}
		if err := s.checkReference(m, c); err != nil {
			return err
		}
	}

	created := m.clone()
	created.Unique = nil
	sets := make([][]string, 0, len(m.Unique))
	for _, u := range m.Unique {
		sets = append(sets, u.Fields)
	}
	unique, err := buildUniqueSet(&created, sets, s.constraintNames(created.TableName))
	if err != nil {
		return err
	}
	created.Unique = unique
	s.models[created.TableName] = &created
	return nil
}

func (s *State) checkReference(m Model, c Column) error {
	fk := c.ForeignKey
	target := &m
	if fk.ReferencesTable != m.TableName {
		var ok bool
		target, ok = s.models[fk.ReferencesTable]
		if !ok {
			return &SchemaError{Table: m.TableName, Field: c.Name, Reason: fmt.Sprintf("references missing table %q", fk.ReferencesTable)}
		}
	}
	if !target.HasColumn(fk.ReferencesColumn) {
		return &SchemaError{Table: m.TableName, Field: c.Name, Reason: fmt.Sprintf("references missing field %s.%s", fk.ReferencesTable, fk.ReferencesColumn)}
	}
	return nil
}

// RenameColumn renames a field and rewrites every unique constraint and
// foreign key that referenced it. The state is untouched on error.
func (s *State) RenameColumn(table, oldName, newName string) error {
	m, ok := s.models[table]
	if !ok {
		return &SchemaError{Table: table, Reason: "table does not exist"}
	}
	if oldName == newName {
		return &SchemaError{Table: table, Field: oldName, Reason: "old and new names are identical"}
	}
	if !m.HasColumn(oldName) {
		return &SchemaError{Table: table, Field: oldName, Reason: "field does not exist"}
	}
	if m.HasColumn(newName) {
		return &SchemaError{Table: table, Field: newName, Reason: "field already exists"}
	}

	next := s.Clone()
	target := next.models[table]
	col, _ := target.Column(oldName)
	col.Name = newName

	for i := range target.Unique {
		u := &target.Unique[i]
		if !slices.Contains(u.Fields, oldName) {
			continue
		}
		for j, f := range u.Fields {
			if f == oldName {
				u.Fields[j] = newName
			}
		}
		for _, f := range u.Fields {
			if !target.HasColumn(f) {
				return &ConsistencyError{
					Table:      table,
					Constraint: u.Name,
					Reason:     fmt.Sprintf("references missing field %q", f),
				}
			}
		}
		for k, other := range target.Unique {
			if k != i && slices.Equal(other.Fields, u.Fields) {
				return &ConsistencyError{
					Table:      table,
					Constraint: u.Name,
					Reason:     fmt.Sprintf("would duplicate constraint %s on (%s)", other.Name, strings.Join(u.Fields, ", ")),
				}
			}
		}
	}

	for _, other := range next.models {
		for i := range other.Columns {
			fk := other.Columns[i].ForeignKey
			if fk != nil && fk.ReferencesTable == table && fk.ReferencesColumn == oldName {
				fk.ReferencesColumn = newName
			}
		}
	}

	s.models = next.models
	return nil
}

// SetUniqueTogether replaces the table's unique-together set. Constraints
// whose field list is unchanged keep their name.
func (s *State) SetUniqueTogether(table string, sets [][]string) error {
	m, ok := s.models[table]
	if !ok {
		return &SchemaError{Table: table, Reason: "table does not exist"}
	}
	unique, err := buildUniqueSet(m, sets, s.constraintNames(table))
	if err != nil {
		return err
	}
	m.Unique = unique
	return nil
}

// constraintNames returns the unique constraint names of every table but
// except. Index names share one namespace per database, not per table.
func (s *State) constraintNames(except string) map[string]bool {
	names := map[string]bool{}
	for table, m := range s.models {
		if table == except {
			continue
		}
		for _, u := range m.Unique {
			names[u.Name] = true
		}
	}
	return names
}

// buildUniqueSet resolves sets against m. taken holds names already used
// elsewhere in the database and is extended with the names assigned here.
func buildUniqueSet(m *Model, sets [][]string, taken map[string]bool) ([]UniqueConstraint, error) {
	var out []UniqueConstraint

	for _, fields := range NormalizeUniqueTogether(sets) {
		if len(fields) == 0 {
			return nil, &SchemaError{Table: m.TableName, Reason: "unique constraint has no fields"}
		}
		seen := map[string]bool{}
		for _, f := range fields {
			if seen[f] {
				return nil, &SchemaError{Table: m.TableName, Field: f, Reason: "field repeated in unique constraint"}
			}
			seen[f] = true
			if !m.HasColumn(f) {
				return nil, &SchemaError{Table: m.TableName, Field: f, Reason: "field does not exist"}
			}
		}
		if existing, ok := m.UniqueFor(fields); ok {
			out = append(out, UniqueConstraint{Name: existing.Name, Fields: slices.Clone(fields)})
			taken[existing.Name] = true
			continue
		}
		out = append(out, UniqueConstraint{Fields: slices.Clone(fields)})
	}

	// Names for new constraints are assigned after the kept ones so a kept
	// name is never reused.
	for i := range out {
		if out[i].Name != "" {
			continue
		}
		base := ConstraintName(m.TableName, out[i].Fields)
		name := base
		for n := 2; taken[name]; n++ {
			suffix := fmt.Sprintf("_%d", n)
			name = base[:min(len(base), MaxIdentifierLength-len(suffix))] + suffix
		}
		taken[name] = true
		out[i].Name = name
	}
	return out, nil
}

// NormalizeUniqueTogether drops repeated field tuples, keeping first-seen order.
func NormalizeUniqueTogether(sets [][]string) [][]string {
	var out [][]string
	for _, fields := range sets {
		dup := false
		for _, o := range out {
			if slices.Equal(o, fields) {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, slices.Clone(fields))
		}
	}
	return out
}
