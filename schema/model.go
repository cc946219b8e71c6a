package schema

import "slices"

type Model struct {
	TableName string
	Columns   []Column
	Unique    []UniqueConstraint
}

type Column struct {
	Name       string
	Type       string
	Primary    bool
	Unique     bool
	NotNull    bool
	Default    *string
	ForeignKey *ForeignKey
}

type ForeignKey struct {
	ReferencesTable  string
	ReferencesColumn string
	OnDelete         string // CASCADE, SET NULL, RESTRICT, etc.
}

// UniqueConstraint is one entry of a table's unique-together set. Name is
// fixed when the constraint is created and is kept across column renames.
type UniqueConstraint struct {
	Name   string
	Fields []string
}

// Column returns the named column and whether it exists.
func (m *Model) Column(name string) (*Column, bool) {
	for i := range m.Columns {
		if m.Columns[i].Name == name {
			return &m.Columns[i], true
		}
	}
	return nil, false
}

func (m *Model) HasColumn(name string) bool {
	_, ok := m.Column(name)
	return ok
}

// ColumnNames returns column names in declaration order.
func (m *Model) ColumnNames() []string {
	names := make([]string, 0, len(m.Columns))
	for _, c := range m.Columns {
		names = append(names, c.Name)
	}
	return names
}

// UniqueFor returns the constraint covering exactly fields, in order.
func (m *Model) UniqueFor(fields []string) (UniqueConstraint, bool) {
	for _, u := range m.Unique {
		if slices.Equal(u.Fields, fields) {
			return u, true
		}
	}
	return UniqueConstraint{}, false
}

func (m Model) clone() Model {
	out := Model{
		TableName: m.TableName,
		Columns:   make([]Column, len(m.Columns)),
		Unique:    make([]UniqueConstraint, len(m.Unique)),
	}
	for i, c := range m.Columns {
		out.Columns[i] = c.clone()
	}
	for i, u := range m.Unique {
		out.Unique[i] = UniqueConstraint{Name: u.Name, Fields: slices.Clone(u.Fields)}
	}
	return out
}

func (c Column) clone() Column {
	out := c
	if c.Default != nil {
		d := *c.Default
		out.Default = &d
	}
	if c.ForeignKey != nil {
		fk := *c.ForeignKey
		out.ForeignKey = &fk
	}
	return out
}
