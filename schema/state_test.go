package schema

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func analyzerReportState(t *testing.T) *State {
	t.Helper()

	s := NewState()
	require.NoError(t, s.CreateModel(Model{
		TableName: "job",
		Columns:   []Column{{Name: "id", Type: "integer", Primary: true}},
	}))
	require.NoError(t, s.CreateModel(Model{
		TableName: "analyzerreport",
		Columns: []Column{
			{Name: "id", Type: "integer", Primary: true},
			{Name: "analyzer_name", Type: "text", NotNull: true},
			{Name: "job", Type: "integer", ForeignKey: &ForeignKey{ReferencesTable: "job", ReferencesColumn: "id"}},
		},
		Unique: []UniqueConstraint{{Fields: []string{"analyzer_name", "job"}}},
	}))
	return s
}

func TestCreateModelAssignsConstraintNames(t *testing.T) {
	s := analyzerReportState(t)

	m, ok := s.Model("analyzerreport")
	require.True(t, ok)
	require.Len(t, m.Unique, 1)
	assert.Equal(t, "uniq_analyzerreport_analyzer_name_job", m.Unique[0].Name)
	assert.Equal(t, []string{"analyzerreport", "job"}, s.Tables())
}

func TestCreateModelRejectsInvalidTables(t *testing.T) {
	s := analyzerReportState(t)

	tests := []struct {
		name  string
		model Model
	}{
		{"existing table", Model{TableName: "job", Columns: []Column{{Name: "id"}}}},
		{"no columns", Model{TableName: "empty"}},
		{"duplicate column", Model{TableName: "dup", Columns: []Column{{Name: "a"}, {Name: "a"}}}},
		{"missing reference table", Model{TableName: "ref", Columns: []Column{{Name: "x", ForeignKey: &ForeignKey{ReferencesTable: "nope", ReferencesColumn: "id"}}}}},
		{"missing reference column", Model{TableName: "ref", Columns: []Column{{Name: "x", ForeignKey: &ForeignKey{ReferencesTable: "job", ReferencesColumn: "nope"}}}}},
		{"unique on missing field", Model{TableName: "u", Columns: []Column{{Name: "a"}}, Unique: []UniqueConstraint{{Fields: []string{"b"}}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var schemaErr *SchemaError
			require.ErrorAs(t, s.CreateModel(tt.model), &schemaErr)
		})
	}
}

func TestRenameColumn(t *testing.T) {
	s := analyzerReportState(t)

	require.NoError(t, s.RenameColumn("analyzerreport", "analyzer_name", "name"))

	m, _ := s.Model("analyzerreport")
	assert.True(t, m.HasColumn("name"))
	assert.False(t, m.HasColumn("analyzer_name"))
	assert.Equal(t, []string{"id", "name", "job"}, m.ColumnNames())

	// The constraint follows the field but keeps the name the database knows.
	want := []UniqueConstraint{{Name: "uniq_analyzerreport_analyzer_name_job", Fields: []string{"name", "job"}}}
	if diff := cmp.Diff(want, m.Unique); diff != "" {
		t.Fatalf("unexpected constraints (-want +got):\n%s", diff)
	}
}

func TestRenameColumnRewritesForeignKeys(t *testing.T) {
	s := analyzerReportState(t)

	require.NoError(t, s.RenameColumn("job", "id", "job_id"))

	m, _ := s.Model("analyzerreport")
	col, ok := m.Column("job")
	require.True(t, ok)
	assert.Equal(t, "job_id", col.ForeignKey.ReferencesColumn)
}

func TestRenameColumnPreconditions(t *testing.T) {
	tests := []struct {
		name     string
		table    string
		old, new string
		field    string
	}{
		{"missing table", "nope", "a", "b", ""},
		{"missing field", "analyzerreport", "missing", "name", "missing"},
		{"collision", "analyzerreport", "analyzer_name", "job", "job"},
		{"identical", "analyzerreport", "job", "job", "job"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := analyzerReportState(t)
			before := s.Clone()

			err := s.RenameColumn(tt.table, tt.old, tt.new)
			var schemaErr *SchemaError
			require.ErrorAs(t, err, &schemaErr)
			assert.Equal(t, tt.field, schemaErr.Field)
			assert.Equal(t, before.Models(), s.Models())
		})
	}
}

func TestRenameColumnConsistencyErrorLeavesStateUntouched(t *testing.T) {
	s := analyzerReportState(t)
	// Corrupt the state: a constraint that references a field the table lacks.
	s.models["analyzerreport"].Unique = append(s.models["analyzerreport"].Unique,
		UniqueConstraint{Name: "stale", Fields: []string{"analyzer_name", "ghost"}})
	before := s.Clone()

	err := s.RenameColumn("analyzerreport", "analyzer_name", "name")

	var consistencyErr *ConsistencyError
	require.True(t, errors.As(err, &consistencyErr))
	assert.Equal(t, "stale", consistencyErr.Constraint)
	assert.Equal(t, before.Models(), s.Models())
}

func TestRenameColumnDuplicateConstraint(t *testing.T) {
	s := analyzerReportState(t)
	s.models["analyzerreport"].Unique = append(s.models["analyzerreport"].Unique,
		UniqueConstraint{Name: "stale", Fields: []string{"name", "job"}})

	err := s.RenameColumn("analyzerreport", "analyzer_name", "name")
	// "name" does not exist yet, so the precondition passes and the rewrite collides.
	var consistencyErr *ConsistencyError
	require.ErrorAs(t, err, &consistencyErr)
	assert.Contains(t, consistencyErr.Reason, "would duplicate")
}

func TestSetUniqueTogether(t *testing.T) {
	s := analyzerReportState(t)
	require.NoError(t, s.RenameColumn("analyzerreport", "analyzer_name", "name"))

	require.NoError(t, s.SetUniqueTogether("analyzerreport", [][]string{{"name", "job"}, {"id", "name"}, {"name", "job"}}))

	m, _ := s.Model("analyzerreport")
	want := []UniqueConstraint{
		{Name: "uniq_analyzerreport_analyzer_name_job", Fields: []string{"name", "job"}},
		{Name: "uniq_analyzerreport_id_name", Fields: []string{"id", "name"}},
	}
	if diff := cmp.Diff(want, m.Unique); diff != "" {
		t.Fatalf("unexpected constraints (-want +got):\n%s", diff)
	}

	require.NoError(t, s.SetUniqueTogether("analyzerreport", nil))
	m, _ = s.Model("analyzerreport")
	assert.Empty(t, m.Unique)
}

func TestSetUniqueTogetherErrors(t *testing.T) {
	tests := []struct {
		name  string
		table string
		sets  [][]string
	}{
		{"missing table", "nope", [][]string{{"a"}}},
		{"missing field", "analyzerreport", [][]string{{"name", "job"}}},
		{"empty tuple", "analyzerreport", [][]string{{}}},
		{"repeated field", "analyzerreport", [][]string{{"job", "job"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := analyzerReportState(t)
			var schemaErr *SchemaError
			require.ErrorAs(t, s.SetUniqueTogether(tt.table, tt.sets), &schemaErr)
		})
	}
}

func TestCloneIsDeep(t *testing.T) {
	s := analyzerReportState(t)
	c := s.Clone()

	require.NoError(t, c.RenameColumn("analyzerreport", "analyzer_name", "name"))

	m, _ := s.Model("analyzerreport")
	assert.True(t, m.HasColumn("analyzer_name"))
	assert.Equal(t, []string{"analyzer_name", "job"}, m.Unique[0].Fields)
}

func TestConstraintNameIsBounded(t *testing.T) {
	long := strings.Repeat("x", 40)
	name := ConstraintName("table", []string{long, long})

	assert.Len(t, name, MaxIdentifierLength)
	assert.Equal(t, name, ConstraintName("table", []string{long, long}))
	assert.NotEqual(t, name, ConstraintName("table", []string{long, long + "y"}))
}

func TestConstraintNamesAreUniqueAcrossTables(t *testing.T) {
	s := NewState()
	require.NoError(t, s.CreateModel(Model{
		TableName: "a_b",
		Columns:   []Column{{Name: "c", Type: "text"}},
		Unique:    []UniqueConstraint{{Fields: []string{"c"}}},
	}))
	require.NoError(t, s.CreateModel(Model{
		TableName: "a",
		Columns:   []Column{{Name: "b", Type: "text"}, {Name: "c", Type: "text"}},
		Unique:    []UniqueConstraint{{Fields: []string{"b", "c"}}},
	}))

	ab, _ := s.Model("a_b")
	a, _ := s.Model("a")
	assert.Equal(t, "uniq_a_b_c", ab.Unique[0].Name)
	assert.Equal(t, "uniq_a_b_c_2", a.Unique[0].Name)

	// Reassigning keeps the existing name and never takes another table's.
	require.NoError(t, s.SetUniqueTogether("a", [][]string{{"b", "c"}, {"c"}}))
	a, _ = s.Model("a")
	assert.Equal(t, []UniqueConstraint{
		{Name: "uniq_a_b_c_2", Fields: []string{"b", "c"}},
		{Name: "uniq_a_c", Fields: []string{"c"}},
	}, a.Unique)

	require.NoError(t, s.SetUniqueTogether("a_b", nil))
	require.NoError(t, s.SetUniqueTogether("a", [][]string{{"c"}, {"b", "c"}}))
	a, _ = s.Model("a")
	assert.Equal(t, "uniq_a_b_c_2", a.Unique[1].Name)
}

func TestSuffixedConstraintNameIsBounded(t *testing.T) {
	m := &Model{TableName: strings.Repeat("x", 70), Columns: []Column{{Name: "y"}}}
	base := ConstraintName(m.TableName, []string{"y"})
	require.Len(t, base, MaxIdentifierLength)

	unique, err := buildUniqueSet(m, [][]string{{"y"}}, map[string]bool{base: true})
	require.NoError(t, err)
	assert.Len(t, unique[0].Name, MaxIdentifierLength)
	assert.True(t, strings.HasSuffix(unique[0].Name, "_2"))
	assert.NotEqual(t, base, unique[0].Name)
}
