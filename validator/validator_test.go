package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ridoystarlord/depmigrate/migration"
	"github.com/ridoystarlord/depmigrate/schema"
)

func registry(t *testing.T, migrations ...*migration.Migration) *migration.Registry {
	t.Helper()
	reg := migration.NewRegistry()
	require.NoError(t, reg.Register(migrations...))
	return reg
}

func reportMigrations() []*migration.Migration {
	initial := migration.New("analyzers_manager", "0001_initial", nil,
		migration.CreateModel("analyzerreport", []schema.Column{
			{Name: "id", Type: "SERIAL", Primary: true},
			{Name: "analyzer_name", Type: "VARCHAR(128)"},
			{Name: "job", Type: "integer"},
		}, [][]string{{"analyzer_name", "job"}}),
	)
	rename := migration.New("analyzers_manager", "0002_auto_20210728_0922", []migration.Key{initial.Key()},
		migration.RenameField("analyzerreport", "analyzer_name", "name"),
		migration.AlterUniqueTogether("analyzerreport", [][]string{{"name", "job"}}),
	)
	return []*migration.Migration{initial, rename}
}

func TestValidateValidRegistry(t *testing.T) {
	result := Validate(registry(t, reportMigrations()...))
	assert.True(t, result.Valid)
	assert.Empty(t, result.Errors)
	assert.Empty(t, result.Warnings)
	require.Len(t, result.Info, 1)
	assert.Contains(t, result.Info[0].Message, "2 migration(s) across 1 app(s) produce 1 table(s)")
	assert.NoError(t, result.Err())
}

func TestValidateReportsPreconditionFailure(t *testing.T) {
	ms := reportMigrations()
	bad := migration.New("analyzers_manager", "0003_bad", []migration.Key{ms[1].Key()},
		migration.RenameField("analyzerreport", "analyzer_name", "title"),
	)
	result := Validate(registry(t, append(ms, bad)...))

	assert.False(t, result.Valid)
	require.Len(t, result.Errors, 1)
	e := result.Errors[0]
	assert.Equal(t, "schema", e.Type)
	assert.Equal(t, "analyzers_manager.0003_bad", e.Migration)
	assert.Equal(t, "analyzer_name", e.Column)
	assert.Equal(t, "error", e.Severity)
	assert.Error(t, result.Err())
}

func TestValidateReportsCycle(t *testing.T) {
	a := migration.New("a", "0001_initial", []migration.Key{{App: "b", Name: "0001_initial"}},
		migration.CreateModel("t_a", []schema.Column{{Name: "id", Type: "integer", Primary: true}}, nil))
	b := migration.New("b", "0001_initial", []migration.Key{{App: "a", Name: "0001_initial"}},
		migration.CreateModel("t_b", []schema.Column{{Name: "id", Type: "integer", Primary: true}}, nil))

	result := Validate(registry(t, a, b))
	assert.False(t, result.Valid)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "cycle", result.Errors[0].Type)
	assert.Contains(t, result.Errors[0].Message, "dependency cycle")
}

func TestValidateReportsMissingDependency(t *testing.T) {
	a := migration.New("a", "0001_initial", []migration.Key{{App: "b", Name: "0001_initial"}},
		migration.CreateModel("t_a", []schema.Column{{Name: "id", Type: "integer", Primary: true}}, nil))

	result := Validate(registry(t, a))
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "dependency", result.Errors[0].Type)
}

func TestValidateNamingAndTypes(t *testing.T) {
	m := migration.New("api_app", "initial", nil,
		migration.CreateModel("order", []schema.Column{
			{Name: "id", Type: "integer", Primary: true},
			{Name: "bad-name", Type: "text"},
			{Name: "amount", Type: "money"},
			{Name: "job", Type: "integer", ForeignKey: &schema.ForeignKey{ReferencesTable: "order", ReferencesColumn: "id", OnDelete: "explode"}},
		}, [][]string{{"amount"}}),
	)
	empty := migration.New("api_app", "0002_empty", []migration.Key{m.Key()})

	result := Validate(registry(t, m, empty))
	types := func(errs []ValidationError) []string {
		var out []string
		for _, e := range errs {
			out = append(out, e.Type)
		}
		return out
	}
	assert.ElementsMatch(t, []string{"column_name", "foreign_key"}, types(result.Errors))
	assert.ElementsMatch(t, []string{"migration_name", "table_name", "data_type", "unique_together", "empty"}, types(result.Warnings))
	assert.False(t, result.Valid)
}

func TestValidateMultipleLeaves(t *testing.T) {
	root := migration.New("api_app", "0001_initial", nil,
		migration.CreateModel("job", []schema.Column{{Name: "id", Type: "integer", Primary: true}}, nil))
	left := migration.New("api_app", "0002_left", []migration.Key{root.Key()},
		migration.CreateModel("tag", []schema.Column{{Name: "id", Type: "integer", Primary: true}}, nil))
	right := migration.New("api_app", "0002_right", []migration.Key{root.Key()},
		migration.CreateModel("plugin", []schema.Column{{Name: "id", Type: "integer", Primary: true}}, nil))

	result := Validate(registry(t, root, left, right))
	assert.True(t, result.Valid)
	require.Len(t, result.Warnings, 1)
	assert.Equal(t, "leaves", result.Warnings[0].Type)
}

func TestValidateDataType(t *testing.T) {
	for _, ok := range []string{"VARCHAR(128)", "integer", "numeric(10, 2)", "text[]", "TIMESTAMPTZ"} {
		assert.NoError(t, validateDataType(ok), ok)
	}
	assert.Error(t, validateDataType("money"))
}

func TestValidationErrorMessage(t *testing.T) {
	e := ValidationError{Migration: "a.0001", Table: "job", Column: "id", Message: "boom"}
	assert.Equal(t, "a.0001 job.id: boom", e.Error())
	assert.Equal(t, "boom", ValidationError{Message: "boom"}.Error())
}
