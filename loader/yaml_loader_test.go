package loader

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/ridoystarlord/depmigrate/migration"
)

func TestLoadDescriptors(t *testing.T) {
	reg, err := LoadDescriptors(filepath.Join("testdata", "migrations"))
	require.NoError(t, err)

	assert.Equal(t, []string{"analyzers_manager", "api_app"}, reg.Apps())
	assert.Equal(t, 5, reg.Len())

	var names []string
	for _, m := range reg.Migrations("analyzers_manager") {
		names = append(names, m.Name())
	}
	assert.Equal(t, []string{"0001_initial", "0007_analyzerreport_task_id", "0008_auto_20210728_0922"}, names)

	m, ok := reg.Lookup(migration.Key{App: "analyzers_manager", Name: "0008_auto_20210728_0922"})
	require.True(t, ok)
	assert.Equal(t, []migration.Key{
		{App: "api_app", Name: "0008_remove_job_runtime_configuration"},
		{App: "analyzers_manager", Name: "0007_analyzerreport_task_id"},
	}, m.Dependencies())
	assert.Equal(t, []migration.Operation{
		migration.RenameField("analyzerreport", "analyzer_name", "name"),
		migration.AlterUniqueTogether("analyzerreport", [][]string{{"name", "job"}}),
	}, m.Operations())

	initial, ok := reg.Lookup(migration.Key{App: "analyzers_manager", Name: "0001_initial"})
	require.True(t, ok)
	ops := initial.Operations()
	require.Len(t, ops, 1)
	assert.Equal(t, migration.CreateModelOp, ops[0].Type)
	require.Len(t, ops[0].Columns, 3)
	assert.Equal(t, "job", ops[0].Columns[2].ForeignKey.ReferencesTable)
	assert.Equal(t, "CASCADE", ops[0].Columns[2].ForeignKey.OnDelete)
	assert.Equal(t, [][]string{{"analyzer_name", "job"}}, ops[0].UniqueTogether)
}

func TestLoadDescriptorsMissingDir(t *testing.T) {
	_, err := LoadDescriptors(filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "depmigrate init")
}

func TestLoadDescriptorsRejectsUnknownKeys(t *testing.T) {
	_, err := LoadDescriptors(filepath.Join("testdata", "broken"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "0001_typo.yaml")
}

func TestParseDescriptor(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		wantErr string
	}{
		{"empty file", "", ""},
		{"bad dependency", "dependencies: [nodot]", "invalid migration reference"},
		{"two operations in one entry", "operations:\n  - rename_field: {model: a, old_name: b, new_name: c}\n    alter_unique_together: {model: a, unique_together: []}\n", "exactly one"},
		{"no operation in entry", "operations:\n  - {}\n", "exactly one"},
		{"not yaml", "operations: [", "unmarshalling YAML"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := ParseDescriptor("app", "0001", []byte(tt.data))
			if tt.wantErr == "" {
				require.NoError(t, err)
				assert.Equal(t, migration.Key{App: "app", Name: "0001"}, m.Key())
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestSpecMatchesParse(t *testing.T) {
	reg, err := LoadDescriptors(filepath.Join("testdata", "migrations"))
	require.NoError(t, err)

	for _, m := range reg.All() {
		f := File{}
		for _, d := range m.Dependencies() {
			f.Dependencies = append(f.Dependencies, d.String())
		}
		for _, op := range m.Operations() {
			f.Operations = append(f.Operations, Spec(op))
		}
		data, err := yaml.Marshal(f)
		require.NoError(t, err)

		again, err := ParseDescriptor(m.App(), m.Name(), data)
		require.NoError(t, err)
		assert.Equal(t, m.Checksum(), again.Checksum(), m.Key().String())
	}
}
