package loader

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ridoystarlord/depmigrate/migration"
	"github.com/ridoystarlord/depmigrate/schema"
)

// File is the on-disk form of one migration descriptor.
type File struct {
	Dependencies []string        `yaml:"dependencies"`
	Operations   []OperationSpec `yaml:"operations"`
}

// OperationSpec holds exactly one operation.
type OperationSpec struct {
	CreateModel         *CreateModelSpec         `yaml:"create_model,omitempty"`
	RenameField         *RenameFieldSpec         `yaml:"rename_field,omitempty"`
	AlterUniqueTogether *AlterUniqueTogetherSpec `yaml:"alter_unique_together,omitempty"`
}

type CreateModelSpec struct {
	Name           string       `yaml:"name"`
	Columns        []ColumnSpec `yaml:"columns"`
	UniqueTogether [][]string   `yaml:"unique_together,omitempty"`
}

type ColumnSpec struct {
	Name       string         `yaml:"name"`
	Type       string         `yaml:"type"`
	Primary    bool           `yaml:"primary,omitempty"`
	NotNull    bool           `yaml:"not_null,omitempty"`
	Unique     bool           `yaml:"unique,omitempty"`
	Default    *string        `yaml:"default,omitempty"`
	References *ReferenceSpec `yaml:"references,omitempty"`
}

type ReferenceSpec struct {
	Table    string `yaml:"table"`
	Column   string `yaml:"column"`
	OnDelete string `yaml:"on_delete,omitempty"`
}

type RenameFieldSpec struct {
	Model   string `yaml:"model"`
	OldName string `yaml:"old_name"`
	NewName string `yaml:"new_name"`
}

type AlterUniqueTogetherSpec struct {
	Model          string     `yaml:"model"`
	UniqueTogether [][]string `yaml:"unique_together"`
}

// LoadDescriptors reads <dir>/<app>/<name>.yaml for every app directory
// and registers the migrations in file-name order per app.
func LoadDescriptors(dir string) (*migration.Registry, error) {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return nil, fmt.Errorf("migrations directory '%s' does not exist. Run 'depmigrate init' first", dir)
	}

	apps, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading migrations directory: %w", err)
	}

	reg := migration.NewRegistry()
	for _, app := range apps {
		if !app.IsDir() || skipName(app.Name()) {
			continue
		}
		files, err := descriptorFiles(filepath.Join(dir, app.Name()))
		if err != nil {
			return nil, err
		}
		for _, f := range files {
			m, err := LoadFile(app.Name(), f)
			if err != nil {
				return nil, err
			}
			if err := reg.Register(m); err != nil {
				return nil, err
			}
		}
	}
	return reg, nil
}

// LoadFile parses one descriptor file; the migration name is the file name
// without its extension.
func LoadFile(app, path string) (*migration.Migration, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading migration file: %w", err)
	}
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	m, err := ParseDescriptor(app, name, data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// ParseDescriptor decodes YAML into a migration. Unknown keys are rejected.
func ParseDescriptor(app, name string, data []byte) (*migration.Migration, error) {
	var f File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("unmarshalling YAML: %w", err)
	}

	var deps []migration.Key
	for _, d := range f.Dependencies {
		k, err := migration.ParseKey(d)
		if err != nil {
			return nil, err
		}
		deps = append(deps, k)
	}

	var ops []migration.Operation
	for i, spec := range f.Operations {
		op, err := spec.operation()
		if err != nil {
			return nil, fmt.Errorf("operation %d: %w", i+1, err)
		}
		ops = append(ops, op)
	}
	return migration.New(app, name, deps, ops...), nil
}

// Spec converts an operation back into its file form.
func Spec(op migration.Operation) OperationSpec {
	switch op.Type {
	case migration.CreateModelOp:
		spec := &CreateModelSpec{Name: op.TableName, UniqueTogether: op.UniqueTogether}
		for _, c := range op.Columns {
			cs := ColumnSpec{Name: c.Name, Type: c.Type, Primary: c.Primary, NotNull: c.NotNull, Unique: c.Unique, Default: c.Default}
			if c.ForeignKey != nil {
				cs.References = &ReferenceSpec{Table: c.ForeignKey.ReferencesTable, Column: c.ForeignKey.ReferencesColumn, OnDelete: c.ForeignKey.OnDelete}
			}
			spec.Columns = append(spec.Columns, cs)
		}
		return OperationSpec{CreateModel: spec}
	case migration.RenameFieldOp:
		return OperationSpec{RenameField: &RenameFieldSpec{Model: op.TableName, OldName: op.OldName, NewName: op.NewName}}
	default:
		return OperationSpec{AlterUniqueTogether: &AlterUniqueTogetherSpec{Model: op.TableName, UniqueTogether: op.UniqueTogether}}
	}
}

func (s OperationSpec) operation() (migration.Operation, error) {
	set := 0
	for _, present := range []bool{s.CreateModel != nil, s.RenameField != nil, s.AlterUniqueTogether != nil} {
		if present {
			set++
		}
	}
	if set != 1 {
		return migration.Operation{}, fmt.Errorf("expected exactly one of create_model, rename_field, alter_unique_together, got %d", set)
	}

	switch {
	case s.CreateModel != nil:
		var cols []schema.Column
		for _, c := range s.CreateModel.Columns {
			col := schema.Column{
				Name:    c.Name,
				Type:    c.Type,
				Primary: c.Primary,
				NotNull: c.NotNull,
				Unique:  c.Unique,
				Default: c.Default,
			}
			if c.References != nil {
				col.ForeignKey = &schema.ForeignKey{
					ReferencesTable:  c.References.Table,
					ReferencesColumn: c.References.Column,
					OnDelete:         c.References.OnDelete,
				}
			}
			cols = append(cols, col)
		}
		return migration.CreateModel(s.CreateModel.Name, cols, s.CreateModel.UniqueTogether), nil
	case s.RenameField != nil:
		return migration.RenameField(s.RenameField.Model, s.RenameField.OldName, s.RenameField.NewName), nil
	default:
		return migration.AlterUniqueTogether(s.AlterUniqueTogether.Model, s.AlterUniqueTogether.UniqueTogether), nil
	}
}

func descriptorFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading app directory: %w", err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || skipName(e.Name()) {
			continue
		}
		if ext := filepath.Ext(e.Name()); ext == ".yaml" || ext == ".yml" {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

func skipName(name string) bool {
	return strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_")
}
