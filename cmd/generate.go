package cmd

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ridoystarlord/depmigrate/generator"
	"github.com/ridoystarlord/depmigrate/migration"
)

var (
	generateDepends []string
	generateRenames []string
	generateUniques []string
)

func init() {
	generateCmd.Flags().StringSliceVarP(&generateDepends, "depends", "d", nil, "Extra dependency as app.name (repeatable)")
	generateCmd.Flags().StringArrayVar(&generateRenames, "rename-field", nil, "Add a rename_field operation: model.old_name=new_name (repeatable)")
	generateCmd.Flags().StringArrayVar(&generateUniques, "unique-together", nil, "Add a unique_together tuple: model=field1,field2 (repeatable; tuples for one model form one operation)")
}

var generateCmd = &cobra.Command{
	Use:   "generate <app> [slug]",
	Short: "Scaffold the next migration of an app",
	Long: `Write <migrations_dir>/<app>/NNNN_<slug>.yaml depending on the app's latest
migration. Without a slug the name is auto_<timestamp>.

Examples:
  depmigrate generate api_app initial
  depmigrate generate analyzers_manager --depends api_app.0008_remove_job_runtime_configuration \
    --rename-field analyzerreport.analyzer_name=name \
    --unique-together analyzerreport=name,job
`,
	Args: cobra.RangeArgs(1, 2),
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		reg := loadRegistry(cfg)

		app := args[0]
		slug := ""
		if len(args) > 1 {
			slug = args[1]
		}

		deps := reg.Leaves(app)
		for _, d := range generateDepends {
			k, err := migration.ParseKey(d)
			exitOnError("Invalid dependency", err)
			if _, ok := reg.Lookup(k); !ok {
				exitOnError("Invalid dependency", fmt.Errorf("migration %s not found", k))
			}
			deps = append(deps, k)
		}

		ops, err := scaffoldOperations(generateRenames, generateUniques)
		exitOnError("Invalid operation", err)

		name, err := generator.NextName(filepath.Join(cfg.MigrationsDir, app), slug, time.Now())
		exitOnError("Naming migration", err)

		filename, err := generator.WriteDescriptorFile(cfg.MigrationsDir, app, name, deps, ops)
		exitOnError("Writing migration file", err)

		fmt.Println("✅ Migration generated:", filename)
		if len(ops) == 0 {
			fmt.Println("📝 Add operations to the file, then run 'depmigrate validate'")
		}
	},
}

// scaffoldOperations turns the --rename-field and --unique-together flags
// into operations: renames first, then one unique_together per model.
func scaffoldOperations(renames, uniques []string) ([]migration.Operation, error) {
	var ops []migration.Operation
	for _, r := range renames {
		target, newName, ok := strings.Cut(r, "=")
		model, oldName, ok2 := strings.Cut(target, ".")
		if !ok || !ok2 || model == "" || oldName == "" || newName == "" {
			return nil, fmt.Errorf("rename %q: expected model.old_name=new_name", r)
		}
		ops = append(ops, migration.RenameField(model, oldName, newName))
	}

	var models []string
	tuples := map[string][][]string{}
	for _, u := range uniques {
		model, fields, ok := strings.Cut(u, "=")
		if !ok || model == "" || fields == "" {
			return nil, fmt.Errorf("unique_together %q: expected model=field1,field2", u)
		}
		if _, seen := tuples[model]; !seen {
			models = append(models, model)
		}
		tuples[model] = append(tuples[model], strings.Split(fields, ","))
	}
	for _, model := range models {
		ops = append(ops, migration.AlterUniqueTogether(model, tuples[model]))
	}
	return ops, nil
}
