package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ridoystarlord/depmigrate/config"
)

const migrationsReadme = `# Migrations

One directory per app. Each file is a migration named NNNN_slug.yaml:

    dependencies:
      - other_app.0001_initial
    operations:
      - create_model:
          name: job
          columns:
            - {name: id, type: serial, primary: true}
            - {name: status, type: text, not_null: true, default: "'pending'"}
      - rename_field: {model: job, old_name: status, new_name: state}
      - alter_unique_together:
          model: job
          unique_together: [[state, id]]

Migrations run in dependency order; ties are broken by migration name,
then app name. Files and directories starting with "." or "_" are ignored.

    depmigrate generate <app> <slug>   # scaffold the next migration of an app
    depmigrate validate                # check descriptors without a database
    depmigrate plan --sql              # show what migrate would run
    depmigrate migrate                 # apply pending migrations
`

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a new depmigrate project",
	Long: `Create the migrations directory and a depmigrate.yaml configuration file.

Examples:
  depmigrate init
  depmigrate init --migrations-dir db/migrations
`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()

		if _, err := os.Stat(cfg.MigrationsDir); err == nil {
			fmt.Printf("❌ %s directory already exists!\n", cfg.MigrationsDir)
			return
		}
		if err := os.MkdirAll(cfg.MigrationsDir, 0755); err != nil {
			exitOnError("Failed to create migrations directory", err)
		}
		readme := filepath.Join(cfg.MigrationsDir, "README.md")
		if err := os.WriteFile(readme, []byte(migrationsReadme), 0644); err != nil {
			exitOnError("Failed to create README.md", err)
		}
		fmt.Println("✅ Migrations directory created:", cfg.MigrationsDir)

		if _, err := os.Stat(config.FileName); err == nil {
			fmt.Printf("ℹ️  %s already exists, leaving it untouched\n", config.FileName)
		} else {
			project := config.Default()
			project.MigrationsDir = cfg.MigrationsDir
			body, err := yaml.Marshal(project)
			exitOnError("Failed to encode configuration", err)
			content := "# database_url is read from DATABASE_URL or DEPMIGRATE_DATABASE_URL when unset\n" + string(body)
			if err := os.WriteFile(config.FileName, []byte(content), 0644); err != nil {
				exitOnError("Failed to create "+config.FileName, err)
			}
			fmt.Println("✅ Created", config.FileName)
		}

		fmt.Println("📝 Add an app directory under", cfg.MigrationsDir, "or run 'depmigrate generate <app> initial'")
		fmt.Println("🚀 Run 'depmigrate migrate' to apply your migrations")
	},
}
