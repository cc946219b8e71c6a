package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ridoystarlord/depmigrate/diff"
	"github.com/ridoystarlord/depmigrate/introspect"
	"github.com/ridoystarlord/depmigrate/runner"
)

var diffVisual bool

var diffCmd = &cobra.Command{
	Use:   "diff",
	Short: "Show differences between applied migrations and the database",
	Long: `Replay the applied migrations and compare the schema they describe with
the live database: tables, columns, foreign keys and unique indexes.

Examples:
  depmigrate diff            # Show differences in text format
  depmigrate diff --visual   # Group differences by table with colors
`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		s := openSession(ctx)
		defer s.Close()

		drift, err := schemaDrift(ctx, s)
		s.exitOnError("Error comparing schema", err)

		if len(drift) == 0 {
			fmt.Println("✅ No differences found between migrations and database")
			return
		}

		if diffVisual {
			showVisualDiff(drift)
		} else {
			showTextDiff(drift)
		}
		s.Close()
		os.Exit(1)
	},
}

func schemaDrift(ctx context.Context, s *session) ([]diff.Drift, error) {
	expected, err := s.runner.ExpectedState(ctx)
	if err != nil {
		return nil, err
	}
	existing, err := introspect.Inspect(ctx, s.db, runner.TrackingTables()...)
	if err != nil {
		return nil, err
	}
	return diff.Compare(expected, existing), nil
}

func showVisualDiff(drift []diff.Drift) {
	green := color.New(color.FgGreen, color.Bold)
	red := color.New(color.FgRed, color.Bold)

	fmt.Println("🌳 Schema Drift (Visual Diff)")
	fmt.Println(strings.Repeat("=", 50))

	var tables []string
	byTable := map[string][]diff.Drift{}
	for _, d := range drift {
		if _, ok := byTable[d.TableName]; !ok {
			tables = append(tables, d.TableName)
		}
		byTable[d.TableName] = append(byTable[d.TableName], d)
	}

	for _, table := range tables {
		fmt.Printf("\n📋 %s:\n", table)
		for _, d := range byTable[table] {
			switch d.Type {
			case diff.MissingTable:
				red.Println("  ❌ table missing")
			case diff.UnexpectedTable:
				green.Println("  ➕ table not in migrations")
			case diff.MissingColumn:
				red.Printf("  ❌ column %s missing\n", d.Column)
			case diff.UnexpectedColumn:
				green.Printf("  ➕ column %s not in migrations\n", d.Column)
			case diff.MissingForeignKey:
				red.Printf("  🔗 foreign key on %s missing\n", d.Column)
			case diff.MissingUnique:
				red.Printf("  🔍 unique (%s) missing\n", strings.Join(d.Fields, ", "))
			case diff.UnexpectedUnique:
				green.Printf("  🔍 unique %s (%s) not in migrations\n", d.IndexName, strings.Join(d.Fields, ", "))
			}
		}
	}
}

func showTextDiff(drift []diff.Drift) {
	fmt.Println("📋 Schema Drift (Text Format)")
	fmt.Println(strings.Repeat("=", 40))
	for i, d := range drift {
		fmt.Printf("%d. %s: %s\n", i+1, d.Type, d)
	}
}

func init() {
	diffCmd.Flags().BoolVarP(&diffVisual, "visual", "v", false, "Group differences by table with colors")
}
