package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ridoystarlord/depmigrate/validator"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate migration descriptors without a database",
	Long: `Validate every migration descriptor under the migrations directory.

This command performs offline validation including:
- Migration, table and column naming (identifier rules, reserved keywords)
- Data types, primary keys and on_delete actions
- Dependencies (missing migrations, self-references, cycles)
- Operation preconditions, simulated in dependency order

Examples:
  depmigrate validate                 # Validate ./migrations
  depmigrate validate --format json   # Output validation results as JSON
`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		reg := loadRegistry(cfg)

		result := validator.Validate(reg)
		if validateFormat == "json" {
			exitOnError("Encoding validation result", outputJSON(result))
		} else {
			outputText(result)
		}
		if !result.Valid {
			os.Exit(1)
		}
	},
}

var validateFormat string

func init() {
	validateCmd.Flags().StringVarP(&validateFormat, "format", "f", "text", "Output format (text, json)")
}

func outputJSON(result *validator.ValidationResult) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(result)
}

func printFindings(title string, findings []validator.ValidationError) {
	if len(findings) == 0 {
		return
	}
	fmt.Printf("\n%s (%d):\n", title, len(findings))
	for i, f := range findings {
		fmt.Printf("  %d. [%s] %s\n", i+1, f.Type, f.Error())
	}
}

func outputText(result *validator.ValidationResult) {
	if result.Valid {
		color.Green("✅ Migration validation passed!")
	} else {
		color.Red("❌ Migration validation failed!")
	}

	printFindings("🔴 Errors", result.Errors)
	printFindings("🟡 Warnings", result.Warnings)
	printFindings("🔵 Info", result.Info)

	fmt.Printf("\n📊 Summary:\n")
	fmt.Printf("  • Errors: %d\n", len(result.Errors))
	fmt.Printf("  • Warnings: %d\n", len(result.Warnings))
	fmt.Printf("  • Info: %d\n", len(result.Info))

	if result.Valid {
		fmt.Printf("\n🎉 Your migrations are valid and ready to apply!\n")
	} else {
		fmt.Printf("\n💡 Fix the errors above before running 'depmigrate migrate'.\n")
	}
}
