package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ridoystarlord/depmigrate/migration"
	"github.com/ridoystarlord/depmigrate/planner"
	"github.com/ridoystarlord/depmigrate/schema"
)

var (
	docsFormat string
	docsOutput string
)

var docsCmd = &cobra.Command{
	Use:   "docs",
	Short: "Generate diagrams from the migrations",
	Long: `Generate an ERD of the schema all migrations produce, or a diagram of the
migration dependency graph. No database is needed.

Supported formats:
  - plantuml: PlantUML ERD diagram
  - mermaid: Mermaid ERD diagram
  - graphviz: Graphviz DOT ERD
  - graph: Graphviz DOT migration dependency graph
  - all: every format above, written into the --output directory

Examples:
  depmigrate docs --format plantuml --output erd.puml
  depmigrate docs --format mermaid --output erd.md
  depmigrate docs --format graph --output migrations.dot
  depmigrate docs --format all --output docs/
`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		reg := loadRegistry(cfg)

		graph, err := planner.NewGraph(reg)
		exitOnError("Error building migration graph", err)
		plan, err := planner.Forwards(graph, nil)
		exitOnError("Error planning migrations", err)
		models := plan.Final().Models()

		if len(models) == 0 && docsFormat != "graph" {
			fmt.Println("❌ No tables produced by the migrations")
			os.Exit(1)
		}

		switch docsFormat {
		case "plantuml":
			writeDoc("PlantUML ERD", outputPath("erd.puml"), generatePlantUMLContent(models))
		case "mermaid":
			writeDoc("Mermaid ERD", outputPath("erd.md"), generateMermaidContent(models))
		case "graphviz":
			writeDoc("Graphviz ERD", outputPath("erd.dot"), generateGraphvizContent(models))
		case "graph":
			writeDoc("Migration graph", outputPath("migrations.dot"), generateDependencyGraph(graph, plan.Order))
		case "all":
			dir := docsOutput
			if dir == "" {
				dir = "docs"
			}
			if err := os.MkdirAll(dir, 0755); err != nil {
				exitOnError("Error creating output directory", err)
			}
			writeDoc("PlantUML ERD", filepath.Join(dir, "erd.puml"), generatePlantUMLContent(models))
			writeDoc("Mermaid ERD", filepath.Join(dir, "erd.md"), generateMermaidContent(models))
			writeDoc("Graphviz ERD", filepath.Join(dir, "erd.dot"), generateGraphvizContent(models))
			writeDoc("Migration graph", filepath.Join(dir, "migrations.dot"), generateDependencyGraph(graph, plan.Order))
		default:
			fmt.Printf("❌ Unsupported format: %s\n", docsFormat)
			fmt.Println("Supported formats: plantuml, mermaid, graphviz, graph, all")
			os.Exit(1)
		}

		fmt.Println("✅ Documentation generated successfully!")
	},
}

func outputPath(def string) string {
	if docsOutput == "" {
		return def
	}
	return docsOutput
}

func writeDoc(kind, path, content string) {
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		exitOnError("Error writing "+kind, err)
	}
	fmt.Printf("✅ %s saved to: %s\n", kind, path)
}

func displayType(t string) string {
	switch strings.ToLower(t) {
	case "serial", "integer", "int":
		return "INTEGER"
	case "bigserial", "bigint":
		return "BIGINT"
	default:
		return strings.ToUpper(strings.ReplaceAll(t, " ", "_"))
	}
}

// columnTags lists the markers shown next to a column, PK first.
func columnTags(col schema.Column) []string {
	var tags []string
	if col.Primary {
		tags = append(tags, "PK")
	}
	if col.ForeignKey != nil {
		tags = append(tags, "FK")
	}
	if col.Unique {
		tags = append(tags, "UQ")
	}
	if col.NotNull {
		tags = append(tags, "NN")
	}
	return tags
}

func generatePlantUMLContent(models []schema.Model) string {
	var content strings.Builder

	content.WriteString("@startuml\n")
	content.WriteString("!theme plain\n")
	content.WriteString("skinparam linetype ortho\n\n")

	for _, model := range models {
		content.WriteString(fmt.Sprintf("entity \"%s\" {\n", model.TableName))
		for _, col := range model.Columns {
			line := fmt.Sprintf("  %s : %s", col.Name, displayType(col.Type))
			for _, tag := range columnTags(col) {
				line += " <<" + tag + ">>"
			}
			if col.Default != nil {
				line += fmt.Sprintf(" <<DEFAULT: %s>>", *col.Default)
			}
			content.WriteString(line + "\n")
		}
		for _, u := range model.Unique {
			content.WriteString(fmt.Sprintf("  .. %s (%s) ..\n", u.Name, strings.Join(u.Fields, ", ")))
		}
		content.WriteString("}\n\n")
	}

	for _, model := range models {
		for _, col := range model.Columns {
			if col.ForeignKey != nil {
				content.WriteString(fmt.Sprintf("\"%s\" ||--o{ \"%s\" : \"%s\"\n",
					col.ForeignKey.ReferencesTable, model.TableName, col.Name))
			}
		}
	}

	content.WriteString("@enduml\n")
	return content.String()
}

func generateMermaidContent(models []schema.Model) string {
	var content strings.Builder

	content.WriteString("# Database Schema ERD\n\n")
	content.WriteString("```mermaid\nerDiagram\n")

	for _, model := range models {
		content.WriteString(fmt.Sprintf("    %s {\n", model.TableName))
		for _, col := range model.Columns {
			line := fmt.Sprintf("        %s %s", displayType(col.Type), col.Name)
			// Mermaid accepts only PK, FK and UK as key markers.
			var keys []string
			for _, tag := range columnTags(col) {
				switch tag {
				case "PK", "FK":
					keys = append(keys, tag)
				case "UQ":
					keys = append(keys, "UK")
				}
			}
			if len(keys) > 0 {
				line += " " + strings.Join(keys, ",")
			}
			if col.Default != nil {
				line += fmt.Sprintf(" \"default %s\"", strings.ReplaceAll(*col.Default, "\"", "'"))
			}
			content.WriteString(line + "\n")
		}
		content.WriteString("    }\n")
	}

	for _, model := range models {
		for _, col := range model.Columns {
			if col.ForeignKey != nil {
				content.WriteString(fmt.Sprintf("    %s ||--o{ %s : %s\n",
					col.ForeignKey.ReferencesTable, model.TableName, col.Name))
			}
		}
	}

	content.WriteString("```\n")
	return content.String()
}

func generateGraphvizContent(models []schema.Model) string {
	var content strings.Builder

	content.WriteString("digraph ERD {\n")
	content.WriteString("  rankdir=LR;\n")
	content.WriteString("  node [shape=record];\n\n")

	for _, model := range models {
		var columns []string
		for _, col := range model.Columns {
			line := fmt.Sprintf("%s: %s", col.Name, displayType(col.Type))
			for _, tag := range columnTags(col) {
				line += " (" + tag + ")"
			}
			columns = append(columns, line)
		}
		content.WriteString(fmt.Sprintf("  %s [label=\"%s|%s\\l\"];\n", model.TableName, model.TableName, strings.Join(columns, "\\l")))
	}

	for _, model := range models {
		for _, col := range model.Columns {
			if col.ForeignKey != nil {
				content.WriteString(fmt.Sprintf("  %s -> %s [label=\"%s\"];\n",
					col.ForeignKey.ReferencesTable, model.TableName, col.Name))
			}
		}
	}

	content.WriteString("}\n")
	return content.String()
}

// generateDependencyGraph draws one cluster per app and an edge from every
// dependency to its dependant.
func generateDependencyGraph(g *planner.Graph, order []migration.Key) string {
	var content strings.Builder

	content.WriteString("digraph migrations {\n")
	content.WriteString("  rankdir=TB;\n")
	content.WriteString("  node [shape=box, style=rounded];\n")

	var apps []string
	byApp := map[string][]migration.Key{}
	for _, k := range order {
		if _, ok := byApp[k.App]; !ok {
			apps = append(apps, k.App)
		}
		byApp[k.App] = append(byApp[k.App], k)
	}
	for _, app := range apps {
		content.WriteString(fmt.Sprintf("\n  subgraph \"cluster_%s\" {\n", app))
		content.WriteString(fmt.Sprintf("    label=\"%s\";\n", app))
		for _, k := range byApp[app] {
			content.WriteString(fmt.Sprintf("    \"%s\" [label=\"%s\"];\n", k, k.Name))
		}
		content.WriteString("  }\n")
	}

	content.WriteString("\n")
	for _, k := range order {
		m, _ := g.Node(k)
		for _, dep := range m.Dependencies() {
			content.WriteString(fmt.Sprintf("  \"%s\" -> \"%s\";\n", dep, k))
		}
	}

	content.WriteString("}\n")
	return content.String()
}

func init() {
	docsCmd.Flags().StringVarP(&docsFormat, "format", "f", "plantuml", "Output format (plantuml, mermaid, graphviz, graph, all)")
	docsCmd.Flags().StringVarP(&docsOutput, "output", "o", "", "Output file, or directory for --format all (default: format-specific filename)")
}
