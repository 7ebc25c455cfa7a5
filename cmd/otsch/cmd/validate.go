package cmd

import (
	"fmt"
	"os"

	"github.com/OpenTraceLab/OpenTraceSchematic/pkg/kicad/schematic"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate <schematic_file>",
	Short: "Run consistency checks on a schematic",
	Long: `Check a schematic for problems: malformed references, duplicate
designators, missing symbol definitions, degenerate wires, stacked
junctions. Exits non-zero when any error is found.`,
	Args: cobra.ExactArgs(1),
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	doc, err := schematic.Load(args[0], schematic.Builtin())
	if err != nil {
		return fmt.Errorf("error loading schematic: %w", err)
	}

	issues := doc.Validate()
	if len(issues) == 0 {
		fmt.Printf("%s: OK\n", args[0])
		return nil
	}

	errors := 0
	for _, issue := range issues {
		fmt.Println(issue)
		if issue.Severity == "error" {
			errors++
		}
	}
	fmt.Printf("%d issue(s), %d error(s)\n", len(issues), errors)
	if errors > 0 {
		os.Exit(1)
	}
	return nil
}
