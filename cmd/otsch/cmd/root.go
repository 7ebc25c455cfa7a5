package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "otsch",
	Short: "OpenTraceSchematic - KiCad schematic tools",
	Long: `OpenTraceSchematic (otsch) reads, validates and edits KiCad
schematic files (.kicad_sch).

Examples:
  otsch info design.kicad_sch         # Show schematic summary
  otsch info design.kicad_sch R1      # Show one component
  otsch validate design.kicad_sch     # Run consistency checks
  otsch netlist design.kicad_sch      # Derive nets from geometry`,
	Version: "0.1.0",
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	cobra.OnInitialize(func() {
		level := slog.LevelWarn
		if verbose {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: level,
		})))
	})
}
