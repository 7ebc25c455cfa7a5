package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/OpenTraceLab/OpenTraceSchematic/pkg/kicad/schematic"
	"github.com/spf13/cobra"
)

var netlistJSON bool

var netlistCmd = &cobra.Command{
	Use:   "netlist <schematic_file>",
	Short: "Derive electrical nets from schematic geometry",
	Long: `Group component pins into nets by following wires, junctions and
labels. Nets named by a label or power symbol keep that name; the rest
get synthetic Net-N names.`,
	Args: cobra.ExactArgs(1),
	RunE: runNetlist,
}

func init() {
	netlistCmd.Flags().BoolVar(&netlistJSON, "json", false, "emit JSON instead of text")
	rootCmd.AddCommand(netlistCmd)
}

func runNetlist(cmd *cobra.Command, args []string) error {
	doc, err := schematic.Load(args[0], schematic.Builtin())
	if err != nil {
		return fmt.Errorf("error loading schematic: %w", err)
	}

	nets := doc.Netlist()

	if netlistJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(nets)
	}

	fmt.Printf("%d net(s)\n", len(nets))
	for _, net := range nets {
		fmt.Printf("  %s:", net.Name)
		for _, pin := range net.Pins {
			fmt.Printf(" %s.%s", pin.Reference, pin.Pin)
		}
		fmt.Println()
	}
	return nil
}
