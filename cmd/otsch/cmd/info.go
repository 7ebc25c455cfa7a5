package cmd

import (
	"fmt"
	"sort"
	"strings"

	"github.com/OpenTraceLab/OpenTraceSchematic/pkg/kicad/schematic"
	"github.com/spf13/cobra"
)

var infoCmd = &cobra.Command{
	Use:   "info <schematic_file> [reference]",
	Short: "Show schematic information",
	Long: `Display information about a KiCad schematic file.

Without a reference argument: shows a schematic summary.
With a reference argument: shows details for that component.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runInfo,
}

func init() {
	rootCmd.AddCommand(infoCmd)
}

func runInfo(cmd *cobra.Command, args []string) error {
	doc, err := schematic.Load(args[0], schematic.Builtin())
	if err != nil {
		return fmt.Errorf("error loading schematic: %w", err)
	}

	if len(args) >= 2 {
		return showComponent(doc, args[1])
	}

	showSummary(doc, args[0])
	return nil
}

func showSummary(doc *schematic.Document, filename string) {
	fmt.Printf("Schematic: %s\n", filename)
	fmt.Printf("Version: %d\n", doc.Version)
	fmt.Printf("Generator: %s", doc.Generator)
	if doc.GeneratorVersion != "" {
		fmt.Printf(" v%s", doc.GeneratorVersion)
	}
	fmt.Println()
	fmt.Printf("Paper: %s\n", doc.Paper)
	fmt.Println()

	if !doc.TitleBlock.IsZero() {
		fmt.Println("Title Block:")
		if doc.TitleBlock.Title != "" {
			fmt.Printf("  Title: %s\n", doc.TitleBlock.Title)
		}
		if doc.TitleBlock.Date != "" {
			fmt.Printf("  Date: %s\n", doc.TitleBlock.Date)
		}
		if doc.TitleBlock.Revision != "" {
			fmt.Printf("  Revision: %s\n", doc.TitleBlock.Revision)
		}
		if doc.TitleBlock.Company != "" {
			fmt.Printf("  Company: %s\n", doc.TitleBlock.Company)
		}
		fmt.Println()
	}

	fmt.Println("Statistics:")
	fmt.Printf("  Components: %d\n", doc.Components.Len())
	fmt.Printf("  Wires: %d\n", len(doc.Wires.ByKind(schematic.WireKindWire)))
	fmt.Printf("  Buses: %d\n", len(doc.Wires.ByKind(schematic.WireKindBus)))
	fmt.Printf("  Junctions: %d\n", doc.Junctions.Len())
	fmt.Printf("  Labels: %d\n", doc.Labels.Len())
	fmt.Println()

	if doc.Components.Len() > 0 {
		fmt.Println("Components:")

		byPrefix := make(map[string][]string)
		for _, c := range doc.Components.All() {
			prefix := strings.TrimRight(c.Reference, "0123456789")
			byPrefix[prefix] = append(byPrefix[prefix], c.Reference)
		}

		var prefixes []string
		for p := range byPrefix {
			prefixes = append(prefixes, p)
		}
		sort.Strings(prefixes)

		for _, prefix := range prefixes {
			refs := byPrefix[prefix]
			sort.Strings(refs)
			fmt.Printf("  %s: %s\n", prefix, strings.Join(refs, ", "))
		}
	}
}

func showComponent(doc *schematic.Document, ref string) error {
	c, ok := doc.Components.ByReference(ref)
	if !ok {
		return fmt.Errorf("component %q not found", ref)
	}

	fmt.Printf("Component: %s\n", c.Reference)
	fmt.Printf("  Library: %s\n", c.LibID)
	fmt.Printf("  Position: (%.2f, %.2f) rotation %.0f\n", c.Pose.X, c.Pose.Y, c.Pose.Rotation)
	fmt.Printf("  Unit: %d\n", c.Unit)
	fmt.Printf("  UUID: %s\n", c.UUID)
	if c.DNP {
		fmt.Println("  DNP: yes")
	}
	if !c.InBOM {
		fmt.Println("  In BOM: no")
	}

	if len(c.Properties) > 0 {
		fmt.Println("  Properties:")
		for _, p := range c.Properties {
			if p.Name == schematic.RoleReference {
				continue
			}
			fmt.Printf("    %s: %s\n", p.Name, p.Value)
		}
	}

	if len(c.Pins) > 0 {
		fmt.Println("  Pins:")
		for _, p := range c.Pins {
			if pos, ok := doc.PinPositionRotated(c.Reference, p.Number); ok {
				fmt.Printf("    %s at (%.2f, %.2f)\n", p.Number, pos.X, pos.Y)
			} else {
				fmt.Printf("    %s\n", p.Number)
			}
		}
	}
	return nil
}
