package schematic

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/OpenTraceLab/OpenTraceSchematic/pkg/kicad/sexp"
)

// Library is the read-only contract of the symbol-library collaborator.
// The codec consumes definitions and pin geometry; discovery and
// on-disk caching live outside this module.
type Library interface {
	// Definition returns the verbatim (symbol "Lib:Name" ...) block
	// for a library identifier.
	Definition(libID string) (sexp.Node, bool)

	// Pins returns the pins of a library symbol.
	Pins(libID string) ([]SymbolPin, bool)
}

// MemoryLibrary is an in-memory Library. Symbol blocks are registered
// verbatim; pin geometry is extracted from the block at registration.
type MemoryLibrary struct {
	defs map[string]*sexp.List
	pins map[string][]SymbolPin
}

// NewMemoryLibrary creates an empty in-memory library.
func NewMemoryLibrary() *MemoryLibrary {
	return &MemoryLibrary{
		defs: make(map[string]*sexp.List),
		pins: make(map[string][]SymbolPin),
	}
}

// Register stores a (symbol "Lib:Name" ...) definition block under the
// name carried by the block itself.
func (m *MemoryLibrary) Register(block *sexp.List) error {
	if block.Tag() != "symbol" {
		return fmt.Errorf("library definition must be a (symbol ...) block, got %q", block.Tag())
	}
	name, ok := block.StringAt(1)
	if !ok || name == "" {
		return fmt.Errorf("library definition has no symbol name")
	}

	m.defs[name] = block
	m.pins[name] = extractPins(block)
	return nil
}

// RegisterString parses and registers one or more symbol blocks from
// source text.
func (m *MemoryLibrary) RegisterString(text string) error {
	return m.RegisterReader(strings.NewReader(text))
}

// RegisterReader parses and registers symbol blocks from r. The input
// may be bare (symbol ...) blocks or a (kicad_symbol_lib ...) wrapper.
func (m *MemoryLibrary) RegisterReader(r io.Reader) error {
	nodes, err := sexp.ParseAll(r)
	if err != nil {
		return err
	}

	for _, node := range nodes {
		list, ok := node.(*sexp.List)
		if !ok {
			return fmt.Errorf("library source is not a list")
		}
		switch list.Tag() {
		case "symbol":
			if err := m.Register(list); err != nil {
				return err
			}
		case "kicad_symbol_lib", "lib_symbols":
			for _, sub := range list.Children("symbol") {
				if err := m.Register(sub); err != nil {
					return err
				}
			}
		default:
			return fmt.Errorf("unexpected library block %q", list.Tag())
		}
	}
	return nil
}

// Definition implements Library.
func (m *MemoryLibrary) Definition(libID string) (sexp.Node, bool) {
	def, ok := m.defs[libID]
	return def, ok
}

// Pins implements Library.
func (m *MemoryLibrary) Pins(libID string) ([]SymbolPin, bool) {
	pins, ok := m.pins[libID]
	return pins, ok
}

// Names returns the registered identifiers, sorted.
func (m *MemoryLibrary) Names() []string {
	names := make([]string, 0, len(m.defs))
	for name := range m.defs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// extractPins walks a symbol definition block, including nested unit
// sub-symbols, collecting pin number, name, offset and electrical kind.
func extractPins(block *sexp.List) []SymbolPin {
	var pins []SymbolPin

	var walk func(node *sexp.List)
	walk = func(node *sexp.List) {
		for _, pinNode := range node.Children("pin") {
			pin := SymbolPin{Electrical: "passive"}
			if kind, ok := pinNode.StringAt(1); ok {
				pin.Electrical = kind
			}
			if at, ok := pinNode.Child("at"); ok {
				pin.Offset.X, _ = at.FloatAt(1)
				pin.Offset.Y, _ = at.FloatAt(2)
			}
			if name, ok := pinNode.Child("name"); ok {
				pin.Name, _ = name.StringAt(1)
			}
			if num, ok := pinNode.Child("number"); ok {
				pin.Number, _ = num.StringAt(1)
			}
			pins = append(pins, pin)
		}
		for _, sub := range node.Children("symbol") {
			walk(sub)
		}
	}
	walk(block)

	return pins
}

// chainLibrary consults an overlay (a document's embedded lib_symbols)
// before falling back to the injected collaborator.
type chainLibrary struct {
	overlay map[string]*sexp.List
	base    Library
}

func (c chainLibrary) Definition(libID string) (sexp.Node, bool) {
	if def, ok := c.overlay[libID]; ok {
		return def, true
	}
	if c.base == nil {
		return nil, false
	}
	return c.base.Definition(libID)
}

func (c chainLibrary) Pins(libID string) ([]SymbolPin, bool) {
	if def, ok := c.overlay[libID]; ok {
		return extractPins(def), true
	}
	if c.base == nil {
		return nil, false
	}
	return c.base.Pins(libID)
}

// Builtin returns a library seeded with a handful of common symbols,
// enough for generated documents and tests to serialize without an
// external symbol source.
func Builtin() *MemoryLibrary {
	lib := NewMemoryLibrary()
	// The seed blocks are well-formed; Register cannot fail on them.
	for _, def := range builtinSymbols {
		if err := lib.RegisterString(def); err != nil {
			panic(fmt.Sprintf("builtin symbol: %v", err))
		}
	}
	return lib
}

var builtinSymbols = []string{
	`(symbol "Device:R"
	(pin_numbers hide)
	(pin_names (offset 0))
	(exclude_from_sim no)
	(in_bom yes)
	(on_board yes)
	(property "Reference" "R" (at 2.032 0 90) (effects (font (size 1.27 1.27))))
	(property "Value" "R" (at 0 0 90) (effects (font (size 1.27 1.27))))
	(property "Footprint" "" (at -1.778 0 90) (effects (font (size 1.27 1.27)) hide))
	(property "Datasheet" "~" (at 0 0 0) (effects (font (size 1.27 1.27)) hide))
	(property "Description" "Resistor" (at 0 0 0) (effects (font (size 1.27 1.27)) hide))
	(symbol "R_0_1"
		(rectangle (start -1.016 -2.54) (end 1.016 2.54)
			(stroke (width 0.254) (type default))
			(fill (type none))
		)
	)
	(symbol "R_1_1"
		(pin passive line (at 0 3.81 270) (length 1.27)
			(name "~" (effects (font (size 1.27 1.27))))
			(number "1" (effects (font (size 1.27 1.27))))
		)
		(pin passive line (at 0 -3.81 90) (length 1.27)
			(name "~" (effects (font (size 1.27 1.27))))
			(number "2" (effects (font (size 1.27 1.27))))
		)
	)
)`,
	`(symbol "Device:C"
	(pin_numbers hide)
	(pin_names (offset 0.254))
	(exclude_from_sim no)
	(in_bom yes)
	(on_board yes)
	(property "Reference" "C" (at 0.635 2.54 0) (effects (font (size 1.27 1.27)) (justify left)))
	(property "Value" "C" (at 0.635 -2.54 0) (effects (font (size 1.27 1.27)) (justify left)))
	(property "Footprint" "" (at 0.9652 -3.81 0) (effects (font (size 1.27 1.27)) hide))
	(property "Datasheet" "~" (at 0 0 0) (effects (font (size 1.27 1.27)) hide))
	(property "Description" "Unpolarized capacitor" (at 0 0 0) (effects (font (size 1.27 1.27)) hide))
	(symbol "C_0_1"
		(polyline (pts (xy -2.032 -0.762) (xy 2.032 -0.762))
			(stroke (width 0.508) (type default))
			(fill (type none))
		)
		(polyline (pts (xy -2.032 0.762) (xy 2.032 0.762))
			(stroke (width 0.508) (type default))
			(fill (type none))
		)
	)
	(symbol "C_1_1"
		(pin passive line (at 0 3.81 270) (length 2.794)
			(name "~" (effects (font (size 1.27 1.27))))
			(number "1" (effects (font (size 1.27 1.27))))
		)
		(pin passive line (at 0 -3.81 90) (length 2.794)
			(name "~" (effects (font (size 1.27 1.27))))
			(number "2" (effects (font (size 1.27 1.27))))
		)
	)
)`,
	`(symbol "Device:LED"
	(pin_numbers hide)
	(pin_names (offset 1.016) hide)
	(exclude_from_sim no)
	(in_bom yes)
	(on_board yes)
	(property "Reference" "D" (at 0 2.54 0) (effects (font (size 1.27 1.27))))
	(property "Value" "LED" (at 0 -2.54 0) (effects (font (size 1.27 1.27))))
	(property "Footprint" "" (at 0 0 0) (effects (font (size 1.27 1.27)) hide))
	(property "Datasheet" "~" (at 0 0 0) (effects (font (size 1.27 1.27)) hide))
	(property "Description" "Light emitting diode" (at 0 0 0) (effects (font (size 1.27 1.27)) hide))
	(symbol "LED_0_1"
		(polyline (pts (xy -1.27 -1.27) (xy -1.27 1.27))
			(stroke (width 0.254) (type default))
			(fill (type none))
		)
		(polyline (pts (xy -1.27 0) (xy 1.27 -1.27) (xy 1.27 1.27) (xy -1.27 0))
			(stroke (width 0.254) (type default))
			(fill (type none))
		)
	)
	(symbol "LED_1_1"
		(pin passive line (at -3.81 0 0) (length 2.54)
			(name "K" (effects (font (size 1.27 1.27))))
			(number "1" (effects (font (size 1.27 1.27))))
		)
		(pin passive line (at 3.81 0 180) (length 2.54)
			(name "A" (effects (font (size 1.27 1.27))))
			(number "2" (effects (font (size 1.27 1.27))))
		)
	)
)`,
	`(symbol "Device:D"
	(pin_numbers hide)
	(pin_names (offset 1.016) hide)
	(exclude_from_sim no)
	(in_bom yes)
	(on_board yes)
	(property "Reference" "D" (at 0 2.54 0) (effects (font (size 1.27 1.27))))
	(property "Value" "D" (at 0 -2.54 0) (effects (font (size 1.27 1.27))))
	(property "Footprint" "" (at 0 0 0) (effects (font (size 1.27 1.27)) hide))
	(property "Datasheet" "~" (at 0 0 0) (effects (font (size 1.27 1.27)) hide))
	(property "Description" "Diode" (at 0 0 0) (effects (font (size 1.27 1.27)) hide))
	(symbol "D_0_1"
		(polyline (pts (xy -1.27 1.27) (xy -1.27 -1.27))
			(stroke (width 0.254) (type default))
			(fill (type none))
		)
		(polyline (pts (xy 1.27 1.27) (xy 1.27 -1.27) (xy -1.27 0) (xy 1.27 1.27))
			(stroke (width 0.254) (type default))
			(fill (type none))
		)
	)
	(symbol "D_1_1"
		(pin passive line (at -3.81 0 0) (length 2.54)
			(name "K" (effects (font (size 1.27 1.27))))
			(number "1" (effects (font (size 1.27 1.27))))
		)
		(pin passive line (at 3.81 0 180) (length 2.54)
			(name "A" (effects (font (size 1.27 1.27))))
			(number "2" (effects (font (size 1.27 1.27))))
		)
	)
)`,
	`(symbol "power:GND"
	(power)
	(pin_names (offset 0))
	(exclude_from_sim no)
	(in_bom yes)
	(on_board yes)
	(property "Reference" "#PWR" (at 0 -6.35 0) (effects (font (size 1.27 1.27)) hide))
	(property "Value" "GND" (at 0 -3.81 0) (effects (font (size 1.27 1.27))))
	(property "Footprint" "" (at 0 0 0) (effects (font (size 1.27 1.27)) hide))
	(property "Datasheet" "" (at 0 0 0) (effects (font (size 1.27 1.27)) hide))
	(property "Description" "Power symbol, ground" (at 0 0 0) (effects (font (size 1.27 1.27)) hide))
	(symbol "GND_0_1"
		(polyline (pts (xy 0 0) (xy 0 -1.27) (xy 1.27 -1.27) (xy 0 -2.54) (xy -1.27 -1.27) (xy 0 -1.27))
			(stroke (width 0) (type default))
			(fill (type none))
		)
	)
	(symbol "GND_1_1"
		(pin power_in line (at 0 0 270) (length 0) hide
			(name "GND" (effects (font (size 1.27 1.27))))
			(number "1" (effects (font (size 1.27 1.27))))
		)
	)
)`,
	`(symbol "power:+5V"
	(power)
	(pin_names (offset 0))
	(exclude_from_sim no)
	(in_bom yes)
	(on_board yes)
	(property "Reference" "#PWR" (at 0 3.556 0) (effects (font (size 1.27 1.27)) hide))
	(property "Value" "+5V" (at 0 3.556 0) (effects (font (size 1.27 1.27))))
	(property "Footprint" "" (at 0 0 0) (effects (font (size 1.27 1.27)) hide))
	(property "Datasheet" "" (at 0 0 0) (effects (font (size 1.27 1.27)) hide))
	(property "Description" "Power symbol, +5V supply" (at 0 0 0) (effects (font (size 1.27 1.27)) hide))
	(symbol "+5V_0_1"
		(polyline (pts (xy -0.762 1.27) (xy 0 2.54) (xy 0.762 1.27))
			(stroke (width 0) (type default))
			(fill (type none))
		)
		(polyline (pts (xy 0 0) (xy 0 2.54))
			(stroke (width 0) (type default))
			(fill (type none))
		)
	)
	(symbol "+5V_1_1"
		(pin power_in line (at 0 0 90) (length 0) hide
			(name "+5V" (effects (font (size 1.27 1.27))))
			(number "1" (effects (font (size 1.27 1.27))))
		)
	)
)`,
	`(symbol "Connector_Generic:Conn_01x02"
	(pin_names (offset 1.016) hide)
	(exclude_from_sim no)
	(in_bom yes)
	(on_board yes)
	(property "Reference" "J" (at 0 2.54 0) (effects (font (size 1.27 1.27))))
	(property "Value" "Conn_01x02" (at 0 -5.08 0) (effects (font (size 1.27 1.27))))
	(property "Footprint" "" (at 0 0 0) (effects (font (size 1.27 1.27)) hide))
	(property "Datasheet" "~" (at 0 0 0) (effects (font (size 1.27 1.27)) hide))
	(property "Description" "Generic connector, single row, 01x02" (at 0 0 0) (effects (font (size 1.27 1.27)) hide))
	(symbol "Conn_01x02_1_1"
		(rectangle (start -1.27 1.27) (end 1.27 -3.81)
			(stroke (width 0.254) (type default))
			(fill (type none))
		)
		(pin passive line (at -5.08 0 0) (length 3.81)
			(name "Pin_1" (effects (font (size 1.27 1.27))))
			(number "1" (effects (font (size 1.27 1.27))))
		)
		(pin passive line (at -5.08 -2.54 0) (length 3.81)
			(name "Pin_2" (effects (font (size 1.27 1.27))))
			(number "2" (effects (font (size 1.27 1.27))))
		)
	)
)`,
}
