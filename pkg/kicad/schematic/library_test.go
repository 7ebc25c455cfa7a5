package schematic

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OpenTraceLab/OpenTraceSchematic/pkg/kicad/sexp"
)

func TestBuiltinLibrary(t *testing.T) {
	lib := Builtin()

	names := lib.Names()
	assert.Contains(t, names, "Device:R")
	assert.Contains(t, names, "power:GND")

	def, ok := lib.Definition("Device:R")
	require.True(t, ok)
	assert.Equal(t, "symbol", def.(*sexp.List).Tag())

	_, ok = lib.Definition("Device:Nope")
	assert.False(t, ok)
}

func TestBuiltinResistorPins(t *testing.T) {
	lib := Builtin()

	pins, ok := lib.Pins("Device:R")
	require.True(t, ok)
	require.Len(t, pins, 2)

	// Pins live in the nested unit sub-symbol, not the outer block.
	assert.Equal(t, "1", pins[0].Number)
	assert.Equal(t, Position{X: 0, Y: 3.81}, pins[0].Offset)
	assert.Equal(t, "passive", pins[0].Electrical)

	assert.Equal(t, "2", pins[1].Number)
	assert.Equal(t, Position{X: 0, Y: -3.81}, pins[1].Offset)
}

func TestRegisterReaderAcceptsWrappers(t *testing.T) {
	bare := `(symbol "Test:A" (symbol "A_1_1" (pin passive line (at 0 0 0) (length 1) (name "~") (number "1"))))`
	wrapped := `(kicad_symbol_lib (version 20241209) (symbol "Test:B" (pin passive line (at 1 2 0) (length 1) (name "~") (number "1"))))`

	lib := NewMemoryLibrary()
	require.NoError(t, lib.RegisterString(bare))
	require.NoError(t, lib.RegisterString(wrapped))

	assert.Equal(t, []string{"Test:A", "Test:B"}, lib.Names())

	pins, ok := lib.Pins("Test:B")
	require.True(t, ok)
	require.Len(t, pins, 1)
	assert.Equal(t, Position{X: 1, Y: 2}, pins[0].Offset)
}

func TestRegisterRejectsBadBlocks(t *testing.T) {
	lib := NewMemoryLibrary()
	assert.Error(t, lib.RegisterString(`(not_a_symbol "x")`))
	assert.Error(t, lib.RegisterString(`(symbol)`))
}

func TestChainLibraryOverlayWins(t *testing.T) {
	base := Builtin()

	overlayDef, err := sexp.ParseString(`(symbol "Device:R" (property "Description" "local override" (at 0 0 0)))`)
	require.NoError(t, err)

	chain := chainLibrary{
		overlay: map[string]*sexp.List{"Device:R": overlayDef.(*sexp.List)},
		base:    base,
	}

	def, ok := chain.Definition("Device:R")
	require.True(t, ok)
	assert.Same(t, overlayDef.(*sexp.List), def.(*sexp.List))

	// Identifiers absent from the overlay fall through to the base.
	_, ok = chain.Definition("Device:C")
	assert.True(t, ok)

	_, ok = chain.Definition("Device:Nope")
	assert.False(t, ok)
}

func TestChainLibraryNilBase(t *testing.T) {
	chain := chainLibrary{overlay: map[string]*sexp.List{}}

	_, ok := chain.Definition("Device:R")
	assert.False(t, ok)
	_, ok = chain.Pins("Device:R")
	assert.False(t, ok)
}
