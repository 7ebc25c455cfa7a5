package schematic

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Two resistors side by side, top pins joined by a wire carrying a
// label, bottom pins joined by a wire tied to ground.
func buildDivider(t *testing.T) *Document {
	t.Helper()
	doc := New("nets", Builtin())

	_, err := doc.PlaceComponent("Device:R", "R1", Position{X: 0, Y: 0})
	require.NoError(t, err)
	_, err = doc.PlaceComponent("Device:R", "R2", Position{X: 10, Y: 0})
	require.NoError(t, err)

	// Pin 1 sits at (x, 3.81), pin 2 at (x, -3.81).
	_, err = doc.AddWire(Position{X: 0, Y: 3.81}, Position{X: 10, Y: 3.81})
	require.NoError(t, err)
	_, err = doc.AddWire(Position{X: 0, Y: -3.81}, Position{X: 10, Y: -3.81})
	require.NoError(t, err)

	_, err = doc.AddLabel("VOUT", Position{X: 5, Y: 3.81}, LabelKindLocal)
	require.NoError(t, err)

	gnd, err := doc.PlaceComponent("power:GND", "", Position{X: 0, Y: -3.81})
	require.NoError(t, err)
	assert.Equal(t, "#PWR01", gnd.Reference)

	return doc
}

func TestNetlistDivider(t *testing.T) {
	doc := buildDivider(t)

	// The label sits mid-wire, not on an endpoint, so anchor it by a
	// short stub wire to the joined run.
	_, err := doc.AddWire(Position{X: 5, Y: 3.81}, Position{X: 0, Y: 3.81})
	require.NoError(t, err)

	nets := doc.Netlist()
	require.Len(t, nets, 2)

	byName := map[string][]NetPin{}
	for _, n := range nets {
		byName[n.Name] = n.Pins
	}

	require.Contains(t, byName, "VOUT")
	assert.Equal(t, []NetPin{{"R1", "1"}, {"R2", "1"}}, byName["VOUT"])

	require.Contains(t, byName, "GND")
	assert.Equal(t, []NetPin{{"R1", "2"}, {"R2", "2"}}, byName["GND"])
}

func TestNetlistUnnamedNet(t *testing.T) {
	doc := New("n", Builtin())
	_, err := doc.PlaceComponent("Device:R", "R1", Position{X: 0, Y: 0})
	require.NoError(t, err)
	_, err = doc.PlaceComponent("Device:C", "C1", Position{X: 10, Y: 0})
	require.NoError(t, err)
	_, err = doc.AddWire(Position{X: 0, Y: 3.81}, Position{X: 10, Y: 3.81})
	require.NoError(t, err)

	nets := doc.Netlist()
	require.Len(t, nets, 1)
	assert.Equal(t, "Net-1", nets[0].Name)
	assert.Equal(t, []NetPin{{"C1", "1"}, {"R1", "1"}}, nets[0].Pins)
}

func TestNetlistSkipsSinglePinNets(t *testing.T) {
	doc := New("n", Builtin())
	_, err := doc.PlaceComponent("Device:R", "R1", Position{X: 0, Y: 0})
	require.NoError(t, err)

	// Two dangling pins, no connections at all.
	assert.Empty(t, doc.Netlist())
}

func TestNetlistBusesDoNotConduct(t *testing.T) {
	doc := New("n", Builtin())
	_, err := doc.PlaceComponent("Device:R", "R1", Position{X: 0, Y: 0})
	require.NoError(t, err)
	_, err = doc.PlaceComponent("Device:R", "R2", Position{X: 10, Y: 0})
	require.NoError(t, err)

	_, err = doc.AddBus(Position{X: 0, Y: 3.81}, Position{X: 10, Y: 3.81})
	require.NoError(t, err)

	assert.Empty(t, doc.Netlist(), "a bus between pins is not a plain-wire connection")
}

func TestNetlistMergesLabelsByText(t *testing.T) {
	doc := New("n", Builtin())
	_, err := doc.PlaceComponent("Device:R", "R1", Position{X: 0, Y: 0})
	require.NoError(t, err)
	_, err = doc.PlaceComponent("Device:R", "R2", Position{X: 50, Y: 0})
	require.NoError(t, err)

	// No physical wire between the halves; a shared label name joins
	// the two islands.
	_, err = doc.AddWire(Position{X: 0, Y: 3.81}, Position{X: 5, Y: 3.81})
	require.NoError(t, err)
	_, err = doc.AddWire(Position{X: 50, Y: 3.81}, Position{X: 45, Y: 3.81})
	require.NoError(t, err)
	_, err = doc.AddLabel("CLK", Position{X: 5, Y: 3.81}, LabelKindLocal)
	require.NoError(t, err)
	_, err = doc.AddLabel("clk", Position{X: 45, Y: 3.81}, LabelKindLocal)
	require.NoError(t, err)

	nets := doc.Netlist()
	require.Len(t, nets, 1)
	assert.Equal(t, []NetPin{{"R1", "1"}, {"R2", "1"}}, nets[0].Pins)
	// First-seen spelling wins for the display name.
	assert.Equal(t, "CLK", nets[0].Name)
}

func TestNetlistRespectsRotation(t *testing.T) {
	doc := New("n", Builtin())
	c, err := doc.PlaceComponent("Device:R", "R1", Position{X: 0, Y: 0})
	require.NoError(t, err)
	c.Pose.Rotation = 90
	doc.Components.MarkDirty()
	_, err = doc.PlaceComponent("Device:R", "R2", Position{X: 20, Y: 0})
	require.NoError(t, err)

	// Rotated 90 degrees, R1 pin 1 moves from (0, 3.81) to (3.81, 0).
	_, err = doc.AddWire(Position{X: 3.81, Y: 0}, Position{X: 20, Y: 3.81})
	require.NoError(t, err)

	nets := doc.Netlist()
	require.Len(t, nets, 1)
	assert.Equal(t, []NetPin{{"R1", "1"}, {"R2", "1"}}, nets[0].Pins)
}
