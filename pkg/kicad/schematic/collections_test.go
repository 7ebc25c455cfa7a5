package schematic

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeComponent(uuid, ref, libID string) *Component {
	return &Component{
		UUID:      uuid,
		LibID:     libID,
		Reference: ref,
		Unit:      1,
		InBOM:     true,
		OnBoard:   true,
	}
}

func TestComponentAddAndGet(t *testing.T) {
	cc := NewComponentCollection()

	c, err := cc.Add(makeComponent("u1", "R1", "Device:R"))
	require.NoError(t, err)
	assert.Equal(t, "R1", c.Reference)
	assert.Equal(t, 1, cc.Len())

	got, ok := cc.Get("u1")
	require.True(t, ok)
	assert.Same(t, c, got)

	byRef, ok := cc.ByReference("R1")
	require.True(t, ok)
	assert.Same(t, c, byRef)
}

func TestComponentAddRejectsMissingUUID(t *testing.T) {
	cc := NewComponentCollection()

	_, err := cc.Add(makeComponent("", "R1", "Device:R"))
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "uuid", verr.Field)
}

func TestComponentAddRejectsDuplicateUUID(t *testing.T) {
	cc := NewComponentCollection()

	_, err := cc.Add(makeComponent("u1", "R1", "Device:R"))
	require.NoError(t, err)

	_, err = cc.Add(makeComponent("u1", "R2", "Device:R"))
	var derr *DuplicateIDError
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, "u1", derr.ID)
	assert.Equal(t, 1, cc.Len())
}

func TestComponentAddRejectsDuplicateReference(t *testing.T) {
	cc := NewComponentCollection()

	_, err := cc.Add(makeComponent("u1", "R1", "Device:R"))
	require.NoError(t, err)

	_, err = cc.Add(makeComponent("u2", "R1", "Device:R"))
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "reference", verr.Field)

	// Nothing committed for the rejected component.
	assert.Equal(t, 1, cc.Len())
	assert.False(t, cc.Contains("u2"))
}

func TestComponentAddValidatesReferenceSyntax(t *testing.T) {
	cc := NewComponentCollection()

	for _, bad := range []string{"", "r1", "1R", "R 1", "R1!"} {
		_, err := cc.Add(makeComponent("u-"+bad, bad, "Device:R"))
		assert.Error(t, err, "reference %q should be rejected", bad)
	}

	for _, good := range []string{"R1", "#PWR01", "U100", "SW1"} {
		_, err := cc.Add(makeComponent("u-"+good, good, "Device:R"))
		assert.NoError(t, err, "reference %q should be accepted", good)
	}
}

func TestComponentAddValidatesLibID(t *testing.T) {
	cc := NewComponentCollection()

	for _, bad := range []string{"", "DeviceR", "Device:R:extra", ":R", "Device:"} {
		_, err := cc.Add(makeComponent("u1", "R1", bad))
		assert.Error(t, err, "lib_id %q should be rejected", bad)
	}
}

func TestComponentAddValidatesRotation(t *testing.T) {
	cc := NewComponentCollection()

	c := makeComponent("u1", "R1", "Device:R")
	c.Pose.Rotation = 45
	_, err := cc.Add(c)
	assert.Error(t, err)

	c.Pose.Rotation = 270
	_, err = cc.Add(c)
	assert.NoError(t, err)
}

func TestRemoveReindexes(t *testing.T) {
	cc := NewComponentCollection()
	for i, ref := range []string{"R1", "R2", "R3"} {
		_, err := cc.Add(makeComponent(string(rune('a'+i)), ref, "Device:R"))
		require.NoError(t, err)
	}

	require.True(t, cc.Remove("b"))
	assert.False(t, cc.Remove("b"))
	assert.Equal(t, 2, cc.Len())

	// Remaining items stay addressable after the index shift.
	c, ok := cc.Get("c")
	require.True(t, ok)
	assert.Equal(t, "R3", c.Reference)

	_, ok = cc.ByReference("R2")
	assert.False(t, ok)
}

func TestSecondaryIndexRebuildsAfterInPlaceEdit(t *testing.T) {
	cc := NewComponentCollection()
	c, err := cc.Add(makeComponent("u1", "R1", "Device:R"))
	require.NoError(t, err)

	c.SetProperty(RoleValue, "10k")
	cc.MarkDirty()

	matches := cc.ByValue("10k")
	require.Len(t, matches, 1)
	assert.Same(t, c, matches[0])
}

func TestNextReferenceSequence(t *testing.T) {
	cc := NewComponentCollection()

	for i, want := range []string{"R1", "R2", "R3"} {
		ref := cc.NextReference("Device:R")
		assert.Equal(t, want, ref)
		_, err := cc.Add(makeComponent(string(rune('a'+i)), ref, "Device:R"))
		require.NoError(t, err)
	}
}

func TestNextReferenceFillsGaps(t *testing.T) {
	cc := NewComponentCollection()
	for i, ref := range []string{"R1", "R2", "R3"} {
		_, err := cc.Add(makeComponent(string(rune('a'+i)), ref, "Device:R"))
		require.NoError(t, err)
	}

	cc.Remove("b") // frees R2
	assert.Equal(t, "R2", cc.NextReference("Device:R"))
}

func TestNextReferenceIgnoresOtherPrefixes(t *testing.T) {
	cc := NewComponentCollection()
	_, err := cc.Add(makeComponent("a", "C1", "Device:C"))
	require.NoError(t, err)

	assert.Equal(t, "R1", cc.NextReference("Device:R"))
	assert.Equal(t, "C2", cc.NextReference("Device:C"))
	assert.Equal(t, "#PWR01", cc.NextReference("power:GND"))
}

func TestNextReferencePadsPowerDesignators(t *testing.T) {
	cc := NewComponentCollection()

	ref := cc.NextReference("power:GND")
	assert.Equal(t, "#PWR01", ref)
	_, err := cc.Add(makeComponent("p1", ref, "power:GND"))
	require.NoError(t, err)

	assert.Equal(t, "#PWR02", cc.NextReference("power:+5V"))

	// Padded and unpadded designators count against the same suffix.
	for i, existing := range []string{"#PWR02", "#PWR3", "#PWR04"} {
		_, err := cc.Add(makeComponent("p-extra-"+string(rune('a'+i)), existing, "power:GND"))
		require.NoError(t, err)
	}
	assert.Equal(t, "#PWR05", cc.NextReference("power:GND"))
}

func TestMultiUnitComponentsShareReference(t *testing.T) {
	cc := NewComponentCollection()

	unit1 := makeComponent("op-a", "U1", "Amplifier_Operational:LM358")
	unit2 := makeComponent("op-b", "U1", "Amplifier_Operational:LM358")
	unit2.Unit = 2

	_, err := cc.Add(unit1)
	require.NoError(t, err)
	_, err = cc.Add(unit2)
	require.NoError(t, err, "a second unit of the same part shares the reference")
	assert.Equal(t, 2, cc.Len())

	// The same (reference, unit) pair stays unique.
	clash := makeComponent("op-c", "U1", "Amplifier_Operational:LM358")
	clash.Unit = 2
	_, err = cc.Add(clash)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "reference", verr.Field)

	got, ok := cc.ByReference("U1")
	require.True(t, ok)
	assert.Same(t, unit1, got, "plain lookup answers the first placed unit")

	got, ok = cc.ByReferenceUnit("U1", 2)
	require.True(t, ok)
	assert.Same(t, unit2, got)

	units := cc.Units("U1")
	require.Len(t, units, 2)
	assert.Same(t, unit1, units[0])
	assert.Same(t, unit2, units[1])
}

func TestReferencePrefix(t *testing.T) {
	cases := map[string]string{
		"Device:R":                      "R",
		"Device:C":                      "C",
		"Device:LED":                    "D",
		"Device:Crystal":                "Y",
		"Device:Battery_Cell":           "BT",
		"Connector_Generic:Conn_01x02":  "J",
		"power:GND":                     "#PWR",
		"power:+5V":                     "#PWR",
		"Amplifier_Operational:LM358":   "U",
		"Transistor_BJT:Q_NPN_BCE":      "Q",
		"Switch:SW_Push":                "SW",
	}
	for libID, want := range cases {
		assert.Equal(t, want, ReferencePrefix(libID), "prefix for %s", libID)
	}
}

func TestRename(t *testing.T) {
	cc := NewComponentCollection()
	c1, err := cc.Add(makeComponent("a", "R1", "Device:R"))
	require.NoError(t, err)
	_, err = cc.Add(makeComponent("b", "R2", "Device:R"))
	require.NoError(t, err)

	require.Error(t, cc.Rename(c1, "R2"))
	require.Error(t, cc.Rename(c1, "bad ref"))
	require.NoError(t, cc.Rename(c1, "R10"))

	got, ok := cc.ByReference("R10")
	require.True(t, ok)
	assert.Same(t, c1, got)
	_, ok = cc.ByReference("R1")
	assert.False(t, ok)
}

func TestFilterMatchesExactly(t *testing.T) {
	cc := NewComponentCollection()
	c1 := makeComponent("a", "R1", "Device:R")
	c1.SetProperty(RoleValue, "10k")
	c12 := makeComponent("b", "R12", "Device:R")
	c12.SetProperty(RoleValue, "10k0")
	_, err := cc.Add(c1)
	require.NoError(t, err)
	_, err = cc.Add(c12)
	require.NoError(t, err)

	// Exact equality, never substring matching.
	matches := cc.Filter(map[string]string{"reference": "R1"})
	require.Len(t, matches, 1)
	assert.Equal(t, "R1", matches[0].Reference)

	matches = cc.Filter(map[string]string{"value": "10k"})
	require.Len(t, matches, 1)
	assert.Equal(t, "R1", matches[0].Reference)

	matches = cc.Filter(map[string]string{"lib_id": "Device:R", "value": "10k0"})
	require.Len(t, matches, 1)
	assert.Equal(t, "R12", matches[0].Reference)
}

func TestModifiedFlag(t *testing.T) {
	cc := NewComponentCollection()
	assert.False(t, cc.Modified())

	_, err := cc.Add(makeComponent("a", "R1", "Device:R"))
	require.NoError(t, err)
	assert.True(t, cc.Modified())

	cc.ClearModified()
	assert.False(t, cc.Modified())

	cc.Remove("a")
	assert.True(t, cc.Modified())
}

func TestWireValidation(t *testing.T) {
	wc := NewWireCollection()

	_, err := wc.Add(&Wire{UUID: "w1", Kind: WireKindWire, Points: []Position{{0, 0}}})
	assert.Error(t, err, "single-point wire")

	_, err = wc.Add(&Wire{UUID: "w2", Kind: WireKindWire, Points: []Position{{5, 5}, {5, 5}}})
	assert.Error(t, err, "coincident endpoints")

	_, err = wc.Add(&Wire{UUID: "w3", Kind: "cable", Points: []Position{{0, 0}, {10, 0}}})
	assert.Error(t, err, "unknown kind")

	_, err = wc.Add(&Wire{
		UUID: "w4", Kind: WireKindWire,
		Points: []Position{{0, 0}, {10, 0}},
		Stroke: Stroke{Width: -1},
	})
	assert.Error(t, err, "negative stroke width")

	_, err = wc.Add(&Wire{UUID: "w5", Kind: WireKindWire, Points: []Position{{0, 0}, {10, 0}, {10, 10}}})
	assert.NoError(t, err)
	assert.Equal(t, 1, wc.Len())
}

func TestWireEndpointIndex(t *testing.T) {
	wc := NewWireCollection()
	w1, err := wc.Add(&Wire{UUID: "w1", Kind: WireKindWire, Points: []Position{{0, 0}, {10, 0}}})
	require.NoError(t, err)
	_, err = wc.Add(&Wire{UUID: "w2", Kind: WireKindBus, Points: []Position{{10, 0}, {10, 10}}})
	require.NoError(t, err)

	at := wc.AtEndpoint(Position{X: 10, Y: 0})
	assert.Len(t, at, 2)

	at = wc.AtEndpoint(Position{X: 0, Y: 0})
	require.Len(t, at, 1)
	assert.Same(t, w1, at[0])

	// Interior points are not endpoints.
	_, err = wc.Add(&Wire{UUID: "w3", Kind: WireKindWire, Points: []Position{{0, 5}, {5, 5}, {9, 5}}})
	require.NoError(t, err)
	assert.Empty(t, wc.AtEndpoint(Position{X: 5, Y: 5}))

	assert.Len(t, wc.ByKind(WireKindWire), 2)
	assert.Len(t, wc.ByKind(WireKindBus), 1)
}

func TestJunctionUniquePosition(t *testing.T) {
	jc := NewJunctionCollection()

	_, err := jc.Add(&Junction{UUID: "j1", Position: Position{X: 5.08, Y: 10.16}})
	require.NoError(t, err)

	_, err = jc.Add(&Junction{UUID: "j2", Position: Position{X: 5.08, Y: 10.16}})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "position", verr.Field)
	assert.Equal(t, 1, jc.Len())

	j, ok := jc.AtPosition(Position{X: 5.08, Y: 10.16})
	require.True(t, ok)
	assert.Equal(t, "j1", j.UUID)
}

func TestLabelValidationAndIndexes(t *testing.T) {
	lc := NewLabelCollection()

	_, err := lc.Add(&Label{UUID: "l1", Text: "", Kind: LabelKindLocal})
	assert.Error(t, err, "empty text")

	_, err = lc.Add(&Label{UUID: "l2", Text: "VCC", Kind: "sticky"})
	assert.Error(t, err, "unknown kind")

	_, err = lc.Add(&Label{UUID: "l3", Text: "VCC", Kind: LabelKindGlobal, Position: Position{X: 1, Y: 2}})
	require.NoError(t, err)
	_, err = lc.Add(&Label{UUID: "l4", Text: "vcc", Kind: LabelKindLocal, Position: Position{X: 3, Y: 4}})
	require.NoError(t, err)

	assert.Len(t, lc.ByText("Vcc"), 2, "text lookup is case-insensitive")
	assert.Len(t, lc.ByKind(LabelKindGlobal), 1)
	assert.Len(t, lc.AtPosition(Position{X: 1, Y: 2}), 1)
}

func TestPosKeyCollapsesFloatNoise(t *testing.T) {
	// 0.1+0.2 != 0.3 in floats, but both render to the same canonical
	// text so they key identically only when truly equal after
	// formatting. Values that format differently stay distinct.
	assert.Equal(t, posKey(Position{X: 1.27, Y: 0}), posKey(Position{X: 1.27, Y: 0}))
	assert.NotEqual(t, posKey(Position{X: 1.27, Y: 0}), posKey(Position{X: 1.271, Y: 0}))
	assert.Equal(t, "5,-3.81", posKey(Position{X: 5, Y: -3.81}))
}
