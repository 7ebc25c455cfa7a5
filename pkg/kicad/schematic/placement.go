package schematic

import (
	"strings"
)

// Property field auto-placement. Reproduces the host application's
// per-archetype field layout so that documents built through the API
// render like hand-edited ones. Offsets are fixed per archetype and
// applied relative to the component position.
//
// The verified behavior assumes component rotation 0: the default
// placement path never rotates the offsets. The rotation-aware
// transform exists behind PlacePropertyRotated only.

// Archetype is a property-layout pattern class, selected from the
// component's library identifier and pin count.
type Archetype int

const (
	// ArchetypeTwoPinPolar: polarized two-pin parts (diodes, LEDs,
	// polarized capacitors). Centered vertical stack.
	ArchetypeTwoPinPolar Archetype = iota
	// ArchetypeTwoPinNonPolar: resistors, capacitors, inductors.
	// Right-offset vertical stack.
	ArchetypeTwoPinNonPolar
	// ArchetypeThreePin: transistors, regulators. Wide right-offset stack.
	ArchetypeThreePin
	// ArchetypeSmallIC: compact ICs (4-8 pins). Centered stack with
	// large spacing.
	ArchetypeSmallIC
	// ArchetypeWideIC: wide multi-pin ICs. Left-offset stack with huge
	// spacing.
	ArchetypeWideIC
	// ArchetypeConnector: connectors and jacks. Centered stack.
	ArchetypeConnector
)

func (a Archetype) String() string {
	switch a {
	case ArchetypeTwoPinPolar:
		return "two_pin_polar"
	case ArchetypeTwoPinNonPolar:
		return "two_pin_non_polar"
	case ArchetypeThreePin:
		return "three_pin"
	case ArchetypeSmallIC:
		return "small_ic"
	case ArchetypeWideIC:
		return "wide_ic"
	case ArchetypeConnector:
		return "connector"
	}
	return "unknown"
}

// Placement is a synthesized field position.
type Placement struct {
	Position Position
	Rotation float64
	Justify  string // "", "left" or "right"
	Hidden   bool
}

// layout holds the fixed offsets of one archetype: the reference slot
// sits above the symbol, the value slot below, and further fields
// stack downward from the value slot.
type layout struct {
	refDX, refDY     float64
	valueDX, valueDY float64
	spacing          float64
	justify          string
}

var layouts = map[Archetype]layout{
	ArchetypeTwoPinPolar:    {0, -3.81, 0, 3.81, 2.54, ""},
	ArchetypeTwoPinNonPolar: {2.54, -1.27, 2.54, 1.27, 2.54, "left"},
	ArchetypeThreePin:       {5.08, -2.54, 5.08, 0, 2.54, "left"},
	ArchetypeSmallIC:        {0, -7.62, 0, 7.62, 5.08, ""},
	ArchetypeWideIC:         {-7.62, -12.7, -7.62, 12.7, 7.62, "left"},
	ArchetypeConnector:      {0, -5.08, 0, 5.08, 2.54, ""},
}

// polarTwoPinNames are symbol-name heads that mark a two-pin part as
// polarized.
var polarTwoPinNames = map[string]bool{
	"D":           true,
	"LED":         true,
	"CP":          true,
	"C_Polarized": true,
	"Battery":     true,
	"Buzzer":      true,
}

// ArchetypeFor selects the layout pattern for a library identifier and
// pin count.
func ArchetypeFor(libID string, pinCount int) Archetype {
	_, name, _ := strings.Cut(libID, ":")
	head, _, _ := strings.Cut(name, "_")

	if isConnectorLibID(libID) {
		return ArchetypeConnector
	}

	switch {
	case pinCount <= 2:
		if polarTwoPinNames[head] || polarTwoPinNames[name] {
			return ArchetypeTwoPinPolar
		}
		return ArchetypeTwoPinNonPolar
	case pinCount == 3:
		return ArchetypeThreePin
	case pinCount <= 8:
		return ArchetypeSmallIC
	}
	return ArchetypeWideIC
}

func isConnectorLibID(libID string) bool {
	lib, name, _ := strings.Cut(libID, ":")
	if strings.HasPrefix(lib, "Connector") {
		return true
	}
	return strings.HasPrefix(name, "Conn_") || name == "Conn"
}

// IsPowerLibID reports whether the library identifier names a power
// symbol.
func IsPowerLibID(libID string) bool {
	lib, _, _ := strings.Cut(libID, ":")
	return strings.EqualFold(lib, "power")
}

// isGroundName reports whether a power symbol name is ground-like.
func isGroundName(name string) bool {
	upper := strings.ToUpper(name)
	return strings.HasPrefix(upper, "GND") || upper == "EARTH" || upper == "VSS" || upper == "VEE"
}

// PlaceProperty computes the synthesized placement of a property field.
// role is the property name, ordinal its index in the serialized role
// order (Reference 0, Value 1, ...). The component pose contributes
// its position only; see package comment about rotation.
func PlaceProperty(a Archetype, libID, role string, ordinal int, pose Pose) Placement {
	if IsPowerLibID(libID) {
		return placePowerProperty(libID, role, ordinal, pose)
	}

	lay := layouts[a]
	p := Placement{
		Justify: lay.justify,
		Hidden:  hiddenByDefault(role),
	}

	if ordinal == 0 {
		p.Position = Position{X: pose.X + lay.refDX, Y: pose.Y + lay.refDY}
	} else {
		p.Position = Position{
			X: pose.X + lay.valueDX,
			Y: pose.Y + lay.valueDY + float64(ordinal-1)*lay.spacing,
		}
	}
	return p
}

// placePowerProperty handles the power-symbol special case: the Value
// goes below the symbol for ground-like parts and above for positive
// rails, and the reference is always hidden.
func placePowerProperty(libID, role string, ordinal int, pose Pose) Placement {
	_, name, _ := strings.Cut(libID, ":")
	ground := isGroundName(name)

	p := Placement{Hidden: role != RoleValue}

	switch role {
	case RoleValue:
		if ground {
			p.Position = Position{X: pose.X, Y: pose.Y + 3.81}
		} else {
			p.Position = Position{X: pose.X, Y: pose.Y - 3.81}
		}
	case RoleReference:
		// Hidden, but keep it near the pin so un-hiding is sane.
		p.Position = Position{X: pose.X, Y: pose.Y - 1.27}
		if ground {
			p.Position.Y = pose.Y + 1.27
		}
	default:
		p.Position = Position{X: pose.X, Y: pose.Y + 6.35 + float64(ordinal)*2.54}
	}
	return p
}

func hiddenByDefault(role string) bool {
	switch role {
	case RoleReference, RoleValue:
		return false
	}
	return true
}

// PlacePropertyRotated is the explicit rotation-aware variant: it
// rotates the archetype offset by the component rotation before adding
// it to the position. The serializer does not call this; it exists as
// a separately exercised opt-in path.
func PlacePropertyRotated(a Archetype, libID, role string, ordinal int, pose Pose) Placement {
	base := PlaceProperty(a, libID, role, ordinal, Pose{Position: pose.Position})
	dx := base.Position.X - pose.X
	dy := base.Position.Y - pose.Y
	rx, ry := rotateOffset(dx, dy, pose.Rotation)
	base.Position = Position{X: pose.X + rx, Y: pose.Y + ry}
	if pose.Rotation == 90 || pose.Rotation == 270 {
		base.Rotation = 90
	}
	return base
}

// rotateOffset rotates an offset by a quadrant angle in the Y-down
// coordinate system.
func rotateOffset(dx, dy, rotation float64) (float64, float64) {
	switch rotation {
	case 90:
		return dy, -dx
	case 180:
		return -dx, -dy
	case 270:
		return -dy, dx
	}
	return dx, dy
}
