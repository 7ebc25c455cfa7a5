// Package schematic implements the document codec and mutable object
// model for KiCad schematic files (.kicad_sch): a typed, indexed,
// validated in-memory model with a parser and a canonical serializer.
package schematic

import (
	"github.com/OpenTraceLab/OpenTraceSchematic/pkg/kicad/sexp"
)

// Position is a 2D point in millimeters, schematic coordinate system
// (Y grows downward, as in the file format).
type Position struct {
	X float64
	Y float64
}

// Pose combines a position with a rotation. Rotation is in degrees and
// is always one of 0, 90, 180, 270.
type Pose struct {
	Position
	Rotation float64
}

// Stroke defines line appearance for wires and buses.
type Stroke struct {
	Width float64 // Line width in mm, 0 means "use default"
	Type  string  // default, solid, dash, dot, dash_dot, dash_dot_dot
}

// Color is an RGBA color as stored in the file (components 0-255 for
// RGB, 0-1 for alpha; the codec does not interpret the values).
type Color struct {
	R, G, B, A float64
}

// TitleBlock holds the document title block fields.
type TitleBlock struct {
	Title    string
	Date     string
	Revision string
	Company  string
	Comment1 string
	Comment2 string
	Comment3 string
	Comment4 string
}

// IsZero reports whether no title block field is set.
func (tb TitleBlock) IsZero() bool {
	return tb == TitleBlock{}
}

// Well-known property roles. Everything else is a custom property.
const (
	RoleReference   = "Reference"
	RoleValue       = "Value"
	RoleFootprint   = "Footprint"
	RoleDatasheet   = "Datasheet"
	RoleDescription = "Description"
)

// DefaultFontSize is the schematic default text size in mm.
const DefaultFontSize = 1.27

// Property is a named text field attached to a component. When At is
// nil the field position is synthesized from the component archetype at
// serialization time; an explicit At overrides the synthesizer.
type Property struct {
	Name     string
	Value    string
	At       *Pose   // explicit placement override, nil = auto
	FontSize float64 // 0 means DefaultFontSize
	Justify  string  // "", "left" or "right"
	Hidden   bool
}

// PinRef binds a pin number to its per-instance UUID.
type PinRef struct {
	Number string
	UUID   string
}

// InstanceRecord is a hierarchical placement record binding a
// component to a sheet path. Records supplied by the caller (or read
// from a file) are written back verbatim; a component with no records
// gets one synthesized at save time.
type InstanceRecord struct {
	Project   string
	Path      string // slash-delimited chain of sheet UUIDs
	Reference string
	Unit      int
}

// Component is a placed symbol instance.
//
// UUID is unique within the document and immutable after creation.
// Reference must match [A-Z#][A-Za-z0-9]* and be unique within the
// document. LibID is "Library:Symbol" with exactly one colon.
type Component struct {
	UUID           string
	LibID          string
	Reference      string
	Pose           Pose
	Unit           int
	InBOM          bool
	OnBoard        bool
	DNP            bool
	ExcludeFromSim bool
	// Properties is the ordered field set. A Reference entry may be
	// present to carry placement metadata, but its value always
	// mirrors the Reference field at serialization time.
	Properties []Property
	Pins       []PinRef
	Instances  []InstanceRecord
}

// ItemID implements Item.
func (c *Component) ItemID() string { return c.UUID }

func (c *Component) itemFields() map[string]string {
	return map[string]string{
		"uuid":      c.UUID,
		"reference": c.Reference,
		"lib_id":    c.LibID,
		"value":     c.Value(),
		"footprint": c.GetProperty(RoleFootprint),
	}
}

// GetProperty returns the value of a named property, "" when absent.
// The Reference role always reads the Reference field.
func (c *Component) GetProperty(name string) string {
	if name == RoleReference {
		return c.Reference
	}
	for i := range c.Properties {
		if c.Properties[i].Name == name {
			return c.Properties[i].Value
		}
	}
	return ""
}

// SetProperty sets a named property, appending it when absent.
// Reference is not a stored property; rename it through the owning
// collection so uniqueness stays enforced.
func (c *Component) SetProperty(name, value string) {
	if name == RoleReference {
		return
	}
	for i := range c.Properties {
		if c.Properties[i].Name == name {
			c.Properties[i].Value = value
			return
		}
	}
	c.Properties = append(c.Properties, Property{Name: name, Value: value})
}

// Value returns the Value property.
func (c *Component) Value() string { return c.GetProperty(RoleValue) }

// WireKind distinguishes plain wires from buses.
type WireKind string

const (
	WireKindWire WireKind = "wire"
	WireKindBus  WireKind = "bus"
)

// Wire is a polyline connection of at least two points whose endpoints
// are not coincident.
type Wire struct {
	UUID   string
	Points []Position
	Kind   WireKind
	Stroke Stroke
}

// ItemID implements Item.
func (w *Wire) ItemID() string { return w.UUID }

func (w *Wire) itemFields() map[string]string {
	return map[string]string{
		"uuid": w.UUID,
		"kind": string(w.Kind),
	}
}

// Start returns the first point of the polyline.
func (w *Wire) Start() Position { return w.Points[0] }

// End returns the last point of the polyline.
func (w *Wire) End() Position { return w.Points[len(w.Points)-1] }

// Junction marks an electrical connection where wires cross. At most
// one junction may exist at a given position.
type Junction struct {
	UUID     string
	Position Position
	Diameter float64
	Color    Color
}

// ItemID implements Item.
func (j *Junction) ItemID() string { return j.UUID }

func (j *Junction) itemFields() map[string]string {
	return map[string]string{"uuid": j.UUID}
}

// LabelKind classifies net labels.
type LabelKind string

const (
	LabelKindLocal        LabelKind = "local"
	LabelKindGlobal       LabelKind = "global"
	LabelKindHierarchical LabelKind = "hierarchical"
)

// Label is a net label. Shape is the directional marker and is only
// serialized for hierarchical labels; a shape parsed from a global
// label is retained so the model keeps what the file said.
type Label struct {
	UUID     string
	Text     string
	Position Position
	Rotation float64
	Size     float64 // font size in mm, 0 means DefaultFontSize
	Kind     LabelKind
	Shape    string // input, output, bidirectional, tri_state, passive
}

// ItemID implements Item.
func (l *Label) ItemID() string { return l.UUID }

func (l *Label) itemFields() map[string]string {
	return map[string]string{
		"uuid": l.UUID,
		"text": l.Text,
		"kind": string(l.Kind),
	}
}

// SymbolPin describes one pin of a library symbol definition: its
// number, name, offset from the symbol origin and electrical kind.
type SymbolPin struct {
	Number     string
	Name       string
	Offset     Position
	Electrical string // passive, input, output, power_in, ...
}

// opaqueNode is an unrecognized top-level sub-tree preserved verbatim.
// After names the anchor it followed in the source file: the UUID of
// the nearest preceding recognized element, the sheet_instances
// sentinel, or "" when it sat in the header zone. Serialization
// reinserts each node right after its anchor, so relative order
// survives even though the body is regrouped by element kind.
type opaqueNode struct {
	After string
	Node  sexp.Node
}

// opaque anchor sentinel for nodes that followed sheet_instances.
const opaqueAfterSheetInstances = "\x00sheet_instances"

// Issue is one problem found by Document.Validate. Severity is
// "error" or "warning".
type Issue struct {
	Severity string
	Element  string // component, wire, junction, label, document
	ID       string // UUID or reference of the offending element
	Field    string
	Message  string
}

func (i Issue) String() string {
	s := i.Severity + ": " + i.Element
	if i.ID != "" {
		s += " " + i.ID
	}
	if i.Field != "" {
		s += " [" + i.Field + "]"
	}
	return s + ": " + i.Message
}
