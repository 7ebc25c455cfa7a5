package schematic

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"

	"github.com/OpenTraceLab/OpenTraceSchematic/pkg/kicad/sexp"
)

// Defaults written into newly created documents. Version and generator
// strings are opaque pass-through metadata for the codec; these values
// only seed documents built from scratch.
const (
	DefaultVersion   = 20250114
	DefaultGenerator = "eeschema"
	DefaultGenVer    = "9.0"
	DefaultPaper     = "A4"
)

// Document is a complete schematic: header metadata, the four indexed
// element collections, the embedded symbol definitions and any opaque
// sections carried through from a loaded file.
//
// A Document is not safe for concurrent use; callers serialize access.
type Document struct {
	Version          int
	Generator        string
	GeneratorVersion string
	UUID             string
	Paper            string
	TitleBlock       TitleBlock
	ProjectName      string

	Components *ComponentCollection
	Wires      *WireCollection
	Junctions  *JunctionCollection
	Labels     *LabelCollection

	libSymbols     map[string]*sexp.List
	opaques        []opaqueNode
	sheetInstances *sexp.List

	library Library
	path    string
	source  []byte // raw bytes of the loaded file, for exact re-save

	savedHeader   headerState
	embedModified bool
}

// headerState snapshots the header fields callers mutate directly, so
// Modified can detect edits that bypass the collections.
type headerState struct {
	Version          int
	Generator        string
	GeneratorVersion string
	UUID             string
	Paper            string
	ProjectName      string
	TitleBlock       TitleBlock
}

func (d *Document) header() headerState {
	return headerState{
		Version:          d.Version,
		Generator:        d.Generator,
		GeneratorVersion: d.GeneratorVersion,
		UUID:             d.UUID,
		Paper:            d.Paper,
		ProjectName:      d.ProjectName,
		TitleBlock:       d.TitleBlock,
	}
}

func newDocument() *Document {
	return &Document{
		Components: NewComponentCollection(),
		Wires:      NewWireCollection(),
		Junctions:  NewJunctionCollection(),
		Labels:     NewLabelCollection(),
		libSymbols: make(map[string]*sexp.List),
	}
}

// New creates an empty document with default header metadata. The
// library collaborator supplies symbol definitions and pin geometry;
// it may be nil for documents that only embed their own symbols.
func New(name string, lib Library) *Document {
	d := newDocument()
	d.Version = DefaultVersion
	d.Generator = DefaultGenerator
	d.GeneratorVersion = DefaultGenVer
	d.Paper = DefaultPaper
	d.UUID = uuid.NewString()
	d.ProjectName = name
	d.library = lib
	d.clearModified()
	return d
}

// Load reads and extracts a schematic file.
func Load(path string, lib Library) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read schematic: %w", err)
	}

	d, err := loadBytes(data, lib)
	if err != nil {
		return nil, err
	}
	d.path = path
	return d, nil
}

// LoadReader extracts a schematic from a reader.
func LoadReader(r io.Reader, lib Library) (*Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read schematic: %w", err)
	}
	return loadBytes(data, lib)
}

func loadBytes(data []byte, lib Library) (*Document, error) {
	root, err := sexp.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	d, err := Extract(root)
	if err != nil {
		return nil, err
	}
	d.library = lib
	d.source = data
	return d, nil
}

// Path returns the backing file path, "" for unsaved documents.
func (d *Document) Path() string { return d.path }

// Library returns the injected library collaborator.
func (d *Document) Library() Library { return d.library }

// SetLibrary replaces the library collaborator.
func (d *Document) SetLibrary(lib Library) { d.library = lib }

// resolver combines the document's embedded symbol definitions with
// the injected library, embedded definitions first.
func (d *Document) resolver() Library {
	return chainLibrary{overlay: d.libSymbols, base: d.library}
}

// EmbedSymbol stores a verbatim symbol definition in the document's
// own lib_symbols overlay.
func (d *Document) EmbedSymbol(block *sexp.List) error {
	name, ok := block.StringAt(1)
	if block.Tag() != "symbol" || !ok || name == "" {
		return fmt.Errorf("not a named (symbol ...) block")
	}
	d.libSymbols[name] = block
	d.embedModified = true
	return nil
}

// Modified reports whether the document changed since load/save: any
// collection mutation, a newly embedded symbol, or a direct edit of a
// header field (title block, paper, generator, ...).
func (d *Document) Modified() bool {
	return d.Components.Modified() || d.Wires.Modified() ||
		d.Junctions.Modified() || d.Labels.Modified() ||
		d.embedModified || d.header() != d.savedHeader
}

func (d *Document) clearModified() {
	d.Components.ClearModified()
	d.Wires.ClearModified()
	d.Junctions.ClearModified()
	d.Labels.ClearModified()
	d.embedModified = false
	d.savedHeader = d.header()
}

// Save serializes the document to path ("" reuses the load path).
// With preserveExactFormat set, an unmodified loaded document writes
// its original bytes back untouched instead of re-serializing.
func (d *Document) Save(path string, preserveExactFormat bool) error {
	if path == "" {
		path = d.path
	}
	if path == "" {
		return fmt.Errorf("no target path for save")
	}

	var data []byte
	if preserveExactFormat && d.source != nil && !d.Modified() {
		data = d.source
	} else {
		var err error
		data, err = d.Serialize()
		if err != nil {
			return err
		}
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write schematic: %w", err)
	}

	d.path = path
	d.source = data
	d.clearModified()
	return nil
}

// PlaceComponent adds a component at the given position. An empty
// reference allocates the next free designator for the library id.
// Pin records are populated from the library when available.
func (d *Document) PlaceComponent(libID, reference string, pos Position) (*Component, error) {
	if reference == "" {
		reference = d.Components.NextReference(libID)
	}

	c := &Component{
		UUID:      uuid.NewString(),
		LibID:     libID,
		Reference: reference,
		Pose:      Pose{Position: pos},
		Unit:      1,
		InBOM:     true,
		OnBoard:   true,
	}

	if pins, ok := d.resolver().Pins(libID); ok {
		for _, pin := range pins {
			c.Pins = append(c.Pins, PinRef{Number: pin.Number, UUID: uuid.NewString()})
		}
	}

	return d.Components.Add(c)
}

// AddWire adds a plain wire through the given points.
func (d *Document) AddWire(points ...Position) (*Wire, error) {
	return d.addWire(WireKindWire, points)
}

// AddBus adds a bus through the given points.
func (d *Document) AddBus(points ...Position) (*Wire, error) {
	return d.addWire(WireKindBus, points)
}

func (d *Document) addWire(kind WireKind, points []Position) (*Wire, error) {
	w := &Wire{
		UUID:   uuid.NewString(),
		Points: points,
		Kind:   kind,
		Stroke: Stroke{Type: "default"},
	}
	return d.Wires.Add(w)
}

// AddJunction adds a junction at the given position.
func (d *Document) AddJunction(pos Position) (*Junction, error) {
	j := &Junction{
		UUID:     uuid.NewString(),
		Position: pos,
	}
	return d.Junctions.Add(j)
}

// AddLabel adds a net label. Hierarchical labels default to the input
// shape when none is given.
func (d *Document) AddLabel(text string, pos Position, kind LabelKind) (*Label, error) {
	l := &Label{
		UUID:     uuid.NewString(),
		Text:     text,
		Position: pos,
		Size:     DefaultFontSize,
		Kind:     kind,
	}
	if kind == LabelKindHierarchical {
		l.Shape = "input"
	}
	return d.Labels.Add(l)
}

// PinPosition answers the absolute position of a component pin by
// adding the pin's library offset to the component position. The
// component rotation is NOT applied here; see PinPositionRotated.
func (d *Document) PinPosition(reference, pinNumber string) (Position, bool) {
	c, ok := d.Components.ByReference(reference)
	if !ok {
		return Position{}, false
	}

	pins, ok := d.resolver().Pins(c.LibID)
	if !ok {
		return Position{}, false
	}
	for _, pin := range pins {
		if pin.Number == pinNumber {
			return Position{
				X: c.Pose.X + pin.Offset.X,
				Y: c.Pose.Y + pin.Offset.Y,
			}, true
		}
	}
	return Position{}, false
}

// PinPositionRotated is the explicit rotation-aware variant of
// PinPosition, rotating the pin offset by the component rotation.
func (d *Document) PinPositionRotated(reference, pinNumber string) (Position, bool) {
	c, ok := d.Components.ByReference(reference)
	if !ok {
		return Position{}, false
	}

	pins, ok := d.resolver().Pins(c.LibID)
	if !ok {
		return Position{}, false
	}
	for _, pin := range pins {
		if pin.Number == pinNumber {
			dx, dy := rotateOffset(pin.Offset.X, pin.Offset.Y, c.Pose.Rotation)
			return Position{X: c.Pose.X + dx, Y: c.Pose.Y + dy}, true
		}
	}
	return Position{}, false
}

// Validate runs the non-throwing pre-save check and returns every
// problem found. Callers are expected to consult this before Save
// instead of probing with trial serializations.
func (d *Document) Validate() []Issue {
	var issues []Issue
	lib := d.resolver()

	refs := make(map[string]string)
	for _, c := range d.Components.All() {
		if !referencePattern.MatchString(c.Reference) {
			issues = append(issues, Issue{"error", "component", c.UUID, "reference",
				fmt.Sprintf("%q does not match [A-Z#][A-Za-z0-9]*", c.Reference)})
		}
		if err := validateLibID("component", c.UUID, c.LibID); err != nil {
			issues = append(issues, Issue{"error", "component", c.UUID, "lib_id", err.Error()})
		} else if _, ok := lib.Definition(c.LibID); !ok {
			issues = append(issues, Issue{"error", "component", c.Reference, "lib_id",
				fmt.Sprintf("no symbol definition for %q", c.LibID)})
		}
		key := refUnitKey(c.Reference, c.Unit)
		if prev, dup := refs[key]; dup {
			issues = append(issues, Issue{"error", "component", c.UUID, "reference",
				fmt.Sprintf("%q unit %d is also used by %s", c.Reference, c.Unit, prev)})
		}
		refs[key] = c.UUID

		switch c.Pose.Rotation {
		case 0, 90, 180, 270:
		default:
			issues = append(issues, Issue{"error", "component", c.Reference, "rotation",
				fmt.Sprintf("%v is not one of 0/90/180/270", c.Pose.Rotation)})
		}
	}

	for _, w := range d.Wires.All() {
		if len(w.Points) < 2 {
			issues = append(issues, Issue{"error", "wire", w.UUID, "points",
				"a wire needs at least 2 points"})
			continue
		}
		if posKey(w.Start()) == posKey(w.End()) {
			issues = append(issues, Issue{"error", "wire", w.UUID, "points",
				"wire endpoints are coincident"})
		}
		if w.Stroke.Width < 0 {
			issues = append(issues, Issue{"error", "wire", w.UUID, "stroke",
				"negative stroke width"})
		}
	}

	positions := make(map[string]string)
	for _, j := range d.Junctions.All() {
		key := posKey(j.Position)
		if prev, dup := positions[key]; dup {
			issues = append(issues, Issue{"error", "junction", j.UUID, "position",
				fmt.Sprintf("position already occupied by %s", prev)})
		}
		positions[key] = j.UUID
		if j.Diameter < 0 {
			issues = append(issues, Issue{"error", "junction", j.UUID, "diameter",
				"negative diameter"})
		}
	}

	for _, l := range d.Labels.All() {
		if l.Text == "" {
			issues = append(issues, Issue{"error", "label", l.UUID, "text",
				"empty label text"})
		}
		if l.Size < 0 {
			issues = append(issues, Issue{"error", "label", l.UUID, "size",
				"negative font size"})
		}
	}

	return issues
}

// Atomic runs fn as a scoped atomic operation against a file-backed
// document: the current on-disk file is captured first, and if fn
// fails (or panics) the in-memory model is reloaded from that backup.
// On success the backup is discarded. The on-disk file itself is never
// touched here; fn decides when to Save.
func (d *Document) Atomic(fn func() error) (err error) {
	if d.path == "" {
		return fmt.Errorf("atomic operation requires a file-backed document")
	}

	backup, rerr := os.ReadFile(d.path)
	if rerr != nil {
		return fmt.Errorf("failed to capture backup: %w", rerr)
	}

	restore := func() {
		fresh, lerr := loadBytes(backup, d.library)
		if lerr != nil {
			// The backup was just a valid document; failing to reload
			// it means the file changed underneath us.
			err = fmt.Errorf("failed to restore from backup: %w", lerr)
			return
		}
		fresh.path = d.path
		*d = *fresh
	}

	defer func() {
		if r := recover(); r != nil {
			restore()
			panic(r)
		}
	}()

	if err = fn(); err != nil {
		restore()
		return err
	}
	return nil
}
