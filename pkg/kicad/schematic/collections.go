package schematic

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/OpenTraceLab/OpenTraceSchematic/pkg/kicad/sexp"
)

// Item is anything stored in an indexed collection.
type Item interface {
	ItemID() string
	itemFields() map[string]string
}

// Collection is the generic indexed store backing the mutation API.
// Items live by value in a dense slice in insertion order; the UUID
// index is maintained synchronously, secondary indexes are rebuilt
// lazily: every mutation sets a dirty flag and the first read that
// needs a secondary index rebuilds all of them in one pass.
type Collection[T Item] struct {
	element string
	items   []T
	byID    map[string]int

	modified bool
	dirty    bool

	validate func(T) error
	rebuild  func([]T)
}

func newCollection[T Item](element string, validate func(T) error, rebuild func([]T)) Collection[T] {
	return Collection[T]{
		element:  element,
		byID:     make(map[string]int),
		validate: validate,
		rebuild:  rebuild,
	}
}

// Add validates and inserts an item. Nothing is committed when
// validation fails: the item is checked fully before any state change.
func (c *Collection[T]) Add(item T) (T, error) {
	var zero T

	id := item.ItemID()
	if id == "" {
		return zero, validationErr(c.element, "", "uuid", "missing uuid")
	}
	if _, exists := c.byID[id]; exists {
		return zero, &DuplicateIDError{Element: c.element, ID: id}
	}
	if c.validate != nil {
		if err := c.validate(item); err != nil {
			return zero, err
		}
	}

	c.byID[id] = len(c.items)
	c.items = append(c.items, item)
	c.markDirty()
	return item, nil
}

// Remove deletes the item with the given UUID, returning false when it
// is not present. The primary list and UUID index update synchronously;
// secondary indexes are only marked dirty.
func (c *Collection[T]) Remove(id string) bool {
	idx, ok := c.byID[id]
	if !ok {
		return false
	}

	c.items = append(c.items[:idx], c.items[idx+1:]...)
	delete(c.byID, id)
	for i := idx; i < len(c.items); i++ {
		c.byID[c.items[i].ItemID()] = i
	}
	c.markDirty()
	return true
}

// Get returns the item with the given UUID.
func (c *Collection[T]) Get(id string) (T, bool) {
	idx, ok := c.byID[id]
	if !ok {
		var zero T
		return zero, false
	}
	return c.items[idx], true
}

// Contains reports whether an item with the given UUID exists.
func (c *Collection[T]) Contains(id string) bool {
	_, ok := c.byID[id]
	return ok
}

// Len returns the number of items.
func (c *Collection[T]) Len() int { return len(c.items) }

// All returns the items in insertion order. The returned slice is a
// copy; the items themselves are shared.
func (c *Collection[T]) All() []T {
	out := make([]T, len(c.items))
	copy(out, c.items)
	return out
}

// Find returns every item matching the predicate, in insertion order.
func (c *Collection[T]) Find(pred func(T) bool) []T {
	var out []T
	for _, item := range c.items {
		if pred(item) {
			out = append(out, item)
		}
	}
	return out
}

// Filter returns items whose fields exactly equal every criteria
// entry, in insertion order. Field names are the lowercase snake_case
// serialization names (reference, lib_id, value, kind, text, ...).
func (c *Collection[T]) Filter(criteria map[string]string) []T {
	var out []T
	for _, item := range c.items {
		fields := item.itemFields()
		match := true
		for k, v := range criteria {
			if fields[k] != v {
				match = false
				break
			}
		}
		if match {
			out = append(out, item)
		}
	}
	return out
}

// Modified reports whether the collection changed since the flag was
// last cleared.
func (c *Collection[T]) Modified() bool { return c.modified }

// ClearModified resets the modified flag (called after save).
func (c *Collection[T]) ClearModified() { c.modified = false }

// MarkDirty flags the secondary indexes stale. Callers that mutate an
// item in place (move, reroute, retext) must call this.
func (c *Collection[T]) MarkDirty() { c.markDirty() }

func (c *Collection[T]) markDirty() {
	c.modified = true
	c.dirty = true
}

// ensure rebuilds all secondary indexes if any mutation happened since
// the last rebuild. N mutations cost one O(N) rebuild, not N updates.
func (c *Collection[T]) ensure() {
	if !c.dirty {
		return
	}
	if c.rebuild != nil {
		c.rebuild(c.items)
	}
	c.dirty = false
}

// posKey collapses a position to a map key using the canonical numeric
// formatting, so float artifacts cannot split one position in two.
func posKey(p Position) string {
	return sexp.FormatFloat(p.X) + "," + sexp.FormatFloat(p.Y)
}

var referencePattern = regexp.MustCompile(`^[A-Z#][A-Za-z0-9]*$`)

// validateLibID checks the "Library:Symbol" shape: exactly one colon,
// non-empty on both sides.
func validateLibID(element, id, libID string) error {
	colon := strings.Count(libID, ":")
	if colon != 1 {
		return validationErr(element, id, "lib_id", "%q must contain exactly one ':'", libID)
	}
	lib, name, _ := strings.Cut(libID, ":")
	if lib == "" || name == "" {
		return validationErr(element, id, "lib_id", "%q has an empty library or symbol name", libID)
	}
	return nil
}

// ComponentCollection indexes components by reference, library id and
// value, and allocates reference designators. Reference uniqueness is
// scoped to (reference, unit): a multi-unit part appears as one
// component per placed unit, all sharing the reference.
type ComponentCollection struct {
	Collection[*Component]

	byReference map[string]*Component
	byRefUnit   map[string]*Component
	byLibID     map[string][]*Component
	byValue     map[string][]*Component
}

func refUnitKey(ref string, unit int) string {
	return ref + "/" + strconv.Itoa(unit)
}

// NewComponentCollection creates an empty component collection.
func NewComponentCollection() *ComponentCollection {
	cc := &ComponentCollection{}
	cc.Collection = newCollection[*Component]("component", cc.validateAdd, cc.rebuildIndexes)
	return cc
}

func (cc *ComponentCollection) validateAdd(c *Component) error {
	if err := validateLibID("component", c.UUID, c.LibID); err != nil {
		return err
	}
	if !referencePattern.MatchString(c.Reference) {
		return validationErr("component", c.UUID, "reference",
			"%q does not match [A-Z#][A-Za-z0-9]*", c.Reference)
	}
	cc.ensure()
	if other, exists := cc.byRefUnit[refUnitKey(c.Reference, c.Unit)]; exists && other.UUID != c.UUID {
		return validationErr("component", c.UUID, "reference",
			"%q unit %d is already used by %s", c.Reference, c.Unit, other.UUID)
	}
	if c.Pose.Rotation != 0 && c.Pose.Rotation != 90 && c.Pose.Rotation != 180 && c.Pose.Rotation != 270 {
		return validationErr("component", c.UUID, "rotation",
			"%v is not one of 0/90/180/270", c.Pose.Rotation)
	}
	return nil
}

func (cc *ComponentCollection) rebuildIndexes(items []*Component) {
	cc.byReference = make(map[string]*Component, len(items))
	cc.byRefUnit = make(map[string]*Component, len(items))
	cc.byLibID = make(map[string][]*Component)
	cc.byValue = make(map[string][]*Component)
	for _, c := range items {
		// First-placed unit represents the reference as a whole.
		if _, exists := cc.byReference[c.Reference]; !exists {
			cc.byReference[c.Reference] = c
		}
		cc.byRefUnit[refUnitKey(c.Reference, c.Unit)] = c
		cc.byLibID[c.LibID] = append(cc.byLibID[c.LibID], c)
		cc.byValue[c.Value()] = append(cc.byValue[c.Value()], c)
	}
}

// ByReference returns the component with the given reference
// designator; for multi-unit parts this is the first placed unit. Use
// ByReferenceUnit to address one specific unit.
func (cc *ComponentCollection) ByReference(ref string) (*Component, bool) {
	cc.ensure()
	c, ok := cc.byReference[ref]
	return c, ok
}

// ByReferenceUnit returns one unit of a (possibly multi-unit) part.
func (cc *ComponentCollection) ByReferenceUnit(ref string, unit int) (*Component, bool) {
	cc.ensure()
	c, ok := cc.byRefUnit[refUnitKey(ref, unit)]
	return c, ok
}

// Units returns every placed unit sharing a reference designator, in
// insertion order.
func (cc *ComponentCollection) Units(ref string) []*Component {
	return cc.Find(func(c *Component) bool { return c.Reference == ref })
}

// ByLibID returns components using the given library id, insertion order.
func (cc *ComponentCollection) ByLibID(libID string) []*Component {
	cc.ensure()
	return cc.byLibID[libID]
}

// ByValue returns components with the given Value property.
func (cc *ComponentCollection) ByValue(value string) []*Component {
	cc.ensure()
	return cc.byValue[value]
}

// Rename changes a component's reference designator with the same
// validation as Add.
func (cc *ComponentCollection) Rename(c *Component, ref string) error {
	if !referencePattern.MatchString(ref) {
		return validationErr("component", c.UUID, "reference",
			"%q does not match [A-Z#][A-Za-z0-9]*", ref)
	}
	cc.ensure()
	if other, exists := cc.byRefUnit[refUnitKey(ref, c.Unit)]; exists && other.UUID != c.UUID {
		return validationErr("component", c.UUID, "reference",
			"%q unit %d is already used by %s", ref, c.Unit, other.UUID)
	}
	c.Reference = ref
	cc.MarkDirty()
	return nil
}

// NextReference returns the next free reference designator for a
// library id: the type-derived prefix plus the smallest unused
// positive suffix, regardless of removal/re-insertion order.
func (cc *ComponentCollection) NextReference(libID string) string {
	prefix := ReferencePrefix(libID)

	used := make(map[int]bool)
	for _, c := range cc.items {
		rest, ok := strings.CutPrefix(c.Reference, prefix)
		if !ok || rest == "" {
			continue
		}
		if n, err := strconv.Atoi(rest); err == nil && n > 0 {
			used[n] = true
		}
	}

	n := 1
	for used[n] {
		n++
	}
	// Power designators are zero-padded the way KiCad's annotator
	// writes them (#PWR01, #PWR02, ...).
	if strings.HasPrefix(prefix, "#") && n < 10 {
		return prefix + "0" + strconv.Itoa(n)
	}
	return prefix + strconv.Itoa(n)
}

// ReferencePrefix derives the reference designator prefix from a
// library identifier ("Device:R" -> "R", "power:GND" -> "#PWR").
func ReferencePrefix(libID string) string {
	lib, name, _ := strings.Cut(libID, ":")
	if strings.EqualFold(lib, "power") {
		return "#PWR"
	}

	head, _, _ := strings.Cut(name, "_")
	switch head {
	case "R", "C", "L", "D", "Q", "F", "J", "K", "T", "U", "SW", "Y":
		return head
	case "LED":
		return "D"
	case "Crystal", "Resonator":
		return "Y"
	case "Conn", "Connector", "Jack", "Socket":
		return "J"
	case "Battery":
		return "BT"
	case "Fuse":
		return "F"
	case "Transformer":
		return "T"
	}
	return "U"
}

// WireCollection indexes wires by endpoint position and by kind.
type WireCollection struct {
	Collection[*Wire]

	byEndpoint map[string][]*Wire
	byKind     map[WireKind][]*Wire
}

// NewWireCollection creates an empty wire collection.
func NewWireCollection() *WireCollection {
	wc := &WireCollection{}
	wc.Collection = newCollection[*Wire]("wire", wc.validateAdd, wc.rebuildIndexes)
	return wc
}

func (wc *WireCollection) validateAdd(w *Wire) error {
	if len(w.Points) < 2 {
		return validationErr("wire", w.UUID, "points", "a wire needs at least 2 points")
	}
	if posKey(w.Start()) == posKey(w.End()) {
		return validationErr("wire", w.UUID, "points", "wire endpoints are coincident")
	}
	if w.Kind != WireKindWire && w.Kind != WireKindBus {
		return validationErr("wire", w.UUID, "kind", "%q is not wire or bus", w.Kind)
	}
	if w.Stroke.Width < 0 {
		return validationErr("wire", w.UUID, "stroke", "negative stroke width")
	}
	return nil
}

func (wc *WireCollection) rebuildIndexes(items []*Wire) {
	wc.byEndpoint = make(map[string][]*Wire)
	wc.byKind = make(map[WireKind][]*Wire)
	for _, w := range items {
		start, end := posKey(w.Start()), posKey(w.End())
		wc.byEndpoint[start] = append(wc.byEndpoint[start], w)
		if end != start {
			wc.byEndpoint[end] = append(wc.byEndpoint[end], w)
		}
		wc.byKind[w.Kind] = append(wc.byKind[w.Kind], w)
	}
}

// AtEndpoint returns wires starting or ending at the given position.
// This is the entry point for connectivity queries.
func (wc *WireCollection) AtEndpoint(p Position) []*Wire {
	wc.ensure()
	return wc.byEndpoint[posKey(p)]
}

// ByKind returns wires of one kind, insertion order.
func (wc *WireCollection) ByKind(kind WireKind) []*Wire {
	wc.ensure()
	return wc.byKind[kind]
}

// JunctionCollection indexes junctions by position and enforces that
// at most one junction exists at a given position.
type JunctionCollection struct {
	Collection[*Junction]

	byPosition map[string]*Junction
}

// NewJunctionCollection creates an empty junction collection.
func NewJunctionCollection() *JunctionCollection {
	jc := &JunctionCollection{}
	jc.Collection = newCollection[*Junction]("junction", jc.validateAdd, jc.rebuildIndexes)
	return jc
}

func (jc *JunctionCollection) validateAdd(j *Junction) error {
	if j.Diameter < 0 {
		return validationErr("junction", j.UUID, "diameter", "negative diameter")
	}
	jc.ensure()
	if other, exists := jc.byPosition[posKey(j.Position)]; exists {
		return validationErr("junction", j.UUID, "position",
			"position (%v, %v) is already occupied by %s", j.Position.X, j.Position.Y, other.UUID)
	}
	return nil
}

func (jc *JunctionCollection) rebuildIndexes(items []*Junction) {
	jc.byPosition = make(map[string]*Junction, len(items))
	for _, j := range items {
		jc.byPosition[posKey(j.Position)] = j
	}
}

// AtPosition returns the junction at the given position, if any.
func (jc *JunctionCollection) AtPosition(p Position) (*Junction, bool) {
	jc.ensure()
	j, ok := jc.byPosition[posKey(p)]
	return j, ok
}

// LabelCollection indexes labels by lowercased text, position and kind.
type LabelCollection struct {
	Collection[*Label]

	byText     map[string][]*Label
	byPosition map[string][]*Label
	byKind     map[LabelKind][]*Label
}

// NewLabelCollection creates an empty label collection.
func NewLabelCollection() *LabelCollection {
	lc := &LabelCollection{}
	lc.Collection = newCollection[*Label]("label", lc.validateAdd, lc.rebuildIndexes)
	return lc
}

func (lc *LabelCollection) validateAdd(l *Label) error {
	if l.Text == "" {
		return validationErr("label", l.UUID, "text", "empty label text")
	}
	if l.Size < 0 {
		return validationErr("label", l.UUID, "size", "negative font size")
	}
	switch l.Kind {
	case LabelKindLocal, LabelKindGlobal, LabelKindHierarchical:
	default:
		return validationErr("label", l.UUID, "kind", "%q is not a label kind", l.Kind)
	}
	if l.Rotation != 0 && l.Rotation != 90 && l.Rotation != 180 && l.Rotation != 270 {
		return validationErr("label", l.UUID, "rotation",
			"%v is not one of 0/90/180/270", l.Rotation)
	}
	return nil
}

func (lc *LabelCollection) rebuildIndexes(items []*Label) {
	lc.byText = make(map[string][]*Label)
	lc.byPosition = make(map[string][]*Label)
	lc.byKind = make(map[LabelKind][]*Label)
	for _, l := range items {
		text := strings.ToLower(l.Text)
		lc.byText[text] = append(lc.byText[text], l)
		lc.byPosition[posKey(l.Position)] = append(lc.byPosition[posKey(l.Position)], l)
		lc.byKind[l.Kind] = append(lc.byKind[l.Kind], l)
	}
}

// ByText returns labels whose text matches case-insensitively.
func (lc *LabelCollection) ByText(text string) []*Label {
	lc.ensure()
	return lc.byText[strings.ToLower(text)]
}

// AtPosition returns labels anchored at the given position.
func (lc *LabelCollection) AtPosition(p Position) []*Label {
	lc.ensure()
	return lc.byPosition[posKey(p)]
}

// ByKind returns labels of one kind, insertion order.
func (lc *LabelCollection) ByKind(kind LabelKind) []*Label {
	lc.ensure()
	return lc.byKind[kind]
}
