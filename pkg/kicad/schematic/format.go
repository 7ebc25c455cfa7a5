package schematic

import (
	"sort"
	"strings"

	"github.com/OpenTraceLab/OpenTraceSchematic/pkg/kicad/sexp"
)

// Canonical serialization: typed model -> node tree -> text. Child tag
// order per element kind is fixed so that output is stable and diffs
// cleanly against the host application's own writer.

var propertyRoleOrder = []string{
	RoleReference,
	RoleValue,
	RoleFootprint,
	RoleDatasheet,
	RoleDescription,
}

// Serialize renders the document as canonical schematic text. The
// lib_symbols section is rebuilt from the in-use library identifier
// set on every call; an identifier with no definition in the
// document's embedded symbols or the injected library is a
// *MissingSymbolError.
func (d *Document) Serialize() ([]byte, error) {
	lib := d.resolver()

	root := sexp.NewList(sexp.Symbol("kicad_sch"))
	root.Append(sexp.NewList(sexp.Symbol("version"), sexp.NewNumber(float64(d.Version))))
	root.Append(sexp.NewList(sexp.Symbol("generator"), sexp.Str(d.Generator)))
	if d.GeneratorVersion != "" {
		root.Append(sexp.NewList(sexp.Symbol("generator_version"), sexp.Str(d.GeneratorVersion)))
	}
	root.Append(sexp.NewList(sexp.Symbol("uuid"), sexp.Str(d.UUID)))
	root.Append(sexp.NewList(sexp.Symbol("paper"), sexp.Str(d.Paper)))

	if !d.TitleBlock.IsZero() {
		root.Append(formatTitleBlock(d.TitleBlock))
	}

	libSymbols, err := d.formatLibSymbols(lib)
	if err != nil {
		return nil, err
	}
	root.Append(libSymbols)

	for _, j := range d.Junctions.All() {
		root.Append(formatJunction(j))
	}
	for _, w := range d.Wires.All() {
		root.Append(formatWire(w))
	}
	for _, l := range d.Labels.All() {
		root.Append(formatLabel(l))
	}
	for _, c := range d.Components.All() {
		root.Append(d.formatComponent(c, lib))
	}

	if d.sheetInstances != nil {
		root.Append(d.sheetInstances)
	} else {
		root.Append(sexp.NewList(sexp.Symbol("sheet_instances"),
			sexp.NewList(sexp.Symbol("path"), sexp.Str("/"),
				sexp.NewList(sexp.Symbol("page"), sexp.Str("1")))))
	}

	reinsertOpaques(root, d.opaques)

	return []byte(sexp.Format(root)), nil
}

// reinsertOpaques puts preserved unknown sub-trees back into the
// rebuilt list, each directly after its recorded anchor element. The
// body is regrouped by element kind on save, so anchoring to the
// preceding element keeps opaque sections next to their neighbors
// instead of drifting to a stale absolute index.
func reinsertOpaques(root *sexp.List, opaques []opaqueNode) {
	// anchorIndex locates an opaque's anchor in the current list: the
	// element carrying the anchor uuid, lib_symbols for header-zone
	// nodes, or the end of the list when the anchor was removed.
	anchorIndex := func(after string) int {
		for i, item := range root.Items {
			sub, ok := item.(*sexp.List)
			if !ok {
				continue
			}
			switch after {
			case opaqueAfterSheetInstances:
				if sub.Tag() == "sheet_instances" {
					return i
				}
			case "":
				if sub.Tag() == "lib_symbols" {
					return i
				}
			default:
				if u, ok := sub.Child("uuid"); ok {
					if id, ok := u.StringAt(1); ok && id == after {
						return i
					}
				}
			}
		}
		return len(root.Items) - 1
	}

	// lastAt remembers where the previous node with the same anchor
	// went, so several opaques behind one element keep their order.
	lastAt := make(map[string]int)
	for _, op := range opaques {
		pos, seen := lastAt[op.After]
		if !seen {
			pos = anchorIndex(op.After)
		}
		at := pos + 1
		for k, v := range lastAt {
			if v >= at {
				lastAt[k] = v + 1
			}
		}
		root.Items = append(root.Items, nil)
		copy(root.Items[at+1:], root.Items[at:])
		root.Items[at] = op.Node
		lastAt[op.After] = at
	}
}

func (d *Document) formatLibSymbols(lib Library) (*sexp.List, error) {
	ids := make(map[string]bool)
	for _, c := range d.Components.All() {
		ids[c.LibID] = true
	}

	sorted := make([]string, 0, len(ids))
	for id := range ids {
		sorted = append(sorted, id)
	}
	sort.Strings(sorted)

	node := sexp.NewList(sexp.Symbol("lib_symbols"))
	for _, id := range sorted {
		def, ok := lib.Definition(id)
		if !ok {
			return nil, &MissingSymbolError{LibID: id}
		}
		node.Append(def)
	}
	return node, nil
}

func formatTitleBlock(tb TitleBlock) *sexp.List {
	node := sexp.NewList(sexp.Symbol("title_block"))
	if tb.Title != "" {
		node.Append(sexp.NewList(sexp.Symbol("title"), sexp.Str(tb.Title)))
	}
	if tb.Date != "" {
		node.Append(sexp.NewList(sexp.Symbol("date"), sexp.Str(tb.Date)))
	}
	if tb.Revision != "" {
		node.Append(sexp.NewList(sexp.Symbol("rev"), sexp.Str(tb.Revision)))
	}
	if tb.Company != "" {
		node.Append(sexp.NewList(sexp.Symbol("company"), sexp.Str(tb.Company)))
	}
	comments := []string{tb.Comment1, tb.Comment2, tb.Comment3, tb.Comment4}
	for i, text := range comments {
		if text != "" {
			node.Append(sexp.NewList(sexp.Symbol("comment"),
				sexp.NewNumber(float64(i+1)), sexp.Str(text)))
		}
	}
	return node
}

func formatPosition(tag string, p Position) *sexp.List {
	return sexp.NewList(sexp.Symbol(tag), sexp.NewNumber(p.X), sexp.NewNumber(p.Y))
}

func formatPose(pose Pose) *sexp.List {
	return sexp.NewList(sexp.Symbol("at"),
		sexp.NewNumber(pose.X), sexp.NewNumber(pose.Y), sexp.NewNumber(pose.Rotation))
}

func formatStroke(s Stroke) *sexp.List {
	typ := s.Type
	if typ == "" {
		typ = "default"
	}
	return sexp.NewList(sexp.Symbol("stroke"),
		sexp.NewList(sexp.Symbol("width"), sexp.NewNumber(s.Width)),
		sexp.NewList(sexp.Symbol("type"), sexp.Symbol(typ)))
}

func formatBool(tag string, v bool) *sexp.List {
	value := "no"
	if v {
		value = "yes"
	}
	return sexp.NewList(sexp.Symbol(tag), sexp.Symbol(value))
}

func formatJunction(j *Junction) *sexp.List {
	return sexp.NewList(sexp.Symbol("junction"),
		formatPosition("at", j.Position),
		sexp.NewList(sexp.Symbol("diameter"), sexp.NewNumber(j.Diameter)),
		sexp.NewList(sexp.Symbol("color"),
			sexp.NewNumber(j.Color.R), sexp.NewNumber(j.Color.G),
			sexp.NewNumber(j.Color.B), sexp.NewNumber(j.Color.A)),
		sexp.NewList(sexp.Symbol("uuid"), sexp.Str(j.UUID)))
}

func formatWire(w *Wire) *sexp.List {
	pts := sexp.NewList(sexp.Symbol("pts"))
	for _, p := range w.Points {
		pts.Append(formatPosition("xy", p))
	}
	return sexp.NewList(sexp.Symbol(string(w.Kind)),
		pts,
		formatStroke(w.Stroke),
		sexp.NewList(sexp.Symbol("uuid"), sexp.Str(w.UUID)))
}

func formatLabel(l *Label) *sexp.List {
	tag := "label"
	switch l.Kind {
	case LabelKindGlobal:
		tag = "global_label"
	case LabelKindHierarchical:
		tag = "hierarchical_label"
	}

	node := sexp.NewList(sexp.Symbol(tag), sexp.Str(l.Text))

	if l.Kind == LabelKindHierarchical {
		shape := l.Shape
		if shape == "" {
			shape = "input"
		}
		node.Append(sexp.NewList(sexp.Symbol("shape"), sexp.Symbol(shape)))
	}

	node.Append(formatPose(Pose{Position: l.Position, Rotation: l.Rotation}))

	size := l.Size
	if size == 0 {
		size = DefaultFontSize
	}
	node.Append(sexp.NewList(sexp.Symbol("effects"),
		sexp.NewList(sexp.Symbol("font"),
			sexp.NewList(sexp.Symbol("size"), sexp.NewNumber(size), sexp.NewNumber(size)))))
	node.Append(sexp.NewList(sexp.Symbol("uuid"), sexp.Str(l.UUID)))

	return node
}

// formatComponent emits a symbol instance in the fixed child order:
// lib_id, at, unit, flags, uuid, properties in role order, pins,
// instances.
func (d *Document) formatComponent(c *Component, lib Library) *sexp.List {
	node := sexp.NewList(sexp.Symbol("symbol"),
		sexp.NewList(sexp.Symbol("lib_id"), sexp.Str(c.LibID)),
		formatPose(c.Pose),
		sexp.NewList(sexp.Symbol("unit"), sexp.NewNumber(float64(c.Unit))),
		formatBool("exclude_from_sim", c.ExcludeFromSim),
		formatBool("in_bom", c.InBOM),
		formatBool("on_board", c.OnBoard),
		formatBool("dnp", c.DNP),
		sexp.NewList(sexp.Symbol("uuid"), sexp.Str(c.UUID)))

	archetype := d.archetypeOf(c, lib)
	ordinal := 0

	emit := func(prop Property) {
		node.Append(formatProperty(c, prop, archetype, ordinal))
		ordinal++
	}

	// Reference first; its value mirrors the Reference field.
	refProp := Property{Name: RoleReference, Value: c.Reference}
	for _, p := range c.Properties {
		if p.Name == RoleReference {
			refProp = p
			refProp.Value = c.Reference
			break
		}
	}
	emit(refProp)

	for _, role := range propertyRoleOrder[1:] {
		for _, p := range c.Properties {
			if p.Name == role {
				emit(p)
				break
			}
		}
	}
	for _, p := range c.Properties {
		if isWellKnownRole(p.Name) {
			continue
		}
		emit(p)
	}

	for _, pin := range c.Pins {
		pinNode := sexp.NewList(sexp.Symbol("pin"), sexp.Str(pin.Number))
		if pin.UUID != "" {
			pinNode.Append(sexp.NewList(sexp.Symbol("uuid"), sexp.Str(pin.UUID)))
		}
		node.Append(pinNode)
	}

	node.Append(d.formatInstances(c))
	return node
}

func isWellKnownRole(name string) bool {
	for _, role := range propertyRoleOrder {
		if name == role {
			return true
		}
	}
	return false
}

func formatProperty(c *Component, prop Property, archetype Archetype, ordinal int) *sexp.List {
	var pose Pose
	justify := prop.Justify
	hidden := prop.Hidden

	if prop.At != nil {
		pose = *prop.At
	} else {
		pl := PlaceProperty(archetype, c.LibID, prop.Name, ordinal, c.Pose)
		pose = Pose{Position: pl.Position, Rotation: pl.Rotation}
		if justify == "" {
			justify = pl.Justify
		}
		hidden = hidden || pl.Hidden
	}

	size := prop.FontSize
	if size == 0 {
		size = DefaultFontSize
	}

	effects := sexp.NewList(sexp.Symbol("effects"),
		sexp.NewList(sexp.Symbol("font"),
			sexp.NewList(sexp.Symbol("size"), sexp.NewNumber(size), sexp.NewNumber(size))))
	if justify != "" {
		effects.Append(sexp.NewList(sexp.Symbol("justify"), sexp.Symbol(justify)))
	}
	if hidden {
		effects.Append(sexp.Symbol("hide"))
	}

	return sexp.NewList(sexp.Symbol("property"),
		sexp.Str(prop.Name), sexp.Str(prop.Value),
		formatPose(pose),
		effects)
}

// formatInstances writes caller-supplied instance records verbatim and
// synthesizes a root-path record when none exist.
func (d *Document) formatInstances(c *Component) *sexp.List {
	records := c.Instances
	if len(records) == 0 {
		project := d.ProjectName
		if project == "" {
			project = strings.TrimSpace(d.TitleBlock.Title)
		}
		if project == "" {
			project = "project"
		}
		records = []InstanceRecord{{
			Project:   project,
			Path:      "/" + d.UUID,
			Reference: c.Reference,
			Unit:      c.Unit,
		}}
	}

	node := sexp.NewList(sexp.Symbol("instances"))
	var current *sexp.List
	currentName := ""
	for _, rec := range records {
		if current == nil || rec.Project != currentName {
			current = sexp.NewList(sexp.Symbol("project"), sexp.Str(rec.Project))
			currentName = rec.Project
			node.Append(current)
		}
		current.Append(sexp.NewList(sexp.Symbol("path"), sexp.Str(rec.Path),
			sexp.NewList(sexp.Symbol("reference"), sexp.Str(rec.Reference)),
			sexp.NewList(sexp.Symbol("unit"), sexp.NewNumber(float64(rec.Unit)))))
	}
	return node
}

// archetypeOf resolves the layout archetype using library pin counts,
// falling back to the instance's own pin list.
func (d *Document) archetypeOf(c *Component, lib Library) Archetype {
	pinCount := len(c.Pins)
	if pins, ok := lib.Pins(c.LibID); ok {
		pinCount = len(pins)
	}
	if pinCount == 0 {
		pinCount = 2
	}
	return ArchetypeFor(c.LibID, pinCount)
}
