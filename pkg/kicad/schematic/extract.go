package schematic

import (
	"log/slog"

	"github.com/google/uuid"

	"github.com/OpenTraceLab/OpenTraceSchematic/pkg/kicad/sexp"
)

// Schema extraction: generic node tree -> typed Document. Structural
// problems (missing kicad_sch root, missing version, wrong-arity
// coordinate pairs) fail with *ParseError. Out-of-set enum values are
// tolerated: logged and replaced with the documented default, matching
// the host application's tolerant loading.

var strokeTypes = map[string]bool{
	"default":      true,
	"solid":        true,
	"dash":         true,
	"dot":          true,
	"dash_dot":     true,
	"dash_dot_dot": true,
}

var labelShapes = map[string]bool{
	"input":         true,
	"output":        true,
	"bidirectional": true,
	"tri_state":     true,
	"passive":       true,
}

// Extract builds a typed Document from a parsed node tree.
func Extract(root sexp.Node) (*Document, error) {
	list, ok := root.(*sexp.List)
	if !ok || list.Tag() != "kicad_sch" {
		return nil, parseErr("document", "", "missing kicad_sch top-level tag")
	}

	doc := newDocument()
	doc.Version = 0

	if _, ok := list.Child("version"); !ok {
		return nil, parseErr("document", "version", "missing required version tag")
	}

	// anchor tracks the nearest preceding recognized element so opaque
	// sub-trees keep their position relative to it across a round trip.
	anchor := ""

	for i, item := range list.Items {
		if i == 0 {
			continue // the kicad_sch tag itself
		}

		sub, ok := item.(*sexp.List)
		if !ok {
			doc.opaques = append(doc.opaques, opaqueNode{After: anchor, Node: item})
			continue
		}

		switch sub.Tag() {
		case "version":
			v, ok := sub.IntAt(1)
			if !ok {
				return nil, parseErr("document", "version", "version is not an integer")
			}
			doc.Version = v

		case "generator":
			doc.Generator, _ = sub.StringAt(1)

		case "generator_version":
			doc.GeneratorVersion, _ = sub.StringAt(1)

		case "uuid":
			doc.UUID, _ = sub.StringAt(1)

		case "paper":
			doc.Paper, _ = sub.StringAt(1)

		case "title_block":
			doc.TitleBlock = extractTitleBlock(sub)

		case "lib_symbols":
			for _, symNode := range sub.Children("symbol") {
				if name, ok := symNode.StringAt(1); ok && name != "" {
					doc.libSymbols[name] = symNode
				}
			}

		case "symbol":
			comp, err := extractComponent(sub)
			if err != nil {
				return nil, err
			}
			if comp.Reference == "" {
				comp.Reference = doc.Components.NextReference(comp.LibID)
			}
			if _, err := doc.Components.Add(comp); err != nil {
				slog.Warn("skipping component that fails validation",
					"uuid", comp.UUID, "reference", comp.Reference, "err", err)
			} else {
				anchor = comp.UUID
			}

		case "wire", "bus":
			wire, err := extractWire(sub)
			if err != nil {
				return nil, err
			}
			if _, err := doc.Wires.Add(wire); err != nil {
				slog.Warn("skipping wire that fails validation", "uuid", wire.UUID, "err", err)
			} else {
				anchor = wire.UUID
			}

		case "junction":
			junc, err := extractJunction(sub)
			if err != nil {
				return nil, err
			}
			if _, err := doc.Junctions.Add(junc); err != nil {
				slog.Warn("skipping junction that fails validation", "uuid", junc.UUID, "err", err)
			} else {
				anchor = junc.UUID
			}

		case "label", "global_label", "hierarchical_label":
			label, err := extractLabel(sub)
			if err != nil {
				return nil, err
			}
			if _, err := doc.Labels.Add(label); err != nil {
				slog.Warn("skipping label that fails validation", "uuid", label.UUID, "err", err)
			} else {
				anchor = label.UUID
			}

		case "sheet_instances":
			doc.sheetInstances = sub
			anchor = opaqueAfterSheetInstances

		default:
			doc.opaques = append(doc.opaques, opaqueNode{After: anchor, Node: sub})
		}
	}

	if doc.UUID == "" {
		doc.UUID = uuid.NewString()
	}
	doc.clearModified()
	return doc, nil
}

func extractTitleBlock(node *sexp.List) TitleBlock {
	tb := TitleBlock{}

	if title, ok := node.Child("title"); ok {
		tb.Title, _ = title.StringAt(1)
	}
	if date, ok := node.Child("date"); ok {
		tb.Date, _ = date.StringAt(1)
	}
	if rev, ok := node.Child("rev"); ok {
		tb.Revision, _ = rev.StringAt(1)
	}
	if company, ok := node.Child("company"); ok {
		tb.Company, _ = company.StringAt(1)
	}
	for _, comment := range node.Children("comment") {
		num, _ := comment.IntAt(1)
		text, _ := comment.StringAt(2)
		switch num {
		case 1:
			tb.Comment1 = text
		case 2:
			tb.Comment2 = text
		case 3:
			tb.Comment3 = text
		case 4:
			tb.Comment4 = text
		}
	}

	return tb
}

// extractPose reads an (at X Y [rotation]) node, checking coordinate
// arity and normalizing the rotation to a quadrant.
func extractPose(node *sexp.List, element string) (Pose, error) {
	x, okX := node.FloatAt(1)
	y, okY := node.FloatAt(2)
	if !okX || !okY {
		return Pose{}, parseErr(element, "at", "coordinate pair has wrong arity")
	}

	pose := Pose{Position: Position{X: x, Y: y}}
	if rot, ok := node.FloatAt(3); ok {
		switch rot {
		case 0, 90, 180, 270:
			pose.Rotation = rot
		default:
			slog.Warn("unexpected rotation, substituting 0", "element", element, "rotation", rot)
		}
	}
	return pose, nil
}

// extractPoint reads a two-value coordinate node such as (xy X Y).
func extractPoint(node *sexp.List, element string) (Position, error) {
	x, okX := node.FloatAt(1)
	y, okY := node.FloatAt(2)
	if !okX || !okY {
		return Position{}, parseErr(element, node.Tag(), "coordinate pair has wrong arity")
	}
	return Position{X: x, Y: y}, nil
}

func extractStroke(node *sexp.List, element string) Stroke {
	stroke := Stroke{Type: "default"}

	if width, ok := node.Child("width"); ok {
		stroke.Width, _ = width.FloatAt(1)
	}
	if typ, ok := node.Child("type"); ok {
		if value, ok := typ.StringAt(1); ok {
			if strokeTypes[value] {
				stroke.Type = value
			} else {
				slog.Warn("unknown stroke type, substituting default",
					"element", element, "type", value)
			}
		}
	}
	return stroke
}

func extractComponent(node *sexp.List) (*Component, error) {
	c := &Component{
		Unit:    1,
		InBOM:   true,
		OnBoard: true,
	}

	libNode, ok := node.Child("lib_id")
	if !ok {
		return nil, parseErr("component", "lib_id", "missing lib_id")
	}
	c.LibID, _ = libNode.StringAt(1)

	if at, ok := node.Child("at"); ok {
		pose, err := extractPose(at, "component")
		if err != nil {
			return nil, err
		}
		c.Pose = pose
	}

	if unit, ok := node.Child("unit"); ok {
		c.Unit, _ = unit.IntAt(1)
	}

	c.ExcludeFromSim = node.BoolChild("exclude_from_sim", false)
	c.InBOM = node.BoolChild("in_bom", true)
	c.OnBoard = node.BoolChild("on_board", true)
	c.DNP = node.BoolChild("dnp", false)

	if uuidNode, ok := node.Child("uuid"); ok {
		c.UUID, _ = uuidNode.StringAt(1)
	}
	if c.UUID == "" {
		c.UUID = uuid.NewString()
	}

	for _, propNode := range node.Children("property") {
		prop, err := extractProperty(propNode)
		if err != nil {
			return nil, err
		}
		if prop.Name == RoleReference {
			c.Reference = prop.Value
		}
		c.Properties = append(c.Properties, prop)
	}

	for _, pinNode := range node.Children("pin") {
		ref := PinRef{}
		ref.Number, _ = pinNode.StringAt(1)
		if uuidNode, ok := pinNode.Child("uuid"); ok {
			ref.UUID, _ = uuidNode.StringAt(1)
		}
		c.Pins = append(c.Pins, ref)
	}

	if instances, ok := node.Child("instances"); ok {
		for _, project := range instances.Children("project") {
			projectName, _ := project.StringAt(1)
			for _, path := range project.Children("path") {
				rec := InstanceRecord{Project: projectName, Unit: 1}
				rec.Path, _ = path.StringAt(1)
				if ref, ok := path.Child("reference"); ok {
					rec.Reference, _ = ref.StringAt(1)
				}
				if unit, ok := path.Child("unit"); ok {
					rec.Unit, _ = unit.IntAt(1)
				}
				c.Instances = append(c.Instances, rec)
			}
		}
	}

	return c, nil
}

func extractProperty(node *sexp.List) (Property, error) {
	prop := Property{}
	prop.Name, _ = node.StringAt(1)
	prop.Value, _ = node.StringAt(2)

	if at, ok := node.Child("at"); ok {
		pose, err := extractPose(at, "property")
		if err != nil {
			return Property{}, err
		}
		prop.At = &pose
	}

	if effects, ok := node.Child("effects"); ok {
		if font, ok := effects.Child("font"); ok {
			if size, ok := font.Child("size"); ok {
				prop.FontSize, _ = size.FloatAt(1)
			}
		}
		if justify, ok := effects.Child("justify"); ok {
			prop.Justify, _ = justify.StringAt(1)
		}
		prop.Hidden = effects.HasFlag("hide")
	}

	return prop, nil
}

func extractWire(node *sexp.List) (*Wire, error) {
	w := &Wire{Kind: WireKind(node.Tag())}

	if pts, ok := node.Child("pts"); ok {
		for _, xy := range pts.Children("xy") {
			p, err := extractPoint(xy, "wire")
			if err != nil {
				return nil, err
			}
			w.Points = append(w.Points, p)
		}
	}

	if stroke, ok := node.Child("stroke"); ok {
		w.Stroke = extractStroke(stroke, "wire")
	} else {
		w.Stroke = Stroke{Type: "default"}
	}

	if uuidNode, ok := node.Child("uuid"); ok {
		w.UUID, _ = uuidNode.StringAt(1)
	}
	if w.UUID == "" {
		w.UUID = uuid.NewString()
	}

	return w, nil
}

func extractJunction(node *sexp.List) (*Junction, error) {
	j := &Junction{}

	if at, ok := node.Child("at"); ok {
		pose, err := extractPose(at, "junction")
		if err != nil {
			return nil, err
		}
		j.Position = pose.Position
	}

	if diameter, ok := node.Child("diameter"); ok {
		j.Diameter, _ = diameter.FloatAt(1)
	}
	if color, ok := node.Child("color"); ok {
		j.Color.R, _ = color.FloatAt(1)
		j.Color.G, _ = color.FloatAt(2)
		j.Color.B, _ = color.FloatAt(3)
		j.Color.A, _ = color.FloatAt(4)
	}

	if uuidNode, ok := node.Child("uuid"); ok {
		j.UUID, _ = uuidNode.StringAt(1)
	}
	if j.UUID == "" {
		j.UUID = uuid.NewString()
	}

	return j, nil
}

func extractLabel(node *sexp.List) (*Label, error) {
	l := &Label{Size: DefaultFontSize}

	switch node.Tag() {
	case "global_label":
		l.Kind = LabelKindGlobal
	case "hierarchical_label":
		l.Kind = LabelKindHierarchical
	default:
		l.Kind = LabelKindLocal
	}

	l.Text, _ = node.StringAt(1)

	if shape, ok := node.Child("shape"); ok {
		if value, ok := shape.StringAt(1); ok {
			if labelShapes[value] {
				l.Shape = value
			} else {
				slog.Warn("unknown label shape, substituting input",
					"label", l.Text, "shape", value)
				l.Shape = "input"
			}
		}
	}

	if at, ok := node.Child("at"); ok {
		pose, err := extractPose(at, "label")
		if err != nil {
			return nil, err
		}
		l.Position = pose.Position
		l.Rotation = pose.Rotation
	}

	if effects, ok := node.Child("effects"); ok {
		if font, ok := effects.Child("font"); ok {
			if size, ok := font.Child("size"); ok {
				if s, ok := size.FloatAt(1); ok {
					l.Size = s
				}
			}
		}
	}

	if uuidNode, ok := node.Child("uuid"); ok {
		l.UUID, _ = uuidNode.StringAt(1)
	}
	if l.UUID == "" {
		l.UUID = uuid.NewString()
	}

	return l, nil
}
