package schematic

import (
	"sort"
	"strconv"
	"strings"
)

// NetPin identifies one component pin inside a net.
type NetPin struct {
	Reference string `json:"reference"`
	Pin       string `json:"pin"`
}

// Net is a connected set of component pins sharing one electrical net.
// Name comes from a label (or power symbol) on the net when one exists,
// otherwise it is a synthetic Net-N name.
type Net struct {
	Name string   `json:"name"`
	Pins []NetPin `json:"pins"`
}

// netlist builds connectivity with a union-find over position keys.
// Wire segments connect their consecutive points, labels connect their
// anchor position to a named node, power symbols connect their pin to
// the node named by their value, and component pins attach at their
// absolute pin position. Junctions carry no extra information here:
// wires meeting at the same position already share a key.
type netlist struct {
	parent map[string]string
	rank   map[string]int
}

func newNetlist() *netlist {
	return &netlist{
		parent: make(map[string]string),
		rank:   make(map[string]int),
	}
}

func (nl *netlist) add(key string) {
	if _, ok := nl.parent[key]; ok {
		return
	}
	nl.parent[key] = key
	nl.rank[key] = 0
}

// find returns the representative key, with path compression.
func (nl *netlist) find(key string) string {
	nl.add(key)

	root := key
	for nl.parent[root] != root {
		root = nl.parent[root]
	}

	current := key
	for current != root {
		next := nl.parent[current]
		nl.parent[current] = root
		current = next
	}
	return root
}

// connect merges the nets of two keys, union by rank.
func (nl *netlist) connect(a, b string) {
	rootA := nl.find(a)
	rootB := nl.find(b)
	if rootA == rootB {
		return
	}

	if nl.rank[rootA] < nl.rank[rootB] {
		nl.parent[rootA] = rootB
	} else if nl.rank[rootA] > nl.rank[rootB] {
		nl.parent[rootB] = rootA
	} else {
		nl.parent[rootB] = rootA
		nl.rank[rootA]++
	}
}

// named keys live in a separate namespace from position keys so a net
// label "5,10" cannot collide with the position (5, 10).
func netNameKey(name string) string {
	return "net:" + strings.ToLower(name)
}

// Netlist derives the electrical nets of the document from geometry:
// pins, wires and labels meeting at the same canonical position belong
// to the same net. Component rotation is applied to pin offsets here,
// since connectivity is a question about where pins actually sit.
// Nets with fewer than two pins are skipped.
func (d *Document) Netlist() []Net {
	nl := newNetlist()

	for _, w := range d.Wires.ByKind(WireKindWire) {
		for i := 1; i < len(w.Points); i++ {
			nl.connect(posKey(w.Points[i-1]), posKey(w.Points[i]))
		}
	}

	names := make(map[string]string) // name key -> display name
	for _, l := range d.Labels.All() {
		key := netNameKey(l.Text)
		if _, seen := names[key]; !seen {
			names[key] = l.Text
		}
		nl.connect(key, posKey(l.Position))
	}

	// A power symbol ties its pin to the net named by its value.
	for _, c := range d.Components.All() {
		if !IsPowerLibID(c.LibID) {
			continue
		}
		name := c.Value()
		if name == "" {
			_, name, _ = strings.Cut(c.LibID, ":")
		}
		key := netNameKey(name)
		if _, seen := names[key]; !seen {
			names[key] = name
		}
		if pos, ok := d.PinPositionRotated(c.Reference, "1"); ok {
			nl.connect(key, posKey(pos))
		}
	}

	type attached struct {
		pin  NetPin
		root string
	}
	var pins []attached
	for _, c := range d.Components.All() {
		if IsPowerLibID(c.LibID) {
			continue
		}
		symPins, ok := d.resolver().Pins(c.LibID)
		if !ok {
			continue
		}
		for _, p := range symPins {
			pos, ok := d.PinPositionRotated(c.Reference, p.Number)
			if !ok {
				continue
			}
			pins = append(pins, attached{
				pin:  NetPin{Reference: c.Reference, Pin: p.Number},
				root: nl.find(posKey(pos)),
			})
		}
	}

	groups := make(map[string][]NetPin)
	for _, a := range pins {
		groups[a.root] = append(groups[a.root], a.pin)
	}

	// Resolve net names: a group containing a named node gets that
	// name; when several labels landed on one net the alphabetically
	// first wins.
	groupName := make(map[string]string)
	for key, name := range names {
		root := nl.find(key)
		if prev, ok := groupName[root]; !ok || name < prev {
			groupName[root] = name
		}
	}

	var nets []Net
	for root, members := range groups {
		if len(members) < 2 {
			continue
		}
		sort.Slice(members, func(i, j int) bool {
			if members[i].Reference != members[j].Reference {
				return members[i].Reference < members[j].Reference
			}
			return members[i].Pin < members[j].Pin
		})
		nets = append(nets, Net{Name: groupName[root], Pins: members})
	}

	sort.Slice(nets, func(i, j int) bool {
		if (nets[i].Name == "") != (nets[j].Name == "") {
			return nets[i].Name != ""
		}
		if nets[i].Name != nets[j].Name {
			return nets[i].Name < nets[j].Name
		}
		return nets[i].Pins[0].Reference < nets[j].Pins[0].Reference
	})
	for i := range nets {
		if nets[i].Name == "" {
			nets[i].Name = "Net-" + strconv.Itoa(i+1)
		}
	}

	return nets
}
