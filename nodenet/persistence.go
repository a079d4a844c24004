package nodenet

import (
	"encoding/json"
	"fmt"
)

// CurrentSchemaVersion is the version every persisted document must match
// for Load to accept it.
const CurrentSchemaVersion = 1

// nodespaceDoc is the persisted shape of one Nodespace.
type nodespaceDoc struct {
	UID             string            `json:"uid"`
	ParentNodespace string            `json:"parent_nodespace"`
	Name            string            `json:"name"`
	Position        [2]float64        `json:"position"`
	GateFunctions   map[string]string `json:"gatefunctions"`
	Index           int               `json:"index"`
}

// nodeDoc is the persisted shape of one Node. GateParameters holds only the
// gates whose parameters differ from their nodetype defaults.
type nodeDoc struct {
	UID             string                    `json:"uid"`
	Type            string                    `json:"type"`
	ParentNodespace string                    `json:"parent_nodespace"`
	Name            string                    `json:"name"`
	Position        [2]float64                `json:"position"`
	Parameters      map[string]interface{}    `json:"parameters"`
	GateParameters  map[string]GateParameters `json:"gate_parameters"`
	State           map[string]interface{}    `json:"state"`
}

// linkDoc is the persisted shape of one Link.
type linkDoc struct {
	UID            string  `json:"uid"`
	SourceNodeUID  string  `json:"source_node_uid"`
	SourceGateName string  `json:"source_gate_name"`
	TargetNodeUID  string  `json:"target_node_uid"`
	TargetSlotName string  `json:"target_slot_name"`
	Weight         float64 `json:"weight"`
	Certainty      float64 `json:"certainty"`
}

// monitorDoc is the persisted shape of one Monitor. Steps/Values are the
// same parallel arrays Monitor uses in-memory, so no re-keying is needed on
// either side of the round trip.
type monitorDoc struct {
	UID     string    `json:"uid"`
	NodeUID string    `json:"node_uid"`
	Kind    string    `json:"kind"`
	Name    string    `json:"name"`
	Sheaf   string    `json:"sheaf"`
	Steps   []int     `json:"steps"`
	Values  []float64 `json:"values"`
}

// NodenetDocument is the full persisted snapshot: a single document per
// nodenet.
type NodenetDocument struct {
	Version      int                     `json:"version"`
	UID          string                  `json:"uid"`
	Owner        string                  `json:"owner"`
	Name         string                  `json:"name"`
	CurrentStep  int                     `json:"current_step"`
	IsActive     bool                    `json:"is_active"`
	World        string                  `json:"world"`
	WorldAdapter string                  `json:"worldadapter"`
	Settings     map[string]string       `json:"settings"`
	MaxCoords    [2]float64              `json:"max_coords"`
	Nodespaces   map[string]nodespaceDoc `json:"nodespaces"`
	Nodes        map[string]nodeDoc      `json:"nodes"`
	Links        map[string]linkDoc      `json:"links"`
	Monitors     map[string]monitorDoc   `json:"monitors"`
}

// Export serializes the nodenet into its persisted-document shape.
func (nn *Nodenet) Export() *NodenetDocument {
	doc := &NodenetDocument{
		Version:      CurrentSchemaVersion,
		UID:          nn.UID,
		Owner:        nn.Owner,
		Name:         nn.Name,
		CurrentStep:  nn.CurrentStep,
		IsActive:     nn.IsActive,
		World:        nn.WorldUID,
		WorldAdapter: nn.WorldAdapterName,
		Settings:     copyStringMap(nn.Settings),
		MaxCoords:    nn.MaxCoords,
		Nodespaces:   make(map[string]nodespaceDoc, len(nn.nodespaces)),
		Nodes:        make(map[string]nodeDoc, len(nn.nodes)),
		Links:        make(map[string]linkDoc, len(nn.links)),
		Monitors:     make(map[string]monitorDoc, len(nn.monitors)),
	}
	index := 0
	for uid, ns := range nn.nodespaces {
		flattenedOverrides := make(map[string]string, len(ns.GateFunctionOverrides))
		for k, v := range ns.GateFunctionOverrides {
			flattenedOverrides[k] = v
		}
		doc.Nodespaces[uid] = nodespaceDoc{
			UID:             ns.UID,
			ParentNodespace: ns.ParentUID,
			Name:            ns.Name,
			Position:        ns.Position,
			GateFunctions:   flattenedOverrides,
			Index:           index,
		}
		index++
	}
	for uid, node := range nn.nodes {
		// Only customized gate parameters are persisted. Gates still on
		// their nodetype defaults are re-derived on load, so a nodetype
		// reload's new defaults reach every gate that was never touched.
		nt, _ := nn.nodetypes.Get(node.Type)
		gateParams := make(map[string]GateParameters, len(node.Gates))
		for name, g := range node.Gates {
			defaults := nn.gateDefaults
			if nt != nil {
				if gd, ok := nt.GateDefaults[name]; ok {
					defaults = gd
				}
			}
			if g.Parameters != defaults {
				gateParams[name] = g.Parameters
			}
		}
		doc.Nodes[uid] = nodeDoc{
			UID:             node.UID,
			Type:            node.Type,
			ParentNodespace: node.ParentNodespace,
			Name:            node.Name,
			Position:        node.Position,
			Parameters:      copyAnyMap(node.Parameters),
			GateParameters:  gateParams,
			State:           copyAnyMap(node.State),
		}
	}
	for uid, link := range nn.links {
		doc.Links[uid] = linkDoc{
			UID:            link.UID,
			SourceNodeUID:  link.SourceNode,
			SourceGateName: link.SourceGate,
			TargetNodeUID:  link.TargetNode,
			TargetSlotName: link.TargetSlot,
			Weight:         link.Weight,
			Certainty:      link.Certainty,
		}
	}
	for uid, m := range nn.monitors {
		steps := make([]int, len(m.Steps))
		copy(steps, m.Steps)
		values := make([]float64, len(m.Values))
		copy(values, m.Values)
		doc.Monitors[uid] = monitorDoc{
			UID:     m.UID,
			NodeUID: m.NodeUID,
			Kind:    m.TerminalKind,
			Name:    m.TerminalName,
			Sheaf:   m.Sheaf,
			Steps:   steps,
			Values:  values,
		}
	}
	return doc
}

func copyStringMap(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func copyAnyMap(m map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// MarshalJSON serializes the nodenet's current state to the §6 document
// schema.
func (nn *Nodenet) MarshalJSON() ([]byte, error) {
	return json.Marshal(nn.Export())
}

// LoadNodenetDocument parses raw JSON into a NodenetDocument without
// applying it, so callers can inspect doc.Version before deciding whether
// to Load or reject it.
func LoadNodenetDocument(raw []byte) (*NodenetDocument, error) {
	var doc NodenetDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parsing nodenet document: %w: %v", ErrSnapshotCorrupt, err)
	}
	return &doc, nil
}

// Load replaces this nodenet's entire graph with doc's contents. It rejects
// on version mismatch, leaving the net unchanged.
func (nn *Nodenet) Load(doc *NodenetDocument) error {
	if doc.Version != CurrentSchemaVersion {
		return fmt.Errorf("nodenet document version %d, expected %d: %w", doc.Version, CurrentSchemaVersion, ErrVersionMismatch)
	}

	nn.nodespaces = make(map[string]*Nodespace)
	nn.nodes = make(map[string]*Node)
	nn.links = make(map[string]*Link)
	nn.monitors = make(map[string]*Monitor)
	nn.nodeOrder = nil
	nn.nodespaces[RootNodespaceUID] = newNodespace(RootNodespaceUID, "", "Root", [2]float64{})

	nn.Owner = doc.Owner
	nn.Name = doc.Name
	nn.CurrentStep = doc.CurrentStep
	nn.IsActive = doc.IsActive
	nn.WorldUID = doc.World
	nn.WorldAdapterName = doc.WorldAdapter
	nn.Settings = copyStringMap(doc.Settings)
	nn.MaxCoords = doc.MaxCoords

	var warnings []string
	nn.mergeDocument(doc, &warnings)
	for _, w := range warnings {
		nn.logger.Warnw("nodenet load warning", "detail", w)
	}
	return nil
}

// Merge applies doc's nodespaces/nodes/links/monitors on top of this
// nodenet's current graph, used both by Load and by the control surface's
// merge operation: nodespaces are inserted parent-before-child, nodes of
// unknown type are dropped with a warning, links with an absent endpoint
// are dropped silently, monitors are copied verbatim, and incoming uids
// colliding with existing ones are regenerated with their links rewritten.
func (nn *Nodenet) Merge(doc *NodenetDocument) []string {
	var warnings []string
	nn.mergeDocument(doc, &warnings)
	return warnings
}

func (nn *Nodenet) mergeDocument(doc *NodenetDocument, warnings *[]string) {
	uidRemap := make(map[string]string)

	// Nodespaces, parent-before-child: repeatedly sweep the remaining set,
	// merging any whose parent has already been merged, until a full pass
	// makes no progress. This tolerates any input ordering, so Index (kept
	// on nodespaceDoc for forward-compatibility with readers that want a
	// stable display order) is not relied on here.
	remaining := make(map[string]nodespaceDoc, len(doc.Nodespaces))
	for uid, ns := range doc.Nodespaces {
		remaining[uid] = ns
	}
	for len(remaining) > 0 {
		progressed := false
		for uid, ns := range remaining {
			if uid == RootNodespaceUID {
				delete(remaining, uid)
				progressed = true
				continue
			}
			parent := ns.ParentNodespace
			if remapped, ok := uidRemap[parent]; ok {
				parent = remapped
			}
			if _, ok := nn.nodespaces[parent]; !ok {
				continue // parent not merged yet
			}
			newUID := uid
			if _, collide := nn.nodespaces[uid]; collide {
				newUID = nn.nextUID("s")
				uidRemap[uid] = newUID
			}
			merged := newNodespace(newUID, parent, ns.Name, ns.Position)
			for k, v := range ns.GateFunctions {
				merged.GateFunctionOverrides[k] = v
			}
			nn.nodespaces[newUID] = merged
			if parentNS, ok := nn.nodespaces[parent]; ok {
				parentNS.Children[newUID] = struct{}{}
			}
			delete(remaining, uid)
			progressed = true
		}
		if !progressed {
			for uid := range remaining {
				*warnings = append(*warnings, fmt.Sprintf("nodespace %s: parent never resolved, dropped", uid))
			}
			break
		}
	}

	for uid, nd := range doc.Nodes {
		nt, ok := nn.nodetypes.Get(nd.Type)
		if !ok {
			*warnings = append(*warnings, fmt.Sprintf("node %s: unknown type %q, dropped", uid, nd.Type))
			continue
		}
		parentNS := nd.ParentNodespace
		if remapped, ok := uidRemap[parentNS]; ok {
			parentNS = remapped
		}
		if _, ok := nn.nodespaces[parentNS]; !ok {
			parentNS = RootNodespaceUID
		}

		newUID := uid
		if _, collide := nn.nodes[uid]; collide {
			newUID = nn.nextUID("n")
			uidRemap[uid] = newUID
		}

		node := &Node{
			UID:             newUID,
			Type:            nd.Type,
			ParentNodespace: parentNS,
			Name:            nd.Name,
			Position:        nd.Position,
			Parameters:      copyAnyMap(nd.Parameters),
			State:           copyAnyMap(nd.State),
			Gates:           make(map[string]*Gate),
			Slots:           make(map[string]*Slot),
		}
		for _, gateName := range nt.GateNames {
			params := nn.gateDefaults
			if gd, ok := nt.GateDefaults[gateName]; ok {
				params = gd
			}
			if persisted, ok := nd.GateParameters[gateName]; ok {
				params = persisted
			}
			node.Gates[gateName] = newGate(gateName, newUID, params)
			node.GateOrder = append(node.GateOrder, gateName)
		}
		for _, slotName := range nt.SlotNames {
			node.Slots[slotName] = newSlot(slotName, newUID)
			node.SlotOrder = append(node.SlotOrder, slotName)
		}

		nn.nodes[newUID] = node
		nn.nodeOrder = append(nn.nodeOrder, newUID)
		nn.nodespaces[parentNS].Nodes[newUID] = struct{}{}
	}

	for uid, ld := range doc.Links {
		sourceUID := remappedOrSame(uidRemap, ld.SourceNodeUID)
		targetUID := remappedOrSame(uidRemap, ld.TargetNodeUID)
		source, sourceOK := nn.nodes[sourceUID]
		target, targetOK := nn.nodes[targetUID]
		if !sourceOK || !targetOK {
			continue // absent endpoint: dropped silently
		}
		gate, gateOK := source.Gates[ld.SourceGateName]
		slot, slotOK := target.Slots[ld.TargetSlotName]
		if !gateOK || !slotOK {
			continue
		}
		newUID := uid
		if _, collide := nn.links[uid]; collide {
			newUID = nn.nextUID("l")
		}
		link := &Link{
			UID:        newUID,
			SourceNode: sourceUID,
			SourceGate: ld.SourceGateName,
			TargetNode: targetUID,
			TargetSlot: ld.TargetSlotName,
			Weight:     ld.Weight,
			Certainty:  ld.Certainty,
		}
		nn.links[newUID] = link
		gate.Outgoing[newUID] = struct{}{}
		slot.Incoming[newUID] = struct{}{}
	}

	for uid, md := range doc.Monitors {
		nodeUID := remappedOrSame(uidRemap, md.NodeUID)
		newUID := uid
		if _, collide := nn.monitors[uid]; collide {
			newUID = nn.nextUID("m")
		}
		m := newMonitor(newUID, nodeUID, md.Kind, md.Name, md.Sheaf)
		m.Steps = append([]int(nil), md.Steps...)
		m.Values = append([]float64(nil), md.Values...)
		nn.monitors[newUID] = m
	}
}

func remappedOrSame(remap map[string]string, uid string) string {
	if v, ok := remap[uid]; ok {
		return v
	}
	return uid
}
