package nodenet

import (
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// RootNodespaceUID is the uid of the nodespace that always exists and has
// no parent.
const RootNodespaceUID = "Root"

// Nodenet is a complete agent graph plus its monitors and locks. Every
// entity is stored in a per-kind map keyed by uid, owned exclusively by the
// Nodenet; links, gates and slots reference other entities by uid, never by
// direct pointer ownership, so the cyclic node/gate/link/slot graph carries
// no strong reference cycles.
type Nodenet struct {
	mu sync.Mutex

	UID         string
	Owner       string
	Name        string
	CurrentStep int
	IsActive    bool

	WorldUID         string
	WorldAdapterName string
	Settings         map[string]string
	MaxCoords        [2]float64

	nodespaces map[string]*Nodespace
	nodes      map[string]*Node
	links      map[string]*Link
	monitors   map[string]*Monitor

	// nodeOrder preserves insertion order so class-ordered step evaluation
	// is deterministic for a given snapshot.
	nodeOrder []string

	locks         *lockRegistry
	nodetypes     *NodetypeRegistry
	gateFunctions *gateFunctionCache
	world         WorldAdapter
	logger        *zap.SugaredLogger

	// Engine tunables, overridable per runtime through EngineConfig.
	gateDefaults         GateParameters
	defaultLockTTL       int
	activatorOnThreshold float64

	uidCounters map[string]int

	userPrompt *UserPrompt

	netapi *NetAPI
}

// NewNodenet creates a nodenet with just its Root nodespace.
func NewNodenet(uid, owner, name string, world WorldAdapter, logger *zap.SugaredLogger) *Nodenet {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	nn := &Nodenet{
		UID:           uid,
		Owner:         owner,
		Name:          name,
		IsActive:      false,
		Settings:      make(map[string]string),
		nodespaces:    make(map[string]*Nodespace),
		nodes:         make(map[string]*Node),
		links:         make(map[string]*Link),
		monitors:      make(map[string]*Monitor),
		locks:         newLockRegistry(),
		nodetypes:     newNodetypeRegistry(),
		gateFunctions: newGateFunctionCache(),
		world:         world,
		logger:        logger.With("nodenet", uid),
		uidCounters:   make(map[string]int),

		gateDefaults:         DefaultGateParameters(),
		defaultLockTTL:       100,
		activatorOnThreshold: 0,
	}
	nn.nodespaces[RootNodespaceUID] = newNodespace(RootNodespaceUID, "", "Root", [2]float64{})
	nn.netapi = newNetAPI(nn)
	return nn
}

// Lock serializes every externally-initiated mutation and every step.
// Callers invoking any CRUD method directly (outside of Control, which
// already locks) must hold this.
func (nn *Nodenet) Lock()   { nn.mu.Lock() }
func (nn *Nodenet) Unlock() { nn.mu.Unlock() }

func (nn *Nodenet) nextUID(prefix string) string {
	nn.uidCounters[prefix]++
	return fmt.Sprintf("%s%d", prefix, nn.uidCounters[prefix])
}

// --- Nodespace tree -------------------------------------------------------

func (nn *Nodenet) GetNodespace(uid string) (*Nodespace, error) {
	ns, ok := nn.nodespaces[uid]
	if !ok {
		return nil, NotFoundf("nodespace", uid)
	}
	return ns, nil
}

// CreateNodespace creates a child nodespace of parentUID.
func (nn *Nodenet) CreateNodespace(parentUID, name string, position [2]float64) (*Nodespace, error) {
	if parentUID == "" {
		parentUID = RootNodespaceUID
	}
	parent, ok := nn.nodespaces[parentUID]
	if !ok {
		return nil, NotFoundf("nodespace", parentUID)
	}
	uid := nn.nextUID("s")
	ns := newNodespace(uid, parentUID, name, position)
	nn.nodespaces[uid] = ns
	parent.Children[uid] = struct{}{}
	return ns, nil
}

// DeleteNodespace removes a nodespace and everything inside it, deepest
// first.
func (nn *Nodenet) DeleteNodespace(uid string) error {
	if uid == RootNodespaceUID {
		return InvalidArgumentf("cannot delete the Root nodespace")
	}
	ns, ok := nn.nodespaces[uid]
	if !ok {
		return NotFoundf("nodespace", uid)
	}
	for child := range copyStringSet(ns.Children) {
		if err := nn.DeleteNodespace(child); err != nil {
			return err
		}
	}
	for nodeUID := range copyStringSet(ns.Nodes) {
		if err := nn.DeleteNode(nodeUID); err != nil {
			return err
		}
	}
	if parent, ok := nn.nodespaces[ns.ParentUID]; ok {
		delete(parent.Children, uid)
	}
	delete(nn.nodespaces, uid)
	return nil
}

func (nn *Nodenet) RenameNodespace(uid, name string) error {
	ns, ok := nn.nodespaces[uid]
	if !ok {
		return NotFoundf("nodespace", uid)
	}
	ns.Name = name
	return nil
}

// MoveNodespace reparents a nodespace under newParentUID and updates its
// advisory position. Root cannot be moved, and a nodespace cannot be moved
// into its own subtree.
func (nn *Nodenet) MoveNodespace(uid, newParentUID string, position [2]float64) error {
	if uid == RootNodespaceUID {
		return InvalidArgumentf("cannot move the Root nodespace")
	}
	ns, ok := nn.nodespaces[uid]
	if !ok {
		return NotFoundf("nodespace", uid)
	}
	if newParentUID == "" {
		newParentUID = RootNodespaceUID
	}
	newParent, ok := nn.nodespaces[newParentUID]
	if !ok {
		return NotFoundf("nodespace", newParentUID)
	}
	for cursor := newParentUID; cursor != ""; {
		if cursor == uid {
			return InvalidArgumentf("cannot move nodespace %q into its own subtree", uid)
		}
		ancestor, ok := nn.nodespaces[cursor]
		if !ok {
			break
		}
		cursor = ancestor.ParentUID
	}
	if oldParent, ok := nn.nodespaces[ns.ParentUID]; ok {
		delete(oldParent.Children, uid)
	}
	ns.ParentUID = newParentUID
	ns.Position = position
	newParent.Children[uid] = struct{}{}
	return nil
}

func copyStringSet(s map[string]struct{}) map[string]struct{} {
	out := make(map[string]struct{}, len(s))
	for k := range s {
		out[k] = struct{}{}
	}
	return out
}

// --- Nodes ------------------------------------------------------------

func (nn *Nodenet) GetNode(uid string) (*Node, error) {
	n, ok := nn.nodes[uid]
	if !ok {
		return nil, NotFoundf("node", uid)
	}
	return n, nil
}

// CreateNode allocates a node of the given type in nodespaceUID, with all
// gates/slots its nodetype declares, each pre-populated with the default
// sheaf at activation 0.
func (nn *Nodenet) CreateNode(nodespaceUID, nodetypeName, name string, position [2]float64, parameters map[string]interface{}) (*Node, error) {
	if nodespaceUID == "" {
		nodespaceUID = RootNodespaceUID
	}
	ns, ok := nn.nodespaces[nodespaceUID]
	if !ok {
		return nil, NotFoundf("nodespace", nodespaceUID)
	}
	nt, ok := nn.nodetypes.Get(nodetypeName)
	if !ok {
		return nil, InvalidArgumentf("unknown nodetype %q", nodetypeName)
	}

	uid := nn.nextUID("n")
	node := &Node{
		UID:             uid,
		Type:            nodetypeName,
		ParentNodespace: nodespaceUID,
		Name:            name,
		Position:        position,
		Parameters:      make(map[string]interface{}),
		State:           make(map[string]interface{}),
		Gates:           make(map[string]*Gate),
		Slots:           make(map[string]*Slot),
	}
	for k, v := range nt.ParameterDefaults {
		node.Parameters[k] = v
	}
	for k, v := range parameters {
		node.Parameters[k] = v
	}
	for _, gateName := range nt.GateNames {
		params := nn.gateDefaults
		if gd, ok := nt.GateDefaults[gateName]; ok {
			params = gd
		}
		node.Gates[gateName] = newGate(gateName, uid, params)
		node.GateOrder = append(node.GateOrder, gateName)
	}
	for _, slotName := range nt.SlotNames {
		node.Slots[slotName] = newSlot(slotName, uid)
		node.SlotOrder = append(node.SlotOrder, slotName)
	}

	nn.nodes[uid] = node
	nn.nodeOrder = append(nn.nodeOrder, uid)
	ns.Nodes[uid] = struct{}{}
	return node, nil
}

// DeleteNode removes a node, every link touching it, and its membership in
// its nodespace.
func (nn *Nodenet) DeleteNode(uid string) error {
	node, ok := nn.nodes[uid]
	if !ok {
		return NotFoundf("node", uid)
	}
	for _, gate := range node.Gates {
		for linkUID := range copyStringSet(gate.Outgoing) {
			_ = nn.removeLink(linkUID)
		}
	}
	for _, slot := range node.Slots {
		for linkUID := range copyStringSet(slot.Incoming) {
			_ = nn.removeLink(linkUID)
		}
	}
	if ns, ok := nn.nodespaces[node.ParentNodespace]; ok {
		delete(ns.Nodes, uid)
		if node.Type == "Activator" {
			if typeParam, _ := node.GetParameter("type"); typeParam != nil {
				if t, ok := typeParam.(string); ok {
					delete(ns.Activators, t)
				}
			}
		}
	}
	delete(nn.nodes, uid)
	for i, u := range nn.nodeOrder {
		if u == uid {
			nn.nodeOrder = append(nn.nodeOrder[:i], nn.nodeOrder[i+1:]...)
			break
		}
	}
	return nil
}

// GetNodes returns every node in nodespaceUID (or the whole net if empty),
// optionally filtered by a name prefix.
func (nn *Nodenet) GetNodes(nodespaceUID, namePrefix string) []*Node {
	var uids []string
	if nodespaceUID == "" {
		uids = nn.nodeOrder
	} else if ns, ok := nn.nodespaces[nodespaceUID]; ok {
		for uid := range ns.Nodes {
			uids = append(uids, uid)
		}
	}
	out := make([]*Node, 0, len(uids))
	for _, uid := range uids {
		node := nn.nodes[uid]
		if node == nil {
			continue
		}
		if namePrefix != "" && !strings.HasPrefix(node.Name, namePrefix) {
			continue
		}
		out = append(out, node)
	}
	return out
}

// GetNodesActive returns nodes in nodespaceUID whose named gate's (default:
// "gen") given sheaf activation is at or above minActivation.
func (nn *Nodenet) GetNodesActive(nodespaceUID, nodetypeName string, minActivation float64, gateName, sheafID string) []*Node {
	if gateName == "" {
		gateName = "gen"
	}
	if sheafID == "" {
		sheafID = DefaultSheaf
	}
	var out []*Node
	for _, node := range nn.GetNodes(nodespaceUID, "") {
		if nodetypeName != "" && node.Type != nodetypeName {
			continue
		}
		gate, ok := node.Gates[gateName]
		if !ok {
			continue
		}
		sh, ok := gate.Sheaves[sheafID]
		if !ok {
			continue
		}
		if sh.Activation >= minActivation {
			out = append(out, node)
		}
	}
	return out
}

// GetNodesInGateField returns nodes reachable by following node's outgoing
// links from gateName (or every gate if empty), excluding target nodes
// whose type is in excludedGateTypes, optionally restricted to nodespaceUID.
func (nn *Nodenet) GetNodesInGateField(node *Node, gateName string, excludedGateTypes []string, nodespaceUID string) []*Node {
	excluded := make(map[string]struct{}, len(excludedGateTypes))
	for _, t := range excludedGateTypes {
		excluded[t] = struct{}{}
	}
	seen := make(map[string]struct{})
	var out []*Node
	for name, gate := range node.Gates {
		if gateName != "" && name != gateName {
			continue
		}
		for linkUID := range gate.Outgoing {
			link, ok := nn.links[linkUID]
			if !ok {
				continue
			}
			target, ok := nn.nodes[link.TargetNode]
			if !ok {
				continue
			}
			if _, bad := excluded[target.Type]; bad {
				continue
			}
			if nodespaceUID != "" && target.ParentNodespace != nodespaceUID {
				continue
			}
			if _, dup := seen[target.UID]; dup {
				continue
			}
			seen[target.UID] = struct{}{}
			out = append(out, target)
		}
	}
	return out
}

// GetNodesInSlotField is the symmetric variant of GetNodesInGateField,
// following incoming links into node's named slot.
func (nn *Nodenet) GetNodesInSlotField(node *Node, slotName string, excludedSlotTypes []string, nodespaceUID string) []*Node {
	excluded := make(map[string]struct{}, len(excludedSlotTypes))
	for _, t := range excludedSlotTypes {
		excluded[t] = struct{}{}
	}
	seen := make(map[string]struct{})
	var out []*Node
	for name, slot := range node.Slots {
		if slotName != "" && name != slotName {
			continue
		}
		for linkUID := range slot.Incoming {
			link, ok := nn.links[linkUID]
			if !ok {
				continue
			}
			source, ok := nn.nodes[link.SourceNode]
			if !ok {
				continue
			}
			if _, bad := excluded[source.Type]; bad {
				continue
			}
			if nodespaceUID != "" && source.ParentNodespace != nodespaceUID {
				continue
			}
			if _, dup := seen[source.UID]; dup {
				continue
			}
			seen[source.UID] = struct{}{}
			out = append(out, source)
		}
	}
	return out
}

// --- Standing class queries ---------------------------------------------

func (nn *Nodenet) GetNativeModules(nodespaceUID string) map[string]*Node {
	out := make(map[string]*Node)
	for _, node := range nn.GetNodes(nodespaceUID, "") {
		if !IsStandardNodetype(node.Type) {
			out[node.UID] = node
		}
	}
	return out
}

func (nn *Nodenet) GetActivators(nodespaceUID, activatorType string) map[string]*Node {
	out := make(map[string]*Node)
	for _, node := range nn.GetNodes(nodespaceUID, "") {
		if node.Type != "Activator" {
			continue
		}
		if activatorType != "" {
			t, _ := node.GetParameter("type")
			if s, ok := t.(string); !ok || s != activatorType {
				continue
			}
		}
		out[node.UID] = node
	}
	return out
}

func (nn *Nodenet) GetSensors(nodespaceUID string) map[string]*Node {
	out := make(map[string]*Node)
	for _, node := range nn.GetNodes(nodespaceUID, "") {
		if node.Type == "Sensor" {
			out[node.UID] = node
		}
	}
	return out
}

func (nn *Nodenet) GetActors(nodespaceUID string) map[string]*Node {
	out := make(map[string]*Node)
	for _, node := range nn.GetNodes(nodespaceUID, "") {
		if node.Type == "Actor" {
			out[node.UID] = node
		}
	}
	return out
}

// --- Links ------------------------------------------------------------

// Link creates a directed link from sourceUID.gateName to
// targetUID.slotName. A second call with the same endpoints overwrites the
// existing link's weight and certainty instead of creating a duplicate.
func (nn *Nodenet) Link(sourceUID, gateName, targetUID, slotName string, weight, certainty float64) (*Link, error) {
	source, ok := nn.nodes[sourceUID]
	if !ok {
		return nil, NotFoundf("node", sourceUID)
	}
	target, ok := nn.nodes[targetUID]
	if !ok {
		return nil, NotFoundf("node", targetUID)
	}
	gate, ok := source.Gates[gateName]
	if !ok {
		return nil, InvalidArgumentf("node %q has no gate %q", sourceUID, gateName)
	}
	slot, ok := target.Slots[slotName]
	if !ok {
		return nil, InvalidArgumentf("node %q has no slot %q", targetUID, slotName)
	}

	for linkUID := range gate.Outgoing {
		existing := nn.links[linkUID]
		if existing != nil && existing.TargetNode == targetUID && existing.TargetSlot == slotName {
			existing.Weight = weight
			existing.Certainty = certainty
			return existing, nil
		}
	}

	uid := nn.nextUID("l")
	link := &Link{
		UID:        uid,
		SourceNode: sourceUID,
		SourceGate: gateName,
		TargetNode: targetUID,
		TargetSlot: slotName,
		Weight:     weight,
		Certainty:  certainty,
	}
	nn.links[uid] = link
	gate.Outgoing[uid] = struct{}{}
	slot.Incoming[uid] = struct{}{}
	return link, nil
}

func (nn *Nodenet) removeLink(uid string) error {
	link, ok := nn.links[uid]
	if !ok {
		return NotFoundf("link", uid)
	}
	if source, ok := nn.nodes[link.SourceNode]; ok {
		if gate, ok := source.Gates[link.SourceGate]; ok {
			delete(gate.Outgoing, uid)
		}
	}
	if target, ok := nn.nodes[link.TargetNode]; ok {
		if slot, ok := target.Slots[link.TargetSlot]; ok {
			delete(slot.Incoming, uid)
		}
	}
	delete(nn.links, uid)
	return nil
}

// Unlink removes a single link by uid.
func (nn *Nodenet) Unlink(linkUID string) error {
	return nn.removeLink(linkUID)
}

// UnlinkDirection removes every link from sourceUID matching the supplied
// non-empty subset of (gateName, targetUID, slotName).
func (nn *Nodenet) UnlinkDirection(sourceUID, gateName, targetUID, slotName string) error {
	source, ok := nn.nodes[sourceUID]
	if !ok {
		return NotFoundf("node", sourceUID)
	}
	var toRemove []string
	for gName, gate := range source.Gates {
		if gateName != "" && gName != gateName {
			continue
		}
		for linkUID := range gate.Outgoing {
			link := nn.links[linkUID]
			if link == nil {
				continue
			}
			if targetUID != "" && link.TargetNode != targetUID {
				continue
			}
			if slotName != "" && link.TargetSlot != slotName {
				continue
			}
			toRemove = append(toRemove, linkUID)
		}
	}
	for _, uid := range toRemove {
		if err := nn.removeLink(uid); err != nil {
			return err
		}
	}
	return nil
}

// CopyNodes bulk-copies nodeUIDs into targetNodespaceUID under fresh uids,
// rewriting the links between copied nodes onto the copies when
// copyAssociatedLinks is set.
func (nn *Nodenet) CopyNodes(nodeUIDs []string, targetNodespaceUID string, copyAssociatedLinks bool) (map[string]string, error) {
	if _, ok := nn.nodespaces[targetNodespaceUID]; !ok {
		return nil, NotFoundf("nodespace", targetNodespaceUID)
	}
	uidMap := make(map[string]string, len(nodeUIDs))
	for _, srcUID := range nodeUIDs {
		src, ok := nn.nodes[srcUID]
		if !ok {
			return nil, NotFoundf("node", srcUID)
		}
		params := make(map[string]interface{}, len(src.Parameters))
		for k, v := range src.Parameters {
			params[k] = v
		}
		copyNode, err := nn.CreateNode(targetNodespaceUID, src.Type, src.Name, src.Position, params)
		if err != nil {
			return nil, err
		}
		for gateName, gate := range src.Gates {
			if cg, ok := copyNode.Gates[gateName]; ok {
				cg.Parameters = gate.Parameters
			}
		}
		uidMap[srcUID] = copyNode.UID
	}

	if copyAssociatedLinks {
		for _, link := range nn.links {
			newSource, sourceCopied := uidMap[link.SourceNode]
			newTarget, targetCopied := uidMap[link.TargetNode]
			if !sourceCopied || !targetCopied {
				continue
			}
			if _, err := nn.Link(newSource, link.SourceGate, newTarget, link.TargetSlot, link.Weight, link.Certainty); err != nil {
				return nil, err
			}
		}
	}
	return uidMap, nil
}

// MoveNodes moves nodeUIDs into targetNodespaceUID within the same nodenet
// as copy-then-delete, links preserved between the moved nodes.
func (nn *Nodenet) MoveNodes(nodeUIDs []string, targetNodespaceUID string) (map[string]string, error) {
	uidMap, err := nn.CopyNodes(nodeUIDs, targetNodespaceUID, true)
	if err != nil {
		return nil, err
	}
	for _, srcUID := range nodeUIDs {
		if err := nn.DeleteNode(srcUID); err != nil {
			return nil, err
		}
	}
	return uidMap, nil
}

// --- Monitors -----------------------------------------------------------

func (nn *Nodenet) AddMonitor(nodeUID, terminalKind, terminalName, sheafID string) (*Monitor, error) {
	if _, ok := nn.nodes[nodeUID]; !ok {
		return nil, NotFoundf("node", nodeUID)
	}
	uid := nn.nextUID("m")
	m := newMonitor(uid, nodeUID, terminalKind, terminalName, sheafID)
	nn.monitors[uid] = m
	return m, nil
}

func (nn *Nodenet) RemoveMonitor(uid string) error {
	if _, ok := nn.monitors[uid]; !ok {
		return NotFoundf("monitor", uid)
	}
	delete(nn.monitors, uid)
	return nil
}

func (nn *Nodenet) GetMonitor(uid string) (*Monitor, error) {
	m, ok := nn.monitors[uid]
	if !ok {
		return nil, NotFoundf("monitor", uid)
	}
	return m, nil
}

func (nn *Nodenet) sampleMonitors() {
	for _, m := range nn.monitors {
		node, ok := nn.nodes[m.NodeUID]
		if !ok {
			continue
		}
		value := 0.0
		switch m.TerminalKind {
		case "gate":
			if gate, ok := node.Gates[m.TerminalName]; ok {
				if sh, ok := gate.Sheaves[m.Sheaf]; ok {
					value = sh.Activation
				}
			}
		case "slot":
			if slot, ok := node.Slots[m.TerminalName]; ok {
				if sh, ok := slot.Sheaves[m.Sheaf]; ok {
					value = sh.Activation
				}
			}
		}
		m.record(nn.CurrentStep, value)
	}
}

// UserPrompt returns the pending user prompt set by NetAPI.NotifyUser or
// NetAPI.AskUserForParameter during the last step, if any.
func (nn *Nodenet) UserPrompt() *UserPrompt {
	return nn.userPrompt
}

func (nn *Nodenet) clearUserPrompt() {
	nn.userPrompt = nil
}
