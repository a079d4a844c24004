package nodenet

import (
	"strings"

	"go.uber.org/zap"
)

// NetAPI is the safe, stable surface node functions, recipes and native
// modules use to read/mutate the net and its locks during a step. It is
// the only contract a native module has with the engine.
type NetAPI struct {
	nn *Nodenet
}

func newNetAPI(nn *Nodenet) *NetAPI {
	return &NetAPI{nn: nn}
}

func (api *NetAPI) UID() string                { return api.nn.UID }
func (api *NetAPI) Step() int                  { return api.nn.CurrentStep }
func (api *NetAPI) World() WorldAdapter        { return api.nn.world }
func (api *NetAPI) Logger() *zap.SugaredLogger { return api.nn.logger }

func (api *NetAPI) GetNodespace(uid string) (*Nodespace, error) { return api.nn.GetNodespace(uid) }
func (api *NetAPI) GetNode(uid string) (*Node, error)           { return api.nn.GetNode(uid) }

func (api *NetAPI) GetNodes(nodespaceUID, namePrefix string) []*Node {
	return api.nn.GetNodes(nodespaceUID, namePrefix)
}

func (api *NetAPI) GetNodesInGateField(node *Node, gateName string, excludedGateTypes []string, nodespaceUID string) []*Node {
	return api.nn.GetNodesInGateField(node, gateName, excludedGateTypes, nodespaceUID)
}

func (api *NetAPI) GetNodesInSlotField(node *Node, slotName string, excludedSlotTypes []string, nodespaceUID string) []*Node {
	return api.nn.GetNodesInSlotField(node, slotName, excludedSlotTypes, nodespaceUID)
}

func (api *NetAPI) GetNodesActive(nodespaceUID, nodetypeName string, minActivation float64, gateName, sheafID string) []*Node {
	return api.nn.GetNodesActive(nodespaceUID, nodetypeName, minActivation, gateName, sheafID)
}

// CreateNode creates a new node of nodetypeName in nodespaceUID.
func (api *NetAPI) CreateNode(nodespaceUID, nodetypeName, name string) (*Node, error) {
	pos := [2]float64{api.nn.MaxCoords[0] + 50, 100}
	return api.nn.CreateNode(nodespaceUID, nodetypeName, name, pos, nil)
}

func (api *NetAPI) DeleteNode(node *Node) error {
	return api.nn.DeleteNode(node.UID)
}

// Link creates, or updates the weight/certainty of, a link between two
// nodes.
func (api *NetAPI) Link(sourceNode *Node, sourceGate string, targetNode *Node, targetSlot string, weight, certainty float64) error {
	_, err := api.nn.Link(sourceNode.UID, sourceGate, targetNode.UID, targetSlot, weight, certainty)
	return err
}

// LinkWithReciprocal creates both directions of one of the four canonical
// reciprocal link types (subsur, porret, catexp, symref), falling back to
// gen on either side when the canonical terminal is absent.
func (api *NetAPI) LinkWithReciprocal(sourceNode, targetNode *Node, linktype string, weight, certainty float64) error {
	names, ok := reciprocalGateNames[linktype]
	if !ok {
		return InvalidArgumentf("unknown reciprocal link type %q", linktype)
	}
	forwardGate, reciprocalGate := names[0], names[1]

	forwardSlot := forwardGate
	if _, ok := targetNode.Slots[forwardGate]; !ok {
		forwardSlot = "gen"
	}
	reciprocalSlot := reciprocalGate
	if _, ok := sourceNode.Slots[reciprocalGate]; !ok {
		reciprocalSlot = "gen"
	}

	if _, err := api.nn.Link(sourceNode.UID, forwardGate, targetNode.UID, forwardSlot, weight, certainty); err != nil {
		return err
	}
	_, err := api.nn.Link(targetNode.UID, reciprocalGate, sourceNode.UID, reciprocalSlot, weight, certainty)
	return err
}

// LinkFull creates reciprocal links between every pair of nodes in nodes,
// self-pairs included.
func (api *NetAPI) LinkFull(nodes []*Node, linktype string, weight, certainty float64) error {
	if linktype == "" {
		linktype = "porret"
	}
	for _, source := range nodes {
		for _, target := range nodes {
			if err := api.LinkWithReciprocal(source, target, linktype, weight, certainty); err != nil {
				return err
			}
		}
	}
	return nil
}

func (api *NetAPI) Unlink(sourceNode *Node, sourceGate string, targetNode *Node, targetSlot string) error {
	targetUID := ""
	if targetNode != nil {
		targetUID = targetNode.UID
	}
	return api.nn.UnlinkDirection(sourceNode.UID, sourceGate, targetUID, targetSlot)
}

func (api *NetAPI) UnlinkDirection(node *Node, gateOrSlot string) error {
	if err := api.nn.UnlinkDirection(node.UID, gateOrSlot, "", ""); err != nil {
		return err
	}
	for slotName, slot := range node.Slots {
		if gateOrSlot != "" && gateOrSlot != slotName {
			continue
		}
		for linkUID := range copyStringSet(slot.Incoming) {
			link := api.nn.links[linkUID]
			if link == nil {
				continue
			}
			if err := api.nn.removeLink(linkUID); err != nil {
				return err
			}
		}
	}
	return nil
}

// LinkActor links node to an Actor bound to datatarget, creating the actor
// in node's nodespace if none yet exists for that datatarget.
func (api *NetAPI) LinkActor(node *Node, datatarget string, weight, certainty float64, gateName, slotName string) error {
	if gateName == "" {
		gateName = "sub"
	}
	if slotName == "" {
		slotName = "sur"
	}
	var actor *Node
	for _, candidate := range api.nn.GetActors(node.ParentNodespace) {
		if v, _ := candidate.GetParameter("datatarget"); v == datatarget {
			actor = candidate
			break
		}
	}
	if actor == nil {
		var err error
		actor, err = api.CreateNode(node.ParentNodespace, "Actor", datatarget)
		if err != nil {
			return err
		}
		actor.SetParameter("datatarget", datatarget)
	}
	return api.Link(node, gateName, actor, "gen", weight, certainty)
}

// LinkSensor links node to a Sensor bound to datasource, creating the
// sensor in node's nodespace if none yet exists for that datasource.
func (api *NetAPI) LinkSensor(node *Node, datasource string, slotName string) error {
	if slotName == "" {
		slotName = "sur"
	}
	var sensor *Node
	for _, candidate := range api.nn.GetSensors(node.ParentNodespace) {
		if v, _ := candidate.GetParameter("datasource"); v == datasource {
			sensor = candidate
			break
		}
	}
	if sensor == nil {
		var err error
		sensor, err = api.CreateNode(node.ParentNodespace, "Sensor", datasource)
		if err != nil {
			return err
		}
		sensor.SetParameter("datasource", datasource)
	}
	return api.Link(sensor, "gen", node, slotName, 1, 1)
}

// ImportActors ensures an Actor exists in nodespaceUID for every world
// datatarget matching prefix (or every datatarget if prefix is empty),
// querying the bound world adapter for the available names.
func (api *NetAPI) ImportActors(nodespaceUID, prefix string) ([]*Node, error) {
	if api.nn.world == nil {
		return nil, nil
	}
	availableDatatargets := api.nn.world.GetAvailableDataTargets(api.nn.UID)
	var out []*Node
	for _, datatarget := range availableDatatargets {
		if prefix != "" && !strings.HasPrefix(datatarget, prefix) {
			continue
		}
		var actor *Node
		for _, candidate := range api.nn.GetActors(nodespaceUID) {
			if v, _ := candidate.GetParameter("datatarget"); v == datatarget {
				actor = candidate
				break
			}
		}
		if actor == nil {
			var err error
			actor, err = api.CreateNode(nodespaceUID, "Actor", datatarget)
			if err != nil {
				return nil, err
			}
			actor.SetParameter("datatarget", datatarget)
		}
		out = append(out, actor)
	}
	return out, nil
}

// ImportSensors is the symmetric variant of ImportActors for world
// datasources.
func (api *NetAPI) ImportSensors(nodespaceUID, prefix string) ([]*Node, error) {
	if api.nn.world == nil {
		return nil, nil
	}
	availableDatasources := api.nn.world.GetAvailableDataSources(api.nn.UID)
	var out []*Node
	for _, datasource := range availableDatasources {
		if prefix != "" && !strings.HasPrefix(datasource, prefix) {
			continue
		}
		var sensor *Node
		for _, candidate := range api.nn.GetSensors(nodespaceUID) {
			if v, _ := candidate.GetParameter("datasource"); v == datasource {
				sensor = candidate
				break
			}
		}
		if sensor == nil {
			var err error
			sensor, err = api.CreateNode(nodespaceUID, "Sensor", datasource)
			if err != nil {
				return nil, err
			}
			sensor.SetParameter("datasource", datasource)
		}
		out = append(out, sensor)
	}
	return out, nil
}

// SetGateFunction installs a per-(nodetype,gate) override expression within
// nodespaceUID.
func (api *NetAPI) SetGateFunction(nodespaceUID, nodetype, gateName, source string) error {
	return api.nn.SetGateFunctionOverride(nodespaceUID, nodetype, gateName, source)
}

func (api *NetAPI) IsLocked(name string) bool            { return api.nn.locks.IsLocked(name) }
func (api *NetAPI) IsLockedBy(name, key string) bool     { return api.nn.locks.IsLockedBy(name, key) }
func (api *NetAPI) Lock(name, key string, ttl int) error { return api.nn.AcquireLock(name, key, ttl) }

// Unlock defers removal of name to the end of the current step, so node
// functions evaluated later in the same tick still see the lock held.
func (api *NetAPI) Unlock(name string) { api.nn.locks.Unlock(name) }

// NotifyUser sets a user prompt snapshot and deactivates the runner.
func (api *NetAPI) NotifyUser(node *Node, msg string) {
	api.nn.userPrompt = &UserPrompt{NodeUID: node.UID, Message: msg}
	api.nn.IsActive = false
}

// AskUserForParameter is NotifyUser plus a set of parameter options the
// caller should present to the user.
func (api *NetAPI) AskUserForParameter(node *Node, msg string, options []interface{}) {
	api.nn.userPrompt = &UserPrompt{NodeUID: node.UID, Message: msg, Options: options}
	api.nn.IsActive = false
}

// _step flushes deferred unlocks queued via Unlock during the step that
// just ran node functions.
func (api *NetAPI) _step() {
	api.nn.locks.flushDeferredUnlocks()
}
