package nodenet

import (
	"encoding/json"
	"os"
	"strconv"
)

// Recipe is a named, parameterized script invoked once (not per step)
// through the netapi facade, the same trust boundary native modules use.
type Recipe struct {
	Name           string
	ParameterNames []string
	Run            func(api *NetAPI, params map[string]interface{}) error
}

// Control is the synchronous, single-process control surface: nodenet
// lifecycle, runner control, node/link CRUD, parameter setters, monitor
// CRUD, native-module reload, recipe enumeration/run. Every call that takes
// a *Nodenet acquires that nodenet's mutation lock, which also serializes
// against any running step; NewNodenet, DeleteNodenet, RegisterRecipe and
// ListRecipes take no nodenet lock.
type Control struct {
	Runtime *Runtime
	recipes map[string]*Recipe

	savedPaths map[string]string
}

// NewControl wraps rt with the control-surface API.
func NewControl(rt *Runtime) *Control {
	return &Control{
		Runtime:    rt,
		recipes:    make(map[string]*Recipe),
		savedPaths: make(map[string]string),
	}
}

// --- Nodenet lifecycle -----------------------------------------------

func (c *Control) NewNodenet(uid, owner, name, worldUID string) (*Nodenet, error) {
	return c.Runtime.NewNodenet(uid, owner, name, worldUID)
}

func (c *Control) DeleteNodenet(uid string) error {
	delete(c.savedPaths, uid)
	return c.Runtime.DeleteNodenet(uid)
}

// SaveNodenet writes nn's current state to path as a JSON document,
// remembering path for a later Revert.
func (c *Control) SaveNodenet(nn *Nodenet, path string) error {
	nn.Lock()
	defer nn.Unlock()
	raw, err := json.MarshalIndent(nn.Export(), "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return err
	}
	c.savedPaths[nn.UID] = path
	return nil
}

// LoadNodenet replaces nn's graph with the document at path.
func (c *Control) LoadNodenet(nn *Nodenet, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	doc, err := LoadNodenetDocument(raw)
	if err != nil {
		return err
	}
	nn.Lock()
	defer nn.Unlock()
	if err := nn.Load(doc); err != nil {
		return err
	}
	c.savedPaths[nn.UID] = path
	return nil
}

// RevertNodenet reloads nn from the path it was last saved to or loaded
// from, discarding any mutation since.
func (c *Control) RevertNodenet(nn *Nodenet) error {
	path, ok := c.savedPaths[nn.UID]
	if !ok {
		return InvalidArgumentf("nodenet %q has no known save path to revert to", nn.UID)
	}
	return c.LoadNodenet(nn, path)
}

func (c *Control) ExportNodenet(nn *Nodenet) *NodenetDocument {
	nn.Lock()
	defer nn.Unlock()
	return nn.Export()
}

func (c *Control) ImportNodenet(nn *Nodenet, doc *NodenetDocument) error {
	nn.Lock()
	defer nn.Unlock()
	return nn.Load(doc)
}

// MergeNodenet merges doc's contents on top of nn's current graph,
// returning any drop/collision warnings.
func (c *Control) MergeNodenet(nn *Nodenet, doc *NodenetDocument) []string {
	nn.Lock()
	defer nn.Unlock()
	return nn.Merge(doc)
}

// --- Runner control -----------------------------------------------------

func (c *Control) StartRunner(nn *Nodenet) {
	nn.Lock()
	defer nn.Unlock()
	nn.IsActive = true
}

func (c *Control) StopRunner(nn *Nodenet) {
	nn.Lock()
	defer nn.Unlock()
	nn.IsActive = false
}

// StepNodenet runs exactly one step regardless of IsActive; a runner loop
// built on top of Control is expected to check IsActive itself between
// calls, so an in-flight step always runs to completion.
func (c *Control) StepNodenet(nn *Nodenet) (*StepResult, error) {
	nn.Lock()
	defer nn.Unlock()
	return nn.Step()
}

// SetTimestep records the runner loop's intended inter-step delay, in
// milliseconds, as nodenet metadata; the step engine itself is
// timestep-agnostic.
func (c *Control) SetTimestep(nn *Nodenet, milliseconds int) {
	nn.Lock()
	defer nn.Unlock()
	if nn.Settings == nil {
		nn.Settings = make(map[string]string)
	}
	nn.Settings["timestep_ms"] = strconv.Itoa(milliseconds)
}

// --- Node / link CRUD -----------------------------------------------

func (c *Control) CreateNode(nn *Nodenet, nodespaceUID, nodetypeName, name string, position [2]float64, parameters map[string]interface{}) (*Node, error) {
	nn.Lock()
	defer nn.Unlock()
	return nn.CreateNode(nodespaceUID, nodetypeName, name, position, parameters)
}

func (c *Control) DeleteNode(nn *Nodenet, uid string) error {
	nn.Lock()
	defer nn.Unlock()
	return nn.DeleteNode(uid)
}

// MoveNode updates a node's advisory position without touching the graph.
func (c *Control) MoveNode(nn *Nodenet, uid string, position [2]float64) error {
	nn.Lock()
	defer nn.Unlock()
	node, err := nn.GetNode(uid)
	if err != nil {
		return err
	}
	node.Position = position
	return nil
}

func (c *Control) CreateLink(nn *Nodenet, sourceUID, gateName, targetUID, slotName string, weight, certainty float64) (*Link, error) {
	nn.Lock()
	defer nn.Unlock()
	return nn.Link(sourceUID, gateName, targetUID, slotName, weight, certainty)
}

func (c *Control) DeleteLink(nn *Nodenet, uid string) error {
	nn.Lock()
	defer nn.Unlock()
	return nn.Unlink(uid)
}

// --- Parameter / gate-parameter setters -------------------------------

func (c *Control) SetNodeParameter(nn *Nodenet, uid, key string, value interface{}) error {
	nn.Lock()
	defer nn.Unlock()
	node, err := nn.GetNode(uid)
	if err != nil {
		return err
	}
	node.SetParameter(key, value)
	return nil
}

func (c *Control) SetGateParameters(nn *Nodenet, uid, gateName string, params GateParameters) error {
	nn.Lock()
	defer nn.Unlock()
	node, err := nn.GetNode(uid)
	if err != nil {
		return err
	}
	gate, ok := node.Gates[gateName]
	if !ok {
		return InvalidArgumentf("node %q has no gate %q", uid, gateName)
	}
	gate.Parameters = params
	return nil
}

// --- Monitor CRUD -----------------------------------------------------

func (c *Control) AddMonitor(nn *Nodenet, nodeUID, terminalKind, terminalName, sheafID string) (*Monitor, error) {
	nn.Lock()
	defer nn.Unlock()
	return nn.AddMonitor(nodeUID, terminalKind, terminalName, sheafID)
}

func (c *Control) RemoveMonitor(nn *Nodenet, uid string) error {
	nn.Lock()
	defer nn.Unlock()
	return nn.RemoveMonitor(uid)
}

func (c *Control) GetMonitor(nn *Nodenet, uid string) (*Monitor, error) {
	nn.Lock()
	defer nn.Unlock()
	return nn.GetMonitor(uid)
}

// --- Native-module reload ----------------------------------------------

func (c *Control) ReloadNativeModules(nn *Nodenet, manifests []*Nodetype) ([]string, error) {
	return c.Runtime.ReloadNativeModules(nn, manifests)
}

// --- Recipes ------------------------------------------------------------

func (c *Control) RegisterRecipe(r *Recipe) {
	c.recipes[r.Name] = r
}

func (c *Control) ListRecipes() []string {
	names := make([]string, 0, len(c.recipes))
	for name := range c.recipes {
		names = append(names, name)
	}
	return names
}

// RunRecipe runs a registered recipe against nn's netapi.
func (c *Control) RunRecipe(nn *Nodenet, name string, params map[string]interface{}) error {
	recipe, ok := c.recipes[name]
	if !ok {
		return NotFoundf("recipe", name)
	}
	nn.Lock()
	defer nn.Unlock()
	return recipe.Run(nn.netapi, params)
}
