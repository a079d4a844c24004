package nodenet

import (
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// NativeModuleManifest describes a native module's schema and the source of
// its node function. The manifest is data; Source is opaque to the engine
// beyond being a compilable expression, and the module's only contract with
// the engine is the netapi surface its environment exposes.
type NativeModuleManifest struct {
	Name              string
	GateNames         []string
	SlotNames         []string
	ParameterNames    []string
	ParameterDefaults map[string]interface{}
	GateDefaults      map[string]GateParameters
	Source            string
}

// nativeModuleEnv is what a native module's compiled expression program can
// see and call: the node it was invoked for (read/write parameters and
// terminal sums) and the netapi facade (the engine's only other contract
// with it).
type nativeModuleEnv struct {
	Node   *nativeModuleNode
	NetAPI *NetAPI
}

// nativeModuleNode is the restricted node-facing surface exposed into a
// native module expression, so the compiled program can only reach what
// this struct's methods allow -- it cannot, for example, walk to arbitrary
// nodes without going through NetAPI.
type nativeModuleNode struct {
	node *Node
	nn   *Nodenet
}

func (n *nativeModuleNode) UID() string  { return n.node.UID }
func (n *nativeModuleNode) Type() string { return n.node.Type }

func (n *nativeModuleNode) GetParameter(key string) interface{} {
	v, _ := n.node.GetParameter(key)
	return v
}

// SetParameter stores value under key and returns it; expr only accepts
// calls to methods that return a value.
func (n *nativeModuleNode) SetParameter(key string, value interface{}) interface{} {
	n.node.SetParameter(key, value)
	return value
}

// SlotSum returns the named slot's sheaf sum (default sheaf if sheafID is
// empty).
func (n *nativeModuleNode) SlotSum(slotName, sheafID string) float64 {
	if sheafID == "" {
		sheafID = DefaultSheaf
	}
	slot, ok := n.node.Slots[slotName]
	if !ok {
		return 0
	}
	sh, ok := slot.Sheaves[sheafID]
	if !ok {
		return 0
	}
	return sh.Activation
}

// SetGate writes value into the named gate's sheaf, running it through the
// nodespace's gate function and Activator-gating rule exactly as the
// built-in node functions do.
func (n *nativeModuleNode) SetGate(gateName, sheafID string, value float64) error {
	if sheafID == "" {
		sheafID = DefaultSheaf
	}
	gate, ok := n.node.Gates[gateName]
	if !ok {
		return InvalidArgumentf("node %q has no gate %q", n.node.UID, gateName)
	}
	ns := n.nn.nodespaces[n.node.ParentNodespace]
	output, err := n.nn.evaluateGateFunction(ns, n.node, gateName, value, gate.Parameters)
	if err != nil {
		return err
	}
	if _, ok := gate.Sheaves[sheafID]; !ok {
		gate.Sheaves[sheafID] = &Sheaf{UID: sheafID, Name: sheafID}
	}
	gate.Sheaves[sheafID].Activation = output
	n.node.refreshActivationMirror()
	return nil
}

// nativeModuleCache compiles native module source once and reuses the
// compiled program across steps and nodes, keyed by source text, the same
// scheme gatefunction.go uses for gate-function overrides. A single
// package-level instance is shared by every nodenet in the process.
type nativeModuleCache struct {
	programs map[string]*vm.Program
}

func newNativeModuleCache() *nativeModuleCache {
	return &nativeModuleCache{programs: make(map[string]*vm.Program)}
}

func (c *nativeModuleCache) compile(source string) (*vm.Program, error) {
	if p, ok := c.programs[source]; ok {
		return p, nil
	}
	p, err := expr.Compile(source, expr.Env(nativeModuleEnv{}))
	if err != nil {
		return nil, fmt.Errorf("compiling native module source: %w", err)
	}
	c.programs[source] = p
	return p, nil
}

var globalNativeModuleCache = newNativeModuleCache()

// BuildNodetype compiles the manifest's Source once and returns a
// Nodetype ready for NodetypeRegistry.RegisterNativeModule.
func (m *NativeModuleManifest) BuildNodetype() (*Nodetype, error) {
	program, err := globalNativeModuleCache.compile(m.Source)
	if err != nil {
		return nil, err
	}
	return &Nodetype{
		Name:              m.Name,
		GateNames:         append([]string(nil), m.GateNames...),
		SlotNames:         append([]string(nil), m.SlotNames...),
		ParameterNames:    append([]string(nil), m.ParameterNames...),
		ParameterDefaults: m.ParameterDefaults,
		GateDefaults:      m.GateDefaults,
		NodeFunction: func(api *NetAPI, node *Node) error {
			env := nativeModuleEnv{
				Node:   &nativeModuleNode{node: node, nn: api.nn},
				NetAPI: api,
			}
			_, err := expr.Run(program, env)
			return err
		},
	}, nil
}

// RegisterNativeModule compiles manifest and installs it in nn's nodetype
// registry, so subsequently created nodes of that type use it.
func (nn *Nodenet) RegisterNativeModule(manifest *NativeModuleManifest) error {
	nt, err := manifest.BuildNodetype()
	if err != nil {
		return err
	}
	return nn.nodetypes.RegisterNativeModule(nt)
}
