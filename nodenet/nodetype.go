package nodenet

// Nodetype is a named, dynamically-looked-up vertex schema: an ordered
// gate/slot layout, a parameter schema, and a node function. Polymorphism
// on node type is by registry lookup, never by Go subtyping.
type Nodetype struct {
	Name              string
	GateNames         []string
	SlotNames         []string
	ParameterNames    []string
	ParameterDefaults map[string]interface{}
	GateDefaults      map[string]GateParameters
	NodeFunction      NodeFunction
}

// NodeFunction is one node's per-step update callable; it reads the node's
// slots and parameters and writes its gates, reaching the rest of the net
// only through the netapi facade.
type NodeFunction func(api *NetAPI, node *Node) error

// standardNodetypeNames are the built-in types; anything else registered is
// a native module.
var standardNodetypeNames = map[string]struct{}{
	"Register":  {},
	"Pipe":      {},
	"Sensor":    {},
	"Actor":     {},
	"Activator": {},
}

// IsStandardNodetype reports whether name is one of the built-in types.
func IsStandardNodetype(name string) bool {
	_, ok := standardNodetypeNames[name]
	return ok
}

// pipeGateNames is the full directional gate/slot set a Pipe exposes.
var pipeGateNames = []string{"gen", "por", "ret", "sub", "sur", "cat", "exp", "sym", "ref"}

// reciprocalGateNames maps a linktype used by NetAPI.LinkWithReciprocal to the
// (forward, reciprocal) gate/slot name pair.
var reciprocalGateNames = map[string][2]string{
	"subsur": {"sub", "sur"},
	"porret": {"por", "ret"},
	"catexp": {"cat", "exp"},
	"symref": {"sym", "ref"},
}

func registerBuiltinNodetype(r *Nodetype) {
	builtinNodetypeRegistry[r.Name] = r
}

var builtinNodetypeRegistry = map[string]*Nodetype{}

func init() {
	registerBuiltinNodetype(&Nodetype{
		Name:         "Register",
		GateNames:    []string{"gen"},
		SlotNames:    []string{"gen"},
		GateDefaults: map[string]GateParameters{},
		NodeFunction: registerNodeFunction,
	})
	registerBuiltinNodetype(&Nodetype{
		Name:         "Pipe",
		GateNames:    append([]string(nil), pipeGateNames...),
		SlotNames:    append([]string(nil), pipeGateNames...),
		GateDefaults: map[string]GateParameters{},
		NodeFunction: pipeNodeFunction,
	})
	registerBuiltinNodetype(&Nodetype{
		Name:              "Sensor",
		GateNames:         []string{"gen"},
		SlotNames:         nil,
		ParameterNames:    []string{"datasource"},
		ParameterDefaults: map[string]interface{}{"datasource": ""},
		GateDefaults:      map[string]GateParameters{},
		NodeFunction:      sensorNodeFunction,
	})
	registerBuiltinNodetype(&Nodetype{
		Name:              "Actor",
		GateNames:         nil,
		SlotNames:         []string{"gen"},
		ParameterNames:    []string{"datatarget"},
		ParameterDefaults: map[string]interface{}{"datatarget": ""},
		GateDefaults:      map[string]GateParameters{},
		NodeFunction:      actorNodeFunction,
	})
	registerBuiltinNodetype(&Nodetype{
		Name:              "Activator",
		GateNames:         []string{"gen"},
		SlotNames:         []string{"gen"},
		ParameterNames:    []string{"type"},
		ParameterDefaults: map[string]interface{}{"type": "por"},
		GateDefaults:      map[string]GateParameters{},
		NodeFunction:      activatorNodeFunction,
	})
}

// NodetypeRegistry is a lookup covering built-ins, merged with the extra
// native-module manifests registered against a Nodenet.
type NodetypeRegistry struct {
	nativeModules map[string]*Nodetype
}

func newNodetypeRegistry() *NodetypeRegistry {
	return &NodetypeRegistry{nativeModules: make(map[string]*Nodetype)}
}

func (r *NodetypeRegistry) Get(name string) (*Nodetype, bool) {
	if nt, ok := builtinNodetypeRegistry[name]; ok {
		return nt, true
	}
	nt, ok := r.nativeModules[name]
	return nt, ok
}

func (r *NodetypeRegistry) RegisterNativeModule(nt *Nodetype) error {
	if IsStandardNodetype(nt.Name) {
		return InvalidArgumentf("cannot register native module %q: shadows a standard nodetype", nt.Name)
	}
	r.nativeModules[nt.Name] = nt
	return nil
}

func (r *NodetypeRegistry) UnregisterNativeModule(name string) {
	delete(r.nativeModules, name)
}

func (r *NodetypeRegistry) NativeModuleNames() []string {
	names := make([]string, 0, len(r.nativeModules))
	for name := range r.nativeModules {
		names = append(names, name)
	}
	return names
}
