package nodenet

// DefaultSheaf is the sheaf id that always exists on every gate and slot,
// for the entire life of the entity.
const DefaultSheaf = "default"

// Sheaf is a named activation lane carried in parallel across gates and
// slots.
type Sheaf struct {
	UID        string  `json:"uid"`
	Name       string  `json:"name"`
	Activation float64 `json:"activation"`
}

// GateParameters holds the recognized, defaulted tuning knobs of a gate.
type GateParameters struct {
	Minimum       float64 `json:"minimum"`
	Maximum       float64 `json:"maximum"`
	Threshold     float64 `json:"threshold"`
	Amplification float64 `json:"amplification"`
	Certainty     float64 `json:"certainty"`
	Decay         float64 `json:"decay"`
	Rho           float64 `json:"rho"`
	Theta         float64 `json:"theta"`
	SpreadSheaves bool    `json:"spreadsheaves"`
}

// DefaultGateParameters returns the global gate parameter defaults every
// gate starts from before its nodetype's gate defaults are merged over
// them.
func DefaultGateParameters() GateParameters {
	return GateParameters{
		Minimum:       -1,
		Maximum:       1,
		Threshold:     0,
		Amplification: 1,
		Certainty:     1,
		Decay:         0,
		Rho:           0,
		Theta:         0,
		SpreadSheaves: false,
	}
}

// Gate is a node's output terminal for one direction/type.
type Gate struct {
	Name       string
	OwnerNode  string
	Outgoing   map[string]struct{} // link uids
	Parameters GateParameters
	Sheaves    map[string]*Sheaf
}

func newGate(name, ownerNode string, params GateParameters) *Gate {
	return &Gate{
		Name:       name,
		OwnerNode:  ownerNode,
		Outgoing:   make(map[string]struct{}),
		Parameters: params,
		Sheaves: map[string]*Sheaf{
			DefaultSheaf: {UID: DefaultSheaf, Name: DefaultSheaf, Activation: 0},
		},
	}
}

// Slot is a node's input terminal for one direction/type.
type Slot struct {
	Name      string
	OwnerNode string
	Incoming  map[string]struct{} // link uids
	Sheaves   map[string]*Sheaf
}

func newSlot(name, ownerNode string) *Slot {
	return &Slot{
		Name:      name,
		OwnerNode: ownerNode,
		Incoming:  make(map[string]struct{}),
		Sheaves: map[string]*Sheaf{
			DefaultSheaf: {UID: DefaultSheaf, Name: DefaultSheaf, Activation: 0},
		},
	}
}

// Link is a directed, weighted edge from a gate to a slot.
type Link struct {
	UID        string
	SourceNode string
	SourceGate string
	TargetNode string
	TargetSlot string
	Weight     float64
	Certainty  float64
}

// Node is a graph vertex with typed input/output terminals.
type Node struct {
	UID             string
	Type            string
	ParentNodespace string
	Name            string
	Position        [2]float64
	Parameters      map[string]interface{}
	State           map[string]interface{}
	Gates           map[string]*Gate
	Slots           map[string]*Slot
	GateOrder       []string // preserves Nodetype.GateNames order
	SlotOrder       []string
	// Activation mirrors the default sheaf of the gen gate, for convenience.
	Activation float64
}

func (n *Node) GetParameter(key string) (interface{}, bool) {
	v, ok := n.Parameters[key]
	return v, ok
}

func (n *Node) SetParameter(key string, value interface{}) {
	if n.Parameters == nil {
		n.Parameters = make(map[string]interface{})
	}
	n.Parameters[key] = value
}

// refreshActivationMirror updates Node.Activation from the gen gate's
// default sheaf, if the node has a gen gate.
func (n *Node) refreshActivationMirror() {
	if g, ok := n.Gates["gen"]; ok {
		if sh, ok := g.Sheaves[DefaultSheaf]; ok {
			n.Activation = sh.Activation
		}
	}
}

// Nodespace is a hierarchical container for nodes and child nodespaces.
type Nodespace struct {
	UID       string
	ParentUID string // "" for Root
	Name      string
	Position  [2]float64
	Children  map[string]struct{} // nodespace uids
	Nodes     map[string]struct{} // node uids

	// GateFunctionOverrides maps "nodetype\x00gate" to a source expression.
	GateFunctionOverrides map[string]string

	// Activators holds, per activator "type" parameter, the most recently
	// observed default-sheaf activation of the Activator node of that type
	// evaluated in this nodespace during the current step. Absent key means
	// no such Activator exists.
	Activators map[string]float64
}

func newNodespace(uid, parentUID, name string, position [2]float64) *Nodespace {
	return &Nodespace{
		UID:                   uid,
		ParentUID:             parentUID,
		Name:                  name,
		Position:              position,
		Children:              make(map[string]struct{}),
		Nodes:                 make(map[string]struct{}),
		GateFunctionOverrides: make(map[string]string),
		Activators:            make(map[string]float64),
	}
}

func gateOverrideKey(nodetype, gate string) string {
	return nodetype + "\x00" + gate
}

// Monitor samples a scalar from a named gate or slot of a named node once
// per step.
type Monitor struct {
	UID          string
	NodeUID      string
	TerminalKind string // "gate" or "slot"
	TerminalName string
	Sheaf        string
	Steps        []int
	Values       []float64
}

func newMonitor(uid, nodeUID, terminalKind, terminalName, sheaf string) *Monitor {
	if sheaf == "" {
		sheaf = DefaultSheaf
	}
	return &Monitor{
		UID:          uid,
		NodeUID:      nodeUID,
		TerminalKind: terminalKind,
		TerminalName: terminalName,
		Sheaf:        sheaf,
	}
}

func (m *Monitor) record(step int, value float64) {
	m.Steps = append(m.Steps, step)
	m.Values = append(m.Values, value)
}

// window returns the trailing n sampled values (or every sample, if fewer
// than n have been recorded yet).
func (m *Monitor) window(n int) []float64 {
	if n <= 0 || n > len(m.Values) {
		n = len(m.Values)
	}
	return m.Values[len(m.Values)-n:]
}

// WindowMean returns the mean of the trailing n samples (every sample
// recorded so far if n <= 0 or exceeds the sample count).
func (m *Monitor) WindowMean(n int) float64 {
	return Mean(m.window(n))
}

// WindowStdev returns the sample standard deviation of the trailing n
// samples.
func (m *Monitor) WindowStdev(n int) float64 {
	return Stdev(m.window(n))
}

// WindowMedian returns the median of the trailing n samples.
func (m *Monitor) WindowMedian(n int) float64 {
	return Median(m.window(n))
}

// Lock is a registry entry keyed by lock name.
type Lock struct {
	Age int
	TTL int
	Key string
}
