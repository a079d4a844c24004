package nodenet

import (
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// gateExprEnv is the environment a gate-function override expression is
// compiled and evaluated against: the slot sum plus the gate's parameters.
// Field names are the identifiers an override expression may reference.
type gateExprEnv struct {
	Input         float64
	Minimum       float64
	Maximum       float64
	Threshold     float64
	Amplification float64
	Certainty     float64
	Decay         float64
	Rho           float64
	Theta         float64
}

func newGateExprEnv(input float64, p GateParameters) gateExprEnv {
	return gateExprEnv{
		Input:         input,
		Minimum:       p.Minimum,
		Maximum:       p.Maximum,
		Threshold:     p.Threshold,
		Amplification: p.Amplification,
		Certainty:     p.Certainty,
		Decay:         p.Decay,
		Rho:           p.Rho,
		Theta:         p.Theta,
	}
}

// gateFunctionCache compiles gate-function override source once and reuses
// the compiled program across steps and nodes, keyed by the literal source
// text (so two nodetype/gate pairs sharing an identical override body share
// one compiled program too).
type gateFunctionCache struct {
	programs map[string]*vm.Program
}

func newGateFunctionCache() *gateFunctionCache {
	return &gateFunctionCache{programs: make(map[string]*vm.Program)}
}

func (c *gateFunctionCache) compile(source string) (*vm.Program, error) {
	if p, ok := c.programs[source]; ok {
		return p, nil
	}
	p, err := expr.Compile(source, expr.Env(gateExprEnv{}), expr.AsFloat64())
	if err != nil {
		return nil, fmt.Errorf("compiling gate function override: %w", err)
	}
	c.programs[source] = p
	return p, nil
}

// defaultGateFunction computes
// clamp(amplification * (input - threshold), minimum, maximum).
func defaultGateFunction(input float64, p GateParameters) float64 {
	return clamp(p.Amplification*(input-p.Threshold), p.Minimum, p.Maximum)
}

// evaluateGateFunction computes one sheaf's gate output, applying a
// nodespace-installed per-(nodetype,gate) override if present, then the
// Activator-gating rule: a matching Activator whose default-sheaf
// activation is at or below the on-threshold forces the output to 0.
func (nn *Nodenet) evaluateGateFunction(ns *Nodespace, node *Node, gateName string, input float64, params GateParameters) (float64, error) {
	output := defaultGateFunction(input, params)

	if ns != nil {
		if source, ok := ns.GateFunctionOverrides[gateOverrideKey(node.Type, gateName)]; ok {
			program, err := nn.gateFunctions.compile(source)
			if err != nil {
				return 0, err
			}
			out, err := expr.Run(program, newGateExprEnv(input, params))
			if err != nil {
				return 0, fmt.Errorf("evaluating gate function override for %s.%s: %w", node.Type, gateName, err)
			}
			if f, ok := out.(float64); ok {
				output = f
			}
		}
	}

	if ns != nil {
		if activation, exists := ns.Activators[gateName]; exists {
			if activation <= nn.activatorOnThreshold {
				return 0, nil
			}
		}
	}

	return output, nil
}

// SetGateFunctionOverride installs a source-expression override for every
// gate named gateName on nodes of type nodetype within nodespace nsUID. An
// empty source removes the override, reverting to defaultGateFunction.
func (nn *Nodenet) SetGateFunctionOverride(nsUID, nodetype, gateName, source string) error {
	ns, ok := nn.nodespaces[nsUID]
	if !ok {
		return NotFoundf("nodespace", nsUID)
	}
	key := gateOverrideKey(nodetype, gateName)
	if source == "" {
		delete(ns.GateFunctionOverrides, key)
		return nil
	}
	if _, err := nn.gateFunctions.compile(source); err != nil {
		return err
	}
	ns.GateFunctionOverrides[key] = source
	return nil
}
