package nodenet

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultGateFunctionClampsToRange(t *testing.T) {
	params := DefaultGateParameters()
	params.Amplification = 4
	out := defaultGateFunction(1, params)
	assert.Equal(t, 1.0, out, "output must clamp to the gate's maximum")
}

func TestDefaultGateFunctionHandlesNaNInput(t *testing.T) {
	params := DefaultGateParameters()
	out := defaultGateFunction(nan(), params)
	assert.Equal(t, params.Minimum, out, "NaN input must clamp to the configured minimum, not propagate")
}

func nan() float64 {
	var zero float64
	return zero / zero
}

func TestGateFunctionOverrideIsUsedAndCached(t *testing.T) {
	nn := newTestNodenet(t)
	require.NoError(t, nn.SetGateFunctionOverride(RootNodespaceUID, "Pipe", "por", "Input * 2"))

	ns := nn.nodespaces[RootNodespaceUID]
	node := &Node{Type: "Pipe"}
	out, err := nn.evaluateGateFunction(ns, node, "por", 3, DefaultGateParameters())
	require.NoError(t, err)
	assert.Equal(t, 6.0, out)

	// A second evaluation must hit the compiled-program cache, not recompile.
	out, err = nn.evaluateGateFunction(ns, node, "por", 5, DefaultGateParameters())
	require.NoError(t, err)
	assert.Equal(t, 10.0, out)
}

func TestGateFunctionOverrideOnlyAppliesToItsOwnNodetypeAndGate(t *testing.T) {
	nn := newTestNodenet(t)
	require.NoError(t, nn.SetGateFunctionOverride(RootNodespaceUID, "Pipe", "por", "Input * 2"))

	ns := nn.nodespaces[RootNodespaceUID]
	registerNode := &Node{Type: "Register"}
	out, err := nn.evaluateGateFunction(ns, registerNode, "por", 3, DefaultGateParameters())
	require.NoError(t, err)
	assert.Equal(t, 1.0, out, "override scoped to Pipe must not affect Register")

	pipeNode := &Node{Type: "Pipe"}
	out, err = nn.evaluateGateFunction(ns, pipeNode, "gen", 3, DefaultGateParameters())
	require.NoError(t, err)
	assert.Equal(t, 1.0, out, "override scoped to por must not affect gen")
}

func TestGateFunctionOverrideRemovedByEmptySource(t *testing.T) {
	nn := newTestNodenet(t)
	require.NoError(t, nn.SetGateFunctionOverride(RootNodespaceUID, "Pipe", "por", "Input * 2"))
	require.NoError(t, nn.SetGateFunctionOverride(RootNodespaceUID, "Pipe", "por", ""))

	ns := nn.nodespaces[RootNodespaceUID]
	node := &Node{Type: "Pipe"}
	out, err := nn.evaluateGateFunction(ns, node, "por", 3, DefaultGateParameters())
	require.NoError(t, err)
	assert.Equal(t, 1.0, out, "empty source must revert to the default gate function")
}

func TestGateFunctionOverrideRejectsBadSource(t *testing.T) {
	nn := newTestNodenet(t)
	err := nn.SetGateFunctionOverride(RootNodespaceUID, "Pipe", "por", "this is not valid expr syntax {{{")
	assert.Error(t, err)
}

func TestActivatorGatingOnThresholdBoundary(t *testing.T) {
	nn := newTestNodenet(t)
	ns := nn.nodespaces[RootNodespaceUID]
	node := &Node{Type: "Pipe"}

	ns.Activators["por"] = 0
	out, err := nn.evaluateGateFunction(ns, node, "por", 1, DefaultGateParameters())
	require.NoError(t, err)
	assert.Equal(t, 0.0, out, "activation exactly at the on-threshold must still gate closed")

	ns.Activators["por"] = -0.0001
	out, err = nn.evaluateGateFunction(ns, node, "por", 1, DefaultGateParameters())
	require.NoError(t, err)
	assert.Equal(t, 0.0, out)

	ns.Activators["por"] = 0.0001
	out, err = nn.evaluateGateFunction(ns, node, "por", 1, DefaultGateParameters())
	require.NoError(t, err)
	assert.Greater(t, out, 0.0)
}
