package nodenet

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewGateAlwaysHasDefaultSheaf(t *testing.T) {
	g := newGate("por", "n1", DefaultGateParameters())
	sh, ok := g.Sheaves[DefaultSheaf]
	assert.True(t, ok)
	assert.Equal(t, 0.0, sh.Activation)
}

func TestNewSlotAlwaysHasDefaultSheaf(t *testing.T) {
	s := newSlot("gen", "n1")
	_, ok := s.Sheaves[DefaultSheaf]
	assert.True(t, ok)
}

func TestDefaultGateParameterValues(t *testing.T) {
	p := DefaultGateParameters()
	assert.Equal(t, -1.0, p.Minimum)
	assert.Equal(t, 1.0, p.Maximum)
	assert.Equal(t, 0.0, p.Threshold)
	assert.Equal(t, 1.0, p.Amplification)
	assert.Equal(t, 1.0, p.Certainty)
	assert.Equal(t, 0.0, p.Decay)
	assert.Equal(t, 0.0, p.Rho)
	assert.Equal(t, 0.0, p.Theta)
	assert.False(t, p.SpreadSheaves)
}

func TestNodeParameterGetSet(t *testing.T) {
	n := &Node{}
	_, ok := n.GetParameter("missing")
	assert.False(t, ok)

	n.SetParameter("datasource", "light")
	v, ok := n.GetParameter("datasource")
	assert.True(t, ok)
	assert.Equal(t, "light", v)
}

func TestRefreshActivationMirror(t *testing.T) {
	n := &Node{Gates: map[string]*Gate{"gen": newGate("gen", "n1", DefaultGateParameters())}}
	n.Gates["gen"].Sheaves[DefaultSheaf].Activation = 0.42
	n.refreshActivationMirror()
	assert.Equal(t, 0.42, n.Activation)
}

func TestRefreshActivationMirrorNoopWithoutGenGate(t *testing.T) {
	n := &Node{Gates: map[string]*Gate{}}
	n.refreshActivationMirror()
	assert.Equal(t, 0.0, n.Activation)
}

func TestNewNodespaceStartsEmpty(t *testing.T) {
	ns := newNodespace("s1", RootNodespaceUID, "N", [2]float64{})
	assert.Empty(t, ns.Children)
	assert.Empty(t, ns.Nodes)
	assert.Empty(t, ns.GateFunctionOverrides)
	assert.Empty(t, ns.Activators)
}

func TestGateOverrideKeyIsPerNodetypeAndGate(t *testing.T) {
	a := gateOverrideKey("Pipe", "por")
	b := gateOverrideKey("Pipe", "ret")
	c := gateOverrideKey("Register", "por")
	assert.NotEqual(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestMonitorDefaultsToDefaultSheaf(t *testing.T) {
	m := newMonitor("m1", "n1", "gate", "gen", "")
	assert.Equal(t, DefaultSheaf, m.Sheaf)
}

func TestMonitorRecordAppends(t *testing.T) {
	m := newMonitor("m1", "n1", "gate", "gen", "")
	m.record(1, 0.5)
	m.record(2, 0.75)
	assert.Equal(t, []int{1, 2}, m.Steps)
	assert.Equal(t, []float64{0.5, 0.75}, m.Values)
}

func TestMonitorWindowStatsCoverFullHistoryWhenWindowExceedsSamples(t *testing.T) {
	m := newMonitor("m1", "n1", "gate", "gen", "")
	for i, v := range []float64{1, 2, 3, 4} {
		m.record(i, v)
	}
	assert.InDelta(t, 2.5, m.WindowMean(0), 1e-9)
	assert.InDelta(t, 2.5, m.WindowMedian(10), 1e-9)
	assert.InDelta(t, Stdev([]float64{1, 2, 3, 4}), m.WindowStdev(100), 1e-9)
}

func TestMonitorWindowStatsRestrictToTrailingSamples(t *testing.T) {
	m := newMonitor("m1", "n1", "gate", "gen", "")
	for i, v := range []float64{1, 2, 3, 100} {
		m.record(i, v)
	}
	assert.InDelta(t, 51.5, m.WindowMean(2), 1e-9, "window of 2 must only see the trailing two samples")
}
