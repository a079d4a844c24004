package nodenet

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRuntimeNodenetLifecycle(t *testing.T) {
	rt := NewRuntime(t.TempDir(), nil, nil)
	defer rt.Close()

	nn, err := rt.NewNodenet("a", "owner", "net", "")
	require.NoError(t, err)

	_, err = rt.NewNodenet("a", "owner", "again", "")
	assert.ErrorIs(t, err, ErrInvalidArgument, "uids are unique per runtime")

	got, err := rt.GetNodenet("a")
	require.NoError(t, err)
	assert.Same(t, nn, got)
	assert.Contains(t, rt.ListNodenets(), "a")

	require.NoError(t, rt.DeleteNodenet("a"))
	_, err = rt.GetNodenet("a")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, rt.DeleteNodenet("a"), ErrNotFound)
}

func TestRuntimeNewNodenetRejectsUnknownWorld(t *testing.T) {
	rt := NewRuntime(t.TempDir(), nil, nil)
	defer rt.Close()
	_, err := rt.NewNodenet("a", "owner", "net", "no-such-world")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRuntimeRegisterWorldBindsAdapter(t *testing.T) {
	rt := NewRuntime(t.TempDir(), nil, nil)
	defer rt.Close()
	world := NewInMemoryWorld()
	rt.RegisterWorld("w1", world)

	nn, err := rt.NewNodenet("a", "owner", "net", "w1")
	require.NoError(t, err)
	assert.Equal(t, "w1", nn.WorldUID)
	assert.Same(t, world, nn.world)
}

func TestRuntimeAppliesEngineConfig(t *testing.T) {
	cfg := DefaultRuntimeConfig()
	cfg.Engine.DefaultLockTTL = 2
	cfg.Engine.GateMaximum = 2
	cfg.Engine.ActivatorOnThreshold = 0.5
	rt := NewRuntime(t.TempDir(), cfg, nil)
	defer rt.Close()

	nn, err := rt.NewNodenet("a", "owner", "net", "")
	require.NoError(t, err)

	node, err := nn.CreateNode(RootNodespaceUID, "Register", "R", [2]float64{}, nil)
	require.NoError(t, err)
	assert.Equal(t, 2.0, node.Gates["gen"].Parameters.Maximum)

	require.NoError(t, nn.AcquireLock("m", "k", 0))
	_, err = nn.Step()
	require.NoError(t, err)
	assert.True(t, nn.IsLocked("m"))
	_, err = nn.Step()
	require.NoError(t, err)
	assert.False(t, nn.IsLocked("m"), "a lock acquired without a ttl must expire after the configured default")

	root := nn.nodespaces[RootNodespaceUID]
	root.Activators["por"] = 0.5
	out, err := nn.evaluateGateFunction(root, node, "por", 1, DefaultGateParameters())
	require.NoError(t, err)
	assert.Equal(t, 0.0, out, "an activator at the configured on-threshold still gates")
	root.Activators["por"] = 0.6
	out, err = nn.evaluateGateFunction(root, node, "por", 1, DefaultGateParameters())
	require.NoError(t, err)
	assert.Greater(t, out, 0.0)
}

func doublerNodetype(t *testing.T) *Nodetype {
	t.Helper()
	nt, err := (&NativeModuleManifest{
		Name:      "Doubler",
		GateNames: []string{"gen"},
		SlotNames: []string{"gen"},
		Source:    `Node.SetGate("gen", "", Node.SlotSum("gen", "") * 2)`,
	}).BuildNodetype()
	require.NoError(t, err)
	return nt
}

func TestReloadNativeModulesDropsNodesOfRemovedTypes(t *testing.T) {
	rt := NewRuntime(t.TempDir(), nil, nil)
	defer rt.Close()
	nn, err := rt.NewNodenet("a", "owner", "net", "")
	require.NoError(t, err)

	require.NoError(t, nn.nodetypes.RegisterNativeModule(doublerNodetype(t)))
	doubler, err := nn.CreateNode(RootNodespaceUID, "Doubler", "D", [2]float64{}, nil)
	require.NoError(t, err)
	feeder, err := nn.CreateNode(RootNodespaceUID, "Register", "F", [2]float64{}, nil)
	require.NoError(t, err)
	_, err = nn.Link(feeder.UID, "gen", doubler.UID, "gen", 1, 1)
	require.NoError(t, err)

	warnings, err := rt.ReloadNativeModules(nn, nil)
	require.NoError(t, err)
	require.Len(t, warnings, 1, "the node of the now-unknown type must be dropped with a warning")

	_, err = nn.GetNode(doubler.UID)
	assert.ErrorIs(t, err, ErrNotFound)
	survivor, err := nn.GetNode(feeder.UID)
	require.NoError(t, err)
	assert.Empty(t, survivor.Gates["gen"].Outgoing, "links to the dropped node must go with it")
	assert.Empty(t, nn.links)
}

func TestReloadNativeModulesReinstantiatesSurvivingNodes(t *testing.T) {
	rt := NewRuntime(t.TempDir(), nil, nil)
	defer rt.Close()
	nn, err := rt.NewNodenet("a", "owner", "net", "")
	require.NoError(t, err)

	require.NoError(t, nn.nodetypes.RegisterNativeModule(doublerNodetype(t)))
	doubler, err := nn.CreateNode(RootNodespaceUID, "Doubler", "D", [2]float64{}, nil)
	require.NoError(t, err)

	before := nn.Export()
	warnings, err := rt.ReloadNativeModules(nn, []*Nodetype{doublerNodetype(t)})
	require.NoError(t, err)
	assert.Empty(t, warnings)

	reborn, err := nn.GetNode(doubler.UID)
	require.NoError(t, err)
	assert.Equal(t, "Doubler", reborn.Type)
	assert.NotSame(t, doubler, reborn, "the node must be re-instantiated against the new manifest")
	assert.Equal(t, before.Nodes, nn.Export().Nodes)
}
