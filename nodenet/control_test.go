package nodenet

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestControl(t *testing.T) (*Control, *Nodenet) {
	t.Helper()
	rt := NewRuntime(t.TempDir(), nil, nil)
	t.Cleanup(func() { _ = rt.Close() })
	c := NewControl(rt)
	nn, err := rt.NewNodenet("agent", "tester", "agent net", "")
	require.NoError(t, err)
	return c, nn
}

func TestControlSaveLoadRevert(t *testing.T) {
	c, nn := newTestControl(t)
	_, err := c.CreateNode(nn, RootNodespaceUID, "Register", "R", [2]float64{}, nil)
	require.NoError(t, err)

	path := filepath.Join(c.Runtime.ResourcePath, "agent.json")
	require.NoError(t, c.SaveNodenet(nn, path))

	extra, err := c.CreateNode(nn, RootNodespaceUID, "Register", "Extra", [2]float64{}, nil)
	require.NoError(t, err)
	require.NoError(t, c.RevertNodenet(nn))

	_, err = nn.GetNode(extra.UID)
	assert.ErrorIs(t, err, ErrNotFound, "revert must discard mutations made after the save")
	assert.Len(t, nn.GetNodes("", ""), 1)
}

func TestControlRevertWithoutSaveFails(t *testing.T) {
	c, nn := newTestControl(t)
	err := c.RevertNodenet(nn)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestControlExportImportKeepsStepCounter(t *testing.T) {
	c, nn := newTestControl(t)
	_, err := c.StepNodenet(nn)
	require.NoError(t, err)
	_, err = c.StepNodenet(nn)
	require.NoError(t, err)

	doc := c.ExportNodenet(nn)
	other, err := c.NewNodenet("agent2", "tester", "copy", "")
	require.NoError(t, err)
	require.NoError(t, c.ImportNodenet(other, doc))
	assert.Equal(t, 2, other.CurrentStep)
}

func TestControlRunnerFlags(t *testing.T) {
	c, nn := newTestControl(t)
	assert.False(t, nn.IsActive)
	c.StartRunner(nn)
	assert.True(t, nn.IsActive)
	c.StopRunner(nn)
	assert.False(t, nn.IsActive)

	c.SetTimestep(nn, 75)
	assert.Equal(t, "75", nn.Settings["timestep_ms"])
}

func TestControlSetGateParametersRejectsUnknownGate(t *testing.T) {
	c, nn := newTestControl(t)
	node, err := c.CreateNode(nn, RootNodespaceUID, "Register", "R", [2]float64{}, nil)
	require.NoError(t, err)

	err = c.SetGateParameters(nn, node.UID, "nope", DefaultGateParameters())
	assert.ErrorIs(t, err, ErrInvalidArgument)

	params := DefaultGateParameters()
	params.Amplification = 2
	require.NoError(t, c.SetGateParameters(nn, node.UID, "gen", params))
	assert.Equal(t, 2.0, node.Gates["gen"].Parameters.Amplification)
}

func TestControlMonitorCRUD(t *testing.T) {
	c, nn := newTestControl(t)
	node, err := c.CreateNode(nn, RootNodespaceUID, "Register", "R", [2]float64{}, nil)
	require.NoError(t, err)

	m, err := c.AddMonitor(nn, node.UID, "gate", "gen", "")
	require.NoError(t, err)
	got, err := c.GetMonitor(nn, m.UID)
	require.NoError(t, err)
	assert.Equal(t, m, got)

	require.NoError(t, c.RemoveMonitor(nn, m.UID))
	_, err = c.GetMonitor(nn, m.UID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestControlRecipes(t *testing.T) {
	c, nn := newTestControl(t)
	c.RegisterRecipe(&Recipe{
		Name:           "seed",
		ParameterNames: []string{"name"},
		Run: func(api *NetAPI, params map[string]interface{}) error {
			name, _ := params["name"].(string)
			_, err := api.CreateNode(RootNodespaceUID, "Register", name)
			return err
		},
	})

	assert.Contains(t, c.ListRecipes(), "seed")
	require.NoError(t, c.RunRecipe(nn, "seed", map[string]interface{}{"name": "seeded"}))
	assert.Len(t, nn.GetNodes("", "seeded"), 1)

	err := c.RunRecipe(nn, "no-such-recipe", nil)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestControlMergeWarnsOnUnknownType(t *testing.T) {
	c, nn := newTestControl(t)
	doc := c.ExportNodenet(nn)
	doc.Nodes = map[string]nodeDoc{
		"n-ghost": {UID: "n-ghost", Type: "NoSuchType", ParentNodespace: RootNodespaceUID},
	}
	doc.Nodespaces = map[string]nodespaceDoc{}
	doc.Links = map[string]linkDoc{}
	doc.Monitors = map[string]monitorDoc{}

	warnings := c.MergeNodenet(nn, doc)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "n-ghost")
}
