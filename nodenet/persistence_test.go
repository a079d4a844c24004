package nodenet

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExportLoadRoundTrip(t *testing.T) {
	nn := newTestNodenet(t)
	ns, err := nn.CreateNodespace(RootNodespaceUID, "N", [2]float64{1, 2})
	require.NoError(t, err)
	a, err := nn.CreateNode(ns.UID, "Pipe", "A", [2]float64{}, nil)
	require.NoError(t, err)
	b, err := nn.CreateNode(ns.UID, "Pipe", "B", [2]float64{}, nil)
	require.NoError(t, err)
	_, err = nn.Link(a.UID, "por", b.UID, "gen", 0.75, 1)
	require.NoError(t, err)
	_, err = nn.AddMonitor(a.UID, "gate", "gen", "")
	require.NoError(t, err)

	// Step a few times before exporting so the monitor accumulates more
	// than one sample: a monitor's step-number mapping must survive the
	// round trip too, not just its values.
	_, err = nn.Step()
	require.NoError(t, err)
	_, err = nn.Step()
	require.NoError(t, err)

	raw, err := json.Marshal(nn)
	require.NoError(t, err)

	doc, err := LoadNodenetDocument(raw)
	require.NoError(t, err)
	assert.Equal(t, CurrentSchemaVersion, doc.Version)

	fresh := NewNodenet("test2", "tester", "reloaded", nil, nil)
	require.NoError(t, fresh.Load(doc))

	assert.Len(t, fresh.nodes, 2)
	assert.Len(t, fresh.links, 1)
	assert.Len(t, fresh.monitors, 1)
	var reloadedNS *Nodespace
	for _, candidate := range fresh.nodespaces {
		if candidate.Name == "N" {
			reloadedNS = candidate
		}
	}
	require.NotNil(t, reloadedNS, "the non-root nodespace must survive a round trip")

	var original, reloaded *Monitor
	for _, m := range nn.monitors {
		original = m
	}
	for _, m := range fresh.monitors {
		reloaded = m
	}
	require.NotNil(t, original)
	require.NotNil(t, reloaded)
	assert.Equal(t, original.Steps, reloaded.Steps, "monitor step numbers must survive the round trip")
	assert.Equal(t, original.Values, reloaded.Values, "monitor values must survive the round trip")
	assert.Len(t, reloaded.Steps, len(reloaded.Values), "steps and values must stay aligned after a round trip")
}

// Export writes gate parameters only for gates that were customized, so a
// later nodetype reload's new defaults reach every untouched gate.
func TestExportPersistsOnlyCustomizedGateParameters(t *testing.T) {
	nn := newTestNodenet(t)
	node, err := nn.CreateNode(RootNodespaceUID, "Pipe", "P", [2]float64{}, nil)
	require.NoError(t, err)
	node.Gates["por"].Parameters.Threshold = 0.5

	doc := nn.Export()
	persisted := doc.Nodes[node.UID].GateParameters
	require.Contains(t, persisted, "por")
	assert.Equal(t, 0.5, persisted["por"].Threshold)
	assert.NotContains(t, persisted, "gen", "untouched gates must not be persisted")

	fresh := NewNodenet("test2", "tester", "reloaded", nil, nil)
	require.NoError(t, fresh.Load(doc))
	reloaded := fresh.nodes[node.UID]
	require.NotNil(t, reloaded)
	assert.Equal(t, 0.5, reloaded.Gates["por"].Parameters.Threshold)
	assert.Equal(t, DefaultGateParameters(), reloaded.Gates["gen"].Parameters)
}

func TestLoadRejectsVersionMismatch(t *testing.T) {
	nn := newTestNodenet(t)
	doc := nn.Export()
	doc.Version = CurrentSchemaVersion + 1

	err := nn.Load(doc)
	assert.ErrorIs(t, err, ErrVersionMismatch)
}

func TestLoadNodenetDocumentRejectsCorruptJSON(t *testing.T) {
	_, err := LoadNodenetDocument([]byte("not json"))
	assert.ErrorIs(t, err, ErrSnapshotCorrupt)
}

func TestMergeWithUIDCollisionRemapsAndPreservesLinks(t *testing.T) {
	nn := newTestNodenet(t)
	existing, err := nn.CreateNode(RootNodespaceUID, "Pipe", "Existing", [2]float64{}, nil)
	require.NoError(t, err)

	incoming := nn.Export()
	incomingA := nodeDoc{
		UID:             existing.UID, // collides on purpose
		Type:            "Pipe",
		ParentNodespace: RootNodespaceUID,
		Name:            "IncomingA",
		Parameters:      map[string]interface{}{},
		GateParameters:  map[string]GateParameters{},
		State:           map[string]interface{}{},
	}
	incomingB := nodeDoc{
		UID:             nn.nextUID("n") + "-other",
		Type:            "Pipe",
		ParentNodespace: RootNodespaceUID,
		Name:            "IncomingB",
		Parameters:      map[string]interface{}{},
		GateParameters:  map[string]GateParameters{},
		State:           map[string]interface{}{},
	}
	incoming.Nodes = map[string]nodeDoc{
		incomingA.UID: incomingA,
		incomingB.UID: incomingB,
	}
	incoming.Links = map[string]linkDoc{
		"l-incoming": {
			UID:            "l-incoming",
			SourceNodeUID:  incomingA.UID,
			SourceGateName: "por",
			TargetNodeUID:  incomingB.UID,
			TargetSlotName: "gen",
			Weight:         1,
			Certainty:      1,
		},
	}
	incoming.Nodespaces = map[string]nodespaceDoc{}
	incoming.Monitors = map[string]monitorDoc{}

	warnings := nn.Merge(incoming)
	assert.Empty(t, warnings)

	_, err = nn.GetNode(existing.UID)
	require.NoError(t, err)
	assert.Equal(t, "Existing", nn.nodes[existing.UID].Name, "collision must not clobber the already-present node")

	var mergedA, mergedB *Node
	for _, n := range nn.nodes {
		switch n.Name {
		case "IncomingA":
			mergedA = n
		case "IncomingB":
			mergedB = n
		}
	}
	require.NotNil(t, mergedA, "incoming node colliding on uid must still be merged in, under a fresh uid")
	require.NotNil(t, mergedB)
	assert.NotEqual(t, existing.UID, mergedA.UID, "the colliding incoming node must get a new uid")

	require.Len(t, mergedA.Gates["por"].Outgoing, 1, "the incoming link must resolve against the remapped uid")
	var resolvedLink *Link
	for _, l := range nn.links {
		if l.SourceNode == mergedA.UID {
			resolvedLink = l
		}
	}
	require.NotNil(t, resolvedLink)
	assert.Equal(t, mergedB.UID, resolvedLink.TargetNode)
}

func TestMergeDropsNodeOfUnknownType(t *testing.T) {
	nn := newTestNodenet(t)
	doc := nn.Export()
	doc.Nodespaces = map[string]nodespaceDoc{}
	doc.Links = map[string]linkDoc{}
	doc.Monitors = map[string]monitorDoc{}
	doc.Nodes = map[string]nodeDoc{
		"n-unknown": {
			UID:             "n-unknown",
			Type:            "NoSuchType",
			ParentNodespace: RootNodespaceUID,
			Name:            "Ghost",
		},
	}

	warnings := nn.Merge(doc)
	require.Len(t, warnings, 1)
	_, err := nn.GetNode("n-unknown")
	assert.ErrorIs(t, err, ErrNotFound)
}
