// Package nodenet implements a MicroPsi-style cognitive agent simulation
// engine: hierarchical nodespaces of typed nodes wired by directional,
// weighted links, advanced one discrete step at a time by a deterministic
// propagate-then-evaluate cycle, and scripted from inside a step only
// through the netapi facade.
//
// Basic usage:
//
//	rt := nodenet.NewRuntime(".", nodenet.DefaultRuntimeConfig(), logger)
//	defer rt.Close()
//
//	nn, err := rt.NewNodenet("agent1", "alice", "my agent", "")
//	if err != nil {
//		log.Fatalf("creating nodenet: %v", err)
//	}
//
//	a, _ := nn.CreateNode(nodenet.RootNodespaceUID, "Pipe", "A", [2]float64{}, nil)
//	b, _ := nn.CreateNode(nodenet.RootNodespaceUID, "Pipe", "B", [2]float64{}, nil)
//	if _, err := nn.Link(a.UID, "por", b.UID, "gen", 1, 1); err != nil {
//		log.Fatalf("linking: %v", err)
//	}
//
//	if _, err := nn.Step(); err != nil {
//		log.Fatalf("stepping: %v", err)
//	}
package nodenet
