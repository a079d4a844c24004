package nodenet

import "strings"

// StepResult reports what happened during one Step call.
type StepResult struct {
	Step       int
	UserPrompt *UserPrompt
}

// Step advances the nodenet by one discrete simulation tick: snapshot,
// propagate, lock timeout, evaluate in class order, refresh activator
// caches, flush deferred unlocks, sample monitors. Nodes created or
// deleted by a node function during the tick take effect next tick; the
// snapshot taken up front is what guarantees that.
func (nn *Nodenet) Step() (*StepResult, error) {
	nn.clearUserPrompt()

	if nn.world != nil {
		nn.world.Snapshot()
	}

	snapshot := make([]string, len(nn.nodeOrder))
	copy(snapshot, nn.nodeOrder)

	nn.propagateLinkActivation(snapshot)
	nn.locks.timeoutLocks()

	activators, nativeModules, everythingElse := nn.partitionByClass(snapshot)

	if err := nn.evaluateNodeFunctions(activators); err != nil {
		return nil, err
	}
	nn.refreshNodespaceActivators(activators)

	if err := nn.evaluateNodeFunctions(nativeModules); err != nil {
		return nil, err
	}
	if err := nn.evaluateNodeFunctions(everythingElse); err != nil {
		return nil, err
	}

	nn.netapi._step()
	nn.CurrentStep++
	nn.sampleMonitors()

	return &StepResult{Step: nn.CurrentStep, UserPrompt: nn.userPrompt}, nil
}

// partitionByClass splits the step's node snapshot into activators, native
// modules and everything else, the order the step engine evaluates them in.
func (nn *Nodenet) partitionByClass(snapshot []string) (activators, nativeModules, everythingElse []string) {
	for _, uid := range snapshot {
		node := nn.nodes[uid]
		if node == nil {
			continue
		}
		switch {
		case node.Type == "Activator":
			activators = append(activators, uid)
		case !IsStandardNodetype(node.Type):
			nativeModules = append(nativeModules, uid)
		default:
			everythingElse = append(everythingElse, uid)
		}
	}
	return
}

// evaluateNodeFunctions calls each node's node function, in snapshot
// order. A failing node function is logged with its uid and skipped; the
// step continues with the next node.
func (nn *Nodenet) evaluateNodeFunctions(uids []string) error {
	for _, uid := range uids {
		node := nn.nodes[uid]
		if node == nil {
			continue
		}
		nt, ok := nn.nodetypes.Get(node.Type)
		if !ok || nt.NodeFunction == nil {
			continue
		}
		if err := nt.NodeFunction(nn.netapi, node); err != nil {
			nn.logger.Errorw("node function failed", "node", uid, "type", node.Type, "error", err)
		}
	}
	return nil
}

// refreshNodespaceActivators makes each evaluated Activator's activation
// visible to the gate function for the rest of this step, through its
// nodespace's Activators cache.
func (nn *Nodenet) refreshNodespaceActivators(activatorUIDs []string) {
	for _, uid := range activatorUIDs {
		node := nn.nodes[uid]
		if node == nil {
			continue
		}
		ns, ok := nn.nodespaces[node.ParentNodespace]
		if !ok {
			continue
		}
		typeParam, _ := node.GetParameter("type")
		t, _ := typeParam.(string)
		if t == "" {
			continue
		}
		ns.Activators[t] = node.Activation
	}
}

// propagateLinkActivation moves activation from gates to slots via their
// links, over the node set snapshotted at step start.
//
// Phase A resets every slot's sheaves to activation 0 (sheaf keys
// retained). Phase B carries sheaf existence for spreadsheaves gates,
// except into Actors. Phase C sums weighted activations per sheaf, folding
// origin-tagged sheaf ids into their parent on the tagged target and
// discarding ids that belong to neither.
func (nn *Nodenet) propagateLinkActivation(snapshot []string) {
	nodes := make(map[string]*Node, len(snapshot))
	for _, uid := range snapshot {
		if n := nn.nodes[uid]; n != nil {
			nodes[uid] = n
		}
	}

	// Phase A: reset slots.
	for _, node := range nodes {
		for _, slot := range node.Slots {
			for _, sh := range slot.Sheaves {
				sh.Activation = 0
			}
		}
	}

	// Phase B: propagate sheaf existence for spreadsheaves gates. The sheaf
	// is seeded on every slot of the target node, not only the slot the
	// link terminates on.
	for _, node := range nodes {
		for _, gate := range node.Gates {
			if !gate.Parameters.SpreadSheaves {
				continue
			}
			for sheafID, sheaf := range gate.Sheaves {
				for linkUID := range gate.Outgoing {
					link := nn.links[linkUID]
					if link == nil {
						continue
					}
					target := nn.nodes[link.TargetNode]
					if target == nil || target.Type == "Actor" {
						continue
					}
					for _, slot := range target.Slots {
						if _, exists := slot.Sheaves[sheafID]; !exists {
							slot.Sheaves[sheafID] = &Sheaf{UID: sheaf.UID, Name: sheaf.Name, Activation: 0}
						}
					}
				}
			}
		}
	}

	// Phase C: sum weighted activations per sheaf.
	for _, node := range nodes {
		for _, gate := range node.Gates {
			for linkUID := range gate.Outgoing {
				link := nn.links[linkUID]
				if link == nil {
					continue
				}
				target := nn.nodes[link.TargetNode]
				if target == nil {
					continue
				}
				slot, ok := target.Slots[link.TargetSlot]
				if !ok {
					continue
				}
				for sheafID, sheaf := range gate.Sheaves {
					contribution := sheaf.Activation * link.Weight

					if target.Type == "Actor" {
						targetSheaf := slot.Sheaves[DefaultSheaf]
						if targetSheaf == nil {
							targetSheaf = &Sheaf{UID: DefaultSheaf, Name: DefaultSheaf}
							slot.Sheaves[DefaultSheaf] = targetSheaf
						}
						targetSheaf.Activation += contribution
						continue
					}

					if targetSheaf, ok := slot.Sheaves[sheafID]; ok {
						targetSheaf.Activation += contribution
						continue
					}

					if parent, ok := strings.CutSuffix(sheafID, ":"+target.UID); ok {
						targetSheaf, ok := slot.Sheaves[parent]
						if !ok {
							targetSheaf = &Sheaf{UID: parent, Name: parent}
							slot.Sheaves[parent] = targetSheaf
						}
						targetSheaf.Activation += contribution
						continue
					}

					// Sheaf id addressed to neither this slot nor this
					// target node: discarded.
				}
			}
		}
	}
}
