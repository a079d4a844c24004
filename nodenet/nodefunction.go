package nodenet

// registerNodeFunction implements Register: invoke the gate function on
// the same-named slot's sum, per sheaf.
func registerNodeFunction(api *NetAPI, node *Node) error {
	return api.nn.runGatePassthrough(node, []string{"gen"})
}

// pipeNodeFunction implements Pipe: gen is driven from the gen slot sum,
// same as Register; every directional gate (por, ret, sub, sur, cat, exp,
// sym, ref) broadcasts that same freshly computed gen activation, each
// independently subject to its own gate parameters and Activator gating.
// This is what lets an Activator gate directional spreading without also
// gating the node's own general activation.
func pipeNodeFunction(api *NetAPI, node *Node) error {
	return api.nn.runPipeGates(node)
}

// runGatePassthrough drives gateNames' gate from the identically-named
// slot's per-sheaf sum through the gate function.
func (nn *Nodenet) runGatePassthrough(node *Node, gateNames []string) error {
	ns := nn.nodespaces[node.ParentNodespace]
	for _, gateName := range gateNames {
		gate, hasGate := node.Gates[gateName]
		slot, hasSlot := node.Slots[gateName]
		if !hasGate || !hasSlot {
			continue
		}
		for sheafID := range unionSheafIDs(gate.Sheaves, slot.Sheaves) {
			input := 0.0
			if sh, ok := slot.Sheaves[sheafID]; ok {
				input = sh.Activation
			}
			output, err := nn.evaluateGateFunction(ns, node, gateName, input, gate.Parameters)
			if err != nil {
				return err
			}
			if _, ok := gate.Sheaves[sheafID]; !ok {
				gate.Sheaves[sheafID] = &Sheaf{UID: sheafID, Name: sheafID}
			}
			gate.Sheaves[sheafID].Activation = output
		}
	}
	node.refreshActivationMirror()
	return nil
}

// runPipeGates drives gen from the gen slot, then drives every other
// declared gate from the node's own gen gate (not its same-named slot --
// Pipes have no incoming links into por/ret/etc. slots in normal use).
func (nn *Nodenet) runPipeGates(node *Node) error {
	ns := nn.nodespaces[node.ParentNodespace]
	genGate, hasGen := node.Gates["gen"]
	genSlot, hasGenSlot := node.Slots["gen"]
	if !hasGen || !hasGenSlot {
		return nil
	}
	for sheafID := range unionSheafIDs(genGate.Sheaves, genSlot.Sheaves) {
		input := 0.0
		if sh, ok := genSlot.Sheaves[sheafID]; ok {
			input = sh.Activation
		}
		output, err := nn.evaluateGateFunction(ns, node, "gen", input, genGate.Parameters)
		if err != nil {
			return err
		}
		if _, ok := genGate.Sheaves[sheafID]; !ok {
			genGate.Sheaves[sheafID] = &Sheaf{UID: sheafID, Name: sheafID}
		}
		genGate.Sheaves[sheafID].Activation = output
	}

	for _, gateName := range pipeGateNames {
		if gateName == "gen" {
			continue
		}
		gate, ok := node.Gates[gateName]
		if !ok {
			continue
		}
		for sheafID := range unionSheafIDs(gate.Sheaves, genGate.Sheaves) {
			input := 0.0
			if sh, ok := genGate.Sheaves[sheafID]; ok {
				input = sh.Activation
			}
			output, err := nn.evaluateGateFunction(ns, node, gateName, input, gate.Parameters)
			if err != nil {
				return err
			}
			if _, ok := gate.Sheaves[sheafID]; !ok {
				gate.Sheaves[sheafID] = &Sheaf{UID: sheafID, Name: sheafID}
			}
			gate.Sheaves[sheafID].Activation = output
		}
	}
	node.refreshActivationMirror()
	return nil
}

func unionSheafIDs(a, b map[string]*Sheaf) map[string]struct{} {
	out := make(map[string]struct{}, len(a)+len(b))
	for id := range a {
		out[id] = struct{}{}
	}
	for id := range b {
		out[id] = struct{}{}
	}
	if _, ok := out[DefaultSheaf]; !ok {
		out[DefaultSheaf] = struct{}{}
	}
	return out
}

// activatorNodeFunction does nothing beyond refreshing the activation
// mirror: an Activator's activation is set externally, and its only effect
// is read by the gate function layer through its nodespace's Activators
// cache.
func activatorNodeFunction(api *NetAPI, node *Node) error {
	node.refreshActivationMirror()
	return nil
}

// sensorNodeFunction reads the world adapter's named datasource into the
// node's gen gate, clamped to the gate's own min/max.
func sensorNodeFunction(api *NetAPI, node *Node) error {
	datasource, _ := node.GetParameter("datasource")
	source, _ := datasource.(string)
	value := 0.0
	if source != "" {
		value = api.nn.readWorldSensor(source)
	}
	gate := node.Gates["gen"]
	gate.Sheaves[DefaultSheaf].Activation = clamp(value, gate.Parameters.Minimum, gate.Parameters.Maximum)
	node.refreshActivationMirror()
	return nil
}

// actorNodeFunction copies the node's gen slot default-sheaf sum out to the
// world adapter's named datatarget.
func actorNodeFunction(api *NetAPI, node *Node) error {
	datatarget, _ := node.GetParameter("datatarget")
	target, _ := datatarget.(string)
	slot := node.Slots["gen"]
	value := 0.0
	if sh, ok := slot.Sheaves[DefaultSheaf]; ok {
		value = sh.Activation
	}
	if target != "" {
		api.nn.writeWorldActuator(target, value)
	}
	return nil
}
