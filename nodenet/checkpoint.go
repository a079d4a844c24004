package nodenet

import (
	"compress/gzip"
	"encoding/gob"
	"fmt"
	"os"
)

// RuntimeSaveData is a gob-friendly snapshot of every live nodenet in a
// Runtime, keyed by uid.
type RuntimeSaveData struct {
	Nodenets map[string]*NodenetDocument
}

// SaveCheckpoint gob+gzip-encodes every nodenet currently held by the
// runtime to filePath, for fast whole-process resume.
func (rt *Runtime) SaveCheckpoint(filePath string) error {
	file, err := os.Create(filePath)
	if err != nil {
		return fmt.Errorf("failed to create checkpoint file %q: %w", filePath, err)
	}
	defer file.Close()

	gzWriter := gzip.NewWriter(file)
	defer gzWriter.Close()

	rt.mu.Lock()
	saveData := RuntimeSaveData{Nodenets: make(map[string]*NodenetDocument, len(rt.nodenets))}
	for uid, nn := range rt.nodenets {
		saveData.Nodenets[uid] = nn.Export()
	}
	rt.mu.Unlock()

	registerCheckpointGobTypes()

	encoder := gob.NewEncoder(gzWriter)
	if err := encoder.Encode(saveData); err != nil {
		return fmt.Errorf("failed to encode runtime checkpoint: %w", err)
	}
	rt.logger.Infow("checkpoint saved", "path", filePath, "nodenets", len(saveData.Nodenets))
	return nil
}

// LoadCheckpoint restores every nodenet in filePath into the runtime,
// replacing any live nodenet sharing a uid with the persisted one and
// attaching world/logger as a fresh nodenet would get.
func (rt *Runtime) LoadCheckpoint(filePath string, world WorldAdapter) error {
	file, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("failed to open checkpoint file %q: %w", filePath, err)
	}
	defer file.Close()

	gzReader, err := gzip.NewReader(file)
	if err != nil {
		return fmt.Errorf("failed to create gzip reader for checkpoint: %w", err)
	}
	defer gzReader.Close()

	registerCheckpointGobTypes()

	var saveData RuntimeSaveData
	decoder := gob.NewDecoder(gzReader)
	if err := decoder.Decode(&saveData); err != nil {
		return fmt.Errorf("failed to decode runtime checkpoint: %w", err)
	}

	rt.mu.Lock()
	defer rt.mu.Unlock()
	for uid, doc := range saveData.Nodenets {
		nn := NewNodenet(uid, doc.Owner, doc.Name, world, rt.logger)
		nn.applyEngineConfig(rt.Config.Engine)
		if err := nn.Load(doc); err != nil {
			return fmt.Errorf("restoring nodenet %q from checkpoint: %w", uid, err)
		}
		rt.nodenets[uid] = nn
	}
	rt.logger.Infow("checkpoint loaded", "path", filePath, "nodenets", len(saveData.Nodenets))
	return nil
}

func registerCheckpointGobTypes() {
	gob.Register(map[string]nodespaceDoc{})
	gob.Register(map[string]nodeDoc{})
	gob.Register(map[string]linkDoc{})
	gob.Register(map[string]monitorDoc{})
	gob.Register(map[string]interface{}{})
	gob.Register(map[string]GateParameters{})
	gob.Register(map[string]string{})
	// Concrete types that may appear inside interface-valued node
	// parameters and state.
	gob.Register("")
	gob.Register(0)
	gob.Register(0.0)
	gob.Register(false)
	gob.Register([]interface{}{})
}
