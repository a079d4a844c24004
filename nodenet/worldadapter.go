package nodenet

import (
	"sort"
	"sync"
)

// WorldAdapter is the boundary contract to an external environment: the
// collaborator interface Sensor/Actor node functions read from and write
// to. Reads during sensor evaluation and writes during actor evaluation
// happen only through this interface's own synchronized methods, since one
// adapter may be shared across agents.
type WorldAdapter interface {
	// ReadDataSource returns the current value published under name, or
	// (0, false) if nothing has ever been published under it.
	ReadDataSource(name string) (float64, bool)
	// WriteDataTarget publishes value under name for the world to consume.
	WriteDataTarget(name string, value float64)
	// Snapshot is called once per step, before propagation, giving the
	// adapter a chance to latch a consistent view of its data sources for
	// the whole tick.
	Snapshot()
	// GetAvailableDataSources lists the datasource names nodenetUID may bind
	// Sensors to.
	GetAvailableDataSources(nodenetUID string) []string
	// GetAvailableDataTargets lists the datatarget names nodenetUID may bind
	// Actors to.
	GetAvailableDataTargets(nodenetUID string) []string
}

// InMemoryWorld is a synchronized, dependency-free WorldAdapter suitable for
// tests and for headless runs with no real environment attached.
type InMemoryWorld struct {
	mu          sync.Mutex
	sources     map[string]float64
	targets     map[string]float64
	targetNames map[string]struct{}
}

// NewInMemoryWorld returns an empty world adapter.
func NewInMemoryWorld() *InMemoryWorld {
	return &InMemoryWorld{
		sources:     make(map[string]float64),
		targets:     make(map[string]float64),
		targetNames: make(map[string]struct{}),
	}
}

func (w *InMemoryWorld) ReadDataSource(name string) (float64, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	v, ok := w.sources[name]
	return v, ok
}

func (w *InMemoryWorld) WriteDataTarget(name string, value float64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.targets[name] = value
	w.targetNames[name] = struct{}{}
}

// SetDataSource lets a test or a real environment loop publish a sensor
// value for the next step.
func (w *InMemoryWorld) SetDataSource(name string, value float64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.sources[name] = value
}

// DeclareDataTarget advertises name as an available datatarget before any
// Actor has written to it, so GetAvailableDataTargets can see it ahead of
// the first WriteDataTarget call.
func (w *InMemoryWorld) DeclareDataTarget(name string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.targetNames[name] = struct{}{}
}

// DataTarget returns the last value an Actor wrote to name.
func (w *InMemoryWorld) DataTarget(name string) (float64, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	v, ok := w.targets[name]
	return v, ok
}

func (w *InMemoryWorld) Snapshot() {}

// GetAvailableDataSources returns every datasource name currently
// published, sorted for determinism. nodenetUID is unused here: this
// adapter's sources and targets are shared process-wide.
func (w *InMemoryWorld) GetAvailableDataSources(nodenetUID string) []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	names := make([]string, 0, len(w.sources))
	for name := range w.sources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GetAvailableDataTargets returns every datatarget name declared or written
// to so far, sorted for determinism.
func (w *InMemoryWorld) GetAvailableDataTargets(nodenetUID string) []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	names := make([]string, 0, len(w.targetNames))
	for name := range w.targetNames {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (nn *Nodenet) readWorldSensor(name string) float64 {
	if nn.world == nil {
		return 0
	}
	v, _ := nn.world.ReadDataSource(name)
	return v
}

func (nn *Nodenet) writeWorldActuator(name string, value float64) {
	if nn.world == nil {
		return
	}
	nn.world.WriteDataTarget(name, value)
}
