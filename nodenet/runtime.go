package nodenet

import (
	"sync"

	"go.uber.org/zap"
)

// Runtime is the single composition root holding every live nodenet and
// registered world adapter, with an explicit lifecycle: constructed at
// startup with a resource path, destroyed at shutdown. There are no
// ambient singletons.
type Runtime struct {
	mu sync.Mutex

	ResourcePath string
	Config       *RuntimeConfig

	nodenets map[string]*Nodenet
	worlds   map[string]WorldAdapter

	logger *zap.SugaredLogger
}

// NewRuntime constructs a Runtime rooted at resourcePath with cfg (use
// DefaultRuntimeConfig() if cfg is nil). Caller must call Close at
// shutdown.
func NewRuntime(resourcePath string, cfg *RuntimeConfig, logger *zap.Logger) *Runtime {
	if cfg == nil {
		cfg = DefaultRuntimeConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runtime{
		ResourcePath: resourcePath,
		Config:       cfg,
		nodenets:     make(map[string]*Nodenet),
		worlds:       make(map[string]WorldAdapter),
		logger:       logger.Sugar(),
	}
}

// Close releases every nodenet and world the runtime holds. It does not
// persist anything; call SaveCheckpoint first if that is wanted.
func (rt *Runtime) Close() error {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.nodenets = make(map[string]*Nodenet)
	rt.worlds = make(map[string]WorldAdapter)
	return nil
}

// NewNodenet creates and registers a new, empty nodenet.
func (rt *Runtime) NewNodenet(uid, owner, name, worldUID string) (*Nodenet, error) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if _, exists := rt.nodenets[uid]; exists {
		return nil, InvalidArgumentf("nodenet %q already exists", uid)
	}
	var world WorldAdapter
	if worldUID != "" {
		w, ok := rt.worlds[worldUID]
		if !ok {
			return nil, NotFoundf("world", worldUID)
		}
		world = w
	}
	nn := NewNodenet(uid, owner, name, world, rt.logger)
	nn.WorldUID = worldUID
	nn.applyEngineConfig(rt.Config.Engine)
	rt.nodenets[uid] = nn
	return nn, nil
}

// DeleteNodenet removes a nodenet from the runtime.
func (rt *Runtime) DeleteNodenet(uid string) error {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if _, ok := rt.nodenets[uid]; !ok {
		return NotFoundf("nodenet", uid)
	}
	delete(rt.nodenets, uid)
	return nil
}

// GetNodenet returns the nodenet registered under uid.
func (rt *Runtime) GetNodenet(uid string) (*Nodenet, error) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	nn, ok := rt.nodenets[uid]
	if !ok {
		return nil, NotFoundf("nodenet", uid)
	}
	return nn, nil
}

// ListNodenets returns the uids of every nodenet the runtime holds.
func (rt *Runtime) ListNodenets() []string {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	uids := make([]string, 0, len(rt.nodenets))
	for uid := range rt.nodenets {
		uids = append(uids, uid)
	}
	return uids
}

// RegisterWorld makes world available for nodenets to attach to by uid.
func (rt *Runtime) RegisterWorld(uid string, world WorldAdapter) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.worlds[uid] = world
}

// ReloadNativeModules replaces nn's native-module registry entries, then
// snapshots the net, clears it, and re-merges the snapshot -- guaranteeing
// nodes of reloaded types are re-instantiated against the new manifest.
// Nodes whose persisted type is no longer known are dropped with a
// warning, and their links with them.
func (rt *Runtime) ReloadNativeModules(nn *Nodenet, manifests []*Nodetype) ([]string, error) {
	nn.Lock()
	defer nn.Unlock()

	for _, name := range nn.nodetypes.NativeModuleNames() {
		nn.nodetypes.UnregisterNativeModule(name)
	}
	for _, nt := range manifests {
		if err := nn.nodetypes.RegisterNativeModule(nt); err != nil {
			return nil, err
		}
	}

	doc := nn.Export()
	nn.nodespaces = make(map[string]*Nodespace)
	nn.nodes = make(map[string]*Node)
	nn.links = make(map[string]*Link)
	nn.monitors = make(map[string]*Monitor)
	nn.nodeOrder = nil
	nn.nodespaces[RootNodespaceUID] = newNodespace(RootNodespaceUID, "", "Root", [2]float64{})

	warnings := nn.Merge(doc)
	return warnings, nil
}
