package host

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"glowhost/internal/backend"
	"glowhost/internal/devicemgr"
	"glowhost/internal/dispatch"
	"glowhost/internal/exec"
	"glowhost/internal/hosterr"
	"glowhost/internal/partition"
	"glowhost/internal/provision"
	"glowhost/internal/queue"
	"glowhost/internal/registry"
	"glowhost/pkg/types"
)

// Manager is the Host Manager façade (§6): it owns every device manager,
// the one concrete backend, the partitioner/provisioner/executor, the
// network registry, the admission queue, and the dispatcher, and exposes
// the lifecycle and run operations listed in §6.
type Manager struct {
	cfg Config

	deviceCfgs []types.DeviceConfig
	devices    map[int]*devicemgr.Manager
	backends   map[string]backend.Backend

	registry    *registry.Registry
	queue       *queue.Queue
	executor    *exec.Executor
	dispatcher  *dispatch.Dispatcher
	provisioner *provision.Provisioner
	partitioner *partition.Partitioner

	poolsMu sync.Mutex
	pools   map[string]*exec.Pool

	nextRequestID atomic.Uint64
	startedAt     time.Time

	publisher EventPublisher
	logger    zerolog.Logger
}

// New initializes device managers for every entry in deviceConfigs, the one
// CPU backend, and the Partitioner/Provisioner/Executor/Registry/Queue/
// Dispatcher pipeline, per §6's `new(device_configs[, host_config])`.
func New(deviceConfigs []types.DeviceConfig, cfg Config) (*Manager, error) {
	cfg = cfg.withDefaults()
	deviceConfigs = types.NormalizeDeviceConfigs(deviceConfigs)

	devices := make(map[int]*devicemgr.Manager, len(deviceConfigs))
	for _, dc := range deviceConfigs {
		dev := devicemgr.New(dc)
		if err := dev.Init(); err != nil {
			return nil, hosterr.DependencyUnavailable("host: device %q failed to initialize: %v", dc.DeviceName, err)
		}
		devices[dc.DeviceID] = dev
	}

	backends := map[string]backend.Backend{
		"CPU": backend.NewCPUBackend(countBackend(deviceConfigs, "CPU")),
	}

	reg := registry.New()
	q := queue.New(cfg.MaxQueueSize)
	ex := exec.New(devices, cfg.ExecutorThreads)
	prov := provision.New(devices, backends)
	part := partition.New()
	disp := dispatch.New(reg, q, ex, cfg.MaxActiveRequests)

	return &Manager{
		cfg:         cfg,
		deviceCfgs:  deviceConfigs,
		devices:     devices,
		backends:    backends,
		registry:    reg,
		queue:       q,
		executor:    ex,
		dispatcher:  disp,
		provisioner: prov,
		partitioner: part,
		pools:       make(map[string]*exec.Pool),
		startedAt:   time.Now(),
		publisher:   noopPublisher{},
		logger:      log.With().Str("component", "host").Logger(),
	}, nil
}

// SetEventPublisher installs publisher for subsequent lifecycle events.
func (m *Manager) SetEventPublisher(publisher EventPublisher) {
	if publisher == nil {
		publisher = noopPublisher{}
	}
	m.publisher = publisher
}

func countBackend(cfgs []types.DeviceConfig, name string) int {
	n := 0
	for _, c := range cfgs {
		if c.BackendName == name {
			n++
		}
	}
	return n
}

// deviceSnapshot collects a DeviceInfo per configured device (§4.5 step 3).
// SupportedNodes/NonSupportedNodes are left empty: the partitioner consults
// backends directly rather than a precomputed list, and no other consumer
// in this repo needs the enumeration populated.
func (m *Manager) deviceSnapshot() []types.DeviceInfo {
	out := make([]types.DeviceInfo, 0, len(m.devices))
	for _, dc := range m.deviceCfgs {
		dev := m.devices[dc.DeviceID]
		out = append(out, dev.GetDeviceInfo(nil, nil))
	}
	return out
}

// AddNetwork runs the twelve-step pipeline of §4.5: reserve, optionally
// freeze constants, snapshot devices, pre-partition optimize, partition,
// handle profiling mode, deferred constant-fold and re-verify, optionally
// run the DAG optimizer and serialize, strip the module, provision, create
// executor pools, and publish. Any failure rolls back every reservation and
// every partial device allocation this call made; the registry and
// processing set are left exactly as they were on entry.
func (m *Manager) AddNetwork(module *types.Module, cc CompilationContext) error {
	logger := m.logger
	if cc.VerboseCompile {
		logger = logger.Level(zerolog.DebugLevel)
	}

	names := module.FunctionNames()
	if len(names) == 0 {
		return hosterr.Runtime("add_network: module has no functions")
	}

	// Step 1: reserve names.
	if err := m.registry.Reserve(names); err != nil {
		return err
	}
	rollback := func() { m.registry.Unreserve(names) }

	// Step 2: optional constant freeze. The freeze/unfreeze dance itself has
	// no payload to move in this repo (constants live in the out-of-scope
	// IR representation); DelayAndRecordConstantModification only gates
	// whether step 7 logs a fold step, preserving the option's externally
	// visible effect without fabricating constant storage.
	frozen := cc.DelayAndRecordConstantModification
	if frozen {
		logger.Debug().Msg("add_network: constants frozen pending deferred fold")
	}

	// Step 3: snapshot devices.
	devices := m.deviceSnapshot()

	// Step 4: pre-partition optimization, skipped per function when a
	// backend hint is already present. The optimizer pass body is out of
	// scope; this step's externally visible effect is exactly the skip.
	for _, fn := range module.Functions {
		if fn.BackendHint == "" {
			logger.Debug().Str("function", fn.Name).Msg("add_network: running target-independent optimization")
		}
	}

	// Step 5: partition every function.
	contextCount := cc.contextCount(m.cfg.MaxActiveRequests)
	dags := make(map[string]*types.CompiledDAG, len(names))
	for _, fn := range module.Functions {
		dag, err := m.partitioner.Partition(fn, devices, m.backends, contextCount)
		if err != nil {
			rollback()
			return err
		}
		dags[fn.Name] = dag
	}

	// Step 6: profiling mode.
	if cc.QuantMode == backend.QuantModeProfile {
		// Only published networks count: this call's own names are still in
		// the processing set at this point.
		if n := len(m.registry.Names()); n != 0 {
			rollback()
			return hosterr.Runtime("add_network: profile mode requires an empty registry, %d network(s) already present", n)
		}
		if err := m.enterProfilingMode(); err != nil {
			rollback()
			return err
		}
	}

	// Step 7: deferred constant folding and re-verification.
	if frozen {
		logger.Debug().Msg("add_network: unfreezing constants and running deferred constant folding")
	}
	for _, fn := range module.Functions {
		dag := dags[fn.Name]
		if err := m.verifyDAG(dag); err != nil {
			rollback()
			return err
		}
	}

	// Step 8: optional DAG optimizer and serialization.
	if cc.CallDagOptimizer {
		logger.Debug().Msg("add_network: running final DAG optimizer pass")
	}
	if cc.SerializeCompiledDAG {
		for name, dag := range dags {
			if b, err := json.Marshal(dagView(dag)); err != nil {
				logger.Warn().Str("network", name).Err(err).Msg("add_network: failed to serialize compiled DAG")
			} else {
				logger.Debug().Str("network", name).Int("bytes", len(b)).Msg("add_network: serialized compiled DAG")
			}
		}
	}

	// Step 9: strip module.
	if !cc.SkipModuleStrip {
		module.StripConstants()
	}

	// Step 10: provision.
	provisioned := make([]*types.CompiledDAG, 0, len(dags))
	for _, fn := range module.Functions {
		dag := dags[fn.Name]
		if err := m.provisioner.Provision(dag); err != nil {
			for _, d := range provisioned {
				m.provisioner.ReleaseDAG(d)
			}
			rollback()
			return err
		}
		provisioned = append(provisioned, dag)
	}

	// Step 11: create per-DAG executor pools.
	m.poolsMu.Lock()
	for _, fn := range module.Functions {
		dag := dags[fn.Name]
		m.pools[fn.Name] = m.executor.CreatePool(dag, m.cfg.MaxActiveRequests)
	}
	m.poolsMu.Unlock()

	// Step 12: publish.
	for _, fn := range module.Functions {
		m.registry.Publish(fn.Name, dags[fn.Name], module)
		m.publisher.Publish(Event{Name: "network_added", NetworkName: fn.Name})
	}

	if cc.DumpFinalGraph {
		for _, fn := range module.Functions {
			logger.Debug().Str("function", fn.Name).Interface("dag", dagView(dags[fn.Name])).Msg("add_network: final graph")
		}
	}

	return nil
}

// enterProfilingMode recreates every device manager and the shared
// provisioner, executor, and dispatcher so a profiling compilation starts
// from clean device state. This is documented as intentional and one-shot
// (§9 Open Question 3): it discards any prior device bookkeeping, which is
// only safe because step 6 already asserted the registry is empty.
func (m *Manager) enterProfilingMode() error {
	for _, dev := range m.devices {
		_ = dev.Stop()
	}
	newDevices := make(map[int]*devicemgr.Manager, len(m.deviceCfgs))
	for _, dc := range m.deviceCfgs {
		dev := devicemgr.New(dc)
		if err := dev.Init(); err != nil {
			return hosterr.DependencyUnavailable("host: profiling device %q failed to initialize: %v", dc.DeviceName, err)
		}
		newDevices[dc.DeviceID] = dev
	}

	m.dispatcher.Stop()
	m.devices = newDevices
	m.provisioner = provision.New(newDevices, m.backends)
	m.executor = exec.New(newDevices, m.cfg.ExecutorThreads)
	m.dispatcher = dispatch.New(m.registry, m.queue, m.executor, m.cfg.MaxActiveRequests)
	return nil
}

// verifyDAG re-checks every node of dag against its assigned backend,
// mirroring §4.5 step 7's post-fold re-verification.
func (m *Manager) verifyDAG(dag *types.CompiledDAG) error {
	byBackend := make(map[string][]types.FunctionNode)
	for _, n := range dag.Nodes {
		byBackend[n.BackendName] = append(byBackend[n.BackendName], types.FunctionNode{
			Name: n.Name, Kind: n.Kind, Inputs: n.Inputs, Outputs: n.Outputs,
		})
	}
	for backendName, nodes := range byBackend {
		be, ok := m.backends[backendName]
		if !ok {
			return hosterr.Runtime("add_network: unknown backend %q for function %q", backendName, dag.FunctionName)
		}
		if err := be.Verify(backend.Function{Name: dag.FunctionName, Nodes: nodes}); err != nil {
			return hosterr.Runtime("add_network: %v", err)
		}
	}
	return nil
}

// dagView is a JSON-friendly projection of a CompiledDAG used for
// serialization and debug dumps; it flattens the pointer graph into a node
// list plus a parallel children-by-name list so json.Marshal does not need
// to walk a cyclic-looking pointer structure.
type dagViewT struct {
	FunctionName string         `json:"function_name"`
	Root         string         `json:"root"`
	Nodes        []dagViewNodeT `json:"nodes"`
}

type dagViewNodeT struct {
	Name        string   `json:"name"`
	BackendName string   `json:"backend_name"`
	DeviceID    int      `json:"device_id"`
	Kind        string   `json:"kind"`
	Children    []string `json:"children"`
}

func dagView(dag *types.CompiledDAG) dagViewT {
	nodes := make([]dagViewNodeT, len(dag.Nodes))
	for i, n := range dag.Nodes {
		children := make([]string, len(n.Children))
		for j, c := range n.Children {
			children[j] = c.Name
		}
		nodes[i] = dagViewNodeT{
			Name: n.Name, BackendName: n.BackendName, DeviceID: n.DeviceID,
			Kind: n.Kind.String(), Children: children,
		}
	}
	return dagViewT{FunctionName: dag.FunctionName, Root: dag.Root.Name, Nodes: nodes}
}

// RemoveNetwork evicts name (§4.2, §4.6). It fails with RUNTIME_NET_BUSY if
// name is mid-add or has outstanding runs, and silently succeeds if name is
// unknown.
func (m *Manager) RemoveNetwork(name string) error {
	dag, err := m.registry.RemoveAndTake(name)
	if err != nil {
		return err
	}
	if dag == nil {
		return nil
	}
	m.provisioner.ReleaseDAG(dag)
	m.poolsMu.Lock()
	delete(m.pools, name)
	m.poolsMu.Unlock()
	m.publisher.Publish(Event{Name: "network_removed", NetworkName: name})
	return nil
}

// NetworkAdded reports whether name is currently published.
func (m *Manager) NetworkAdded(name string) bool {
	return m.registry.Contains(name)
}

// GetNetworkDAG returns the published compiled DAG for name.
func (m *Manager) GetNetworkDAG(name string) (*types.CompiledDAG, error) {
	dag, _, ok := m.registry.Get(name)
	if !ok {
		return nil, hosterr.NetNotFound(name)
	}
	return dag, nil
}

// RunNetwork submits an inference request against name and returns
// immediately with a request_id; the result is delivered asynchronously to
// callback exactly once (§6, §7: request submission never returns a hard
// error — NET_NOT_FOUND and REQUEST_REFUSED are delivered through the
// callback like any other outcome).
func (m *Manager) RunNetwork(name string, execCtx *types.ExecContext, callback types.ResultCallback, priority int) types.RequestID {
	id := types.RequestID(m.nextRequestID.Add(1))
	req := &types.InferRequest{
		NetworkName: name,
		Context:     execCtx,
		Callback:    callback,
		Priority:    priority,
		RequestID:   id,
		ReceivedAt:  time.Now(),
	}
	if err := m.dispatcher.Submit(req); err != nil {
		if callback != nil {
			callback(execCtx, err)
		}
	}
	return id
}

// RunNetworkBlocking runs name synchronously: it blocks on a single-shot
// notification awaiting the async callback (§5). execCtx is treated as a
// non-owning view for the duration of the call (§9 Open Question 1): the
// caller retains ownership, the dispatcher/executor read its inputs and
// write its outputs in place, so the caller must not read execCtx
// concurrently with the call. When the call returns the run's result,
// neither retains a reference. If ctx is done first, the call returns
// ctx.Err() while the run may still be writing execCtx's outputs.
func (m *Manager) RunNetworkBlocking(ctx context.Context, name string, execCtx *types.ExecContext) error {
	done := make(chan error, 1)
	m.RunNetwork(name, execCtx, func(_ *types.ExecContext, err error) {
		done <- err
	}, 0)
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// StartDeviceTrace enables per-device execution tracing on every device.
func (m *Manager) StartDeviceTrace() {
	for _, dev := range m.devices {
		dev.StartDeviceTrace()
	}
}

// StopDeviceTrace disables per-device execution tracing on every device.
func (m *Manager) StopDeviceTrace() {
	for _, dev := range m.devices {
		dev.StopDeviceTrace()
	}
}

// Status reports the aggregate counters exposed by GET /status.
func (m *Manager) Status() types.HostStatus {
	return types.HostStatus{
		Networks:           m.registry.Snapshot(),
		ActiveRequestCount: m.dispatcher.ActiveRequestCount(),
		MaxActiveRequests:  m.cfg.MaxActiveRequests,
		QueueSize:          m.dispatcher.QueueSize(),
		MaxQueueSize:       m.cfg.MaxQueueSize,
		TotalRequestCount:  m.dispatcher.TotalRequestCount(),
		RequestsFailed:     m.dispatcher.FailedRequestCount(),
		UptimeSeconds:      int64(time.Since(m.startedAt).Seconds()),
	}
}

// Ready reports whether the host is ready to accept traffic. This stand-in
// has nothing to warm up asynchronously, so it is ready as soon as New
// returns; Ready exists so the HTTP layer's /readyz has a stable hook if a
// future device backend needs a warm-up period.
func (m *Manager) Ready() bool { return true }

// ClearHost implements §4.6: stop admitting new runs, block until every
// in-flight execution drains, remove every network, stop every device
// manager, and zero memory counters. Dispatcher.Stop blocks until both its
// queue and its active-request count reach zero, so by the time it returns
// here active_request_count is already guaranteed zero and every network's
// refcount has been released by its last completion — RemoveNetwork below
// therefore never sees a spurious NetBusy from abandoned queued work. Per-
// device teardown failures are accumulated first-error-wins; ClearHost
// still attempts best-effort teardown of every device before returning the
// first error, if any.
func (m *Manager) ClearHost() error {
	m.dispatcher.Stop()

	var firstErr error
	for _, name := range m.registry.Names() {
		if err := m.RemoveNetwork(name); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	for _, dev := range m.devices {
		if err := dev.Stop(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	m.publisher.Publish(Event{Name: "host_cleared"})
	return firstErr
}
