// Package devicemgr provides the local, non-accelerator stand-in for the
// externally-specified Device Manager contract (§6): one instance per
// configured device, tracking available memory and executing a single
// compiled DAG node's "run" without needing real hardware.
//
// One bookkeeping struct per managed unit, guarded by a single mutex, with
// explicit Init/Stop lifecycle methods instead of relying on garbage
// collection to tear things down.
package devicemgr

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"glowhost/pkg/types"
)

// Manager owns one physical (here: simulated) device: it loads compiled
// DAG nodes, reports memory, and executes a node's run on request.
type Manager struct {
	cfg types.DeviceConfig

	mu        sync.Mutex
	available int64
	loaded    map[string]struct{} // node name -> loaded
	tracing   bool
	stopped   bool

	logger zerolog.Logger

	// PreRun, when set, is called before simulating each node's work. Test
	// code uses it to block a run on a latch, reproducing scenario S2's
	// "executor blocks on a latch" setup without needing a real kernel.
	PreRun func(ctx context.Context, nodeName string) error
}

// New returns a Manager for cfg, with AvailableMemory initialized to
// cfg.MemoryBytes.
func New(cfg types.DeviceConfig) *Manager {
	return &Manager{
		cfg:       cfg,
		available: cfg.MemoryBytes,
		loaded:    make(map[string]struct{}),
		logger:    log.With().Str("component", "devicemgr").Str("backend", cfg.BackendName).Int("device_id", cfg.DeviceID).Logger(),
	}
}

// Init prepares the device for use. The simulated device has nothing to
// initialize beyond logging; real implementations would open a driver
// handle here.
func (m *Manager) Init() error {
	m.logger.Info().Msg("device initialized")
	return nil
}

// Stop releases the device. Safe to call more than once.
func (m *Manager) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopped {
		return nil
	}
	m.stopped = true
	m.loaded = make(map[string]struct{})
	m.logger.Info().Msg("device stopped")
	return nil
}

// GetDeviceInfo returns a snapshot consumed by the partitioner.
func (m *Manager) GetDeviceInfo(supported, nonSupported []types.OpKind) types.DeviceInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	return types.DeviceInfo{
		BackendName:       m.cfg.BackendName,
		DeviceID:          m.cfg.DeviceID,
		AvailableMemory:   m.available,
		SupportedNodes:    supported,
		NonSupportedNodes: nonSupported,
	}
}

// GetMaximumMemory returns the device's configured total memory.
func (m *Manager) GetMaximumMemory() int64 { return m.cfg.MemoryBytes }

// GetAvailableMemory returns the memory not currently reserved by a loaded
// node.
func (m *Manager) GetAvailableMemory() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.available
}

// GetBackendName returns the backend this device runs.
func (m *Manager) GetBackendName() string { return m.cfg.BackendName }

// GetParamByName returns a device-specific configuration parameter.
func (m *Manager) GetParamByName(name string) (string, bool) {
	v, ok := m.cfg.Params[name]
	return v, ok
}

// StartDeviceTrace enables per-device execution tracing.
func (m *Manager) StartDeviceTrace() {
	m.mu.Lock()
	m.tracing = true
	m.mu.Unlock()
}

// StopDeviceTrace disables per-device execution tracing.
func (m *Manager) StopDeviceTrace() {
	m.mu.Lock()
	m.tracing = false
	m.mu.Unlock()
}

// estimatedNodeCost is a crude, deterministic stand-in for compiled node
// size: every loaded node reserves a fixed slice of memory rather than
// modeling tensor sizes precisely. Partitioning correctness tests care
// about admission decisions, not exact byte accounting.
const estimatedNodeCost = 1 << 20 // 1 MiB

// Reserve accounts for loading node onto this device, failing if it would
// exceed available memory. Used by the provisioner to load a node.
func (m *Manager) Reserve(nodeName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.loaded[nodeName]; ok {
		return nil
	}
	if m.available < estimatedNodeCost {
		return errOutOfMemory{device: m.cfg.DeviceName}
	}
	m.available -= estimatedNodeCost
	m.loaded[nodeName] = struct{}{}
	return nil
}

// Release frees a previously reserved node, used both by normal eviction
// and by provisioner rollback on partial-allocation failure.
func (m *Manager) Release(nodeName string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.loaded[nodeName]; ok {
		delete(m.loaded, nodeName)
		m.available += estimatedNodeCost
	}
}

// RunNode simulates executing one compiled DAG node: it sleeps a small
// deterministic duration and writes placeholder output tensors matching
// node's declared output element types. Real device managers would invoke
// the compiled kernel here.
func (m *Manager) RunNode(ctx context.Context, node *types.DagNode, execCtx *types.ExecContext) error {
	m.mu.Lock()
	tracing := m.tracing
	m.mu.Unlock()
	if tracing {
		m.logger.Debug().Str("node", node.Name).Msg("run node (trace)")
	}
	if m.PreRun != nil {
		if err := m.PreRun(ctx, node.Name); err != nil {
			return err
		}
	}
	select {
	case <-time.After(time.Microsecond * 50):
	case <-ctx.Done():
		return ctx.Err()
	}
	for i, out := range node.Outputs {
		execCtx.Outputs[outputKey(node, i)] = types.Tensor{Type: out}
	}
	return nil
}

func outputKey(node *types.DagNode, i int) string {
	if i == 0 {
		return node.Name
	}
	return node.Name + "#" + itoa(i)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var buf [20]byte
	pos := len(buf)
	for n > 0 {
		pos--
		buf[pos] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[pos:])
}

type errOutOfMemory struct{ device string }

func (e errOutOfMemory) Error() string { return "device " + e.device + " out of memory" }
