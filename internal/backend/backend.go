// Package backend declares the contract the Host Manager consumes from a
// compilation backend, and provides the one concrete backend (CPU) this
// repo ships so the manager is exercisable without real accelerator
// hardware.
package backend

import "glowhost/pkg/types"

// PrecisionConfig carries the handful of precision-related compilation
// options the operator-support gate and index-demotion predicate consult.
// It mirrors the compilation context's precision_config.quant_mode field
// from the lifecycle coordinator.
type PrecisionConfig struct {
	QuantMode QuantMode
}

// QuantMode mirrors the Quantization mode glossary entry: Profile is a
// one-shot, instrumented compilation incompatible with pre-existing
// networks.
type QuantMode int

const (
	QuantModeNone QuantMode = iota
	QuantModeQuantize
	QuantModeProfile
)

// Function is the minimal view of a compiled function a backend's Verify
// needs: enough to walk nodes and check backend assignment.
type Function struct {
	Name  string
	Nodes []types.FunctionNode
}

// Backend is the contract consumed by the partitioner, provisioner and
// lifecycle coordinator. Implementations must be safe for concurrent use;
// IsOpSupported/ShouldLower/CanDemoteIndexType must be pure functions of
// their arguments.
type Backend interface {
	// Name returns the backend's registered name (e.g. "CPU").
	Name() string

	// IsOpSupported declares, per operator kind, whether this backend
	// admits the given node's input/output element-type combination.
	// Unknown or unlisted operators must return false (fail-closed).
	IsOpSupported(n types.NodeInfo) bool

	// ShouldLower asks the graph layer not to pre-lower a small allow-list
	// of operators, preserving fused implementations the backend provides
	// natively.
	ShouldLower(n types.NodeInfo) bool

	// CanDemoteIndexType declares whether narrowing an index tensor from
	// `from` to `to` is legal under the given precision configuration for
	// ops of the given kind.
	CanDemoteIndexType(kind types.OpKind, from, to types.ElementKind, precision PrecisionConfig) bool

	// Verify checks that every node in fn is actually supported by this
	// backend; used as a final gate after deferred constant folding
	// (§4.5 step 7).
	Verify(fn Function) error

	// NumDevices reports how many physical devices this backend process
	// currently manages.
	NumDevices() int

	// GetLibjitBitcode returns the backend's embedded, build-time-generated
	// kernel bitcode as a read-only byte slice. Callers must not mutate the
	// returned slice.
	GetLibjitBitcode() []byte
}
