package backend

import (
	"fmt"

	"github.com/pkg/errors"

	"glowhost/pkg/types"
)

// CPUBackend is the one concrete backend shipped with this repo. It has no
// real code generator; internal/provision treats every node as "compiled"
// once IsOpSupported accepts it.
type CPUBackend struct {
	numDevices int
}

// NewCPUBackend returns a CPUBackend configured to believe it manages
// numDevices physical devices.
func NewCPUBackend(numDevices int) *CPUBackend {
	if numDevices < 1 {
		numDevices = 1
	}
	return &CPUBackend{numDevices: numDevices}
}

func (b *CPUBackend) Name() string      { return "CPU" }
func (b *CPUBackend) NumDevices() int   { return b.numDevices }

// GetLibjitBitcode returns the embedded kernel bitcode. The returned slice
// aliases the package-level constant; callers must treat it as read-only.
func (b *CPUBackend) GetLibjitBitcode() []byte { return libjitBitcode }

// lowerAllowList names the operators the graph layer must not pre-lower,
// preserving this backend's fused implementations.
var lowerAllowList = map[types.OpKind]struct{}{
	types.OpConv2D:                           {},
	types.OpConv3D:                           {},
	types.OpSparseLengthsSum:                  {},
	types.OpSparseLengthsWeightedSum:          {},
	types.OpSparseLengthsSumFused8BitRowwise:  {},
	types.OpEmbeddingBagByteRowwiseOffsets:    {},
}

// ShouldLower reports whether the graph layer should decompose node into
// simpler primitives before handing it to this backend. The allow-listed
// operators above are returned as "do not lower" (false); everything else
// may be lowered freely (true).
func (b *CPUBackend) ShouldLower(n types.NodeInfo) bool {
	_, exempt := lowerAllowList[n.Kind()]
	return !exempt
}

// indexDemotionExcluded names operators for which narrowing an index
// tensor's element kind is never legal, regardless of precision
// configuration: the embedding-bag family, fused rowwise ops, and
// sparse-to-dense-mask all rely on the index tensor's exact width for
// correctness.
var indexDemotionExcluded = map[types.OpKind]struct{}{
	types.OpEmbeddingBagByteRowwiseOffsets:   {},
	types.OpSparseLengthsSumFused8BitRowwise: {},
	types.OpSparseToDenseMask:                {},
}

// CanDemoteIndexType declares whether narrowing an index tensor from
// `from` to `to` is legal for nodes of the given kind under precision.
// Only Int64I -> Int32I is ever a legal narrowing; it is never legal for
// the excluded operator kinds above, and Profile-mode compilation never
// allows any index demotion (profiling needs exact value ranges).
func (b *CPUBackend) CanDemoteIndexType(kind types.OpKind, from, to types.ElementKind, precision PrecisionConfig) bool {
	if precision.QuantMode == QuantModeProfile {
		return false
	}
	if from != types.Int64I || to != types.Int32I {
		return false
	}
	_, excluded := indexDemotionExcluded[kind]
	return !excluded
}

// Verify re-checks every node of fn against IsOpSupported. It is called
// after deferred constant folding (§4.5 step 7) to catch any node whose
// element types changed during folding and no longer satisfy the gate.
func (b *CPUBackend) Verify(fn Function) error {
	for _, node := range fn.Nodes {
		if !b.IsOpSupported(node.NodeInfo()) {
			return errors.Wrapf(
				fmt.Errorf("operator not supported by backend %s", b.Name()),
				"verify function %q node %q (kind %s)", fn.Name, node.Name, node.Kind,
			)
		}
	}
	return nil
}
