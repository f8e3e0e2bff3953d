package backend

import "glowhost/pkg/types"

// IsOpSupported is the operator-support gate: a pure predicate over a
// node's input/output element types. It is consulted by the partitioner to
// decide whether a subgraph may land on this backend.
//
// Per §4.1: most operators require every input and output to share one
// element kind drawn from a per-op allowed set; a few positional indices
// (index/length tensors, argmax/topk index outputs) are exempt from that
// homogeneity check and carry their own per-index constraint; quantized
// convolution differentiates its bias kind; fused quantized embedding ops
// require a fused data tensor and a float result (a weights input, where
// the op has one, is not checked); logical ops
// require Bool on every slot; comparison ops accept numeric inputs and
// emit Bool. Any operator kind not named below returns false — the gate
// fails closed so the partitioner never asks this backend to compile
// something it has not declared support for.
func (b *CPUBackend) IsOpSupported(n types.NodeInfo) bool {
	switch n.Kind() {

	case types.OpAdd, types.OpSub, types.OpMul, types.OpDiv:
		return n.AllInOutSameElem(arithmeticKinds, nil, nil)

	case types.OpRelu, types.OpAbs, types.OpNeg:
		return n.AllInOutSameElem(quantizableUnaryKinds, nil, nil)

	case types.OpSigmoid, types.OpTanh, types.OpSqrt, types.OpExp, types.OpLog:
		return n.AllInOutSameElem(floatOnly, nil, nil)

	case types.OpNot, types.OpAnd, types.OpOr, types.OpXor, types.OpIsNaN:
		return n.AllInOutSameElem(boolOnly, nil, nil)

	case types.OpEqual, types.OpNotEqual, types.OpLessThan, types.OpLessEqual,
		types.OpGreaterThan, types.OpGreaterEqual:
		return comparisonSupported(n)

	case types.OpReduceSum, types.OpReduceMean, types.OpReduceMax, types.OpReduceMin:
		return n.AllInOutSameElem(reductionKinds, nil, nil)

	case types.OpMatMul, types.OpBatchMatMul, types.OpFullyConnected:
		return n.AllInOutSameElem(matmulKinds, nil, nil)

	case types.OpConv2D, types.OpConv3D:
		return convSupported(n)

	case types.OpMaxPool, types.OpAvgPool:
		return n.AllInOutSameElem(poolKinds, nil, nil)

	case types.OpBatchNorm, types.OpLayerNorm:
		return n.AllInOutSameElem(floatOnly, nil, nil)

	case types.OpReshape, types.OpTranspose, types.OpConcat, types.OpSlice, types.OpTile:
		return n.AllInOutSameElem(anyElemKind, nil, nil)

	case types.OpGather:
		return gatherSupported(n)

	case types.OpScatter:
		return scatterSupported(n)

	case types.OpTopK:
		return topKSupported(n)

	case types.OpArgMax, types.OpArgMin:
		return argIndexSupported(n)

	case types.OpSparseLengthsSum:
		return sparseLengthsSumSupported(n)

	case types.OpSparseLengthsWeightedSum:
		return sparseLengthsWeightedSumSupported(n)

	case types.OpSparseToDenseMask:
		return sparseToDenseMaskSupported(n)

	case types.OpSparseLengthsSumFused8BitRowwise, types.OpEmbeddingBagByteRowwiseOffsets:
		return fusedEmbeddingSupported(n)

	case types.OpQuantize:
		return quantizeSupported(n)

	case types.OpDequantize:
		return dequantizeSupported(n)

	case types.OpSoftmax, types.OpLogSoftmax:
		return n.AllInOutSameElem(floatOnly, nil, nil)

	default:
		return false
	}
}

var (
	floatOnly = []types.ElementKind{types.Float}
	boolOnly  = []types.ElementKind{types.Bool}
	anyElemKind = []types.ElementKind{
		types.Float, types.Int8Q, types.Int16Q, types.Int32Q,
		types.Int32I, types.Int64I, types.UInt8Q, types.UInt8FusedQ, types.Bool,
	}
	arithmeticKinds = []types.ElementKind{
		types.Float, types.Int8Q, types.Int16Q, types.Int32Q,
		types.Int32I, types.Int64I, types.UInt8Q,
	}
	quantizableUnaryKinds = []types.ElementKind{
		types.Float, types.Int8Q, types.Int16Q, types.Int32Q,
		types.UInt8Q, types.Int32I, types.Int64I,
	}
	reductionKinds = []types.ElementKind{types.Float, types.Int32I, types.Int64I}
	matmulKinds     = []types.ElementKind{types.Float, types.Int8Q, types.UInt8Q}
	poolKinds       = []types.ElementKind{types.Float, types.Int8Q, types.UInt8Q}
	comparisonNumericKinds = []types.ElementKind{
		types.Float, types.Int8Q, types.Int16Q, types.Int32Q,
		types.Int32I, types.Int64I, types.UInt8Q,
	}
	convKinds = []types.ElementKind{types.Float, types.Int8Q, types.UInt8Q}
)

// comparisonSupported implements "comparison ops accept numeric inputs and
// emit Bool": the output slot is exempt from the homogeneity check and
// validated on its own.
func comparisonSupported(n types.NodeInfo) bool {
	if n.NumOutputs() != 1 {
		return false
	}
	exceptOut := map[int]struct{}{0: {}}
	if !n.AllInOutSameElem(comparisonNumericKinds, nil, exceptOut) {
		return false
	}
	return n.OutElem(0) == types.Bool
}

// convSupported implements the quantized-bias carve-out: input 2 (bias) is
// exempt from the homogeneity check across data/filter/result, and instead
// must be Int8Q or Int32Q whenever the activation kind is quantized, or
// Float whenever the activation kind is Float.
func convSupported(n types.NodeInfo) bool {
	const biasIdx = 2
	if n.NumInputs() <= biasIdx || n.NumOutputs() < 1 {
		return false
	}
	except := map[int]struct{}{biasIdx: {}}
	if !n.AllInOutSameElem(convKinds, except, nil) {
		return false
	}
	switch n.InElem(0) {
	case types.Float:
		return n.InElem(biasIdx) == types.Float
	case types.Int8Q, types.UInt8Q:
		return n.InElem(biasIdx) == types.Int8Q || n.InElem(biasIdx) == types.Int32Q
	default:
		return false
	}
}

// gatherSupported exempts the indices input (slot 1) from the data/result
// homogeneity check; the indices input must be a plain integer index kind.
func gatherSupported(n types.NodeInfo) bool {
	const indicesIdx = 1
	if n.NumInputs() <= indicesIdx || n.NumOutputs() < 1 {
		return false
	}
	except := map[int]struct{}{indicesIdx: {}}
	if !n.AllInOutSameElem(anyElemKind, except, nil) {
		return false
	}
	return n.InElem(indicesIdx).IsIndexKind()
}

// scatterSupported exempts the indices input (slot 1) the same way Gather
// does; data, updates and result must still agree.
func scatterSupported(n types.NodeInfo) bool {
	const indicesIdx = 1
	if n.NumInputs() <= indicesIdx || n.NumOutputs() < 1 {
		return false
	}
	except := map[int]struct{}{indicesIdx: {}}
	if !n.AllInOutSameElem(anyElemKind, except, nil) {
		return false
	}
	return n.InElem(indicesIdx).IsIndexKind()
}

// topKSupported exempts the second output (indices) from the
// values/data homogeneity check; that output must be Int32I or Int64I.
func topKSupported(n types.NodeInfo) bool {
	const indicesOut = 1
	if n.NumOutputs() <= indicesOut || n.NumInputs() < 1 {
		return false
	}
	exceptOut := map[int]struct{}{indicesOut: {}}
	if !n.AllInOutSameElem(reductionKinds, nil, exceptOut) {
		return false
	}
	return n.OutElem(indicesOut).IsIndexKind()
}

// argIndexSupported handles ArgMax/ArgMin: the single output is an index
// kind, independent of the input's element kind (no homogeneity to check
// against since the data input is consumed, not echoed).
func argIndexSupported(n types.NodeInfo) bool {
	if n.NumInputs() != 1 || n.NumOutputs() != 1 {
		return false
	}
	switch n.InElem(0) {
	case types.Float, types.Int32I, types.Int64I, types.Int8Q, types.UInt8Q:
	default:
		return false
	}
	return n.OutElem(0).IsIndexKind()
}

// sparseLengthsSumSupported exempts indices (slot 1) and lengths (slot 2)
// from the data/result homogeneity check; both must be plain integer index
// kinds, independently of one another.
func sparseLengthsSumSupported(n types.NodeInfo) bool {
	const indicesIdx, lengthsIdx = 1, 2
	if n.NumInputs() <= lengthsIdx || n.NumOutputs() < 1 {
		return false
	}
	except := map[int]struct{}{indicesIdx: {}, lengthsIdx: {}}
	if !n.AllInOutSameElem(floatOnly, except, nil) {
		return false
	}
	return n.InElem(indicesIdx).IsIndexKind() && n.InElem(lengthsIdx).IsIndexKind()
}

// sparseLengthsWeightedSumSupported is SparseLengthsSum plus a weights
// input (slot 1) that must match the data/result float kind; indices and
// lengths shift to slots 2 and 3.
func sparseLengthsWeightedSumSupported(n types.NodeInfo) bool {
	const weightsIdx, indicesIdx, lengthsIdx = 1, 2, 3
	if n.NumInputs() <= lengthsIdx || n.NumOutputs() < 1 {
		return false
	}
	_ = weightsIdx
	except := map[int]struct{}{indicesIdx: {}, lengthsIdx: {}}
	if !n.AllInOutSameElem(floatOnly, except, nil) {
		return false
	}
	return n.InElem(indicesIdx).IsIndexKind() && n.InElem(lengthsIdx).IsIndexKind()
}

// sparseToDenseMaskSupported exempts the leading indices input and the
// trailing lengths input from the values/default/result homogeneity
// check.
func sparseToDenseMaskSupported(n types.NodeInfo) bool {
	const indicesIdx = 0
	lengthsIdx := n.NumInputs() - 1
	if n.NumInputs() < 3 || n.NumOutputs() < 1 || lengthsIdx <= indicesIdx {
		return false
	}
	except := map[int]struct{}{indicesIdx: {}, lengthsIdx: {}}
	if !n.AllInOutSameElem(anyElemKind, except, nil) {
		return false
	}
	return n.InElem(indicesIdx).IsIndexKind() && n.InElem(lengthsIdx).IsIndexKind()
}

// fusedEmbeddingSupported checks the fused data tensor and the result:
// input 0 must be UInt8FusedQ and the sole output must be Float. No other
// input is checked — neither the index tensors (indices, lengths, offsets)
// nor a weights input, where the op has one.
func fusedEmbeddingSupported(n types.NodeInfo) bool {
	if n.NumInputs() < 1 || n.NumOutputs() != 1 {
		return false
	}
	if n.InElem(0) != types.UInt8FusedQ {
		return false
	}
	return n.OutElem(0) == types.Float
}

func quantizeSupported(n types.NodeInfo) bool {
	if n.NumInputs() != 1 || n.NumOutputs() != 1 {
		return false
	}
	if n.InElem(0) != types.Float {
		return false
	}
	switch n.OutElem(0) {
	case types.Int8Q, types.Int16Q, types.Int32Q, types.UInt8Q:
		return true
	default:
		return false
	}
}

func dequantizeSupported(n types.NodeInfo) bool {
	if n.NumInputs() != 1 || n.NumOutputs() != 1 {
		return false
	}
	switch n.InElem(0) {
	case types.Int8Q, types.Int16Q, types.Int32Q, types.UInt8Q, types.UInt8FusedQ:
	default:
		return false
	}
	return n.OutElem(0) == types.Float
}
