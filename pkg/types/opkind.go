package types

import (
	"encoding/json"
	"fmt"
)

// OpKind tags the operator family a DagNode represents. The operator
// support gate and the partitioner switch on this tag instead of doing any
// dynamic-cast-style instruction inspection.
type OpKind int32

const (
	OpUnknown OpKind = iota

	// Elementwise arithmetic.
	OpAdd
	OpSub
	OpMul
	OpDiv

	// Elementwise unary.
	OpRelu
	OpSigmoid
	OpTanh
	OpAbs
	OpNeg
	OpSqrt
	OpExp
	OpLog

	// Logical (Bool-only).
	OpNot
	OpAnd
	OpOr
	OpXor
	OpIsNaN

	// Comparisons (numeric in, Bool out).
	OpEqual
	OpNotEqual
	OpLessThan
	OpLessEqual
	OpGreaterThan
	OpGreaterEqual

	// Reductions.
	OpReduceSum
	OpReduceMean
	OpReduceMax
	OpReduceMin

	// Matrix / fully connected.
	OpMatMul
	OpBatchMatMul
	OpFullyConnected

	// Convolution.
	OpConv2D
	OpConv3D

	// Pooling.
	OpMaxPool
	OpAvgPool

	// Normalization.
	OpBatchNorm
	OpLayerNorm

	// Shape manipulation.
	OpReshape
	OpTranspose
	OpConcat
	OpSlice
	OpTile
	OpGather
	OpScatter

	// Index-producing.
	OpTopK
	OpArgMax
	OpArgMin

	// Sparse / embedding.
	OpSparseLengthsSum
	OpSparseLengthsWeightedSum
	OpSparseToDenseMask
	OpSparseLengthsSumFused8BitRowwise
	OpEmbeddingBagByteRowwiseOffsets

	// Quantization.
	OpQuantize
	OpDequantize

	// Softmax family.
	OpSoftmax
	OpLogSoftmax
)

// String returns the canonical operator name.
func (k OpKind) String() string {
	if s, ok := opKindNames[k]; ok {
		return s
	}
	return "unknown"
}

var opKindNames = map[OpKind]string{
	OpAdd:                              "Add",
	OpSub:                              "Sub",
	OpMul:                              "Mul",
	OpDiv:                              "Div",
	OpRelu:                             "Relu",
	OpSigmoid:                          "Sigmoid",
	OpTanh:                             "Tanh",
	OpAbs:                              "Abs",
	OpNeg:                              "Neg",
	OpSqrt:                             "Sqrt",
	OpExp:                              "Exp",
	OpLog:                              "Log",
	OpNot:                              "Not",
	OpAnd:                              "And",
	OpOr:                               "Or",
	OpXor:                              "Xor",
	OpIsNaN:                            "IsNaN",
	OpEqual:                            "Equal",
	OpNotEqual:                         "NotEqual",
	OpLessThan:                         "LessThan",
	OpLessEqual:                        "LessEqual",
	OpGreaterThan:                      "GreaterThan",
	OpGreaterEqual:                     "GreaterEqual",
	OpReduceSum:                        "ReduceSum",
	OpReduceMean:                       "ReduceMean",
	OpReduceMax:                        "ReduceMax",
	OpReduceMin:                        "ReduceMin",
	OpMatMul:                           "MatMul",
	OpBatchMatMul:                      "BatchMatMul",
	OpFullyConnected:                   "FullyConnected",
	OpConv2D:                           "Conv2D",
	OpConv3D:                           "Conv3D",
	OpMaxPool:                          "MaxPool",
	OpAvgPool:                          "AvgPool",
	OpBatchNorm:                        "BatchNorm",
	OpLayerNorm:                        "LayerNorm",
	OpReshape:                          "Reshape",
	OpTranspose:                        "Transpose",
	OpConcat:                           "Concat",
	OpSlice:                            "Slice",
	OpTile:                             "Tile",
	OpGather:                           "Gather",
	OpScatter:                          "Scatter",
	OpTopK:                             "TopK",
	OpArgMax:                           "ArgMax",
	OpArgMin:                           "ArgMin",
	OpSparseLengthsSum:                 "SparseLengthsSum",
	OpSparseLengthsWeightedSum:         "SparseLengthsWeightedSum",
	OpSparseToDenseMask:                "SparseToDenseMask",
	OpSparseLengthsSumFused8BitRowwise: "SparseLengthsSumFused8BitRowwise",
	OpEmbeddingBagByteRowwiseOffsets:   "EmbeddingBagByteRowwiseOffsets",
	OpQuantize:                         "Quantize",
	OpDequantize:                       "Dequantize",
	OpSoftmax:                          "Softmax",
	OpLogSoftmax:                       "LogSoftmax",
}

var opKindByName map[string]OpKind

func init() {
	opKindByName = make(map[string]OpKind, len(opKindNames))
	for k, name := range opKindNames {
		opKindByName[name] = k
	}
}

// MarshalJSON encodes the kind as its canonical name so module definitions
// submitted over HTTP read as "Add", "Relu", and so on, rather than a bare
// enum integer.
func (k OpKind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// UnmarshalJSON accepts either the canonical name or a raw integer, so a
// module payload authored against an older OpKind list still decodes.
func (k *OpKind) UnmarshalJSON(b []byte) error {
	var name string
	if err := json.Unmarshal(b, &name); err == nil {
		if name == OpUnknown.String() {
			*k = OpUnknown
			return nil
		}
		kind, ok := opKindByName[name]
		if !ok {
			return fmt.Errorf("unknown op kind %q", name)
		}
		*k = kind
		return nil
	}
	var n int32
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("op kind: %w", err)
	}
	*k = OpKind(n)
	return nil
}
