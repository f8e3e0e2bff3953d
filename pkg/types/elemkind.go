package types

import (
	"encoding/json"
	"fmt"
)

// ElementKind enumerates the tensor cell types the host and its backends
// reason about when deciding operator support and partitioning.
//
// The values are stable for the lifetime of a process; nothing about their
// numeric ordering is meant to be persisted across versions.
type ElementKind int32

const (
	// Float is a 32-bit IEEE-754 float.
	Float ElementKind = iota
	// Int8Q is an 8-bit signed integer carrying an affine (scale, offset)
	// quantization in its containing TensorType.
	Int8Q
	// Int16Q is a 16-bit signed quantized integer.
	Int16Q
	// Int32Q is a 32-bit signed quantized integer, commonly used for
	// quantized bias tensors.
	Int32Q
	// Int32I is a plain (non-quantized) 32-bit signed integer.
	Int32I
	// Int64I is a plain 64-bit signed integer.
	Int64I
	// UInt8Q is an 8-bit unsigned quantized integer.
	UInt8Q
	// UInt8FusedQ packs a per-row scale/offset inline with the row's data
	// instead of carrying it in the TensorType.
	UInt8FusedQ
	// Bool is a boolean cell, one byte per element.
	Bool
)

// String returns the canonical lowercase name used in logs and error
// messages.
func (k ElementKind) String() string {
	switch k {
	case Float:
		return "float"
	case Int8Q:
		return "int8q"
	case Int16Q:
		return "int16q"
	case Int32Q:
		return "int32q"
	case Int32I:
		return "int32i"
	case Int64I:
		return "int64i"
	case UInt8Q:
		return "uint8q"
	case UInt8FusedQ:
		return "uint8fusedq"
	case Bool:
		return "bool"
	default:
		return "unknown"
	}
}

// IsQuantized reports whether the kind carries affine quantization metadata
// (either in its TensorType or fused inline with the data).
func (k ElementKind) IsQuantized() bool {
	switch k {
	case Int8Q, Int16Q, Int32Q, UInt8Q, UInt8FusedQ:
		return true
	default:
		return false
	}
}

// IsFused reports whether per-row quantization metadata is packed inline
// with the element data rather than carried in the TensorType.
func (k ElementKind) IsFused() bool {
	return k == UInt8FusedQ
}

// IsInteger reports whether the kind stores integer cells, quantized or
// plain.
func (k ElementKind) IsInteger() bool {
	switch k {
	case Int8Q, Int16Q, Int32Q, Int32I, Int64I, UInt8Q, UInt8FusedQ:
		return true
	default:
		return false
	}
}

// IsIndexKind reports whether the kind is a valid plain-integer index type,
// as used by TopK/ArgMax/ArgMin outputs and sparse length/index tensors.
func (k ElementKind) IsIndexKind() bool {
	return k == Int32I || k == Int64I
}

var elementKindByName = map[string]ElementKind{
	"float": Float, "int8q": Int8Q, "int16q": Int16Q, "int32q": Int32Q,
	"int32i": Int32I, "int64i": Int64I, "uint8q": UInt8Q,
	"uint8fusedq": UInt8FusedQ, "bool": Bool,
}

// MarshalJSON encodes the kind as its canonical lowercase name.
func (k ElementKind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// UnmarshalJSON accepts either the canonical name or a raw integer.
func (k *ElementKind) UnmarshalJSON(b []byte) error {
	var name string
	if err := json.Unmarshal(b, &name); err == nil {
		kind, ok := elementKindByName[name]
		if !ok {
			return fmt.Errorf("unknown element kind %q", name)
		}
		*k = kind
		return nil
	}
	var n int32
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("element kind: %w", err)
	}
	*k = ElementKind(n)
	return nil
}
