package types

import "time"

// Tensor is a minimal host-side tensor value: a typed, shaped byte buffer.
// Real kernels would interpret Data according to Type/Shape; the device
// stand-ins in this repo only need to move it around and report its size.
type Tensor struct {
	Type  TensorType `json:"type"`
	Shape []int      `json:"shape,omitempty"`
	// Data is base64-encoded by encoding/json's default []byte handling.
	Data []byte `json:"data,omitempty"`
}

// TraceContext carries the handful of fields the tracing framework (out of
// scope) needs threaded through a run; kept as an opaque map so this
// package has no dependency on a concrete tracing library.
type TraceContext struct {
	Enabled bool              `json:"enabled,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// ExecContext carries input/output tensor bindings for one run, plus trace
// and per-request metadata. Ownership is transferred in on submission: the
// caller must not mutate it again until it is handed back in the
// completion callback. The executor and device stand-ins treat it as a
// non-owning view for the duration of the run — they read inputs, write
// outputs, and never retain a reference past the callback.
type ExecContext struct {
	Inputs  map[string]Tensor `json:"inputs"`
	Outputs map[string]Tensor `json:"outputs,omitempty"`
	Trace   TraceContext      `json:"trace,omitempty"`
	Meta    map[string]string `json:"meta,omitempty"`
}

// NewExecContext returns an ExecContext ready to receive outputs.
func NewExecContext(inputs map[string]Tensor) *ExecContext {
	return &ExecContext{
		Inputs:  inputs,
		Outputs: make(map[string]Tensor),
		Meta:    make(map[string]string),
	}
}

// RequestID identifies one accepted inference request; unique only within
// a single Host Manager's lifetime.
type RequestID uint64

// ResultCallback is invoked exactly once per accepted request, carrying
// either the completed ExecContext (outputs populated) or a non-nil error.
type ResultCallback func(ctx *ExecContext, err error)

// InferRequest is one queued or in-flight inference request.
type InferRequest struct {
	NetworkName string
	Context     *ExecContext
	Callback    ResultCallback
	Priority    int
	RequestID   RequestID
	ReceivedAt  time.Time
}
