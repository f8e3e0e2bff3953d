package types

// TensorType is the full descriptor of one tensor slot: its element kind
// plus, for quantized kinds, the affine scale/offset pair. Shape is not
// modeled here; the gate only ever reasons about element types.
type TensorType struct {
	Elem   ElementKind `json:"elem"`
	Scale  float32     `json:"scale,omitempty"`
	Offset int32       `json:"offset,omitempty"`
}

// NodeInfo is a read-only view of one DAG node's input/output element
// types, passed to a backend's operator-support gate. Implementations must
// be pure: repeated calls with the same receiver return the same answers.
type NodeInfo interface {
	// Kind identifies the operator this node represents.
	Kind() OpKind
	// NumInputs and NumOutputs report the arity of the node.
	NumInputs() int
	NumOutputs() int
	// InElem and OutElem report the element kind of input i / output j.
	InElem(i int) ElementKind
	OutElem(j int) ElementKind
	// InType and OutType report the full tensor descriptor, including
	// quantization parameters, of input i / output j.
	InType(i int) TensorType
	OutType(j int) TensorType
	// AllInOutSameElem reports whether every input and output element kind
	// not named in exceptIn/exceptOut is a member of allowed, and all such
	// kinds are pairwise equal.
	AllInOutSameElem(allowed []ElementKind, exceptIn, exceptOut map[int]struct{}) bool
}

// nodeInfo is the concrete NodeInfo used by the partitioner and by tests
// that do not need a full graph node.
type nodeInfo struct {
	kind    OpKind
	inputs  []TensorType
	outputs []TensorType
}

// NewNodeInfo builds a NodeInfo from explicit input/output tensor types.
func NewNodeInfo(kind OpKind, inputs, outputs []TensorType) NodeInfo {
	return &nodeInfo{kind: kind, inputs: inputs, outputs: outputs}
}

func (n *nodeInfo) Kind() OpKind      { return n.kind }
func (n *nodeInfo) NumInputs() int    { return len(n.inputs) }
func (n *nodeInfo) NumOutputs() int   { return len(n.outputs) }
func (n *nodeInfo) InElem(i int) ElementKind {
	return n.inputs[i].Elem
}
func (n *nodeInfo) OutElem(j int) ElementKind {
	return n.outputs[j].Elem
}
func (n *nodeInfo) InType(i int) TensorType  { return n.inputs[i] }
func (n *nodeInfo) OutType(j int) TensorType { return n.outputs[j] }

func (n *nodeInfo) AllInOutSameElem(allowed []ElementKind, exceptIn, exceptOut map[int]struct{}) bool {
	allowedSet := make(map[ElementKind]struct{}, len(allowed))
	for _, a := range allowed {
		allowedSet[a] = struct{}{}
	}
	var seen ElementKind
	haveSeen := false
	check := func(k ElementKind) bool {
		if _, ok := allowedSet[k]; !ok {
			return false
		}
		if !haveSeen {
			seen = k
			haveSeen = true
			return true
		}
		return k == seen
	}
	for i, t := range n.inputs {
		if _, skip := exceptIn[i]; skip {
			continue
		}
		if !check(t.Elem) {
			return false
		}
	}
	for j, t := range n.outputs {
		if _, skip := exceptOut[j]; skip {
			continue
		}
		if !check(t.Elem) {
			return false
		}
	}
	return true
}
