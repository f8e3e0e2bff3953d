package partition

import (
	"testing"

	"glowhost/internal/backend"
	"glowhost/pkg/types"
)

func TestPartitionLinearChain(t *testing.T) {
	fn := types.Function{
		Name: "f",
		Nodes: []types.FunctionNode{
			{Name: "add", Kind: types.OpAdd, Inputs: []types.TensorType{{Elem: types.Float}, {Elem: types.Float}}, Outputs: []types.TensorType{{Elem: types.Float}}},
			{Name: "relu", Kind: types.OpRelu, Inputs: []types.TensorType{{Elem: types.Float}}, Outputs: []types.TensorType{{Elem: types.Float}}},
		},
	}
	devices := []types.DeviceInfo{{BackendName: "CPU", DeviceID: 0, AvailableMemory: 1 << 30}}
	backends := map[string]backend.Backend{"CPU": backend.NewCPUBackend(1)}

	dag, err := New().Partition(fn, devices, backends, 2)
	if err != nil {
		t.Fatalf("partition: %v", err)
	}
	if dag.Root.Name != "add" {
		t.Fatalf("expected root 'add', got %q", dag.Root.Name)
	}
	if len(dag.Root.Children) != 1 || dag.Root.Children[0].Name != "relu" {
		t.Fatalf("expected add -> relu chain, got %+v", dag.Root.Children)
	}
	if len(dag.Nodes) != 2 {
		t.Fatalf("expected 2 nodes, got %d", len(dag.Nodes))
	}
}

func TestPartitionInfeasibleUnsupportedOp(t *testing.T) {
	fn := types.Function{
		Name: "f",
		Nodes: []types.FunctionNode{
			{Name: "conv", Kind: types.OpConv2D,
				Inputs:  []types.TensorType{{Elem: types.Int16Q}, {Elem: types.Int16Q}, {Elem: types.Int16Q}},
				Outputs: []types.TensorType{{Elem: types.Int16Q}}},
		},
	}
	devices := []types.DeviceInfo{{BackendName: "CPU", DeviceID: 0, AvailableMemory: 1 << 30}}
	backends := map[string]backend.Backend{"CPU": backend.NewCPUBackend(1)}

	_, err := New().Partition(fn, devices, backends, 2)
	if err == nil {
		t.Fatal("expected partition failure for unsupported op")
	}
}

func TestPartitionInfeasibleOutOfMemory(t *testing.T) {
	fn := types.Function{
		Name: "f",
		Nodes: []types.FunctionNode{
			{Name: "add", Kind: types.OpAdd, Inputs: []types.TensorType{{Elem: types.Float}, {Elem: types.Float}}, Outputs: []types.TensorType{{Elem: types.Float}}},
		},
	}
	devices := []types.DeviceInfo{{BackendName: "CPU", DeviceID: 0, AvailableMemory: 1}}
	backends := map[string]backend.Backend{"CPU": backend.NewCPUBackend(1)}

	_, err := New().Partition(fn, devices, backends, 2)
	if err == nil {
		t.Fatal("expected partition failure when no device has enough memory")
	}
}
