// Package exec implements the Executor external collaborator (§2, §4.4):
// it runs a compiled DAG by walking nodes in topological order, passing
// tensors between devices, and invoking each device manager's RunNode.
package exec

import (
	"context"

	"glowhost/internal/devicemgr"
	"glowhost/internal/hosterr"
	"glowhost/pkg/types"
)

// Completion is invoked exactly once when a run finishes, successfully or
// not. Executor calls it on one of its own worker goroutines — callers
// must not assume submission-thread affinity (§5).
type Completion func(ctx *types.ExecContext, err error)

// Executor owns a fixed-size worker pool shared by every DAG it runs.
type Executor struct {
	devices map[int]*devicemgr.Manager
	tokens  chan struct{}
}

// New returns an Executor with workerCount concurrent worker slots.
func New(devices map[int]*devicemgr.Manager, workerCount int) *Executor {
	if workerCount < 1 {
		workerCount = 1
	}
	return &Executor{
		devices: devices,
		tokens:  make(chan struct{}, workerCount),
	}
}

// Pool is the per-DAG executor pool created at add_network time (§4.5 step
// 11) and dropped when the network is removed (§4.2). It does not carry
// separate worker goroutines of its own — the Executor's worker pool is
// shared across every published DAG. Its Size is set to
// max_active_requests but is not read after creation: the dispatch loop
// bounds concurrency with its own active-request counter, and host status
// does not report pools.
type Pool struct {
	DAG  *types.CompiledDAG
	Size int
}

// CreatePool returns a Pool for dag sized at size.
func (e *Executor) CreatePool(dag *types.CompiledDAG, size int) *Pool {
	return &Pool{DAG: dag, Size: size}
}

// Run executes dag's nodes in topological order on one worker goroutine,
// then invokes done and only then releases its worker-pool slot. Callers
// must keep done itself short and non-blocking (§5): a slow done call
// holds the slot for another pending Run.
func (e *Executor) Run(parentCtx context.Context, dag *types.CompiledDAG, execCtx *types.ExecContext, requestID types.RequestID, done Completion) {
	e.tokens <- struct{}{}
	go func() {
		defer func() { <-e.tokens }()
		err := e.runTopological(parentCtx, dag, execCtx)
		done(execCtx, err)
	}()
}

func (e *Executor) runTopological(ctx context.Context, dag *types.CompiledDAG, execCtx *types.ExecContext) error {
	order, err := topoSort(dag)
	if err != nil {
		return err
	}
	for _, node := range order {
		dev, ok := e.devices[node.DeviceID]
		if !ok {
			return hosterr.Runtime("exec: unknown device id %d for node %q", node.DeviceID, node.Name)
		}
		if err := dev.RunNode(ctx, node, execCtx); err != nil {
			return hosterr.Runtime("exec: node %q failed: %v", node.Name, err)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return nil
}

// topoSort orders dag.Nodes via Kahn's algorithm over Parents/Children,
// starting from Root. A cycle (which the partitioner must never produce)
// surfaces as a RUNTIME_ERROR rather than an infinite loop.
func topoSort(dag *types.CompiledDAG) ([]*types.DagNode, error) {
	inDegree := make(map[*types.DagNode]int, len(dag.Nodes))
	for _, n := range dag.Nodes {
		inDegree[n] = len(n.Parents)
	}
	queue := []*types.DagNode{dag.Root}
	var order []*types.DagNode
	visited := make(map[*types.DagNode]bool, len(dag.Nodes))
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		if visited[n] {
			continue
		}
		visited[n] = true
		order = append(order, n)
		for _, c := range n.Children {
			inDegree[c]--
			if inDegree[c] <= 0 && !visited[c] {
				queue = append(queue, c)
			}
		}
	}
	if len(order) != len(dag.Nodes) {
		return nil, hosterr.Runtime("exec: dag %q is not a single connected rooted DAG", dag.FunctionName)
	}
	return order, nil
}

