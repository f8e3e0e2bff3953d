package dispatch

import (
	"sync"
	"testing"
	"time"

	"glowhost/internal/devicemgr"
	"glowhost/internal/exec"
	"glowhost/internal/queue"
	"glowhost/internal/registry"
	"glowhost/pkg/types"
)

func publishNetwork(t *testing.T, reg *registry.Registry, name string) *types.DagNode {
	t.Helper()
	node := &types.DagNode{Name: name + "-node", DeviceID: 0, Outputs: []types.TensorType{{Elem: types.Float}}}
	dag := &types.CompiledDAG{FunctionName: name, Root: node, Nodes: []*types.DagNode{node}}
	if err := reg.Reserve([]string{name}); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	reg.Publish(name, dag, &types.Module{})
	return node
}

func newTestDispatcher(t *testing.T, maxActive, maxQueue int) (*Dispatcher, *registry.Registry) {
	t.Helper()
	d, reg := newTestDispatcherNoCleanup(t, maxActive, maxQueue)
	t.Cleanup(d.Stop)
	return d, reg
}

// newTestDispatcherNoCleanup is for tests that call Stop themselves as part
// of what they're asserting on, so it isn't called a second time by
// t.Cleanup.
func newTestDispatcherNoCleanup(t *testing.T, maxActive, maxQueue int) (*Dispatcher, *registry.Registry) {
	t.Helper()
	reg := registry.New()
	q := queue.New(maxQueue)
	dev := devicemgr.New(types.DeviceConfig{BackendName: "CPU", MemoryBytes: 1 << 30})
	ex := exec.New(map[int]*devicemgr.Manager{0: dev}, maxActive)
	d := New(reg, q, ex, maxActive)
	return d, reg
}

// S2: once the queue is at capacity, further submissions are refused and no
// refcount is leaked for the refused request.
func TestDispatcherRefusesWhenQueueFull(t *testing.T) {
	d, reg := newTestDispatcher(t, 1, 1)
	publishNetwork(t, reg, "net")

	// Hold the single active slot by submitting a request whose callback
	// blocks until released, so later submissions pile up in the queue
	// instead of draining immediately.
	block := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	if err := d.Submit(&types.InferRequest{
		NetworkName: "net",
		Context:     types.NewExecContext(nil),
		RequestID:   1,
		Callback: func(ctx *types.ExecContext, err error) {
			<-block
			wg.Done()
		},
	}); err != nil {
		t.Fatalf("first submit: %v", err)
	}

	// Give the loop a moment to pick up request 1 and occupy the one
	// worker slot before request 2 arrives.
	time.Sleep(20 * time.Millisecond)

	if err := d.Submit(&types.InferRequest{NetworkName: "net", Context: types.NewExecContext(nil), RequestID: 2}); err != nil {
		t.Fatalf("second submit should have queued, got: %v", err)
	}

	if err := d.Submit(&types.InferRequest{NetworkName: "net", Context: types.NewExecContext(nil), RequestID: 3}); err == nil {
		t.Fatal("expected third submit to be refused, queue is full")
	}
	if rc := reg.RefCount("net"); rc != 2 {
		t.Fatalf("expected refcount 2 (requests 1 and 2 holding handles), got %d", rc)
	}
	close(block)
	wg.Wait()
}

// S3: requests dispatch in descending priority order, FIFO among equals.
func TestDispatcherPriorityOrder(t *testing.T) {
	d, reg := newTestDispatcher(t, 1, 8)
	publishNetwork(t, reg, "net")

	var mu sync.Mutex
	var order []int
	var wg sync.WaitGroup

	// Hold the single worker slot open until all three requests are queued,
	// then release them in one burst so dispatch order reflects priority
	// rather than submission timing.
	gate := make(chan struct{})
	wg.Add(1)
	if err := d.Submit(&types.InferRequest{
		NetworkName: "net", Context: types.NewExecContext(nil), RequestID: 0,
		Callback: func(ctx *types.ExecContext, err error) {
			<-gate
			mu.Lock()
			order = append(order, 0)
			mu.Unlock()
			wg.Done()
		},
	}); err != nil {
		t.Fatalf("submit 0: %v", err)
	}
	time.Sleep(20 * time.Millisecond)

	submit := func(id types.RequestID, prio int) {
		wg.Add(1)
		if err := d.Submit(&types.InferRequest{
			NetworkName: "net", Context: types.NewExecContext(nil), RequestID: id, Priority: prio,
			Callback: func(ctx *types.ExecContext, err error) {
				mu.Lock()
				order = append(order, int(id))
				mu.Unlock()
				wg.Done()
			},
		}); err != nil {
			t.Fatalf("submit %d: %v", id, err)
		}
	}
	submit(1, 1) // low priority, submitted first among the two queued
	submit(2, 5) // high priority, submitted second

	close(gate)
	wg.Wait()

	if len(order) != 3 || order[0] != 0 {
		t.Fatalf("expected request 0 to run first, got %v", order)
	}
	if order[1] != 2 || order[2] != 1 {
		t.Fatalf("expected high-priority request 2 before low-priority request 1, got %v", order)
	}
}

// Stop must drain every request still sitting in the queue, not just wait
// for the already-dispatched ones: every Submit gets exactly one callback
// invocation and its refcount is released, even for work Stop's caller
// never separately waited on.
func TestStopDrainsQueuedRequests(t *testing.T) {
	d, reg := newTestDispatcherNoCleanup(t, 1, 8)
	publishNetwork(t, reg, "net")

	var mu sync.Mutex
	var completed []types.RequestID

	for i := types.RequestID(1); i <= 5; i++ {
		id := i
		if err := d.Submit(&types.InferRequest{
			NetworkName: "net", Context: types.NewExecContext(nil), RequestID: id,
			Callback: func(ctx *types.ExecContext, err error) {
				mu.Lock()
				completed = append(completed, id)
				mu.Unlock()
			},
		}); err != nil {
			t.Fatalf("submit %d: %v", id, err)
		}
	}

	// Stop is called immediately, with most of the five requests still
	// queued rather than dispatched; it must not return until all five have
	// run and released their refcount.
	d.Stop()

	mu.Lock()
	n := len(completed)
	mu.Unlock()
	if n != 5 {
		t.Fatalf("expected all 5 requests to complete, got %d", n)
	}
	if d.QueueSize() != 0 {
		t.Fatalf("expected queue drained, got size %d", d.QueueSize())
	}
	if d.ActiveRequestCount() != 0 {
		t.Fatalf("expected active count zero, got %d", d.ActiveRequestCount())
	}
	if rc := reg.RefCount("net"); rc != 0 {
		t.Fatalf("expected refcount released to 0, got %d", rc)
	}
}

// S4: a network with an in-flight request cannot be removed until the
// request completes and releases its refcount.
func TestDispatcherHoldsRefcountUntilCompletion(t *testing.T) {
	d, reg := newTestDispatcher(t, 1, 4)
	publishNetwork(t, reg, "net")

	release := make(chan struct{})
	done := make(chan struct{})
	if err := d.Submit(&types.InferRequest{
		NetworkName: "net", Context: types.NewExecContext(nil), RequestID: 1,
		Callback: func(ctx *types.ExecContext, err error) {
			<-release
			close(done)
		},
	}); err != nil {
		t.Fatalf("submit: %v", err)
	}
	time.Sleep(20 * time.Millisecond)

	if err := reg.Remove("net"); err == nil {
		t.Fatal("expected remove to fail while a request is in flight")
	}
	close(release)
	<-done

	deadline := time.Now().Add(time.Second)
	for reg.RefCount("net") != 0 {
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for refcount to drop to zero")
		}
		time.Sleep(time.Millisecond)
	}
	if err := reg.Remove("net"); err != nil {
		t.Fatalf("expected remove to succeed once refcount is zero: %v", err)
	}
}
