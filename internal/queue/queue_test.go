package queue

import (
	"testing"

	"glowhost/internal/hosterr"
	"glowhost/pkg/types"
)

func req(name string, priority int, id types.RequestID) *types.InferRequest {
	return &types.InferRequest{NetworkName: name, Priority: priority, RequestID: id}
}

func TestPriorityOrderingWithFIFOTieBreak(t *testing.T) {
	q := New(10)
	must(t, q.TryPush(req("f", 0, 1)))  // A
	must(t, q.TryPush(req("f", 10, 2))) // B
	must(t, q.TryPush(req("f", 5, 3)))  // C
	must(t, q.TryPush(req("f", 5, 4)))  // C2, same priority as C, later

	first, _ := q.Pop()
	if first.RequestID != 2 {
		t.Fatalf("expected B (highest priority) first, got %d", first.RequestID)
	}
	second, _ := q.Pop()
	if second.RequestID != 3 {
		t.Fatalf("expected C before C2 on FIFO tie-break, got %d", second.RequestID)
	}
	third, _ := q.Pop()
	if third.RequestID != 4 {
		t.Fatalf("expected C2 next, got %d", third.RequestID)
	}
	fourth, _ := q.Pop()
	if fourth.RequestID != 1 {
		t.Fatalf("expected A (lowest priority) last, got %d", fourth.RequestID)
	}
}

func TestBoundedCapacityRefuses(t *testing.T) {
	q := New(2)
	must(t, q.TryPush(req("f", 0, 1)))
	must(t, q.TryPush(req("f", 0, 2)))
	err := q.TryPush(req("f", 0, 3))
	if !hosterr.IsRequestRefused(err) {
		t.Fatalf("expected REQUEST_REFUSED, got %v", err)
	}
	if q.Len() != 2 {
		t.Fatalf("queue size = %d, want 2", q.Len())
	}
}

func TestPopEmpty(t *testing.T) {
	q := New(1)
	if _, ok := q.Pop(); ok {
		t.Fatal("expected Pop on empty queue to report not-ok")
	}
}

func must(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
