// Package registry implements the Network Registry: a thread-safe
// name -> (compiled DAG, shared module, refcount) map enforcing uniqueness
// between published and in-flight-add names, and safe removal under
// in-flight traffic. Callers never reach into the map directly; the
// registry hands out refcounted Handles and guards its own invariants.
package registry

import (
	"sync"

	"glowhost/internal/hosterr"
	"glowhost/pkg/types"
)

// entry is the Network Entry from §3: a compiled DAG, a shared module
// reference, and a refcount. Unexported so nothing outside the registry
// can mutate a network's bookkeeping out of band.
type entry struct {
	dag      *types.CompiledDAG
	module   *types.Module
	refcount int
}

// Registry is the thread-safe name -> entry map plus the processing set.
// A single RWMutex guards both maps; per §5, this lock is always acquired
// before the request queue's lock to avoid ordering cycles.
type Registry struct {
	mu         sync.RWMutex
	networks   map[string]*entry
	processing map[string]struct{}
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{
		networks:   make(map[string]*entry),
		processing: make(map[string]struct{}),
	}
}

// Handle is a refcounted reference to a published network, returned by
// Acquire. Callers must call Release exactly once per successful Acquire.
type Handle struct {
	Name string
	DAG  *types.CompiledDAG
	Module *types.Module
}

// Reserve inserts every name in names into the processing set, failing
// atomically if any of them is already present in networks or processing.
// On failure, no name from this call is left in either map.
func (r *Registry) Reserve(names []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, name := range names {
		if _, ok := r.networks[name]; ok {
			return hosterr.Runtime("add_network: name %q already registered", name)
		}
		if _, ok := r.processing[name]; ok {
			return hosterr.Runtime("add_network: name %q already being added", name)
		}
	}
	for _, name := range names {
		r.processing[name] = struct{}{}
	}
	return nil
}

// Unreserve removes every name in names from the processing set. It is the
// rollback counterpart to Reserve and is idempotent.
func (r *Registry) Unreserve(names []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, name := range names {
		delete(r.processing, name)
	}
}

// Publish moves name from the processing set into the published networks
// map with the given compiled DAG and shared module, refcount zero.
func (r *Registry) Publish(name string, dag *types.CompiledDAG, module *types.Module) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.networks[name] = &entry{dag: dag, module: module}
	delete(r.processing, name)
}

// Acquire looks up name and, if published, increments its refcount and
// returns a Handle. Returns RUNTIME_NET_NOT_FOUND if name is unpublished
// (whether absent entirely or still mid-add).
func (r *Registry) Acquire(name string) (Handle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.networks[name]
	if !ok {
		return Handle{}, hosterr.NetNotFound(name)
	}
	e.refcount++
	return Handle{Name: name, DAG: e.dag, Module: e.module}, nil
}

// Release decrements name's refcount. It never blocks and is a no-op if
// name is no longer present (e.g. removed concurrently after every
// in-flight run against it already held its own Handle).
func (r *Registry) Release(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.networks[name]; ok && e.refcount > 0 {
		e.refcount--
	}
}

// RefCount returns name's current refcount, or 0 if name is not
// published. Intended for status reporting, not for synchronization.
func (r *Registry) RefCount(name string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.networks[name]; ok {
		return e.refcount
	}
	return 0
}

// Remove evicts name from the registry. It fails with RUNTIME_NET_BUSY if
// name is mid-add or has a non-zero refcount; silently succeeds (no error)
// if name is simply unknown, matching §4.6's "silent success if unknown".
func (r *Registry) Remove(name string) error {
	_, err := r.RemoveAndTake(name)
	return err
}

// RemoveAndTake behaves like Remove but also returns the evicted entry's
// compiled DAG, so the caller can release the DAG's nodes from their
// devices (via the provisioner) after the registry lock is no longer held.
// dag is nil both when name was unknown and when removal failed.
func (r *Registry) RemoveAndTake(name string) (*types.CompiledDAG, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.processing[name]; ok {
		return nil, hosterr.NetBusy(name)
	}
	e, ok := r.networks[name]
	if !ok {
		return nil, nil
	}
	if e.refcount != 0 {
		return nil, hosterr.NetBusy(name)
	}
	delete(r.networks, name)
	return e.dag, nil
}

// Get returns the DAG and module for a published name without bumping the
// refcount. Used by GetNetworkDAG, which does not drive an execution.
func (r *Registry) Get(name string) (*types.CompiledDAG, *types.Module, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.networks[name]
	if !ok {
		return nil, nil, false
	}
	return e.dag, e.module, true
}

// Contains reports whether name is published (not merely processing).
func (r *Registry) Contains(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.networks[name]
	return ok
}

// Names returns every published network name, unordered.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.networks))
	for name := range r.networks {
		out = append(out, name)
	}
	return out
}

// Snapshot reports every published or processing network for status
// endpoints, without exposing internal *entry pointers.
func (r *Registry) Snapshot() []types.NetworkStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]types.NetworkStatus, 0, len(r.networks)+len(r.processing))
	for name, e := range r.networks {
		out = append(out, types.NetworkStatus{Name: name, RefCount: e.refcount})
	}
	for name := range r.processing {
		out = append(out, types.NetworkStatus{Name: name, Processing: true})
	}
	return out
}

// Empty reports whether both the networks and processing maps are empty.
func (r *Registry) Empty() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.networks) == 0 && len(r.processing) == 0
}
