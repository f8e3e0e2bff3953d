// Package provision implements the Provisioner external collaborator
// (§2, §4.5 step 10): it compiles each DAG node on its chosen backend and
// loads it onto the target device, with rollback of partial allocations
// on failure.
package provision

import (
	"glowhost/internal/backend"
	"glowhost/internal/devicemgr"
	"glowhost/internal/hosterr"
	"glowhost/pkg/types"
)

// Provisioner loads compiled DAG nodes onto their assigned devices.
type Provisioner struct {
	devices  map[int]*devicemgr.Manager
	backends map[string]backend.Backend
}

// New returns a Provisioner resolving device IDs against devices and
// backend names against backends.
func New(devices map[int]*devicemgr.Manager, backends map[string]backend.Backend) *Provisioner {
	return &Provisioner{devices: devices, backends: backends}
}

// Provision compiles and loads every node of dag. On the first failure, it
// releases every node it had already reserved on this call — partial
// device allocations never leak past a failed Provision (§4.5's rollback
// guarantee: "partial device allocations are released by the
// provisioner's own cleanup").
func (p *Provisioner) Provision(dag *types.CompiledDAG) error {
	reserved := make([]*types.DagNode, 0, len(dag.Nodes))
	for _, node := range dag.Nodes {
		if err := p.provisionOne(node); err != nil {
			p.rollback(reserved)
			return err
		}
		reserved = append(reserved, node)
	}
	return nil
}

func (p *Provisioner) provisionOne(node *types.DagNode) error {
	be, ok := p.backends[node.BackendName]
	if !ok {
		return hosterr.Runtime("provision: unknown backend %q for node %q", node.BackendName, node.Name)
	}
	if !be.IsOpSupported(node.NodeInfo()) {
		return hosterr.Runtime("provision: backend %q no longer supports node %q", node.BackendName, node.Name)
	}
	dev, ok := p.devices[node.DeviceID]
	if !ok {
		return hosterr.Runtime("provision: unknown device id %d for node %q", node.DeviceID, node.Name)
	}
	if err := dev.Reserve(node.Name); err != nil {
		return hosterr.Runtime("provision: %v", err)
	}
	return nil
}

// rollback releases every successfully reserved node, most-recent first,
// so a Provision failure leaves every device's memory exactly as it found
// it.
func (p *Provisioner) rollback(reserved []*types.DagNode) {
	for i := len(reserved) - 1; i >= 0; i-- {
		node := reserved[i]
		if dev, ok := p.devices[node.DeviceID]; ok {
			dev.Release(node.Name)
		}
	}
}

// Release evicts a single node from its device. It is reached through
// ReleaseDAG from the host's RemoveNetwork (§4.2), after the registry has
// evicted a network whose refcount was zero.
func (p *Provisioner) Release(node *types.DagNode) {
	if dev, ok := p.devices[node.DeviceID]; ok {
		dev.Release(node.Name)
	}
}

// ReleaseDAG releases every node of dag, best-effort, accumulating nothing
// — per §7's propagation policy this is called during teardown where
// failures are accumulated by the caller, not here.
func (p *Provisioner) ReleaseDAG(dag *types.CompiledDAG) {
	for _, node := range dag.Nodes {
		p.Release(node)
	}
}
