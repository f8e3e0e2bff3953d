package httpapi

import (
	"context"

	"glowhost/internal/host"
	"glowhost/pkg/types"
)

// Service is the surface NewMux drives; *host.Manager satisfies it without
// an explicit declaration, and tests substitute a mock.
type Service interface {
	AddNetwork(module *types.Module, cc host.CompilationContext) error
	RemoveNetwork(name string) error
	NetworkAdded(name string) bool
	GetNetworkDAG(name string) (*types.CompiledDAG, error)
	RunNetworkBlocking(ctx context.Context, name string, execCtx *types.ExecContext) error
	Status() types.HostStatus
	Ready() bool
	ClearHost() error
}
