// Package host implements the Lifecycle Coordinator and the Host Manager
// façade (§2, §4.5, §4.6, §6): the public entry point that owns device
// managers, the partitioner, provisioner, executor, network registry,
// queue, and dispatcher, and exposes add_network / remove_network /
// run_network / clear_host as described in spec §6.
//
// Structured into small files by concern:
//
//   - config.go: Config and CompilationContext plus their defaults.
//   - events.go / eventpub_memory.go: lifecycle event publication.
//   - manager.go: the Manager type, New, AddNetwork, RemoveNetwork,
//     ClearHost, RunNetwork, RunNetworkBlocking, and the remaining public
//     operations.
package host
