package types

import "fmt"

// DeviceConfig describes one configured backend device. It is immutable
// once constructed; names are assigned deterministically when the caller
// omits them.
//
// example:
//
//	backend_name: CPU
//	device_name: config0
//	memory_bytes: 4294967296
type DeviceConfig struct {
	BackendName string            `json:"backend_name" yaml:"backend_name" toml:"backend_name"`
	DeviceName  string            `json:"device_name" yaml:"device_name" toml:"device_name"`
	Params      map[string]string `json:"params,omitempty" yaml:"params,omitempty" toml:"params,omitempty"`
	MemoryBytes int64             `json:"memory_bytes" yaml:"memory_bytes" toml:"memory_bytes"`
	DeviceID    int               `json:"device_id" yaml:"device_id" toml:"device_id"`
}

// NormalizeDeviceConfigs assigns deterministic names ("configN", by
// insertion order) to any entries that omit DeviceName, and assigns
// sequential DeviceIDs. The input slice is not mutated; a new slice is
// returned.
func NormalizeDeviceConfigs(in []DeviceConfig) []DeviceConfig {
	out := make([]DeviceConfig, len(in))
	copy(out, in)
	for i := range out {
		out[i].DeviceID = i
		if out[i].DeviceName == "" {
			out[i].DeviceName = fmt.Sprintf("config%d", i)
		}
	}
	return out
}

// DeviceInfo is the snapshot the partitioner consults when deciding where a
// node may land.
type DeviceInfo struct {
	BackendName       string
	DeviceID          int
	AvailableMemory   int64
	SupportedNodes    []OpKind
	NonSupportedNodes []OpKind
}
