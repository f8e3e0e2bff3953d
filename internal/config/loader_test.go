package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTempFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return p
}

func TestLoadYAML(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.yaml", "addr: :9999\nmax_active_requests: 4\nmax_queue_size: 64\ndevices:\n  - backend_name: CPU\n    device_name: cpu0\n    memory_bytes: 1073741824\n")
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":9999" || cfg.MaxActiveRequests != 4 || cfg.MaxQueueSize != 64 {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
	if len(cfg.Devices) != 1 || cfg.Devices[0].BackendName != "CPU" || cfg.Devices[0].MemoryBytes != 1073741824 {
		t.Fatalf("unexpected devices: %+v", cfg.Devices)
	}
}

func TestLoadJSON(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.json", `{"addr":":7070","max_active_requests":2,"max_queue_size":8,"devices":[{"backend_name":"CPU","memory_bytes":1024}]}`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":7070" || cfg.MaxActiveRequests != 2 || cfg.MaxQueueSize != 8 {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
	if len(cfg.Devices) != 1 || cfg.Devices[0].MemoryBytes != 1024 {
		t.Fatalf("unexpected devices: %+v", cfg.Devices)
	}
}

func TestLoadTOML(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.toml", "addr=\":8081\"\nmax_active_requests=1\nmax_queue_size=4\n\n[[devices]]\nbackend_name=\"CPU\"\nmemory_bytes=512\n")
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":8081" || cfg.MaxActiveRequests != 1 || cfg.MaxQueueSize != 4 {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
	if len(cfg.Devices) != 1 || cfg.Devices[0].MemoryBytes != 512 {
		t.Fatalf("unexpected devices: %+v", cfg.Devices)
	}
}

func TestLoadErrors(t *testing.T) {
	if _, err := Load(""); err == nil {
		t.Fatalf("expected error on empty path")
	}
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.txt", "not supported")
	if _, err := Load(p); err == nil {
		t.Fatalf("expected unsupported extension error")
	}
}
