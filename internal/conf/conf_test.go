package conf

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func TestLoadFromFileDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("listen: \"127.0.0.1:9000\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile: %v", err)
	}
	if cfg.Listen != "127.0.0.1:9000" {
		t.Errorf("Listen = %q, want %q", cfg.Listen, "127.0.0.1:9000")
	}
	if cfg.Log.Level != "info" {
		t.Errorf("Log.Level = %q, want %q", cfg.Log.Level, "info")
	}
	want := clampInt(runtime.NumCPU(), 1, 8)
	if cfg.Server.Threads != want {
		t.Errorf("Server.Threads = %d, want %d", cfg.Server.Threads, want)
	}
	if cfg.Server.HighWaterMark != 64*1024*1024 {
		t.Errorf("Server.HighWaterMark = %d, want %d", cfg.Server.HighWaterMark, 64*1024*1024)
	}
}

func TestLoadFromFilePreservesExplicitValues(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := "listen: \"0.0.0.0:8080\"\n" +
		"log:\n  level: \"debug\"\n" +
		"server:\n  threads: 4\n  reuse_port: true\n  high_water_mark: 1024\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile: %v", err)
	}
	if cfg.Listen != "0.0.0.0:8080" {
		t.Errorf("Listen = %q, want %q", cfg.Listen, "0.0.0.0:8080")
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q, want %q", cfg.Log.Level, "debug")
	}
	if cfg.Server.Threads != 4 {
		t.Errorf("Server.Threads = %d, want 4", cfg.Server.Threads)
	}
	if !cfg.Server.ReusePort {
		t.Error("Server.ReusePort = false, want true")
	}
	if cfg.Server.HighWaterMark != 1024 {
		t.Errorf("Server.HighWaterMark = %d, want 1024", cfg.Server.HighWaterMark)
	}
}

func TestLoadFromFileMissing(t *testing.T) {
	if _, err := LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("LoadFromFile with missing path: want error, got nil")
	}
}
