package bmesh

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

// TestDefaultConfig 测试默认配置
func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default config invalid: %v", err)
	}
	if cfg.EncodeOptions() != (EncodeOptions{Format: V1}) {
		t.Errorf("EncodeOptions = %+v", cfg.EncodeOptions())
	}
}

// TestLoadConfig 测试加载 TOML 配置
func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bmesh.toml")
	data := []byte("format = 2\ncompress = true\ncompression_level = 9\noutput = \"meshes\"\nlog_level = \"debug\"\n")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	want := EncodeOptions{Format: V2, Compress: true, Level: 9}
	if cfg.EncodeOptions() != want {
		t.Errorf("EncodeOptions = %+v, want %+v", cfg.EncodeOptions(), want)
	}
	if cfg.Output != "meshes" || cfg.LogLevel != "debug" {
		t.Errorf("Got %+v", cfg)
	}

	partial := filepath.Join(dir, "partial.toml")
	os.WriteFile(partial, []byte("output = \"scene.bmesh\"\n"), 0o644)
	cfg, err = LoadConfig(partial)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if Format(cfg.Format) != V1 || cfg.LogLevel != "info" {
		t.Errorf("Defaults not kept: %+v", cfg)
	}
}

// TestConfigValidation 测试配置校验
func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name string
		edit func(c *Config)
	}{
		{"Format", func(c *Config) { c.Format = 3 }},
		{"Level", func(c *Config) { c.CompressionLevel = 10 }},
		{"Output", func(c *Config) { c.Output = "" }},
		{"LogLevel", func(c *Config) { c.LogLevel = "loud" }},
		{"CompressV1", func(c *Config) { c.Compress = true }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.edit(cfg)
			if err := cfg.Validate(); err == nil {
				t.Errorf("Expected validation error for %+v", cfg)
			}
		})
	}

	cfg := DefaultConfig()
	cfg.Compress = true
	if err := cfg.Validate(); !errors.Is(err, ErrCompressionFormat) {
		t.Errorf("Expected ErrCompressionFormat, got %v", err)
	}

	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.toml")
	os.WriteFile(bad, []byte("format = 7\n"), 0o644)
	if _, err := LoadConfig(bad); err == nil {
		t.Error("Expected LoadConfig to reject format 7")
	}
	broken := filepath.Join(dir, "broken.toml")
	os.WriteFile(broken, []byte("format = [\n"), 0o644)
	if _, err := LoadConfig(broken); err == nil {
		t.Error("Expected LoadConfig to reject malformed TOML")
	}
	if _, err := LoadConfig(filepath.Join(dir, "missing.toml")); err == nil {
		t.Error("Expected LoadConfig to fail for a missing file")
	}
}
