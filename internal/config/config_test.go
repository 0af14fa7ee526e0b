package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != ":8080" {
		t.Errorf("Server.Port = %q", cfg.Server.Port)
	}
	if cfg.Server.Mode != "debug" {
		t.Errorf("Server.Mode = %q", cfg.Server.Mode)
	}
	if cfg.Server.ShutdownTimeout != 10*time.Second {
		t.Errorf("Server.ShutdownTimeout = %v", cfg.Server.ShutdownTimeout)
	}
	if cfg.Model.Path != "models/plant_leaf_diseases_model.onnx" {
		t.Errorf("Model.Path = %q", cfg.Model.Path)
	}
	if cfg.Model.Preload {
		t.Error("Model.Preload should default to false")
	}
	if cfg.Preprocess.ImageSize != 256 {
		t.Errorf("Preprocess.ImageSize = %d", cfg.Preprocess.ImageSize)
	}
	if cfg.Preprocess.Interpolation != "bicubic" {
		t.Errorf("Preprocess.Interpolation = %q", cfg.Preprocess.Interpolation)
	}
	if cfg.Upload.MaxSize != 10*1024*1024 {
		t.Errorf("Upload.MaxSize = %d", cfg.Upload.MaxSize)
	}
	want := []string{"image/jpeg", "image/jpg", "image/png"}
	if !reflect.DeepEqual(cfg.Upload.AllowedTypes, want) {
		t.Errorf("Upload.AllowedTypes = %v, want %v", cfg.Upload.AllowedTypes, want)
	}
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
server:
  port: ":9090"
  mode: release
  read_timeout: 5s
model:
  path: /srv/models/leaf.onnx
  input_name: input_1
  preload: true
preprocess:
  interpolation: lanczos3
upload:
  max_size: 2048
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != ":9090" || cfg.Server.Mode != "release" {
		t.Errorf("Server = %+v", cfg.Server)
	}
	if cfg.Server.ReadTimeout != 5*time.Second {
		t.Errorf("ReadTimeout = %v", cfg.Server.ReadTimeout)
	}
	if cfg.Model.Path != "/srv/models/leaf.onnx" || cfg.Model.InputName != "input_1" || !cfg.Model.Preload {
		t.Errorf("Model = %+v", cfg.Model)
	}
	if cfg.Preprocess.Interpolation != "lanczos3" || cfg.Preprocess.ImageSize != 256 {
		t.Errorf("Preprocess = %+v", cfg.Preprocess)
	}
	if cfg.Upload.MaxSize != 2048 {
		t.Errorf("Upload.MaxSize = %d", cfg.Upload.MaxSize)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	path := writeConfig(t, "model:\n  path: from-file.onnx\n")

	t.Setenv("LEAF_MODEL_PATH", "from-env.onnx")
	t.Setenv("LEAF_PREPROCESS_IMAGE_SIZE", "128")
	t.Setenv("PORT", "3000")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Model.Path != "from-env.onnx" {
		t.Errorf("Model.Path = %q, want from-env.onnx", cfg.Model.Path)
	}
	if cfg.Preprocess.ImageSize != 128 {
		t.Errorf("Preprocess.ImageSize = %d, want 128", cfg.Preprocess.ImageSize)
	}
	if cfg.Server.Port != ":3000" {
		t.Errorf("Server.Port = %q, want :3000", cfg.Server.Port)
	}
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"broken yaml", "server: [port"},
		{"unknown mode", "server:\n  mode: verbose\n"},
		{"zero image size", "preprocess:\n  image_size: 0\n"},
		{"empty model path", "model:\n  path: \"\"\n"},
		{"negative upload size", "upload:\n  max_size: -1\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, tt.body)); err == nil {
				t.Error("Load() expected error")
			}
		})
	}
}
