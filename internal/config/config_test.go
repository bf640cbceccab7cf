package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func noDotenv(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "missing.env")
}

// unsetForTest clears key and restores it after the test, so values set
// by godotenv do not leak into other tests.
func unsetForTest(t *testing.T, key string) {
	t.Helper()
	t.Setenv(key, "")
	os.Unsetenv(key)
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("TRYON_DATA_DIR", t.TempDir())

	cfg, err := Load(noDotenv(t))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.HTTPAddr != "127.0.0.1:8765" {
		t.Errorf("HTTPAddr = %q", cfg.HTTPAddr)
	}
	if cfg.DetectionInterval != 50*time.Millisecond {
		t.Errorf("DetectionInterval = %v, want 50ms", cfg.DetectionInterval)
	}
	if cfg.LostAfter != 10 || cfg.HistorySize != 10 {
		t.Errorf("LostAfter = %d HistorySize = %d, want 10 and 10", cfg.LostAfter, cfg.HistorySize)
	}
	if cfg.BaseWeight != 0.3 {
		t.Errorf("BaseWeight = %v, want 0.3", cfg.BaseWeight)
	}
	if cfg.Jewelry != "ring" || cfg.Finger != "ring" {
		t.Errorf("Jewelry = %q Finger = %q", cfg.Jewelry, cfg.Finger)
	}
	if cfg.RedisAddr != "" {
		t.Errorf("RedisAddr = %q, want empty", cfg.RedisAddr)
	}
}

func TestLoad_Dotenv(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, ".env")
	content := "TRYON_JEWELRY=bracelet\nTRYON_LOST_AFTER=4\nTRYON_DATA_DIR=" + dir + "\n"
	if err := os.WriteFile(file, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	// godotenv does not override variables that are already set.
	t.Setenv("TRYON_LOST_AFTER", "6")
	unsetForTest(t, "TRYON_JEWELRY")
	unsetForTest(t, "TRYON_DATA_DIR")

	cfg, err := Load(file)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Jewelry != "bracelet" {
		t.Errorf("Jewelry = %q, want bracelet", cfg.Jewelry)
	}
	if cfg.LostAfter != 6 {
		t.Errorf("LostAfter = %d, want 6", cfg.LostAfter)
	}
	if cfg.DBPath() != filepath.Join(dir, "tryon.db") {
		t.Errorf("DBPath = %q", cfg.DBPath())
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
		want string
	}{
		{"bad jewelry", "TRYON_JEWELRY", "earring", "invalid config"},
		{"bad finger", "TRYON_FINGER", "toe", "invalid config"},
		{"zero lost after", "TRYON_LOST_AFTER", "0", "invalid config"},
		{"bad detector", "TRYON_DETECTOR", "yolo", "invalid config"},
		{"not a number", "TRYON_CAMERA_ID", "front", "parse env"},
		{"bad duration", "TRYON_DETECTION_INTERVAL", "soon", "parse env"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TRYON_DATA_DIR", t.TempDir())
			t.Setenv(tt.key, tt.val)

			_, err := Load(noDotenv(t))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %v, want %q", err, tt.want)
			}
		})
	}
}
