package startup

import (
	"os"
	"path/filepath"
	"testing"
)

func TestGetEnvBool(t *testing.T) {
	tests := []struct {
		name         string
		envValue     string
		defaultValue bool
		want         bool
		setEnv       bool
	}{
		{name: "Returns default when env var not set", defaultValue: true, want: true},
		{name: "Returns true when env var is 'true'", envValue: "true", setEnv: true, want: true},
		{name: "Returns false when env var is 'false'", envValue: "false", setEnv: true, defaultValue: true, want: false},
		{name: "Returns true when env var is '1'", envValue: "1", setEnv: true, want: true},
		{name: "Returns default on invalid value", envValue: "banana", setEnv: true, defaultValue: true, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			const key = "TEST_STARTUP_BOOL"
			if tt.setEnv {
				t.Setenv(key, tt.envValue)
			}
			if got := getEnvBool(key, tt.defaultValue); got != tt.want {
				t.Errorf("getEnvBool(%q, %v) = %v, want %v", tt.envValue, tt.defaultValue, got, tt.want)
			}
		})
	}
}

func TestGetEnvInt(t *testing.T) {
	const key = "TEST_STARTUP_INT"

	if got := getEnvInt(key, 85); got != 85 {
		t.Errorf("unset = %d, want default 85", got)
	}

	t.Setenv(key, "42")
	if got := getEnvInt(key, 85); got != 42 {
		t.Errorf("set = %d, want 42", got)
	}

	t.Setenv(key, "not-a-number")
	if got := getEnvInt(key, 85); got != 85 {
		t.Errorf("invalid = %d, want default 85", got)
	}
}

func TestEnsureDirectory(t *testing.T) {
	root := t.TempDir()

	created := filepath.Join(root, "new", "nested")
	if err := ensureDirectory(created, "test"); err != nil {
		t.Fatalf("ensureDirectory: %v", err)
	}
	if info, err := os.Stat(created); err != nil || !info.IsDir() {
		t.Fatalf("directory not created: %v", err)
	}

	// Existing directory is fine
	if err := ensureDirectory(created, "test"); err != nil {
		t.Errorf("existing directory: %v", err)
	}

	// A file in the way is an error
	file := filepath.Join(root, "file")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := ensureDirectory(file, "test"); err == nil {
		t.Error("expected error for non-directory path")
	}
}

func TestTestWriteAccess(t *testing.T) {
	if err := testWriteAccess(t.TempDir()); err != nil {
		t.Errorf("writable dir: %v", err)
	}
	if err := testWriteAccess(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("expected error for missing dir")
	}
}

func TestGetRouteGroup(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/api/upload/chunk", "api/upload"},
		{"/api/import/progress/{id}", "api/import"},
		{"/health", "health"},
		{"/", ""},
	}
	for _, tt := range tests {
		if got := getRouteGroup(tt.path); got != tt.want {
			t.Errorf("getRouteGroup(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	root := t.TempDir()
	t.Setenv("MEDIA_DIR", filepath.Join(root, "media"))
	t.Setenv("CACHE_DIR", filepath.Join(root, "cache"))
	t.Setenv("DATABASE_DIR", filepath.Join(root, "db"))

	config, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if config.Port != "8080" {
		t.Errorf("Port = %q, want 8080", config.Port)
	}
	if config.JpegQuality != 85 {
		t.Errorf("JpegQuality = %d, want 85", config.JpegQuality)
	}
	if !config.GeocodeEnabled {
		t.Error("GeocodeEnabled should default to true")
	}
	if config.DatabasePath != filepath.Join(root, "db", "photovault.db") {
		t.Errorf("DatabasePath = %q", config.DatabasePath)
	}
	if config.ScratchDir != filepath.Join(root, "cache", "scratch") {
		t.Errorf("ScratchDir = %q", config.ScratchDir)
	}

	// All working directories exist and are writable after LoadConfig.
	for _, dir := range []string{config.MediaDir, config.ThumbnailDir, config.ScratchDir, config.DatabaseDir} {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			t.Errorf("directory %s missing after LoadConfig", dir)
		}
	}
}

func TestLoadConfigInvalidDurations(t *testing.T) {
	root := t.TempDir()
	t.Setenv("MEDIA_DIR", filepath.Join(root, "media"))
	t.Setenv("CACHE_DIR", filepath.Join(root, "cache"))
	t.Setenv("DATABASE_DIR", filepath.Join(root, "db"))
	t.Setenv("SCRATCH_SWEEP_INTERVAL", "often")
	t.Setenv("SCRATCH_MAX_AGE", "yesterday")
	t.Setenv("JPEG_QUALITY", "500")

	config, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if config.SweepInterval.String() != "1h0m0s" {
		t.Errorf("SweepInterval = %v, want 1h", config.SweepInterval)
	}
	if config.SweepMaxAge.String() != "24h0m0s" {
		t.Errorf("SweepMaxAge = %v, want 24h", config.SweepMaxAge)
	}
	if config.JpegQuality != 85 {
		t.Errorf("JpegQuality = %d, want clamped default 85", config.JpegQuality)
	}
}

func TestGetBuildInfo(t *testing.T) {
	info := GetBuildInfo()
	if info.Version == "" || info.GoVersion == "" || info.OS == "" || info.Arch == "" {
		t.Errorf("incomplete build info: %+v", info)
	}
}
