package paths

import (
	"path/filepath"
	"runtime"
	"testing"
)

func TestResolveConfigDirFlagWins(t *testing.T) {
	t.Setenv(EnvConfigDir, "/env/config")
	got, err := ResolveConfigDir("rel/config")
	if err != nil {
		t.Fatalf("ResolveConfigDir: %v", err)
	}
	if !filepath.IsAbs(got) {
		t.Errorf("flag path not absolutized: %q", got)
	}
	if filepath.Base(got) != "config" {
		t.Errorf("flag did not win: %q", got)
	}
}

func TestResolveConfigDirEnv(t *testing.T) {
	t.Setenv(EnvConfigDir, "/env/config")
	got, err := ResolveConfigDir("")
	if err != nil {
		t.Fatalf("ResolveConfigDir: %v", err)
	}
	if got != "/env/config" {
		t.Errorf("got %q, want /env/config", got)
	}
}

func TestDefaultConfigDirLinuxXDG(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("linux-only behavior")
	}
	t.Setenv("XDG_CONFIG_HOME", "/xdg")
	got, err := DefaultConfigDir()
	if err != nil {
		t.Fatalf("DefaultConfigDir: %v", err)
	}
	if got != filepath.Join("/xdg", "strata") {
		t.Errorf("got %q", got)
	}
}

func TestResolveDataDirPrecedence(t *testing.T) {
	t.Setenv(EnvDataDir, "/env/data")

	got, err := ResolveDataDir("/flag/data", "/cfg/data")
	if err != nil {
		t.Fatalf("ResolveDataDir: %v", err)
	}
	if got != "/flag/data" {
		t.Errorf("flag should win, got %q", got)
	}

	got, err = ResolveDataDir("", "/cfg/data")
	if err != nil {
		t.Fatalf("ResolveDataDir: %v", err)
	}
	if got != "/cfg/data" {
		t.Errorf("config value should win over env, got %q", got)
	}

	got, err = ResolveDataDir("", "")
	if err != nil {
		t.Fatalf("ResolveDataDir: %v", err)
	}
	if got != "/env/data" {
		t.Errorf("env should win over default, got %q", got)
	}
}

func TestResolveDataDirDefault(t *testing.T) {
	t.Setenv(EnvDataDir, "")
	got, err := ResolveDataDir("", "")
	if err != nil {
		t.Fatalf("ResolveDataDir: %v", err)
	}
	if filepath.Base(got) != DefaultDataDirName {
		t.Errorf("got %q, want CWD-relative %s", got, DefaultDataDirName)
	}
}
