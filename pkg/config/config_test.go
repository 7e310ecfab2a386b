package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

type sample struct {
	Name string `yaml:"name"`
	Port int    `yaml:"port"`
	Mode string `yaml:"mode"`
}

func (s *sample) Validate() error {
	if s.Port <= 0 {
		return errors.New("port must be positive")
	}
	return nil
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_ExpandsEnv(t *testing.T) {
	t.Setenv("SAMPLE_NAME", "vault")
	t.Setenv("SAMPLE_MODE", "")
	path := writeFile(t, "name: ${SAMPLE_NAME}\nport: ${SAMPLE_PORT:-8080}\nmode: ${SAMPLE_MODE:-token}\n")

	got := sample{Mode: "disabled"}
	if err := Load(path, &got); err != nil {
		t.Fatal(err)
	}
	want := sample{Name: "vault", Port: 8080, Mode: "token"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestLoad_KeepsDefaults(t *testing.T) {
	path := writeFile(t, "name: x\n")
	got := sample{Port: 9000}
	if err := Load(path, &got); err != nil {
		t.Fatal(err)
	}
	if got.Port != 9000 {
		t.Errorf("port = %d, want default 9000", got.Port)
	}
}

func TestLoad_Validates(t *testing.T) {
	path := writeFile(t, "port: 0\n")
	err := Load(path, &sample{})
	if err == nil || !strings.Contains(err.Error(), "config validation failed") {
		t.Errorf("err = %v", err)
	}
}

func TestLoad_Missing(t *testing.T) {
	if err := Load(filepath.Join(t.TempDir(), "nope.yaml"), &sample{}); err == nil {
		t.Error("missing file should fail")
	}
}

func TestLoadOptional(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope.yaml")

	got := sample{Port: 1}
	if err := LoadOptional(missing, &got); err != nil {
		t.Fatalf("missing file with valid defaults: %v", err)
	}
	if err := LoadOptional(missing, &sample{}); err == nil {
		t.Error("invalid defaults should still fail")
	}
}

func TestExpand(t *testing.T) {
	t.Setenv("EXPAND_SET", "a")
	tests := []struct {
		in, want string
	}{
		{"$EXPAND_SET", "a"},
		{"${EXPAND_SET}-b", "a-b"},
		{"${EXPAND_UNSET}", ""},
		{"${EXPAND_UNSET:-fallback}", "fallback"},
		{"${EXPAND_SET:-fallback}", "a"},
	}
	for _, tt := range tests {
		if got := Expand(tt.in); got != tt.want {
			t.Errorf("Expand(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
