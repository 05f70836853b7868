package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type sample struct {
	Name  string `yaml:"name"`
	Port  int    `yaml:"port"`
	valid bool
}

func (s *sample) Validate() error {
	if s.Port <= 0 {
		return errors.New("port must be positive")
	}
	s.valid = true
	return nil
}

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_ExpandsAndValidates(t *testing.T) {
	t.Setenv("CFG_TEST_NAME", "board")
	path := writeFile(t, "name: ${CFG_TEST_NAME}\nport: ${CFG_TEST_PORT:-8081}\n")

	var s sample
	if err := Load(path, &s); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.Name != "board" || s.Port != 8081 || !s.valid {
		t.Errorf("loaded = %+v", s)
	}
}

func TestLoad_KeepsDefaults(t *testing.T) {
	path := writeFile(t, "name: only-name\n")
	s := sample{Port: 9000}
	if err := Load(path, &s); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.Port != 9000 {
		t.Errorf("port = %d, want default 9000", s.Port)
	}
}

func TestLoad_UnknownKey(t *testing.T) {
	path := writeFile(t, "name: x\nport: 1\ncolour: red\n")
	var s sample
	if err := Load(path, &s); err == nil {
		t.Fatal("unknown key should fail")
	}
}

func TestLoad_ValidationError(t *testing.T) {
	path := writeFile(t, "name: x\n")
	var s sample
	err := Load(path, &s)
	if err == nil || !strings.Contains(err.Error(), "port must be positive") {
		t.Fatalf("err = %v", err)
	}
}

func TestLoad_EmptyFile(t *testing.T) {
	path := writeFile(t, "")
	s := sample{Port: 1}
	if err := Load(path, &s); err != nil {
		t.Fatalf("empty file: %v", err)
	}
}

func TestLoadOptional_Missing(t *testing.T) {
	s := sample{Port: 5}
	if err := LoadOptional(filepath.Join(t.TempDir(), "nope.yaml"), &s); err != nil {
		t.Fatalf("missing file: %v", err)
	}
	if !s.valid {
		t.Error("defaults should still be validated")
	}

	var bad sample
	if err := LoadOptional(filepath.Join(t.TempDir(), "nope.yaml"), &bad); err == nil {
		t.Error("invalid defaults should fail")
	}
}

func TestExpandEnv(t *testing.T) {
	t.Setenv("CFG_SET", "value")
	t.Setenv("CFG_EMPTY", "")
	cases := map[string]string{
		"${CFG_SET}":          "value",
		"$CFG_SET/x":          "value/x",
		"${CFG_EMPTY:-dflt}":  "dflt",
		"${CFG_UNSET_X:-a:b}": "a:b",
		"${CFG_UNSET_X}":      "",
		"${CFG_SET:-ignored}": "value",
	}
	for in, want := range cases {
		if got := ExpandEnv(in); got != want {
			t.Errorf("ExpandEnv(%q) = %q, want %q", in, got, want)
		}
	}
}
