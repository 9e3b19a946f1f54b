package util

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFormatMoney(t *testing.T) {
	cases := map[float64]string{
		24750:   "$24,750",
		5000:    "$5,000",
		0:       "$0",
		4400.50: "$4,400.50",
	}
	for in, want := range cases {
		if got := FormatMoney(in); got != want {
			t.Errorf("FormatMoney(%v) = %q, want %q", in, got, want)
		}
	}
}

func TestLoadConfig(t *testing.T) {
	type cfg struct {
		Server struct {
			Addr string `yaml:"addr"`
		} `yaml:"server"`
	}

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("server:\n  addr: \":8080\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	c, err := LoadConfig[cfg](path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if c.Server.Addr != ":8080" {
		t.Errorf("addr = %q, want :8080", c.Server.Addr)
	}

	if _, err := LoadConfig[cfg]("does-not-exist.yaml"); err == nil {
		t.Error("expected error for missing file")
	}
}
