package main

import (
	"flag"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"unstage/internal/evfmt"
)

func resolveArgs(t *testing.T, args ...string) (*input, error) {
	t.Helper()
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	f := addInputFlags(fs)
	if err := fs.Parse(args); err != nil {
		t.Fatalf("parse: %v", err)
	}
	return f.resolve()
}

func writeProject(t *testing.T, conf string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "unstage.toml")
	if err := os.WriteFile(path, []byte(conf), 0644); err != nil {
		t.Fatalf("write project: %v", err)
	}
	return path
}

func TestParseOffsetList(t *testing.T) {
	got, err := parseOffsetList("0x1c8, 512,4")
	if err != nil {
		t.Fatalf("parseOffsetList() = %v", err)
	}
	if want := []uint32{0x1c8, 512, 4}; !reflect.DeepEqual(got, want) {
		t.Errorf("offsets = %v, want %v", got, want)
	}
	if _, err := parseOffsetList("zz"); err == nil {
		t.Error("bad offset accepted")
	}
	if _, err := parseOffsetList(","); err == nil {
		t.Error("empty list accepted")
	}
}

func TestResolveProjectOnly(t *testing.T) {
	proj := writeProject(t, `
[input]
libs = "bank.bin"

[decode]
mode = "best-effort"
patches = ["0x1c8"]
`)

	in, err := resolveArgs(t, "--project", proj)
	if err != nil {
		t.Fatalf("resolve() = %v", err)
	}
	if want := filepath.Join(filepath.Dir(proj), "bank.bin"); in.libs != want {
		t.Errorf("libs = %q, want %q", in.libs, want)
	}
	if in.opts.Mode != evfmt.ModeBestEffort {
		t.Errorf("mode = %v, want best-effort", in.opts.Mode)
	}
	if want := []uint32{0x1c8}; !reflect.DeepEqual(in.patches, want) {
		t.Errorf("patches = %v, want %v", in.patches, want)
	}
}

func TestResolveFlagsOverrideProject(t *testing.T) {
	proj := writeProject(t, `
[input]
libs = "bank.bin"

[decode]
mode = "best-effort"
patches = ["0x1c8"]
`)

	in, err := resolveArgs(t, "--project", proj, "--raw", "blob.bin", "--entry", "0x100", "--strict")
	if err != nil {
		t.Fatalf("resolve() = %v", err)
	}
	if in.raw != "blob.bin" || in.libs != "" {
		t.Errorf("input = libs %q raw %q, want only raw blob.bin", in.libs, in.raw)
	}
	if want := []uint32{0x100}; !reflect.DeepEqual(in.entries, want) {
		t.Errorf("entries = %v, want %v", in.entries, want)
	}
	if want := []uint32{0x1c8}; !reflect.DeepEqual(in.patches, want) {
		t.Errorf("patches = %v, want %v", in.patches, want)
	}
	if in.opts.Mode != evfmt.ModeStrict {
		t.Errorf("mode = %v, want strict", in.opts.Mode)
	}
}

func TestResolveRejectsBadFlags(t *testing.T) {
	cases := []struct {
		name string
		args []string
	}{
		{"no input", nil},
		{"both inputs", []string{"--libs", "a", "--raw", "b", "--entry", "0"}},
		{"raw without entries", []string{"--raw", "b"}},
		{"bad entry", []string{"--raw", "b", "--entry", "zz"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := resolveArgs(t, tc.args...); err == nil {
				t.Error("resolve() accepted bad flags")
			}
		})
	}
}
