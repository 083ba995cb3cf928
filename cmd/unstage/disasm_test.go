package main

import (
	"encoding/binary"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"unstage/internal/bank"
	"unstage/internal/listing"
)

// testBank builds a minimal bank: entry 0 points at a bare return, every
// other entry at a second event right after it.
func testBank() []byte {
	data := make([]byte, 0, bank.TableSize+6)
	for i := 0; i < bank.LibCount; i++ {
		target := uint32(bank.TableSize)
		if i > 0 {
			target = bank.TableSize + 1
		}
		data = binary.LittleEndian.AppendUint32(data, target)
	}
	data = append(data, 2)                // lib_0: return
	data = append(data, 16, 23, 1, 0, 2) // lib_1: setsp 1; return
	return data
}

// writeBank writes the test bank into a fresh temp dir.
func writeBank(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bank.bin")
	if err := os.WriteFile(path, testBank(), 0644); err != nil {
		t.Fatalf("write bank: %v", err)
	}
	return path
}

func TestCmdDisasmListing(t *testing.T) {
	outPath := filepath.Join(t.TempDir(), "listing.txt")

	if err := cmdDisasm([]string{"--libs", writeBank(t), "--out", outPath}); err != nil {
		t.Fatalf("cmdDisasm: %v", err)
	}
	got, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatalf("read listing: %v", err)
	}
	want := "lib_0:\n\treturn\n\nlib_1:\n\tsetsp 1\n\treturn\n"
	if string(got) != want {
		t.Errorf("listing = %q, want %q", got, want)
	}
}

func TestCmdDisasmJSON(t *testing.T) {
	outPath := filepath.Join(t.TempDir(), "dump.json")

	if err := cmdDisasm([]string{"--libs", writeBank(t), "--json", "--out", outPath}); err != nil {
		t.Fatalf("cmdDisasm: %v", err)
	}
	raw, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatalf("read dump: %v", err)
	}
	var d listing.Dump
	if err := json.Unmarshal(raw, &d); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(d.Entries) != bank.LibCount {
		t.Errorf("entries = %d, want %d", len(d.Entries), bank.LibCount)
	}
	if len(d.Blocks) != 2 {
		t.Errorf("blocks = %d, want 2", len(d.Blocks))
	}
	if d.Entries[0].Label != "lib_0" {
		t.Errorf("entry 0 label = %q, want lib_0", d.Entries[0].Label)
	}
}
