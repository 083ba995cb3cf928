// Package project handles unstage.toml project configuration.
package project

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/BurntSushi/toml"

	"unstage/internal/evfmt"
)

var ErrConfig = errors.New("project: invalid configuration")

// Project represents an unstage.toml configuration: the input script,
// its entry points, and decode options.
type Project struct {
	Input  Input  `toml:"input"`
	Decode Decode `toml:"decode"`

	// Dir is the directory containing the unstage.toml file, set at load
	// time. Relative input paths resolve against it.
	Dir string `toml:"-"`
}

// Input names the script to analyze: a globals bank, or a raw blob with
// explicit entry offsets.
type Input struct {
	Libs    string   `toml:"libs"`
	Raw     string   `toml:"raw"`
	Entries []string `toml:"entries"`
}

// Decode holds analysis options: the decode mode and the offsets of
// known-bad commands to patch over in best-effort runs.
type Decode struct {
	Mode    string   `toml:"mode"`
	Patches []string `toml:"patches"`
}

// Load parses an unstage.toml file and validates it.
func Load(path string) (*Project, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("project: read %s: %w", path, err)
	}
	var p Project
	if err := toml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("project: parse %s: %w", path, err)
	}
	if p.Dir, err = filepath.Abs(filepath.Dir(path)); err != nil {
		return nil, fmt.Errorf("project: resolve %s: %w", path, err)
	}
	if p.Decode.Mode == "" {
		p.Decode.Mode = "strict"
	}
	if err := p.validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

func (p *Project) validate() error {
	switch {
	case p.Input.Libs != "" && p.Input.Raw != "":
		return fmt.Errorf("%w: both libs and raw inputs are set", ErrConfig)
	case p.Input.Libs == "" && p.Input.Raw == "":
		return fmt.Errorf("%w: no input is set", ErrConfig)
	case p.Input.Raw != "" && len(p.Input.Entries) == 0:
		return fmt.Errorf("%w: raw input has no entries", ErrConfig)
	}
	switch p.Decode.Mode {
	case "strict", "best-effort":
	default:
		return fmt.Errorf("%w: unrecognized mode %q", ErrConfig, p.Decode.Mode)
	}
	if _, err := p.EntryOffsets(); err != nil {
		return err
	}
	_, err := p.PatchOffsets()
	return err
}

// Options returns the decode options the configuration selects.
func (p *Project) Options() evfmt.Options {
	o := evfmt.Options{Mode: evfmt.ModeStrict}
	if p.Decode.Mode == "best-effort" {
		o.Mode = evfmt.ModeBestEffort
	}
	return o
}

// LibsPath returns the bank path resolved against the project directory,
// or "" when the input is raw.
func (p *Project) LibsPath() string { return p.resolve(p.Input.Libs) }

// RawPath returns the raw blob path resolved against the project
// directory, or "" when the input is a bank.
func (p *Project) RawPath() string { return p.resolve(p.Input.Raw) }

func (p *Project) resolve(path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(p.Dir, path)
}

// EntryOffsets parses the configured entry offsets.
func (p *Project) EntryOffsets() ([]uint32, error) {
	return parseOffsets(p.Input.Entries)
}

// PatchOffsets parses the configured patch offsets.
func (p *Project) PatchOffsets() ([]uint32, error) {
	return parseOffsets(p.Decode.Patches)
}

// parseOffsets accepts decimal or 0x-prefixed hex offsets.
func parseOffsets(raw []string) ([]uint32, error) {
	var offs []uint32
	for _, s := range raw {
		v, err := strconv.ParseUint(s, 0, 32)
		if err != nil {
			return nil, fmt.Errorf("%w: offset %q", ErrConfig, s)
		}
		offs = append(offs, uint32(v))
	}
	return offs, nil
}
