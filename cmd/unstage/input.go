package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"unstage/internal/analysis"
	"unstage/internal/bank"
	"unstage/internal/evfmt"
	"unstage/internal/ir"
	"unstage/internal/project"
)

// inputFlags are the source and decode flags every command shares.
type inputFlags struct {
	libs    *string
	raw     *string
	entry   *string
	proj    *string
	strict  *bool
	best    *bool
	patch   *string
	verbose *bool
}

func addInputFlags(fs *flag.FlagSet) *inputFlags {
	f := &inputFlags{}
	f.libs = fs.String("libs", "", "path to a globals script bank")
	f.raw = fs.String("raw", "", "path to a raw event blob")
	f.entry = fs.String("entry", "", "comma-separated entry offsets for --raw")
	f.proj = fs.String("project", "", "path to an unstage.toml project file")
	f.strict = fs.Bool("strict", false, "fail on the first structural error (default)")
	f.best = fs.Bool("best-effort", false, "record diagnostics and continue where patched")
	f.patch = fs.String("patch", "", "comma-separated offsets of commands to decode as data")
	f.verbose = fs.Bool("v", false, "log progress to stderr")
	return f
}

// input is the resolved source description: exactly one of libs or raw is
// set, with entry offsets present whenever raw is.
type input struct {
	libs    string
	raw     string
	entries []uint32
	patches []uint32
	opts    evfmt.Options
	verbose bool
}

// resolve merges the explicit flags with the project file, if one was
// named. Explicit flags win over project settings.
func (f *inputFlags) resolve() (*input, error) {
	in := &input{libs: *f.libs, raw: *f.raw, verbose: *f.verbose}

	var err error
	if *f.entry != "" {
		if in.entries, err = parseOffsetList(*f.entry); err != nil {
			return nil, fmt.Errorf("--entry: %w", err)
		}
	}
	if *f.patch != "" {
		if in.patches, err = parseOffsetList(*f.patch); err != nil {
			return nil, fmt.Errorf("--patch: %w", err)
		}
	}

	if *f.proj != "" {
		p, err := project.Load(*f.proj)
		if err != nil {
			return nil, err
		}
		if in.libs == "" && in.raw == "" {
			in.libs, in.raw = p.LibsPath(), p.RawPath()
		}
		if in.entries == nil {
			if in.entries, err = p.EntryOffsets(); err != nil {
				return nil, err
			}
		}
		if in.patches == nil {
			if in.patches, err = p.PatchOffsets(); err != nil {
				return nil, err
			}
		}
		in.opts = p.Options()
	}

	switch {
	case *f.strict:
		in.opts.Mode = evfmt.ModeStrict
	case *f.best:
		in.opts.Mode = evfmt.ModeBestEffort
	}

	switch {
	case in.libs != "" && in.raw != "":
		return nil, fmt.Errorf("--libs and --raw are mutually exclusive")
	case in.libs == "" && in.raw == "":
		return nil, fmt.Errorf("--libs, --raw, or --project is required")
	case in.raw != "" && len(in.entries) == 0:
		return nil, fmt.Errorf("--raw needs --entry offsets")
	}
	return in, nil
}

// load reads the input file and recovers its program. The file bytes come
// back too, so rebuild can verify its output against them.
func (in *input) load() (*ir.Program, *evfmt.Diags, []byte, error) {
	path := in.libs
	if path == "" {
		path = in.raw
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("read %s: %w", path, err)
	}
	if in.verbose {
		fmt.Fprintf(os.Stderr, "read %s (%d bytes)\n", path, len(data))
	}

	var prog *ir.Program
	var diags *evfmt.Diags
	if in.libs != "" {
		prog, diags, err = bank.ReadLibs(data, in.opts, in.patches)
	} else {
		prog, diags, err = analysis.Analyze(data, in.entries, analysis.Options{
			Format:  in.opts,
			Patches: in.patches,
		})
	}
	if err != nil {
		return nil, nil, nil, err
	}
	if in.verbose {
		fmt.Fprintf(os.Stderr, "recovered %d subroutines, %d blocks, %d labels\n",
			len(prog.Subs), len(prog.Blocks), prog.Labels.Len())
	}
	return prog, diags, data, nil
}

// reportDiags prints accumulated diagnostics to stderr.
func reportDiags(diags *evfmt.Diags) {
	if diags == nil {
		return
	}
	for _, d := range diags.Items() {
		fmt.Fprintf(os.Stderr, "%s\n", d)
	}
}

// parseOffsetList splits a comma-separated offset list. Both decimal and
// 0x-prefixed hex work.
func parseOffsetList(s string) ([]uint32, error) {
	var offs []uint32
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		v, err := strconv.ParseUint(part, 0, 32)
		if err != nil {
			return nil, fmt.Errorf("bad offset %q", part)
		}
		offs = append(offs, uint32(v))
	}
	if len(offs) == 0 {
		return nil, fmt.Errorf("empty offset list")
	}
	return offs, nil
}

// writeOut writes the result to the named file, or stdout when path is
// empty.
func writeOut(path string, data []byte) error {
	if path == "" {
		_, err := os.Stdout.Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
