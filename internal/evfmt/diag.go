// Package evfmt provides shared stream primitives and diagnostics for the
// event-binary format.
package evfmt

import "fmt"

// DiagKind classifies a diagnostic message.
type DiagKind string

const (
	DiagTruncated DiagKind = "truncated"
	DiagInvalid   DiagKind = "invalid"
	DiagUnknownOp DiagKind = "unknown_op"
	DiagSkipped   DiagKind = "skipped"
	DiagPatched   DiagKind = "patched"
)

// Diag records a non-fatal issue encountered during a best-effort run.
type Diag struct {
	Offset uint32   `json:"offset"`
	Kind   DiagKind `json:"kind"`
	Msg    string   `json:"msg"`
}

func (d Diag) String() string {
	return fmt.Sprintf("[%s] 0x%x: %s", d.Kind, d.Offset, d.Msg)
}

// Diags accumulates diagnostics.
type Diags struct {
	items []Diag
}

func (d *Diags) Add(offset uint32, kind DiagKind, msg string) {
	d.items = append(d.items, Diag{Offset: offset, Kind: kind, Msg: msg})
}

func (d *Diags) Addf(offset uint32, kind DiagKind, format string, args ...any) {
	d.items = append(d.items, Diag{Offset: offset, Kind: kind, Msg: fmt.Sprintf(format, args...)})
}

func (d *Diags) Items() []Diag { return d.items }
func (d *Diags) Len() int      { return len(d.items) }

// Mode controls error handling behavior.
type Mode int

const (
	ModeStrict     Mode = iota // first structural problem returns an error
	ModeBestEffort             // recover where a patch is configured, accumulate diags
)

// Options controls parsing behavior across packages.
type Options struct {
	Mode     Mode
	MaxSteps int // discovery worklist cap; 0 = use default
}

// DefaultMaxSteps is the default discovery worklist cap.
const DefaultMaxSteps = 1_000_000

func (o Options) EffectiveMaxSteps() int {
	if o.MaxSteps > 0 {
		return o.MaxSteps
	}
	return DefaultMaxSteps
}
