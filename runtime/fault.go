package runtime

import "fmt"

// Fault is a non-catchable runtime failure: spec.md §4.10's requires/invariant
// violations and §4.11's GC hard-cap abort are both always-abort, never
// routed through the catchable `current_error`/`!` propagation path. User
// code cannot recover from a Fault; a host embedding the runtime should treat
// one as fatal to the process or request being served.
type Fault struct {
	Op  string // the runtime entry point that raised the fault, e.g. "requires", "invariant", "gc.hard_cap"
	Msg string
}

func (f *Fault) Error() string {
	return fmt.Sprintf("pluto: fatal: %s: %s", f.Op, f.Msg)
}

// NewFault constructs a Fault, formatting Msg like fmt.Sprintf.
func NewFault(op, format string, args ...any) *Fault {
	return &Fault{Op: op, Msg: fmt.Sprintf(format, args...)}
}
