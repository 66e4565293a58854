package cmn

import "sync/atomic"

// Module tags, used only to gate nlog call sites behind a per-module
// verbosity level.
const (
	SmoduleSender   = "sender"
	SmoduleReceiver = "receiver"
	SmoduleFdt      = "fdt"
	SmoduleFec      = "fec"
	SmoduleAlc      = "alc"
)

// runtimeOptsMirror ("Rom") holds process-wide knobs a host can tune at
// startup, such as the verbosity level FastV checks against.
type runtimeOptsMirror struct {
	verbosity atomic.Int64
}

var Rom runtimeOptsMirror

// SetVerbosity sets the global verbosity level consulted by FastV.
func (r *runtimeOptsMirror) SetVerbosity(level int) { r.verbosity.Store(int64(level)) }

// FastV reports whether logging at the given level is enabled for module.
// The module argument is accepted (and ignored beyond being a readable
// call-site tag); per-module filtering is not needed at this engine's scope.
func (r *runtimeOptsMirror) FastV(level int, _ string) bool {
	return int64(level) <= r.verbosity.Load()
}
