// Package handoff transfers control from the bootloader to a validated
// application: relocate the vector table, load the application's
// initial stack pointer, and branch to its reset handler.
package handoff

// Target abstracts the machine-specific handoff sequence so the
// orchestrator can drive either the real Cortex-M4 primitive or a test
// double that records the call instead of transferring control.
type Target interface {
	// Jump relocates the vector table to appBase, loads msp into the
	// stack pointer, and branches to resetHandler. A real
	// implementation never returns; Recorder returns so tests can
	// inspect what would have happened.
	Jump(appBase, msp, resetHandler uint32)
}

// Recorder is a Target test double: it records the arguments of the
// most recent Jump instead of transferring control, letting
// orchestrator tests assert that a handoff was attempted (and with
// which vector table) without leaving the test process.
type Recorder struct {
	Called       bool
	AppBase      uint32
	MSP          uint32
	ResetHandler uint32
}

// Jump records its arguments.
func (r *Recorder) Jump(appBase, msp, resetHandler uint32) {
	r.Called = true
	r.AppBase = appBase
	r.MSP = msp
	r.ResetHandler = resetHandler
}
