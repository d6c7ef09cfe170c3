//go:build arm && tinygo

package handoff

import "unsafe"

// NeverReturns is the real Cortex-M4 handoff primitive: it relocates
// the vector table register, loads the application's initial stack
// pointer, and branches to its reset handler. Unlike Recorder, Jump
// never returns control to the caller. It is only ever compiled for a
// freestanding TinyGo ARM build of the bootloader image; hosted builds
// (tests, the simulator, the host CLI) use Recorder instead.
type NeverReturns struct{}

// Jump performs the handoff described in the package doc comment.
// scbVTOR points at the System Control Block's VTOR register;
// assigning appBase to it relocates the vector table so the
// application's exception handlers take over from the bootloader's.
func (NeverReturns) Jump(appBase, msp, resetHandler uint32) {
	disableInterrupts()
	*scbVTOR = appBase
	setMSPAndBranch(msp, resetHandler)
	for {
	}
}

// disableInterrupts is implemented in target_arm.s (cpsid i). An
// interrupt taken between the vector table relocation and the branch
// would vector through the application's table on the bootloader's
// stack, so masking comes first; the application re-enables interrupts
// once its own handlers are live.
func disableInterrupts()

// scbVTOR is the Cortex-M4 SCB->VTOR register address, common across
// the M4 family including the S32K144.
var scbVTOR = (*uint32)(unsafe.Pointer(uintptr(0xE000ED08)))

// setMSPAndBranch is implemented in target_arm.s: it loads msp into
// the Cortex-M4 main stack pointer, issues dsb/isb so the new stack
// and vector table are visible before any further instruction, then
// branches to resetHandler. resetHandler must carry the Thumb bit;
// the validator guarantees that before Jump is ever reached.
func setMSPAndBranch(msp, resetHandler uint32)
