// Package validate checks whether a flashed image looks like a valid
// application before the bootloader hands control to it.
package validate

import "github.com/dpham-s32k144/uartboot/flash"

// Ranges parameterizes the checks with the caller's memory map instead
// of hardcoding the S32K144's SRAM/flash constants, so a mock
// controller can exercise the validator against any arrangement a test
// needs.
type Ranges struct {
	SRAMStart    uint32
	SRAMEndExcl  uint32
	FlashStart   uint32
	FlashEndExcl uint32
}

// Validate reads the two words at the start of the application's
// vector table (initial MSP, reset handler) and reports whether they
// look like a programmed application rather than erased or garbage
// flash.
//
// The checks, in order: the initial MSP must be neither the
// all-zero nor all-ones erased pattern, it must land inside SRAM
// (inclusive of the top-of-stack end address), the reset handler must
// have its Thumb bit set, and with that bit masked off it must land
// inside the flash range.
func Validate(ctrl flash.Controller, base uint32, r Ranges) (bool, error) {
	msp, err := ctrl.ReadWord(base)
	if err != nil {
		return false, err
	}
	reset, err := ctrl.ReadWord(base + 4)
	if err != nil {
		return false, err
	}

	if msp == 0x00000000 || msp == 0xFFFFFFFF {
		return false, nil
	}
	if msp < r.SRAMStart || msp > r.SRAMEndExcl {
		return false, nil
	}
	if reset&0x1 == 0 {
		return false, nil
	}
	resetAddr := reset &^ 0x1
	if resetAddr < r.FlashStart || resetAddr >= r.FlashEndExcl {
		return false, nil
	}
	return true, nil
}
