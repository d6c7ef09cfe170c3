package validate

import (
	"testing"

	"github.com/dpham-s32k144/uartboot/flash"
)

const (
	appBase = 0xA000
	appEnd  = 0x80000
	sramLo  = 0x1FFF8000
	sramHi  = 0x20007000
	flashLo = 0x00000000
	flashHi = 0x00080000
)

func ranges() Ranges {
	return Ranges{SRAMStart: sramLo, SRAMEndExcl: sramHi, FlashStart: flashLo, FlashEndExcl: flashHi}
}

func programVectorTable(t *testing.T, sim *flash.Sim, msp, reset uint32) {
	t.Helper()
	var p0 [flash.PhraseSize]byte
	p0[0], p0[1], p0[2], p0[3] = byte(msp), byte(msp>>8), byte(msp>>16), byte(msp>>24)
	p0[4], p0[5], p0[6], p0[7] = byte(reset), byte(reset>>8), byte(reset>>16), byte(reset>>24)
	if err := sim.ProgramPhrase(appBase, p0); err != nil {
		t.Fatal(err)
	}
}

func TestValidateAcceptsWellFormedImage(t *testing.T) {
	sim := flash.NewSim(appBase, appEnd-appBase, 0x800)
	programVectorTable(t, sim, 0x20004000, appBase+0x401 /* thumb bit set */)
	ok, err := Validate(sim, appBase, ranges())
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if !ok {
		t.Fatal("well-formed image should validate")
	}
}

func TestValidateRejectsErasedPattern(t *testing.T) {
	sim := flash.NewSim(appBase, appEnd-appBase, 0x800)
	ok, err := Validate(sim, appBase, ranges())
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("untouched (all-0xFF) flash must never validate")
	}
}

func TestValidateRejectsZeroMSP(t *testing.T) {
	sim := flash.NewSim(appBase, appEnd-appBase, 0x800)
	programVectorTable(t, sim, 0x00000000, appBase+0x401)
	ok, err := Validate(sim, appBase, ranges())
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("MSP == 0 must never validate")
	}
}

func TestValidateRejectsMSPOutsideSRAM(t *testing.T) {
	sim := flash.NewSim(appBase, appEnd-appBase, 0x800)
	programVectorTable(t, sim, 0x10000000, appBase+0x401)
	ok, err := Validate(sim, appBase, ranges())
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("MSP outside SRAM must never validate")
	}
}

func TestValidateRejectsNonThumbResetHandler(t *testing.T) {
	// An MSP of 0xFFFFFFFF (the erased pattern) with a reset handler
	// whose Thumb bit is set must still reject.
	sim := flash.NewSim(appBase, appEnd-appBase, 0x800)
	programVectorTable(t, sim, 0xFFFFFFFF, 0xA001)
	ok, err := Validate(sim, appBase, ranges())
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("erased-pattern MSP must never validate, regardless of reset_handler")
	}
}

func TestValidateRejectsEvenResetHandler(t *testing.T) {
	sim := flash.NewSim(appBase, appEnd-appBase, 0x800)
	programVectorTable(t, sim, 0x20004000, appBase+0x400) // even: not Thumb
	ok, err := Validate(sim, appBase, ranges())
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("a non-Thumb (even) reset handler must never validate")
	}
}

func TestValidateRejectsResetHandlerOutsideFlash(t *testing.T) {
	sim := flash.NewSim(appBase, appEnd-appBase, 0x800)
	programVectorTable(t, sim, 0x20004000, 0x90000001)
	ok, err := Validate(sim, appBase, ranges())
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("a reset handler outside the flash range must never validate")
	}
}
