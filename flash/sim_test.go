package flash

import (
	"bytes"
	"errors"
	"testing"
)

func TestSimReadWriteRoundTrip(t *testing.T) {
	s := NewSim(0xA000, 0x1000, 0x800)
	for i := range s.mem {
		if s.mem[i] != 0xFF {
			t.Fatalf("sim not erased at offset %d", i)
		}
	}
	var phrase [PhraseSize]byte
	for i := range phrase {
		phrase[i] = byte(i)
	}
	if err := s.ProgramPhrase(0xA000, phrase); err != nil {
		t.Fatalf("ProgramPhrase: %v", err)
	}
	if got := s.Read(0xA000, PhraseSize); !bytes.Equal(got, phrase[:]) {
		t.Errorf("Read after program = % X, want % X", got, phrase[:])
	}
	if !s.LastStatus().OK() {
		t.Error("LastStatus should be OK after a clean program")
	}
}

func TestSimEraseRestoresErasedPattern(t *testing.T) {
	s := NewSim(0xA000, 0x1000, 0x800)
	var phrase [PhraseSize]byte
	for i := range phrase {
		phrase[i] = 0x42
	}
	if err := s.ProgramPhrase(0xA000, phrase); err != nil {
		t.Fatal(err)
	}
	if err := s.EraseSector(0xA000); err != nil {
		t.Fatalf("EraseSector: %v", err)
	}
	if got := s.Read(0xA000, PhraseSize); !allFF(got) {
		t.Errorf("erased region = % X, want all-0xFF", got)
	}
}

func TestSimEraseRangeSpansMultipleSectors(t *testing.T) {
	s := NewSim(0xA000, 0x2000, 0x800)
	var phrase [PhraseSize]byte
	for i := range phrase {
		phrase[i] = 0x11
	}
	if err := s.ProgramPhrase(0xA000, phrase); err != nil {
		t.Fatal(err)
	}
	if err := s.ProgramPhrase(0xA000+0x1800, phrase); err != nil {
		t.Fatal(err)
	}
	if err := s.EraseRange(0xA000, 4); err != nil {
		t.Fatalf("EraseRange: %v", err)
	}
	if !allFF(s.Read(0xA000, PhraseSize)) || !allFF(s.Read(0xA000+0x1800, PhraseSize)) {
		t.Error("EraseRange should have erased both touched sectors")
	}
}

func TestSimFailNextProgram(t *testing.T) {
	s := NewSim(0xA000, 0x1000, 0x800)
	s.FailNextProgram(Status{Complete: true, ProtectionViolation: true})
	var phrase [PhraseSize]byte
	err := s.ProgramPhrase(0xA000, phrase)
	var flashErr *Error
	if !errors.As(err, &flashErr) || flashErr.Kind != KindProtection {
		t.Fatalf("ProgramPhrase with injected fault = %v, want protection-violation Error", err)
	}
	if !allFF(s.Read(0xA000, PhraseSize)) {
		t.Error("a failed program must not have mutated the backing array")
	}
	// The injected fault only applies to the next call.
	if err := s.ProgramPhrase(0xA000, phrase); err != nil {
		t.Fatalf("second ProgramPhrase should succeed after one-shot fault cleared: %v", err)
	}
}

func TestSimFailNextErase(t *testing.T) {
	s := NewSim(0xA000, 0x1000, 0x800)
	s.FailNextErase(Status{Complete: true, AccessErr: true})
	err := s.EraseSector(0xA000)
	var flashErr *Error
	if !errors.As(err, &flashErr) || flashErr.Kind != KindAccess {
		t.Fatalf("EraseSector with injected fault = %v, want access-error Error", err)
	}
}

func TestSimProgramRejectsMisalignedAddress(t *testing.T) {
	s := NewSim(0xA000, 0x1000, 0x800)
	var phrase [PhraseSize]byte
	if err := s.ProgramPhrase(0xA001, phrase); err == nil {
		t.Fatal("ProgramPhrase at unaligned address should fail")
	}
}

func TestSimReadOutOfRange(t *testing.T) {
	s := NewSim(0xA000, 0x1000, 0x800)
	if _, err := s.ReadWord(0x9000); err == nil {
		t.Fatal("ReadWord below base should fail")
	}
	if _, err := s.ReadWord(0xB000); err == nil {
		t.Fatal("ReadWord past the end should fail")
	}
}

func allFF(b []byte) bool {
	for _, v := range b {
		if v != 0xFF {
			return false
		}
	}
	return true
}
