package flash

import "encoding/binary"

// Sim is an in-memory model of the S32K144 internal flash array: a
// byte array initialized to the erased value (0xFF), fault-injection
// hooks for exercising the orchestrator's error recovery, and call
// counters so tests can assert on exactly how many program operations
// a write sequence produced.
type Sim struct {
	base       uint32
	mem        []byte
	sectorSize uint32

	lastStatus Status

	failProgram *Status
	failErase   *Status

	ProgramCalls int
	EraseCalls   int
}

// NewSim creates a simulated flash array covering [base, base+size),
// sized in whole sectors of sectorSize bytes, initialized erased.
func NewSim(base uint32, size uint32, sectorSize uint32) *Sim {
	mem := make([]byte, size)
	for i := range mem {
		mem[i] = 0xFF
	}
	return &Sim{base: base, mem: mem, sectorSize: sectorSize, lastStatus: Status{Complete: true}}
}

func (s *Sim) offset(addr uint32) (int, bool) {
	if addr < s.base || addr >= s.base+uint32(len(s.mem)) {
		return 0, false
	}
	return int(addr - s.base), true
}

// FailNextProgram injects a controller error into the next
// ProgramPhrase call only.
func (s *Sim) FailNextProgram(status Status) {
	st := status
	s.failProgram = &st
}

// FailNextErase injects a controller error into the next erase call
// only (EraseSector or EraseRange).
func (s *Sim) FailNextErase(status Status) {
	st := status
	s.failErase = &st
}

func (s *Sim) ReadWord(addr uint32) (uint32, error) {
	off, ok := s.offset(addr)
	if !ok || off+4 > len(s.mem) {
		s.lastStatus = Status{Complete: true, AccessErr: true}
		return 0, &Error{KindAccess, addr}
	}
	s.lastStatus = Status{Complete: true}
	return binary.LittleEndian.Uint32(s.mem[off : off+4]), nil
}

func (s *Sim) EraseSector(sectorAddr uint32) error {
	return s.EraseRange(sectorAddr, 1)
}

func (s *Sim) EraseRange(base uint32, sectorCount int) error {
	s.EraseCalls++
	if s.failErase != nil {
		st := *s.failErase
		s.failErase = nil
		s.lastStatus = st
		return errFromStatus(base, st)
	}
	off, ok := s.offset(base)
	if !ok || sectorCount < 0 {
		s.lastStatus = Status{Complete: true, AccessErr: true}
		return &Error{KindAccess, base}
	}
	n := sectorCount * int(s.sectorSize)
	if off+n > len(s.mem) {
		s.lastStatus = Status{Complete: true, AccessErr: true}
		return &Error{KindAccess, base}
	}
	for i := off; i < off+n; i++ {
		s.mem[i] = 0xFF
	}
	s.lastStatus = Status{Complete: true}
	return nil
}

func (s *Sim) ProgramPhrase(alignedAddr uint32, data [PhraseSize]byte) error {
	s.ProgramCalls++
	if alignedAddr%PhraseSize != 0 {
		s.lastStatus = Status{Complete: true, AccessErr: true}
		return &Error{KindParameter, alignedAddr}
	}
	if s.failProgram != nil {
		st := *s.failProgram
		s.failProgram = nil
		s.lastStatus = st
		return errFromStatus(alignedAddr, st)
	}
	off, ok := s.offset(alignedAddr)
	if !ok || off+PhraseSize > len(s.mem) {
		s.lastStatus = Status{Complete: true, AccessErr: true}
		return &Error{KindAccess, alignedAddr}
	}
	copy(s.mem[off:off+PhraseSize], data[:])
	s.lastStatus = Status{Complete: true}
	return nil
}

func (s *Sim) LastStatus() Status { return s.lastStatus }
func (s *Sim) SectorSize() uint32 { return s.sectorSize }

// Read returns a copy of n bytes from addr, for test assertions.
func (s *Sim) Read(addr uint32, n int) []byte {
	off, ok := s.offset(addr)
	if !ok {
		return nil
	}
	end := off + n
	if end > len(s.mem) {
		end = len(s.mem)
	}
	out := make([]byte, end-off)
	copy(out, s.mem[off:end])
	return out
}
