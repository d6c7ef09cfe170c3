// Package streamer coalesces the arbitrarily-aligned, arbitrarily-sized
// writes produced by incoming S-record data lines into whole 8-byte
// phrases before they reach the flash controller.
//
// Streamer holds exactly one phrase "open" at a time: a run of writes
// that stay within the same 8-byte-aligned base accumulate in a single
// cached image, and the image is only sent to the controller when a
// write touches a different base (or the session ends) and the
// accumulated image actually differs from what flash already holds. An
// S-record stream whose records are not individually phrase-aligned,
// the common case since each data record carries whatever byte count
// its tool chose, therefore still issues exactly one ProgramPhrase
// call per distinct phrase touched, never one per record.
package streamer

import (
	"fmt"

	"github.com/dpham-s32k144/uartboot/flash"
)

// Range bounds the address space a Streamer is allowed to touch,
// normally the application region so a malformed image can never
// overwrite the resident bootloader.
type Range struct {
	Start   uint32
	EndExcl uint32
}

func (r Range) contains(addr, length uint32) bool {
	end := addr + length
	if end < addr {
		return false // overflow
	}
	return addr >= r.Start && end <= r.EndExcl
}

// Kind classifies a streamer error.
type Kind int

const (
	KindParameter Kind = iota
	KindRange
	KindVerify
	KindFlash
)

func (k Kind) String() string {
	switch k {
	case KindParameter:
		return "parameter"
	case KindRange:
		return "range"
	case KindVerify:
		return "verify"
	case KindFlash:
		return "flash"
	default:
		return "unknown"
	}
}

// Error reports why Write or End failed.
type Error struct {
	Kind Kind
	Addr uint32
}

func (e *Error) Error() string {
	return fmt.Sprintf("streamer: %s at 0x%08X", e.Kind, e.Addr)
}

// Streamer batches writes into a controller's phrase granularity and
// skips reprogramming phrases whose content is already correct. It is
// not safe for concurrent use.
type Streamer struct {
	ctrl   flash.Controller
	r      Range
	verify bool

	valid bool
	dirty bool
	base  uint32
	image [flash.PhraseSize]byte

	programCalls int
	skippedCalls int
}

// New creates a Streamer that writes through ctrl, rejecting any
// address outside r.
func New(ctrl flash.Controller, r Range) *Streamer {
	return &Streamer{ctrl: ctrl, r: r}
}

// EnableVerify turns on a read-back check after every phrase actually
// programmed. It is off by default: the default path trusts the
// controller's completion status rather than re-reading every byte.
func (s *Streamer) EnableVerify(on bool) {
	s.verify = on
}

// Begin discards any open phrase and starts a fresh streaming session.
// Callers invoke it once per image transfer, before the first Write.
func (s *Streamer) Begin() {
	s.valid = false
	s.dirty = false
	s.image = [flash.PhraseSize]byte{}
	s.programCalls = 0
	s.skippedCalls = 0
}

// ProgramCalls reports how many phrases were actually sent to the
// controller across this Streamer's lifetime.
func (s *Streamer) ProgramCalls() int { return s.programCalls }

// SkippedCalls reports how many phrases were left untouched because
// their content already matched.
func (s *Streamer) SkippedCalls() int { return s.skippedCalls }

// Write merges len(data) bytes starting at addr into the open phrase
// cache, flushing whatever phrase was previously open whenever a byte
// lands in a different 8-aligned base. Bytes need not be aligned or
// ordered within a phrase; the cache reassembles whichever sub-ranges
// arrive.
func (s *Streamer) Write(addr uint32, data []byte) error {
	if len(data) == 0 {
		return &Error{KindParameter, addr}
	}
	length := uint32(len(data))
	if !s.r.contains(addr, length) {
		return &Error{KindRange, addr}
	}

	for i, b := range data {
		byteAddr := addr + uint32(i)
		base := byteAddr &^ uint32(flash.PhraseSize-1)
		off := byteAddr - base

		if s.valid && s.base != base {
			if err := s.flush(); err != nil {
				return err
			}
		}
		if !s.valid || s.base != base {
			s.base = base
			s.image = [flash.PhraseSize]byte{}
			for j := range s.image {
				s.image[j] = 0xFF
			}
			s.valid = true
			s.dirty = false
		}
		s.image[off] = b
		s.dirty = true
	}
	return nil
}

// End flushes whatever phrase is still open, as the terminator record
// does before the image is handed to the validator.
func (s *Streamer) End() error {
	if !s.valid {
		return nil
	}
	return s.flush()
}

// flush programs the currently cached phrase if, and only if, its
// content differs from what flash already holds, skipping the write
// idempotently when a phrase is reprogrammed with identical content.
func (s *Streamer) flush() error {
	if !s.dirty {
		return nil
	}

	w0, err := s.ctrl.ReadWord(s.base)
	if err != nil {
		return err
	}
	w1, err := s.ctrl.ReadWord(s.base + 4)
	if err != nil {
		return err
	}
	var current [flash.PhraseSize]byte
	putLE(current[0:4], w0)
	putLE(current[4:8], w1)

	if current == s.image {
		s.skippedCalls++
		s.dirty = false
		return nil
	}

	if err := s.ctrl.ProgramPhrase(s.base, s.image); err != nil {
		return err
	}
	if !s.ctrl.LastStatus().OK() {
		return &Error{KindFlash, s.base}
	}
	s.programCalls++
	s.dirty = false

	if s.verify {
		if err := s.verifyPhrase(s.base, s.image); err != nil {
			return err
		}
	}
	return nil
}

func (s *Streamer) verifyPhrase(addr uint32, want [flash.PhraseSize]byte) error {
	w0, err := s.ctrl.ReadWord(addr)
	if err != nil {
		return err
	}
	w1, err := s.ctrl.ReadWord(addr + 4)
	if err != nil {
		return err
	}
	var got [flash.PhraseSize]byte
	putLE(got[0:4], w0)
	putLE(got[4:8], w1)
	if got != want {
		return &Error{KindVerify, addr}
	}
	return nil
}

func putLE(b []byte, w uint32) {
	b[0] = byte(w)
	b[1] = byte(w >> 8)
	b[2] = byte(w >> 16)
	b[3] = byte(w >> 24)
}
