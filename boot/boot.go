// Package boot is the bootloader orchestrator: it drives the UART
// device, frames incoming bytes into S-record lines through the line
// queue, parses and programs them through the streamer, and hands off
// to a validated application.
package boot

import (
	"context"
	"sync/atomic"

	"github.com/dpham-s32k144/uartboot/flash"
	"github.com/dpham-s32k144/uartboot/handoff"
	"github.com/dpham-s32k144/uartboot/lineq"
	"github.com/dpham-s32k144/uartboot/srec"
	"github.com/dpham-s32k144/uartboot/streamer"
	"github.com/dpham-s32k144/uartboot/uart"
	"github.com/dpham-s32k144/uartboot/validate"
)

// cmdBufferSize bounds one assembled line, matching lineq's per-line
// capacity.
const cmdBufferSize = 256

// Logger is the minimal structured-logging seam the orchestrator
// writes through, letting callers wire in whatever the surrounding
// service uses (the CLI commands in cmd/ wire a small stdlib-backed
// logger).
type Logger interface {
	Printf(format string, args ...any)
}

// BootPin reads the external boot-request signal. A true reading (a
// pulled-up input with the button released) causes the bootloader to
// attempt an immediate jump to the existing application rather than to
// stay resident. The polarity is unverified against the board
// schematic; see DESIGN.md.
type BootPin interface {
	Read() bool
}

// NoBootPin always reports that no boot-mode request is present, for
// boards or tests with no physical pin wired.
type NoBootPin struct{}

func (NoBootPin) Read() bool { return false }

// Config carries the memory map and tuning knobs: the application
// region bounds, the SRAM and flash ranges used for validation, and
// the UART baud rate.
type Config struct {
	AppBase      uint32
	AppEndExcl   uint32
	SRAMStart    uint32
	SRAMEndExcl  uint32
	FlashStart   uint32
	FlashEndExcl uint32
	Baud         uint32
	EnableVerify bool
}

func (c Config) sectorCount(sectorSize uint32) int {
	span := c.AppEndExcl - c.AppBase
	return int((span + sectorSize - 1) / sectorSize)
}

func (c Config) validateRanges() validate.Ranges {
	return validate.Ranges{
		SRAMStart:    c.SRAMStart,
		SRAMEndExcl:  c.SRAMEndExcl,
		FlashStart:   c.FlashStart,
		FlashEndExcl: c.FlashEndExcl,
	}
}

// Orchestrator runs the bootloader's receive/parse/program/handoff
// cycle over a Device, a flash Controller, and a handoff Target.
type Orchestrator struct {
	dev    uart.Device
	ctrl   flash.Controller
	target handoff.Target
	pin    BootPin
	log    Logger
	cfg    Config

	queue    *lineq.Queue
	streamer *streamer.Streamer

	cmdBuf   [cmdBufferSize]byte
	cmdIndex int

	updateActive bool
	seenData     bool
	entryPoint   uint32

	events atomic.Uint32
	wake   chan struct{}
	rxByte [1]byte
}

// New builds an Orchestrator. log may be nil to discard log output.
func New(dev uart.Device, ctrl flash.Controller, target handoff.Target, pin BootPin, cfg Config, log Logger) *Orchestrator {
	if pin == nil {
		pin = NoBootPin{}
	}
	if log == nil {
		log = discardLogger{}
	}
	st := streamer.New(ctrl, streamer.Range{Start: cfg.AppBase, EndExcl: cfg.AppEndExcl})
	st.EnableVerify(cfg.EnableVerify)
	return &Orchestrator{
		dev:      dev,
		ctrl:     ctrl,
		target:   target,
		pin:      pin,
		log:      log,
		cfg:      cfg,
		queue:    lineq.New(),
		streamer: st,
		wake:     make(chan struct{}, 1),
	}
}

// EntryPoint returns the address captured from the most recent
// terminator record (S7/S8/S9). It is informational: the jump itself
// always uses the reset vector read back from the validated
// application image, not this field.
func (o *Orchestrator) EntryPoint() uint32 { return o.entryPoint }

type discardLogger struct{}

func (discardLogger) Printf(string, ...any) {}

func (o *Orchestrator) onEvent(ev uart.Event) {
	for {
		old := o.events.Load()
		next := old | uint32(ev)
		if o.events.CompareAndSwap(old, next) {
			break
		}
	}
	select {
	case o.wake <- struct{}{}:
	default:
	}
}

func (o *Orchestrator) clearEvent(ev uart.Event) {
	for {
		old := o.events.Load()
		next := old &^ uint32(ev)
		if o.events.CompareAndSwap(old, next) {
			return
		}
	}
}

// sendBanner blocks until the whole string is on the wire: Send is
// asynchronous, so wait for the send-complete event before returning.
func (o *Orchestrator) sendBanner(s string) error {
	if err := o.dev.Send([]byte(s)); err != nil {
		return err
	}
	for uart.Event(o.events.Load())&uart.EventSendComplete == 0 {
		<-o.wake
	}
	o.clearEvent(uart.EventSendComplete)
	return nil
}

// Run initializes the UART, optionally jumps straight to an existing
// valid application if the boot pin requests it, erases the
// application region, and then services incoming S-record lines until
// ctx is canceled, a handoff occurs, or an unrecoverable error occurs.
func (o *Orchestrator) Run(ctx context.Context) error {
	if err := o.dev.Init(o.onEvent); err != nil {
		return err
	}
	if err := o.dev.Power(uart.PowerFull); err != nil {
		return err
	}
	if err := o.dev.Configure(uart.ModeAsynchronous, 8, uart.ParityNone, 1, o.cfg.Baud); err != nil {
		return err
	}

	if o.pin.Read() {
		if valid, err := validate.Validate(o.ctrl, o.cfg.AppBase, o.cfg.validateRanges()); err == nil && valid {
			_, err := o.jumpToApp()
			return err
		}
	}

	if err := o.sendBanner("\r\n*** ERASE PROCESSING ***\r\n"); err != nil {
		return err
	}
	if err := o.ctrl.EraseRange(o.cfg.AppBase, o.cfg.sectorCount(o.ctrl.SectorSize())); err != nil {
		return err
	}
	o.streamer.Begin()

	if err := o.sendBanner("\r\n*** UART BOOTLOADER READY TO SENT ***\r\n"); err != nil {
		return err
	}
	if err := o.sendBanner("\r\n*** PLEASE SEND SREC FILE ***\r\n"); err != nil {
		return err
	}

	if err := o.dev.Receive(o.rxByte[:]); err != nil {
		return err
	}

	// Wake tokens are coalesced (the channel holds at most one), and
	// sendBanner may consume a token that was signalling a receive
	// event, so the loop re-reads the event bitset before blocking
	// rather than trusting one token per event.
	const handled = uart.EventReceiveComplete | uart.EventRxOverflow |
		uart.EventRxFramingError | uart.EventRxParityError | uart.EventRxBreak
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		ev := uart.Event(o.events.Load())
		if ev&handled == 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-o.wake:
			}
			continue
		}

		if ev&uart.EventReceiveComplete != 0 {
			o.clearEvent(uart.EventReceiveComplete)
			c := o.rxByte[0]
			if err := o.dev.Receive(o.rxByte[:]); err != nil {
				return err
			}
			if handedOff, err := o.handleByte(c); err != nil {
				return err
			} else if handedOff {
				return nil
			}
		}
		if ev&(uart.EventRxOverflow|uart.EventRxFramingError|uart.EventRxParityError|uart.EventRxBreak) != 0 {
			o.clearEvent(uart.EventRxOverflow | uart.EventRxFramingError | uart.EventRxParityError | uart.EventRxBreak)
			o.log.Printf("uart error status: %+v", o.dev.Status())
		}
	}
}

// handleByte assembles the line buffer: CR/LF closes a line, anything
// else is appended unless the buffer is full. handedOff reports
// whether a successful handoff occurred, at which point Run should
// stop servicing the UART.
func (o *Orchestrator) handleByte(c byte) (handedOff bool, err error) {
	if c == '\r' || c == '\n' {
		if o.cmdIndex == 0 {
			return false, nil
		}
		line := append([]byte(nil), o.cmdBuf[:o.cmdIndex]...)
		o.cmdIndex = 0

		for {
			pushErr := o.queue.Push(line)
			if pushErr == nil {
				break
			}
			if pushErr != lineq.ErrFull {
				return false, pushErr
			}
			if handedOff, err = o.drainQueue(); handedOff || err != nil {
				return handedOff, err
			}
		}
		return o.drainQueue()
	}

	if o.cmdIndex < cmdBufferSize-1 {
		o.cmdBuf[o.cmdIndex] = c
		o.cmdIndex++
		return false, nil
	}

	// Overflow: discard the partial line and tell the operator, so a
	// terminal session shows why the line vanished instead of silently
	// eating it.
	o.log.Printf("command line exceeded %d bytes, discarding", cmdBufferSize)
	o.cmdIndex = 0
	if err := o.sendBanner("\r\nError: Command too long\r\n"); err != nil {
		return false, err
	}
	return false, nil
}

// drainQueue pops and processes every currently queued line. It is the
// single helper used both for queue-full backpressure while pushing a
// new line and for the full drain after a line is accepted.
func (o *Orchestrator) drainQueue() (handedOff bool, err error) {
	for {
		line, popErr := o.queue.Pop()
		if popErr != nil {
			return false, nil
		}
		rec, parseErr := srec.Parse(line)
		if parseErr != nil {
			o.log.Printf("srec parse error: %v", parseErr)
			continue
		}
		done, recErr := o.handleRecord(rec)
		if recErr != nil {
			return false, recErr
		}
		if done {
			return true, nil
		}
	}
}

// handleRecord dispatches one parsed record: data records stream into
// flash, terminator records attempt a handoff once at least one data
// record has been programmed. All other kinds are ignored.
func (o *Orchestrator) handleRecord(rec srec.Record) (handedOff bool, err error) {
	switch {
	case rec.Kind.IsData():
		o.updateActive = true
		if werr := o.streamer.Write(rec.Address, rec.Data[:rec.DataLen]); werr != nil {
			o.log.Printf("flash write error at 0x%08X: %v", rec.Address, werr)
			return false, nil
		}
		o.seenData = true
		return false, nil

	case rec.Kind.IsTerminator():
		o.entryPoint = rec.Address
		if ferr := o.streamer.End(); ferr != nil {
			o.log.Printf("final phrase flush error: %v", ferr)
			return false, nil
		}
		if o.updateActive && o.seenData {
			jumped, err := o.jumpToApp()
			if err != nil {
				return false, err
			}
			// A rejected image leaves the bootloader resident and
			// still accepting records rather than exiting Run.
			return jumped, nil
		}
		return false, nil

	default:
		return false, nil
	}
}

// jumpToApp validates the resident image and, if it passes, hands off
// to it. The bool return is false whenever the image fails validation,
// which is terminal for this image but not for the session; err is
// reserved for genuine controller I/O failures, which the caller
// treats as fatal to the session.
func (o *Orchestrator) jumpToApp() (bool, error) {
	valid, err := validate.Validate(o.ctrl, o.cfg.AppBase, o.cfg.validateRanges())
	if err != nil {
		return false, err
	}
	if !valid {
		o.log.Printf("refusing handoff: image at 0x%08X failed validation", o.cfg.AppBase)
		return false, nil
	}

	msp, err := o.ctrl.ReadWord(o.cfg.AppBase)
	if err != nil {
		return false, err
	}
	reset, err := o.ctrl.ReadWord(o.cfg.AppBase + 4)
	if err != nil {
		return false, err
	}
	o.target.Jump(o.cfg.AppBase, msp, reset)
	return true, nil
}
