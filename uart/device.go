// Package uart models the serial transport described for the S32K144
// bootloader: an asynchronous 8-N-1 link driven by byte-at-a-time
// interrupts, with a small set of completion events the main loop polls
// for.
//
// Two implementations share the Device interface: MCUDevice, a software
// model of the interrupt-driven hardware contract used to host-test the
// bootloader orchestrator, and HostPort, a real Linux termios serial
// port adapted to the same interface for the companion flashing tool.
package uart

import "fmt"

// Event is a bit in the usart_events bitset. The ISR ORs bits in; the
// main loop clears a bit after observing it.
type Event uint32

const (
	EventSendComplete Event = 1 << iota
	EventReceiveComplete
	EventRxOverflow
	EventRxFramingError
	EventRxParityError
	EventRxBreak
)

// EventCallback is invoked from interrupt context (or its simulated
// equivalent) to OR new bits into the caller's event bitset.
type EventCallback func(events Event)

// PowerState mirrors ARM_POWER_OFF/LOW/FULL from the CMSIS-Driver
// USART specification.
type PowerState int

const (
	PowerOff PowerState = iota
	PowerLow
	PowerFull
)

// Mode selects the USART framing mode. Only Asynchronous is supported;
// anything else yields ErrUnsupported.
type Mode int

const (
	ModeAsynchronous Mode = iota
	ModeSynchronousMaster
	ModeSynchronousSlave
)

// Parity selects the parity scheme.
type Parity int

const (
	ParityNone Parity = iota
	ParityEven
	ParityOdd
)

// Status reports the transport's current condition, mirroring
// ARM_USART_STATUS from the CMSIS-Driver USART specification.
type Status struct {
	TxBusy         bool
	RxBusy         bool
	TxUnderflow    bool
	RxOverflow     bool
	RxBreak        bool
	RxFramingError bool
	RxParityError  bool
}

// Device is the contract the bootloader orchestrator drives. Send and
// Receive are non-blocking: completion is signalled asynchronously via
// the EventCallback registered with Init.
type Device interface {
	Init(cb EventCallback) error
	Power(state PowerState) error
	Configure(mode Mode, dataBits int, parity Parity, stopBits int, baud uint32) error
	Send(data []byte) error
	Receive(data []byte) error
	TxCount() uint32
	RxCount() uint32
	Status() Status
}

// Kind classifies a transport error.
type Kind int

const (
	KindBusy Kind = iota
	KindParameter
	KindUnsupported
	KindBaudrate
	KindTimeout
	KindOverflow
	KindClosed
)

func (k Kind) String() string {
	switch k {
	case KindBusy:
		return "busy"
	case KindParameter:
		return "parameter"
	case KindUnsupported:
		return "unsupported"
	case KindBaudrate:
		return "baudrate"
	case KindTimeout:
		return "timeout"
	case KindOverflow:
		return "overflow"
	case KindClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Error is a transport error, generalized from a similar wrapping type
// with a Kind tag so callers can switch on failure class instead of
// string-matching.
type Error struct {
	Kind Kind
	msg  string
	err  error
}

func (e *Error) Error() string {
	if e.msg != "" {
		if e.err != nil {
			return fmt.Sprintf("uart: %s (%s): %v", e.msg, e.Kind, e.err)
		}
		return fmt.Sprintf("uart: %s (%s)", e.msg, e.Kind)
	}
	return fmt.Sprintf("uart: %s", e.Kind)
}

func (e *Error) Unwrap() error { return e.err }

func newErr(kind Kind, msg string, cause error) error {
	return &Error{Kind: kind, msg: msg, err: cause}
}

var (
	ErrBusy        = newErr(KindBusy, "send already in progress", nil)
	ErrParameter   = newErr(KindParameter, "null or zero-length buffer", nil)
	ErrUnsupported = newErr(KindUnsupported, "mode not supported", nil)
	ErrBaudrate    = newErr(KindBaudrate, "unsupported baud rate", nil)
	ErrTimeout     = newErr(KindTimeout, "receive timed out", nil)
	ErrClosed      = newErr(KindClosed, "port already closed", nil)
)

// baudDivisors is the 8MHz-source baud table the bootloader's UART
// supports: the LPUART BAUD register's OSR/SBR pairs for each rate,
// folded into one opaque divisor word. Real register writes belong to
// the MMIO layer; only the supported-rate set matters to a hosted
// model.
var baudDivisors = map[uint32]uint32{
	1200:   0x0F0006D6,
	2400:   0x0F00036B,
	4800:   0x0F00019A,
	9600:   0x0F000034,
	19200:  0x0F00001A,
	38400:  0x0F00000D,
	57600:  0x0F000009,
	115200: 0x16000003,
}

func validBaud(baud uint32) bool {
	_, ok := baudDivisors[baud]
	return ok
}
