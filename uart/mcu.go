package uart

import (
	"io"
	"sync"
	"sync/atomic"
)

// Wire is the point-to-point link an MCUDevice transmits on and
// receives from: a real serial line in production, a net.Pipe in
// tests.
type Wire interface {
	io.Reader
	io.Writer
}

// MCUDevice is the canonical interrupt-driven transport. It models the
// register-level contract (one byte per interrupt, TX-empty and
// RX-full flags, a latched event bitset) without requiring real MMIO:
// a background byte pump stands in for the hardware ISR, and every
// Send/Receive transition is guarded by the same busy flags a real
// driver keeps in its status block.
type MCUDevice struct {
	mu       sync.Mutex
	wire     Wire
	cb       EventCallback
	power    PowerState
	mode     Mode
	baud     uint32
	status   Status
	txCount  atomic.Uint32
	rxCount  atomic.Uint32
	rxActive []byte
	rxPos    int
	closed   chan struct{}
}

// NewMCUDevice wraps wire (the simulated physical link) in an
// interrupt-driven Device.
func NewMCUDevice(wire Wire) *MCUDevice {
	return &MCUDevice{wire: wire}
}

func (d *MCUDevice) Init(cb EventCallback) error {
	d.mu.Lock()
	d.cb = cb
	d.closed = make(chan struct{})
	d.mu.Unlock()
	go d.rxPump()
	return nil
}

func (d *MCUDevice) Power(state PowerState) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.power = state
	return nil
}

func (d *MCUDevice) Configure(mode Mode, dataBits int, parity Parity, stopBits int, baud uint32) error {
	if mode != ModeAsynchronous {
		return ErrUnsupported
	}
	if dataBits != 8 || (stopBits != 1 && stopBits != 2) {
		return ErrUnsupported
	}
	if !validBaud(baud) {
		return ErrBaudrate
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.mode = mode
	d.baud = baud
	return nil
}

// Send queues data for transmission and returns immediately; completion
// is reported via EventSendComplete on the registered callback, exactly
// as the ISR disables TIE and fires ARM_USART_EVENT_SEND_COMPLETE once
// the last byte has left the data register.
func (d *MCUDevice) Send(data []byte) error {
	if len(data) == 0 {
		return ErrParameter
	}
	d.mu.Lock()
	if d.power != PowerFull {
		d.mu.Unlock()
		return newErr(KindUnsupported, "send while not powered", nil)
	}
	if d.status.TxBusy {
		d.mu.Unlock()
		return ErrBusy
	}
	d.status.TxBusy = true
	cb := d.cb
	d.mu.Unlock()

	go func() {
		for _, b := range data {
			if _, err := d.wire.Write([]byte{b}); err != nil {
				d.mu.Lock()
				d.status.TxBusy = false
				d.status.TxUnderflow = true
				d.mu.Unlock()
				return
			}
			d.txCount.Add(1)
		}
		d.mu.Lock()
		d.status.TxBusy = false
		d.mu.Unlock()
		if cb != nil {
			cb(EventSendComplete)
		}
	}()
	return nil
}

// Receive arms the single active receive slot; the background rxPump
// goroutine (the simulated ISR) fills it byte by byte and fires
// EventReceiveComplete on completion.
func (d *MCUDevice) Receive(data []byte) error {
	if len(data) == 0 {
		return ErrParameter
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.status.RxBusy {
		return ErrBusy
	}
	d.status.RxBusy = true
	d.rxActive = data
	d.rxPos = 0
	return nil
}

func (d *MCUDevice) rxPump() {
	buf := make([]byte, 1)
	for {
		n, err := d.wire.Read(buf)
		if err != nil {
			return
		}
		if n == 0 {
			continue
		}
		d.onRxByte(buf[0])
		select {
		case <-d.closed:
			return
		default:
		}
	}
}

func (d *MCUDevice) onRxByte(b byte) {
	d.mu.Lock()
	if !d.status.RxBusy {
		// No armed receive: the single-deep shift register was not
		// drained in time, mirroring a real UART's overrun flag.
		d.status.RxOverflow = true
		cb := d.cb
		d.mu.Unlock()
		if cb != nil {
			cb(EventRxOverflow)
		}
		return
	}
	d.rxActive[d.rxPos] = b
	d.rxPos++
	d.rxCount.Add(1)
	done := d.rxPos >= len(d.rxActive)
	if done {
		d.status.RxBusy = false
	}
	cb := d.cb
	d.mu.Unlock()
	if done && cb != nil {
		cb(EventReceiveComplete)
	}
}

func (d *MCUDevice) TxCount() uint32 { return d.txCount.Load() }
func (d *MCUDevice) RxCount() uint32 { return d.rxCount.Load() }

func (d *MCUDevice) Status() Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.status
}

// Close stops the background receive pump. It does not close the
// underlying wire.
func (d *MCUDevice) Close() error {
	d.mu.Lock()
	closed := d.closed
	d.mu.Unlock()
	if closed != nil {
		select {
		case <-closed:
		default:
			close(closed)
		}
	}
	return nil
}
