package uart

import (
	"sync"
	"sync/atomic"
)

// HostPort adapts the real Linux termios Port (port_linux.go) to the
// same Device interface MCUDevice implements, so the host-side
// flashing tool can drive a boot.Orchestrator identically whether it
// is talking to a simulated MCU or a real board.
type HostPort struct {
	port *Port

	mu      sync.Mutex
	cb      EventCallback
	status  Status
	txCount atomic.Uint32
	rxCount atomic.Uint32
}

// NewHostPort wraps an already-open serial Port.
func NewHostPort(p *Port) *HostPort {
	return &HostPort{port: p}
}

func (h *HostPort) Init(cb EventCallback) error {
	h.mu.Lock()
	h.cb = cb
	h.mu.Unlock()
	return nil
}

func (h *HostPort) Power(state PowerState) error {
	return nil
}

func (h *HostPort) Configure(mode Mode, dataBits int, parity Parity, stopBits int, baud uint32) error {
	if mode != ModeAsynchronous {
		return ErrUnsupported
	}
	if !validBaud(baud) {
		return ErrBaudrate
	}
	attrs, err := h.port.GetAttr()
	if err != nil {
		return wrapErr("get termios", err)
	}
	attrs.MakeRaw()
	switch baud {
	case 1200:
		attrs.SetSpeed(B1200)
	case 2400:
		attrs.SetSpeed(B2400)
	case 4800:
		attrs.SetSpeed(B4800)
	case 9600:
		attrs.SetSpeed(B9600)
	case 19200:
		attrs.SetSpeed(B19200)
	case 38400:
		attrs.SetSpeed(B38400)
	case 57600:
		attrs.SetSpeed(B57600)
	case 115200:
		attrs.SetSpeed(B115200)
	}
	switch parity {
	case ParityEven:
		attrs.Cflag |= PARENB
		attrs.Cflag &^= PARODD
	case ParityOdd:
		attrs.Cflag |= PARENB | PARODD
	}
	if stopBits == 2 {
		attrs.Cflag |= CSTOPB
	}
	return h.port.SetAttr(TCSANOW, attrs)
}

func (h *HostPort) Send(data []byte) error {
	if len(data) == 0 {
		return ErrParameter
	}
	h.mu.Lock()
	if h.status.TxBusy {
		h.mu.Unlock()
		return ErrBusy
	}
	h.status.TxBusy = true
	cb := h.cb
	h.mu.Unlock()

	go func() {
		n, err := h.port.Write(data)
		h.txCount.Add(uint32(n))
		h.mu.Lock()
		h.status.TxBusy = false
		if err != nil {
			h.status.TxUnderflow = true
		}
		h.mu.Unlock()
		if cb != nil {
			cb(EventSendComplete)
		}
	}()
	return nil
}

func (h *HostPort) Receive(data []byte) error {
	if len(data) == 0 {
		return ErrParameter
	}
	h.mu.Lock()
	if h.status.RxBusy {
		h.mu.Unlock()
		return ErrBusy
	}
	h.status.RxBusy = true
	cb := h.cb
	h.mu.Unlock()

	go func() {
		total := 0
		for total < len(data) {
			n, err := h.port.Read(data[total:])
			if err != nil {
				h.mu.Lock()
				h.status.RxBusy = false
				h.status.RxFramingError = true
				h.mu.Unlock()
				return
			}
			total += n
			h.rxCount.Add(uint32(n))
		}
		h.mu.Lock()
		h.status.RxBusy = false
		h.mu.Unlock()
		if cb != nil {
			cb(EventReceiveComplete)
		}
	}()
	return nil
}

func (h *HostPort) TxCount() uint32 { return h.txCount.Load() }
func (h *HostPort) RxCount() uint32 { return h.rxCount.Load() }

func (h *HostPort) Status() Status {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.status
}

func (h *HostPort) Close() error {
	return h.port.Close()
}
