package uart

// tcgets/tcsets are the termios get/set ioctl request numbers Port
// uses to read and apply line discipline settings.
var (
	tcgets = uintptr(0x5401)
	tcsets = uintptr(0x5402)
)
