package uart

// wrapErr attaches a message to a lower-level termios/ioctl failure
// without discarding the cause, used by the HostPort methods that
// shell out to syscalls.
func wrapErr(msg string, e error) error {
	if e == nil {
		return nil
	}
	return newErr(KindParameter, msg, e)
}
