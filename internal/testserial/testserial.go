// Package testserial provides the transport uart package tests (and
// boot package tests) drive against instead of real hardware: an
// in-process pipe satisfying uart.Wire.
package testserial

import "net"

// PipeWire returns two ends of an in-memory full-duplex pipe, each
// satisfying uart.Wire, for driving a pair of MCUDevice instances (or
// one MCUDevice against a raw test harness) without any OS-level
// transport.
func PipeWire() (a, b net.Conn) {
	return net.Pipe()
}
