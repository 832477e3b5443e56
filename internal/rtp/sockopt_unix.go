//go:build unix

package rtp

import (
	"net"
	"syscall"

	"golang.org/x/sys/unix"
	errors "golang.org/x/xerrors"
)

// Set SO_RCVBUF on the socket underlying conn.
func setReceiveBuffer(conn net.PacketConn, size int) error {
	sc, ok := conn.(syscall.Conn)
	if !ok {
		return errors.Errorf("%T has no file descriptor", conn)
	}
	raw, err := sc.SyscallConn()
	if err != nil {
		return err
	}
	var serr error
	err = raw.Control(func(fd uintptr) {
		serr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_RCVBUF, size)
	})
	if err != nil {
		return err
	}
	return serr
}
