//go:build !unix

package rtp

import (
	"net"
)

func setReceiveBuffer(conn net.PacketConn, size int) error {
	if uc, ok := conn.(*net.UDPConn); ok {
		return uc.SetReadBuffer(size)
	}
	return nil
}
