//go:build !unix

package control

import "syscall"

func enableBroadcast(network, address string, c syscall.RawConn) error {
	return nil
}
