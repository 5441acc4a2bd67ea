package control

import (
	"context"
	"fmt"
	"net"
	"strconv"
)

// BroadcastHost is the limited broadcast address
const BroadcastHost = "255.255.255.255"

// Send validates line and delivers it as a single datagram to host:port.
// There is no acknowledgement. Sending to BroadcastHost reaches every
// player on the local network.
func Send(ctx context.Context, host string, port int, line string) error {
	cmd, err := Parse(line)
	if err != nil {
		return err
	}
	wire, ok := cmd.Wire()
	if !ok {
		return fmt.Errorf("command %s cannot be sent over the network", cmd)
	}

	var d net.Dialer
	if host == BroadcastHost {
		d.Control = enableBroadcast
	}
	conn, err := d.DialContext(ctx, "udp", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		return fmt.Errorf("dial %s:%d: %w", host, port, err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetWriteDeadline(deadline)
	}

	if _, err := conn.Write([]byte(wire)); err != nil {
		return fmt.Errorf("send %q: %w", wire, err)
	}
	return nil
}
