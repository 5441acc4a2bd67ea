package control

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/jfmyers9/tuner/internal/history"
	"github.com/rs/zerolog"
)

// DefaultPort is the UDP port used when none is configured
const DefaultPort = 8069

// Listener receives command datagrams and forwards parsed commands
type Listener struct {
	addr    string
	history *history.Emitter
	logger  zerolog.Logger

	conn  *net.UDPConn
	ready chan struct{}
}

// NewListener creates a Listener bound to all interfaces on port
func NewListener(port int, emitter *history.Emitter, logger zerolog.Logger) *Listener {
	return NewListenerAddr(net.JoinHostPort("", strconv.Itoa(port)), emitter, logger)
}

// NewListenerAddr creates a Listener for an explicit host:port
func NewListenerAddr(addr string, emitter *history.Emitter, logger zerolog.Logger) *Listener {
	return &Listener{
		addr:    addr,
		history: emitter,
		logger:  logger.With().Str("component", "udp").Logger(),
		ready:   make(chan struct{}),
	}
}

// Addr returns the bound address once Run has started listening
func (l *Listener) Addr() net.Addr {
	<-l.ready
	if l.conn == nil {
		return nil
	}
	return l.conn.LocalAddr()
}

// Run reads datagrams until ctx is cancelled. Each valid command is sent
// on commands without blocking; when the queue is full the command is
// dropped. Malformed datagrams are reported and dropped.
func (l *Listener) Run(ctx context.Context, commands chan<- Command) error {
	udpAddr, err := net.ResolveUDPAddr("udp", l.addr)
	if err != nil {
		close(l.ready)
		return fmt.Errorf("resolve %s: %w", l.addr, err)
	}

	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		close(l.ready)
		return fmt.Errorf("listen %s: %w", l.addr, err)
	}
	l.conn = conn
	close(l.ready)
	defer conn.Close()

	l.logger.Info().Str("addr", conn.LocalAddr().String()).Msg("Listening for commands")
	l.emit(ctx, history.KindSystem, "Listening for UDP commands on %s", conn.LocalAddr())

	// Unblock ReadFromUDP on shutdown
	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetReadDeadline(time.Now())
	})
	defer stop()

	buf := make([]byte, MaxDatagram)
	for {
		n, from, err := conn.ReadFromUDP(buf)
		if err != nil {
			if ctx.Err() != nil {
				l.logger.Info().Msg("Listener stopped")
				return ctx.Err()
			}
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			return fmt.Errorf("read datagram: %w", err)
		}

		line := string(buf[:n])
		cmd, err := Parse(line)
		if err != nil {
			l.logger.Debug().Err(err).Str("from", from.String()).Str("datagram", line).Msg("Dropping malformed command")
			l.emit(ctx, history.KindError, "Ignored UDP command from %s: %v", from.IP, err)
			continue
		}

		select {
		case commands <- cmd:
			l.logger.Debug().Str("from", from.String()).Stringer("command", cmd).Msg("Command received")
		default:
			l.logger.Warn().Stringer("command", cmd).Msg("Command queue full, dropping")
		}
	}
}

func (l *Listener) emit(ctx context.Context, kind history.Kind, format string, args ...any) {
	if l.history == nil {
		return
	}
	l.history.Emit(ctx, kind, format, args...)
}
