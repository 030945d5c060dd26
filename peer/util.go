package peer

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/fernandafs/P2P-ProjectNapster/communication"
)

// clientConn is a client connection whose I/O is bounded by the request context.
type clientConn struct {
	net.Conn
	stop   func() bool
	cancel context.CancelFunc
}

func (c *clientConn) Close() error {
	c.stop()
	c.cancel()
	return c.Conn.Close()
}

// dial opens a fresh connection for one request. The connection's deadline
// follows ctx (narrowed by RequestTimeout when set), and cancelling ctx
// unblocks any pending read or write.
func (p *Peer) dial(ctx context.Context, hostPort string) (*clientConn, error) {
	if hostPort == "" {
		return nil, fmt.Errorf("%w: no address to dial", communication.ErrConnectivity)
	}

	cancel := context.CancelFunc(func() {})
	if p.cfg.RequestTimeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, p.cfg.RequestTimeout)
	}

	c, err := p.dialer.DialContext(ctx, "tcp", hostPort)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("%w: %s: %v", communication.ErrConnectivity, hostPort, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = c.SetDeadline(deadline)
	}
	stop := context.AfterFunc(ctx, func() {
		_ = c.SetDeadline(time.Now())
	})
	return &clientConn{Conn: c, stop: stop, cancel: cancel}, nil
}

// roundTrip sends one request line and reads one reply line.
func (p *Peer) roundTrip(ctx context.Context, hostPort string, req communication.Request) (string, error) {
	c, err := p.dial(ctx, hostPort)
	if err != nil {
		return "", err
	}
	defer c.Close()

	if err := communication.WriteLine(c, req.Encode()); err != nil {
		return "", fmt.Errorf("%w: %v", communication.ErrConnectivity, err)
	}
	return p.readReply(bufio.NewReader(c))
}

func (p *Peer) readReply(r *bufio.Reader) (string, error) {
	line, err := communication.ReadLine(r, p.cfg.MaxLineBytes)
	switch {
	case err == nil:
		return line, nil
	case errors.Is(err, io.EOF):
		return "", fmt.Errorf("%w: %s", communication.ErrConnectivity, connectionClosedEarly)
	case errors.Is(err, communication.ErrMalformedMessage):
		return "", err
	default:
		return "", fmt.Errorf("%w: %v", communication.ErrConnectivity, err)
	}
}
