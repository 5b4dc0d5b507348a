package client

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/cuemby/keyforge/pkg/types"
	"github.com/cuemby/keyforge/pkg/wire"
	"github.com/google/uuid"
)

var (
	// ErrWrongPassword means the server rejected the credential
	ErrWrongPassword = errors.New("client: credential rejected by server")

	// ErrNoJob means the server had no work for this request
	ErrNoJob = errors.New("client: no job available")
)

// Dialer opens sessions to the coordinating server
type Dialer struct {
	Address        string
	ConnectTimeout time.Duration
	ReceiveTimeout time.Duration // Bound on every wait for a server reply; 0 disables
	FloatOrder     wire.FloatOrder
}

// Dial connects to the server. Failures wrap wire.ErrTransport
func (d *Dialer) Dial(ctx context.Context) (*Conn, error) {
	nd := net.Dialer{Timeout: d.ConnectTimeout}
	conn, err := nd.DialContext(ctx, "tcp", d.Address)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to connect to %s: %v", wire.ErrTransport, d.Address, err)
	}
	return newConn(conn, d.ReceiveTimeout, d.FloatOrder), nil
}

// Conn is one session with the server. Every exchange is a client message
// followed by exactly one server reply. Not safe for concurrent use
type Conn struct {
	id             string
	conn           net.Conn
	r              *wire.Reader
	w              *wire.Writer
	receiveTimeout time.Duration
}

func newConn(conn net.Conn, receiveTimeout time.Duration, order wire.FloatOrder) *Conn {
	return &Conn{
		id:             uuid.New().String(),
		conn:           conn,
		r:              wire.NewReader(bufio.NewReader(conn), order),
		w:              wire.NewWriter(conn, order),
		receiveTimeout: receiveTimeout,
	}
}

// ID returns the session id used in logs and events
func (c *Conn) ID() string {
	return c.id
}

// RemoteAddr returns the server address
func (c *Conn) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}

// Close closes the underlying connection
func (c *Conn) Close() error {
	return c.conn.Close()
}

// Hello sends the handshake and waits for the server's verdict
func (c *Conn) Hello(h wire.Hello) error {
	if err := c.send(func() error { return wire.WriteHello(c.w, h) }); err != nil {
		return err
	}
	op, err := c.awaitReply()
	if err != nil {
		return err
	}
	switch op {
	case wire.OpAck:
		return nil
	case wire.OpWrongPassword:
		return ErrWrongPassword
	default:
		return unexpected(op, "HELLO")
	}
}

// RequestJob asks for work. It returns the job, ErrNoJob or ErrWrongPassword
func (c *Conn) RequestJob() (*types.Job, error) {
	if err := c.send(func() error { return wire.WriteJobRequest(c.w) }); err != nil {
		return nil, err
	}
	op, err := c.awaitReply()
	if err != nil {
		return nil, err
	}
	switch op {
	case wire.OpNewJob:
		return wire.ReadJob(c.r)
	case wire.OpNoJob:
		return nil, ErrNoJob
	case wire.OpWrongPassword:
		return nil, ErrWrongPassword
	default:
		return nil, unexpected(op, "JOB_REQUEST")
	}
}

// SendResult delivers a result and waits for the server's ACK
func (c *Conn) SendResult(res *types.JobResult) error {
	if err := c.send(func() error { return wire.WriteJobResult(c.w, res) }); err != nil {
		return err
	}
	op, err := c.awaitReply()
	if err != nil {
		return err
	}
	if op != wire.OpAck {
		return unexpected(op, "JOB_RESULT")
	}
	return nil
}

func (c *Conn) send(write func() error) error {
	if c.receiveTimeout > 0 {
		if err := c.conn.SetWriteDeadline(time.Now().Add(c.receiveTimeout)); err != nil {
			return fmt.Errorf("%w: failed to set write deadline: %v", wire.ErrTransport, err)
		}
	}
	return write()
}

// awaitReply reads the reply opcode; the deadline covers the reply payload too
func (c *Conn) awaitReply() (wire.Opcode, error) {
	if c.receiveTimeout > 0 {
		if err := c.conn.SetReadDeadline(time.Now().Add(c.receiveTimeout)); err != nil {
			return 0, fmt.Errorf("%w: failed to set read deadline: %v", wire.ErrTransport, err)
		}
	}
	return wire.ReadOpcode(c.r)
}

func unexpected(op wire.Opcode, request string) error {
	return fmt.Errorf("%w: unexpected opcode %d in reply to %s", wire.ErrTransport, op, request)
}
