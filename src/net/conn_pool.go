package net

import (
	"bufio"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/ugorji/go/codec"
)

const bufSize = 64 * 1024

// wireHandle frames every RPC on the wire. Handles are safe for concurrent use.
var wireHandle = &codec.MsgpackHandle{}

// streamConn is an outbound connection together with its codec state.
type streamConn struct {
	target string
	conn   net.Conn
	w      *bufio.Writer
	dec    *codec.Decoder
	enc    *codec.Encoder
}

func newStreamConn(target string, conn net.Conn) *streamConn {
	w := bufio.NewWriterSize(conn, bufSize)
	return &streamConn{
		target: target,
		conn:   conn,
		w:      w,
		dec:    codec.NewDecoder(bufio.NewReaderSize(conn, bufSize), wireHandle),
		enc:    codec.NewEncoder(w, wireHandle),
	}
}

// call writes one request frame and reads the reply into resp. reusable is
// false when the connection is left in an unknown state and was closed.
func (c *streamConn) call(rpcType uint8, args, resp interface{}, timeout time.Duration) (reusable bool, err error) {
	if timeout > 0 {
		c.conn.SetDeadline(time.Now().Add(timeout))
	}

	if err := c.write(rpcType, args); err != nil {
		c.release()
		return false, err
	}

	var remoteErr string
	if err := c.dec.Decode(&remoteErr); err != nil {
		c.release()
		return false, err
	}
	if err := c.dec.Decode(resp); err != nil {
		c.release()
		return false, err
	}

	c.conn.SetDeadline(time.Time{})

	if remoteErr != "" {
		return true, errors.New(remoteErr)
	}
	return true, nil
}

// write sends a request frame: one byte for the rpc type followed by the
// msgpack encoded arguments.
func (c *streamConn) write(rpcType uint8, args interface{}) error {
	if err := c.w.WriteByte(rpcType); err != nil {
		return err
	}
	if err := c.enc.Encode(args); err != nil {
		return err
	}
	return c.w.Flush()
}

func (c *streamConn) release() error {
	return c.conn.Close()
}

// connPool keeps up to max idle connections per target.
type connPool struct {
	sync.Mutex
	max    int
	idle   map[string][]*streamConn
	closed bool
}

func newConnPool(max int) *connPool {
	return &connPool{
		max:  max,
		idle: make(map[string][]*streamConn),
	}
}

// take removes and returns an idle connection to target, or nil.
func (p *connPool) take(target string) *streamConn {
	p.Lock()
	defer p.Unlock()

	conns := p.idle[target]
	if len(conns) == 0 {
		return nil
	}

	last := len(conns) - 1
	c := conns[last]
	conns[last] = nil
	p.idle[target] = conns[:last]
	return c
}

// put returns c to the pool, or closes it when the pool is full or drained.
func (p *connPool) put(c *streamConn) {
	p.Lock()
	defer p.Unlock()

	conns := p.idle[c.target]
	if p.closed || len(conns) >= p.max {
		c.release()
		return
	}
	p.idle[c.target] = append(conns, c)
}

// drain closes every idle connection. Connections put afterwards are closed
// immediately.
func (p *connPool) drain() {
	p.Lock()
	defer p.Unlock()

	p.closed = true
	for target, conns := range p.idle {
		for _, c := range conns {
			c.release()
		}
		delete(p.idle, target)
	}
}
