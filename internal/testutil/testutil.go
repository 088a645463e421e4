// Package testutil provides scripted WebSocket connections for boardsync tests.
package testutil

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/boardwave/boardsync/internal/transport"
)

// ErrClosedConnection is returned by a Conn after Close.
var ErrClosedConnection = errors.New("use of closed network connection")

type frame struct {
	data []byte
	err  error
}

// Conn is an in-memory transport.Conn. Frames queued with Deliver are
// returned by ReadMessage in order; Drop makes the next read fail with a
// close error.
type Conn struct {
	inbound chan frame
	closed  chan struct{}
	once    sync.Once

	mu        sync.Mutex
	written   [][]byte
	controls  []int
	writeErr  error
	deadlines int
}

// NewConn creates an open Conn.
func NewConn() *Conn {
	return &Conn{
		inbound: make(chan frame, 64),
		closed:  make(chan struct{}),
	}
}

// ReadMessage blocks until a frame is delivered or the Conn is closed.
func (c *Conn) ReadMessage() (int, []byte, error) {
	select {
	case f := <-c.inbound:
		if f.err != nil {
			return 0, nil, f.err
		}
		return websocket.TextMessage, f.data, nil
	case <-c.closed:
		return 0, nil, ErrClosedConnection
	}
}

// WriteMessage records data.
func (c *Conn) WriteMessage(_ int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.isClosed() {
		return ErrClosedConnection
	}
	if c.writeErr != nil {
		return c.writeErr
	}
	c.written = append(c.written, append([]byte(nil), data...))
	return nil
}

// WriteControl records the close code of close frames.
func (c *Conn) WriteControl(messageType int, data []byte, _ time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.isClosed() {
		return ErrClosedConnection
	}
	if messageType == websocket.CloseMessage && len(data) >= 2 {
		c.controls = append(c.controls, int(data[0])<<8|int(data[1]))
	}
	return nil
}

// SetWriteDeadline counts calls.
func (c *Conn) SetWriteDeadline(time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deadlines++
	return nil
}

// Close unblocks pending reads. It is safe to call more than once.
func (c *Conn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

func (c *Conn) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

// Closed reports whether Close was called.
func (c *Conn) Closed() bool {
	return c.isClosed()
}

// Deliver queues a raw text frame for the reader.
func (c *Conn) Deliver(data []byte) {
	select {
	case c.inbound <- frame{data: data}:
	case <-c.closed:
	}
}

// DeliverEnvelope queues an encoded envelope for the reader.
func (c *Conn) DeliverEnvelope(t *testing.T, env transport.Envelope) {
	t.Helper()
	data, err := env.Encode()
	if err != nil {
		t.Fatalf("encode envelope: %v", err)
	}
	c.Deliver(data)
}

// DeliverMessage builds and queues an envelope from userID.
func (c *Conn) DeliverMessage(t *testing.T, msgType transport.MessageType, payload any, userID, projectID string, at time.Time) {
	t.Helper()
	env, err := transport.NewEnvelope(msgType, payload, userID, projectID, at)
	if err != nil {
		t.Fatalf("build envelope: %v", err)
	}
	c.DeliverEnvelope(t, env)
}

// Drop makes the next read fail as if the peer closed with code.
func (c *Conn) Drop(code int, text string) {
	select {
	case c.inbound <- frame{err: &websocket.CloseError{Code: code, Text: text}}:
	case <-c.closed:
	}
}

// FailWrites makes every later WriteMessage return err.
func (c *Conn) FailWrites(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writeErr = err
}

// Written returns every frame written so far, decoded.
func (c *Conn) Written() []transport.Envelope {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]transport.Envelope, 0, len(c.written))
	for _, data := range c.written {
		env, err := transport.DecodeEnvelope(data)
		if err != nil {
			continue
		}
		out = append(out, env)
	}
	return out
}

// WrittenOfType returns the written envelopes with type t.
func (c *Conn) WrittenOfType(t transport.MessageType) []transport.Envelope {
	var out []transport.Envelope
	for _, env := range c.Written() {
		if env.Type == t {
			out = append(out, env)
		}
	}
	return out
}

// RawWritten returns the exact bytes written so far.
func (c *Conn) RawWritten() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([][]byte, len(c.written))
	copy(out, c.written)
	return out
}

// CloseCodes returns the codes of close frames sent through WriteControl.
func (c *Conn) CloseCodes() []int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]int(nil), c.controls...)
}

// Deadlines returns how many write deadlines were set.
func (c *Conn) Deadlines() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.deadlines
}

// Dialer hands out scripted results in order. When the script is empty it
// creates a fresh Conn for every dial.
type Dialer struct {
	mu     sync.Mutex
	script []dialResult
	urls   []string
	conns  []*Conn
}

type dialResult struct {
	conn *Conn
	err  error
}

// NewDialer creates an empty Dialer.
func NewDialer() *Dialer {
	return &Dialer{}
}

// QueueConn makes a later dial return conn.
func (d *Dialer) QueueConn(conn *Conn) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.script = append(d.script, dialResult{conn: conn})
}

// QueueError makes a later dial fail with err.
func (d *Dialer) QueueError(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.script = append(d.script, dialResult{err: err})
}

// Dial implements transport.Dialer.
func (d *Dialer) Dial(_ context.Context, url string) (transport.Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.urls = append(d.urls, url)

	var next dialResult
	if len(d.script) > 0 {
		next = d.script[0]
		d.script = d.script[1:]
	} else {
		next = dialResult{conn: NewConn()}
	}
	if next.err != nil {
		return nil, next.err
	}
	d.conns = append(d.conns, next.conn)
	return next.conn, nil
}

// URLs returns every URL dialed, in order.
func (d *Dialer) URLs() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.urls...)
}

// Dials returns the number of dial attempts.
func (d *Dialer) Dials() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.urls)
}

// Last returns the most recently opened Conn, or nil.
func (d *Dialer) Last() *Conn {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.conns) == 0 {
		return nil
	}
	return d.conns[len(d.conns)-1]
}

// DecodePayload unmarshals an envelope payload or fails the test.
func DecodePayload[T any](t *testing.T, env transport.Envelope) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(env.Payload, &v); err != nil {
		t.Fatalf("decode %s payload: %v", env.Type, err)
	}
	return v
}
