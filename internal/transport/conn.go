package transport

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/boardwave/boardsync/internal/errors"
)

// Conn is the subset of *websocket.Conn the transport uses.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// Dialer opens a Conn to url.
type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

// WebsocketDialer dials with gorilla/websocket.
type WebsocketDialer struct {
	Dialer *websocket.Dialer
	Header http.Header
}

// NewWebsocketDialer creates a WebsocketDialer with the given handshake
// timeout.
func NewWebsocketDialer(handshakeTimeout time.Duration) *WebsocketDialer {
	d := *websocket.DefaultDialer
	if handshakeTimeout > 0 {
		d.HandshakeTimeout = handshakeTimeout
	}
	return &WebsocketDialer{Dialer: &d}
}

// Dial performs the WebSocket handshake.
func (d *WebsocketDialer) Dial(ctx context.Context, url string) (Conn, error) {
	conn, resp, err := d.Dialer.DialContext(ctx, url, d.Header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close() //nolint:errcheck
	}
	if err != nil {
		if resp != nil {
			err = fmt.Errorf("%w (status %d)", err, resp.StatusCode)
			if rejectedHandshake(resp.StatusCode) {
				return nil, errors.NewConnectionError("handshake rejected", err).
					WithRetryable(false).
					WithSeverity(errors.SeverityError)
			}
		}
		return nil, err
	}
	return conn, nil
}

// rejectedHandshake reports whether the server refused the credentials.
// Retrying with the same token cannot succeed.
func rejectedHandshake(status int) bool {
	return status == http.StatusUnauthorized || status == http.StatusForbidden
}

// closeCode extracts the close code and reason from a read error.
// Errors without a close frame map to 1006 (abnormal closure).
func closeCode(err error) (int, string) {
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		return ce.Code, ce.Text
	}
	return websocket.CloseAbnormalClosure, err.Error()
}
