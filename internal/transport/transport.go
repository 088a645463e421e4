package transport

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/gorilla/websocket"

	"github.com/boardwave/boardsync/internal/errors"
	"github.com/boardwave/boardsync/internal/event"
	"github.com/boardwave/boardsync/internal/logging"
	"github.com/boardwave/boardsync/internal/metrics"
	"github.com/boardwave/boardsync/internal/sched"
)

// Default timing values.
const (
	DefaultHeartbeatInterval    = 30 * time.Second
	DefaultReconnectBaseDelay   = time.Second
	DefaultMaxReconnectAttempts = 5
	DefaultWriteTimeout         = 10 * time.Second
	DefaultHandshakeTimeout     = 10 * time.Second
)

// maxBackoffInterval bounds a single reconnect delay.
const maxBackoffInterval = time.Hour

// Config holds transport settings.
type Config struct {
	URL                  string        // ws:// or wss:// endpoint
	HeartbeatInterval    time.Duration // ping period while connected, 0 disables
	ReconnectBaseDelay   time.Duration // delay before the first retry
	MaxReconnectAttempts int           // retries before giving up
	WriteTimeout         time.Duration // per-frame write deadline, 0 disables
	HandshakeTimeout     time.Duration // used by the default dialer
}

// DefaultConfig returns the default transport settings for url.
func DefaultConfig(url string) Config {
	return Config{
		URL:                  url,
		HeartbeatInterval:    DefaultHeartbeatInterval,
		ReconnectBaseDelay:   DefaultReconnectBaseDelay,
		MaxReconnectAttempts: DefaultMaxReconnectAttempts,
		WriteTimeout:         DefaultWriteTimeout,
		HandshakeTimeout:     DefaultHandshakeTimeout,
	}
}

// Credentials identify the local user for a connection.
type Credentials struct {
	Token     string
	UserID    string
	ProjectID string // optional, sent as "" when absent
}

// Status is a point-in-time view of the connection.
type Status struct {
	State             State
	IsConnected       bool
	ReconnectAttempts int
	CurrentUser       string
	CurrentProject    string
	LastPong          time.Time // zero until the first pong
}

// Option configures a Transport.
type Option func(*Transport)

// WithDialer replaces the gorilla/websocket dialer.
func WithDialer(d Dialer) Option {
	return func(t *Transport) { t.dialer = d }
}

// WithScheduler sets the scheduler used for heartbeat and reconnect timers.
func WithScheduler(s *sched.Scheduler) Option {
	return func(t *Transport) { t.sched = s }
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(t *Transport) { t.logger = l }
}

// WithMetrics enables Prometheus instrumentation.
func WithMetrics(m *metrics.Metrics) Option {
	return func(t *Transport) { t.metrics = m }
}

// WithBus publishes events on b instead of a private bus.
func WithBus(b *event.Bus) Option {
	return func(t *Transport) { t.bus = b }
}

// Transport owns one WebSocket connection, its heartbeat and its
// reconnection policy. Inbound frames are published on Events().
type Transport struct {
	cfg     Config
	dialer  Dialer
	bus     *event.Bus
	sched   *sched.Scheduler
	logger  *logging.Logger
	metrics *metrics.Metrics

	mu         sync.Mutex
	state      State
	conn       Conn
	creds      Credentials
	url        string
	baseCtx    context.Context
	attempts   int
	policy     backoff.BackOff
	heartbeat  *sched.Handle
	reconnect  *sched.Handle
	generation uint64
	lastPong   time.Time

	writeMu sync.Mutex // serializes frames on conn
	wg      sync.WaitGroup
}

// New creates a disconnected Transport.
func New(cfg Config, opts ...Option) *Transport {
	t := &Transport{cfg: cfg}
	for _, opt := range opts {
		opt(t)
	}
	if t.logger == nil {
		t.logger = logging.NopLogger()
	}
	t.logger = t.logger.WithComponent("transport")
	if t.sched == nil {
		t.sched = sched.New(nil)
	}
	if t.bus == nil {
		t.bus = event.NewBus(event.WithLogger(t.logger))
	}
	if t.dialer == nil {
		t.dialer = NewWebsocketDialer(cfg.HandshakeTimeout)
	}
	t.policy = newReconnectPolicy(cfg.ReconnectBaseDelay, cfg.MaxReconnectAttempts)
	return t
}

// newReconnectPolicy yields base, 2*base, 4*base, ... for max attempts and
// backoff.Stop afterwards.
func newReconnectPolicy(base time.Duration, max int) backoff.BackOff {
	if base <= 0 {
		base = DefaultReconnectBaseDelay
	}
	if max <= 0 {
		return &backoff.StopBackOff{}
	}

	ceiling := base
	for i := 0; i < max && ceiling < maxBackoffInterval; i++ {
		ceiling *= 2
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = base
	b.RandomizationFactor = 0
	b.Multiplier = 2
	b.MaxInterval = ceiling
	b.MaxElapsedTime = 0
	b.Reset()
	return backoff.WithMaxRetries(b, uint64(max))
}

// Events returns the bus that connection and message events are published on.
func (t *Transport) Events() *event.Bus {
	return t.bus
}

// Connect opens the connection for creds.
//
// Missing token or user id makes it a logged no-op. If a connection is open
// or being opened it returns immediately. Handshake failures are reported as
// an error event followed by the reconnect policy, and Connect still returns
// nil. The only error returned is for a server URL that cannot be built.
func (t *Transport) Connect(ctx context.Context, creds Credentials) error {
	if creds.Token == "" || creds.UserID == "" {
		t.logger.Warn("connect skipped", "error", errors.ErrMissingCredentials.Error())
		return nil
	}

	u, err := buildURL(t.cfg.URL, creds)
	if err != nil {
		return errors.NewConnectionError("build connection url", err).
			WithURL(t.cfg.URL).
			WithRetryable(false)
	}

	t.mu.Lock()
	if t.state == StateConnected || t.state == StateConnecting {
		t.mu.Unlock()
		return nil
	}
	if !t.transition(TriggerConnect) {
		t.mu.Unlock()
		return nil
	}
	t.reconnect.Cancel()
	t.reconnect = nil
	t.creds = creds
	t.url = u
	t.baseCtx = context.WithoutCancel(ctx)
	t.mu.Unlock()

	t.dial(ctx, u)
	return nil
}

// Reconnect resets the attempt counter and connects again with the last
// credentials. It is the way out of the terminal state after the reconnect
// cap was reached.
func (t *Transport) Reconnect(ctx context.Context) error {
	t.mu.Lock()
	if t.state == StateConnected || t.state == StateConnecting {
		t.mu.Unlock()
		return nil
	}
	creds := t.creds
	t.attempts = 0
	t.policy.Reset()
	t.mu.Unlock()

	if creds.Token == "" || creds.UserID == "" {
		return errors.ErrMissingCredentials
	}
	t.logger.Info("manual reconnect")
	return t.Connect(ctx, creds)
}

// Disconnect closes the connection with a normal-closure frame, stops the
// heartbeat and cancels any pending reconnect. It never triggers a reconnect
// and is a no-op when already disconnected.
func (t *Transport) Disconnect() {
	t.mu.Lock()
	if t.state == StateDisconnected || t.state == StateClosing {
		t.mu.Unlock()
		return
	}
	conn := t.conn
	t.conn = nil
	t.generation++
	t.heartbeat.Cancel()
	t.heartbeat = nil
	t.reconnect.Cancel()
	t.reconnect = nil
	t.transition(TriggerDisconnect)
	t.mu.Unlock()

	if conn != nil {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "client disconnect")
		t.writeMu.Lock()
		if err := conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(t.writeTimeout())); err != nil {
			t.logger.Debug("close frame not sent", "error", err.Error())
		}
		t.writeMu.Unlock()
		conn.Close() //nolint:errcheck

		t.mu.Lock()
		t.transition(TriggerClosed)
		t.mu.Unlock()
	}

	t.metrics.SetConnected(false)
	t.logger.Info("disconnected", "clean", true)
	t.bus.Publish(event.NewDisconnectedEvent(t.sched.Now(), websocket.CloseNormalClosure, "client disconnect", true, false))
}

// Wait blocks until every read loop has exited. Do not call it from an
// event handler.
func (t *Transport) Wait() {
	t.wg.Wait()
}

// Send wraps payload in an envelope and writes it. It returns false when
// not connected or when encoding or writing fails.
func (t *Transport) Send(msgType MessageType, payload any) bool {
	t.mu.Lock()
	conn, state, creds := t.conn, t.state, t.creds
	t.mu.Unlock()

	if state != StateConnected || conn == nil {
		t.logger.Debug("send skipped", "type", msgType.String(), "error", errors.ErrNotConnected.Error())
		t.metrics.SendFailed("not_connected")
		return false
	}

	env, err := NewEnvelope(msgType, payload, creds.UserID, creds.ProjectID, t.sched.Now())
	if err != nil {
		t.logger.Warn("send failed", "type", msgType.String(), "error", err.Error())
		t.metrics.SendFailed("marshal")
		return false
	}
	data, err := env.Encode()
	if err != nil {
		t.logger.Warn("send failed", "type", msgType.String(), "error", err.Error())
		t.metrics.SendFailed("marshal")
		return false
	}

	t.writeMu.Lock()
	if t.cfg.WriteTimeout > 0 {
		_ = conn.SetWriteDeadline(time.Now().Add(t.cfg.WriteTimeout))
	}
	err = conn.WriteMessage(websocket.TextMessage, data)
	t.writeMu.Unlock()

	if err != nil {
		t.logger.Warn("send failed", "type", msgType.String(), "error", err.Error())
		t.metrics.SendFailed("write")
		return false
	}
	t.metrics.MessageSent(msgType.String())
	return true
}

// Status returns a snapshot of the connection.
func (t *Transport) Status() Status {
	t.mu.Lock()
	defer t.mu.Unlock()

	return Status{
		State:             t.state,
		IsConnected:       t.state == StateConnected,
		ReconnectAttempts: t.attempts,
		CurrentUser:       t.creds.UserID,
		CurrentProject:    t.creds.ProjectID,
		LastPong:          t.lastPong,
	}
}

// IsConnected reports whether the socket is open.
func (t *Transport) IsConnected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state == StateConnected
}

// UserID returns the local user id.
func (t *Transport) UserID() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.creds.UserID
}

// dial performs the handshake for a Connecting transport.
func (t *Transport) dial(ctx context.Context, u string) {
	conn, err := t.dialer.Dial(ctx, u)

	t.mu.Lock()
	if t.state != StateConnecting {
		// Disconnected while the handshake was in flight.
		t.mu.Unlock()
		if conn != nil {
			conn.Close() //nolint:errcheck
		}
		return
	}

	if err != nil {
		cause := fmt.Errorf("%w: %w", errors.ErrHandshake, err)
		retryable := errors.IsRetryable(cause)
		severity := errors.SeverityWarning
		if !retryable {
			severity = errors.SeverityError
		}
		cerr := errors.NewConnectionError("dial", cause).
			WithURL(t.cfg.URL).
			WithAttempt(t.attempts).
			WithRetryable(retryable).
			WithSeverity(severity)
		pending := t.dropLocked(websocket.CloseAbnormalClosure, err.Error(), retryable)
		t.mu.Unlock()

		t.logError("handshake failed", cerr)
		t.bus.Publish(event.NewErrorEvent(t.sched.Now(), cerr))
		t.publishAll(pending)
		return
	}

	t.generation++
	gen := t.generation
	t.conn = conn
	t.attempts = 0
	t.policy.Reset()
	t.lastPong = time.Time{}
	t.transition(TriggerOpen)
	if t.cfg.HeartbeatInterval > 0 {
		t.heartbeat = t.sched.Every(t.cfg.HeartbeatInterval, t.sendHeartbeat)
	}
	creds := t.creds
	t.wg.Add(1)
	t.mu.Unlock()

	t.metrics.SetConnected(true)
	t.logger.Info("connected", "url", t.cfg.URL, "user_id", creds.UserID, "project_id", creds.ProjectID)
	t.bus.Publish(event.NewConnectedEvent(t.sched.Now(), t.cfg.URL, creds.UserID, creds.ProjectID))

	go t.readLoop(conn, gen)
}

// retry runs when a reconnect delay expires.
func (t *Transport) retry() {
	t.mu.Lock()
	if t.state != StateReconnecting {
		t.mu.Unlock()
		return
	}
	t.reconnect = nil
	t.transition(TriggerRetry)
	if u, err := buildURL(t.cfg.URL, t.creds); err == nil {
		// Picks up a project switched with JoinProject.
		t.url = u
	}
	ctx, u, attempt := t.baseCtx, t.url, t.attempts
	t.mu.Unlock()

	t.logger.Info("reconnecting", "attempt", attempt)
	t.dial(ctx, u)
}

// dropLocked applies the reconnect policy after an unclean close and
// returns the events to publish once t.mu is released. A non-retryable
// failure gives up without scheduling a retry.
func (t *Transport) dropLocked(code int, reason string, retryable bool) []event.Event {
	now := t.sched.Now()
	if !t.transition(TriggerDrop) {
		return nil
	}

	delay := backoff.Stop
	if retryable {
		delay = t.policy.NextBackOff()
	}
	if delay == backoff.Stop {
		t.transition(TriggerGiveUp)
		t.logger.Error("reconnect abandoned", "attempts", t.attempts, "retryable", retryable)
		return []event.Event{
			event.NewDisconnectedEvent(now, code, reason, false, false),
			event.NewReconnectFailedEvent(now, t.attempts),
		}
	}

	t.attempts++
	t.reconnect = t.sched.After(delay, t.retry)
	t.metrics.ReconnectScheduled()
	t.logger.Info("reconnect scheduled", "attempt", t.attempts, "delay", delay.String())
	return []event.Event{
		event.NewDisconnectedEvent(now, code, reason, false, true),
		event.NewReconnectingEvent(now, t.attempts, delay),
	}
}

func (t *Transport) readLoop(conn Conn, gen uint64) {
	defer t.wg.Done()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.handleReadError(conn, gen, err)
			return
		}
		t.dispatch(gen, data)
	}
}

func (t *Transport) handleReadError(conn Conn, gen uint64, err error) {
	code, reason := closeCode(err)

	t.mu.Lock()
	if gen != t.generation || t.conn == nil {
		// Caller-initiated disconnect already cleaned up.
		t.mu.Unlock()
		return
	}
	t.conn = nil
	t.heartbeat.Cancel()
	t.heartbeat = nil

	var pending []event.Event
	if code == websocket.CloseNormalClosure {
		t.transition(TriggerServerClose)
		pending = []event.Event{event.NewDisconnectedEvent(t.sched.Now(), code, reason, true, false)}
	} else {
		pending = t.dropLocked(code, reason, true)
	}
	t.mu.Unlock()

	conn.Close() //nolint:errcheck
	t.metrics.SetConnected(false)
	if code == websocket.CloseNormalClosure {
		t.logger.Info("server closed connection", "code", code)
	} else {
		t.logger.Warn("connection lost", "code", code, "reason", reason)
	}
	t.publishAll(pending)
}

// dispatch decodes one frame and publishes it.
func (t *Transport) dispatch(gen uint64, data []byte) {
	env, err := DecodeEnvelope(data)
	if err != nil {
		t.logger.Warn("dropping malformed frame", "error", err.Error())
		return
	}

	t.mu.Lock()
	if gen != t.generation {
		t.mu.Unlock()
		return
	}
	if env.Type == TypePong {
		t.lastPong = t.sched.Now()
		t.mu.Unlock()
		return
	}
	local := t.creds.UserID
	t.mu.Unlock()

	if env.UserID == local {
		t.logger.Debug("dropping self echo", "type", env.Type.String())
		return
	}

	name, ok := env.Type.EventName()
	if !ok {
		t.logger.Warn("unknown message type", "type", env.Type.String())
		return
	}

	t.metrics.MessageReceived(env.Type.String())
	t.bus.Publish(event.NewMessageEvent(name, t.sched.Now(), env.Type.String(), env.Payload, env.UserID, env.Project(), env.Time()))
}

func (t *Transport) sendHeartbeat() {
	if !t.Send(TypePing, nil) {
		t.logger.Debug("heartbeat not sent")
	}
}

// logError logs err at the level matching its severity.
func (t *Transport) logError(msg string, err error) {
	switch errors.GetSeverity(err) {
	case errors.SeverityDebug:
		t.logger.Debug(msg, "error", err.Error())
	case errors.SeverityInfo:
		t.logger.Info(msg, "error", err.Error())
	case errors.SeverityWarning:
		t.logger.Warn(msg, "error", err.Error())
	default:
		t.logger.Error(msg, "error", err.Error())
	}
}

func (t *Transport) publishAll(events []event.Event) {
	for _, e := range events {
		t.bus.Publish(e)
	}
}

// transition moves the state machine. Caller must hold t.mu.
func (t *Transport) transition(trigger Trigger) bool {
	next, err := nextState(t.state, trigger)
	if err != nil {
		t.logger.Warn("ignored state transition", "error", err.Error())
		return false
	}
	t.logger.Debug("state change", "from", t.state.String(), "to", next.String(), "trigger", trigger.String())
	t.state = next
	return true
}

func (t *Transport) writeTimeout() time.Duration {
	if t.cfg.WriteTimeout > 0 {
		return t.cfg.WriteTimeout
	}
	return DefaultWriteTimeout
}

// buildURL appends the token, userId and projectId query parameters.
func buildURL(base string, creds Credentials) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("%w: %w", errors.ErrInvalidURL, err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return "", fmt.Errorf("%w: unsupported scheme %q", errors.ErrInvalidURL, u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("%w: missing host", errors.ErrInvalidURL)
	}

	q := u.Query()
	q.Set("token", creds.Token)
	q.Set("userId", creds.UserID)
	q.Set("projectId", creds.ProjectID)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
