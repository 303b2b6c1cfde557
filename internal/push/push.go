// Package push is the client side of the route update channel.
//
// The backend is a Socket.IO server. The client speaks Engine.IO v4 over a websocket, joins the
// namespace named by the configured URL path (ws://host:4004/routes joins /routes) and exchanges
// events such as
//
//	42/routes,["subscribe_route_updates",{"requestId":"..."}]
//	42/routes,["route_optimized",{"requestId":"...","status":"COMPLETED",...}]
//
// The server drives heartbeats: every ping is answered with a pong, and a connection that stays
// silent past pingInterval+pingTimeout is dropped. [Client.Run] reconnects with exponential
// backoff and re-declares every live subscription after each reconnect.
package push

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/websocket"

	"github.com/desertthunder/fleetroute/internal/models"
	"github.com/desertthunder/fleetroute/internal/shared"
)

const (
	// DefaultHeartbeat applies when the server's open packet carries no ping settings.
	DefaultHeartbeat        = 45 * time.Second
	DefaultHandshakeTimeout = 10 * time.Second
	DefaultMinBackoff       = 500 * time.Millisecond
	DefaultMaxBackoff       = 30 * time.Second

	writeTimeout = 5 * time.Second
)

// Handler receives events for one request id. It runs on the read goroutine and must not block.
type Handler func(models.RouteEvent)

// Options configures a [Client].
type Options struct {
	// URL names the server and namespace, e.g. ws://localhost:4004/routes.
	URL string
	// Path is the Engine.IO mount point, [DefaultPath] when empty.
	Path string
	// HTTPClient is used for the handshake; share the session's cookie jar here.
	HTTPClient *http.Client
	// Header returns extra handshake headers, evaluated on every dial.
	Header           func() http.Header
	HandshakeTimeout time.Duration
	MinBackoff       time.Duration
	MaxBackoff       time.Duration
	// OnStatus is told about every connect and disconnect.
	OnStatus func(connected bool)
	Logger   *log.Logger
}

type subscription struct {
	id      uint64
	handler Handler
}

// Client is safe for concurrent use.
type Client struct {
	opts      Options
	logger    *log.Logger
	dialURL   string
	namespace string

	mu     sync.Mutex
	conn   *websocket.Conn
	subs   map[string][]subscription
	nextID uint64

	connected atomic.Bool
}

// New creates a client. Nothing is dialed until [Client.Run].
func New(opts Options) (*Client, error) {
	if opts.URL == "" {
		return nil, fmt.Errorf("%w: push url is required", shared.ErrMissingConfig)
	}
	if opts.Path == "" {
		opts.Path = DefaultPath
	}
	dialURL, namespace, err := endpoint(opts.URL, opts.Path)
	if err != nil {
		return nil, err
	}
	if opts.HandshakeTimeout <= 0 {
		opts.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if opts.MinBackoff <= 0 {
		opts.MinBackoff = DefaultMinBackoff
	}
	if opts.MaxBackoff < opts.MinBackoff {
		opts.MaxBackoff = max(DefaultMaxBackoff, opts.MinBackoff)
	}

	logger := opts.Logger
	if logger == nil {
		logger = shared.DiscardLogger()
	}

	return &Client{
		opts:      opts,
		logger:    shared.WithLogger(logger, "component", "push", "namespace", namespace),
		dialURL:   dialURL,
		namespace: namespace,
		subs:      make(map[string][]subscription),
	}, nil
}

// Connected reports whether a connection is currently open.
func (c *Client) Connected() bool {
	return c.connected.Load()
}

// Subscribe registers handler for requestID and declares interest to the backend.
//
// The returned release is idempotent. After it returns no new delivery to the handler starts, but
// a delivery already running on the read goroutine may still finish. Handlers may call release
// themselves. When the last handler for an id is released the backend is told to stop sending.
func (c *Client) Subscribe(requestID string, handler Handler) (func(), error) {
	if requestID == "" {
		return nil, fmt.Errorf("%w: request id is required", shared.ErrInvalidInput)
	}
	if handler == nil {
		return nil, fmt.Errorf("%w: handler is required", shared.ErrInvalidInput)
	}

	c.mu.Lock()
	c.nextID++
	id := c.nextID
	first := len(c.subs[requestID]) == 0
	c.subs[requestID] = append(c.subs[requestID], subscription{id: id, handler: handler})
	conn := c.conn
	c.mu.Unlock()

	if first && conn != nil {
		c.declare(conn, models.EventSubscribeRouteUpdates, requestID)
	}

	var once sync.Once
	release := func() {
		once.Do(func() { c.release(requestID, id) })
	}
	return release, nil
}

func (c *Client) release(requestID string, id uint64) {
	c.mu.Lock()
	subs := c.subs[requestID]
	for i, s := range subs {
		if s.id == id {
			subs = append(subs[:i:i], subs[i+1:]...)
			break
		}
	}

	last := len(subs) == 0
	if last {
		delete(c.subs, requestID)
	} else {
		c.subs[requestID] = subs
	}
	conn := c.conn
	c.mu.Unlock()

	if last && conn != nil {
		c.declare(conn, models.EventUnsubscribeRouteUpdates, requestID)
	}
}

// Run dials and serves the connection until ctx is cancelled, reconnecting on failure.
func (c *Client) Run(ctx context.Context) error {
	backoff := c.opts.MinBackoff

	for {
		err := c.session(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if errors.Is(err, errConnected) {
			backoff = c.opts.MinBackoff
		}
		c.logger.Warn("push channel disconnected", "err", err, "retry_in", backoff)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, c.opts.MaxBackoff)
	}
}

// errConnected marks a session that got past the handshake before failing.
var errConnected = errors.New("connection lost")

func (c *Client) session(ctx context.Context) error {
	dialOpts := &websocket.DialOptions{HTTPClient: c.opts.HTTPClient}
	if c.opts.Header != nil {
		dialOpts.HTTPHeader = c.opts.Header()
	}

	conn, _, err := websocket.Dial(ctx, c.dialURL, dialOpts)
	if err != nil {
		return fmt.Errorf("%w: dial %s: %w", shared.ErrUpstreamUnavailable, c.dialURL, err)
	}
	defer conn.CloseNow()

	hs, err := c.handshake(ctx, conn)
	if err != nil {
		conn.Close(websocket.StatusPolicyViolation, "handshake failed")
		return err
	}
	c.logger.Debug("joined namespace", "sid", hs.SID, "heartbeat", hs.heartbeat())

	c.mu.Lock()
	c.conn = conn
	ids := make([]string, 0, len(c.subs))
	for id := range c.subs {
		ids = append(ids, id)
	}
	c.mu.Unlock()

	c.setConnected(true)
	defer func() {
		c.mu.Lock()
		c.conn = nil
		c.mu.Unlock()
		c.setConnected(false)
	}()

	for _, id := range ids {
		c.declare(conn, models.EventSubscribeRouteUpdates, id)
	}

	err = c.readLoop(ctx, conn, hs.heartbeat())
	return fmt.Errorf("%w: %w", errConnected, err)
}

// handshake reads the Engine.IO open packet and joins the namespace.
func (c *Client) handshake(ctx context.Context, conn *websocket.Conn) (handshake, error) {
	hctx, cancel := context.WithTimeout(ctx, c.opts.HandshakeTimeout)
	defer cancel()

	msg, err := readText(hctx, conn)
	if err != nil {
		return handshake{}, fmt.Errorf("%w: waiting for open packet: %w", shared.ErrUpstreamUnavailable, err)
	}
	hs, err := decodeHandshake(msg)
	if err != nil {
		return hs, fmt.Errorf("%w: %w", shared.ErrUpstreamUnavailable, err)
	}

	if err := c.write(conn, Packet{Type: packetConnect, Namespace: c.namespace}.encode()); err != nil {
		return hs, fmt.Errorf("%w: joining %s: %w", shared.ErrUpstreamUnavailable, c.namespace, err)
	}

	for {
		msg, err := readText(hctx, conn)
		if err != nil {
			return hs, fmt.Errorf("%w: joining %s: %w", shared.ErrUpstreamUnavailable, c.namespace, err)
		}

		switch msg[0] {
		case enginePing:
			c.pong(conn, msg)
			continue
		case engineMessage:
		default:
			continue
		}

		p, err := decodePacket(msg)
		if err != nil || p.Namespace != c.namespace {
			continue
		}
		switch p.Type {
		case packetConnect:
			return hs, nil
		case packetConnectError:
			return hs, fmt.Errorf("%w: %s refused: %s", shared.ErrUpstreamUnavailable, c.namespace, p.connectError())
		}
	}
}

func (c *Client) setConnected(v bool) {
	if c.connected.Swap(v) == v {
		return
	}
	c.logger.Debug("push channel status", "connected", v)
	if c.opts.OnStatus != nil {
		c.opts.OnStatus(v)
	}
}

// readLoop serves the connection until it fails, the server closes it, or nothing arrives within
// the heartbeat window.
func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn, heartbeat time.Duration) error {
	for {
		rctx, cancel := context.WithTimeout(ctx, heartbeat)
		msg, err := readText(rctx, conn)
		cancel()
		if err != nil {
			if ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
				return fmt.Errorf("no heartbeat within %s", heartbeat)
			}
			return err
		}

		switch msg[0] {
		case enginePing:
			c.pong(conn, msg)
		case engineClose:
			return errors.New("server closed the connection")
		case engineMessage:
			p, err := decodePacket(msg)
			if err != nil {
				c.logger.Debug("invalid packet", "err", err)
				continue
			}
			if p.Namespace != c.namespace {
				continue
			}

			switch p.Type {
			case packetEvent:
				name, payload, err := p.event()
				if err != nil {
					c.logger.Debug("invalid event", "err", err)
					continue
				}
				c.dispatch(name, payload)
			case packetDisconnect:
				return fmt.Errorf("server left namespace %s", c.namespace)
			case packetConnectError:
				return fmt.Errorf("namespace %s refused: %s", c.namespace, p.connectError())
			}
		}
	}
}

// readText returns the next non-empty text message.
func readText(ctx context.Context, conn *websocket.Conn) ([]byte, error) {
	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			return nil, err
		}
		if typ == websocket.MessageText && len(data) > 0 {
			return data, nil
		}
	}
}

// pong answers a server ping, echoing any payload.
func (c *Client) pong(conn *websocket.Conn, ping []byte) {
	reply := append([]byte{enginePong}, ping[1:]...)
	if err := c.write(conn, reply); err != nil {
		c.logger.Debug("failed to answer ping", "err", err)
	}
}

func (c *Client) dispatch(event string, payload json.RawMessage) {
	switch event {
	case models.EventConnected:
		c.logger.Debug("push channel authenticated")
		return
	case models.EventOptimizationRequested, models.EventRouteOptimized,
		models.EventOptimizationFailed, models.EventRouteUpdateRequested:
	default:
		c.logger.Debug("ignoring event", "event", event)
		return
	}

	var ev models.RouteEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		c.logger.Debug("invalid event payload", "event", event, "err", err)
		return
	}
	ev.Type = event

	c.mu.Lock()
	subs := make([]subscription, len(c.subs[ev.RequestID]))
	copy(subs, c.subs[ev.RequestID])
	c.mu.Unlock()

	for _, s := range subs {
		if c.live(ev.RequestID, s.id) {
			s.handler(ev)
		}
	}
}

func (c *Client) live(requestID string, id uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, s := range c.subs[requestID] {
		if s.id == id {
			return true
		}
	}
	return false
}

func (c *Client) declare(conn *websocket.Conn, event, requestID string) {
	p, err := eventPacket(c.namespace, event, map[string]string{"requestId": requestID})
	if err != nil {
		return
	}
	if err := c.write(conn, p.encode()); err != nil {
		c.logger.Debug("failed to declare subscription", "event", event, "request_id", requestID, "err", err)
	}
}

func (c *Client) write(conn *websocket.Conn, msg []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	return conn.Write(ctx, websocket.MessageText, msg)
}
