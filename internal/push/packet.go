package push

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/desertthunder/fleetroute/internal/shared"
)

// Engine.IO v4 packet types. Each websocket text message starts with one of these.
const (
	engineOpen    = '0'
	engineClose   = '1'
	enginePing    = '2'
	enginePong    = '3'
	engineMessage = '4'
	engineNoop    = '6'
)

// Socket.IO v5 packet types, carried inside an Engine.IO message.
const (
	packetConnect      = '0'
	packetDisconnect   = '1'
	packetEvent        = '2'
	packetAck          = '3'
	packetConnectError = '4'
	packetBinaryEvent  = '5'
	packetBinaryAck    = '6'
)

// DefaultPath is where Socket.IO servers mount their Engine.IO endpoint.
const DefaultPath = "/socket.io/"

var errMalformed = errors.New("malformed packet")

// Packet is one Socket.IO packet addressed to a namespace.
type Packet struct {
	Type      byte
	Namespace string
	Data      json.RawMessage
}

// handshake is the payload of the Engine.IO open packet. Intervals are in milliseconds.
type handshake struct {
	SID          string `json:"sid"`
	PingInterval int    `json:"pingInterval"`
	PingTimeout  int    `json:"pingTimeout"`
	MaxPayload   int    `json:"maxPayload"`
}

// heartbeat is how long the server may stay silent before the connection counts as dead.
func (h handshake) heartbeat() time.Duration {
	d := time.Duration(h.PingInterval+h.PingTimeout) * time.Millisecond
	if d <= 0 {
		return DefaultHeartbeat
	}
	return d
}

func decodeHandshake(msg []byte) (handshake, error) {
	var h handshake
	if len(msg) == 0 || msg[0] != engineOpen {
		return h, fmt.Errorf("%w: expected open packet, got %q", errMalformed, truncate(msg))
	}
	if err := json.Unmarshal(msg[1:], &h); err != nil {
		return h, fmt.Errorf("%w: open packet: %w", errMalformed, err)
	}
	return h, nil
}

// encode renders p as an Engine.IO message, e.g. `42/routes,["subscribe_route_updates",{...}]`.
func (p Packet) encode() []byte {
	var b bytes.Buffer
	b.WriteByte(engineMessage)
	b.WriteByte(p.Type)
	if p.Namespace != "" && p.Namespace != "/" {
		b.WriteString(p.Namespace)
		b.WriteByte(',')
	}
	b.Write(p.Data)
	return b.Bytes()
}

// decodePacket parses an Engine.IO message into a Socket.IO packet. Acknowledgement ids are
// skipped since the client never answers them.
func decodePacket(msg []byte) (Packet, error) {
	if len(msg) < 2 || msg[0] != engineMessage {
		return Packet{}, fmt.Errorf("%w: %q", errMalformed, truncate(msg))
	}

	p := Packet{Type: msg[1], Namespace: "/"}
	switch p.Type {
	case packetConnect, packetDisconnect, packetEvent, packetAck, packetConnectError:
	case packetBinaryEvent, packetBinaryAck:
		return Packet{}, fmt.Errorf("%w: binary packets are not supported", errMalformed)
	default:
		return Packet{}, fmt.Errorf("%w: unknown packet type %q", errMalformed, p.Type)
	}

	rest := msg[2:]
	if len(rest) > 0 && rest[0] == '/' {
		if i := bytes.IndexByte(rest, ','); i >= 0 {
			p.Namespace, rest = string(rest[:i]), rest[i+1:]
		} else {
			p.Namespace, rest = string(rest), nil
		}
	}

	i := 0
	for i < len(rest) && rest[i] >= '0' && rest[i] <= '9' {
		i++
	}
	rest = rest[i:]

	if len(rest) > 0 {
		if !json.Valid(rest) {
			return Packet{}, fmt.Errorf("%w: invalid payload %q", errMalformed, truncate(rest))
		}
		p.Data = json.RawMessage(rest)
	}
	return p, nil
}

func eventPacket(namespace, name string, payload any) (Packet, error) {
	data, err := json.Marshal([]any{name, payload})
	if err != nil {
		return Packet{}, fmt.Errorf("failed to encode %s: %w", name, err)
	}
	return Packet{Type: packetEvent, Namespace: namespace, Data: data}, nil
}

// event splits an event packet into its name and first argument.
func (p Packet) event() (string, json.RawMessage, error) {
	var args []json.RawMessage
	if err := json.Unmarshal(p.Data, &args); err != nil || len(args) == 0 {
		return "", nil, fmt.Errorf("%w: event without a name", errMalformed)
	}

	var name string
	if err := json.Unmarshal(args[0], &name); err != nil {
		return "", nil, fmt.Errorf("%w: event name: %w", errMalformed, err)
	}
	if len(args) > 1 {
		return name, args[1], nil
	}
	return name, nil, nil
}

// connectError extracts the server's reason from a CONNECT_ERROR packet.
func (p Packet) connectError() string {
	var body struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(p.Data, &body) == nil && body.Message != "" {
		return body.Message
	}
	return string(p.Data)
}

// endpoint turns a namespace URL such as ws://host:4004/routes into the Engine.IO websocket address
// and the namespace. http and https are accepted for parity with Socket.IO client URLs.
func endpoint(raw, path string) (string, string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", fmt.Errorf("%w: push url: %w", shared.ErrInvalidConfig, err)
	}

	switch u.Scheme {
	case "ws", "wss":
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", "", fmt.Errorf("%w: push url scheme %q", shared.ErrInvalidConfig, u.Scheme)
	}
	if u.Host == "" {
		return "", "", fmt.Errorf("%w: push url has no host", shared.ErrInvalidConfig)
	}

	namespace := strings.TrimRight(u.Path, "/")
	if namespace == "" {
		namespace = "/"
	}

	u.Path = path
	q := u.Query()
	q.Set("EIO", "4")
	q.Set("transport", "websocket")
	u.RawQuery = q.Encode()
	return u.String(), namespace, nil
}

func truncate(b []byte) string {
	if len(b) > 64 {
		return string(b[:64]) + "..."
	}
	return string(b)
}
