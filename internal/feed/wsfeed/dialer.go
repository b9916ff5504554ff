// Package wsfeed connects the feed client to a WebSocket feed origin.
package wsfeed

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/coder/websocket"

	"github.com/microsafety/microsafety/internal/feed"
)

// LivePath is the well-known path of the live snapshot stream.
const LivePath = "/ws/live"

// ErrInvalidURL is returned when the feed URL cannot be turned into a WebSocket URL.
var ErrInvalidURL = errors.New("invalid feed url")

// Config holds configuration for the WebSocket dialer.
type Config struct {
	// URL of the feed origin. http(s) schemes are mapped to ws(s); a URL
	// without a path gets LivePath appended.
	URL string

	// ReadLimit caps the size of a single snapshot frame.
	// Default: 4 MiB
	ReadLimit int64

	// HTTPClient is used for the opening handshake.
	// Default: http.DefaultClient
	HTTPClient *http.Client
}

// Dialer opens WebSocket connections to the feed origin.
type Dialer struct {
	url        string
	readLimit  int64
	httpClient *http.Client
}

var _ feed.Dialer = (*Dialer)(nil)

// NewDialer creates a dialer for the configured origin.
func NewDialer(cfg Config) (*Dialer, error) {
	u, err := LiveURL(cfg.URL)
	if err != nil {
		return nil, err
	}

	readLimit := cfg.ReadLimit
	if readLimit <= 0 {
		readLimit = 4 << 20
	}

	return &Dialer{
		url:        u,
		readLimit:  readLimit,
		httpClient: cfg.HTTPClient,
	}, nil
}

// URL returns the resolved WebSocket URL.
func (d *Dialer) URL() string {
	return d.url
}

// Dial opens a new connection.
func (d *Dialer) Dial(ctx context.Context) (feed.Conn, error) {
	conn, _, err := websocket.Dial(ctx, d.url, &websocket.DialOptions{
		HTTPClient: d.httpClient,
	})
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", d.url, err)
	}
	conn.SetReadLimit(d.readLimit)

	return &Conn{conn: conn}, nil
}

// Conn is one open WebSocket connection.
type Conn struct {
	conn *websocket.Conn
}

// Read returns the next text or binary frame.
func (c *Conn) Read(ctx context.Context) ([]byte, error) {
	_, data, err := c.conn.Read(ctx)
	if err != nil {
		return nil, err
	}
	return data, nil
}

// Close closes the connection without waiting for the peer's close frame.
func (c *Conn) Close() error {
	return c.conn.CloseNow()
}

// LiveURL resolves a configured feed URL to the live stream URL.
func LiveURL(raw string) (string, error) {
	if strings.TrimSpace(raw) == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidURL)
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidURL, err)
	}

	switch u.Scheme {
	case "ws", "wss":
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("%w: unsupported scheme %q", ErrInvalidURL, u.Scheme)
	}

	if u.Host == "" {
		return "", fmt.Errorf("%w: missing host", ErrInvalidURL)
	}

	if u.Path == "" || u.Path == "/" {
		u.Path = LivePath
	}

	return u.String(), nil
}
