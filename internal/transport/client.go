// Package transport implements the raw HTTP/1.0 exchange the
// classification service expects: one POST per connection, response
// read until the peer closes the stream.
package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/url"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	// DefaultPort is the service port when none is configured.
	DefaultPort = 80
	// DefaultConnectTimeout bounds connection establishment.
	DefaultConnectTimeout = 10 * time.Second
)

// TransportError reports that the exchange with the service could not
// complete. Callers match it with errors.As and treat it as a verdict of
// unreachable, never as a user-visible failure.
type TransportError struct {
	Host string
	Err  error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport: %s: %v", e.Host, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// RawResponse is the peer's reply split at the first blank-line
// boundary. Only Body is ever interpreted.
type RawResponse struct {
	Headers string
	Body    string
}

// Client performs single-shot form-encoded POSTs.
type Client struct {
	port      int
	timeout   time.Duration
	userAgent string
	charset   string
	logger    *zap.Logger
}

// NewClient creates a transport client. userAgent is the composite
// platform/plugin identity sent with every request.
func NewClient(port int, timeout time.Duration, userAgent, charset string, logger *zap.Logger) *Client {
	if port <= 0 {
		port = DefaultPort
	}
	if timeout <= 0 {
		timeout = DefaultConnectTimeout
	}
	if charset == "" {
		charset = "UTF-8"
	}
	return &Client{
		port:      port,
		timeout:   timeout,
		userAgent: userAgent,
		charset:   charset,
		logger:    logger,
	}
}

// EncodeForm serializes the field mapping as
// application/x-www-form-urlencoded with deterministic key order.
func EncodeForm(fields map[string]string) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(k))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(fields[k]))
	}
	return b.String()
}

// Post sends one request and reads the reply until the peer closes the
// connection. There are no retries at this layer.
func (c *Client) Post(ctx context.Context, host, path string, fields map[string]string) (*RawResponse, error) {
	body := EncodeForm(fields)

	var req strings.Builder
	fmt.Fprintf(&req, "POST %s HTTP/1.0\r\n", path)
	fmt.Fprintf(&req, "Host: %s\r\n", host)
	fmt.Fprintf(&req, "Content-Type: application/x-www-form-urlencoded; charset=%s\r\n", c.charset)
	fmt.Fprintf(&req, "Content-Length: %d\r\n", len(body))
	fmt.Fprintf(&req, "User-Agent: %s\r\n", c.userAgent)
	req.WriteString("\r\n")
	req.WriteString(body)

	dialer := &net.Dialer{Timeout: c.timeout}
	addr := net.JoinHostPort(host, fmt.Sprintf("%d", c.port))
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, &TransportError{Host: host, Err: err}
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	} else {
		_ = conn.SetDeadline(time.Now().Add(c.timeout))
	}

	if _, err := io.WriteString(conn, req.String()); err != nil {
		return nil, &TransportError{Host: host, Err: err}
	}

	raw, err := io.ReadAll(conn)
	if err != nil {
		return nil, &TransportError{Host: host, Err: err}
	}

	c.logger.Debug("Service exchange complete",
		zap.String("host", host),
		zap.String("path", path),
		zap.Int("response_bytes", len(raw)))

	return splitResponse(raw), nil
}

// splitResponse divides the raw byte stream into a header block and a
// body block at the first blank line.
func splitResponse(raw []byte) *RawResponse {
	if idx := bytes.Index(raw, []byte("\r\n\r\n")); idx >= 0 {
		return &RawResponse{
			Headers: string(raw[:idx]),
			Body:    string(raw[idx+4:]),
		}
	}
	// Tolerate bare-LF peers.
	if idx := bytes.Index(raw, []byte("\n\n")); idx >= 0 {
		return &RawResponse{
			Headers: string(raw[:idx]),
			Body:    string(raw[idx+2:]),
		}
	}
	return &RawResponse{Headers: string(raw)}
}
