package transport

import (
	"context"
	"errors"
	"io"
	"net"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// startServer runs a one-shot peer that captures the raw request and
// replies with a fixed byte stream, closing the connection afterwards.
func startServer(t *testing.T, reply string) (port int, received <-chan string) {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	ch := make(chan string, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		buf := make([]byte, 64*1024)
		var req strings.Builder
		for {
			n, err := conn.Read(buf)
			req.Write(buf[:n])
			if err != nil || requestComplete(req.String()) {
				break
			}
		}
		ch <- req.String()
		_, _ = io.WriteString(conn, reply)
	}()

	return ln.Addr().(*net.TCPAddr).Port, ch
}

// requestComplete reports whether the buffered request contains its full
// declared body.
func requestComplete(req string) bool {
	head, body, found := strings.Cut(req, "\r\n\r\n")
	if !found {
		return false
	}
	for _, line := range strings.Split(head, "\r\n") {
		if k, v, ok := strings.Cut(line, ": "); ok && strings.EqualFold(k, "Content-Length") {
			want, err := strconv.Atoi(v)
			return err == nil && len(body) >= want
		}
	}
	return true
}

func TestPost(t *testing.T) {
	port, received := startServer(t, "HTTP/1.0 200 OK\r\nContent-Type: text/plain\r\n\r\ntrue")
	client := NewClient(port, 5*time.Second, "WordPress/2.5 | CommentSpamGateway/1.0.2", "UTF-8", zap.NewNop())

	resp, err := client.Post(context.Background(), "127.0.0.1", "/1.1/comment-check", map[string]string{
		"blog":    "http://example.com",
		"user_ip": "203.0.113.9",
	})
	require.NoError(t, err)

	assert.Equal(t, "true", resp.Body)
	assert.Contains(t, resp.Headers, "HTTP/1.0 200 OK")

	req := <-received
	assert.True(t, strings.HasPrefix(req, "POST /1.1/comment-check HTTP/1.0\r\n"))
	assert.Contains(t, req, "Host: 127.0.0.1\r\n")
	assert.Contains(t, req, "Content-Type: application/x-www-form-urlencoded; charset=UTF-8\r\n")
	assert.Contains(t, req, "User-Agent: WordPress/2.5 | CommentSpamGateway/1.0.2\r\n")
	assert.True(t, strings.HasSuffix(req, "\r\n\r\nblog=http%3A%2F%2Fexample.com&user_ip=203.0.113.9"))
}

func TestPostToleratesBareLFResponse(t *testing.T) {
	port, _ := startServer(t, "HTTP/1.0 200 OK\n\nvalid")
	client := NewClient(port, 5*time.Second, "ua", "UTF-8", zap.NewNop())

	resp, err := client.Post(context.Background(), "127.0.0.1", "/1.1/verify-key", map[string]string{"key": "abc123"})
	require.NoError(t, err)
	assert.Equal(t, "valid", resp.Body)
}

func TestPostConnectionRefused(t *testing.T) {
	// Grab a port that nothing is listening on.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())

	client := NewClient(port, time.Second, "ua", "UTF-8", zap.NewNop())
	_, err = client.Post(context.Background(), "127.0.0.1", "/1.1/comment-check", nil)
	require.Error(t, err)

	var te *TransportError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, "127.0.0.1", te.Host)
}

func TestEncodeForm(t *testing.T) {
	form := EncodeForm(map[string]string{
		"comment_content": "buy cheap pills & more",
		"blog":            "http://example.com/?p=1",
		"user_agent":      "Mozilla/5.0 (X11; Linux)",
	})

	// Deterministic key order, full escaping.
	assert.Equal(t,
		"blog=http%3A%2F%2Fexample.com%2F%3Fp%3D1"+
			"&comment_content=buy+cheap+pills+%26+more"+
			"&user_agent=Mozilla%2F5.0+%28X11%3B+Linux%29",
		form)
}

func TestEncodeFormEmpty(t *testing.T) {
	assert.Equal(t, "", EncodeForm(nil))
	assert.Equal(t, "", EncodeForm(map[string]string{}))
}

func TestSplitResponse(t *testing.T) {
	tests := []struct {
		name        string
		raw         string
		wantHeaders string
		wantBody    string
	}{
		{
			name:        "crlf boundary",
			raw:         "HTTP/1.0 200 OK\r\nServer: x\r\n\r\ntrue",
			wantHeaders: "HTTP/1.0 200 OK\r\nServer: x",
			wantBody:    "true",
		},
		{
			name:        "lf boundary",
			raw:         "HTTP/1.0 200 OK\n\nfalse",
			wantHeaders: "HTTP/1.0 200 OK",
			wantBody:    "false",
		},
		{
			name:        "no boundary",
			raw:         "garbage without blank line",
			wantHeaders: "garbage without blank line",
			wantBody:    "",
		},
		{
			name:        "empty body after boundary",
			raw:         "HTTP/1.0 200 OK\r\n\r\n",
			wantHeaders: "HTTP/1.0 200 OK",
			wantBody:    "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := splitResponse([]byte(tt.raw))
			assert.Equal(t, tt.wantHeaders, resp.Headers)
			assert.Equal(t, tt.wantBody, resp.Body)
		})
	}
}
