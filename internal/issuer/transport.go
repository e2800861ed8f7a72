package issuer

import (
	"bytes"
	"context"
	"io"
	"net"
	"net/http"
	"time"
)

const (
	tcpDialTimeout       = 5 * time.Second
	tcpKeepAliveInterval = 30 * time.Second
	idleConnTimeout      = 90 * time.Second
	maxBodyBytes         = 1 << 20
)

// Call is one request against the answer service.
type Call struct {
	Method string
	URL    string
	Body   []byte
}

// Response is the raw reply of a call.
type Response struct {
	Status int
	Body   []byte
}

// Transport performs one blocking call. Implementations return an error only
// for transport-level failures; any HTTP status is a valid Response.
type Transport interface {
	Do(ctx context.Context, call Call) (Response, error)
}

// HTTPTransport is the net/http implementation of Transport.
type HTTPTransport struct {
	client *http.Client
}

// NewHTTPTransport builds a client with a bounded timeout and a connection
// pool sized for maxConns concurrent callers.
func NewHTTPTransport(timeout time.Duration, maxConns int) *HTTPTransport {
	if maxConns <= 0 {
		maxConns = 100
	}
	t := http.DefaultTransport.(*http.Transport).Clone()
	t.MaxIdleConns = maxConns * 2
	t.MaxIdleConnsPerHost = maxConns * 2
	t.MaxConnsPerHost = maxConns * 2
	t.IdleConnTimeout = idleConnTimeout
	t.DialContext = (&net.Dialer{
		Timeout:   tcpDialTimeout,
		KeepAlive: tcpKeepAliveInterval,
	}).DialContext

	return &HTTPTransport{
		client: &http.Client{
			Timeout:   timeout,
			Transport: t,
		},
	}
}

func (h *HTTPTransport) Do(ctx context.Context, call Call) (Response, error) {
	var body io.Reader
	if call.Body != nil {
		body = bytes.NewReader(call.Body)
	}

	req, err := http.NewRequestWithContext(ctx, call.Method, call.URL, body)
	if err != nil {
		return Response{}, err
	}
	if call.Body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return Response{}, err
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return Response{Status: resp.StatusCode}, err
	}
	_, _ = io.Copy(io.Discard, resp.Body)

	return Response{Status: resp.StatusCode, Body: b}, nil
}
