// Package sonostest provides a fake HTTP transport for deterministic tests
// against internal/sonos, standing in for a Sonos speaker's control and
// event endpoints without any real network I/O.
package sonostest

import (
	"bytes"
	"io"
	"net/http"
	"sync"
)

// Response is a canned reply for one request.
type Response struct {
	Status int
	Body   string
	Header http.Header
}

// Transport is an http.RoundTripper that serves canned Responses keyed by
// method+path, and records every request it sees for assertions.
type Transport struct {
	mu        sync.Mutex
	responses map[string]Response
	requests  []Recorded
}

// Recorded captures one observed request for test assertions.
type Recorded struct {
	Method string
	URL    string
	Header http.Header
	Body   string
}

func New() *Transport {
	return &Transport{responses: make(map[string]Response)}
}

func key(method, path string) string { return method + " " + path }

// SetResponse registers the canned Response for method+path.
func (t *Transport) SetResponse(method, path string, resp Response) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.responses[key(method, path)] = resp
}

// Requests returns all requests observed so far, in order.
func (t *Transport) Requests() []Recorded {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Recorded, len(t.requests))
	copy(out, t.requests)
	return out
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	var body string
	if req.Body != nil {
		b, _ := io.ReadAll(req.Body)
		body = string(b)
	}

	t.mu.Lock()
	t.requests = append(t.requests, Recorded{
		Method: req.Method,
		URL:    req.URL.String(),
		Header: req.Header.Clone(),
		Body:   body,
	})
	resp, ok := t.responses[key(req.Method, req.URL.Path)]
	t.mu.Unlock()

	if !ok {
		resp = Response{Status: http.StatusNotFound, Body: "no canned response"}
	}

	header := resp.Header
	if header == nil {
		header = make(http.Header)
	}

	return &http.Response{
		StatusCode: statusOrDefault(resp.Status),
		Body:       io.NopCloser(bytes.NewReader([]byte(resp.Body))),
		Header:     header,
		Proto:      "HTTP/1.1",
		ProtoMajor: 1,
		ProtoMinor: 1,
		Request:    req,
	}, nil
}

func statusOrDefault(status int) int {
	if status == 0 {
		return http.StatusOK
	}
	return status
}

// Client returns an *http.Client backed by this transport.
func (t *Transport) Client() *http.Client {
	return &http.Client{Transport: t}
}
