package client

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/jonwraymond/reqcore/resilience"
	"github.com/jonwraymond/reqcore/transport"
)

// fakeTransport records requests and answers them with respond.
type fakeTransport struct {
	respond func(call int, req *transport.Request) (*transport.Response, error)

	mu       sync.Mutex
	requests []*transport.Request
}

func (f *fakeTransport) Attempt(ctx context.Context, req *transport.Request) (*transport.Response, error) {
	f.mu.Lock()
	call := len(f.requests)
	f.requests = append(f.requests, req.Clone())
	f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return f.respond(call, req)
}

func (f *fakeTransport) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func (f *fakeTransport) Request(i int) *transport.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[i]
}

func jsonResponse(body string) *transport.Response {
	return &transport.Response{
		StatusCode: http.StatusOK,
		Header:     http.Header{"Content-Type": {"application/json"}},
		Body:       []byte(body),
	}
}

func okTransport(body string) *fakeTransport {
	return &fakeTransport{respond: func(int, *transport.Request) (*transport.Response, error) {
		return jsonResponse(body), nil
	}}
}

// failingTransport fails the first n calls with err and succeeds afterwards.
func failingTransport(n int, err error) *fakeTransport {
	return &fakeTransport{respond: func(call int, _ *transport.Request) (*transport.Response, error) {
		if call < n {
			return nil, err
		}
		return jsonResponse(`{"ok":true}`), nil
	}}
}

// testConfig is DefaultConfig with millisecond retry delays and no rate limit.
func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Retry.BaseDelay = time.Millisecond
	cfg.Retry.MaxDelay = 2 * time.Millisecond
	cfg.RateLimit.Enabled = false
	return cfg
}

func newTestClient(t *testing.T, cfg Config, tr Transport, opts ...Option) *Client {
	t.Helper()
	c, err := New(cfg, tr, opts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { _ = c.Close(context.Background()) })
	return c
}

type contact struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// offsetPages serves total contacts using the page/per_page query.
func offsetPages(total int) func(int, *transport.Request) (*transport.Response, error) {
	return func(_ int, req *transport.Request) (*transport.Response, error) {
		page, _ := strconv.Atoi(req.Query.Get("page"))
		perPage, _ := strconv.Atoi(req.Query.Get("per_page"))
		items := []contact{}
		for id := (page-1)*perPage + 1; id <= page*perPage && id <= total; id++ {
			items = append(items, contact{ID: id, Name: "c" + strconv.Itoa(id)})
		}
		body, _ := json.Marshal(map[string]any{
			"data":       items,
			"pagination": map[string]any{"page": page, "per_page": perPage, "total_count": total},
		})
		return &transport.Response{StatusCode: http.StatusOK, Body: body}, nil
	}
}

var errUnavailable = &resilience.HTTPError{StatusCode: http.StatusServiceUnavailable}
