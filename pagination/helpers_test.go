package pagination

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"strconv"
	"sync"
	"time"
)

type contact struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// offsetSource serves total contacts in offset pages with a count.
type offsetSource struct {
	total int

	mu       sync.Mutex
	calls    int
	failures int // leading calls that fail
}

func (s *offsetSource) fetch(ctx context.Context, params url.Values) ([]byte, error) {
	s.mu.Lock()
	s.calls++
	fail := s.failures > 0
	if fail {
		s.failures--
	}
	s.mu.Unlock()
	if fail {
		return nil, errors.New("upstream unavailable")
	}

	page, _ := strconv.Atoi(params.Get("page"))
	perPage, _ := strconv.Atoi(params.Get("per_page"))
	items := []contact{}
	for id := (page-1)*perPage + 1; id <= page*perPage && id <= s.total; id++ {
		items = append(items, contact{ID: id, Name: "c" + strconv.Itoa(id)})
	}
	return json.Marshal(map[string]any{
		"data": items,
		"pagination": map[string]any{
			"page":     page,
			"per_page": perPage,
			"count":    s.total,
		},
	})
}

func (s *offsetSource) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// scriptedSource returns pages in order, each with an explicit has_more.
type scriptedSource struct {
	pages   [][]contact
	hasMore []bool

	mu     sync.Mutex
	calls  int
	params []url.Values
}

func (s *scriptedSource) fetch(ctx context.Context, params url.Values) ([]byte, error) {
	s.mu.Lock()
	i := s.calls
	s.calls++
	s.params = append(s.params, params)
	s.mu.Unlock()

	if i >= len(s.pages) {
		return nil, errors.New("fetched past the last page")
	}
	return json.Marshal(map[string]any{
		"data":       s.pages[i],
		"pagination": map[string]any{"has_more": s.hasMore[i]},
	})
}

func (s *scriptedSource) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func contacts(from, n int) []contact {
	out := make([]contact, n)
	for i := range out {
		out[i] = contact{ID: from + i, Name: "c" + strconv.Itoa(from+i)}
	}
	return out
}

func fastIteratorOptions() IteratorOptions {
	return IteratorOptions{RetryAttempts: 3, RetryDelay: time.Millisecond, MaxRetryDelay: 2 * time.Millisecond}
}

func mustJSON(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}
