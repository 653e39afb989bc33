package pagination

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Shape identifies which response layout a payload used.
type Shape int

const (
	// ShapeFlat is {"data": [...]}.
	ShapeFlat Shape = iota + 1
	// ShapeNested is {"data": {"data": [...]}}.
	ShapeNested
)

// RawPage is a decoded response payload before strategy interpretation.
type RawPage struct {
	Shape Shape
	Items []json.RawMessage
	Meta  PageMeta
}

// PageMeta is the union of pagination metadata found in a payload.
// Pointer fields are nil when absent.
type PageMeta struct {
	Page       *int    `json:"page"`
	PerPage    *int    `json:"per_page"`
	Count      *int    `json:"count"`
	TotalCount *int    `json:"total_count"`
	Total      *int    `json:"total"`
	HasMore    *bool   `json:"has_more"`
	Cursor     *Cursor `json:"cursor"`
	NextCursor string  `json:"next_cursor"`
	NextToken  string  `json:"next_token"`
	PageToken  string  `json:"page_token"`
}

// Cursor holds cursor continuation values.
type Cursor struct {
	Previous string `json:"previous,omitempty"`
	Next     string `json:"next,omitempty"`
}

// UnmarshalJSON accepts both {"next": "..."} and a bare string cursor.
func (c *Cursor) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		return json.Unmarshal(b, &c.Next)
	}
	type plain Cursor
	return json.Unmarshal(b, (*plain)(c))
}

func (m PageMeta) total() *int {
	switch {
	case m.TotalCount != nil:
		return m.TotalCount
	case m.Total != nil:
		return m.Total
	default:
		return m.Count
	}
}

func (m PageMeta) nextCursor() string {
	if m.Cursor != nil && m.Cursor.Next != "" {
		return m.Cursor.Next
	}
	return m.NextCursor
}

func (m PageMeta) nextToken() string {
	if m.NextToken != "" {
		return m.NextToken
	}
	return m.PageToken
}

// merge fills fields unset in m from o.
func (m PageMeta) merge(o PageMeta) PageMeta {
	if m.Page == nil {
		m.Page = o.Page
	}
	if m.PerPage == nil {
		m.PerPage = o.PerPage
	}
	if m.Count == nil {
		m.Count = o.Count
	}
	if m.TotalCount == nil {
		m.TotalCount = o.TotalCount
	}
	if m.Total == nil {
		m.Total = o.Total
	}
	if m.HasMore == nil {
		m.HasMore = o.HasMore
	}
	if m.Cursor == nil {
		m.Cursor = o.Cursor
	}
	if m.NextCursor == "" {
		m.NextCursor = o.NextCursor
	}
	if m.NextToken == "" {
		m.NextToken = o.NextToken
	}
	if m.PageToken == "" {
		m.PageToken = o.PageToken
	}
	return m
}

type envelope struct {
	PageMeta
	Data       json.RawMessage `json:"data"`
	Pagination *PageMeta       `json:"pagination"`
}

func (e envelope) meta() PageMeta {
	if e.Pagination != nil {
		return e.Pagination.merge(e.PageMeta)
	}
	return e.PageMeta
}

// decodeRawPage is the single normalization point for response payloads.
// Metadata closest to the items wins.
func decodeRawPage(raw []byte) (RawPage, error) {
	var outer envelope
	if err := json.Unmarshal(raw, &outer); err != nil {
		return RawPage{}, fmt.Errorf("%w: %v", ErrUnrecognizedShape, err)
	}

	data := bytes.TrimSpace(outer.Data)
	if len(data) == 0 {
		return RawPage{}, fmt.Errorf("%w: missing data", ErrUnrecognizedShape)
	}

	switch data[0] {
	case 'n':
		if string(data) == "null" {
			return RawPage{Shape: ShapeFlat, Meta: outer.meta()}, nil
		}
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(data, &items); err != nil {
			return RawPage{}, fmt.Errorf("%w: %v", ErrUnrecognizedShape, err)
		}
		return RawPage{Shape: ShapeFlat, Items: items, Meta: outer.meta()}, nil

	case '{':
		var inner envelope
		if err := json.Unmarshal(data, &inner); err != nil {
			return RawPage{}, fmt.Errorf("%w: %v", ErrUnrecognizedShape, err)
		}
		innerData := bytes.TrimSpace(inner.Data)
		if len(innerData) == 0 || innerData[0] != '[' {
			return RawPage{}, fmt.Errorf("%w: data.data is not an array", ErrUnrecognizedShape)
		}
		var items []json.RawMessage
		if err := json.Unmarshal(innerData, &items); err != nil {
			return RawPage{}, fmt.Errorf("%w: %v", ErrUnrecognizedShape, err)
		}
		return RawPage{Shape: ShapeNested, Items: items, Meta: inner.meta().merge(outer.meta())}, nil
	}

	return RawPage{}, fmt.Errorf("%w: data is neither array nor object", ErrUnrecognizedShape)
}

// PageInfo is the normalized pagination state of one page.
type PageInfo struct {
	// HasMore false is terminal.
	HasMore    bool
	TotalCount *int
	Page       *int
	PerPage    *int
	Cursor     *Cursor
	NextToken  string

	// Inferred is set when HasMore came from the full-page heuristic
	// rather than from the upstream.
	Inferred bool
}

// Result is one normalized page.
type Result struct {
	Data       []json.RawMessage
	Pagination PageInfo

	// Raw is the upstream payload, kept for debugging.
	Raw json.RawMessage
}
