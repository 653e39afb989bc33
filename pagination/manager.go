package pagination

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
)

// Manager builds request parameters and interprets responses for one
// endpoint according to its strategy.
type Manager struct {
	endpoint string
	config   EndpointConfig
}

// NewManager resolves the configuration for endpoint from registry. A nil
// registry or an unregistered endpoint uses DefaultEndpointConfig.
func NewManager(endpoint string, registry *Registry) *Manager {
	cfg, _ := registry.Lookup(endpoint)
	return &Manager{endpoint: endpoint, config: cfg}
}

// NewManagerWithConfig creates a manager with an explicit configuration.
func NewManagerWithConfig(endpoint string, cfg EndpointConfig) *Manager {
	return &Manager{endpoint: endpoint, config: cfg.withDefaults()}
}

// Endpoint returns the endpoint name.
func (m *Manager) Endpoint() string { return m.endpoint }

// Config returns the resolved endpoint configuration.
func (m *Manager) Config() EndpointConfig { return m.config }

// limit resolves the effective page size: default when unset, clamped to
// MaxLimit.
func (m *Manager) limit(requested int) int {
	if requested <= 0 {
		return m.config.DefaultLimit
	}
	if requested > m.config.MaxLimit {
		return m.config.MaxLimit
	}
	return requested
}

// BuildQueryParams renders opts as query parameters for the endpoint's
// strategy. Page sizes are clamped to MaxLimit.
func (m *Manager) BuildQueryParams(opts Options) url.Values {
	v := url.Values{}
	for k, val := range opts.Filters {
		v.Set(k, val)
	}
	if opts.Sort != "" {
		v.Set("sort", opts.Sort)
	}

	limit := strconv.Itoa(m.limit(opts.PerPage))
	switch m.config.Strategy {
	case StrategyCursor:
		if opts.Cursor != "" {
			v.Set(m.config.CursorParam, opts.Cursor)
		}
		if opts.Before != "" {
			v.Set("before", opts.Before)
		}
		if opts.After != "" {
			v.Set("after", opts.After)
		}
		v.Set(m.config.LimitParam, limit)

	case StrategyToken:
		if opts.PageToken != "" {
			v.Set(m.config.TokenParam, opts.PageToken)
		}
		v.Set(m.config.LimitParam, limit)

	default:
		page := opts.Page
		if page <= 0 {
			page = 1
		}
		v.Set(m.config.PageParam, strconv.Itoa(page))
		v.Set(m.config.SizeParam, limit)
	}
	return v
}

// ParseResponse normalizes raw into a Result. requested are the options the
// page was fetched with; they fill in metadata the upstream omitted.
func (m *Manager) ParseResponse(raw []byte, requested Options) (*Result, error) {
	page, err := decodeRawPage(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", m.endpoint, err)
	}

	result := &Result{
		Data: page.Items,
		Raw:  json.RawMessage(raw),
	}
	meta := page.Meta
	info := PageInfo{TotalCount: meta.total()}

	switch m.config.Strategy {
	case StrategyCursor:
		info.PerPage = intPtr(m.limit(requested.PerPage))
		next := meta.nextCursor()
		if next != "" || (meta.Cursor != nil && meta.Cursor.Previous != "") {
			info.Cursor = &Cursor{Next: next}
			if meta.Cursor != nil {
				info.Cursor.Previous = meta.Cursor.Previous
			}
		}
		switch {
		case meta.HasMore != nil:
			info.HasMore = *meta.HasMore
		case next != "":
			info.HasMore = true
		default:
			info.HasMore, info.Inferred = fullPage(page.Items, *info.PerPage), true
		}

	case StrategyToken:
		info.PerPage = intPtr(m.limit(requested.PerPage))
		info.NextToken = meta.nextToken()
		info.HasMore = info.NextToken != ""
		if meta.HasMore != nil && !*meta.HasMore {
			info.HasMore = false
		}

	default:
		p := requested.Page
		if p <= 0 {
			p = 1
		}
		if meta.Page != nil {
			p = *meta.Page
		}
		perPage := m.limit(requested.PerPage)
		if meta.PerPage != nil && *meta.PerPage > 0 {
			perPage = *meta.PerPage
		}
		info.Page, info.PerPage = intPtr(p), intPtr(perPage)

		switch {
		case meta.HasMore != nil:
			info.HasMore = *meta.HasMore
		case info.TotalCount != nil:
			info.HasMore = p*perPage < *info.TotalCount
		default:
			info.HasMore, info.Inferred = fullPage(page.Items, perPage), true
		}
	}

	result.Pagination = info
	return result, nil
}

// fullPage is the fallback "more data exists" heuristic used when the
// upstream reports neither a total nor a continuation. It is wrong for a last
// page of exactly perPage items; callers then see one extra empty page.
func fullPage(items []json.RawMessage, perPage int) bool {
	return perPage > 0 && len(items) == perPage
}

// NextPageOptions returns the options for the page after result, or false
// when iteration is complete. A continuation that would repeat current also
// ends iteration.
func (m *Manager) NextPageOptions(result *Result, current Options) (Options, bool) {
	if result == nil || !result.Pagination.HasMore {
		return Options{}, false
	}
	info := result.Pagination
	next := current.clone()

	switch m.config.Strategy {
	case StrategyCursor:
		next.Before = ""
		switch {
		case info.Cursor != nil && info.Cursor.Next != "":
			if info.Cursor.Next == current.Cursor {
				return Options{}, false
			}
			next.Cursor, next.After = info.Cursor.Next, ""
		default:
			id := lastItemID(result.Data)
			if id == "" || id == current.After {
				return Options{}, false
			}
			next.Cursor, next.After = "", id
		}

	case StrategyToken:
		if info.NextToken == "" || info.NextToken == current.PageToken {
			return Options{}, false
		}
		next.PageToken = info.NextToken

	default:
		p := current.Page
		if info.Page != nil {
			p = *info.Page
		}
		if p <= 0 {
			p = 1
		}
		next.Page = p + 1
	}
	return next, true
}

// lastItemID extracts the "id" of the last item as a string.
func lastItemID(items []json.RawMessage) string {
	if len(items) == 0 {
		return ""
	}
	var item struct {
		ID json.RawMessage `json:"id"`
	}
	if err := json.Unmarshal(items[len(items)-1], &item); err != nil || len(item.ID) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(item.ID, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(item.ID, &n); err == nil {
		return n.String()
	}
	return ""
}

// ValidationResult lists every problem found in a set of options.
type ValidationResult struct {
	Valid  bool
	Errors []string
}

// ValidateOptions checks opts against the endpoint's strategy and limits.
func (m *Manager) ValidateOptions(opts Options) ValidationResult {
	var errs []string

	if opts.PerPage < 0 || opts.PerPage > m.config.MaxLimit {
		errs = append(errs, fmt.Sprintf("per_page must be within [1, %d], got %d", m.config.MaxLimit, opts.PerPage))
	}

	switch m.config.Strategy {
	case StrategyCursor:
		if opts.Page != 0 {
			errs = append(errs, "page is not supported by cursor pagination")
		}
		if opts.Before != "" && opts.After != "" {
			errs = append(errs, "before and after are mutually exclusive")
		}
		if opts.PageToken != "" {
			errs = append(errs, "page_token is not supported by cursor pagination")
		}

	case StrategyToken:
		if opts.Page != 0 {
			errs = append(errs, "page is not supported by token pagination")
		}
		if opts.Cursor != "" || opts.Before != "" || opts.After != "" {
			errs = append(errs, "cursors are not supported by token pagination")
		}

	default:
		if opts.Page < 0 {
			errs = append(errs, fmt.Sprintf("page must be >= 1, got %d", opts.Page))
		}
		if opts.Cursor != "" || opts.Before != "" || opts.After != "" || opts.PageToken != "" {
			errs = append(errs, "continuation values are not supported by offset pagination")
		}
	}

	return ValidationResult{Valid: len(errs) == 0, Errors: errs}
}

// Validate is ValidateOptions returning a *ValidationError.
func (m *Manager) Validate(opts Options) error {
	res := m.ValidateOptions(opts)
	if res.Valid {
		return nil
	}
	return &ValidationError{Endpoint: m.endpoint, Errors: res.Errors}
}

func intPtr(v int) *int { return &v }
