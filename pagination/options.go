package pagination

import "time"

// Options are the caller-facing list parameters. Zero values mean unset.
type Options struct {
	// Page is the 1-based page number (offset).
	Page int

	// PerPage is the requested page size for every strategy.
	PerPage int

	// Cursor is an opaque continuation cursor (cursor).
	Cursor string

	// Before and After are item IDs bounding the page (cursor).
	Before string
	After  string

	// PageToken is a continuation token (token).
	PageToken string

	// Filters are forwarded verbatim as query parameters.
	Filters map[string]string

	// Sort is forwarded as the "sort" parameter.
	Sort string
}

func (o Options) clone() Options {
	if o.Filters != nil {
		filters := make(map[string]string, len(o.Filters))
		for k, v := range o.Filters {
			filters[k] = v
		}
		o.Filters = filters
	}
	return o
}

// IteratorOptions configures an Iterator.
type IteratorOptions struct {
	Options

	// MaxResults stops iteration after this many items. Zero means no limit.
	MaxResults int

	// RetryAttempts is the number of fetch attempts per page.
	// Default: 3
	RetryAttempts int

	// RetryDelay is the base delay of the per-page exponential backoff.
	// Default: 1s
	RetryDelay time.Duration

	// MaxRetryDelay caps a single per-page backoff delay.
	// Default: 30s
	MaxRetryDelay time.Duration
}

func (o IteratorOptions) withDefaults() IteratorOptions {
	if o.RetryAttempts <= 0 {
		o.RetryAttempts = 3
	}
	if o.RetryDelay <= 0 {
		o.RetryDelay = time.Second
	}
	if o.MaxRetryDelay <= 0 {
		o.MaxRetryDelay = 30 * time.Second
	}
	if o.MaxResults < 0 {
		o.MaxResults = 0
	}
	return o
}
