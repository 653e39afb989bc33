package client

import (
	"context"
	"net/url"

	"github.com/jonwraymond/reqcore/pagination"
	"github.com/jonwraymond/reqcore/transport"
)

// RegisterEndpoint registers the pagination shape of an endpoint, replacing
// any earlier registration.
func (c *Client) RegisterEndpoint(name string, cfg pagination.EndpointConfig) error {
	return c.registry.Register(name, cfg)
}

// Registry returns the client's pagination registry.
func (c *Client) Registry() *pagination.Registry { return c.registry }

// Manager returns a pagination manager for endpoint. Unregistered endpoints
// use the default offset configuration.
func (c *Client) Manager(endpoint string) *pagination.Manager {
	return pagination.NewManager(endpoint, c.registry)
}

// Fetcher returns a FetchFunc that issues req through Execute with the page
// parameters merged into its query. Page parameters win over query values of
// the same name.
func (c *Client) Fetcher(req transport.Request) pagination.FetchFunc {
	base := req.Clone()
	return func(ctx context.Context, params url.Values) ([]byte, error) {
		r := base.Clone()
		if r.Query == nil {
			r.Query = make(url.Values, len(params))
		}
		for k, v := range params {
			r.Query[k] = append([]string(nil), v...)
		}

		resp, err := c.Execute(ctx, r)
		if err != nil {
			return nil, err
		}
		return resp.Body, nil
	}
}

// Paginate walks the list endpoint named by req.Endpoint, decoding items
// into T.
func Paginate[T any](c *Client, req transport.Request, opts pagination.IteratorOptions) *pagination.Iterator[T] {
	return pagination.NewIterator[T](c.Manager(req.Endpoint), c.Fetcher(req), opts)
}

// PaginateRobust is Paginate with backoff and payload validation from cfg in
// place of the iterator's page retry.
func PaginateRobust[T any](c *Client, req transport.Request, cfg pagination.RobustConfig, opts pagination.IteratorOptions) *pagination.Iterator[T] {
	return pagination.NewRobustIterator[T](c.Manager(req.Endpoint), c.Fetcher(req), cfg, opts)
}

// PaginateConcurrent merges one iterator per request under ctx. Dropped
// sources are logged through the client's logger unless copts names another.
func PaginateConcurrent[T any](ctx context.Context, c *Client, reqs []transport.Request, opts pagination.IteratorOptions, copts pagination.ConcurrentOptions) *pagination.ConcurrentIterator[T] {
	sources := make([]*pagination.Iterator[T], len(reqs))
	for i, req := range reqs {
		sources[i] = Paginate[T](c, req, opts)
	}
	if copts.Logger == nil {
		copts.Logger = c.logger
	}
	return pagination.NewConcurrentIterator(ctx, sources, copts)
}
