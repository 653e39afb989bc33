// Package pagination normalizes offset, cursor and token paginated list
// endpoints behind one Manager and a lazy, pull-based Iterator.
//
// # Strategies
//
//   - StrategyOffset: page number plus page size. More pages exist while
//     page*per_page < total.
//   - StrategyCursor: an opaque next cursor, or before/after item IDs.
//   - StrategyToken: a continuation token (next_token / page_token).
//
// Endpoints register their EndpointConfig once in a Registry. Unregistered
// endpoints use DefaultEndpointConfig, an offset configuration.
//
// # Response shapes
//
// Two payload shapes are recognized: {"data": [...]} and
// {"data": {"data": [...]}}. Pagination metadata may sit under a
// "pagination" object or inline at either level.
//
// # Iteration
//
//	it := pagination.NewIterator[Contact](manager, fetch, pagination.IteratorOptions{
//	    Options:    pagination.Options{PerPage: 100},
//	    MaxResults: 500,
//	})
//	for c, err := range it.All(ctx) {
//	    if err != nil {
//	        return err
//	    }
//	    handle(c)
//	}
//
// Iterators are forward-only and cannot be restarted. Build a new one from the
// original options to start over.
//
// When an upstream omits a total count, a full page is taken to mean more data
// exists. A last page holding exactly per_page items therefore costs one extra,
// empty fetch.
package pagination
