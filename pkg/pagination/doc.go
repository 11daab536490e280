// Package pagination drives sequential page-by-page fetching of a source
// until exhaustion.
//
// Both harvest sources paginate without a "has more" flag: an empty page is
// the sole termination signal. The cursor for page N+1 depends on the
// response to page N, so a single fetch is strictly sequential; this is a
// property of the sources' pagination contract, not a missing
// optimization. Independent fetches may run concurrently as long as they
// share one rate limiter per credential.
//
// Example usage:
//
//	fetcher := pagination.NewFetcher(zot, pagination.Source{
//		Endpoint: "/groups/2258643/items",
//		PageSize: 100,
//		Style:    pagination.StyleOffset,
//	}, pagination.DefaultConfig())
//	result, err := fetcher.FetchAll(ctx)
//
// On a terminal failure the returned error wraps the cause and carries the
// pages already accumulated, so callers can decide whether partial data is
// usable.
package pagination
