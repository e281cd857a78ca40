// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package httputil

import "context"

// PageFunc fetches one page of results starting at offset, requesting at
// most limit items.
type PageFunc[T any] func(ctx context.Context, offset, limit int) ([]T, error)

// Paginate drives offset pagination over fetch and concatenates pages in
// retrieval order. It stops when a page comes back empty, when a page is
// strictly smaller than pageSize, when ceiling results have been collected
// (ceiling <= 0 means unbounded), or after maxPages pages — whichever comes
// first.
//
// The short-page stop is a last-page heuristic, not a completeness
// guarantee: some servers report a short page even when more data remains,
// and the fetch ends where they ended.
func Paginate[T any](ctx context.Context, fetch PageFunc[T], pageSize, maxPages, ceiling int) ([]T, error) {
	var all []T
	offset := 0
	for page := 0; page < maxPages; page++ {
		items, err := fetch(ctx, offset, pageSize)
		if err != nil {
			return nil, err
		}
		if len(items) == 0 {
			break
		}
		all = append(all, items...)

		if ceiling > 0 && len(all) >= ceiling {
			return all[:ceiling], nil
		}
		if len(items) < pageSize {
			break
		}
		offset += pageSize
	}
	return all, nil
}
