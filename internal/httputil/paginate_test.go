// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package httputil

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pagedSource simulates a server holding total items, serving up to limit
// per call.
func pagedSource(total int) PageFunc[int] {
	return func(_ context.Context, offset, limit int) ([]int, error) {
		var page []int
		for i := offset; i < total && i < offset+limit; i++ {
			page = append(page, i)
		}
		return page, nil
	}
}

func TestPaginate_ConcatenatesInOrder(t *testing.T) {
	got, err := Paginate(context.Background(), pagedSource(25), 10, 10, 0)
	require.NoError(t, err)
	require.Len(t, got, 25)
	for i, v := range got {
		assert.Equal(t, i, v)
	}
}

func TestPaginate_StopsOnShortPage(t *testing.T) {
	var calls int
	fetch := func(ctx context.Context, offset, limit int) ([]int, error) {
		calls++
		return pagedSource(25)(ctx, offset, limit)
	}
	_, err := Paginate(context.Background(), fetch, 10, 10, 0)
	require.NoError(t, err)
	// Pages of 10, 10, 5 — the short third page ends the walk.
	assert.Equal(t, 3, calls)
}

func TestPaginate_StopsOnEmptyFirstPage(t *testing.T) {
	got, err := Paginate(context.Background(), pagedSource(0), 10, 10, 0)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestPaginate_CeilingTruncates(t *testing.T) {
	got, err := Paginate(context.Background(), pagedSource(100), 10, 10, 23)
	require.NoError(t, err)
	assert.Len(t, got, 23)
	assert.Equal(t, 22, got[22])
}

func TestPaginate_MaxPagesBounds(t *testing.T) {
	got, err := Paginate(context.Background(), pagedSource(1000), 10, 3, 0)
	require.NoError(t, err)
	assert.Len(t, got, 30)
}

func TestPaginate_ErrorPropagates(t *testing.T) {
	fetch := func(_ context.Context, offset, limit int) ([]int, error) {
		if offset >= 10 {
			return nil, fmt.Errorf("boom at offset %d", offset)
		}
		return pagedSource(100)(context.Background(), offset, limit)
	}
	_, err := Paginate(context.Background(), fetch, 10, 10, 0)
	assert.ErrorContains(t, err, "boom at offset 10")
}
