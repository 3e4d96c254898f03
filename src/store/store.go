// Package store holds the record stores behind the review engine.
package store

import (
	"context"

	"github.com/stake-plus/mod-review/src/review"
	"github.com/stake-plus/mod-review/src/types"
)

const (
	DefaultTable = "applications"
	maxPage      = 200
	defaultPage  = 50
)

// Repository is everything the service needs from a record store.
type Repository interface {
	review.Store
	Insert(ctx context.Context, sub types.Submission) (*types.Application, error)
	List(ctx context.Context, f types.ListFilter) ([]types.Application, error)
	Counts(ctx context.Context) (map[types.Status]int64, error)
}

func pageSize(n int) int {
	switch {
	case n <= 0:
		return defaultPage
	case n > maxPage:
		return maxPage
	}
	return n
}
