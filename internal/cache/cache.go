package cache

import (
	"context"

	"gasshop/backend/internal/domain"
)

// SummaryCache holds the last computed ledger summary. The service
// invalidates it on every mutation, so a hit is always exact for the
// current state.
type SummaryCache interface {
	Get(ctx context.Context) (*domain.Summary, bool, error)
	Set(ctx context.Context, value *domain.Summary) error
	Invalidate(ctx context.Context) error
}

type NoopSummaryCache struct{}

func (NoopSummaryCache) Get(_ context.Context) (*domain.Summary, bool, error) {
	return nil, false, nil
}

func (NoopSummaryCache) Set(_ context.Context, _ *domain.Summary) error {
	return nil
}

func (NoopSummaryCache) Invalidate(_ context.Context) error {
	return nil
}
