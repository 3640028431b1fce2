package events

import (
	"context"

	"gasshop/backend/internal/domain"
)

// Publisher journals ledger mutations for downstream consumers. Publishing
// is best effort and happens after the store commit.
type Publisher interface {
	Publish(ctx context.Context, event domain.LedgerEvent) error
}

type NoopPublisher struct{}

func (NoopPublisher) Publish(_ context.Context, _ domain.LedgerEvent) error {
	return nil
}
