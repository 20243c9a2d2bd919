package ports

import (
	"context"

	"github.com/sergiocoding96/order-pipeline/internal/core/domain"
)

// ItemClassifier derives a content classification from a raw item.
type ItemClassifier interface {
	Classify(item *domain.IngestedItem) domain.Classification
	Priority(cls domain.Classification) int
	IsProcessable(cls domain.Classification) (bool, string)
}

// OrderQueue accepts classified items and drives them through the pipeline.
type OrderQueue interface {
	Enqueue(item *domain.IngestedItem, cls domain.Classification) *domain.QueueItem
	Status() domain.QueueStatus
}

// ItemProcessor runs one queue item end to end: input building, extraction,
// resolution, persistence. The queue owns retry decisions around it.
type ItemProcessor interface {
	Process(ctx context.Context, item *domain.QueueItem) error
}

// IdentityResolver maps free-text names to canonical codes.
type IdentityResolver interface {
	ResolveClient(ctx context.Context, name, codeHint string) domain.CanonicalMatch
	ResolveProduct(ctx context.Context, name, codeHint string) domain.CanonicalMatch
	EnrichOrder(ctx context.Context, order *domain.Order)
}

// InboundReceiver is the ingestion entry point for transport adapters.
type InboundReceiver interface {
	Receive(ctx context.Context, msg domain.InboundMessage) (string, error)
}
