package ports

import (
	"context"
	"io"

	"github.com/sergiocoding96/order-pipeline/internal/core/domain"
)

// ReasoningProvider is one text-generation backend in the fallback chain.
type ReasoningProvider interface {
	Name() string
	// Generate answers the prompt without an output-format constraint; the
	// caller is responsible for any post-parsing. The registry match uses it.
	Generate(ctx context.Context, prompt string) (domain.ProviderReply, error)
	// GenerateStructured asks the provider for a JSON object response.
	GenerateStructured(ctx context.Context, prompt string) (domain.ProviderReply, error)
}

// VisionProvider reads one image and answers the prompt as free text.
type VisionProvider interface {
	Name() string
	ReadImage(ctx context.Context, image []byte, mediaType, prompt string) (domain.ProviderReply, error)
}

// Registry is the canonical client/product store. Alias inserts are
// append-only and keyed by unique alias text.
type Registry interface {
	FindByCode(ctx context.Context, kind domain.EntityKind, code string) (string, error)
	FindAlias(ctx context.Context, kind domain.EntityKind, alias string) (string, error)
	ListCodes(ctx context.Context, kind domain.EntityKind) ([]string, error)
	InsertAlias(ctx context.Context, kind domain.EntityKind, alias, code string) error
}

// OrderStore persists one extracted order with its line items.
type OrderStore interface {
	CreateOrder(ctx context.Context, order *domain.Order) error
}

// Notifier delivers best-effort processing outcomes back to the originating
// channel. Delivery failures are logged, never propagated.
type Notifier interface {
	OrderCompleted(ctx context.Context, item *domain.QueueItem) error
	OrderFailed(ctx context.Context, item *domain.QueueItem) error
}

// ObjectStorage stores attachment payloads.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// InboundTransport delivers ingested messages from the outside world.
type InboundTransport interface {
	SubscribeInbound(ctx context.Context, handler func(context.Context, domain.InboundMessage) error) error
}

// InputBuilder turns an item's channel payload into provider input.
type InputBuilder interface {
	Build(ctx context.Context, item *domain.IngestedItem, cls domain.Classification) (domain.ExtractionInput, error)
}

// PipelineMetrics records queue and processing observations. Implementations
// must be safe for concurrent use.
type PipelineMetrics interface {
	QueueDepth(pending, inFlight int)
	ItemStarted()
	ItemFinished(status string, seconds float64)
	QueueLag(seconds float64)
	ProviderAttempt(provider, outcome string)
	Resolution(kind, status string)
}
