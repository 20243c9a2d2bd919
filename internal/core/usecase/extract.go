package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sergiocoding96/order-pipeline/internal/core/domain"
	"github.com/sergiocoding96/order-pipeline/internal/core/ports"
)

// defaultParseRetries is the per-provider budget for structured-output parse
// failures before falling back.
const defaultParseRetries = 2

// Extractor drives the provider fallback chain for one input and owns the
// translation of provider-level failures into a single aggregate error.
type Extractor struct {
	vision       ports.VisionProvider
	primary      ports.ReasoningProvider
	fallback     ports.ReasoningProvider
	parseRetries int
	metrics      ports.PipelineMetrics
	log          *slog.Logger
}

func NewExtractor(
	vision ports.VisionProvider,
	primary ports.ReasoningProvider,
	fallback ports.ReasoningProvider,
	parseRetries int,
	metrics ports.PipelineMetrics,
	log *slog.Logger,
) *Extractor {
	if parseRetries <= 0 {
		parseRetries = defaultParseRetries
	}
	if metrics == nil {
		metrics = nopMetrics{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &Extractor{
		vision:       vision,
		primary:      primary,
		fallback:     fallback,
		parseRetries: parseRetries,
		metrics:      metrics,
		log:          log,
	}
}

// FromImage sends the image through the vision provider once and structures
// its free-text answer with the regular text chain. Any JSON the vision model
// emits directly is deliberately not trusted.
func (e *Extractor) FromImage(ctx context.Context, image []byte, mediaType string) (*domain.Order, error) {
	if e.vision == nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "vision extract", errors.New("no vision provider configured"))
	}
	reply, err := e.vision.ReadImage(ctx, image, mediaType, buildVisionPrompt())
	if err != nil {
		e.metrics.ProviderAttempt(e.vision.Name(), "error")
		return nil, domain.WrapError(domain.ErrTemporary, "vision extract", err)
	}
	e.metrics.ProviderAttempt(e.vision.Name(), "ok")
	return e.FromText(ctx, reply.Text)
}

// providerAttempt records one call against one provider for the aggregate
// error.
type providerAttempt struct {
	provider string
	err      error
}

// FromText runs the structuring fallback chain: the primary provider retried
// on parse failures up to the budget, then one format-constrained fallback
// call, then the regex scanner. Confidence on the returned order is always
// recomputed here.
func (e *Extractor) FromText(ctx context.Context, text string) (*domain.Order, error) {
	prompt := buildExtractionPrompt(text)
	var attempts []providerAttempt

	// Primary: parse failures retry the same provider; transport failures
	// fall through to the fallback immediately.
	for attempt := 1; attempt <= e.parseRetries; attempt++ {
		order, err := e.tryProvider(ctx, e.primary, prompt)
		if err == nil {
			return e.finalize(order, e.primary.Name()), nil
		}
		attempts = append(attempts, providerAttempt{provider: e.primary.Name(), err: err})
		if !domain.IsKind(err, domain.ErrProviderParse) {
			break
		}
		e.log.Warn("extraction parse failure, retrying provider",
			"provider", e.primary.Name(), "attempt", attempt, "error", err)
	}

	if e.fallback != nil {
		order, err := e.tryProvider(ctx, e.fallback, prompt)
		if err == nil {
			return e.finalize(order, e.fallback.Name()), nil
		}
		attempts = append(attempts, providerAttempt{provider: e.fallback.Name(), err: err})
	}

	if order := ScanOrderText(text); len(order.LineItems) > 0 {
		e.log.Warn("structured extraction failed, recovered via text scan",
			"line_items", len(order.LineItems))
		return e.finalize(order, MethodTextScan), nil
	}

	return nil, aggregateAttempts(attempts)
}

func (e *Extractor) tryProvider(ctx context.Context, provider ports.ReasoningProvider, prompt string) (*domain.Order, error) {
	reply, err := provider.GenerateStructured(ctx, prompt)
	if err != nil {
		e.metrics.ProviderAttempt(provider.Name(), "error")
		if domain.IsKind(err, domain.ErrTemporary) {
			return nil, err
		}
		return nil, domain.WrapError(domain.ErrTemporary, provider.Name()+" call", err)
	}

	order, err := parseOrderPayload(reply.Text)
	if err != nil {
		e.metrics.ProviderAttempt(provider.Name(), "parse_error")
		return nil, err
	}
	e.metrics.ProviderAttempt(provider.Name(), "ok")
	return order, nil
}

func (e *Extractor) finalize(order *domain.Order, method string) *domain.Order {
	if order.Method == "" {
		order.Method = method
	}
	order.Confidence = ComputeConfidence(order)
	return order
}

func aggregateAttempts(attempts []providerAttempt) error {
	counts := make(map[string]int)
	var providerOrder []string
	var lastErrs []string
	for _, attempt := range attempts {
		if counts[attempt.provider] == 0 {
			providerOrder = append(providerOrder, attempt.provider)
		}
		counts[attempt.provider]++
		lastErrs = append(lastErrs, fmt.Sprintf("%s: %v", attempt.provider, attempt.err))
	}

	var summary strings.Builder
	for i, provider := range providerOrder {
		if i > 0 {
			summary.WriteString(", ")
		}
		fmt.Fprintf(&summary, "%s=%d attempts", provider, counts[provider])
	}
	return domain.WrapError(
		domain.ErrProvidersExhausted,
		"extract order",
		fmt.Errorf("%s; errors: %s", summary.String(), strings.Join(lastErrs, "; ")),
	)
}

// ComputeConfidence scores an order from its own content. Provider-reported
// confidence is never used. An order without line items scores zero outright:
// the header and total bonuses only apply to itemized results, since a
// customer name with nothing to order is not an actionable extraction.
func ComputeConfidence(order *domain.Order) float64 {
	if order == nil || len(order.LineItems) == 0 {
		return 0
	}

	confidence := 0.4

	complete := 0
	for _, item := range order.LineItems {
		if item.Name != "" && item.Quantity > 0 && item.UnitPrice > 0 {
			complete++
		}
	}
	confidence += 0.4 * float64(complete) / float64(len(order.LineItems))

	if order.Total > 0 {
		confidence += 0.1
	}
	if order.OrderNumber != "" || order.Customer != "" || order.Date != "" {
		confidence += 0.1
	}
	if confidence > 1.0 {
		confidence = 1.0
	}
	return confidence
}

// Validate performs the structural line-item check. Violations are warnings
// only; the order is never mutated.
func Validate(order *domain.Order) []string {
	if order == nil {
		return []string{"no order extracted"}
	}
	var warnings []string
	for i, item := range order.LineItems {
		if item.Name == "" {
			warnings = append(warnings, fmt.Sprintf("line %d: missing name", i+1))
		}
		if item.Quantity <= 0 {
			warnings = append(warnings, fmt.Sprintf("line %d: quantity must be positive", i+1))
		}
		if item.UnitPrice <= 0 {
			warnings = append(warnings, fmt.Sprintf("line %d: unit price must be positive", i+1))
		}
	}
	return warnings
}

// nopMetrics keeps metrics optional in tests.
type nopMetrics struct{}

func (nopMetrics) QueueDepth(int, int)            {}
func (nopMetrics) ItemStarted()                   {}
func (nopMetrics) ItemFinished(string, float64)   {}
func (nopMetrics) QueueLag(float64)               {}
func (nopMetrics) ProviderAttempt(string, string) {}
func (nopMetrics) Resolution(string, string)      {}
