package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/sergiocoding96/order-pipeline/internal/core/domain"
	"github.com/sergiocoding96/order-pipeline/internal/core/ports"
)

// Pipeline executes one queue item: processability check, provider input,
// extraction, validation, identifier resolution, persistence. The queue owns
// retry decisions around it.
type Pipeline struct {
	classifier ports.ItemClassifier
	inputs     ports.InputBuilder
	extractor  *Extractor
	resolver   ports.IdentityResolver
	orders     ports.OrderStore
	log        *slog.Logger
}

func NewPipeline(
	classifier ports.ItemClassifier,
	inputs ports.InputBuilder,
	extractor *Extractor,
	resolver ports.IdentityResolver,
	orders ports.OrderStore,
	log *slog.Logger,
) *Pipeline {
	if log == nil {
		log = slog.Default()
	}
	return &Pipeline{
		classifier: classifier,
		inputs:     inputs,
		extractor:  extractor,
		resolver:   resolver,
		orders:     orders,
		log:        log,
	}
}

func (p *Pipeline) Process(ctx context.Context, item *domain.QueueItem) error {
	if ok, reason := p.classifier.IsProcessable(item.Classification); !ok {
		return domain.WrapError(domain.ErrNotProcessable, "verify item", errors.New(reason))
	}

	input, err := p.inputs.Build(ctx, item.Item, item.Classification)
	if err != nil {
		return fmt.Errorf("build provider input: %w", err)
	}

	var order *domain.Order
	switch input.Kind {
	case domain.InputImage:
		order, err = p.extractor.FromImage(ctx, input.Image, input.ImageMediaType)
	default:
		order, err = p.extractor.FromText(ctx, input.Text)
	}
	if err != nil {
		return err
	}

	order.ID = uuid.NewString()
	order.ItemID = item.Item.ID
	order.CreatedAt = time.Now().UTC()

	for _, warning := range Validate(order) {
		// Non-fatal: logged, processing continues.
		p.log.Warn("order validation warning", "item_id", item.Item.ID, "warning", warning)
	}

	p.resolver.EnrichOrder(ctx, order)

	if err := p.orders.CreateOrder(ctx, order); err != nil {
		return fmt.Errorf("persist order: %w", err)
	}

	item.Order = order
	return nil
}
