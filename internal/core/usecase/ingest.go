package usecase

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sergiocoding96/order-pipeline/internal/core/domain"
	"github.com/sergiocoding96/order-pipeline/internal/core/ports"
)

// IngestUseCase turns an inbound transport message into an immutable
// IngestedItem, stores its attachments, classifies it, and enqueues it.
type IngestUseCase struct {
	storage    ports.ObjectStorage
	classifier ports.ItemClassifier
	queue      ports.OrderQueue
	log        *slog.Logger
}

func NewIngestUseCase(
	storage ports.ObjectStorage,
	classifier ports.ItemClassifier,
	queue ports.OrderQueue,
	log *slog.Logger,
) *IngestUseCase {
	if log == nil {
		log = slog.Default()
	}
	return &IngestUseCase{
		storage:    storage,
		classifier: classifier,
		queue:      queue,
		log:        log,
	}
}

func (uc *IngestUseCase) Receive(ctx context.Context, msg domain.InboundMessage) (string, error) {
	receivedAt := msg.ReceivedAt
	if receivedAt.IsZero() {
		receivedAt = time.Now().UTC()
	}
	channel := msg.Channel
	if channel == "" {
		channel = domain.ChannelChat
	}

	item := &domain.IngestedItem{
		ID:         uuid.NewString(),
		Channel:    channel,
		Text:       msg.Text,
		URL:        msg.URL,
		ReceivedAt: receivedAt,
	}

	for _, attachment := range msg.Attachments {
		key := fmt.Sprintf("%s_%s", item.ID, sanitizeFilename(attachment.Name))
		if err := uc.storage.Save(ctx, key, bytes.NewReader(attachment.Data)); err != nil {
			return "", fmt.Errorf("store attachment %q: %w", attachment.Name, err)
		}
		item.Attachments = append(item.Attachments, domain.Attachment{
			Name:        attachment.Name,
			MediaType:   attachment.MediaType,
			Size:        int64(len(attachment.Data)),
			StoragePath: key,
		})
	}

	cls := uc.classifier.Classify(item)
	queued := uc.queue.Enqueue(item, cls)

	uc.log.Info("item ingested",
		"item_id", item.ID,
		"queue_id", queued.ID,
		"channel", item.Channel,
		"type", primaryType(cls),
		"priority", queued.Priority,
	)
	return queued.ID, nil
}

func primaryType(cls domain.Classification) string {
	if cls.Primary == nil {
		return ""
	}
	return string(cls.Primary.Type)
}

func sanitizeFilename(name string) string {
	base := filepath.Base(name)
	base = strings.ReplaceAll(base, " ", "_")
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r
		case r >= 'A' && r <= 'Z':
			return r
		case r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if base == "" || base == "." {
		return "attachment.bin"
	}
	return base
}
