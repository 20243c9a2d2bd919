package payload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/sergiocoding96/order-pipeline/internal/core/domain"
	"github.com/sergiocoding96/order-pipeline/internal/core/ports"
)

// Builder turns a classified item's channel payload into provider input:
// image bytes for vision-tagged items, extracted text for everything else.
type Builder struct {
	storage ports.ObjectStorage
}

func NewBuilder(storage ports.ObjectStorage) *Builder {
	return &Builder{storage: storage}
}

func (b *Builder) Build(ctx context.Context, item *domain.IngestedItem, cls domain.Classification) (domain.ExtractionInput, error) {
	if item == nil || cls.Primary == nil {
		return domain.ExtractionInput{}, domain.WrapError(domain.ErrInvalidInput, "build input", errors.New("missing item or classification"))
	}

	switch cls.Primary.Processor {
	case domain.ProcessorVision:
		return b.imageInput(ctx, item)
	case domain.ProcessorDocument:
		return b.documentInput(ctx, item)
	case domain.ProcessorSpreadsheet:
		return b.spreadsheetInput(ctx, item)
	case domain.ProcessorURL:
		return urlInput(item), nil
	default:
		return textInput(item)
	}
}

func (b *Builder) imageInput(ctx context.Context, item *domain.IngestedItem) (domain.ExtractionInput, error) {
	attachment, ok := firstAttachment(item, func(a domain.Attachment) bool {
		return strings.HasPrefix(strings.ToLower(a.MediaType), "image/") || hasExt(a.Name, ".jpg", ".jpeg", ".png", ".webp", ".heic")
	})
	if !ok {
		return domain.ExtractionInput{}, domain.WrapError(domain.ErrInvalidInput, "build image input", errors.New("no image attachment"))
	}

	raw, err := b.readAttachment(ctx, attachment)
	if err != nil {
		return domain.ExtractionInput{}, err
	}
	mediaType := attachment.MediaType
	if mediaType == "" {
		mediaType = "image/jpeg"
	}
	return domain.ExtractionInput{Kind: domain.InputImage, Image: raw, ImageMediaType: mediaType}, nil
}

func (b *Builder) documentInput(ctx context.Context, item *domain.IngestedItem) (domain.ExtractionInput, error) {
	attachment, ok := firstAttachment(item, func(a domain.Attachment) bool {
		return hasExt(a.Name, ".pdf") || strings.EqualFold(a.MediaType, "application/pdf")
	})
	if !ok {
		// Word documents and friends have no local text extractor; fall
		// back to whatever body text came with the item.
		return textInput(item)
	}

	raw, err := b.readAttachment(ctx, attachment)
	if err != nil {
		return domain.ExtractionInput{}, err
	}
	text, err := extractPDFText(raw)
	if err != nil {
		return domain.ExtractionInput{}, fmt.Errorf("extract pdf text from %q: %w", attachment.Name, err)
	}
	return nonEmptyText(item, text, "pdf attachment produced no text")
}

func (b *Builder) spreadsheetInput(ctx context.Context, item *domain.IngestedItem) (domain.ExtractionInput, error) {
	attachment, ok := firstAttachment(item, func(a domain.Attachment) bool {
		return hasExt(a.Name, ".xlsx", ".xls", ".csv") || strings.Contains(strings.ToLower(a.MediaType), "spreadsheet") || strings.EqualFold(a.MediaType, "text/csv")
	})
	if !ok {
		return textInput(item)
	}

	raw, err := b.readAttachment(ctx, attachment)
	if err != nil {
		return domain.ExtractionInput{}, err
	}

	var text string
	if hasExt(attachment.Name, ".csv") || strings.EqualFold(attachment.MediaType, "text/csv") {
		text = csvToText(raw)
	} else {
		text, err = spreadsheetToText(raw)
		if err != nil {
			return domain.ExtractionInput{}, fmt.Errorf("extract rows from %q: %w", attachment.Name, err)
		}
	}
	return nonEmptyText(item, text, "spreadsheet attachment produced no rows")
}

func (b *Builder) readAttachment(ctx context.Context, attachment domain.Attachment) ([]byte, error) {
	reader, err := b.storage.Open(ctx, attachment.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("open attachment %q: %w", attachment.Name, err)
	}
	defer reader.Close()

	raw, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read attachment %q: %w", attachment.Name, err)
	}
	return raw, nil
}

func urlInput(item *domain.IngestedItem) domain.ExtractionInput {
	var builder strings.Builder
	if text := strings.TrimSpace(item.Text); text != "" {
		builder.WriteString(text)
		builder.WriteString("\n")
	}
	if item.URL != "" {
		builder.WriteString("Referenced URL: ")
		builder.WriteString(item.URL)
	}
	return domain.ExtractionInput{Kind: domain.InputText, Text: strings.TrimSpace(builder.String())}
}

func textInput(item *domain.IngestedItem) (domain.ExtractionInput, error) {
	text := strings.TrimSpace(item.Text)
	if text == "" {
		return domain.ExtractionInput{}, domain.WrapError(domain.ErrInvalidInput, "build text input", errors.New("empty body text"))
	}
	return domain.ExtractionInput{Kind: domain.InputText, Text: text}, nil
}

func nonEmptyText(item *domain.IngestedItem, text, emptyReason string) (domain.ExtractionInput, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		if fallback := strings.TrimSpace(item.Text); fallback != "" {
			return domain.ExtractionInput{Kind: domain.InputText, Text: fallback}, nil
		}
		return domain.ExtractionInput{}, domain.WrapError(domain.ErrInvalidInput, "build input", errors.New(emptyReason))
	}
	return domain.ExtractionInput{Kind: domain.InputText, Text: text}, nil
}

func firstAttachment(item *domain.IngestedItem, match func(domain.Attachment) bool) (domain.Attachment, bool) {
	for _, attachment := range item.Attachments {
		if match(attachment) {
			return attachment, true
		}
	}
	return domain.Attachment{}, false
}

func hasExt(name string, exts ...string) bool {
	lowered := strings.ToLower(name)
	for _, ext := range exts {
		if strings.HasSuffix(lowered, ext) {
			return true
		}
	}
	return false
}
