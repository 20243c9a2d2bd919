package usecase

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/sergiocoding96/order-pipeline/internal/core/domain"
)

// minProcessableConfidence is the floor below which a classified item is
// rejected before extraction.
const minProcessableConfidence = 0.3

// unknownPriority ranks unclassifiable content behind every known type.
const unknownPriority = 100

// ClassifyRules holds the keyword tables and the priority ranking used by the
// classifier. Lower priority numbers dispatch first.
type ClassifyRules struct {
	TableKeywords []string       `yaml:"table_keywords"`
	OrderKeywords []string       `yaml:"order_keywords"`
	Priorities    map[string]int `yaml:"priorities"`
}

func DefaultClassifyRules() ClassifyRules {
	return ClassifyRules{
		TableKeywords: []string{
			"cantidad", "precio", "unidad", "producto", "importe",
			"descripcion", "articulo", "referencia", "qty", "unit price",
		},
		OrderKeywords: []string{
			"pedido", "order", "factura", "invoice", "albaran",
			"cliente", "entrega", "delivery",
		},
		Priorities: map[string]int{
			string(domain.TypeStructuredTable): 1,
			string(domain.TypeSpreadsheet):     2,
			string(domain.TypeDocument):        3,
			string(domain.TypeImage):           4,
			string(domain.TypeOrderText):       5,
			string(domain.TypeFileURL):         6,
			string(domain.TypeEcommerceURL):    7,
			string(domain.TypeURL):             8,
			string(domain.TypeWebURL):          9,
			string(domain.TypeGenericText):     10,
		},
	}
}

// LoadClassifyRules reads a YAML rules file and fills omitted sections from
// the defaults. An empty path returns the defaults as-is.
func LoadClassifyRules(path string) (ClassifyRules, error) {
	rules := DefaultClassifyRules()
	if strings.TrimSpace(path) == "" {
		return rules, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return rules, fmt.Errorf("read classify rules: %w", err)
	}
	var loaded ClassifyRules
	if err := yaml.Unmarshal(raw, &loaded); err != nil {
		return rules, fmt.Errorf("parse classify rules: %w", err)
	}
	if len(loaded.TableKeywords) > 0 {
		rules.TableKeywords = loaded.TableKeywords
	}
	if len(loaded.OrderKeywords) > 0 {
		rules.OrderKeywords = loaded.OrderKeywords
	}
	for contentType, priority := range loaded.Priorities {
		rules.Priorities[contentType] = priority
	}
	return rules, nil
}

type Classifier struct {
	rules ClassifyRules
}

func NewClassifier(rules ClassifyRules) *Classifier {
	if rules.Priorities == nil {
		rules = DefaultClassifyRules()
	}
	return &Classifier{rules: rules}
}

var (
	ecommerceURLPattern = regexp.MustCompile(`(?i)(shop|store|cart|product|tienda|amazon|checkout)`)
	fileURLPattern      = regexp.MustCompile(`(?i)\.(pdf|docx?|xlsx?|csv|png|jpe?g|webp)(\?|$)`)
	embeddedURLPattern  = regexp.MustCompile(`https?://\S+`)
)

// Classify inspects one item and never fails: unrecognized shapes degrade to
// the lowest-confidence generic classification.
func (c *Classifier) Classify(item *domain.IngestedItem) domain.Classification {
	if item == nil {
		return degradedClassification()
	}

	var descriptors []domain.Descriptor
	for _, attachment := range item.Attachments {
		descriptors = append(descriptors, classifyAttachment(attachment))
	}
	if len(descriptors) == 0 && strings.TrimSpace(item.URL) != "" {
		descriptors = append(descriptors, classifyURL(item.URL))
	}
	if len(descriptors) == 0 {
		descriptors = append(descriptors, c.classifyBody(item.Text))
	}

	return domain.Classification{
		Descriptors: descriptors,
		Primary:     pickPrimary(descriptors),
	}
}

// Priority maps the primary descriptor type onto the fixed ranking. Items
// without a known type sort last.
func (c *Classifier) Priority(cls domain.Classification) int {
	if cls.Primary == nil {
		return unknownPriority
	}
	priority, ok := c.rules.Priorities[string(cls.Primary.Type)]
	if !ok {
		return unknownPriority
	}
	return priority
}

// IsProcessable reports whether an item should enter extraction, with a
// human-readable reason when it should not.
func (c *Classifier) IsProcessable(cls domain.Classification) (bool, string) {
	if cls.Primary == nil {
		return false, "no classification descriptors"
	}
	switch cls.Primary.Type {
	case domain.TypeEmpty:
		return false, "empty payload: nothing to process"
	case domain.TypeUnknownAttachment:
		return false, fmt.Sprintf("content type %q is not processable", cls.Primary.Type)
	}
	if cls.Primary.Confidence < minProcessableConfidence {
		return false, fmt.Sprintf("confidence %.2f below %.2f threshold", cls.Primary.Confidence, minProcessableConfidence)
	}
	return true, ""
}

func pickPrimary(descriptors []domain.Descriptor) *domain.Descriptor {
	if len(descriptors) == 0 {
		return nil
	}
	for i := range descriptors {
		if descriptors[i].Origin == domain.OriginAttachment {
			return &descriptors[i]
		}
	}
	return &descriptors[0]
}

func classifyAttachment(attachment domain.Attachment) domain.Descriptor {
	ext := strings.ToLower(filepath.Ext(attachment.Name))
	mediaType := strings.ToLower(attachment.MediaType)

	switch {
	case ext == ".pdf" || ext == ".doc" || ext == ".docx" ||
		mediaType == "application/pdf" || strings.Contains(mediaType, "msword"):
		return domain.Descriptor{Type: domain.TypeDocument, Confidence: 0.9, Processor: domain.ProcessorDocument, Origin: domain.OriginAttachment}
	case ext == ".xlsx" || ext == ".xls" || ext == ".csv" ||
		strings.Contains(mediaType, "spreadsheet") || mediaType == "text/csv":
		return domain.Descriptor{Type: domain.TypeSpreadsheet, Confidence: 0.9, Processor: domain.ProcessorSpreadsheet, Origin: domain.OriginAttachment}
	case ext == ".jpg" || ext == ".jpeg" || ext == ".png" || ext == ".webp" || ext == ".heic" ||
		strings.HasPrefix(mediaType, "image/"):
		return domain.Descriptor{Type: domain.TypeImage, Confidence: 0.85, Processor: domain.ProcessorVision, Origin: domain.OriginAttachment}
	default:
		return domain.Descriptor{Type: domain.TypeUnknownAttachment, Confidence: 0.2, Processor: domain.ProcessorNone, Origin: domain.OriginAttachment}
	}
}

func classifyURL(url string) domain.Descriptor {
	switch {
	case fileURLPattern.MatchString(url):
		return domain.Descriptor{Type: domain.TypeFileURL, Confidence: 0.8, Processor: domain.ProcessorURL, Origin: domain.OriginURL}
	case ecommerceURLPattern.MatchString(url):
		return domain.Descriptor{Type: domain.TypeEcommerceURL, Confidence: 0.7, Processor: domain.ProcessorURL, Origin: domain.OriginURL}
	default:
		return domain.Descriptor{Type: domain.TypeWebURL, Confidence: 0.5, Processor: domain.ProcessorURL, Origin: domain.OriginURL}
	}
}

func (c *Classifier) classifyBody(text string) domain.Descriptor {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return domain.Descriptor{Type: domain.TypeEmpty, Confidence: 1.0, Processor: domain.ProcessorNone, Origin: domain.OriginBody}
	}

	lowered := strings.ToLower(trimmed)
	if countKeywordHits(lowered, c.rules.TableKeywords) >= 3 {
		return domain.Descriptor{Type: domain.TypeStructuredTable, Confidence: 0.9, Processor: domain.ProcessorText, Origin: domain.OriginBody}
	}
	if countKeywordHits(lowered, c.rules.OrderKeywords) >= 2 {
		return domain.Descriptor{Type: domain.TypeOrderText, Confidence: 0.6, Processor: domain.ProcessorText, Origin: domain.OriginBody}
	}
	if embeddedURLPattern.MatchString(trimmed) {
		return domain.Descriptor{Type: domain.TypeURL, Confidence: 0.5, Processor: domain.ProcessorURL, Origin: domain.OriginBody}
	}
	return domain.Descriptor{Type: domain.TypeGenericText, Confidence: 0.3, Processor: domain.ProcessorText, Origin: domain.OriginBody}
}

func countKeywordHits(lowered string, keywords []string) int {
	hits := 0
	for _, keyword := range keywords {
		if keyword == "" {
			continue
		}
		if strings.Contains(lowered, strings.ToLower(keyword)) {
			hits++
		}
	}
	return hits
}

func degradedClassification() domain.Classification {
	descriptor := domain.Descriptor{
		Type:       domain.TypeGenericText,
		Confidence: 0.1,
		Processor:  domain.ProcessorText,
		Origin:     domain.OriginBody,
	}
	return domain.Classification{
		Descriptors: []domain.Descriptor{descriptor},
		Primary:     &descriptor,
	}
}
