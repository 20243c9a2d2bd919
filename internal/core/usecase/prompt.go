package usecase

import (
	"fmt"
	"strings"

	"github.com/sergiocoding96/order-pipeline/internal/core/domain"
)

const maxPromptSnippet = 6000

func buildExtractionPrompt(text string) string {
	snippet := text
	if len(snippet) > maxPromptSnippet {
		snippet = snippet[:maxPromptSnippet]
	}

	return `You extract purchase order data from raw text.
Return a strict JSON object with keys:
order_number (string), customer (string), customer_code (string), date (string, ISO 8601),
line_items (array of objects with name, code, unit, quantity, unit_price, total),
total (number), note (string).
Use null or empty values for anything missing. Numbers use a dot decimal separator.
No markdown, no extra keys, no commentary.

Text:
` + snippet
}

func buildVisionPrompt() string {
	return `This image shows a purchase order or invoice.
Transcribe everything relevant as plain text, line by line:
order number, customer, date, every product line with quantity, unit and price, and the total.
Keep the original wording and numbers exactly as printed.`
}

func buildMatchPrompt(kind domain.EntityKind, name string, codes []string) string {
	return fmt.Sprintf(`You match a free-text %s name to one canonical code.
Known codes: %s
Name: %q
Return a strict JSON object: {"code": "<one code from the list or empty>", "confidence": <0..1>}.
Only answer with a code from the list. If nothing fits, return an empty code with confidence 0.
No markdown, no extra keys.`, kind, strings.Join(codes, ", "), name)
}
