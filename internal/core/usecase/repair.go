package usecase

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"github.com/sergiocoding96/order-pipeline/internal/core/domain"
)

// PartialExtractionNote marks orders recovered from truncated provider output.
const PartialExtractionNote = "partially extracted"

// orderPayload is the wire shape expected from extraction providers.
type orderPayload struct {
	OrderNumber  string        `json:"order_number"`
	Customer     string        `json:"customer"`
	CustomerCode string        `json:"customer_code"`
	Date         string        `json:"date"`
	LineItems    []linePayload `json:"line_items"`
	Total        flexNumber    `json:"total"`
	Note         string        `json:"note"`
}

type linePayload struct {
	Name      string     `json:"name"`
	Code      string     `json:"code"`
	Unit      string     `json:"unit"`
	Quantity  flexNumber `json:"quantity"`
	UnitPrice flexNumber `json:"unit_price"`
	Total     flexNumber `json:"total"`
}

// flexNumber tolerates quoted numbers and comma decimals, both common in
// provider output.
type flexNumber float64

func (n *flexNumber) UnmarshalJSON(raw []byte) error {
	s := strings.TrimSpace(string(raw))
	if s == "null" {
		*n = 0
		return nil
	}
	s = strings.Trim(s, `"`)
	if s == "" {
		*n = 0
		return nil
	}
	s = strings.ReplaceAll(s, ",", ".")
	value, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return err
	}
	*n = flexNumber(value)
	return nil
}

var fencePattern = regexp.MustCompile("(?s)```(?:json)?")

// ExtractJSONCandidate strips prose and code-fence markers around the
// provider's answer and narrows it to the outermost {...} span. Output that
// was truncated before its closing brace is returned from the opening brace on.
func ExtractJSONCandidate(raw string) string {
	cleaned := fencePattern.ReplaceAllString(raw, "")
	start := strings.Index(cleaned, "{")
	if start < 0 {
		return strings.TrimSpace(cleaned)
	}
	tail := strings.TrimSpace(cleaned[start:])
	if len(scanOpenDelimiters(tail)) > 0 {
		// Truncated before its closing brace. Narrowing to the last "}" here
		// would cut away the dangling record the repair step keys off.
		return tail
	}
	end := strings.LastIndex(cleaned, "}")
	if end > start {
		return cleaned[start : end+1]
	}
	return tail
}

// RepairJSON attempts to fix provider output that was truncated mid-object.
// Valid JSON is returned unchanged, so the repair is idempotent. The repair
// keys off the `{"name"` field prefix of a dangling line item: it trims that
// partial record and synthesizes a closing tail with a "partially extracted"
// note. This is a heuristic, not a proven-correct recovery: a complete final
// record can be misjudged as truncated. Repair therefore only runs after a
// strict parse has already failed.
func RepairJSON(candidate string) (string, bool) {
	if json.Valid([]byte(candidate)) {
		return candidate, false
	}

	openers := scanOpenDelimiters(candidate)
	if len(openers) == 0 {
		return candidate, false
	}

	idx := lastPartialRecordStart(candidate)
	if idx <= 0 {
		return candidate, false
	}

	head := strings.TrimRight(candidate[:idx], " \t\r\n")
	head = strings.TrimSuffix(head, ",")

	openers = scanOpenDelimiters(head)
	var tail strings.Builder
	for i := len(openers) - 1; i >= 0; i-- {
		switch openers[i] {
		case '[':
			tail.WriteByte(']')
		case '{':
			if i == 0 {
				tail.WriteString(`,"note":"` + PartialExtractionNote + `"`)
			}
			tail.WriteByte('}')
		}
	}

	repaired := head + tail.String()
	if !json.Valid([]byte(repaired)) {
		return candidate, false
	}
	return repaired, true
}

var partialRecordPattern = regexp.MustCompile(`\{\s*"name"`)

func lastPartialRecordStart(candidate string) int {
	locations := partialRecordPattern.FindAllStringIndex(candidate, -1)
	if len(locations) == 0 {
		return -1
	}
	return locations[len(locations)-1][0]
}

// scanOpenDelimiters returns the stack of unclosed braces/brackets outside
// string literals.
func scanOpenDelimiters(s string) []byte {
	var stack []byte
	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{', '[':
			stack = append(stack, ch)
		case '}':
			if len(stack) > 0 && stack[len(stack)-1] == '{' {
				stack = stack[:len(stack)-1]
			}
		case ']':
			if len(stack) > 0 && stack[len(stack)-1] == '[' {
				stack = stack[:len(stack)-1]
			}
		}
	}
	return stack
}

// parseOrderPayload turns raw provider output into an Order, repairing
// truncated JSON once before giving up on the attempt.
func parseOrderPayload(raw string) (*domain.Order, error) {
	candidate := ExtractJSONCandidate(raw)

	var payload orderPayload
	if err := json.Unmarshal([]byte(candidate), &payload); err == nil {
		return payloadToOrder(payload, raw), nil
	}

	repaired, changed := RepairJSON(candidate)
	if !changed {
		return nil, domain.WrapError(domain.ErrProviderParse, "parse extraction output", errInvalidJSON)
	}
	if err := json.Unmarshal([]byte(repaired), &payload); err != nil {
		return nil, domain.WrapError(domain.ErrProviderParse, "parse repaired extraction output", err)
	}
	return payloadToOrder(payload, raw), nil
}

var errInvalidJSON = jsonSyntaxError{}

type jsonSyntaxError struct{}

func (jsonSyntaxError) Error() string { return "no parseable JSON object in output" }

func payloadToOrder(payload orderPayload, raw string) *domain.Order {
	order := &domain.Order{
		OrderNumber:  strings.TrimSpace(payload.OrderNumber),
		Customer:     strings.TrimSpace(payload.Customer),
		CustomerCode: strings.TrimSpace(payload.CustomerCode),
		Date:         strings.TrimSpace(payload.Date),
		Total:        float64(payload.Total),
		Note:         strings.TrimSpace(payload.Note),
		Raw:          raw,
	}
	for _, line := range payload.LineItems {
		item := domain.LineItem{
			Name:      strings.TrimSpace(line.Name),
			Code:      strings.TrimSpace(line.Code),
			Unit:      strings.TrimSpace(line.Unit),
			Quantity:  float64(line.Quantity),
			UnitPrice: float64(line.UnitPrice),
			Total:     float64(line.Total),
		}
		if item.Total == 0 && item.Quantity > 0 && item.UnitPrice > 0 {
			item.Total = item.Quantity * item.UnitPrice
		}
		order.LineItems = append(order.LineItems, item)
	}
	return order
}
