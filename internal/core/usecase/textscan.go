package usecase

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/sergiocoding96/order-pipeline/internal/core/domain"
)

// MethodTextScan tags orders recovered by the regex fallback.
const MethodTextScan = "textscan"

// Line shapes recognized by the fallback scanner. Decimal commas are
// normalized before parsing.
//
//	4 kg tomate pera 3,50
//	Tomate pera 4 x 3,50
var (
	quantityFirstLine = regexp.MustCompile(`(?i)^\s*(\d+(?:[.,]\d+)?)\s*(kg|g|l|ml|ud|uds|un|caja|cajas|pcs)?\.?\s+(\D.*?)\s+(\d+(?:[.,]\d+)?)\s*€?\s*$`)
	nameFirstLine     = regexp.MustCompile(`(?i)^\s*(\D.*?)\s+(\d+(?:[.,]\d+)?)\s*(?:x|\*|@)\s*(\d+(?:[.,]\d+)?)\s*€?\s*$`)
)

// ScanOrderText is the last-resort extraction strategy: no providers, no
// network, just line patterns. It implements the same text → Order contract
// as the AI chain and sums line totals into the order total.
func ScanOrderText(text string) *domain.Order {
	order := &domain.Order{Method: MethodTextScan, Raw: text}

	for _, line := range strings.Split(text, "\n") {
		if item, ok := scanLine(line); ok {
			order.LineItems = append(order.LineItems, item)
			order.Total = roundCents(order.Total + item.Total)
		}
	}
	return order
}

func scanLine(line string) (domain.LineItem, bool) {
	if match := quantityFirstLine.FindStringSubmatch(line); match != nil {
		quantity := parseDecimal(match[1])
		price := parseDecimal(match[4])
		if quantity <= 0 || price <= 0 {
			return domain.LineItem{}, false
		}
		return domain.LineItem{
			Name:      strings.TrimSpace(match[3]),
			Unit:      strings.ToLower(match[2]),
			Quantity:  quantity,
			UnitPrice: price,
			Total:     roundCents(quantity * price),
		}, true
	}
	if match := nameFirstLine.FindStringSubmatch(line); match != nil {
		quantity := parseDecimal(match[2])
		price := parseDecimal(match[3])
		if quantity <= 0 || price <= 0 {
			return domain.LineItem{}, false
		}
		return domain.LineItem{
			Name:      strings.TrimSpace(match[1]),
			Quantity:  quantity,
			UnitPrice: price,
			Total:     roundCents(quantity * price),
		}, true
	}
	return domain.LineItem{}, false
}

func parseDecimal(s string) float64 {
	value, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64)
	if err != nil {
		return 0
	}
	return value
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
