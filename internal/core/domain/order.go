package domain

import "time"

type MatchStatus string

const (
	MatchExact     MatchStatus = "exact"
	MatchAlias     MatchStatus = "alias"
	MatchAI        MatchStatus = "ai"
	MatchUnmatched MatchStatus = "unmatched"
)

type EntityKind string

const (
	KindClient  EntityKind = "client"
	KindProduct EntityKind = "product"
)

// CanonicalMatch is the outcome of resolving a free-text name against the
// canonical registry. Code is empty when Status is unmatched.
type CanonicalMatch struct {
	Code       string      `json:"code,omitempty"`
	Status     MatchStatus `json:"status"`
	Confidence float64     `json:"confidence"`
}

type LineItem struct {
	Name      string         `json:"name"`
	Code      string         `json:"code,omitempty"`
	Unit      string         `json:"unit,omitempty"`
	Quantity  float64        `json:"quantity"`
	UnitPrice float64        `json:"unit_price"`
	Total     float64        `json:"total"`
	Match     CanonicalMatch `json:"match,omitempty"`
}

// Order is the structured extraction result. Confidence is always recomputed
// from the order's own content, never taken from a provider.
type Order struct {
	ID            string         `json:"id"`
	ItemID        string         `json:"item_id"`
	OrderNumber   string         `json:"order_number,omitempty"`
	Customer      string         `json:"customer,omitempty"`
	CustomerCode  string         `json:"customer_code,omitempty"`
	Date          string         `json:"date,omitempty"`
	LineItems     []LineItem     `json:"line_items"`
	Total         float64        `json:"total,omitempty"`
	Note          string         `json:"note,omitempty"`
	Confidence    float64        `json:"confidence"`
	Method        string         `json:"method"`
	CustomerMatch CanonicalMatch `json:"customer_match,omitempty"`
	Raw           string         `json:"-"`
	CreatedAt     time.Time      `json:"created_at"`
}

// ProviderReply is one raw answer from a reasoning or vision provider.
type ProviderReply struct {
	Text             string
	Provider         string
	Model            string
	PromptTokens     int
	CompletionTokens int
}
