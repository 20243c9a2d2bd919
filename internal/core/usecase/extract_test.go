package usecase

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/sergiocoding96/order-pipeline/internal/core/domain"
)

// scriptedProvider replays one reply per call, cycling errors and payloads in
// the order given.
type scriptedProvider struct {
	name            string
	replies         []string
	errs            []error
	calls           int
	structuredCalls int
}

func (p *scriptedProvider) Name() string { return p.name }

func (p *scriptedProvider) Generate(ctx context.Context, prompt string) (domain.ProviderReply, error) {
	return p.next()
}

func (p *scriptedProvider) GenerateStructured(ctx context.Context, prompt string) (domain.ProviderReply, error) {
	p.structuredCalls++
	return p.next()
}

func (p *scriptedProvider) next() (domain.ProviderReply, error) {
	idx := p.calls
	p.calls++
	if idx < len(p.errs) && p.errs[idx] != nil {
		return domain.ProviderReply{}, p.errs[idx]
	}
	reply := ""
	if idx < len(p.replies) {
		reply = p.replies[idx]
	}
	return domain.ProviderReply{Text: reply, Provider: p.name}, nil
}

type scriptedVision struct {
	name string
	text string
	err  error
}

func (v *scriptedVision) Name() string { return v.name }

func (v *scriptedVision) ReadImage(ctx context.Context, image []byte, mediaType, prompt string) (domain.ProviderReply, error) {
	if v.err != nil {
		return domain.ProviderReply{}, v.err
	}
	return domain.ProviderReply{Text: v.text, Provider: v.name}, nil
}

const validOrderJSON = `{"order_number":"P-7","customer":"Bar Manolo",` +
	`"line_items":[{"name":"tomate","quantity":4,"unit_price":3.5}],"total":14}`

func newTestExtractor(primary, fallback *scriptedProvider) *Extractor {
	if fallback == nil {
		return NewExtractor(nil, primary, nil, 2, nil, nil)
	}
	return NewExtractor(nil, primary, fallback, 2, nil, nil)
}

func TestFromTextPrimarySucceeds(t *testing.T) {
	primary := &scriptedProvider{name: "primary", replies: []string{validOrderJSON}}
	fallback := &scriptedProvider{name: "fallback"}
	e := newTestExtractor(primary, fallback)

	order, err := e.FromText(context.Background(), "pedido")
	if err != nil {
		t.Fatalf("FromText: %v", err)
	}
	if order.Method != "primary" {
		t.Errorf("method = %q, want primary", order.Method)
	}
	if fallback.calls != 0 {
		t.Errorf("fallback called %d times, want 0", fallback.calls)
	}
	if order.Confidence == 0 {
		t.Error("confidence must be recomputed")
	}
	if primary.structuredCalls != 1 {
		t.Errorf("structured calls = %d, want 1 (extraction asks for JSON mode)", primary.structuredCalls)
	}
}

func TestFromTextRetriesParseFailures(t *testing.T) {
	primary := &scriptedProvider{
		name:    "primary",
		replies: []string{"not json at all", validOrderJSON},
	}
	e := newTestExtractor(primary, &scriptedProvider{name: "fallback"})

	order, err := e.FromText(context.Background(), "pedido")
	if err != nil {
		t.Fatalf("FromText: %v", err)
	}
	if primary.calls != 2 {
		t.Errorf("primary calls = %d, want 2", primary.calls)
	}
	if order.Method != "primary" {
		t.Errorf("method = %q", order.Method)
	}
}

func TestFromTextTransportFailureSkipsToFallback(t *testing.T) {
	transportErr := domain.WrapError(domain.ErrTemporary, "primary call", errors.New("connection refused"))
	primary := &scriptedProvider{name: "primary", errs: []error{transportErr, transportErr}}
	fallback := &scriptedProvider{name: "fallback", replies: []string{validOrderJSON}}
	e := newTestExtractor(primary, fallback)

	order, err := e.FromText(context.Background(), "pedido")
	if err != nil {
		t.Fatalf("FromText: %v", err)
	}
	if primary.calls != 1 {
		t.Errorf("primary calls = %d, want 1 (no retry on transport errors)", primary.calls)
	}
	if order.Method != "fallback" {
		t.Errorf("method = %q, want fallback", order.Method)
	}
}

func TestFromTextFallsBackAfterParseBudget(t *testing.T) {
	primary := &scriptedProvider{name: "primary", replies: []string{"garbage", "garbage"}}
	fallback := &scriptedProvider{name: "fallback", replies: []string{validOrderJSON}}
	e := newTestExtractor(primary, fallback)

	order, err := e.FromText(context.Background(), "pedido")
	if err != nil {
		t.Fatalf("FromText: %v", err)
	}
	if primary.calls != 2 {
		t.Errorf("primary calls = %d, want 2", primary.calls)
	}
	if order.Method != "fallback" {
		t.Errorf("method = %q, want fallback", order.Method)
	}
}

func TestFromTextTextScanRecovery(t *testing.T) {
	primary := &scriptedProvider{name: "primary", replies: []string{"garbage", "garbage"}}
	fallback := &scriptedProvider{name: "fallback", replies: []string{"also garbage"}}
	e := newTestExtractor(primary, fallback)

	order, err := e.FromText(context.Background(), "4 kg tomate pera 3,50\n2 kg lechuga 1,20")
	if err != nil {
		t.Fatalf("FromText: %v", err)
	}
	if order.Method != MethodTextScan {
		t.Errorf("method = %q, want %q", order.Method, MethodTextScan)
	}
	if len(order.LineItems) != 2 {
		t.Errorf("line items = %d, want 2", len(order.LineItems))
	}
}

func TestFromTextAllProvidersExhausted(t *testing.T) {
	primary := &scriptedProvider{name: "primary", replies: []string{"garbage", "garbage"}}
	fallback := &scriptedProvider{name: "fallback", replies: []string{"garbage"}}
	e := newTestExtractor(primary, fallback)

	_, err := e.FromText(context.Background(), "no order lines here")
	if err == nil {
		t.Fatal("expected aggregate error")
	}
	if !domain.IsKind(err, domain.ErrProvidersExhausted) {
		t.Errorf("error kind wrong: %v", err)
	}
	msg := err.Error()
	if !strings.Contains(msg, "primary=2 attempts") || !strings.Contains(msg, "fallback=1 attempts") {
		t.Errorf("aggregate error should summarize per-provider attempts: %v", msg)
	}
}

func TestFromImageRoutesThroughVision(t *testing.T) {
	vision := &scriptedVision{name: "vision", text: "4 kg tomate 3,50"}
	primary := &scriptedProvider{name: "primary", replies: []string{validOrderJSON}}
	e := NewExtractor(vision, primary, nil, 2, nil, nil)

	order, err := e.FromImage(context.Background(), []byte{0xFF, 0xD8}, "image/jpeg")
	if err != nil {
		t.Fatalf("FromImage: %v", err)
	}
	if primary.calls != 1 {
		t.Error("vision text must flow through the regular text chain")
	}
	if order == nil || len(order.LineItems) != 1 {
		t.Fatalf("unexpected order: %+v", order)
	}
}

func TestFromImageVisionFailureIsTemporary(t *testing.T) {
	vision := &scriptedVision{name: "vision", err: errors.New("upstream 503")}
	e := NewExtractor(vision, &scriptedProvider{name: "primary"}, nil, 2, nil, nil)

	_, err := e.FromImage(context.Background(), []byte{1}, "image/png")
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Errorf("vision failures must be retryable: %v", err)
	}
}

func TestFromImageWithoutVisionProvider(t *testing.T) {
	e := NewExtractor(nil, &scriptedProvider{name: "primary"}, nil, 2, nil, nil)
	_, err := e.FromImage(context.Background(), []byte{1}, "image/png")
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Errorf("missing vision provider is a terminal input error: %v", err)
	}
}

func TestComputeConfidence(t *testing.T) {
	cases := []struct {
		name  string
		order *domain.Order
		want  float64
	}{
		{"nil order", nil, 0},
		{"no items", &domain.Order{Customer: "Pepe", Total: 10}, 0},
		{
			"items only, incomplete",
			&domain.Order{LineItems: []domain.LineItem{{Name: "tomate"}}},
			0.4,
		},
		{
			"half complete",
			&domain.Order{LineItems: []domain.LineItem{
				{Name: "tomate", Quantity: 2, UnitPrice: 3},
				{Name: "lechuga"},
			}},
			0.6,
		},
		{
			"complete with total and header",
			&domain.Order{
				Customer: "Bar Manolo",
				Total:    14,
				LineItems: []domain.LineItem{
					{Name: "tomate", Quantity: 4, UnitPrice: 3.5},
				},
			},
			1.0,
		},
	}

	for _, tc := range cases {
		if got := ComputeConfidence(tc.order); math.Abs(got-tc.want) > 1e-9 {
			t.Errorf("%s: confidence = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestComputeConfidenceMonotonicOnCompleteLines(t *testing.T) {
	order := &domain.Order{LineItems: []domain.LineItem{
		{Name: "tomate"},
		{Name: "lechuga"},
	}}
	before := ComputeConfidence(order)

	order.LineItems = append(order.LineItems, domain.LineItem{Name: "aceite", Quantity: 2, UnitPrice: 10})
	after := ComputeConfidence(order)

	if after < before {
		t.Errorf("adding a fully-populated line lowered confidence: %v -> %v", before, after)
	}
}

func TestValidateReportsStructuralIssues(t *testing.T) {
	order := &domain.Order{LineItems: []domain.LineItem{
		{Name: "tomate", Quantity: 4, UnitPrice: 3.5},
		{Quantity: -1},
	}}

	warnings := Validate(order)
	if len(warnings) != 3 {
		t.Fatalf("warnings = %v, want 3 entries", warnings)
	}
	for _, w := range warnings {
		if !strings.Contains(w, "line 2") {
			t.Errorf("warning should name line 2: %q", w)
		}
	}
}
