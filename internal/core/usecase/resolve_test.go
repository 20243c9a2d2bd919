package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/sergiocoding96/order-pipeline/internal/core/domain"
)

// fakeRegistry serves lookups from in-memory maps keyed "kind:code" and
// "kind:alias". A non-nil outage error is returned from every call.
type fakeRegistry struct {
	codes    map[string]string
	aliases  map[string]string
	allCodes map[domain.EntityKind][]string
	outage   error

	aliasInserts map[string]string
	listCalls    int
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{
		codes:        map[string]string{},
		aliases:      map[string]string{},
		allCodes:     map[domain.EntityKind][]string{},
		aliasInserts: map[string]string{},
	}
}

func (r *fakeRegistry) FindByCode(ctx context.Context, kind domain.EntityKind, code string) (string, error) {
	if r.outage != nil {
		return "", r.outage
	}
	if canonical, ok := r.codes[string(kind)+":"+code]; ok {
		return canonical, nil
	}
	return "", domain.WrapError(domain.ErrNotFound, "find code", errors.New(code))
}

func (r *fakeRegistry) FindAlias(ctx context.Context, kind domain.EntityKind, alias string) (string, error) {
	if r.outage != nil {
		return "", r.outage
	}
	if code, ok := r.aliases[string(kind)+":"+alias]; ok {
		return code, nil
	}
	return "", domain.WrapError(domain.ErrNotFound, "find alias", errors.New(alias))
}

func (r *fakeRegistry) ListCodes(ctx context.Context, kind domain.EntityKind) ([]string, error) {
	r.listCalls++
	if r.outage != nil {
		return nil, r.outage
	}
	return r.allCodes[kind], nil
}

func (r *fakeRegistry) InsertAlias(ctx context.Context, kind domain.EntityKind, alias, code string) error {
	if r.outage != nil {
		return r.outage
	}
	key := string(kind) + ":" + alias
	r.aliasInserts[key] = code
	r.aliases[key] = code
	return nil
}

func newTestResolver(registry *fakeRegistry, matcher *scriptedProvider) *Resolver {
	if matcher == nil {
		return NewResolver(registry, nil, 0.9, nil, nil)
	}
	return NewResolver(registry, matcher, 0.9, nil, nil)
}

func TestResolveExactCode(t *testing.T) {
	registry := newFakeRegistry()
	registry.codes["client:CLI001"] = "CLI001"
	matcher := &scriptedProvider{name: "matcher"}
	r := newTestResolver(registry, matcher)

	match := r.ResolveClient(context.Background(), "cli001", "")
	if match.Status != domain.MatchExact || match.Code != "CLI001" {
		t.Fatalf("match = %+v, want exact CLI001", match)
	}
	if match.Confidence != 1.0 {
		t.Errorf("confidence = %v, want 1.0", match.Confidence)
	}
	if matcher.calls != 0 {
		t.Error("exact hits must not invoke the AI matcher")
	}
}

func TestResolveCodeHintPreferred(t *testing.T) {
	registry := newFakeRegistry()
	registry.codes["product:PRD042"] = "PRD042"
	r := newTestResolver(registry, nil)

	match := r.ResolveProduct(context.Background(), "tomate pera", "prd042")
	if match.Status != domain.MatchExact || match.Code != "PRD042" {
		t.Fatalf("match = %+v", match)
	}
}

func TestResolveAliasHitSkipsAI(t *testing.T) {
	registry := newFakeRegistry()
	registry.aliases["product:tomate pera"] = "PRD042"
	matcher := &scriptedProvider{name: "matcher"}
	r := newTestResolver(registry, matcher)

	match := r.ResolveProduct(context.Background(), "  Tomate Pera ", "")
	if match.Status != domain.MatchAlias || match.Code != "PRD042" {
		t.Fatalf("match = %+v, want alias PRD042", match)
	}
	if matcher.calls != 0 {
		t.Error("alias hits must not invoke the AI matcher")
	}
}

func TestResolveAIMatchLearnsAlias(t *testing.T) {
	registry := newFakeRegistry()
	registry.allCodes[domain.KindProduct] = []string{"PRD042", "PRD043"}
	matcher := &scriptedProvider{
		name:    "matcher",
		replies: []string{`{"code":"prd042","confidence":0.95}`},
	}
	r := newTestResolver(registry, matcher)

	match := r.ResolveProduct(context.Background(), "Tomate Pera", "")
	if match.Status != domain.MatchAI || match.Code != "PRD042" {
		t.Fatalf("match = %+v, want ai PRD042", match)
	}
	if match.Confidence != 0.95 {
		t.Errorf("confidence = %v, want 0.95", match.Confidence)
	}
	if got := registry.aliasInserts["product:tomate pera"]; got != "PRD042" {
		t.Errorf("alias not learned: %v", registry.aliasInserts)
	}

	// An identical resolution now hits the learned alias without the matcher.
	again := r.ResolveProduct(context.Background(), "Tomate Pera", "")
	if again.Status != domain.MatchAlias || again.Code != "PRD042" {
		t.Fatalf("second resolution = %+v, want alias PRD042", again)
	}
	if matcher.calls != 1 {
		t.Errorf("matcher calls = %d, want 1", matcher.calls)
	}
}

func TestResolveAIMatchUsesPlainGeneration(t *testing.T) {
	registry := newFakeRegistry()
	registry.allCodes[domain.KindProduct] = []string{"PRD042"}
	matcher := &scriptedProvider{
		name:    "matcher",
		replies: []string{`Claro, aqui tienes: {"code":"PRD042","confidence":0.95} espero que sirva`},
	}
	r := newTestResolver(registry, matcher)

	match := r.ResolveProduct(context.Background(), "tomate pera", "")
	if match.Status != domain.MatchAI || match.Code != "PRD042" {
		t.Fatalf("match = %+v, want ai PRD042", match)
	}
	if matcher.structuredCalls != 0 {
		t.Errorf("structured calls = %d, want 0 (the match uses the unconstrained endpoint)", matcher.structuredCalls)
	}
	if matcher.calls != 1 {
		t.Errorf("calls = %d, want 1", matcher.calls)
	}
}

func TestResolveAIBelowThresholdUnmatched(t *testing.T) {
	registry := newFakeRegistry()
	registry.allCodes[domain.KindProduct] = []string{"PRD042"}
	matcher := &scriptedProvider{
		name:    "matcher",
		replies: []string{`{"code":"PRD042","confidence":0.7}`},
	}
	r := newTestResolver(registry, matcher)

	match := r.ResolveProduct(context.Background(), "tomate raro", "")
	if match.Status != domain.MatchUnmatched {
		t.Fatalf("match = %+v, want unmatched", match)
	}
	if len(registry.aliasInserts) != 0 {
		t.Error("rejected suggestions must not learn aliases")
	}
}

func TestResolveAIHallucinatedCodeRejected(t *testing.T) {
	registry := newFakeRegistry()
	registry.allCodes[domain.KindClient] = []string{"CLI001"}
	matcher := &scriptedProvider{
		name:    "matcher",
		replies: []string{`{"code":"CLI999","confidence":0.99}`},
	}
	r := newTestResolver(registry, matcher)

	match := r.ResolveClient(context.Background(), "Bar Manolo", "")
	if match.Status != domain.MatchUnmatched {
		t.Fatalf("codes outside the candidate set must be rejected, got %+v", match)
	}
}

func TestResolveAIMalformedOutputUnmatched(t *testing.T) {
	registry := newFakeRegistry()
	registry.allCodes[domain.KindClient] = []string{"CLI001"}
	matcher := &scriptedProvider{name: "matcher", replies: []string{"sorry, I cannot"}}
	r := newTestResolver(registry, matcher)

	match := r.ResolveClient(context.Background(), "Bar Manolo", "")
	if match.Status != domain.MatchUnmatched {
		t.Fatalf("match = %+v", match)
	}
}

func TestResolveRegistryOutageDegradesToUnmatched(t *testing.T) {
	registry := newFakeRegistry()
	registry.outage = domain.WrapError(domain.ErrRegistryUnavailable, "query", errors.New("connection refused"))
	matcher := &scriptedProvider{name: "matcher", replies: []string{`{"code":"CLI001","confidence":0.99}`}}
	r := newTestResolver(registry, matcher)

	match := r.ResolveClient(context.Background(), "Bar Manolo", "CLI001")
	if match.Status != domain.MatchUnmatched {
		t.Fatalf("outages must degrade to unmatched, got %+v", match)
	}
	if matcher.calls != 0 {
		t.Error("matcher must not run when the candidate list is unavailable")
	}
}

func TestResolveEmptyCandidateSetSkipsAI(t *testing.T) {
	registry := newFakeRegistry()
	matcher := &scriptedProvider{name: "matcher"}
	r := newTestResolver(registry, matcher)

	match := r.ResolveProduct(context.Background(), "tomate", "")
	if match.Status != domain.MatchUnmatched {
		t.Fatalf("match = %+v", match)
	}
	if registry.listCalls != 1 {
		t.Errorf("list calls = %d, want 1", registry.listCalls)
	}
	if matcher.calls != 0 {
		t.Error("no candidates, no AI call")
	}
}

func TestEnrichOrderResolvesCustomerAndLines(t *testing.T) {
	registry := newFakeRegistry()
	registry.codes["client:CLI001"] = "CLI001"
	registry.aliases["product:tomate pera"] = "PRD042"
	r := newTestResolver(registry, nil)

	order := &domain.Order{
		Customer:     "Bar Manolo",
		CustomerCode: "CLI001",
		LineItems: []domain.LineItem{
			{Name: "tomate pera"},
			{Name: ""},
			{Name: "producto desconocido"},
		},
	}
	r.EnrichOrder(context.Background(), order)

	if order.CustomerMatch.Status != domain.MatchExact {
		t.Errorf("customer match = %+v", order.CustomerMatch)
	}
	if order.LineItems[0].Match.Status != domain.MatchAlias {
		t.Errorf("line 0 match = %+v", order.LineItems[0].Match)
	}
	if order.LineItems[1].Match.Status != "" {
		t.Error("nameless lines must be skipped")
	}
	if order.LineItems[2].Match.Status != domain.MatchUnmatched {
		t.Errorf("line 2 match = %+v", order.LineItems[2].Match)
	}
	// Free-text fields stay untouched.
	if order.Customer != "Bar Manolo" || !strings.Contains(order.LineItems[0].Name, "tomate") {
		t.Error("enrichment must not rewrite extracted text")
	}
}
