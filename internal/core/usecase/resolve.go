package usecase

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/sergiocoding96/order-pipeline/internal/core/domain"
	"github.com/sergiocoding96/order-pipeline/internal/core/ports"
)

// defaultAIMatchThreshold is the minimum confidence for accepting an
// AI-suggested canonical code.
const defaultAIMatchThreshold = 0.9

// Resolver maps free-text client/product names to canonical codes with a
// three-tier strategy: exact code, known alias, AI-assisted fuzzy match.
// Accepted AI matches are written back as aliases so identical text resolves
// without another provider call. A registry outage never aborts the caller:
// it degrades that tier to a miss.
type Resolver struct {
	registry  ports.Registry
	matcher   ports.ReasoningProvider
	threshold float64
	metrics   ports.PipelineMetrics
	log       *slog.Logger
}

func NewResolver(
	registry ports.Registry,
	matcher ports.ReasoningProvider,
	threshold float64,
	metrics ports.PipelineMetrics,
	log *slog.Logger,
) *Resolver {
	if threshold <= 0 || threshold > 1 {
		threshold = defaultAIMatchThreshold
	}
	if metrics == nil {
		metrics = nopMetrics{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &Resolver{
		registry:  registry,
		matcher:   matcher,
		threshold: threshold,
		metrics:   metrics,
		log:       log,
	}
}

func (r *Resolver) ResolveClient(ctx context.Context, name, codeHint string) domain.CanonicalMatch {
	return r.resolve(ctx, domain.KindClient, name, codeHint)
}

func (r *Resolver) ResolveProduct(ctx context.Context, name, codeHint string) domain.CanonicalMatch {
	return r.resolve(ctx, domain.KindProduct, name, codeHint)
}

// EnrichOrder resolves the customer once and every line item's product name,
// attaching match results without touching the original free-text fields.
func (r *Resolver) EnrichOrder(ctx context.Context, order *domain.Order) {
	if order == nil {
		return
	}
	if order.Customer != "" || order.CustomerCode != "" {
		order.CustomerMatch = r.ResolveClient(ctx, order.Customer, order.CustomerCode)
	}
	for i := range order.LineItems {
		line := &order.LineItems[i]
		if line.Name == "" && line.Code == "" {
			continue
		}
		line.Match = r.ResolveProduct(ctx, line.Name, line.Code)
	}
}

func (r *Resolver) resolve(ctx context.Context, kind domain.EntityKind, name, codeHint string) domain.CanonicalMatch {
	match := r.resolveTiers(ctx, kind, name, codeHint)
	r.metrics.Resolution(string(kind), string(match.Status))
	return match
}

func (r *Resolver) resolveTiers(ctx context.Context, kind domain.EntityKind, name, codeHint string) domain.CanonicalMatch {
	// Tier 1: exact canonical code.
	for _, candidate := range []string{codeHint, name} {
		candidate = strings.ToUpper(strings.TrimSpace(candidate))
		if candidate == "" {
			continue
		}
		code, err := r.registry.FindByCode(ctx, kind, candidate)
		if err == nil {
			return domain.CanonicalMatch{Code: code, Status: domain.MatchExact, Confidence: 1.0}
		}
		r.logRegistryMiss(kind, "code lookup", err)
	}

	// Tier 2: known alias.
	alias := normalizeAlias(name)
	if alias != "" {
		code, err := r.registry.FindAlias(ctx, kind, alias)
		if err == nil {
			return domain.CanonicalMatch{Code: code, Status: domain.MatchAlias, Confidence: 1.0}
		}
		r.logRegistryMiss(kind, "alias lookup", err)
	}

	// Tier 3: AI-assisted fuzzy match over the full candidate set.
	if match, ok := r.matchWithAI(ctx, kind, name, alias); ok {
		return match
	}

	return domain.CanonicalMatch{Status: domain.MatchUnmatched, Confidence: 0}
}

func (r *Resolver) matchWithAI(ctx context.Context, kind domain.EntityKind, name, alias string) (domain.CanonicalMatch, bool) {
	if r.matcher == nil || strings.TrimSpace(name) == "" {
		return domain.CanonicalMatch{}, false
	}

	codes, err := r.registry.ListCodes(ctx, kind)
	if err != nil {
		r.logRegistryMiss(kind, "list codes", err)
		return domain.CanonicalMatch{}, false
	}
	if len(codes) == 0 {
		return domain.CanonicalMatch{}, false
	}

	// The match suggestion is a tiny object and lenient post-parsing already
	// handles prose around it, so the call goes through the unconstrained
	// endpoint rather than forcing JSON mode.
	reply, err := r.matcher.Generate(ctx, buildMatchPrompt(kind, name, codes))
	if err != nil {
		r.log.Warn("ai match call failed", "kind", kind, "error", err)
		return domain.CanonicalMatch{}, false
	}

	var suggestion struct {
		Code       string  `json:"code"`
		Confidence float64 `json:"confidence"`
	}
	if err := json.Unmarshal([]byte(ExtractJSONCandidate(reply.Text)), &suggestion); err != nil {
		r.log.Warn("ai match output not parseable", "kind", kind, "error", err)
		return domain.CanonicalMatch{}, false
	}

	suggestion.Code = strings.ToUpper(strings.TrimSpace(suggestion.Code))
	if suggestion.Confidence < r.threshold || !containsCode(codes, suggestion.Code) {
		return domain.CanonicalMatch{}, false
	}

	// Self-learning: remember the free text as an alias. A uniqueness
	// conflict means another resolution already learned it.
	if alias != "" {
		if err := r.registry.InsertAlias(ctx, kind, alias, suggestion.Code); err != nil {
			r.log.Warn("alias insert failed", "kind", kind, "alias", alias, "error", err)
		}
	}

	return domain.CanonicalMatch{
		Code:       suggestion.Code,
		Status:     domain.MatchAI,
		Confidence: suggestion.Confidence,
	}, true
}

func (r *Resolver) logRegistryMiss(kind domain.EntityKind, operation string, err error) {
	if domain.IsKind(err, domain.ErrNotFound) {
		return
	}
	// Outages degrade the tier to a miss; the resolution chain continues.
	r.log.Warn("registry unavailable, treating as miss", "kind", kind, "operation", operation, "error", err)
}

func normalizeAlias(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func containsCode(codes []string, code string) bool {
	if code == "" {
		return false
	}
	for _, known := range codes {
		if strings.EqualFold(known, code) {
			return true
		}
	}
	return false
}
