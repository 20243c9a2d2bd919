package ollama

import (
	"context"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/sergiocoding96/order-pipeline/internal/core/domain"
	"github.com/sergiocoding96/order-pipeline/internal/infrastructure/resilience"
)

const providerName = "ollama"

type Config struct {
	BaseURL           string
	Model             string
	Timeout           time.Duration
	RequestsPerSecond float64
	Executor          *resilience.Executor
}

// Client is the format-constrained fallback provider: a local Ollama
// endpoint asked for JSON output via the generate API.
type Client struct {
	baseURL    string
	model      string
	httpClient *http.Client
	limiter    *rate.Limiter
	executor   *resilience.Executor
}

func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 2
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		model:      cfg.Model,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(rate.Limit(rps), 1),
		executor:   cfg.Executor,
	}
}

func (c *Client) Name() string { return providerName }

func (c *Client) Generate(ctx context.Context, prompt string) (domain.ProviderReply, error) {
	return c.generate(ctx, map[string]any{
		"model":  c.model,
		"prompt": prompt,
		"stream": false,
	})
}

// GenerateStructured constrains the model to emit JSON.
func (c *Client) GenerateStructured(ctx context.Context, prompt string) (domain.ProviderReply, error) {
	return c.generate(ctx, map[string]any{
		"model":  c.model,
		"prompt": prompt,
		"stream": false,
		"format": "json",
	})
}

func (c *Client) generate(ctx context.Context, request map[string]any) (domain.ProviderReply, error) {
	var response struct {
		Response        string `json:"response"`
		Model           string `json:"model"`
		PromptEvalCount int    `json:"prompt_eval_count"`
		EvalCount       int    `json:"eval_count"`
	}

	call := func(callCtx context.Context) error {
		if err := c.limiter.Wait(callCtx); err != nil {
			return err
		}
		return c.postJSON(callCtx, "/api/generate", request, &response, "generate")
	}

	var err error
	if c.executor != nil {
		err = c.executor.Execute(ctx, "ollama.generate", call, classifyOllamaError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return domain.ProviderReply{}, wrapTemporaryIfNeeded("ollama generate", err)
	}

	return domain.ProviderReply{
		Text:             strings.TrimSpace(response.Response),
		Provider:         providerName,
		Model:            response.Model,
		PromptTokens:     response.PromptEvalCount,
		CompletionTokens: response.EvalCount,
	}, nil
}
