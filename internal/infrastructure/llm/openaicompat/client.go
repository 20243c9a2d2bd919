package openaicompat

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/sergiocoding96/order-pipeline/internal/core/domain"
	"github.com/sergiocoding96/order-pipeline/internal/infrastructure/resilience"
)

const providerName = "openai-compat"

type Config struct {
	BaseURL           string
	APIKey            string
	Model             string
	VisionModel       string
	Timeout           time.Duration
	RequestsPerSecond float64
	Executor          *resilience.Executor
}

// Client talks to any OpenAI-compatible chat completion endpoint. It is the
// primary reasoning provider and the vision provider of the pipeline.
type Client struct {
	baseURL     string
	apiKey      string
	model       string
	visionModel string
	httpClient  *http.Client
	limiter     *rate.Limiter
	executor    *resilience.Executor
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
	visionModel := cfg.VisionModel
	if visionModel == "" {
		visionModel = cfg.Model
	}
	return &Client{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		visionModel: visionModel,
		httpClient:  &http.Client{Timeout: timeout},
		limiter:     rate.NewLimiter(rate.Limit(rps), 1),
		executor:    cfg.Executor,
	}
}

func (c *Client) Name() string { return providerName }

func (c *Client) Generate(ctx context.Context, prompt string) (domain.ProviderReply, error) {
	return c.chat(ctx, c.model, textMessages(prompt), nil)
}

func (c *Client) GenerateStructured(ctx context.Context, prompt string) (domain.ProviderReply, error) {
	return c.chat(ctx, c.model, textMessages(prompt), &responseFormat{Type: "json_object"})
}

func (c *Client) ReadImage(ctx context.Context, image []byte, mediaType, prompt string) (domain.ProviderReply, error) {
	if mediaType == "" {
		mediaType = "image/jpeg"
	}
	dataURL := fmt.Sprintf("data:%s;base64,%s", mediaType, base64.StdEncoding.EncodeToString(image))
	messages := []chatMessage{{
		Role: "user",
		Content: []contentPart{
			{Type: "text", Text: prompt},
			{Type: "image_url", ImageURL: &imageURL{URL: dataURL}},
		},
	}}
	return c.chat(ctx, c.visionModel, messages, nil)
}

type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    float64         `json:"temperature"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

func textMessages(prompt string) []chatMessage {
	return []chatMessage{{Role: "user", Content: prompt}}
}

func (c *Client) chat(ctx context.Context, model string, messages []chatMessage, format *responseFormat) (domain.ProviderReply, error) {
	request := chatRequest{
		Model:          model,
		Messages:       messages,
		ResponseFormat: format,
	}

	var response chatResponse
	call := func(callCtx context.Context) error {
		if err := c.limiter.Wait(callCtx); err != nil {
			return err
		}
		return c.postJSON(callCtx, "/v1/chat/completions", request, &response, "chat")
	}

	var err error
	if c.executor != nil {
		err = c.executor.Execute(ctx, "openaicompat.chat", call, classifyProviderError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return domain.ProviderReply{}, wrapTemporaryIfNeeded("openai-compat chat", err)
	}

	if len(response.Choices) == 0 {
		return domain.ProviderReply{}, fmt.Errorf("openai-compat chat: empty choices")
	}
	return domain.ProviderReply{
		Text:             strings.TrimSpace(response.Choices[0].Message.Content),
		Provider:         providerName,
		Model:            response.Model,
		PromptTokens:     response.Usage.PromptTokens,
		CompletionTokens: response.Usage.CompletionTokens,
	}, nil
}
