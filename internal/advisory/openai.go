package advisory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ashureev/pidtune/internal/domain"
	"github.com/ashureev/pidtune/internal/metrics"
	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
)

// CredentialSource resolves the credentials for one call. It is consulted on
// every request so a key saved mid-session takes effect immediately.
type CredentialSource interface {
	Credentials(ctx context.Context) (domain.Credentials, error)
}

// CredentialFunc adapts a function to CredentialSource.
type CredentialFunc func(ctx context.Context) (domain.Credentials, error)

// Credentials implements CredentialSource.
func (f CredentialFunc) Credentials(ctx context.Context) (domain.Credentials, error) {
	return f(ctx)
}

// OpenAIConfig tunes the chat completion transport.
type OpenAIConfig struct {
	BaseURL    string        // empty uses the SDK default
	Timeout    time.Duration // per request, 0 means no extra timeout
	MaxRetries int
	HTTPClient *http.Client
}

// OpenAIClient implements Client on the chat completions API.
type OpenAIClient struct {
	creds  CredentialSource
	cfg    OpenAIConfig
	logger *slog.Logger
}

var _ Client = (*OpenAIClient)(nil)

// NewOpenAIClient creates a client that reads credentials from creds.
func NewOpenAIClient(creds CredentialSource, cfg OpenAIConfig, logger *slog.Logger) *OpenAIClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &OpenAIClient{creds: creds, cfg: cfg, logger: logger}
}

// RequestInitial implements Client.
func (c *OpenAIClient) RequestInitial(ctx context.Context, req InitialRequest) (string, error) {
	parts := []openai.ChatCompletionContentPartUnionParam{
		openai.TextContentPart(initialText(req)),
	}
	for _, img := range req.Images {
		parts = append(parts, imagePart(img))
	}
	return c.complete(ctx, "initial", initialSystemPrompt, parts)
}

// RequestRefinement implements Client.
func (c *OpenAIClient) RequestRefinement(ctx context.Context, req RefinementRequest) (string, error) {
	parts := []openai.ChatCompletionContentPartUnionParam{
		openai.TextContentPart(refinementText(req)),
	}
	if !req.GraphSnapshot.IsEmpty() {
		parts = append(parts, imagePart(req.GraphSnapshot))
	}
	return c.complete(ctx, "refinement", refinementSystemPrompt, parts)
}

func (c *OpenAIClient) complete(ctx context.Context, variant, system string, parts []openai.ChatCompletionContentPartUnionParam) (string, error) {
	start := time.Now()
	text, err := c.send(ctx, variant, system, parts)
	metrics.AdvisoryDuration.WithLabelValues(variant).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.AdvisoryErrors.WithLabelValues(variant, string(KindOf(err))).Inc()
		c.logger.Warn("Advisory request failed", "variant", variant, "kind", KindOf(err), "error", err)
		return "", err
	}
	c.logger.Info("Advisory request completed",
		"variant", variant,
		"duration_ms", time.Since(start).Milliseconds(),
		"response_length", len(text),
	)
	return text, nil
}

func (c *OpenAIClient) send(ctx context.Context, variant, system string, parts []openai.ChatCompletionContentPartUnionParam) (string, error) {
	creds, err := c.creds.Credentials(ctx)
	if err != nil {
		return "", newError(KindUnauthenticated, fmt.Errorf("load credentials: %w", err))
	}
	if !creds.HasAPIKey() {
		return "", newError(KindUnauthenticated, errors.New("no API key configured"))
	}
	model := creds.Model
	if model == "" {
		model = domain.DefaultModel
	}

	opts := []option.RequestOption{
		option.WithAPIKey(creds.APIKey),
		option.WithMaxRetries(c.cfg.MaxRetries),
	}
	if c.cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(c.cfg.BaseURL))
	}
	if c.cfg.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(c.cfg.HTTPClient))
	}
	if c.cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(c.cfg.Timeout))
	}
	client := openai.NewClient(opts...)

	c.logger.Info("Sending advisory request", "variant", variant, "model", model, "parts", len(parts))

	resp, err := client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(parts),
		},
	})
	if err != nil {
		return "", classify(err)
	}
	if len(resp.Choices) == 0 {
		return "", newError(KindEmpty, errors.New("no choices in completion"))
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", newError(KindEmpty, errors.New("completion has no text"))
	}
	return text, nil
}

// classify maps transport failures onto advisory kinds. 401/403 mean a bad
// credential, other 4xx are rejections, 5xx and network errors mean the
// service could not be reached.
func classify(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden:
			return newError(KindUnauthenticated, err)
		case apiErr.StatusCode >= 500:
			return newError(KindUnreachable, err)
		default:
			return newError(KindRejected, err)
		}
	}
	return newError(KindUnreachable, err)
}

func imagePart(img domain.Image) openai.ChatCompletionContentPartUnionParam {
	return openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
		URL:    img.DataURL(),
		Detail: "high",
	})
}
