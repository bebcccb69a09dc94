package ai

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dakino/household-service/config"
	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/time/rate"
)

var tracer = otel.Tracer("vision-client")

// OpenAIVisionClient sends ticket photos to an OpenAI-compatible chat completions API
type OpenAIVisionClient struct {
	api           *openai.Client
	config        config.VisionConfig
	logger        *slog.Logger
	promptBuilder *PromptBuilder
	rateLimiter   *rate.Limiter
	retryBackoff  time.Duration

	// Metrics
	requestsTotal   metric.Int64Counter
	requestErrors   metric.Int64Counter
	requestDuration metric.Float64Histogram
	itemsExtracted  metric.Int64Histogram
}

func NewOpenAIVisionClient(cfg config.VisionConfig, logger *slog.Logger) *OpenAIVisionClient {
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 2000 // long tickets need room for every line
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}

	apiCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		apiCfg.BaseURL = cfg.BaseURL
	}
	apiCfg.HTTPClient = &http.Client{
		Timeout: cfg.Timeout,
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RequestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), max(1, cfg.RequestsPerMinute/6))
	}

	meter := otel.Meter("ticket_vision")

	requestsTotal, _ := meter.Int64Counter(
		"ticket_vision_requests_total",
		metric.WithDescription("Total number of ticket vision requests"),
		metric.WithUnit("1"),
	)

	requestErrors, _ := meter.Int64Counter(
		"ticket_vision_errors_total",
		metric.WithDescription("Total number of ticket vision errors"),
		metric.WithUnit("1"),
	)

	requestDuration, _ := meter.Float64Histogram(
		"ticket_vision_duration_seconds",
		metric.WithDescription("Duration of ticket vision requests including retries"),
		metric.WithUnit("s"),
	)

	itemsExtracted, _ := meter.Int64Histogram(
		"ticket_vision_items_extracted",
		metric.WithDescription("Number of line items extracted per ticket"),
		metric.WithUnit("1"),
	)

	promptBuilder := NewPromptBuilder(cfg.PromptsDir)
	if promptBuilder.HasOverride() {
		logger.Info("Using ticket prompt override", "dir", cfg.PromptsDir)
	}

	return &OpenAIVisionClient{
		api:             openai.NewClientWithConfig(apiCfg),
		config:          cfg,
		logger:          logger,
		promptBuilder:   promptBuilder,
		rateLimiter:     limiter,
		retryBackoff:    500 * time.Millisecond,
		requestsTotal:   requestsTotal,
		requestErrors:   requestErrors,
		requestDuration: requestDuration,
		itemsExtracted:  itemsExtracted,
	}
}

// ExtractTicket sends the image to the vision model and decodes the returned ticket JSON.
// Rate limited; 429, 5xx and transport failures are retried with linear backoff.
func (c *OpenAIVisionClient) ExtractTicket(ctx context.Context, image []byte, contentType string) (*VisionTicket, error) {
	ctx, span := tracer.Start(ctx, "vision.ExtractTicket")
	defer span.End()

	startTime := time.Now()
	attrs := []attribute.KeyValue{
		attribute.String("model", c.config.Model),
		attribute.String("content_type", contentType),
	}
	c.requestsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))

	ticket, err := c.extractTicket(ctx, image, contentType)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())

		errorAttrs := append(attrs, attribute.String("error_code", visionErrorCode(err)))
		c.requestErrors.Add(ctx, 1, metric.WithAttributes(errorAttrs...))
		c.requestDuration.Record(ctx, time.Since(startTime).Seconds(), metric.WithAttributes(errorAttrs...))
		return nil, err
	}

	successAttrs := append(attrs, attribute.String("outcome", "success"))
	c.requestDuration.Record(ctx, time.Since(startTime).Seconds(), metric.WithAttributes(successAttrs...))
	c.itemsExtracted.Record(ctx, int64(len(ticket.Items)), metric.WithAttributes(attrs...))

	c.logger.Info("Extracted ticket with vision model",
		"model", c.config.Model,
		"items", len(ticket.Items),
		"image_size_bytes", len(image),
		"duration_ms", time.Since(startTime).Milliseconds())

	return ticket, nil
}

func (c *OpenAIVisionClient) extractTicket(ctx context.Context, image []byte, contentType string) (*VisionTicket, error) {
	if c.config.APIKey == "" {
		return nil, NewVisionError(ErrCodeNotConfigured, "vision API key is not configured", nil)
	}
	if contentType == "" {
		contentType = "image/jpeg"
	}

	req := openai.ChatCompletionRequest{
		Model:       c.config.Model,
		MaxTokens:   c.config.MaxTokens,
		Temperature: float32(c.config.Temperature),
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{
						Type: openai.ChatMessagePartTypeText,
						Text: c.promptBuilder.BuildTicketPrompt(),
					},
					{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL:    fmt.Sprintf("data:%s;base64,%s", contentType, base64.StdEncoding.EncodeToString(image)),
							Detail: openai.ImageURLDetailHigh,
						},
					},
				},
			},
		},
	}

	var lastErr error
	for attempt := 1; attempt <= c.config.MaxRetries+1; attempt++ {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter error: %w", err)
		}

		resp, err := c.api.CreateChatCompletion(ctx, req)
		if err == nil {
			if len(resp.Choices) == 0 {
				return nil, NewVisionError(ErrCodeInvalidResponse, "no choices in vision response", nil)
			}
			return ParseTicketContent(resp.Choices[0].Message.Content)
		}

		status := statusCodeOf(err)
		lastErr = classifyError(status, err)
		if !retryable(ctx, status) {
			return nil, lastErr
		}

		c.logger.Warn("Vision request failed, retrying",
			"attempt", attempt,
			"status", status,
			"error", err)

		if attempt <= c.config.MaxRetries {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(attempt) * c.retryBackoff):
			}
		}
	}

	return nil, lastErr
}

// ParseTicketContent decodes the model output, tolerating Markdown code fences
// and prose around the JSON object.
func ParseTicketContent(content string) (*VisionTicket, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start == -1 || end == -1 || start >= end {
		return nil, NewVisionError(ErrCodeInvalidResponse, "no JSON object found in vision response", nil)
	}

	var ticket VisionTicket
	if err := json.Unmarshal([]byte(content[start:end+1]), &ticket); err != nil {
		return nil, NewVisionError(ErrCodeInvalidResponse, "failed to decode vision response", err)
	}

	return &ticket, nil
}

func statusCodeOf(err error) int {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode
	}
	return 0
}

func retryable(ctx context.Context, status int) bool {
	if ctx.Err() != nil {
		return false
	}
	return status == 0 || status == http.StatusTooManyRequests || status >= http.StatusInternalServerError
}

func classifyError(status int, err error) *VisionError {
	code := ErrCodeUpstream
	if status == http.StatusTooManyRequests {
		code = ErrCodeRateLimited
	}
	verr := NewVisionError(code, "vision request failed", err)
	verr.StatusCode = status
	return verr
}

func visionErrorCode(err error) string {
	var verr *VisionError
	if errors.As(err, &verr) {
		return verr.Code
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return "canceled"
	}
	return "unknown"
}
