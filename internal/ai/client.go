package ai

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/time/rate"
	"google.golang.org/api/option"

	genai "github.com/google/generative-ai-go/genai"

	"docchat-platform/internal/logger"
)

var (
	// ErrEmbeddingUnavailable marks transport or quota failures from the
	// embedding capability. The enclosing job's redelivery policy retries
	// these; nothing is swallowed here.
	ErrEmbeddingUnavailable = errors.New("ai: embedding unavailable")

	// ErrCompletionUnavailable marks transport failures or an open
	// circuit on the completion capability.
	ErrCompletionUnavailable = errors.New("ai: completion unavailable")
)

// GeminiClient wraps the Gemini API behind a circuit breaker and a
// client-side rate limiter shared by all callers.
type GeminiClient struct {
	client         *genai.Client
	breaker        *gobreaker.CircuitBreaker
	rateLimiter    *rate.Limiter
	chatModel      string
	embeddingModel string
}

type RateLimits struct {
	RPM int
	TPM int
	RPD int
}

type Options struct {
	APIKey         string
	ChatModel      string
	EmbeddingModel string
	Tier           string
}

func NewGeminiClient(ctx context.Context, opts Options) (*GeminiClient, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(opts.APIKey))
	if err != nil {
		return nil, err
	}

	limits := getRateLimits(opts.Tier)

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "GeminiAPI",
		MaxRequests: 5,
		Interval:    10 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
		},
	})

	// RPM limit with some headroom
	rateLimiter := rate.NewLimiter(rate.Limit(float64(limits.RPM)*0.9/60.0), limits.RPM/10)

	return &GeminiClient{
		client:         client,
		breaker:        breaker,
		rateLimiter:    rateLimiter,
		chatModel:      opts.ChatModel,
		embeddingModel: opts.EmbeddingModel,
	}, nil
}

func getRateLimits(tier string) RateLimits {
	switch tier {
	case "tier1":
		return RateLimits{RPM: 1000, TPM: 1000000, RPD: 10000}
	case "tier2":
		return RateLimits{RPM: 2000, TPM: 4000000, RPD: 50000}
	default: // free
		return RateLimits{RPM: 10, TPM: 250000, RPD: 250}
	}
}

// Embed converts text into a fixed-dimension embedding vector.
// Deterministic for identical input within one model version.
func (gc *GeminiClient) Embed(ctx context.Context, text string) ([]float32, error) {
	tracer := otel.Tracer("gemini-client")
	ctx, span := tracer.Start(ctx, "gemini.embed")
	defer span.End()

	span.SetAttributes(
		attribute.String("gemini.model", gc.embeddingModel),
		attribute.Int("gemini.input_chars", len(text)),
	)

	if err := gc.rateLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingUnavailable, err)
	}

	result, err := gc.breaker.Execute(func() (interface{}, error) {
		model := gc.client.EmbeddingModel(gc.embeddingModel)
		resp, err := model.EmbedContent(ctx, genai.Text(text))
		if err != nil {
			return nil, err
		}
		if resp.Embedding == nil || len(resp.Embedding.Values) == 0 {
			return nil, errors.New("no embedding returned")
		}
		return resp.Embedding.Values, nil
	})
	if err != nil {
		span.SetAttributes(attribute.Bool("gemini.error", true))
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingUnavailable, err)
	}

	vec := result.([]float32)
	span.SetAttributes(attribute.Int("gemini.dimension", len(vec)))
	return vec, nil
}

// StructuredComplete runs one completion constrained to the given JSON
// schema and returns the raw schema-shaped JSON.
func (gc *GeminiClient) StructuredComplete(ctx context.Context, system, user string, schema *genai.Schema) ([]byte, error) {
	tracer := otel.Tracer("gemini-client")
	ctx, span := tracer.Start(ctx, "gemini.structured_complete")
	defer span.End()

	span.SetAttributes(
		attribute.String("gemini.model", gc.chatModel),
		attribute.Int("gemini.prompt_chars", len(system)+len(user)),
	)

	if err := gc.rateLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCompletionUnavailable, err)
	}

	result, err := gc.breaker.Execute(func() (interface{}, error) {
		model := gc.client.GenerativeModel(gc.chatModel)
		model.SetTemperature(0.2)
		model.SetMaxOutputTokens(4096)
		model.ResponseMIMEType = "application/json"
		model.ResponseSchema = schema
		model.SystemInstruction = &genai.Content{
			Parts: []genai.Part{genai.Text(system)},
		}

		resp, err := model.GenerateContent(ctx, genai.Text(user))
		if err != nil {
			return nil, err
		}
		return responseText(resp)
	})
	if err != nil {
		span.SetAttributes(attribute.Bool("gemini.error", true))
		if errors.Is(err, gobreaker.ErrOpenState) {
			return nil, fmt.Errorf("%w: circuit open", ErrCompletionUnavailable)
		}
		return nil, fmt.Errorf("%w: %v", ErrCompletionUnavailable, err)
	}

	raw := result.(string)
	span.SetAttributes(attribute.Int("gemini.response_chars", len(raw)))
	return []byte(raw), nil
}

// Complete runs one freeform completion. The caller is responsible for
// parsing anything out of the returned text.
func (gc *GeminiClient) Complete(ctx context.Context, system, user string) (string, error) {
	tracer := otel.Tracer("gemini-client")
	ctx, span := tracer.Start(ctx, "gemini.complete")
	defer span.End()

	span.SetAttributes(
		attribute.String("gemini.model", gc.chatModel),
		attribute.Int("gemini.prompt_chars", len(system)+len(user)),
	)

	if err := gc.rateLimiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("%w: %v", ErrCompletionUnavailable, err)
	}

	result, err := gc.breaker.Execute(func() (interface{}, error) {
		model := gc.client.GenerativeModel(gc.chatModel)
		model.SetTemperature(0.3)
		model.SetMaxOutputTokens(4096)
		model.SystemInstruction = &genai.Content{
			Parts: []genai.Part{genai.Text(system)},
		}

		resp, err := model.GenerateContent(ctx, genai.Text(user))
		if err != nil {
			return nil, err
		}
		return responseText(resp)
	})
	if err != nil {
		span.SetAttributes(attribute.Bool("gemini.error", true))
		if errors.Is(err, gobreaker.ErrOpenState) {
			return "", fmt.Errorf("%w: circuit open", ErrCompletionUnavailable)
		}
		return "", fmt.Errorf("%w: %v", ErrCompletionUnavailable, err)
	}

	return result.(string), nil
}

func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", errors.New("empty model response")
	}
	text := ""
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			text += string(t)
		}
	}
	if text == "" {
		return "", errors.New("no text parts in model response")
	}
	return text, nil
}

func (gc *GeminiClient) Close() error {
	if gc.client != nil {
		return gc.client.Close()
	}
	return nil
}
