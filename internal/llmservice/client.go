package llmservice

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"document-qa/internal/config"
	"document-qa/internal/models"
)

var thinkRe = regexp.MustCompile(models.ThinkTag)

// NewModel builds the langchaingo model for one configured endpoint.
func NewModel(llmConfig config.LLMConfig) (llms.Model, error) {
	log.Debug().Str("provider", llmConfig.Provider).Str("base_url", llmConfig.BaseURL).Str("model", llmConfig.Model).Msg("Creating model")

	switch llmConfig.Provider {
	case config.ProviderOllama:
		return ollama.New(
			ollama.WithServerURL(llmConfig.BaseURL),
			ollama.WithModel(llmConfig.Model),
		)
	case config.ProviderOpenAI:
		return openai.New(
			openai.WithBaseURL(llmConfig.BaseURL),
			openai.WithToken(strings.TrimPrefix(llmConfig.Key, "Bearer ")),
			openai.WithModel(llmConfig.Model),
		)
	default:
		return nil, fmt.Errorf("unknown llm provider %q", llmConfig.Provider)
	}
}

// Client sends assembled prompts to the chat model. It never returns a bare
// error: every outcome is a models.Result with text.
type Client struct {
	model   llms.Model
	timeout time.Duration
}

func NewClient(model llms.Model, timeout time.Duration) *Client {
	return &Client{model: model, timeout: timeout}
}

// Complete returns the whole answer at once.
func (c *Client) Complete(ctx context.Context, prompt string) models.Result {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	res, err := c.generate(ctx, prompt)
	if err != nil {
		log.Error().Err(err).Msg("Model call failed")
		return models.Failed(models.NewFailure(models.KindModelCall, "model call failed", err))
	}
	if len(res.Choices) == 0 {
		return models.Failed(models.NewFailure(models.KindModelCall, "model returned no choices", nil))
	}
	return models.Success(cleanAnswer(res.Choices[0].Content))
}

// Stream returns the answer as fragments in the order the model produces
// them. On failure the last fragment is the error text.
func (c *Client) Stream(ctx context.Context, prompt string) *Stream {
	return newStream(ctx, func(ctx context.Context, emit func(string) error) *models.Failure {
		ctx, cancel := c.withTimeout(ctx)
		defer cancel()

		var think thinkFilter
		_, err := c.generate(ctx, prompt, llms.WithStreamingFunc(func(_ context.Context, chunk []byte) error {
			text := think.Write(string(chunk))
			if text == "" {
				return nil
			}
			return emit(text)
		}))
		if err == nil {
			if rest := think.Flush(); rest != "" {
				err = emit(rest)
			}
		}
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			log.Error().Err(err).Msg("Model stream failed")
			return models.NewFailure(models.KindModelCall, "model call failed", err)
		}
		return nil
	})
}

func (c *Client) generate(ctx context.Context, prompt string, options ...llms.CallOption) (*llms.ContentResponse, error) {
	msgContent := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeHuman, prompt),
	}
	return c.model.GenerateContent(ctx, msgContent, options...)
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}

// cleanAnswer drops the reasoning block some local models prepend.
func cleanAnswer(s string) string {
	return strings.TrimSpace(thinkRe.ReplaceAllString(s, ""))
}
