package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/modfin/bellman/models/embed"
	"github.com/modfin/bellman/models/gen"
	"github.com/modfin/bellman/prompt"
	"github.com/modfin/bellman/schema"
)

// ErrUnavailable marks a model call that kept failing until the retry budget
// ran out.
var ErrUnavailable = errors.New("model unavailable")

// ErrTimeout marks a model call whose last attempt hit its deadline.
var ErrTimeout = errors.New("model deadline exceeded")

// ErrMalformedResponse marks a generation that completed but could not be
// unmarshalled into the requested output schema.
var ErrMalformedResponse = errors.New("malformed structured response")

// Client narrows the Proxy to the two calls the retrieval core needs, and
// wraps both with per-attempt deadlines and bounded retries.
type Client struct {
	proxy      *Proxy
	genModel   gen.Model
	embedModel embed.Model
	retryCfg   RetryConfig
	logger     *slog.Logger
}

func NewClient(proxy *Proxy, genModel gen.Model, embedModel embed.Model, retryCfg RetryConfig, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		proxy:      proxy,
		genModel:   genModel,
		embedModel: embedModel,
		retryCfg:   retryCfg,
		logger:     logger.With("component", "ai-client"),
	}
}

// GenerateInto prompts the configured llm with a structured output schema
// derived from out, and unmarshals the response into out.
func (c *Client) GenerateInto(ctx context.Context, system string, out any, prompts ...prompt.Prompt) error {
	generator, err := c.proxy.Gen(c.genModel)
	if err != nil {
		return fmt.Errorf("failed to create llm: %w", err)
	}
	generator = generator.System(system).Output(schema.From(out))

	var res *gen.Response
	err = retry(ctx, c.retryCfg, c.logger, func(ctx context.Context) error {
		var err error
		res, err = c.promptWithin(ctx, generator, prompts)
		return err
	})
	if err != nil {
		return classifyCallError("generate", err)
	}

	c.logger.Debug("generation done",
		"input-tokens", res.Metadata.InputTokens,
		"output-tokens", res.Metadata.OutputTokens)

	err = res.Unmarshal(out)
	if err != nil {
		return fmt.Errorf("failed to unmarshal response: %w: %w", ErrMalformedResponse, err)
	}
	return nil
}

// Embed embeds text as a search query with the configured embedding model.
func (c *Client) Embed(ctx context.Context, text string) ([]float64, error) {
	model := c.embedModel
	model.Type = embed.TypeQuery

	var vector []float64
	err := retry(ctx, c.retryCfg, c.logger, func(ctx context.Context) error {
		resp, err := c.proxy.Embed(embed.Request{
			Ctx:   ctx,
			Model: model,
			Text:  text,
		})
		if err != nil {
			return err
		}
		vector = resp.AsFloat64()
		return nil
	})
	if err != nil {
		return nil, classifyCallError("embed", err)
	}
	return vector, nil
}

// promptWithin runs the blocking generation call under ctx. The bellman
// generator does not take a context, so the call is raced against ctx; on
// expiry the underlying request is abandoned to finish on its own.
func (c *Client) promptWithin(ctx context.Context, generator *gen.Generator, prompts []prompt.Prompt) (*gen.Response, error) {
	type outcome struct {
		res *gen.Response
		err error
	}

	done := make(chan outcome, 1)
	go func() {
		res, err := generator.Prompt(prompts...)
		done <- outcome{res: res, err: err}
	}()

	select {
	case o := <-done:
		return o.res, o.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func classifyCallError(op string, err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%s: %w: %w", op, ErrTimeout, err)
	case errors.Is(err, context.Canceled):
		return fmt.Errorf("%s: %w", op, err)
	default:
		return fmt.Errorf("%s: %w: %w", op, ErrUnavailable, err)
	}
}
