package enrich

import (
	"context"

	"github.com/sells-group/motolens/internal/apierr"
	"github.com/sells-group/motolens/pkg/anthropic"
	"github.com/sells-group/motolens/pkg/gemini"
)

// Predictor sends a prompt to a generative backend and returns its raw text.
// Errors are classified into the apierr taxonomy.
type Predictor interface {
	Name() string
	Predict(ctx context.Context, p Prompt) (string, error)
}

const defaultMaxTokens = 512

// AnthropicPredictor predicts fields with Claude.
type AnthropicPredictor struct {
	client    anthropic.Client
	model     string
	maxTokens int64
}

// NewAnthropicPredictor wraps client. An empty model selects anthropic.DefaultModel.
func NewAnthropicPredictor(client anthropic.Client, model string) *AnthropicPredictor {
	if model == "" {
		model = anthropic.DefaultModel
	}
	return &AnthropicPredictor{client: client, model: model, maxTokens: defaultMaxTokens}
}

// Name implements Predictor.
func (p *AnthropicPredictor) Name() string { return "anthropic" }

// Predict implements Predictor.
func (p *AnthropicPredictor) Predict(ctx context.Context, pr Prompt) (string, error) {
	zero := 0.0
	resp, err := p.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       p.model,
		MaxTokens:   p.maxTokens,
		System:      pr.System,
		Messages:    []anthropic.Message{{Role: "user", Content: pr.User}},
		Temperature: &zero,
	})
	if err != nil {
		return "", classify(p.Name(), anthropic.StatusCode(err), err)
	}
	resp.Usage.LogCost(p.model, pr.VIN)
	return resp.Text(), nil
}

// GeminiPredictor predicts fields with Gemini.
type GeminiPredictor struct {
	client gemini.Client
	model  string
}

// NewGeminiPredictor wraps client. An empty model selects gemini.DefaultModel.
func NewGeminiPredictor(client gemini.Client, model string) *GeminiPredictor {
	if model == "" {
		model = gemini.DefaultModel
	}
	return &GeminiPredictor{client: client, model: model}
}

// Name implements Predictor.
func (p *GeminiPredictor) Name() string { return "gemini" }

// Predict implements Predictor.
func (p *GeminiPredictor) Predict(ctx context.Context, pr Prompt) (string, error) {
	var zero float32
	resp, err := p.client.GenerateJSON(ctx, gemini.Request{
		Model:           p.model,
		System:          pr.System,
		Prompt:          pr.User,
		MaxOutputTokens: defaultMaxTokens,
		Temperature:     &zero,
	})
	if err != nil {
		return "", classify(p.Name(), gemini.StatusCode(err), err)
	}
	return resp.Text, nil
}

// classify maps a backend failure to the taxonomy. A known HTTP status wins;
// otherwise the transport error decides.
func classify(provider string, status int, err error) error {
	if status > 0 {
		return &apierr.Error{
			Kind:     apierr.FromStatus(status),
			Provider: provider,
			Status:   status,
			Err:      err,
		}
	}
	return apierr.FromTransport(provider, err)
}
