package triage

import (
	"context"
	"errors"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/cjLee-cmd/acuzen-ICBM/internal/domain/cases"
	"github.com/cjLee-cmd/acuzen-ICBM/internal/platform/apperr"
)

const defaultTimeout = 30 * time.Second

type Config struct {
	APIKey       string
	BaseURL      string
	Model        string
	ModelVersion string
	Timeout      time.Duration
}

// OpenAIAnalyzer runs triage through the Chat Completions API in JSON mode.
type OpenAIAnalyzer struct {
	client  *openai.Client
	model   string
	version string
	timeout time.Duration
	now     func() time.Time
}

func NewOpenAIAnalyzer(cfg Config) *OpenAIAnalyzer {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &OpenAIAnalyzer{
		client:  openai.NewClientWithConfig(clientCfg),
		model:   cfg.Model,
		version: cfg.ModelVersion,
		timeout: timeout,
		now:     time.Now,
	}
}

func (a *OpenAIAnalyzer) Model() (string, string) { return a.model, a.version }

// Analyze calls the model with a bounded timeout. The call is detached from
// ctx cancellation so a client disconnect does not abort it.
func (a *OpenAIAnalyzer) Analyze(ctx context.Context, c *cases.Case) (*Result, error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.timeout)
	defer cancel()

	start := a.now()
	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: a.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt(c)},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, apperr.AnalysisFailed(errors.New("model call timed out after " + a.timeout.String()))
		}
		return nil, apperr.AnalysisFailed(err)
	}
	if len(resp.Choices) == 0 {
		return nil, apperr.AnalysisFailed(errors.New("model returned no choices"))
	}

	res, err := normalize(resp.Choices[0].Message.Content)
	if err != nil {
		return nil, apperr.AnalysisFailed(err)
	}
	res.ProcessingTime = a.now().Sub(start)
	return res, nil
}

// Unavailable is used when no model credentials are configured.
type Unavailable struct {
	Name, Version string
}

func (u Unavailable) Model() (string, string) { return u.Name, u.Version }

func (Unavailable) Analyze(context.Context, *cases.Case) (*Result, error) {
	return nil, apperr.AnalysisFailed(errors.New("AI analysis is not configured"))
}
