package generator

import (
	"context"
	"fmt"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/param"

	"github.com/quizsets/backend/internal/config"
	"github.com/quizsets/backend/internal/logger"
	"github.com/quizsets/backend/internal/models"
)

// LLMClient is the interface every generator backend satisfies.
type LLMClient interface {
	Generate(ctx context.Context, systemPrompt string, userPrompt string) (*LLMResponse, error)
}

// LLMResponse holds the raw response content and token usage.
type LLMResponse struct {
	Content      string
	PromptTokens int
	OutputTokens int
}

// Generator wraps an LLMClient and turns its replies into upload-ready
// question batches.
type Generator struct {
	llm   LLMClient
	model string
	log   *logger.Logger
}

func NewGenerator(cfg *config.Config, log *logger.Logger) *Generator {
	if log == nil {
		log = logger.Nop()
	}
	log = log.With("component", "generator")

	var llm LLMClient
	model := "mock"

	switch {
	case cfg.UseCLIGenerator:
		llm = NewCLIClient(cfg.CLIPath, log)
		model = "claude-cli"
		log.Info("generator using claude CLI", "path", cfg.CLIPath)
	case cfg.MockGenerator:
		llm = NewMockClient()
		log.Info("generator using mock data")
	default:
		model = cfg.AnthropicModel
		llm = NewAPIClient(cfg.AnthropicAPIKey, model, log)
		log.Info("generator using Anthropic API", "model", model)
	}

	return &Generator{llm: llm, model: model, log: log}
}

// New wires an explicit client; tests use it with stubs.
func New(llm LLMClient, model string, log *logger.Logger) *Generator {
	if log == nil {
		log = logger.Nop()
	}
	return &Generator{llm: llm, model: model, log: log}
}

func (g *Generator) ModelName() string {
	return g.model
}

// GenerateSet asks the model for one full set of questions on a topic.
func (g *Generator) GenerateSet(ctx context.Context, subjectName, topicName string) ([]models.QuestionInput, *LLMResponse, error) {
	userPrompt := BuildSetPrompt(subjectName, topicName, models.QuestionsPerSet)

	resp, err := g.llm.Generate(ctx, SystemPrompt(), userPrompt)
	if err != nil {
		return nil, nil, fmt.Errorf("generate set: %w", err)
	}

	questions, err := ParseQuestions(resp.Content, g.log)
	if err != nil {
		return nil, resp, fmt.Errorf("parse generated set: %w", err)
	}

	g.log.Info("set generated",
		"subject", subjectName,
		"topic", topicName,
		"questions", len(questions),
		"prompt_tokens", resp.PromptTokens,
		"output_tokens", resp.OutputTokens,
	)
	return questions, resp, nil
}

// ── APIClient (Anthropic SDK) ──────────────────────────────

type APIClient struct {
	client *anthropic.Client
	model  string
	log    *logger.Logger
}

func NewAPIClient(apiKey, model string, log *logger.Logger) *APIClient {
	client := anthropic.NewClient(
		option.WithAPIKey(apiKey),
	)
	return &APIClient{client: &client, model: model, log: log}
}

func (c *APIClient) Generate(ctx context.Context, systemPrompt string, userPrompt string) (*LLMResponse, error) {
	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(c.model),
		MaxTokens:   8192,
		Temperature: param.NewOpt(0.7),
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userPrompt)),
		},
	}

	message, err := c.callWithRetry(ctx, params)
	if err != nil {
		return nil, err
	}

	var responseText string
	for _, block := range message.Content {
		if block.Type == "text" {
			responseText = block.Text
			break
		}
	}

	if responseText == "" {
		return nil, fmt.Errorf("no text content in API response")
	}

	return &LLMResponse{
		Content:      responseText,
		PromptTokens: int(message.Usage.InputTokens),
		OutputTokens: int(message.Usage.OutputTokens),
	}, nil
}

func (c *APIClient) callWithRetry(ctx context.Context, params anthropic.MessageNewParams) (*anthropic.Message, error) {
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(1<<uint(attempt)) * time.Second
			c.log.Warn("retrying Anthropic API call", "backoff", backoff, "attempt", attempt+1)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}

		message, err := c.client.Messages.New(ctx, params)
		if err == nil {
			return message, nil
		}
		lastErr = err
		c.log.Warn("Anthropic API call failed", "attempt", attempt+1, "error", err)
	}
	return nil, fmt.Errorf("anthropic API failed after retries: %w", lastErr)
}

// ── MockClient (local development) ─────────────────────────

type MockClient struct{}

func NewMockClient() *MockClient {
	return &MockClient{}
}

func (m *MockClient) Generate(ctx context.Context, systemPrompt string, userPrompt string) (*LLMResponse, error) {
	return &LLMResponse{
		Content:      buildMockJSON(models.QuestionsPerSet),
		PromptTokens: 400,
		OutputTokens: 2500,
	}, nil
}

func buildMockJSON(count int) string {
	themes := []string{
		"definitions", "worked examples", "common mistakes",
		"history", "applications", "edge cases",
	}

	questions := "```json\n["
	for i := 0; i < count; i++ {
		theme := themes[i%len(themes)]
		correct := i % 4
		if i > 0 {
			questions += ","
		}
		questions += fmt.Sprintf(
			`{"text":"[Mock] Question %d about %s: which option is correct?","options":["Option A on %s","Option B on %s","Option C on %s","Option D on %s"],"correctOption":%d,"explanation":"[Mock] Option %c is the intended answer for this %s question."}`,
			i+1, theme, theme, theme, theme, theme, correct, 'A'+rune(correct), theme,
		)
	}
	questions += "]\n```"
	return questions
}
