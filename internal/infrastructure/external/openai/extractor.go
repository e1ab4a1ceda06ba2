package openai

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/garyjia/timesheet-ocr/internal/application/port"
)

// Config holds the connection settings of an OpenAI-compatible endpoint
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// Extractor implements port.Extractor with a vision chat completion
type Extractor struct {
	client     *openai.Client
	model      string
	timeout    time.Duration
	prompts    *PromptConfig
	references port.ReferenceProvider
	logger     *zap.Logger
}

// NewExtractor creates a new extractor. prompts may be nil for the built-in
// prompt; references, when set, supplies the bank holiday calendar quoted in
// the prompt.
func NewExtractor(cfg Config, prompts *PromptConfig, references port.ReferenceProvider, logger *zap.Logger) *Extractor {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	if prompts == nil {
		prompts = DefaultPrompts()
	}

	return &Extractor{
		client:     openai.NewClientWithConfig(clientCfg),
		model:      cfg.Model,
		timeout:    cfg.Timeout,
		prompts:    prompts,
		references: references,
		logger:     logger,
	}
}

// Extract sends one image and returns the model's reply untouched
func (e *Extractor) Extract(ctx context.Context, image []byte, mimeType string) (*port.ExtractionResponse, error) {
	if len(image) == 0 {
		return nil, errors.New("image is empty")
	}
	if mimeType == "" {
		mimeType = "image/jpeg"
	}

	extraction := e.prompts.TimesheetExtraction
	userPrompt, err := renderTemplate(extraction.UserTemplate, PromptData{Holidays: e.holidayLines(ctx)})
	if err != nil {
		return nil, fmt.Errorf("failed to build prompt: %w", err)
	}

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	req := openai.ChatCompletionRequest{
		Model:       e.model,
		MaxTokens:   extraction.MaxTokens,
		Temperature: extraction.Temperature,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: extraction.System,
			},
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{
						Type: openai.ChatMessagePartTypeText,
						Text: userPrompt,
					},
					{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL:    fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(image)),
							Detail: openai.ImageURLDetailHigh,
						},
					},
				},
			},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	}

	e.logger.Debug("Requesting timesheet extraction",
		zap.String("model", e.model),
		zap.String("mime_type", mimeType),
		zap.Int("size_bytes", len(image)))

	resp, err := e.client.CreateChatCompletion(ctx, req)
	if err != nil {
		e.logger.Error("Vision API call failed", zap.Error(err))
		return nil, fmt.Errorf("vision API call failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("no response from vision API")
	}

	content := resp.Choices[0].Message.Content
	e.logger.Info("Extraction received",
		zap.String("model", resp.Model),
		zap.Int("content_length", len(content)),
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens))

	modelID := resp.Model
	if modelID == "" {
		modelID = e.model
	}
	return &port.ExtractionResponse{
		Content:          content,
		ModelID:          modelID,
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
	}, nil
}

func (e *Extractor) holidayLines(ctx context.Context) []string {
	if e.references == nil {
		return nil
	}
	snapshot, err := e.references.Load(ctx)
	if err != nil {
		e.logger.Warn("Bank holiday calendar unavailable for prompt", zap.Error(err))
		return nil
	}
	return snapshot.Holidays.PromptLines()
}

// Verify interface compliance
var _ port.Extractor = (*Extractor)(nil)
