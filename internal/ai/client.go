// Package ai wraps the external AI collaborator used for invoice and receipt
// digitization and entity summarization. Calls are synchronous and blocking;
// single-document calls run under the configured timeout.
package ai

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	openai "github.com/sashabaranov/go-openai"

	"github.com/platewise/backoffice/internal/config"
	"github.com/platewise/backoffice/internal/domain"
)

// Extractor is the AI collaborator contract consumed by the workflow
// services. Implementations must treat any unparseable response as a hard
// error for that call.
type Extractor interface {
	ExtractInvoice(ctx context.Context, image []byte, mime string) (*domain.ExtractionPayload, error)
	ExtractReceipt(ctx context.Context, image []byte, mime string) (*domain.ReceiptExtraction, error)
	SummarizeEntity(ctx context.Context, prompt string) (*domain.InsightData, error)
}

type Client struct {
	api       *openai.Client
	model     string
	timeout   time.Duration
	maxTokens int
}

// NewClient builds the OpenAI-backed extractor. A missing credential is a
// configuration error surfaced at construction, never silently retried.
func NewClient(cfg config.AIConfig) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, domain.ErrMissingCredential
	}

	apiCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		apiCfg.BaseURL = cfg.BaseURL
	}

	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 90 * time.Second
	}

	return &Client{
		api:       openai.NewClientWithConfig(apiCfg),
		model:     cfg.Model,
		timeout:   timeout,
		maxTokens: cfg.MaxTokens,
	}, nil
}

// ExtractInvoice sends the invoice image for line-item extraction.
func (c *Client) ExtractInvoice(ctx context.Context, image []byte, mime string) (*domain.ExtractionPayload, error) {
	raw, err := c.completeWithImage(ctx, invoiceSystemPrompt, invoicePrompt, image, mime)
	if err != nil {
		return nil, err
	}

	var payload domain.ExtractionPayload
	if err := decodeResponse(raw, &payload); err != nil {
		log.Error().Err(err).Str("response", truncate(raw, 2000)).Msg("invoice extraction returned malformed JSON")
		return nil, err
	}
	return &payload, nil
}

// ExtractReceipt sends the Z-read image for total-sales extraction.
func (c *Client) ExtractReceipt(ctx context.Context, image []byte, mime string) (*domain.ReceiptExtraction, error) {
	raw, err := c.completeWithImage(ctx, receiptSystemPrompt, receiptPrompt, image, mime)
	if err != nil {
		return nil, err
	}

	var receipt domain.ReceiptExtraction
	if err := decodeResponse(raw, &receipt); err != nil {
		log.Error().Err(err).Str("response", truncate(raw, 2000)).Msg("receipt extraction returned malformed JSON")
		return nil, err
	}
	return &receipt, nil
}

// SummarizeEntity sends one entity's metrics payload for insight generation.
func (c *Client) SummarizeEntity(ctx context.Context, prompt string) (*domain.InsightData, error) {
	raw, err := c.complete(ctx, insightSystemPrompt, prompt+"\n\n"+insightShape)
	if err != nil {
		return nil, err
	}

	var data domain.InsightData
	if err := decodeResponse(raw, &data); err != nil {
		log.Error().Err(err).Str("response", truncate(raw, 2000)).Msg("insight summarization returned malformed JSON")
		return nil, err
	}
	return &data, nil
}

func (c *Client) complete(ctx context.Context, system, user string) (string, error) {
	return c.chat(ctx, system, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: user,
	})
}

func (c *Client) completeWithImage(ctx context.Context, system, user string, image []byte, mime string) (string, error) {
	if len(image) == 0 {
		return "", fmt.Errorf("image bytes required")
	}
	if mime == "" {
		return "", fmt.Errorf("image MIME type required")
	}

	return c.chat(ctx, system, openai.ChatCompletionMessage{
		Role: openai.ChatMessageRoleUser,
		MultiContent: []openai.ChatMessagePart{
			{Type: openai.ChatMessagePartTypeText, Text: user},
			{
				Type: openai.ChatMessagePartTypeImageURL,
				ImageURL: &openai.ChatMessageImageURL{
					URL: dataURL(mime, image),
				},
			},
		},
	})
}

func (c *Client) chat(ctx context.Context, system string, user openai.ChatCompletionMessage) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: 0.1,
		MaxTokens:   c.maxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			user,
		},
	})
	if err != nil {
		return "", fmt.Errorf("AI request failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("AI returned no choices")
	}

	return resp.Choices[0].Message.Content, nil
}

func dataURL(mime string, b []byte) string {
	return fmt.Sprintf("data:%s;base64,%s", mime, base64.StdEncoding.EncodeToString(b))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
