// File: internal/infra/adapters/ai/receipt_parser.go
package ai

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"

	"goshopper-backend/internal/domain/model"
	"goshopper-backend/internal/domain/ports/adapter"
)

// Compile-time assurance this adapter satisfies the port
var _ adapter.ReceiptParser = (*OpenAIReceiptParser)(nil)

const receiptPrompt = `Extract the line items from this shopping receipt.
Respond with only a JSON object, no prose and no code fences, shaped as:
{"store_name": string, "currency": "USD"|"CDF", "total": integer minor units,
 "items": [{"name": string, "quantity": number, "unit_price": integer minor units, "total": integer minor units}]}
Use the receipt's printed totals. If a field is unreadable, use 0 or "".`

// OpenAIReceiptParser implements adapter.ReceiptParser with a vision call
// to the Chat Completions API.
type OpenAIReceiptParser struct {
	client openai.Client
	model  string
}

func NewOpenAIReceiptParser(apiKey, model string) (*OpenAIReceiptParser, error) {
	if apiKey == "" {
		return nil, errors.New("openai api key empty")
	}
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &OpenAIReceiptParser{
		client: openai.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
	}, nil
}

func (p *OpenAIReceiptParser) Parse(ctx context.Context, imageURL string) (*model.ParsedReceipt, error) {
	if imageURL == "" {
		return nil, errors.New("receipt image url empty")
	}

	resp, err := p.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(p.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage([]openai.ChatCompletionContentPartUnionParam{
				openai.TextContentPart(receiptPrompt),
				openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{URL: imageURL}),
			}),
		},
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("no choice content")
	}

	parsed, err := decodeReceipt(resp.Choices[0].Message.Content)
	if err != nil {
		return nil, err
	}
	parsed.ScannedAt = time.Now().UTC()
	return parsed, nil
}

// decodeReceipt tolerates models that wrap the JSON in a fenced block
// despite the prompt.
func decodeReceipt(content string) (*model.ParsedReceipt, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	var out model.ParsedReceipt
	if err := json.Unmarshal([]byte(content), &out); err != nil {
		return nil, errors.New("parser returned malformed receipt payload")
	}
	return &out, nil
}
