package openai

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/OFFIS-RIT/pdf2bpmn/backend/pkg/ai"

	"github.com/openai/openai-go/v3"
)

var errNoChatClient = errors.New("openai chat client not configured")

func (c *GraphOpenAIClient) buildMessages(prompt string, options ai.GenerateOptions) []openai.ChatCompletionMessageParamUnion {
	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, len(options.SystemPrompts)+1)
	for _, sp := range options.SystemPrompts {
		msgs = append(msgs, openai.SystemMessage(sp))
	}
	return append(msgs, openai.UserMessage(prompt))
}

func (c *GraphOpenAIClient) complete(ctx context.Context, body openai.ChatCompletionNewParams) (string, error) {
	if c.ChatClient == nil {
		return "", errNoChatClient
	}

	rCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	response, err := c.ChatClient.Chat.Completions.New(rCtx, body)
	if err != nil {
		return "", err
	}

	c.metrics.Add(ai.ModelMetrics{
		InputTokens:  int(response.Usage.PromptTokens),
		OutputTokens: int(response.Usage.CompletionTokens),
		TotalTokens:  int(response.Usage.TotalTokens),
		DurationMs:   time.Since(start).Milliseconds(),
	})

	if len(response.Choices) == 0 {
		return "", fmt.Errorf("no choices in response from model")
	}
	message := response.Choices[0].Message.Content
	if message == "" {
		return "", fmt.Errorf("empty response from model (finish_reason: %s)", response.Choices[0].FinishReason)
	}
	return message, nil
}

// GenerateCompletion sends a single-turn prompt to the extraction model and
// returns the completion as plain text.
func (c *GraphOpenAIClient) GenerateCompletion(
	ctx context.Context,
	prompt string,
	opts ...ai.GenerateOption,
) (string, error) {
	options := ai.ApplyOptions(ai.GenerateOptions{
		Model:       c.extractionModel,
		Temperature: 0.3,
	}, opts...)

	return c.complete(ctx, openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(options.Model),
		Messages:    c.buildMessages(prompt, options),
		Temperature: openai.Float(options.Temperature),
	})
}

// GenerateCompletionWithFormat sends a prompt to the extraction model and
// unmarshals the response into out, using a JSON schema reflected from out
// to constrain the answer.
//
// Example:
//
//	var out extract.Payload
//	err := client.GenerateCompletionWithFormat(ctx, "bpmn_entities", "entities in a chunk", prompt, &out)
func (c *GraphOpenAIClient) GenerateCompletionWithFormat(
	ctx context.Context,
	name string,
	description string,
	prompt string,
	out any,
	opts ...ai.GenerateOption,
) error {
	options := ai.ApplyOptions(ai.GenerateOptions{
		Model:        c.extractionModel,
		Temperature:  0.1,
		StrictSchema: true,
	}, opts...)

	schemaParam := openai.ResponseFormatJSONSchemaJSONSchemaParam{
		Name:        name,
		Description: openai.String(description),
		Schema:      ai.GenerateSchema(out),
		Strict:      openai.Bool(options.StrictSchema),
	}

	message, err := c.complete(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(options.Model),
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{
				JSONSchema: schemaParam,
			},
		},
		Messages:    c.buildMessages(prompt, options),
		Temperature: openai.Float(options.Temperature),
	})
	if err != nil {
		return err
	}
	return ai.UnmarshalFlexible(message, out)
}
