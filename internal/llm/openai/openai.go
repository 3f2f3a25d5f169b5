// ABOUTME: OpenAI implementation of the llm.Inference capability
// ABOUTME: Adapts Chat Completions into Classify (strict JSON) and Answer (free text) calls

package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/chorushq/chorus-orchestrator/internal/llm"
)

// Answers are kept short; agents and the fallback feed a synthesis prompt,
// not an end-user display.
const answerSystemPrompt = "Generate the answer within 750 characters."

const classifySystemPrompt = `You classify user queries onto business category tags.
Respond with strict JSON only, no prose and no code fences:
{"categories": ["..."], "reasoning": "..."}`

// Options configure the OpenAI inference client.
type Options struct {
	APIKey      string
	Model       string
	Temperature float64
}

// Client wraps the OpenAI Chat Completions API behind llm.Inference.
type Client struct {
	client *openai.Client
	opts   Options
}

// NewClient creates an OpenAI inference client. With no options the SDK
// reads OPENAI_API_KEY from the environment.
func NewClient(optFns ...func(o *Options)) *Client {
	opts := Options{
		Model:       openai.ChatModelGPT4oMini,
		Temperature: 1.0,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}

	client := openai.NewClient(clientOpts...)
	return &Client{client: &client, opts: opts}
}

// Answer implements llm.Inference.
func (c *Client) Answer(ctx context.Context, prompt string) (string, error) {
	return c.complete(ctx, answerSystemPrompt, prompt)
}

// Classify implements llm.Inference. The raw model output is preserved on
// the returned Classification even when it parses cleanly.
func (c *Client) Classify(ctx context.Context, prompt string) (*llm.Classification, error) {
	raw, err := c.complete(ctx, classifySystemPrompt, prompt)
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Categories []string `json:"categories"`
		Reasoning  string   `json:"reasoning"`
	}
	if err := json.Unmarshal([]byte(stripFences(raw)), &parsed); err != nil {
		return nil, fmt.Errorf("parsing classification %q: %w", raw, err)
	}

	return &llm.Classification{
		Categories: parsed.Categories,
		Reasoning:  parsed.Reasoning,
		Raw:        raw,
	}, nil
}

func (c *Client) complete(ctx context.Context, system, user string) (string, error) {
	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(user),
		},
		Model:       c.opts.Model,
		Temperature: openai.Float(c.opts.Temperature),
	})
	if err != nil {
		return "", fmt.Errorf("openai api error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices returned")
	}
	return resp.Choices[0].Message.Content, nil
}

// stripFences tolerates models that wrap JSON in markdown code fences
// despite the instructions.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// Ensure Client implements llm.Inference.
var _ llm.Inference = (*Client)(nil)
