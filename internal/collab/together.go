package collab

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"go.uber.org/zap"
)

const (
	DefaultTogetherURL = "https://api.together.xyz"
	RefinementModel    = "meta-llama/Meta-Llama-3.1-8B-Instruct-Turbo"
	ImageModel         = "black-forest-labs/FLUX.1-dev-lora"
)

// TogetherClient implements PromptRefiner and ImageGenerator against the
// Together AI API.
type TogetherClient struct {
	baseClient
	baseURL string
	apiKey  string
}

func NewTogetherClient(logger *zap.Logger, baseURL, apiKey string, opts ...Option) *TogetherClient {
	if baseURL == "" {
		baseURL = DefaultTogetherURL
	}
	return &TogetherClient{
		baseClient: newBaseClient(logger, opts),
		baseURL:    baseURL,
		apiKey:     apiKey,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content *string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func refinementMessages(prompt, instruction string) []chatMessage {
	return []chatMessage{
		{
			Role: "system",
			Content: fmt.Sprintf("Your task is to help refine prompts that will be passed to an image generation model. %s. "+
				"Only respond with the improved prompt and nothing else. Be as terse as possible, do not include quotes.", instruction),
		},
		{
			Role:    "user",
			Content: fmt.Sprintf("Write a more detailed prompt about \"%s\"", prompt),
		},
	}
}

// Refine asks the chat model for a more detailed prompt. A non-2xx answer or
// a reply without content falls back to the original prompt.
func (c *TogetherClient) Refine(ctx context.Context, prompt string, instruction *string) (string, error) {
	if instruction == nil {
		return prompt, nil
	}

	reqBody, err := json.Marshal(chatRequest{
		Model:    RefinementModel,
		Messages: refinementMessages(prompt, *instruction),
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal refinement request: %w", err)
	}

	body, err := c.retryHTTPRequest(ctx, "Refining prompt...", c.newRequest(ctx, "/v1/chat/completions", reqBody))
	if err != nil {
		if IsStatus(err) {
			c.logger.Sugar().Warnw("Prompt refinement failed, using original prompt", "error", err)
			return prompt, nil
		}
		return "", fmt.Errorf("failed to refine prompt: %w", err)
	}

	var resp chatResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("failed to parse refinement response: %w", err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == nil {
		return prompt, nil
	}
	return *resp.Choices[0].Message.Content, nil
}

type imageLora struct {
	Path  string  `json:"path"`
	Scale float32 `json:"scale"`
}

type imageRequest struct {
	Model          string      `json:"model"`
	Prompt         string      `json:"prompt"`
	Width          uint32      `json:"width"`
	Height         uint32      `json:"height"`
	Steps          uint32      `json:"steps"`
	Seed           uint32      `json:"seed"`
	ResponseFormat string      `json:"response_format"`
	ImageLoras     []imageLora `json:"image_loras"`
}

type imageResponse struct {
	Data []struct {
		B64JSON string `json:"b64_json"`
	} `json:"data"`
}

func (c *TogetherClient) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	reqBody, err := json.Marshal(imageRequest{
		Model:          ImageModel,
		Prompt:         req.Prompt,
		Width:          req.Width,
		Height:         req.Height,
		Steps:          req.Steps,
		Seed:           req.Seed,
		ResponseFormat: "base64",
		ImageLoras:     []imageLora{{Path: req.LoraPath, Scale: req.LoraScale}},
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal image request: %w", err)
	}

	c.logger.Sugar().Infow("Requesting image generation", "lora", req.LoraPath, "seed", req.Seed, "steps", req.Steps)
	body, err := c.retryHTTPRequest(ctx, "Generating image...", c.newRequest(ctx, "/v1/images/generations", reqBody))
	if err != nil {
		return "", fmt.Errorf("together image generation failed: %w", err)
	}

	var resp imageResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("failed to parse image response: %w", err)
	}
	if len(resp.Data) == 0 || resp.Data[0].B64JSON == "" {
		return "", fmt.Errorf("missing image data in response")
	}
	return resp.Data[0].B64JSON, nil
}

func (c *TogetherClient) newRequest(ctx context.Context, path string, body []byte) func() (*http.Request, error) {
	return func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
		return req, nil
	}
}
