package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/Hsiao1114/Alternative-Reality-Life-Sim/internal/httpkit"
)

// LevelTrace is below Debug, used for wire-level payload logging.
const LevelTrace = slog.Level(-8)

const (
	openaiAPIURL       = "https://api.openai.com/v1/chat/completions"
	openaiDefaultModel = "gpt-4o-mini"
)

// OpenAIClient talks to the OpenAI Chat Completions API. The neutral
// conversation becomes a role-tagged message list with the compiled
// instructions as a leading system message, and the JSON-object
// response format is requested so the model is constrained to emit a
// single JSON document.
type OpenAIClient struct {
	apiKey     string
	model      string
	baseURL    string
	retry      RetryPolicy
	httpClient *http.Client
	logger     *slog.Logger
}

// NewOpenAIClient creates an OpenAI-backed gateway client. The API key
// is per-request material supplied by the caller; it lives only as long
// as this client.
func NewOpenAIClient(apiKey string, logger *slog.Logger) *OpenAIClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &OpenAIClient{
		apiKey:  apiKey,
		model:   openaiDefaultModel,
		baseURL: openaiAPIURL,
		retry:   DefaultRetryPolicy(),
		logger:  logger.With("backend", "gpt"),
		httpClient: httpkit.NewClient(
			httpkit.WithTimeout(90 * time.Second),
		),
	}
}

// SetRetryPolicy replaces the default retry policy.
func (c *OpenAIClient) SetRetryPolicy(p RetryPolicy) { c.retry = p }

// SetHTTPClient replaces the default 90-second HTTP client.
func (c *OpenAIClient) SetHTTPClient(hc *http.Client) { c.httpClient = hc }

// Name implements Client.
func (c *OpenAIClient) Name() string { return "gpt" }

type openaiRequest struct {
	Model          string                `json:"model"`
	Messages       []openaiMessage       `json:"messages"`
	ResponseFormat *openaiResponseFormat `json:"response_format,omitempty"`
}

type openaiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openaiResponseFormat struct {
	Type string `json:"type"`
}

type openaiResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Generate implements Client.
func (c *OpenAIClient) Generate(ctx context.Context, instructions string, conversation []Message) (string, error) {
	req := openaiRequest{
		Model:          c.model,
		Messages:       convertToOpenAI(instructions, conversation),
		ResponseFormat: &openaiResponseFormat{Type: "json_object"},
	}

	jsonData, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	c.logger.Log(ctx, LevelTrace, "request payload", "json", string(jsonData))

	return c.retry.Do(ctx, c.logger, func() (string, error) {
		return c.generateOnce(ctx, jsonData)
	})
}

func (c *OpenAIClient) generateOnce(ctx context.Context, jsonData []byte) (string, error) {
	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.baseURL, bytes.NewReader(jsonData))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errBody := httpkit.ReadErrorBody(resp.Body, 4096)
		c.logger.Error("API error", "status", resp.StatusCode, "body", errBody)
		return "", &GatewayError{Backend: c.Name(), Status: resp.StatusCode, Body: errBody}
	}

	var parsed openaiResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("response contained no choices")
	}

	text := parsed.Choices[0].Message.Content
	c.logger.Log(ctx, LevelTrace, "response payload", "text", text)
	return text, nil
}

// convertToOpenAI maps the neutral conversation to OpenAI's wire roles.
// Instructions ride as a leading system message; the "model" role
// becomes "assistant".
func convertToOpenAI(instructions string, conversation []Message) []openaiMessage {
	msgs := make([]openaiMessage, 0, len(conversation)+1)
	if instructions != "" {
		msgs = append(msgs, openaiMessage{Role: "system", Content: instructions})
	}
	for _, m := range conversation {
		role := m.Role
		if role == "model" {
			role = "assistant"
		}
		msgs = append(msgs, openaiMessage{Role: role, Content: m.Content})
	}
	return msgs
}
