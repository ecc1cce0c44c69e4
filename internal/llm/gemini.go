package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/Hsiao1114/Alternative-Reality-Life-Sim/internal/httpkit"
)

const (
	geminiAPIURLFormat = "https://generativelanguage.googleapis.com/v1beta/models/%s:generateContent"
	geminiDefaultModel = "gemini-2.0-flash"
)

// GeminiClient talks to the Gemini generateContent API. The neutral
// conversation becomes content parts with the compiled instructions in
// the separate systemInstruction field, and a schema-constrained JSON
// output mode is requested via generationConfig.
type GeminiClient struct {
	apiKey         string
	model          string
	baseURL        string
	responseSchema any
	retry          RetryPolicy
	httpClient     *http.Client
	logger         *slog.Logger
}

// NewGeminiClient creates a Gemini-backed gateway client. responseSchema
// is the structured-output schema the backend is asked to honor; nil
// requests plain JSON mode without schema constraints.
func NewGeminiClient(apiKey string, responseSchema any, logger *slog.Logger) *GeminiClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &GeminiClient{
		apiKey:         apiKey,
		model:          geminiDefaultModel,
		baseURL:        fmt.Sprintf(geminiAPIURLFormat, geminiDefaultModel),
		responseSchema: responseSchema,
		retry:          DefaultRetryPolicy(),
		logger:         logger.With("backend", "gemini"),
		httpClient: httpkit.NewClient(
			httpkit.WithTimeout(90 * time.Second),
		),
	}
}

// SetRetryPolicy replaces the default retry policy.
func (c *GeminiClient) SetRetryPolicy(p RetryPolicy) { c.retry = p }

// SetHTTPClient replaces the default 90-second HTTP client.
func (c *GeminiClient) SetHTTPClient(hc *http.Client) { c.httpClient = hc }

// Name implements Client.
func (c *GeminiClient) Name() string { return "gemini" }

type geminiRequest struct {
	SystemInstruction *geminiContent          `json:"systemInstruction,omitempty"`
	Contents          []geminiContent         `json:"contents"`
	GenerationConfig  *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiGenerationConfig struct {
	ResponseMIMEType string `json:"response_mime_type,omitempty"`
	ResponseSchema   any    `json:"response_schema,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

// Generate implements Client.
func (c *GeminiClient) Generate(ctx context.Context, instructions string, conversation []Message) (string, error) {
	req := geminiRequest{
		Contents: convertToGemini(conversation),
		GenerationConfig: &geminiGenerationConfig{
			ResponseMIMEType: "application/json",
			ResponseSchema:   c.responseSchema,
		},
	}
	if instructions != "" {
		req.SystemInstruction = &geminiContent{
			Parts: []geminiPart{{Text: instructions}},
		}
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

func (c *GeminiClient) generateOnce(ctx context.Context, jsonData []byte) (string, error) {
	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.baseURL, bytes.NewReader(jsonData))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", c.apiKey)

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

	var parsed geminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if len(parsed.Candidates) == 0 {
		return "", fmt.Errorf("response contained no candidates")
	}

	var sb strings.Builder
	for _, part := range parsed.Candidates[0].Content.Parts {
		sb.WriteString(part.Text)
	}
	text := sb.String()
	c.logger.Log(ctx, LevelTrace, "response payload", "text", text)
	return text, nil
}

// convertToGemini maps the neutral conversation to Gemini's content
// list. Gemini already uses "user"/"model" roles, so this is a shape
// conversion only.
func convertToGemini(conversation []Message) []geminiContent {
	contents := make([]geminiContent, 0, len(conversation))
	for _, m := range conversation {
		contents = append(contents, geminiContent{
			Role:  m.Role,
			Parts: []geminiPart{{Text: m.Content}},
		})
	}
	return contents
}
