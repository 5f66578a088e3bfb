package ai

import (
	"bufio"
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	defaultAnthropicBaseURL = "https://api.anthropic.com/v1"
	anthropicAPIVersion     = "2023-06-01"
	defaultMaxTokens        = 4096
)

// AnthropicClient calls the Anthropic Messages API.
type AnthropicClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewAnthropicClient constructs a client with the provided API key.
func NewAnthropicClient(apiKey string) (*AnthropicClient, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, fmt.Errorf("anthropic api key required")
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	// Long prompts can take a while before first byte; streaming bodies can
	// be long-lived, so the overall timeout stays off and ctx governs it.
	transport.ResponseHeaderTimeout = 120 * time.Second
	return &AnthropicClient{
		apiKey:     apiKey,
		baseURL:    defaultAnthropicBaseURL,
		httpClient: &http.Client{Transport: transport},
	}, nil
}

// WithBaseURL overrides the API endpoint. Used by tests.
func (c *AnthropicClient) WithBaseURL(baseURL string) *AnthropicClient {
	c.baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	return c
}

// Complete returns the full generated text for a request.
func (c *AnthropicClient) Complete(ctx context.Context, req Request) (string, error) {
	resp, err := c.send(ctx, req, false)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var out messagesResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	for _, block := range out.Content {
		if block.Type == "text" {
			return block.Text, nil
		}
	}
	return "", fmt.Errorf("empty response from anthropic")
}

// StreamComplete streams text deltas through onDelta and returns the
// accumulated full text once the stream is exhausted.
func (c *AnthropicClient) StreamComplete(ctx context.Context, req Request, onDelta func(delta string) error) (string, error) {
	resp, err := c.send(ctx, req, true)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var full strings.Builder
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data: "))
		if data == "[DONE]" {
			break
		}
		var event streamEvent
		if err := json.Unmarshal([]byte(data), &event); err != nil {
			continue
		}
		switch event.Type {
		case "content_block_delta":
			if event.Delta == nil || event.Delta.Type != "text_delta" || event.Delta.Text == "" {
				continue
			}
			full.WriteString(event.Delta.Text)
			if onDelta != nil {
				if err := onDelta(event.Delta.Text); err != nil {
					return full.String(), fmt.Errorf("stream consumer: %w", err)
				}
			}
		case "error":
			msg := "stream error"
			if event.Error != nil && event.Error.Message != "" {
				msg = event.Error.Message
			}
			return full.String(), fmt.Errorf("anthropic stream error: %s", msg)
		case "message_stop":
			return full.String(), nil
		}
	}
	if err := scanner.Err(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return full.String(), ctxErr
		}
		return full.String(), fmt.Errorf("read stream: %w", err)
	}
	return full.String(), nil
}

func (c *AnthropicClient) send(ctx context.Context, req Request, stream bool) (*http.Response, error) {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	body := messagesRequest{
		Model:     req.Model,
		MaxTokens: maxTokens,
		System:    req.System,
		Messages:  convertMessages(req.Messages),
		Stream:    stream,
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/messages", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.apiKey)
	httpReq.Header.Set("anthropic-version", anthropicAPIVersion)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("anthropic request: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		var errResp errorResponse
		_ = json.Unmarshal(errBody, &errResp)
		if errResp.Error.Message != "" {
			return nil, fmt.Errorf("anthropic api error %d: %s", resp.StatusCode, errResp.Error.Message)
		}
		return nil, fmt.Errorf("anthropic api error %d: %s", resp.StatusCode, strings.TrimSpace(string(errBody)))
	}
	return resp, nil
}

func convertMessages(messages []Message) []wireMessage {
	out := make([]wireMessage, 0, len(messages))
	for _, msg := range messages {
		if len(msg.Images) == 0 {
			out = append(out, wireMessage{Role: msg.Role, Content: msg.Content})
			continue
		}
		blocks := make([]contentBlock, 0, len(msg.Images)+1)
		for _, img := range msg.Images {
			blocks = append(blocks, contentBlock{
				Type: "image",
				Source: &imageSource{
					Type:      "base64",
					MediaType: img.MediaType,
					Data:      base64.StdEncoding.EncodeToString(img.Data),
				},
			})
		}
		if msg.Content != "" {
			blocks = append(blocks, contentBlock{Type: "text", Text: msg.Content})
		}
		out = append(out, wireMessage{Role: msg.Role, Content: blocks})
	}
	return out
}

// Anthropic wire types.

type messagesRequest struct {
	Model     string        `json:"model"`
	MaxTokens int           `json:"max_tokens"`
	System    string        `json:"system,omitempty"`
	Messages  []wireMessage `json:"messages"`
	Stream    bool          `json:"stream,omitempty"`
}

type wireMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"` // string or []contentBlock
}

type contentBlock struct {
	Type   string       `json:"type"`
	Text   string       `json:"text,omitempty"`
	Source *imageSource `json:"source,omitempty"`
}

type imageSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

type messagesResponse struct {
	Content    []contentBlock `json:"content"`
	StopReason string         `json:"stop_reason"`
}

type streamEvent struct {
	Type  string       `json:"type"`
	Delta *streamDelta `json:"delta,omitempty"`
	Error *apiError    `json:"error,omitempty"`
}

type streamDelta struct {
	Type string `json:"type,omitempty"`
	Text string `json:"text,omitempty"`
}

type apiError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error apiError `json:"error"`
}
