// Package scorer asks an OpenAI-compatible chat completion endpoint to
// extract structured problems through forced tool calls.
package scorer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

var ErrNoToolCall = errors.New("model returned no tool call")

// HTTPClient is the subset of *http.Client the scorer needs.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

type Scorer struct {
	apiKey   string
	model    string
	endpoint string
	client   HTTPClient
}

// New builds a scorer for the chat completion API at baseURL. A nil client
// gets a 60 second timeout.
func New(apiKey, baseURL, model string, client HTTPClient) *Scorer {
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	return &Scorer{
		apiKey:   apiKey,
		model:    model,
		endpoint: strings.TrimRight(baseURL, "/") + "/chat/completions",
		client:   client,
	}
}

// Tool is a function the model is forced to call.
type Tool struct {
	Name        string
	Description string
	Parameters  map[string]any
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatTool struct {
	Type     string       `json:"type"`
	Function chatFunction `json:"function"`
}

type chatFunction struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

type chatRequest struct {
	Model      string        `json:"model"`
	Messages   []chatMessage `json:"messages"`
	Tools      []chatTool    `json:"tools"`
	ToolChoice any           `json:"tool_choice"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			ToolCalls []struct {
				Function struct {
					Name      string `json:"name"`
					Arguments string `json:"arguments"`
				} `json:"function"`
			} `json:"tool_calls"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// CallTool sends the prompts with tool forced and decodes its arguments into out.
func (s *Scorer) CallTool(ctx context.Context, system, user string, tool Tool, out any) error {
	reqBody := chatRequest{
		Model: s.model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Tools: []chatTool{{
			Type:     "function",
			Function: chatFunction{Name: tool.Name, Description: tool.Description, Parameters: tool.Parameters},
		}},
		ToolChoice: map[string]any{
			"type":     "function",
			"function": map[string]string{"name": tool.Name},
		},
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("API request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("API error %d: %s", resp.StatusCode, truncate(string(body), 300))
	}

	var chatResp chatResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	if chatResp.Error != nil {
		return fmt.Errorf("model error: %s", chatResp.Error.Message)
	}

	for _, choice := range chatResp.Choices {
		for _, call := range choice.Message.ToolCalls {
			if call.Function.Name != tool.Name {
				continue
			}
			args := extractJSON(call.Function.Arguments)
			if err := json.Unmarshal([]byte(args), out); err != nil {
				return fmt.Errorf("parse %s arguments: %w", tool.Name, err)
			}
			return nil
		}
	}
	return ErrNoToolCall
}

// extractJSON strips a markdown code fence some gateways wrap arguments in.
func extractJSON(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	if idx := strings.LastIndex(text, "```"); idx != -1 {
		text = text[:idx]
	}
	return strings.TrimSpace(text)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
