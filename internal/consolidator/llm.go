package consolidator

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

var thinkBlockPattern = regexp.MustCompile(`(?s)<think>.*?</think>`)

// ExtractJSON cleans a raw LLM reply before parsing, per spec.md §4.7:
//  1. strip any <think>...</think> block some models emit,
//  2. take the inside of a ```json fenced block if present,
//  3. otherwise take the inside of a plain fenced block starting with {,
//  4. otherwise take the substring from the first { to the last }.
func ExtractJSON(raw string) string {
	cleaned := thinkBlockPattern.ReplaceAllString(raw, "")
	cleaned = strings.TrimSpace(cleaned)

	if inner, ok := fencedBlock(cleaned, "```json"); ok {
		return strings.TrimSpace(inner)
	}
	if inner, ok := fencedBlock(cleaned, "```"); ok && strings.HasPrefix(strings.TrimSpace(inner), "{") {
		return strings.TrimSpace(inner)
	}

	first := strings.Index(cleaned, "{")
	last := strings.LastIndex(cleaned, "}")
	if first >= 0 && last > first {
		return cleaned[first : last+1]
	}
	return cleaned
}

func fencedBlock(s, fence string) (string, bool) {
	start := strings.Index(s, fence)
	if start < 0 {
		return "", false
	}
	rest := s[start+len(fence):]
	if idx := strings.Index(rest, "\n"); idx >= 0 {
		rest = rest[idx+1:]
	}
	end := strings.Index(rest, "```")
	if end < 0 {
		return "", false
	}
	return rest[:end], true
}

// callLLM issues the chat-completions request, extracts and parses the
// JSON response, and performs exactly one retry on unparseable JSON or a
// missing top-level field, per spec.md §4.7.
func (c *Consolidator) callLLM(ctx context.Context, userPrompt string) (llmResponse, openai.Usage, error) {
	messages := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
		{Role: openai.ChatMessageRoleUser, Content: userPrompt},
	}

	resp, err := c.chatCompletion(ctx, messages)
	if err != nil {
		return llmResponse{}, openai.Usage{}, err
	}

	parsed, parseErr := parseLLMResponse(resp.Choices[0].Message.Content)
	if parseErr == nil {
		return parsed, resp.Usage, nil
	}

	messages = append(messages,
		openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: resp.Choices[0].Message.Content},
		openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: jsonNudge},
	)
	retryResp, err := c.chatCompletion(ctx, messages)
	if err != nil {
		return llmResponse{}, openai.Usage{}, err
	}
	parsed, parseErr = parseLLMResponse(retryResp.Choices[0].Message.Content)
	if parseErr != nil {
		return llmResponse{}, openai.Usage{}, fmt.Errorf("consolidator: LLM reply not valid JSON after retry: %w", parseErr)
	}
	return parsed, retryResp.Usage, nil
}

func (c *Consolidator) chatCompletion(ctx context.Context, messages []openai.ChatCompletionMessage) (openai.ChatCompletionResponse, error) {
	req := openai.ChatCompletionRequest{
		Model:       c.cfg.Model,
		Messages:    messages,
		Temperature: float32(c.cfg.Temperature),
		MaxTokens:   c.cfg.MaxTokens,
	}
	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return openai.ChatCompletionResponse{}, fmt.Errorf("consolidator: chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return openai.ChatCompletionResponse{}, fmt.Errorf("consolidator: chat completion returned no choices")
	}
	return resp, nil
}

func parseLLMResponse(raw string) (llmResponse, error) {
	cleaned := ExtractJSON(raw)
	var parsed llmResponse
	if err := json.Unmarshal([]byte(cleaned), &parsed); err != nil {
		return llmResponse{}, fmt.Errorf("unmarshal: %w", err)
	}
	if parsed.BankFiles == nil || parsed.Synthesis == "" {
		return llmResponse{}, fmt.Errorf("missing required top-level fields")
	}
	return parsed, nil
}
