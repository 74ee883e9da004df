package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultGroqURL = "https://api.groq.com/openai/v1/chat/completions"

// DefaultModel is the summarization model requested from Groq.
const DefaultModel = "llama3-8b-8192"

const maxContentLen = 8000

const summaryPrompt = `Please provide a conversational summary of the following email that would sound natural when read aloud. Write it as if you're an AI assistant directly informing the user about their current situation based ONLY on this specific email. Use direct, helpful language like "You have..." or "You've received..." rather than "The email says...". Include specific details like names, amounts, dates, and numbers in a natural way. Only summarize the content of this specific email - do not reference or include information from any previous emails or context. Do NOT start with introductory phrases like "Here's a conversational summary:" - just start directly with the information.

Focus on highlighting what's most important for the user to know - prioritize urgent actions, deadlines, amounts, key names, and critical information.

Email content:
%s

Write a conversational summary in 2-3 sentences that sounds like an AI assistant directly informing the user about their current situation based ONLY on this email.`

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// GroqClient calls the Groq OpenAI-compatible chat completions API.
type GroqClient struct {
	APIKey  string
	Model   string
	BaseURL string
	http    *http.Client
}

// NewGroqClient creates a client with the default endpoint and model.
func NewGroqClient(apiKey string) *GroqClient {
	return &GroqClient{
		APIKey:  apiKey,
		Model:   DefaultModel,
		BaseURL: defaultGroqURL,
		http:    &http.Client{Timeout: 60 * time.Second},
	}
}

// Summarize asks the model for a read-aloud summary of the email content.
func (c *GroqClient) Summarize(ctx context.Context, emailContent string) (string, error) {
	if len(emailContent) > maxContentLen {
		emailContent = emailContent[:maxContentLen]
	}

	body, err := json.Marshal(chatRequest{
		Model:       c.Model,
		Messages:    []chatMessage{{Role: "user", Content: fmt.Sprintf(summaryPrompt, emailContent)}},
		Temperature: 0.3,
		MaxTokens:   200,
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("groq request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("Groq API error: %d - %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}

	var result chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode groq response: %w", err)
	}
	if len(result.Choices) == 0 {
		return "", fmt.Errorf("groq returned no choices")
	}
	return strings.TrimSpace(result.Choices[0].Message.Content), nil
}
