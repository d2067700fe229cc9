// Package gemini is a thin wrapper over the Gemini generateContent API
// used to draft post text. Prompt construction stays deliberately
// simple — the output is a starting point the user edits, not a
// finished post.
package gemini

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

const defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

const systemPrompt = `You are a LinkedIn content strategist. Write engaging LinkedIn posts that:
- Sound authentic and human (not corporate or AI-generated)
- Open with a strong hook in the first line
- Use short paragraphs and line breaks for readability
- Include a clear takeaway or call to action
- Are between 150-300 words unless told otherwise
- Avoid hashtags unless specifically asked
- Don't use emojis excessively (1-2 max if any)

Return ONLY the post text, nothing else. No preamble, no "Here's your post:", just the raw post content.`

// Client calls the Gemini API.
type Client struct {
	httpClient *http.Client
	apiKey     string
	model      string
	baseURL    string
}

// NewClient creates a drafts client for the given API key and model.
func NewClient(apiKey, model string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 60 * time.Second},
		apiKey:     apiKey,
		model:      model,
		baseURL:    defaultBaseURL,
	}
}

// SetBaseURL overrides the API endpoint, for tests.
func (c *Client) SetBaseURL(u string) { c.baseURL = u }

// DraftRequest describes the post to generate. Only Topic is required.
type DraftRequest struct {
	Topic    string
	Category string
	Tone     string
	Template string
	Example  string
	MaxWords int
}

func (r DraftRequest) prompt() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Write a LinkedIn post about: %s\n", r.Topic)
	if r.Category != "" {
		fmt.Fprintf(&b, "Content category/channel: %s\n", r.Category)
	}
	if r.Tone != "" {
		fmt.Fprintf(&b, "Tone: %s\n", r.Tone)
	}
	if r.Template != "" {
		fmt.Fprintf(&b, "Follow this structure:\n%s\n", r.Template)
	}
	if r.Example != "" {
		fmt.Fprintf(&b, "Match the style of this example post:\n%s\n", r.Example)
	}
	if r.MaxWords > 0 {
		fmt.Fprintf(&b, "Keep it under roughly %d words.\n", r.MaxWords)
	}
	return b.String()
}

// Draft generates post text for the request.
func (c *Client) Draft(ctx context.Context, r DraftRequest) (string, error) {
	if c.apiKey == "" {
		return "", fmt.Errorf("GEMINI_API_KEY is not set")
	}
	if strings.TrimSpace(r.Topic) == "" {
		return "", fmt.Errorf("topic is required")
	}

	payload := map[string]any{
		"system_instruction": map[string]any{
			"parts": []map[string]string{{"text": systemPrompt}},
		},
		"contents": []map[string]any{
			{"parts": []map[string]string{{"text": r.prompt()}}},
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encoding request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent", c.baseURL, c.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("calling Gemini API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		text, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("Gemini API returned HTTP %d: %s", resp.StatusCode, text)
	}

	var data struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}

	if len(data.Candidates) == 0 || len(data.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("Gemini API returned no candidates")
	}
	return strings.TrimSpace(data.Candidates[0].Content.Parts[0].Text), nil
}
