package gemini

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func candidateResponse(text string) map[string]any {
	return map[string]any{
		"candidates": []map[string]any{
			{"content": map[string]any{
				"parts": []map[string]string{{"text": text}},
			}},
		},
	}
}

func TestClient_Draft(t *testing.T) {
	t.Run("returns trimmed candidate text", func(t *testing.T) {
		var gotPath, gotKey string
		var gotPayload map[string]any

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotPath = r.URL.Path
			gotKey = r.Header.Get("x-goog-api-key")
			if err := json.NewDecoder(r.Body).Decode(&gotPayload); err != nil {
				t.Errorf("decoding payload: %v", err)
			}
			json.NewEncoder(w).Encode(candidateResponse("\n  Shipped a thing today.  \n"))
		}))
		t.Cleanup(server.Close)

		client := NewClient("test-key", "gemini-2.0-flash")
		client.SetBaseURL(server.URL)

		text, err := client.Draft(context.Background(), DraftRequest{
			Topic:    "shipping side projects",
			Category: "golang",
			Tone:     "casual",
			MaxWords: 200,
		})
		if err != nil {
			t.Fatalf("Draft() error = %v", err)
		}
		if text != "Shipped a thing today." {
			t.Errorf("text = %q, want the trimmed candidate", text)
		}
		if gotPath != "/models/gemini-2.0-flash:generateContent" {
			t.Errorf("path = %q", gotPath)
		}
		if gotKey != "test-key" {
			t.Errorf("x-goog-api-key = %q", gotKey)
		}

		// The user prompt carries every non-empty request field.
		contents := gotPayload["contents"].([]any)
		parts := contents[0].(map[string]any)["parts"].([]any)
		prompt := parts[0].(map[string]any)["text"].(string)
		for _, want := range []string{"shipping side projects", "golang", "casual", "200 words"} {
			if !strings.Contains(prompt, want) {
				t.Errorf("prompt missing %q:\n%s", want, prompt)
			}
		}
		if _, ok := gotPayload["system_instruction"]; !ok {
			t.Error("payload missing system_instruction")
		}
	})

	t.Run("requires an API key", func(t *testing.T) {
		client := NewClient("", "gemini-2.0-flash")
		if _, err := client.Draft(context.Background(), DraftRequest{Topic: "anything"}); err == nil {
			t.Error("Draft() with empty key succeeded, want error")
		}
	})

	t.Run("requires a topic", func(t *testing.T) {
		client := NewClient("test-key", "gemini-2.0-flash")
		if _, err := client.Draft(context.Background(), DraftRequest{Topic: "   "}); err == nil {
			t.Error("Draft() with blank topic succeeded, want error")
		}
	})

	t.Run("non-200 surfaces status and body", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, `{"error":{"message":"quota exhausted"}}`, http.StatusTooManyRequests)
		}))
		t.Cleanup(server.Close)

		client := NewClient("test-key", "gemini-2.0-flash")
		client.SetBaseURL(server.URL)

		_, err := client.Draft(context.Background(), DraftRequest{Topic: "anything"})
		if err == nil {
			t.Fatal("Draft() on 429 succeeded, want error")
		}
		if !strings.Contains(err.Error(), "429") || !strings.Contains(err.Error(), "quota exhausted") {
			t.Errorf("error = %v, want status and body", err)
		}
	})

	t.Run("empty candidates is an error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]any{"candidates": []any{}})
		}))
		t.Cleanup(server.Close)

		client := NewClient("test-key", "gemini-2.0-flash")
		client.SetBaseURL(server.URL)

		if _, err := client.Draft(context.Background(), DraftRequest{Topic: "anything"}); err == nil {
			t.Error("Draft() with no candidates succeeded, want error")
		}
	})
}

func TestDraftRequest_prompt(t *testing.T) {
	minimal := DraftRequest{Topic: "hiring well"}
	p := minimal.prompt()
	if !strings.Contains(p, "hiring well") {
		t.Errorf("prompt missing topic: %q", p)
	}
	for _, absent := range []string{"Tone:", "category", "structure", "example"} {
		if strings.Contains(p, absent) {
			t.Errorf("minimal prompt mentions %q: %q", absent, p)
		}
	}
}
