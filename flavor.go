package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"
)

const (
	defaultGeminiModel   = "gemini-2.5-flash"
	defaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"

	factOffline  = "Magnetic fields are invisible, but strong. (AI offline)"
	factFallback = "Magnetism holds the universe together."
	questDefault = "Explore the magnetic fields and find the hidden core."
	questFailed  = "A mysterious magnetic anomaly has been detected."
)

// Flavor generates loading-screen facts and quest descriptions
type Flavor struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
}

// NewFlavor creates a flavor text generator. An empty apiKey keeps it offline.
func NewFlavor(apiKey, model string) *Flavor {
	if model == "" {
		model = defaultGeminiModel
	}
	return &Flavor{
		apiKey:  apiKey,
		model:   model,
		baseURL: defaultGeminiBaseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// Online reports whether an API key is configured
func (f *Flavor) Online() bool {
	return f.apiKey != ""
}

// DailyFact returns a one-sentence fact about magnets
func (f *Flavor) DailyFact(ctx context.Context) string {
	if !f.Online() {
		return factOffline
	}
	text, err := f.generate(ctx, "Generate a short, fun, one-sentence fact about magnets or physics for a game loading screen.")
	if err != nil {
		log.Printf("flavor: daily fact: %v", err)
		return factFallback
	}
	if text == "" {
		return factOffline
	}
	return text
}

// QuestDescription returns a two-sentence daily quest description for theme
func (f *Flavor) QuestDescription(ctx context.Context, theme string) string {
	if !f.Online() {
		return fmt.Sprintf("%s (AI offline - theme: %s)", questDefault, theme)
	}
	text, err := f.generate(ctx, "Create a mysterious and exciting 2-sentence description for a daily quest in a game about magnetic cubes. Theme: "+theme)
	if err != nil {
		log.Printf("flavor: quest description: %v", err)
		return questFailed
	}
	if text == "" {
		return questDefault
	}
	return text
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

// generate calls generateContent and returns the concatenated text parts
func (f *Flavor) generate(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(geminiRequest{
		Contents: []geminiContent{{Parts: []geminiPart{{Text: prompt}}}},
	})
	if err != nil {
		return "", err
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", f.baseURL, f.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", f.apiKey)

	resp, err := f.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("gemini returned status %d", resp.StatusCode)
	}

	var gr geminiResponse
	if err := json.Unmarshal(raw, &gr); err != nil {
		return "", fmt.Errorf("decode gemini response: %w", err)
	}
	if len(gr.Candidates) == 0 {
		return "", nil
	}
	var sb strings.Builder
	for _, p := range gr.Candidates[0].Content.Parts {
		sb.WriteString(p.Text)
	}
	return strings.TrimSpace(sb.String()), nil
}
