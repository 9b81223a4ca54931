// Package suggest produces AI-generated message prompts for the compose page.
package suggest

import (
	"context"
	"errors"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/whisperbox/apiserver/config"
	"google.golang.org/api/option"
)

const suggestionPrompt = "Create a list of three open-ended and engaging questions formatted as a single string. Each question should be separated by '||'. These questions are for an anonymous social messaging platform, like Qooh.me, and should be suitable for a diverse audience. Avoid personal or sensitive topics, focusing instead on universal themes that encourage friendly interaction. For example, your output should be structured like this: 'What's a hobby you've recently started?||If you could have dinner with any historical figure, who would it be?||What's a simple thing that makes you happy?'. Ensure the questions are intriguing, foster curiosity, and contribute to a positive and welcoming conversational environment."

// Suggester generates a '||'-delimited string of suggested questions.
type Suggester interface {
	Suggest(ctx context.Context) (string, error)
}

// GeminiSuggester calls the Gemini API for suggestions.
type GeminiSuggester struct {
	apiKey string
	model  string
}

// NewGeminiSuggester constructs a suggester from config.
func NewGeminiSuggester(cfg config.GeminiConfig) (*GeminiSuggester, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("gemini api key is required")
	}
	model := cfg.Model
	if model == "" {
		model = "gemini-1.5-flash"
	}
	return &GeminiSuggester{apiKey: cfg.APIKey, model: model}, nil
}

// Suggest asks the model for three questions joined by '||'.
func (g *GeminiSuggester) Suggest(ctx context.Context) (string, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(g.apiKey))
	if err != nil {
		return "", err
	}
	defer client.Close()

	model := client.GenerativeModel(g.model)
	resp, err := model.GenerateContent(ctx, genai.Text(suggestionPrompt))
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				sb.WriteString(string(text))
			}
		}
		break
	}
	if sb.Len() == 0 {
		return "", errors.New("empty model response")
	}
	return sb.String(), nil
}
