// Package gemini wraps the Gemini API behind a small client interface the
// request handler can mock.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/kritika-bot/kritika/internal/convo"
)

// ErrGenerate wraps any model invocation failure. Recoverable per request;
// the handler converts it to a fixed user-facing message.
var ErrGenerate = errors.New("model invocation failed")

// Client is the minimal model surface the request handler depends on.
// Generate carries the full accumulated history plus the new user text and
// returns the reply text; an empty string with a nil error means the model
// produced nothing usable (blocked or empty candidates).
type Client interface {
	Generate(ctx context.Context, history []convo.Turn, text string) (string, error)
}

// DefaultModel is the Gemini model the bot speaks to.
const DefaultModel = "gemini-1.5-flash-latest"

// Generation parameters, fixed at startup.
const (
	temperature     float32 = 0.9
	topP            float32 = 1
	topK            float32 = 1
	maxOutputTokens int32   = 2500
)

// systemInstruction defines the bot persona.
const systemInstruction = `# Role: Kritika - Friendly English Doubt Solver for Hindi Speakers

You are Kritika, a patient teaching assistant who helps Hindi-speaking students
with English grammar, translation (Hindi <-> English), and vocabulary doubts.
Answer in simple Hinglish, keep explanations short, and always give one example
sentence. If a question is not about learning English, gently steer the student
back to their English practice.`

// Gemini is the production Client backed by google.golang.org/genai.
type Gemini struct {
	client *genai.Client
	model  string
	config *genai.GenerateContentConfig
}

// New dials the Gemini API with the given key.
func New(ctx context.Context, apiKey string) (*Gemini, error) {
	c, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}
	return &Gemini{
		client: c,
		model:  DefaultModel,
		config: generationConfig(),
	}, nil
}

func generationConfig() *genai.GenerateContentConfig {
	return &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(temperature),
		TopP:            genai.Ptr(topP),
		TopK:            genai.Ptr(topK),
		MaxOutputTokens: maxOutputTokens,
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{{Text: systemInstruction}},
		},
		SafetySettings: safetySettings(),
	}
}

// safetySettings blocks medium-and-above content in all four harm categories.
func safetySettings() []*genai.SafetySetting {
	categories := []genai.HarmCategory{
		genai.HarmCategoryHarassment,
		genai.HarmCategoryHateSpeech,
		genai.HarmCategorySexuallyExplicit,
		genai.HarmCategoryDangerousContent,
	}
	out := make([]*genai.SafetySetting, 0, len(categories))
	for _, c := range categories {
		out = append(out, &genai.SafetySetting{
			Category:  c,
			Threshold: genai.HarmBlockThresholdBlockMediumAndAbove,
		})
	}
	return out
}

// Generate starts a stateful chat over the supplied history and appends one
// user turn. The history stays owned by the caller; nothing is recorded here.
func (g *Gemini) Generate(ctx context.Context, history []convo.Turn, text string) (string, error) {
	chat, err := g.client.Chats.Create(ctx, g.model, g.config, toContents(history))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrGenerate, err)
	}
	resp, err := chat.SendMessage(ctx, genai.Part{Text: text})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrGenerate, err)
	}
	return strings.TrimSpace(resp.Text()), nil
}

func toContents(history []convo.Turn) []*genai.Content {
	if len(history) == 0 {
		return nil
	}
	out := make([]*genai.Content, 0, len(history))
	for _, t := range history {
		out = append(out, &genai.Content{
			Role:  t.Role,
			Parts: []*genai.Part{{Text: t.Text}},
		})
	}
	return out
}
