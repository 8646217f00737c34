package model

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/ollama/ollama/api"
	"github.com/ollama/ollama/envconfig"
)

// Generator streams completions from an Ollama model.
type Generator struct {
	client *api.Client
	model  string
}

func NewGenerator(model string) *Generator {
	return &Generator{
		client: api.NewClient(envconfig.Host(), http.DefaultClient),
		model:  model,
	}
}

func (g *Generator) Model() string {
	return g.model
}

// Generate runs one completion and returns the accumulated response text.
func (g *Generator) Generate(ctx context.Context, system, prompt string, options map[string]interface{}) (string, error) {
	req := api.GenerateRequest{
		Model:   g.model,
		System:  system,
		Prompt:  prompt,
		Options: options,
	}

	var responseBuilder strings.Builder
	err := g.client.Generate(ctx, &req, func(resp api.GenerateResponse) error {
		_, err := responseBuilder.WriteString(resp.Response)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate response: %w", err)
	}
	return responseBuilder.String(), nil
}

// GenerateJSON asks for a completion that must contain a JSON payload,
// re-prompting with a repair instruction when the model wraps or mangles it.
func (g *Generator) GenerateJSON(ctx context.Context, system, prompt string, maxAttempts int) (string, error) {
	var lastErr error
	var raw string

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		default:
		}

		p := prompt
		if attempt > 1 && raw != "" {
			p = buildRepairPrompt(raw)
		}

		out, err := g.Generate(ctx, system, p, map[string]interface{}{"temperature": 0.0})
		if err != nil {
			lastErr = err
			time.Sleep(time.Duration(attempt) * 300 * time.Millisecond)
			continue
		}
		raw = out

		jsonStr, err := extractJSON(raw)
		if err == nil {
			return jsonStr, nil
		}
		lastErr = err
		time.Sleep(time.Duration(attempt) * 300 * time.Millisecond)
	}
	return "", fmt.Errorf("json generation failed after %d attempts: %w", maxAttempts, lastErr)
}

// extractJSON cuts the outermost JSON value out of model output, tolerating
// prose or markdown fences around it. Objects are preferred; a bare array is
// accepted when no object is present.
func extractJSON(s string) (string, error) {
	if start, end := strings.Index(s, "{"), strings.LastIndex(s, "}"); start != -1 && end > start {
		return s[start : end+1], nil
	}
	if start, end := strings.Index(s, "["), strings.LastIndex(s, "]"); start != -1 && end > start {
		return s[start : end+1], nil
	}
	return s, errors.New("no valid json found")
}

func buildRepairPrompt(badOutput string) string {
	return fmt.Sprintf(`
You previously returned an invalid JSON.

Your task is to FIX the JSON.

RULES:
- Output ONLY valid JSON
- Do NOT add or remove information
- Do NOT add explanations
- Do NOT include markdown
- Do NOT include text outside JSON

INVALID OUTPUT:
<<<
%s
>>>

Return the corrected JSON only.
`, badOutput)
}
