package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"docrag/config"
	"docrag/model"
	"docrag/types"

	"github.com/pkoukk/tiktoken-go"
)

// NoContextAnswer is returned when retrieval produced nothing usable, so the
// model is never asked to answer from thin air.
const NoContextAnswer = "No information for this request."

const answerSystemPrompt = `You are a technical documentation assistant.
Answer strictly from the provided context. Be concise and factual.
If the context does not contain the answer, reply exactly: "No information for this request."
Do not add introductions or closing remarks.`

const answerPromptTemplate = `Answer the question using only the context below.

Context:
%s

Question:
%s

Answer:`

type generator interface {
	Generate(ctx context.Context, system, prompt string, options map[string]interface{}) (string, error)
}

// Agent turns a question plus ranked chunks into an answer.
type Agent struct {
	gen             generator
	maxContextChars int
	answerTimeout   time.Duration
}

func New(gen *model.Generator, cfg *config.Config) *Agent {
	maxChars := cfg.MaxContextChars
	if maxChars <= 0 {
		maxChars = 8000
	}
	timeout := cfg.AnswerTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Agent{gen: gen, maxContextChars: maxChars, answerTimeout: timeout}
}

// BuildContext concatenates chunk contents in rank order under the character
// budget. Chunks keep their heading as a lead line. The first chunk is
// truncated rather than dropped when it alone exceeds the budget.
func (a *Agent) BuildContext(matches []types.ChunkMatch) string {
	var sb strings.Builder
	remaining := a.maxContextChars
	for _, m := range matches {
		block := m.Content
		if m.Heading != "" {
			block = m.Heading + "\n" + m.Content
		}
		n := utf8.RuneCountInString(block)
		if sb.Len() == 0 {
			if n > remaining {
				block = string([]rune(block)[:remaining])
				n = remaining
			}
			sb.WriteString(block)
			remaining -= n
			continue
		}
		if n+2 > remaining {
			break
		}
		sb.WriteString("\n\n")
		sb.WriteString(block)
		remaining -= n + 2
	}
	return sb.String()
}

// Answer generates a grounded answer for the question. An empty context
// short-circuits to NoContextAnswer without a model call; generation errors
// are returned for the caller to degrade on.
func (a *Agent) Answer(ctx context.Context, question string, matches []types.ChunkMatch) (string, error) {
	contextText := a.BuildContext(matches)
	if strings.TrimSpace(contextText) == "" {
		return NoContextAnswer, nil
	}

	prompt := fmt.Sprintf(answerPromptTemplate, contextText, question)
	if n, err := CountTokens(prompt); err == nil {
		slog.Info("agent: prompt built", "chars", len(prompt), "tokens", n)
	} else {
		slog.Debug("agent: token count unavailable", "err", err)
	}

	ctx, cancel := context.WithTimeout(ctx, a.answerTimeout)
	defer cancel()

	answer, err := a.gen.Generate(ctx, answerSystemPrompt, prompt, nil)
	if err != nil {
		return "", fmt.Errorf("generate answer: %w", err)
	}
	if strings.TrimSpace(answer) == "" {
		return NoContextAnswer, nil
	}
	return strings.TrimSpace(answer), nil
}

// CountTokens estimates the prompt's token footprint with a tokenizer close
// enough to the served model's for budget logging.
func CountTokens(text string) (int, error) {
	enc, err := tiktoken.EncodingForModel("gpt-3.5-turbo")
	if err != nil {
		return 0, err
	}
	return len(enc.Encode(text, nil, nil)), nil
}
