package genai

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/omnihelp/switchboard/pkg/domain"
)

const synthesizerSystemPrompt = `You are the answer stage of a customer support assistant.
Write a concise, direct answer to the user's request using ONLY the backend
evidence provided. Cite sources inline where the evidence names them. If the
evidence does not answer the request, say so honestly instead of inventing
details.`

// Synthesizer implements ports.Synthesizer on the Gemini API.
type Synthesizer struct {
	generate generateFunc
	model    string
}

// SynthesizerOption configures the Synthesizer.
type SynthesizerOption func(*Synthesizer)

// WithSynthesizerModel overrides the default model.
func WithSynthesizerModel(model string) SynthesizerOption {
	return func(s *Synthesizer) {
		if model != "" {
			s.model = model
		}
	}
}

// NewSynthesizer creates a Gemini-backed synthesizer.
func NewSynthesizer(client *genai.Client, opts ...SynthesizerOption) *Synthesizer {
	s := &Synthesizer{model: "gemini-2.0-flash"}
	for _, opt := range opts {
		opt(s)
	}
	s.generate = func(ctx context.Context, prompt string) (string, error) {
		resp, err := client.Models.GenerateContent(ctx, s.model, genai.Text(prompt), &genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(synthesizerSystemPrompt, genai.RoleUser),
		})
		if err != nil {
			return "", err
		}
		return resp.Text(), nil
	}
	return s
}

// Synthesize grounds the final answer in the backend result.
func (s *Synthesizer) Synthesize(ctx context.Context, query string, result *domain.BackendResult, history []domain.Message) (string, error) {
	answer, err := s.generate(ctx, synthesisPrompt(query, result, history))
	if err != nil {
		return "", &domain.TurnError{
			Kind:   domain.KindSynthesisFailure,
			Reason: "answer synthesis request failed",
			Cause:  err,
		}
	}
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return "", &domain.TurnError{
			Kind:   domain.KindSynthesisFailure,
			Reason: "synthesizer returned an empty answer",
		}
	}
	return answer, nil
}

func synthesisPrompt(query string, result *domain.BackendResult, history []domain.Message) string {
	var b strings.Builder
	if len(history) > 1 {
		b.WriteString("Conversation so far:\n")
		for _, msg := range history {
			fmt.Fprintf(&b, "%s: %s\n", msg.Role, msg.Text)
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "User request:\n%s\n\n", query)
	b.WriteString("Backend evidence:\n")
	writeEvidence(&b, result)
	return b.String()
}

func writeEvidence(b *strings.Builder, result *domain.BackendResult) {
	if result == nil || result.Empty() {
		b.WriteString("(no evidence was found)\n")
		return
	}
	switch {
	case len(result.Passages) > 0:
		for i, p := range result.Passages {
			fmt.Fprintf(b, "[%d] %s", i+1, p.Text)
			if p.Source != "" {
				fmt.Fprintf(b, " (source: %s", p.Source)
				if p.Locator != "" {
					fmt.Fprintf(b, ", %s", p.Locator)
				}
				b.WriteString(")")
			}
			b.WriteString("\n")
		}
	case len(result.Rows) > 0:
		fmt.Fprintf(b, "Query returned %d row(s) with columns %s:\n", len(result.Rows), strings.Join(result.Columns, ", "))
		for i, row := range result.Rows {
			if i >= 20 {
				fmt.Fprintf(b, "... and %d more rows\n", len(result.Rows)-i)
				break
			}
			fmt.Fprintf(b, "- ")
			for j, col := range result.Columns {
				if j > 0 {
					b.WriteString(", ")
				}
				fmt.Fprintf(b, "%s=%v", col, row[col])
			}
			b.WriteString("\n")
		}
	case len(result.WebResults) > 0:
		for i, r := range result.WebResults {
			fmt.Fprintf(b, "[%d] %s — %s (%s)\n", i+1, r.Title, r.Snippet, r.URL)
		}
	}
}
