package genai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/omnihelp/switchboard/pkg/domain"
	"github.com/omnihelp/switchboard/pkg/ports"
)

const classifierSystemPrompt = `You are the routing stage of a customer support assistant.
Classify the user's latest request into exactly one intent:
- "policy": questions about rules, terms, shipping policy, returns, refunds, warranties
- "structured_data": questions answerable from order, account, or catalog records
- "web": questions needing current public information from the open web
- "product_info": questions about product details or availability
- "complaint": expressions of dissatisfaction that a human should handle
Report your confidence between 0 and 1 and a short rationale.
If the request is too vague to route, use low confidence and list what is missing
in missing_info as short snake_case field names (for example "order_number").`

// judgmentSchema constrains the model to the routing judgment shape.
var judgmentSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"intent": {
			Type: genai.TypeString,
			Enum: []string{"policy", "structured_data", "web", "product_info", "complaint"},
		},
		"confidence": {Type: genai.TypeNumber},
		"rationale":  {Type: genai.TypeString},
		"missing_info": {
			Type:  genai.TypeArray,
			Items: &genai.Schema{Type: genai.TypeString},
		},
	},
	Required: []string{"intent", "confidence", "rationale"},
}

// generateFunc is the seam between prompt/parse logic and the Gemini API.
type generateFunc func(ctx context.Context, prompt string) (string, error)

// Classifier implements ports.Classifier on the Gemini API using structured
// JSON output.
type Classifier struct {
	generate generateFunc
	model    string
}

// ClassifierOption configures the Classifier.
type ClassifierOption func(*Classifier)

// WithClassifierModel overrides the default model.
func WithClassifierModel(model string) ClassifierOption {
	return func(c *Classifier) {
		if model != "" {
			c.model = model
		}
	}
}

// NewClassifier creates a Gemini-backed classifier.
func NewClassifier(client *genai.Client, opts ...ClassifierOption) *Classifier {
	c := &Classifier{model: "gemini-2.0-flash"}
	for _, opt := range opts {
		opt(c)
	}
	c.generate = func(ctx context.Context, prompt string) (string, error) {
		resp, err := client.Models.GenerateContent(ctx, c.model, genai.Text(prompt), &genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(classifierSystemPrompt, genai.RoleUser),
			ResponseMIMEType:  "application/json",
			ResponseSchema:    judgmentSchema,
		})
		if err != nil {
			return "", err
		}
		return resp.Text(), nil
	}
	return c
}

// Classify sends the conversation to Gemini and parses the routing judgment.
// Transport failures are retryable classifier errors; unparseable or
// out-of-contract responses are malformed-output errors, also retryable so
// the caller can ask the model again.
func (c *Classifier) Classify(ctx context.Context, history []domain.Message, query string) (*ports.Judgment, error) {
	raw, err := c.generate(ctx, classifyPrompt(history, query))
	if err != nil {
		return nil, &domain.TurnError{
			Kind:      domain.KindClassifierUnavailable,
			Reason:    "classifier request failed",
			Retryable: true,
			Cause:     err,
		}
	}
	return parseJudgment(raw)
}

func classifyPrompt(history []domain.Message, query string) string {
	var b strings.Builder
	if len(history) > 0 {
		b.WriteString("Conversation so far:\n")
		for _, msg := range history {
			fmt.Fprintf(&b, "%s: %s\n", msg.Role, msg.Text)
		}
		b.WriteString("\n")
	}
	b.WriteString("Latest request:\n")
	b.WriteString(query)
	return b.String()
}

// rawJudgment mirrors the response schema.
type rawJudgment struct {
	Intent      string   `json:"intent"`
	Confidence  float64  `json:"confidence"`
	Rationale   string   `json:"rationale"`
	MissingInfo []string `json:"missing_info"`
}

func parseJudgment(raw string) (*ports.Judgment, error) {
	malformed := func(reason string, cause error) error {
		return &domain.TurnError{
			Kind:      domain.KindClassifierMalformed,
			Reason:    reason,
			Retryable: true,
			Cause:     cause,
		}
	}

	var rj rawJudgment
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &rj); err != nil {
		return nil, malformed("classifier returned invalid JSON", err)
	}

	intent := domain.Intent(rj.Intent)
	if !intent.Valid() {
		return nil, malformed(fmt.Sprintf("classifier returned unknown intent %q", rj.Intent), nil)
	}
	if rj.Confidence < 0 || rj.Confidence > 1 {
		return nil, malformed(fmt.Sprintf("classifier confidence %v out of range", rj.Confidence), nil)
	}
	if strings.TrimSpace(rj.Rationale) == "" {
		return nil, malformed("classifier omitted the routing rationale", nil)
	}

	return &ports.Judgment{
		Intent:      intent,
		Confidence:  rj.Confidence,
		Rationale:   rj.Rationale,
		MissingInfo: rj.MissingInfo,
	}, nil
}
