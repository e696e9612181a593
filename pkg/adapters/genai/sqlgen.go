package genai

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

const sqlSystemPrompt = `You translate customer support questions into a single
read-only PostgreSQL SELECT statement over the schema provided. Rules:
- Output ONLY the SQL, no markdown fences, no commentary.
- Exactly one statement; SELECT or WITH ... SELECT only.
- Never modify data.
- Limit results to what answers the question.
If a correction note is present, it describes why your previous attempt was
rejected; fix that mistake.`

// SQLGenerator generates read-only SQL from natural language via Gemini.
// It satisfies the structured-data backend's Generator interface.
type SQLGenerator struct {
	generate generateFunc
	model    string
}

// NewSQLGenerator creates a Gemini-backed text-to-SQL generator.
func NewSQLGenerator(client *genai.Client, model string) *SQLGenerator {
	if model == "" {
		model = "gemini-2.0-flash"
	}
	g := &SQLGenerator{model: model}
	g.generate = func(ctx context.Context, prompt string) (string, error) {
		resp, err := client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), &genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(sqlSystemPrompt, genai.RoleUser),
		})
		if err != nil {
			return "", err
		}
		return resp.Text(), nil
	}
	return g
}

// Generate returns a candidate SQL statement for the question.
func (g *SQLGenerator) Generate(ctx context.Context, query, schema, repairHint string) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Schema:\n%s\n\nQuestion:\n%s\n", schema, query)
	if repairHint != "" {
		fmt.Fprintf(&b, "\nCorrection note:\n%s\n", repairHint)
	}

	raw, err := g.generate(ctx, b.String())
	if err != nil {
		return "", err
	}
	return stripFences(raw), nil
}

// stripFences removes a markdown code fence if the model added one anyway.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```sql")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
