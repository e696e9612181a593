// Package sqlquery answers structured-data questions by generating a
// read-only SQL query, validating it, and executing it against PostgreSQL.
package sqlquery

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/omnihelp/switchboard/pkg/domain"
	"github.com/omnihelp/switchboard/pkg/ports"
)

// Generator turns a natural-language question into a SQL statement. The
// repair hint carries the previous attempt's failure so the generator can
// correct itself on retry.
type Generator interface {
	Generate(ctx context.Context, query, schema, repairHint string) (string, error)
}

// GeneratorFunc adapts a function to the Generator interface.
type GeneratorFunc func(ctx context.Context, query, schema, repairHint string) (string, error)

func (f GeneratorFunc) Generate(ctx context.Context, query, schema, repairHint string) (string, error) {
	return f(ctx, query, schema, repairHint)
}

// Backend implements ports.Backend over a PostgreSQL pool.
type Backend struct {
	pool    *pgxpool.Pool
	gen     Generator
	schema  string
	maxRows int
}

// Option configures the Backend.
type Option func(*Backend)

// WithMaxRows caps the number of rows returned (default 100).
func WithMaxRows(n int) Option {
	return func(b *Backend) {
		if n > 0 {
			b.maxRows = n
		}
	}
}

// New creates a structured-data backend. schema is a textual description of
// the queryable tables, passed verbatim to the generator.
func New(pool *pgxpool.Pool, gen Generator, schema string, opts ...Option) *Backend {
	b := &Backend{
		pool:    pool,
		gen:     gen,
		schema:  schema,
		maxRows: 100,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Execute generates, validates, and runs one read-only query. Generation and
// validation failures are retryable so the dispatcher can feed the failure
// back as a repair hint; execution failures from the database are retryable
// too since a corrected query may succeed.
func (b *Backend) Execute(ctx context.Context, req ports.BackendRequest) (*domain.BackendResult, error) {
	sql, err := b.gen.Generate(ctx, req.Query, b.schema, req.RepairHint)
	if err != nil {
		return nil, domain.NewRetryable("sql generation failed", err)
	}

	sql = strings.TrimSpace(sql)
	if err := ValidateReadOnly(sql); err != nil {
		return nil, err
	}

	rows, err := b.pool.Query(ctx, sql)
	if err != nil {
		return nil, domain.NewRetryable(fmt.Sprintf("query execution failed: %v", err), err)
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	columns := make([]string, len(fields))
	for i, fd := range fields {
		columns[i] = string(fd.Name)
	}

	var out []domain.Row
	for rows.Next() {
		if len(out) >= b.maxRows {
			break
		}
		values, err := rows.Values()
		if err != nil {
			return nil, domain.NewRetryable("failed to read result row", err)
		}
		row := make(domain.Row, len(columns))
		for i, col := range columns {
			row[col] = values[i]
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.NewRetryable(fmt.Sprintf("query execution failed: %v", err), err)
	}

	return &domain.BackendResult{
		Route:   domain.RouteStructuredData,
		Columns: columns,
		Rows:    out,
	}, nil
}

// forbiddenVerbs are statement-leading keywords that mutate state.
var forbiddenVerbs = []string{
	"insert", "update", "delete", "drop", "alter", "truncate",
	"create", "grant", "revoke", "copy", "merge", "call", "do",
}

// ValidateReadOnly rejects anything but a single SELECT (or WITH ... SELECT)
// statement. Violations are retryable: the offending clause goes back to the
// generator as a repair hint.
func ValidateReadOnly(sql string) error {
	reject := func(reason string) error {
		return domain.NewRetryable("generated sql rejected: "+reason, nil)
	}

	stripped := stripComments(sql)
	trimmed := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(stripped), ";"))
	if trimmed == "" {
		return reject("empty statement")
	}
	if strings.Contains(trimmed, ";") {
		return reject("multiple statements are not allowed")
	}

	lower := strings.ToLower(trimmed)
	first := firstWord(lower)
	if first != "select" && first != "with" {
		return reject(fmt.Sprintf("statement must start with SELECT or WITH, got %q", strings.ToUpper(first)))
	}

	// A CTE can smuggle data-modifying statements (WITH x AS (DELETE ...)).
	for _, verb := range forbiddenVerbs {
		if containsWord(lower, verb) {
			return reject(fmt.Sprintf("forbidden clause %q", strings.ToUpper(verb)))
		}
	}

	return nil
}

func stripComments(sql string) string {
	var b strings.Builder
	lines := strings.Split(sql, "\n")
	for _, line := range lines {
		if idx := strings.Index(line, "--"); idx >= 0 {
			line = line[:idx]
		}
		b.WriteString(line)
		b.WriteString(" ")
	}
	return b.String()
}

func firstWord(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// containsWord reports whether w appears as a standalone word.
func containsWord(s, w string) bool {
	for i := 0; i+len(w) <= len(s); i++ {
		if s[i:i+len(w)] != w {
			continue
		}
		beforeOK := i == 0 || !isWordByte(s[i-1])
		afterOK := i+len(w) == len(s) || !isWordByte(s[i+len(w)])
		if beforeOK && afterOK {
			return true
		}
	}
	return false
}

func isWordByte(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '_'
}
