package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
)

// PromptElicitor asks clarifying questions on the terminal and reads the
// user's reply from stdin. Plugging it in switches clarification from
// suspend mode to auto mode.
type PromptElicitor struct {
	In  io.Reader
	Out io.Writer
}

// Elicit prints the question and blocks for one line of input.
func (p *PromptElicitor) Elicit(ctx context.Context, question string, missing []string) (string, error) {
	fmt.Fprintf(p.Out, "\n%s\n> ", question)

	type result struct {
		line string
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		line, err := bufio.NewReader(p.In).ReadString('\n')
		ch <- result{line: line, err: err}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case r := <-ch:
		if r.err != nil {
			return "", fmt.Errorf("reading clarification reply: %w", r.err)
		}
		return strings.TrimSpace(r.line), nil
	}
}
