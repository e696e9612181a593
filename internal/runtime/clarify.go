package runtime

import (
	"context"
	"strings"

	"github.com/omnihelp/switchboard/pkg/domain"
	"github.com/omnihelp/switchboard/pkg/observability"
)

// clarifyNode runs one clarification pass. With an elicitor configured the
// reply is obtained synchronously and the machine re-enters classification
// (the defining cycle); otherwise the turn suspends with a pending question
// and yields control to the caller awaiting a human reply.
//
// Either way the pass increments the clarification counter, and the
// judgment from the previous pass is discarded so a re-entry never acts on
// stale intent or confidence.
func (e *Engine) clarifyNode(ctx context.Context, s *domain.TurnState) {
	s.ClarifyAttempts++
	observability.ClarificationsTotal.Inc()

	question := clarifyingQuestion(s.MissingInfo)
	s.History = append(s.History, domain.Message{Role: domain.RoleAssistant, Text: question})
	missing := append([]string(nil), s.MissingInfo...)
	s.ResetJudgment()

	if e.elicitor == nil {
		s.PendingQuestion = question
		s.AwaitingReply = true
		e.logger.InfoContext(ctx, "turn suspended for clarification",
			"turn_id", s.TurnID, "attempt", s.ClarifyAttempts)
		e.transition(ctx, s, "clarify", strings.Join(missing, ","), "suspended awaiting reply", domain.PhaseTerminal)
		return
	}

	reply, err := e.elicitor.Elicit(ctx, question, missing)
	if err != nil {
		s.BackendErr = err.Error()
		e.transition(ctx, s, "clarify", strings.Join(missing, ","), "elicitation failed: "+truncate(err.Error()), domain.PhaseFallback)
		return
	}

	s.History = append(s.History, domain.Message{Role: domain.RoleUser, Text: reply})
	s.Query = augmentQuery(s.Query, reply)
	e.logger.DebugContext(ctx, "clarification obtained", "turn_id", s.TurnID, "attempt", s.ClarifyAttempts)
	e.transition(ctx, s, "clarify", strings.Join(missing, ","), "context augmented", domain.PhaseClassifying)
}

// clarifyingQuestion builds the question shown to the user. Named gaps from
// the classifier are requested directly; without them the question is
// generic.
func clarifyingQuestion(missing []string) string {
	if len(missing) == 0 {
		return "Could you tell me a bit more about what you need, so I can point you to the right place?"
	}
	readable := make([]string, len(missing))
	for i, m := range missing {
		readable[i] = strings.ReplaceAll(m, "_", " ")
	}
	if len(readable) == 1 {
		return "To help with that, could you provide your " + readable[0] + "?"
	}
	last := readable[len(readable)-1]
	rest := strings.Join(readable[:len(readable)-1], ", ")
	return "To help with that, could you provide your " + rest + " and " + last + "?"
}
