package domain

import "time"

// Intent is the closed set of query intents the classifier may produce.
type Intent string

const (
	IntentPolicy         Intent = "policy"
	IntentStructuredData Intent = "structured_data"
	IntentWeb            Intent = "web"
	IntentProductInfo    Intent = "product_info"
	IntentComplaint      Intent = "complaint"
)

// Intents lists every valid intent. Used by classifier prompts and by the
// evaluation harness.
var Intents = []Intent{
	IntentPolicy,
	IntentStructuredData,
	IntentWeb,
	IntentProductInfo,
	IntentComplaint,
}

// Valid reports whether the intent is a member of the closed enumeration.
func (i Intent) Valid() bool {
	switch i {
	case IntentPolicy, IntentStructuredData, IntentWeb, IntentProductInfo, IntentComplaint:
		return true
	}
	return false
}

// Route identifies the single backend committed for a turn.
type Route string

const (
	RoutePolicy         Route = "policy"
	RouteStructuredData Route = "structured_data"
	RouteWeb            Route = "web"
	RouteFallback       Route = "fallback"
)

// Phase enumerates the states of the orchestration machine.
type Phase string

const (
	PhaseStart        Phase = "start"
	PhaseClassifying  Phase = "classifying"
	PhaseGateDeciding Phase = "gate_deciding"
	PhaseClarifying   Phase = "clarifying"
	PhaseDispatching  Phase = "dispatching"
	PhaseSynthesizing Phase = "synthesizing"
	PhaseFallback     Phase = "fallback_handling"
	PhaseTerminal     Phase = "terminal"
)

// Message roles in the conversation history.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one entry of the conversation history.
type Message struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// TrailEntry records one state transition for auditing. The trail is
// append-only: the engine adds exactly one entry per transition and never
// rewrites earlier entries.
type TrailEntry struct {
	Node      string    `json:"node"`
	Input     string    `json:"input"`
	Output    string    `json:"output"`
	Timestamp time.Time `json:"timestamp"`
}

// TurnState is the single mutable record threaded through the machine for
// one user turn. It is owned by exactly one engine invocation at a time;
// the session manager serializes access across replicas.
type TurnState struct {
	// TurnID identifies this turn within a conversation.
	TurnID string `json:"turn_id"`

	// SessionID identifies the conversation the turn belongs to.
	SessionID string `json:"session_id"`

	// Phase is the current machine state.
	Phase Phase `json:"phase"`

	// History is the append-only conversation so far, oldest first.
	History []Message `json:"history"`

	// Query is the text being classified and routed in the current cycle.
	// The clarification loop rewrites it when new information arrives.
	Query string `json:"query"`

	// Classifier output. Intent is empty until classification succeeds;
	// whenever Intent is set, Confidence and Rationale are set with it.
	Intent      Intent   `json:"intent,omitempty"`
	Confidence  float64  `json:"confidence,omitempty"`
	Rationale   string   `json:"rationale,omitempty"`
	MissingInfo []string `json:"missing_info,omitempty"`

	// Route is derived from intent and confidence by the gate. Empty until
	// the gate commits.
	Route Route `json:"route,omitempty"`

	// Result holds the single backend payload for this cycle. Written only
	// by the dispatcher, cleared on retry.
	Result *BackendResult `json:"result,omitempty"`

	// BackendErr describes the last backend failure, if any. Cleared on
	// success.
	BackendErr string `json:"backend_err,omitempty"`

	// FinalAnswer is set only by synthesis; once set the turn is terminal.
	FinalAnswer string `json:"final_answer,omitempty"`

	// Handoff is produced by fallback handling instead of an answer.
	Handoff *HandoffRecord `json:"handoff,omitempty"`

	// PendingQuestion is the clarifying question awaiting a human reply when
	// the turn is suspended.
	PendingQuestion string `json:"pending_question,omitempty"`

	// AwaitingReply marks a turn suspended for clarification. The state must
	// be checkpointed before the engine returns it in this condition.
	AwaitingReply bool `json:"awaiting_reply,omitempty"`

	// Bounded counters, reset only at turn start.
	ClarifyAttempts int `json:"clarify_attempts"`
	RetryAttempts   int `json:"retry_attempts"`

	// Trail is the append-only audit log of every transition.
	Trail []TrailEntry `json:"trail"`

	// StartedAt is the wall-clock start of the turn.
	StartedAt time.Time `json:"started_at"`
}

// NewTurnState creates a fresh turn for a user message, appending the
// message to the prior conversation history.
func NewTurnState(sessionID, turnID, query string, history []Message) *TurnState {
	h := make([]Message, 0, len(history)+1)
	h = append(h, history...)
	h = append(h, Message{Role: RoleUser, Text: query})
	return &TurnState{
		TurnID:    turnID,
		SessionID: sessionID,
		Phase:     PhaseStart,
		History:   h,
		Query:     query,
		StartedAt: time.Now().UTC(),
	}
}

// Terminal reports whether the machine has halted for this turn.
func (s *TurnState) Terminal() bool {
	return s.Phase == PhaseTerminal
}

// ResetJudgment discards classifier and gate output so a clarification
// re-entry never acts on a stale judgment.
func (s *TurnState) ResetJudgment() {
	s.Intent = ""
	s.Confidence = 0
	s.Rationale = ""
	s.Route = ""
	s.MissingInfo = nil
}

// Clone returns a deep copy of the state safe for independent mutation.
func (s *TurnState) Clone() *TurnState {
	if s == nil {
		return nil
	}
	next := *s
	next.History = append([]Message(nil), s.History...)
	next.MissingInfo = append([]string(nil), s.MissingInfo...)
	next.Trail = append([]TrailEntry(nil), s.Trail...)
	next.Result = s.Result.Clone()
	if s.Handoff != nil {
		h := s.Handoff.Clone()
		next.Handoff = h
	}
	return &next
}
