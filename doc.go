/*
Package switchboard is a classification-gated router for customer support
queries. Each turn classifies the query, applies a confidence gate, and
dispatches to exactly one backend: policy retrieval, structured data, or web
search. The answer is synthesized from whatever evidence the backend returned.

# Concept

The engine is a small cyclic state machine. Classification feeds a gate; the
gate either proceeds to dispatch, asks a clarifying question, or hands off to
a human. Clarification and dispatch retries are both bounded, so every turn
terminates in a final answer, a pending question, or a handoff record. Every
transition is appended to a decision trail that survives with the session.

# Suspension

When the gate needs more information and no Elicitor is configured, the turn
suspends: the state is checkpointed with the pending question, and the caller
resumes it later with the user's reply. This makes the engine usable from
request/response surfaces (HTTP, CLI) without holding a connection open.

# Usage

	board, err := switchboard.New(classifier, backends, synthesizer,
		switchboard.WithStore(store),
	)
	if err != nil {
		log.Fatal(err)
	}

	out, err := board.Ask(ctx, "", "Can I return an opened laptop?")
	if err != nil {
		log.Fatal(err)
	}
	switch out.Status {
	case switchboard.StatusAnswered:
		fmt.Println(out.Answer)
	case switchboard.StatusAwaitingReply:
		fmt.Println(out.Question) // collect a reply, then board.Reply(...)
	case switchboard.StatusHandoff:
		fmt.Println(out.Handoff.Summary)
	}

Backends implement ports.Backend; the adapters under pkg/adapters provide
Gemini classification and synthesis, Qdrant retrieval, Postgres structured
queries, and SearXNG web search.
*/
package switchboard
