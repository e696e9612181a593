// Package ports defines the driven-side interfaces of the orchestration
// core: the classifier, backends, synthesizer, elicitor, state store, and
// distributed locker. Adapters implement these; the engine consumes them.
// Components never call each other directly — all flow is mediated by the
// engine through these contracts.
package ports
