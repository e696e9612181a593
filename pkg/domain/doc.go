// Package domain contains the core types of the Switchboard orchestration
// engine: the turn state threaded through the state machine, the intent and
// route enumerations, the backend result union, the decision trail, and the
// error taxonomy shared by the engine and its adapters.
//
// The package has no dependencies on the runtime or on any adapter. Adapters
// and hosts communicate with the engine exclusively through these types.
package domain
