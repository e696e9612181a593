package runtime

import (
	"fmt"

	"github.com/omnihelp/switchboard/pkg/domain"
)

// DefaultThreshold is the confidence below which the gate requests
// clarification. Confidence exactly at the threshold proceeds.
const DefaultThreshold = 0.70

// GateDecision is the outcome of the confidence gate: either commit to a
// route or ask for clarification.
type GateDecision struct {
	Proceed bool
	Route   domain.Route
}

// Gate is the pure decision function mapping (intent, confidence) to
// proceed-or-clarify. It holds no mutable state and performs no IO, so it
// can be exercised in isolation with synthetic inputs.
type Gate struct {
	threshold        float64
	productInfoRoute domain.Route
}

// NewGate builds a gate. A zero threshold selects DefaultThreshold.
// productInfoRoute fixes the target for product-info intents and must be
// either RoutePolicy or RouteWeb; anything else falls back to RoutePolicy so
// the mapping is never ambiguous at runtime.
func NewGate(threshold float64, productInfoRoute domain.Route) Gate {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	if productInfoRoute != domain.RoutePolicy && productInfoRoute != domain.RouteWeb {
		productInfoRoute = domain.RoutePolicy
	}
	return Gate{threshold: threshold, productInfoRoute: productInfoRoute}
}

// Threshold returns the configured confidence threshold.
func (g Gate) Threshold() float64 { return g.threshold }

// Decide maps a classifier judgment to a gate decision.
//
// Complaints always proceed to the fallback route regardless of confidence:
// human escalation takes priority over clarification. Otherwise confidence
// below the threshold requests clarification, and at or above it the intent
// maps to its route through a fixed table.
func (g Gate) Decide(intent domain.Intent, confidence float64) GateDecision {
	if intent == domain.IntentComplaint {
		return GateDecision{Proceed: true, Route: domain.RouteFallback}
	}
	if confidence < g.threshold {
		return GateDecision{Proceed: false}
	}
	switch intent {
	case domain.IntentPolicy:
		return GateDecision{Proceed: true, Route: domain.RoutePolicy}
	case domain.IntentStructuredData:
		return GateDecision{Proceed: true, Route: domain.RouteStructuredData}
	case domain.IntentWeb:
		return GateDecision{Proceed: true, Route: domain.RouteWeb}
	case domain.IntentProductInfo:
		return GateDecision{Proceed: true, Route: g.productInfoRoute}
	}
	// Unknown intents never reach here when the classifier output is
	// validated, but an unmapped value must not commit a backend.
	return GateDecision{Proceed: true, Route: domain.RouteFallback}
}

// String renders the decision for trail summaries.
func (d GateDecision) String() string {
	if !d.Proceed {
		return "needs_clarification"
	}
	return fmt.Sprintf("proceed(%s)", d.Route)
}
