// Package policy defines the disclosure decision contract the call
// orchestrator consumes, plus a rego-backed default engine. Production
// deployments point the orchestrator at the external trust engine through
// the same interface.
package policy

import "context"

// Outcome is a disclosure decision. The set is open; the orchestrator only
// branches on disclose and probe and treats everything else as
// non-committal.
type Outcome string

const (
	OutcomeDisclose Outcome = "disclose"
	OutcomePartial  Outcome = "partial"
	OutcomeProbe    Outcome = "probe"
	OutcomeVerify   Outcome = "verify"
	OutcomeDecline  Outcome = "decline"
)

// Domain scopes a disclosure decision to a conversation context.
type Domain string

const (
	DomainGeneral Domain = "general"
	DomainFamily  Domain = "family"
)

// Request is one disclosure evaluation.
type Request struct {
	CallerID  string `json:"caller_id"`
	Utterance string `json:"utterance"`
	Domain    Domain `json:"domain"`
}

// Decision is the engine's answer. Only Outcome and ReasonCodes are consumed
// by the orchestrator.
type Decision struct {
	Outcome     Outcome  `json:"outcome"`
	ReasonCodes []string `json:"reason_codes,omitempty"`
}

// Engine evaluates disclosure requests.
type Engine interface {
	Evaluate(ctx context.Context, req Request) (Decision, error)
}

// EngineFunc adapts a function to the Engine interface.
type EngineFunc func(ctx context.Context, req Request) (Decision, error)

func (f EngineFunc) Evaluate(ctx context.Context, req Request) (Decision, error) {
	return f(ctx, req)
}

// StaticEngine always returns the same decision.
type StaticEngine struct {
	Decision Decision
	Err      error
}

func (e StaticEngine) Evaluate(ctx context.Context, req Request) (Decision, error) {
	if e.Err != nil {
		return Decision{}, e.Err
	}
	return e.Decision, nil
}
