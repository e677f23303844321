package policy

import (
	"context"
	"fmt"

	"github.com/open-policy-agent/opa/v1/rego"
)

// RegoEngine evaluates disclosure requests against a rego policy.
type RegoEngine struct {
	query rego.PreparedEvalQuery
}

// NewRegoEngine prepares the given policy source for evaluation. The policy
// must define data.linekeeper.disclosure.result as an object with "outcome"
// and "reason_codes" keys.
func NewRegoEngine(ctx context.Context, policySource string) (*RegoEngine, error) {
	r := rego.New(
		rego.Query("data.linekeeper.disclosure.result"),
		rego.Module("disclosure.rego", policySource),
	)
	query, err := r.PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("prepare disclosure policy: %w", err)
	}
	return &RegoEngine{query: query}, nil
}

func (e *RegoEngine) Evaluate(ctx context.Context, req Request) (Decision, error) {
	input := map[string]any{
		"caller_id": req.CallerID,
		"utterance": req.Utterance,
		"domain":    string(req.Domain),
	}

	results, err := e.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return Decision{}, fmt.Errorf("evaluate disclosure policy: %w", err)
	}
	if len(results) == 0 || len(results[0].Expressions) == 0 {
		// The default policy always yields a result; an empty result set
		// means a custom policy without a default rule.
		return Decision{Outcome: OutcomeVerify, ReasonCodes: []string{"policy_no_result"}}, nil
	}

	obj, ok := results[0].Expressions[0].Value.(map[string]any)
	if !ok {
		return Decision{}, fmt.Errorf("disclosure policy returned %T, want object", results[0].Expressions[0].Value)
	}

	dec := Decision{Outcome: OutcomeVerify}
	if outcome, ok := obj["outcome"].(string); ok && outcome != "" {
		dec.Outcome = Outcome(outcome)
	}
	if raw, ok := obj["reason_codes"].([]any); ok {
		for _, r := range raw {
			if s, ok := r.(string); ok {
				dec.ReasonCodes = append(dec.ReasonCodes, s)
			}
		}
	}
	return dec, nil
}

// DefaultPolicy is the built-in disclosure policy: decline credential or
// account probes outright, ask for clarification on open questions, disclose
// within the family domain, and fall back to identity verification.
const DefaultPolicy = `package linekeeper.disclosure

default result := {"outcome": "verify", "reason_codes": ["unrecognized_context"]}

sensitive if {
	regex.match(`+"`"+`(?i)(\bpin\b|password|passcode|\bssn\b|social security|bank|card number|account number)`+"`"+`, input.utterance)
}

question if {
	endswith(trim_space(input.utterance), "?")
}

result := {"outcome": "decline", "reason_codes": ["sensitive_topic"]} if {
	sensitive
}

result := {"outcome": "probe", "reason_codes": ["clarification_needed"]} if {
	not sensitive
	question
}

result := {"outcome": "disclose", "reason_codes": ["family_domain"]} if {
	not sensitive
	not question
	input.domain == "family"
}
`
