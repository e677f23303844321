package policy

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDefaultEngine(t *testing.T) *RegoEngine {
	t.Helper()
	engine, err := NewRegoEngine(context.Background(), DefaultPolicy)
	require.NoError(t, err)
	return engine
}

func TestDefaultPolicyDeclinesSensitiveRequests(t *testing.T) {
	engine := newDefaultEngine(t)

	dec, err := engine.Evaluate(context.Background(), Request{
		CallerID:  "+15550001111",
		Utterance: "what's my bank PIN",
		Domain:    DomainFamily,
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeDecline, dec.Outcome)
	assert.Contains(t, dec.ReasonCodes, "sensitive_topic")
}

func TestDefaultPolicyProbesQuestions(t *testing.T) {
	engine := newDefaultEngine(t)

	dec, err := engine.Evaluate(context.Background(), Request{
		Utterance: "did anything happen today?",
		Domain:    DomainGeneral,
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeProbe, dec.Outcome)
}

func TestDefaultPolicyDisclosesFamilyDomain(t *testing.T) {
	engine := newDefaultEngine(t)

	dec, err := engine.Evaluate(context.Background(), Request{
		Utterance: "tell mom I said hello",
		Domain:    DomainFamily,
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeDisclose, dec.Outcome)
}

func TestDefaultPolicyVerifiesByDefault(t *testing.T) {
	engine := newDefaultEngine(t)

	dec, err := engine.Evaluate(context.Background(), Request{
		Utterance: "I want the details",
		Domain:    DomainGeneral,
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeVerify, dec.Outcome)
	assert.Contains(t, dec.ReasonCodes, "unrecognized_context")
}

func TestDefaultPolicySensitiveWinsOverFamily(t *testing.T) {
	engine := newDefaultEngine(t)

	// Sensitive topics are declined even inside the family domain and even
	// when phrased as a question.
	dec, err := engine.Evaluate(context.Background(), Request{
		Utterance: "can you read me the account number?",
		Domain:    DomainFamily,
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeDecline, dec.Outcome)
}

func TestNewRegoEngineRejectsBadPolicy(t *testing.T) {
	_, err := NewRegoEngine(context.Background(), "package broken\nresult :=")
	assert.Error(t, err)
}

func TestStaticEngine(t *testing.T) {
	engine := StaticEngine{Decision: Decision{Outcome: OutcomeDisclose}}
	dec, err := engine.Evaluate(context.Background(), Request{})
	require.NoError(t, err)
	assert.Equal(t, OutcomeDisclose, dec.Outcome)
}
