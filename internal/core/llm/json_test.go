package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCoerceJSONHandlesModelNoise(t *testing.T) {
	type payload struct {
		Intent string `json:"intent"`
	}

	tests := []struct {
		name string
		text string
	}{
		{"plain", `{"intent": "clarifying"}`},
		{"fenced", "```json\n{\"intent\": \"clarifying\"}\n```"},
		{"fenced no lang", "```\n{\"intent\": \"clarifying\"}\n```"},
		{"prose wrapped", `Here is the decision: {"intent": "clarifying"} Hope that helps!`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var p payload
			require.NoError(t, coerceJSON(tt.text, &p))
			assert.Equal(t, "clarifying", p.Intent)
		})
	}

	var p payload
	assert.Error(t, coerceJSON("not json at all", &p))
}

func TestCoerceJSONArray(t *testing.T) {
	var out []string
	require.NoError(t, coerceJSONArray("```json\n[\"a\", \"b\"]\n```", &out))
	assert.Equal(t, []string{"a", "b"}, out)

	out = nil
	require.NoError(t, coerceJSONArray(`The summaries: ["x"] done`, &out))
	assert.Equal(t, []string{"x"}, out)
}

func TestDecisionPayloadValidation(t *testing.T) {
	good := decisionPayload{
		Intent:     "new_problem",
		NextAction: "suggest_solution",
		Confidence: 1.7,
	}
	d, err := good.toDecision()
	require.NoError(t, err)
	// Confidence clamps into [0, 1], unknown request types default.
	assert.InDelta(t, 1.0, d.Confidence, 1e-9)
	assert.Equal(t, "troubleshoot", string(d.RequestType))

	_, err = decisionPayload{Intent: "made_up", NextAction: "suggest_solution"}.toDecision()
	assert.Error(t, err)

	_, err = decisionPayload{Intent: "new_problem", NextAction: "made_up"}.toDecision()
	assert.Error(t, err)
}
