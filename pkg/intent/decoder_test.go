package intent

import (
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const planPayload = `{
	"type": "plan",
	"action": "customers.create",
	"collected_fields": {"name": "Ada Lovelace"},
	"missing_fields": ["email"],
	"message": "I need an email address to create the customer."
}`

func TestDecode_BarePlan(t *testing.T) {
	resp, err := Decode(planPayload)
	require.NoError(t, err)
	require.True(t, resp.IsPlan())
	assert.Equal(t, "customers.create", resp.Plan.Action)
	assert.Equal(t, "Ada Lovelace", resp.Plan.CollectedFields["name"])
	assert.Equal(t, []string{"email"}, resp.Plan.MissingFields)
	assert.True(t, resp.Plan.RequiresConfirmation, "requires_confirmation defaults to true")
}

func TestDecode_PlanDefaults(t *testing.T) {
	resp, err := Decode(`{"type":"plan","action":"quotes.create"}`)
	require.NoError(t, err)
	require.True(t, resp.IsPlan())
	assert.Empty(t, resp.Plan.CollectedFields)
	assert.Empty(t, resp.Plan.MissingFields)
	assert.Empty(t, resp.Plan.SuggestedActions)
	assert.True(t, resp.Plan.RequiresConfirmation)
}

func TestDecode_RequiresConfirmationExplicitFalse(t *testing.T) {
	resp, err := Decode(`{"type":"plan","action":"quotes.create","requires_confirmation":false}`)
	require.NoError(t, err)
	assert.False(t, resp.Plan.RequiresConfirmation)
}

func TestDecode_JSONFence(t *testing.T) {
	text := "Here is what I propose:\n```json\n" + planPayload + "\n```\nLet me know."
	resp, err := Decode(text)
	require.NoError(t, err)
	require.True(t, resp.IsPlan())
	assert.Equal(t, "customers.create", resp.Plan.Action)
}

func TestDecode_GenericFence(t *testing.T) {
	text := "```\n" + planPayload + "\n```"
	resp, err := Decode(text)
	require.NoError(t, err)
	assert.True(t, resp.IsPlan())
}

func TestDecode_JSONFenceWinsOverGeneric(t *testing.T) {
	text := "```\n{\"type\":\"informative\",\"message\":\"generic\"}\n```\n" +
		"```json\n{\"type\":\"informative\",\"message\":\"labeled\"}\n```"
	resp, err := Decode(text)
	require.NoError(t, err)
	require.True(t, resp.IsInformative())
	assert.Equal(t, "labeled", resp.Informative.Message)
}

func TestDecode_BraceScan(t *testing.T) {
	text := `Sure — running that now. {"type":"tool_call","tool":"customers.search","params":{"query":"ada"}} Done.`
	resp, err := Decode(text)
	require.NoError(t, err)
	require.True(t, resp.IsToolCall())
	assert.Equal(t, "customers.search", resp.ToolCall.Tool)
	assert.Equal(t, "ada", resp.ToolCall.Params["query"])
}

func TestDecode_BraceScanNestedStrings(t *testing.T) {
	text := `prefix {"type":"ask_user","question":"Use \"standard\" billing {or not}?"} suffix`
	resp, err := Decode(text)
	require.NoError(t, err)
	require.True(t, resp.IsAskUser())
	assert.Contains(t, resp.AskUser.Question, `"standard"`)
}

func TestDecode_PlainTextFallback(t *testing.T) {
	resp, err := Decode("  Your next appointment is on Tuesday.  ")
	require.NoError(t, err)
	require.True(t, resp.IsInformative())
	assert.Equal(t, "Your next appointment is on Tuesday.", resp.Informative.Message)
}

func TestDecode_UnknownTypeBecomesInformative(t *testing.T) {
	raw := `{"type":"celebration","message":"done!"}`
	resp, err := Decode(raw)
	require.NoError(t, err)
	require.True(t, resp.IsInformative())
	assert.Equal(t, raw, resp.Informative.Message)
}

func TestDecode_RecognizedTypeBadSchema(t *testing.T) {
	resp, err := Decode(`{"type":"plan","collected_fields":{}}`)
	assert.Nil(t, resp)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSchemaInvalid)

	resp, err = Decode(`{"type":"tool_call","params":{}}`)
	assert.Nil(t, resp)
	assert.ErrorIs(t, err, ErrSchemaInvalid)
}

func TestDecode_ToolCallParamsDefault(t *testing.T) {
	resp, err := Decode(`{"type":"tool_call","tool":"customers.search"}`)
	require.NoError(t, err)
	require.True(t, resp.IsToolCall())
	assert.NotNil(t, resp.ToolCall.Params)
	assert.Empty(t, resp.ToolCall.Params)
}

func TestDecode_AskUser(t *testing.T) {
	resp, err := Decode(`{"type":"ask_user","question":"Which customer?","options":["Ada","Grace"]}`)
	require.NoError(t, err)
	require.True(t, resp.IsAskUser())
	assert.Len(t, resp.AskUser.Options, 2)
}

func TestDecode_EquivalentAcrossEncodings(t *testing.T) {
	variants := []string{
		planPayload,
		"```json\n" + planPayload + "\n```",
		"```\n" + planPayload + "\n```",
	}
	for i, v := range variants {
		t.Run(fmt.Sprintf("encoding_%d", i), func(t *testing.T) {
			resp, err := Decode(v)
			require.NoError(t, err)
			require.True(t, resp.IsPlan())
			assert.Equal(t, "customers.create", resp.Plan.Action)
			assert.Equal(t, []string{"email"}, resp.Plan.MissingFields)
		})
	}
}

// Decoding is a total function over free text: anything without a structured
// payload comes back verbatim as an informative message.
func TestDecode_FreeTextProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200

	properties := gopter.NewProperties(parameters)
	properties.Property("free text yields informative", prop.ForAll(
		func(words []string) bool {
			text := ""
			for _, w := range words {
				text += w + " "
			}
			resp, err := Decode(text)
			if err != nil || resp == nil {
				return false
			}
			return resp.IsInformative()
		},
		gen.SliceOf(gen.AlphaString()),
	))
	properties.TestingRun(t)
}

func TestPredicates(t *testing.T) {
	plan := &Response{Kind: KindPlan, Plan: &Plan{
		Action:               "customers.create",
		MissingFields:        []string{"email"},
		RequiresConfirmation: true,
	}}
	assert.True(t, plan.IsPlanMissingFields())
	assert.False(t, plan.IsPlanReadyForConfirmation(), "missing fields block confirmation regardless of the flag")

	plan.Plan.MissingFields = nil
	assert.True(t, plan.IsPlanReadyForConfirmation())

	plan.Plan.RequiresConfirmation = false
	assert.False(t, plan.IsPlanReadyForConfirmation())
}

func TestIsWriteOperation(t *testing.T) {
	assert.True(t, IsWriteOperation("customers.create"))
	assert.True(t, IsWriteOperation("billing.createCharge"))
	assert.False(t, IsWriteOperation("customers.search"))
	assert.False(t, IsWriteOperation("charges.get"))
	assert.False(t, IsWriteOperation("no.such.op"))
}

func TestIsChargeCommitOperation(t *testing.T) {
	assert.True(t, IsChargeCommitOperation("billing.createCharge"))
	assert.False(t, IsChargeCommitOperation("billing.previewCharge"))
}
