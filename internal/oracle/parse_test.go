package oracle_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cory-johannsen/atre/internal/oracle"
)

func TestParseJSON_Strict(t *testing.T) {
	res, ok := oracle.ParseJSON(`{"action_type": "attack", "targets": ["b"]}`)
	require.True(t, ok)
	assert.Equal(t, "strict", res.Stage)
	assert.Equal(t, "attack", res.Data["action_type"])
}

func TestParseJSON_FencedCodeBlock(t *testing.T) {
	text := "Here is my move:\n```json\n{\"action_type\": \"dodge\"}\n```\nDone."
	res, ok := oracle.ParseJSON(text)
	require.True(t, ok)
	assert.Equal(t, "fenced", res.Stage)
	assert.Equal(t, "dodge", res.Data["action_type"])
}

func TestParseJSON_RepairsSingleQuotesAndTrailingComma(t *testing.T) {
	text := `{'action_type': 'attack', 'targets': ['b'],}`
	res, ok := oracle.ParseJSON(text)
	require.True(t, ok)
	assert.True(t, res.Repaired)
	assert.Equal(t, "attack", res.Data["action_type"])
}

func TestParseJSON_RepairsUnquotedKeys(t *testing.T) {
	text := `{action_type: "dash"}`
	res, ok := oracle.ParseJSON(text)
	require.True(t, ok)
	assert.Equal(t, "dash", res.Data["action_type"])
}

func TestParseJSON_FallsBackToKeyValueScan(t *testing.T) {
	text := "action_type: attack\nability_name: bite\ntargets: b"
	res, ok := oracle.ParseJSON(text)
	require.True(t, ok)
	assert.Equal(t, "kv_scan", res.Stage)
	assert.Equal(t, "attack", res.Data["action_type"])
}

func TestParseJSON_EmptyInputFails(t *testing.T) {
	_, ok := oracle.ParseJSON("")
	assert.False(t, ok)
}

func TestParseJSON_WhitespaceOnlyFails(t *testing.T) {
	_, ok := oracle.ParseJSON("   \n\t  ")
	assert.False(t, ok)
}
