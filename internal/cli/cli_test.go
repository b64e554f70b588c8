package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resetEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"CACHE_BACKEND", "SQL_CONNECTION_STRING", "MONGO_CONNECTION_STRING", "REDIS_ADDR",
		"LLM_PROVIDER", "LLM_API_KEY", "COST_CEILING_USD", "STRATEGY_DEADLINE", "LOG_FILE",
	} {
		t.Setenv(k, "")
	}
	t.Setenv("LOG_LEVEL", "error")
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := NewRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestSchemaCommand(t *testing.T) {
	out, err := execute(t, "schema")
	require.NoError(t, err)
	assert.Contains(t, out, "fields:")
	assert.Contains(t, out, "name: compare_at_price")
	assert.Contains(t, out, "type: number")
}

func TestMapRequiresFile(t *testing.T) {
	_, err := execute(t, "map")
	assert.ErrorContains(t, err, "file")
}

func TestMapCommand(t *testing.T) {
	resetEnv(t)
	path := filepath.Join(t.TempDir(), "products.csv")
	require.NoError(t, os.WriteFile(path, []byte("Name,internal_note\nMug,keep dry\nCup,\n"), 0o644))

	out, err := execute(t, "map", "-f", path, "--session", "cli-test")
	require.NoError(t, err)

	var res struct {
		Success   bool   `json:"success"`
		SessionID string `json:"sessionId"`
		Mappings  []struct {
			SourceField string `json:"sourceField"`
			TargetField string `json:"targetField"`
			Confidence  int    `json:"confidence"`
		} `json:"mappings"`
		UnmappedFields []string `json:"unmappedFields"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.True(t, res.Success)
	assert.Equal(t, "cli-test", res.SessionID)
	require.Len(t, res.Mappings, 1)
	assert.Equal(t, "name", res.Mappings[0].TargetField)
	assert.Equal(t, 95, res.Mappings[0].Confidence)
	assert.Equal(t, []string{"internal_note"}, res.UnmappedFields)
}
