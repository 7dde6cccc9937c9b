package conversation

import (
	"context"
	"testing"

	"github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewGeminiLLMClientRequiresKey(t *testing.T) {
	_, err := NewGeminiLLMClient(context.Background(), "  ", "")
	assert.ErrorContains(t, err, "api key is required")
}

func TestGeminiSchemaFromToolSchema(t *testing.T) {
	schema := geminiSchema(leadFlowTool.Fields)

	assert.Equal(t, genai.TypeObject, schema.Type)
	assert.ElementsMatch(t, []string{"reply", "intent"}, schema.Required)

	intent := schema.Properties["intent"]
	require.NotNil(t, intent)
	assert.Equal(t, genai.TypeString, intent.Type)
	assert.Equal(t, "enum", intent.Format)
	assert.Equal(t, []string{"gather", "review", "send", "other"}, intent.Enum)

	fields := schema.Properties["fields"]
	require.NotNil(t, fields)
	assert.Equal(t, genai.TypeObject, fields.Type)
	assert.Contains(t, fields.Properties, "email")

	assert.Equal(t, genai.TypeBoolean, schema.Properties["advance_to_send"].Type)
}
