package gemini

import (
	"testing"

	"github.com/hupe1980/diligence/core"
	"github.com/hupe1980/diligence/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

var _ model.Model = (*Model)(nil)

func TestBuildContents(t *testing.T) {
	call := core.ActionCall{ID: "1", Name: "lookup_profile", Args: map[string]any{"name": "Jane Doe"}}

	contents := buildContents([]model.Message{
		model.UserMessage("who runs Acme?"),
		model.AssistantMessage("checking", call),
		model.ToolMessage(call, "no profile", true),
	})

	require.Len(t, contents, 3)
	assert.Equal(t, string(genai.RoleUser), contents[0].Role)
	assert.Equal(t, string(genai.RoleModel), contents[1].Role)
	require.Len(t, contents[1].Parts, 2)
	assert.Equal(t, "lookup_profile", contents[1].Parts[1].FunctionCall.Name)

	resp := contents[2].Parts[0].FunctionResponse
	require.NotNil(t, resp)
	assert.Equal(t, "no profile", resp.Response["error"])
}
