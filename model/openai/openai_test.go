package openai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hupe1980/diligence/core"
	"github.com/hupe1980/diligence/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ model.Model = (*Model)(nil)

func TestBuildMessages(t *testing.T) {
	call := core.ActionCall{ID: "call_1", Name: "web_search", Args: map[string]any{"query": "Acme"}}
	msgs := buildMessages(model.Request{
		Instructions: "sys",
		Messages: []model.Message{
			model.UserMessage("research"),
			model.AssistantMessage("", call),
			model.ToolMessage(call, "[]", false),
		},
	})

	require.Len(t, msgs, 4)
	require.NotNil(t, msgs[0].OfSystem)
	require.NotNil(t, msgs[2].OfAssistant)
	assert.Equal(t, `{"query":"Acme"}`, msgs[2].OfAssistant.ToolCalls[0].Function.Arguments)
	require.NotNil(t, msgs[3].OfTool)
}

func TestGenerate_ToolCall(t *testing.T) {
	var captured map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &captured)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id":"chatcmpl-1","object":"chat.completion","created":1,"model":"gpt-4o-mini",
			"choices":[{"index":0,"finish_reason":"tool_calls","message":{"role":"assistant","content":"",
				"tool_calls":[{"id":"call_1","type":"function","function":{"name":"web_search","arguments":"{\"query\":\"Acme\"}"}}]}}],
			"usage":{"prompt_tokens":7,"completion_tokens":3,"total_tokens":10}
		}`))
	}))
	defer srv.Close()

	m := NewModel(func(o *Options) {
		o.APIKey = "test"
		o.BaseURL = srv.URL
	})

	resp, err := m.Generate(context.Background(), model.Request{
		Messages: []model.Message{model.UserMessage("Acme")},
		Actions:  []core.ActionSpec{{Name: "web_search", Parameters: map[string]any{"type": "object"}}},
	})
	require.NoError(t, err)

	require.Len(t, resp.Calls, 1)
	assert.Equal(t, "web_search", resp.Calls[0].Name)
	assert.Equal(t, "Acme", resp.Calls[0].Args["query"])
	assert.Equal(t, 10, resp.Usage.TotalTokens)
	assert.Contains(t, captured, "tools")
}

func TestGenerate_ClassifiesBadRequest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"bad request","type":"invalid_request_error"}}`))
	}))
	defer srv.Close()

	m := NewModel(func(o *Options) {
		o.APIKey = "test"
		o.BaseURL = srv.URL
	})

	_, err := m.Generate(context.Background(), model.Request{Messages: []model.Message{model.UserMessage("x")}})
	require.Error(t, err)
	assert.Equal(t, core.ErrorKindInvalidInput, core.KindOf(err))
}
