// Package gemini provides an implementation of model.Model backed by the
// Google Gen AI SDK (Gemini API).
package gemini

import (
	"context"
	"errors"
	"fmt"

	"github.com/hupe1980/diligence/core"
	"github.com/hupe1980/diligence/model"
	"google.golang.org/genai"
)

// Options configure the Gemini model adapter.
type Options struct {
	Model           string
	Temperature     float32
	MaxOutputTokens int32
	APIKey          string
	BaseURL         string
}

// Model wraps genai.Client behind model.Model.
type Model struct {
	client *genai.Client
	opts   Options
}

// NewModel creates a Gemini model. The API key falls back to the SDK's
// environment lookup when empty.
func NewModel(ctx context.Context, optFns ...func(o *Options)) (*Model, error) {
	opts := Options{
		Model:           "gemini-2.5-flash",
		Temperature:     0.2,
		MaxOutputTokens: 4096,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	cfg := &genai.ClientConfig{APIKey: opts.APIKey, Backend: genai.BackendGeminiAPI}
	if opts.BaseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: opts.BaseURL}
	}

	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return &Model{client: client, opts: opts}, nil
}

// Generate implements model.Model.
func (m *Model) Generate(ctx context.Context, req model.Request) (model.Response, error) {
	config := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(m.opts.Temperature),
		MaxOutputTokens: m.opts.MaxOutputTokens,
	}
	if req.Instructions != "" {
		config.SystemInstruction = genai.NewContentFromText(req.Instructions, genai.RoleUser)
	}
	if len(req.Actions) > 0 {
		decls := make([]*genai.FunctionDeclaration, 0, len(req.Actions))
		for _, a := range req.Actions {
			decls = append(decls, &genai.FunctionDeclaration{
				Name:                 a.Name,
				Description:          a.Description,
				ParametersJsonSchema: a.Parameters,
			})
		}
		config.Tools = []*genai.Tool{{FunctionDeclarations: decls}}
	}

	resp, err := m.client.Models.GenerateContent(ctx, m.opts.Model, buildContents(req.Messages), config)
	if err != nil {
		var apiErr genai.APIError
		status := 0
		if errors.As(err, &apiErr) {
			status = apiErr.Code
		}
		return model.Response{}, model.WrapProviderError("gemini", status, err)
	}

	out := model.Response{Text: resp.Text(), FinishReason: "stop"}
	for i, fc := range resp.FunctionCalls() {
		id := fc.ID
		if id == "" {
			id = fmt.Sprintf("%s-%d", fc.Name, i)
		}
		out.Calls = append(out.Calls, core.ActionCall{ID: id, Name: fc.Name, Args: fc.Args})
	}
	if len(resp.Candidates) > 0 && resp.Candidates[0].FinishReason != "" {
		out.FinishReason = string(resp.Candidates[0].FinishReason)
	}
	if out.HasCalls() {
		out.FinishReason = "tool_calls"
	}
	if u := resp.UsageMetadata; u != nil {
		out.Usage = &model.TokenUsage{
			PromptTokens:     int(u.PromptTokenCount),
			CompletionTokens: int(u.CandidatesTokenCount),
			TotalTokens:      int(u.TotalTokenCount),
		}
	}
	return out, nil
}

// buildContents converts the conversation to genai contents. Function
// responses are sent with the user role.
func buildContents(msgs []model.Message) []*genai.Content {
	contents := make([]*genai.Content, 0, len(msgs))
	for _, msg := range msgs {
		switch msg.Role {
		case model.RoleAssistant:
			c := &genai.Content{Role: string(genai.RoleModel)}
			if msg.Text != "" {
				c.Parts = append(c.Parts, genai.NewPartFromText(msg.Text))
			}
			for _, call := range msg.Calls {
				c.Parts = append(c.Parts, genai.NewPartFromFunctionCall(call.Name, call.Args))
			}
			contents = append(contents, c)
		case model.RoleTool:
			key := "output"
			if msg.IsError {
				key = "error"
			}
			part := genai.NewPartFromFunctionResponse(msg.Name, map[string]any{key: msg.Text})
			contents = append(contents, &genai.Content{Role: string(genai.RoleUser), Parts: []*genai.Part{part}})
		default:
			contents = append(contents, genai.NewContentFromText(msg.Text, genai.RoleUser))
		}
	}
	return contents
}

// Info returns metadata describing this Gemini model implementation.
func (m *Model) Info() model.Info {
	return model.Info{Name: m.opts.Model, Provider: "gemini", SupportsTools: true}
}
