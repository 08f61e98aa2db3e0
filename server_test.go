package policyqa

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alibaba/higress/plugins/golang-filter/mcp-server/servers/policyqa/registry"
	"github.com/alibaba/higress/plugins/golang-filter/mcp-server/servers/policyqa/schema"
)

type fakeService struct {
	answer string
	err    error
	asked  []string
}

func (f *fakeService) Ask(ctx context.Context, question string) (schema.Outcome, error) {
	f.asked = append(f.asked, question)
	if f.err != nil {
		return schema.Outcome{}, f.err
	}
	return schema.Outcome{Answer: f.answer, Path: schema.PathSynthesized}, nil
}

func (f *fakeService) Sources() []registry.SourceInfo {
	return []registry.SourceInfo{
		{ID: "cardif", Label: "CARDIF", Variant: "single"},
		{ID: "april", Label: "APRIL", Variant: "multi_chunk"},
	}
}

func callRequest(name string, args map[string]any) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, res)
	require.Len(t, res.Content, 1)
	text, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected text content, got %T", res.Content[0])
	return text.Text
}

func TestHandleAsk(t *testing.T) {
	tests := []struct {
		name      string
		args      map[string]any
		svc       *fakeService
		wantText  string
		wantError bool
		wantErr   bool
	}{
		{
			name:     "answers question",
			args:     map[string]any{"question": "Quel délai de carence ?"},
			svc:      &fakeService{answer: "90 jours"},
			wantText: "90 jours",
		},
		{
			name:      "missing argument",
			args:      map[string]any{},
			svc:       &fakeService{},
			wantError: true,
		},
		{
			name:      "blank question",
			args:      map[string]any{"question": "  "},
			svc:       &fakeService{err: ErrEmptyQuestion},
			wantError: true,
			wantText:  "question must not be empty",
		},
		{
			name:    "pipeline failure",
			args:    map[string]any{"question": "q"},
			svc:     &fakeService{err: errors.New("boom")},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := HandleAsk(tt.svc)(context.Background(), callRequest("ask", tt.args))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantError, res.IsError)
			if tt.wantText != "" {
				assert.Equal(t, tt.wantText, resultText(t, res))
			}
		})
	}
}

func TestHandleListSources(t *testing.T) {
	res, err := HandleListSources(&fakeService{})(context.Background(), callRequest("list-sources", nil))
	require.NoError(t, err)

	var got []registry.SourceInfo
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &got))
	require.Len(t, got, 2)
	assert.EqualValues(t, "cardif", got[0].ID)
	assert.Equal(t, "APRIL", got[1].Label)
}

func TestNewMCPServer_RegistersTools(t *testing.T) {
	s := NewMCPServer("policyqa", &fakeService{})
	resp := s.HandleMessage(context.Background(), json.RawMessage(`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`))

	data, err := json.Marshal(resp)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"name":"ask"`)
	assert.Contains(t, string(data), `"name":"list-sources"`)
}
