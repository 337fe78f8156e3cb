// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/priorart-engine/pkg/types"
)

func init() {
	retryDelay = time.Millisecond
}

type verdict struct {
	Score int    `json:"score"`
	Note  string `json:"note"`
}

func (v *verdict) Validate() error {
	if v.Score < 0 || v.Score > 100 {
		return errors.New("score out of range")
	}
	return nil
}

// scripted returns canned JSON replies in order.
type scripted struct {
	replies []string
	errs    []error
	calls   int32
}

func (s *scripted) Model() string { return "scripted" }

func (s *scripted) Chat(_ context.Context, _ Request, result any) (*Response, error) {
	i := int(atomic.AddInt32(&s.calls, 1)) - 1
	if i < len(s.errs) && s.errs[i] != nil {
		return nil, s.errs[i]
	}
	return &Response{}, json.Unmarshal([]byte(s.replies[i]), result)
}

func TestGenerateRetriesInvalidOutput(t *testing.T) {
	c := &scripted{replies: []string{`{"score":150,"note":"x"}`, `{"score":70,"note":"ok"}`}}

	got, err := Generate[verdict](context.Background(), c, Request{SchemaName: "verdict"}, 3)
	require.NoError(t, err)
	assert.Equal(t, verdict{Score: 70, Note: "ok"}, got)
	assert.Equal(t, int32(2), atomic.LoadInt32(&c.calls))
}

func TestGenerateGivesUpAfterAttempts(t *testing.T) {
	c := &scripted{replies: []string{`{"score":-1}`, `{"score":-1}`}}

	_, err := Generate[verdict](context.Background(), c, Request{SchemaName: "verdict"}, 2)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidOutput)
	assert.Equal(t, int32(2), atomic.LoadInt32(&c.calls))
}

func TestGenerateDoesNotRetryCancellation(t *testing.T) {
	c := &scripted{errs: []error{context.Canceled}, replies: []string{""}}

	_, err := Generate[verdict](context.Background(), c, Request{SchemaName: "verdict"}, 3)
	require.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&c.calls))
}

func TestGenerateSchemaIsInline(t *testing.T) {
	schema := GenerateSchema[verdict]()
	data, err := json.Marshal(schema)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "$ref")
	assert.Contains(t, string(data), `"additionalProperties":false`)
}

func TestWithObserver(t *testing.T) {
	c := &scripted{replies: []string{`{"score":1,"note":""}`}}
	var seen string
	wrapped := WithObserver(c, func(schema string, _ time.Duration, err error) {
		seen = schema
		assert.NoError(t, err)
	})

	var v verdict
	_, err := wrapped.Chat(context.Background(), Request{SchemaName: "verdict"}, &v)
	require.NoError(t, err)
	assert.Equal(t, "verdict", seen)
	assert.Same(t, Client(c), WithObserver(c, nil))
}

func TestOpenAIClientChat(t *testing.T) {
	var body map[string]any
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		data, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(data, &body))

		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{
			"id": "cmpl-1", "object": "chat.completion", "created": 1, "model": "fast-model",
			"choices": [{"index": 0, "finish_reason": "stop",
				"message": {"role": "assistant", "content": "{\"score\":42,\"note\":\"hinge\"}"}}],
			"usage": {"prompt_tokens": 11, "completion_tokens": 7, "total_tokens": 18}
		}`)
	}))
	defer ts.Close()

	c, err := NewOpenAI(types.AIConfig{APIKey: "sk-test", BaseURL: ts.URL + "/", Model: "main-model", FastModel: "fast-model"})
	require.NoError(t, err)

	var v verdict
	resp, err := c.Chat(context.Background(), Request{
		SystemPrompt: "sys", UserPrompt: "user", SchemaName: "verdict",
		Schema: GenerateSchema[verdict](), Fast: true,
	}, &v)
	require.NoError(t, err)
	assert.Equal(t, verdict{Score: 42, Note: "hinge"}, v)
	assert.Equal(t, 11, resp.PromptTokens)
	assert.Equal(t, "fast-model", body["model"])
	assert.Equal(t, "main-model", c.Model())
}

func TestNewRejectsUnknownProvider(t *testing.T) {
	_, err := New(types.AIConfig{Provider: "carrier-pigeon"})
	assert.Error(t, err)

	_, err = New(types.AIConfig{Provider: "openai"})
	assert.Error(t, err, "missing API key")
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", `{"a":1}`, `{"a":1}`},
		{"fenced", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"prose around", "Here you go: {\"a\":[1,2]} hope it helps", `{"a":[1,2]}`},
		{"trailing comma", `{"a":[1,2,],}`, `{"a":[1,2]}`},
		{"comment", "{\n\"url\": \"http://x\", // link\n\"b\": 2\n}", "{\n\"url\": \"http://x\",\n\"b\": 2\n}"},
		{"none", "no json here", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractJSON(tt.in))
		})
	}
}
