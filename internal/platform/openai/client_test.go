package openai

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ngm9/Utkrusht-task-sub000/internal/platform/envutil"
	"github.com/ngm9/Utkrusht-task-sub000/internal/platform/logger"
)

func responseBody(text string) string {
	out, _ := json.Marshal(map[string]any{
		"id":         "resp_1",
		"object":     "response",
		"created_at": 1700000000,
		"model":      "gpt-5",
		"status":     "completed",
		"output": []any{map[string]any{
			"type":   "message",
			"id":     "msg_1",
			"role":   "assistant",
			"status": "completed",
			"content": []any{map[string]any{
				"type":        "output_text",
				"text":        text,
				"annotations": []any{},
			}},
		}},
		"usage": map[string]any{"input_tokens": 10, "output_tokens": 5, "total_tokens": 15},
	})
	return string(out)
}

type captured struct {
	path    string
	body    map[string]any
	headers http.Header
}

func newTestClient(t *testing.T, reply string, status int) (Client, *captured) {
	t.Helper()
	got := &captured{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got.path = r.URL.Path
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &got.body)
		got.headers = r.Header.Clone()
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, reply)
	}))
	t.Cleanup(srv.Close)

	c, err := NewClient(logger.Nop(), Config{
		APIKey:          "sk-test",
		BaseURL:         srv.URL + "/v1/",
		Model:           "gpt-5",
		ReasoningEffort: "low",
		Verbosity:       "high",
		MaxRetries:      0,
		PortkeyAPIKey:   "pk-test",
	})
	require.NoError(t, err)
	return c, got
}

func TestCompleteSendsTranscriptInOrder(t *testing.T) {
	c, got := newTestClient(t, responseBody("final answer"), http.StatusOK)

	text, err := c.Complete(context.Background(), []Message{
		{Role: RoleSystem, Content: "sys"},
		{Role: RoleUser, Content: "p1"},
		{Role: RoleAssistant, Content: "a1"},
		{Role: RoleUser, Content: "p2"},
	})
	require.NoError(t, err)
	require.Equal(t, "final answer", text)
	require.Equal(t, "/v1/responses", got.path)

	input, ok := got.body["input"].([]any)
	require.True(t, ok, "input should be a list")
	require.Len(t, input, 4)
	roles := []string{}
	for _, item := range input {
		roles = append(roles, item.(map[string]any)["role"].(string))
	}
	require.Equal(t, []string{"system", "user", "assistant", "user"}, roles)
	require.Equal(t, "gpt-5", got.body["model"])
	require.Equal(t, "low", got.body["reasoning"].(map[string]any)["effort"])
	require.Equal(t, "high", got.body["text"].(map[string]any)["verbosity"])
	require.Equal(t, "pk-test", got.headers.Get("x-portkey-api-key"))
	require.Equal(t, "Bearer sk-test", got.headers.Get("Authorization"))
}

func TestGenerateJSONUsesSchemaFormat(t *testing.T) {
	c, got := newTestClient(t, responseBody(`{"pass": true, "issues": []}`), http.StatusOK)
	schema := map[string]any{"type": "object"}

	obj, err := c.GenerateJSON(context.Background(), "sys", "user", "task_evaluation", schema)
	require.NoError(t, err)
	require.Equal(t, true, obj["pass"])

	format := got.body["text"].(map[string]any)["format"].(map[string]any)
	require.Equal(t, "json_schema", format["type"])
	require.Equal(t, "task_evaluation", format["name"])
	require.Equal(t, true, format["strict"])
}

func TestGenerateJSONTextUsesJSONObjectFormat(t *testing.T) {
	c, got := newTestClient(t, responseBody(`{"a":1}`), http.StatusOK)

	text, err := c.GenerateJSONText(context.Background(), "sys", "user")
	require.NoError(t, err)
	require.Equal(t, `{"a":1}`, text)
	format := got.body["text"].(map[string]any)["format"].(map[string]any)
	require.Equal(t, "json_object", format["type"])
}

func TestEmptyOutputIsAnError(t *testing.T) {
	c, _ := newTestClient(t, responseBody("   "), http.StatusOK)
	_, err := c.GenerateText(context.Background(), "sys", "user")
	require.Error(t, err)
}

func TestServerErrorPropagates(t *testing.T) {
	c, _ := newTestClient(t, `{"error":{"message":"boom","type":"server_error"}}`, http.StatusBadRequest)
	_, err := c.GenerateText(context.Background(), "sys", "user")
	require.Error(t, err)
}

func TestNewClientRequiresAPIKey(t *testing.T) {
	_, err := NewClient(logger.Nop(), Config{})
	require.True(t, errors.Is(err, envutil.ErrMissingEnv), "got %v", err)
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-x")
	t.Setenv("OPENAI_MODEL", "gpt-5-mini")
	t.Setenv("OPENAI_TIMEOUT_SECONDS", "")
	cfg := ConfigFromEnv()
	if cfg.Model != "gpt-5-mini" {
		t.Fatalf("Model: want=%q got=%q", "gpt-5-mini", cfg.Model)
	}
	if cfg.Timeout != 0 {
		t.Fatalf("Timeout: want no deadline, got %s", cfg.Timeout)
	}
}
