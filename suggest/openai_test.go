package suggest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chatServer(t *testing.T, status int, body string, seen *chatRequest) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		if seen != nil {
			assert.NoError(t, json.NewDecoder(r.Body).Decode(seen))
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestOpenAIClient_Suggest(t *testing.T) {
	var seen chatRequest
	srv := chatServer(t, http.StatusOK,
		`{"choices":[{"message":{"role":"assistant","content":"Here:\n`+"```python\\ndef bar():\\n    pass\\n```"+`"}}]}`, &seen)

	client := NewOpenAIClient(Config{BaseURL: srv.URL + "/", APIKey: "secret", Model: "test-model"})
	text, err := client.Suggest(context.Background(), Request{Kind: "function_definition", Text: "def foo():\n    pass", Intent: "rename foo to bar", Language: "python"})
	require.NoError(t, err)
	assert.Equal(t, "def bar():\n    pass", text)

	assert.Equal(t, "test-model", seen.Model)
	require.Len(t, seen.Messages, 2)
	assert.Equal(t, "system", seen.Messages[0].Role)
	assert.Contains(t, seen.Messages[1].Content, "rename foo to bar")
}

func TestOpenAIClient_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		kind   ErrorKind
	}{
		{"rate limited", http.StatusTooManyRequests, `{"error":{"message":"slow down"}}`, RateLimited},
		{"unauthorized", http.StatusUnauthorized, `{"error":{"message":"bad key"}}`, AuthFailed},
		{"forbidden", http.StatusForbidden, ``, AuthFailed},
		{"server error", http.StatusBadGateway, `oops`, NetworkFailure},
		{"bad request", http.StatusBadRequest, `{}`, BadResponse},
		{"no choices", http.StatusOK, `{"choices":[]}`, BadResponse},
		{"not json", http.StatusOK, `<html>`, BadResponse},
		{"empty content", http.StatusOK, `{"choices":[{"message":{"content":"   "}}]}`, BadResponse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := chatServer(t, tt.status, tt.body, nil)
			client := NewOpenAIClient(Config{BaseURL: srv.URL, APIKey: "secret"})

			_, err := client.Suggest(context.Background(), Request{Text: "x"})
			require.Error(t, err)
			var se *ServiceError
			require.ErrorAs(t, err, &se)
			assert.Equal(t, tt.kind, se.Kind)
		})
	}
}

func TestOpenAIClient_ErrorMessage(t *testing.T) {
	srv := chatServer(t, http.StatusUnauthorized, `{"error":{"message":"bad key"}}`, nil)
	_, err := NewOpenAIClient(Config{BaseURL: srv.URL, APIKey: "secret"}).Suggest(context.Background(), Request{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad key")
}

func TestOpenAIClient_NetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewOpenAIClient(Config{BaseURL: url}).Suggest(context.Background(), Request{})
	assert.True(t, IsKind(err, NetworkFailure))
}

func TestOpenAIClient_Cancelled(t *testing.T) {
	srv := chatServer(t, http.StatusOK, `{"choices":[{"message":{"content":"x"}}]}`, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewOpenAIClient(Config{BaseURL: srv.URL, APIKey: "secret"}).Suggest(ctx, Request{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewOpenAIClient_Defaults(t *testing.T) {
	client := NewOpenAIClient(Config{})
	assert.Equal(t, DefaultBaseURL, client.baseURL)
	assert.Equal(t, DefaultModel, client.model)
	assert.Equal(t, DefaultTimeout, client.http.Timeout)
}
