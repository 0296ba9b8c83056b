package conflict_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/astrbot-devs/console-go/internal/botapi"
	"github.com/astrbot-devs/console-go/internal/conflict"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func conflictClient(t *testing.T, handler http.HandlerFunc) *botapi.Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return botapi.New(server.URL, 5*time.Second)
}

func TestPromptOnConflicts(t *testing.T) {
	client := conflictClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"status": "ok",
			"data":   map[string]any{"summary": map[string]any{"conflicts": 3}},
		})
	})

	navigated := false
	p := conflict.New(client, func() { navigated = true })
	p.CheckAndPrompt(context.Background())

	prompt := p.Snapshot()
	require.True(t, prompt.Show)
	assert.Equal(t, 3, prompt.Conflicts)

	p.Confirm()
	assert.True(t, navigated)
	assert.False(t, p.Snapshot().Show)
}

func TestNoPromptWithoutConflicts(t *testing.T) {
	client := conflictClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"status": "ok",
			"data":   map[string]any{"summary": map[string]any{"conflicts": 0}},
		})
	})

	p := conflict.New(client, nil)
	p.CheckAndPrompt(context.Background())
	assert.False(t, p.Snapshot().Show)
}

func TestCheckFailureIsSwallowed(t *testing.T) {
	client := conflictClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("backend down"))
	})

	p := conflict.New(client, nil)
	// The check is advisory; a failing backend must not panic or prompt.
	p.CheckAndPrompt(context.Background())
	assert.False(t, p.Snapshot().Show)
}

func TestDismiss(t *testing.T) {
	client := conflictClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"status": "ok",
			"data":   map[string]any{"summary": map[string]any{"conflicts": 1}},
		})
	})

	navigated := false
	p := conflict.New(client, func() { navigated = true })
	p.CheckAndPrompt(context.Background())
	p.Dismiss()

	assert.False(t, p.Snapshot().Show)
	assert.False(t, navigated, "dismiss never navigates")
}
