// A shared test app setup utility, which simplifies component and API tests.

package testutil

import (
	"path/filepath"
	"testing"

	"github.com/astrbot-devs/console-go/internal/config"
	"github.com/astrbot-devs/console-go/internal/core"
)

// SetupTestApp builds a fully wired app against a fresh fake backend and a
// throwaway database.
func SetupTestApp(t *testing.T) (*core.App, *FakeBackend) {
	t.Helper()

	backend := NewFakeBackend(t)

	cfg := &config.Config{}
	cfg.Database.Path = filepath.Join(t.TempDir(), "console.db")
	cfg.Backend.BaseURL = backend.URL()
	cfg.Backend.TimeoutSeconds = 5

	app, err := core.NewWithConfig(cfg)
	if err != nil {
		t.Fatalf("Failed to set up test app: %v", err)
	}
	t.Cleanup(app.Close)

	return app, backend
}
