package sources_test

import (
	"context"
	"errors"
	"testing"

	"github.com/astrbot-devs/console-go/internal/botapi"
	"github.com/astrbot-devs/console-go/internal/models"
	"github.com/astrbot-devs/console-go/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddSource(t *testing.T) {
	app, backend := testutil.SetupTestApp(t)
	src := app.Sources()

	require.NoError(t, src.Add(context.Background(), "Mirror", "https://mirror.example/plugins.json"))

	unlock := backend.Lock()
	saved := backend.Sources
	unlock()
	require.Len(t, saved, 1)
	assert.Equal(t, "Mirror", saved[0].Name)

	var verr *botapi.ValidationError
	err := src.Add(context.Background(), "Dup", "https://mirror.example/plugins.json")
	require.True(t, errors.As(err, &verr), "duplicate URLs are rejected")

	err = src.Add(context.Background(), "Bad", "ftp://mirror.example")
	require.True(t, errors.As(err, &verr), "non-http schemes are rejected")

	err = src.Add(context.Background(), "", "https://other.example")
	require.True(t, errors.As(err, &verr), "empty names are rejected")
}

func TestEditRepointsSelection(t *testing.T) {
	app, _ := testutil.SetupTestApp(t)
	src := app.Sources()

	require.NoError(t, src.Add(context.Background(), "Mirror", "https://old.example/plugins.json"))
	require.NoError(t, src.Select(context.Background(), "https://old.example/plugins.json"))

	require.NoError(t, src.Edit(context.Background(), "https://old.example/plugins.json", "Mirror", "https://new.example/plugins.json"))

	assert.Equal(t, "https://new.example/plugins.json", src.Selected(), "selection follows the edited URL")
	assert.Equal(t, "https://new.example/plugins.json", app.Settings().SelectedSource(), "repointed selection persists")
}

func TestRemoveClearsSelection(t *testing.T) {
	app, _ := testutil.SetupTestApp(t)
	src := app.Sources()

	require.NoError(t, src.Add(context.Background(), "Mirror", "https://mirror.example/plugins.json"))
	require.NoError(t, src.Select(context.Background(), "https://mirror.example/plugins.json"))

	require.NoError(t, src.Remove(context.Background(), "https://mirror.example/plugins.json"))

	assert.Empty(t, src.Selected(), "removing the active source drops back to the default")
	assert.Empty(t, src.Sources())
}

func TestLoadReconcilesStaleSelection(t *testing.T) {
	app, backend := testutil.SetupTestApp(t)
	src := app.Sources()

	// Select a source the backend will no longer list.
	require.NoError(t, src.Select(context.Background(), "https://gone.example/plugins.json"))

	unlock := backend.Lock()
	backend.Sources = []models.PluginSource{{Name: "Mirror", URL: "https://mirror.example/plugins.json"}}
	unlock()

	require.NoError(t, src.Load(context.Background()))
	assert.Empty(t, src.Selected(), "a selection missing from the list falls back to the default")
	assert.Empty(t, app.Settings().SelectedSource())
}

func TestRemoveUnknownSource(t *testing.T) {
	app, _ := testutil.SetupTestApp(t)

	var verr *botapi.ValidationError
	err := app.Sources().Remove(context.Background(), "https://nowhere.example")
	require.True(t, errors.As(err, &verr))
}
