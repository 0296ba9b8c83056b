package botapi_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/astrbot-devs/console-go/internal/botapi"
	"github.com/astrbot-devs/console-go/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *botapi.Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return botapi.New(server.URL, 5*time.Second)
}

func TestMarketListNormalization(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"ok","data":{
			"zeta": {"desc": "no name or version"},
			"astrbot_plugin_alpha": {"name": "astrbot_plugin_alpha", "version": "1.2.0", "stars": 7, "tags": ["tool"]}
		}}`))
	})

	plugins, err := client.MarketList(context.Background(), false, "")
	require.NoError(t, err)
	require.Len(t, plugins, 2)

	// Entries come back in stable key order.
	assert.Equal(t, "astrbot_plugin_alpha", plugins[0].Name)
	assert.Equal(t, "1.2.0", plugins[0].Version)
	assert.Equal(t, 7, plugins[0].Stars)

	// Missing fields get their documented defaults.
	assert.Equal(t, "zeta", plugins[1].Name)
	assert.Equal(t, models.UnknownVersion, plugins[1].Version)
	assert.Equal(t, 0, plugins[1].Stars)
	assert.NotNil(t, plugins[1].Tags)
	assert.Empty(t, plugins[1].Tags)
}

func TestGetInstalledPluginsRejectsNonArray(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"ok","data":{"name":"not-a-list"}}`))
	})

	_, err := client.GetInstalledPlugins(context.Background())
	require.Error(t, err)
	var fetchErr *botapi.FetchError
	assert.True(t, errors.As(err, &fetchErr))
}

func TestGetInstalledPluginsEmptyArray(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"ok","data":[]}`))
	})

	plugins, err := client.GetInstalledPlugins(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, plugins)
	assert.Empty(t, plugins)
}

func TestUpdatePluginBackendFailure(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"error","message":"git clone failed"}`))
	})

	_, _, err := client.UpdatePlugin(context.Background(), "alpha", "")
	require.Error(t, err)

	var installErr *botapi.InstallError
	require.True(t, errors.As(err, &installErr))
	assert.Equal(t, "git clone failed", installErr.Message)
}

func TestMalformedEnvelope(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`this is not json`))
	})

	_, err := client.GetInstalledPlugins(context.Background())
	var fetchErr *botapi.FetchError
	require.True(t, errors.As(err, &fetchErr))
}
