package market_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/astrbot-devs/console-go/internal/botapi"
	"github.com/astrbot-devs/console-go/internal/market"
	"github.com/astrbot-devs/console-go/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// marketServer serves a market_list payload and counts hits.
func marketServer(t *testing.T, listing map[string]any) (*botapi.Client, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		json.NewEncoder(w).Encode(map[string]any{"status": "ok", "data": listing})
	}))
	t.Cleanup(server.Close)
	return botapi.New(server.URL, 5*time.Second), &calls
}

func noInstalled() []models.InstalledPlugin { return nil }

func TestFetchMemoization(t *testing.T) {
	client, calls := marketServer(t, map[string]any{
		"astrbot_plugin_a": map[string]any{"version": "1.0.0"},
	})
	s := market.New(client, nil, noInstalled)

	_, err := s.Fetch(context.Background(), "", false)
	require.NoError(t, err)
	_, err = s.Fetch(context.Background(), "", false)
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load(), "second fetch for the same source should hit the cache")

	_, err = s.Fetch(context.Background(), "", true)
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load(), "force should bypass the cache")

	_, err = s.Fetch(context.Background(), "https://mirror.example/plugins.json", false)
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load(), "a different source should always fetch")
}

func TestMarkInstalledPartition(t *testing.T) {
	client, _ := marketServer(t, map[string]any{
		"a": map[string]any{"name": "a", "repo": "https://github.com/x/a"},
		"b": map[string]any{"name": "b", "repo": "https://github.com/x/b"},
		"c": map[string]any{"name": "c"},
		"d": map[string]any{"name": "d", "repo": "https://github.com/x/d"},
	})
	s := market.New(client, nil, noInstalled)
	require.NoError(t, s.Load(context.Background(), "", false, false))

	installed := []models.InstalledPlugin{
		{Name: "other", Repo: "HTTPS://GITHUB.COM/X/B"}, // repo match is case-insensitive
		{Name: "c"},                                     // name match
	}
	s.MarkInstalled(installed)

	names := func() []string {
		var out []string
		for _, p := range s.Plugins() {
			out = append(out, p.Name)
		}
		return out
	}
	assert.Equal(t, []string{"a", "d", "b", "c"}, names(), "installed entries sink to the end, order preserved")

	for _, p := range s.Plugins() {
		if p.Name == "b" || p.Name == "c" {
			assert.True(t, p.Installed, "%s should be flagged installed", p.Name)
		} else {
			assert.False(t, p.Installed)
		}
	}

	// Idempotent: a second pass with the same installed set changes nothing.
	s.MarkInstalled(installed)
	assert.Equal(t, []string{"a", "d", "b", "c"}, names())
}

func TestSortedByStars(t *testing.T) {
	client, _ := marketServer(t, map[string]any{
		"low":  map[string]any{"name": "low"},
		"mid":  map[string]any{"name": "mid", "stars": 5},
		"high": map[string]any{"name": "high", "stars": 10},
	})
	s := market.New(client, nil, noInstalled)
	require.NoError(t, s.Load(context.Background(), "", false, false))

	s.SetSort(market.SortStars, "desc")
	sorted := s.Sorted()
	require.Len(t, sorted, 3)
	assert.Equal(t, []int{10, 5, 0}, []int{sorted[0].Stars, sorted[1].Stars, sorted[2].Stars})

	s.SetSort(market.SortStars, "asc")
	sorted = s.Sorted()
	assert.Equal(t, []int{0, 5, 10}, []int{sorted[0].Stars, sorted[1].Stars, sorted[2].Stars})
}

func TestDefaultSortPinsFirst(t *testing.T) {
	client, _ := marketServer(t, map[string]any{
		"aaa": map[string]any{"name": "aaa"},
		"zzz": map[string]any{"name": "zzz", "pinned": true},
	})
	s := market.New(client, nil, noInstalled)
	require.NoError(t, s.Load(context.Background(), "", false, false))

	sorted := s.Sorted()
	require.Len(t, sorted, 2)
	assert.Equal(t, "zzz", sorted[0].Name)
}

func TestPagination(t *testing.T) {
	listing := make(map[string]any, 12)
	for i := 0; i < 12; i++ {
		key := fmt.Sprintf("plugin-%02d", i)
		listing[key] = map[string]any{"name": key}
	}
	client, _ := marketServer(t, listing)
	s := market.New(client, nil, noInstalled)
	require.NoError(t, s.Load(context.Background(), "", false, false))

	assert.Equal(t, 2, s.TotalPages())
	assert.Len(t, s.Page(), market.PageSize)

	s.SetPage(2)
	assert.Len(t, s.Page(), 12-market.PageSize)

	s.SetPage(99)
	assert.Empty(t, s.Page(), "a page past the end is empty, not an error")

	s.SetPage(0)
	assert.Equal(t, 1, s.CurrentPage(), "pages clamp at 1")
}

func TestSearchDebounce(t *testing.T) {
	client, _ := marketServer(t, map[string]any{
		"astrbot_plugin_weather": map[string]any{"name": "astrbot_plugin_weather"},
		"astrbot_plugin_music":   map[string]any{"name": "astrbot_plugin_music"},
	})
	s := market.New(client, nil, noInstalled)
	require.NoError(t, s.Load(context.Background(), "", false, false))

	s.SetPage(2)
	s.SetSearch("weather")

	// The query has not taken effect yet.
	assert.Len(t, s.Filtered(), 2)

	time.Sleep(market.SearchDebounce + 100*time.Millisecond)
	filtered := s.Filtered()
	require.Len(t, filtered, 1)
	assert.Equal(t, "astrbot_plugin_weather", filtered[0].Name)
	assert.Equal(t, 1, s.CurrentPage(), "an applied query resets pagination")
}
