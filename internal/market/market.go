// In-memory marketplace cache for the currently selected registry: fetch,
// annotation (name trimming, search index, installed-state), and the
// filter/sort/paginate views behind the market tab.

package market

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/astrbot-devs/console-go/internal/botapi"
	"github.com/astrbot-devs/console-go/internal/models"
	"github.com/astrbot-devs/console-go/internal/notify"
	"github.com/astrbot-devs/console-go/internal/util"
)

// PageSize is the fixed number of cards per market page.
const PageSize = 9

// SearchDebounce is the quiet period before a typed query takes effect.
const SearchDebounce = 300 * time.Millisecond

// Sort modes accepted by SetSort.
const (
	SortDefault = "default"
	SortStars   = "stars"
	SortAuthor  = "author"
	SortUpdated = "updated"
)

// Store holds one registry's market listing plus the derived views. Only one
// registry's data is held at a time; fetching for a different source always
// replaces the working set.
type Store struct {
	client   *botapi.Client
	notifier notify.Notifier
	// installed supplies the current installed set for the annotation pass.
	installed func() []models.InstalledPlugin

	group singleflight.Group

	mu         sync.Mutex
	plugins    []models.MarketPlugin
	lastSource string
	fetched    bool
	refreshing bool

	search    string
	debounced string
	debouncer *util.Debouncer

	sortBy    string
	sortOrder string
	page      int
}

// New creates an empty market store.
func New(client *botapi.Client, notifier notify.Notifier, installed func() []models.InstalledPlugin) *Store {
	return &Store{
		client:    client,
		notifier:  notifier,
		installed: installed,
		debouncer: util.NewDebouncer(SearchDebounce),
		sortBy:    SortDefault,
		sortOrder: "desc",
		page:      1,
	}
}

// Fetch retrieves the listing for the given source ("" means the default
// registry). When force is false and the cached data already belongs to this
// source, no network call is made. On success the working set is replaced
// wholesale; on failure prior data is left untouched.
func (s *Store) Fetch(ctx context.Context, source string, force bool) ([]models.MarketPlugin, error) {
	s.mu.Lock()
	if !force && s.fetched && s.lastSource == source {
		cached := snapshot(s.plugins)
		s.mu.Unlock()
		return cached, nil
	}
	s.mu.Unlock()

	// Concurrent fetches for the same source collapse into one request.
	result, err, _ := s.group.Do(source, func() (any, error) {
		return s.client.MarketList(ctx, force, source)
	})
	if err != nil {
		return nil, err
	}
	plugins := result.([]models.MarketPlugin)

	s.mu.Lock()
	s.plugins = plugins
	s.lastSource = source
	s.fetched = true
	cached := snapshot(s.plugins)
	s.mu.Unlock()
	return cached, nil
}

// Load is the full refresh path behind the market tab: fetch, annotate, mark
// installed-state and reset to page 1. Failures are surfaced as a toast and
// leave prior state intact.
func (s *Store) Load(ctx context.Context, source string, force, toastOnSuccess bool) error {
	s.mu.Lock()
	s.refreshing = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.refreshing = false
		s.mu.Unlock()
	}()

	if _, err := s.Fetch(ctx, source, force); err != nil {
		if s.notifier != nil {
			s.notifier.Toast("Failed to refresh plugin market: "+botapi.NormalizeMessage(err), notify.ToastError, 0)
		}
		return err
	}

	s.Reindex()
	s.MarkInstalled(s.installed())

	s.mu.Lock()
	s.page = 1
	s.mu.Unlock()

	if toastOnSuccess && s.notifier != nil {
		s.notifier.Toast("Plugin market refreshed", notify.ToastSuccess, 0)
	}
	return nil
}

// Refreshing reports whether a Load is in flight.
func (s *Store) Refreshing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refreshing
}

// Reindex recomputes the trimmed display name and the search index for every
// entry in the working set.
func (s *Store) Reindex() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.plugins {
		p := &s.plugins[i]
		if p.Name != "" {
			p.TrimmedName = trimName(p.Name)
		}
		p.SearchIndex = buildSearchIndex(p)
	}
}

// MarkInstalled flags entries matching an installed plugin by repo
// (case-insensitive) or name, then reorders the working set so non-installed
// entries precede installed ones, keeping relative order inside each
// partition. Installed plugins sink to the end. Idempotent.
func (s *Store) MarkInstalled(installed []models.InstalledPlugin) {
	repos := make(map[string]bool, len(installed))
	names := make(map[string]bool, len(installed))
	for i := range installed {
		if installed[i].Repo != "" {
			repos[strings.ToLower(installed[i].Repo)] = true
		}
		names[installed[i].Name] = true
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	notInstalled := make([]models.MarketPlugin, 0, len(s.plugins))
	installedList := make([]models.MarketPlugin, 0)
	for i := range s.plugins {
		p := s.plugins[i]
		p.Installed = repos[strings.ToLower(p.Repo)] || names[p.Name]
		if p.Installed {
			installedList = append(installedList, p)
		} else {
			notInstalled = append(notInstalled, p)
		}
	}
	s.plugins = append(notInstalled, installedList...)
}

// SetSearch records the typed query; it takes effect after the debounce
// quiet period, resetting pagination to page 1.
func (s *Store) SetSearch(query string) {
	s.mu.Lock()
	s.search = query
	s.mu.Unlock()

	s.debouncer.Trigger(func() {
		s.mu.Lock()
		s.debounced = query
		s.page = 1
		s.mu.Unlock()
	})
}

// Search returns the raw (not yet debounced) query.
func (s *Store) Search() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.search
}

// SetSort selects the sort mode and direction.
func (s *Store) SetSort(by, order string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sortBy = by
	s.sortOrder = order
}

// SetPage moves pagination; pages below 1 clamp to 1.
func (s *Store) SetPage(page int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if page < 1 {
		page = 1
	}
	s.page = page
}

// CurrentPage returns the active page number.
func (s *Store) CurrentPage() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.page
}

// Plugins returns a snapshot of the full working set.
func (s *Store) Plugins() []models.MarketPlugin {
	s.mu.Lock()
	defer s.mu.Unlock()
	return snapshot(s.plugins)
}

// Filtered returns the working set narrowed by the debounced query.
func (s *Store) Filtered() []models.MarketPlugin {
	s.mu.Lock()
	query := s.debounced
	plugins := snapshot(s.plugins)
	s.mu.Unlock()

	if query == "" {
		return plugins
	}
	filtered := make([]models.MarketPlugin, 0, len(plugins))
	for i := range plugins {
		if Matches(&plugins[i], query) {
			filtered = append(filtered, plugins[i])
		}
	}
	return filtered
}

// Sorted returns the filtered view in the selected order. All sorts are
// stable: ties preserve prior relative order.
func (s *Store) Sorted() []models.MarketPlugin {
	s.mu.Lock()
	sortBy, sortOrder := s.sortBy, s.sortOrder
	s.mu.Unlock()

	plugins := s.Filtered()
	desc := sortOrder == "desc"

	switch sortBy {
	case SortStars:
		sort.SliceStable(plugins, func(i, j int) bool {
			if desc {
				return plugins[i].Stars > plugins[j].Stars
			}
			return plugins[i].Stars < plugins[j].Stars
		})
	case SortAuthor:
		sort.SliceStable(plugins, func(i, j int) bool {
			a := strings.ToLower(plugins[i].Author)
			b := strings.ToLower(plugins[j].Author)
			if desc {
				return a > b
			}
			return a < b
		})
	case SortUpdated:
		sort.SliceStable(plugins, func(i, j int) bool {
			a := parseUpdatedAt(plugins[i].UpdatedAt)
			b := parseUpdatedAt(plugins[j].UpdatedAt)
			if desc {
				return a.After(b)
			}
			return a.Before(b)
		})
	default:
		// Pinned entries first, stable order otherwise; direction is
		// ignored for the default sort.
		sort.SliceStable(plugins, func(i, j int) bool {
			return plugins[i].Pinned && !plugins[j].Pinned
		})
	}
	return plugins
}

// TotalPages returns the page count for the current sorted+filtered view.
func (s *Store) TotalPages() int {
	count := len(s.Sorted())
	return (count + PageSize - 1) / PageSize
}

// Page returns the half-open slice of the sorted+filtered view for the
// active page.
func (s *Store) Page() []models.MarketPlugin {
	plugins := s.Sorted()

	s.mu.Lock()
	page := s.page
	s.mu.Unlock()

	start := (page - 1) * PageSize
	if start >= len(plugins) {
		return []models.MarketPlugin{}
	}
	end := start + PageSize
	if end > len(plugins) {
		end = len(plugins)
	}
	return plugins[start:end]
}

// parseUpdatedAt turns the listing's updated_at into a time; missing or
// unparsable values sort as epoch 0.
func parseUpdatedAt(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

func snapshot(plugins []models.MarketPlugin) []models.MarketPlugin {
	out := make([]models.MarketPlugin, len(plugins))
	copy(out, plugins)
	return out
}
