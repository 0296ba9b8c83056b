// Plugin source registry: the user-defined marketplace registries plus the
// persisted selection of which one feeds the market tab.

package sources

import (
	"context"
	"log"
	"net/url"
	"strings"
	"sync"

	"github.com/astrbot-devs/console-go/internal/botapi"
	"github.com/astrbot-devs/console-go/internal/models"
	"github.com/astrbot-devs/console-go/internal/notify"
	"github.com/astrbot-devs/console-go/internal/store"
)

// Registry manages the source list and the active selection. The list lives
// on the bot backend; the selection persists locally so it survives restarts.
type Registry struct {
	client   *botapi.Client
	settings *store.Store
	notifier notify.Notifier

	// onSelect fires whenever the active selection changes (including via
	// edits and removals that re-point or clear it); the page orchestrator
	// invalidates its market cache in response.
	onSelect func(ctx context.Context, sourceURL string)

	mu      sync.Mutex
	sources []models.PluginSource
	// selected is "" for the default registry.
	selected string
}

// New creates a registry. onSelect may be nil.
func New(client *botapi.Client, settings *store.Store, notifier notify.Notifier, onSelect func(ctx context.Context, sourceURL string)) *Registry {
	return &Registry{
		client:   client,
		settings: settings,
		notifier: notifier,
		onSelect: onSelect,
		selected: settings.SelectedSource(),
	}
}

func (r *Registry) toast(message any, color string) {
	if r.notifier != nil {
		r.notifier.Toast(message, color, 0)
	}
}

// Load fetches the source list and reconciles the persisted selection: a
// selection pointing at a URL no longer in the list falls back to the
// default registry.
func (r *Registry) Load(ctx context.Context) error {
	sources, err := r.client.GetSources(ctx)
	if err != nil {
		r.toast(err, notify.ToastError)
		return err
	}

	r.mu.Lock()
	r.sources = sources
	if r.selected != "" && !containsURL(sources, r.selected) {
		r.selected = ""
		if err := r.settings.SetSelectedSource(""); err != nil {
			log.Printf("Failed to clear stale source selection: %v", err)
		}
	}
	r.mu.Unlock()
	return nil
}

// Sources returns a snapshot of the known registries.
func (r *Registry) Sources() []models.PluginSource {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.PluginSource, len(r.sources))
	copy(out, r.sources)
	return out
}

// Selected returns the active registry URL, "" meaning the default.
func (r *Registry) Selected() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.selected
}

// save pushes the whole list to the backend; the list is always replaced
// wholesale rather than patched.
func (r *Registry) save(ctx context.Context, sources []models.PluginSource) error {
	if err := r.client.SaveSources(ctx, sources); err != nil {
		r.toast(err, notify.ToastError)
		return err
	}
	r.mu.Lock()
	r.sources = sources
	r.mu.Unlock()
	return nil
}

func validateSourceURL(rawURL string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return &botapi.ValidationError{Reason: "source URL must be a valid http(s) URL"}
	}
	return nil
}

// Add appends a new source. The URL must be a well-formed http(s) URL and
// not collide with an existing entry.
func (r *Registry) Add(ctx context.Context, name, rawURL string) error {
	name = strings.TrimSpace(name)
	rawURL = strings.TrimSpace(rawURL)
	if name == "" {
		err := &botapi.ValidationError{Reason: "source name is empty"}
		r.toast(err, notify.ToastError)
		return err
	}
	if err := validateSourceURL(rawURL); err != nil {
		r.toast(err, notify.ToastError)
		return err
	}

	r.mu.Lock()
	if containsURL(r.sources, rawURL) {
		r.mu.Unlock()
		err := &botapi.ValidationError{Reason: "a source with this URL already exists"}
		r.toast(err, notify.ToastError)
		return err
	}
	next := append(snapshotLocked(r.sources), models.PluginSource{Name: name, URL: rawURL})
	r.mu.Unlock()

	if err := r.save(ctx, next); err != nil {
		return err
	}
	r.toast("Plugin source added", notify.ToastSuccess)
	return nil
}

// Edit rewrites the source at oldURL. When the edited source was the active
// selection, the selection follows it to the new URL and the change
// propagates like a fresh selection.
func (r *Registry) Edit(ctx context.Context, oldURL, name, rawURL string) error {
	name = strings.TrimSpace(name)
	rawURL = strings.TrimSpace(rawURL)
	if err := validateSourceURL(rawURL); err != nil {
		r.toast(err, notify.ToastError)
		return err
	}

	r.mu.Lock()
	next := snapshotLocked(r.sources)
	found := false
	for i := range next {
		if next[i].URL == oldURL {
			next[i] = models.PluginSource{Name: name, URL: rawURL}
			found = true
			break
		}
	}
	wasSelected := r.selected == oldURL
	r.mu.Unlock()

	if !found {
		err := &botapi.ValidationError{Reason: "source not found"}
		r.toast(err, notify.ToastError)
		return err
	}
	if err := r.save(ctx, next); err != nil {
		return err
	}
	r.toast("Plugin source updated", notify.ToastSuccess)

	if wasSelected && oldURL != rawURL {
		return r.Select(ctx, rawURL)
	}
	return nil
}

// Remove deletes the source at the given URL. Removing the active selection
// drops back to the default registry.
func (r *Registry) Remove(ctx context.Context, rawURL string) error {
	r.mu.Lock()
	next := make([]models.PluginSource, 0, len(r.sources))
	for i := range r.sources {
		if r.sources[i].URL != rawURL {
			next = append(next, r.sources[i])
		}
	}
	removed := len(next) != len(r.sources)
	wasSelected := r.selected == rawURL
	r.mu.Unlock()

	if !removed {
		err := &botapi.ValidationError{Reason: "source not found"}
		r.toast(err, notify.ToastError)
		return err
	}
	if err := r.save(ctx, next); err != nil {
		return err
	}
	r.toast("Plugin source removed", notify.ToastSuccess)

	if wasSelected {
		return r.Select(ctx, "")
	}
	return nil
}

// Select makes sourceURL the active registry ("" for the default), persists
// the choice and notifies the page orchestrator.
func (r *Registry) Select(ctx context.Context, sourceURL string) error {
	r.mu.Lock()
	r.selected = sourceURL
	r.mu.Unlock()

	if err := r.settings.SetSelectedSource(sourceURL); err != nil {
		log.Printf("Failed to persist source selection: %v", err)
	}
	if r.onSelect != nil {
		r.onSelect(ctx, sourceURL)
	}
	return nil
}

func containsURL(sources []models.PluginSource, rawURL string) bool {
	for i := range sources {
		if sources[i].URL == rawURL {
			return true
		}
	}
	return false
}

func snapshotLocked(sources []models.PluginSource) []models.PluginSource {
	out := make([]models.PluginSource, len(sources))
	copy(out, sources)
	return out
}
