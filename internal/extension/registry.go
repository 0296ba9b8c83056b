// Installed-plugin registry: owns the reactive installed set, the
// enable/disable/reload/uninstall/update lifecycle operations and the
// update-availability cross-reference against the marketplace listing.

package extension

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/astrbot-devs/console-go/internal/botapi"
	"github.com/astrbot-devs/console-go/internal/dialog"
	"github.com/astrbot-devs/console-go/internal/models"
	"github.com/astrbot-devs/console-go/internal/notify"
	"github.com/astrbot-devs/console-go/internal/store"
)

// UninstallOptions carries the destructive-call flags collected by the
// uninstall confirmation dialog.
type UninstallOptions struct {
	DeleteConfig bool `json:"delete_config"`
	DeleteData   bool `json:"delete_data"`
}

// ForceUpdateDialog is the confirmation slot shown when an update is
// requested for a plugin with no known update available.
type ForceUpdateDialog struct {
	Show       bool   `json:"show"`
	PluginName string `json:"plugin_name"`
}

// UninstallDialog is the confirmation slot for the two-phase uninstall.
type UninstallDialog struct {
	Show       bool   `json:"show"`
	PluginName string `json:"plugin_name"`
}

// Registry manages the installed-plugin set.
type Registry struct {
	client   *botapi.Client
	settings *store.Store
	dialog   *dialog.Controller
	notifier notify.Notifier

	// afterEnable runs after a successful activation (conflict prompting);
	// deactivation does not trigger it.
	afterEnable func(ctx context.Context)

	// refetchDelay is the pause between a successful update response and
	// the consistency re-fetch; the backend may finish the HTTP response
	// before the plugin process has fully restarted.
	refetchDelay time.Duration

	mu           sync.Mutex
	plugins      []models.InstalledPlugin
	loading      bool
	updatingAll  bool
	showReserved bool
	search       string

	uninstallDlg   UninstallDialog
	forceUpdateDlg ForceUpdateDialog

	configOpen      bool
	configNamespace string
}

// New creates a registry. afterEnable may be nil.
func New(client *botapi.Client, settings *store.Store, dlg *dialog.Controller, notifier notify.Notifier, afterEnable func(ctx context.Context)) *Registry {
	return &Registry{
		client:       client,
		settings:     settings,
		dialog:       dlg,
		notifier:     notifier,
		afterEnable:  afterEnable,
		refetchDelay: time.Second,
	}
}

func (r *Registry) toast(message any, color string) {
	if r.notifier != nil {
		r.notifier.Toast(message, color, 0)
	}
}

// Plugins returns a snapshot of the installed set.
func (r *Registry) Plugins() []models.InstalledPlugin {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.InstalledPlugin, len(r.plugins))
	copy(out, r.plugins)
	return out
}

// Loading reports whether a fetch or install is in flight. The flag is a
// simple non-reentrancy gate, not a mutex.
func (r *Registry) Loading() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.loading
}

// SetLoading flips the shared loading gate; the install orchestrator and
// batch checkout hold it for their duration.
func (r *Registry) SetLoading(v bool) {
	r.mu.Lock()
	r.loading = v
	r.mu.Unlock()
}

// replaceAll swaps in a wholesale new installed set.
func (r *Registry) replaceAll(plugins []models.InstalledPlugin) {
	r.mu.Lock()
	r.plugins = plugins
	r.mu.Unlock()
}

// Fetch retrieves the full installed set from the backend. A malformed
// payload is fatal for the call: the prior set is kept untouched.
func (r *Registry) Fetch(ctx context.Context) error {
	r.SetLoading(true)
	defer r.SetLoading(false)

	plugins, err := r.client.GetInstalledPlugins(ctx)
	if err != nil {
		return err
	}
	r.replaceAll(plugins)
	return nil
}

// FetchAndReport is Fetch plus the error toast used by UI entry points.
func (r *Registry) FetchAndReport(ctx context.Context) {
	if err := r.Fetch(ctx); err != nil {
		r.toast(err, notify.ToastError)
	}
}

// ComputeUpdates cross-references the installed set against the given
// marketplace listing: matches by repo (case-insensitive) first, then by
// name. A matched plugin gets its online version recorded and has_update set
// when the versions differ and the remote version is a real one; unmatched
// plugins never have updates. Callers must ensure both lists are fresh.
func (r *Registry) ComputeUpdates(marketPlugins []models.MarketPlugin) {
	byRepo := make(map[string]*models.MarketPlugin, len(marketPlugins))
	byName := make(map[string]*models.MarketPlugin, len(marketPlugins))
	for i := range marketPlugins {
		p := &marketPlugins[i]
		if p.Repo != "" {
			byRepo[strings.ToLower(p.Repo)] = p
		}
		byName[p.Name] = p
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.plugins {
		ext := &r.plugins[i]
		var matched *models.MarketPlugin
		if ext.Repo != "" {
			matched = byRepo[strings.ToLower(ext.Repo)]
		}
		if matched == nil {
			matched = byName[ext.Name]
		}

		if matched != nil {
			ext.OnlineVersion = matched.Version
			ext.HasUpdate = ext.Version != matched.Version && matched.Version != models.UnknownVersion
		} else {
			ext.HasUpdate = false
		}
	}
}

// Enable activates a plugin, re-fetches the installed set and triggers the
// command-conflict check.
func (r *Registry) Enable(ctx context.Context, name string) error {
	message, err := r.client.SetPluginEnabled(ctx, name, true)
	if err != nil {
		r.toast(err, notify.ToastError)
		return err
	}
	r.toast(message, notify.ToastSuccess)
	r.FetchAndReport(ctx)
	if r.afterEnable != nil {
		r.afterEnable(ctx)
	}
	return nil
}

// Disable deactivates a plugin and re-fetches. No conflict check: removing a
// plugin cannot introduce a collision.
func (r *Registry) Disable(ctx context.Context, name string) error {
	message, err := r.client.SetPluginEnabled(ctx, name, false)
	if err != nil {
		r.toast(err, notify.ToastError)
		return err
	}
	r.toast(message, notify.ToastSuccess)
	r.FetchAndReport(ctx)
	return nil
}

// Reload asks the backend to reload a plugin from disk and re-fetches.
func (r *Registry) Reload(ctx context.Context, name string) error {
	_, err := r.client.ReloadPlugin(ctx, name)
	if err != nil {
		r.toast(err, notify.ToastError)
		return err
	}
	r.toast("Plugin reloaded", notify.ToastSuccess)
	r.FetchAndReport(ctx)
	return nil
}

// Uninstall is two-phase: with nil options it only arms the confirmation
// dialog, no network call. A non-nil options value (from the confirmed
// dialog, or a caller that skips confirmation) performs the destructive
// request, applies the returned installed set and re-fetches for consistency.
func (r *Registry) Uninstall(ctx context.Context, name string, options *UninstallOptions) error {
	if options == nil {
		r.mu.Lock()
		r.uninstallDlg = UninstallDialog{Show: true, PluginName: name}
		r.mu.Unlock()
		return nil
	}

	r.toast("Uninstalling "+name, notify.ToastPrimary)
	plugins, message, err := r.client.UninstallPlugin(ctx, name, options.DeleteConfig, options.DeleteData)
	if err != nil {
		r.toast(err, notify.ToastError)
		return err
	}
	if plugins != nil {
		r.replaceAll(plugins)
	}
	r.toast(message, notify.ToastSuccess)
	r.FetchAndReport(ctx)
	return nil
}

// ConfirmUninstall completes the pending two-phase uninstall with the
// options collected by the dialog.
func (r *Registry) ConfirmUninstall(ctx context.Context, options UninstallOptions) error {
	r.mu.Lock()
	name := r.uninstallDlg.PluginName
	r.uninstallDlg = UninstallDialog{}
	r.mu.Unlock()
	if name == "" {
		return nil
	}
	return r.Uninstall(ctx, name, &options)
}

// CancelUninstall clears the pending uninstall confirmation.
func (r *Registry) CancelUninstall() {
	r.mu.Lock()
	r.uninstallDlg = UninstallDialog{}
	r.mu.Unlock()
}

// UninstallDialogState returns the uninstall confirmation slot.
func (r *Registry) UninstallDialogState() UninstallDialog {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.uninstallDlg
}

// Update updates one plugin. Without force, a target with no known update
// opens the force-update confirmation instead of hitting the backend: the
// backend would happily reinstall the same version. On success the installed
// set is replaced from the response and, after a short delay, re-fetched in
// the background with its own toasts.
func (r *Registry) Update(ctx context.Context, name string, force bool) error {
	if !force {
		r.mu.Lock()
		for i := range r.plugins {
			if r.plugins[i].Name == name && !r.plugins[i].HasUpdate {
				r.forceUpdateDlg = ForceUpdateDialog{Show: true, PluginName: name}
				r.mu.Unlock()
				return nil
			}
		}
		r.mu.Unlock()
	}

	r.dialog.SetLoading("Updating " + name)
	plugins, message, err := r.client.UpdatePlugin(ctx, name, r.settings.GitHubProxy())
	if err != nil {
		var installErr *botapi.InstallError
		if errors.As(err, &installErr) {
			r.dialog.Result(dialog.StatusError, installErr.Message, dialog.Sticky)
		} else {
			r.toast(err, notify.ToastError)
		}
		return err
	}

	if plugins != nil {
		r.replaceAll(plugins)
	}
	r.dialog.Result(dialog.StatusSuccess, message, 0)

	// The backend answers before the plugin process has fully restarted;
	// give it a moment before the consistency re-fetch.
	time.AfterFunc(r.refetchDelay, func() {
		r.toast("Refreshing plugin list", notify.ToastInfo)
		if err := r.Fetch(context.Background()); err != nil {
			r.toast("Failed to refresh plugin list: "+botapi.NormalizeMessage(err), notify.ToastError)
			return
		}
		r.toast("Plugin list refreshed", notify.ToastSuccess)
	})
	return nil
}

// ConfirmForceUpdate proceeds with the update armed in the force-update
// confirmation slot.
func (r *Registry) ConfirmForceUpdate(ctx context.Context) error {
	r.mu.Lock()
	name := r.forceUpdateDlg.PluginName
	r.forceUpdateDlg = ForceUpdateDialog{}
	r.mu.Unlock()
	if name == "" {
		return nil
	}
	return r.Update(ctx, name, true)
}

// CancelForceUpdate clears the force-update confirmation slot.
func (r *Registry) CancelForceUpdate() {
	r.mu.Lock()
	r.forceUpdateDlg = ForceUpdateDialog{}
	r.mu.Unlock()
}

// ForceUpdateDialogState returns the force-update confirmation slot.
func (r *Registry) ForceUpdateDialogState() ForceUpdateDialog {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.forceUpdateDlg
}

// Updatable returns the plugins with a known update available.
func (r *Registry) Updatable() []models.InstalledPlugin {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.InstalledPlugin
	for i := range r.plugins {
		if r.plugins[i].HasUpdate {
			out = append(out, r.plugins[i])
		}
	}
	return out
}

// UpdatingAll reports whether a batch update is running.
func (r *Registry) UpdatingAll() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.updatingAll
}

// UpdateAll updates every plugin with a known update in one backend call.
// No-op while already running or with nothing to update. Per-item failures
// are aggregated into the final report; a failing consistency re-fetch is
// recorded as its own synthetic failure entry instead of being masked.
func (r *Registry) UpdateAll(ctx context.Context) error {
	targets := r.Updatable()

	r.mu.Lock()
	if r.updatingAll || len(targets) == 0 {
		r.mu.Unlock()
		return nil
	}
	r.updatingAll = true
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		r.updatingAll = false
		r.mu.Unlock()
	}()

	names := make([]string, len(targets))
	for i := range targets {
		names[i] = targets[i].Name
	}

	r.dialog.SetLoading("Updating all plugins")
	results, _, err := r.client.UpdateAllPlugins(ctx, names, r.settings.GitHubProxy())
	if err != nil {
		var installErr *botapi.InstallError
		if errors.As(err, &installErr) && installErr.Message != "" {
			r.dialog.Result(dialog.StatusError, installErr.Message, dialog.Sticky)
		} else {
			r.dialog.Result(dialog.StatusError,
				fmt.Sprintf("Failed to update %d of %d plugins: %s", len(names), len(names), botapi.NormalizeMessage(err)),
				dialog.Sticky)
		}
		return err
	}

	var failures []models.UpdateResult
	for i := range results {
		if !results[i].Ok() {
			failures = append(failures, results[i])
		}
	}

	if err := r.Fetch(ctx); err != nil {
		failures = append(failures, models.UpdateResult{
			Name:    "refresh",
			Status:  "error",
			Message: botapi.NormalizeMessage(err),
		})
	}

	if len(failures) == 0 {
		r.dialog.Result(dialog.StatusSuccess, "All plugins updated", 0)
		return nil
	}

	var detail strings.Builder
	for i := range failures {
		fmt.Fprintf(&detail, "%s: %s\n", failures[i].Name, failures[i].Message)
	}
	r.dialog.Result(dialog.StatusError,
		fmt.Sprintf("%d of %d plugin updates failed\n%s", len(failures), len(names), strings.TrimRight(detail.String(), "\n")),
		dialog.Sticky)
	return nil
}

// OpenConfig arms the config dialog and fetches the plugin's configuration.
func (r *Registry) OpenConfig(ctx context.Context, name string) (*models.PluginConfig, error) {
	r.mu.Lock()
	r.configNamespace = name
	r.configOpen = true
	r.mu.Unlock()

	cfg, err := r.client.GetPluginConfig(ctx, name)
	if err != nil {
		r.toast(err, notify.ToastError)
		return nil, err
	}
	return cfg, nil
}

// SaveConfig posts new configuration values for the plugin whose config
// dialog is open, then re-fetches the installed list: config changes may
// affect display metadata.
func (r *Registry) SaveConfig(ctx context.Context, values map[string]any) error {
	r.mu.Lock()
	name := r.configNamespace
	r.configOpen = false
	r.configNamespace = ""
	r.mu.Unlock()
	if name == "" {
		return nil
	}

	message, err := r.client.UpdatePluginConfig(ctx, name, values)
	if err != nil {
		r.toast(err, notify.ToastError)
		return err
	}
	r.toast(message, notify.ToastSuccess)
	r.FetchAndReport(ctx)
	return nil
}

// ConfigDialogState returns (open, plugin namespace).
func (r *Registry) ConfigDialogState() (bool, string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.configOpen, r.configNamespace
}

// ShowReserved reports whether system plugins are visible.
func (r *Registry) ShowReserved() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.showReserved
}

// ToggleShowReserved flips visibility of reserved (system) plugins.
func (r *Registry) ToggleShowReserved() {
	r.mu.Lock()
	r.showReserved = !r.showReserved
	r.mu.Unlock()
}

// SetSearch records the installed-tab search query (no debounce here; the
// installed list is small).
func (r *Registry) SetSearch(query string) {
	r.mu.Lock()
	r.search = query
	r.mu.Unlock()
}

// sortByDisplayKey is the stable name-key ordering shared by both views.
func sortByDisplayKey(plugins []models.InstalledPlugin) {
	sort.SliceStable(plugins, func(i, j int) bool {
		return plugins[i].SortKey() < plugins[j].SortKey()
	})
}

// FilteredExtensions returns the installed set sorted by display-name-or-
// name, hiding reserved plugins unless explicitly shown.
func (r *Registry) FilteredExtensions() []models.InstalledPlugin {
	r.mu.Lock()
	showReserved := r.showReserved
	plugins := make([]models.InstalledPlugin, len(r.plugins))
	copy(plugins, r.plugins)
	r.mu.Unlock()

	sortByDisplayKey(plugins)
	if showReserved {
		return plugins
	}
	visible := plugins[:0]
	for i := range plugins {
		if !plugins[i].Reserved {
			visible = append(visible, plugins[i])
		}
	}
	return visible
}

// FilteredPlugins further narrows FilteredExtensions by the search query
// over name/desc/author, re-sorting identically so toggling a plugin during
// a search does not shuffle the list.
func (r *Registry) FilteredPlugins() []models.InstalledPlugin {
	r.mu.Lock()
	query := strings.ToLower(r.search)
	r.mu.Unlock()

	base := r.FilteredExtensions()
	if query == "" {
		return base
	}

	filtered := make([]models.InstalledPlugin, 0, len(base))
	for i := range base {
		p := &base[i]
		if strings.Contains(strings.ToLower(p.Name), query) ||
			strings.Contains(strings.ToLower(p.Desc), query) ||
			strings.Contains(strings.ToLower(p.Author), query) {
			filtered = append(filtered, base[i])
		}
	}
	sortByDisplayKey(filtered)
	return filtered
}

// SetListView persists the list/grid layout preference.
func (r *Registry) SetListView(enabled bool) {
	if err := r.settings.SetListView(enabled); err != nil {
		log.Printf("Failed to persist list view preference: %v", err)
	}
}

// ListView returns the persisted layout preference.
func (r *Registry) ListView() bool {
	return r.settings.ListView()
}
