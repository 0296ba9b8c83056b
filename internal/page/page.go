// Page orchestrator: tab state, the market cache-validity tokens, the batch
// install cart and the cross-component hooks that run after installs and
// source switches.

package page

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/astrbot-devs/console-go/internal/botapi"
	"github.com/astrbot-devs/console-go/internal/conflict"
	"github.com/astrbot-devs/console-go/internal/dialog"
	"github.com/astrbot-devs/console-go/internal/extension"
	"github.com/astrbot-devs/console-go/internal/installer"
	"github.com/astrbot-devs/console-go/internal/market"
	"github.com/astrbot-devs/console-go/internal/models"
	"github.com/astrbot-devs/console-go/internal/notify"
	"github.com/astrbot-devs/console-go/internal/sources"
	"github.com/astrbot-devs/console-go/internal/util"
)

// Plugin page tabs.
const (
	TabInstalled  = "installed"
	TabMarket     = "market"
	TabComponents = "components"
	TabMCP        = "mcp"
)

// defaultSourceKey stands in for the empty selection inside the
// cache-validity tokens so "default registry" and "never fetched" stay
// distinguishable.
const defaultSourceKey = "__default__"

// CheckoutFailure is one failed item in a batch install report.
type CheckoutFailure struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

// CheckoutReport is the aggregate outcome of a cart checkout.
type CheckoutReport struct {
	Done     int               `json:"done"`
	Total    int               `json:"total"`
	Success  int               `json:"success"`
	Failed   int               `json:"failed"`
	Failures []CheckoutFailure `json:"failures,omitempty"`
}

type publisher interface {
	Publish(eventType string, payload any)
}

// Orchestrator coordinates the plugin page.
type Orchestrator struct {
	registry  *extension.Registry
	market    *market.Store
	installer *installer.Orchestrator
	sources   *sources.Registry
	conflicts *conflict.Prompter
	dialog    *dialog.Controller
	notifier  notify.Notifier
	hub       publisher

	mu  sync.Mutex
	tab string
	// fetchedKey/processedKey record which registry the cached market data
	// and its derived annotations belong to; a mismatch with the current
	// selection means stale.
	fetchedKey   string
	processedKey string

	// The cart preserves insertion order; checkout installs sequentially.
	cartKeys  []string
	cartItems map[string]models.MarketPlugin
}

// New creates the orchestrator. hub may be nil in tests.
func New(registry *extension.Registry, marketStore *market.Store, inst *installer.Orchestrator, src *sources.Registry, conflicts *conflict.Prompter, dlg *dialog.Controller, notifier notify.Notifier, hub publisher) *Orchestrator {
	return &Orchestrator{
		registry:  registry,
		market:    marketStore,
		installer: inst,
		sources:   src,
		conflicts: conflicts,
		dialog:    dlg,
		notifier:  notifier,
		hub:       hub,
		tab:       TabInstalled,
		cartItems: make(map[string]models.MarketPlugin),
	}
}

func (o *Orchestrator) toast(message any, color string) {
	if o.notifier != nil {
		o.notifier.Toast(message, color, 0)
	}
}

func (o *Orchestrator) sourceKey() string {
	if selected := o.sources.Selected(); selected != "" {
		return selected
	}
	return defaultSourceKey
}

// Tab returns the active tab.
func (o *Orchestrator) Tab() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.tab
}

// SetTab switches tabs. Entering the market tab fetches the listing when the
// cache does not cover the current registry, and always re-runs the
// annotation pass in case it was skipped while the tab was inactive.
func (o *Orchestrator) SetTab(ctx context.Context, tab string) {
	o.mu.Lock()
	o.tab = tab
	o.mu.Unlock()

	if tab == TabMarket {
		o.FetchMarketData(ctx, false)
		o.ProcessMarketDataIfNeeded()
	}
}

// FetchMarketData loads the raw listing for the current registry unless the
// cache already covers it (or force is set), then recomputes the installed
// set's update flags against whatever listing is now cached. The annotation
// pass stays deferred to ProcessMarketDataIfNeeded, so an eager fetch for
// update badges neither reindexes nor disturbs the user's market page.
func (o *Orchestrator) FetchMarketData(ctx context.Context, force bool) {
	key := o.sourceKey()

	o.mu.Lock()
	fresh := !force && o.fetchedKey == key
	o.mu.Unlock()

	if !fresh {
		if _, err := o.market.Fetch(ctx, o.sources.Selected(), force); err != nil {
			o.toast("Failed to fetch plugin market: "+botapi.NormalizeMessage(err), notify.ToastError)
			return
		}
		o.mu.Lock()
		o.fetchedKey = key
		o.processedKey = ""
		o.mu.Unlock()
	}

	o.registry.ComputeUpdates(o.market.Plugins())
}

// ProcessMarketDataIfNeeded re-runs the derived-data pass (search index,
// trimmed names, installed flags) when the fetched listing has not been
// annotated for the current registry yet. A cache miss does nothing; the
// fetch path owns loading.
func (o *Orchestrator) ProcessMarketDataIfNeeded() {
	key := o.sourceKey()

	o.mu.Lock()
	needed := o.fetchedKey == key && o.processedKey != key
	if needed {
		o.processedKey = key
	}
	o.mu.Unlock()

	if needed {
		o.market.Reindex()
		o.market.MarkInstalled(o.registry.Plugins())
		o.registry.ComputeUpdates(o.market.Plugins())
	}
}

// RefreshMarket is the explicit refresh button: always bypasses the cache and
// runs the full load, annotation, page reset and success toast included.
func (o *Orchestrator) RefreshMarket(ctx context.Context) {
	key := o.sourceKey()
	if err := o.market.Load(ctx, o.sources.Selected(), true, true); err != nil {
		return
	}

	o.mu.Lock()
	o.fetchedKey = key
	o.processedKey = key
	o.mu.Unlock()

	o.registry.ComputeUpdates(o.market.Plugins())
}

// OnSourceChange invalidates the market cache for a new registry selection
// and eagerly refetches so installed-tab update badges track the new
// registry. On the market tab the annotation pass runs too; elsewhere it
// waits for the tab to open.
func (o *Orchestrator) OnSourceChange(ctx context.Context, sourceURL string) {
	o.mu.Lock()
	o.fetchedKey = ""
	o.processedKey = ""
	onMarketTab := o.tab == TabMarket
	o.mu.Unlock()

	if onMarketTab {
		o.FetchMarketData(ctx, true)
		o.ProcessMarketDataIfNeeded()
		return
	}
	o.FetchMarketData(ctx, false)
}

// AfterInstall is the post-install hook: re-fetch the installed set,
// re-annotate the cached listing if it is still valid, publish the README
// URL for the UI to open, and run the command-conflict check.
func (o *Orchestrator) AfterInstall(ctx context.Context, result *models.InstallResult, openReadme bool) {
	o.registry.FetchAndReport(ctx)

	o.mu.Lock()
	fetched := o.fetchedKey == o.sourceKey()
	o.mu.Unlock()
	if fetched {
		o.market.MarkInstalled(o.registry.Plugins())
		o.registry.ComputeUpdates(o.market.Plugins())
	}

	if openReadme && result != nil && result.Repo != "" && o.hub != nil {
		if readme := util.ToReadmeURL(result.Repo); readme != "" {
			o.hub.Publish("open_url", map[string]string{"url": readme})
		}
	}

	o.conflicts.CheckAndPrompt(ctx)
}

// InCart reports whether the marketplace entry is queued for batch install.
func (o *Orchestrator) InCart(plugin models.MarketPlugin) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, ok := o.cartItems[plugin.CartKey()]
	return ok
}

// ToggleCart adds or removes a marketplace entry from the batch-install
// cart. Already-installed entries never enter the cart.
func (o *Orchestrator) ToggleCart(plugin models.MarketPlugin) {
	key := plugin.CartKey()

	o.mu.Lock()
	defer o.mu.Unlock()
	if _, ok := o.cartItems[key]; ok {
		delete(o.cartItems, key)
		for i := range o.cartKeys {
			if o.cartKeys[i] == key {
				o.cartKeys = append(o.cartKeys[:i], o.cartKeys[i+1:]...)
				break
			}
		}
		return
	}
	if plugin.Installed {
		return
	}
	o.cartItems[key] = plugin
	o.cartKeys = append(o.cartKeys, key)
}

// Cart returns the queued entries in insertion order.
func (o *Orchestrator) Cart() []models.MarketPlugin {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]models.MarketPlugin, 0, len(o.cartKeys))
	for _, key := range o.cartKeys {
		out = append(out, o.cartItems[key])
	}
	return out
}

// ClearCart empties the cart.
func (o *Orchestrator) ClearCart() {
	o.mu.Lock()
	o.cartKeys = nil
	o.cartItems = make(map[string]models.MarketPlugin)
	o.mu.Unlock()
}

// Checkout installs everything in the cart. When any queued entry carries
// the danger tag, the whole batch waits behind a single risk confirmation;
// confirming it authorizes every item, danger-tagged or not.
func (o *Orchestrator) Checkout(ctx context.Context) {
	items := o.Cart()
	if len(items) == 0 {
		return
	}

	for i := range items {
		if items[i].HasTag(models.DangerTag) {
			danger := items[i]
			o.installer.OpenDangerConfirm(&danger, func(ctx context.Context) error {
				o.runCheckout(ctx, o.Cart())
				return nil
			})
			return
		}
	}
	o.runCheckout(ctx, items)
}

// runCheckout performs the sequential batch install. Each item is installed
// silently; the shared dialog carries the running progress and the final
// aggregate report. The cart is cleared regardless of the outcome so a
// retried checkout starts from an explicit re-selection.
func (o *Orchestrator) runCheckout(ctx context.Context, items []models.MarketPlugin) {
	report := CheckoutReport{Total: len(items)}

	o.registry.SetLoading(true)
	defer o.registry.SetLoading(false)

	o.dialog.SetLoading(fmt.Sprintf("Installing plugins (0/%d)", report.Total))
	for i := range items {
		item := &items[i]
		// Failure details carry the full marketplace name, not the trimmed
		// display form.
		name := item.Name
		if name == "" {
			name = "unknown"
		}

		if strings.TrimSpace(item.Repo) == "" {
			report.Failed++
			report.Failures = append(report.Failures, CheckoutFailure{Name: name, Reason: "missing repo url"})
		} else if _, err := o.installer.InstallFromURL(ctx, item.Repo, installer.Options{Silent: true}); err != nil {
			report.Failed++
			report.Failures = append(report.Failures, CheckoutFailure{Name: name, Reason: botapi.NormalizeMessage(err)})
		} else {
			report.Success++
		}

		report.Done++
		o.dialog.SetTitle(fmt.Sprintf("Installing plugins (%d/%d)", report.Done, report.Total))
	}

	if report.Failed == 0 {
		o.dialog.Result(dialog.StatusSuccess, fmt.Sprintf("Installed %d plugins", report.Success), 0)
	} else {
		var detail strings.Builder
		fmt.Fprintf(&detail, "%d of %d installs failed", report.Failed, report.Total)
		for i := range report.Failures {
			fmt.Fprintf(&detail, "\n%s: %s", report.Failures[i].Name, report.Failures[i].Reason)
		}
		o.dialog.Result(dialog.StatusError, detail.String(), dialog.Sticky)
	}

	o.ClearCart()
	o.AfterInstall(ctx, nil, false)
}

// HandleDeepLink opens a plugin's config dialog from an open_config query
// parameter, accepting both plain and hash-routed dashboard URLs.
func (o *Orchestrator) HandleDeepLink(ctx context.Context, rawURL string) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return
	}

	name := parsed.Query().Get("open_config")
	if name == "" && parsed.Fragment != "" {
		// Hash-routed URLs carry the query inside the fragment:
		// /#/extension?open_config=x
		if idx := strings.Index(parsed.Fragment, "?"); idx >= 0 {
			if values, err := url.ParseQuery(parsed.Fragment[idx+1:]); err == nil {
				name = values.Get("open_config")
			}
		}
	}
	if name == "" {
		return
	}

	if _, err := o.registry.OpenConfig(ctx, name); err == nil && o.hub != nil {
		o.hub.Publish("open_config", map[string]string{"plugin_name": name})
	}
}

// Init performs the page's initial load: sources, installed set, then the
// update cross-reference against a lazily fetched listing.
func (o *Orchestrator) Init(ctx context.Context) {
	_ = o.sources.Load(ctx)
	o.registry.FetchAndReport(ctx)
	o.FetchMarketData(ctx, false)
	o.ProcessMarketDataIfNeeded()
}

// BackgroundRefresh re-fetches the listing for the scheduled refresh job and
// raises a notification when a real semver upgrade appears for an installed
// plugin. The semver gate keeps cosmetic version-string churn quiet; the
// in-page update flags are unaffected.
func (o *Orchestrator) BackgroundRefresh(ctx context.Context) {
	if _, err := o.market.Fetch(ctx, o.sources.Selected(), true); err != nil {
		return
	}

	o.mu.Lock()
	key := o.sourceKey()
	o.fetchedKey = key
	o.processedKey = ""
	o.mu.Unlock()
	o.ProcessMarketDataIfNeeded()

	var upgraded []string
	for _, ext := range o.registry.Plugins() {
		if ext.HasUpdate && util.IsSemverUpgrade(ext.Version, ext.OnlineVersion) {
			upgraded = append(upgraded, ext.Name)
		}
	}
	if len(upgraded) > 0 {
		o.toast(fmt.Sprintf("Plugin updates available: %s", strings.Join(upgraded, ", ")), notify.ToastInfo)
	}
}
