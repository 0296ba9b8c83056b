// Install orchestrator: single-plugin installs from a repository URL or an
// uploaded archive, plus the danger-tag confirmation gate in front of them.

package installer

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"

	"github.com/astrbot-devs/console-go/internal/botapi"
	"github.com/astrbot-devs/console-go/internal/dialog"
	"github.com/astrbot-devs/console-go/internal/models"
	"github.com/astrbot-devs/console-go/internal/notify"
	"github.com/astrbot-devs/console-go/internal/store"
)

// Options tune a single install call.
type Options struct {
	// OpenReadme publishes the plugin's README URL for the UI to open after
	// a successful install.
	OpenReadme bool
	// Silent suppresses the loading dialog and the post-install hook; batch
	// checkout drives its own dialog and runs the hook once at the end.
	Silent bool
}

// DangerConfirm is the pending risk-acknowledgment slot. Opening a second
// confirmation before the first resolves overwrites it; last write wins.
type DangerConfirm struct {
	Show   bool                 `json:"show"`
	Plugin *models.MarketPlugin `json:"plugin,omitempty"`

	action func(ctx context.Context) error
}

// Orchestrator performs installs against the bot backend.
type Orchestrator struct {
	client   *botapi.Client
	settings *store.Store
	dialog   *dialog.Controller
	notifier notify.Notifier

	// afterInstall runs after a successful non-silent install (installed
	// refetch, market re-annotation, readme opening, conflict check).
	afterInstall func(ctx context.Context, result *models.InstallResult, openReadme bool)

	mu     sync.Mutex
	danger DangerConfirm
}

// New creates an orchestrator. afterInstall may be nil.
func New(client *botapi.Client, settings *store.Store, dlg *dialog.Controller, notifier notify.Notifier, afterInstall func(ctx context.Context, result *models.InstallResult, openReadme bool)) *Orchestrator {
	return &Orchestrator{
		client:       client,
		settings:     settings,
		dialog:       dlg,
		notifier:     notifier,
		afterInstall: afterInstall,
	}
}

func (o *Orchestrator) toast(message any, color string) {
	if o.notifier != nil {
		o.notifier.Toast(message, color, 0)
	}
}

// InstallFromURL installs from a repository URL. The URL is trimmed first; an
// empty result is a local validation error and never reaches the network. A
// backend-reported failure pins the dialog open (sticky) so the error text
// can be read; transport failures close through the normal toast path.
func (o *Orchestrator) InstallFromURL(ctx context.Context, repoURL string, opts Options) (*models.InstallResult, error) {
	repoURL = strings.TrimSpace(repoURL)
	if repoURL == "" {
		err := &botapi.ValidationError{Reason: "repository URL is empty"}
		o.toast(err, notify.ToastError)
		return nil, err
	}

	if !opts.Silent {
		o.dialog.SetLoading("Installing plugin")
	}

	result, message, err := o.client.InstallFromURL(ctx, repoURL, o.settings.GitHubProxy())
	if err != nil {
		o.reportFailure(err, opts)
		return nil, err
	}
	if result.Repo == "" {
		result.Repo = repoURL
	}

	if !opts.Silent {
		o.dialog.Result(dialog.StatusSuccess, message, 0)
		if o.afterInstall != nil {
			o.afterInstall(ctx, result, opts.OpenReadme)
		}
	}
	return result, nil
}

// InstallFromUpload installs from an uploaded plugin archive. The payload is
// validated as a readable zip before any network traffic: the backend accepts
// only zip archives and rejecting locally gives a far better error.
func (o *Orchestrator) InstallFromUpload(ctx context.Context, filename string, file io.Reader, opts Options) (*models.InstallResult, error) {
	payload, err := io.ReadAll(file)
	if err != nil {
		verr := &botapi.ValidationError{Reason: "could not read uploaded file: " + err.Error()}
		o.toast(verr, notify.ToastError)
		return nil, verr
	}
	if !strings.HasSuffix(strings.ToLower(filename), ".zip") {
		verr := &botapi.ValidationError{Reason: "plugin archive must be a .zip file"}
		o.toast(verr, notify.ToastError)
		return nil, verr
	}
	if _, err := zip.NewReader(bytes.NewReader(payload), int64(len(payload))); err != nil {
		verr := &botapi.ValidationError{Reason: "uploaded file is not a valid zip archive"}
		o.toast(verr, notify.ToastError)
		return nil, verr
	}

	if !opts.Silent {
		o.dialog.SetLoading("Installing plugin from archive")
	}

	result, message, err := o.client.InstallUpload(ctx, filename, bytes.NewReader(payload))
	if err != nil {
		o.reportFailure(err, opts)
		return nil, err
	}

	if !opts.Silent {
		o.dialog.Result(dialog.StatusSuccess, message, 0)
		if o.afterInstall != nil {
			o.afterInstall(ctx, result, opts.OpenReadme)
		}
	}
	return result, nil
}

// Submit is the manual-install form entry point: exactly one of repoURL or an
// upload must be provided.
func (o *Orchestrator) Submit(ctx context.Context, repoURL, filename string, file io.Reader, opts Options) (*models.InstallResult, error) {
	hasURL := strings.TrimSpace(repoURL) != ""
	hasFile := file != nil

	if hasURL == hasFile {
		var err *botapi.ValidationError
		if hasURL {
			err = &botapi.ValidationError{Reason: "provide a repository URL or a file, not both"}
		} else {
			err = &botapi.ValidationError{Reason: "provide a repository URL or a file"}
		}
		o.toast(err, notify.ToastError)
		return nil, err
	}

	if hasURL {
		return o.InstallFromURL(ctx, repoURL, opts)
	}
	return o.InstallFromUpload(ctx, filename, file, opts)
}

func (o *Orchestrator) reportFailure(err error, opts Options) {
	var installErr *botapi.InstallError
	if errors.As(err, &installErr) && !opts.Silent {
		o.dialog.Result(dialog.StatusError, installErr.Message, dialog.Sticky)
		return
	}
	if !opts.Silent {
		o.dialog.Reset()
	}
	o.toast(err, notify.ToastError)
}

// RequestInstall is the marketplace entry point for one plugin: danger-tagged
// entries go through the confirmation gate, everything else installs
// immediately with its README opened afterwards.
func (o *Orchestrator) RequestInstall(ctx context.Context, plugin models.MarketPlugin) error {
	if plugin.HasTag(models.DangerTag) {
		o.OpenDangerConfirm(&plugin, func(ctx context.Context) error {
			_, err := o.InstallFromURL(ctx, plugin.Repo, Options{OpenReadme: true})
			return err
		})
		return nil
	}
	_, err := o.InstallFromURL(ctx, plugin.Repo, Options{OpenReadme: true})
	return err
}

// OpenDangerConfirm arms the risk-acknowledgment slot with the action to run
// on confirmation. A newer request replaces any pending one.
func (o *Orchestrator) OpenDangerConfirm(plugin *models.MarketPlugin, action func(ctx context.Context) error) {
	o.mu.Lock()
	o.danger = DangerConfirm{Show: true, Plugin: plugin, action: action}
	o.mu.Unlock()
}

// ConfirmDanger runs the pending action and clears the slot. With nothing
// pending it is a no-op.
func (o *Orchestrator) ConfirmDanger(ctx context.Context) error {
	o.mu.Lock()
	action := o.danger.action
	o.danger = DangerConfirm{}
	o.mu.Unlock()
	if action == nil {
		return nil
	}
	return action(ctx)
}

// CancelDanger discards the pending confirmation without running it.
func (o *Orchestrator) CancelDanger() {
	o.mu.Lock()
	o.danger = DangerConfirm{}
	o.mu.Unlock()
}

// DangerConfirmState returns the pending confirmation slot for display.
func (o *Orchestrator) DangerConfirmState() DangerConfirm {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.danger
}
