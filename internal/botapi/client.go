// HTTP client for the bot backend's plugin API. All responses share the
// uniform envelope {status: "ok"|"error", message?, data}; this is our
// transport layer, keeping wire concerns separate from dashboard logic.

package botapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/astrbot-devs/console-go/internal/models"
)

// Client talks to the bot backend.
type Client struct {
	baseURL string
	http    *http.Client
}

// New creates a backend client. A non-positive timeout falls back to 30s.
func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// envelope is the backend's uniform response shape.
type envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (e *envelope) ok() bool { return e.Status == "ok" }

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string) (*envelope, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, &FetchError{Op: method + " " + path, Err: err}
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &FetchError{Op: method + " " + path, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &FetchError{Op: method + " " + path, Err: err}
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, &FetchError{Op: method + " " + path, Err: fmt.Errorf("malformed response: %w", err)}
	}
	return &env, nil
}

func (c *Client) getJSON(ctx context.Context, path string) (*envelope, error) {
	return c.do(ctx, http.MethodGet, path, nil, "")
}

func (c *Client) postJSON(ctx context.Context, path string, payload any) (*envelope, error) {
	var buf bytes.Buffer
	if payload != nil {
		if err := json.NewEncoder(&buf).Encode(payload); err != nil {
			return nil, &FetchError{Op: "POST " + path, Err: err}
		}
	}
	return c.do(ctx, http.MethodPost, path, &buf, "application/json")
}

// GetInstalledPlugins fetches the full installed set. A non-array payload is
// fatal for the call: nothing is partially applied.
func (c *Client) GetInstalledPlugins(ctx context.Context) ([]models.InstalledPlugin, error) {
	env, err := c.getJSON(ctx, "/api/plugin/get")
	if err != nil {
		return nil, err
	}
	if !env.ok() {
		return nil, &FetchError{Op: "plugin list", Err: fmt.Errorf("%s", env.Message)}
	}

	var plugins []models.InstalledPlugin
	if err := json.Unmarshal(env.Data, &plugins); err != nil {
		return nil, &FetchError{Op: "plugin list", Err: fmt.Errorf("invalid data format: %w", err)}
	}
	if plugins == nil {
		// The backend must answer with an array; null means the payload
		// shape is broken, not that nothing is installed.
		if strings.TrimSpace(string(env.Data)) != "[]" {
			return nil, &FetchError{Op: "plugin list", Err: fmt.Errorf("invalid data format: expected array")}
		}
		plugins = []models.InstalledPlugin{}
	}
	return plugins, nil
}

// SetPluginEnabled toggles a plugin's activation and returns the backend's
// status message.
func (c *Client) SetPluginEnabled(ctx context.Context, name string, enabled bool) (string, error) {
	path := "/api/plugin/off"
	if enabled {
		path = "/api/plugin/on"
	}
	env, err := c.postJSON(ctx, path, map[string]string{"name": name})
	if err != nil {
		return "", err
	}
	if !env.ok() {
		return "", fmt.Errorf("%s", env.Message)
	}
	return env.Message, nil
}

// ReloadPlugin asks the backend to reload a plugin from disk.
func (c *Client) ReloadPlugin(ctx context.Context, name string) (string, error) {
	env, err := c.postJSON(ctx, "/api/plugin/reload", map[string]string{"name": name})
	if err != nil {
		return "", err
	}
	if !env.ok() {
		return "", fmt.Errorf("%s", env.Message)
	}
	return env.Message, nil
}

// UninstallPlugin removes a plugin and returns the updated installed list
// from the response payload.
func (c *Client) UninstallPlugin(ctx context.Context, name string, deleteConfig, deleteData bool) ([]models.InstalledPlugin, string, error) {
	env, err := c.postJSON(ctx, "/api/plugin/uninstall", map[string]any{
		"name":          name,
		"delete_config": deleteConfig,
		"delete_data":   deleteData,
	})
	if err != nil {
		return nil, "", err
	}
	if !env.ok() {
		return nil, "", fmt.Errorf("%s", env.Message)
	}

	var plugins []models.InstalledPlugin
	if len(env.Data) > 0 {
		// Best effort: the message alone is still a success.
		_ = json.Unmarshal(env.Data, &plugins)
	}
	return plugins, env.Message, nil
}

// UpdatePlugin updates one plugin to its latest marketplace version. A
// backend-reported failure comes back as an InstallError so callers can
// route it to the sticky loading-dialog path.
func (c *Client) UpdatePlugin(ctx context.Context, name, proxy string) ([]models.InstalledPlugin, string, error) {
	env, err := c.postJSON(ctx, "/api/plugin/update", map[string]string{
		"name":  name,
		"proxy": proxy,
	})
	if err != nil {
		return nil, "", err
	}
	if !env.ok() {
		return nil, "", &InstallError{Message: env.Message}
	}

	var plugins []models.InstalledPlugin
	if len(env.Data) > 0 {
		_ = json.Unmarshal(env.Data, &plugins)
	}
	return plugins, env.Message, nil
}

// UpdateAllPlugins posts the full target list and returns per-plugin results.
func (c *Client) UpdateAllPlugins(ctx context.Context, names []string, proxy string) ([]models.UpdateResult, string, error) {
	env, err := c.postJSON(ctx, "/api/plugin/update-all", map[string]any{
		"names": names,
		"proxy": proxy,
	})
	if err != nil {
		return nil, "", err
	}
	if !env.ok() {
		return nil, "", &InstallError{Message: env.Message}
	}

	var payload struct {
		Results []models.UpdateResult `json:"results"`
	}
	if len(env.Data) > 0 {
		_ = json.Unmarshal(env.Data, &payload)
	}
	return payload.Results, env.Message, nil
}

// InstallFromURL installs a plugin from a repository URL.
func (c *Client) InstallFromURL(ctx context.Context, repoURL, proxy string) (*models.InstallResult, string, error) {
	env, err := c.postJSON(ctx, "/api/plugin/install", map[string]string{
		"url":   repoURL,
		"proxy": proxy,
	})
	if err != nil {
		return nil, "", err
	}
	if !env.ok() {
		return nil, "", &InstallError{Message: env.Message}
	}

	var result models.InstallResult
	if len(env.Data) > 0 {
		_ = json.Unmarshal(env.Data, &result)
	}
	return &result, env.Message, nil
}

// InstallUpload installs a plugin from an uploaded archive via multipart form.
func (c *Client) InstallUpload(ctx context.Context, filename string, file io.Reader) (*models.InstallResult, string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return nil, "", &FetchError{Op: "install upload", Err: err}
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, "", &FetchError{Op: "install upload", Err: err}
	}
	if err := writer.Close(); err != nil {
		return nil, "", &FetchError{Op: "install upload", Err: err}
	}

	env, err := c.do(ctx, http.MethodPost, "/api/plugin/install-upload", &buf, writer.FormDataContentType())
	if err != nil {
		return nil, "", err
	}
	if !env.ok() {
		return nil, "", &InstallError{Message: env.Message}
	}

	var result models.InstallResult
	if len(env.Data) > 0 {
		_ = json.Unmarshal(env.Data, &result)
	}
	return &result, env.Message, nil
}

// rawMarketRecord mirrors the loose shape of one marketplace entry. Every
// field may be absent; normalization fills the documented defaults.
type rawMarketRecord struct {
	Name        string   `json:"name"`
	Desc        string   `json:"desc"`
	Author      string   `json:"author"`
	Repo        string   `json:"repo"`
	Version     string   `json:"version"`
	SocialLink  string   `json:"social_link"`
	Tags        []string `json:"tags"`
	Logo        string   `json:"logo"`
	Pinned      bool     `json:"pinned"`
	Stars       *int     `json:"stars"`
	UpdatedAt   string   `json:"updated_at"`
	DisplayName string   `json:"display_name"`
}

// MarketList fetches the marketplace listing. The wire format is a mapping of
// plugin-key to raw record; entries are normalized (version falls back to the
// unknown sentinel, tags to an empty set, stars to 0) and returned in stable
// key order.
func (c *Client) MarketList(ctx context.Context, force bool, customRegistry string) ([]models.MarketPlugin, error) {
	path := "/api/plugin/market_list"
	params := url.Values{}
	if force {
		params.Set("force_refresh", "true")
	}
	if customRegistry != "" {
		params.Set("custom_registry", customRegistry)
	}
	if len(params) > 0 {
		path += "?" + params.Encode()
	}

	env, err := c.getJSON(ctx, path)
	if err != nil {
		return nil, err
	}
	if !env.ok() {
		return nil, &FetchError{Op: "market list", Err: fmt.Errorf("%s", env.Message)}
	}

	var raw map[string]rawMarketRecord
	if err := json.Unmarshal(env.Data, &raw); err != nil {
		return nil, &FetchError{Op: "market list", Err: fmt.Errorf("invalid data format: %w", err)}
	}

	keys := make([]string, 0, len(raw))
	for key := range raw {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	plugins := make([]models.MarketPlugin, 0, len(raw))
	for _, key := range keys {
		rec := raw[key]
		name := rec.Name
		if name == "" {
			name = key
		}
		version := rec.Version
		if version == "" {
			version = models.UnknownVersion
		}
		tags := rec.Tags
		if tags == nil {
			tags = []string{}
		}
		stars := 0
		if rec.Stars != nil {
			stars = *rec.Stars
		}
		plugins = append(plugins, models.MarketPlugin{
			Name:        name,
			Desc:        rec.Desc,
			Author:      rec.Author,
			Repo:        rec.Repo,
			Version:     version,
			SocialLink:  rec.SocialLink,
			Tags:        tags,
			Logo:        rec.Logo,
			Pinned:      rec.Pinned,
			Stars:       stars,
			UpdatedAt:   rec.UpdatedAt,
			DisplayName: rec.DisplayName,
		})
	}
	return plugins, nil
}

// GetSources fetches the user-defined registry list.
func (c *Client) GetSources(ctx context.Context) ([]models.PluginSource, error) {
	env, err := c.getJSON(ctx, "/api/plugin/source/get")
	if err != nil {
		return nil, err
	}
	if !env.ok() {
		return nil, &FetchError{Op: "plugin sources", Err: fmt.Errorf("%s", env.Message)}
	}

	var sources []models.PluginSource
	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, &sources); err != nil {
			return nil, &FetchError{Op: "plugin sources", Err: fmt.Errorf("invalid data format: %w", err)}
		}
	}
	return sources, nil
}

// SaveSources replaces the registry list server-side as a whole.
func (c *Client) SaveSources(ctx context.Context, sources []models.PluginSource) error {
	env, err := c.postJSON(ctx, "/api/plugin/source/save", map[string]any{"sources": sources})
	if err != nil {
		return err
	}
	if !env.ok() {
		return fmt.Errorf("%s", env.Message)
	}
	return nil
}

// GetPluginConfig fetches a plugin's configuration object and form metadata.
func (c *Client) GetPluginConfig(ctx context.Context, name string) (*models.PluginConfig, error) {
	env, err := c.getJSON(ctx, "/api/config/get?plugin_name="+url.QueryEscape(name))
	if err != nil {
		return nil, err
	}
	if !env.ok() {
		return nil, &FetchError{Op: "plugin config", Err: fmt.Errorf("%s", env.Message)}
	}

	cfg := &models.PluginConfig{Metadata: map[string]any{}, Config: map[string]any{}}
	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, cfg); err != nil {
			return nil, &FetchError{Op: "plugin config", Err: fmt.Errorf("invalid data format: %w", err)}
		}
	}
	if cfg.Metadata == nil {
		cfg.Metadata = map[string]any{}
	}
	if cfg.Config == nil {
		cfg.Config = map[string]any{}
	}
	return cfg, nil
}

// UpdatePluginConfig posts new configuration values for a plugin.
func (c *Client) UpdatePluginConfig(ctx context.Context, name string, values map[string]any) (string, error) {
	env, err := c.postJSON(ctx, "/api/config/plugin/update?plugin_name="+url.QueryEscape(name), values)
	if err != nil {
		return "", err
	}
	if !env.ok() {
		return "", fmt.Errorf("%s", env.Message)
	}
	return env.Message, nil
}

// CommandSummary fetches the command-collision report used by the conflict
// prompter.
func (c *Client) CommandSummary(ctx context.Context) (*models.CommandSummary, error) {
	env, err := c.getJSON(ctx, "/api/commands")
	if err != nil {
		return nil, err
	}
	if !env.ok() {
		return nil, &FetchError{Op: "command summary", Err: fmt.Errorf("%s", env.Message)}
	}

	var payload struct {
		Summary models.CommandSummary `json:"summary"`
	}
	if len(env.Data) > 0 {
		_ = json.Unmarshal(env.Data, &payload)
	}
	return &payload.Summary, nil
}
