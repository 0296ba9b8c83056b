package models

import "strings"

// UnknownVersion is the sentinel the backend substitutes when a marketplace
// record carries no version. Update detection must never treat it as a real
// version.
const UnknownVersion = "unknown"

// DangerTag marks marketplace entries that require explicit user risk
// acknowledgment before install.
const DangerTag = "danger"

// PluginHandlerInfo describes one event handler registered by an installed
// plugin. It is display metadata passed through from the backend untouched.
type PluginHandlerInfo struct {
	EventType     string `json:"event_type,omitempty"`
	EventTypeName string `json:"event_type_h,omitempty"`
	Desc          string `json:"desc,omitempty"`
	Type          string `json:"type,omitempty"`
	Cmd           string `json:"cmd,omitempty"`
}

// InstalledPlugin is one plugin currently installed on the bot. The full set
// is replaced wholesale on every fetch; absence from the list means "not
// installed".
type InstalledPlugin struct {
	Name        string `json:"name"`
	DisplayName string `json:"display_name,omitempty"`
	Desc        string `json:"desc,omitempty"`
	Author      string `json:"author,omitempty"`
	Repo        string `json:"repo,omitempty"`
	Version     string `json:"version,omitempty"`
	Activated   bool   `json:"activated"`
	Reserved    bool   `json:"reserved"`
	Logo        string `json:"logo,omitempty"`

	// Computed by cross-referencing the marketplace listing.
	OnlineVersion string `json:"online_version,omitempty"`
	HasUpdate     bool   `json:"has_update"`

	Handlers []PluginHandlerInfo `json:"handlers,omitempty"`
}

// SortKey returns the case-folded key used for the installed list ordering:
// display name when present, plain name otherwise.
func (p *InstalledPlugin) SortKey() string {
	if p.DisplayName != "" {
		return strings.ToLower(p.DisplayName)
	}
	return strings.ToLower(p.Name)
}

// MarketPlugin is one marketplace listing entry for the currently selected
// registry. The working set is replaced wholesale on every fetch and
// annotated (TrimmedName, SearchIndex, Installed) in a separate pass.
type MarketPlugin struct {
	Name        string   `json:"name"`
	Desc        string   `json:"desc,omitempty"`
	Author      string   `json:"author,omitempty"`
	Repo        string   `json:"repo,omitempty"`
	Version     string   `json:"version"`
	SocialLink  string   `json:"social_link,omitempty"`
	Tags        []string `json:"tags"`
	Logo        string   `json:"logo"`
	Pinned      bool     `json:"pinned"`
	Stars       int      `json:"stars"`
	UpdatedAt   string   `json:"updated_at"`
	DisplayName string   `json:"display_name"`

	// Derived fields, valid only while the annotation pass matches the
	// currently selected registry.
	Installed   bool   `json:"installed"`
	TrimmedName string `json:"trimmed_name,omitempty"`
	SearchIndex string `json:"-"`
}

// HasTag reports whether the entry carries the given tag.
func (p *MarketPlugin) HasTag(tag string) bool {
	for _, t := range p.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// CartKey identifies a marketplace entry inside the batch-install cart:
// the repo URL when present, the plugin name otherwise.
func (p *MarketPlugin) CartKey() string {
	if repo := strings.TrimSpace(p.Repo); repo != "" {
		return repo
	}
	return p.Name
}

// PluginSource is one user-defined marketplace registry.
type PluginSource struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// InstallResult is the payload the backend returns for a successful install.
type InstallResult struct {
	Name string `json:"name"`
	Repo string `json:"repo,omitempty"`
}

// UpdateResult is one per-plugin entry in an update-all response.
type UpdateResult struct {
	Name    string `json:"name"`
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// Ok reports whether this entry succeeded.
func (r *UpdateResult) Ok() bool { return r.Status == "ok" }

// PluginConfig is a plugin's configuration object together with the schema
// metadata the frontend uses to render the form.
type PluginConfig struct {
	Metadata map[string]any `json:"metadata"`
	Config   map[string]any `json:"config"`
}

// CommandSummary is the collision report used by the conflict prompter.
type CommandSummary struct {
	Conflicts int `json:"conflicts"`
}
