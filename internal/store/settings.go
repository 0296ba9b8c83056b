// To handle all database interactions. This is our data access layer,
// keeping SQL queries separate from dashboard logic.

package store

import (
	"database/sql"
)

// Setting keys for the persisted dashboard preferences. All are best-effort:
// absence falls back to the documented default.
const (
	KeySelectedSource = "selected_plugin_source" // default: "" (default registry)
	KeyGitHubProxy    = "selected_github_proxy"  // default: "" (no proxy)
	KeyListView       = "plugin_list_view_mode"  // default: "false" (grid view)
	KeyLocale         = "ui_locale"              // default: "en-US"
)

// DefaultLocale is used when no locale preference has been stored.
const DefaultLocale = "en-US"

// Store provides all functions to interact with the database.
type Store struct {
	db *sql.DB
}

// New creates a new Store instance.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// GetSetting returns the stored value for key, or "" when the key is absent.
func (s *Store) GetSetting(key string) (string, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return value, nil
}

// SetSetting upserts a setting value.
func (s *Store) SetSetting(key, value string) error {
	_, err := s.db.Exec(`
		INSERT INTO settings (key, value, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP
	`, key, value)
	return err
}

// DeleteSetting removes a setting so the default applies again.
func (s *Store) DeleteSetting(key string) error {
	_, err := s.db.Exec(`DELETE FROM settings WHERE key = ?`, key)
	return err
}

// SelectedSource returns the persisted registry selection, "" meaning the
// default registry.
func (s *Store) SelectedSource() string {
	value, err := s.GetSetting(KeySelectedSource)
	if err != nil {
		return ""
	}
	return value
}

// SetSelectedSource persists the registry selection. An empty URL clears it.
func (s *Store) SetSelectedSource(url string) error {
	if url == "" {
		return s.DeleteSetting(KeySelectedSource)
	}
	return s.SetSetting(KeySelectedSource, url)
}

// GitHubProxy returns the persisted proxy preference, "" meaning direct.
func (s *Store) GitHubProxy() string {
	value, err := s.GetSetting(KeyGitHubProxy)
	if err != nil {
		return ""
	}
	return value
}

// SetGitHubProxy persists the proxy preference. An empty value clears it.
func (s *Store) SetGitHubProxy(proxy string) error {
	if proxy == "" {
		return s.DeleteSetting(KeyGitHubProxy)
	}
	return s.SetSetting(KeyGitHubProxy, proxy)
}

// ListView reports whether the installed tab uses the list layout.
func (s *Store) ListView() bool {
	value, err := s.GetSetting(KeyListView)
	if err != nil {
		return false
	}
	return value == "true"
}

// SetListView persists the list/grid layout toggle.
func (s *Store) SetListView(enabled bool) error {
	if enabled {
		return s.SetSetting(KeyListView, "true")
	}
	return s.SetSetting(KeyListView, "false")
}

// Locale returns the persisted UI locale, falling back to the default.
func (s *Store) Locale() string {
	value, err := s.GetSetting(KeyLocale)
	if err != nil || value == "" {
		return DefaultLocale
	}
	return value
}

// SetLocale persists the UI locale preference.
func (s *Store) SetLocale(locale string) error {
	return s.SetSetting(KeyLocale, locale)
}
