// This file defines the configuration structure for the application.
package config

import (
	// use Viper for loading the config.yml file.
	"strings"

	"github.com/spf13/viper"
)

// Config holds all configuration settings for the application.
// It maps directly to the structure of config.yml.
type Config struct {
	Port     int `mapstructure:"port"`
	Database struct {
		Path string `mapstructure:"path"`
	} `mapstructure:"database"`
	Backend struct {
		// BaseURL is the address of the bot process whose plugin API
		// this console drives.
		BaseURL string `mapstructure:"base_url"`
		// TimeoutSeconds bounds every request to the backend.
		TimeoutSeconds int `mapstructure:"timeout_seconds"`
	} `mapstructure:"backend"`
	Market struct {
		// RefreshIntervalMinutes controls the background marketplace
		// re-fetch that keeps update badges warm. Zero disables it.
		RefreshIntervalMinutes int `mapstructure:"refresh_interval_minutes"`
	} `mapstructure:"market"`
}

// Load reads configuration from a file named "config.yml" in the
// current directory and unmarshals it into a Config struct.
func Load() (*Config, error) {
	viper.SetConfigName("config") // name of config file (without extension)
	viper.SetConfigType("yml")    // or "yaml"
	viper.AddConfigPath(".")      // looking for config in the current directory

	// --- Environment Variable Overrides ---
	// This tells Viper to look for environment variables with a "CONSOLE_" prefix.
	// e.g., CONSOLE_BACKEND_BASE_URL will override the `backend.base_url` key.
	viper.SetEnvPrefix("CONSOLE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Set default values
	viper.SetDefault("port", 6195)
	viper.SetDefault("database.path", "./console.db")
	viper.SetDefault("backend.base_url", "http://127.0.0.1:6185")
	viper.SetDefault("backend.timeout_seconds", 30)
	viper.SetDefault("market.refresh_interval_minutes", 30)

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Config file not found; ignore error and use defaults
		} else {
			// Config file was found but another error was produced
			return nil, err
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}
