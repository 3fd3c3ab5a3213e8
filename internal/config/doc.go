// Package config loads calm's configuration with viper.
//
// Values come from defaults, an optional config.yaml in the config directory
// (~/.config/calm), CALM_* environment variables and command-line flags, in
// increasing order of precedence. The resulting *Config is passed explicitly to
// every component; tests build their own with different time zones.
package config
