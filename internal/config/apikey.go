package config

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
)

// APIKeyEnv is consulted when no key is given explicitly.
const APIKeyEnv = "GEMINI_API_KEY"

// ErrNoAPIKey is returned by ResolveAPIKey when no source yields a key.
var ErrNoAPIKey = errors.New("no API key configured")

// ResolveAPIKey returns the model API key from, in order: explicit, the
// agent.api_key setting, $GEMINI_API_KEY, and the first line of the key file.
func (c *Config) ResolveAPIKey(explicit string) (string, error) {
	if k := strings.TrimSpace(explicit); k != "" {
		return k, nil
	}
	if k := strings.TrimSpace(c.Agent.APIKey); k != "" {
		return k, nil
	}
	if k := strings.TrimSpace(os.Getenv(APIKeyEnv)); k != "" {
		return k, nil
	}

	f, err := os.Open(c.APIKeyPath())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", ErrNoAPIKey
		}
		return "", fmt.Errorf("failed to read API key file: %w", err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	if sc.Scan() {
		if k := strings.TrimSpace(sc.Text()); k != "" {
			return k, nil
		}
	}
	return "", ErrNoAPIKey
}

// SaveAPIKey writes key to the key file with mode 0600.
func (c *Config) SaveAPIKey(key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("API key must not be empty")
	}
	if err := c.EnsureDir(); err != nil {
		return err
	}
	if err := os.WriteFile(c.APIKeyPath(), []byte(key+"\n"), 0600); err != nil {
		return fmt.Errorf("failed to write API key file: %w", err)
	}
	return nil
}
