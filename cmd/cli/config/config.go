package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/crucial707/probely-scheduler/cmd/cli/root"
	appconfig "github.com/crucial707/probely-scheduler/internal/config"
)

const tokenFileName = ".probely_token"

// Load reads the environment and applies the --api-url override.
func Load(cmd *cobra.Command) (appconfig.Config, error) {
	cfg, err := appconfig.Load()
	if err != nil {
		return appconfig.Config{}, err
	}
	if v, _ := cmd.Flags().GetString(root.FlagAPIURL); v != "" {
		cfg.APIURL = v
		if err := cfg.Validate(); err != nil {
			return appconfig.Config{}, err
		}
	}
	return cfg, nil
}

// ==========================
// Token Storage Helpers
// ==========================

// TokenPath returns the file login writes to, in the user's home directory.
func TokenPath() (string, error) {
	dir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("locate home directory: %w", err)
	}
	return filepath.Join(dir, tokenFileName), nil
}

// SaveToken writes the token readable by the current user only.
func SaveToken(token string) error {
	path, err := TokenPath()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, []byte(token), 0o600); err != nil {
		return err
	}
	// WriteFile keeps the mode of an existing file.
	return os.Chmod(path, 0o600)
}

// LoadToken returns the stored token, or "" when none has been saved.
func LoadToken() (string, error) {
	path, err := TokenPath()
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// RemoveToken deletes the stored token. It reports false when there was none.
func RemoveToken() (bool, error) {
	path, err := TokenPath()
	if err != nil {
		return false, err
	}
	err = os.Remove(path)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return err == nil, err
}
