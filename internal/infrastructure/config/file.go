package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"
)

// DefaultTOML renders the default configuration as a TOML document.
func DefaultTOML() ([]byte, error) {
	v := viper.New()
	setDefaults(v)
	data, err := toml.Marshal(v.AllSettings())
	if err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}
	return data, nil
}

// WriteDefaultFile writes the default configuration to path. An existing file
// is only replaced when overwrite is set.
func WriteDefaultFile(path string, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config file %s already exists", path)
		} else if !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to stat config file: %w", err)
		}
	}

	data, err := DefaultTOML()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
