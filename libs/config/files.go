package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Load fills unset environment variables from a dotenv file and then from a
// flat YAML file. The process environment always wins, and dotenv wins over
// YAML. Missing files are skipped; an empty path disables that source.
func Load(dotenvPath, yamlPath string) error {
	if dotenvPath != "" {
		if err := loadDotenv(dotenvPath); err != nil {
			return err
		}
	}
	if yamlPath != "" {
		if err := loadYAML(yamlPath); err != nil {
			return err
		}
	}
	return nil
}

// LoadWithConfigKey loads dotenvPath and then the YAML file named by the
// pathKey variable, so the path itself may come from the dotenv file.
func LoadWithConfigKey(dotenvPath, pathKey string) error {
	if err := Load(dotenvPath, ""); err != nil {
		return err
	}
	return Load("", String(pathKey, ""))
}

func loadDotenv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	// godotenv.Load never overrides variables that are already set.
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

func loadYAML(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}

	values := map[string]any{}
	if err := yaml.Unmarshal(raw, &values); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	for key, value := range values {
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		switch value.(type) {
		case map[string]any, []any:
			return fmt.Errorf("parse %s: %s must be a scalar", path, key)
		}
		if _, set := os.LookupEnv(key); set {
			continue
		}
		if value == nil {
			continue
		}
		if err := os.Setenv(key, fmt.Sprint(value)); err != nil {
			return fmt.Errorf("set %s: %w", key, err)
		}
	}
	return nil
}
