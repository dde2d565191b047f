package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

const (
	// EnvPrefix starts every environment override, e.g.
	// RESONANCE_SPOTIFY_CLIENT_ID sets spotify.client_id.
	EnvPrefix = "RESONANCE_"

	// PathEnvVar overrides the config file path.
	PathEnvVar = "RESONANCE_CONFIG"
)

// DefaultPaths are searched in order when no path is given.
var DefaultPaths = []string{
	"resonance.yaml",
	"resonance.yml",
	"/etc/resonance/resonance.yaml",
}

// Load builds the configuration. An explicit path, or one named by
// RESONANCE_CONFIG, must exist; otherwise the first of DefaultPaths found is
// used, and none is fine.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("config: load defaults: %w", err)
	}

	configPath, err := findConfigFile(path)
	if err != nil {
		return nil, err
	}
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("config: load %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("config: load environment: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: invalid: %w", err)
	}
	return cfg, nil
}

func findConfigFile(explicit string) (string, error) {
	if explicit == "" {
		explicit = os.Getenv(PathEnvVar)
	}
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config: %w", err)
		}
		return explicit, nil
	}
	for _, p := range DefaultPaths {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		} else if !errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("config: %w", err)
		}
	}
	return "", nil
}

// envTransformFunc maps RESONANCE_SECTION_SOME_KEY to section.some_key.
// Variables without a section, RESONANCE_CONFIG among them, are ignored.
func envTransformFunc(key string) string {
	key = strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
	section, rest, ok := strings.Cut(key, "_")
	if !ok || section == "" || rest == "" {
		return ""
	}
	return section + "." + rest
}
