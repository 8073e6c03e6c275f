package config

import (
	"fmt"
	"strings"

	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix starts every environment variable the server reads.
const EnvPrefix = "GOPHMAPS_"

// sliceKeys are read as comma-separated lists.
var sliceKeys = []string{"cors_origins"}

// parseEnv overlays GOPHMAPS_* variables onto config. GOPHMAPS_SWEEP_INTERVAL
// sets sweep_interval; lists such as GOPHMAPS_CORS_ORIGINS are comma
// separated. Unset variables leave config untouched.
func parseEnv(config *Config) error {
	k := koanf.New(".")
	provider := env.Provider(EnvPrefix, ".", func(key string) string {
		return strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
	})
	if err := k.Load(provider, nil); err != nil {
		return fmt.Errorf("failed to load environment variables: %w", err)
	}
	for _, key := range sliceKeys {
		if !k.Exists(key) {
			continue
		}
		var items []string
		for _, item := range strings.Split(k.String(key), ",") {
			if item = strings.TrimSpace(item); item != "" {
				items = append(items, item)
			}
		}
		if err := k.Set(key, items); err != nil {
			return fmt.Errorf("failed to split %s: %w", key, err)
		}
	}
	if err := k.Unmarshal("", config); err != nil {
		return fmt.Errorf("failed to unmarshal environment variables: %w", err)
	}
	return nil
}
