package feature

import (
	"os"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Config tunes language preferences for candidate ranking.
type Config struct {
	PreferredLanguages     []string `yaml:"preferred_languages"`
	DeprioritizedLanguages []string `yaml:"deprioritized_languages"`
}

// DefaultConfig prefers English path segments and deprioritizes the
// common non-English ones.
func DefaultConfig() Config {
	return Config{
		PreferredLanguages: []string{"en", "en-us", "en-gb"},
		DeprioritizedLanguages: []string{
			"de", "fr", "es", "it", "pt", "nl", "pl", "ru", "ja", "zh", "ko",
		},
	}
}

// LoadConfig reads scoring tunables from a YAML file. The file is
// optional: an empty path or a missing file yields DefaultConfig.
func LoadConfig(path string) (Config, error) {
	if path == "" {
		return DefaultConfig(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			zap.L().Debug("feature: no scoring config, using defaults", zap.String("path", path))
			return DefaultConfig(), nil
		}
		return Config{}, eris.Wrapf(err, "feature: read scoring config %s", path)
	}

	// The YAML has a top-level "scoring" key.
	var wrapper struct {
		Scoring Config `yaml:"scoring"`
	}
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return Config{}, eris.Wrapf(err, "feature: parse scoring config %s", path)
	}

	cfg := wrapper.Scoring
	defaults := DefaultConfig()
	if len(cfg.PreferredLanguages) == 0 {
		cfg.PreferredLanguages = defaults.PreferredLanguages
	}
	if len(cfg.DeprioritizedLanguages) == 0 {
		cfg.DeprioritizedLanguages = defaults.DeprioritizedLanguages
	}
	return cfg, nil
}
