package cli

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Config holds the CLI defaults, overridable from a TOML file and again
// from command flags. The core packages never read it; values are passed
// into constructors explicitly.
type Config struct {
	Threshold      float64 `toml:"threshold"`
	Scale          float64 `toml:"scale"`
	OptionGuides   bool    `toml:"option_guides"`
	MaxRotationDeg float64 `toml:"max_rotation_deg"`
}

// defaultConfigFile is looked up in the working directory when no
// --config flag is given.
const defaultConfigFile = "markscan.toml"

func defaultConfig() Config {
	return Config{
		Threshold:      0.5,
		Scale:          1.0,
		OptionGuides:   true,
		MaxRotationDeg: 15,
	}
}

// loadConfig reads the TOML config file. A missing default file is not
// an error; a missing explicit file is.
func loadConfig(path string) (Config, error) {
	cfg := defaultConfig()
	explicit := path != ""
	if !explicit {
		path = defaultConfigFile
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !explicit {
			return cfg, nil
		}
		return cfg, fmt.Errorf("config: %w", err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}
