package authcore

import (
	"fmt"

	"github.com/spf13/viper"
)

// LoadConfig reads a configuration file and overlays it on the defaults.
// Keys absent from the file keep their default values. The path must point
// at a file viper can decode (yaml, json, toml).
func LoadConfig(path string) (Config, error) {
	cfg := defaultConfig()

	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("validate config %s: %w", path, err)
	}
	return cfg, nil
}
