package config

import (
	"path/filepath"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// LoadFile reads a YAML or JSON config file, selected by extension.
func LoadFile(path string) (Config, error) {
	k := koanf.New(".")

	var parser koanf.Parser
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return Config{}, errf(path, "unsupported extension (want .yaml, .yml or .json)")
	}

	if err := k.Load(file.Provider(path), parser); err != nil {
		return Config{}, &Error{Path: path, Err: err}
	}
	return unmarshal(k, path)
}

// LoadMap decodes an in-memory tree, mainly for tests and embedding callers.
func LoadMap(m map[string]any) (Config, error) {
	k := koanf.New(".")
	if err := k.Load(confmap.Provider(m, "."), nil); err != nil {
		return Config{}, &Error{Err: err}
	}
	return unmarshal(k, "")
}

func unmarshal(k *koanf.Koanf, path string) (Config, error) {
	var cfg Config
	err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			TagName:     "koanf",
			Result:      &cfg,
			ErrorUnused: true, // reject unknown keys
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
			),
		},
	})
	if err != nil {
		return Config{}, &Error{Path: path, Err: err}
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
