package config

import (
	"bytes"
	"fmt"

	"github.com/BurntSushi/toml"
	"github.com/prefixhashtree/pht-go/utils"
)

// Loader abstracts over a config's on-disk encoding.
type Loader interface {
	Encode(conf AppConfig) error
	Decode(conf AppConfig) error
}

// newLoader returns a Loader for the given encoding, falling back to
// TOML for an unrecognized or empty encoding name.
func newLoader(encoding string) Loader {
	if l := loaders[encoding]; l != nil {
		return l
	}
	return new(TomlLoader)
}

// TomlLoader implements Loader using github.com/BurntSushi/toml, the
// same TOML library used elsewhere in this module.
type TomlLoader struct{}

var _ Loader = (*TomlLoader)(nil)

// Encode writes conf to its GetPath() location in TOML.
func (ld *TomlLoader) Encode(conf AppConfig) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(conf); err != nil {
		return err
	}
	return utils.WriteFile(conf.GetPath(), buf.Bytes(), 0644)
}

// Decode reads conf's GetPath() location as TOML into conf.
func (ld *TomlLoader) Decode(conf AppConfig) error {
	if _, err := toml.DecodeFile(conf.GetPath(), conf); err != nil {
		return fmt.Errorf("config: failed to load %s: %v", conf.GetPath(), err)
	}
	return nil
}

var loaders = map[string]Loader{
	"toml": new(TomlLoader),
}
