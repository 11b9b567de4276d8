package config

import (
	"fmt"

	"dario.cat/mergo"
)

// configBuilder folds configuration sources together in priority order.
// Each with* call merges its source immediately, so a later layer only
// fills fields the earlier ones left at their zero value.
type configBuilder struct {
	merged *StructuredConfig
	err    error
}

func newConfigBuilder() *configBuilder {
	return &configBuilder{merged: new(StructuredConfig)}
}

func (b *configBuilder) layer(name string, cfg *StructuredConfig, err error) *configBuilder {
	if b.err != nil {
		return b
	}
	if err != nil {
		b.err = fmt.Errorf("%s config: %w", name, err)
		return b
	}
	if err := mergo.Merge(b.merged, cfg); err != nil {
		b.err = fmt.Errorf("merging %s config: %w", name, err)
	}
	return b
}

func (b *configBuilder) withEnv() *configBuilder {
	envCfg := new(StructuredConfig)
	return b.layer("env", envCfg, parseEnv(envCfg))
}

func (b *configBuilder) withFlags() *configBuilder {
	return b.layer("flags", ParseFlags(), nil)
}

// withJSON reads the optional config file when an earlier layer named one,
// which is why it must come after withEnv and withFlags.
func (b *configBuilder) withJSON() *configBuilder {
	if b.err != nil || b.merged.JSONFilePath == "" {
		return b
	}
	jsonCfg, err := parseJSON(b.merged.JSONFilePath)
	return b.layer("json", jsonCfg, err)
}

func (b *configBuilder) build() (*StructuredConfig, error) {
	if b.err != nil {
		return nil, fmt.Errorf("error occured during building config: %w", b.err)
	}
	return b.merged, nil
}
