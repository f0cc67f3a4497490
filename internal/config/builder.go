package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"dario.cat/mergo"
	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

type builder struct {
	environ map[string]string
	layers  []*Settings
	err     error
}

func newBuilder(environ map[string]string) *builder {
	return &builder{
		environ: environ,
		layers:  make([]*Settings, 0, 3),
	}
}

func (b *builder) build() (*Settings, error) {
	if b.err != nil {
		return nil, fmt.Errorf("building settings: %w", b.err)
	}

	settings := new(Settings)
	for _, layer := range b.layers {
		if err := mergo.Merge(settings, layer); err != nil {
			return nil, fmt.Errorf("merging settings: %w", err)
		}
	}

	if err := settings.validate(); err != nil {
		return nil, err
	}
	return settings, nil
}

func (b *builder) withEnv() *builder {
	settings := &Settings{}
	err := env.ParseWithOptions(settings, env.Options{
		Prefix:      EnvPrefix,
		Environment: b.environ,
	})
	if err != nil {
		b.err = errors.Join(b.err, fmt.Errorf("%w: environment: %w", ErrInvalidSettings, err))
		return b
	}

	b.layers = append(b.layers, settings)
	return b
}

// withFile reads FileEnv when set, otherwise DefaultFile in dir when present.
func (b *builder) withFile(dir string) *builder {
	path, explicit := b.environ[FileEnv]
	if !explicit || path == "" {
		path, explicit = filepath.Join(dir, DefaultFile), false
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) && !explicit {
		return b
	}
	if err != nil {
		b.err = errors.Join(b.err, fmt.Errorf("reading %s: %w", path, err))
		return b
	}

	settings := &Settings{}
	if err := yaml.Unmarshal(data, settings); err != nil {
		b.err = errors.Join(b.err, fmt.Errorf("%w: %s: %w", ErrInvalidSettings, path, err))
		return b
	}

	b.layers = append(b.layers, settings)
	return b
}

func (b *builder) withDefaults() *builder {
	b.layers = append(b.layers, Defaults())
	return b
}
