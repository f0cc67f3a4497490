package config

import (
	"errors"
	"fmt"

	"github.com/jaxxstorm/autovers"
)

// ErrInvalidSettings is returned when a layer cannot be decoded or the merged
// settings are unusable.
var ErrInvalidSettings = errors.New("invalid settings")

func (s *Settings) validate() error {
	if s.Iterations <= 0 {
		return fmt.Errorf("%w: iterations must be positive, got %d", ErrInvalidSettings, s.Iterations)
	}
	if s.GitTimeout <= 0 {
		return fmt.Errorf("%w: git timeout must be positive, got %s", ErrInvalidSettings, s.GitTimeout)
	}

	switch s.Engine {
	case EngineGit, EngineGoGit:
	default:
		return fmt.Errorf("%w: unknown engine %q", ErrInvalidSettings, s.Engine)
	}

	if _, err := autovers.ParseMetadataTemplate(s.MetadataTemplate); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSettings, err)
	}
	return nil
}
