// Package config loads the defaults of the autovers command line from the
// environment, an optional YAML file and built-in values.
//
// Layers are merged with the first one winning: environment variables
// (AUTOVERS_*), then the settings file, then [Defaults]. Flags given on the
// command line override all of them.
package config

import (
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/jaxxstorm/autovers"
)

// EnvPrefix is prepended to every environment variable name.
const EnvPrefix = "AUTOVERS_"

// FileEnv names the variable pointing at an explicit settings file.
const FileEnv = EnvPrefix + "CONFIG"

// DefaultFile is looked up in the working directory when FileEnv is unset.
const DefaultFile = ".autovers.yaml"

// Repository engines.
const (
	EngineGit   = "git"
	EngineGoGit = "go-git"
)

// Settings are the defaults for the resolve command.
type Settings struct {
	ParentBranch     string        `env:"PARENT_BRANCH" yaml:"parent_branch"`
	TagMatch         string        `env:"TAG_MATCH" yaml:"tag_match"`
	MetadataTemplate string        `env:"METADATA_TEMPLATE" yaml:"metadata_template"`
	VersionFile      string        `env:"VERSION_FILE" yaml:"version_file"`
	Iterations       int           `env:"ITERATIONS" yaml:"iterations"`
	Identifier       string        `env:"ID" yaml:"id"`
	Engine           string        `env:"ENGINE" yaml:"engine"`
	GitTimeout       time.Duration `env:"GIT_TIMEOUT" yaml:"git_timeout"`
}

// Defaults returns the built-in settings.
func Defaults() *Settings {
	return &Settings{
		ParentBranch:     autovers.DefaultParentBranch,
		TagMatch:         autovers.DefaultTagMatch,
		MetadataTemplate: autovers.DefaultMetadataTemplate,
		VersionFile:      autovers.DefaultBaselineFile,
		Iterations:       autovers.DefaultIterations,
		Engine:           EngineGit,
		GitTimeout:       autovers.DefaultCommandTimeout,
	}
}

// Load merges the process environment, the settings file found from dir and
// the defaults.
func Load(dir string) (*Settings, error) {
	return LoadEnvironment(dir, env.ToMap(os.Environ()))
}

// LoadEnvironment is like Load with an explicit environment.
func LoadEnvironment(dir string, environ map[string]string) (*Settings, error) {
	return newBuilder(environ).
		withEnv().
		withFile(dir).
		withDefaults().
		build()
}
