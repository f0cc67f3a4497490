package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/alecthomas/kong"
	"github.com/charmbracelet/lipgloss"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/jaxxstorm/autovers"
	"github.com/jaxxstorm/autovers/internal/config"
	"github.com/rs/zerolog"
)

// Version will be set by build process
var Version = "dev"

type Globals struct {
	Debug   bool             `short:"d" help:"Log every repository query to stderr"`
	Version kong.VersionFlag `help:"Show version information"`
}

type CLI struct {
	Globals

	Resolve  ResolveCmd  `cmd:"" default:"withargs" help:"Resolve the version of a checkout (default)"`
	Compare  CompareCmd  `cmd:"" help:"Compare consecutive versions, printing <, = or >"`
	Validate ValidateCmd `cmd:"" help:"Exit with 0 when the argument holds a version"`
}

type ResolveCmd struct {
	Short            bool          `short:"s" help:"Omit prerelease and build metadata"`
	Assembly         bool          `short:"a" help:"Render the fourth (revision) component"`
	NoZeros          bool          `short:"z" help:"Omit components that were never specified"`
	Update           bool          `short:"u" help:"Increment the build counter from the version file and write the result back"`
	IgnoreMerges     bool          `short:"m" help:"Do not count merge commits"`
	IgnoreTags       bool          `short:"t" help:"Do not look for tags"`
	IgnoreRefs       bool          `short:"r" help:"Ignore versions in branch names"`
	BumpRevision     bool          `help:"Add commit counts to the revision instead of the patch"`
	ID               string        `short:"i" name:"id" default:"${id}" help:"Custom identifier for the build metadata"`
	File             string        `short:"f" help:"Version file, relative to the repository. Without --update, print its version bumped by the commits since it changed"`
	Parent           string        `short:"p" default:"${parent}" help:"Branch release branches fork from"`
	Match            string        `default:"${match}" help:"Glob tags must match"`
	MetadataTemplate string        `short:"b" default:"${template}" help:"Build metadata template"`
	Iterations       int           `short:"n" default:"${iterations}" help:"Maximum number of tags to examine"`
	Engine           string        `enum:"git,go-git" default:"${engine}" help:"Repository engine (git,go-git)"`
	GitTimeout       time.Duration `default:"${git_timeout}" help:"Timeout of each git invocation"`
	Repo             string        `short:"C" type:"path" default:"." help:"Repository path"`
	JSON             bool          `short:"j" name:"json" help:"Output every rendering as JSON"`
}

type CompareCmd struct {
	Versions []string `arg:"" optional:"" help:"Versions to compare"`
}

type ValidateCmd struct {
	Version string `arg:"" help:"String to validate"`
}

// app carries the writers, logger and settings bound into every command.
// settingsErr is only reported by commands that depend on the settings.
type app struct {
	stdout      io.Writer
	log         zerolog.Logger
	settings    *config.Settings
	settingsErr error
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	settings, settingsErr := config.Load(".")
	if settingsErr != nil {
		settings = config.Defaults()
	}

	exitCode := -1
	var cli CLI
	parser, err := kong.New(&cli,
		kong.Name("autovers"),
		kong.Description("Compute deterministic versions from git tags, branch names and commit counts"),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
		kong.Writers(stdout, stderr),
		kong.Exit(func(code int) {
			if exitCode < 0 {
				exitCode = code
			}
		}),
		kong.Vars{
			"version":     Version,
			"id":          settings.Identifier,
			"parent":      settings.ParentBranch,
			"match":       settings.TagMatch,
			"template":    settings.MetadataTemplate,
			"iterations":  strconv.Itoa(settings.Iterations),
			"engine":      settings.Engine,
			"git_timeout": settings.GitTimeout.String(),
		},
	)
	if err != nil {
		return fail(stderr, err)
	}

	ctx, err := parser.Parse(args)
	if exitCode >= 0 {
		return exitCode
	}
	if err != nil {
		return fail(stderr, err)
	}

	a := &app{
		stdout:      stdout,
		log:         newLogger(stderr, cli.Debug),
		settings:    settings,
		settingsErr: settingsErr,
	}
	if err := ctx.Run(a); err != nil {
		return fail(stderr, err)
	}
	return 0
}

func newLogger(w io.Writer, debug bool) zerolog.Logger {
	level := zerolog.WarnLevel
	if debug {
		level = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}).
		Level(level).
		With().
		Timestamp().
		Logger()
}

func fail(stderr io.Writer, err error) int {
	renderer := lipgloss.NewRenderer(stderr)
	errStyle := renderer.NewStyle().Foreground(lipgloss.Color("#FF0000")).Bold(true)
	hintStyle := renderer.NewStyle().Foreground(lipgloss.Color("#626262"))

	fmt.Fprintf(stderr, "%s %v\n", errStyle.Render("Error:"), err)
	fmt.Fprintln(stderr, hintStyle.Render("Run with --help for usage."))
	return 1
}

func (r *ResolveCmd) Run(a *app) error {
	if a.settingsErr != nil {
		return a.settingsErr
	}

	repo, err := r.repository()
	if err != nil {
		return err
	}

	tmpl, err := autovers.ParseMetadataTemplate(r.MetadataTemplate)
	if err != nil {
		return err
	}

	bump := autovers.BumpPatch
	if r.BumpRevision {
		bump = autovers.BumpRevision
	}

	format := autovers.Format{NoZeros: r.NoZeros, Short: r.Short, Assembly: r.Assembly}
	opts := autovers.Options{
		Repository:   repo,
		Parser:       autovers.NewParser(tmpl),
		TagMatch:     r.Match,
		ParentBranch: r.Parent,
		Identifier:   r.ID,
		IgnoreTags:   r.IgnoreTags,
		IgnoreRefs:   r.IgnoreRefs,
		IgnoreMerges: r.IgnoreMerges,
		Bump:         bump,
		Iterations:   r.Iterations,
		Update:       r.Update,
		Format:       format,
		Logger:       &a.log,
	}

	file := r.File
	if file == "" {
		file = a.settings.VersionFile
	}

	if r.File != "" && !r.Update {
		opts.Baseline = r.baseline(file)
		result, err := autovers.ResolveBaseline(opts)
		switch {
		case err == nil:
			return r.print(a, result, format)
		case errors.Is(err, autovers.ErrBaselineNotFound):
			a.log.Warn().Str("path", opts.Baseline.Path()).Msg("version file not found, resolving from the repository")
			opts.Baseline = nil
		default:
			return err
		}
	}

	if r.Update {
		opts.Baseline = r.baseline(file)
	}

	result, err := autovers.Resolve(opts)
	if err != nil {
		return err
	}
	return r.print(a, result, format)
}

func (r *ResolveCmd) print(a *app, result *autovers.Result, format autovers.Format) error {
	if r.JSON {
		encoder := json.NewEncoder(a.stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(result.Versions(r.NoZeros))
	}

	fmt.Fprintln(a.stdout, result.Version.Format(format))
	return nil
}

func (r *ResolveCmd) repository() (autovers.Repository, error) {
	if r.Engine == config.EngineGoGit {
		return autovers.OpenRepository(r.Repo)
	}

	repo := autovers.NewCommandRepository(r.Repo, r.GitTimeout)
	if err := repo.CheckEnvironment(); err != nil {
		return nil, err
	}
	return repo, nil
}

// baseline writes to the file relative to the repository. Reads fall back
// to the same name next to the executable.
func (r *ResolveCmd) baseline(file string) *autovers.Baseline {
	if filepath.IsAbs(file) {
		return autovers.NewBaseline(osfs.New("/"), file)
	}

	var fallbacks []string
	if exe, err := os.Executable(); err == nil {
		fallbacks = append(fallbacks, filepath.Join(filepath.Dir(exe), file))
	}
	return autovers.NewBaseline(osfs.New("/"), filepath.Join(r.Repo, file), fallbacks...)
}

func (c *CompareCmd) Run(a *app) error {
	if len(c.Versions) < 2 {
		return errors.New("compare needs at least two versions")
	}

	versions := make([]autovers.Version, 0, len(c.Versions))
	for _, text := range c.Versions {
		v, ok := autovers.Parse(text)
		if !ok {
			return fmt.Errorf("%w: %q", autovers.ErrInvalidVersion, text)
		}
		versions = append(versions, v)
	}

	symbols := make([]string, 0, len(versions)-1)
	for i := 1; i < len(versions); i++ {
		switch autovers.Compare(versions[i-1], versions[i]) {
		case -1:
			symbols = append(symbols, "<")
		case 1:
			symbols = append(symbols, ">")
		default:
			symbols = append(symbols, "=")
		}
	}

	fmt.Fprintln(a.stdout, strings.Join(symbols, " "))
	return nil
}

func (v *ValidateCmd) Run(a *app) error {
	parsed, ok := autovers.Parse(v.Version)
	if !ok {
		return fmt.Errorf("%w: %q", autovers.ErrInvalidVersion, v.Version)
	}
	a.log.Debug().Str("input", v.Version).Str("version", parsed.Format(autovers.Format{Assembly: true})).Msg("valid version")
	return nil
}
