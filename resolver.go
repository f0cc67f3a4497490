package autovers

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/rs/zerolog"
)

var refUnsafeChars = regexp.MustCompile(`[^0-9A-Za-z-]`)

// SanitizeRef replaces every character that is not allowed in build
// metadata with "-".
func SanitizeRef(ref string) string {
	return refUnsafeChars.ReplaceAllString(ref, "-")
}

// Resolve determines the version of the checkout described by opts.
//
// Candidates are tried in order: the nearest tag (restricted to the range
// implied by a version in the ref name), the ref name bumped by the commits
// since the fork point, and finally 0.0.0.0 bumped by all commits. With
// Update set, the build counter is derived from the baseline file and the
// result is written back to it.
func Resolve(opts Options) (*Result, error) {
	if opts.Repository == nil {
		return nil, fmt.Errorf("repository is required")
	}
	return newResolver(opts).resolve()
}

// ResolveBaseline returns the version stored in opts.Baseline bumped by the
// commits since the file last changed. Nothing is written.
func ResolveBaseline(opts Options) (*Result, error) {
	if opts.Repository == nil {
		return nil, fmt.Errorf("repository is required")
	}
	if opts.Baseline == nil {
		return nil, fmt.Errorf("%w: no baseline configured", ErrBaselineNotFound)
	}

	r := newResolver(opts)
	v, path, commits, err := r.readBaseline()
	if err != nil {
		return nil, err
	}

	commit := lookup(r, "short hash HEAD", EmptyCommit, func() (string, error) {
		return r.repo.ShortHash("HEAD")
	})

	return &Result{
		Version:  v,
		Source:   SourceBaseline,
		Base:     path,
		Commits:  commits,
		Ref:      r.refName(),
		Commit:   commit,
		Baseline: &v,
	}, nil
}

type resolver struct {
	opts   Options
	repo   Repository
	parser *Parser
	log    zerolog.Logger
}

func newResolver(opts Options) *resolver {
	if opts.Parser == nil {
		opts.Parser = defaultParser
	}
	if opts.TagMatch == "" {
		opts.TagMatch = DefaultTagMatch
	}
	if opts.ParentBranch == "" {
		opts.ParentBranch = DefaultParentBranch
	}
	if opts.Iterations <= 0 {
		opts.Iterations = DefaultIterations
	}

	log := zerolog.Nop()
	if opts.Logger != nil {
		log = *opts.Logger
	}

	return &resolver{
		opts:   opts,
		repo:   opts.Repository,
		parser: opts.Parser,
		log:    log,
	}
}

// lookup runs a repository query and returns fallback when it fails.
// Query errors are logged, never returned.
func lookup[T any](r *resolver, query string, fallback T, fn func() (T, error)) T {
	value, err := fn()
	if err != nil {
		r.log.Debug().Str("query", query).Err(err).Interface("fallback", fallback).Msg("repository query failed")
		return fallback
	}
	r.log.Debug().Str("query", query).Interface("result", value).Msg("repository query")
	return value
}

func (r *resolver) count(from, to string) int {
	return lookup(r, fmt.Sprintf("count %s..%s", from, to), 0, func() (int, error) {
		return r.repo.CountCommits(from, to, r.opts.IgnoreMerges)
	})
}

func (r *resolver) resolve() (*Result, error) {
	var baseline *Version
	if r.opts.Update && r.opts.Baseline != nil {
		v, _, _, err := r.readBaseline()
		switch {
		case errors.Is(err, ErrInvalidVersion):
			r.log.Warn().Err(err).Msg("ignoring baseline file")
		case err != nil:
			r.log.Debug().Err(err).Msg("cannot read baseline file")
		default:
			baseline = &v
		}
	}

	commit := lookup(r, "short hash HEAD", EmptyCommit, func() (string, error) {
		return r.repo.ShortHash("HEAD")
	})
	ref := r.refName()

	result := &Result{Ref: ref, Commit: commit, Baseline: baseline}

	refVersion, refValid := r.parser.Parse(ref)
	useRef := refValid && !r.opts.IgnoreRefs

	var bounds *versionRange
	if useRef {
		bounds = newVersionRange(refVersion, r.opts.Format.Assembly)
		r.log.Debug().Str("min", bounds.min.String()).Str("max", bounds.max.String()).Msg("ref version range")
	}

	found := false
	if !r.opts.IgnoreTags {
		tag, ok, err := r.nearestTag(bounds)
		if err != nil {
			return nil, err
		}
		if ok {
			result.Source = SourceTag
			result.Base = tag.name
			result.Commits = r.count(tag.commit, "HEAD")
			result.Version = tag.version
			found = true
		}
	}

	if !found && useRef {
		parent := r.opts.ParentBranch
		fork := lookup(r, "fork point "+parent, "", func() (string, error) {
			return r.repo.ForkPoint(parent)
		})
		if fork == "" {
			return nil, fmt.Errorf("%w: %w: ref %q from parent branch %q", ErrUnresolved, ErrForkPoint, ref, parent)
		}
		result.Source = SourceRef
		result.Base = ref
		result.Commits = r.count(fork, "HEAD")
		result.Version = refVersion
		found = true
	}

	if !found {
		if commit == EmptyCommit {
			return nil, fmt.Errorf("%w: %w", ErrUnresolved, ErrEmptyRepository)
		}
		v, _ := r.parser.Parse(DefaultVersion)
		result.Source = SourceDefault
		result.Base = DefaultVersion
		result.Commits = r.count("", "HEAD")
		result.Version = v
	}

	result.Version.Add(result.Commits, r.opts.Bump)

	if err := r.applyMetadata(result, baseline); err != nil {
		return nil, err
	}

	r.log.Info().
		Str("version", result.Version.String()).
		Str("source", string(result.Source)).
		Str("base", result.Base).
		Int("commits", result.Commits).
		Msg("resolved version")

	return result, nil
}

func (r *resolver) refName() string {
	ref := lookup(r, "ref name", "HEAD", r.repo.RefName)
	if ref != "HEAD" {
		return ref
	}

	tags := lookup(r, "tags at HEAD", []string(nil), func() ([]string, error) {
		return r.repo.TagsAt("HEAD")
	})
	if len(tags) > 0 {
		return tags[0]
	}
	return ref
}

type taggedVersion struct {
	name    string
	commit  string
	version Version
}

// nearestTag walks tags from HEAD towards older history. It reports false
// when history runs out of tags without an acceptable one.
func (r *resolver) nearestTag(bounds *versionRange) (taggedVersion, bool, error) {
	rev := "HEAD"
	for i := 0; i < r.opts.Iterations; i++ {
		name := lookup(r, "describe "+rev, "", func() (string, error) {
			return r.repo.DescribeTag(rev, r.opts.TagMatch)
		})
		if name == "" {
			return taggedVersion{}, false, nil
		}

		commit := lookup(r, "commit of "+name, "", func() (string, error) {
			return r.repo.ResolveCommit(name)
		})
		if commit == "" {
			return taggedVersion{}, false, nil
		}

		v, ok := r.parser.Parse(name)
		switch {
		case !ok:
			r.log.Debug().Str("tag", name).Msg("tag is not a version, trying older tag")
		case bounds == nil || bounds.contains(v):
			return taggedVersion{name: name, commit: commit, version: v}, true, nil
		case v.LessThan(bounds.min):
			return taggedVersion{}, false, fmt.Errorf("%w: %w: tag %s is below %s",
				ErrUnresolved, ErrTagBelowRange, name, bounds.min)
		default:
			r.log.Debug().Str("tag", name).Str("max", bounds.max.String()).Msg("tag above ref range, trying older tag")
		}

		rev = commit + "~1"
	}

	return taggedVersion{}, false, fmt.Errorf("%w: %w: no tag within %d iterations",
		ErrUnresolved, ErrTagSearchExhausted, r.opts.Iterations)
}

// readBaseline returns the stored version bumped by the commits since the
// file last changed, with the path it was read from and that commit count.
func (r *resolver) readBaseline() (Version, string, int, error) {
	content, path, err := r.opts.Baseline.Read()
	if err != nil {
		return Version{}, path, 0, err
	}

	v, ok := r.parser.Parse(content)
	if !ok {
		return Version{}, path, 0, fmt.Errorf("%w: %s holds %q", ErrInvalidVersion, path, content)
	}

	commits := 0
	lastChange := lookup(r, "last commit for "+path, "", func() (string, error) {
		return r.repo.LastCommitFor(path)
	})
	if lastChange == "" {
		r.log.Debug().Str("path", path).Msg("baseline file has no commit, it is not bumped")
	} else {
		commits = r.count(lastChange, "HEAD")
	}

	v.Add(commits, r.opts.Bump)
	return v, path, commits, nil
}

// applyMetadata fills the build metadata fields and, in update mode,
// derives the build counter from the baseline and persists the result.
func (r *resolver) applyMetadata(result *Result, baseline *Version) error {
	v := &result.Version

	updates := []MetadataUpdate{
		WithBuild(valueOf(v.Build)),
		WithRef(SanitizeRef(result.Ref)),
		WithCommit(result.Commit),
	}
	if r.opts.Identifier != "" {
		updates = append(updates, WithID(r.opts.Identifier))
	}
	v.UpdateMetadata(updates...)

	if !r.opts.Update {
		return nil
	}

	build := 0
	if baseline != nil && sameBuild(*v, *baseline) {
		build = valueOf(baseline.Build) + 1
	}
	v.UpdateMetadata(WithBuild(build))

	if r.opts.Baseline == nil {
		return nil
	}
	content := v.Format(persistFormat(*v, r.opts.Format))
	if err := r.opts.Baseline.Write(content); err != nil {
		if !errors.Is(err, ErrPersist) {
			err = fmt.Errorf("%w: %w", ErrPersist, err)
		}
		return err
	}
	r.log.Debug().Str("path", r.opts.Baseline.Path()).Str("version", content).Msg("baseline updated")
	return nil
}

// persistFormat is the unabbreviated form written to the baseline. The
// revision is kept whenever it is set so a rebuild compares equal.
func persistFormat(v Version, f Format) Format {
	return Format{Assembly: f.Assembly || v.Revision != nil}
}

// sameBuild reports whether v rebuilds the content recorded in baseline.
func sameBuild(v, baseline Version) bool {
	return v.Equal(baseline) &&
		v.ID == baseline.ID &&
		v.Ref == baseline.Ref &&
		v.Commit == baseline.Commit
}

// versionRange is [min, max) derived from a version in a ref name.
type versionRange struct {
	min Version
	max Version
}

// newVersionRange derives max by incrementing the first component min
// leaves unspecified, so "2.0" spans [2.0, 2.1) and "2.0.1" spans [2.0.1, 2.0.2).
func newVersionRange(min Version, assembly bool) *versionRange {
	max := Version{Major: min.Major, Minor: min.Minor, metadata: min.metadata}
	switch {
	case min.PatchBuild == nil:
		max.Minor++
	case min.Revision == nil || !assembly:
		patch := *min.PatchBuild + 1
		max.PatchBuild = &patch
	default:
		patch, revision := *min.PatchBuild, *min.Revision+1
		max.PatchBuild, max.Revision = &patch, &revision
	}
	return &versionRange{min: min, max: max}
}

func (b *versionRange) contains(v Version) bool {
	return !v.LessThan(b.min) && v.LessThan(b.max)
}
