package autovers

import (
	"github.com/rs/zerolog"
)

// EmptyCommit is the short hash reported for a repository without commits.
const EmptyCommit = "0000000"

// DefaultVersion is the version counted from when no tag or ref applies.
const DefaultVersion = "0.0.0.0"

// Defaults used when the matching Options fields are empty.
const (
	DefaultParentBranch = "main"
	DefaultTagMatch     = "*"
	DefaultIterations   = 3
)

// Repository answers the questions the resolver asks about a git checkout.
// Revisions are anything git understands, such as "HEAD", a hash, a tag
// name or "<hash>~1".
type Repository interface {
	// ShortHash returns the abbreviated commit hash of rev.
	ShortHash(rev string) (string, error)

	// RefName returns the short name of the checked out branch, or "HEAD"
	// when detached.
	RefName() (string, error)

	// TagsAt returns the names of tags pointing at rev.
	TagsAt(rev string) ([]string, error)

	// DescribeTag returns the nearest tag reachable from rev whose name
	// matches the glob.
	DescribeTag(rev, match string) (string, error)

	// ResolveCommit returns the full commit hash rev points to.
	ResolveCommit(rev string) (string, error)

	// CountCommits counts commits reachable from to but not from from. An
	// empty from counts all commits reachable from to.
	CountCommits(from, to string, noMerges bool) (int, error)

	// ForkPoint returns the commit where HEAD forked from the parent branch.
	ForkPoint(parent string) (string, error)

	// LastCommitFor returns the last commit that modified path.
	LastCommitFor(path string) (string, error)
}

// Options configures a resolution run.
type Options struct {
	// Repository is queried for tags, refs and commit counts.
	Repository Repository

	// Parser parses tag names, ref names and the baseline (default template when nil).
	Parser *Parser

	// TagMatch is the glob tags must match (default "*").
	TagMatch string

	// ParentBranch is the branch others fork from (default "main").
	ParentBranch string

	// Identifier is the custom id put into build metadata.
	Identifier string

	// IgnoreTags skips the tag search.
	IgnoreTags bool

	// IgnoreRefs skips versions found in the branch or ref name.
	IgnoreRefs bool

	// IgnoreMerges excludes merge commits from commit counts.
	IgnoreMerges bool

	// Bump selects the component incremented by commit counts.
	Bump Bump

	// Iterations caps how many tags are examined (default 3).
	Iterations int

	// Update enables the baseline build counter and writes the result back.
	Update bool

	// Baseline is the persisted version file.
	Baseline *Baseline

	// Format is the output format; only Assembly affects the persisted baseline.
	Format Format

	// Logger receives debug output for every repository query.
	Logger *zerolog.Logger
}

// Source names the candidate a version was derived from.
type Source string

const (
	SourceTag      Source = "tag"
	SourceRef      Source = "ref"
	SourceDefault  Source = "default"
	SourceBaseline Source = "baseline"
)

// Result is the outcome of a resolution run.
type Result struct {
	// Version is the resolved version including build metadata.
	Version Version

	// Source is the candidate the version came from.
	Source Source

	// Base is the tag name, ref name, default version or baseline path used
	// as the base.
	Base string

	// Commits is the number of commits added to the base.
	Commits int

	// Ref is the branch, tag or "HEAD" that was checked out.
	Ref string

	// Commit is the short HEAD hash.
	Commit string

	// Baseline is the version read from the baseline file, if any.
	Baseline *Version
}

// Versions holds the common renderings of a result.
type Versions struct {
	SemVer        string `json:"semver"`
	SemVerShort   string `json:"semver_short"`
	Assembly      string `json:"assembly"`
	AssemblyShort string `json:"assembly_short"`
	Source        Source `json:"source"`
	Base          string `json:"base"`
	Commits       int    `json:"commits"`
	Ref           string `json:"ref"`
	Commit        string `json:"commit"`
}

// Versions renders the result in every format. NoZeros applies to all of them.
func (r *Result) Versions(noZeros bool) *Versions {
	return &Versions{
		SemVer:        r.Version.Format(Format{NoZeros: noZeros}),
		SemVerShort:   r.Version.Format(Format{NoZeros: noZeros, Short: true}),
		Assembly:      r.Version.Format(Format{NoZeros: noZeros, Assembly: true}),
		AssemblyShort: r.Version.Format(Format{NoZeros: noZeros, Short: true, Assembly: true}),
		Source:        r.Source,
		Base:          r.Base,
		Commits:       r.Commits,
		Ref:           r.Ref,
		Commit:        r.Commit,
	}
}
