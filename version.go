// Package autovers computes deterministic versions for git checkouts from
// tags, ref names, a persisted baseline file and commit counts.
package autovers

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/blang/semver"
)

// versionPattern finds a version anywhere in a string, so ref names such as
// "release/2.0" and tags such as "sdk/v1.4.0" parse.
var versionPattern = regexp.MustCompile(
	`v?(?P<major>0|[1-9]\d*)\.(?P<minor>0|[1-9]\d*)` +
		`(?:\.(?P<patch>0|[1-9]\d*))?` +
		`(?:\.(?P<revision>0|[1-9]\d*))?` +
		`(?:-(?P<prerelease>(?:0|[1-9]\d*|\d*[a-zA-Z-][0-9a-zA-Z-]*)(?:\.(?:0|[1-9]\d*|\d*[a-zA-Z-][0-9a-zA-Z-]*))*))?` +
		`(?:\+(?P<metadata>[0-9a-zA-Z-]+(?:\.[0-9a-zA-Z-]+)*))?`)

// Bump selects the component that Add increments.
type Bump int

const (
	// BumpPatch increments the patch (SemVer) component.
	BumpPatch Bump = iota
	// BumpRevision increments the fourth (assembly) component.
	BumpRevision
)

// Format controls how a Version is rendered.
type Format struct {
	// NoZeros omits trailing numeric components that were never specified.
	NoZeros bool
	// Short omits the prerelease and build metadata suffixes.
	Short bool
	// Assembly renders the fourth (revision) component.
	Assembly bool
}

// Version is major.minor[.patchBuild][.revision][-prerelease][+metadata].
// Optional numeric components are nil when they were not specified.
type Version struct {
	Major      int
	Minor      int
	PatchBuild *int
	Revision   *int
	Prerelease string

	// BuildMetadata is informational and never takes part in comparison.
	BuildMetadata string

	// Build metadata fields, kept in sync with BuildMetadata by UpdateMetadata.
	Build  *int
	ID     string
	Ref    string
	Commit string

	metadata *MetadataTemplate
}

// Parser parses versions and decomposes their build metadata with a template.
type Parser struct {
	metadata *MetadataTemplate
}

// NewParser returns a Parser using the given metadata template, or the
// default template when nil.
func NewParser(metadata *MetadataTemplate) *Parser {
	if metadata == nil {
		metadata = defaultMetadataTemplate
	}
	return &Parser{metadata: metadata}
}

// Template returns the metadata template used by the parser.
func (p *Parser) Template() *MetadataTemplate {
	return p.metadata
}

var defaultParser = NewParser(nil)

// Parse parses text with the default metadata template.
func Parse(text string) (Version, bool) {
	return defaultParser.Parse(text)
}

// MustParse is like Parse but panics when text holds no version.
func MustParse(text string) Version {
	v, ok := Parse(text)
	if !ok {
		panic(fmt.Sprintf("%s: %q", ErrInvalidVersion, text))
	}
	return v
}

// Parse finds the first version in text. It reports false when no
// major.minor pair can be matched. Build metadata that does not fit the
// template leaves the metadata fields unset.
func (p *Parser) Parse(text string) (Version, bool) {
	match := versionPattern.FindStringSubmatch(text)
	if match == nil {
		return Version{}, false
	}

	groups := make(map[string]string, len(match))
	for i, name := range versionPattern.SubexpNames() {
		if name != "" {
			groups[name] = match[i]
		}
	}

	major, err := strconv.Atoi(groups["major"])
	if err != nil {
		return Version{}, false
	}
	minor, err := strconv.Atoi(groups["minor"])
	if err != nil {
		return Version{}, false
	}

	v := Version{
		Major:         major,
		Minor:         minor,
		PatchBuild:    optionalInt(groups["patch"]),
		Revision:      optionalInt(groups["revision"]),
		Prerelease:    groups["prerelease"],
		BuildMetadata: groups["metadata"],
		metadata:      p.metadata,
	}

	if v.BuildMetadata != "" {
		p.metadata.Decompose(&v, v.BuildMetadata)
	}

	return v, true
}

func optionalInt(s string) *int {
	if s == "" {
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return nil
	}
	return &n
}

func valueOf(n *int) int {
	if n == nil {
		return 0
	}
	return *n
}

// Compare returns -1, 0 or 1 when a is lower than, equal to or greater than b.
// Unset numeric components count as 0, a release is greater than any
// prerelease of the same numbers, and build metadata is ignored.
func Compare(a, b Version) int {
	if c := compareInt(a.Major, b.Major); c != 0 {
		return c
	}
	if c := compareInt(a.Minor, b.Minor); c != 0 {
		return c
	}
	if c := compareInt(valueOf(a.PatchBuild), valueOf(b.PatchBuild)); c != 0 {
		return c
	}
	if c := compareInt(valueOf(a.Revision), valueOf(b.Revision)); c != 0 {
		return c
	}
	return comparePrerelease(a.Prerelease, b.Prerelease)
}

func compareInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// comparePrerelease orders dot separated prerelease identifiers by SemVer
// precedence. An empty prerelease is a release and sorts last.
func comparePrerelease(a, b string) int {
	switch {
	case a == b:
		return 0
	case a == "":
		return 1
	case b == "":
		return -1
	}

	as, bs := strings.Split(a, "."), strings.Split(b, ".")
	for i := 0; i < len(as) && i < len(bs); i++ {
		pa, errA := semver.NewPRVersion(as[i])
		pb, errB := semver.NewPRVersion(bs[i])
		if errA != nil || errB != nil {
			if c := strings.Compare(as[i], bs[i]); c != 0 {
				return c
			}
			continue
		}
		if c := pa.Compare(pb); c != 0 {
			return c
		}
	}

	return compareInt(len(as), len(bs))
}

// Compare compares v with o, see Compare.
func (v Version) Compare(o Version) int {
	return Compare(v, o)
}

// Equal reports whether v and o have the same precedence.
func (v Version) Equal(o Version) bool {
	return Compare(v, o) == 0
}

// LessThan reports whether v has lower precedence than o.
func (v Version) LessThan(o Version) bool {
	return Compare(v, o) < 0
}

// GreaterThan reports whether v has higher precedence than o.
func (v Version) GreaterThan(o Version) bool {
	return Compare(v, o) > 0
}

// Format renders the version.
func (v Version) Format(f Format) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d.%d", v.Major, v.Minor)

	if !f.NoZeros || v.PatchBuild != nil || v.Revision != nil {
		fmt.Fprintf(&b, ".%d", valueOf(v.PatchBuild))
	}
	if f.Assembly && (!f.NoZeros || v.Revision != nil) {
		fmt.Fprintf(&b, ".%d", valueOf(v.Revision))
	}

	if !f.Short {
		if v.Prerelease != "" {
			b.WriteString("-" + v.Prerelease)
		}
		if v.BuildMetadata != "" {
			b.WriteString("+" + v.BuildMetadata)
		}
	}

	return b.String()
}

// String renders the long SemVer form.
func (v Version) String() string {
	return v.Format(Format{})
}

// Add increments the patch or revision component by n and returns v.
func (v *Version) Add(n int, bump Bump) *Version {
	switch bump {
	case BumpRevision:
		revision := valueOf(v.Revision) + n
		v.Revision = &revision
	default:
		patch := valueOf(v.PatchBuild) + n
		v.PatchBuild = &patch
	}
	return v
}

// MetadataUpdate changes one build metadata field.
type MetadataUpdate func(v *Version)

// WithBuild sets the build counter.
func WithBuild(build int) MetadataUpdate {
	return func(v *Version) { v.Build = &build }
}

// WithID sets the custom identifier.
func WithID(id string) MetadataUpdate {
	return func(v *Version) { v.ID = id }
}

// WithRef sets the ref name.
func WithRef(ref string) MetadataUpdate {
	return func(v *Version) { v.Ref = ref }
}

// WithCommit sets the commit hash.
func WithCommit(commit string) MetadataUpdate {
	return func(v *Version) { v.Commit = commit }
}

// UpdateMetadata applies the given field updates, leaving the other fields
// as they are, and regenerates BuildMetadata from the metadata template.
func (v *Version) UpdateMetadata(updates ...MetadataUpdate) {
	for _, update := range updates {
		update(v)
	}
	v.BuildMetadata = v.template().Render(v)
}

func (v *Version) template() *MetadataTemplate {
	if v.metadata == nil {
		return defaultMetadataTemplate
	}
	return v.metadata
}
