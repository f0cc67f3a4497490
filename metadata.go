package autovers

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// DefaultMetadataTemplate renders build metadata as
// "<build>.<id>.<ref>.<commit>" with build and id optional.
const DefaultMetadataTemplate = "[{build}.][{id}.]{ref}.{commit}"

// Metadata field names usable as template placeholders.
const (
	FieldBuild  = "build"
	FieldID     = "id"
	FieldRef    = "ref"
	FieldCommit = "commit"
)

type metadataField struct {
	pattern string
	get     func(v *Version) string
	set     func(v *Version, value string) error
}

var metadataFields = map[string]metadataField{
	FieldBuild: {
		pattern: `[0-9]+`,
		get: func(v *Version) string {
			if v.Build == nil {
				return ""
			}
			return strconv.Itoa(*v.Build)
		},
		set: func(v *Version, value string) error {
			n, err := strconv.Atoi(value)
			if err != nil {
				return fmt.Errorf("parsing build number %q: %w", value, err)
			}
			v.Build = &n
			return nil
		},
	},
	FieldID: {
		pattern: `[0-9a-zA-Z-]+`,
		get:     func(v *Version) string { return v.ID },
		set:     func(v *Version, value string) error { v.ID = value; return nil },
	},
	FieldRef: {
		pattern: `[0-9a-zA-Z-]+`,
		get:     func(v *Version) string { return v.Ref },
		set:     func(v *Version, value string) error { v.Ref = value; return nil },
	},
	FieldCommit: {
		pattern: `[0-9a-fA-F-]+`,
		get:     func(v *Version) string { return v.Commit },
		set:     func(v *Version, value string) error { v.Commit = value; return nil },
	},
}

// segment is one element of a compiled template: literal text, a
// placeholder, or an optional group of literals and placeholders.
type segment struct {
	literal  string
	field    string
	optional []segment
}

// MetadataTemplate composes build metadata from the build, id, ref and
// commit fields of a Version and decomposes it back.
//
// Grammar:
//
//	template    = { element }
//	element     = literal | placeholder | optional
//	optional    = "[" { literal | placeholder } "]"
//	placeholder = "{" field "}"
//	field       = "build" | "id" | "ref" | "commit"
//	literal     = any character except "[", "]", "{", "}", "\" | "\" any character
//
// An optional group renders as nothing when any placeholder inside it is
// unset. Each field may appear once.
type MetadataTemplate struct {
	source   string
	segments []segment
	re       *regexp.Regexp
}

var defaultMetadataTemplate = MustParseMetadataTemplate(DefaultMetadataTemplate)

// ParseMetadataTemplate compiles a metadata template.
func ParseMetadataTemplate(source string) (*MetadataTemplate, error) {
	p := templateParser{src: []rune(source), seen: map[string]bool{}}

	segments, err := p.parse(false)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %w", ErrInvalidTemplate, source, err)
	}

	var pattern strings.Builder
	pattern.WriteString("^")
	writePattern(&pattern, segments)
	pattern.WriteString("$")

	re, err := regexp.Compile(pattern.String())
	if err != nil {
		return nil, fmt.Errorf("%w %q: %w", ErrInvalidTemplate, source, err)
	}

	return &MetadataTemplate{source: source, segments: segments, re: re}, nil
}

// MustParseMetadataTemplate is like ParseMetadataTemplate but panics on error.
func MustParseMetadataTemplate(source string) *MetadataTemplate {
	t, err := ParseMetadataTemplate(source)
	if err != nil {
		panic(err)
	}
	return t
}

// String returns the template source.
func (t *MetadataTemplate) String() string {
	return t.source
}

// Render builds the metadata string from the fields of v.
func (t *MetadataTemplate) Render(v *Version) string {
	var out strings.Builder
	for _, s := range t.segments {
		if s.optional != nil {
			text, complete := renderGroup(v, s.optional)
			if complete {
				out.WriteString(text)
			}
			continue
		}
		text, _ := renderSegment(v, s)
		out.WriteString(text)
	}
	return out.String()
}

// Decompose sets the build, id, ref and commit fields of v from metadata.
// It reports false and leaves v untouched when metadata does not match.
func (t *MetadataTemplate) Decompose(v *Version, metadata string) bool {
	match := t.re.FindStringSubmatch(metadata)
	if match == nil {
		return false
	}

	parsed := *v
	for i, name := range t.re.SubexpNames() {
		if name == "" || match[i] == "" {
			continue
		}
		if err := metadataFields[name].set(&parsed, match[i]); err != nil {
			return false
		}
	}

	*v = parsed
	return true
}

func renderSegment(v *Version, s segment) (string, bool) {
	if s.field == "" {
		return s.literal, true
	}
	value := metadataFields[s.field].get(v)
	return value, strings.TrimSpace(value) != ""
}

func renderGroup(v *Version, group []segment) (string, bool) {
	var out strings.Builder
	complete := true
	for _, s := range group {
		text, ok := renderSegment(v, s)
		complete = complete && ok
		out.WriteString(text)
	}
	return out.String(), complete
}

func writePattern(b *strings.Builder, segments []segment) {
	for _, s := range segments {
		switch {
		case s.optional != nil:
			b.WriteString("(?:")
			writePattern(b, s.optional)
			b.WriteString(")?")
		case s.field != "":
			fmt.Fprintf(b, "(?P<%s>%s)", s.field, metadataFields[s.field].pattern)
		default:
			b.WriteString(regexp.QuoteMeta(s.literal))
		}
	}
}

type templateParser struct {
	src  []rune
	pos  int
	seen map[string]bool
}

func (p *templateParser) parse(inGroup bool) ([]segment, error) {
	var segments []segment
	var literal strings.Builder

	flush := func() {
		if literal.Len() > 0 {
			segments = append(segments, segment{literal: literal.String()})
			literal.Reset()
		}
	}

	for p.pos < len(p.src) {
		r := p.src[p.pos]
		switch r {
		case '\\':
			if p.pos+1 >= len(p.src) {
				return nil, fmt.Errorf("dangling escape at offset %d", p.pos)
			}
			literal.WriteRune(p.src[p.pos+1])
			p.pos += 2
		case '{':
			flush()
			field, err := p.placeholder()
			if err != nil {
				return nil, err
			}
			segments = append(segments, segment{field: field})
		case '[':
			if inGroup {
				return nil, fmt.Errorf("nested optional group at offset %d", p.pos)
			}
			flush()
			p.pos++
			group, err := p.parse(true)
			if err != nil {
				return nil, err
			}
			// An empty group still has to be distinguishable from a plain segment.
			if group == nil {
				group = []segment{}
			}
			segments = append(segments, segment{optional: group})
		case ']':
			if !inGroup {
				return nil, fmt.Errorf("unexpected ']' at offset %d", p.pos)
			}
			flush()
			p.pos++
			return segments, nil
		case '}':
			return nil, fmt.Errorf("unexpected '}' at offset %d", p.pos)
		default:
			literal.WriteRune(r)
			p.pos++
		}
	}

	if inGroup {
		return nil, fmt.Errorf("unterminated optional group")
	}
	flush()
	return segments, nil
}

func (p *templateParser) placeholder() (string, error) {
	start := p.pos
	end := start + 1
	for end < len(p.src) && p.src[end] != '}' {
		end++
	}
	if end >= len(p.src) {
		return "", fmt.Errorf("unterminated placeholder at offset %d", start)
	}

	name := string(p.src[start+1 : end])
	if _, ok := metadataFields[name]; !ok {
		return "", fmt.Errorf("unknown field %q", name)
	}
	if p.seen[name] {
		return "", fmt.Errorf("field %q used more than once", name)
	}
	p.seen[name] = true
	p.pos = end + 1
	return name, nil
}
