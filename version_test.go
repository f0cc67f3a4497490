package autovers

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func intPtr(n int) *int {
	return &n
}

func TestParse(t *testing.T) {
	tests := []struct {
		input      string
		major      int
		minor      int
		patch      *int
		revision   *int
		prerelease string
		metadata   string
	}{
		{input: "1.2", major: 1, minor: 2},
		{input: "v1.2.3", major: 1, minor: 2, patch: intPtr(3)},
		{input: "1.2.3.4", major: 1, minor: 2, patch: intPtr(3), revision: intPtr(4)},
		{input: "0.0.0.0", patch: intPtr(0), revision: intPtr(0)},
		{input: "1.2.3-rc.1", major: 1, minor: 2, patch: intPtr(3), prerelease: "rc.1"},
		{input: "1.2.3-rc.1+0.main.abc", major: 1, minor: 2, patch: intPtr(3), prerelease: "rc.1", metadata: "0.main.abc"},
		{input: "release/2.0", major: 2},
		{input: "sdk/v1.4.0", major: 1, minor: 4, patch: intPtr(0)},
		{input: "git version 2.39.1", major: 2, minor: 39, patch: intPtr(1)},
	}

	for _, test := range tests {
		t.Run(test.input, func(t *testing.T) {
			v, ok := Parse(test.input)
			require.True(t, ok)
			require.Equal(t, test.major, v.Major)
			require.Equal(t, test.minor, v.Minor)
			require.Equal(t, test.patch, v.PatchBuild)
			require.Equal(t, test.revision, v.Revision)
			require.Equal(t, test.prerelease, v.Prerelease)
			require.Equal(t, test.metadata, v.BuildMetadata)
		})
	}

	t.Run("Strings without a version do not parse", func(t *testing.T) {
		for _, input := range []string{"", "main", "HEAD", "1", "v", "feature/login"} {
			_, ok := Parse(input)
			require.False(t, ok, "input %q", input)
		}
	})

	t.Run("MustParse panics on invalid input", func(t *testing.T) {
		require.Panics(t, func() { MustParse("main") })
	})
}

func TestParseBuildMetadata(t *testing.T) {
	t.Run("All fields", func(t *testing.T) {
		v := MustParse("1.2.3+0.myid.main.abcdef")
		require.Equal(t, intPtr(0), v.Build)
		require.Equal(t, "myid", v.ID)
		require.Equal(t, "main", v.Ref)
		require.Equal(t, "abcdef", v.Commit)
	})

	t.Run("Without build and id", func(t *testing.T) {
		v := MustParse("1.2.3+main.abc1234")
		require.Nil(t, v.Build)
		require.Empty(t, v.ID)
		require.Equal(t, "main", v.Ref)
		require.Equal(t, "abc1234", v.Commit)
	})

	t.Run("Build without id", func(t *testing.T) {
		v := MustParse("1.2.3+5.main.abc")
		require.Equal(t, intPtr(5), v.Build)
		require.Empty(t, v.ID)
		require.Equal(t, "main", v.Ref)
		require.Equal(t, "abc", v.Commit)
	})

	t.Run("Metadata outside the template keeps the string only", func(t *testing.T) {
		v, ok := Parse("1.0.0+build.xyz")
		require.True(t, ok)
		require.Equal(t, "build.xyz", v.BuildMetadata)
		require.Nil(t, v.Build)
		require.Empty(t, v.Ref)
		require.Empty(t, v.Commit)
	})

	t.Run("Custom template", func(t *testing.T) {
		parser := NewParser(MustParseMetadataTemplate("{ref}.{commit}[.b{build}]"))
		v, ok := parser.Parse("2.0.1+main.abc.b7")
		require.True(t, ok)
		require.Equal(t, "main", v.Ref)
		require.Equal(t, "abc", v.Commit)
		require.Equal(t, intPtr(7), v.Build)
	})
}

func TestCompare(t *testing.T) {
	tests := []struct {
		a, b     string
		expected int
	}{
		{"1.2.3", "1.2.3", 0},
		{"1.2", "1.2.0", 0},
		{"1.2.3", "1.2.3.0", 0},
		{"1.2.3", "1.2.4", -1},
		{"2.0.0", "1.9.9", 1},
		{"1.10.0", "1.9.0", 1},
		{"1.2.3.4", "1.2.3.5", -1},
		{"1.2.3", "1.2.3-rc.1", 1},
		{"1.2.3-rc.1", "1.2.3-rc.2", -1},
		{"1.2.3-rc.2", "1.2.3-rc.10", -1},
		{"1.2.3-alpha", "1.2.3-alpha.1", -1},
		{"1.2.3-1", "1.2.3-alpha", -1},
		{"1.2.3-beta", "1.2.3-alpha", 1},
		{"1.2.3+0.a.main.abc", "1.2.3+9.b.dev.def", 0},
		{"1.2.3-rc.1+1.main.abc", "1.2.3-rc.1", 0},
	}

	for _, test := range tests {
		t.Run(test.a+" vs "+test.b, func(t *testing.T) {
			a, b := MustParse(test.a), MustParse(test.b)
			require.Equal(t, test.expected, Compare(a, b))
			require.Equal(t, -test.expected, Compare(b, a))
		})
	}
}

func TestCompareIsStrictWeakOrdering(t *testing.T) {
	inputs := []string{
		"0.0.0", "0.0.0.0", "0.1", "1.0.0-alpha", "1.0.0-alpha.1", "1.0.0-alpha.beta",
		"1.0.0-beta", "1.0.0-beta.2", "1.0.0-beta.11", "1.0.0-rc.1", "1.0.0",
		"1.0.0+5.main.abc", "1.0.0.1", "1.0.1", "1.2", "2.0.0",
	}
	versions := make([]Version, 0, len(inputs))
	for _, input := range inputs {
		versions = append(versions, MustParse(input))
	}

	for _, a := range versions {
		require.Equal(t, 0, Compare(a, a), "reflexive for %s", a)
		for _, b := range versions {
			require.Equal(t, Compare(a, b), -Compare(b, a), "antisymmetric for %s and %s", a, b)
			for _, c := range versions {
				if Compare(a, b) <= 0 && Compare(b, c) <= 0 {
					require.LessOrEqual(t, Compare(a, c), 0, "transitive for %s, %s, %s", a, b, c)
				}
			}
		}
	}
}

func TestVersionHelpers(t *testing.T) {
	low, high := MustParse("1.2.3-rc.1"), MustParse("1.2.3")
	require.True(t, low.LessThan(high))
	require.True(t, high.GreaterThan(low))
	require.False(t, high.Equal(low))
	require.True(t, high.Equal(MustParse("1.2.3+0.main.abc")))
	require.Equal(t, -1, low.Compare(high))
}

func TestFormat(t *testing.T) {
	tests := []struct {
		input    string
		format   Format
		expected string
	}{
		{"1.2", Format{}, "1.2.0"},
		{"1.2", Format{NoZeros: true}, "1.2"},
		{"1.2", Format{Assembly: true}, "1.2.0.0"},
		{"1.2", Format{NoZeros: true, Assembly: true}, "1.2"},
		{"1.2.0", Format{NoZeros: true}, "1.2.0"},
		{"1.2.3.4", Format{}, "1.2.3"},
		{"1.2.3.4", Format{Assembly: true}, "1.2.3.4"},
		{"1.2.3-rc.1+0.main.abc", Format{}, "1.2.3-rc.1+0.main.abc"},
		{"1.2.3-rc.1+0.main.abc", Format{Short: true}, "1.2.3"},
		{"1.2.3-rc.1+0.main.abc", Format{Assembly: true}, "1.2.3.0-rc.1+0.main.abc"},
		{"1.2.3-rc.1+0.main.abc", Format{NoZeros: true, Assembly: true}, "1.2.3-rc.1+0.main.abc"},
		{"v1.4.0", Format{Short: true, Assembly: true}, "1.4.0.0"},
	}

	for _, test := range tests {
		t.Run(test.input+"/"+test.expected, func(t *testing.T) {
			require.Equal(t, test.expected, MustParse(test.input).Format(test.format))
		})
	}

	t.Run("String is the long SemVer form", func(t *testing.T) {
		require.Equal(t, "1.2.3-rc.1+0.main.abc", MustParse("1.2.3.9-rc.1+0.main.abc").String())
	})
}

func TestFormatRoundTrip(t *testing.T) {
	inputs := []string{
		"1.2.3.4-rc.1+5.myid.main.abcdef",
		"0.0.0.0",
		"10.20.30.40-alpha.beta.1+0.release-2-0.0123abc",
	}

	for _, input := range inputs {
		t.Run(input, func(t *testing.T) {
			v := MustParse(input)
			rendered := v.Format(Format{Assembly: true})
			require.Equal(t, input, rendered)

			parsed, ok := Parse(rendered)
			require.True(t, ok)
			require.Equal(t, 0, Compare(v, parsed))
			require.Equal(t, v.Build, parsed.Build)
			require.Equal(t, v.ID, parsed.ID)
			require.Equal(t, v.Ref, parsed.Ref)
			require.Equal(t, v.Commit, parsed.Commit)
		})
	}
}

func TestAdd(t *testing.T) {
	t.Run("Patch bump", func(t *testing.T) {
		v := MustParse("1.4.0")
		require.Equal(t, "1.4.3", v.Add(3, BumpPatch).String())
	})

	t.Run("Revision bump", func(t *testing.T) {
		v := MustParse("1.4.0")
		require.Equal(t, "1.4.0.3", v.Add(3, BumpRevision).Format(Format{Assembly: true}))
	})

	t.Run("Unset component starts at zero", func(t *testing.T) {
		v := MustParse("2.0")
		v.Add(5, BumpPatch)
		require.Equal(t, intPtr(5), v.PatchBuild)
	})

	t.Run("Adding zero marks the component as specified", func(t *testing.T) {
		v := MustParse("1.4")
		v.Add(0, BumpPatch)
		require.Equal(t, "1.4.0", v.Format(Format{NoZeros: true}))
	})

	t.Run("Chained adds accumulate", func(t *testing.T) {
		v := MustParse("1.0.0")
		v.Add(1, BumpPatch).Add(2, BumpPatch)
		require.Equal(t, "1.0.3", v.String())
	})

	t.Run("Add does not alias copies", func(t *testing.T) {
		original := MustParse("1.0.5")
		bumped := original
		bumped.Add(1, BumpPatch)
		require.Equal(t, "1.0.5", original.String())
		require.Equal(t, "1.0.6", bumped.String())
	})

	t.Run("Add is monotone", func(t *testing.T) {
		for _, input := range []string{"0.0.0", "1.2", "1.2.3-rc.1", "1.2.3.4"} {
			for _, bump := range []Bump{BumpPatch, BumpRevision} {
				v := MustParse(input)
				bumped := MustParse(input)
				bumped.Add(2, bump)
				require.Equal(t, 1, Compare(bumped, v), "%s bump %d", input, bump)
			}
		}
	})
}

func TestUpdateMetadata(t *testing.T) {
	t.Run("Only given fields change", func(t *testing.T) {
		v := MustParse("1.2.3+7.myid.main.abcdef")
		v.UpdateMetadata(WithCommit("1234567"))
		require.Equal(t, "7.myid.main.1234567", v.BuildMetadata)
		require.Equal(t, intPtr(7), v.Build)
		require.Equal(t, "myid", v.ID)
	})

	t.Run("Unset optional fields collapse", func(t *testing.T) {
		v := MustParse("1.2.3")
		v.UpdateMetadata(WithRef("main"), WithCommit("abc"))
		require.Equal(t, "main.abc", v.BuildMetadata)
		require.Equal(t, "1.2.3+main.abc", v.String())

		v.UpdateMetadata(WithBuild(0))
		require.Equal(t, "0.main.abc", v.BuildMetadata)

		v.UpdateMetadata(WithID("ci42"))
		require.Equal(t, "0.ci42.main.abc", v.BuildMetadata)
	})

	t.Run("Unset required fields render empty", func(t *testing.T) {
		v := MustParse("1.0.0")
		v.UpdateMetadata(WithCommit("abc"))
		require.Equal(t, ".abc", v.BuildMetadata)
	})

	t.Run("Parser template is used when regenerating", func(t *testing.T) {
		parser := NewParser(MustParseMetadataTemplate("{ref}.{commit}[.b{build}]"))
		v, ok := parser.Parse("2.0.1")
		require.True(t, ok)
		v.UpdateMetadata(WithRef("dev"), WithCommit("ff00"), WithBuild(3))
		require.Equal(t, "2.0.1+dev.ff00.b3", v.String())
	})
}
